//go:build windows
// +build windows

package midiwindows

import (
	"fmt"
	"unsafe"

	"github.com/leandrodaf/midiex/internal/midi/hotplug"
	"github.com/leandrodaf/midiex/sdk/contracts"
	"golang.org/x/sys/windows"
)

// Struct representing MIDI input device capabilities
type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

// Struct representing MIDI output device capabilities
type midiOutCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	wTechnology    uint16
	wVoices        uint16
	wNotes         uint16
	wChannelMask   uint16
	dwSupport      uint32
}

// Load the winmm.dll library and required functions
var (
	winmm                 = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs  = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps  = winmm.NewProc("midiInGetDevCapsW")
	procMidiOutGetNumDevs = winmm.NewProc("midiOutGetNumDevs")
	procMidiOutGetDevCaps = winmm.NewProc("midiOutGetDevCapsW")
)

// Snapshotter reads device capabilities from winmm.
type Snapshotter struct {
	logger contracts.Logger
}

// NewSnapshotter checks that winmm is loadable.
func NewSnapshotter(options *contracts.ClientOptions) (hotplug.Snapshotter, error) {
	if err := winmm.Load(); err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrMIDIUnavailable, err)
	}
	options.Logger.Info("winmm notification source created")
	return &Snapshotter{logger: options.Logger}, nil
}

// Snapshot lists every winmm input and output device.
func (s *Snapshotter) Snapshot() ([]hotplug.Endpoint, error) {
	var endpoints []hotplug.Endpoint

	r0, _, _ := procMidiInGetNumDevs.Call()
	for i := uint32(0); i < uint32(r0); i++ {
		var caps midiInCaps
		r1, _, _ := procMidiInGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			s.logger.Warn("Failed to get information for MIDI input device", s.logger.Field().Int("device", int(i)))
			continue
		}
		endpoints = append(endpoints, endpoint(caps.wMid, caps.wPid, caps.szPname[:], contracts.ObjectInput))
	}

	r0, _, _ = procMidiOutGetNumDevs.Call()
	for i := uint32(0); i < uint32(r0); i++ {
		var caps midiOutCaps
		r1, _, _ := procMidiOutGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			s.logger.Warn("Failed to get information for MIDI output device", s.logger.Field().Int("device", int(i)))
			continue
		}
		endpoints = append(endpoints, endpoint(caps.wMid, caps.wPid, caps.szPname[:], contracts.ObjectOutput))
	}
	return endpoints, nil
}

// Close is a no-op; winmm needs no per-watcher state.
func (s *Snapshotter) Close() error {
	return nil
}

// endpoint reports the manufacturer/product pair as the parent device.
func endpoint(mid, pid uint16, pname []uint16, direction contracts.ObjectType) hotplug.Endpoint {
	return hotplug.Endpoint{
		ParentName: fmt.Sprintf("MID: %d PID: %d", mid, pid),
		ParentID:   uint32(mid)<<16 | uint32(pid),
		ParentType: contracts.ObjectDevice,
		Name:       windows.UTF16ToString(pname),
		Direction:  direction,
	}
}
