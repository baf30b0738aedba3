package output

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/midiex/internal/logger"
	"github.com/leandrodaf/midiex/internal/midi/catalog"
	"github.com/leandrodaf/midiex/internal/midi/miditest"
	"github.com/leandrodaf/midiex/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
)

func listPorts(t *testing.T, drv *miditest.Driver) []contracts.PortDescriptor {
	t.Helper()
	ports, err := catalog.New(drv, logger.NewNopLogger()).List()
	require.NoError(t, err)
	return ports
}

func TestConnectSendClose(t *testing.T) {
	drv := miditest.New([]string{"Keys"}, []string{"Synth"})
	ports := listPorts(t, drv)

	conn, err := Connect(drv, ports[1], logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "Synth", conn.Name())
	assert.Equal(t, 0, conn.PortNum())
	assert.False(t, conn.Virtual())
	assert.Equal(t, 1, drv.Out(0).Opens())

	noteOn := midi.NoteOn(0, 60, 100)
	require.NoError(t, conn.Send(noteOn))
	require.NoError(t, conn.Send([]byte{0xF0, 0x7E, 0x7F, 0x06, 0x01, 0xF7}))
	assert.Equal(t, [][]byte{noteOn, {0xF0, 0x7E, 0x7F, 0x06, 0x01, 0xF7}}, drv.Out(0).Sent())

	require.NoError(t, conn.Close())
	assert.True(t, conn.IsClosed())
	assert.Equal(t, 1, drv.Out(0).Closes())
}

func TestConnectRejectsInputPort(t *testing.T) {
	drv := miditest.New([]string{"Keys"}, []string{"Synth"})
	ports := listPorts(t, drv)

	conn, err := Connect(drv, ports[0], logger.NewNopLogger())
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, contracts.ErrInputPortSupplied)
	assert.Equal(t, 0, drv.In(0).Opens())
	assert.Equal(t, 0, drv.Out(0).Opens())
}

func TestConnectRejectsMismatchedRef(t *testing.T) {
	drv := miditest.New([]string{"Keys"}, nil)
	ports := listPorts(t, drv)

	forged := ports[0]
	forged.Direction = contracts.Output
	_, err := Connect(drv, forged, logger.NewNopLogger())
	assert.ErrorIs(t, err, contracts.ErrInputPortSupplied)

	_, err = Connect(drv, contracts.PortDescriptor{Direction: contracts.Output, Name: "ghost"}, logger.NewNopLogger())
	assert.ErrorIs(t, err, contracts.ErrInvalidPortRef)
}

func TestConnectOpenFailure(t *testing.T) {
	drv := miditest.New(nil, []string{"Busy"})
	drv.Out(0).OpenErr = errors.New("device busy")
	ports := listPorts(t, drv)

	_, err := Connect(drv, ports[0], logger.NewNopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device busy")
}

func TestSendAfterCloseFails(t *testing.T) {
	drv := miditest.New(nil, []string{"Synth"})
	conn, err := Connect(drv, listPorts(t, drv)[0], logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	err = conn.Send([]byte{0x90, 60, 100})
	assert.ErrorIs(t, err, contracts.ErrConnectionClosed)
	assert.Empty(t, drv.Out(0).Sent())
}

func TestConnectionsOnSamePortAreIndependent(t *testing.T) {
	drv := miditest.New(nil, []string{"Synth"})
	port := listPorts(t, drv)[0]

	first, err := Connect(drv, port, logger.NewNopLogger())
	require.NoError(t, err)
	second, err := Connect(drv, port, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, drv.Out(0).Opens())

	require.NoError(t, first.Close())
	assert.True(t, drv.Out(0).IsOpen())
	assert.False(t, second.IsClosed())
	require.NoError(t, second.Send([]byte{0x90, 64, 90}))
	assert.Equal(t, [][]byte{{0x90, 64, 90}}, drv.Out(0).Sent())

	require.NoError(t, second.Close())
	assert.False(t, drv.Out(0).IsOpen())
	assert.Equal(t, 2, drv.Out(0).Closes())
}

func TestConnectUnpluggedPort(t *testing.T) {
	drv := miditest.New(nil, []string{"Synth"})
	port := listPorts(t, drv)[0]
	drv.RemoveOut("Synth")

	_, err := Connect(drv, port, logger.NewNopLogger())
	assert.ErrorIs(t, err, contracts.ErrPortNotFound)
}

func TestSendFailureKeepsConnectionOpen(t *testing.T) {
	drv := miditest.New(nil, []string{"Synth"})
	conn, err := Connect(drv, listPorts(t, drv)[0], logger.NewNopLogger())
	require.NoError(t, err)

	drv.Out(0).SendErr = errors.New("buffer overrun")
	err = conn.Send([]byte{0x90, 60, 100})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buffer overrun")
	assert.False(t, conn.IsClosed())

	drv.Out(0).SendErr = nil
	require.NoError(t, conn.Send([]byte{0x80, 60, 0}))
	assert.Equal(t, [][]byte{{0x80, 60, 0}}, drv.Out(0).Sent())
}

func TestDoubleCloseIsReported(t *testing.T) {
	drv := miditest.New(nil, []string{"Synth"})
	conn, err := Connect(drv, listPorts(t, drv)[0], logger.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Close(), contracts.ErrConnectionAlreadyClosed)
	assert.Equal(t, 1, drv.Out(0).Closes())
}

func TestConcurrentSendsAreSerialized(t *testing.T) {
	drv := miditest.New(nil, []string{"Synth"})
	conn, err := Connect(drv, listPorts(t, drv)[0], logger.NewNopLogger())
	require.NoError(t, err)

	var inFlight, maxInFlight int
	var mu sync.Mutex
	drv.Out(0).SendHook = func() {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
	}

	const senders, perSender = 8, 20
	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(ch uint8) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				assert.NoError(t, conn.Send(midi.NoteOn(ch, uint8(i), 100)))
			}
		}(uint8(s))
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight)
	assert.Len(t, drv.Out(0).Sent(), senders*perSender)
}

func TestCloseWaitsForInFlightSend(t *testing.T) {
	drv := miditest.New(nil, []string{"Synth"})
	conn, err := Connect(drv, listPorts(t, drv)[0], logger.NewNopLogger())
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	drv.Out(0).SendHook = func() {
		close(entered)
		<-release
	}

	sendErr := make(chan error, 1)
	go func() { sendErr <- conn.Send([]byte{0xF8}) }()
	<-entered

	closed := make(chan error, 1)
	go func() { closed <- conn.Close() }()

	select {
	case <-closed:
		t.Fatal("Close returned while a send held the connection")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-sendErr)
	require.NoError(t, <-closed)
	assert.Equal(t, [][]byte{{0xF8}}, drv.Out(0).Sent())
}

func TestVirtualOutput(t *testing.T) {
	drv := miditest.New(nil, nil)

	conn, err := NewVirtual(drv, "MIDIex Virtual", 7, logger.NewNopLogger())
	require.NoError(t, err)
	assert.True(t, conn.Virtual())
	assert.Equal(t, 7, conn.PortNum())
	assert.Equal(t, "MIDIex Virtual", conn.Name())
	require.NoError(t, conn.Send([]byte{0xB0, 7, 127}))
	require.NoError(t, conn.Close())

	drv.VirtualErr = errors.New("no virtual ports")
	_, err = NewVirtual(drv, "again", 8, logger.NewNopLogger())
	require.Error(t, err)
}
