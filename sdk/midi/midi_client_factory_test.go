package midi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leandrodaf/midiex/internal/logger"
	"github.com/leandrodaf/midiex/internal/midi/miditest"
	"github.com/leandrodaf/midiex/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/drivers"
)

func stubDriver(t *testing.T, fn func(*contracts.ClientOptions) (contracts.Driver, error)) {
	t.Helper()
	prev := newDriver
	newDriver = fn
	t.Cleanup(func() { newDriver = prev })
}

func TestApplyDefaultOptions(t *testing.T) {
	opts, err := applyDefaultOptions()
	require.NoError(t, err)

	assert.NotNil(t, opts.Logger)
	assert.Equal(t, "MIDIex", opts.ClientName)
	assert.Equal(t, 1024, opts.DeliveryBuffer)
	assert.Equal(t, time.Second, opts.HotplugInterval)
	require.NotNil(t, opts.ListenConfig)
	assert.True(t, opts.ListenConfig.SysEx)
	assert.True(t, opts.ListenConfig.ActiveSense)
	assert.True(t, opts.ListenConfig.TimeCode)
	assert.EqualValues(t, contracts.DefaultSysExBufferSize, opts.ListenConfig.SysExBufferSize)
	assert.Nil(t, opts.Driver)
}

func TestListenConfigGetsSysExBuffer(t *testing.T) {
	opts, err := applyDefaultOptions(contracts.WithListenConfig(drivers.ListenConfig{SysEx: true}))
	require.NoError(t, err)
	assert.EqualValues(t, contracts.DefaultSysExBufferSize, opts.ListenConfig.SysExBufferSize)

	opts, err = applyDefaultOptions(contracts.WithListenConfig(drivers.ListenConfig{SysEx: true, SysExBufferSize: 512}))
	require.NoError(t, err)
	assert.EqualValues(t, 512, opts.ListenConfig.SysExBufferSize)

	opts, err = applyDefaultOptions(contracts.WithListenConfig(drivers.ListenConfig{}))
	require.NoError(t, err)
	assert.Zero(t, opts.ListenConfig.SysExBufferSize)
}

func TestApplyDefaultOptionsKeepsExplicitValues(t *testing.T) {
	log := logger.NewNopLogger()
	driver := miditest.New(nil, nil)

	opts, err := applyDefaultOptions(
		contracts.WithLogger(log),
		contracts.WithClientName("Sequencer"),
		contracts.WithDriver(driver),
		contracts.WithDeliveryBuffer(8),
		contracts.WithHotplugInterval(50*time.Millisecond),
		contracts.WithListenConfig(drivers.ListenConfig{SysEx: true}),
	)
	require.NoError(t, err)

	assert.Same(t, log, opts.Logger)
	assert.Equal(t, "Sequencer", opts.ClientName)
	assert.Same(t, driver, opts.Driver)
	assert.Equal(t, 8, opts.DeliveryBuffer)
	assert.Equal(t, 50*time.Millisecond, opts.HotplugInterval)
	assert.Equal(t, drivers.ListenConfig{SysEx: true, SysExBufferSize: contracts.DefaultSysExBufferSize}, *opts.ListenConfig)
}

func TestNewMIDIClientWithDriver(t *testing.T) {
	stubDriver(t, func(*contracts.ClientOptions) (contracts.Driver, error) {
		t.Fatal("platform driver opened although one was supplied")
		return nil, nil
	})
	driver := miditest.New([]string{"Keys"}, []string{"Synth"})

	client, err := NewMIDIClient(
		contracts.WithLogger(logger.NewNopLogger()),
		contracts.WithDriver(driver),
	)
	require.NoError(t, err)

	count, err := client.CountPorts()
	require.NoError(t, err)
	assert.Equal(t, contracts.PortCount{Input: 1, Output: 1}, count)

	require.NoError(t, client.Stop())
	assert.True(t, driver.Closed())
}

func TestNewMIDIClientDriverUnavailable(t *testing.T) {
	stubDriver(t, func(*contracts.ClientOptions) (contracts.Driver, error) {
		return nil, errors.New("no MIDI backend")
	})

	client, err := NewMIDIClient(contracts.WithLogger(logger.NewNopLogger()))
	assert.Nil(t, client)
	require.ErrorIs(t, err, contracts.ErrMIDIUnavailable)
	assert.Contains(t, err.Error(), "no MIDI backend")
}

func TestNotificationsUnsupportedOS(t *testing.T) {
	opts, err := applyDefaultOptions(
		contracts.WithLogger(logger.NewNopLogger()),
		contracts.WithDriver(miditest.New(nil, nil)),
	)
	require.NoError(t, err)

	client, err := newClientFor("plan9", &opts)
	require.NoError(t, err)
	defer client.Stop()

	_, err = client.Notifications(context.Background())
	assert.ErrorIs(t, err, ErrUnsupportedOS)
	assert.ErrorIs(t, client.Hotplug(context.Background()), contracts.ErrUnsupportedPlatform)
}

func TestSnapshotterInitializers(t *testing.T) {
	assert.Contains(t, snapshotterInitializers, "darwin")
	assert.Contains(t, snapshotterInitializers, "windows")
	assert.NotContains(t, snapshotterInitializers, "linux")
}
