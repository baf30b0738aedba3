package delivery

import (
	"errors"
	"testing"
	"time"

	"github.com/leandrodaf/midiex/internal/logger"
	"github.com/leandrodaf/midiex/internal/midi/miditest"
	"github.com/leandrodaf/midiex/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

const waitFor = time.Second

func inputPort(drv *miditest.Driver, i int) contracts.PortDescriptor {
	in := drv.In(i)
	return contracts.PortDescriptor{
		Direction: contracts.Input,
		Name:      in.String(),
		Index:     i,
		Ref:       contracts.InputRef(in),
	}
}

func startWorker(t *testing.T, drv *miditest.Driver, d *Dispatcher, cancel <-chan struct{}) *Worker {
	t.Helper()
	port := inputPort(drv, 0)
	w, err := Start(Config{
		Port:    port,
		In:      drv.In(0),
		Listen:  drivers.ListenConfig{SysEx: true, ActiveSense: true, TimeCode: true},
		Enqueue: d.Enqueue,
		Logger:  logger.NewNopLogger(),
	}, cancel)
	require.NoError(t, err)
	return w
}

func TestWorkerForwardsMessagesInOrder(t *testing.T) {
	drv := miditest.New([]string{"Keys"}, nil)
	d := NewDispatcher(logger.NewNopLogger(), 64)
	d.Start()
	defer d.Stop()

	sink := make(chan contracts.Message, 64)
	d.SetSink(sink)

	cancel := make(chan struct{})
	w := startWorker(t, drv, d, cancel)
	assert.True(t, drv.In(0).IsOpen())

	sent := [][]byte{midi.NoteOn(0, 60, 100), midi.NoteOff(0, 60), {0xF0, 0x01, 0x02, 0xF7}}
	for _, m := range sent {
		require.True(t, drv.In(0).Emit(m))
	}

	for _, want := range sent {
		select {
		case got := <-sink:
			assert.Equal(t, want, got.Data)
			assert.Equal(t, "Keys", got.Port.Name)
			assert.False(t, got.Virtual)
			assert.NotZero(t, got.Timestamp)
		case <-time.After(waitFor):
			t.Fatal("message not delivered")
		}
	}

	close(cancel)
	select {
	case <-w.Done():
	case <-time.After(waitFor):
		t.Fatal("worker did not stop")
	}
	require.NoError(t, w.Err())
	assert.False(t, drv.In(0).IsOpen())
	assert.False(t, drv.In(0).Listening())
	assert.Equal(t, 1, drv.In(0).Closes())
}

func TestWorkerKeepsConnectionUntilCancelled(t *testing.T) {
	drv := miditest.New([]string{"Keys"}, nil)
	d := NewDispatcher(logger.NewNopLogger(), 8)
	d.Start()
	defer d.Stop()

	cancel := make(chan struct{})
	w := startWorker(t, drv, d, cancel)

	select {
	case <-w.Done():
		t.Fatal("worker stopped without cancellation")
	case <-time.After(20 * time.Millisecond):
	}
	assert.True(t, drv.In(0).IsOpen())
	assert.Equal(t, 0, drv.In(0).Closes())

	close(cancel)
	<-w.Done()
	assert.Equal(t, 1, drv.In(0).Closes())
}

func TestStartFailsWhenOpenFails(t *testing.T) {
	drv := miditest.New([]string{"Keys"}, nil)
	drv.In(0).OpenErr = errors.New("device gone")
	d := NewDispatcher(logger.NewNopLogger(), 8)

	_, err := Start(Config{
		Port:    inputPort(drv, 0),
		In:      drv.In(0),
		Enqueue: d.Enqueue,
		Logger:  logger.NewNopLogger(),
	}, make(chan struct{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device gone")
}

func TestStartClosesConnectionWhenListenFails(t *testing.T) {
	drv := miditest.New([]string{"Keys"}, nil)
	drv.In(0).ListenErr = errors.New("callback rejected")
	d := NewDispatcher(logger.NewNopLogger(), 8)

	_, err := Start(Config{
		Port:    inputPort(drv, 0),
		In:      drv.In(0),
		Enqueue: d.Enqueue,
		Logger:  logger.NewNopLogger(),
	}, make(chan struct{}))
	require.Error(t, err)
	assert.False(t, drv.In(0).IsOpen())
	assert.Equal(t, 1, drv.In(0).Closes())
}

func TestDispatcherDropsWithoutConsumer(t *testing.T) {
	drv := miditest.New([]string{"Keys"}, nil)
	d := NewDispatcher(logger.NewNopLogger(), 8)
	d.Start()
	defer d.Stop()

	cancel := make(chan struct{})
	defer close(cancel)
	startWorker(t, drv, d, cancel)

	require.True(t, drv.In(0).Emit([]byte{0xF8}))
	assert.Eventually(t, func() bool { return d.Dropped() == 1 }, waitFor, time.Millisecond)
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	d := NewDispatcher(logger.NewNopLogger(), 2)

	msg := contracts.Message{Data: []byte{0xF8}}
	assert.True(t, d.Enqueue(msg))
	assert.True(t, d.Enqueue(msg))
	assert.False(t, d.Enqueue(msg))
	assert.EqualValues(t, 1, d.Dropped())
}

func TestDispatcherStopUnblocksSlowConsumer(t *testing.T) {
	d := NewDispatcher(logger.NewNopLogger(), 4)
	d.SetSink(make(chan contracts.Message))
	d.Start()

	require.True(t, d.Enqueue(contracts.Message{Data: []byte{0x90, 1, 1}}))

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(waitFor):
		t.Fatal("Stop blocked on an unread consumer channel")
	}

	assert.False(t, d.Enqueue(contracts.Message{}))
	d.Stop()
}

func TestDispatcherStopWithoutStart(t *testing.T) {
	d := NewDispatcher(logger.NewNopLogger(), 1)
	d.Stop()
	d.Stop()
}

func TestWorkerReceivesLongSysEx(t *testing.T) {
	drv := miditest.New([]string{"Synth"}, nil)
	d := NewDispatcher(logger.NewNopLogger(), 8)
	d.Start()
	defer d.Stop()
	sink := make(chan contracts.Message, 8)
	d.SetSink(sink)

	cancel := make(chan struct{})
	defer close(cancel)
	_, err := Start(Config{
		Port:    inputPort(drv, 0),
		In:      drv.In(0),
		Listen:  drivers.ListenConfig{SysEx: true},
		Enqueue: d.Enqueue,
		Logger:  logger.NewNopLogger(),
	}, cancel)
	require.NoError(t, err)

	// A patch dump well past the reader's 1024-byte fallback buffer.
	dump := make([]byte, 4000)
	dump[0] = 0xF0
	for i := 1; i < len(dump)-1; i++ {
		dump[i] = byte(i % 0x80)
	}
	dump[len(dump)-1] = 0xF7

	require.True(t, drv.In(0).Emit(dump))
	select {
	case got := <-sink:
		assert.Equal(t, dump, got.Data)
	case <-time.After(waitFor):
		t.Fatal("SysEx not delivered")
	}
}
