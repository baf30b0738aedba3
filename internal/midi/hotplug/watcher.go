// Package hotplug turns periodic endpoint snapshots into device added and
// removed notifications.
package hotplug

import (
	"context"
	"time"

	"github.com/leandrodaf/midiex/sdk/contracts"
)

// Endpoint is one MIDI source or destination as seen by the OS.
type Endpoint struct {
	ParentName string
	ParentID   uint32
	ParentType contracts.ObjectType
	Name       string
	NativeID   uint32
	Direction  contracts.ObjectType
}

// Snapshotter reads the endpoints currently present.
type Snapshotter interface {
	Snapshot() ([]Endpoint, error)
	Close() error
}

// Watcher polls a Snapshotter and reports differences.
type Watcher struct {
	source   Snapshotter
	interval time.Duration
	logger   contracts.Logger
}

// NewWatcher creates a watcher reading source every interval.
func NewWatcher(source Snapshotter, interval time.Duration, logger contracts.Logger) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{source: source, interval: interval, logger: logger}
}

// Run sends notifications on events until ctx is done. The first snapshot is
// the baseline and produces no events. A failed snapshot is logged and the
// previous view kept. Run closes the snapshotter before returning.
func (w *Watcher) Run(ctx context.Context, events chan<- contracts.Notification) error {
	defer func() {
		if err := w.source.Close(); err != nil {
			w.logger.Warn("Failed to close MIDI endpoint source", w.logger.Field().Error("error", err))
		}
	}()

	prev, err := w.source.Snapshot()
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		next, err := w.source.Snapshot()
		if err != nil {
			w.logger.Warn("Failed to read MIDI endpoints", w.logger.Field().Error("error", err))
			continue
		}

		for _, n := range Diff(prev, next) {
			w.logger.Info("MIDI endpoint "+n.Type.String(),
				w.logger.Field().String("name", n.Name),
				w.logger.Field().String("parent", n.ParentName),
				w.logger.Field().String("direction", n.Direction.String()))
			if events == nil {
				continue
			}
			select {
			case events <- n:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		prev = next
	}
}

// Diff returns removals followed by additions, each in snapshot order.
func Diff(prev, next []Endpoint) []contracts.Notification {
	before := make(map[Endpoint]int, len(prev))
	for _, e := range prev {
		before[e]++
	}
	after := make(map[Endpoint]int, len(next))
	for _, e := range next {
		after[e]++
	}

	var res []contracts.Notification
	for _, e := range prev {
		if after[e] > 0 {
			after[e]--
			continue
		}
		res = append(res, notification(contracts.Removed, e))
	}
	for _, e := range next {
		if before[e] > 0 {
			before[e]--
			continue
		}
		res = append(res, notification(contracts.Added, e))
	}
	return res
}

func notification(t contracts.NotificationType, e Endpoint) contracts.Notification {
	return contracts.Notification{
		Type:       t,
		ParentName: e.ParentName,
		ParentID:   e.ParentID,
		ParentType: e.ParentType,
		Name:       e.Name,
		NativeID:   e.NativeID,
		Direction:  e.Direction,
	}
}
