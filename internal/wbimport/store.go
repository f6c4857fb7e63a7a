package wbimport

import (
	"context"
	"sync"
	"time"
)

// saveTimeout bounds one background save.
const saveTimeout = 10 * time.Second

// Descriptor is the persisted description of a discovered control.
type Descriptor struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Readonly bool   `json:"readonly"`
	// Level is the last raw value seen, if any.
	Level    *string `json:"level,omitempty"`
	MaxLevel int     `json:"max_level,omitempty"`
	Topic    string  `json:"topic"`
}

// Snapshot is the persisted state of one module.
type Snapshot struct {
	// Known lists every discovered id in discovery order.
	Known []string
	// Enabled is the subset of Known materialised in the registry.
	Enabled     []string
	Descriptors map[string]Descriptor
}

// clone returns a deep copy safe to hand to another goroutine.
func (s Snapshot) clone() Snapshot {
	out := Snapshot{
		Known:       append([]string(nil), s.Known...),
		Enabled:     append([]string(nil), s.Enabled...),
		Descriptors: make(map[string]Descriptor, len(s.Descriptors)),
	}
	for id, d := range s.Descriptors {
		if d.Level != nil {
			v := *d.Level
			d.Level = &v
		}
		out.Descriptors[id] = d
	}
	return out
}

// Store persists module snapshots. Load on an empty store returns an
// empty snapshot and no error.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// saver writes snapshots in the background. Only the latest pending
// snapshot is kept; Submit never blocks.
type saver struct {
	store   Store
	logger  Logger
	pending chan Snapshot
	done    chan struct{}
	once    sync.Once
}

func newSaver(store Store, logger Logger) *saver {
	s := &saver{
		store:   store,
		logger:  logger,
		pending: make(chan Snapshot, 1),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Submit queues snap, replacing any snapshot not yet written.
func (s *saver) Submit(snap Snapshot) {
	for {
		select {
		case s.pending <- snap:
			return
		default:
		}
		select {
		case <-s.pending:
		default:
		}
	}
}

func (s *saver) run() {
	defer close(s.done)
	for snap := range s.pending {
		s.write(snap)
	}
}

func (s *saver) write(snap Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.store.Save(ctx, snap); err != nil {
		s.logger.Error("saving import state failed", "error", err)
	}
}

// Close writes the pending snapshot, if any, and stops the saver.
// Submit must not be called after Close.
func (s *saver) Close() {
	s.once.Do(func() {
		close(s.pending)
		<-s.done
	})
}
