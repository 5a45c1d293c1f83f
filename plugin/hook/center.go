package hook

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/kasuganosora/npcsensor/game/sensor"
	"go.uber.org/zap"
)

// ErrInterrupt signals that a listener wants to stop further processing.
var ErrInterrupt = errors.New("hook interrupted")

// AnyKind registers a listener for every event kind.
const AnyKind sensor.EventKind = ""

// Listener handles one sensor event. Returning ErrInterrupt stops the
// listeners after it; any other error is logged and dispatch continues.
type Listener func(ctx context.Context, rec sensor.EventRecord) error

type entry struct {
	priority int
	seq      uint64
	name     string
	fn       Listener
}

// Center dispatches sensor events to in-process listeners in priority order
// (lower runs first). It is a sensor.EventSink.
type Center struct {
	mu        sync.RWMutex
	listeners map[sensor.EventKind][]*entry
	seq       uint64
	logger    *zap.Logger
}

func NewCenter(logger *zap.Logger) *Center {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Center{listeners: make(map[sensor.EventKind][]*entry), logger: logger}
}

// On adds a listener for kind. name is used by Off.
func (c *Center) On(kind sensor.EventKind, priority int, name string, fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.listeners[kind] = append(c.listeners[kind], &entry{priority: priority, seq: c.seq, name: name, fn: fn})
	sortEntries(c.listeners[kind])
}

// Off removes every listener called name from kind.
func (c *Center) Off(kind sensor.EventKind, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners[kind] = without(c.listeners[kind], name)
}

// OffAll removes every listener called name from all kinds.
func (c *Center) OffAll(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for kind, list := range c.listeners {
		c.listeners[kind] = without(list, name)
	}
}

func without(list []*entry, name string) []*entry {
	out := list[:0]
	for _, e := range list {
		if e.name != name {
			out = append(out, e)
		}
	}
	return out
}

func sortEntries(list []*entry) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority < list[j].priority
		}
		return list[i].seq < list[j].seq
	})
}

// Dispatch runs the listeners for rec.Kind together with the AnyKind ones.
// It returns ErrInterrupt when a listener stopped the chain.
func (c *Center) Dispatch(ctx context.Context, rec sensor.EventRecord) error {
	c.mu.RLock()
	list := make([]*entry, 0, len(c.listeners[rec.Kind])+len(c.listeners[AnyKind]))
	list = append(list, c.listeners[rec.Kind]...)
	if rec.Kind != AnyKind {
		list = append(list, c.listeners[AnyKind]...)
	}
	c.mu.RUnlock()
	sortEntries(list)

	for _, e := range list {
		err := e.fn(ctx, rec)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrInterrupt) {
			return err
		}
		c.logger.Warn("sensor event listener failed",
			zap.String("listener", e.name),
			zap.String("kind", string(rec.Kind)),
			zap.Error(err))
	}
	return nil
}

// Deliver implements sensor.EventSink.
func (c *Center) Deliver(rec sensor.EventRecord) {
	_ = c.Dispatch(context.Background(), rec)
}

// Count returns how many listeners kind has, AnyKind ones excluded.
func (c *Center) Count(kind sensor.EventKind) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listeners[kind])
}
