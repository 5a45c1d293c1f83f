package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/npcsensor/game/sensor"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// EventsChannel is the pub/sub channel a sensor's flushed events go to.
func EventsChannel(sensorID uuid.UUID) string {
	return fmt.Sprintf("sensor:%s:events", sensorID)
}

// RecentEventsKey is the list holding a sensor's latest events, newest first.
func RecentEventsKey(sensorID uuid.UUID) string {
	return fmt.Sprintf("sensor:%s:recent", sensorID)
}

// PublisherConfig sizes an EventPublisher.
type PublisherConfig struct {
	QueueSize int           `mapstructure:"queue_size"`
	Recent    int64         `mapstructure:"recent"`     // events kept per sensor in the cache, 0 disables
	RecentTTL time.Duration `mapstructure:"recent_ttl"` // idle lifetime of the recent list, 0 keeps it forever
}

// PublisherStats counts what an EventPublisher did.
type PublisherStats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
	Failed    uint64 `json:"failed"`
}

// EventPublisher is a sensor.EventSink that publishes every delivered event
// as JSON on the sensor's channel. Delivery only enqueues; a background
// worker does the network I/O so sensor ticks never wait on Redis. When the
// queue is full the event is dropped.
type EventPublisher struct {
	ps     PubSub
	kv     Cache
	recent    int64
	recentTTL time.Duration
	logger    *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan sensor.EventRecord
	wg     sync.WaitGroup

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// NewEventPublisher starts the publishing worker. kv may be nil.
func NewEventPublisher(ps PubSub, kv Cache, cfg PublisherConfig, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	p := &EventPublisher{
		ps:     ps,
		kv:     kv,
		recent:    cfg.Recent,
		recentTTL: cfg.RecentTTL,
		logger:    logger,
		queue:     make(chan sensor.EventRecord, cfg.QueueSize),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Deliver implements sensor.EventSink.
func (p *EventPublisher) Deliver(rec sensor.EventRecord) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- rec:
	default:
		p.dropped.Add(1)
	}
}

func (p *EventPublisher) run() {
	defer p.wg.Done()
	for rec := range p.queue {
		if err := p.publish(rec); err != nil {
			p.failed.Add(1)
			p.logger.Warn("sensor event publish failed",
				zap.String("sensor", rec.Sensor.String()),
				zap.String("kind", string(rec.Kind)),
				zap.Error(err))
			continue
		}
		p.published.Add(1)
	}
}

func (p *EventPublisher) publish(rec sensor.EventRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.ps.Publish(ctx, EventsChannel(rec.Sensor), string(data)); err != nil {
		return err
	}
	if p.kv == nil || p.recent <= 0 {
		return nil
	}
	key := RecentEventsKey(rec.Sensor)
	if err := p.kv.LPush(ctx, key, string(data)); err != nil {
		return err
	}
	if err := p.kv.LTrim(ctx, key, 0, p.recent-1); err != nil {
		return err
	}
	if p.recentTTL > 0 {
		return p.kv.Expire(ctx, key, p.recentTTL)
	}
	return nil
}

// Close stops accepting events and waits for the queue to drain.
func (p *EventPublisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *EventPublisher) Stats() PublisherStats {
	return PublisherStats{
		Published: p.published.Load(),
		Dropped:   p.dropped.Load(),
		Failed:    p.failed.Load(),
	}
}

// RecentEvents returns up to n of the sensor's latest events, newest first.
func RecentEvents(ctx context.Context, kv Cache, sensorID uuid.UUID, n int64) ([]json.RawMessage, error) {
	if n <= 0 {
		return []json.RawMessage{}, nil
	}
	raw, err := kv.LRange(ctx, RecentEventsKey(sensorID), 0, n-1)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, len(raw))
	for i, r := range raw {
		out[i] = json.RawMessage(r)
	}
	return out, nil
}
