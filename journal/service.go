package journal

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/npcsensor/game/sensor"
	"github.com/kasuganosora/npcsensor/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Config tunes the journal writer.
type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	QueueSize     int           `mapstructure:"queue_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	// Kinds limits which events are kept. Empty keeps all of them.
	Kinds []string `mapstructure:"kinds"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		QueueSize:     1024,
		BatchSize:     100,
		FlushInterval: 2 * time.Second,
	}
}

// Stats counts what the journal did.
type Stats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
}

// Service persists sensor events asynchronously in batches. It is a
// sensor.EventSink; Deliver never blocks the tick.
type Service struct {
	db     *gorm.DB
	cfg    Config
	kinds  map[sensor.EventKind]bool
	ch     chan *model.SensorEvent
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	logger *zap.Logger

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// New creates a journal Service and starts its background worker.
func New(db *gorm.DB, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	svc := &Service{
		db:     db,
		cfg:    cfg,
		ch:     make(chan *model.SensorEvent, cfg.QueueSize),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	if len(cfg.Kinds) > 0 {
		svc.kinds = make(map[sensor.EventKind]bool, len(cfg.Kinds))
		for _, k := range cfg.Kinds {
			svc.kinds[sensor.EventKind(k)] = true
		}
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Deliver implements sensor.EventSink.
func (svc *Service) Deliver(rec sensor.EventRecord) {
	if svc.kinds != nil && !svc.kinds[rec.Kind] {
		return
	}
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		svc.logger.Debug("journal payload not encodable", zap.String("kind", string(rec.Kind)), zap.Error(err))
		payload = []byte("null")
	}
	row := &model.SensorEvent{
		EventID:    rec.ID.String(),
		SensorID:   rec.Sensor.String(),
		Kind:       string(rec.Kind),
		Subject:    rec.Subject,
		Payload:    datatypes.JSON(payload),
		SensorTime: rec.Timestamp,
	}
	select {
	case <-svc.stopCh:
		svc.dropped.Add(1)
		return
	default:
	}
	select {
	case svc.ch <- row:
	default:
		svc.dropped.Add(1)
		svc.logger.Warn("journal queue full, dropping event",
			zap.String("sensor", row.SensorID), zap.String("kind", row.Kind))
	}
}

// Stop flushes queued events and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	svc.once.Do(func() { close(svc.stopCh) })
	svc.wg.Wait()
}

func (svc *Service) Stats() Stats {
	return Stats{
		Written: svc.written.Load(),
		Dropped: svc.dropped.Load(),
		Failed:  svc.failed.Load(),
	}
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(svc.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]*model.SensorEvent, 0, svc.cfg.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.failed.Add(uint64(len(batch)))
			svc.logger.Error("journal batch write failed", zap.Int("events", len(batch)), zap.Error(err))
		} else {
			svc.written.Add(uint64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case row := <-svc.ch:
			batch = append(batch, row)
			if len(batch) >= svc.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			for {
				select {
				case row := <-svc.ch:
					batch = append(batch, row)
					if len(batch) >= svc.cfg.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// Filter narrows a journal query.
type Filter struct {
	SensorID uuid.UUID
	Kind     sensor.EventKind
	Limit    int
}

// Query returns persisted events, newest first.
func (svc *Service) Query(ctx context.Context, f Filter) ([]model.SensorEvent, error) {
	q := svc.db.WithContext(ctx).Model(&model.SensorEvent{})
	if f.SensorID != uuid.Nil {
		q = q.Where("sensor_id = ?", f.SensorID.String())
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", string(f.Kind))
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []model.SensorEvent
	err := q.Order("sensor_time DESC").Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}
