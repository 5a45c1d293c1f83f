package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/npcsensor/api/rest"
	"github.com/kasuganosora/npcsensor/api/sse"
	"github.com/kasuganosora/npcsensor/cache"
	"github.com/kasuganosora/npcsensor/config"
	dbadapter "github.com/kasuganosora/npcsensor/db"
	"github.com/kasuganosora/npcsensor/game/sensor"
	"github.com/kasuganosora/npcsensor/game/world"
	"github.com/kasuganosora/npcsensor/journal"
	mw "github.com/kasuganosora/npcsensor/middleware"
	"github.com/kasuganosora/npcsensor/model"
	"github.com/kasuganosora/npcsensor/plugin/hook"
	"github.com/kasuganosora/npcsensor/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Cache / PubSub ----
	kv, err := cache.NewCache(cfg.Cache.CacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cfg.Cache.CacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Event sinks ----
	publisher := cache.NewEventPublisher(pubsub, kv, cfg.Cache.Publisher, logger.Named("publisher"))
	hooks := hook.NewCenter(logger.Named("hooks"))
	registerHooks(hooks, logger.Named("sensor-events"))

	sinks := sensor.FanOut{publisher, hooks}
	var journalSvc *journal.Service
	var journalReader apirest.JournalReader
	if cfg.Journal.Enabled {
		journalSvc = journal.New(db, cfg.Journal, logger.Named("journal"))
		journalReader = journalSvc
		sinks = append(sinks, journalSvc)
	}

	// ---- Scheduler / World ----
	sched := scheduler.New(logger.Named("scheduler"))
	rooms := world.NewManager(sched, logger.Named("world"))

	for i := 1; i <= cfg.World.Rooms; i++ {
		room, err := buildRoom(cfg, i, sinks, logger)
		if err != nil {
			log.Fatalf("world: %v", err)
		}
		rooms.Add(room)
	}

	snapshots := cache.NewSnapshotStore(kv, cfg.Cache.SnapshotTTL)
	sched.AddTicker("snapshot_cache", cfg.Cache.SnapshotInterval, func() {
		cacheSnapshots(ctx, snapshots, rooms, logger)
	})
	sched.AddTicker("stats", cfg.World.StatsInterval, func() {
		pub := publisher.Stats()
		fields := []zap.Field{
			zap.Int("rooms", len(rooms.Rooms())),
			zap.Int("guards", len(rooms.Guards())),
			zap.Uint64("published", pub.Published),
			zap.Uint64("publish_dropped", pub.Dropped),
		}
		if journalSvc != nil {
			js := journalSvc.Stats()
			fields = append(fields, zap.Uint64("journaled", js.Written), zap.Uint64("journal_dropped", js.Dropped))
		}
		logger.Info("stats", fields...)
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(ctx, rate.Limit(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apirest.Register(r,
		apirest.NewSensorHandler(rooms, kv, journalReader, logger),
		apirest.NewAdminHandler(sched, rooms),
		cfg.Server.AdminKey)
	r.GET("/sse/sensors/:id", sse.NewHandler(pubsub, rooms, logger).ServeSensor)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// Rooms stop before the sinks so nothing is delivered to a closed sink.
	guards := rooms.Guards()
	rooms.StopAll()
	sched.Stop()
	publisher.Close()
	if journalSvc != nil {
		journalSvc.Stop(shutdownCtx)
	}
	// Sensor IDs do not survive a restart.
	for _, g := range guards {
		if err := snapshots.Delete(shutdownCtx, g.Sensor().ID()); err != nil {
			logger.Warn("snapshot cache cleanup failed", zap.Error(err))
			break
		}
	}
}

// buildRoom creates room id from the world config and populates it.
func buildRoom(cfg *config.Config, id int, sink sensor.EventSink, logger *zap.Logger) (*world.Room, error) {
	wc := cfg.World
	var grid *world.Grid
	if len(wc.Layout) > 0 {
		g, err := world.ParseGrid(wc.Layout, wc.CellSize)
		if err != nil {
			return nil, fmt.Errorf("room %d layout: %w", id, err)
		}
		grid = g
	} else {
		grid = world.Walled(wc.Width, wc.Height, wc.CellSize)
	}

	room := world.NewRoom(id, grid, wc.Room, wc.Seed+int64(id), logger.Named("room"))
	if err := world.Populate(room, wc.Spawn, cfg.Sensor, sink); err != nil {
		return nil, fmt.Errorf("room %d: %w", id, err)
	}
	return room, nil
}

// cacheSnapshots copies every sensor's latest snapshot into the cache for
// out-of-process inspectors.
func cacheSnapshots(ctx context.Context, store *cache.SnapshotStore, rooms *world.Manager, logger *zap.Logger) {
	for _, g := range rooms.Guards() {
		if err := store.Put(ctx, g.Sensor().Snapshot()); err != nil {
			logger.Warn("snapshot cache write failed", zap.Error(err), zap.Stringer("sensor", g.Sensor().ID()))
			return
		}
	}
}

// registerHooks installs the built-in listeners that log notable sensor
// events.
func registerHooks(hooks *hook.Center, logger *zap.Logger) {
	hooks.On(sensor.EventAlertLevelChanged, 0, "log-alert", func(_ context.Context, rec sensor.EventRecord) error {
		lc, ok := rec.Payload.(sensor.LevelChange)
		if !ok {
			return nil
		}
		logger.Info("alert level changed",
			zap.Stringer("sensor", rec.Sensor),
			zap.Stringer("from", lc.From),
			zap.Stringer("to", lc.To),
			zap.Float64("intensity", lc.Intensity))
		return nil
	})
	hooks.On(sensor.EventSuspiciousActivity, 0, "log-suspicious", func(_ context.Context, rec sensor.EventRecord) error {
		logger.Info("suspicious activity",
			zap.Stringer("sensor", rec.Sensor),
			zap.Int64("candidate", rec.Subject))
		return nil
	})
	hooks.On(hook.AnyKind, 100, "debug-all", func(_ context.Context, rec sensor.EventRecord) error {
		logger.Debug("sensor event",
			zap.Stringer("sensor", rec.Sensor),
			zap.String("kind", string(rec.Kind)),
			zap.Int64("subject", rec.Subject))
		return nil
	})
}
