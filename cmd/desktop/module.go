package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/kimhsiao/lifetrack/backend/cmd/desktop/handlers"
	"github.com/kimhsiao/lifetrack/backend/internal/bus"
	"github.com/kimhsiao/lifetrack/backend/internal/config"
	"github.com/kimhsiao/lifetrack/backend/internal/db"
	"github.com/kimhsiao/lifetrack/backend/internal/logging"
	"github.com/kimhsiao/lifetrack/backend/internal/services"
	"github.com/kimhsiao/lifetrack/backend/internal/session"
	syncpkg "github.com/kimhsiao/lifetrack/backend/internal/sync"
	"github.com/kimhsiao/lifetrack/backend/internal/sync/conflict"
	"github.com/kimhsiao/lifetrack/backend/internal/sync/queue"
	"github.com/kimhsiao/lifetrack/backend/internal/sync/remote"
	"github.com/kimhsiao/lifetrack/backend/internal/sync/scheduler"
	"github.com/kimhsiao/lifetrack/backend/internal/sync/status"
)

// Module returns the fx module of the desktop daemon, composing all
// providers and lifecycle hooks.
func Module(cfg *config.Config) fx.Option {
	return fx.Module("desktop",
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideLocation,
			provideBus,
			provideDB,
			provideStore,
			db.NewRepositories,
			provideQueue,
			provideTracker,
			provideBackend,
			provideEngine,
			provideScheduler,
			provideRoutineService,
			provideStatsService,
			provideEventHub,
			provideRouter,
			provideServer,
		),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	l, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logging.Init(l)
	return l, nil
}

func provideLocation(cfg *config.Config) (*time.Location, error) {
	return cfg.Location()
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideDB(cfg *config.Config, lc fx.Lifecycle, logger *zap.Logger) (*db.DB, error) {
	d, err := db.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	result, err := d.Migrate()
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", cfg.DBPath()))

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return d.Close() },
	})
	return d, nil
}

func provideStore(cfg *config.Config, d *db.DB, b *bus.Bus, logger *zap.Logger) *db.Store {
	return db.NewStore(d,
		db.WithSession(session.Static(cfg.UserID)),
		db.WithEvents(b),
		db.WithLogger(logger.Named("db")),
	)
}

func provideQueue(cfg *config.Config, d *db.DB, logger *zap.Logger) *queue.Queue {
	return queue.New(d.DB,
		queue.WithBackoff(queue.Backoff{Base: cfg.Sync.RetryBase, Max: cfg.Sync.RetryMax}),
		queue.WithLogger(logger.Named("sync.queue")),
	)
}

func provideTracker(b *bus.Bus) *status.Tracker {
	return status.NewTracker(b)
}

// provideBackend returns the HTTP client of the sync backend. Without a
// configured backend every push reports offline.
func provideBackend(cfg *config.Config, logger *zap.Logger) syncpkg.Backend {
	if !cfg.Sync.Enabled {
		return syncpkg.BackendFunc(func(context.Context, syncpkg.Mutation) error {
			return syncpkg.ErrOffline
		})
	}
	return remote.NewClient(cfg.Sync.BackendURL, cfg.Sync.AuthToken,
		remote.WithLogger(logger.Named("sync.remote")))
}

func provideEngine(cfg *config.Config, q *queue.Queue, backend syncpkg.Backend, tracker *status.Tracker, repos *db.Repositories, b *bus.Bus, logger *zap.Logger) *syncpkg.SyncEngine {
	resolver := conflict.NewResolver(conflict.ResolutionStrategyLastWriteWins,
		conflict.WithLogger(logger.Named("sync.conflict")))
	return syncpkg.NewSyncEngine(q, backend, tracker,
		syncpkg.WithEntryTimeout(cfg.Sync.EntryTimeout),
		syncpkg.WithResolver(resolver),
		syncpkg.WithConflictLog(repos.ConflictLogs),
		syncpkg.WithEvents(b),
		syncpkg.WithLogger(logger.Named("sync")),
	)
}

func provideScheduler(cfg *config.Config, engine *syncpkg.SyncEngine, q *queue.Queue, b *bus.Bus, logger *zap.Logger) *scheduler.Scheduler {
	return scheduler.NewScheduler(engine, q,
		&scheduler.SchedulerConfig{Schedule: cfg.Sync.Schedule},
		scheduler.WithEvents(b),
		scheduler.WithLogger(logger.Named("sync.scheduler")),
	)
}

func provideRoutineService(repos *db.Repositories, logger *zap.Logger) *services.RoutineTrackingService {
	return services.NewRoutineTrackingService(repos.TrackingRecurrings, repos.StockRoutines,
		repos.TrackingResponses, repos.StockProducts, logger.Named("routines"))
}

func provideStatsService(repos *db.Repositories, loc *time.Location) *services.StatsService {
	return services.NewStatsService(repos.TrackingRecurrings, repos.TrackingResponses, loc)
}

func provideEventHub(b *bus.Bus, logger *zap.Logger) *handlers.EventHub {
	return handlers.NewEventHub(b, logger.Named("events"))
}

func provideRouter(events *handlers.EventHub, sched *scheduler.Scheduler, q *queue.Queue, repos *db.Repositories, statsSvc *services.StatsService, routines *services.RoutineTrackingService, loc *time.Location, logger *zap.Logger) http.Handler {
	return handlers.NewRouter(handlers.Handlers{
		Sync:     handlers.NewSyncHandler(sched, q),
		Trackers: handlers.NewTrackerHandler(statsSvc, routines, repos.TrackingRecurrings, loc),
		Trash:    handlers.NewTrashHandler(repos),
		Events:   events,
	}, logger.Named("http"))
}

func provideServer(cfg *config.Config, router http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, srv *http.Server, events *handlers.EventHub, b *bus.Bus, engine *syncpkg.SyncEngine, sched *scheduler.Scheduler, logger *zap.Logger) {
	stopWatch := func() {}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			stopWatch = engine.WatchQueue(b)
			if err := engine.RefreshQueueSize(ctx); err != nil {
				stopWatch()
				return err
			}
			events.Start()

			if cfg.Sync.Enabled {
				if err := sched.Start(context.Background()); err != nil {
					events.Stop()
					stopWatch()
					return err
				}
			} else {
				engine.SetOnline(false)
				logger.Info("sync disabled, mutations stay queued locally")
			}

			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				sched.Stop()
				events.Stop()
				stopWatch()
				return err
			}
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server error", zap.Error(err))
				}
			}()
			logger.Info("lifetrack desktop server started", zap.String("addr", ln.Addr().String()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sched.Stop()
			err := srv.Shutdown(ctx)
			events.Stop()
			stopWatch()
			logger.Info("lifetrack desktop server stopped")
			_ = logger.Sync()
			return err
		},
	})
}
