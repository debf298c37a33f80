package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"dirsync/internal/directorysync/directory"
	dsmetrics "dirsync/internal/directorysync/metrics"
	"dirsync/internal/directorysync/models"
	"dirsync/internal/directorysync/schedule"
	"dirsync/internal/directorysync/service"
	"dirsync/internal/directorysync/settings"
	"dirsync/internal/directorysync/store/avatar"
	"dirsync/internal/directorysync/store/user"
	"dirsync/internal/platform/config"
	"dirsync/internal/platform/httpserver"
	"dirsync/internal/platform/logger"
	httpmetrics "dirsync/internal/platform/metrics"
	"dirsync/internal/platform/postgres"
	"dirsync/internal/platform/redis"
	audit "dirsync/pkg/platform/audit"
	"dirsync/pkg/platform/audit/publisher"
	auditkafka "dirsync/pkg/platform/audit/store/kafka"
	auditmemory "dirsync/pkg/platform/audit/store/memory"
	auditpostgres "dirsync/pkg/platform/audit/store/postgres"
)

const auditBuffer = 1024

// userStore is what the service and the avatar store need from a user store.
type userStore interface {
	service.UserStore
	avatar.OriginMarker
}

// main wires high-level dependencies and keeps the process lifecycle small.
// Business logic lives in internal/directorysync.
func main() {
	if err := run(); err != nil {
		slog.Error("dirsync exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	envFile := os.Getenv("DIRSYNC_ENV_FILE")
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initial, err := settings.Build(cfg.Sync)
	if err != nil {
		return err
	}
	if initial.FieldMappingErr != nil {
		log.WarnContext(ctx, "directory field map is invalid, user data sync will fail", "error", initial.FieldMappingErr)
	}
	holder := settings.NewHolder(initial)

	syncMetrics := dsmetrics.New(prometheus.DefaultRegisterer)
	reqMetrics := httpmetrics.New(prometheus.DefaultRegisterer)
	checks := map[string]func(context.Context) error{}

	var (
		db      *sql.DB
		users   userStore
		avatars service.AvatarStore
	)
	if cfg.Database.URL != "" {
		db, err = postgres.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.Database.MigrateOnStart {
			if err := postgres.Migrate(cfg.Database.URL); err != nil {
				return err
			}
		}
		pgUsers := user.NewPostgres(db)
		users = pgUsers
		avatars = avatar.NewPostgres(db, pgUsers)
		checks["postgres"] = db.PingContext
	} else {
		log.WarnContext(ctx, "DATABASE_URL not set, using in-memory user store")
		memUsers := user.NewInMemory()
		users = memUsers
		avatars = avatar.NewInMemoryStore(memUsers)
	}

	auditStore, auditReader, closeAudit, err := buildAuditStore(ctx, cfg.Kafka, db, log)
	if err != nil {
		return err
	}
	defer closeAudit()
	pub := publisher.NewPublisher(auditStore, publisher.WithAsyncBuffer(auditBuffer), publisher.WithLogger(log))
	defer pub.Close()

	svc, err := service.New(users,
		service.WithLogger(log),
		service.WithAuditPublisher(pub),
		service.WithMetrics(syncMetrics),
		service.WithAvatarStore(avatars),
	)
	if err != nil {
		return err
	}
	driver, err := service.NewDriver(
		directory.NewClient(cfg.Directory, holder, directory.WithLogger(log)),
		users, svc, holder,
		service.WithDriverLogger(log),
		service.WithDriverMetrics(syncMetrics),
		service.WithDriverAuditPublisher(pub),
	)
	if err != nil {
		return err
	}

	var locker schedule.Locker = schedule.NewLocalLocker()
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = schedule.NewRedisLocker(redisClient.Client)
		checks["redis"] = redisClient.Health
	}
	job := schedule.NewJob(driver, locker,
		schedule.WithJobLogger(log),
		schedule.WithJobMetrics(syncMetrics),
		schedule.WithLockTTL(cfg.Redis.LockTTL),
	)

	scheduler := schedule.NewCronScheduler(log)
	controller := schedule.NewController(ctx, scheduler, job, log)
	apply := func(s *models.Settings) error {
		return controller.Apply(s.Enabled && s.BackgroundSync, s.SyncInterval)
	}
	if err := apply(initial); err != nil {
		return err
	}
	scheduler.Start()

	watchSettings(envFile, holder, apply, log)

	router := newRouter(routerDeps{
		adminToken:  cfg.Server.AdminToken,
		job:         job,
		auditReader: auditReader,
		publisher:   pub,
		metrics:     reqMetrics,
		checks:      checks,
		logger:      log,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "starting dirsync", "addr", cfg.Server.Addr)
		return httpserver.Serve(gctx, srv, cfg.Server.ShutdownTimeout)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		scheduler.Stop(shutdownCtx)
		job.Wait()
		return nil
	})

	err = g.Wait()
	log.Info("dirsync stopped")
	return err
}

// buildAuditStore picks Kafka when brokers are configured, then Postgres, then memory.
// The reader is nil for write-only sinks.
func buildAuditStore(ctx context.Context, cfg config.Kafka, db *sql.DB, log *slog.Logger) (audit.Store, audit.Reader, func(), error) {
	if brokers := cfg.BrokerList(); len(brokers) > 0 {
		store, err := auditkafka.New(brokers, cfg.AuditTopic)
		if err != nil {
			return nil, nil, nil, err
		}
		ensureCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := store.EnsureTopic(ensureCtx, 1, 1); err != nil {
			log.WarnContext(ctx, "failed to ensure audit topic", "topic", cfg.AuditTopic, "error", err)
		}
		return store, nil, store.Close, nil
	}
	if db != nil {
		store := auditpostgres.New(db)
		return store, store, func() {}, nil
	}
	store := auditmemory.NewInMemoryStore()
	return store, store, func() {}, nil
}

// watchSettings rebuilds the settings snapshot and reschedules the background job
// whenever the env file changes.
func watchSettings(envFile string, holder *settings.Holder, apply func(*models.Settings) error, log *slog.Logger) {
	err := config.Watch(envFile, func(cfg *config.Config) {
		next, err := settings.Build(cfg.Sync)
		if err != nil {
			log.Error("ignoring invalid sync settings", "error", err)
			return
		}
		holder.Store(next)
		if err := apply(next); err != nil {
			log.Error("failed to reschedule directory sync", "error", err)
			return
		}
		log.Info("sync settings reloaded", "enabled", next.Enabled, "background_sync", next.BackgroundSync)
	}, func(err error) {
		log.Error("ignoring invalid configuration change", "error", err)
	})
	if err != nil {
		log.Info("configuration file not watched", "error", err)
	}
}
