// Command server runs the sieve filter update engine: it wires storage, the
// update pipeline, the HTTP surface and the background loops, then blocks
// until shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"sieve/internal/consent"
	consenthandler "sieve/internal/consent/handler"
	"sieve/internal/filters/fetch"
	filtershandler "sieve/internal/filters/handler"
	enginemetrics "sieve/internal/filters/metrics"
	"sieve/internal/filters/models"
	"sieve/internal/filters/notify"
	"sieve/internal/filters/notify/kafka"
	"sieve/internal/filters/ports"
	"sieve/internal/filters/registry"
	"sieve/internal/filters/schedule"
	"sieve/internal/filters/service/decide"
	"sieve/internal/filters/service/manage"
	"sieve/internal/filters/service/patch"
	"sieve/internal/filters/service/update"
	"sieve/internal/filters/store/content"
	"sieve/internal/filters/store/subscription"
	"sieve/internal/filters/store/version"
	"sieve/internal/platform/badgerdb"
	"sieve/internal/platform/config"
	"sieve/internal/platform/httpserver"
	"sieve/internal/platform/logger"
	"sieve/internal/platform/metrics"
	"sieve/internal/platform/postgres"
	"sieve/internal/platform/redis"
	"sieve/internal/token"
	httptransport "sieve/internal/transport/http"
)

// subscriptionBackend is the storage surface shared by the update pipeline
// and the management API.
type subscriptionBackend interface {
	ports.SubscriptionStore
	ports.InstalledFilters
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading configuration failed", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("sieve exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ===== Storage =====

	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	var (
		versions ports.VersionStore
		subs     subscriptionBackend
	)
	if db != nil {
		defer db.Close()
		pgVersions := version.NewPostgresStore(db)
		pgSubs := subscription.NewPostgresStore(db)
		if err := pgVersions.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure version schema: %w", err)
		}
		if err := pgSubs.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure subscription schema: %w", err)
		}
		versions = pgVersions
		subs = pgSubs
	} else {
		versions = version.NewInMemoryStore()
		subs = subscription.NewInMemoryStore()
		log.Warn("postgres not configured, version and subscription state is volatile")
	}

	bdb, err := badgerdb.Open(cfg.Badger, log)
	if err != nil {
		return fmt.Errorf("open badger: %w", err)
	}
	var contents ports.ContentStore
	if bdb != nil {
		defer bdb.Close()
		contents = content.NewBadgerStore(bdb)
	} else {
		contents = content.NewInMemoryStore()
		log.Warn("badger not configured, filter content is held in memory")
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("open redis: %w", err)
	}
	var consentStore consent.Store
	if redisClient != nil {
		defer redisClient.Close()
		consentStore = consent.NewRedisStore(redisClient.Client)
	} else {
		consentStore = consent.NewInMemoryStore()
		log.Warn("redis not configured, consent state is volatile")
	}

	// ===== Update Pipeline =====

	fetcher := fetch.NewClient(cfg.Fetch, fetch.WithLogger(log))
	resolver := fetch.NewResolver(fetcher, cfg.Fetch.Conditions)

	catalog, err := registry.New(fetcher, cfg.Registry, registry.WithLogger(log))
	if err != nil {
		return fmt.Errorf("build catalog registry: %w", err)
	}

	executor, err := patch.New(versions, contents, subs, catalog, fetcher, resolver,
		patch.WithLogger(log))
	if err != nil {
		return fmt.Errorf("build patch executor: %w", err)
	}

	engine, err := decide.New(versions,
		decide.WithLogger(log),
		decide.WithRecencyWindow(cfg.Update.RecencyWindow))
	if err != nil {
		return fmt.Errorf("build decision engine: %w", err)
	}

	updatePeriod := models.UpdatePeriod(cfg.Update.Period)
	if cfg.Update.UseListExpiry {
		updatePeriod = models.UpdatePeriodListExpiry
	}
	settings := models.UpdateSettings{
		FilteringDisabled: cfg.FilteringDisabled,
		UpdatePeriod:      updatePeriod,
		Optimized:         cfg.Registry.Optimized,
	}
	settingsSource := ports.SettingsFunc(func(context.Context) (models.UpdateSettings, error) {
		return settings, nil
	})

	engineMetrics := enginemetrics.New()

	var notifier notify.Notifier
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, kafka.WithLogger(log))
		if err != nil {
			return fmt.Errorf("build kafka publisher: %w", err)
		}
		defer publisher.Close()
		notifier = publisher
		log.Info("publishing engine updates to kafka", "topic", cfg.Kafka.Topic)
	} else {
		notifier = notify.NewLogNotifier(log)
	}

	debouncer, err := notify.New(notifier, cfg.Update.DebounceWindow,
		notify.WithLogger(log),
		notify.WithMetrics(engineMetrics))
	if err != nil {
		return fmt.Errorf("build update debouncer: %w", err)
	}

	orchestrator, err := update.New(engine, executor, versions, subs, settingsSource, catalog, debouncer,
		update.WithLogger(log),
		update.WithMetrics(engineMetrics),
		update.WithConcurrency(cfg.Update.Concurrency))
	if err != nil {
		return fmt.Errorf("build update orchestrator: %w", err)
	}

	manager, err := manage.New(subs, versions, contents, manage.WithLogger(log))
	if err != nil {
		return fmt.Errorf("build subscription manager: %w", err)
	}

	tracker, err := consent.NewTracker(consentStore, consent.WithLogger(log))
	if err != nil {
		return fmt.Errorf("build consent tracker: %w", err)
	}

	// The scheduler ticks at the update period, or at the check interval when
	// staleness follows per-list TTLs. It is built even when periodic updates
	// are disabled so the handlers always have a kick target; its loop simply
	// never starts in that case.
	tick := cfg.Update.Period
	if updatePeriod.UseListExpiry() || tick <= 0 {
		tick = cfg.Update.CheckInterval
	}
	scheduler, err := schedule.New(orchestrator, tick,
		schedule.WithLogger(log),
		schedule.WithOnStart(cfg.Update.OnStart))
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}

	// ===== HTTP =====

	if cfg.Server.JWTSigningKey == "" {
		log.Warn("jwt signing key not configured, mutating endpoints will reject every token")
	}
	tokens := token.NewService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	validator := token.NewServiceAdapter(tokens)

	router := httptransport.NewRouter(log, metrics.New(),
		filtershandler.New(orchestrator, manager, scheduler, validator, log),
		consenthandler.New(tracker, validator, log))
	srv := httpserver.New(cfg.Server.Addr, router)

	// ===== Run =====

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := debouncer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("debouncer: %w", err)
		}
		return nil
	})

	if updatePeriod.Disabled() {
		log.Info("periodic updates disabled")
	} else {
		g.Go(func() error {
			if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("scheduler: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		log.Info("sieve listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
