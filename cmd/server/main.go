package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	archivehandler "entrypass/internal/archive/handler"
	"entrypass/internal/archive/assets"
	"entrypass/internal/archive/crypto"
	archivemodels "entrypass/internal/archive/models"
	archive "entrypass/internal/archive/service"
	archivestore "entrypass/internal/archive/store"
	"entrypass/internal/archive/worker"
	"entrypass/internal/destination"
	entryhandler "entrypass/internal/entry/handler"
	"entrypass/internal/entry/models"
	entryservice "entrypass/internal/entry/service"
	entrystore "entrypass/internal/entry/store"
	"entrypass/internal/notification"
	"entrypass/internal/orchestrator"
	"entrypass/internal/platform/config"
	"entrypass/internal/platform/httpserver"
	"entrypass/internal/platform/logger"
	"entrypass/internal/platform/metrics"
	"entrypass/internal/platform/redis"
	"entrypass/internal/ratelimit"
	"entrypass/internal/submission/browser"
	"entrypass/internal/submission/failure"
	submissionhandler "entrypass/internal/submission/handler"
	"entrypass/internal/submission/handshake"
	"entrypass/internal/submission/strategy"
	"entrypass/internal/submission/validation"
	"entrypass/internal/traveler"
	httptransport "entrypass/internal/transport/http"
	"entrypass/pkg/platform/audit"
	auditkafka "entrypass/pkg/platform/audit/store/kafka"
	auditmemory "entrypass/pkg/platform/audit/store/memory"
	"entrypass/pkg/platform/audit/publisher"
	"entrypass/pkg/platform/clock"
	"entrypass/pkg/platform/kv"
	"entrypass/pkg/platform/middleware/auth"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	clk := clock.Real()

	checks := make(map[string]func(context.Context) error)

	store, closeKV, err := buildKV(ctx, cfg.Redis, checks, log)
	if err != nil {
		return err
	}
	defer closeKV()

	auditor, closeAudit, err := buildAudit(ctx, cfg.Kafka, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	destinations := destination.Default()
	if cfg.DestinationsFile != "" {
		if destinations, err = destination.Load(cfg.DestinationsFile); err != nil {
			return fmt.Errorf("load destinations: %w", err)
		}
	}

	entries := entryservice.New(entrystore.New(store),
		entryservice.WithLogger(log),
		entryservice.WithAuditPublisher(auditor),
		entryservice.WithMarkerTTL(cfg.Submission.MarkerTTL),
	)
	travelers := traveler.NewStore(store)

	archiver, closeArchive, err := buildArchiver(ctx, cfg, entries, travelers, auditor, m, checks, log)
	if err != nil {
		return err
	}
	defer closeArchive()

	classifier := failure.NewClassifier(failure.WithClock(clk), failure.WithLogger(log))
	validator := validation.New(validation.WithClock(clk))

	orch, err := buildOrchestrator(cfg.Submission, orchestrator.Deps{
		Entries:      entries,
		Travelers:    travelers,
		Archiver:     archiver,
		Destinations: destinations,
		Validator:    validator,
		Classifier:   classifier,
		Notifier:     notification.NewLogNotifier(notification.WithLogger(log)),
	}, m, log)
	if err != nil {
		return err
	}

	var entryOpts []entryhandler.Option
	var limiter *ratelimit.SlidingWindow
	if cfg.Submission.RateLimit > 0 {
		limiter = ratelimit.NewSlidingWindow(cfg.Submission.RateLimit, cfg.Submission.RateWindow, ratelimit.WithClock(clk))
		entryOpts = append(entryOpts, entryhandler.WithSubmitLimit(ratelimit.PerUser(limiter, log)))
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Entries:     entryhandler.New(entries, orch, log, entryOpts...),
		Archive:     archivehandler.New(archiver, log),
		Diagnostics: submissionhandler.New(classifier, log),
		Validator:   auth.NewHS256Validator(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer),
		AdminToken:  cfg.Server.AdminToken,
		Gatherer:    reg,
		Checks:      checks,
		Logger:      log,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	cleaner := worker.New(archiver, archivemodels.RetentionPolicy{
		MaxAgeDays:    cfg.Retention.MaxAgeDays,
		MaxCount:      cfg.Retention.MaxCount,
		KeepCompleted: cfg.Retention.KeepCompleted,
	}, cfg.Retention.Interval, worker.WithClock(clk), worker.WithLogger(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting entrypass", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := cleaner.Start(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if limiter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.Submission.RateWindow)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					limiter.Sweep()
				}
			}
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func buildKV(ctx context.Context, cfg config.RedisConfig, checks map[string]func(context.Context) error, log *slog.Logger) (kv.Store, func(), error) {
	client, err := redis.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		log.Warn("no redis configured, entry state is kept in memory")
		return kv.NewInMemoryStore(), func() {}, nil
	}
	checks["redis"] = client.Health
	return kv.NewRedisStore(client.Client, kv.WithKeyPrefix(cfg.KeyPrefix)), func() { _ = client.Close() }, nil
}

func buildAudit(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger) (*publisher.Publisher, func(), error) {
	var sink audit.Store
	closeSink := func() {}
	if len(cfg.Brokers) == 0 {
		sink = auditmemory.NewInMemoryStore()
	} else {
		k, err := auditkafka.New(cfg.Brokers, cfg.Topic)
		if err != nil {
			return nil, nil, fmt.Errorf("audit kafka: %w", err)
		}
		if err := k.EnsureTopic(ctx, 1, 1); err != nil {
			log.Warn("could not ensure audit topic", "topic", cfg.Topic, "error", err)
		}
		sink = k
		closeSink = k.Close
	}
	p := publisher.NewPublisher(sink, publisher.WithAsyncBuffer(256), publisher.WithLogger(log))
	return p, func() {
		p.Close()
		closeSink()
	}, nil
}

func buildArchiver(
	ctx context.Context,
	cfg config.Config,
	entries *entryservice.Service,
	travelers *traveler.Store,
	auditor *publisher.Publisher,
	m *metrics.Metrics,
	checks map[string]func(context.Context) error,
	log *slog.Logger,
) (*archive.Archiver, func(), error) {
	var (
		records archive.Store
		db      *sql.DB
	)
	if cfg.Postgres.DSN == "" {
		records = archivestore.NewInMemoryStore()
	} else {
		var err error
		if db, err = archivestore.Open(cfg.Postgres.DSN); err != nil {
			return nil, nil, err
		}
		if err := archivestore.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		records = archivestore.NewPostgres(db)
		checks["postgres"] = db.PingContext
	}
	closeDB := func() {
		if db != nil {
			_ = db.Close()
		}
	}

	var files assets.Store
	switch cfg.Archive.Backend {
	case "s3":
		client, err := assets.NewS3Client(ctx, assets.S3Options{Region: cfg.Archive.S3Region, Endpoint: cfg.Archive.S3Endpoint})
		if err != nil {
			closeDB()
			return nil, nil, err
		}
		files = assets.NewS3Store(client, cfg.Archive.S3Bucket, cfg.Archive.S3Prefix)
	default:
		fsStore, err := assets.NewFSStore(cfg.Archive.Root)
		if err != nil {
			closeDB()
			return nil, nil, err
		}
		files = fsStore
	}

	opts := []archive.Option{
		archive.WithLogger(log),
		archive.WithAuditPublisher(auditor),
		archive.WithMetrics(m),
		archive.WithOrphanGrace(cfg.Retention.OrphanGrace),
	}
	enc, err := crypto.FromConfig(cfg.Encryption.Mode, cfg.Encryption.AgeRecipients, cfg.Encryption.XChaChaKey)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	if enc != nil {
		opts = append(opts, archive.WithEncryptor(enc))
	}
	return archive.New(records, files, archive.NewStoreSource(entries, travelers), opts...), closeDB, nil
}

func buildOrchestrator(cfg config.SubmissionConfig, deps orchestrator.Deps, m *metrics.Metrics, log *slog.Logger) (*orchestrator.Orchestrator, error) {
	defaultMethod, err := models.ParseSubmissionMethod(cfg.DefaultMethod)
	if err != nil {
		return nil, err
	}
	var fallbackMethod models.SubmissionMethod
	if cfg.FallbackMethod != "" {
		if fallbackMethod, err = models.ParseSubmissionMethod(cfg.FallbackMethod); err != nil {
			return nil, err
		}
	}

	opts := []strategy.Option{strategy.WithLogger(log), strategy.WithMetrics(m)}
	factory := browser.NewRemote(cfg.BrowserEndpoint, browser.WithLogger(log))
	direct := strategy.NewDirectAPI(strategy.NewHTTPPortalClient(cfg.PortalTimeout, log), deps.Validator, deps.Classifier, opts...)
	controller := handshake.New(factory, deps.Classifier, handshake.Config{
		PollInterval:    cfg.HandshakePollInterval,
		MaxPolls:        cfg.HandshakeMaxPolls,
		MinTokenLength:  cfg.MinTokenLength,
		DetectionScript: handshake.DefaultDetectionScript,
	}, handshake.WithLogger(log), handshake.WithMetrics(m), handshake.WithFallback(string(fallbackMethod)))
	deps.Strategies = []strategy.Strategy{
		strategy.NewHybrid(direct, controller),
		strategy.NewFormFill(factory, strategy.FormFillConfig{
			FieldAttempts: cfg.FieldFillAttempts,
			FieldBackoff:  cfg.FieldFillBackoff,
		}, deps.Validator, deps.Classifier, opts...),
		direct,
	}

	return orchestrator.New(deps, orchestrator.Config{
		DefaultMethod:   defaultMethod,
		FallbackMethod:  fallbackMethod,
		AutoFallback:    cfg.AutoFallback,
		MaxRetries:      cfg.MaxRetries,
		ArchiveOnSubmit: cfg.ArchiveOnSubmit,
		BreakerFailures: cfg.BreakerFailures,
		BreakerCooldown: cfg.BreakerCooldown,
	}, orchestrator.WithLogger(log), orchestrator.WithMetrics(m)), nil
}
