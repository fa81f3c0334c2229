package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/sprig/config"
	"github.com/Ramsey-B/sprig/internal/repositories/clip"
	"github.com/Ramsey-B/sprig/internal/repositories/moderationflag"
	"github.com/Ramsey-B/sprig/internal/repositories/reel"
	"github.com/Ramsey-B/sprig/internal/repositories/remixedge"
	"github.com/Ramsey-B/sprig/internal/repositories/shareevent"
	"github.com/Ramsey-B/sprig/internal/repositories/template"
	"github.com/Ramsey-B/sprig/internal/repositories/track"
	"github.com/Ramsey-B/sprig/pkg/database"
	"github.com/Ramsey-B/sprig/pkg/events"
	"github.com/Ramsey-B/sprig/pkg/graph"
	"github.com/Ramsey-B/sprig/pkg/health"
	"github.com/Ramsey-B/sprig/pkg/kafka"
	"github.com/Ramsey-B/sprig/pkg/lifecycle"
	"github.com/Ramsey-B/sprig/pkg/lineage"
	"github.com/Ramsey-B/sprig/pkg/middleware"
	"github.com/Ramsey-B/sprig/pkg/moderation"
	"github.com/Ramsey-B/sprig/pkg/redis"
	"github.com/Ramsey-B/sprig/pkg/routes/admin"
	"github.com/Ramsey-B/sprig/pkg/routes/analytics"
	"github.com/Ramsey-B/sprig/pkg/routes/feed"
	"github.com/Ramsey-B/sprig/pkg/routes/installs"
	"github.com/Ramsey-B/sprig/pkg/routes/moderationroutes"
	"github.com/Ramsey-B/sprig/pkg/routes/reels"
	"github.com/Ramsey-B/sprig/pkg/routes/render"
	"github.com/Ramsey-B/sprig/pkg/routes/templates"
	"github.com/Ramsey-B/sprig/pkg/routes/tracks"
	"github.com/Ramsey-B/sprig/pkg/tracing"
	"github.com/Ramsey-B/sprig/pkg/validation"
	"github.com/Ramsey-B/sprig/pkg/virality"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	if cfg.PrettyLogs {
		zapLogger, _ = zap.NewDevelopment()
	} else {
		zapLogger, _ = zap.NewProduction()
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func run(cfg *config.Config, logger ectologger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	tracing.SetTracer(otel.Tracer(cfg.AppName))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	db, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := runMigrations(cfg, logger, db); err != nil {
		return err
	}

	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	var graphClient *graph.Client
	if cfg.GraphDBEnabled {
		graphClient, err = graph.NewClient(graph.Config{
			Host:     cfg.GraphDBHost,
			Port:     cfg.GraphDBPort,
			Username: cfg.GraphDBUser,
			Password: cfg.GraphDBPassword,
		}, logger)
		if err != nil {
			// the graph is a rebuildable index; start without it
			logger.WithError(err).Warn("Graph database unavailable, lineage falls back to PostgreSQL")
			graphClient = nil
		} else {
			defer func() { _ = graphClient.Close(context.Background()) }()
		}
	}

	reelEvents := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaReelEventsTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer reelEvents.Close()

	renderJobs := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaRenderJobsTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer renderJobs.Close()

	emitter := events.NewEmitter(reelEvents, renderJobs, logger)
	runner := database.NewRunner(db, logger)
	locker := redis.NewLocker(redisClient, "sprig:lock:")

	reelRepo := reel.NewRepository(db, logger)
	clipRepo := clip.NewRepository(db, logger)
	templateRepo := template.NewRepository(db, logger)
	trackRepo := track.NewRepository(db, logger)
	edgeRepo := remixedge.NewRepository(db, logger)
	flagRepo := moderationflag.NewRepository(db, logger)
	shareRepo := shareevent.NewRepository(db, logger)

	thresholds, err := cfg.HighRiskThresholds()
	if err != nil {
		return fmt.Errorf("invalid moderation thresholds: %w", err)
	}
	gate := moderation.NewGatePolicy(thresholds)

	var projection lifecycle.Projection
	var graphStore lineage.GraphStore
	if graphClient != nil {
		graphLineage := graph.NewLineageService(graphClient, logger)
		projection = graphLineage
		graphStore = graphLineage
	}

	lifecycleSvc := lifecycle.NewService(
		reelRepo, clipRepo, templateRepo, trackRepo, edgeRepo, flagRepo,
		gate, projection, emitter, locker, runner,
		lifecycle.Config{
			LockTTL:                cfg.ReelLockTTL,
			LockWait:               cfg.ReelLockWait,
			LicenseRecheckAtRender: cfg.LicenseRecheckAtRender,
			FeedDefaultLimit:       cfg.FeedDefaultLimit,
			FeedMaxLimit:           cfg.FeedMaxLimit,
		},
		logger,
	)
	moderationSvc := moderation.NewService(flagRepo, reelRepo, lifecycleSvc, gate, emitter, logger)
	viralitySvc := virality.NewService(shareRepo, reelRepo, emitter, runner, logger)
	lineageSvc := lineage.NewService(edgeRepo, reelRepo, graphStore, logger)

	if cfg.LineageRepairOnStartup && graphStore != nil {
		if _, err := lineageSvc.Repair(ctx); err != nil {
			logger.WithError(err).Warn("Startup lineage repair failed")
		}
	}

	checker := health.NewChecker(db, redisClient, graphClient, version)

	e := buildServer(cfg, logger, checker)

	api := e.Group("/api/v1")
	reels.NewHandler(lifecycleSvc, viralitySvc, lineageSvc).Register(api.Group("/reels"))
	feed.NewHandler(lifecycleSvc).Register(api.Group("/feed"))
	templates.NewHandler(templateRepo).Register(api.Group("/templates"))
	tracks.NewHandler(trackRepo).Register(api.Group("/tracks"))
	installs.NewHandler(viralitySvc).Register(api.Group("/installs"))
	analytics.NewHandler(viralitySvc, cfg.KFactorDefaultWindow).Register(api.Group("/analytics"))

	internal := e.Group("/internal")
	moderationroutes.NewHandler(moderationSvc).Register(internal.Group("/moderation"))
	render.NewHandler(lifecycleSvc).Register(internal.Group("/render"))
	admin.NewHandler(lineageSvc, viralitySvc).Register(internal.Group("/admin"))

	g, ctx := errgroup.WithContext(ctx)

	if cfg.KafkaModerationConsumerOn {
		listener := moderation.NewVerdictListener(moderationSvc, logger)
		consumer := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaModerationTopic,
			ConsumerGroup: cfg.KafkaModerationGroup,
		}, logger, listener.Handle)

		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start verdict consumer: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			return consumer.Stop()
		})
	}

	g.Go(func() error {
		checker.SetReady(true)
		logger.WithFields(map[string]any{"port": cfg.Port, "version": version}).Info("Starting HTTP server")
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		checker.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func connectDatabase(ctx context.Context, cfg *config.Config, logger ectologger.Logger) (database.DB, error) {
	attempts := cfg.StartupMaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var db database.DB
	var err error
	for i := 1; i <= attempts; i++ {
		db, err = database.Connect(ctx, database.Config{
			Host:            cfg.DatabaseHost,
			Port:            cfg.DatabasePort,
			User:            cfg.DatabaseUserName,
			Password:        cfg.DatabasePassword,
			Name:            cfg.DatabaseName,
			SSLMode:         cfg.DatabaseSSLMode,
			MaxOpenConns:    cfg.DatabaseMaxOpenConns,
			MaxIdleConns:    cfg.DatabaseMaxIdleConns,
			ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
		}, logger)
		if err == nil {
			return db, nil
		}
		logger.WithError(err).Warnf("Database connection attempt %d/%d failed", i, attempts)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i) * time.Second):
		}
	}
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
}

func runMigrations(cfg *config.Config, logger ectologger.Logger, db database.DB) error {
	instance, ok := db.(*database.Instance)
	if !ok {
		return fmt.Errorf("unexpected database implementation %T", db)
	}

	driver, err := migratepg.WithInstance(instance.DB.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	ms := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	return ms.Migrate(cfg.DatabaseName, driver)
}

func buildServer(cfg *config.Config, logger ectologger.Logger, checker *health.Checker) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	e.GET("/health", checker.HealthHandler)
	e.GET("/health/live", checker.LivenessHandler)
	e.GET("/health/ready", checker.ReadinessHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}
