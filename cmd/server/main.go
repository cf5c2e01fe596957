package main

import (
	"context"
	"log"
	"time"

	goRedis "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/ledger/api/handler"
	"github.com/fastygo/ledger/internal/config"
	"github.com/fastygo/ledger/internal/infrastructure/buffer"
	"github.com/fastygo/ledger/internal/infrastructure/monitor"
	redisInfra "github.com/fastygo/ledger/internal/infrastructure/redis"
	"github.com/fastygo/ledger/internal/metrics"
	"github.com/fastygo/ledger/internal/middleware"
	"github.com/fastygo/ledger/internal/router"
	"github.com/fastygo/ledger/internal/services"
	"github.com/fastygo/ledger/internal/services/lifecycle"
	"github.com/fastygo/ledger/pkg/httpcontext"
	"github.com/fastygo/ledger/pkg/logger"
	redisRepo "github.com/fastygo/ledger/repository/redis"
	"github.com/fastygo/ledger/usecase"
	accountUC "github.com/fastygo/ledger/usecase/account"
	"github.com/fastygo/ledger/usecase/projection"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:       cfg.Logger.Level,
		Encoding:    cfg.Logger.Encoding,
		Service:     cfg.AppName,
		Development: cfg.Environment == "development",
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx, cancel := manager.Listen(context.Background())
	defer cancel()

	store, err := openStorage(appCtx, cfg, zapLogger, manager)
	if err != nil {
		zapLogger.Fatal("storage initialization failed", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}

	var redisClient *goRedis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisInfra.NewClient(appCtx, cfg.Redis, cfg.AppName)
		if err != nil {
			zapLogger.Fatal("redis connection failed", zap.Error(err))
		}
		manager.Register("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
	}

	bufferStore, err := buffer.Open(cfg.Buffer.Path, "catchup")
	if err != nil {
		zapLogger.Fatal("failed to open catch-up store", zap.Error(err))
	}
	manager.Register("buffer", func(ctx context.Context) error {
		return bufferStore.Close()
	})

	checks := []monitor.Check{
		{Name: cfg.Storage.Driver, Required: true, Ping: store.ping},
		{Name: "buffer", Required: true, Ping: func(context.Context) error { return bufferStore.Ping() }},
	}
	if redisClient != nil {
		checks = append(checks, monitor.Check{
			Name: "redis",
			Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	mon := monitor.New(checks, bufferStore, 10*time.Second, zapLogger)
	manager.Add(lifecycle.Component{
		Name:  "monitor",
		Start: func(context.Context) error { mon.Start(); return nil },
		Stop:  func(context.Context) error { mon.Stop(); return nil },
	})

	dispatcher := usecase.NewDispatcher(store.events, zapLogger)
	dispatcher.Register(projection.NewReadModel(store.readModel, zapLogger))
	if redisClient != nil {
		dispatcher.Register(redisRepo.NewEventFeed(redisClient, cfg.Redis.StreamPrefix))
	}
	replayer := projection.NewReplayer(store.events, store.readModel, dispatcher, zapLogger)

	catchUp := services.NewCatchUpProcessor(
		bufferStore,
		mon,
		replayer,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  cfg.Buffer.BatchSize,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		},
	)
	manager.Add(lifecycle.Component{
		Name:  "catchup_processor",
		Start: func(context.Context) error { catchUp.Start(); return nil },
		Stop:  catchUp.Stop,
	})

	validator, err := accountUC.NewValidator(cfg.Commands.Validator)
	if err != nil {
		zapLogger.Fatal("invalid command validator", zap.Error(err))
	}

	opts := []accountUC.Option{accountUC.WithCatchUp(services.NewCatchUpBridge(catchUp))}
	var metricsHandler fasthttp.RequestHandler
	if cfg.Metrics.Enabled {
		collector := metrics.New(catchUp.Size)
		catchUp.SetFailureRecorder(collector)
		opts = append(opts, accountUC.WithMetrics(collector))
		metricsHandler = collector.Handler()
	}

	commands := accountUC.New(
		store.events,
		accountUC.NewEngine(validator),
		dispatcher,
		zapLogger,
		accountUC.ProcessorConfig{
			MaxAttempts:    cfg.Commands.MaxAttempts,
			InitialBackoff: cfg.Commands.InitialBackoff,
			MaxBackoff:     cfg.Commands.MaxBackoff,
		},
		opts...,
	)
	queries := accountUC.NewQueries(store.readModel, store.events, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Account: apiHandler.NewAccountHandler(commands, queries, ctxAdapter, zapLogger),
		Admin:   apiHandler.NewAdminHandler(replayer, ctxAdapter, zapLogger),
		Health:  apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
		Metrics: metricsHandler,
	}
	if cfg.JWT.Secret == "" {
		zapLogger.Warn("JWT_SECRET is not set, admin routes are unprotected")
	}
	r := router.New(handlers, middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer, zapLogger))

	server := &fasthttp.Server{
		Handler:            r.Handler,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		Concurrency:        cfg.HTTP.MaxConn,
		Name:               cfg.AppName,
		MaxRequestBodySize: 64 * 1024,
	}
	manager.Add(lifecycle.Component{
		Name: "http_server",
		Start: func(context.Context) error {
			go func() {
				zapLogger.Info("server started", zap.String("address", cfg.Address()))
				if err := server.ListenAndServe(cfg.Address()); err != nil {
					zapLogger.Error("server crashed", zap.Error(err))
					cancel()
				}
			}()
			return nil
		},
		Stop: func(ctx context.Context) error {
			return server.ShutdownWithContext(ctx)
		},
	})

	if err := manager.Start(appCtx); err != nil {
		zapLogger.Fatal("startup failed", zap.Error(err))
	}

	// Projections may have missed events while the process was down.
	go func() {
		report, err := replayer.CatchUpAll(appCtx)
		fields := []zap.Field{
			zap.Int("accounts", report.Accounts),
			zap.Int("caught_up", report.CaughtUp),
			zap.Int("failed", len(report.Failed)),
		}
		if err != nil {
			zapLogger.Error("startup catch-up incomplete", append(fields, zap.Error(err))...)
			for _, id := range report.Failed {
				if err := catchUp.Schedule(appCtx, id, nil); err != nil {
					zapLogger.Error("failed to schedule catch-up", zap.String("account_id", id), zap.Error(err))
				}
			}
			return
		}
		zapLogger.Info("startup catch-up completed", fields...)
	}()

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
