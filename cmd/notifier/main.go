package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/redis"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/realtime-notifier/internal/api/handlers/notification"
	"github.com/aliskhannn/realtime-notifier/internal/api/router"
	"github.com/aliskhannn/realtime-notifier/internal/api/server"
	"github.com/aliskhannn/realtime-notifier/internal/auth"
	"github.com/aliskhannn/realtime-notifier/internal/config"
	"github.com/aliskhannn/realtime-notifier/internal/dispatch"
	"github.com/aliskhannn/realtime-notifier/internal/jobqueue"
	"github.com/aliskhannn/realtime-notifier/internal/ledger"
	"github.com/aliskhannn/realtime-notifier/internal/metrics"
	"github.com/aliskhannn/realtime-notifier/internal/presence"
	notifmsg "github.com/aliskhannn/realtime-notifier/internal/rabbitmq/handlers/notification"
	"github.com/aliskhannn/realtime-notifier/internal/rabbitmq/queue"
	deliveryrepo "github.com/aliskhannn/realtime-notifier/internal/repository/delivery"
	"github.com/aliskhannn/realtime-notifier/internal/repository/directory"
	notifrepo "github.com/aliskhannn/realtime-notifier/internal/repository/notification"
	notifsvc "github.com/aliskhannn/realtime-notifier/internal/service/notification"
	"github.com/aliskhannn/realtime-notifier/internal/telemetry"
	"github.com/aliskhannn/realtime-notifier/internal/worker"
	"github.com/aliskhannn/realtime-notifier/internal/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()
	cfg := config.Must()
	val := validator.New()

	shutdownTracer, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL(), cfg.RabbitMQ.Retries, cfg.RabbitMQ.Pause)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to open channel")
	}

	q, err := queue.NewNotificationQueue(ch, cfg.Retry)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to create notification queue")
	}

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	rdb := redis.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.Database)
	if err = rdb.Ping(ctx).Err(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	jobRDB := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})

	repo := notifrepo.NewRepository(db)
	dir := directory.NewRepository(db)
	led := ledger.New(deliveryrepo.NewRepository(db))

	registry := presence.NewRegistry(m.SetOnline)

	engine := dispatch.New(registry, led, dir, m, dispatch.Options{
		MaxPushAttempts: cfg.Dispatch.MaxPushAttempts,
		FlushLimit:      cfg.Dispatch.FlushLimit,
	})

	jobs := jobqueue.New(jobRDB, q, jobqueue.Options{
		Prefix:        cfg.Jobs.Prefix,
		MaxAttempts:   cfg.Jobs.MaxAttempts,
		Backoff:       cfg.Jobs.Backoff,
		KeepCompleted: cfg.Jobs.KeepCompleted,
		CompletedAge:  cfg.Jobs.CompletedAge,
		KeepFailed:    cfg.Jobs.KeepFailed,
		FailedAge:     cfg.Jobs.FailedAge,
		PollInterval:  cfg.Jobs.PollInterval,
		StalledAfter:  cfg.Jobs.StalledAfter,
	})

	service := notifsvc.NewService(repo, dir, led, engine, jobs, rdb, registry, cfg.Retry)
	messageHandler := notifmsg.NewHandler(service, q)

	notifier := worker.NewNotifier(q, jobs, messageHandler, m, worker.Options{
		Count:      cfg.Workers.Count,
		RateMax:    cfg.Workers.RateMax,
		RateWindow: cfg.Workers.RateWindow,
	})

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	push := ws.NewServer(registry, verifier, led, engine, m, ws.Options{
		HeartbeatInterval: cfg.WS.HeartbeatInterval,
		MaxPayloadBytes:   cfg.WS.MaxPayload,
		WriteTimeout:      cfg.WS.WriteTimeout,
	})

	go jobs.Run(ctx)
	go push.Run(ctx)

	workerDone := make(chan struct{})
	go func() {
		notifier.Run(ctx)
		close(workerDone)
	}()

	notifHandler := notification.NewHandler(service, registry, val)
	r := router.New(notifHandler, verifier, push.Handler(), reg)
	s := server.New(cfg.Server.HTTPPort, r)

	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.HTTPPort).Msg("http server started")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("shutdown signal received")

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Push channels are hijacked connections, so the HTTP server does not close them.
	push.Shutdown()
	registry.Shutdown()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		zlog.Logger.Warn().Msg("workers did not stop in time")
	}

	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	if err := db.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close master DB")
	}

	for i, s := range db.Slaves {
		if err := s.Close(); err != nil {
			zlog.Logger.Error().Err(err).Int("slave", i).Msg("failed to close slave DB")
		}
	}

	if err := jobRDB.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close redis job client")
	}

	if err := rdb.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close redis cache client")
	}

	if err := ch.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ channel")
	}

	if err := conn.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ connection")
	}

	if err := shutdownTracer(context.Background()); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to flush traces")
	}
}
