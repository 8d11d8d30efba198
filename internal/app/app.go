package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/retail/internal/health"
	"github.com/vladislavdragonenkov/retail/internal/service/idempotency"
	"github.com/vladislavdragonenkov/retail/internal/service/outbox"
	"github.com/vladislavdragonenkov/retail/internal/transport/web"
	"github.com/vladislavdragonenkov/retail/internal/version"
)

// Run поднимает веб-интерфейс с JSON API, сервер метрик и health-проб,
// gRPC health, outbox worker и очистку ключей идемпотентности. Блокируется до отмены ctx или ошибки сервера.
func Run(ctx context.Context, cfg Config) error {
	baseLogger, err := NewLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	logger := log.NewEntry(baseLogger).WithField("component", "app")
	if baseLogger.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	deps := NewDependencies(store, prometheus.DefaultRegisterer, logger).WithIdempotencyTTL(cfg.IdempotencyTTL)

	kafkaDeps, err := initKafka(cfg, logger)
	if err != nil {
		logger.WithError(err).Warn("outbox publishing disabled")
	}
	defer closeKafka(kafkaDeps.producer, logger)

	listeners, err := listenAll(cfg)
	if err != nil {
		return err
	}

	healthHandler := newHealthHandler(store, cfg.OutboxMaxPending)
	grpcServer, healthServer := newGRPCServer(logger)

	errCh := make(chan error, 3)
	httpSrv := serveHTTP("http", listeners.http, web.NewRouter(deps.WebServices(), logger.WithField("component", "web")), logger, errCh)
	metricsSrv := serveHTTP("metrics", listeners.metrics, metricsHandler(prometheus.DefaultGatherer, healthHandler), logger, errCh)
	go func() {
		logger.Infof("gRPC сервер слушает %s", listeners.grpc.Addr())
		if err := grpcServer.Serve(listeners.grpc); err != nil {
			errCh <- err
		}
	}()

	worker := outbox.NewWorker(store.Repositories().Outbox, kafkaDeps.publisher, outbox.Config{
		PollInterval:   cfg.OutboxPollInterval,
		BatchSize:      cfg.OutboxBatchSize,
		MaxAttempts:    cfg.OutboxMaxAttempts,
		RetryBaseDelay: cfg.OutboxRetryDelay,
	},
		outbox.WithLogger(logger.WithField("component", "outbox")),
		outbox.WithDeadLetter(kafkaDeps.deadLetter),
		outbox.WithRegisterer(prometheus.DefaultRegisterer),
	)
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(workerCtx)
	}()

	cleanup := idempotency.NewCleanupWorker(store.Repositories().Idempotency,
		idempotency.WithLogger(logger.WithField("component", "idempotency")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatch),
		idempotency.WithRegisterer(prometheus.DefaultRegisterer),
	)
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	cleanupDone := make(chan struct{})
	go func() {
		defer close(cleanupDone)
		cleanup.Run(cleanupCtx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		runErr = ctx.Err()
	case err := <-errCh:
		if !errors.Is(err, grpc.ErrServerStopped) {
			runErr = err
		}
	}

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownHTTP(httpSrv, logger)
	stopGRPC(grpcServer, logger)
	shutdownWorker("outbox", cancelWorker, workerDone, logger)
	shutdownWorker("idempotency cleanup", cancelCleanup, cleanupDone, logger)
	shutdownHTTP(metricsSrv, logger)
	return runErr
}

type runtimeListeners struct {
	http    net.Listener
	metrics net.Listener
	grpc    net.Listener
}

// listenAll занимает все адреса заранее, чтобы ошибка порта вернулась из Run
// до запуска горутин.
func listenAll(cfg Config) (runtimeListeners, error) {
	var (
		ls     runtimeListeners
		opened []net.Listener
	)
	for _, item := range []struct {
		addr string
		dst  *net.Listener
	}{
		{cfg.HTTPAddr, &ls.http},
		{cfg.MetricsAddr, &ls.metrics},
		{cfg.GRPCAddr, &ls.grpc},
	} {
		lis, err := net.Listen("tcp", item.addr)
		if err != nil {
			for _, l := range opened {
				_ = l.Close()
			}
			return runtimeListeners{}, fmt.Errorf("listen %s: %w", item.addr, err)
		}
		opened = append(opened, lis)
		*item.dst = lis
	}
	return ls, nil
}

// newHealthHandler проверяет доступность хранилища и размер outbox backlog.
func newHealthHandler(store domain.Store, maxPending int) *healthcheck.Handler {
	handler := healthcheck.NewHandler(version.GetVersion())
	handler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", store.Ping))
	handler.RegisterChecker("outbox", healthcheck.NewThresholdChecker("outbox", maxPending, func(ctx context.Context) (int, error) {
		stats, err := store.Repositories().Outbox.Stats(ctx)
		return stats.PendingCount, err
	}))
	return handler
}

// newGRPCServer создаёт gRPC сервер только с health и reflection.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)
	return grpcServer, healthServer
}

func stopGRPC(srv *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}

// shutdownWorker отменяет фоновый worker и ждёт выхода из Run.
func shutdownWorker(name string, cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		logger.WithField("worker", name).Warn("worker did not stop in time")
	}
}

func closeStore(store domain.Store, logger *log.Entry) {
	if err := store.Close(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}
