// Package app собирает магазин из конфигурации: хранилища, сервисы,
// gRPC-сервер, HTTP-эндпоинты метрик и health checks, фоновые воркеры.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/eshop/internal/health"
	"github.com/vladislavdragonenkov/eshop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/eshop/internal/metrics"
	"github.com/vladislavdragonenkov/eshop/internal/notify"
	"github.com/vladislavdragonenkov/eshop/internal/service/catalog"
	"github.com/vladislavdragonenkov/eshop/internal/service/feedback"
	grpcsvc "github.com/vladislavdragonenkov/eshop/internal/service/grpc"
	"github.com/vladislavdragonenkov/eshop/internal/service/idempotency"
	"github.com/vladislavdragonenkov/eshop/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/eshop/internal/service/outbox"
	"github.com/vladislavdragonenkov/eshop/internal/service/reservation"
	"github.com/vladislavdragonenkov/eshop/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run поднимает сервис и блокируется до отмены ctx или ошибки gRPC-сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	if err := seedUsers(deps.users, cfg.SeedUsers, logger); err != nil {
		return err
	}

	// Без Kafka сервис продолжает работать: уведомления пишутся в лог,
	// события заказов в outbox не ставятся.
	kafkaProducer, closeKafka := connectKafka(cfg, logger)
	defer closeKafka()

	storeMetrics := metrics.NewStoreMetrics()
	workerMetrics := metrics.NewWorkerMetrics()

	storeService := newStoreService(deps, kafkaProducer, cfg, storeMetrics, logger)

	grpcMetrics := registerGRPCMetrics(logger)
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcMetrics.UnaryServerInterceptor(),
		grpcsvc.RecoveryInterceptor(logger.WithField("component", "grpc-recovery")),
	))
	grpcsvc.RegisterStoreServer(grpcServer, storeService)
	grpcMetrics.InitializeMetrics(grpcServer)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(grpcsvc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// grpcurl и нагрузочный клиент получают схему через reflection.
	reflection.Register(grpcServer)

	healthHandler := healthcheck.NewHandler(version.Current().Version)
	if deps.storageChecker != nil {
		healthHandler.RegisterChecker("storage", deps.storageChecker)
	}
	if deps.redisChecker != nil {
		healthHandler.RegisterChecker("redis", deps.redisChecker)
	}
	if kafkaProducer != nil {
		healthHandler.RegisterChecker("outbox", outboxBacklogChecker(deps.outbox, outboxStaleAfter))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	workersCtx, cancelWorkers := context.WithCancel(ctx)
	workersDone := startWorkers(workersCtx, deps, kafkaProducer, cfg, workerMetrics, logger)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownWorkers(cancelWorkers, workersDone, logger)
		shutdownHTTP(metricsSrv, logger)
		return fmt.Errorf("listen grpc: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(log.Fields{"addr": lis.Addr().String(), "version": version.Current().Version}).Info("grpc server listening")
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping grpc server")
		healthServer.Shutdown()
		stopGRPC(grpcServer, logger)
		shutdownWorkers(cancelWorkers, workersDone, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownWorkers(cancelWorkers, workersDone, logger)
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// newStoreService собирает доменные сервисы поверх выбранных хранилищ.
func newStoreService(
	deps *runtimeDependencies,
	producer *kafka.Producer,
	cfg Config,
	storeMetrics *metrics.StoreMetrics,
	logger *log.Entry,
) *grpcsvc.StoreService {
	var (
		notifier   domain.Notifier = notify.NewLogNotifier(logger.WithField("component", "log-notifier"))
		outboxRepo domain.OutboxRepository
	)
	if producer != nil {
		notifier = kafka.NewNotificationPublisher(producer, cfg.NotificationTopic)
		outboxRepo = deps.outbox
	}

	engine := reservation.NewEngine(deps.goods,
		reservation.WithLogger(logger.WithField("component", "reservation-engine")),
		reservation.WithMetrics(storeMetrics),
	)
	manager := lifecycle.NewManager(lifecycle.Dependencies{
		Orders:   deps.orders,
		Users:    deps.users,
		Engine:   engine,
		Outbox:   outboxRepo,
		Timeline: deps.timeline,
		Notifier: notifier,
	},
		lifecycle.WithLogger(logger.WithField("component", "order-lifecycle")),
		lifecycle.WithMetrics(storeMetrics),
	)
	catalogSvc := catalog.NewService(deps.goods, deps.users,
		catalog.WithLogger(logger.WithField("component", "catalog")),
		catalog.WithReservations(engine),
	)
	feedbackSvc := feedback.NewService(feedback.Dependencies{
		Feedback:    deps.feedback,
		Attachments: deps.attachments,
		Orders:      deps.orders,
		Users:       deps.users,
		Timeline:    deps.timeline,
		Notifier:    notifier,
	},
		feedback.WithLogger(logger.WithField("component", "feedback")),
		feedback.WithMetrics(storeMetrics),
	)

	return grpcsvc.NewStoreService(grpcsvc.Dependencies{
		Engine:      engine,
		Manager:     manager,
		Catalog:     catalogSvc,
		Feedback:    feedbackSvc,
		Users:       deps.users,
		Idempotency: deps.idempotency,
	},
		grpcsvc.WithLogger(logger.WithField("layer", "grpc")),
		grpcsvc.WithIdempotencyTTL(cfg.IdempotencyTTL),
	)
}

// startWorkers запускает cleanup ключей идемпотентности и, при наличии Kafka,
// outbox worker. Канал закрывается после остановки всех воркеров.
func startWorkers(
	ctx context.Context,
	deps *runtimeDependencies,
	producer *kafka.Producer,
	cfg Config,
	workerMetrics *metrics.WorkerMetrics,
	logger *log.Entry,
) <-chan struct{} {
	var wg sync.WaitGroup

	cleanup := idempotency.NewCleanupWorker(deps.idempotency,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup-worker")),
		idempotency.WithMetrics(workerMetrics),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		cleanup.Run(ctx)
	}()

	if producer != nil {
		worker := outbox.NewWorker(deps.outbox, kafka.NewOutboxPublisher(producer, cfg.OrderTopic),
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithMetrics(workerMetrics),
			outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, cfg.DLQTopic)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

func registerGRPCMetrics(logger *log.Entry) *promgrpc.ServerMetrics {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				return existing
			}
		}
		logger.WithError(err).Warn("failed to register grpc metrics")
	}
	return grpcMetrics
}

// startMetricsServer отдаёт /metrics, /healthz, /livez и /readyz.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/healthz", healthHandler)
	r.Get("/livez", healthcheck.LivenessHandler)
	r.Get("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.WithField("addr", addr).Info("metrics and health endpoints listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// stopGRPC ждёт завершения активных вызовов не дольше shutdownTimeout.
func stopGRPC(server *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop timed out, forcing grpc server stop")
		server.Stop()
	}
}

// shutdownWorkers отменяет контекст воркеров и ждёт их остановки.
func shutdownWorkers(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info("background workers stopped")
	case <-time.After(shutdownTimeout):
		logger.Warn("background workers did not stop in time")
	}
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
