package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/salesops/internal/health"
	"github.com/vladislavdragonenkov/salesops/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/salesops/internal/service/outbox"
	"github.com/vladislavdragonenkov/salesops/internal/version"
)

// Run поднимает приложение: хранилище по cfg.StorageDriver, доменные сервисы,
// outbox relay (если настроен Kafka) и ops HTTP-сервер с метриками и health
// checks. Блокируется до отмены ctx, затем аккуратно всё останавливает.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	rt, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if rt.closeFn == nil {
			return
		}
		if err := rt.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	// Kafka опционален: без брокеров события остаются в outbox и timeline.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	deps := NewDependencies(rt, kafkaProducer, logger)
	deps.Logger.WithField("storage_driver", cfg.StorageDriver).Info("доменные сервисы инициализированы")

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	workerDone := startOutboxRelay(workerCtx, cfg, rt, kafkaProducer, logger)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if rt.storageChecker != nil {
		healthHandler.RegisterChecker("storage", rt.storageChecker)
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	<-ctx.Done()
	logger.Info("получен сигнал остановки, останавливаем сервисы")

	cancelWorker()
	select {
	case <-workerDone:
	case <-time.After(5 * time.Second):
		logger.Warn("outbox relay не остановился за таймаут")
	}

	shutdownHTTP(metricsSrv, logger)
	return ctx.Err()
}

// startOutboxRelay запускает фонового worker-а, публикующего outbox-события
// в Kafka. Возвращает канал, закрываемый после остановки worker-а.
func startOutboxRelay(ctx context.Context, cfg Config, rt *runtimeDependencies, producer *kafka.Producer, logger *log.Entry) <-chan struct{} {
	done := make(chan struct{})

	if producer == nil {
		close(done)
		logger.Info("outbox relay отключён: брокеры kafka не заданы")
		return done
	}

	publisher := kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents)
	worker := outbox.NewWorker(rt.outboxRepo, publisher,
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithDLQPublisher(kafka.NewDLQPublisher(producer)),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)

	go func() {
		defer close(done)
		worker.Run(ctx)
	}()
	return done
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus
// вместе с health-эндпоинтами.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
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

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
