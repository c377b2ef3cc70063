// Payment Service — платёжный participant саги покупки автомобиля.
// Генерирует одноразовые платёжные коды, проводит оплату по коду и выполняет
// возврат средств при компенсации; состояние идемпотентности дублируется в
// Redis (быстрая проверка) и в MySQL (источник истины).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/vehicle-saga/pkg/bus"
	"example.com/vehicle-saga/pkg/config"
	dbpkg "example.com/vehicle-saga/pkg/db"
	"example.com/vehicle-saga/pkg/healthcheck"
	"example.com/vehicle-saga/pkg/logger"
	"example.com/vehicle-saga/pkg/metrics"
	outboxpkg "example.com/vehicle-saga/pkg/outbox"
	"example.com/vehicle-saga/pkg/tracing"
	"example.com/vehicle-saga/services/payment/internal/handler"
	"example.com/vehicle-saga/services/payment/internal/repository"
	sagahandler "example.com/vehicle-saga/services/payment/internal/saga"
	"example.com/vehicle-saga/services/payment/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{Level: cfg.App.LogLevel, Pretty: cfg.App.LogPretty})
	log := logger.With().Str("service", "payment").Logger()
	log.Info().Str("env", cfg.App.Env).Int("port", cfg.App.Port).Msg("Запуск Payment Service")

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "payment",
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	db, err := dbpkg.ConnectMySQL(cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}
	log.Info().Msg("Подключение к MySQL установлено")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Redis")
		}
	}()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatal().Err(err).Msg("Ошибка подключения к Redis")
	}
	pingCancel()
	log.Info().Msg("Подключение к Redis установлено")

	codeRepo := repository.NewPaymentCodeRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	outboxRepo := outboxpkg.NewOutboxRepository(db, "payment")
	paymentSvc := service.NewPaymentService(codeRepo, paymentRepo, rdb)
	expiryWorker := sagahandler.NewExpiryWorker(paymentSvc)

	brokers := cfg.Bus.EffectiveBrokers()
	var busProducer *bus.Producer
	var outboxWorker *outboxpkg.OutboxWorker
	var consumerGroup *sagahandler.ConsumerGroup

	if len(brokers) > 0 {
		log.Info().Strs("brokers", brokers).Msg("Инициализация шины для payment participant'а")

		busProducer, err = bus.NewProducer(bus.Config{Brokers: brokers})
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания продюсера шины")
		}

		cmdHandler := sagahandler.NewCommandHandler(paymentSvc, outboxRepo, cfg.Bus.ProjectID)
		outboxWorker = outboxpkg.NewOutboxWorker(outboxRepo, busProducer, outboxpkg.DefaultWorkerConfig(), "payment")
		consumerGroup = sagahandler.NewConsumerGroup(cmdHandler, bus.Config{Brokers: brokers}, "payment")

		log.Info().Msg("Payment participant полностью инициализирован")
	} else {
		log.Warn().Msg("Шина не настроена — Payment Service работает только как HTTP API")
	}

	readinessCheck := healthcheck.Composite(
		func(ctx context.Context) error { return healthcheck.CheckMySQL(ctx, db) },
		func(ctx context.Context) error { return healthcheck.CheckRedis(ctx, rdb) },
	)

	var metricsServer *metrics.Server
	var metricsWg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), "payment", metrics.WithReadinessCheck(readinessCheck))
		metricsWg.Add(1)
		go func() {
			defer metricsWg.Done()
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	engine := handler.NewRouter(handler.RouterConfig{
		ReadinessCheck: readinessCheck,
		Debug:          cfg.App.Debug,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: engine,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var workersWg sync.WaitGroup

	if outboxWorker != nil {
		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в Outbox Worker")
				}
			}()
			log.Info().Msg("Запуск Outbox Worker")
			outboxWorker.Run(ctx)
		}()
	}

	if consumerGroup != nil {
		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в Consumer Group")
				}
			}()
			log.Info().Msg("Запуск Consumer Group")
			if err := consumerGroup.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Ошибка Consumer Group")
			}
		}()
	}

	workersWg.Add(1)
	go func() {
		defer workersWg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Паника в sweeper'е платёжных кодов")
			}
		}()
		expiryWorker.Run(ctx)
	}()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Паника в HTTP сервере")
			}
		}()
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP сервер payment participant'а запущен")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Ошибка HTTP сервера")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	cancel()
	workersWg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка остановки HTTP сервера")
	}

	if consumerGroup != nil {
		if err := consumerGroup.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Consumer Group")
		}
	}
	if busProducer != nil {
		if err := busProducer.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия продюсера шины")
		}
	}

	if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия MySQL")
		}
	}

	metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer metricsShutdownCancel()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
		metricsWg.Wait()
	}

	if shutdownTracing != nil {
		if err := shutdownTracing(metricsShutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Tracing")
		}
	}

	log.Info().Msg("Payment Service остановлен")
}
