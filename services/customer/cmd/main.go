// Customer Service — credit participant саги покупки автомобиля.
// Хранит учётные записи покупателей (баланс + кредитная линия), обрабатывает
// команды резервирования/освобождения средств и отдаёт HTTP API для
// синхронных запросов оркестратора.
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

	"example.com/vehicle-saga/pkg/bus"
	"example.com/vehicle-saga/pkg/config"
	dbpkg "example.com/vehicle-saga/pkg/db"
	"example.com/vehicle-saga/pkg/healthcheck"
	"example.com/vehicle-saga/pkg/logger"
	"example.com/vehicle-saga/pkg/metrics"
	outboxpkg "example.com/vehicle-saga/pkg/outbox"
	"example.com/vehicle-saga/pkg/tracing"
	"example.com/vehicle-saga/services/customer/internal/handler"
	sagahandler "example.com/vehicle-saga/services/customer/internal/saga"
	"example.com/vehicle-saga/services/customer/internal/repository"
	"example.com/vehicle-saga/services/customer/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{Level: cfg.App.LogLevel, Pretty: cfg.App.LogPretty})
	log := logger.With().Str("service", "customer").Logger()
	log.Info().Str("env", cfg.App.Env).Int("port", cfg.App.Port).Msg("Запуск Customer Service")

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "customer",
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

	customerRepo := repository.NewCustomerRepository(db)
	outboxRepo := outboxpkg.NewOutboxRepository(db, "credit")
	customerSvc := service.NewCustomerService(customerRepo)

	brokers := cfg.Bus.EffectiveBrokers()
	var busProducer *bus.Producer
	var outboxWorker *outboxpkg.OutboxWorker
	var consumerGroup *sagahandler.ConsumerGroup

	if len(brokers) > 0 {
		log.Info().Strs("brokers", brokers).Msg("Инициализация шины для credit participant'а")

		busProducer, err = bus.NewProducer(bus.Config{Brokers: brokers})
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания продюсера шины")
		}

		cmdHandler := sagahandler.NewCommandHandler(customerSvc, outboxRepo, cfg.Bus.ProjectID)
		outboxWorker = outboxpkg.NewOutboxWorker(outboxRepo, busProducer, outboxpkg.DefaultWorkerConfig(), "customer")
		consumerGroup = sagahandler.NewConsumerGroup(cmdHandler, bus.Config{Brokers: brokers}, "customer")

		log.Info().Msg("Credit participant полностью инициализирован")
	} else {
		log.Warn().Msg("Шина не настроена — Customer Service работает только как HTTP API")
	}

	readinessCheck := func(ctx context.Context) error {
		return healthcheck.CheckMySQL(ctx, db)
	}

	var metricsServer *metrics.Server
	var metricsWg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), "customer", metrics.WithReadinessCheck(readinessCheck))
		metricsWg.Add(1)
		go func() {
			defer metricsWg.Done()
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	engine := handler.NewRouter(handler.RouterConfig{
		CustomerSvc:    customerSvc,
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

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Паника в HTTP сервере")
			}
		}()
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP сервер credit participant'а запущен")
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

	log.Info().Msg("Customer Service остановлен")
}
