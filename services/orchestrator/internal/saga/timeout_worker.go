package saga

import (
	"context"
	"time"

	"example.com/vehicle-saga/pkg/logger"
)

// TimeoutWorkerConfig — настройки Timeout Worker оркестратора.
type TimeoutWorkerConfig struct {
	// PollInterval — интервал между сканированиями таблицы saga_states.
	PollInterval time.Duration

	// StepTimeout — максимальное время нахождения саги в нетерминальном
	// статусе без обновления, после которого она считается зависшей.
	StepTimeout time.Duration

	// BatchSize — максимальное количество зависших саг за один цикл.
	BatchSize int
}

// DefaultTimeoutWorkerConfig возвращает конфигурацию по умолчанию.
func DefaultTimeoutWorkerConfig() TimeoutWorkerConfig {
	return TimeoutWorkerConfig{
		PollInterval: 30 * time.Second,
		StepTimeout:  5 * time.Minute,
		BatchSize:    50,
	}
}

// TimeoutWorker периодически сканирует saga_states и эскалирует саги,
// зависшие в нетерминальном статусе дольше StepTimeout, в
// FAILED_REQUIRES_MANUAL_INTERVENTION — автоматическая компенсация по
// таймауту небезопасна без знания, подтвердил ли участник свою сторону
// операции до истечения таймаута (spec.md §7, общий случай "требует
// ручного вмешательства").
type TimeoutWorker struct {
	repo Repository
	cfg  TimeoutWorkerConfig
}

// NewTimeoutWorker создаёт Timeout Worker оркестратора.
func NewTimeoutWorker(repo Repository, cfg TimeoutWorkerConfig) *TimeoutWorker {
	return &TimeoutWorker{repo: repo, cfg: cfg}
}

// Run запускает воркер, блокируясь до отмены ctx.
func (w *TimeoutWorker) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().
		Dur("poll_interval", w.cfg.PollInterval).
		Dur("step_timeout", w.cfg.StepTimeout).
		Int("batch_size", w.cfg.BatchSize).
		Msg("Запуск Timeout Worker саги покупки")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Остановка Timeout Worker саги покупки")
			return
		case <-ticker.C:
			w.processStuckSagas(ctx)
		}
	}
}

func (w *TimeoutWorker) processStuckSagas(ctx context.Context) {
	log := logger.FromContext(ctx)

	stuckSince := time.Now().Add(-w.cfg.StepTimeout)
	sagas, err := w.repo.GetStuckInProgress(ctx, stuckSince, w.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Ошибка поиска зависших саг")
		return
	}
	if len(sagas) == 0 {
		return
	}

	log.Warn().Int("count", len(sagas)).Msg("Обнаружены зависшие саги, эскалация")

	for _, s := range sagas {
		select {
		case <-ctx.Done():
			return
		default:
		}

		log.Warn().
			Str("transaction_id", s.TransactionID).
			Str("status", string(s.Status)).
			Str("step", string(s.CurrentStep)).
			Time("updated_at", s.UpdatedAt).
			Msg("Эскалация зависшей саги по таймауту шага")

		newState, _, terr := Transition(*s, Event{
			Kind:   EvtStepTimeout,
			Reason: "таймаут ожидания ответа участника",
		}, time.Now())
		if terr != nil {
			log.Error().Err(terr).Str("transaction_id", s.TransactionID).Msg("Ошибка перехода при эскалации по таймауту")
			continue
		}

		if err := w.repo.UpdateWithCommands(ctx, &newState, nil); err != nil {
			log.Error().Err(err).Str("transaction_id", s.TransactionID).Msg("Ошибка сохранения эскалированной саги")
		}
	}
}
