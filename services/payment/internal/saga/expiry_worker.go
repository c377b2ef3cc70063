package saga

import (
	"context"
	"time"

	"example.com/vehicle-saga/pkg/logger"
	"example.com/vehicle-saga/services/payment/internal/service"
)

// expirySweepInterval — периодичность опроса просроченных платёжных кодов.
const expirySweepInterval = 1 * time.Minute

// ExpiryWorker периодически помечает просроченные pending-коды как expired,
// освобождая клиентов, которые так и не обратились за оплатой по коду.
type ExpiryWorker struct {
	svc service.PaymentService
}

// NewExpiryWorker создаёт sweeper платёжных кодов.
func NewExpiryWorker(svc service.PaymentService) *ExpiryWorker {
	return &ExpiryWorker{svc: svc}
}

// Run запускает Worker. Блокирует выполнение до отмены контекста.
func (w *ExpiryWorker) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().Dur("interval", expirySweepInterval).Msg("Запуск sweeper'а просроченных платёжных кодов")

	ticker := time.NewTicker(expirySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Остановка sweeper'а просроченных платёжных кодов")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	log := logger.FromContext(ctx)

	count, err := w.svc.ExpirePaymentCodes(ctx)
	if err != nil {
		log.Error().Err(err).Msg("ошибка sweep'а просроченных платёжных кодов")
		return
	}
	if count > 0 {
		log.Info().Int("count", count).Msg("просроченные платёжные коды помечены expired")
	}
}
