// Package saga содержит обработчик команд саги для credit participant'а:
// потребляет commands.credit.reserve/release и публикует события через outbox.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/vehicle-saga/pkg/bus"
	"example.com/vehicle-saga/pkg/envelope"
	"example.com/vehicle-saga/pkg/logger"
	"example.com/vehicle-saga/pkg/outbox"
	"example.com/vehicle-saga/services/customer/internal/domain"
	"example.com/vehicle-saga/services/customer/internal/service"

	"github.com/google/uuid"
)

// CommandHandler разбирает команды шины и вызывает CustomerService,
// публикуя итоговое событие через Transactional Outbox.
type CommandHandler struct {
	svc        *service.CustomerService
	outboxRepo outbox.OutboxRepository
	projectID  string
}

// NewCommandHandler создаёт обработчик команд credit participant'а.
func NewCommandHandler(svc *service.CustomerService, outboxRepo outbox.OutboxRepository, projectID string) *CommandHandler {
	return &CommandHandler{svc: svc, outboxRepo: outboxRepo, projectID: projectID}
}

// Subscriptions возвращает список топиков команд, которые должен слушать
// вызывающий код (см. cmd/main.go), вместе с соответствующими обработчиками.
func (h *CommandHandler) Subscriptions() map[string]bus.MessageHandler {
	return map[string]bus.MessageHandler{
		bus.CommandTopic(h.projectID, envelope.DomainCredit, envelope.VerbReserve): h.handleReserve,
		bus.CommandTopic(h.projectID, envelope.DomainCredit, envelope.VerbRelease): h.handleRelease,
	}
}

func (h *CommandHandler) handleReserve(ctx context.Context, msg *bus.Message) error {
	var cmd envelope.ReserveCreditCmd
	if err := envelope.Unmarshal(msg.Value, &cmd); err != nil {
		return fmt.Errorf("разбор ReserveCreditCmd: %w", err)
	}

	log := logger.FromContext(ctx).With().Str("transaction_id", cmd.TransactionID).Logger()

	result, err := h.svc.ReserveCredit(ctx, cmd.TransactionID, cmd.CustomerID, cmd.Amount, cmd.PaymentType)
	if err != nil {
		if !errors.Is(err, domain.ErrCustomerNotFound) && !errors.Is(err, domain.ErrInsufficientFunds) &&
			!errors.Is(err, domain.ErrUnsupportedPaymentType) && !errors.Is(err, domain.ErrCustomerSuspended) {
			// Инфраструктурная ошибка — не бизнес-отказ, на повторную доставку шиной.
			log.Error().Err(err).Msg("Резервирование кредита завершилось ошибкой")
			return err
		}
		reason := err.Error()
		log.Warn().Err(err).Msg("Резервирование кредита отклонено")
		return h.publish(ctx, cmd.TransactionID, envelope.PastReservationFailed, envelope.CreditReservationFailedEvt{
			TransactionID: cmd.TransactionID,
			CustomerID:    cmd.CustomerID,
			Amount:        cmd.Amount,
			PaymentType:   cmd.PaymentType,
			Reason:        reason,
			Timestamp:     time.Now(),
		})
	}

	log.Info().Msg("Кредит зарезервирован")
	return h.publish(ctx, cmd.TransactionID, envelope.PastReserved, envelope.CreditReservedEvt{
		TransactionID:    cmd.TransactionID,
		CustomerID:       cmd.CustomerID,
		Amount:           cmd.Amount,
		PaymentType:      cmd.PaymentType,
		RemainingBalance: result.RemainingBalance,
		RemainingCredit:  result.RemainingCredit,
		Timestamp:        time.Now(),
	})
}

func (h *CommandHandler) handleRelease(ctx context.Context, msg *bus.Message) error {
	var cmd envelope.ReleaseCreditCmd
	if err := envelope.Unmarshal(msg.Value, &cmd); err != nil {
		return fmt.Errorf("разбор ReleaseCreditCmd: %w", err)
	}

	log := logger.FromContext(ctx).With().Str("transaction_id", cmd.TransactionID).Logger()

	result, err := h.svc.ReleaseCredit(ctx, cmd.TransactionID, cmd.CustomerID, cmd.Amount, cmd.PaymentType)
	if err != nil {
		// Release не предусматривает отказ по бизнес-правилам — отсутствующий
		// покупатель трактуется сервисом как идемпотентный успех (CreditReleased
		// всё равно публикуется), сюда долетают только инфраструктурные ошибки,
		// сага не умеет компенсировать компенсацию, поэтому логируем и отдаём
		// на повторную доставку шиной.
		log.Error().Err(err).Msg("Освобождение кредита завершилось ошибкой")
		return err
	}

	log.Info().Msg("Кредит освобождён")
	return h.publish(ctx, cmd.TransactionID, envelope.PastReleased, envelope.CreditReleasedEvt{
		TransactionID:      cmd.TransactionID,
		CustomerID:         cmd.CustomerID,
		Amount:             cmd.Amount,
		PaymentType:        cmd.PaymentType,
		NewBalance:         result.NewBalance,
		NewAvailableCredit: result.NewAvailableCredit,
		Timestamp:          time.Now(),
	})
}

func (h *CommandHandler) publish(ctx context.Context, transactionID, pastTense string, evt any) error {
	payload, err := envelope.Marshal(evt)
	if err != nil {
		return fmt.Errorf("сериализация события: %w", err)
	}
	record := &outbox.Outbox{
		ID:            uuid.NewString(),
		AggregateType: "credit",
		AggregateID:   transactionID,
		EventType:     pastTense,
		Topic:         bus.EventTopic(h.projectID, envelope.DomainCredit, pastTense),
		MessageKey:    transactionID,
		Payload:       payload,
	}
	if err := h.outboxRepo.Create(ctx, record); err != nil {
		return fmt.Errorf("запись в outbox: %w", err)
	}
	return nil
}
