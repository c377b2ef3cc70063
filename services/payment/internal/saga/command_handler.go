// Package saga содержит обработчик команд саги для payment participant'а:
// потребляет commands.payment.generate_code/process/refund и публикует
// события через outbox.
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
	"example.com/vehicle-saga/services/payment/internal/domain"
	"example.com/vehicle-saga/services/payment/internal/service"

	"github.com/google/uuid"
)

// CommandHandler разбирает команды шины и вызывает PaymentService,
// публикуя итоговое событие через Transactional Outbox.
type CommandHandler struct {
	svc        service.PaymentService
	outboxRepo outbox.OutboxRepository
	projectID  string
}

// NewCommandHandler создаёт обработчик команд payment participant'а.
func NewCommandHandler(svc service.PaymentService, outboxRepo outbox.OutboxRepository, projectID string) *CommandHandler {
	return &CommandHandler{svc: svc, outboxRepo: outboxRepo, projectID: projectID}
}

// Subscriptions возвращает список топиков команд, которые должен слушать
// вызывающий код (см. cmd/main.go), вместе с соответствующими обработчиками.
func (h *CommandHandler) Subscriptions() map[string]bus.MessageHandler {
	return map[string]bus.MessageHandler{
		bus.CommandTopic(h.projectID, envelope.DomainPayment, envelope.VerbGenerateCode): h.handleGenerateCode,
		bus.CommandTopic(h.projectID, envelope.DomainPayment, envelope.VerbProcess):      h.handleProcess,
		bus.CommandTopic(h.projectID, envelope.DomainPayment, envelope.VerbRefund):       h.handleRefund,
	}
}

func (h *CommandHandler) handleGenerateCode(ctx context.Context, msg *bus.Message) error {
	var cmd envelope.GeneratePaymentCodeCmd
	if err := envelope.Unmarshal(msg.Value, &cmd); err != nil {
		return fmt.Errorf("разбор GeneratePaymentCodeCmd: %w", err)
	}

	log := logger.FromContext(ctx).With().Str("transaction_id", cmd.TransactionID).Logger()

	code, err := h.svc.GeneratePaymentCode(ctx, cmd.TransactionID, cmd.CustomerID, cmd.VehicleID, cmd.Amount, cmd.PaymentType)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAmount) {
			log.Warn().Err(err).Msg("Генерация платёжного кода отклонена")
			return h.publish(ctx, cmd.TransactionID, envelope.PastCodeGenerationFailed, envelope.PaymentCodeGenerationFailedEvt{
				TransactionID: cmd.TransactionID,
				CustomerID:    cmd.CustomerID,
				VehicleID:     cmd.VehicleID,
				Amount:        cmd.Amount,
				PaymentType:   cmd.PaymentType,
				Reason:        err.Error(),
				Timestamp:     time.Now(),
			})
		}
		// Инфраструктурная ошибка (БД, Redis) — не бизнес-отказ, компенсацию не
		// запускаем, отдаём на повторную доставку шиной.
		log.Error().Err(err).Msg("Генерация платёжного кода завершилась ошибкой")
		return err
	}

	log.Info().Str("code", code.Code).Msg("Платёжный код сгенерирован")
	return h.publish(ctx, cmd.TransactionID, envelope.PastCodeGenerated, envelope.PaymentCodeGeneratedEvt{
		TransactionID: cmd.TransactionID,
		PaymentCode:   code.Code,
		CustomerID:    code.CustomerID,
		VehicleID:     code.VehicleID,
		Amount:        code.Amount,
		PaymentType:   envelope.PaymentType(code.PaymentType),
		ExpiresAt:     code.ExpiresAt,
		Timestamp:     time.Now(),
	})
}

func (h *CommandHandler) handleProcess(ctx context.Context, msg *bus.Message) error {
	var cmd envelope.ProcessPaymentCmd
	if err := envelope.Unmarshal(msg.Value, &cmd); err != nil {
		return fmt.Errorf("разбор ProcessPaymentCmd: %w", err)
	}

	log := logger.FromContext(ctx).With().Str("transaction_id", cmd.TransactionID).Logger()

	payment, err := h.svc.ProcessPayment(ctx, cmd.TransactionID, cmd.PaymentCode, cmd.PaymentMethod)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentCodeNotFound) || errors.Is(err, domain.ErrPaymentCodeNotPending) || errors.Is(err, domain.ErrPaymentCodeExpired) {
			log.Warn().Err(err).Msg("Проведение платежа отклонено")
			return h.publish(ctx, cmd.TransactionID, envelope.PastFailed, envelope.PaymentFailedEvt{
				TransactionID: cmd.TransactionID,
				PaymentCode:   cmd.PaymentCode,
				Reason:        err.Error(),
				Timestamp:     time.Now(),
			})
		}
		// Инфраструктурная ошибка — не бизнес-отказ, на повторную доставку шиной.
		log.Error().Err(err).Msg("Проведение платежа завершилось ошибкой")
		return err
	}

	log.Info().Str("payment_id", payment.ID).Msg("Платёж проведён")
	return h.publish(ctx, cmd.TransactionID, envelope.PastProcessed, envelope.PaymentProcessedEvt{
		TransactionID: cmd.TransactionID,
		PaymentID:     payment.ID,
		PaymentCode:   payment.PaymentCode,
		CustomerID:    payment.CustomerID,
		VehicleID:     payment.VehicleID,
		Amount:        payment.Amount,
		PaymentType:   envelope.PaymentType(payment.PaymentType),
		PaymentMethod: payment.PaymentMethod,
		Status:        string(payment.Status),
		Timestamp:     time.Now(),
	})
}

func (h *CommandHandler) handleRefund(ctx context.Context, msg *bus.Message) error {
	var cmd envelope.RefundPaymentCmd
	if err := envelope.Unmarshal(msg.Value, &cmd); err != nil {
		return fmt.Errorf("разбор RefundPaymentCmd: %w", err)
	}

	log := logger.FromContext(ctx).With().Str("transaction_id", cmd.TransactionID).Logger()

	payment, err := h.svc.RefundPayment(ctx, cmd.TransactionID, cmd.PaymentID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentFailed) || errors.Is(err, domain.ErrPaymentNotFound) {
			log.Warn().Err(err).Msg("Возврат платежа отклонён")
			return h.publish(ctx, cmd.TransactionID, envelope.PastRefundFailed, envelope.PaymentRefundFailedEvt{
				TransactionID: cmd.TransactionID,
				PaymentID:     cmd.PaymentID,
				Reason:        err.Error(),
				Timestamp:     time.Now(),
			})
		}
		log.Error().Err(err).Msg("Возврат платежа завершился ошибкой")
		return err
	}

	log.Info().Str("payment_id", payment.ID).Msg("Возврат платежа выполнен")
	return h.publish(ctx, cmd.TransactionID, envelope.PastRefunded, envelope.PaymentRefundedEvt{
		TransactionID: cmd.TransactionID,
		PaymentID:     payment.ID,
		Status:        string(payment.Status),
		Timestamp:     time.Now(),
	})
}

func (h *CommandHandler) publish(ctx context.Context, transactionID, pastTense string, evt any) error {
	payload, err := envelope.Marshal(evt)
	if err != nil {
		return fmt.Errorf("сериализация события: %w", err)
	}
	record := &outbox.Outbox{
		ID:            uuid.NewString(),
		AggregateType: "payment",
		AggregateID:   transactionID,
		EventType:     pastTense,
		Topic:         bus.EventTopic(h.projectID, envelope.DomainPayment, pastTense),
		MessageKey:    transactionID,
		Payload:       payload,
	}
	if err := h.outboxRepo.Create(ctx, record); err != nil {
		return fmt.Errorf("запись в outbox: %w", err)
	}
	return nil
}
