// Package saga содержит обработчик команд саги для vehicle participant'а:
// потребляет commands.vehicle.reserve/release и публикует события через outbox.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/vehicle-saga/pkg/bus"
	"example.com/vehicle-saga/pkg/envelope"
	"example.com/vehicle-saga/pkg/logger"
	"example.com/vehicle-saga/pkg/outbox"
	"example.com/vehicle-saga/services/vehicle/internal/domain"
	"example.com/vehicle-saga/services/vehicle/internal/service"
)

// CommandHandler разбирает команды шины и вызывает VehicleService,
// публикуя итоговое событие через Transactional Outbox.
type CommandHandler struct {
	svc        *service.VehicleService
	outboxRepo outbox.OutboxRepository
	projectID  string
}

// NewCommandHandler создаёт обработчик команд vehicle participant'а.
func NewCommandHandler(svc *service.VehicleService, outboxRepo outbox.OutboxRepository, projectID string) *CommandHandler {
	return &CommandHandler{svc: svc, outboxRepo: outboxRepo, projectID: projectID}
}

// Subscriptions возвращает список топиков команд, которые должен слушать
// вызывающий код, вместе с соответствующими обработчиками.
func (h *CommandHandler) Subscriptions() map[string]bus.MessageHandler {
	return map[string]bus.MessageHandler{
		bus.CommandTopic(h.projectID, envelope.DomainVehicle, envelope.VerbReserve): h.handleReserve,
		bus.CommandTopic(h.projectID, envelope.DomainVehicle, envelope.VerbRelease): h.handleRelease,
	}
}

func (h *CommandHandler) handleReserve(ctx context.Context, msg *bus.Message) error {
	var cmd envelope.ReserveVehicleCmd
	if err := envelope.Unmarshal(msg.Value, &cmd); err != nil {
		return fmt.Errorf("разбор ReserveVehicleCmd: %w", err)
	}

	log := logger.FromContext(ctx).With().Str("transaction_id", cmd.TransactionID).Logger()

	vehicle, err := h.svc.ReserveVehicle(ctx, cmd.VehicleID)
	if err != nil {
		if !errors.Is(err, domain.ErrVehicleNotFound) && !errors.Is(err, domain.ErrVehicleUnavailable) {
			// Инфраструктурная ошибка — не бизнес-отказ, на повторную доставку шиной.
			log.Error().Err(err).Msg("Резервирование автомобиля завершилось ошибкой")
			return err
		}
		log.Warn().Err(err).Msg("Резервирование автомобиля отклонено")
		return h.publish(ctx, cmd.TransactionID, envelope.PastReservationFailed, envelope.VehicleReservationFailedEvt{
			TransactionID: cmd.TransactionID,
			VehicleID:     cmd.VehicleID,
			Reason:        err.Error(),
			Timestamp:     time.Now(),
		})
	}

	log.Info().Msg("Автомобиль зарезервирован")
	return h.publish(ctx, cmd.TransactionID, envelope.PastReserved, envelope.VehicleReservedEvt{
		TransactionID: cmd.TransactionID,
		VehicleID:     cmd.VehicleID,
		VehiclePrice:  vehicle.Price,
		Timestamp:     time.Now(),
	})
}

func (h *CommandHandler) handleRelease(ctx context.Context, msg *bus.Message) error {
	var cmd envelope.ReleaseVehicleCmd
	if err := envelope.Unmarshal(msg.Value, &cmd); err != nil {
		return fmt.Errorf("разбор ReleaseVehicleCmd: %w", err)
	}

	log := logger.FromContext(ctx).With().Str("transaction_id", cmd.TransactionID).Logger()

	if _, err := h.svc.ReleaseVehicle(ctx, cmd.VehicleID); err != nil {
		log.Error().Err(err).Msg("Освобождение автомобиля завершилось ошибкой")
		return err
	}

	log.Info().Msg("Резерв автомобиля снят")
	return h.publish(ctx, cmd.TransactionID, envelope.PastReleased, envelope.VehicleReleasedEvt{
		TransactionID: cmd.TransactionID,
		VehicleID:     cmd.VehicleID,
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
		AggregateType: "vehicle",
		AggregateID:   transactionID,
		EventType:     pastTense,
		Topic:         bus.EventTopic(h.projectID, envelope.DomainVehicle, pastTense),
		MessageKey:    transactionID,
		Payload:       payload,
	}
	if err := h.outboxRepo.Create(ctx, record); err != nil {
		return fmt.Errorf("запись в outbox: %w", err)
	}
	return nil
}
