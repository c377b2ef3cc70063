package saga

import (
	"context"
	"errors"
	"time"

	"example.com/vehicle-saga/pkg/envelope"
	"example.com/vehicle-saga/pkg/logger"
	"example.com/vehicle-saga/services/orchestrator/internal/client"
	"example.com/vehicle-saga/services/orchestrator/internal/domain"
)

// maxOptimisticRetries — сколько раз оболочка повторяет чтение-изменение-
// запись при конфликте версии перед тем, как сдаться.
const maxOptimisticRetries = 3

// Orchestrator — тонкая оболочка персистентности и публикации вокруг чистой
// функции Transition. Загружает сагу, прогоняет событие через Transition,
// атомарно сохраняет новое состояние и создаёт outbox записи для исходящих
// команд — сама Transition ничего не знает ни о БД, ни о шине.
type Orchestrator interface {
	// StartPurchase создаёт новую сагу в статусе STARTED и немедленно
	// переводит её в CREDIT_RESERVATION, публикуя ReserveCredit.
	StartPurchase(ctx context.Context, transactionID, customerID, vehicleID string, amount float64, paymentType envelope.PaymentType) (*domain.Saga, error)

	// HandleEvent прогоняет входящее событие участника через Transition и
	// персистирует результат с повтором при конфликте optimistic lock.
	HandleEvent(ctx context.Context, transactionID string, evt Event) (*domain.Saga, error)

	// Cancel запрашивает отмену транзакции.
	Cancel(ctx context.Context, transactionID, reason string) (*domain.Saga, error)

	// GetState возвращает текущее состояние саги.
	GetState(ctx context.Context, transactionID string) (*domain.Saga, error)
}

type orchestrator struct {
	repo    Repository
	vehicle *client.VehicleClient
}

// NewOrchestrator создаёт оболочку над репозиторием саг. vehicle — клиент к
// границе vehicle participant'а, нужен только для синхронного mark_as_sold
// на последнем шаге форвард-пути (см. HandleEvent).
func NewOrchestrator(repo Repository, vehicle *client.VehicleClient) Orchestrator {
	return &orchestrator{repo: repo, vehicle: vehicle}
}

func (o *orchestrator) StartPurchase(ctx context.Context, transactionID, customerID, vehicleID string, amount float64, paymentType envelope.PaymentType) (*domain.Saga, error) {
	s := domain.NewSaga(transactionID, customerID, vehicleID, amount, paymentType)

	newState, commands, err := Transition(*s, Event{
		Kind:        EvtStart,
		CustomerID:  customerID,
		VehicleID:   vehicleID,
		Amount:      amount,
		PaymentType: paymentType,
	}, time.Now())
	if err != nil {
		return nil, err
	}

	if err := o.repo.CreateWithCommands(ctx, &newState, commands); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Str("transaction_id", transactionID).
		Str("status", string(newState.Status)).
		Msg("Сага покупки инициирована")

	return &newState, nil
}

func (o *orchestrator) HandleEvent(ctx context.Context, transactionID string, evt Event) (*domain.Saga, error) {
	var result *domain.Saga

	for attempt := 0; attempt < maxOptimisticRetries; attempt++ {
		current, err := o.repo.GetByID(ctx, transactionID)
		if err != nil {
			return nil, err
		}

		newState, commands, err := Transition(*current, evt, time.Now())
		if err != nil {
			return nil, err
		}

		if err := o.repo.UpdateWithCommands(ctx, &newState, commands); err != nil {
			if errors.Is(err, domain.ErrSagaConcurrentUpdate) {
				logger.FromContext(ctx).Warn().
					Str("transaction_id", transactionID).
					Int("attempt", attempt+1).
					Msg("Конфликт версии саги, повтор")
				continue
			}
			return nil, err
		}

		result = &newState
		break
	}

	if result == nil {
		return nil, domain.ErrSagaConcurrentUpdate
	}

	logger.FromContext(ctx).Info().
		Str("transaction_id", transactionID).
		Str("event", string(evt.Kind)).
		Str("status", string(result.Status)).
		Str("step", string(result.CurrentStep)).
		Msg("Переход саги применён")

	if result.Status == domain.StatusInProgress && result.CurrentStep == domain.StepMarkVehicleAsSold {
		return o.completeVehicleSale(ctx, result)
	}

	return result, nil
}

// completeVehicleSale выполняет последний синхронный шаг форвард-пути:
// помечает автомобиль проданным через vehicle participant и тут же
// прогоняет результат обратно через HandleEvent (VehicleMarkedSold или
// VehicleMarkSoldFailed), описанный в client.go как единственная точка,
// где оркестратор выходит за пределы шины на обратном пути к завершению.
func (o *orchestrator) completeVehicleSale(ctx context.Context, s *domain.Saga) (*domain.Saga, error) {
	if _, err := o.vehicle.MarkAsSold(ctx, s.VehicleID); err != nil {
		logger.FromContext(ctx).Error().Err(err).
			Str("transaction_id", s.TransactionID).
			Str("vehicle_id", s.VehicleID).
			Msg("Не удалось пометить автомобиль проданным")
		return o.HandleEvent(ctx, s.TransactionID, Event{Kind: EvtVehicleMarkSoldFailed, Reason: err.Error()})
	}
	return o.HandleEvent(ctx, s.TransactionID, Event{Kind: EvtVehicleMarkedSold})
}

func (o *orchestrator) Cancel(ctx context.Context, transactionID, reason string) (*domain.Saga, error) {
	return o.HandleEvent(ctx, transactionID, Event{Kind: EvtCancelRequested, CancelReason: reason})
}

func (o *orchestrator) GetState(ctx context.Context, transactionID string) (*domain.Saga, error) {
	return o.repo.GetByID(ctx, transactionID)
}
