// Package service реализует алгоритм инициации покупки (синхронная часть
// POST /purchase: предполётные проверки + старт саги) и сервис отмены,
// опираясь на internal/client для границ customer/vehicle и internal/saga
// для состояния саги.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"example.com/vehicle-saga/pkg/envelope"
	"example.com/vehicle-saga/pkg/httpclient"
	"example.com/vehicle-saga/pkg/logger"
	"example.com/vehicle-saga/services/orchestrator/internal/client"
	"example.com/vehicle-saga/services/orchestrator/internal/domain"
	"example.com/vehicle-saga/services/orchestrator/internal/saga"
)

// PurchaseResult — данные, возвращаемые POST /purchase при успешном приёме.
type PurchaseResult struct {
	TransactionID string
	SagaStatus    domain.Status
	VehiclePrice  float64
}

// CancelResult — данные, возвращаемые POST /purchase/{id}/cancel.
type CancelResult struct {
	TransactionID string
	CurrentStep   domain.Step
	Status        domain.Status
}

// PurchaseService реализует алгоритм инициации покупки (spec.md §4.1).
type PurchaseService struct {
	orch     saga.Orchestrator
	customer *client.CustomerClient
	vehicle  *client.VehicleClient
}

// NewPurchaseService создаёт сервис инициации покупки.
func NewPurchaseService(orch saga.Orchestrator, customer *client.CustomerClient, vehicle *client.VehicleClient) *PurchaseService {
	return &PurchaseService{orch: orch, customer: customer, vehicle: vehicle}
}

// InitiatePurchase выполняет синхронную часть POST /purchase: проверяет
// автомобиль и покупателя прямыми HTTP вызовами, затем стартует сагу.
func (s *PurchaseService) InitiatePurchase(ctx context.Context, customerID, vehicleID string, paymentType envelope.PaymentType) (*PurchaseResult, error) {
	if paymentType != envelope.PaymentTypeCash && paymentType != envelope.PaymentTypeCredit {
		return nil, domain.ErrInvalidPaymentType
	}

	v, err := s.vehicle.Get(ctx, vehicleID)
	if err != nil {
		return nil, translateBoundaryError(err, domain.ErrVehicleNotFound)
	}
	if v.IsSold || v.IsReserved {
		return nil, domain.ErrVehicleUnavailable
	}

	c, err := s.customer.Get(ctx, customerID)
	if err != nil {
		return nil, translateBoundaryError(err, domain.ErrCustomerNotFound)
	}

	if err := checkAffordability(paymentType, v.Price, c); err != nil {
		return nil, err
	}

	transactionID := uuid.NewString()
	newSaga, err := s.orch.StartPurchase(ctx, transactionID, customerID, vehicleID, v.Price, paymentType)
	if err != nil {
		logger.FromContext(ctx).Error().Err(err).Str("transaction_id", transactionID).
			Msg("Не удалось инициировать сагу покупки")
		return nil, domain.ErrPublishFailed
	}

	return &PurchaseResult{
		TransactionID: newSaga.TransactionID,
		SagaStatus:    newSaga.Status,
		VehiclePrice:  v.Price,
	}, nil
}

func checkAffordability(paymentType envelope.PaymentType, price float64, c *client.CustomerView) error {
	switch paymentType {
	case envelope.PaymentTypeCash:
		if price > c.AccountBalance {
			return domain.ErrInsufficientFunds
		}
	case envelope.PaymentTypeCredit:
		if price > c.AvailableCredit {
			return domain.ErrInsufficientFunds
		}
	}
	return nil
}

// translateBoundaryError сопоставляет 404 от участника доменной ошибке
// not-found; остальные ошибки (circuit breaker open, инфраструктурный сбой)
// пробрасываются как есть — вызывающая сторона классифицирует их сама.
func translateBoundaryError(err error, notFound error) error {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.NotFound() {
		return notFound
	}
	return err
}

// CancelService реализует пользовательскую отмену транзакции.
type CancelService struct {
	orch saga.Orchestrator
}

// NewCancelService создаёт сервис отмены.
func NewCancelService(orch saga.Orchestrator) *CancelService {
	return &CancelService{orch: orch}
}

// Cancel запрашивает отмену транзакции по transaction_id.
func (s *CancelService) Cancel(ctx context.Context, transactionID, reason string) (*CancelResult, error) {
	updated, err := s.orch.Cancel(ctx, transactionID, reason)
	if err != nil {
		return nil, err
	}
	return &CancelResult{
		TransactionID: updated.TransactionID,
		CurrentStep:   updated.CurrentStep,
		Status:        updated.Status,
	}, nil
}
