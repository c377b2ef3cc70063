// Package service содержит бизнес-логику credit participant'а: CRUD
// покупателей и операции резервирования/освобождения средств саги покупки.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"example.com/vehicle-saga/pkg/envelope"
	"example.com/vehicle-saga/services/customer/internal/domain"
	"example.com/vehicle-saga/services/customer/internal/repository"
)

// ReserveResult — итог резервирования средств, передаётся наверх для
// построения события CreditReserved/CreditReservationFailed.
type ReserveResult struct {
	RemainingBalance *float64
	RemainingCredit  *float64
}

// ReleaseResult — итог освобождения средств.
type ReleaseResult struct {
	NewBalance         *float64
	NewAvailableCredit *float64
}

// CustomerService инкапсулирует CRUD и кредитные операции над покупателями.
type CustomerService struct {
	repo repository.CustomerRepository
}

// NewCustomerService создаёт сервис покупателей.
func NewCustomerService(repo repository.CustomerRepository) *CustomerService {
	return &CustomerService{repo: repo}
}

// Create регистрирует нового покупателя.
func (s *CustomerService) Create(ctx context.Context, c *domain.Customer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.ID = uuid.NewString()
	c.Status = domain.StatusActive
	return s.repo.Create(ctx, c)
}

// GetByID возвращает покупателя по идентификатору.
func (s *CustomerService) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	return s.repo.GetByID(ctx, id)
}

// ReserveCredit резервирует сумму за покупателем: для cash — списывает с
// account_balance, для credit — занимает кредитную линию (spec.md §4.2).
// Идемпотентна относительно transactionID — повторная доставка команды
// с тем же идентификатором не применяет эффект дважды.
func (s *CustomerService) ReserveCredit(ctx context.Context, transactionID, customerID string, amount float64, paymentType envelope.PaymentType) (*ReserveResult, error) {
	var result ReserveResult

	err := s.repo.ReserveCredit(ctx, transactionID, customerID, amount, string(paymentType), func(c *domain.Customer) error {
		if c.Status == domain.StatusSuspended {
			return domain.ErrCustomerSuspended
		}
		switch paymentType {
		case envelope.PaymentTypeCash:
			if amount > c.AccountBalance {
				return domain.ErrInsufficientFunds
			}
			c.AccountBalance -= amount
			remaining := c.AccountBalance
			result.RemainingBalance = &remaining
		case envelope.PaymentTypeCredit:
			if amount > c.AvailableCredit() {
				return domain.ErrInsufficientFunds
			}
			c.UsedCredit += amount
			remaining := c.AvailableCredit()
			result.RemainingCredit = &remaining
		default:
			return domain.ErrUnsupportedPaymentType
		}
		return nil
	})

	if err == repository.ErrAlreadyApplied {
		// Операция уже применена ранее — отдаём наверх текущее состояние,
		// чтобы оркестратор всё равно получил корректные остатки в событии.
		c, getErr := s.repo.GetByID(ctx, customerID)
		if getErr != nil {
			return nil, getErr
		}
		switch paymentType {
		case envelope.PaymentTypeCash:
			remaining := c.AccountBalance
			result.RemainingBalance = &remaining
		case envelope.PaymentTypeCredit:
			remaining := c.AvailableCredit()
			result.RemainingCredit = &remaining
		}
		return &result, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ReleaseCredit возвращает ранее зарезервированную сумму покупателю
// (компенсация либо отмена саги). used_credit не уходит ниже нуля.
func (s *CustomerService) ReleaseCredit(ctx context.Context, transactionID, customerID string, amount float64, paymentType envelope.PaymentType) (*ReleaseResult, error) {
	var result ReleaseResult

	err := s.repo.ReleaseCredit(ctx, transactionID, customerID, amount, string(paymentType), func(c *domain.Customer) error {
		switch paymentType {
		case envelope.PaymentTypeCash:
			c.AccountBalance += amount
			newBalance := c.AccountBalance
			result.NewBalance = &newBalance
		case envelope.PaymentTypeCredit:
			c.UsedCredit -= amount
			if c.UsedCredit < 0 {
				c.UsedCredit = 0
			}
			newAvailable := c.AvailableCredit()
			result.NewAvailableCredit = &newAvailable
		default:
			return domain.ErrUnsupportedPaymentType
		}
		return nil
	})

	if err == repository.ErrAlreadyApplied {
		c, getErr := s.repo.GetByID(ctx, customerID)
		if getErr != nil {
			return nil, getErr
		}
		switch paymentType {
		case envelope.PaymentTypeCash:
			newBalance := c.AccountBalance
			result.NewBalance = &newBalance
		case envelope.PaymentTypeCredit:
			newAvailable := c.AvailableCredit()
			result.NewAvailableCredit = &newAvailable
		}
		return &result, nil
	}
	if errors.Is(err, domain.ErrCustomerNotFound) {
		// Покупатель мог быть удалён между резервированием и компенсацией —
		// освобождать уже нечего, но CreditReleased всё равно обязано уйти,
		// иначе сага навсегда зависнет в COMPENSATING/CANCELLING.
		return &result, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}
