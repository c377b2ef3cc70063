package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/vehicle-saga/pkg/envelope"
	"example.com/vehicle-saga/services/customer/internal/domain"
	"example.com/vehicle-saga/services/customer/internal/repository"
)

// MockCustomerRepository — мок для CustomerRepository.
type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Create(ctx context.Context, c *domain.Customer) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockCustomerRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockCustomerRepository) Update(ctx context.Context, c *domain.Customer) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockCustomerRepository) ReserveCredit(ctx context.Context, transactionID, customerID string, amount float64, paymentType string, fn func(c *domain.Customer) error) error {
	args := m.Called(ctx, transactionID, customerID, amount, paymentType)
	if err := args.Error(0); err != nil {
		return err
	}
	c := args.Get(1).(*domain.Customer)
	return fn(c)
}

func (m *MockCustomerRepository) ReleaseCredit(ctx context.Context, transactionID, customerID string, amount float64, paymentType string, fn func(c *domain.Customer) error) error {
	args := m.Called(ctx, transactionID, customerID, amount, paymentType)
	if err := args.Error(0); err != nil {
		return err
	}
	c := args.Get(1).(*domain.Customer)
	return fn(c)
}

func TestCustomerService_ReserveCredit_Cash(t *testing.T) {
	repo := new(MockCustomerRepository)
	svc := NewCustomerService(repo)

	customer := &domain.Customer{ID: "c1", AccountBalance: 10000, Status: domain.StatusActive}
	repo.On("ReserveCredit", mock.Anything, "tx1", "c1", 4000.0, "cash").Return(nil, customer)

	result, err := svc.ReserveCredit(context.Background(), "tx1", "c1", 4000, envelope.PaymentTypeCash)
	require.NoError(t, err)
	require.NotNil(t, result.RemainingBalance)
	assert.Equal(t, 6000.0, *result.RemainingBalance)
	assert.Nil(t, result.RemainingCredit)
}

func TestCustomerService_ReserveCredit_InsufficientFunds(t *testing.T) {
	repo := new(MockCustomerRepository)
	svc := NewCustomerService(repo)

	customer := &domain.Customer{ID: "c1", AccountBalance: 1000, Status: domain.StatusActive}
	repo.On("ReserveCredit", mock.Anything, "tx1", "c1", 4000.0, "cash").Return(nil, customer)

	_, err := svc.ReserveCredit(context.Background(), "tx1", "c1", 4000, envelope.PaymentTypeCash)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestCustomerService_ReserveCredit_Credit(t *testing.T) {
	repo := new(MockCustomerRepository)
	svc := NewCustomerService(repo)

	customer := &domain.Customer{ID: "c1", CreditLimit: 20000, UsedCredit: 5000, Status: domain.StatusActive}
	repo.On("ReserveCredit", mock.Anything, "tx1", "c1", 10000.0, "credit").Return(nil, customer)

	result, err := svc.ReserveCredit(context.Background(), "tx1", "c1", 10000, envelope.PaymentTypeCredit)
	require.NoError(t, err)
	require.NotNil(t, result.RemainingCredit)
	assert.Equal(t, 5000.0, *result.RemainingCredit)
}

func TestCustomerService_ReserveCredit_AlreadyApplied(t *testing.T) {
	repo := new(MockCustomerRepository)
	svc := NewCustomerService(repo)

	repo.On("ReserveCredit", mock.Anything, "tx1", "c1", 4000.0, "cash").Return(repository.ErrAlreadyApplied, (*domain.Customer)(nil))
	repo.On("GetByID", mock.Anything, "c1").Return(&domain.Customer{ID: "c1", AccountBalance: 6000}, nil)

	result, err := svc.ReserveCredit(context.Background(), "tx1", "c1", 4000, envelope.PaymentTypeCash)
	require.NoError(t, err)
	require.NotNil(t, result.RemainingBalance)
	assert.Equal(t, 6000.0, *result.RemainingBalance)
}

func TestCustomerService_ReleaseCredit_FloorsUsedCreditAtZero(t *testing.T) {
	repo := new(MockCustomerRepository)
	svc := NewCustomerService(repo)

	customer := &domain.Customer{ID: "c1", CreditLimit: 20000, UsedCredit: 1000}
	repo.On("ReleaseCredit", mock.Anything, "tx1", "c1", 4000.0, "credit").Return(nil, customer)

	result, err := svc.ReleaseCredit(context.Background(), "tx1", "c1", 4000, envelope.PaymentTypeCredit)
	require.NoError(t, err)
	require.NotNil(t, result.NewAvailableCredit)
	assert.Equal(t, 20000.0, *result.NewAvailableCredit)
}

func TestCustomerService_ReleaseCredit_MissingCustomerIsIdempotentSuccess(t *testing.T) {
	repo := new(MockCustomerRepository)
	svc := NewCustomerService(repo)

	repo.On("ReleaseCredit", mock.Anything, "tx1", "c1", 4000.0, "credit").Return(domain.ErrCustomerNotFound, (*domain.Customer)(nil))

	result, err := svc.ReleaseCredit(context.Background(), "tx1", "c1", 4000, envelope.PaymentTypeCredit)
	require.NoError(t, err)
	assert.Nil(t, result.NewAvailableCredit)
	assert.Nil(t, result.NewBalance)
}
