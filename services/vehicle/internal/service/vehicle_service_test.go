package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/vehicle-saga/services/vehicle/internal/domain"
)

// MockVehicleRepository — мок для VehicleRepository.
type MockVehicleRepository struct {
	mock.Mock
}

func (m *MockVehicleRepository) Create(ctx context.Context, v *domain.Vehicle) error {
	return m.Called(ctx, v).Error(0)
}

func (m *MockVehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Vehicle), args.Error(1)
}

func (m *MockVehicleRepository) Reserve(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	args := m.Called(ctx, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Vehicle), args.Error(1)
}

func (m *MockVehicleRepository) Release(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	args := m.Called(ctx, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Vehicle), args.Error(1)
}

func (m *MockVehicleRepository) MarkAsSold(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	args := m.Called(ctx, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Vehicle), args.Error(1)
}

func TestVehicleService_ReserveVehicle_Unavailable(t *testing.T) {
	repo := new(MockVehicleRepository)
	svc := NewVehicleService(repo)

	repo.On("Reserve", mock.Anything, "v1").Return(nil, domain.ErrVehicleUnavailable)

	_, err := svc.ReserveVehicle(context.Background(), "v1")
	assert.ErrorIs(t, err, domain.ErrVehicleUnavailable)
}

func TestVehicleService_ReserveVehicle_Success(t *testing.T) {
	repo := new(MockVehicleRepository)
	svc := NewVehicleService(repo)

	reserved := &domain.Vehicle{ID: "v1", Price: 75000, IsReserved: true}
	repo.On("Reserve", mock.Anything, "v1").Return(reserved, nil)

	v, err := svc.ReserveVehicle(context.Background(), "v1")
	require.NoError(t, err)
	assert.True(t, v.IsReserved)
	assert.Equal(t, 75000.0, v.Price)
}

func TestVehicleService_ReleaseVehicle_MissingVehicleIsIdempotentSuccess(t *testing.T) {
	repo := new(MockVehicleRepository)
	svc := NewVehicleService(repo)

	repo.On("Release", mock.Anything, "v1").Return(nil, domain.ErrVehicleNotFound)

	v, err := svc.ReleaseVehicle(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", v.ID)
}

func TestVehicleService_MarkAsSold(t *testing.T) {
	repo := new(MockVehicleRepository)
	svc := NewVehicleService(repo)

	sold := &domain.Vehicle{ID: "v1", IsSold: true, IsReserved: false}
	repo.On("MarkAsSold", mock.Anything, "v1").Return(sold, nil)

	v, err := svc.MarkAsSold(context.Background(), "v1")
	require.NoError(t, err)
	assert.True(t, v.IsSold)
	assert.False(t, v.IsReserved)
}
