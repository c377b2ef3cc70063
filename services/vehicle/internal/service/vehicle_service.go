// Package service содержит бизнес-логику vehicle participant'а: CRUD
// автомобилей и операции резервирования/продажи в рамках саги покупки.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"example.com/vehicle-saga/services/vehicle/internal/domain"
	"example.com/vehicle-saga/services/vehicle/internal/repository"
)

// VehicleService инкапсулирует CRUD и операции резервирования автомобилей.
type VehicleService struct {
	repo repository.VehicleRepository
}

// NewVehicleService создаёт сервис автомобилей.
func NewVehicleService(repo repository.VehicleRepository) *VehicleService {
	return &VehicleService{repo: repo}
}

// Create регистрирует новый автомобиль.
func (s *VehicleService) Create(ctx context.Context, v *domain.Vehicle) error {
	if err := v.Validate(); err != nil {
		return err
	}
	v.ID = uuid.NewString()
	return s.repo.Create(ctx, v)
}

// GetByID возвращает автомобиль по идентификатору.
func (s *VehicleService) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	return s.repo.GetByID(ctx, id)
}

// ReserveVehicle резервирует автомобиль за сагой покупки (spec.md §4.3).
func (s *VehicleService) ReserveVehicle(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	return s.repo.Reserve(ctx, vehicleID)
}

// ReleaseVehicle идемпотентно снимает резерв с автомобиля. Отсутствие
// автомобиля трактуется как уже выполненное освобождение (spec.md §4.3) —
// снимать резерв не с чего, но VehicleReleased обязан уйти, иначе сага
// зависнет в COMPENSATING/CANCELLING навсегда.
func (s *VehicleService) ReleaseVehicle(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	v, err := s.repo.Release(ctx, vehicleID)
	if errors.Is(err, domain.ErrVehicleNotFound) {
		return &domain.Vehicle{ID: vehicleID}, nil
	}
	return v, err
}

// MarkAsSold — синхронный граничный вызов оркестратора на последнем шаге саги.
func (s *VehicleService) MarkAsSold(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	return s.repo.MarkAsSold(ctx, vehicleID)
}
