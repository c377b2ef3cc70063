// Package repository содержит реализацию доступа к данным vehicle participant'а.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"example.com/vehicle-saga/services/vehicle/internal/domain"
)

// VehicleRepository определяет интерфейс для работы с автомобилями в БД.
type VehicleRepository interface {
	Create(ctx context.Context, v *domain.Vehicle) error
	GetByID(ctx context.Context, id string) (*domain.Vehicle, error)

	// Reserve атомарно переводит автомобиль в зарезервированное состояние:
	// `UPDATE ... WHERE id = ? AND is_reserved = false AND is_sold = false`.
	// Возвращает ErrVehicleUnavailable, если ни одна строка не была затронута
	// (уже зарезервирован, продан либо не существует, что отличается через
	// отдельный GetByID до попытки обновления — spec.md §4.3).
	Reserve(ctx context.Context, vehicleID string) (*domain.Vehicle, error)

	// Release идемпотентно снимает резерв: если автомобиль не существует,
	// возвращает ErrVehicleNotFound; иначе всегда успешен (spec.md §4.3).
	Release(ctx context.Context, vehicleID string) (*domain.Vehicle, error)

	// MarkAsSold переводит автомобиль в проданное состояние:
	// is_sold = true, is_reserved = false.
	MarkAsSold(ctx context.Context, vehicleID string) (*domain.Vehicle, error)
}

// VehicleModel — GORM модель таблицы vehicles.
type VehicleModel struct {
	ID           string    `gorm:"column:id;type:varchar(36);primaryKey"`
	Make         string    `gorm:"column:make;type:varchar(64);not null"`
	Model        string    `gorm:"column:model;type:varchar(64);not null"`
	Year         int       `gorm:"column:year;not null"`
	LicensePlate string    `gorm:"column:license_plate;type:varchar(16);uniqueIndex;not null"`
	Price        float64   `gorm:"column:price;type:decimal(14,2);not null"`
	IsReserved   bool      `gorm:"column:is_reserved;not null;default:false"`
	IsSold       bool      `gorm:"column:is_sold;not null;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (VehicleModel) TableName() string { return "vehicles" }

func (m *VehicleModel) toDomain() *domain.Vehicle {
	return &domain.Vehicle{
		ID: m.ID, Make: m.Make, Model: m.Model, Year: m.Year, LicensePlate: m.LicensePlate,
		Price: m.Price, IsReserved: m.IsReserved, IsSold: m.IsSold,
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func fromDomain(v *domain.Vehicle) *VehicleModel {
	return &VehicleModel{
		ID: v.ID, Make: v.Make, Model: v.Model, Year: v.Year, LicensePlate: v.LicensePlate,
		Price: v.Price, IsReserved: v.IsReserved, IsSold: v.IsSold,
		CreatedAt: v.CreatedAt, UpdatedAt: v.UpdatedAt,
	}
}

type vehicleRepository struct {
	db *gorm.DB
}

// NewVehicleRepository создаёт репозиторий автомобилей.
func NewVehicleRepository(db *gorm.DB) VehicleRepository {
	return &vehicleRepository{db: db}
}

func (r *vehicleRepository) Create(ctx context.Context, v *domain.Vehicle) error {
	m := fromDomain(v)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isDuplicateKeyError(err) {
			return domain.ErrLicensePlateExists
		}
		return err
	}
	v.CreatedAt, v.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *vehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	var m VehicleModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrVehicleNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

func (r *vehicleRepository) Reserve(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	var result *domain.Vehicle
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m VehicleModel
		if err := tx.Where("id = ?", vehicleID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrVehicleNotFound
			}
			return err
		}
		if m.IsReserved || m.IsSold {
			return domain.ErrVehicleUnavailable
		}

		res := tx.Model(&VehicleModel{}).
			Where("id = ? AND is_reserved = ? AND is_sold = ?", vehicleID, false, false).
			Update("is_reserved", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Гонка с другим резервированием между First и Update.
			return domain.ErrVehicleUnavailable
		}

		m.IsReserved = true
		result = m.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *vehicleRepository) Release(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	var m VehicleModel
	if err := r.db.WithContext(ctx).Where("id = ?", vehicleID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrVehicleNotFound
		}
		return nil, err
	}

	if m.IsReserved && !m.IsSold {
		if err := r.db.WithContext(ctx).Model(&VehicleModel{}).
			Where("id = ?", vehicleID).
			Update("is_reserved", false).Error; err != nil {
			return nil, err
		}
		m.IsReserved = false
	}
	return m.toDomain(), nil
}

func (r *vehicleRepository) MarkAsSold(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	var m VehicleModel
	if err := r.db.WithContext(ctx).Where("id = ?", vehicleID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrVehicleNotFound
		}
		return nil, err
	}

	if err := r.db.WithContext(ctx).Model(&VehicleModel{}).
		Where("id = ?", vehicleID).
		Updates(map[string]any{"is_sold": true, "is_reserved": false}).Error; err != nil {
		return nil, err
	}
	m.IsSold, m.IsReserved = true, false
	return m.toDomain(), nil
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(errMsg, "Duplicate entry") ||
		strings.Contains(errMsg, "1062")
}
