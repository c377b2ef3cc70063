// Package domain содержит бизнес-сущности и доменные ошибки vehicle
// participant'а: карточку автомобиля (цена, резерв, статус продажи).
package domain

import (
	"strings"
	"time"
)

// Vehicle — автомобиль, участвующий в резервировании и продаже в рамках
// саги покупки (spec.md §3 "Vehicle").
type Vehicle struct {
	ID           string
	Make         string
	Model        string
	Year         int
	LicensePlate string
	Price        float64
	IsReserved   bool
	IsSold       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate проверяет корректность полей автомобиля перед созданием.
func (v *Vehicle) Validate() error {
	if strings.TrimSpace(v.Make) == "" {
		return ErrEmptyMake
	}
	if strings.TrimSpace(v.Model) == "" {
		return ErrEmptyModel
	}
	if strings.TrimSpace(v.LicensePlate) == "" {
		return ErrEmptyLicensePlate
	}
	if v.Price <= 0 {
		return ErrInvalidPrice
	}
	return nil
}

// Available сообщает, можно ли резервировать автомобиль.
func (v *Vehicle) Available() bool {
	return !v.IsReserved && !v.IsSold
}
