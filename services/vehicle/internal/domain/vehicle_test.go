package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVehicle_Validate(t *testing.T) {
	tests := []struct {
		name        string
		vehicle     *Vehicle
		expectedErr error
	}{
		{
			name:        "валидные данные",
			vehicle:     &Vehicle{Make: "Toyota", Model: "Corolla", LicensePlate: "ABC1234", Price: 90000},
			expectedErr: nil,
		},
		{
			name:        "пустая марка",
			vehicle:     &Vehicle{Make: "  ", Model: "Corolla", LicensePlate: "ABC1234", Price: 90000},
			expectedErr: ErrEmptyMake,
		},
		{
			name:        "пустая модель",
			vehicle:     &Vehicle{Make: "Toyota", Model: "", LicensePlate: "ABC1234", Price: 90000},
			expectedErr: ErrEmptyModel,
		},
		{
			name:        "пустой регистрационный знак",
			vehicle:     &Vehicle{Make: "Toyota", Model: "Corolla", LicensePlate: "", Price: 90000},
			expectedErr: ErrEmptyLicensePlate,
		},
		{
			name:        "нулевая цена",
			vehicle:     &Vehicle{Make: "Toyota", Model: "Corolla", LicensePlate: "ABC1234", Price: 0},
			expectedErr: ErrInvalidPrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.vehicle.Validate()
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVehicle_Available(t *testing.T) {
	assert.True(t, (&Vehicle{}).Available())
	assert.False(t, (&Vehicle{IsReserved: true}).Available())
	assert.False(t, (&Vehicle{IsSold: true}).Available())
}
