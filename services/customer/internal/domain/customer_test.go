package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCustomer_Validate(t *testing.T) {
	tests := []struct {
		name        string
		customer    *Customer
		expectedErr error
	}{
		{
			name:        "валидные данные",
			customer:    &Customer{Name: "Иван Петров", Email: "ivan@example.com", Document: "12345678900"},
			expectedErr: nil,
		},
		{
			name:        "невалидный email",
			customer:    &Customer{Name: "Иван Петров", Email: "некорректно", Document: "12345678900"},
			expectedErr: ErrInvalidEmail,
		},
		{
			name:        "пустое имя",
			customer:    &Customer{Name: "   ", Email: "ivan@example.com", Document: "12345678900"},
			expectedErr: ErrEmptyName,
		},
		{
			name:        "пустой документ",
			customer:    &Customer{Name: "Иван Петров", Email: "ivan@example.com", Document: ""},
			expectedErr: ErrEmptyDocument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.customer.Validate()
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCustomer_AvailableCredit(t *testing.T) {
	c := &Customer{CreditLimit: 50000, UsedCredit: 12000}
	assert.Equal(t, 38000.0, c.AvailableCredit())
}
