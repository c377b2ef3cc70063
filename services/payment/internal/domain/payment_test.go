package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentCode_IsExpired(t *testing.T) {
	now := time.Now()
	code := &PaymentCode{ExpiresAt: now.Add(30 * time.Minute)}

	assert.False(t, code.IsExpired(now))
	assert.False(t, code.IsExpired(now.Add(29*time.Minute)))
	assert.True(t, code.IsExpired(now.Add(31*time.Minute)))
}

func TestGenerateCode_Unique(t *testing.T) {
	a, err := GenerateCode()
	require.NoError(t, err)
	b, err := GenerateCode()
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestPayment_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name      string
		from      PaymentStatus
		to        PaymentStatus
		canChange bool
	}{
		{"completed -> refunded", PaymentStatusCompleted, PaymentStatusRefunded, true},
		{"completed -> failed", PaymentStatusCompleted, PaymentStatusFailed, false},
		{"failed -> refunded", PaymentStatusFailed, PaymentStatusRefunded, false},
		{"refunded -> refunded", PaymentStatusRefunded, PaymentStatusRefunded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Payment{Status: tt.from}
			assert.Equal(t, tt.canChange, p.CanTransitionTo(tt.to))
		})
	}
}

func TestPayment_Refund(t *testing.T) {
	t.Run("успешный возврат из completed", func(t *testing.T) {
		p := newTestPayment(PaymentStatusCompleted)

		err := p.Refund()

		require.NoError(t, err)
		assert.Equal(t, PaymentStatusRefunded, p.Status)
	})

	t.Run("ошибка возврата из failed", func(t *testing.T) {
		p := newTestPayment(PaymentStatusFailed)

		err := p.Refund()

		require.Error(t, err)
		assert.Equal(t, PaymentStatusFailed, p.Status)
	})

	t.Run("ошибка повторного возврата", func(t *testing.T) {
		p := newTestPayment(PaymentStatusRefunded)

		err := p.Refund()

		require.Error(t, err)
	})
}

func TestPayment_Validate(t *testing.T) {
	tests := []struct {
		name    string
		payment *Payment
		wantErr bool
	}{
		{
			name:    "валидный платёж",
			payment: newTestPayment(PaymentStatusCompleted),
			wantErr: false,
		},
		{
			name:    "пустой transaction_id",
			payment: &Payment{Amount: 1000},
			wantErr: true,
		},
		{
			name:    "нулевая сумма",
			payment: &Payment{TransactionID: "tx-1", Amount: 0},
			wantErr: true,
		},
		{
			name:    "отрицательная сумма",
			payment: &Payment{TransactionID: "tx-1", Amount: -100},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payment.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func newTestPayment(status PaymentStatus) *Payment {
	return &Payment{
		ID:            "payment-test-123",
		TransactionID: "tx-123",
		PaymentCode:   "ABCDEFGH",
		CustomerID:    "customer-123",
		VehicleID:     "vehicle-123",
		Amount:        75000,
		PaymentType:   "cash",
		PaymentMethod: "card",
		Status:        status,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}
