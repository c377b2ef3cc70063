// Package domain содержит бизнес-сущности payment participant'а: платёжный
// код (одноразовый, с истечением срока) и запись о проведённом платеже.
package domain

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"time"
)

// CodeStatus — статус платёжного кода.
type CodeStatus string

const (
	CodeStatusPending CodeStatus = "pending"
	CodeStatusUsed     CodeStatus = "used"
	CodeStatusExpired  CodeStatus = "expired"
)

// CodeTTL — срок жизни платёжного кода с момента генерации (spec.md §4.4).
const CodeTTL = 30 * time.Minute

// PaymentCode — одноразовый код, по которому проводится оплата покупки.
type PaymentCode struct {
	Code          string
	TransactionID string
	CustomerID    string
	VehicleID     string
	Amount        float64
	PaymentType   string
	Status        CodeStatus
	ExpiresAt     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsExpired сообщает, истёк ли срок действия кода к моменту now.
func (c *PaymentCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// GenerateCode генерирует новый непредсказуемый платёжный код.
func GenerateCode() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

// PaymentStatus — статус проведённого платежа.
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// allowedTransitions определяет валидные переходы статуса платежа.
var allowedTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusCompleted: {PaymentStatusRefunded},
	// failed и refunded — терминальные статусы
}

// Payment — запись о проведённом платеже по покупке (spec.md §3 "Payment Record").
type Payment struct {
	ID            string
	TransactionID string
	PaymentCode   string
	CustomerID    string
	VehicleID     string
	Amount        float64
	PaymentType   string
	PaymentMethod string
	Status        PaymentStatus
	FailureReason *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CanTransitionTo проверяет, допустим ли переход в указанный статус.
func (p *Payment) CanTransitionTo(newStatus PaymentStatus) bool {
	allowed, ok := allowedTransitions[p.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// Refund переводит платёж в статус refunded.
func (p *Payment) Refund() error {
	if !p.CanTransitionTo(PaymentStatusRefunded) {
		return ErrInvalidTransition
	}
	p.Status = PaymentStatusRefunded
	p.UpdatedAt = time.Now()
	return nil
}

// Validate проверяет корректность полей платежа перед созданием.
func (p *Payment) Validate() error {
	if p.TransactionID == "" {
		return errors.New("transaction_id обязателен")
	}
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
