// Package domain содержит бизнес-сущности и доменные ошибки credit
// participant'а: учётную запись покупателя (баланс + кредитная линия) и
// запись применённой операции саги (ledger).
package domain

import (
	"regexp"
	"strings"
	"time"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Customer — учётная запись покупателя, участвующая в резервировании и
// списании средств саги покупки (spec.md §3 "Credit Account").
type Customer struct {
	ID          string
	Name        string
	Email       string
	Document    string // ИНН/паспорт — уникальный внешний идентификатор
	AccountBalance float64
	CreditLimit    float64
	UsedCredit     float64
	Status      string // active, suspended
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// AvailableCredit возвращает остаток кредитной линии, доступный для
// резервирования.
func (c *Customer) AvailableCredit() float64 {
	return c.CreditLimit - c.UsedCredit
}

// Validate проверяет корректность полей учётной записи перед созданием.
func (c *Customer) Validate() error {
	if err := c.ValidateEmail(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(c.Document) == "" {
		return ErrEmptyDocument
	}
	return nil
}

// ValidateEmail проверяет корректность email.
func (c *Customer) ValidateEmail() error {
	email := strings.TrimSpace(c.Email)
	if email == "" || !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// LedgerOperation — тип применённой операции саги, хранится в ledger для
// идемпотентности ReserveCredit/ReleaseCredit (SPEC_FULL.md §11 решение 2).
type LedgerOperation string

const (
	LedgerOperationReserve LedgerOperation = "reserve"
	LedgerOperationRelease LedgerOperation = "release"
)

// AppliedTransaction — запись о применённой операции саги: одна строка на
// пару (transaction_id, operation), проверяемая перед мутацией баланса,
// чтобы повторная доставка команды не применила эффект дважды.
type AppliedTransaction struct {
	TransactionID string
	Operation     LedgerOperation
	CustomerID    string
	Amount        float64
	PaymentType   string
	AppliedAt     time.Time
}
