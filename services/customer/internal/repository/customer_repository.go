// Package repository содержит реализацию доступа к данным credit participant'а.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/vehicle-saga/services/customer/internal/domain"
)

// CustomerRepository определяет интерфейс для работы с покупателями в БД.
type CustomerRepository interface {
	Create(ctx context.Context, c *domain.Customer) error
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	Update(ctx context.Context, c *domain.Customer) error

	// ReserveCredit выполняет ReserveCredit атомарно вместе с вставкой строки
	// ledger внутри одной транзакции; fn принимает текущего покупателя и
	// возвращает либо обновлённую сущность, либо доменную ошибку отказа.
	// Если строка ledger для (transactionID, reserve) уже существует,
	// возвращает ErrAlreadyApplied без вызова fn (идемпотентность).
	ReserveCredit(ctx context.Context, transactionID, customerID string, amount float64, paymentType string, fn func(c *domain.Customer) error) error

	// ReleaseCredit — симметрично ReserveCredit для операции release.
	ReleaseCredit(ctx context.Context, transactionID, customerID string, amount float64, paymentType string, fn func(c *domain.Customer) error) error
}

// ErrAlreadyApplied сигнализирует репозиторию и вызывающей стороне, что
// операция для этой пары (transaction_id, operation) уже была применена —
// повторная доставка команды не должна менять баланс ещё раз.
var ErrAlreadyApplied = errors.New("операция саги уже применена")

// CustomerModel — GORM модель таблицы customers.
type CustomerModel struct {
	ID             string    `gorm:"column:id;type:varchar(36);primaryKey"`
	Name           string    `gorm:"column:name;type:varchar(100);not null"`
	Email          string    `gorm:"column:email;type:varchar(255);uniqueIndex;not null"`
	Document       string    `gorm:"column:document;type:varchar(32);uniqueIndex;not null"`
	AccountBalance float64   `gorm:"column:account_balance;type:decimal(14,2);not null"`
	CreditLimit    float64   `gorm:"column:credit_limit;type:decimal(14,2);not null"`
	UsedCredit     float64   `gorm:"column:used_credit;type:decimal(14,2);not null;default:0"`
	Status         string    `gorm:"column:status;type:varchar(20);not null;default:active"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CustomerModel) TableName() string { return "customers" }

// LedgerModel — GORM модель applied-transactions ledger (SPEC_FULL.md §11
// решение 2): одна строка на применённую пару (transaction_id, operation).
type LedgerModel struct {
	TransactionID string    `gorm:"column:transaction_id;type:varchar(36);primaryKey"`
	Operation     string    `gorm:"column:operation;type:varchar(10);primaryKey"`
	CustomerID    string    `gorm:"column:customer_id;type:varchar(36);not null;index"`
	Amount        float64   `gorm:"column:amount;type:decimal(14,2);not null"`
	PaymentType   string    `gorm:"column:payment_type;type:varchar(10);not null"`
	AppliedAt     time.Time `gorm:"column:applied_at;autoCreateTime"`
}

func (LedgerModel) TableName() string { return "credit_ledger" }

func (m *CustomerModel) toDomain() *domain.Customer {
	return &domain.Customer{
		ID: m.ID, Name: m.Name, Email: m.Email, Document: m.Document,
		AccountBalance: m.AccountBalance, CreditLimit: m.CreditLimit, UsedCredit: m.UsedCredit,
		Status: m.Status, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func fromDomain(c *domain.Customer) *CustomerModel {
	return &CustomerModel{
		ID: c.ID, Name: c.Name, Email: c.Email, Document: c.Document,
		AccountBalance: c.AccountBalance, CreditLimit: c.CreditLimit, UsedCredit: c.UsedCredit,
		Status: c.Status, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

type customerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository создаёт репозиторий покупателей.
func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Create(ctx context.Context, c *domain.Customer) error {
	m := fromDomain(c)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isDuplicateKeyError(err) {
			return domain.ErrEmailExists
		}
		return err
	}
	c.CreatedAt, c.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	var m CustomerModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

func (r *customerRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	var m CustomerModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

func (r *customerRepository) Update(ctx context.Context, c *domain.Customer) error {
	m := fromDomain(c)
	return r.db.WithContext(ctx).Model(&CustomerModel{}).Where("id = ?", c.ID).Updates(m).Error
}

func (r *customerRepository) ReserveCredit(ctx context.Context, transactionID, customerID string, amount float64, paymentType string, fn func(c *domain.Customer) error) error {
	return r.applyLedgered(ctx, transactionID, customerID, amount, paymentType, domain.LedgerOperationReserve, fn)
}

func (r *customerRepository) ReleaseCredit(ctx context.Context, transactionID, customerID string, amount float64, paymentType string, fn func(c *domain.Customer) error) error {
	return r.applyLedgered(ctx, transactionID, customerID, amount, paymentType, domain.LedgerOperationRelease, fn)
}

// applyLedgered — один шаблон для Reserve/Release: в одной транзакции
// проверяет наличие строки ledger (идемпотентность), блокирует строку
// покупателя на запись, применяет fn и персистирует обе мутации вместе.
func (r *customerRepository) applyLedgered(ctx context.Context, transactionID, customerID string, amount float64, paymentType string, op domain.LedgerOperation, fn func(c *domain.Customer) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing LedgerModel
		err := tx.Where("transaction_id = ? AND operation = ?", transactionID, op).First(&existing).Error
		if err == nil {
			return ErrAlreadyApplied
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var m CustomerModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", customerID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrCustomerNotFound
			}
			return err
		}

		c := m.toDomain()
		if ferr := fn(c); ferr != nil {
			return ferr
		}

		if err := tx.Model(&CustomerModel{}).Where("id = ?", customerID).Updates(map[string]any{
			"account_balance": c.AccountBalance,
			"used_credit":     c.UsedCredit,
			"updated_at":      time.Now(),
		}).Error; err != nil {
			return err
		}

		return tx.Create(&LedgerModel{
			TransactionID: transactionID,
			Operation:     string(op),
			CustomerID:    customerID,
			Amount:        amount,
			PaymentType:   paymentType,
		}).Error
	})
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
