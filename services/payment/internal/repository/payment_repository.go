// Package repository содержит реализацию доступа к данным payment participant'а.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"example.com/vehicle-saga/services/payment/internal/domain"
)

// PaymentCodeRepository определяет интерфейс для работы с платёжными кодами.
type PaymentCodeRepository interface {
	Create(ctx context.Context, code *domain.PaymentCode) error
	GetByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentCode, error)
	GetByCode(ctx context.Context, code string) (*domain.PaymentCode, error)

	// MarkUsed атомарно помечает код использованным:
	// `UPDATE ... WHERE code = ? AND status = 'pending'`.
	MarkUsed(ctx context.Context, code string) error

	// GetExpiredPending возвращает просроченные, но ещё не помеченные коды —
	// используется периодическим sweeper'ом (SPEC_FULL.md §11 решение 3).
	GetExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.PaymentCode, error)
	MarkExpired(ctx context.Context, code string) error
}

// PaymentRepository определяет интерфейс для работы с записями о платежах.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, paymentID string) (*domain.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error)
	Update(ctx context.Context, payment *domain.Payment) error
}

// PaymentCodeModel — GORM модель таблицы payment_codes.
type PaymentCodeModel struct {
	Code          string    `gorm:"column:code;type:varchar(32);primaryKey"`
	TransactionID string    `gorm:"column:transaction_id;type:varchar(36);not null;uniqueIndex"`
	CustomerID    string    `gorm:"column:customer_id;type:varchar(36);not null"`
	VehicleID     string    `gorm:"column:vehicle_id;type:varchar(36);not null"`
	Amount        float64   `gorm:"column:amount;type:decimal(14,2);not null"`
	PaymentType   string    `gorm:"column:payment_type;type:varchar(10);not null"`
	Status        string    `gorm:"column:status;type:varchar(10);not null;index"`
	ExpiresAt     time.Time `gorm:"column:expires_at;not null;index"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentCodeModel) TableName() string { return "payment_codes" }

func (m *PaymentCodeModel) toDomain() *domain.PaymentCode {
	return &domain.PaymentCode{
		Code: m.Code, TransactionID: m.TransactionID, CustomerID: m.CustomerID, VehicleID: m.VehicleID,
		Amount: m.Amount, PaymentType: m.PaymentType, Status: domain.CodeStatus(m.Status),
		ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func codeModelFromDomain(c *domain.PaymentCode) *PaymentCodeModel {
	return &PaymentCodeModel{
		Code: c.Code, TransactionID: c.TransactionID, CustomerID: c.CustomerID, VehicleID: c.VehicleID,
		Amount: c.Amount, PaymentType: c.PaymentType, Status: string(c.Status),
		ExpiresAt: c.ExpiresAt, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

// PaymentModel — GORM модель таблицы payments.
type PaymentModel struct {
	ID            string    `gorm:"column:id;type:varchar(36);primaryKey"`
	TransactionID string    `gorm:"column:transaction_id;type:varchar(36);not null;uniqueIndex"`
	PaymentCode   string    `gorm:"column:payment_code;type:varchar(32);not null"`
	CustomerID    string    `gorm:"column:customer_id;type:varchar(36);not null"`
	VehicleID     string    `gorm:"column:vehicle_id;type:varchar(36);not null"`
	Amount        float64   `gorm:"column:amount;type:decimal(14,2);not null"`
	PaymentType   string    `gorm:"column:payment_type;type:varchar(10);not null"`
	PaymentMethod string    `gorm:"column:payment_method;type:varchar(50);not null"`
	Status        string    `gorm:"column:status;type:varchar(10);not null;index"`
	FailureReason *string   `gorm:"column:failure_reason;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentModel) TableName() string { return "payments" }

func (m *PaymentModel) toDomain() *domain.Payment {
	return &domain.Payment{
		ID: m.ID, TransactionID: m.TransactionID, PaymentCode: m.PaymentCode,
		CustomerID: m.CustomerID, VehicleID: m.VehicleID, Amount: m.Amount,
		PaymentType: m.PaymentType, PaymentMethod: m.PaymentMethod,
		Status: domain.PaymentStatus(m.Status), FailureReason: m.FailureReason,
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func paymentModelFromDomain(p *domain.Payment) *PaymentModel {
	return &PaymentModel{
		ID: p.ID, TransactionID: p.TransactionID, PaymentCode: p.PaymentCode,
		CustomerID: p.CustomerID, VehicleID: p.VehicleID, Amount: p.Amount,
		PaymentType: p.PaymentType, PaymentMethod: p.PaymentMethod,
		Status: string(p.Status), FailureReason: p.FailureReason,
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

// --- PaymentCodeRepository ---------------------------------------------------

type paymentCodeRepository struct {
	db *gorm.DB
}

// NewPaymentCodeRepository создаёт репозиторий платёжных кодов.
func NewPaymentCodeRepository(db *gorm.DB) PaymentCodeRepository {
	return &paymentCodeRepository{db: db}
}

func (r *paymentCodeRepository) Create(ctx context.Context, code *domain.PaymentCode) error {
	model := codeModelFromDomain(code)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKeyError(err) {
			return domain.ErrDuplicateTransaction
		}
		return err
	}
	code.CreatedAt, code.UpdatedAt = model.CreatedAt, model.UpdatedAt
	return nil
}

func (r *paymentCodeRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentCode, error) {
	var m PaymentCodeModel
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentCodeNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

func (r *paymentCodeRepository) GetByCode(ctx context.Context, code string) (*domain.PaymentCode, error) {
	var m PaymentCodeModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentCodeNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

func (r *paymentCodeRepository) MarkUsed(ctx context.Context, code string) error {
	res := r.db.WithContext(ctx).Model(&PaymentCodeModel{}).
		Where("code = ? AND status = ?", code, string(domain.CodeStatusPending)).
		Update("status", string(domain.CodeStatusUsed))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrPaymentCodeNotPending
	}
	return nil
}

func (r *paymentCodeRepository) GetExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.PaymentCode, error) {
	var models []PaymentCodeModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", string(domain.CodeStatusPending), now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	codes := make([]*domain.PaymentCode, 0, len(models))
	for i := range models {
		codes = append(codes, models[i].toDomain())
	}
	return codes, nil
}

func (r *paymentCodeRepository) MarkExpired(ctx context.Context, code string) error {
	res := r.db.WithContext(ctx).Model(&PaymentCodeModel{}).
		Where("code = ? AND status = ?", code, string(domain.CodeStatusPending)).
		Update("status", string(domain.CodeStatusExpired))
	return res.Error
}

// --- PaymentRepository --------------------------------------------------------

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository создаёт репозиторий платежей.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	model := paymentModelFromDomain(payment)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKeyError(err) {
			return domain.ErrDuplicateTransaction
		}
		return err
	}
	payment.CreatedAt, payment.UpdatedAt = model.CreatedAt, model.UpdatedAt
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	var m PaymentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

func (r *paymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	var m PaymentModel
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

func (r *paymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	model := paymentModelFromDomain(payment)
	res := r.db.WithContext(ctx).Model(&PaymentModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"status":         model.Status,
			"failure_reason": model.FailureReason,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
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
