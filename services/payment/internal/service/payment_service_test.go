package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/vehicle-saga/pkg/envelope"
	"example.com/vehicle-saga/services/payment/internal/domain"
)

// mockCodeRepository — мок для PaymentCodeRepository.
type mockCodeRepository struct {
	mu            sync.Mutex
	byTransaction map[string]*domain.PaymentCode
	byCode        map[string]*domain.PaymentCode
}

func newMockCodeRepo() *mockCodeRepository {
	return &mockCodeRepository{
		byTransaction: make(map[string]*domain.PaymentCode),
		byCode:        make(map[string]*domain.PaymentCode),
	}
}

func (m *mockCodeRepository) Create(ctx context.Context, code *domain.PaymentCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byTransaction[code.TransactionID]; exists {
		return domain.ErrDuplicateTransaction
	}
	cp := *code
	m.byTransaction[code.TransactionID] = &cp
	m.byCode[code.Code] = &cp
	return nil
}

func (m *mockCodeRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.byTransaction[transactionID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrPaymentCodeNotFound
}

func (m *mockCodeRepository) GetByCode(ctx context.Context, code string) (*domain.PaymentCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.byCode[code]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrPaymentCodeNotFound
}

func (m *mockCodeRepository) MarkUsed(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byCode[code]
	if !ok || c.Status != domain.CodeStatusPending {
		return domain.ErrPaymentCodeNotPending
	}
	c.Status = domain.CodeStatusUsed
	m.byTransaction[c.TransactionID].Status = domain.CodeStatusUsed
	return nil
}

func (m *mockCodeRepository) GetExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.PaymentCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.PaymentCode
	for _, c := range m.byCode {
		if c.Status == domain.CodeStatusPending && now.After(c.ExpiresAt) {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *mockCodeRepository) MarkExpired(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.byCode[code]; ok {
		c.Status = domain.CodeStatusExpired
	}
	return nil
}

// mockPaymentRepository — мок для PaymentRepository.
type mockPaymentRepository struct {
	mu            sync.Mutex
	byID          map[string]*domain.Payment
	byTransaction map[string]*domain.Payment
}

func newMockPaymentRepo() *mockPaymentRepository {
	return &mockPaymentRepository{
		byID:          make(map[string]*domain.Payment),
		byTransaction: make(map[string]*domain.Payment),
	}
}

func (m *mockPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byTransaction[p.TransactionID]; exists {
		return domain.ErrDuplicateTransaction
	}
	cp := *p
	m.byID[p.ID] = &cp
	m.byTransaction[p.TransactionID] = &cp
	return nil
}

func (m *mockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byID[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *mockPaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byTransaction[transactionID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *mockPaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[p.ID]; !ok {
		return domain.ErrPaymentNotFound
	}
	cp := *p
	m.byID[p.ID] = &cp
	m.byTransaction[p.TransactionID] = &cp
	return nil
}

func setupTest(t *testing.T) (*mockCodeRepository, *mockPaymentRepository, PaymentService) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	codeRepo := newMockCodeRepo()
	paymentRepo := newMockPaymentRepo()
	svc := NewPaymentService(codeRepo, paymentRepo, rdb)
	return codeRepo, paymentRepo, svc
}

func TestPaymentService_GeneratePaymentCode_Success(t *testing.T) {
	_, _, svc := setupTest(t)

	code, err := svc.GeneratePaymentCode(context.Background(), "tx-1", "customer-1", "vehicle-1", 75000, envelope.PaymentTypeCash)

	require.NoError(t, err)
	require.NotNil(t, code)
	assert.NotEmpty(t, code.Code)
	assert.Equal(t, domain.CodeStatusPending, code.Status)
	assert.WithinDuration(t, time.Now().Add(domain.CodeTTL), code.ExpiresAt, 2*time.Second)
}

func TestPaymentService_GeneratePaymentCode_Idempotent(t *testing.T) {
	_, _, svc := setupTest(t)

	first, err := svc.GeneratePaymentCode(context.Background(), "tx-idem", "customer-1", "vehicle-1", 75000, envelope.PaymentTypeCash)
	require.NoError(t, err)

	second, err := svc.GeneratePaymentCode(context.Background(), "tx-idem", "customer-1", "vehicle-1", 75000, envelope.PaymentTypeCash)
	require.NoError(t, err)

	assert.Equal(t, first.Code, second.Code)
}

func TestPaymentService_GeneratePaymentCode_InvalidAmount(t *testing.T) {
	_, _, svc := setupTest(t)

	_, err := svc.GeneratePaymentCode(context.Background(), "tx-invalid", "customer-1", "vehicle-1", 0, envelope.PaymentTypeCash)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestPaymentService_ProcessPayment_Success(t *testing.T) {
	_, paymentRepo, svc := setupTest(t)

	code, err := svc.GeneratePaymentCode(context.Background(), "tx-process", "customer-1", "vehicle-1", 75000, envelope.PaymentTypeCash)
	require.NoError(t, err)

	payment, err := svc.ProcessPayment(context.Background(), "tx-process", code.Code, "bank_transfer")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, payment.Status)

	saved, err := paymentRepo.GetByTransactionID(context.Background(), "tx-process")
	require.NoError(t, err)
	assert.Equal(t, payment.ID, saved.ID)
}

func TestPaymentService_ProcessPayment_UnknownCode(t *testing.T) {
	_, _, svc := setupTest(t)

	_, err := svc.ProcessPayment(context.Background(), "tx-unknown", "BADCODE", "cash")
	assert.ErrorIs(t, err, domain.ErrPaymentCodeNotFound)
}

func TestPaymentService_ProcessPayment_ExpiredCode(t *testing.T) {
	codeRepo, _, svc := setupTest(t)

	expired := &domain.PaymentCode{
		Code: "EXPIREDCODE", TransactionID: "tx-expired", CustomerID: "c1", VehicleID: "v1",
		Amount: 75000, PaymentType: "cash", Status: domain.CodeStatusPending,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, codeRepo.Create(context.Background(), expired))

	_, err := svc.ProcessPayment(context.Background(), "tx-expired", "EXPIREDCODE", "cash")
	assert.ErrorIs(t, err, domain.ErrPaymentCodeExpired)
}

func TestPaymentService_ProcessPayment_Idempotent(t *testing.T) {
	_, _, svc := setupTest(t)

	code, err := svc.GeneratePaymentCode(context.Background(), "tx-idem-proc", "customer-1", "vehicle-1", 75000, envelope.PaymentTypeCash)
	require.NoError(t, err)

	first, err := svc.ProcessPayment(context.Background(), "tx-idem-proc", code.Code, "cash")
	require.NoError(t, err)

	second, err := svc.ProcessPayment(context.Background(), "tx-idem-proc", code.Code, "cash")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestPaymentService_RefundPayment_Success(t *testing.T) {
	_, paymentRepo, svc := setupTest(t)

	payment := &domain.Payment{
		ID: "payment-1", TransactionID: "tx-refund", PaymentCode: "CODE1",
		CustomerID: "c1", VehicleID: "v1", Amount: 75000, PaymentType: "cash",
		PaymentMethod: "cash", Status: domain.PaymentStatusCompleted,
	}
	require.NoError(t, paymentRepo.Create(context.Background(), payment))

	refunded, err := svc.RefundPayment(context.Background(), "tx-refund", "payment-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, refunded.Status)
}

func TestPaymentService_RefundPayment_Failed(t *testing.T) {
	_, paymentRepo, svc := setupTest(t)

	payment := &domain.Payment{
		ID: "payment-2", TransactionID: "tx-refund-failed", PaymentCode: "CODE2",
		Amount: 75000, Status: domain.PaymentStatusFailed,
	}
	require.NoError(t, paymentRepo.Create(context.Background(), payment))

	_, err := svc.RefundPayment(context.Background(), "tx-refund-failed", "payment-2")
	assert.ErrorIs(t, err, domain.ErrPaymentFailed)
}

func TestPaymentService_RefundPayment_NotFound(t *testing.T) {
	_, _, svc := setupTest(t)

	_, err := svc.RefundPayment(context.Background(), "tx-missing", "payment-x")
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestPaymentService_ExpirePaymentCodes(t *testing.T) {
	codeRepo, _, svc := setupTest(t)

	expired1 := &domain.PaymentCode{
		Code: "EXP1", TransactionID: "tx-exp-1", Status: domain.CodeStatusPending,
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	expired2 := &domain.PaymentCode{
		Code: "EXP2", TransactionID: "tx-exp-2", Status: domain.CodeStatusPending,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	stillValid := &domain.PaymentCode{
		Code: "VALID1", TransactionID: "tx-valid-1", Status: domain.CodeStatusPending,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, codeRepo.Create(context.Background(), expired1))
	require.NoError(t, codeRepo.Create(context.Background(), expired2))
	require.NoError(t, codeRepo.Create(context.Background(), stillValid))

	count, err := svc.ExpirePaymentCodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	valid, err := codeRepo.GetByCode(context.Background(), "VALID1")
	require.NoError(t, err)
	assert.Equal(t, domain.CodeStatusPending, valid.Status)
}
