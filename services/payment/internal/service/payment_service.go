// Package service содержит бизнес-логику Payment Service.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"example.com/vehicle-saga/pkg/envelope"
	"example.com/vehicle-saga/pkg/logger"
	"example.com/vehicle-saga/services/payment/internal/domain"
	"example.com/vehicle-saga/services/payment/internal/repository"
)

// idempotencyKeyPrefix — префикс для ключей идемпотентности в Redis.
const idempotencyKeyPrefix = "payment:idempotency:"

// idempotencyTTL — время жизни ключа идемпотентности в Redis.
const idempotencyTTL = 24 * time.Hour

// PaymentService — интерфейс бизнес-логики платёжного participant'а.
type PaymentService interface {
	// GeneratePaymentCode создаёт одноразовый платёжный код для покупки.
	// Идемпотентна по transaction_id: повторный вызов возвращает уже созданный код.
	GeneratePaymentCode(ctx context.Context, transactionID, customerID, vehicleID string, amount float64, paymentType envelope.PaymentType) (*domain.PaymentCode, error)

	// ProcessPayment проводит оплату по ранее сгенерированному коду.
	// Идемпотентна по transaction_id.
	ProcessPayment(ctx context.Context, transactionID, paymentCode, paymentMethod string) (*domain.Payment, error)

	// RefundPayment выполняет возврат платежа, привязанного к transaction_id.
	RefundPayment(ctx context.Context, transactionID, paymentID string) (*domain.Payment, error)

	// ExpirePaymentCodes помечает просроченные pending-коды как expired.
	// Вызывается периодическим sweeper'ом.
	ExpirePaymentCodes(ctx context.Context) (int, error)
}

type paymentService struct {
	codeRepo    repository.PaymentCodeRepository
	paymentRepo repository.PaymentRepository
	redis       *redis.Client
}

// NewPaymentService создаёт сервис payment participant'а.
func NewPaymentService(codeRepo repository.PaymentCodeRepository, paymentRepo repository.PaymentRepository, redisClient *redis.Client) PaymentService {
	return &paymentService{codeRepo: codeRepo, paymentRepo: paymentRepo, redis: redisClient}
}

func (s *paymentService) GeneratePaymentCode(ctx context.Context, transactionID, customerID, vehicleID string, amount float64, paymentType envelope.PaymentType) (*domain.PaymentCode, error) {
	log := logger.Ctx(ctx)

	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	idempotencyKey := idempotencyKeyPrefix + "generate:" + transactionID
	wasSet, err := s.redis.SetNX(ctx, idempotencyKey, "processing", idempotencyTTL).Result()
	if err != nil {
		log.Warn().Err(err).Str("transaction_id", transactionID).Msg("ошибка redis при проверке идемпотентности, продолжаем через БД")
	}
	if err == nil && !wasSet {
		if existing, dbErr := s.codeRepo.GetByTransactionID(ctx, transactionID); dbErr == nil {
			log.Info().Str("transaction_id", transactionID).Str("code", existing.Code).Msg("платёжный код уже сгенерирован (идемпотентность)")
			return existing, nil
		}
	}

	code, err := domain.GenerateCode()
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации кода: %w", err)
	}

	now := time.Now()
	pc := &domain.PaymentCode{
		Code:          code,
		TransactionID: transactionID,
		CustomerID:    customerID,
		VehicleID:     vehicleID,
		Amount:        amount,
		PaymentType:   string(paymentType),
		Status:        domain.CodeStatusPending,
		ExpiresAt:     now.Add(domain.CodeTTL),
	}

	if err := s.codeRepo.Create(ctx, pc); err != nil {
		if errors.Is(err, domain.ErrDuplicateTransaction) {
			existing, dbErr := s.codeRepo.GetByTransactionID(ctx, transactionID)
			if dbErr == nil {
				log.Info().Str("transaction_id", transactionID).Msg("платёжный код уже существует (гонка)")
				return existing, nil
			}
		}
		return nil, fmt.Errorf("ошибка сохранения платёжного кода: %w", err)
	}

	log.Info().Str("transaction_id", transactionID).Str("code", pc.Code).Time("expires_at", pc.ExpiresAt).Msg("платёжный код сгенерирован")
	return pc, nil
}

func (s *paymentService) ProcessPayment(ctx context.Context, transactionID, paymentCode, paymentMethod string) (*domain.Payment, error) {
	log := logger.Ctx(ctx)

	idempotencyKey := idempotencyKeyPrefix + "process:" + transactionID
	if _, err := s.redis.SetNX(ctx, idempotencyKey, "processing", idempotencyTTL).Result(); err != nil {
		log.Warn().Err(err).Str("transaction_id", transactionID).Msg("ошибка redis при проверке идемпотентности, продолжаем через БД")
	}
	if existing, dbErr := s.paymentRepo.GetByTransactionID(ctx, transactionID); dbErr == nil {
		log.Info().Str("transaction_id", transactionID).Str("payment_id", existing.ID).Msg("платёж уже обработан (идемпотентность)")
		return existing, nil
	}

	code, err := s.codeRepo.GetByCode(ctx, paymentCode)
	if err != nil {
		return nil, err
	}
	if code.TransactionID != transactionID {
		return nil, domain.ErrPaymentCodeNotFound
	}
	if code.Status != domain.CodeStatusPending {
		return nil, domain.ErrPaymentCodeNotPending
	}
	if code.IsExpired(time.Now()) {
		return nil, domain.ErrPaymentCodeExpired
	}

	if err := s.codeRepo.MarkUsed(ctx, code.Code); err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		ID:            uuid.New().String(),
		TransactionID: transactionID,
		PaymentCode:   code.Code,
		CustomerID:    code.CustomerID,
		VehicleID:     code.VehicleID,
		Amount:        code.Amount,
		PaymentType:   code.PaymentType,
		PaymentMethod: paymentMethod,
		Status:        domain.PaymentStatusCompleted,
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		if errors.Is(err, domain.ErrDuplicateTransaction) {
			existing, dbErr := s.paymentRepo.GetByTransactionID(ctx, transactionID)
			if dbErr == nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("ошибка сохранения платежа: %w", err)
	}

	log.Info().Str("transaction_id", transactionID).Str("payment_id", payment.ID).Msg("платёж проведён")
	return payment, nil
}

func (s *paymentService) RefundPayment(ctx context.Context, transactionID, paymentID string) (*domain.Payment, error) {
	log := logger.Ctx(ctx)

	payment, err := s.paymentRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	if payment.Status == domain.PaymentStatusRefunded {
		log.Info().Str("transaction_id", transactionID).Msg("платёж уже возвращён (идемпотентность)")
		return payment, nil
	}
	if payment.Status == domain.PaymentStatusFailed {
		return nil, domain.ErrPaymentFailed
	}

	if err := payment.Refund(); err != nil {
		return nil, err
	}

	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		return nil, fmt.Errorf("ошибка обновления платежа: %w", err)
	}

	log.Info().Str("transaction_id", transactionID).Str("payment_id", payment.ID).Msg("возврат платежа выполнен")
	return payment, nil
}

// ExpirePaymentCodes помечает просроченные pending-коды как expired.
// Грубый аналог RecoverStuckPayments: период. sweep тех кодов, чей expires_at
// прошёл, но статус не был вовремя изменён (например, клиент так и не обратился
// за оплатой).
func (s *paymentService) ExpirePaymentCodes(ctx context.Context) (int, error) {
	log := logger.Ctx(ctx)

	expired, err := s.codeRepo.GetExpiredPending(ctx, time.Now(), 100)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения просроченных кодов: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	count := 0
	for _, code := range expired {
		if err := s.codeRepo.MarkExpired(ctx, code.Code); err != nil {
			log.Warn().Err(err).Str("code", code.Code).Msg("не удалось пометить код истёкшим")
			continue
		}
		count++
	}

	if count > 0 {
		log.Info().Int("count", count).Msg("просроченные платёжные коды помечены")
	}
	return count, nil
}
