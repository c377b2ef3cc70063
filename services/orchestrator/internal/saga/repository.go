package saga

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/vehicle-saga/pkg/bus"
	"example.com/vehicle-saga/pkg/envelope"
	"example.com/vehicle-saga/pkg/logger"
	outboxpkg "example.com/vehicle-saga/pkg/outbox"
	"example.com/vehicle-saga/services/orchestrator/internal/domain"
)

// aggregateType — значение outbox.AggregateType для записей, создаваемых
// оркестратором.
const aggregateType = "saga"

// SagaModel — GORM модель таблицы saga_states.
type SagaModel struct {
	TransactionID string    `gorm:"column:transaction_id;type:varchar(36);primaryKey"`
	CustomerID    string    `gorm:"column:customer_id;type:varchar(36);not null;index"`
	VehicleID     string    `gorm:"column:vehicle_id;type:varchar(36);not null;index"`
	Amount        float64   `gorm:"column:amount;type:decimal(14,2);not null"`
	PaymentType   string    `gorm:"column:payment_type;type:varchar(10);not null"`
	Status        string    `gorm:"column:status;type:varchar(40);not null;index"`
	CurrentStep   string    `gorm:"column:current_step;type:varchar(40)"`
	Context       []byte    `gorm:"column:context;type:json"`
	Version       int       `gorm:"column:version;not null;default:1"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (SagaModel) TableName() string { return "saga_states" }

func (m *SagaModel) toDomain() *domain.Saga {
	s := &domain.Saga{
		TransactionID: m.TransactionID,
		CustomerID:    m.CustomerID,
		VehicleID:     m.VehicleID,
		Amount:        m.Amount,
		PaymentType:   envelope.PaymentType(m.PaymentType),
		Status:        domain.Status(m.Status),
		CurrentStep:   domain.Step(m.CurrentStep),
		Version:       m.Version,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if len(m.Context) > 0 {
		var sc domain.SagaContext
		if err := json.Unmarshal(m.Context, &sc); err != nil {
			logger.Error().Err(err).Str("transaction_id", m.TransactionID).Msg("Ошибка десериализации context саги")
		} else {
			s.Context = sc
		}
	}
	return s
}

func modelFromDomain(s *domain.Saga) *SagaModel {
	m := &SagaModel{
		TransactionID: s.TransactionID,
		CustomerID:    s.CustomerID,
		VehicleID:     s.VehicleID,
		Amount:        s.Amount,
		PaymentType:   string(s.PaymentType),
		Status:        string(s.Status),
		CurrentStep:   string(s.CurrentStep),
		Version:       s.Version,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	if data, err := json.Marshal(s.Context); err != nil {
		logger.Error().Err(err).Str("transaction_id", s.TransactionID).Msg("Ошибка сериализации context саги")
	} else {
		m.Context = data
	}
	return m
}

// Repository определяет работу с таблицей saga_states. UpdateWithCommands
// атомарно сохраняет сагу вместе с сопутствующими outbox записями;
// CreateWithCommands пишет их в двух отдельных транзакциях.
type Repository interface {
	GetByID(ctx context.Context, transactionID string) (*domain.Saga, error)

	// CreateWithCommands создаёт новую сагу, затем отдельной транзакцией —
	// outbox записи для каждой исходящей команды перехода; если вторая запись
	// не удалась, сага переводится в FAILED_INITIAL_COMMAND и ошибка возвращается.
	CreateWithCommands(ctx context.Context, s *domain.Saga, commands []Command) error

	// UpdateWithCommands атомарно обновляет сагу (с optimistic lock по
	// version) и создаёт outbox записи для исходящих команд.
	UpdateWithCommands(ctx context.Context, s *domain.Saga, commands []Command) error

	// GetStuckInProgress возвращает саги в нетерминальном статусе, не
	// обновлявшиеся с stuckSince — используется Timeout Worker'ом.
	GetStuckInProgress(ctx context.Context, stuckSince time.Time, limit int) ([]*domain.Saga, error)
}

type repository struct {
	db        *gorm.DB
	projectID string
}

// NewRepository создаёт GORM-репозиторий саг. projectID используется как
// namespace-префикс топиков шины (см. bus.CommandTopic) и может быть пустым.
func NewRepository(db *gorm.DB, projectID string) Repository {
	return &repository{db: db, projectID: projectID}
}

func (r *repository) GetByID(ctx context.Context, transactionID string) (*domain.Saga, error) {
	var m SagaModel
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSagaNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

// CreateWithCommands персистирует новую сагу, затем отдельной транзакцией
// записывает в outbox исходящую команду ReserveCredit. Эти два шага намеренно
// не объединены в одну транзакцию: если сага уже создана, но первая команда
// так и не встала в outbox, ни один участник её не увидит, а сага должна
// навсегда остаться видимой вызывающей стороне в терминальном статусе
// FAILED_INITIAL_COMMAND, а не исчезнуть вместе с откатом.
func (r *repository) CreateWithCommands(ctx context.Context, s *domain.Saga, commands []Command) error {
	m := modelFromDomain(s)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	s.CreatedAt = m.CreatedAt
	s.UpdatedAt = m.UpdatedAt
	s.Version = m.Version

	outboxErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.createOutboxRecords(tx, s.TransactionID, commands)
	})
	if outboxErr == nil {
		return nil
	}

	s.Status = domain.StatusFailedInitialCommand
	if markErr := r.db.WithContext(ctx).Model(&SagaModel{}).
		Where("transaction_id = ?", s.TransactionID).
		Updates(map[string]any{"status": string(domain.StatusFailedInitialCommand), "updated_at": time.Now()}).Error; markErr != nil {
		logger.Error().Err(markErr).Str("transaction_id", s.TransactionID).
			Msg("Не удалось пометить сагу FAILED_INITIAL_COMMAND после сбоя записи первой команды в outbox")
	}
	return outboxErr
}

func (r *repository) UpdateWithCommands(ctx context.Context, s *domain.Saga, commands []Command) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := modelFromDomain(s)
		result := tx.Model(&SagaModel{}).
			Where("transaction_id = ? AND version = ?", s.TransactionID, s.Version).
			Updates(map[string]any{
				"status":       m.Status,
				"current_step": m.CurrentStep,
				"context":      m.Context,
				"version":      gorm.Expr("version + 1"),
				"updated_at":   time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrSagaConcurrentUpdate
		}
		s.Version++

		return r.createOutboxRecords(tx, s.TransactionID, commands)
	})
}

func (r *repository) GetStuckInProgress(ctx context.Context, stuckSince time.Time, limit int) ([]*domain.Saga, error) {
	var models []SagaModel
	nonTerminal := []string{
		string(domain.StatusStarted), string(domain.StatusInProgress),
		string(domain.StatusCompensating), string(domain.StatusCancellationRequested),
		string(domain.StatusCancelling),
	}
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", nonTerminal, stuckSince).
		Order("updated_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	result := make([]*domain.Saga, len(models))
	for i := range models {
		result[i] = models[i].toDomain()
	}
	return result, nil
}

// createOutboxRecords конвертирует команды перехода в записи outbox внутри
// переданной транзакции.
func (r *repository) createOutboxRecords(tx *gorm.DB, transactionID string, commands []Command) error {
	for _, c := range commands {
		payload, err := envelope.Marshal(c.Body)
		if err != nil {
			return err
		}
		topic := bus.CommandTopic(r.projectID, c.Domain, c.Verb)
		if c.IsEvent {
			topic = bus.EventTopic(r.projectID, c.Domain, c.Verb)
		}
		outboxRecord := &outboxpkg.Outbox{
			ID:            uuid.NewString(),
			AggregateType: aggregateType,
			AggregateID:   transactionID,
			EventType:     c.Domain + "." + c.Verb,
			Topic:         topic,
			MessageKey:    transactionID,
			Payload:       payload,
			Headers:       map[string]string{"transaction_id": transactionID},
		}
		if err := tx.Create(outboxpkg.ModelFromDomain(outboxRecord)).Error; err != nil {
			return err
		}
	}
	return nil
}
