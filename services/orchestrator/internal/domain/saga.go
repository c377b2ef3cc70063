// Package domain содержит состояние саги покупки автомобиля — доменную
// сущность без зависимостей от инфраструктуры (GORM, шина, HTTP).
package domain

import (
	"time"

	"example.com/vehicle-saga/pkg/envelope"
)

// Status — состояние саги покупки.
type Status string

const (
	StatusStarted                          Status = "STARTED"
	StatusInProgress                       Status = "IN_PROGRESS"
	StatusCompensating                     Status = "COMPENSATING"
	StatusCancellationRequested            Status = "CANCELLATION_REQUESTED"
	StatusCancelling                       Status = "CANCELLING"
	StatusCompleted                        Status = "COMPLETED"
	StatusFailed                           Status = "FAILED"
	StatusFailedCompensated                Status = "FAILED_COMPENSATED"
	StatusCancelled                        Status = "CANCELLED"
	StatusCancellationFailed               Status = "CANCELLATION_FAILED"
	StatusFailedRequiresManualIntervention Status = "FAILED_REQUIRES_MANUAL_INTERVENTION"

	// StatusFailedInitialCommand — сага создана, но запись первой исходящей
	// команды (ReserveCredit) в outbox не удалась; ни один участник её не
	// увидит, повторный запуск саги по тому же transaction_id невозможен.
	StatusFailedInitialCommand Status = "FAILED_INITIAL_COMMAND"
)

// IsTerminal возвращает true для финальных статусов саги — дальнейшие
// переходы после них запрещены.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusFailedCompensated, StatusCancelled,
		StatusFailedRequiresManualIntervention, StatusFailedInitialCommand:
		return true
	default:
		return false
	}
}

// Step — значение current_step: последний пройденный шаг саги.
type Step string

const (
	StepCreditReservation     Step = "CREDIT_RESERVATION"
	StepVehicleReservation    Step = "VEHICLE_RESERVATION"
	StepPaymentCodeGeneration Step = "PAYMENT_CODE_GENERATION"
	StepPaymentProcessing     Step = "PAYMENT_PROCESSING"
	StepMarkVehicleAsSold     Step = "MARK_VEHICLE_AS_SOLD"
	StepSagaComplete          Step = "SAGA_COMPLETE"

	StepVehicleRelease       Step = "VEHICLE_RELEASE"
	StepCreditRelease        Step = "CREDIT_RELEASE"
	StepCompensationComplete Step = "COMPENSATION_COMPLETE"
	StepPaymentRefund        Step = "PAYMENT_REFUND"

	StepCancellationVehicleRelease Step = "CANCELLATION_VEHICLE_RELEASE"
	StepCancellationCreditRelease  Step = "CANCELLATION_CREDIT_RELEASE"
	StepCancellationComplete       Step = "CANCELLATION_COMPLETE"

	StepCreditReservationFailed Step = "CREDIT_RESERVATION_FAILED"
	StepPaymentRefundFailed     Step = "PAYMENT_REFUND_FAILED"
)

// PaymentMethod — способ списания у participant'а payment, отличается от
// payment_type (cash/credit) саги: сага всегда просит payment participant
// обработать платёж методом pix (see spec.md §4.1).
const PaymentMethodPix = "pix"

// SagaContext — структурированный мешок ключ/значение: причины ошибок,
// сгенерированный код оплаты, id платежа, исходный шаг на момент отмены,
// кэшированные снимки customer/vehicle. Хранится как JSON в БД.
type SagaContext struct {
	Error                string              `json:"error,omitempty"`
	CompensationError    string              `json:"compensation_error,omitempty"`
	PaymentCode          string              `json:"payment_code,omitempty"`
	PaymentID            string              `json:"payment_id,omitempty"`
	CancelledFromStep    Step                `json:"cancelled_from_step,omitempty"`
	CancellationReason   string              `json:"cancellation_reason,omitempty"`
	CancellationRequestedAt *time.Time       `json:"cancellation_requested_at,omitempty"`
	CustomerSnapshot     *CustomerSnapshot   `json:"customer_snapshot,omitempty"`
	VehicleSnapshot      *VehicleSnapshot    `json:"vehicle_snapshot,omitempty"`
	PendingRefund        bool                `json:"pending_refund,omitempty"`
}

// CustomerSnapshot — диагностический кэш данных покупателя на момент
// старта саги. Оркестратор никогда не считает этот кэш авторитетным.
type CustomerSnapshot struct {
	ID              string  `json:"id"`
	AccountBalance  float64 `json:"account_balance"`
	CreditLimit     float64 `json:"credit_limit"`
	AvailableCredit float64 `json:"available_credit"`
}

// VehicleSnapshot — диагностический кэш данных автомобиля на момент
// старта саги.
type VehicleSnapshot struct {
	ID    string  `json:"id"`
	Price float64 `json:"price"`
}

// Saga — авторитетная запись распределённой транзакции покупки.
type Saga struct {
	TransactionID string
	CustomerID    string
	VehicleID     string
	Amount        float64
	PaymentType   envelope.PaymentType
	Status        Status
	CurrentStep   Step
	Context       SagaContext
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewSaga создаёт новую сагу в начальном состоянии STARTED.
func NewSaga(transactionID, customerID, vehicleID string, amount float64, paymentType envelope.PaymentType) *Saga {
	return &Saga{
		TransactionID: transactionID,
		CustomerID:    customerID,
		VehicleID:     vehicleID,
		Amount:        amount,
		PaymentType:   paymentType,
		Status:        StatusStarted,
	}
}
