// Package envelope содержит общую схему команд и событий саги покупки
// автомобиля. Единый источник правды для всех четырёх сервисов — исключает
// рассинхронизацию полей между оркестратором и участниками (spec §4.5, §6).
package envelope

import (
	"encoding/json"
	"time"
)

// PaymentType — способ оплаты, сквозной для всей саги.
type PaymentType string

const (
	PaymentTypeCash   PaymentType = "cash"
	PaymentTypeCredit PaymentType = "credit"
)

// Доменные имена для топиков commands.<domain>.<verb> / events.<domain>.<past>.
const (
	DomainCredit  = "credit"
	DomainVehicle = "vehicle"
	DomainPayment = "payment"
	DomainSaga    = "saga"
)

// Глаголы команд (часть имени топика commands.<domain>.<verb>).
const (
	VerbReserve        = "reserve"
	VerbRelease        = "release"
	VerbGenerateCode   = "generate_code"
	VerbProcess        = "process"
	VerbRefund         = "refund"
)

// Причастия прошедшего времени для событий (events.<domain>.<past>).
const (
	PastReserved            = "reserved"
	PastReservationFailed   = "reservation_failed"
	PastReleased            = "released"
	PastCodeGenerated       = "code_generated"
	PastCodeGenerationFailed = "code_generation_failed"
	PastProcessed           = "processed"
	PastFailed              = "failed"
	PastRefunded            = "refunded"
	PastRefundFailed        = "refund_failed"
	PastCancelled           = "cancelled"
	PastCancellationFailed  = "cancellation_failed"
)

// --- Команды ---------------------------------------------------------------

// ReserveCreditCmd запрашивает резервирование средств у credit-участника.
type ReserveCreditCmd struct {
	TransactionID string      `json:"transaction_id"`
	CustomerID    string      `json:"customer_id"`
	Amount        float64     `json:"amount"`
	PaymentType   PaymentType `json:"payment_type"`
}

// ReleaseCreditCmd запрашивает обратное освобождение средств.
type ReleaseCreditCmd struct {
	TransactionID string      `json:"transaction_id"`
	CustomerID    string      `json:"customer_id"`
	Amount        float64     `json:"amount"`
	PaymentType   PaymentType `json:"payment_type"`
}

// ReserveVehicleCmd запрашивает резервирование автомобиля.
type ReserveVehicleCmd struct {
	TransactionID string `json:"transaction_id"`
	VehicleID     string `json:"vehicle_id"`
}

// ReleaseVehicleCmd запрашивает снятие резерва с автомобиля.
type ReleaseVehicleCmd struct {
	TransactionID string `json:"transaction_id"`
	VehicleID     string `json:"vehicle_id"`
}

// GeneratePaymentCodeCmd запрашивает генерацию платёжного кода.
type GeneratePaymentCodeCmd struct {
	TransactionID string      `json:"transaction_id"`
	CustomerID    string      `json:"customer_id"`
	VehicleID     string      `json:"vehicle_id"`
	Amount        float64     `json:"amount"`
	PaymentType   PaymentType `json:"payment_type"`
}

// ProcessPaymentCmd запрашивает проведение платежа по коду.
type ProcessPaymentCmd struct {
	TransactionID string `json:"transaction_id"`
	PaymentCode   string `json:"payment_code"`
	PaymentMethod string `json:"payment_method"`
}

// RefundPaymentCmd запрашивает возврат средств по проведённому платежу.
type RefundPaymentCmd struct {
	TransactionID string `json:"transaction_id"`
	PaymentID     string `json:"payment_id"`
}

// --- События -----------------------------------------------------------

// CreditReservedEvt — средства успешно зарезервированы.
type CreditReservedEvt struct {
	TransactionID    string      `json:"transaction_id"`
	CustomerID       string      `json:"customer_id"`
	Amount           float64     `json:"amount"`
	PaymentType      PaymentType `json:"payment_type"`
	RemainingBalance *float64    `json:"remaining_balance,omitempty"`
	RemainingCredit  *float64    `json:"remaining_credit,omitempty"`
	Timestamp        time.Time   `json:"timestamp"`
}

// CreditReservationFailedEvt — резервирование средств не удалось.
type CreditReservationFailedEvt struct {
	TransactionID string      `json:"transaction_id"`
	CustomerID    string      `json:"customer_id"`
	Amount        float64     `json:"amount"`
	PaymentType   PaymentType `json:"payment_type"`
	Reason        string      `json:"reason"`
	Timestamp     time.Time   `json:"timestamp"`
}

// CreditReleasedEvt — средства возвращены клиенту (компенсация или отмена).
type CreditReleasedEvt struct {
	TransactionID       string      `json:"transaction_id"`
	CustomerID          string      `json:"customer_id"`
	Amount              float64     `json:"amount"`
	PaymentType         PaymentType `json:"payment_type"`
	NewBalance          *float64    `json:"new_balance,omitempty"`
	NewAvailableCredit  *float64    `json:"new_available_credit,omitempty"`
	Timestamp           time.Time   `json:"timestamp"`
}

// VehicleReservedEvt — автомобиль зарезервирован.
type VehicleReservedEvt struct {
	TransactionID string    `json:"transaction_id"`
	VehicleID     string    `json:"vehicle_id"`
	VehiclePrice  float64   `json:"vehicle_price"`
	Timestamp     time.Time `json:"timestamp"`
}

// VehicleReservationFailedEvt — резервирование автомобиля не удалось.
type VehicleReservationFailedEvt struct {
	TransactionID string    `json:"transaction_id"`
	VehicleID     string    `json:"vehicle_id"`
	Reason        string    `json:"reason"`
	Timestamp     time.Time `json:"timestamp"`
}

// VehicleReleasedEvt — резерв с автомобиля снят (компенсация или отмена).
type VehicleReleasedEvt struct {
	TransactionID string    `json:"transaction_id"`
	VehicleID     string    `json:"vehicle_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// PaymentCodeGeneratedEvt — платёжный код сгенерирован.
type PaymentCodeGeneratedEvt struct {
	TransactionID string      `json:"transaction_id"`
	PaymentCode   string      `json:"payment_code"`
	CustomerID    string      `json:"customer_id"`
	VehicleID     string      `json:"vehicle_id"`
	Amount        float64     `json:"amount"`
	PaymentType   PaymentType `json:"payment_type"`
	ExpiresAt     time.Time   `json:"expires_at"`
	Timestamp     time.Time   `json:"timestamp"`
}

// PaymentCodeGenerationFailedEvt — генерация платёжного кода не удалась.
type PaymentCodeGenerationFailedEvt struct {
	TransactionID string      `json:"transaction_id"`
	CustomerID    string      `json:"customer_id"`
	VehicleID     string      `json:"vehicle_id"`
	Amount        float64     `json:"amount"`
	PaymentType   PaymentType `json:"payment_type"`
	Reason        string      `json:"reason"`
	Timestamp     time.Time   `json:"timestamp"`
}

// PaymentProcessedEvt — платёж успешно проведён.
type PaymentProcessedEvt struct {
	TransactionID string      `json:"transaction_id"`
	PaymentID     string      `json:"payment_id"`
	PaymentCode   string      `json:"payment_code"`
	CustomerID    string      `json:"customer_id"`
	VehicleID     string      `json:"vehicle_id"`
	Amount        float64     `json:"amount"`
	PaymentType   PaymentType `json:"payment_type"`
	PaymentMethod string      `json:"payment_method"`
	Status        string      `json:"status"`
	Timestamp     time.Time   `json:"timestamp"`
}

// PaymentFailedEvt — проведение платежа не удалось.
type PaymentFailedEvt struct {
	TransactionID string      `json:"transaction_id"`
	PaymentCode   string      `json:"payment_code"`
	CustomerID    string      `json:"customer_id"`
	VehicleID     string      `json:"vehicle_id"`
	Amount        float64     `json:"amount"`
	PaymentType   PaymentType `json:"payment_type"`
	Reason        string      `json:"reason"`
	Timestamp     time.Time   `json:"timestamp"`
}

// PaymentRefundedEvt — возврат средств по платежу выполнен.
type PaymentRefundedEvt struct {
	TransactionID string    `json:"transaction_id"`
	PaymentID     string    `json:"payment_id"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// PaymentRefundFailedEvt — возврат средств по платежу не удался.
type PaymentRefundFailedEvt struct {
	TransactionID string    `json:"transaction_id"`
	PaymentID     string    `json:"payment_id"`
	Reason        string    `json:"reason"`
	Timestamp     time.Time `json:"timestamp"`
}

// PurchaseCancelledEvt — сага отменена по запросу пользователя, компенсация завершена.
type PurchaseCancelledEvt struct {
	TransactionID          string    `json:"transaction_id"`
	CustomerID             string    `json:"customer_id"`
	VehicleID              string    `json:"vehicle_id"`
	CancelledStep          string    `json:"cancelled_step"`
	Reason                 string    `json:"reason"`
	CompensationCompleted  bool      `json:"compensation_completed"`
	Timestamp              time.Time `json:"timestamp"`
}

// PurchaseCancellationFailedEvt — запрос на отмену отклонён.
type PurchaseCancellationFailedEvt struct {
	TransactionID string    `json:"transaction_id"`
	Reason        string    `json:"reason"`
	CurrentStep   string    `json:"current_step"`
	Timestamp     time.Time `json:"timestamp"`
}

// Marshal сериализует любой envelope-тип в JSON.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal десериализует JSON в указанный envelope-тип.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
