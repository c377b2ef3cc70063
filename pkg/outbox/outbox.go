// Package outbox реализует Outbox Pattern для гарантированной доставки команд
// и событий саги в шину сообщений. Используется оркестратором и всеми тремя
// участниками (credit/vehicle/payment) — каждый владеет своей таблицей outbox,
// параметризованной AggregateType.
// В одной транзакции пишем бизнес-данные + запись в outbox.
// Отдельный OutboxWorker читает outbox и отправляет в шину.
package outbox

import (
	"encoding/json"
	"time"
)

// Outbox — запись в таблице outbox для гарантированной доставки в шину.
type Outbox struct {
	ID            string            // UUID записи
	AggregateType string            // Тип агрегата (saga / credit / vehicle / payment)
	AggregateID   string            // ID агрегата (saga_id, reservation_id, payment_id...)
	EventType     string            // Тип события (CreditReserved, VehicleMarkedSold...)
	Topic         string            // Топик шины (commands.<domain>.<verb> / events.<domain>.<past>)
	MessageKey    string            // Ключ сообщения (для партиционирования)
	Payload       []byte            // JSON payload
	Headers       map[string]string // Headers для шины (trace_id, correlation_id)
	CreatedAt     time.Time         // Время создания
	ProcessedAt   *time.Time        // Время обработки (nil = не обработана)
	RetryCount    int               // Количество попыток отправки
	LastError     *string           // Последняя ошибка
}

// HeadersJSON возвращает headers в формате JSON для БД.
func (o *Outbox) HeadersJSON() ([]byte, error) {
	if o.Headers == nil {
		return nil, nil
	}
	return json.Marshal(o.Headers)
}

// SetHeadersFromJSON устанавливает headers из JSON.
func (o *Outbox) SetHeadersFromJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &o.Headers)
}
