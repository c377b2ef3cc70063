package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/vehicle-saga/pkg/logger"
)

// Producer отправляет команды/события в шину с поддержкой headers и трассировки.
type Producer struct {
	writer *kafka.Writer
	cfg    Config
}

// NewProducer создаёт Producer. Тема указывается на каждый Send — один Producer
// обслуживает все топики, в которые публикует сервис.
func NewProducer(cfg Config) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("не указаны брокеры шины")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	logger.Info().Strs("brokers", cfg.Brokers).Msg("создан producer шины")

	return &Producer{writer: writer, cfg: cfg}, nil
}

// Send отправляет тело сообщения в указанный топик с ключом партиционирования.
func (p *Producer) Send(ctx context.Context, topic string, key []byte, value []byte) error {
	return p.SendWithHeaders(ctx, topic, key, value, nil)
}

// SendWithHeaders отправляет сообщение с дополнительными headers, добавляя
// trace_id/correlation_id/timestamp автоматически.
func (p *Producer) SendWithHeaders(ctx context.Context, topic string, key []byte, value []byte, extraHeaders map[string]string) error {
	headers := p.buildHeaders(ctx, extraHeaders)

	msg := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: headers,
		Time:    time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error().
			Err(err).
			Str("topic", topic).
			Str("key", string(key)).
			Str("trace_id", TraceIDFromContext(ctx)).
			Msg("ошибка отправки сообщения в шину")
		return fmt.Errorf("ошибка отправки в шину: %w", err)
	}

	logger.Debug().
		Str("topic", topic).
		Str("key", string(key)).
		Str("trace_id", TraceIDFromContext(ctx)).
		Msg("сообщение отправлено в шину")

	return nil
}

// SendMessage отправляет уже подготовленный Message, дополняя headers.
func (p *Producer) SendMessage(ctx context.Context, msg *Message) error {
	if msg.Headers == nil {
		msg.Headers = make(map[string]string)
	}

	if _, ok := msg.Headers[HeaderTraceID]; !ok {
		if traceID := TraceIDFromContext(ctx); traceID != "" {
			msg.Headers[HeaderTraceID] = traceID
		}
	}

	if _, ok := msg.Headers[HeaderCorrelationID]; !ok {
		if correlationID := CorrelationIDFromContext(ctx); correlationID != "" {
			msg.Headers[HeaderCorrelationID] = correlationID
		}
	}

	if _, ok := msg.Headers[HeaderTimestamp]; !ok {
		msg.Headers[HeaderTimestamp] = time.Now().UTC().Format(time.RFC3339Nano)
	}

	kafkaMsg := msg.toKafkaMessage()
	if err := p.writer.WriteMessages(ctx, kafkaMsg); err != nil {
		logger.Error().Err(err).Str("topic", msg.Topic).Str("key", string(msg.Key)).
			Msg("ошибка отправки сообщения в шину")
		return fmt.Errorf("ошибка отправки в шину: %w", err)
	}

	return nil
}

// SendToDLQ публикует сообщение, исчерпавшее попытки обработки, в dlq.saga.
func (p *Producer) SendToDLQ(ctx context.Context, originalMsg *Message, processingError error) error {
	dlqHeaders := make(map[string]string, len(originalMsg.Headers)+3)
	for k, v := range originalMsg.Headers {
		dlqHeaders[k] = v
	}

	dlqHeaders["dlq_error"] = processingError.Error()
	dlqHeaders["dlq_original_topic"] = originalMsg.Topic
	dlqHeaders["dlq_timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)

	return p.SendWithHeaders(ctx, TopicDLQ, originalMsg.Key, originalMsg.Value, dlqHeaders)
}

func (p *Producer) buildHeaders(ctx context.Context, extra map[string]string) []kafka.Header {
	headers := make([]kafka.Header, 0, 3+len(extra))

	if traceID := TraceIDFromContext(ctx); traceID != "" {
		headers = append(headers, kafka.Header{Key: HeaderTraceID, Value: []byte(traceID)})
	}

	if correlationID := CorrelationIDFromContext(ctx); correlationID != "" {
		headers = append(headers, kafka.Header{Key: HeaderCorrelationID, Value: []byte(correlationID)})
	}

	headers = append(headers, kafka.Header{
		Key:   HeaderTimestamp,
		Value: []byte(time.Now().UTC().Format(time.RFC3339Nano)),
	})

	for k, v := range extra {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return headers
}

// Close закрывает writer. Должен вызываться при завершении работы сервиса.
func (p *Producer) Close() error {
	logger.Info().Msg("закрытие producer шины")
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия producer: %w", err)
	}
	return nil
}
