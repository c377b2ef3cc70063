package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/vehicle-saga/pkg/logger"
)

// MessageHandler обрабатывает одно сообщение. Возврат nil подтверждает обработку;
// любая другая ошибка приводит к коммиту offset и (если настроен DLQ producer)
// пересылке сообщения в Dead Letter Queue — offset коммитится в любом случае,
// поскольку повторная доставка того же сообщения управляется идемпотентностью
// обработчика, а не повторным чтением той же позиции (spec §5, §7).
type MessageHandler func(ctx context.Context, msg *Message) error

// Consumer читает сообщения одной подписки (топик + consumer group).
type Consumer struct {
	reader   *kafka.Reader
	producer *Producer
	topic    string
	groupID  string
}

// NewConsumer создаёт Consumer, подписанный на topic через groupID.
// groupID реализует роль durable-подписки: несколько реплик сервиса с одним
// groupID делят партиции между собой.
func NewConsumer(cfg Config, topic string, groupID string) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("не указаны брокеры шины")
	}
	if topic == "" {
		return nil, fmt.Errorf("не указан топик")
	}
	if groupID == "" {
		return nil, fmt.Errorf("не указан group ID подписки")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        100 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", topic).
		Str("group_id", groupID).
		Msg("создан consumer шины")

	return &Consumer{reader: reader, topic: topic, groupID: groupID}, nil
}

// SetDLQProducer назначает Producer, используемый для пересылки в DLQ.
func (c *Consumer) SetDLQProducer(p *Producer) {
	c.producer = p
}

// Consume блокирует выполнение, вызывая handler для каждого прочитанного
// сообщения, пока context не будет отменён.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	logger.Info().Str("topic", c.topic).Msg("запуск чтения из шины")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Str("topic", c.topic).Msg("получен сигнал завершения, остановка consumer")
			return ctx.Err()
		default:
		}

		msg, err := c.fetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			logger.Error().Err(err).Str("topic", c.topic).Msg("ошибка чтения сообщения")
			continue
		}

		if err := c.processMessage(ctx, msg, handler); err != nil {
			logger.Error().
				Err(err).
				Str("topic", c.topic).
				Str("key", string(msg.Key)).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("ошибка обработки сообщения")

			if c.producer != nil {
				if dlqErr := c.sendToDLQ(ctx, msg, err); dlqErr != nil {
					logger.Error().Err(dlqErr).Msg("ошибка отправки в DLQ")
				}
			}
		}

		if err := c.commitMessage(ctx, msg); err != nil {
			logger.Error().Err(err).Msg("ошибка коммита offset")
		}
	}
}

// ConsumeWithRetry оборачивает handler в экспоненциальный повтор перед тем,
// как сообщение считается неудачным и уходит в DLQ.
func (c *Consumer) ConsumeWithRetry(ctx context.Context, handler MessageHandler, maxRetries int) error {
	retryHandler := func(ctx context.Context, msg *Message) error {
		var lastErr error
		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				delay := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
				logger.Warn().
					Int("attempt", attempt).
					Str("key", string(msg.Key)).
					Dur("delay", delay).
					Msg("повторная попытка обработки сообщения")

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}

			if err := handler(ctx, msg); err != nil {
				lastErr = err
				continue
			}
			return nil
		}
		return fmt.Errorf("исчерпаны попытки обработки: %w", lastErr)
	}

	return c.Consume(ctx, retryHandler)
}

func (c *Consumer) fetchMessage(ctx context.Context) (*Message, error) {
	kafkaMsg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	return fromKafkaMessage(kafkaMsg), nil
}

func (c *Consumer) processMessage(ctx context.Context, msg *Message, handler MessageHandler) error {
	msgCtx := c.contextFromMessage(ctx, msg)

	logger.Debug().
		Str("topic", msg.Topic).
		Str("key", string(msg.Key)).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Str("trace_id", TraceIDFromContext(msgCtx)).
		Msg("получено сообщение из шины")

	return handler(msgCtx, msg)
}

func (c *Consumer) contextFromMessage(ctx context.Context, msg *Message) context.Context {
	if traceID, ok := msg.Headers[HeaderTraceID]; ok {
		ctx = ContextWithTraceID(ctx, traceID)
	}
	if correlationID, ok := msg.Headers[HeaderCorrelationID]; ok {
		ctx = ContextWithCorrelationID(ctx, correlationID)
	}
	return ctx
}

func (c *Consumer) commitMessage(ctx context.Context, msg *Message) error {
	return c.reader.CommitMessages(ctx, kafka.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	})
}

func (c *Consumer) sendToDLQ(ctx context.Context, msg *Message, processingErr error) error {
	logger.Warn().Str("topic", msg.Topic).Str("key", string(msg.Key)).Err(processingErr).
		Msg("отправка сообщения в DLQ")
	return c.producer.SendToDLQ(ctx, msg, processingErr)
}

// Close закрывает reader.
func (c *Consumer) Close() error {
	logger.Info().Str("topic", c.topic).Msg("закрытие consumer шины")
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия consumer: %w", err)
	}
	return nil
}

// Stats возвращает статистику reader'а.
func (c *Consumer) Stats() kafka.ReaderStats {
	return c.reader.Stats()
}

// Lag возвращает текущее отставание consumer'а от конца топика.
func (c *Consumer) Lag() int64 {
	return c.reader.Stats().Lag
}
