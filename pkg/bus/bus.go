// Package bus предоставляет обёртки над kafka-go для обмена командами и
// событиями между участниками саги покупки автомобиля.
// Темы именуются по конвенции commands.<domain>.<verb> / events.<domain>.<past-tense>;
// Consumer Group играет роль durable-подписки, привязанной к одной теме.
package bus

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/vehicle-saga/pkg/logger"
)

// TopicDLQ - общая Dead Letter Queue для сообщений, исчерпавших попытки обработки.
const TopicDLQ = "dlq.saga"

// Ключи для headers сообщений.
const (
	HeaderTraceID        = "trace_id"
	HeaderCorrelationID  = "correlation_id"
	HeaderTimestamp      = "timestamp"
)

// CommandTopic строит имя топика команды: commands.<domain>.<verb>.
// projectID, если задан, используется как namespace-префикс (аналог
// PROJECT_ID в исходной реализации на Google Cloud Pub/Sub).
func CommandTopic(projectID, domain, verb string) string {
	return prefixed(projectID, "commands."+domain+"."+verb)
}

// EventTopic строит имя топика события: events.<domain>.<past-tense>.
func EventTopic(projectID, domain, pastTense string) string {
	return prefixed(projectID, "events."+domain+"."+pastTense)
}

// SubscriptionGroup строит имя consumer group для сервиса, подписанного на
// конкретный топик: <service>-<topic-short>-sub.
func SubscriptionGroup(service, topicShort string) string {
	return service + "-" + topicShort + "-sub"
}

func prefixed(projectID, name string) string {
	if projectID == "" {
		return name
	}
	return projectID + "." + name
}

// Config содержит настройки подключения к брокерам.
type Config struct {
	Brokers []string
}

// Message представляет сообщение шины с метаданными.
type Message struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Headers   map[string]string
	Time      time.Time
}

func fromKafkaMessage(m kafka.Message) *Message {
	headers := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}

	return &Message{
		Key:       m.Key,
		Value:     m.Value,
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Headers:   headers,
		Time:      m.Time,
	}
}

func (m *Message) toKafkaMessage() kafka.Message {
	headers := make([]kafka.Header, 0, len(m.Headers))
	for k, v := range m.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return kafka.Message{
		Key:     m.Key,
		Value:   m.Value,
		Topic:   m.Topic,
		Headers: headers,
		Time:    m.Time,
	}
}

// TraceIDFromContext извлекает transaction_id (trace_id) из context.
func TraceIDFromContext(ctx context.Context) string {
	return logger.TraceIDFromContext(ctx)
}

// CorrelationIDFromContext извлекает correlation_id из context.
func CorrelationIDFromContext(ctx context.Context) string {
	return logger.CorrelationIDFromContext(ctx)
}

// ContextWithTraceID добавляет trace_id в context.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return logger.WithTraceID(ctx, traceID)
}

// ContextWithCorrelationID добавляет correlation_id в context.
func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return logger.WithCorrelationID(ctx, correlationID)
}

// TopicConfig описывает топик, который нужно создать при старте сервиса.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
}

// EnsureTopics идемпотентно создаёт топики, игнорируя "уже существует".
// Каждый компонент вызывает её при старте для всех топиков, в которые публикует,
// и для всех, из которых потребляет (spec §4.5).
func EnsureTopics(brokers []string, topics []TopicConfig) error {
	if len(brokers) == 0 {
		return nil
	}

	log := logger.Logger()

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}

	controllerAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	controllerConn, err := kafka.Dial("tcp", controllerAddr)
	if err != nil {
		return err
	}
	defer func() { _ = controllerConn.Close() }()

	topicConfigs := make([]kafka.TopicConfig, len(topics))
	for i, t := range topics {
		topicConfigs[i] = kafka.TopicConfig{
			Topic:             t.Name,
			NumPartitions:     t.NumPartitions,
			ReplicationFactor: t.ReplicationFactor,
		}
	}

	if err := controllerConn.CreateTopics(topicConfigs...); err != nil {
		log.Warn().Err(err).Msg("ошибка при создании топиков (возможно уже существуют)")
	}

	for _, t := range topics {
		log.Info().
			Str("topic", t.Name).
			Int("partitions", t.NumPartitions).
			Msg("топик проверен/создан")
	}

	return nil
}
