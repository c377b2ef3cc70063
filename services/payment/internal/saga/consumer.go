package saga

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"example.com/vehicle-saga/pkg/bus"
	"example.com/vehicle-saga/pkg/logger"
)

const maxCommandRetries = 3

// ConsumerGroup запускает по одному Consumer'у на каждый топик команд
// payment participant'а и диспетчеризует сообщения в CommandHandler.
type ConsumerGroup struct {
	handler   *CommandHandler
	busCfg    bus.Config
	service   string
	wg        sync.WaitGroup
	consumers []*bus.Consumer
}

// NewConsumerGroup создаёт группу потребителей команд.
func NewConsumerGroup(handler *CommandHandler, busCfg bus.Config, service string) *ConsumerGroup {
	return &ConsumerGroup{handler: handler, busCfg: busCfg, service: service}
}

// Start поднимает по горутине на топик и блокируется до отмены ctx либо
// первой неустранимой ошибки одного из потребителей.
func (g *ConsumerGroup) Start(ctx context.Context) error {
	errCh := make(chan error, len(g.handler.Subscriptions()))

	for topic, handle := range g.handler.Subscriptions() {
		groupID := bus.SubscriptionGroup(g.service, topicShortName(topic))
		consumer, err := bus.NewConsumer(g.busCfg, topic, groupID)
		if err != nil {
			return fmt.Errorf("создание потребителя для %s: %w", topic, err)
		}
		g.consumers = append(g.consumers, consumer)

		g.wg.Add(1)
		go func(c *bus.Consumer, t string, h bus.MessageHandler) {
			defer g.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error().Interface("panic", r).Str("topic", t).Msg("Паника в потребителе команд")
				}
			}()
			if err := c.ConsumeWithRetry(ctx, h, maxCommandRetries); err != nil {
				errCh <- fmt.Errorf("потребитель %s: %w", t, err)
			}
		}(consumer, topic, handle)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Close закрывает все потребители и дожидается завершения горутин.
func (g *ConsumerGroup) Close() error {
	var firstErr error
	for _, c := range g.consumers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	g.wg.Wait()
	return firstErr
}

func topicShortName(topic string) string {
	parts := strings.Split(topic, ".")
	return parts[len(parts)-1]
}
