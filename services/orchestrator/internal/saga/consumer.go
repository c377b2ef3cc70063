package saga

import (
	"context"
	"fmt"
	"sync"

	"example.com/vehicle-saga/pkg/bus"
	"example.com/vehicle-saga/pkg/envelope"
	"example.com/vehicle-saga/pkg/logger"
)

// maxEventRetries — попыток обработки события шины перед отправкой в DLQ.
const maxEventRetries = 3

// eventSubscription описывает одну тему событий и функцию, извлекающую из
// payload'а transaction_id и tagged-union Event для Transition.
type eventSubscription struct {
	topic   string
	decode  func(payload []byte) (string, Event, error)
}

// ConsumerGroup поднимает по одному bus.Consumer на каждую тему событий
// участников (credit/vehicle/payment) и прогоняет каждое сообщение через
// Orchestrator.HandleEvent.
type ConsumerGroup struct {
	orch      Orchestrator
	busCfg    bus.Config
	projectID string
	service   string

	wg        sync.WaitGroup
	consumers []*bus.Consumer
}

// NewConsumerGroup создаёт группу консьюмеров оркестратора.
func NewConsumerGroup(orch Orchestrator, busCfg bus.Config, projectID, service string) *ConsumerGroup {
	return &ConsumerGroup{orch: orch, busCfg: busCfg, projectID: projectID, service: service}
}

func (g *ConsumerGroup) subscriptions() []eventSubscription {
	p := g.projectID
	return []eventSubscription{
		{bus.EventTopic(p, envelope.DomainCredit, envelope.PastReserved), decodeCreditReserved},
		{bus.EventTopic(p, envelope.DomainCredit, envelope.PastReservationFailed), decodeCreditReservationFailed},
		{bus.EventTopic(p, envelope.DomainCredit, envelope.PastReleased), decodeCreditReleased},
		{bus.EventTopic(p, envelope.DomainVehicle, envelope.PastReserved), decodeVehicleReserved},
		{bus.EventTopic(p, envelope.DomainVehicle, envelope.PastReservationFailed), decodeVehicleReservationFailed},
		{bus.EventTopic(p, envelope.DomainVehicle, envelope.PastReleased), decodeVehicleReleased},
		{bus.EventTopic(p, envelope.DomainPayment, envelope.PastCodeGenerated), decodePaymentCodeGenerated},
		{bus.EventTopic(p, envelope.DomainPayment, envelope.PastCodeGenerationFailed), decodePaymentCodeGenerationFailed},
		{bus.EventTopic(p, envelope.DomainPayment, envelope.PastProcessed), decodePaymentProcessed},
		{bus.EventTopic(p, envelope.DomainPayment, envelope.PastFailed), decodePaymentFailed},
		{bus.EventTopic(p, envelope.DomainPayment, envelope.PastRefunded), decodePaymentRefunded},
		{bus.EventTopic(p, envelope.DomainPayment, envelope.PastRefundFailed), decodePaymentRefundFailed},
	}
}

// Start поднимает по одному consumer'у на подписку и блокируется до отмены
// ctx или первой неустранимой ошибки.
func (g *ConsumerGroup) Start(ctx context.Context) error {
	subs := g.subscriptions()
	errCh := make(chan error, len(subs))

	for _, sub := range subs {
		topicShort := topicShortName(sub.topic)
		groupID := bus.SubscriptionGroup(g.service, topicShort)

		consumer, err := bus.NewConsumer(g.busCfg, sub.topic, groupID)
		if err != nil {
			return fmt.Errorf("создание consumer'а для %s: %w", sub.topic, err)
		}
		g.consumers = append(g.consumers, consumer)

		g.wg.Add(1)
		go func(sub eventSubscription, c *bus.Consumer) {
			defer g.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error().Interface("panic", r).Str("topic", sub.topic).
						Msg("Паника в consumer'е оркестратора восстановлена")
				}
			}()

			handler := g.handlerFor(sub)
			if err := c.ConsumeWithRetry(ctx, handler, maxEventRetries); err != nil {
				errCh <- fmt.Errorf("consumer %s остановлен: %w", sub.topic, err)
			}
		}(sub, consumer)
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Close останавливает все consumer'ы и дожидается завершения их горутин.
func (g *ConsumerGroup) Close() error {
	for _, c := range g.consumers {
		if err := c.Close(); err != nil {
			logger.Error().Err(err).Msg("Ошибка закрытия consumer'а оркестратора")
		}
	}
	g.wg.Wait()
	return nil
}

func (g *ConsumerGroup) handlerFor(sub eventSubscription) bus.MessageHandler {
	return func(ctx context.Context, msg *bus.Message) error {
		transactionID, evt, err := sub.decode(msg.Value)
		if err != nil {
			logger.FromContext(ctx).Error().Err(err).Str("topic", sub.topic).
				Msg("Не удалось разобрать событие саги")
			return err
		}

		if _, err := g.orch.HandleEvent(ctx, transactionID, evt); err != nil {
			logger.FromContext(ctx).Error().Err(err).
				Str("transaction_id", transactionID).
				Str("topic", sub.topic).
				Msg("Ошибка применения события к саге")
			return err
		}
		return nil
	}
}

// topicShortName сокращает полное имя топика до последнего сегмента для
// использования в имени consumer group.
func topicShortName(topic string) string {
	last := topic
	for i := len(topic) - 1; i >= 0; i-- {
		if topic[i] == '.' {
			last = topic[i+1:]
			break
		}
	}
	return last
}

func decodeCreditReserved(payload []byte) (string, Event, error) {
	var e envelope.CreditReservedEvt
	if err := envelope.Unmarshal(payload, &e); err != nil {
		return "", Event{}, err
	}
	return e.TransactionID, Event{
		Kind:             EvtCreditReserved,
		RemainingBalance: e.RemainingBalance,
		RemainingCredit:  e.RemainingCredit,
	}, nil
}

func decodeCreditReservationFailed(payload []byte) (string, Event, error) {
	var e envelope.CreditReservationFailedEvt
	if err := envelope.Unmarshal(payload, &e); err != nil {
		return "", Event{}, err
	}
	return e.TransactionID, Event{Kind: EvtCreditReservationFailed, Reason: e.Reason}, nil
}

func decodeCreditReleased(payload []byte) (string, Event, error) {
	var e envelope.CreditReleasedEvt
	if err := envelope.Unmarshal(payload, &e); err != nil {
		return "", Event{}, err
	}
	return e.TransactionID, Event{Kind: EvtCreditReleased}, nil
}

func decodeVehicleReserved(payload []byte) (string, Event, error) {
	var e envelope.VehicleReservedEvt
	if err := envelope.Unmarshal(payload, &e); err != nil {
		return "", Event{}, err
	}
	return e.TransactionID, Event{Kind: EvtVehicleReserved, VehiclePrice: e.VehiclePrice}, nil
}

func decodeVehicleReservationFailed(payload []byte) (string, Event, error) {
	var e envelope.VehicleReservationFailedEvt
	if err := envelope.Unmarshal(payload, &e); err != nil {
		return "", Event{}, err
	}
	return e.TransactionID, Event{Kind: EvtVehicleReservationFailed, Reason: e.Reason}, nil
}

func decodeVehicleReleased(payload []byte) (string, Event, error) {
	var e envelope.VehicleReleasedEvt
	if err := envelope.Unmarshal(payload, &e); err != nil {
		return "", Event{}, err
	}
	return e.TransactionID, Event{Kind: EvtVehicleReleased}, nil
}

func decodePaymentCodeGenerated(payload []byte) (string, Event, error) {
	var e envelope.PaymentCodeGeneratedEvt
	if err := envelope.Unmarshal(payload, &e); err != nil {
		return "", Event{}, err
	}
	return e.TransactionID, Event{Kind: EvtPaymentCodeGenerated, PaymentCode: e.PaymentCode, ExpiresAt: e.ExpiresAt}, nil
}

func decodePaymentCodeGenerationFailed(payload []byte) (string, Event, error) {
	var e envelope.PaymentCodeGenerationFailedEvt
	if err := envelope.Unmarshal(payload, &e); err != nil {
		return "", Event{}, err
	}
	return e.TransactionID, Event{Kind: EvtPaymentCodeGenFailed, Reason: e.Reason}, nil
}

func decodePaymentProcessed(payload []byte) (string, Event, error) {
	var e envelope.PaymentProcessedEvt
	if err := envelope.Unmarshal(payload, &e); err != nil {
		return "", Event{}, err
	}
	return e.TransactionID, Event{Kind: EvtPaymentProcessed, PaymentID: e.PaymentID}, nil
}

func decodePaymentFailed(payload []byte) (string, Event, error) {
	var e envelope.PaymentFailedEvt
	if err := envelope.Unmarshal(payload, &e); err != nil {
		return "", Event{}, err
	}
	return e.TransactionID, Event{Kind: EvtPaymentFailed, Reason: e.Reason}, nil
}

func decodePaymentRefunded(payload []byte) (string, Event, error) {
	var e envelope.PaymentRefundedEvt
	if err := envelope.Unmarshal(payload, &e); err != nil {
		return "", Event{}, err
	}
	return e.TransactionID, Event{Kind: EvtPaymentRefunded, PaymentID: e.PaymentID}, nil
}

func decodePaymentRefundFailed(payload []byte) (string, Event, error) {
	var e envelope.PaymentRefundFailedEvt
	if err := envelope.Unmarshal(payload, &e); err != nil {
		return "", Event{}, err
	}
	return e.TransactionID, Event{Kind: EvtPaymentRefundFailed, Reason: e.Reason}, nil
}
