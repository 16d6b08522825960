package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/hivecrm/journey/pkg/events"
	"github.com/hivecrm/journey/pkg/otelhelper"
)

type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
	tracer        trace.Tracer
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) EventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
		tracer:        otel.Tracer("journey.eventbus"),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

// Publish routes contact activity to the contact topic and everything else
// to the execution topic. The key carries the contact or execution id so
// partitioned transports preserve per-entity ordering.
func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	// Trace context rides the message metadata so the consuming side can
	// continue the span.
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(msg.Metadata))

	return eb.publisher.Publish(topicFor(event.GetType()), msg)
}

func topicFor(eventType events.EventType) string {
	if eventType == events.ContactActivityEvent {
		return events.ContactTopic
	}

	return events.ExecutionTopic
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	for _, topic := range []string{events.ContactTopic, events.ExecutionTopic} {
		messages, err := eb.subscriber.Subscribe(ctx, topic)
		if err != nil {
			return err
		}

		go eb.dispatch(ctx, messages)
	}

	return nil
}

func (eb *WatermillEventBus) dispatch(ctx context.Context, messages <-chan *message.Message) {
	for msg := range messages {
		var event any

		eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

		handler, exists := eb.subscriptions[eventType]
		if !exists {
			msg.Ack()

			continue
		}

		switch eventType {
		case events.ContactActivityEvent:
			event = &events.ContactActivity{}
		case events.ExecutionStartedEvent:
			event = &events.ExecutionStarted{}
		case events.ExecutionCompletedEvent:
			event = &events.ExecutionCompleted{}
		case events.ExecutionFailedEvent:
			event = &events.ExecutionFailed{}
		case events.ExecutionCancelledEvent:
			event = &events.ExecutionCancelled{}
		case events.ExecutionWaitingEvent:
			event = &events.ExecutionWaiting{}
		case events.ExecutionResumedEvent:
			event = &events.ExecutionResumed{}
		case events.GoalAchievedEvent:
			event = &events.GoalAchieved{}
		default:
			msg.Nack()

			continue
		}

		err := json.Unmarshal(msg.Payload, event)
		if err != nil {
			msg.Nack()

			continue
		}

		msgCtx := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Metadata))

		spanCtx, span := otelhelper.StartSpan(msgCtx, eb.tracer, "eventbus.dispatch",
			attribute.String("event.type", string(eventType)),
			attribute.String("event.key", msg.Metadata.Get(events.EventMetadataKey)),
		)

		err = handler(spanCtx, event)
		if err != nil {
			otelhelper.SetError(span, err)
			span.End()
			msg.Nack()

			continue
		}

		span.End()
		msg.Ack()
	}
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
