package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/healthvoice-triage/pkg/logging"
)

var busTracer = otel.Tracer("healthvoice.internal.events.bus")

// Publisher emits canonical events.
type Publisher interface {
	Publish(ctx context.Context, aggregate string, evt CanonicalEvent, opts ...EnvelopeOption) error
}

// Bus is an in-process pub/sub for domain events. Events published with no
// subscriber on the topic are dropped.
type Bus struct {
	pubSub *gochannel.GoChannel
	logger *logging.Logger
}

// NewBus builds a bus over a watermill go channel.
func NewBus(logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.Default()
	}
	return &Bus{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NewStdLogger(false, false),
		),
		logger: logger,
	}
}

// Publish wraps evt in an envelope and sends it on the topic named by its event type.
func (b *Bus) Publish(ctx context.Context, aggregate string, evt CanonicalEvent, opts ...EnvelopeOption) error {
	ctx, span := busTracer.Start(ctx, "events.publish")
	defer span.End()

	env, err := NewEnvelope(aggregate, evt, opts...)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(
		attribute.String("healthvoice.event_type", env.EventType),
		attribute.String("healthvoice.aggregate", env.Aggregate),
	)
	data, err := json.Marshal(env)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("events: marshal envelope: %w", err)
	}
	msg := message.NewMessage(env.EventID.String(), data)
	msg.Metadata.Set("event_type", env.EventType)
	if err := b.pubSub.Publish(env.EventType, msg); err != nil {
		span.RecordError(err)
		return fmt.Errorf("events: publish %s: %w", env.EventType, err)
	}
	return nil
}

// Subscribe streams decoded envelopes for the topics until ctx is done.
// Messages are acknowledged as soon as they are decoded.
func (b *Bus) Subscribe(ctx context.Context, topics ...string) (<-chan Envelope, error) {
	out := make(chan Envelope, 16)
	var sources []<-chan *message.Message
	for _, topic := range topics {
		msgs, err := b.pubSub.Subscribe(ctx, topic)
		if err != nil {
			return nil, fmt.Errorf("events: subscribe %s: %w", topic, err)
		}
		sources = append(sources, msgs)
	}

	done := make(chan struct{}, len(sources))
	for _, msgs := range sources {
		go func(msgs <-chan *message.Message) {
			defer func() { done <- struct{}{} }()
			for msg := range msgs {
				var env Envelope
				if err := json.Unmarshal(msg.Payload, &env); err != nil {
					b.logger.Warn("dropping undecodable event", "message_id", msg.UUID, "error", err)
					msg.Ack()
					continue
				}
				msg.Ack()
				select {
				case out <- env:
				case <-ctx.Done():
				}
			}
		}(msgs)
	}
	go func() {
		for range sources {
			<-done
		}
		close(out)
	}()
	return out, nil
}

// Close shuts the underlying pub/sub down and ends all subscriptions.
func (b *Bus) Close() error {
	return b.pubSub.Close()
}
