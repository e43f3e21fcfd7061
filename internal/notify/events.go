package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// NewKafkaWriter builds the writer for the bankroll event topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
	}
}

// EventPublisher fans committed domain events out to the live pub/sub bus and
// the durable stream journal. Bankroll events additionally go to Kafka when a
// writer is configured. Publishing happens after the owning transaction
// commits, so failures are logged and swallowed rather than unwinding state.
type EventPublisher struct {
	bus    domain.SignalBus
	writer *kafka.Writer
	sinks  *prometheus.CounterVec
	logger *slog.Logger
}

// NewEventPublisher creates an EventPublisher. writer may be nil to disable
// Kafka delivery.
func NewEventPublisher(bus domain.SignalBus, writer *kafka.Writer, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{
		bus:    bus,
		writer: writer,
		logger: logger.With(slog.String("component", "events")),
	}
}

// WithSinkCounter attaches a counter incremented per successful delivery,
// labelled by sink.
func (p *EventPublisher) WithSinkCounter(c *prometheus.CounterVec) *EventPublisher {
	p.sinks = c
	return p
}

// PublishBankroll emits one committed bankroll change.
func (p *EventPublisher) PublishBankroll(ctx context.Context, ev domain.BankrollEvent) {
	p.publish(ctx, domain.ChannelBankroll, ev.UserID, ev, true)
}

// PublishOdds emits a price change on a match.
func (p *EventPublisher) PublishOdds(ctx context.Context, ev domain.OddsEvent) {
	p.publish(ctx, domain.ChannelOdds, ev.MatchID, ev, false)
}

// PublishResult emits a settled match result.
func (p *EventPublisher) PublishResult(ctx context.Context, ev domain.ResultEvent) {
	p.publish(ctx, domain.ChannelResults, ev.MatchID, ev, false)
}

// Close flushes and closes the Kafka writer, if any.
func (p *EventPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func (p *EventPublisher) publish(ctx context.Context, channel, key string, event any, toKafka bool) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal event",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := p.bus.Publish(ctx, channel, payload); err != nil {
		p.logger.WarnContext(ctx, "publish event",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	} else {
		p.count("redis")
	}
	if err := p.bus.StreamAppend(ctx, "events:"+channel, payload); err != nil {
		p.logger.WarnContext(ctx, "journal event",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}

	if toKafka && p.writer != nil {
		msg := kafka.Message{
			Key:   []byte(key),
			Value: payload,
			Time:  time.Now(),
		}
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			p.logger.WarnContext(ctx, "kafka publish",
				slog.String("channel", channel),
				slog.String("error", err.Error()),
			)
		} else {
			p.count("kafka")
		}
	}
}

func (p *EventPublisher) count(sink string) {
	if p.sinks != nil {
		p.sinks.WithLabelValues(sink).Inc()
	}
}
