// Package kafka publishes engine update events to a Kafka-compatible broker.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"sieve/contracts/events"
	"sieve/internal/filters/models"
)

// Publisher sends events.EngineUpdate messages to a single topic. It
// implements notify.Notifier.
type Publisher struct {
	client *kgo.Client
	topic  string
	clock  func() time.Time
	logger *slog.Logger
}

// Option configures optional Publisher behavior.
type Option func(*Publisher)

// WithLogger sets the logger for publish outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(p *Publisher) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// New connects a Publisher to the given brokers. An empty topic falls back
// to events.TopicEngineUpdates.
func New(brokers []string, topic string, opts ...Option) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		topic = events.TopicEngineUpdates
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID("sieve-updater"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	p := &Publisher{
		client: client,
		topic:  topic,
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// NotifyEngineUpdate publishes one EngineUpdate event and waits for broker
// acknowledgement.
func (p *Publisher) NotifyEngineUpdate(ctx context.Context, ids []models.FilterID) error {
	event := events.NewEngineUpdate(p.clock().UTC(), filterInts(ids))
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode engine update: %w", err)
	}

	record := &kgo.Record{Topic: p.topic, Value: payload}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish engine update: %w", err)
	}

	p.logger.DebugContext(ctx, "engine update published", "topic", p.topic, "filter_ids", ids)
	return nil
}

// Close flushes buffered records and releases the client.
func (p *Publisher) Close() {
	p.client.Close()
}

func filterInts(ids []models.FilterID) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		out = append(out, int(id))
	}
	return out
}
