// Package kafkahook publishes the premium event log to a Kafka topic.
//
// Each domain event is written as a JSON record keyed by subscriber ID, so
// a subscriber's events keep their order within a partition. Catalog events
// carry no subscriber and are keyed by policy.
package kafkahook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/xraph/premium/event"
	"github.com/xraph/premium/plugin"
)

// DefaultTopic receives events when no topic is configured.
const DefaultTopic = "premium.events"

// Compile-time interface checks.
var (
	_ plugin.Plugin     = (*Extension)(nil)
	_ plugin.OnEvent    = (*Extension)(nil)
	_ plugin.OnShutdown = (*Extension)(nil)
)

// Producer is the subset of *kgo.Client used by the extension.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Message is the JSON value of each published record.
type Message struct {
	ID           string    `json:"id"`
	Seq          int64     `json:"seq"`
	Type         string    `json:"type"`
	SubscriberID string    `json:"subscriber_id,omitempty"`
	PolicyID     int64     `json:"policy_id,omitempty"`
	PolicyName   string    `json:"policy_name,omitempty"`
	Month        int       `json:"month,omitempty"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Extension forwards every logged event to Kafka.
type Extension struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

// New creates an Extension publishing through p.
func New(p Producer, opts ...Option) *Extension {
	e := &Extension{
		producer: p,
		topic:    DefaultTopic,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dial connects a franz-go client to brokers and wraps it in an Extension.
func Dial(brokers []string, opts ...Option) (*Extension, error) {
	e := New(nil, opts...)
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(e.topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka_hook: create client: %w", err)
	}
	e.producer = client
	return e, nil
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "kafka-hook" }

// OnEvent implements plugin.OnEvent.
func (e *Extension) OnEvent(ctx context.Context, evt *event.Event) error {
	rec, err := e.record(evt)
	if err != nil {
		return err
	}
	if err := e.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		e.logger.Warn("kafka_hook: publish failed",
			"type", string(evt.Type),
			"seq", evt.Seq,
			"error", err,
		)
		return fmt.Errorf("kafka_hook: publish %s: %w", evt.Type, err)
	}
	return nil
}

// OnShutdown implements plugin.OnShutdown.
func (e *Extension) OnShutdown(_ context.Context) error {
	e.producer.Close()
	return nil
}

func (e *Extension) record(evt *event.Event) (*kgo.Record, error) {
	value, err := json.Marshal(Message{
		ID:           evt.ID.String(),
		Seq:          evt.Seq,
		Type:         string(evt.Type),
		SubscriberID: evt.SubscriberID,
		PolicyID:     evt.PolicyID,
		PolicyName:   evt.PolicyName,
		Month:        evt.Month,
		Amount:       evt.Amount.Amount,
		Currency:     evt.Amount.Currency,
		OccurredAt:   evt.OccurredAt,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka_hook: marshal %s: %w", evt.Type, err)
	}

	key := evt.SubscriberID
	if key == "" {
		key = "policy:" + strconv.FormatInt(evt.PolicyID, 10)
	}

	return &kgo.Record{
		Topic: e.topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
		Timestamp: evt.OccurredAt,
	}, nil
}
