// Package eventbus implements the at-least-once pub/sub event bus on top
// of Kafka (spec §4.10), replacing the teacher's SQS transport — the
// spec's own configuration surface (KAFKA_BOOTSTRAP_SERVERS etc.) calls
// for a Kafka-native transport, justified in DESIGN.md.
package eventbus

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cyphera/settlement-engine/internal/domain/events"
	"github.com/cyphera/settlement-engine/internal/logger"
	"github.com/cyphera/settlement-engine/internal/ports"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const topicSettlementEvents = "settlement-events"

// KafkaBus publishes to and consumes from a single partitioned topic,
// dispatching by event_type to registered handlers. Partitioning key is
// aggregate_id (spec §5 Ordering), guaranteeing per-reference ordering.
type KafkaBus struct {
	writer   *kafka.Writer
	reader   *kafka.Reader
	handlers map[string][]ports.EventHandlerFunc
}

// Config holds the Kafka-specific wiring inputs (spec §6 Configuration).
type Config struct {
	BootstrapServers string
	GroupID          string
	AutoOffsetReset  string // not read: a new consumer group always starts at the earliest offset
	EnableAutoCommit bool   // not read: offsets are never auto-committed
}

// New builds a KafkaBus. The reader never auto-commits, whatever
// EnableAutoCommit says: Run commits each message explicitly once every
// handler has succeeded, which gives the at-least-once semantics of spec
// §4.10.
func New(cfg Config) *KafkaBus {
	brokers := strings.Split(cfg.BootstrapServers, ",")

	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topicSettlementEvents,
		Balancer: &kafka.Hash{}, // partitions by message Key = aggregate_id
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topicSettlementEvents,
		GroupID:     cfg.GroupID,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})

	return &KafkaBus{
		writer:   writer,
		reader:   reader,
		handlers: make(map[string][]ports.EventHandlerFunc),
	}
}

// Publish serializes and writes an event, keyed by aggregate_id so every
// event for one transaction reference lands on the same partition.
func (b *KafkaBus) Publish(ctx context.Context, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.AggregateID),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

// Subscribe registers a handler against an event type ("<group>.<name>").
func (b *KafkaBus) Subscribe(eventType string, handler ports.EventHandlerFunc) {
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Run drives the consumer loop until ctx is cancelled: fetch, dispatch to
// every registered handler, commit the offset only if every handler
// succeeds (spec §4.10 — "commits the offset only after every handler
// returns without raising").
func (b *KafkaBus) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return b.reader.Close()
		default:
		}

		msg, err := b.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return b.reader.Close()
			}
			logger.Error("eventbus: fetch failed", zap.Error(err))
			continue
		}

		if err := b.dispatch(ctx, msg); err != nil {
			logger.Error("eventbus: handler failed, will redeliver on restart",
				zap.Error(err), zap.String("key", string(msg.Key)))
			continue // do not commit; replay on restart
		}

		if err := b.reader.CommitMessages(ctx, msg); err != nil {
			logger.Error("eventbus: commit failed", zap.Error(err))
		}
	}
}

func (b *KafkaBus) dispatch(ctx context.Context, msg kafka.Message) error {
	var ev events.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return err
	}

	for _, h := range b.handlers[ev.EventType] {
		if err := h(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the writer and reader.
func (b *KafkaBus) Close() error {
	werr := b.writer.Close()
	rerr := b.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

var _ ports.EventBus = (*KafkaBus)(nil)
