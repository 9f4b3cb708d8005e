package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSink writes events as JSON to a Kafka topic, keyed by resource id so
// events for one account land on one partition in order.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (k *KafkaSink) Send(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	key := ev.ResourceID
	if key == "" {
		key = ev.ID.String()
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(ev.Action)},
			{Key: "status", Value: []byte(ev.Status)},
		},
	})
}

func (k *KafkaSink) Close() error { return k.writer.Close() }

// LogSink writes events to a structured logger.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(l *slog.Logger) *LogSink { return &LogSink{log: l} }

func (s *LogSink) Send(ctx context.Context, ev Event) error {
	s.log.LogAttrs(ctx, slog.LevelInfo, "audit event",
		slog.String("event_id", ev.ID.String()),
		slog.String("service", ev.Service),
		slog.String("action", ev.Action),
		slog.String("status", string(ev.Status)),
		slog.Int64("user_id", ev.UserID),
		slog.String("resource_type", ev.ResourceType),
		slog.String("resource_id", ev.ResourceID),
		slog.String("ip_address", ev.IPAddress),
		slog.String("details", string(ev.Details)),
	)
	return nil
}
