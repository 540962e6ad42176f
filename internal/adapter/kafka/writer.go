package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/quake-feed-service/internal/config"
	"github.com/couchcryptid/quake-feed-service/internal/domain"
)

// SnapshotWriter produces one message per event of an accepted fetch.
// It implements controller.SnapshotPublisher.
type SnapshotWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewSnapshotWriter creates a Kafka producer for the configured snapshot topic.
func NewSnapshotWriter(cfg *config.Config, logger *slog.Logger) *SnapshotWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSnapshotTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &SnapshotWriter{writer: w, logger: logger}
}

// snapshotEvent is the message value: the event plus the fetch it came from.
type snapshotEvent struct {
	Generation uint64              `json:"generation"`
	TimeWindow domain.TimeWindow   `json:"time_window"`
	FetchedAt  time.Time           `json:"fetched_at"`
	Event      domain.SeismicEvent `json:"event"`
	Color      domain.Color        `json:"color"`
}

// Publish writes every event of the snapshot in a single WriteMessages call.
// Keys are event ids, so the hash balancer keeps revisions of one event on
// one partition.
func (w *SnapshotWriter) Publish(ctx context.Context, snap domain.Snapshot) error {
	if len(snap.Events) == 0 {
		w.logger.Debug("empty snapshot, nothing to publish", "time_window", snap.Window, "generation", snap.Generation)
		return nil
	}
	msgs := make([]kafkago.Message, len(snap.Events))
	for i := range snap.Events {
		msg, err := serializeToMessage(snap, snap.Events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	w.logger.Debug("snapshot published",
		"time_window", snap.Window,
		"generation", snap.Generation,
		"messages", len(msgs),
	)
	return nil
}

func (w *SnapshotWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals one event of a snapshot into a Kafka message.
func serializeToMessage(snap domain.Snapshot, event domain.SeismicEvent) (kafkago.Message, error) {
	color := domain.Encode(event.Magnitude).Color
	data, err := json.Marshal(snapshotEvent{
		Generation: snap.Generation,
		TimeWindow: snap.Window,
		FetchedAt:  snap.FetchedAt,
		Event:      event,
		Color:      color,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize seismic event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.ID),
		Value: data,
		Time:  snap.FetchedAt,
		Headers: []kafkago.Header{
			{Key: "time_window", Value: []byte(snap.Window)},
			{Key: "generation", Value: []byte(strconv.FormatUint(snap.Generation, 10))},
			{Key: "color", Value: []byte(color)},
		},
	}, nil
}
