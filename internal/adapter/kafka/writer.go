// Package kafka publishes forecast rows to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/ipc-forecast/internal/config"
	"github.com/couchcryptid/ipc-forecast/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces one message per result row, keyed by district.
// It implements pipeline.ResultSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured results topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaResultsTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// WriteResults publishes all rows in a single WriteMessages call.
func (w *Writer) WriteResults(ctx context.Context, rows []domain.ResultRow) error {
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(rows))
	for i := range rows {
		msg, err := serializeToMessage(rows[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d results: %w", len(msgs), err)
	}
	w.logger.Debug("results published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a ResultRow into a Kafka message.
func serializeToMessage(row domain.ResultRow) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize result for %s: %w", row.District, err)
	}
	return kafkago.Message{
		Key:   []byte(row.District),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(row.RunID)},
			{Key: "prediction_period", Value: []byte(row.PredictionPeriod)},
			{Key: "processed_at", Value: []byte(row.ProcessedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
