package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/weather-station-etl/internal/config"
	"github.com/couchcryptid/weather-station-etl/internal/domain"
)

const (
	maxAttempts    = 3
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher sends validation reports to a Kafka topic, one message per
// report, keyed by pipeline run id so a run's reports share a partition.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured report topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaReportTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes all reports of a run in one batch, retrying transient
// failures with exponential backoff.
func (p *Publisher) Publish(ctx context.Context, runID string, reports []domain.Report) error {
	if len(reports) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(reports))
	for i := range reports {
		msg, err := serializeToMessage(runID, reports[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = p.writer.WriteMessages(ctx, msgs...); err == nil {
			p.logger.Debug("reports published", "run_id", runID, "count", len(msgs))
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		p.logger.Warn("publish reports failed, retrying", "run_id", runID, "attempt", attempt, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	return fmt.Errorf("publish %d reports: %w", len(msgs), err)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a report into a Kafka message.
func serializeToMessage(runID string, r domain.Report) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s report: %w", r.Check, err)
	}
	return kafkago.Message{
		Key:   []byte(runID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "check", Value: []byte(r.Check)},
			{Key: "verdict", Value: []byte(r.Verdict())},
			{Key: "generated_at", Value: []byte(r.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
