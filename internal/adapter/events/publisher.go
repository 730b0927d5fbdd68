// Package events publishes per-year batch results to Kafka, so the
// fetcher can feed downstream storm-data services. Enabled only when
// brokers are configured.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/isd-archive-fetch/internal/config"
	"github.com/couchcryptid/isd-archive-fetch/internal/domain"
)

// Publisher produces year-result events to a Kafka topic.
// It implements pipeline.ResultPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured events topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaEventsTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishYearResult serializes one year's outcome to the events topic.
func (p *Publisher) PublishYearResult(ctx context.Context, result domain.YearResult) error {
	msg, err := serializeToMessage(result)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a YearResult into a Kafka message keyed by
// year, so a compacted topic keeps only the latest outcome per year.
func serializeToMessage(result domain.YearResult) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize year result: %w", err)
	}
	status := "failed"
	if result.Succeeded {
		status = "ok"
	}
	return kafkago.Message{
		Key:   []byte(strconv.Itoa(result.Year)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(status)},
			{Key: "stage", Value: []byte(result.Stage)},
		},
	}, nil
}
