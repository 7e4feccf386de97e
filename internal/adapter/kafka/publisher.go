// Package kafka publishes exported RISE records to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/rise-hydromet-export/internal/config"
	"github.com/couchcryptid/rise-hydromet-export/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces one message per RISE record.
// It implements pipeline.RecordPublisher.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured record topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes an entry's records in a single WriteMessages call. Records
// of one series share a key and so land on one partition in order.
func (p *Publisher) Publish(ctx context.Context, entry domain.ControlEntry, records []domain.OutputRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeRecord(entry, records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d records: %w", len(msgs), err)
	}
	p.logger.Debug("records published",
		"station", entry.StationCode,
		"parameter", entry.ParameterCode,
		"count", len(msgs),
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeRecord marshals an OutputRecord into a Kafka message.
func serializeRecord(entry domain.ControlEntry, rec domain.OutputRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize rise record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(entry.StationCode + "/" + entry.ParameterCode),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "resolution", Value: []byte(entry.Resolution.String())},
			{Key: "last_update", Value: []byte(rec.LastUpdate)},
		},
	}, nil
}
