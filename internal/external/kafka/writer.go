package credits

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	model "github.com/glkeru/credits/internal/models"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// События журнала для отчетности. Ключ - счет, порядок по счету сохраняется
type EventWriter struct {
	writer messageWriter
}

func NewEventWriter(brokers []string) (*EventWriter, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("env CREDITS_KAFKA_BROKERS is not set")
	}
	return &EventWriter{&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        TopicLedger,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}}, nil
}

func eventMessage(event model.LedgerEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(event.Transaction.AccountID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
		Time: event.At,
	}, nil
}

func (e *EventWriter) Publish(ctx context.Context, event model.LedgerEvent) error {
	msg, err := eventMessage(event)
	if err != nil {
		return err
	}
	err = e.writer.WriteMessages(ctx, msg)
	if err != nil {
		return fmt.Errorf("publish %s event for tnx %s: %w", event.Type, event.Transaction.ID, err)
	}
	return nil
}

func (e *EventWriter) Close() error {
	return e.writer.Close()
}
