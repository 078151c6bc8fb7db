package credits

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

const (
	TopicAppointments = "appointments"
	TopicRefunds      = "refunds"
	TopicLedger       = "credit-transactions"
)

type KafkaReader struct {
	reader *kafka.Reader
}

func NewKafkaReader(brokers []string, topic string, group string) (*KafkaReader, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("env CREDITS_KAFKA_BROKERS is not set")
	}
	kafkaconfig := kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group + "_" + topic,
	}
	return &KafkaReader{kafka.NewReader(kafkaconfig)}, nil
}

// Следующее сообщение. Offset фиксируется сразу (consumer group)
func (k *KafkaReader) GetNewMessage(ctx context.Context) ([]byte, error) {
	msg, err := k.reader.ReadMessage(ctx)
	if err != nil {
		return nil, err
	}
	return msg.Value, nil
}

func (k *KafkaReader) Close() error {
	return k.reader.Close()
}
