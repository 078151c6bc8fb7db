package credits

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const queue = "redeems"
const queueout = "confirms"

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Очередь сканирований от клиник и очередь ответов
type RabbitConsumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	Msg   <-chan amqp.Delivery
	chout publisher
}

func declare(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	return err
}

func NewRabbitConsumer(url string, prefetch int) (rabbit *RabbitConsumer, err error) {
	if url == "" {
		return nil, fmt.Errorf("env CREDITS_RABBIT_URL is not set")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			conn.Close()
		}
	}()

	// канал для входящих
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err = declare(ch, queue); err != nil {
		return nil, err
	}
	if prefetch > 0 {
		if err = ch.Qos(prefetch, 0, false); err != nil {
			return nil, err
		}
	}

	// канал для исходящих
	chout, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err = declare(chout, queueout); err != nil {
		return nil, err
	}

	// ack вручную: после ответа сканеру
	msg, err := ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, err
	}

	return &RabbitConsumer{conn, ch, msg, chout}, nil
}

func (r *RabbitConsumer) Close() {
	if r.chout != nil {
		r.chout.Close()
	}
	if r.ch != nil {
		r.ch.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}

// Ответ сканеру
func (r *RabbitConsumer) Processed(ctx context.Context, confirm any) error {
	msg, err := json.Marshal(confirm)
	if err != nil {
		return err
	}

	return r.chout.PublishWithContext(ctx,
		"",       // exchange
		queueout, // routing key
		false,    // mandatory
		false,    // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         msg,
		})
}
