package eggs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	amqp "github.com/rabbitmq/amqp091-go"
	model "github.com/tohatch/eggchain/internal/models"
)

// Публикация уведомлений для транспорта.
// Доставка fire-and-forget: без ретраев, ошибки логирует вызывающий
type RabbitNotifier struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

const queue = "notifications"

func NewRabbitNotifier() (notifier *RabbitNotifier, err error) {
	// config
	rabbiturl := os.Getenv("RABBIT_URL")
	if rabbiturl == "" {
		return nil, fmt.Errorf("env RABBIT_URL is not set")
	}
	rabbitport := os.Getenv("RABBIT_PORT")
	if rabbitport == "" {
		return nil, fmt.Errorf("env RABBIT_PORT is not set")
	}
	rabbituser := os.Getenv("RABBIT_USER")
	if rabbituser == "" {
		return nil, fmt.Errorf("env RABBIT_USER is not set")
	}
	rabbitpass := os.Getenv("RABBIT_PASSWORD")
	if rabbitpass == "" {
		return nil, fmt.Errorf("env RABBIT_PASSWORD is not set")
	}

	rabbitconn := "amqp://" + rabbituser + ":" + rabbitpass + "@" + rabbiturl + ":" + rabbitport + "/eggchain"
	conn, err := amqp.Dial(rabbitconn)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	_, err = ch.QueueDeclare(
		queue, // name
		false, // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &RabbitNotifier{conn, ch}, nil
}

func (r *RabbitNotifier) Close() {
	r.ch.Close()
	r.conn.Close()
}

func (r *RabbitNotifier) Notify(ctx context.Context, note model.Notification) error {
	msg, err := json.Marshal(note)
	if err != nil {
		return err
	}

	err = r.ch.PublishWithContext(ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        []byte(msg),
		})
	if err != nil {
		return err
	}
	return nil
}
