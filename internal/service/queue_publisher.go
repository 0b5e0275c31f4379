// Package publisher pushes domain events to RabbitMQ. Errors are logged
// and returned so callers can treat publishing as best-effort without
// interrupting the request flow.
package publisher

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/davidromero/mercadillo/internal/queue"
)

// PublishPurchaseConfirmed publishes a PurchaseConfirmedEvent to the
// purchase.confirmed queue at the given broker URL. The queue is declared
// durable and messages persistent, so confirmations survive a broker
// restart. The function never panics; any failure is logged and returned
// for the caller to ignore.
func PublishPurchaseConfirmed(ctx context.Context, url string, event q.PurchaseConfirmedEvent) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		q.PurchaseQueueName, // name
		true,                // durable
		false,               // autoDelete
		false,               // exclusive
		false,               // noWait
		nil,                 // args
	); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",                  // default exchange
		q.PurchaseQueueName, // routing key = queue name
		false,               // mandatory
		false,               // immediate
		pub,
	); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
