package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartPurchaseConsumer connects to the broker, declares the durable
// purchase.confirmed queue and consumes it forever. Each event becomes two
// notification lines in logs/notifications.log, one inviting the buyer to
// rate the seller and one the other way around. The function runs a
// reconnect loop with exponential backoff and never returns under normal
// operation; a broken message is rejected without requeue so the consumer
// does not spin on it.
func StartPurchaseConsumer(url string) error {
	if url == "" {
		return errors.New("empty broker url")
	}

	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("purchase-consumer: dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(conn); err != nil {
			log.Printf("purchase-consumer: consume loop ended: %v; reconnecting", err)
			_ = conn.Close()
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("purchase-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(PurchaseQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(PurchaseQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body); err != nil {
			log.Printf("purchase-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte) error {
	var ev PurchaseConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "notifications.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	// One invite per party; both may now rate the other.
	lines := fmt.Sprintf(
		"[%s] Purchase confirmed | event=%s | purchase=%s | product=%q | amount=%d cents | to_user=%d | rate your seller (user %d)\n"+
			"[%s] Purchase confirmed | event=%s | purchase=%s | product=%q | amount=%d cents | to_user=%d | rate your buyer (user %d)\n",
		ev.ConfirmedAt, ev.EventID, ev.PurchaseRef, ev.ProductName, ev.AmountCents, ev.BuyerID, ev.SellerID,
		ev.ConfirmedAt, ev.EventID, ev.PurchaseRef, ev.ProductName, ev.AmountCents, ev.SellerID, ev.BuyerID)

	if _, err := f.WriteString(lines); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
