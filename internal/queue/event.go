// Package queue defines the payloads exchanged over the message broker and
// the background consumer that turns them into notifications.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidromero/mercadillo/internal/model"
)

// PurchaseQueueName is the durable queue carrying purchase.confirmed
// events.
const PurchaseQueueName = "purchase.confirmed"

// PurchaseConfirmedEvent is published the moment a purchase transaction
// commits in the confirmed state. It carries enough to notify both parties
// without a database round-trip. EventID makes redeliveries detectable by
// downstream consumers.
type PurchaseConfirmedEvent struct {
	EventID     string `json:"event_id"`
	PurchaseID  uint64 `json:"purchase_id"`
	PurchaseRef string `json:"purchase_ref"`
	BuyerID     uint64 `json:"buyer_id"`
	SellerID    uint64 `json:"seller_id"`
	ProductID   uint64 `json:"product_id"`
	ProductName string `json:"product_name"`
	AmountCents uint32 `json:"amount_cents"`
	ConfirmedAt string `json:"confirmed_at"`
}

// NewPurchaseConfirmedEvent builds the event for a just-confirmed
// purchase.
func NewPurchaseConfirmedEvent(p *model.Purchase, productName string) PurchaseConfirmedEvent {
	return PurchaseConfirmedEvent{
		EventID:     uuid.NewString(),
		PurchaseID:  p.ID,
		PurchaseRef: p.Ref,
		BuyerID:     p.BuyerID,
		SellerID:    p.SellerID,
		ProductID:   p.ProductID,
		ProductName: productName,
		AmountCents: p.AmountCents,
		ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
	}
}
