package model

import "time"

// Stored purchase lifecycle states. The machine is
// pending -> processing -> confirmed with a side branch
// pending -> cancelled; confirmed and cancelled are terminal.
const (
	PurchasePending    = "pending"
	PurchaseProcessing = "processing"
	PurchaseConfirmed  = "confirmed"
	PurchaseCancelled  = "cancelled"
)

// Display-only labels derived from rating presence over a confirmed
// purchase. They are never stored; see Purchase.DisplayState.
const (
	PurchaseRatedByBuyer  = "rated_by_buyer"
	PurchaseRatedBySeller = "rated_by_seller"
	PurchaseRatedByBoth   = "rated_by_both"
)

// Purchase is the central transactional entity linking a buyer, a seller
// and a product. SellerID and AmountCents are snapshots taken at creation
// time (seller = product owner, amount = product price) and are immutable
// afterwards: a later price edit on the product does not touch existing
// purchases. Purchases are never deleted, only state-transitioned.
//
// BuyerRatingID and SellerRatingID reference the two directions of rating:
// SellerRatingID is the rating OF the seller (written by the buyer) and
// BuyerRatingID the rating OF the buyer (written by the seller). Both are
// back-filled by the rating flow once the purchase is confirmed.
type Purchase struct {
	ID             uint64    // purchases.id
	Ref            string    // purchases.ref ("CMP-...")
	BuyerID        uint64    // purchases.buyer_id
	SellerID       uint64    // purchases.seller_id (snapshot, immutable)
	ProductID      uint64    // purchases.product_id
	AmountCents    uint32    // purchases.amount_cents (snapshot, immutable)
	State          string    // purchases.state
	BuyerRatingID  *uint64   // purchases.buyer_rating_id (nullable)
	SellerRatingID *uint64   // purchases.seller_rating_id (nullable)
	CreatedAt      time.Time // purchases.created_at
	UpdatedAt      time.Time // purchases.updated_at
}

// DisplayState returns the label shown to clients. For non-confirmed
// purchases it is the stored state. For confirmed purchases the label
// mirrors which rating references exist: it is recomputed from the two
// reference fields on every read and is not an independent source of
// truth, so it can never drift from the ratings themselves.
func (p *Purchase) DisplayState() string {
	if p.State != PurchaseConfirmed {
		return p.State
	}
	switch {
	case p.BuyerRatingID != nil && p.SellerRatingID != nil:
		return PurchaseRatedByBoth
	case p.SellerRatingID != nil:
		// the buyer has rated the seller
		return PurchaseRatedByBuyer
	case p.BuyerRatingID != nil:
		return PurchaseRatedBySeller
	}
	return PurchaseConfirmed
}

// CanProcess reports whether the purchase may move to processing.
func (p *Purchase) CanProcess() bool { return p.State == PurchasePending }

// CanConfirm reports whether the purchase may move to confirmed.
func (p *Purchase) CanConfirm() bool {
	return p.State == PurchasePending || p.State == PurchaseProcessing
}

// CanCancel reports whether the purchase may move to cancelled. Cancelling
// is only legal from pending; a processing purchase has already reserved
// the product for the seller.
func (p *Purchase) CanCancel() bool { return p.State == PurchasePending }

// IsParty reports whether userID is the buyer or the seller.
func (p *Purchase) IsParty(userID uint64) bool {
	return userID == p.BuyerID || userID == p.SellerID
}
