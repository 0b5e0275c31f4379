package model

import "time"

// Sale states of a product. Once a purchase references a product its sale
// state is owned by the purchase workflow (and the removal/moderation
// path); nothing else may write it.
const (
	SaleAvailable = "available"
	SaleReserved  = "reserved"
	SaleSold      = "sold"
	SaleRemoved   = "removed"
)

// Item condition values.
const (
	ConditionNew        = "new"
	ConditionSecondHand = "second_hand"
)

// Product is a listing offered for sale by a user.
type Product struct {
	ID          uint64    // products.id
	Ref         string    // products.ref ("PRD-...")
	OwnerID     uint64    // products.owner_id
	CategoryID  uint64    // products.category_id
	Name        string    // products.name
	Description string    // products.description
	PriceCents  uint32    // products.price_cents (> 0 invariant)
	Condition   string    // products.item_condition
	AgeMonths   uint32    // products.age_months
	Location    string    // products.location
	SaleState   string    // products.sale_state
	CreatedAt   time.Time // products.created_at
	UpdatedAt   time.Time // products.updated_at
}

// Category groups products. Tag is a free label; a product carries at most
// MaxProductTags of them.
type Category struct {
	ID          uint64    // categories.id
	Name        string    // categories.name
	Description string    // categories.description
	CreatedAt   time.Time // categories.created_at
}

type Tag struct {
	ID   uint64 // tags.id
	Name string // tags.name
}

// MaxProductTags caps the number of tags per product.
const MaxProductTags = 5
