package model

import "time"

// Rating directions: the value names the party being rated.
// DirectionSeller is the buyer rating the seller, DirectionBuyer the
// seller rating the buyer. At most one rating exists per
// (purchase, direction) pair; the pair is unique-keyed in the schema.
const (
	DirectionBuyer  = "buyer"
	DirectionSeller = "seller"
)

// Rating is one signed score tied to a confirmed purchase and a direction.
// Ratings are immutable once created.
type Rating struct {
	ID         uint64    // ratings.id
	Ref        string    // ratings.ref ("VAL-...")
	PurchaseID uint64    // ratings.purchase_id
	RaterID    uint64    // ratings.rater_id
	RatedID    uint64    // ratings.rated_id
	Direction  string    // ratings.direction
	Score      uint8     // ratings.score, 1..5
	Comment    string    // ratings.comment
	CreatedAt  time.Time // ratings.created_at
}

// ValidScore reports whether s is an allowed rating score.
func ValidScore(s uint8) bool { return s >= 1 && s <= 5 }

// ValidDirection reports whether d names a rating direction.
func ValidDirection(d string) bool {
	return d == DirectionBuyer || d == DirectionSeller
}
