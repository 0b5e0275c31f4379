package model

import "time"

// User is a marketplace account as stored in the `users` table. The
// original system split identity across a partner record and a marketplace
// user; here the superset of fields lives in a single flat entity.
// AverageRating and RatingCount are derived fields owned by the rating
// flow: they are recomputed inside the same transaction that inserts a
// rating and must never be written anywhere else.
type User struct {
	ID            uint64    // users.id
	Ref           string    // users.ref (public reference, "USR-...")
	Name          string    // users.name
	Email         string    // users.email (unique)
	PasswordHash  string    // users.password_hash
	Phone         string    // users.phone
	Location      string    // users.location
	AverageRating float64   // users.average_rating (derived)
	RatingCount   uint32    // users.rating_count (derived)
	IsActive      bool      // users.is_active
	CreatedAt     time.Time // users.created_at
	UpdatedAt     time.Time // users.updated_at
}

// UserStats carries the per-profile counters computed on demand: products
// currently listed, sales and buys that reached the confirmed state.
type UserStats struct {
	ProductsForSale uint32 `json:"products_for_sale"`
	ProductsSold    uint32 `json:"products_sold"`
	ProductsBought  uint32 `json:"products_bought"`
}

// AgeDays returns the number of days since the account was created.
func (u *User) AgeDays(now time.Time) int {
	d := now.Sub(u.CreatedAt)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}
