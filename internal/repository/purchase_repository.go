package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/davidromero/mercadillo/internal/model"
	"github.com/davidromero/mercadillo/internal/utils"
)

const purchaseColumns = "id,ref,buyer_id,seller_id,product_id,amount_cents,state,buyer_rating_id,seller_rating_id,created_at,updated_at"

// PurchaseRepo persists the purchase lifecycle. Every state transition is
// a compare-and-swap UPDATE guarded on the current state so that two
// concurrent requests cannot both move the same purchase; the loser gets
// ErrInvalidState. Transitions run inside the caller's transaction
// together with the matching product sale-state change.
type PurchaseRepo struct{ db *sql.DB }

func NewPurchaseRepo(db *sql.DB) *PurchaseRepo { return &PurchaseRepo{db: db} }

func (r *PurchaseRepo) DB() *sql.DB { return r.db }

// CreateTx inserts a purchase in the pending state. BuyerID, SellerID,
// ProductID and AmountCents must be set by the caller; SellerID and
// AmountCents are snapshots of the product at this moment and never change
// afterwards.
func (r *PurchaseRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Purchase) error {
	p.Ref = utils.NewRef("CMP")
	res, err := tx.ExecContext(ctx,
		"INSERT INTO purchases (ref, buyer_id, seller_id, product_id, amount_cents) VALUES (?,?,?,?,?)",
		p.Ref, p.BuyerID, p.SellerID, p.ProductID, p.AmountCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.State = model.PurchasePending
	return nil
}

// GetByID fetches a purchase by id.
func (r *PurchaseRepo) GetByID(ctx context.Context, id uint64) (model.Purchase, error) {
	return scanPurchase(r.db.QueryRowContext(ctx,
		"SELECT "+purchaseColumns+" FROM purchases WHERE id=? LIMIT 1", id))
}

// GetByIDTx fetches a purchase inside an existing transaction with a row
// lock, serializing concurrent transitions on the same purchase.
func (r *PurchaseRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Purchase, error) {
	return scanPurchase(tx.QueryRowContext(ctx,
		"SELECT "+purchaseColumns+" FROM purchases WHERE id=? LIMIT 1 FOR UPDATE", id))
}

func scanPurchase(row *sql.Row) (model.Purchase, error) {
	var (
		p                   model.Purchase
		buyerRat, sellerRat sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.Ref, &p.BuyerID, &p.SellerID, &p.ProductID, &p.AmountCents,
		&p.State, &buyerRat, &sellerRat, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if buyerRat.Valid {
		v := uint64(buyerRat.Int64)
		p.BuyerRatingID = &v
	}
	if sellerRat.Valid {
		v := uint64(sellerRat.Int64)
		p.SellerRatingID = &v
	}
	return p, nil
}

// CASStateTx transitions state from one of the expected states to next.
// Zero affected rows means the purchase was already elsewhere in the
// lifecycle and the transition is rejected with ErrInvalidState.
func (r *PurchaseRepo) CASStateTx(ctx context.Context, tx *sql.Tx, id uint64, from []string, next string) error {
	ph := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")
	args := make([]interface{}, 0, len(from)+2)
	args = append(args, next, id)
	for _, s := range from {
		args = append(args, s)
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE purchases SET state=? WHERE id=? AND state IN ("+ph+")", args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidState
	}
	return nil
}

// SetRatingRefTx back-fills the rating reference for one direction. The
// IS NULL guard makes the back-fill itself race-safe: a second writer for
// the same direction gets ErrConflict even before the unique key on the
// ratings table would have stopped it.
func (r *PurchaseRepo) SetRatingRefTx(ctx context.Context, tx *sql.Tx, purchaseID, ratingID uint64, direction string) error {
	col := "seller_rating_id"
	if direction == model.DirectionBuyer {
		col = "buyer_rating_id"
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE purchases SET "+col+"=? WHERE id=? AND "+col+" IS NULL", ratingID, purchaseID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// ListByUser returns the user's purchases. role narrows the side:
// "bought" (buyer), "sold" (seller) or "" for both, newest first.
func (r *PurchaseRepo) ListByUser(ctx context.Context, userID uint64, role string) ([]model.Purchase, error) {
	cond := "buyer_id=? OR seller_id=?"
	args := []interface{}{userID, userID}
	switch role {
	case "bought":
		cond = "buyer_id=?"
		args = []interface{}{userID}
	case "sold":
		cond = "seller_id=?"
		args = []interface{}{userID}
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+purchaseColumns+" FROM purchases WHERE "+cond+" ORDER BY created_at DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Purchase
	for rows.Next() {
		var (
			p                   model.Purchase
			buyerRat, sellerRat sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.Ref, &p.BuyerID, &p.SellerID, &p.ProductID, &p.AmountCents,
			&p.State, &buyerRat, &sellerRat, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if buyerRat.Valid {
			v := uint64(buyerRat.Int64)
			p.BuyerRatingID = &v
		}
		if sellerRat.Valid {
			v := uint64(sellerRat.Int64)
			p.SellerRatingID = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
