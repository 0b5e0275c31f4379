package repository

import (
	"context"
	"database/sql"

	"github.com/davidromero/mercadillo/internal/model"
	"github.com/davidromero/mercadillo/internal/utils"
)

// RatingRepo persists the rating ledger. Rows are append-only; the unique
// key on (purchase_id, direction) is the final authority on the
// at-most-one-per-direction invariant.
type RatingRepo struct{ db *sql.DB }

func NewRatingRepo(db *sql.DB) *RatingRepo { return &RatingRepo{db: db} }

func (r *RatingRepo) DB() *sql.DB { return r.db }

// CreateTx inserts a rating within the caller's transaction. A duplicate
// (purchase, direction) pair yields ErrConflict.
func (r *RatingRepo) CreateTx(ctx context.Context, tx *sql.Tx, v *model.Rating) error {
	v.Ref = utils.NewRef("VAL")
	res, err := tx.ExecContext(ctx,
		"INSERT INTO ratings (ref, purchase_id, rater_id, rated_id, direction, score, comment) VALUES (?,?,?,?,?,?,?)",
		v.Ref, v.PurchaseID, v.RaterID, v.RatedID, v.Direction, v.Score, v.Comment)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	return nil
}

// GetByID fetches a rating by id.
func (r *RatingRepo) GetByID(ctx context.Context, id uint64) (model.Rating, error) {
	var v model.Rating
	err := r.db.QueryRowContext(ctx,
		"SELECT id,ref,purchase_id,rater_id,rated_id,direction,score,comment,created_at FROM ratings WHERE id=? LIMIT 1",
		id).Scan(&v.ID, &v.Ref, &v.PurchaseID, &v.RaterID, &v.RatedID, &v.Direction, &v.Score, &v.Comment, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return v, ErrNotFound
	}
	return v, err
}

// ListReceived returns the ratings a user has received, newest first.
func (r *RatingRepo) ListReceived(ctx context.Context, userID uint64) ([]model.Rating, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id,ref,purchase_id,rater_id,rated_id,direction,score,comment,created_at FROM ratings WHERE rated_id=? ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Rating
	for rows.Next() {
		var v model.Rating
		if err := rows.Scan(&v.ID, &v.Ref, &v.PurchaseID, &v.RaterID, &v.RatedID,
			&v.Direction, &v.Score, &v.Comment, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
