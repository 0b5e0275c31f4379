package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/davidromero/mercadillo/internal/model"
	"github.com/davidromero/mercadillo/internal/utils"
)

const userColumns = "id,ref,name,email,password_hash,phone,location,average_rating,rating_count,is_active,created_at,updated_at"

// UserRepo persists marketplace accounts.
type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) DB() *sql.DB { return r.db }

// Create inserts a user with a hashed password and a fresh public
// reference, returning its ID. Duplicate emails yield ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, name, email, password, phone, location string, cost int) (uint64, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, "", err
	}
	ref := utils.NewRef("USR")
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (ref, name, email, password_hash, phone, location) VALUES (?,?,?,?,?,?)",
		ref, name, email, hash, phone, location)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, "", ErrEmailExists
		}
		return 0, "", err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, "", err
	}
	return uint64(id), ref, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Ref, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.Location,
		&u.AverageRating, &u.RatingCount, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

// UpdateProfile applies the provided profile fields. Only non-nil fields
// are written. A duplicate email yields ErrEmailExists.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, name, email, phone, location *string) error {
	sets := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)
	if name != nil {
		sets = append(sets, "name=?")
		args = append(args, *name)
	}
	if email != nil {
		sets = append(sets, "email=?")
		args = append(args, strings.ToLower(strings.TrimSpace(*email)))
	}
	if phone != nil {
		sets = append(sets, "phone=?")
		args = append(args, *phone)
	}
	if location != nil {
		sets = append(sets, "location=?")
		args = append(args, *location)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ",")+" WHERE id=?", args...)
	if isDuplicateKey(err) {
		return ErrEmailExists
	}
	return err
}

// Stats computes the profile counters: listed products still available,
// and purchases that reached the confirmed state on either side.
func (r *UserRepo) Stats(ctx context.Context, id uint64) (model.UserStats, error) {
	var s model.UserStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
		  (SELECT COUNT(*) FROM products  WHERE owner_id=?  AND sale_state='available'),
		  (SELECT COUNT(*) FROM purchases WHERE seller_id=? AND state='confirmed'),
		  (SELECT COUNT(*) FROM purchases WHERE buyer_id=?  AND state='confirmed')`,
		id, id, id).Scan(&s.ProductsForSale, &s.ProductsSold, &s.ProductsBought)
	return s, err
}

// RecomputeRatingStatsTx refreshes the derived average_rating and
// rating_count columns from the ratings table, inside the transaction that
// inserted the new rating so the two can never diverge.
func (r *UserRepo) RecomputeRatingStatsTx(ctx context.Context, tx *sql.Tx, userID uint64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users SET
		  average_rating = COALESCE((SELECT ROUND(AVG(score),2) FROM ratings WHERE rated_id=?), 0),
		  rating_count   = (SELECT COUNT(*) FROM ratings WHERE rated_id=?)
		WHERE id=?`, userID, userID, userID)
	return err
}
