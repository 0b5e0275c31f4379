package repository

import (
	"context"
	"database/sql"

	"github.com/davidromero/mercadillo/internal/model"
)

// CommentRepo persists public comments on product listings.
type CommentRepo struct{ db *sql.DB }

func NewCommentRepo(db *sql.DB) *CommentRepo { return &CommentRepo{db: db} }

// Create inserts a comment and returns its ID.
func (r *CommentRepo) Create(ctx context.Context, productID, userID uint64, body string) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO comments (product_id, user_id, body) VALUES (?,?,?)", productID, userID, body)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// GetByID fetches a comment.
func (r *CommentRepo) GetByID(ctx context.Context, id uint64) (model.Comment, error) {
	var c model.Comment
	err := r.db.QueryRowContext(ctx,
		"SELECT id,product_id,user_id,body,edited,created_at,updated_at FROM comments WHERE id=? LIMIT 1",
		id).Scan(&c.ID, &c.ProductID, &c.UserID, &c.Body, &c.Edited, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// ListByProduct returns a product's comments, oldest first.
func (r *CommentRepo) ListByProduct(ctx context.Context, productID uint64) ([]model.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id,product_id,user_id,body,edited,created_at,updated_at FROM comments WHERE product_id=? ORDER BY created_at",
		productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.ProductID, &c.UserID, &c.Body, &c.Edited, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateBody rewrites a comment's text and flags it as edited. Only the
// author may edit; ownership is enforced in the query itself.
func (r *CommentRepo) UpdateBody(ctx context.Context, id, userID uint64, body string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE comments SET body=?, edited=1 WHERE id=? AND user_id=?", body, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrForbidden
	}
	return nil
}

// Delete removes the author's own comment.
func (r *CommentRepo) Delete(ctx context.Context, id, userID uint64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM comments WHERE id=? AND user_id=?", id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrForbidden
	}
	return nil
}
