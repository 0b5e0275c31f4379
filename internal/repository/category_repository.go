package repository

import (
	"context"
	"database/sql"

	"github.com/davidromero/mercadillo/internal/model"
)

// CategoryRepo persists product categories.
type CategoryRepo struct{ db *sql.DB }

func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{db: db} }

// Create inserts a category; duplicate names yield ErrConflict.
func (r *CategoryRepo) Create(ctx context.Context, name, description string) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO categories (name, description) VALUES (?,?)", name, description)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// GetByID fetches a category.
func (r *CategoryRepo) GetByID(ctx context.Context, id uint64) (model.Category, error) {
	var c model.Category
	err := r.db.QueryRowContext(ctx,
		"SELECT id,name,description,created_at FROM categories WHERE id=? LIMIT 1", id).
		Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// List returns all categories ordered by name.
func (r *CategoryRepo) List(ctx context.Context) ([]model.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id,name,description,created_at FROM categories ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TagRepo persists free-form product tags.
type TagRepo struct{ db *sql.DB }

func NewTagRepo(db *sql.DB) *TagRepo { return &TagRepo{db: db} }

// Create inserts a tag; duplicate names yield ErrConflict.
func (r *TagRepo) Create(ctx context.Context, name string) (uint64, error) {
	res, err := r.db.ExecContext(ctx, "INSERT INTO tags (name) VALUES (?)", name)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// List returns all tags ordered by name.
func (r *TagRepo) List(ctx context.Context) ([]model.Tag, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id,name FROM tags ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Exist reports whether every id names an existing tag.
func (r *TagRepo) Exist(ctx context.Context, ids []uint64) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	q := "SELECT COUNT(*) FROM tags WHERE id IN ("
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		if i > 0 {
			q += ","
		}
		q += "?"
		args[i] = id
	}
	q += ")"
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, err
	}
	return n == len(ids), nil
}
