package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/davidromero/mercadillo/internal/model"
	"github.com/davidromero/mercadillo/internal/utils"
)

const productColumns = "id,ref,owner_id,category_id,name,description,price_cents,item_condition,age_months,location,sale_state,created_at,updated_at"

// ProductRepo persists listings. Sale-state transitions are exposed only
// as compare-and-swap updates so the purchase workflow can close the
// check-then-act race between concurrent buyers.
type ProductRepo struct{ db *sql.DB }

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

func (r *ProductRepo) DB() *sql.DB { return r.db }

// Create inserts a product in the available state and returns its ID and
// public reference.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	p.Ref = utils.NewRef("PRD")
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO products (ref, owner_id, category_id, name, description, price_cents, item_condition, age_months, location)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		p.Ref, p.OwnerID, p.CategoryID, p.Name, p.Description, p.PriceCents, p.Condition, p.AgeMonths, p.Location)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.SaleState = model.SaleAvailable
	return nil
}

// GetByID fetches a product by id.
func (r *ProductRepo) GetByID(ctx context.Context, id uint64) (model.Product, error) {
	return scanProduct(r.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id=? LIMIT 1", id))
}

// GetByIDTx is GetByID inside an existing transaction, used by the
// purchase workflow to read a consistent snapshot before transitioning.
func (r *ProductRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Product, error) {
	return scanProduct(tx.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id=? LIMIT 1", id))
}

func scanProduct(row *sql.Row) (model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Ref, &p.OwnerID, &p.CategoryID, &p.Name, &p.Description,
		&p.PriceCents, &p.Condition, &p.AgeMonths, &p.Location, &p.SaleState, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// ProductFilter narrows List results. Zero values mean "any".
type ProductFilter struct {
	CategoryID    uint64
	TagID         uint64
	Name          string
	PriceMinCents uint32
	PriceMaxCents uint32
	Location      string
	Offset        int
	Limit         int
}

// List returns available products matching the filter plus the total count
// ignoring pagination.
func (r *ProductRepo) List(ctx context.Context, f ProductFilter) ([]model.Product, int, error) {
	where := []string{"p.sale_state='available'"}
	args := []interface{}{}
	join := ""
	if f.CategoryID != 0 {
		where = append(where, "p.category_id=?")
		args = append(args, f.CategoryID)
	}
	if f.TagID != 0 {
		join = " JOIN product_tags pt ON pt.product_id=p.id"
		where = append(where, "pt.tag_id=?")
		args = append(args, f.TagID)
	}
	if f.Name != "" {
		where = append(where, "p.name LIKE ?")
		args = append(args, "%"+f.Name+"%")
	}
	if f.PriceMinCents > 0 {
		where = append(where, "p.price_cents>=?")
		args = append(args, f.PriceMinCents)
	}
	if f.PriceMaxCents > 0 {
		where = append(where, "p.price_cents<=?")
		args = append(args, f.PriceMaxCents)
	}
	if f.Location != "" {
		where = append(where, "p.location LIKE ?")
		args = append(args, "%"+f.Location+"%")
	}
	cond := strings.Join(where, " AND ")

	var total int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT p.id) FROM products p"+join+" WHERE "+cond, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	listArgs := append(append([]interface{}{}, args...), limit, offset)
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT "+prefixed(productColumns, "p.")+" FROM products p"+join+
			" WHERE "+cond+" ORDER BY p.created_at DESC LIMIT ? OFFSET ?", listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Ref, &p.OwnerID, &p.CategoryID, &p.Name, &p.Description,
			&p.PriceCents, &p.Condition, &p.AgeMonths, &p.Location, &p.SaleState, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func prefixed(cols, prefix string) string {
	parts := strings.Split(cols, ",")
	for i, c := range parts {
		parts[i] = prefix + c
	}
	return strings.Join(parts, ",")
}

// Update writes the owner-editable fields of a listing. Sale state is not
// among them; it moves only through CAS transitions and MarkRemoved.
func (r *ProductRepo) Update(ctx context.Context, p *model.Product) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE products SET category_id=?, name=?, description=?, price_cents=?, item_condition=?, age_months=?, location=?
		 WHERE id=?`,
		p.CategoryID, p.Name, p.Description, p.PriceCents, p.Condition, p.AgeMonths, p.Location, p.ID)
	return err
}

// CASSaleState transitions sale_state from one of the expected states to
// next. It reports ErrInvalidState when the row was not in an expected
// state, which is how a losing racer finds out.
func (r *ProductRepo) CASSaleState(ctx context.Context, id uint64, from []string, next string) error {
	return casSaleState(ctx, r.db, id, from, next)
}

// CASSaleStateTx is CASSaleState within an existing transaction.
func (r *ProductRepo) CASSaleStateTx(ctx context.Context, tx *sql.Tx, id uint64, from []string, next string) error {
	return casSaleState(ctx, tx, id, from, next)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func casSaleState(ctx context.Context, ex execer, id uint64, from []string, next string) error {
	ph := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")
	args := make([]interface{}, 0, len(from)+2)
	args = append(args, next, id)
	for _, s := range from {
		args = append(args, s)
	}
	res, err := ex.ExecContext(ctx,
		"UPDATE products SET sale_state=? WHERE id=? AND sale_state IN ("+ph+")", args...)
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

// MarkRemoved retires an available listing. Reserved or sold products are
// part of a live purchase and cannot be removed by their owner.
func (r *ProductRepo) MarkRemoved(ctx context.Context, id uint64) error {
	return r.CASSaleState(ctx, id, []string{model.SaleAvailable}, model.SaleRemoved)
}

// SetTags replaces the product's tag set.
func (r *ProductRepo) SetTags(ctx context.Context, productID uint64, tagIDs []uint64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM product_tags WHERE product_id=?", productID); err != nil {
		return err
	}
	if len(tagIDs) == 0 {
		return nil
	}
	q := "INSERT INTO product_tags (product_id, tag_id) VALUES "
	args := make([]interface{}, 0, len(tagIDs)*2)
	for i, id := range tagIDs {
		if i > 0 {
			q += ","
		}
		q += "(?,?)"
		args = append(args, productID, id)
	}
	_, err := r.db.ExecContext(ctx, q, args...)
	return err
}

// TagsFor returns the tags attached to a product.
func (r *ProductRepo) TagsFor(ctx context.Context, productID uint64) ([]model.Tag, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT t.id, t.name FROM tags t JOIN product_tags pt ON pt.tag_id=t.id WHERE pt.product_id=? ORDER BY t.name",
		productID)
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

// HasOpenPurchases reports whether any pending or processing purchase
// references the product. A pending purchase leaves sale_state available,
// so this is the only way to see it from the product side.
func (r *ProductRepo) HasOpenPurchases(ctx context.Context, productID uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM purchases WHERE product_id=? AND state IN (?,?)",
		productID, model.PurchasePending, model.PurchaseProcessing).Scan(&n)
	return n > 0, err
}
