package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/novabrands/storefront-api/internal/model"
)

const productColumns = `id, product_id, name, description, category, price,
	stock_quantity, image_url, is_active, created_at, updated_at`

// ProductRepo encapsulates all database queries against the products
// table.
type ProductRepo struct{ DB *sql.DB }

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{DB: db} }

// ListActive returns active products for the public listing, optionally
// filtered by category. An unknown category simply yields no rows.
func (r *ProductRepo) ListActive(ctx context.Context, category string) ([]model.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE is_active = 1 ORDER BY category, created_at DESC"
	args := []any{}
	if category != "" {
		query = "SELECT " + productColumns + " FROM products WHERE category = ? AND is_active = 1 ORDER BY created_at DESC"
		args = append(args, category)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID fetches a product by external id regardless of its active
// flag; administrative reads need inactive rows too.
func (r *ProductRepo) GetByID(ctx context.Context, productID string) (*model.Product, error) {
	p, err := scanProduct(r.DB.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE product_id = ? LIMIT 1", productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

// Create inserts a product row. p.ProductID must already be set; p.ID
// is populated from the insert.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO products (product_id, name, description, category, price, stock_quantity, image_url)
		 VALUES (?,?,?,?,?,?,?)`,
		p.ProductID, p.Name, p.Description, p.Category, p.Price, p.Stock, p.ImageURL)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.IsActive = true
	return nil
}

// Update writes the mutable columns of an existing row. Zero affected
// rows is still success when the row exists with identical values, so
// existence is the caller's concern (it loads the row first anyway to
// handle image replacement).
func (r *ProductRepo) Update(ctx context.Context, p *model.Product) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE products
		 SET name = ?, category = ?, price = ?, stock_quantity = ?, description = ?, image_url = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE product_id = ?`,
		p.Name, p.Category, p.Price, p.Stock, p.Description, p.ImageURL, p.ProductID)
	return err
}

// Delete removes a product row by external id. Returns
// ErrProductNotFound when no row was affected.
func (r *ProductRepo) Delete(ctx context.Context, productID string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM products WHERE product_id = ?", productID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return nil
}

func scanProduct(row scanner) (*model.Product, error) {
	var p model.Product
	var desc, img sql.NullString
	if err := row.Scan(&p.ID, &p.ProductID, &p.Name, &desc, &p.Category, &p.Price,
		&p.Stock, &img, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Description = desc.String
	p.ImageURL = img.String
	return &p, nil
}
