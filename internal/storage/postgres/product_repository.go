package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) Create(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (
			id, supplier_id, supplier_sku, product_sku, name,
			price_minor, stock, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		product.ID, nullableString(product.SupplierID), product.SupplierSKU, product.ProductSKU,
		product.Name, product.PriceMinor, product.Stock, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("product %q already exists", product.ID)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *productRepository) Get(id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		product    domain.Product
		supplierID sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, supplier_id, supplier_sku, product_sku, name,
		       price_minor, stock, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(
		&product.ID, &supplierID, &product.SupplierSKU, &product.ProductSKU,
		&product.Name, &product.PriceMinor, &product.Stock, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, &domain.NotFoundError{Kind: "product", ID: id}
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	if supplierID.Valid {
		product.SupplierID = supplierID.String
	}
	return product, nil
}

func (r *productRepository) Update(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET supplier_id = $1,
		    supplier_sku = $2,
		    product_sku = $3,
		    name = $4,
		    price_minor = $5,
		    stock = $6,
		    updated_at = $7
		WHERE id = $8
	`,
		nullableString(product.SupplierID), product.SupplierSKU, product.ProductSKU,
		product.Name, product.PriceMinor, product.Stock, time.Now().UTC(), product.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Kind: "product", ID: product.ID}
	}
	return nil
}

func (r *productRepository) ListBySupplier(supplierID string) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, supplier_id, supplier_sku, product_sku, name,
		       price_minor, stock, created_at, updated_at
		FROM products
		WHERE supplier_id = $1
		ORDER BY created_at DESC, id DESC
	`, supplierID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var (
			product domain.Product
			supID   sql.NullString
		)
		if err := rows.Scan(
			&product.ID, &supID, &product.SupplierSKU, &product.ProductSKU,
			&product.Name, &product.PriceMinor, &product.Stock, &product.CreatedAt, &product.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		if supID.Valid {
			product.SupplierID = supID.String
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

// ReserveStock выполняет единственный условный декремент: UPDATE уменьшает
// остаток, только если его хватает. Ноль затронутых строк означает либо
// отсутствие товара, либо нехватку остатка — различаем контрольным SELECT.
func (r *productRepository) ReserveStock(productID string, qty int32) (int64, error) {
	if qty <= 0 {
		return 0, &domain.ValidationError{Issues: []error{domain.ErrItemQtyInvalid}}
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var priceMinor int64
	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock - $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND stock >= $2
		RETURNING price_minor
	`, productID, qty).Scan(&priceMinor)
	if err == nil {
		return priceMinor, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("reserve stock: %w", err)
	}

	var available int32
	probeErr := r.db.QueryRowContext(ctx, `
		SELECT stock FROM products WHERE id = $1
	`, productID).Scan(&available)
	if probeErr != nil {
		if errors.Is(probeErr, sql.ErrNoRows) {
			return 0, &domain.NotFoundError{Kind: "product", ID: productID}
		}
		return 0, fmt.Errorf("probe product stock: %w", probeErr)
	}

	return 0, &domain.StockError{ProductID: productID, Requested: qty, Available: available}
}

func (r *productRepository) ReleaseStock(productID string, qty int32) error {
	if qty <= 0 {
		return &domain.ValidationError{Issues: []error{domain.ErrItemQtyInvalid}}
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2,
		    updated_at = NOW()
		WHERE id = $1
	`, productID, qty)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Kind: "product", ID: productID}
	}
	return nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
