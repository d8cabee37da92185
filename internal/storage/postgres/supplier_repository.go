package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
)

type supplierRepository struct {
	db *sql.DB
}

// NewSupplierRepository создаёт PostgreSQL-реализацию SupplierRepository.
func NewSupplierRepository(store *Store) domain.SupplierRepository {
	return &supplierRepository{db: store.DB()}
}

func (r *supplierRepository) Create(supplier domain.Supplier) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	now := time.Now().UTC()
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = now
	}
	if supplier.UpdatedAt.IsZero() {
		supplier.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO suppliers (
			id, code, name, email, phone, enabled, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		supplier.ID, supplier.Code, supplier.Name, supplier.Email,
		supplier.Phone, supplier.Enabled, supplier.CreatedAt, supplier.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("supplier %q already exists", supplier.ID)
		}
		return fmt.Errorf("insert supplier: %w", err)
	}
	return nil
}

func (r *supplierRepository) Get(id string) (domain.Supplier, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var supplier domain.Supplier
	err := r.db.QueryRowContext(ctx, `
		SELECT id, code, name, email, phone, enabled, created_at, updated_at
		FROM suppliers
		WHERE id = $1
	`, id).Scan(
		&supplier.ID, &supplier.Code, &supplier.Name, &supplier.Email,
		&supplier.Phone, &supplier.Enabled, &supplier.CreatedAt, &supplier.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Supplier{}, &domain.NotFoundError{Kind: "supplier", ID: id}
		}
		return domain.Supplier{}, fmt.Errorf("select supplier: %w", err)
	}
	return supplier, nil
}

func (r *supplierRepository) List() ([]domain.Supplier, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, code, name, email, phone, enabled, created_at, updated_at
		FROM suppliers
		ORDER BY code ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0)
	for rows.Next() {
		var supplier domain.Supplier
		if err := rows.Scan(
			&supplier.ID, &supplier.Code, &supplier.Name, &supplier.Email,
			&supplier.Phone, &supplier.Enabled, &supplier.CreatedAt, &supplier.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan supplier row: %w", err)
		}
		suppliers = append(suppliers, supplier)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate supplier rows: %w", err)
	}

	return suppliers, nil
}

var _ domain.SupplierRepository = (*supplierRepository)(nil)
