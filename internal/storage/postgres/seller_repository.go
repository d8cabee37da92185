package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
)

type sellerRepository struct {
	db *sql.DB
}

// NewSellerRepository создаёт PostgreSQL-реализацию SellerRepository.
func NewSellerRepository(store *Store) domain.SellerRepository {
	return &sellerRepository{db: store.DB()}
}

func (r *sellerRepository) Create(seller domain.Seller) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if seller.CreatedAt.IsZero() {
		seller.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sellers (id, name, email, created_at)
		VALUES ($1,$2,$3,$4)
	`, seller.ID, seller.Name, seller.Email, seller.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("seller %q already exists", seller.ID)
		}
		return fmt.Errorf("insert seller: %w", err)
	}
	return nil
}

func (r *sellerRepository) Get(id string) (domain.Seller, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var seller domain.Seller
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at
		FROM sellers
		WHERE id = $1
	`, id).Scan(&seller.ID, &seller.Name, &seller.Email, &seller.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Seller{}, &domain.NotFoundError{Kind: "seller", ID: id}
		}
		return domain.Seller{}, fmt.Errorf("select seller: %w", err)
	}
	return seller, nil
}

// AppendCommission добавляет комиссионную запись. История append-only:
// UPDATE/DELETE по commission_records не выполняются нигде в репозитории.
func (r *sellerRepository) AppendCommission(record domain.CommissionRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.PaidAt.IsZero() {
		record.PaidAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO commission_records (
			id, seller_id, order_id, amount_minor, payer, paid_at
		) VALUES ($1,$2,$3,$4,$5,$6)
	`,
		record.ID, record.SellerID, record.OrderID,
		record.AmountMinor, record.Payer, record.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("insert commission record: %w", err)
	}
	return nil
}

func (r *sellerRepository) ListCommissions(sellerID string) ([]domain.CommissionRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, seller_id, order_id, amount_minor, payer, paid_at
		FROM commission_records
		WHERE seller_id = $1
		ORDER BY paid_at ASC, id ASC
	`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("list commission records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.CommissionRecord, 0)
	for rows.Next() {
		var record domain.CommissionRecord
		if err := rows.Scan(
			&record.ID, &record.SellerID, &record.OrderID,
			&record.AmountMinor, &record.Payer, &record.PaidAt,
		); err != nil {
			return nil, fmt.Errorf("scan commission record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commission records: %w", err)
	}

	return records, nil
}

var _ domain.SellerRepository = (*sellerRepository)(nil)
