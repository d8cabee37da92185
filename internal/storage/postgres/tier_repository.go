package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
)

type tierRepository struct {
	db *sql.DB
}

// NewTierRepository создаёт PostgreSQL-реализацию TierRepository.
func NewTierRepository(store *Store) domain.TierRepository {
	return &tierRepository{db: store.DB()}
}

func (r *tierRepository) List() ([]domain.DeliveryCostTier, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, min_subtotal_minor, max_subtotal_minor, cost_minor
		FROM delivery_cost_tiers
		ORDER BY min_subtotal_minor ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list delivery cost tiers: %w", err)
	}
	defer rows.Close()

	tiers := make([]domain.DeliveryCostTier, 0)
	for rows.Next() {
		var tier domain.DeliveryCostTier
		if err := rows.Scan(
			&tier.ID, &tier.MinSubtotalMinor, &tier.MaxSubtotalMinor, &tier.CostMinor,
		); err != nil {
			return nil, fmt.Errorf("scan tier row: %w", err)
		}
		tiers = append(tiers, tier)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tier rows: %w", err)
	}

	return tiers, nil
}

// Replace атомарно заменяет тарифную сетку: старые строки удаляются и новые
// вставляются в одной транзакции, предварительно пройдя ValidateTiers.
func (r *tierRepository) Replace(tiers []domain.DeliveryCostTier) error {
	if err := domain.ValidateTiers(tiers); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM delivery_cost_tiers`); err != nil {
		return fmt.Errorf("clear delivery cost tiers: %w", err)
	}

	for _, tier := range tiers {
		id := tier.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO delivery_cost_tiers (
				id, min_subtotal_minor, max_subtotal_minor, cost_minor
			) VALUES ($1,$2,$3,$4)
		`, id, tier.MinSubtotalMinor, tier.MaxSubtotalMinor, tier.CostMinor); err != nil {
			return fmt.Errorf("insert delivery cost tier: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tiers: %w", err)
	}

	return nil
}

var _ domain.TierRepository = (*tierRepository)(nil)
