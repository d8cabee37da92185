package domain

import (
	"errors"
	"fmt"
	"sort"
)

// DeliveryCostTier отображает диапазон субтоталов на фиксированную стоимость
// доставки. Диапазон полуоткрытый: [MinSubtotalMinor, MaxSubtotalMinor);
// MaxSubtotalMinor == 0 означает «не ограничен сверху».
type DeliveryCostTier struct {
	ID               string
	MinSubtotalMinor int64
	MaxSubtotalMinor int64
	CostMinor        int64
}

// Contains сообщает, попадает ли субтотал в диапазон тарифа.
func (t DeliveryCostTier) Contains(subtotalMinor int64) bool {
	if subtotalMinor < t.MinSubtotalMinor {
		return false
	}
	if t.MaxSubtotalMinor == 0 {
		return true
	}
	return subtotalMinor < t.MaxSubtotalMinor
}

// Unbounded сообщает, не ограничен ли тариф сверху.
func (t DeliveryCostTier) Unbounded() bool {
	return t.MaxSubtotalMinor == 0
}

// ValidateTiers проверяет тарифную сетку: границы каждого тарифа корректны,
// диапазоны не пересекаются. Поиск по корректной сетке детерминирован —
// субтоталу соответствует не больше одного тарифа.
func ValidateTiers(tiers []DeliveryCostTier) error {
	if len(tiers) == 0 {
		return errors.New("delivery cost tier table is empty")
	}

	sorted := make([]DeliveryCostTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinSubtotalMinor < sorted[j].MinSubtotalMinor
	})

	for i, tier := range sorted {
		if tier.MinSubtotalMinor < 0 {
			return fmt.Errorf("tier %q: min subtotal must be non-negative", tier.ID)
		}
		if tier.CostMinor < 0 {
			return fmt.Errorf("tier %q: delivery cost must be non-negative", tier.ID)
		}
		if !tier.Unbounded() && tier.MaxSubtotalMinor <= tier.MinSubtotalMinor {
			return fmt.Errorf("tier %q: max subtotal must be greater than min", tier.ID)
		}
		if i == 0 {
			continue
		}

		prev := sorted[i-1]
		if prev.Unbounded() {
			return fmt.Errorf("tier %q overlaps unbounded tier %q", tier.ID, prev.ID)
		}
		if tier.MinSubtotalMinor < prev.MaxSubtotalMinor {
			return fmt.Errorf("tier %q overlaps tier %q", tier.ID, prev.ID)
		}
	}

	return nil
}

// DefaultTiers возвращает тарифную сетку по умолчанию, покрывающую все
// неотрицательные субтоталы без разрывов.
func DefaultTiers() []DeliveryCostTier {
	return []DeliveryCostTier{
		{ID: "tier-base", MinSubtotalMinor: 0, MaxSubtotalMinor: 10_000, CostMinor: 1_500},
		{ID: "tier-mid", MinSubtotalMinor: 10_000, MaxSubtotalMinor: 50_000, CostMinor: 900},
		{ID: "tier-free", MinSubtotalMinor: 50_000, MaxSubtotalMinor: 0, CostMinor: 0},
	}
}
