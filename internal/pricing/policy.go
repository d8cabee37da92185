package pricing

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
)

// Policy разрешает стоимость доставки по субтоталу заказа через тарифную
// сетку. Чистый поиск без побочных эффектов: субтоталу соответствует ровно
// один тариф, иначе операция завершается ошибкой конфигурации.
type Policy struct {
	tiers  domain.TierRepository
	logger *log.Entry
}

// NewPolicy создаёт ценовую политику поверх хранилища тарифов.
func NewPolicy(tiers domain.TierRepository, logger *log.Entry) *Policy {
	if logger == nil {
		logger = log.WithField("component", "pricing")
	}
	return &Policy{tiers: tiers, logger: logger}
}

// ResolveDeliveryCost возвращает стоимость доставки для субтотала.
// Дыра в покрытии сетки — ConfigError, а не молчаливый ноль: ноль исказил бы
// итоговую сумму заказа.
func (p *Policy) ResolveDeliveryCost(subtotalMinor int64) (int64, error) {
	if subtotalMinor < 0 {
		return 0, &domain.ValidationError{Issues: []error{
			fmt.Errorf("subtotal must be non-negative, got %d", subtotalMinor),
		}}
	}

	tiers, err := p.tiers.List()
	if err != nil {
		return 0, fmt.Errorf("load delivery cost tiers: %w", err)
	}

	tier, ok := MatchTier(tiers, subtotalMinor)
	if !ok {
		p.logger.WithField("subtotal_minor", subtotalMinor).
			Error("delivery cost tier table has a coverage gap")
		return 0, &domain.ConfigError{SubtotalMinor: subtotalMinor}
	}

	return tier.CostMinor, nil
}

// MatchTier находит тариф, содержащий субтотал. В корректной сетке
// (см. domain.ValidateTiers) совпадение не более чем одно.
func MatchTier(tiers []domain.DeliveryCostTier, subtotalMinor int64) (domain.DeliveryCostTier, bool) {
	for _, tier := range tiers {
		if tier.Contains(subtotalMinor) {
			return tier, true
		}
	}
	return domain.DeliveryCostTier{}, false
}
