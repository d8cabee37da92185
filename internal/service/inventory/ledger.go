package inventory

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
	"github.com/vladislavdragonenkov/salesops/internal/metrics"
)

// Ledger — складской регистр: владеет резервированием и возвратом остатков.
// Атомарность одиночного резервирования обеспечивает ProductRepository
// (единственный условный декремент); Ledger добавляет мультипозиционную
// семантику «всё или ничего» с компенсирующими возвратами.
type Ledger struct {
	products domain.ProductRepository
	logger   *log.Entry
	metrics  *metrics.ReservationMetrics
}

var _ domain.StockLedger = (*Ledger)(nil)

// NewLedger создаёт складской регистр поверх репозитория товаров.
func NewLedger(products domain.ProductRepository, logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.WithField("component", "inventory")
	}
	return &Ledger{
		products: products,
		logger:   logger,
		metrics:  metrics.NewReservationMetrics(),
	}
}

// NewLedgerWithoutMetrics создаёт регистр без метрик (для тестов).
func NewLedgerWithoutMetrics(products domain.ProductRepository, logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.WithField("component", "inventory")
	}
	return &Ledger{products: products, logger: logger}
}

// ReserveLine — запрос на резервирование одной позиции.
type ReserveLine struct {
	ProductID string
	Qty       int32
}

// ReservedLine — результат успешного резервирования одной позиции.
type ReservedLine struct {
	ProductID string
	Qty       int32
	// PriceMinor — цена за единицу, зафиксированная в момент резервирования.
	PriceMinor int64
}

// Reserve резервирует остаток одного товара и возвращает цену за единицу
// на момент резервирования.
func (l *Ledger) Reserve(productID string, qty int32) (int64, error) {
	if qty <= 0 {
		return 0, &domain.ValidationError{Issues: []error{domain.ErrItemQtyInvalid}}
	}

	price, err := l.products.ReserveStock(productID, qty)
	if err != nil {
		if domain.IsInsufficientStock(err) {
			if l.metrics != nil {
				l.metrics.RecordRejection()
			}
			l.logger.WithFields(log.Fields{
				"product_id": productID,
				"qty":        qty,
			}).Warn("reservation rejected: insufficient stock")
		}
		return 0, err
	}

	if l.metrics != nil {
		l.metrics.RecordReservation()
	}
	return price, nil
}

// Release возвращает количество на склад. Вызывающий обязан не снимать
// один и тот же резерв дважды.
func (l *Ledger) Release(productID string, qty int32) error {
	if qty <= 0 {
		return &domain.ValidationError{Issues: []error{domain.ErrItemQtyInvalid}}
	}

	if err := l.products.ReleaseStock(productID, qty); err != nil {
		return err
	}
	if l.metrics != nil {
		l.metrics.RecordRelease()
	}
	return nil
}

// ReserveAll резервирует все позиции как одно логическое целое: при первом
// отказе уже выполненные резервирования этого вызова компенсируются
// возвратами, и наружу уходит ошибка с идентификатором проблемного товара.
func (l *Ledger) ReserveAll(lines []ReserveLine) ([]ReservedLine, error) {
	if len(lines) == 0 {
		return nil, &domain.ValidationError{Issues: []error{domain.ErrItemsRequired}}
	}

	reserved := make([]ReservedLine, 0, len(lines))
	for _, line := range lines {
		price, err := l.Reserve(line.ProductID, line.Qty)
		if err != nil {
			l.rollback(reserved)
			return nil, err
		}
		reserved = append(reserved, ReservedLine{
			ProductID:  line.ProductID,
			Qty:        line.Qty,
			PriceMinor: price,
		})
	}

	return reserved, nil
}

// ReleaseAll возвращает на склад все переданные позиции.
func (l *Ledger) ReleaseAll(lines []ReservedLine) {
	l.rollback(lines)
}

func (l *Ledger) rollback(reserved []ReservedLine) {
	for _, line := range reserved {
		if err := l.Release(line.ProductID, line.Qty); err != nil {
			// Возврат сорвался — остаток разойдётся с реальностью, это
			// важнее обычного предупреждения.
			l.logger.WithError(err).WithFields(log.Fields{
				"product_id": line.ProductID,
				"qty":        line.Qty,
			}).Error("compensating release failed")
		}
	}
}
