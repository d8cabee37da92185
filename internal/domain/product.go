package domain

import "time"

// Product описывает товар поставщика с текущим остатком на складе.
type Product struct {
	ID          string
	SupplierID  string
	SupplierSKU string
	ProductSKU  string
	Name        string
	PriceMinor  int64
	// Stock — доступный остаток. Инвариант: никогда не опускается ниже нуля;
	// уменьшение выполняется только атомарным условным декрементом.
	Stock     int32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SKU — производный артикул. Всегда вычисляется из кодов поставщика и товара,
// никогда не принимается от вызывающего напрямую.
func (p *Product) SKU() string {
	return p.SupplierSKU + p.ProductSKU
}
