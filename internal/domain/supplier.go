package domain

import "time"

// Supplier — поставщик товаров.
type Supplier struct {
	ID        string
	Code      string
	Name      string
	Email     string
	Phone     string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
