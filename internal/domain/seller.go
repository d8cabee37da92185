package domain

import "time"

// Seller — продавец: владелец клиентов и создаваемых для них заказов.
type Seller struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// CommissionRecord фиксирует выплату комиссии продавцу по заказу.
// Записи только добавляются; созданная запись никогда не меняется и не удаляется.
type CommissionRecord struct {
	ID          string
	SellerID    string
	OrderID     string
	AmountMinor int64
	Payer       string
	PaidAt      time.Time
}

// Validate проверяет, корректно ли заполнены ключевые поля комиссионной записи.
func (c *CommissionRecord) Validate() []error {
	var errs []error

	if c.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if c.AmountMinor <= 0 {
		errs = append(errs, ErrCommissionAmountInvalid)
	}
	if c.Payer == "" {
		errs = append(errs, ErrCommissionPayerRequired)
	}

	return errs
}
