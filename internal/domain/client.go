package domain

import "time"

// Client — покупатель, закреплённый ровно за одним продавцом.
// Право продавца читать и редактировать клиента зависит от состояния
// заказов клиента и перепроверяется на каждом запросе.
type Client struct {
	ID        string
	SellerID  string
	Name      string
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
