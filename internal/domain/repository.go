package domain

// ProductRepository описывает требования к хранилищу товаров.
type ProductRepository interface {
	// Create сохраняет новый товар.
	Create(product Product) error
	// Get возвращает товар или NotFoundError, если его нет.
	Get(id string) (Product, error)
	// Update перезаписывает поля товара.
	Update(product Product) error
	// ListBySupplier возвращает товары поставщика.
	ListBySupplier(supplierID string) ([]Product, error)
	// ReserveStock атомарно уменьшает остаток: единственный условный декремент
	// «уменьшить, только если остатка хватает». Возвращает цену за единицу на
	// момент резервирования, NotFoundError или StockError с доступным остатком.
	// Раздельные чтение и запись здесь недопустимы: два конкурентных
	// резервирования не должны оба пройти, если суммарно превышают остаток.
	ReserveStock(productID string, qty int32) (priceMinor int64, err error)
	// ReleaseStock возвращает количество на склад.
	ReleaseStock(productID string, qty int32) error
}

// ClientRepository описывает требования к хранилищу клиентов.
type ClientRepository interface {
	Create(client Client) error
	Get(id string) (Client, error)
	Update(client Client) error
	Delete(id string) error
	ListBySeller(sellerID string) ([]Client, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ошибку, если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или NotFoundError, если его нет.
	Get(id string) (Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
	// Delete удаляет заказ вместе с позициями.
	Delete(id string) error
	// ListByClient возвращает заказы клиента с опциональным ограничением на количество.
	ListByClient(clientID string, limit int) ([]Order, error)
	// ListBySeller возвращает заказы продавца с опциональным ограничением на количество.
	ListBySeller(sellerID string, limit int) ([]Order, error)
}

// SellerRepository описывает требования к хранилищу продавцов и их комиссий.
type SellerRepository interface {
	Create(seller Seller) error
	Get(id string) (Seller, error)
	// AppendCommission добавляет комиссионную запись в историю продавца.
	// История append-only: записи никогда не меняются и не удаляются.
	AppendCommission(record CommissionRecord) error
	// ListCommissions возвращает историю комиссий продавца в порядке выплат.
	ListCommissions(sellerID string) ([]CommissionRecord, error)
}

// SupplierRepository описывает требования к хранилищу поставщиков.
type SupplierRepository interface {
	Create(supplier Supplier) error
	Get(id string) (Supplier, error)
	List() ([]Supplier, error)
}

// TierRepository хранит тарифную сетку стоимости доставки.
type TierRepository interface {
	// List возвращает все тарифы.
	List() ([]DeliveryCostTier, error)
	// Replace атомарно заменяет тарифную сетку. Новая сетка предварительно
	// проверяется ValidateTiers.
	Replace(tiers []DeliveryCostTier) error
}
