package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated возвращается, если запрос пришёл без идентичности вызывающего.
	ErrUnauthenticated = errors.New("caller is not authenticated")
	// ErrForbidden — вызывающий аутентифицирован, но не имеет права на операцию.
	ErrForbidden = errors.New("operation is forbidden")
	// ErrNotFound — запрошенная сущность отсутствует в хранилище.
	ErrNotFound = errors.New("entity not found")
	// ErrInsufficientStock — запрошенное количество превышает доступный остаток.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrNoTierMatch — ни один тариф доставки не покрывает субтотал (дыра в конфигурации).
	ErrNoTierMatch = errors.New("no delivery cost tier matches subtotal")
	// ErrValidation — некорректные входные данные.
	ErrValidation = errors.New("validation failed")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении заказа.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// Валидационные ошибки уровня доменной модели.
var (
	// Ошибка отсутствующего идентификатора клиента в заказе.
	ErrClientRequired = errors.New("client_id is required")
	// Ошибка отсутствующего идентификатора продавца.
	ErrSellerRequired = errors.New("seller_id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия субтотала сумме позиций.
	ErrSubtotalMismatch = errors.New("order subtotal does not match items sum")
	// Ошибка отрицательной стоимости доставки.
	ErrDeliveryCostNegative = errors.New("delivery cost must be non-negative")
	// Ошибка несоответствия итоговой суммы (total != subtotal + delivery cost).
	ErrTotalMismatch = errors.New("order total does not match subtotal plus delivery cost")
	// Ошибка неизвестного состояния заказа.
	ErrOrderStateInvalid = errors.New("order state is not valid")
	// Ошибка отсутствующего идентификатора заказа в комиссионной записи.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка некорректной суммы комиссии (<= 0).
	ErrCommissionAmountInvalid = errors.New("commission amount must be greater than zero")
	// Ошибка отсутствующего плательщика комиссии.
	ErrCommissionPayerRequired = errors.New("commission payer is required")
)

// NotFoundError уточняет, какая именно сущность не найдена.
type NotFoundError struct {
	// Kind — вид сущности: "client", "product", "order", "seller", "supplier".
	Kind string
	// ID — идентификатор, по которому искали.
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Unwrap позволяет сопоставлять ошибку с сентинелом ErrNotFound.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ForbiddenError несёт человекочитаемую причину отказа в доступе.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Reason)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// StockError описывает отказ резервирования: какой товар и сколько было доступно.
type StockError struct {
	ProductID string
	Requested int32
	Available int32
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// ConfigError сигнализирует о дыре в покрытии тарифной сетки доставки.
// Молчаливый fallback в ноль исказил бы итоговые суммы заказов, поэтому
// такая ситуация всегда является ошибкой конфигурации.
type ConfigError struct {
	SubtotalMinor int64
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("delivery cost tier table does not cover subtotal %d", e.SubtotalMinor)
}

func (e *ConfigError) Unwrap() error { return ErrNoTierMatch }

// ValidationError агрегирует доменные замечания к входным данным.
type ValidationError struct {
	Issues []error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", errors.Join(e.Issues...))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsUnauthenticated проверяет, является ли ошибка отсутствием аутентификации.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// IsForbidden проверяет, является ли ошибка отказом в доступе.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsNotFound проверяет, является ли ошибка отсутствием сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInsufficientStock проверяет, является ли ошибка нехваткой остатка.
func IsInsufficientStock(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}

// IsConfigError проверяет, является ли ошибка дырой в тарифной сетке.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrNoTierMatch)
}

// IsValidation проверяет, является ли ошибка валидационной.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
