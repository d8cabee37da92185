package domain

// Role описывает роль вызывающего. Закрытое перечисление: новая роль
// должна быть явно учтена в каждом switch по ролям.
type Role string

const (
	// RoleSeller — стандартная роль: продавец владеет своими клиентами и заказами.
	RoleSeller Role = "seller"
	// RoleAdmin — привилегированная роль без ограничений на просмотр/редактирование.
	RoleAdmin Role = "administrator"
)

// Valid сообщает, известна ли роль системе.
func (r Role) Valid() bool {
	switch r {
	case RoleSeller, RoleAdmin:
		return true
	default:
		return false
	}
}

// Actor — уже аутентифицированная идентичность вызывающего.
// Аутентификация выполняется снаружи; ядро получает только id и роль.
type Actor struct {
	ID   string
	Role Role
}

// Authenticated сообщает, представлена ли идентичность вызывающего.
func (a Actor) Authenticated() bool {
	return a.ID != "" && a.Role.Valid()
}

// IsAdmin сообщает, имеет ли вызывающий привилегированную роль.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
