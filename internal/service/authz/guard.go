package authz

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
)

// Guard — единая точка проверок ролей и владения. Движок и клиентский сервис
// спрашивают Guard, вместо того чтобы заново выводить правила в каждой
// операции.
type Guard struct {
	orders domain.OrderRepository
	logger *log.Entry
}

// NewGuard создаёт Guard поверх хранилища заказов. Заказы нужны для
// блокировки клиента: право продавца на клиента зависит от состояния
// всех его заказов.
func NewGuard(orders domain.OrderRepository, logger *log.Entry) *Guard {
	if logger == nil {
		logger = log.WithField("component", "authz")
	}
	return &Guard{orders: orders, logger: logger}
}

// RequireActor проверяет, что идентичность вызывающего представлена.
func (g *Guard) RequireActor(actor domain.Actor) error {
	if !actor.Authenticated() {
		return domain.ErrUnauthenticated
	}
	return nil
}

// CanCreateOrder разрешает создание заказа: администратор — для любого
// клиента, продавец — только для своих.
func (g *Guard) CanCreateOrder(actor domain.Actor, client domain.Client) error {
	if err := g.RequireActor(actor); err != nil {
		return err
	}

	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleSeller:
		if client.SellerID != actor.ID {
			return &domain.ForbiddenError{
				Reason: fmt.Sprintf("client %q belongs to another seller", client.ID),
			}
		}
		return nil
	default:
		return domain.ErrUnauthenticated
	}
}

// CanEditOrder разрешает правку заказа: администратор — всегда, продавец —
// только для своего клиента и только пока заказ в редактируемом наборе.
func (g *Guard) CanEditOrder(actor domain.Actor, order domain.Order, client domain.Client) error {
	if err := g.RequireActor(actor); err != nil {
		return err
	}

	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleSeller:
		if client.SellerID != actor.ID {
			return &domain.ForbiddenError{
				Reason: fmt.Sprintf("client %q belongs to another seller", client.ID),
			}
		}
		if !order.State.Editable() {
			return &domain.ForbiddenError{
				Reason: fmt.Sprintf("order %q left the editable state set (state %s)", order.ID, order.State),
			}
		}
		return nil
	default:
		return domain.ErrUnauthenticated
	}
}

// CanChangeState разрешает прямую смену состояния заказа только
// привилегированной роли.
func (g *Guard) CanChangeState(actor domain.Actor) error {
	if err := g.RequireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return &domain.ForbiddenError{Reason: "only administrator may change order state"}
	}
	return nil
}

// CanDeleteOrder разрешает удаление заказа только владеющему продавцу,
// и только пока заказ в редактируемом наборе.
func (g *Guard) CanDeleteOrder(actor domain.Actor, order domain.Order) error {
	if err := g.RequireActor(actor); err != nil {
		return err
	}
	if order.SellerID != actor.ID {
		return &domain.ForbiddenError{
			Reason: fmt.Sprintf("order %q may be deleted only by its owning seller", order.ID),
		}
	}
	if !order.State.Editable() {
		return &domain.ForbiddenError{
			Reason: fmt.Sprintf("order %q left the editable state set (state %s)", order.ID, order.State),
		}
	}
	return nil
}

// CanViewClient разрешает чтение клиента. Продавец теряет доступ, как
// только любой заказ клиента покидает редактируемый набор; правило
// перепроверяется на каждом запросе по текущим заказам.
func (g *Guard) CanViewClient(actor domain.Actor, client domain.Client) error {
	return g.clientAccess(actor, client, "view")
}

// CanEditClient разрешает правку клиента по тому же правилу блокировки.
func (g *Guard) CanEditClient(actor domain.Actor, client domain.Client) error {
	return g.clientAccess(actor, client, "edit")
}

// CanDeleteClient разрешает удаление клиента по тому же правилу блокировки.
func (g *Guard) CanDeleteClient(actor domain.Actor, client domain.Client) error {
	return g.clientAccess(actor, client, "delete")
}

func (g *Guard) clientAccess(actor domain.Actor, client domain.Client, action string) error {
	if err := g.RequireActor(actor); err != nil {
		return err
	}

	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleSeller:
		if client.SellerID != actor.ID {
			return &domain.ForbiddenError{
				Reason: fmt.Sprintf("client %q belongs to another seller", client.ID),
			}
		}
		locked, err := g.clientLocked(client.ID)
		if err != nil {
			return fmt.Errorf("check client lock: %w", err)
		}
		if locked {
			return &domain.ForbiddenError{
				Reason: fmt.Sprintf("cannot %s client %q: an order left the editable state set", action, client.ID),
			}
		}
		return nil
	default:
		return domain.ErrUnauthenticated
	}
}

// clientLocked сканирует текущие заказы клиента: любой заказ вне
// редактируемого набора запирает клиента для владеющего продавца.
func (g *Guard) clientLocked(clientID string) (bool, error) {
	orders, err := g.orders.ListByClient(clientID, 0)
	if err != nil {
		return false, err
	}
	for _, order := range orders {
		if !order.State.Editable() {
			return true, nil
		}
	}
	return false, nil
}
