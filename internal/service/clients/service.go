package clients

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
	"github.com/vladislavdragonenkov/salesops/internal/service/authz"
)

// Service — тонкий CRUD над клиентами, каждая операция которого сначала
// спрашивает Guard. Бизнес-логики здесь нет: сервис существует ради правила
// «клиент с заказом вне редактируемого набора закрыт для своего продавца».
type Service struct {
	clients domain.ClientRepository
	guard   *authz.Guard
	logger  *log.Entry
}

// NewService создаёт сервис клиентских записей.
func NewService(clients domain.ClientRepository, guard *authz.Guard, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "clients")
	}
	return &Service{
		clients: clients,
		guard:   guard,
		logger:  logger,
	}
}

// CreateInput — поля создаваемого клиента. SellerID учитывается только
// для администратора; продавец всегда становится владельцем сам.
type CreateInput struct {
	Name     string
	Email    string
	Phone    string
	Address  string
	SellerID string
}

// UpdateInput — редактируемые поля клиента.
type UpdateInput struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// Create заводит клиента. Продавец становится владельцем создаваемой записи.
func (s *Service) Create(actor domain.Actor, input CreateInput) (domain.Client, error) {
	if err := s.guard.RequireActor(actor); err != nil {
		return domain.Client{}, err
	}

	ownerID := actor.ID
	if actor.IsAdmin() {
		if input.SellerID == "" {
			return domain.Client{}, &domain.ValidationError{Issues: []error{domain.ErrSellerRequired}}
		}
		ownerID = input.SellerID
	}

	now := time.Now().UTC()
	client := domain.Client{
		ID:        uuid.NewString(),
		SellerID:  ownerID,
		Name:      input.Name,
		Email:     input.Email,
		Phone:     input.Phone,
		Address:   input.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.clients.Create(client); err != nil {
		s.logger.WithError(err).WithField("client_id", client.ID).Error("failed to create client")
		return domain.Client{}, fmt.Errorf("create client: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"client_id": client.ID,
		"seller_id": client.SellerID,
	}).Info("client created")

	return client, nil
}

// Get возвращает клиента с проверкой права просмотра.
func (s *Service) Get(actor domain.Actor, clientID string) (domain.Client, error) {
	client, err := s.clients.Get(clientID)
	if err != nil {
		return domain.Client{}, fmt.Errorf("load client: %w", err)
	}
	if err := s.guard.CanViewClient(actor, client); err != nil {
		return domain.Client{}, err
	}
	return client, nil
}

// Update перезаписывает контактные поля клиента, если Guard не против.
func (s *Service) Update(actor domain.Actor, clientID string, input UpdateInput) (domain.Client, error) {
	client, err := s.clients.Get(clientID)
	if err != nil {
		return domain.Client{}, fmt.Errorf("load client: %w", err)
	}
	if err := s.guard.CanEditClient(actor, client); err != nil {
		return domain.Client{}, err
	}

	client.Name = input.Name
	client.Email = input.Email
	client.Phone = input.Phone
	client.Address = input.Address
	client.UpdatedAt = time.Now().UTC()

	if err := s.clients.Update(client); err != nil {
		s.logger.WithError(err).WithField("client_id", client.ID).Error("failed to update client")
		return domain.Client{}, fmt.Errorf("update client: %w", err)
	}
	return client, nil
}

// Delete удаляет клиента, если Guard не против.
func (s *Service) Delete(actor domain.Actor, clientID string) error {
	client, err := s.clients.Get(clientID)
	if err != nil {
		return fmt.Errorf("load client: %w", err)
	}
	if err := s.guard.CanDeleteClient(actor, client); err != nil {
		return err
	}

	if err := s.clients.Delete(clientID); err != nil {
		s.logger.WithError(err).WithField("client_id", clientID).Error("failed to delete client")
		return fmt.Errorf("delete client: %w", err)
	}

	s.logger.WithField("client_id", clientID).Info("client deleted")
	return nil
}

// ListMine возвращает клиентов продавца; администратор передаёт sellerID явно.
func (s *Service) ListMine(actor domain.Actor, sellerID string) ([]domain.Client, error) {
	if err := s.guard.RequireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		sellerID = actor.ID
	}
	return s.clients.ListBySeller(sellerID)
}
