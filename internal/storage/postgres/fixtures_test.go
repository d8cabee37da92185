package postgres

import (
	"time"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
)

func sellerFixture(id string) domain.Seller {
	return domain.Seller{
		ID:        id,
		Name:      "Продавец " + id,
		Email:     id + "@example.com",
		CreatedAt: time.Now().UTC().Round(time.Microsecond),
	}
}

func supplierFixture(id string) domain.Supplier {
	now := time.Now().UTC().Round(time.Microsecond)
	return domain.Supplier{
		ID:        id,
		Code:      "SUP-" + id,
		Name:      "Поставщик " + id,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func clientFixture(id, sellerID string) domain.Client {
	now := time.Now().UTC().Round(time.Microsecond)
	return domain.Client{
		ID:        id,
		SellerID:  sellerID,
		Name:      "Клиент " + id,
		Email:     id + "@example.com",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func productFixture(id, supplierID string, priceMinor int64, stock int32) domain.Product {
	now := time.Now().UTC().Round(time.Microsecond)
	return domain.Product{
		ID:          id,
		SupplierID:  supplierID,
		SupplierSKU: "S-",
		ProductSKU:  id,
		Name:        "Товар " + id,
		PriceMinor:  priceMinor,
		Stock:       stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func orderFixture(id, clientID, sellerID string, createdAt time.Time) domain.Order {
	items := []domain.OrderItem{
		{
			ID:         id + "-item-1",
			ProductID:  "product-1",
			Qty:        2,
			PriceMinor: 500,
			CreatedAt:  createdAt,
		},
	}
	return domain.Order{
		ID:                id,
		ClientID:          clientID,
		SellerID:          sellerID,
		Items:             items,
		SubtotalMinor:     1000,
		DeliveryCostMinor: 1500,
		TotalMinor:        2500,
		State:             domain.OrderStatePending,
		Notes:             []string{"интеграционный заказ"},
		Version:           1,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
}
