package main

import (
	"context"
	"testing"
	"time"
)

func TestRunProbe_NoOversell(t *testing.T) {
	cfg := config{
		sellers:      8,
		qtyPerOrder:  3,
		initialStock: 10,
		priceMinor:   500,
		timeout:      10 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	rep, err := runProbe(ctx, cfg)
	if err != nil {
		t.Fatalf("runProbe failed: %v", err)
	}

	if rep.Oversold {
		t.Fatalf("stock was oversold: %+v", rep)
	}
	if rep.OtherFailures != 0 {
		t.Fatalf("expected only stock refusals, got %d other failures", rep.OtherFailures)
	}
	if rep.Succeeded+rep.StockRefusals != int64(cfg.sellers) {
		t.Fatalf("all orders must either succeed or be refused: %+v", rep)
	}

	// При остатке 10 и заказах по 3 успешных может быть максимум 3.
	if rep.Succeeded == 0 || rep.Succeeded > 3 {
		t.Fatalf("unexpected success count: %d", rep.Succeeded)
	}
	if rep.RemainingStock < 0 {
		t.Fatalf("remaining stock is negative: %d", rep.RemainingStock)
	}

	expected := int64(cfg.initialStock) - rep.Succeeded*int64(cfg.qtyPerOrder)
	if int64(rep.RemainingStock) != expected {
		t.Fatalf("remaining stock %d does not match expected %d", rep.RemainingStock, expected)
	}
}

func TestRunProbe_ExactFit(t *testing.T) {
	// Спрос одного продавца покрывается остатком целиком.
	cfg := config{
		sellers:      4,
		qtyPerOrder:  5,
		initialStock: 5,
		priceMinor:   100,
		timeout:      10 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	rep, err := runProbe(ctx, cfg)
	if err != nil {
		t.Fatalf("runProbe failed: %v", err)
	}

	if rep.Succeeded != 1 {
		t.Fatalf("expected exactly one successful order, got %d", rep.Succeeded)
	}
	if rep.RemainingStock != 0 {
		t.Fatalf("expected stock to be fully reserved, got %d", rep.RemainingStock)
	}
	if rep.Oversold {
		t.Fatalf("stock was oversold: %+v", rep)
	}
}
