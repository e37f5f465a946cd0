package models_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sruthreads/storefront_backend/models"
)

func TestApplyMovement_Sequence(t *testing.T) {
	// PURCHASE(+10), SELL(-3): 7 remain; SELL(-8) must fail.
	level, err := models.ApplyMovement(0, models.MovementPurchase, 10)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if level != 10 {
		t.Fatalf("expected 10 after purchase; got %d", level)
	}

	level, err = models.ApplyMovement(level, models.MovementSell, 3)
	if err != nil {
		t.Fatalf("sell 3: %v", err)
	}
	if level != 7 {
		t.Fatalf("expected 7 after sell; got %d", level)
	}

	_, err = models.ApplyMovement(level, models.MovementSell, 8)
	if err != models.ErrInsufficientStock {
		t.Fatalf("expected ErrInsufficientStock; got %v", err)
	}
}

func TestApplyMovement_ReturnTypes(t *testing.T) {
	level, err := models.ApplyMovement(5, models.MovementSaleReturn, 2)
	if err != nil || level != 7 {
		t.Fatalf("sale return: got %d, %v", level, err)
	}
	level, err = models.ApplyMovement(7, models.MovementPurchaseReturn, 7)
	if err != nil || level != 0 {
		t.Fatalf("purchase return: got %d, %v", level, err)
	}
	_, err = models.ApplyMovement(0, models.MovementPurchaseReturn, 1)
	if err != models.ErrInsufficientStock {
		t.Fatalf("expected ErrInsufficientStock; got %v", err)
	}
}

func TestApplyMovement_RejectsNonPositiveQuantity(t *testing.T) {
	if _, err := models.ApplyMovement(10, models.MovementPurchase, 0); err == nil {
		t.Fatal("expected error for zero quantity")
	}
	if _, err := models.ApplyMovement(10, models.MovementSell, -1); err == nil {
		t.Fatal("expected error for negative quantity")
	}
}

func TestRecordMovement_RequiresImpliedPrice(t *testing.T) {
	// Price validation runs before any database work, so a missing implied
	// price must be rejected up front for every movement type.
	cases := []struct {
		name  string
		input models.MovementInput
	}{
		{"purchase without purchase price", models.MovementInput{
			ProductId: "p1", Type: models.MovementPurchase, Quantity: 5,
			SalePrice: dec("10.00"),
		}},
		{"purchase return without purchase price", models.MovementInput{
			ProductId: "p1", Type: models.MovementPurchaseReturn, Quantity: 2,
		}},
		{"sell without sale price", models.MovementInput{
			ProductId: "p1", Type: models.MovementSell, Quantity: 3,
			PurchasePrice: dec("10.00"),
		}},
		{"sale return without sale price", models.MovementInput{
			ProductId: "p1", Type: models.MovementSaleReturn, Quantity: 1,
		}},
	}
	for _, tc := range cases {
		if _, err := models.RecordMovement(context.Background(), "store-1", tc.input, "tester"); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestDeriveRate_Rounding(t *testing.T) {
	rate := models.DeriveRate(dec("100.00"), 3)
	if !rate.Equal(dec("33.33")) {
		t.Fatalf("expected 33.33; got %s", rate)
	}
	rate = models.DeriveRate(dec("0.10"), 3)
	if !rate.Equal(dec("0.03")) {
		t.Fatalf("expected 0.03; got %s", rate)
	}
	if !models.DeriveRate(dec("50.00"), 0).Equal(decimal.Zero) {
		t.Fatal("zero quantity must yield zero rate")
	}
}
