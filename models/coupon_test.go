package models_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sruthreads/storefront_backend/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: dec(s), Valid: true}
}

func TestRawDiscount_PercentageCappedByMaxDiscount(t *testing.T) {
	// SAVE10: 10% of 300.00 is 30.00, capped to 5.00.
	got := models.RawDiscount(models.DiscountPercentage, dec("10"), nullDec("5.00"), dec("300.00"), dec("300.00"))
	if !got.Equal(dec("5.00")) {
		t.Fatalf("expected 5.00; got %s", got)
	}
}

func TestRawDiscount_FlatCappedByEligibleAmount(t *testing.T) {
	got := models.RawDiscount(models.DiscountFlat, dec("500.00"), decimal.NullDecimal{}, dec("120.00"), dec("400.00"))
	if !got.Equal(dec("120.00")) {
		t.Fatalf("expected flat discount capped to eligible 120.00; got %s", got)
	}
}

func TestRawDiscount_CappedBySubtotal(t *testing.T) {
	// Eligible can exceed subtotal only through bad inputs; the chain still
	// bounds the discount at the subtotal.
	got := models.RawDiscount(models.DiscountFlat, dec("90.00"), decimal.NullDecimal{}, dec("90.00"), dec("80.00"))
	if !got.Equal(dec("80.00")) {
		t.Fatalf("expected 80.00; got %s", got)
	}
}

func TestRawDiscount_PercentageRounding(t *testing.T) {
	// 10% of 33.33 is 3.333, rounds to 3.33.
	got := models.RawDiscount(models.DiscountPercentage, dec("10"), decimal.NullDecimal{}, dec("33.33"), dec("33.33"))
	if !got.Equal(dec("3.33")) {
		t.Fatalf("expected 3.33; got %s", got)
	}
}

func TestApportionDiscount_SumsExactly(t *testing.T) {
	items := []models.EvalLineItem{
		{ProductId: "a", Quantity: 1, LineTotal: dec("33.33")},
		{ProductId: "b", Quantity: 1, LineTotal: dec("33.33")},
		{ProductId: "c", Quantity: 1, LineTotal: dec("33.34")},
	}
	eligible := dec("100.00")
	discount := dec("10.00")

	shares := models.ApportionDiscount(discount, items, eligible)
	if len(shares) != 3 {
		t.Fatalf("expected 3 shares; got %d", len(shares))
	}

	sum := decimal.Zero
	for _, share := range shares {
		sum = sum.Add(share)
	}
	if !sum.Equal(discount) {
		t.Fatalf("shares sum %s != discount %s", sum, discount)
	}
	// Proportional shares round to 3.33 each; the last line absorbs the
	// remainder.
	if !shares["a"].Equal(dec("3.33")) || !shares["b"].Equal(dec("3.33")) {
		t.Fatalf("expected 3.33 for a and b; got %s and %s", shares["a"], shares["b"])
	}
	if !shares["c"].Equal(dec("3.34")) {
		t.Fatalf("expected remainder 3.34 on last line; got %s", shares["c"])
	}
}

func TestApportionDiscount_SingleItemTakesAll(t *testing.T) {
	items := []models.EvalLineItem{
		{ProductId: "p", Quantity: 3, LineTotal: dec("300.00")},
	}
	shares := models.ApportionDiscount(dec("5.00"), items, dec("300.00"))
	if !shares["p"].Equal(dec("5.00")) {
		t.Fatalf("expected single line to carry 5.00; got %s", shares["p"])
	}
}

func TestApportionDiscount_TinyDiscountNeverGoesNegative(t *testing.T) {
	// Two equal lines plus a zero-total line, discount one paisa: both
	// proportional shares round 0.005 up to 0.01, so an unclamped split
	// would hand the last line -0.01.
	items := []models.EvalLineItem{
		{ProductId: "a", Quantity: 1, LineTotal: dec("25.00")},
		{ProductId: "b", Quantity: 1, LineTotal: dec("25.00")},
		{ProductId: "c", Quantity: 1, LineTotal: dec("0.00")},
	}
	discount := dec("0.01")

	shares := models.ApportionDiscount(discount, items, dec("50.00"))
	if _, ok := shares["c"]; ok {
		t.Fatalf("zero-total line must get no share; got %s", shares["c"])
	}

	sum := decimal.Zero
	for id, share := range shares {
		if share.IsNegative() {
			t.Fatalf("line %s received negative share %s", id, share)
		}
		sum = sum.Add(share)
	}
	if !sum.Equal(discount) {
		t.Fatalf("shares sum %s != discount %s", sum, discount)
	}
}

func TestApportionDiscount_EmptyEligible(t *testing.T) {
	shares := models.ApportionDiscount(dec("5.00"), nil, decimal.Zero)
	if len(shares) != 0 {
		t.Fatalf("expected no shares; got %d", len(shares))
	}
}
