package models_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sruthreads/storefront_backend/models"
)

func TestDeriveGstAmount(t *testing.T) {
	// A 118.00 price at 18% GST contains 18.00 of tax.
	got := models.DeriveGstAmount(dec("118.00"), dec("18"))
	if !got.Equal(dec("18.00")) {
		t.Fatalf("expected 18.00; got %s", got)
	}

	// 100.00 at 5%: base 95.238..., tax 4.76 after rounding.
	got = models.DeriveGstAmount(dec("100.00"), dec("5"))
	if !got.Equal(dec("4.76")) {
		t.Fatalf("expected 4.76; got %s", got)
	}

	if !models.DeriveGstAmount(dec("100.00"), decimal.Zero).Equal(decimal.Zero) {
		t.Fatal("zero gst must derive zero amount")
	}
}
