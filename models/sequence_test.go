package models_test

import (
	"testing"

	"github.com/sruthreads/storefront_backend/models"
)

func TestFormatOrderNumber(t *testing.T) {
	got := models.FormatOrderNumber("SRU", 123)
	if got != "ORD-SRU-000123" {
		t.Fatalf("expected ORD-SRU-000123; got %s", got)
	}
	// Counters past the pad width keep growing instead of wrapping.
	got = models.FormatOrderNumber("SRU", 1234567)
	if got != "ORD-SRU-1234567" {
		t.Fatalf("expected ORD-SRU-1234567; got %s", got)
	}
}

func TestFormatProductCode(t *testing.T) {
	if got := models.FormatProductCode("SKU", 42); got != "SKU-000042" {
		t.Fatalf("expected SKU-000042; got %s", got)
	}
	if got := models.FormatProductCode("", 7); got != "PRD-000007" {
		t.Fatalf("expected default PRD prefix; got %s", got)
	}
}
