package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"medmarket/internal/domain"
)

func TestUpsertListing_Validation(t *testing.T) {
	ctx := context.Background()
	inv, _, _, _ := setup(t)

	cases := []struct {
		name string
		l    domain.Listing
	}{
		{"no code", domain.Listing{DrugName: "A", PricePerUnit: decimal.NewFromInt(1)}},
		{"no name", domain.Listing{MedicineCode: "MED001", PricePerUnit: decimal.NewFromInt(1)}},
		{"negative price", domain.Listing{MedicineCode: "MED001", DrugName: "A", PricePerUnit: decimal.NewFromInt(-1)}},
		{"negative quantity", domain.Listing{MedicineCode: "MED001", DrugName: "A", QuantityAvailable: -1}},
	}
	for _, tc := range cases {
		if _, err := inv.UpsertListing(ctx, "S1", tc.l, true); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", tc.name, err)
		}
	}
	if _, err := inv.UpsertListing(ctx, "", domain.Listing{MedicineCode: "MED001", DrugName: "A"}, true); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty seller, got %v", err)
	}
}

func TestSellerInventory_OwnListingsOnly(t *testing.T) {
	ctx := context.Background()
	inv, _, _, _ := setup(t)

	listMedicine(t, inv, "S1", "MED001", "2.5", 10)
	listMedicine(t, inv, "S1", "MED002", "5.0", 3)
	listMedicine(t, inv, "S2", "MED003", "1.0", 7)

	own, err := inv.SellerInventory(ctx, "S1")
	if err != nil {
		t.Fatalf("inventory: %v", err)
	}
	if len(own) != 2 {
		t.Fatalf("expected 2 listings for S1, got %v", len(own))
	}
	for _, l := range own {
		if l.SellerID != "S1" {
			t.Fatalf("foreign listing in inventory: %+v", l)
		}
	}
}

func TestListing_LowStockFlag(t *testing.T) {
	ctx := context.Background()
	inv, _, _, _ := setup(t)

	l := listMedicine(t, inv, "S1", "MED001", "2.5", 10)
	if l.LowStock() {
		t.Fatalf("10 with reorder level 5 must not be low stock")
	}

	got, err := inv.UpsertListing(ctx, "S1", domain.Listing{
		MedicineCode:      "MED001",
		DrugName:          l.DrugName,
		PricePerUnit:      l.PricePerUnit,
		QuantityAvailable: 5,
		ReorderLevel:      5,
	}, true)
	if err != nil {
		t.Fatal(err)
	}
	if !got.LowStock() {
		t.Fatalf("5 with reorder level 5 must be low stock")
	}
}
