package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"medmarket/internal/domain"
	"medmarket/internal/repository"
)

func setup(t *testing.T) (*InventoryService, *CartService, *OrderService, *ReportService) {
	t.Helper()
	store := repository.NewMemoryStore()
	ordersRepo := repository.NewMemoryOrders(store)
	inv := NewInventoryService(store)
	carts := NewCartService()
	orders := NewOrderService(store, ordersRepo, carts, nil, nil)
	reports := NewReportService(ordersRepo)
	return inv, carts, orders, reports
}

func listMedicine(t *testing.T, inv *InventoryService, seller, code, price string, qty int64) domain.Listing {
	t.Helper()
	l, err := inv.UpsertListing(context.Background(), seller, domain.Listing{
		MedicineCode:      code,
		DrugName:          "Paracetamol",
		BrandName:         "Calpol",
		Strength:          "500mg",
		UnitType:          "tablet",
		PricePerUnit:      decimal.RequireFromString(price),
		QuantityAvailable: qty,
		ReorderLevel:      5,
	}, true)
	if err != nil {
		t.Fatalf("upsert listing: %v", err)
	}
	return *l
}

func available(t *testing.T, inv *InventoryService, seller, code string) int64 {
	t.Helper()
	q, err := inv.AvailableQuantity(context.Background(), domain.ListingKey{SellerID: seller, MedicineCode: code})
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	return q
}

func TestPlaceAcceptReport_EndToEnd(t *testing.T) {
	ctx := context.Background()
	inv, carts, orders, reports := setup(t)

	l := listMedicine(t, inv, "S1", "MED001", "2.5", 10)
	if err := carts.AddItem(ctx, "B1", l, 4); err != nil {
		t.Fatalf("add item: %v", err)
	}

	created, err := orders.Place(ctx, "B1")
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 order, got %v", len(created))
	}
	o := created[0]
	if o.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending, got %v", o.Status)
	}
	if !o.TotalAmount.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("total expected 10, got %v", o.TotalAmount)
	}
	if q := available(t, inv, "S1", "MED001"); q != 6 {
		t.Fatalf("stock expected 6 after place, got %v", q)
	}

	// корзина очищена ровно один раз, повторное размещение — пустая корзина
	if _, err := orders.Place(ctx, "B1"); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected empty cart, got %v", err)
	}

	accepted, err := orders.Accept(ctx, o.ID, "S1")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != domain.OrderStatusAccepted || accepted.ResolvedBy != "S1" {
		t.Fatalf("unexpected accepted order: %+v", accepted)
	}
	// принятие книгу не трогает
	if q := available(t, inv, "S1", "MED001"); q != 6 {
		t.Fatalf("stock expected 6 after accept, got %v", q)
	}

	report, err := reports.SalesReport(ctx, "S1", PeriodDaily)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.TotalOrders < 1 {
		t.Fatalf("expected at least 1 reported order")
	}
	if report.TotalRevenue.LessThan(decimal.RequireFromString("10")) {
		t.Fatalf("expected revenue >= 10, got %v", report.TotalRevenue)
	}
}

func TestPlace_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	inv, carts, orders, _ := setup(t)

	a := listMedicine(t, inv, "S1", "MED001", "2.5", 10)
	b := listMedicine(t, inv, "S1", "MED002", "5.0", 2)
	if err := carts.AddItem(ctx, "B1", a, 3); err != nil {
		t.Fatal(err)
	}
	if err := carts.AddItem(ctx, "B1", b, 5); err != nil {
		t.Fatal(err)
	}

	if _, err := orders.Place(ctx, "B1"); !errors.Is(err, repository.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	// ни один резерв не применён, заказы не созданы
	if q := available(t, inv, "S1", "MED001"); q != 10 {
		t.Fatalf("MED001 stock expected 10, got %v", q)
	}
	if q := available(t, inv, "S1", "MED002"); q != 2 {
		t.Fatalf("MED002 stock expected 2, got %v", q)
	}
	buyerOrders, err := orders.BuyerOrders(ctx, "B1")
	if err != nil {
		t.Fatal(err)
	}
	if len(buyerOrders) != 0 {
		t.Fatalf("expected no orders, got %v", len(buyerOrders))
	}

	// корзина не очищается при неудаче
	lines, _ := carts.Lines(ctx, "B1")
	if len(lines) != 2 {
		t.Fatalf("cart must survive failed placement, got %v lines", len(lines))
	}
}

func TestPlace_MultiLine_IndependentOrders(t *testing.T) {
	ctx := context.Background()
	inv, carts, orders, _ := setup(t)

	a := listMedicine(t, inv, "S1", "MED001", "2.5", 10)
	b := listMedicine(t, inv, "S2", "MED002", "5.0", 10)
	if err := carts.AddItem(ctx, "B1", a, 2); err != nil {
		t.Fatal(err)
	}
	if err := carts.AddItem(ctx, "B1", b, 3); err != nil {
		t.Fatal(err)
	}

	created, err := orders.Place(ctx, "B1")
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 orders, got %v", len(created))
	}

	// каждый заказ разрешается своим продавцом независимо
	for _, o := range created {
		if _, err := orders.Accept(ctx, o.ID, o.SellerID); err != nil {
			t.Fatalf("accept %v: %v", o.ID, err)
		}
	}
}

func TestReject_RestoresStockExactly(t *testing.T) {
	ctx := context.Background()
	inv, carts, orders, _ := setup(t)

	l := listMedicine(t, inv, "S1", "MED001", "2.5", 10)
	if err := carts.AddItem(ctx, "B1", l, 4); err != nil {
		t.Fatal(err)
	}
	created, err := orders.Place(ctx, "B1")
	if err != nil {
		t.Fatal(err)
	}
	if q := available(t, inv, "S1", "MED001"); q != 6 {
		t.Fatalf("stock expected 6, got %v", q)
	}

	rejected, err := orders.Reject(ctx, created[0].ID, "S1")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != domain.OrderStatusRejected {
		t.Fatalf("expected rejected, got %v", rejected.Status)
	}
	if q := available(t, inv, "S1", "MED001"); q != 10 {
		t.Fatalf("stock expected 10 after reject, got %v", q)
	}
}

func TestResolve_NoDoubleResolution(t *testing.T) {
	ctx := context.Background()
	inv, carts, orders, _ := setup(t)

	l := listMedicine(t, inv, "S1", "MED001", "2.5", 10)
	if err := carts.AddItem(ctx, "B1", l, 4); err != nil {
		t.Fatal(err)
	}
	created, _ := orders.Place(ctx, "B1")
	id := created[0].ID

	if _, err := orders.Accept(ctx, id, "S1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := orders.Reject(ctx, id, "S1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	// проигравший reject остаток не вернул
	if q := available(t, inv, "S1", "MED001"); q != 6 {
		t.Fatalf("stock expected 6, got %v", q)
	}
	if _, err := orders.Accept(ctx, id, "S1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition on second accept, got %v", err)
	}
}

func TestResolve_ForbiddenAndNotFound(t *testing.T) {
	ctx := context.Background()
	inv, carts, orders, _ := setup(t)

	l := listMedicine(t, inv, "S1", "MED001", "2.5", 10)
	if err := carts.AddItem(ctx, "B1", l, 1); err != nil {
		t.Fatal(err)
	}
	created, _ := orders.Place(ctx, "B1")

	if _, err := orders.Accept(ctx, created[0].ID, "S2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := orders.Accept(ctx, "NOPE", "S1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestComplete_OnlyFromAccepted(t *testing.T) {
	ctx := context.Background()
	inv, carts, orders, _ := setup(t)

	l := listMedicine(t, inv, "S1", "MED001", "2.5", 10)
	if err := carts.AddItem(ctx, "B1", l, 2); err != nil {
		t.Fatal(err)
	}
	created, _ := orders.Place(ctx, "B1")
	id := created[0].ID

	if _, err := orders.Complete(ctx, id, "S1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition from pending, got %v", err)
	}
	if _, err := orders.Accept(ctx, id, "S1"); err != nil {
		t.Fatal(err)
	}
	done, err := orders.Complete(ctx, id, "S1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected completed, got %v", done.Status)
	}
	// завершение книгу не трогает
	if q := available(t, inv, "S1", "MED001"); q != 8 {
		t.Fatalf("stock expected 8, got %v", q)
	}
}

func TestOrderPriceSnapshot_ImmuneToDrift(t *testing.T) {
	ctx := context.Background()
	inv, carts, orders, _ := setup(t)

	l := listMedicine(t, inv, "S1", "MED001", "2.5", 10)
	if err := carts.AddItem(ctx, "B1", l, 4); err != nil {
		t.Fatal(err)
	}
	created, _ := orders.Place(ctx, "B1")

	// продавец меняет цену после размещения
	listMedicine(t, inv, "S1", "MED001", "9.99", 6)

	got, err := orders.Get(ctx, created[0].ID, "B1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.UnitPrice.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("unit price snapshot drifted: %v", got.UnitPrice)
	}
	if !got.TotalAmount.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("total snapshot drifted: %v", got.TotalAmount)
	}
}

func TestGet_Visibility(t *testing.T) {
	ctx := context.Background()
	inv, carts, orders, _ := setup(t)

	l := listMedicine(t, inv, "S1", "MED001", "2.5", 10)
	if err := carts.AddItem(ctx, "B1", l, 1); err != nil {
		t.Fatal(err)
	}
	created, _ := orders.Place(ctx, "B1")
	id := created[0].ID

	if _, err := orders.Get(ctx, id, "B1"); err != nil {
		t.Fatalf("buyer must see own order: %v", err)
	}
	if _, err := orders.Get(ctx, id, "S1"); err != nil {
		t.Fatalf("seller must see own order: %v", err)
	}
	if _, err := orders.Get(ctx, id, "B2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger must be forbidden, got %v", err)
	}
}
