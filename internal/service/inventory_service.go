package service

import (
	"context"

	"medmarket/internal/domain"
	"medmarket/internal/repository"
)

// InventoryService операции продавца над собственным каталогом и
// витрина каталога для покупателей
type InventoryService struct {
	listings repository.ListingRepository
}

func NewInventoryService(listings repository.ListingRepository) *InventoryService {
	return &InventoryService{listings: listings}
}

// UpsertListing создаёт или правит позицию продавца. SellerID берётся из
// актора: чужую позицию продавец изменить не может по построению.
// setQuantity=false — правка цены и атрибутов без перезаписи остатка.
func (s *InventoryService) UpsertListing(ctx context.Context, sellerID string, l domain.Listing, setQuantity bool) (*domain.Listing, error) {
	if sellerID == "" || l.MedicineCode == "" || l.DrugName == "" {
		return nil, ErrInvalidInput
	}
	if l.PricePerUnit.IsNegative() || l.QuantityAvailable < 0 || l.ReorderLevel < 0 {
		return nil, ErrInvalidInput
	}
	cp := l
	cp.SellerID = sellerID
	if err := s.listings.Upsert(ctx, &cp, setQuantity); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Catalog витрина для покупателя: фильтр по подстроке названия/бренда
func (s *InventoryService) Catalog(ctx context.Context, f repository.CatalogFilter) ([]domain.Listing, error) {
	return s.listings.List(ctx, f)
}

// SellerInventory список позиций одного продавца
func (s *InventoryService) SellerInventory(ctx context.Context, sellerID string) ([]domain.Listing, error) {
	if sellerID == "" {
		return nil, ErrInvalidInput
	}
	return s.listings.List(ctx, repository.CatalogFilter{SellerID: sellerID})
}

// Listing одна позиция каталога по ключу
func (s *InventoryService) Listing(ctx context.Context, key domain.ListingKey) (*domain.Listing, error) {
	if key.SellerID == "" || key.MedicineCode == "" {
		return nil, ErrInvalidInput
	}
	return s.listings.Get(ctx, key)
}

// AvailableQuantity текущий остаток позиции
func (s *InventoryService) AvailableQuantity(ctx context.Context, key domain.ListingKey) (int64, error) {
	if key.SellerID == "" || key.MedicineCode == "" {
		return 0, ErrInvalidInput
	}
	return s.listings.AvailableQuantity(ctx, key)
}
