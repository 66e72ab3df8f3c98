package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"medmarket/internal/domain"
)

// ErrNotFound возвращается, когда сущность не найдена
var ErrNotFound = errors.New("not found")

// ErrInsufficientStock возвращается, когда остатка не хватает на резерв
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrStatusConflict возвращается, когда CAS-переход статуса проиграл гонку
// или заказ уже не в ожидаемом статусе
var ErrStatusConflict = errors.New("status conflict")

// CatalogFilter параметры фильтрации каталога
type CatalogFilter struct {
	Query       string // подстрока в drug_name или brand_name
	SellerID    string
	InStockOnly bool
}

// OrderFilter параметры выборки заказов
type OrderFilter struct {
	BuyerID  string
	SellerID string
	Status   domain.OrderStatus
}

// ReserveLine строка батч-резерва
type ReserveLine struct {
	Key      domain.ListingKey
	Quantity int64
}

// ListingRepository каталог и складская книга. Reserve/Release — единственный
// путь изменения остатка со стороны жизненного цикла заказа; Upsert — со
// стороны продавца. setQuantity=false правит только атрибуты: такая правка
// не может потерять конкурентное списание остатка.
type ListingRepository interface {
	Upsert(ctx context.Context, l *domain.Listing, setQuantity bool) error
	Get(ctx context.Context, key domain.ListingKey) (*domain.Listing, error)
	List(ctx context.Context, f CatalogFilter) ([]domain.Listing, error)
	AvailableQuantity(ctx context.Context, key domain.ListingKey) (int64, error)
	Reserve(ctx context.Context, key domain.ListingKey, qty int64) error
	Release(ctx context.Context, key domain.ListingKey, qty int64) error
	ReserveBatch(ctx context.Context, lines []ReserveLine) error
}

// OrderRepository хранилище заказов. Transition — атомарный CAS по статусу:
// из двух конкурентных разрешений заказа выигрывает ровно одно.
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, f OrderFilter) ([]domain.Order, error)
	Transition(ctx context.Context, id string, from, to domain.OrderStatus, resolvedBy string, at time.Time) (*domain.Order, error)
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
