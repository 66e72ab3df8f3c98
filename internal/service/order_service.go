package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"medmarket/internal/domain"
	"medmarket/internal/eventbus"
	"medmarket/internal/metrics"
	"medmarket/internal/repository"
)

var (
	ErrEmptyCart         = errors.New("empty cart")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid transition")
)

// OrderService конечный автомат заказа: размещение из корзины, решение
// продавца, завершение. Резерв остатка делается при размещении, чтобы
// видимый покупателю остаток учитывал заказы, ждущие решения продавца;
// отклонение — компенсирующая транзакция, возвращающая резерв.
type OrderService struct {
	listings repository.ListingRepository
	orders   repository.OrderRepository
	carts    *CartService
	bus      *eventbus.Publisher
	metrics  *metrics.Metrics
}

func NewOrderService(listings repository.ListingRepository, orders repository.OrderRepository, carts *CartService, bus *eventbus.Publisher, m *metrics.Metrics) *OrderService {
	return &OrderService{listings: listings, orders: orders, carts: carts, bus: bus, metrics: m}
}

// Place размещает корзину покупателя: резервирует остаток по всем строкам
// батчем (всё или ничего), на каждую строку создаёт отдельный Pending-заказ
// со снимком цены и очищает корзину.
func (s *OrderService) Place(ctx context.Context, buyerID string) ([]domain.Order, error) {
	lines, err := s.carts.Lines(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	reserve := make([]repository.ReserveLine, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, ErrInvalidInput
		}
		key := domain.ListingKey{SellerID: line.SellerID, MedicineCode: line.MedicineCode}
		reserve = append(reserve, repository.ReserveLine{Key: key, Quantity: line.Quantity})
	}
	if err := s.listings.ReserveBatch(ctx, reserve); err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			s.metrics.StockRefusal()
		}
		return nil, err
	}

	created := make([]domain.Order, 0, len(lines))
	for _, line := range lines {
		key := domain.ListingKey{SellerID: line.SellerID, MedicineCode: line.MedicineCode}
		listing, err := s.listings.Get(ctx, key)
		if err != nil {
			s.rollback(ctx, reserve)
			return nil, err
		}
		o := domain.Order{
			ID:           uuid.NewString(),
			BuyerID:      buyerID,
			SellerID:     line.SellerID,
			MedicineCode: line.MedicineCode,
			DrugName:     listing.DrugName,
			Quantity:     line.Quantity,
			UnitPrice:    listing.PricePerUnit,
			TotalAmount:  listing.PricePerUnit.Mul(decimal.NewFromInt(line.Quantity)),
			Status:       domain.OrderStatusPending,
		}
		if err := s.orders.Create(ctx, &o); err != nil {
			s.rollback(ctx, reserve)
			return nil, err
		}
		created = append(created, o)
	}
	s.carts.Clear(ctx, buyerID)

	for _, o := range created {
		s.metrics.OrderOutcome("placed")
		s.publish(ctx, domain.OrderEventPlaced, o)
	}
	return created, nil
}

// rollback возвращает батч-резерв при ошибке после списания
func (s *OrderService) rollback(ctx context.Context, reserve []repository.ReserveLine) {
	for _, r := range reserve {
		if err := s.listings.Release(ctx, r.Key, r.Quantity); err != nil {
			log.Error().Err(err).Str("medicine_code", r.Key.MedicineCode).Msg("rollback release failed")
		}
	}
}

// Accept перевод Pending→Accepted продавцом-владельцем; остаток уже списан
// при размещении, книга не трогается
func (s *OrderService) Accept(ctx context.Context, orderID, sellerID string) (*domain.Order, error) {
	o, err := s.resolve(ctx, orderID, sellerID, domain.OrderStatusPending, domain.OrderStatusAccepted)
	if err != nil {
		return nil, err
	}
	s.metrics.OrderOutcome("accepted")
	s.publish(ctx, domain.OrderEventAccepted, *o)
	return o, nil
}

// Reject перевод Pending→Rejected с возвратом резерва на остаток.
// Release идёт после выигранного CAS, поэтому двойного возврата не бывает.
func (s *OrderService) Reject(ctx context.Context, orderID, sellerID string) (*domain.Order, error) {
	o, err := s.resolve(ctx, orderID, sellerID, domain.OrderStatusPending, domain.OrderStatusRejected)
	if err != nil {
		return nil, err
	}
	key := domain.ListingKey{SellerID: o.SellerID, MedicineCode: o.MedicineCode}
	if err := s.listings.Release(ctx, key, o.Quantity); err != nil {
		log.Error().Err(err).Str("order_id", o.ID).Msg("release on reject failed")
	}
	s.metrics.OrderOutcome("rejected")
	s.publish(ctx, domain.OrderEventRejected, *o)
	return o, nil
}

// Complete перевод Accepted→Completed; остаток уже зафиксирован
func (s *OrderService) Complete(ctx context.Context, orderID, sellerID string) (*domain.Order, error) {
	o, err := s.resolve(ctx, orderID, sellerID, domain.OrderStatusAccepted, domain.OrderStatusCompleted)
	if err != nil {
		return nil, err
	}
	s.metrics.OrderOutcome("completed")
	s.publish(ctx, domain.OrderEventCompleted, *o)
	return o, nil
}

// resolve общая часть переходов: проверка владения продавцом и CAS по статусу
func (s *OrderService) resolve(ctx context.Context, orderID, sellerID string, from, to domain.OrderStatus) (*domain.Order, error) {
	if orderID == "" || sellerID == "" {
		return nil, ErrInvalidInput
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.SellerID != sellerID {
		return nil, ErrForbidden
	}
	updated, err := s.orders.Transition(ctx, orderID, from, to, sellerID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	return updated, nil
}

// Get заказ виден только его покупателю и его продавцу
func (s *OrderService) Get(ctx context.Context, orderID, actorID string) (*domain.Order, error) {
	if orderID == "" || actorID == "" {
		return nil, ErrInvalidInput
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != actorID && o.SellerID != actorID {
		return nil, ErrForbidden
	}
	return o, nil
}

// BuyerOrders все заказы покупателя
func (s *OrderService) BuyerOrders(ctx context.Context, buyerID string) ([]domain.Order, error) {
	if buyerID == "" {
		return nil, ErrInvalidInput
	}
	return s.orders.List(ctx, repository.OrderFilter{BuyerID: buyerID})
}

// SellerOrders заказы продавца, опционально по статусу
func (s *OrderService) SellerOrders(ctx context.Context, sellerID string, status domain.OrderStatus) ([]domain.Order, error) {
	if sellerID == "" {
		return nil, ErrInvalidInput
	}
	return s.orders.List(ctx, repository.OrderFilter{SellerID: sellerID, Status: status})
}

func (s *OrderService) publish(ctx context.Context, t domain.OrderEventType, o domain.Order) {
	if !s.bus.Enabled() {
		return
	}
	s.bus.PublishOrderEvent(ctx, domain.OrderEvent{
		Type:         t,
		OrderID:      o.ID,
		BuyerID:      o.BuyerID,
		SellerID:     o.SellerID,
		MedicineCode: o.MedicineCode,
		Quantity:     o.Quantity,
		TotalAmount:  o.TotalAmount.String(),
		Status:       o.Status,
		OccurredAt:   time.Now().UTC(),
	})
}
