package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"medmarket/internal/domain"
	"medmarket/internal/repository"
)

var ErrInvalidInput = errors.New("invalid input")

// CartService держит рабочие корзины покупателей. Корзина — сессионное
// состояние: остаток здесь не проверяется, авторитетная сверка происходит
// при размещении заказа.
type CartService struct {
	mu    sync.RWMutex
	carts map[string]map[string]domain.CartLine // buyerID → medicineCode → line
}

func NewCartService() *CartService {
	return &CartService{carts: make(map[string]map[string]domain.CartLine)}
}

// AddItem добавляет позицию; повторное добавление того же лекарства
// суммирует количество, а не создаёт вторую строку
func (s *CartService) AddItem(ctx context.Context, buyerID string, listing domain.Listing, qty int64) error {
	if buyerID == "" || qty <= 0 || listing.MedicineCode == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lines, ok := s.carts[buyerID]
	if !ok {
		lines = make(map[string]domain.CartLine)
		s.carts[buyerID] = lines
	}
	line, ok := lines[listing.MedicineCode]
	if ok {
		line.Quantity += qty
	} else {
		line = domain.CartLine{
			SellerID:     listing.SellerID,
			MedicineCode: listing.MedicineCode,
			DrugName:     listing.DrugName,
			Quantity:     qty,
			PricePerUnit: listing.PricePerUnit,
		}
	}
	lines[listing.MedicineCode] = line
	return nil
}

// SetQuantity перезаписывает количество; ноль удаляет строку (идемпотентно)
func (s *CartService) SetQuantity(ctx context.Context, buyerID, medicineCode string, qty int64) error {
	if buyerID == "" || medicineCode == "" || qty < 0 {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[buyerID]
	if qty == 0 {
		delete(lines, medicineCode)
		return nil
	}
	line, ok := lines[medicineCode]
	if !ok {
		return repository.ErrNotFound
	}
	line.Quantity = qty
	lines[medicineCode] = line
	return nil
}

// RemoveItem удаляет строку, отсутствие строки ошибкой не считается
func (s *CartService) RemoveItem(ctx context.Context, buyerID, medicineCode string) error {
	if buyerID == "" || medicineCode == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts[buyerID], medicineCode)
	return nil
}

// Lines возвращает копию строк корзины, отсортированную по коду лекарства
func (s *CartService) Lines(ctx context.Context, buyerID string) ([]domain.CartLine, error) {
	if buyerID == "" {
		return nil, ErrInvalidInput
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CartLine, 0, len(s.carts[buyerID]))
	for _, line := range s.carts[buyerID] {
		out = append(out, line)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MedicineCode < out[j].MedicineCode })
	return out, nil
}

// Total сумма quantity × price по всем строкам; чистая функция
func (s *CartService) Total(ctx context.Context, buyerID string) (decimal.Decimal, error) {
	lines, err := s.Lines(ctx, buyerID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.PricePerUnit.Mul(decimal.NewFromInt(line.Quantity)))
	}
	return total, nil
}

// Clear опустошает корзину; вызывается при успешном размещении заказа
func (s *CartService) Clear(ctx context.Context, buyerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, buyerID)
}
