package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"medmarket/internal/domain"
)

// MemoryStore in-memory хранилище каталога и заказов.
//
// Остаток каждой позиции защищён собственным мьютексом: проверка-и-списание
// в Reserve атомарны относительно других вызовов по тому же ключу, а заказы
// и отчёты не встают в очередь за глобальной блокировкой записи. Батч-резерв
// берёт ключевые мьютексы в отсортированном порядке, поэтому два покупателя
// с пересекающимися корзинами не взаимоблокируются.
type MemoryStore struct {
	mu       sync.RWMutex
	listings map[domain.ListingKey]domain.Listing
	ordersMu sync.RWMutex
	orders   map[string]domain.Order

	keyMu    sync.Mutex
	keyLocks map[domain.ListingKey]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings: make(map[domain.ListingKey]domain.Listing),
		orders:   make(map[string]domain.Order),
		keyLocks: make(map[domain.ListingKey]*sync.Mutex),
	}
}

// keyLock возвращает мьютекс ключа, создавая его при первом обращении
func (m *MemoryStore) keyLock(key domain.ListingKey) *sync.Mutex {
	m.keyMu.Lock()
	defer m.keyMu.Unlock()
	l, ok := m.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		m.keyLocks[key] = l
	}
	return l
}

// Ensure interfaces
var _ ListingRepository = (*MemoryStore)(nil)

func (m *MemoryStore) Upsert(ctx context.Context, l *domain.Listing, setQuantity bool) error {
	lock := m.keyLock(l.Key())
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.listings[l.Key()]; ok && !setQuantity {
		// правка атрибутов сохраняет остаток: дельты резервов не теряются
		l.QuantityAvailable = existing.QuantityAvailable
	}
	l.UpdatedAt = time.Now().UTC()
	m.listings[l.Key()] = *l
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key domain.ListingKey) (*domain.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[key]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	cp := l
	return &cp, nil
}

func (m *MemoryStore) List(ctx context.Context, f CatalogFilter) ([]domain.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Listing, 0)
	for _, l := range m.listings {
		if f.SellerID != "" && l.SellerID != f.SellerID {
			continue
		}
		if f.InStockOnly && l.QuantityAvailable <= 0 {
			continue
		}
		if !containsIgnoreCase(l.DrugName, f.Query) && !containsIgnoreCase(l.BrandName, f.Query) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SellerID != out[j].SellerID {
			return out[i].SellerID < out[j].SellerID
		}
		return out[i].MedicineCode < out[j].MedicineCode
	})
	return out, nil
}

func (m *MemoryStore) AvailableQuantity(ctx context.Context, key domain.ListingKey) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[key]
	if !ok {
		return 0, ErrNotFound
	}
	return l.QuantityAvailable, nil
}

// Reserve списывает qty, если остатка хватает. Проверка и списание — одна
// критическая секция по ключу.
func (m *MemoryStore) Reserve(ctx context.Context, key domain.ListingKey, qty int64) error {
	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()
	return m.adjust(key, -qty)
}

// Release возвращает qty на остаток; верхней границы нет
func (m *MemoryStore) Release(ctx context.Context, key domain.ListingKey, qty int64) error {
	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()
	return m.adjust(key, qty)
}

// adjust применяет дельту к остатку; вызывается только под мьютексом ключа
func (m *MemoryStore) adjust(key domain.ListingKey, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[key]
	if !ok {
		return ErrNotFound
	}
	if l.QuantityAvailable+delta < 0 {
		return ErrInsufficientStock
	}
	l.QuantityAvailable += delta
	l.UpdatedAt = time.Now().UTC()
	m.listings[key] = l
	return nil
}

// ReserveBatch резервирует все строки или ни одной. Мьютексы ключей берутся
// в отсортированном порядке, все остатки проверяются до первого списания.
func (m *MemoryStore) ReserveBatch(ctx context.Context, lines []ReserveLine) error {
	keys := make([]domain.ListingKey, 0, len(lines))
	seen := make(map[domain.ListingKey]bool)
	for _, ln := range lines {
		if !seen[ln.Key] {
			seen[ln.Key] = true
			keys = append(keys, ln.Key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].SellerID != keys[j].SellerID {
			return keys[i].SellerID < keys[j].SellerID
		}
		return keys[i].MedicineCode < keys[j].MedicineCode
	})
	for _, k := range keys {
		lock := m.keyLock(k)
		lock.Lock()
		defer lock.Unlock()
	}

	// суммируем количество по ключу: повторившаяся строка — одна проверка
	need := make(map[domain.ListingKey]int64)
	for _, ln := range lines {
		need[ln.Key] += ln.Quantity
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		l, ok := m.listings[k]
		if !ok {
			return fmt.Errorf("%s: %w", k.MedicineCode, ErrNotFound)
		}
		if l.QuantityAvailable < need[k] {
			return fmt.Errorf("%s: %w", k.MedicineCode, ErrInsufficientStock)
		}
	}
	now := time.Now().UTC()
	for _, k := range keys {
		l := m.listings[k]
		l.QuantityAvailable -= need[k]
		l.UpdatedAt = now
		m.listings[k] = l
	}
	return nil
}

// OrderRepository implementation on wrapper type
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var _ OrderRepository = (*MemoryOrders)(nil)

func (mo *MemoryOrders) Create(ctx context.Context, o *domain.Order) error {
	mo.store.ordersMu.Lock()
	defer mo.store.ordersMu.Unlock()
	o.CreatedAt = time.Now().UTC()
	mo.store.orders[o.ID] = *o
	return nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	mo.store.ordersMu.RLock()
	defer mo.store.ordersMu.RUnlock()
	o, ok := mo.store.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := o
	return &cp, nil
}

// List возвращает копии заказов под одной RLock — согласованный снимок
// для выборок и отчётов
func (mo *MemoryOrders) List(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	mo.store.ordersMu.RLock()
	defer mo.store.ordersMu.RUnlock()
	out := make([]domain.Order, 0)
	for _, o := range mo.store.orders {
		if f.BuyerID != "" && o.BuyerID != f.BuyerID {
			continue
		}
		if f.SellerID != "" && o.SellerID != f.SellerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Transition атомарно меняет статус from→to. Проигравший гонку вызов
// получает ErrStatusConflict и ничего не меняет.
func (mo *MemoryOrders) Transition(ctx context.Context, id string, from, to domain.OrderStatus, resolvedBy string, at time.Time) (*domain.Order, error) {
	mo.store.ordersMu.Lock()
	defer mo.store.ordersMu.Unlock()
	o, ok := mo.store.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Status != from {
		return nil, ErrStatusConflict
	}
	o.Status = to
	o.ResolvedBy = resolvedBy
	o.ResolvedAt = &at
	mo.store.orders[id] = o
	cp := o
	return &cp, nil
}
