package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role роль пользователя, приходит от внешнего identity-провайдера
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// ListingKey составной ключ позиции каталога
type ListingKey struct {
	SellerID     string `json:"seller_id"`
	MedicineCode string `json:"medicine_code"`
}

// Listing позиция каталога: лекарство продавца с ценой и остатком
type Listing struct {
	SellerID          string          `json:"seller_id"`
	MedicineCode      string          `json:"medicine_code"`
	DrugName          string          `json:"drug_name"`
	BrandName         string          `json:"brand_name"`
	Strength          string          `json:"strength"`
	UnitType          string          `json:"unit_type"`
	PricePerUnit      decimal.Decimal `json:"price_per_unit"`
	QuantityAvailable int64           `json:"quantity_available"`
	ReorderLevel      int64           `json:"reorder_level"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Key возвращает ключ позиции
func (l Listing) Key() ListingKey {
	return ListingKey{SellerID: l.SellerID, MedicineCode: l.MedicineCode}
}

// LowStock признак, что остаток на уровне дозаказа или ниже
func (l Listing) LowStock() bool {
	return l.QuantityAvailable <= l.ReorderLevel
}

// CartLine строка корзины покупателя. Цена — снимок для отображения,
// авторитетная сверка с остатком происходит только при размещении заказа.
type CartLine struct {
	SellerID     string          `json:"seller_id"`
	MedicineCode string          `json:"medicine_code"`
	DrugName     string          `json:"drug_name"`
	Quantity     int64           `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
}

// OrderStatus тип статуса заказа
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCompleted OrderStatus = "completed"
)

// Terminal true для статусов, из которых нет переходов
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusRejected || s == OrderStatusCompleted
}

// Order заказ на одну позицию каталога. Мультистрочная корзина при
// размещении порождает несколько независимых заказов.
type Order struct {
	ID           string          `json:"order_id"`
	BuyerID      string          `json:"buyer_id"`
	SellerID     string          `json:"seller_id"`
	MedicineCode string          `json:"medicine_code"`
	DrugName     string          `json:"drug_name"`
	Quantity     int64           `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Status       OrderStatus     `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	ResolvedBy   string          `json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty"`
}
