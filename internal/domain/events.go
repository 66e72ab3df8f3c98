package domain

import "time"

// OrderEventType тип события жизненного цикла заказа
type OrderEventType string

const (
	OrderEventPlaced    OrderEventType = "order.placed"
	OrderEventAccepted  OrderEventType = "order.accepted"
	OrderEventRejected  OrderEventType = "order.rejected"
	OrderEventCompleted OrderEventType = "order.completed"
)

// OrderEvent публикуется в шину после успешного перехода статуса
type OrderEvent struct {
	Type         OrderEventType `json:"type"`
	OrderID      string         `json:"order_id"`
	BuyerID      string         `json:"buyer_id"`
	SellerID     string         `json:"seller_id"`
	MedicineCode string         `json:"medicine_code"`
	Quantity     int64          `json:"quantity"`
	TotalAmount  string         `json:"total_amount"`
	Status       OrderStatus    `json:"status"`
	OccurredAt   time.Time      `json:"occurred_at"`
}
