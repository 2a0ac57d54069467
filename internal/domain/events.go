package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderPlacedEvent struct {
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	Email       string          `json:"email"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItem     `json:"items"`
	Timestamp   time.Time       `json:"timestamp"`
}

func NewOrderPlacedEvent(order *Order) OrderPlacedEvent {
	return OrderPlacedEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Email:       order.Email,
		TotalAmount: order.TotalAmount,
		Items:       order.Items,
		Timestamp:   order.CreatedAt,
	}
}
