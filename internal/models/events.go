package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeProductCreated     = "PRODUCT_CREATED"
	EventTypeProductUpdated     = "PRODUCT_UPDATED"
	EventTypeProductDeleted     = "PRODUCT_DELETED"
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeOrderDeleted       = "ORDER_DELETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ProductEvent is published after a product is created, updated or deleted
type ProductEvent struct {
	BaseEvent
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Price     decimal.Decimal `json:"price"`
	HasImage  bool            `json:"has_image"`
}

// OrderEvent is published after an order is created, changes status or is deleted
type OrderEvent struct {
	BaseEvent
	OrderID        int64           `json:"order_id"`
	Status         OrderStatus     `json:"status,omitempty"`
	PreviousStatus OrderStatus     `json:"previous_status,omitempty"`
	SessionID      string          `json:"session_id,omitempty"`
	TotalItems     int             `json:"total_items"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}
