package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// OrderStatus is the lifecycle state of an order. The string values are the
// wire values stored in the database and exchanged with clients.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// statusFlow maps each status to the statuses a shop may move the order to.
// Terminal states (completed, cancelled) have no entry.
var statusFlow = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady},
	StatusReady:     {StatusCompleted},
}

// Valid reports whether s is one of the six known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// NextStatuses returns the statuses reachable from s. This is the menu of
// "next" actions shown to a shopkeeper for an order in status s.
func (s OrderStatus) NextStatuses() []OrderStatus {
	return statusFlow[s]
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range statusFlow[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

var statusLabels = map[OrderStatus]string{
	StatusPending:   "Order Placed",
	StatusConfirmed: "Order Confirmed",
	StatusPreparing: "Preparing",
	StatusReady:     "Ready for Delivery",
	StatusCompleted: "Delivered",
	StatusCancelled: "Cancelled",
}

var statusColors = map[OrderStatus]string{
	StatusPending:   "#FFA500",
	StatusConfirmed: "#2196F3",
	StatusPreparing: "#9C27B0",
	StatusReady:     "#00BCD4",
	StatusCompleted: "#4CAF50",
	StatusCancelled: "#F44336",
}

var statusDescriptions = map[OrderStatus]string{
	StatusPending:   "Waiting for the shop to confirm your order",
	StatusConfirmed: "The shop has confirmed your order",
	StatusPreparing: "Your order is being prepared",
	StatusReady:     "Your order is ready and on its way",
	StatusCompleted: "Your order has been delivered",
	StatusCancelled: "This order was cancelled",
}

var statusETAs = map[OrderStatus]string{
	StatusPending:   "Awaiting confirmation",
	StatusConfirmed: "30-40 min",
	StatusPreparing: "20-30 min",
	StatusReady:     "10-15 min",
	StatusCompleted: "Delivered",
	StatusCancelled: "--",
}

// Label returns the human-readable name for s, or a fallback for unknown values.
func (s OrderStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return "Unknown"
}

// Color returns the display color for s, or a neutral fallback.
func (s OrderStatus) Color() string {
	if color, ok := statusColors[s]; ok {
		return color
	}
	return "#9E9E9E"
}

// Description returns the customer-facing description for s.
func (s OrderStatus) Description() string {
	if desc, ok := statusDescriptions[s]; ok {
		return desc
	}
	return "Status unavailable"
}

// ETA returns the estimated-time string shown for s.
func (s OrderStatus) ETA() string {
	if eta, ok := statusETAs[s]; ok {
		return eta
	}
	return "--"
}

// OrderItem is a line item on an order. Name, price and image are captured
// from the catalog at order time so later catalog edits do not rewrite
// historical orders.
type OrderItem struct {
	ProductID string  `json:"product_id" validate:"required"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity" validate:"gt=0"`
	Image     string  `json:"image,omitempty"`
}

// OrderItems is stored as a JSON document column, keeping the denormalized
// shape the mobile clients already read.
type OrderItems []OrderItem

// Value implements driver.Valuer for database storage.
func (items OrderItems) Value() (driver.Value, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order items: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for database retrieval.
func (items *OrderItems) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*items = nil
		return nil
	case []byte:
		return json.Unmarshal(v, items)
	case string:
		return json.Unmarshal([]byte(v), items)
	default:
		return fmt.Errorf("unsupported type %T for order items", value)
	}
}

// Order represents a customer order placed with a shop.
type Order struct {
	ID              string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CustomerID      string      `json:"customer_id" gorm:"index;type:varchar(36)"`
	CustomerName    string      `json:"customer_name"`
	CustomerPhone   string      `json:"customer_phone"`
	ShopID          string      `json:"shop_id" gorm:"index;type:varchar(36)"`
	ShopName        string      `json:"shop_name,omitempty"`
	Items           OrderItems  `json:"items" gorm:"type:text"`
	TotalAmount     float64     `json:"total_amount"`
	DeliveryAddress string      `json:"delivery_address"`
	PaymentMethod   string      `json:"payment_method"`
	Status          OrderStatus `json:"status" gorm:"index;type:varchar(20)"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// StatusInfo is the presentation view of an order status.
type StatusInfo struct {
	Status       OrderStatus   `json:"status"`
	Label        string        `json:"label"`
	Color        string        `json:"color"`
	Description  string        `json:"description"`
	ETA          string        `json:"eta"`
	NextStatuses []OrderStatus `json:"next_statuses"`
}

// StatusInfo returns the presentation view for the order's current status.
func (o *Order) StatusInfo() StatusInfo {
	return StatusInfo{
		Status:       o.Status,
		Label:        o.Status.Label(),
		Color:        o.Status.Color(),
		Description:  o.Status.Description(),
		ETA:          o.Status.ETA(),
		NextStatuses: o.Status.NextStatuses(),
	}
}
