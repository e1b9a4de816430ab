package repositories

import (
	"pasar/internal/models"
)

// OrderRepository defines the interface for order data access. Per-shop and
// per-customer reads are indexed store queries so subscription cost scales
// with the caller's subset, not the whole order collection.
type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id string) (*models.Order, error)
	GetByShopID(shopID string) ([]models.Order, error)
	GetByCustomerID(customerID string) ([]models.Order, error)
	// UpdateStatus is a blind write of status + updated_at. Transition
	// guards live in the service layer.
	UpdateStatus(id string, status models.OrderStatus) error
	// Orders are never deleted.
}
