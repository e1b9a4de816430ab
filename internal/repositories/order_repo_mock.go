package repositories

import (
	"fmt"
	"sync"
	"time"

	"pasar/internal/models"

	"github.com/google/uuid"
)

// MockOrderRepository is an in-memory implementation of OrderRepository. It
// doubles as the injectable store fake for service tests.
type MockOrderRepository struct {
	orders map[string]models.Order
	mu     sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]models.Order),
	}
}

// Create adds a new order.
func (r *MockOrderRepository) Create(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	r.orders[order.ID] = *order
	return nil
}

// GetByID returns an order by its ID.
func (r *MockOrderRepository) GetByID(id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, models.ErrNotFound)
	}
	return &order, nil
}

// GetByShopID returns all orders for a shop.
func (r *MockOrderRepository) GetByShopID(shopID string) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0)
	for _, order := range r.orders {
		if order.ShopID == shopID {
			orderList = append(orderList, order)
		}
	}
	return orderList, nil
}

// GetByCustomerID returns all orders for a customer.
func (r *MockOrderRepository) GetByCustomerID(customerID string) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0)
	for _, order := range r.orders {
		if order.CustomerID == customerID {
			orderList = append(orderList, order)
		}
	}
	return orderList, nil
}

// UpdateStatus updates the status of an order. Last write wins.
func (r *MockOrderRepository) UpdateStatus(id string, status models.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order with ID %s: %w", id, models.ErrNotFound)
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	r.orders[id] = order
	return nil
}
