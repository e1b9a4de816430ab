package repositories

import (
	"errors"
	"fmt"
	"time"

	"pasar/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// Create creates a new order in the database.
func (r *GORMOrderRepository) Create(order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	if err := r.db.Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByID retrieves a single order by its ID from the database.
func (r *GORMOrderRepository) GetByID(id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with ID %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

// GetByShopID retrieves all orders placed with the given shop, newest first.
func (r *GORMOrderRepository) GetByShopID(shopID string) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.Where("shop_id = ?", shopID).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to get orders for shop %s: %w", shopID, err)
	}
	return orders, nil
}

// GetByCustomerID retrieves all orders placed by the given customer, newest first.
func (r *GORMOrderRepository) GetByCustomerID(customerID string) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.Where("customer_id = ?", customerID).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to get orders for customer %s: %w", customerID, err)
	}
	return orders, nil
}

// UpdateStatus updates the status and updated_at of an order. Last write wins.
func (r *GORMOrderRepository) UpdateStatus(id string, status models.OrderStatus) error {
	res := r.db.Model(&models.Order{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update status for order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order with ID %s: %w", id, models.ErrNotFound)
	}
	return nil
}
