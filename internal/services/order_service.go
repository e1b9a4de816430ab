package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"pasar/internal/models"
	"pasar/internal/repositories"
	"pasar/internal/watch"
	"pasar/pkg/rabbitmq"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// EventPublisher is the slice of the RabbitMQ client the order service needs.
// Tests substitute a mock.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// CreateOrderRequest carries everything a customer submits at checkout.
// Item prices, names and images are re-read from the catalog, and the total
// is computed server-side, so the client-supplied copies are never trusted.
type CreateOrderRequest struct {
	CustomerID      string             `json:"customer_id" validate:"required"`
	CustomerName    string             `json:"customer_name" validate:"required"`
	CustomerPhone   string             `json:"customer_phone" validate:"required"`
	ShopID          string             `json:"shop_id" validate:"required"`
	ShopName        string             `json:"shop_name"`
	Items           []models.OrderItem `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress string             `json:"delivery_address" validate:"required"`
	PaymentMethod   string             `json:"payment_method" validate:"required,oneof=cash upi card wallet"`
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	publisher   EventPublisher
	hub         *watch.Hub[[]models.Order]
	validate    *validator.Validate
	deliveryFee float64
}

// NewOrderService creates a new OrderService. publisher may be nil, in which
// case order events are skipped.
func NewOrderService(orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository, publisher EventPublisher, deliveryFee float64) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		publisher:   publisher,
		hub:         watch.NewHub[[]models.Order](),
		validate:    validator.New(),
		deliveryFee: deliveryFee,
	}
}

// CreateOrder validates the checkout request, captures item details from the
// catalog, computes the total, and stores the order with status pending.
// An order.created event is published best-effort: the order stands even if
// the broker is down.
func (s *OrderService) CreateOrder(req CreateOrderRequest) (*models.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid order request: %w", err)
	}

	var totalAmount float64
	var processedItems models.OrderItems

	for _, item := range req.Items {
		product, err := s.productRepo.GetByID(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product %s not found: %w", item.ProductID, err)
		}
		if product.ShopID != req.ShopID {
			return nil, fmt.Errorf("product %s does not belong to shop %s", item.ProductID, req.ShopID)
		}
		if product.Stock < item.Quantity {
			return nil, fmt.Errorf("insufficient stock for product %s (requested: %d, available: %d)", product.Name, item.Quantity, product.Stock)
		}

		// Capture catalog details at the time of order.
		processedItems = append(processedItems, models.OrderItem{
			ProductID: item.ProductID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  item.Quantity,
			Image:     product.Image,
		})
		totalAmount += product.Price * float64(item.Quantity)
	}
	totalAmount += s.deliveryFee

	newOrder := &models.Order{
		ID:              uuid.New().String(),
		CustomerID:      req.CustomerID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		ShopID:          req.ShopID,
		ShopName:        req.ShopName,
		Items:           processedItems,
		TotalAmount:     totalAmount,
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   req.PaymentMethod,
		Status:          models.StatusPending,
	}

	if err := s.orderRepo.Create(newOrder); err != nil {
		return nil, fmt.Errorf("failed to create order in repository: %w", err)
	}

	s.publishEvent(rabbitmq.RouteOrderCreated, map[string]interface{}{
		"order_id":    newOrder.ID,
		"customer_id": newOrder.CustomerID,
		"shop_id":     newOrder.ShopID,
		"status":      newOrder.Status,
		"total":       newOrder.TotalAmount,
	})
	s.notifyOrderChanged(newOrder)

	return newOrder, nil
}

// GetOrderByID retrieves a single order. The caller must be the ordering
// customer or the owning shop; anyone else gets ErrForbidden.
func (s *OrderService) GetOrderByID(id, callerUserID, callerShopID string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if callerUserID != order.CustomerID && (callerShopID == "" || callerShopID != order.ShopID) {
		return nil, fmt.Errorf("order %s is not visible to user %s: %w", id, callerUserID, models.ErrForbidden)
	}
	return order, nil
}

// UpdateOrderStatus moves an order along its lifecycle. Only the owning shop
// may update, and only transitions in the status flow table are accepted;
// completed and cancelled orders reject everything.
func (s *OrderService) UpdateOrderStatus(id string, newStatus models.OrderStatus, callerShopID string) (*models.Order, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("unknown order status %q: %w", newStatus, models.ErrInvalidTransition)
	}

	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if order.ShopID != callerShopID {
		return nil, fmt.Errorf("order %s belongs to another shop: %w", id, models.ErrForbidden)
	}
	if !order.Status.CanTransitionTo(newStatus) {
		return nil, fmt.Errorf("cannot move order %s from %s to %s: %w", id, order.Status, newStatus, models.ErrInvalidTransition)
	}

	if err := s.orderRepo.UpdateStatus(id, newStatus); err != nil {
		return nil, fmt.Errorf("failed to update order status for order %s: %w", id, err)
	}
	order.Status = newStatus
	order.UpdatedAt = time.Now()

	s.publishEvent(rabbitmq.RouteOrderStatusUpdated, map[string]interface{}{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"shop_id":     order.ShopID,
		"status":      order.Status,
	})
	s.notifyOrderChanged(order)

	return order, nil
}

// SubscribeToShopOrders registers a live callback for the shop's order list.
// The callback fires once immediately with the current list and again after
// every change. The returned function cancels the subscription.
func (s *OrderService) SubscribeToShopOrders(shopID string, fn func([]models.Order)) (func(), error) {
	return s.hub.Subscribe(shopTopic(shopID), func() ([]models.Order, error) {
		return s.orderRepo.GetByShopID(shopID)
	}, fn)
}

// SubscribeToCustomerOrders registers a live callback for the customer's
// order list, with the same delivery semantics as SubscribeToShopOrders.
func (s *OrderService) SubscribeToCustomerOrders(customerID string, fn func([]models.Order)) (func(), error) {
	return s.hub.Subscribe(customerTopic(customerID), func() ([]models.Order, error) {
		return s.orderRepo.GetByCustomerID(customerID)
	}, fn)
}

// notifyOrderChanged refreshes the live subscriptions touched by a write.
// Snapshots are re-read from the store only when someone is watching.
func (s *OrderService) notifyOrderChanged(order *models.Order) {
	if err := s.hub.Publish(shopTopic(order.ShopID), func() ([]models.Order, error) {
		return s.orderRepo.GetByShopID(order.ShopID)
	}); err != nil {
		log.Printf("Warning: failed to refresh shop order subscription for %s: %v", order.ShopID, err)
	}
	if err := s.hub.Publish(customerTopic(order.CustomerID), func() ([]models.Order, error) {
		return s.orderRepo.GetByCustomerID(order.CustomerID)
	}); err != nil {
		log.Printf("Warning: failed to refresh customer order subscription for %s: %v", order.CustomerID, err)
	}
}

// publishEvent sends an order event to the broker. Failures are logged, not
// returned: there is no transactional guarantee across the order write and
// the notify.
func (s *OrderService) publishEvent(routingKey string, payload map[string]interface{}) {
	if s.publisher == nil {
		log.Println("RabbitMQ client is not initialized. Skipping message publication.")
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", routingKey, err)
		return
	}
	if err := s.publisher.Publish(rabbitmq.OrderExchange, routingKey, body); err != nil {
		log.Printf("Warning: Failed to publish %s event: %v", routingKey, err)
	}
}

func shopTopic(shopID string) string {
	return "shop:" + shopID
}

func customerTopic(customerID string) string {
	return "customer:" + customerID
}
