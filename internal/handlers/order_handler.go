package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"pasar/internal/middleware"
	"pasar/internal/models"
	"pasar/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service *services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service: service,
	}
}

// RegisterRoutes registers the order routes with the Fiber app. All order
// routes require authentication.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	orderRoutes := router.Group("/orders", auth)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/stream", h.HandleStreamOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Patch("/:id/status", h.HandleUpdateOrderStatus)
}

// HandleCreateOrder places a new order for the authenticated customer.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req services.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing order request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	// The ordering customer is always the authenticated caller, whatever
	// the body says.
	req.CustomerID = middleware.LocalString(c, "user_id")

	createdOrder, err := h.service.CreateOrder(req)
	if err != nil {
		log.Printf("Error creating order: %v", err)
		if messages := validationMessages(err); messages != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Validation failed",
				"errors":  messages,
			})
		}
		status := statusForError(err)
		if status == fiber.StatusInternalServerError {
			return c.Status(status).JSON(fiber.Map{
				"message": "Could not create order",
				"error":   err.Error(),
			})
		}
		return c.Status(status).JSON(fiber.Map{
			"message": "Order creation failed",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(createdOrder)
}

// HandleGetOrderByID retrieves a single order. Only the ordering customer and
// the owning shop can read it.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	orderID := c.Params("id")
	callerID := middleware.LocalString(c, "user_id")
	callerShopID := middleware.LocalString(c, "shop_id")

	order, err := h.service.GetOrderByID(orderID, callerID, callerShopID)
	if err != nil {
		log.Printf("Error getting order by ID %s: %v", orderID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not retrieve order",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"order":       order,
		"status_info": order.StatusInfo(),
	})
}

// HandleUpdateOrderStatus moves an order along its lifecycle. Shopkeepers only.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var updateData struct {
		Status models.OrderStatus `json:"status"`
	}

	if err := c.BodyParser(&updateData); err != nil {
		log.Printf("Error parsing request body for status update: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body for status update",
			"error":   err.Error(),
		})
	}

	if updateData.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Status is required for order status update.",
		})
	}

	callerShopID := middleware.LocalString(c, "shop_id")
	order, err := h.service.UpdateOrderStatus(orderID, updateData.Status, callerShopID)
	if err != nil {
		log.Printf("Error updating order status for order %s: %v", orderID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not update order status",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message":     fmt.Sprintf("Order %s status updated successfully to %s", orderID, order.Status),
		"order":       order,
		"status_info": order.StatusInfo(),
	})
}

// HandleStreamOrders streams the caller's live order list as server-sent
// events: one snapshot immediately, then one per change. Shopkeepers watch
// their shop's orders, customers their own.
func (h *OrderHandler) HandleStreamOrders(c *fiber.Ctx) error {
	callerID := middleware.LocalString(c, "user_id")
	role := middleware.LocalString(c, "role")
	shopID := middleware.LocalString(c, "shop_id")

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		snapshots := make(chan []models.Order, 16)
		deliver := func(orders []models.Order) {
			// Never block the hub on a slow client; drop the snapshot and
			// let the next change resend a fresh one.
			select {
			case snapshots <- orders:
			default:
			}
		}

		var unsubscribe func()
		var err error
		if role == models.RoleShopkeeper {
			unsubscribe, err = h.service.SubscribeToShopOrders(shopID, deliver)
		} else {
			unsubscribe, err = h.service.SubscribeToCustomerOrders(callerID, deliver)
		}
		if err != nil {
			log.Printf("Error subscribing to order stream for user %s: %v", callerID, err)
			return
		}
		defer unsubscribe()

		heartbeat := time.NewTicker(30 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case orders := <-snapshots:
				data, err := json.Marshal(orders)
				if err != nil {
					log.Printf("Error marshaling order snapshot: %v", err)
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", data)
				if err := w.Flush(); err != nil {
					// Client disconnected.
					return
				}
			case <-heartbeat.C:
				fmt.Fprint(w, ": ping\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}
