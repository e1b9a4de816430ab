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

// ConversationHandler handles HTTP requests for conversations and messages.
type ConversationHandler struct {
	service        *services.ConversationService
	productService *services.ProductService
}

// NewConversationHandler creates a new ConversationHandler.
func NewConversationHandler(service *services.ConversationService, productService *services.ProductService) *ConversationHandler {
	return &ConversationHandler{
		service:        service,
		productService: productService,
	}
}

// RegisterRoutes registers the conversation routes with the Fiber app. All
// conversation routes require authentication.
func (h *ConversationHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	convRoutes := router.Group("/conversations", auth)
	convRoutes.Post("/", h.HandleOpenConversation)
	convRoutes.Get("/", h.HandleGetConversations)
	convRoutes.Get("/stream", h.HandleStreamConversations)
	convRoutes.Get("/:id/messages", h.HandleGetMessages)
	convRoutes.Post("/:id/messages", h.HandleSendMessage)
}

// OpenConversationRequest starts (or resumes) a thread with another user,
// optionally in the context of a product listing.
type OpenConversationRequest struct {
	PeerID    string `json:"peer_id"`
	ProductID string `json:"product_id,omitempty"`
}

// HandleOpenConversation finds or creates the conversation between the caller
// and the peer. When a product context is given, a templated first-contact
// message about that product is sent as well.
func (h *ConversationHandler) HandleOpenConversation(c *fiber.Ctx) error {
	var req OpenConversationRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing conversation request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if req.PeerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "peer_id is required to open a conversation.",
		})
	}

	callerID := middleware.LocalString(c, "user_id")
	conv, err := h.service.FindOrCreateConversation(callerID, req.PeerID)
	if err != nil {
		log.Printf("Error opening conversation between %s and %s: %v", callerID, req.PeerID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not open conversation",
			"error":   err.Error(),
		})
	}

	if req.ProductID != "" {
		product, err := h.productService.GetProductByID(req.ProductID)
		if err != nil {
			log.Printf("Error resolving product %s for initial message: %v", req.ProductID, err)
			return c.Status(statusForError(err)).JSON(fiber.Map{
				"message": "Could not resolve product for initial message",
				"error":   err.Error(),
			})
		}
		if _, err := h.service.SendInitialMessage(conv.ID, callerID, product); err != nil {
			log.Printf("Error sending initial message in conversation %s: %v", conv.ID, err)
			return c.Status(statusForError(err)).JSON(fiber.Map{
				"message": "Conversation opened but initial message failed",
				"error":   err.Error(),
			})
		}
		// Re-read so the response reflects the denormalized last message.
		conv, err = h.service.FindOrCreateConversation(callerID, req.PeerID)
		if err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{
				"message": "Could not reload conversation",
				"error":   err.Error(),
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(conv)
}

// HandleGetConversations returns the caller's conversation list, most
// recently active first.
func (h *ConversationHandler) HandleGetConversations(c *fiber.Ctx) error {
	callerID := middleware.LocalString(c, "user_id")
	convs, err := h.service.GetConversations(callerID)
	if err != nil {
		log.Printf("Error getting conversations for user %s: %v", callerID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not retrieve conversations",
			"error":   err.Error(),
		})
	}
	return c.JSON(convs)
}

// HandleGetMessages returns a thread in chronological order.
func (h *ConversationHandler) HandleGetMessages(c *fiber.Ctx) error {
	conversationID := c.Params("id")
	callerID := middleware.LocalString(c, "user_id")

	messages, err := h.service.GetMessages(conversationID, callerID)
	if err != nil {
		log.Printf("Error getting messages for conversation %s: %v", conversationID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not retrieve messages",
			"error":   err.Error(),
		})
	}
	return c.JSON(messages)
}

// SendMessageRequest is the body for appending a message to a thread.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// HandleSendMessage appends a message from the caller to the thread.
func (h *ConversationHandler) HandleSendMessage(c *fiber.Ctx) error {
	conversationID := c.Params("id")
	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing message request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Message text is required.",
		})
	}

	callerID := middleware.LocalString(c, "user_id")
	msg, err := h.service.SendMessage(conversationID, callerID, req.Text)
	if err != nil {
		log.Printf("Error sending message in conversation %s: %v", conversationID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not send message",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(msg)
}

// HandleStreamConversations streams the caller's live conversation list as
// server-sent events.
func (h *ConversationHandler) HandleStreamConversations(c *fiber.Ctx) error {
	callerID := middleware.LocalString(c, "user_id")

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		snapshots := make(chan []models.Conversation, 16)
		unsubscribe, err := h.service.SubscribeToConversations(callerID, func(convs []models.Conversation) {
			select {
			case snapshots <- convs:
			default:
			}
		})
		if err != nil {
			log.Printf("Error subscribing to conversation stream for user %s: %v", callerID, err)
			return
		}
		defer unsubscribe()

		heartbeat := time.NewTicker(30 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case convs := <-snapshots:
				data, err := json.Marshal(convs)
				if err != nil {
					log.Printf("Error marshaling conversation snapshot: %v", err)
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", data)
				if err := w.Flush(); err != nil {
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
