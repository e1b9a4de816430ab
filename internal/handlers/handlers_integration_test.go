package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"pasar/internal/handlers"
	"pasar/internal/middleware"
	"pasar/internal/models"
	"pasar/internal/repositories"
	"pasar/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupApp sets up a Fiber app for testing with in-memory SQLite and all
// handlers/services wired the way main does, minus the broker.
func setupApp() (*fiber.App, error) {
	viper.SetDefault("JWT_SECRET", "test_jwt_secret")
	viper.AutomaticEnv()
	jwtSecret := viper.GetString("JWT_SECRET")

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to in-memory database: %w", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.Conversation{},
		&models.Message{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	userRepo := repositories.NewGORMUserRepository(db)
	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	conversationRepo := repositories.NewGORMConversationRepository(db)

	authService := services.NewAuthService(userRepo, jwtSecret)
	productService := services.NewProductService(productRepo)
	orderService := services.NewOrderService(orderRepo, productRepo, nil, 20)
	conversationService := services.NewConversationService(conversationRepo)

	app := fiber.New()
	authRequired := middleware.AuthRequired(authService)

	apiV1 := app.Group("/api/v1")
	handlers.NewAuthHandler(authService).RegisterRoutes(apiV1)
	handlers.NewProductHandler(productService).RegisterRoutes(apiV1, authRequired)
	handlers.NewOrderHandler(orderService).RegisterRoutes(apiV1, authRequired)
	handlers.NewConversationHandler(conversationService, productService).RegisterRoutes(apiV1, authRequired)

	return app, nil
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", method, path, err)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	resp.Body.Close()

	var decoded map[string]interface{}
	if len(raw) > 0 {
		// Some endpoints return arrays; those callers decode raw themselves.
		_ = json.Unmarshal(raw, &decoded)
		if decoded == nil {
			decoded = map[string]interface{}{"_raw": string(raw)}
		}
	}
	return resp, decoded
}

func registerAndLogin(t *testing.T, app *fiber.App, user map[string]interface{}) (string, map[string]interface{}) {
	t.Helper()

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", user)
	assert.Equal(t, http.StatusCreated, resp.StatusCode, "registration failed: %v", body)
	registered, _ := body["user"].(map[string]interface{})

	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]interface{}{
		"username": user["username"],
		"password": user["password"],
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode, "login failed: %v", body)
	token, _ := body["token"].(string)
	assert.NotEmpty(t, token)

	return token, registered
}

func TestMarketplaceFlow(t *testing.T) {
	app, err := setupApp()
	if err != nil {
		t.Fatalf("Failed to set up test app: %v", err)
	}

	keeperToken, keeper := registerAndLogin(t, app, map[string]interface{}{
		"username":  "keeper",
		"email":     "keeper@example.com",
		"password":  "secret123",
		"role":      "shopkeeper",
		"shop_name": "Corner Store",
	})
	shopID, _ := keeper["shop_id"].(string)
	keeperID, _ := keeper["id"].(string)
	assert.NotEmpty(t, shopID)

	customerToken, customer := registerAndLogin(t, app, map[string]interface{}{
		"username": "asha",
		"email":    "asha@example.com",
		"password": "secret123",
		"role":     "customer",
	})
	customerID, _ := customer["id"].(string)
	assert.NotEmpty(t, customerID)

	strangerToken, _ := registerAndLogin(t, app, map[string]interface{}{
		"username": "mallory",
		"email":    "mallory@example.com",
		"password": "secret123",
		"role":     "customer",
	})

	var productID string
	t.Run("ShopkeeperListsProduct", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPost, "/api/v1/products", keeperToken, map[string]interface{}{
			"name":  "Milk",
			"price": 40.0,
			"stock": 10,
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode, "product creation failed: %v", body)
		productID, _ = body["id"].(string)
		assert.NotEmpty(t, productID)
		assert.Equal(t, shopID, body["shop_id"])
	})

	t.Run("CustomerCannotListProduct", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/products", customerToken, map[string]interface{}{
			"name":  "Sneaky",
			"price": 1.0,
			"stock": 1,
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("UnauthenticatedOrderAccess", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodGet, "/api/v1/orders/some-id", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	var orderID string
	t.Run("CustomerPlacesOrder", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPost, "/api/v1/orders", customerToken, map[string]interface{}{
			"customer_name":    "Asha",
			"customer_phone":   "9876543210",
			"shop_id":          shopID,
			"shop_name":        "Corner Store",
			"items":            []map[string]interface{}{{"product_id": productID, "quantity": 2}},
			"delivery_address": "123 St",
			"payment_method":   "cash",
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode, "order creation failed: %v", body)
		orderID, _ = body["id"].(string)
		assert.NotEmpty(t, orderID)
		assert.Equal(t, string(models.StatusPending), body["status"])
		assert.Equal(t, customerID, body["customer_id"], "customer id comes from the token, not the body")
		assert.Equal(t, 100.0, body["total_amount"]) // 40*2 + 20 delivery fee
	})

	t.Run("OrderValidationFailure", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/orders", customerToken, map[string]interface{}{
			"customer_name":  "Asha",
			"customer_phone": "9876543210",
			"shop_id":        shopID,
			"items":          []map[string]interface{}{},
			"payment_method": "cash",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("OrderVisibility", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, "/api/v1/orders/"+orderID, customerToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		statusInfo, _ := body["status_info"].(map[string]interface{})
		assert.Equal(t, "Order Placed", statusInfo["label"])

		resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/orders/"+orderID, keeperToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/orders/"+orderID, strangerToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/orders/no-such-order", customerToken, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("OrderStatusLifecycle", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPatch, "/api/v1/orders/"+orderID+"/status", keeperToken, map[string]interface{}{
			"status": "confirmed",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode, "confirm failed: %v", body)

		// Customers hold no shop binding, so the ownership check rejects them.
		resp, _ = doJSON(t, app, http.MethodPatch, "/api/v1/orders/"+orderID+"/status", customerToken, map[string]interface{}{
			"status": "preparing",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, _ = doJSON(t, app, http.MethodPatch, "/api/v1/orders/"+orderID+"/status", keeperToken, map[string]interface{}{
			"status": "cancelled",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		// Cancelled is terminal.
		resp, _ = doJSON(t, app, http.MethodPatch, "/api/v1/orders/"+orderID+"/status", keeperToken, map[string]interface{}{
			"status": "preparing",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		resp, body = doJSON(t, app, http.MethodGet, "/api/v1/orders/"+orderID, customerToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		order, _ := body["order"].(map[string]interface{})
		assert.Equal(t, string(models.StatusCancelled), order["status"])
	})

	var conversationID string
	t.Run("CustomerContactsShopAboutProduct", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPost, "/api/v1/conversations", customerToken, map[string]interface{}{
			"peer_id":    keeperID,
			"product_id": productID,
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode, "conversation open failed: %v", body)
		conversationID, _ = body["id"].(string)
		assert.NotEmpty(t, conversationID)
		lastMessage, _ := body["last_message_text"].(string)
		assert.Contains(t, lastMessage, "Milk")
		assert.Contains(t, lastMessage, "40.00")
	})

	t.Run("ConversationIsDeduplicated", func(t *testing.T) {
		// Opening from the other side lands on the same thread.
		resp, body := doJSON(t, app, http.MethodPost, "/api/v1/conversations", keeperToken, map[string]interface{}{
			"peer_id": customerID,
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, conversationID, body["id"])
	})

	t.Run("Messaging", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPost, "/api/v1/conversations/"+conversationID+"/messages", keeperToken, map[string]interface{}{
			"text": "Yes, fresh stock arrived today.",
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode, "send message failed: %v", body)
		assert.Equal(t, keeperID, body["sender_id"])

		req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+conversationID+"/messages", nil)
		req.Header.Set("Authorization", "Bearer "+customerToken)
		msgResp, err := app.Test(req, 5000)
		assert.NoError(t, err)
		defer msgResp.Body.Close()
		assert.Equal(t, http.StatusOK, msgResp.StatusCode)

		var messages []map[string]interface{}
		assert.NoError(t, json.NewDecoder(msgResp.Body).Decode(&messages))
		assert.Len(t, messages, 2)
		assert.Equal(t, "Yes, fresh stock arrived today.", messages[1]["text"])

		// Outsiders cannot read the thread.
		resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/conversations/"+conversationID+"/messages", strangerToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("ConversationList", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
		req.Header.Set("Authorization", "Bearer "+customerToken)
		resp, err := app.Test(req, 5000)
		assert.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var convs []map[string]interface{}
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&convs))
		assert.Len(t, convs, 1)
		assert.Equal(t, "Yes, fresh stock arrived today.", convs[0]["last_message_text"])
	})
}
