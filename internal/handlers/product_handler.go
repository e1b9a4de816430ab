package handlers

import (
	"log"

	"pasar/internal/middleware"
	"pasar/internal/models"
	"pasar/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ProductHandler handles HTTP requests for the shop catalog.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the product routes with the Fiber app. Browsing is
// public; catalog mutations require an authenticated shopkeeper.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)
	productRoutes.Post("/", auth, h.HandleCreateProduct)
	productRoutes.Put("/:id", auth, h.HandleUpdateProduct)
	productRoutes.Delete("/:id", auth, h.HandleDeleteProduct)
}

// HandleGetProducts lists products, optionally filtered to one shop via the
// shop_id query parameter.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	shopID := c.Query("shop_id")

	var products []models.Product
	var err error
	if shopID != "" {
		products, err = h.service.GetProductsByShop(shopID)
	} else {
		products, err = h.service.GetAllProducts()
	}
	if err != nil {
		log.Printf("Error getting products: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve products",
			"error":   err.Error(),
		})
	}
	return c.JSON(products)
}

// HandleGetProductByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	productID := c.Params("id")
	product, err := h.service.GetProductByID(productID)
	if err != nil {
		log.Printf("Error getting product by ID %s: %v", productID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not retrieve product",
			"error":   err.Error(),
		})
	}
	return c.JSON(product)
}

// HandleCreateProduct lists a new product under the caller's shop.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var product models.Product
	if err := c.BodyParser(&product); err != nil {
		log.Printf("Error parsing product request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(product); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationMessages(err),
		})
	}

	callerShopID := middleware.LocalString(c, "shop_id")
	if err := h.service.CreateProduct(&product, callerShopID); err != nil {
		log.Printf("Error creating product: %v", err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not create product",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct updates one of the caller's products.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var product models.Product
	if err := c.BodyParser(&product); err != nil {
		log.Printf("Error parsing product request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	product.ID = c.Params("id")

	if err := h.validate.Struct(product); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationMessages(err),
		})
	}

	callerShopID := middleware.LocalString(c, "shop_id")
	if err := h.service.UpdateProduct(&product, callerShopID); err != nil {
		log.Printf("Error updating product %s: %v", product.ID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not update product",
			"error":   err.Error(),
		})
	}

	return c.JSON(product)
}

// HandleDeleteProduct removes one of the caller's products.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	productID := c.Params("id")
	callerShopID := middleware.LocalString(c, "shop_id")

	if err := h.service.DeleteProduct(productID, callerShopID); err != nil {
		log.Printf("Error deleting product %s: %v", productID, err)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"message": "Could not delete product",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Product deleted successfully",
	})
}
