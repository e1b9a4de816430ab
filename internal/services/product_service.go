package services

import (
	"fmt"

	"pasar/internal/models"
	"pasar/internal/repositories"
)

// ProductService handles business logic related to the shop catalog.
type ProductService struct {
	repo repositories.ProductRepository
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo: repo,
	}
}

// GetAllProducts retrieves all products across shops.
func (s *ProductService) GetAllProducts() ([]models.Product, error) {
	return s.repo.GetAll()
}

// GetProductsByShop retrieves the catalog of a single shop.
func (s *ProductService) GetProductsByShop(shopID string) ([]models.Product, error) {
	return s.repo.GetByShopID(shopID)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(id string) (*models.Product, error) {
	return s.repo.GetByID(id)
}

// CreateProduct lists a new product under the caller's shop.
func (s *ProductService) CreateProduct(product *models.Product, callerShopID string) error {
	if callerShopID == "" {
		return fmt.Errorf("only shopkeepers can list products: %w", models.ErrForbidden)
	}
	product.ShopID = callerShopID
	return s.repo.Create(product)
}

// UpdateProduct updates an existing product. Only the listing shop may edit it.
func (s *ProductService) UpdateProduct(product *models.Product, callerShopID string) error {
	existing, err := s.repo.GetByID(product.ID)
	if err != nil {
		return err
	}
	if existing.ShopID != callerShopID {
		return fmt.Errorf("product %s belongs to another shop: %w", product.ID, models.ErrForbidden)
	}
	product.ShopID = existing.ShopID
	return s.repo.Update(product)
}

// DeleteProduct removes a product. Only the listing shop may delete it.
func (s *ProductService) DeleteProduct(id, callerShopID string) error {
	existing, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if existing.ShopID != callerShopID {
		return fmt.Errorf("product %s belongs to another shop: %w", id, models.ErrForbidden)
	}
	return s.repo.Delete(id)
}
