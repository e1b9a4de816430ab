package services_test

import (
	"fmt"
	"testing"

	"pasar/internal/models"
	"pasar/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByUsername(username string) (*models.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(email string) (*models.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func TestAuthService_RegisterUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewAuthService(mockRepo, "test_secret")

	user := &models.User{
		Username: "asha",
		Email:    "asha@example.com",
		Password: "secret123",
		Role:     models.RoleCustomer,
	}

	mockRepo.On("GetByUsername", "asha").Return(nil, fmt.Errorf("user with username asha: %w", models.ErrNotFound)).Once()
	mockRepo.On("GetByEmail", "asha@example.com").Return(nil, fmt.Errorf("user with email asha@example.com: %w", models.ErrNotFound)).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.User")).Return(nil).Once()

	err := service.RegisterUser(user)
	assert.NoError(t, err)
	assert.NotEqual(t, "secret123", user.Password, "password must be stored hashed")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("secret123")))
	assert.Empty(t, user.ShopID, "customers carry no shop binding")
	mockRepo.AssertExpectations(t)
}

func TestAuthService_RegisterShopkeeper_MintsShopID(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewAuthService(mockRepo, "test_secret")

	user := &models.User{
		Username: "keeper",
		Email:    "keeper@example.com",
		Password: "secret123",
		Role:     models.RoleShopkeeper,
		ShopName: "Corner Store",
	}

	mockRepo.On("GetByUsername", "keeper").Return(nil, fmt.Errorf("not found")).Once()
	mockRepo.On("GetByEmail", "keeper@example.com").Return(nil, fmt.Errorf("not found")).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.User")).Return(nil).Once()

	err := service.RegisterUser(user)
	assert.NoError(t, err)
	assert.NotEmpty(t, user.ShopID)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_RegisterUser_DuplicateUsername(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewAuthService(mockRepo, "test_secret")

	existing := &models.User{ID: "u1", Username: "asha"}
	mockRepo.On("GetByUsername", "asha").Return(existing, nil).Once()

	err := service.RegisterUser(&models.User{Username: "asha", Email: "other@example.com", Password: "secret123"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already taken")
	mockRepo.AssertExpectations(t)
}

func TestAuthService_LoginUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewAuthService(mockRepo, "test_secret")

	hashed, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.DefaultCost)
	assert.NoError(t, err)
	stored := &models.User{
		ID:       "u1",
		Username: "keeper",
		Password: string(hashed),
		Role:     models.RoleShopkeeper,
		ShopID:   "shop-1",
	}
	mockRepo.On("GetByUsername", "keeper").Return(stored, nil)

	token, err := service.LoginUser("keeper", "secret123")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	// The token carries the claims the ownership checks depend on.
	claims, err := service.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, "u1", claims["user_id"])
	assert.Equal(t, models.RoleShopkeeper, claims["role"])
	assert.Equal(t, "shop-1", claims["shop_id"])

	// Wrong password is rejected without detail.
	_, err = service.LoginUser("keeper", "wrong")
	assert.Error(t, err)
	assert.Equal(t, "invalid credentials", err.Error())
}

func TestAuthService_ValidateToken_WrongSecret(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewAuthService(mockRepo, "test_secret")

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u1"})
	forgedString, err := forged.SignedString([]byte("other_secret"))
	assert.NoError(t, err)

	_, err = service.ValidateToken(forgedString)
	assert.Error(t, err)
}
