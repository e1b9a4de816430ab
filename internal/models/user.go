package models

import "gorm.io/gorm"

// Marketplace roles.
const (
	RoleCustomer   = "customer"
	RoleShopkeeper = "shopkeeper"
)

// User represents an account on either side of the marketplace. Shopkeepers
// carry the id and display name of the shop they run; customers leave both
// empty.
type User struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Username   string `json:"username" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=3,max=100"`
	Email      string `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password   string `gorm:"type:varchar(255)" validate:"required,min=6"` // No json tag for security
	Phone      string `json:"phone" gorm:"type:varchar(20)" validate:"omitempty,min=7,max=20"`
	Role       string `json:"role" gorm:"type:varchar(20)" validate:"required,oneof=customer shopkeeper"`
	ShopID     string `json:"shop_id,omitempty" gorm:"index;type:varchar(36)"`
	ShopName   string `json:"shop_name,omitempty" gorm:"type:varchar(100)"`
	gorm.Model        // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}
