package models

import "gorm.io/gorm"

// Product represents a catalog item listed by a shop.
type Product struct {
	ID          string  `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	ShopID      string  `json:"shop_id" gorm:"index;type:varchar(36)"`
	Name        string  `json:"name" validate:"required,min=3,max=100"`
	Description string  `json:"description" validate:"omitempty,max=500"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
	Image       string  `json:"image,omitempty" validate:"omitempty,max=500"`
	gorm.Model          // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}
