// internal/models/commerce.go
package models

import (
	"strconv"
	"time"
)

// Product is the purchasable representation of a license in the commerce store.
type Product struct {
	ID         string            `json:"id" gorm:"primaryKey;size:64"`
	LicenseTag string            `json:"license_tag" gorm:"size:64;not null;uniqueIndex"`
	LicenseID  uint              `json:"license_id" gorm:"not null;index"`
	Name       string            `json:"name" gorm:"size:255;not null"`
	Price      float64           `json:"price" gorm:"type:decimal(10,2);not null"`
	Currency   Currency          `json:"currency" gorm:"type:varchar(3);not null"`
	Visibility ProductVisibility `json:"visibility" gorm:"type:varchar(20);not null;default:'hidden'"`
	Recurring  bool              `json:"recurring" gorm:"not null;default:false"`
	Interval   string            `json:"interval,omitempty" gorm:"column:billing_interval;size:20"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (Product) TableName() string {
	return "commerce_products"
}

// Order is an order recorded by the commerce store.
type Order struct {
	ID            string      `json:"id" gorm:"primaryKey;size:64"`
	ProductID     string      `json:"product_id" gorm:"size:64;index"`
	Status        OrderStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Total         float64     `json:"total" gorm:"type:decimal(10,2);not null;default:0"`
	Currency      Currency    `json:"currency" gorm:"type:varchar(3)"`
	PaymentMethod string      `json:"payment_method" gorm:"size:50"`
	Metadata      Metadata    `json:"metadata" gorm:"type:text"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	PaidAt        *time.Time  `json:"paid_at"`
}

func (Order) TableName() string {
	return "commerce_orders"
}

// IsPaid reports whether payment for the order has been captured.
func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusProcessing || o.Status == OrderStatusCompleted
}

// LicenseTag is the unique product tag for a license.
func LicenseTag(licenseID uint) string {
	return "license:" + strconv.FormatUint(uint64(licenseID), 10)
}
