package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CatalogStatus string

const (
	CatalogStatusActive   CatalogStatus = "active"
	CatalogStatusInactive CatalogStatus = "inactive"
)

// Catalog is a fixed-price service a freelancer offers. Buyers pay OrderFee in
// credit when placing an order.
type Catalog struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SellerID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"seller_id"`
	Title       string          `gorm:"size:200;not null" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price"`
	OrderFee    int64           `gorm:"not null;default:0" json:"order_fee"`
	Status      CatalogStatus   `gorm:"size:20;not null;default:active;index" json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Catalog model
func (Catalog) TableName() string {
	return "catalogs"
}

func (c *Catalog) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "placed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a purchase of a catalog item
type Order struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CatalogID uuid.UUID       `gorm:"type:uuid;not null;index" json:"catalog_id"`
	BuyerID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"buyer_id"`
	SellerID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"seller_id"`
	Price     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price"`
	FeePaid   int64           `gorm:"not null;default:0" json:"fee_paid"`
	Status    OrderStatus     `gorm:"size:20;not null;default:placed" json:"status"`
	CreatedAt time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Order model
func (Order) TableName() string {
	return "orders"
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
