// internal/service/fulfillment/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"gorm.io/gorm"
)

// OrderModel 对应数据库中的 orders 表。
// 表由外围商城系统拥有，履约引擎只写 status 和 fulfillment_status。
type OrderModel struct {
	gorm.Model
	OrderNumber       string `gorm:"uniqueIndex;size:64"`
	Status            string `gorm:"size:32;default:pending"`
	FulfillmentStatus string `gorm:"size:32;default:unfulfilled"`
	CustomerID        uint
	CustomerEmail     string `gorm:"size:255"`
	RemoteAccountID   string `gorm:"size:64"`
	TotalAmount       float64 `gorm:"type:decimal(12,2)"`
	Currency          string  `gorm:"size:8"`
	// 关联关系
	Items []OrderItemModel `gorm:"foreignKey:OrderID"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应数据库中的 order_items 表
type OrderItemModel struct {
	gorm.Model
	OrderID      uint   `gorm:"index"`
	ProductID    string `gorm:"size:64"`
	SkuID        string `gorm:"size:64"`
	BillingCycle string `gorm:"size:32"`
	TermDuration string `gorm:"size:16"`
	ProductTitle string `gorm:"size:255"`
	Quantity     int
	UnitPrice    float64 `gorm:"type:decimal(12,2)"`
	LineTotal    float64 `gorm:"type:decimal(12,2)"`

	FulfillmentStatus    string `gorm:"size:32;default:pending;index"`
	FulfillmentError     *string
	ProcessingStartedAt  *time.Time
	FulfilledAt          *time.Time
	RemoteSubscriptionID *string `gorm:"size:64"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderItemModel) TableName() string {
	return "order_items"
}

// SubscriptionModel 对应数据库中的 subscriptions 表
type SubscriptionModel struct {
	gorm.Model
	OrderID              uint   `gorm:"index"`
	OrderItemID          uint   `gorm:"uniqueIndex"`
	RemoteAccountID      string `gorm:"size:64"`
	ProductID            string `gorm:"size:64"`
	SkuID                string `gorm:"size:64"`
	RemoteSubscriptionID string `gorm:"size:64;index"`
	Quantity             int
	Price                float64 `gorm:"type:decimal(12,2)"`
}

// TableName 指定 GORM 应该使用的表名
func (SubscriptionModel) TableName() string {
	return "subscriptions"
}

// AvailabilityModel 对应数据库中的 product_availabilities 表。
// 由外部同步任务刷新，这里只读。
type AvailabilityModel struct {
	gorm.Model
	ProductID            string `gorm:"size:64;index:idx_product_sku"`
	SkuID                string `gorm:"size:64;index:idx_product_sku"`
	RemoteAvailabilityID string `gorm:"size:64"`
	Available            bool
	CheckedAt            *time.Time
}

// TableName 指定 GORM 应该使用的表名
func (AvailabilityModel) TableName() string {
	return "product_availabilities"
}
