// internal/service/fulfillment/domain/repository.go
package domain

import (
	"context"
	"time"
)

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// FindByID 加载订单及其全部订单项。订单不存在时返回 ErrOrderNotFound。
	FindByID(ctx context.Context, orderID uint) (*Order, error)

	// UpdateStatus 持久化编排后推导出的订单级状态。
	UpdateStatus(ctx context.Context, orderID uint, status OrderStatus, fulfillment FulfillmentStatus) error

	// UpdateItemFulfillment 持久化单个订单项的履约字段。
	// 每次状态跃迁都单独落库，作为崩溃恢复的检查点。
	UpdateItemFulfillment(ctx context.Context, item *OrderItem) error

	// FindFailedItems 返回某订单下所有 failed 的订单项。
	FindFailedItems(ctx context.Context, orderID uint) ([]*OrderItem, error)

	// FindItemsFailedSince 返回在给定时间之后进入 failed 的所有订单项（跨订单）。
	FindItemsFailedSince(ctx context.Context, since time.Time) ([]*OrderItem, error)
}

// SubscriptionRepository 管理本地订阅记录。
type SubscriptionRepository interface {
	// Create 写入一条订阅记录。
	Create(ctx context.Context, sub *Subscription) error

	// ExistsForItem 判断某订单项是否已有订阅记录（幂等检查）。
	ExistsForItem(ctx context.Context, orderItemID uint) (bool, error)
}

// AvailabilityRepository 提供可售性前置条件的只读访问。
// 数据由外部同步任务刷新。
type AvailabilityRepository interface {
	// FindForSku 查找某 product/sku 的可售性记录，不存在时返回 nil 而非错误。
	FindForSku(ctx context.Context, productID, skuID string) (*Availability, error)
}
