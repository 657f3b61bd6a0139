// internal/service/fulfillment/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain"
)

// GormOrderRepository 是 OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository 创建一个新的 GORM 仓储实例
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID 加载订单及其全部订单项
func (r *GormOrderRepository) FindByID(ctx context.Context, orderID uint) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Preload("Items").First(&model, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return ToDomainOrder(&model), nil
}

// UpdateStatus 持久化编排后推导出的订单级状态
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, orderID uint, status domain.OrderStatus, fulfillment domain.FulfillmentStatus) error {
	return r.db.WithContext(ctx).Model(&OrderModel{}).Where("id = ?", orderID).Updates(map[string]interface{}{
		"status":             string(status),
		"fulfillment_status": string(fulfillment),
	}).Error
}

// UpdateItemFulfillment 持久化单个订单项的履约字段（部分更新）
func (r *GormOrderRepository) UpdateItemFulfillment(ctx context.Context, item *domain.OrderItem) error {
	return r.db.WithContext(ctx).Model(&OrderItemModel{}).Where("id = ?", item.ID).
		Updates(itemUpdateColumns(item)).Error
}

// FindFailedItems 返回某订单下所有 failed 的订单项
func (r *GormOrderRepository) FindFailedItems(ctx context.Context, orderID uint) ([]*domain.OrderItem, error) {
	var models []OrderItemModel
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND fulfillment_status = ?", orderID, string(domain.ItemStatusFailed)).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	items := make([]*domain.OrderItem, 0, len(models))
	for i := range models {
		items = append(items, ToDomainOrderItem(&models[i]))
	}
	return items, nil
}

// FindItemsFailedSince 返回给定时间之后进入 failed 的所有订单项。
// updated_at 是最后一次状态跃迁的时间，对 failed 的项即失败时间。
func (r *GormOrderRepository) FindItemsFailedSince(ctx context.Context, since time.Time) ([]*domain.OrderItem, error) {
	var models []OrderItemModel
	err := r.db.WithContext(ctx).
		Where("fulfillment_status = ? AND updated_at >= ?", string(domain.ItemStatusFailed), since).
		Order("order_id").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	items := make([]*domain.OrderItem, 0, len(models))
	for i := range models {
		items = append(items, ToDomainOrderItem(&models[i]))
	}
	return items, nil
}

// GormSubscriptionRepository 是 SubscriptionRepository 的 GORM 实现
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository 创建一个新的订阅仓储实例
func NewGormSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

// Create 写入一条订阅记录。order_item_id 上有唯一索引，
// 并发情况下的第二次写入会在数据库层被拒绝。
func (r *GormSubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	model := SubscriptionModel{
		OrderID:              sub.OrderID,
		OrderItemID:          sub.OrderItemID,
		RemoteAccountID:      sub.RemoteAccountID,
		ProductID:            sub.ProductID,
		SkuID:                sub.SkuID,
		RemoteSubscriptionID: sub.RemoteSubscriptionID,
		Quantity:             sub.Quantity,
		Price:                sub.Price,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrSubscriptionExists
		}
		return err
	}
	sub.ID = model.ID
	sub.CreatedAt = model.CreatedAt
	return nil
}

// ExistsForItem 判断某订单项是否已有订阅记录
func (r *GormSubscriptionRepository) ExistsForItem(ctx context.Context, orderItemID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&SubscriptionModel{}).
		Where("order_item_id = ?", orderItemID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GormAvailabilityRepository 是 AvailabilityRepository 的 GORM 实现
type GormAvailabilityRepository struct {
	db *gorm.DB
}

// NewGormAvailabilityRepository 创建一个新的可售性仓储实例
func NewGormAvailabilityRepository(db *gorm.DB) *GormAvailabilityRepository {
	return &GormAvailabilityRepository{db: db}
}

// FindForSku 查找某 product/sku 的可售性记录，不存在时返回 nil
func (r *GormAvailabilityRepository) FindForSku(ctx context.Context, productID, skuID string) (*domain.Availability, error) {
	var model AvailabilityModel
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND sku_id = ?", productID, skuID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return ToDomainAvailability(&model), nil
}
