// internal/service/fulfillment/infrastructure/mapper.go
package infrastructure

import (
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain"
)

// ToDomainOrder 将数据库模型转换为领域模型
func ToDomainOrder(model *OrderModel) *domain.Order {
	order := &domain.Order{
		ID:                model.ID,
		OrderNumber:       model.OrderNumber,
		Status:            domain.OrderStatus(model.Status),
		FulfillmentStatus: domain.FulfillmentStatus(model.FulfillmentStatus),
		CustomerID:        model.CustomerID,
		CustomerEmail:     model.CustomerEmail,
		RemoteAccountID:   model.RemoteAccountID,
		TotalAmount:       model.TotalAmount,
		Currency:          model.Currency,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
	for i := range model.Items {
		order.Items = append(order.Items, ToDomainOrderItem(&model.Items[i]))
	}
	return order
}

// ToDomainOrderItem 将订单项模型转换为领域模型
func ToDomainOrderItem(model *OrderItemModel) *domain.OrderItem {
	item := &domain.OrderItem{
		ID:                  model.ID,
		OrderID:             model.OrderID,
		ProductID:           model.ProductID,
		SkuID:               model.SkuID,
		BillingCycle:        model.BillingCycle,
		TermDuration:        model.TermDuration,
		ProductTitle:        model.ProductTitle,
		Quantity:            model.Quantity,
		UnitPrice:           model.UnitPrice,
		LineTotal:           model.LineTotal,
		FulfillmentStatus:   domain.ItemStatus(model.FulfillmentStatus),
		ProcessingStartedAt: model.ProcessingStartedAt,
		FulfilledAt:         model.FulfilledAt,
	}
	if model.FulfillmentError != nil {
		item.FulfillmentError = *model.FulfillmentError
	}
	if model.RemoteSubscriptionID != nil {
		item.RemoteSubscriptionID = *model.RemoteSubscriptionID
	}
	return item
}

// ToDomainAvailability 将可售性模型转换为领域模型
func ToDomainAvailability(model *AvailabilityModel) *domain.Availability {
	return &domain.Availability{
		ProductID:            model.ProductID,
		SkuID:                model.SkuID,
		RemoteAvailabilityID: model.RemoteAvailabilityID,
		Available:            model.Available,
		CheckedAt:            model.CheckedAt,
	}
}

// itemUpdateColumns 生成订单项履约字段的部分更新。
// 空串统一映射为 NULL，保证 "清除错误" 与 "写入错误" 走同一条路径。
func itemUpdateColumns(item *domain.OrderItem) map[string]interface{} {
	var fulfillmentError *string
	if item.FulfillmentError != "" {
		fulfillmentError = &item.FulfillmentError
	}
	var remoteSubscriptionID *string
	if item.RemoteSubscriptionID != "" {
		remoteSubscriptionID = &item.RemoteSubscriptionID
	}
	return map[string]interface{}{
		"fulfillment_status":     string(item.FulfillmentStatus),
		"fulfillment_error":      fulfillmentError,
		"processing_started_at":  item.ProcessingStartedAt,
		"fulfilled_at":           item.FulfilledAt,
		"remote_subscription_id": remoteSubscriptionID,
	}
}
