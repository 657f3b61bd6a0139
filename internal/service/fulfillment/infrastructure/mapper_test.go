package infrastructure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain"
)

func TestToDomainOrder(t *testing.T) {
	errText := "timeout"
	subID := "sub-1"
	model := &OrderModel{
		Model:             gorm.Model{ID: 42},
		OrderNumber:       "ORD-2026-0042",
		Status:            "processing",
		FulfillmentStatus: "partial",
		CustomerID:        7,
		CustomerEmail:     "buyer@example.com",
		RemoteAccountID:   "acct-1001",
		TotalAmount:       199.90,
		Currency:          "USD",
		Items: []OrderItemModel{
			{Model: gorm.Model{ID: 1}, OrderID: 42, ProductID: "prod-a", FulfillmentStatus: "fulfilled", RemoteSubscriptionID: &subID},
			{Model: gorm.Model{ID: 2}, OrderID: 42, ProductID: "prod-b", FulfillmentStatus: "failed", FulfillmentError: &errText},
		},
	}

	order := ToDomainOrder(model)
	assert.Equal(t, uint(42), order.ID)
	assert.Equal(t, domain.OrderStatusProcessing, order.Status)
	assert.Equal(t, domain.FulfillmentPartial, order.FulfillmentStatus)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "sub-1", order.Items[0].RemoteSubscriptionID)
	assert.Empty(t, order.Items[0].FulfillmentError)
	assert.Equal(t, "timeout", order.Items[1].FulfillmentError)
	assert.Empty(t, order.Items[1].RemoteSubscriptionID)
}

func TestItemUpdateColumns(t *testing.T) {
	now := time.Now()
	item := &domain.OrderItem{
		FulfillmentStatus:    domain.ItemStatusFulfilled,
		FulfilledAt:          &now,
		RemoteSubscriptionID: "sub-1",
	}

	cols := itemUpdateColumns(item)
	assert.Equal(t, "fulfilled", cols["fulfillment_status"])
	// 空错误文案写 NULL，而不是空串
	assert.Nil(t, cols["fulfillment_error"])
	require.NotNil(t, cols["remote_subscription_id"])
	assert.Equal(t, "sub-1", *cols["remote_subscription_id"].(*string))

	item = &domain.OrderItem{
		FulfillmentStatus: domain.ItemStatusFailed,
		FulfillmentError:  "boom",
	}
	cols = itemUpdateColumns(item)
	assert.Equal(t, "failed", cols["fulfillment_status"])
	require.NotNil(t, cols["fulfillment_error"])
	assert.Equal(t, "boom", *cols["fulfillment_error"].(*string))
	assert.Nil(t, cols["remote_subscription_id"])
}
