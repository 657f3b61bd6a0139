package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderItem_Eligible(t *testing.T) {
	cases := []struct {
		status   ItemStatus
		eligible bool
	}{
		{ItemStatusPending, true},
		{ItemStatusProcessing, true},
		{ItemStatusFailed, true},
		{ItemStatusFulfilled, false},
		{ItemStatusCancelled, false},
		{ItemStatusRefunded, false},
	}
	for _, c := range cases {
		item := &OrderItem{FulfillmentStatus: c.status}
		assert.Equal(t, c.eligible, item.Eligible(), "status %s", c.status)
	}
}

func TestOrderItem_MarkProcessing(t *testing.T) {
	now := time.Now()

	item := &OrderItem{FulfillmentStatus: ItemStatusPending}
	require.NoError(t, item.MarkProcessing(now))
	assert.Equal(t, ItemStatusProcessing, item.FulfillmentStatus)
	require.NotNil(t, item.ProcessingStartedAt)
	assert.Equal(t, now, *item.ProcessingStartedAt)

	// failed 的项可以再次进入 processing（重试路径）
	item = &OrderItem{FulfillmentStatus: ItemStatusFailed}
	require.NoError(t, item.MarkProcessing(now))

	// 卡在 processing 的项允许恢复
	item = &OrderItem{FulfillmentStatus: ItemStatusProcessing}
	require.NoError(t, item.MarkProcessing(now))

	// fulfilled 是终态，永远不允许回到 processing
	item = &OrderItem{FulfillmentStatus: ItemStatusFulfilled}
	assert.ErrorIs(t, item.MarkProcessing(now), ErrInvalidItemTransition)

	item = &OrderItem{FulfillmentStatus: ItemStatusCancelled}
	assert.ErrorIs(t, item.MarkProcessing(now), ErrInvalidItemTransition)
}

func TestOrderItem_MarkFulfilled(t *testing.T) {
	now := time.Now()

	item := &OrderItem{FulfillmentStatus: ItemStatusProcessing, FulfillmentError: "old error"}
	require.NoError(t, item.MarkFulfilled("sub-123", now))
	assert.Equal(t, ItemStatusFulfilled, item.FulfillmentStatus)
	assert.Equal(t, "sub-123", item.RemoteSubscriptionID)
	assert.Empty(t, item.FulfillmentError)
	require.NotNil(t, item.FulfilledAt)

	// 只允许从 processing 进入 fulfilled
	for _, status := range []ItemStatus{ItemStatusPending, ItemStatusFailed, ItemStatusFulfilled} {
		item := &OrderItem{FulfillmentStatus: status}
		assert.ErrorIs(t, item.MarkFulfilled("sub-456", now), ErrInvalidItemTransition, "status %s", status)
	}
}

func TestOrderItem_ResetForRetry(t *testing.T) {
	started := time.Now()
	item := &OrderItem{
		FulfillmentStatus:   ItemStatusFailed,
		FulfillmentError:    "timeout connecting to platform",
		ProcessingStartedAt: &started,
	}
	require.NoError(t, item.ResetForRetry())
	assert.Equal(t, ItemStatusPending, item.FulfillmentStatus)
	assert.Empty(t, item.FulfillmentError)
	assert.Nil(t, item.ProcessingStartedAt)
	assert.Nil(t, item.FulfilledAt)

	// fulfilled 绝不允许被重置
	for _, status := range []ItemStatus{ItemStatusPending, ItemStatusProcessing, ItemStatusFulfilled} {
		item := &OrderItem{FulfillmentStatus: status}
		assert.ErrorIs(t, item.ResetForRetry(), ErrInvalidItemTransition, "status %s", status)
	}
}

func TestOrder_EligibleItems(t *testing.T) {
	order := &Order{Items: []*OrderItem{
		{ID: 1, FulfillmentStatus: ItemStatusFulfilled},
		{ID: 2, FulfillmentStatus: ItemStatusPending},
		{ID: 3, FulfillmentStatus: ItemStatusFailed},
		{ID: 4, FulfillmentStatus: ItemStatusProcessing},
	}}

	eligible := order.EligibleItems()
	require.Len(t, eligible, 3)
	// 顺序与存储顺序一致
	assert.Equal(t, uint(2), eligible[0].ID)
	assert.Equal(t, uint(3), eligible[1].ID)
	assert.Equal(t, uint(4), eligible[2].ID)
}

func TestOrder_DeriveFulfillment(t *testing.T) {
	cases := []struct {
		name        string
		items       []ItemStatus
		fulfillment FulfillmentStatus
		completed   bool
	}{
		{"all fulfilled", []ItemStatus{ItemStatusFulfilled, ItemStatusFulfilled}, FulfillmentFulfilled, true},
		{"all failed", []ItemStatus{ItemStatusFailed, ItemStatusFailed}, FulfillmentFailed, false},
		{"mixed fulfilled and failed", []ItemStatus{ItemStatusFulfilled, ItemStatusFailed}, FulfillmentPartial, false},
		{"fulfilled with pending remainder", []ItemStatus{ItemStatusFulfilled, ItemStatusPending}, FulfillmentPartial, false},
		{"nothing touched", []ItemStatus{ItemStatusPending, ItemStatusPending}, FulfillmentUnfulfilled, false},
		{"single failed", []ItemStatus{ItemStatusFailed}, FulfillmentFailed, false},
		{"single fulfilled", []ItemStatus{ItemStatusFulfilled}, FulfillmentFulfilled, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			order := &Order{Status: OrderStatusProcessing}
			for i, status := range c.items {
				order.Items = append(order.Items, &OrderItem{ID: uint(i + 1), FulfillmentStatus: status})
			}
			order.DeriveFulfillment()
			assert.Equal(t, c.fulfillment, order.FulfillmentStatus)
			if c.completed {
				assert.Equal(t, OrderStatusCompleted, order.Status)
			} else {
				assert.Equal(t, OrderStatusProcessing, order.Status)
			}
		})
	}
}

func TestOrder_DeriveFulfillmentIsDeterministic(t *testing.T) {
	order := &Order{Items: []*OrderItem{
		{FulfillmentStatus: ItemStatusFulfilled},
		{FulfillmentStatus: ItemStatusFailed},
	}}
	order.DeriveFulfillment()
	first := order.FulfillmentStatus
	for i := 0; i < 5; i++ {
		order.DeriveFulfillment()
		assert.Equal(t, first, order.FulfillmentStatus)
	}
}

func TestAvailability_Purchasable(t *testing.T) {
	now := time.Now()

	var missing *Availability
	assert.False(t, missing.Purchasable())

	// 没检查过等同于不可售
	assert.False(t, (&Availability{Available: true}).Purchasable())
	assert.False(t, (&Availability{Available: false, CheckedAt: &now}).Purchasable())
	assert.True(t, (&Availability{Available: true, CheckedAt: &now}).Purchasable())
}
