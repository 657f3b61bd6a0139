// internal/service/fulfillment/domain/order.go
package domain

import (
	"errors"
	"time"
)

// OrderStatus 定义了订单的整体生命周期状态。
// 履约引擎只会把订单推进到 completed，其余状态由外围系统维护。
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// FulfillmentStatus 是订单级的履约状态，由所有订单项的状态推导得出。
type FulfillmentStatus string

const (
	FulfillmentUnfulfilled FulfillmentStatus = "unfulfilled"
	FulfillmentPartial     FulfillmentStatus = "partial"
	FulfillmentFulfilled   FulfillmentStatus = "fulfilled"
	FulfillmentCancelled   FulfillmentStatus = "cancelled"
	FulfillmentFailed      FulfillmentStatus = "failed"
)

// ItemStatus 是单个订单项的履约状态。
// 状态只允许沿 {pending|failed} → processing → {fulfilled|failed} 推进，
// fulfilled 是终态，failed 可以被重试协调器重置回 pending。
type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusFulfilled  ItemStatus = "fulfilled"
	ItemStatusFailed     ItemStatus = "failed"
	ItemStatusCancelled  ItemStatus = "cancelled"
	ItemStatusRefunded   ItemStatus = "refunded"
)

var ErrInvalidItemTransition = errors.New("invalid order item status transition")

// Order 是履约引擎视角下的订单聚合根。
// 引擎只读取订单身份信息，写入 Status 和 FulfillmentStatus 两个字段。
type Order struct {
	ID                uint
	OrderNumber       string
	Status            OrderStatus
	FulfillmentStatus FulfillmentStatus
	CustomerID        uint
	CustomerEmail     string
	// 上游商务平台中客户账户的引用（创建订阅时的 accountRef）
	RemoteAccountID string
	TotalAmount     float64
	Currency        string
	Items           []*OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem 是一条购买行。购买快照字段在下单后不可变，
// 履约字段只由 Item Provisioner 修改。
type OrderItem struct {
	ID        uint
	OrderID   uint
	ProductID string
	SkuID     string
	// 计费周期与期限，随购买快照固定（例如 monthly / P1Y）
	BillingCycle string
	TermDuration string
	ProductTitle string
	Quantity     int
	UnitPrice    float64
	LineTotal    float64

	FulfillmentStatus    ItemStatus
	FulfillmentError     string
	ProcessingStartedAt  *time.Time
	FulfilledAt          *time.Time
	RemoteSubscriptionID string
}

// Eligible 判断该项是否应被本次编排处理。
// processing 也算在内：上一次运行崩溃可能把项卡在中途，这是恢复手段。
func (i *OrderItem) Eligible() bool {
	switch i.FulfillmentStatus {
	case ItemStatusPending, ItemStatusProcessing, ItemStatusFailed:
		return true
	}
	return false
}

// MarkProcessing 在发起任何远程调用之前落库的状态，保证崩溃后留下可恢复的痕迹。
func (i *OrderItem) MarkProcessing(now time.Time) error {
	if !i.Eligible() {
		return ErrInvalidItemTransition
	}
	i.FulfillmentStatus = ItemStatusProcessing
	i.ProcessingStartedAt = &now
	return nil
}

// MarkFulfilled 记录一次成功的开通。fulfilled 是终态。
func (i *OrderItem) MarkFulfilled(remoteSubscriptionID string, now time.Time) error {
	if i.FulfillmentStatus != ItemStatusProcessing {
		return ErrInvalidItemTransition
	}
	i.FulfillmentStatus = ItemStatusFulfilled
	i.FulfilledAt = &now
	i.RemoteSubscriptionID = remoteSubscriptionID
	i.FulfillmentError = ""
	return nil
}

// MarkFailed 记录一次失败的开通，保存给运营看的错误文案。
func (i *OrderItem) MarkFailed(message string) {
	i.FulfillmentStatus = ItemStatusFailed
	i.FulfillmentError = message
}

// ResetForRetry 把失败项重置回 pending，由重试协调器调用。
// 只有 failed 可以被重置，fulfilled 永远不会被碰。
func (i *OrderItem) ResetForRetry() error {
	if i.FulfillmentStatus != ItemStatusFailed {
		return ErrInvalidItemTransition
	}
	i.FulfillmentStatus = ItemStatusPending
	i.FulfillmentError = ""
	i.ProcessingStartedAt = nil
	i.FulfilledAt = nil
	return nil
}

// EligibleItems 返回本次编排需要处理的订单项，顺序与存储顺序一致。
func (o *Order) EligibleItems() []*OrderItem {
	var eligible []*OrderItem
	for _, item := range o.Items {
		if item.Eligible() {
			eligible = append(eligible, item)
		}
	}
	return eligible
}

// FulfilledCount 统计已履约成功的订单项数量。
func (o *Order) FulfilledCount() int {
	n := 0
	for _, item := range o.Items {
		if item.FulfillmentStatus == ItemStatusFulfilled {
			n++
		}
	}
	return n
}

// FailedCount 统计当前处于失败状态的订单项数量。
func (o *Order) FailedCount() int {
	n := 0
	for _, item := range o.Items {
		if item.FulfillmentStatus == ItemStatusFailed {
			n++
		}
	}
	return n
}

// DeriveFulfillment 根据所有订单项的状态推导订单级履约状态。
// 这是一个确定性函数：
//   - 全部 fulfilled         → fulfilled，订单进入 completed
//   - 无一 fulfilled 但有被处理过的项 → failed
//   - fulfilled 与 failed/pending 混合  → partial
//   - 没有任何项被处理过       → unfulfilled
func (o *Order) DeriveFulfillment() {
	total := len(o.Items)
	fulfilled := o.FulfilledCount()
	touched := 0
	for _, item := range o.Items {
		if item.FulfillmentStatus != ItemStatusPending {
			touched++
		}
	}

	switch {
	case total > 0 && fulfilled == total:
		o.FulfillmentStatus = FulfillmentFulfilled
		o.Status = OrderStatusCompleted
	case fulfilled == 0 && touched > 0:
		o.FulfillmentStatus = FulfillmentFailed
	case fulfilled > 0:
		o.FulfillmentStatus = FulfillmentPartial
	default:
		o.FulfillmentStatus = FulfillmentUnfulfilled
	}
}
