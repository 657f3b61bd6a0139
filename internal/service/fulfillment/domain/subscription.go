// internal/service/fulfillment/domain/subscription.go
package domain

import "time"

// Subscription 是一条本地的订阅记录，对应上游平台中一个真实存在的订阅。
// 每个到达 fulfilled 的订单项恰好产生一条；失败的尝试永远不会产生。
type Subscription struct {
	ID                   uint
	OrderID              uint
	OrderItemID          uint
	RemoteAccountID      string
	ProductID            string
	SkuID                string
	RemoteSubscriptionID string
	Quantity             int
	Price                float64
	CreatedAt            time.Time
}

// Availability 是某个 product/sku 的可售性前置条件，
// 由外部同步任务刷新，履约引擎只读。
type Availability struct {
	ProductID            string
	SkuID                string
	RemoteAvailabilityID string
	Available            bool
	CheckedAt            *time.Time
}

// Purchasable 判断该 SKU 当前是否允许发起远程开通。
// 没检查过（CheckedAt 为空）与检查结果为不可售同等对待。
func (a *Availability) Purchasable() bool {
	return a != nil && a.CheckedAt != nil && a.Available
}
