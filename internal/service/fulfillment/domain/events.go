// internal/service/fulfillment/domain/events.go
package domain

// OrderPaidEvent 是支付完成后由计费子系统发布的事件，
// 是履约引擎在消息通道上的触发器。
type OrderPaidEvent struct {
	EventID     string `json:"event_id"`
	OrderID     uint   `json:"order_id"`
	OrderNumber string `json:"order_number"`
	PaidAt      string `json:"paid_at,omitempty"`
}
