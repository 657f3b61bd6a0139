// internal/service/fulfillment/domain/port/attempt.go
package port

import "context"

// AttemptRegistry 为每次开通尝试登记一个先行写入的幂等键。
// 键在远程调用发起之前写入：如果上一次运行在远程调用成功后、
// 本地落库之前崩溃，重放会拿到同一个 attempt id，
// 平台可以据此对重复提交去重。
type AttemptRegistry interface {
	// Begin 返回 (attemptID, replay)。replay 为 true 表示该订单项
	// 已有一次在途尝试，返回的是上一次的 attempt id。
	Begin(ctx context.Context, orderID, itemID uint) (attemptID string, replay bool, err error)

	// Finish 在尝试得到终态结果后清除幂等键。
	Finish(ctx context.Context, orderID, itemID uint) error
}
