// internal/service/fulfillment/infrastructure/adapter/attempt_redis_adapter.go
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/redis"
)

const (
	// 幂等键的存活时间。远超单次远程调用的超时，
	// 足够覆盖 "调用成功但本地落库前崩溃" 的恢复窗口。
	attemptKeyTTL = 24 * time.Hour
)

// AttemptRedisAdapter 实现了 port.AttemptRegistry 接口。
// 每次开通尝试在远程调用之前先 SETNX 一个 (order, item) → attemptID 的键；
// 键已存在说明上一次尝试可能仍在途，重放时复用同一个 attempt id，
// 平台按请求 id 去重。
type AttemptRedisAdapter struct {
	client *redis.Client
}

// NewAttemptRedisAdapter 创建幂等键登记器。
func NewAttemptRedisAdapter(client *redis.Client) *AttemptRedisAdapter {
	return &AttemptRedisAdapter{client: client}
}

func attemptKey(orderID, itemID uint) string {
	return fmt.Sprintf("fulfillment:attempt:{%d}:%d", orderID, itemID)
}

// Begin 登记一次尝试。返回的 replay 表示该订单项已有在途尝试。
func (a *AttemptRedisAdapter) Begin(ctx context.Context, orderID, itemID uint) (string, bool, error) {
	key := attemptKey(orderID, itemID)
	attemptID := uuid.New().String()

	ok, err := a.client.SetNX(ctx, key, attemptID, attemptKeyTTL)
	if err != nil {
		return "", false, fmt.Errorf("failed to register attempt key: %w", err)
	}
	if ok {
		return attemptID, false, nil
	}

	// 键已存在：取出上一次的 attempt id 用于重放
	existing, err := a.client.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("failed to read existing attempt key: %w", err)
	}
	if existing == "" {
		// 键在 SETNX 和 GET 之间过期了，直接用新的
		return attemptID, false, nil
	}
	return existing, true, nil
}

// Finish 在尝试得到终态结果后删除幂等键。
func (a *AttemptRedisAdapter) Finish(ctx context.Context, orderID, itemID uint) error {
	return a.client.Del(ctx, attemptKey(orderID, itemID))
}
