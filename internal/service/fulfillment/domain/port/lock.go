// internal/service/fulfillment/domain/port/lock.go
package port

import "context"

// OrderLock 是一把已经持有的锁。
type OrderLock interface {
	Release() error
}

// OrderLocker 提供按订单粒度的互斥。
// 编排器在整个处理过程中持锁，保证并发的重试调用对同一订单串行化。
type OrderLocker interface {
	Acquire(ctx context.Context, orderID uint) (OrderLock, error)
}
