// internal/service/fulfillment/infrastructure/adapter/order_lock_zk_adapter.go
package adapter

import (
	"context"
	"fmt"

	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain/port"
	"github.com/doarsal/readymarket-backend-sub003/internal/zookeeper"
)

// ZkOrderLocker 实现了 port.OrderLocker 接口，
// 用 ZooKeeper 临时顺序节点做按订单粒度的互斥。
// 进程崩溃时会话失效，锁自动释放，不会留下死锁。
type ZkOrderLocker struct {
	conn *zookeeper.Conn
}

// NewZkOrderLocker 创建一个新的锁提供者。
func NewZkOrderLocker(conn *zookeeper.Conn) *ZkOrderLocker {
	return &ZkOrderLocker{conn: conn}
}

// Acquire 获取订单锁，已有持有者时阻塞等待（锁内部有等待超时）。
func (l *ZkOrderLocker) Acquire(ctx context.Context, orderID uint) (port.OrderLock, error) {
	lock, err := zookeeper.NewDistributedLock(l.conn, fmt.Sprintf("order-%d", orderID))
	if err != nil {
		return nil, err
	}
	if err := lock.Lock(); err != nil {
		return nil, err
	}
	return &zkOrderLock{lock: lock}, nil
}

type zkOrderLock struct {
	lock *zookeeper.DistributedLock
}

func (l *zkOrderLock) Release() error {
	return l.lock.Unlock()
}
