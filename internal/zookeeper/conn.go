// internal/zookeeper/conn.go
package zookeeper

import (
	"fmt"
	"time"

	"github.com/go-zookeeper/zk"
)

// Conn 封装了底层的 ZooKeeper 连接，只暴露锁实现需要的操作。
type Conn struct {
	conn *zk.Conn
}

// Connect 建立到 ZooKeeper 集群的连接。
func Connect(servers []string, sessionTimeout time.Duration) (*Conn, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper %v: %w", servers, err)
	}
	return &Conn{conn: conn}, nil
}

func (c *Conn) Exists(path string) (bool, *zk.Stat, error) {
	return c.conn.Exists(path)
}

func (c *Conn) ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error) {
	return c.conn.ExistsW(path)
}

func (c *Conn) Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error) {
	return c.conn.Create(path, data, flags, acl)
}

func (c *Conn) CreateProtectedEphemeralSequential(path string, data []byte, acl []zk.ACL) (string, error) {
	return c.conn.CreateProtectedEphemeralSequential(path, data, acl)
}

func (c *Conn) Children(path string) ([]string, *zk.Stat, error) {
	children, stat, err := c.conn.Children(path)
	return children, stat, err
}

func (c *Conn) Delete(path string, version int32) error {
	return c.conn.Delete(path, version)
}

// Close 关闭连接，所有由本会话创建的临时节点随之失效。
func (c *Conn) Close() {
	c.conn.Close()
}
