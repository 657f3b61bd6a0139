package adapter

import (
	"context"
	"net"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain/port"
)

func escalationPayload() *port.EscalationPayload {
	return &port.EscalationPayload{
		OrderID:           42,
		OrderNumber:       "ORD-2026-0042",
		CustomerEmail:     "buyer@example.com",
		TotalProducts:     2,
		FulfilledProducts: 1,
		FailedProducts:    1,
		Items: []port.EscalationItem{
			{ProductID: "prod-a", ProductTitle: "Product A", Quantity: 2, Success: true},
			{
				ProductID:     "prod-b",
				ProductTitle:  "Product B",
				Quantity:      1,
				Success:       false,
				Category:      domain.CategoryInvalidCatalogItem,
				ErrorMessage:  "HTTP 400 [800002]: The CatalogItem Id is invalid.",
				CorrelationID: "corr-1",
				RequestID:     "req-1",
			},
		},
	}
}

func TestEmailSend(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	adapter := NewEmailEscalationAdapter(SMTPConfig{
		Host:       "smtp.example.com",
		Port:       587,
		From:       "alerts@example.com",
		Recipients: []string{"ops@example.com", "oncall@example.com"},
	})
	adapter.send = func(ctx context.Context, addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		// 发送函数拿到的 ctx 必须带截止时间
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	}

	require.NoError(t, adapter.Send(context.Background(), escalationPayload()))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "alerts@example.com", gotFrom)
	assert.Equal(t, []string{"ops@example.com", "oncall@example.com"}, gotTo)

	body := string(gotMsg)
	assert.Contains(t, body, "Subject: [fulfillment] order ORD-2026-0042: 1 of 2 products failed")
	assert.Contains(t, body, "[OK] Product A")
	assert.Contains(t, body, "[FAILED] Product B")
	assert.Contains(t, body, "category: InvalidCatalogItem")
	assert.Contains(t, body, "correlation-id: corr-1")
	assert.Contains(t, body, "request-id:     req-1")
}

// 没有收件人视为通道关闭：静默成功，不发起任何 SMTP 调用。
func TestEmailSendNoRecipients(t *testing.T) {
	called := false
	adapter := NewEmailEscalationAdapter(SMTPConfig{Host: "smtp.example.com", Port: 587})
	adapter.send = func(context.Context, string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	}

	require.NoError(t, adapter.Send(context.Background(), escalationPayload()))
	assert.False(t, called)
}

// 服务器接受 TCP 连接但永远不发 greeting：Send 必须在超时内失败返回，
// 绝不能把同步调用它的编排器拖死。
func TestEmailSendReturnsWithinTimeoutOnStalledServer(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			// 占住连接，不发任何字节
			defer conn.Close()
		}
	}()

	addr := listener.Addr().(*net.TCPAddr)
	adapter := NewEmailEscalationAdapter(SMTPConfig{
		Host:       "127.0.0.1",
		Port:       addr.Port,
		From:       "alerts@example.com",
		Recipients: []string{"ops@example.com"},
		Timeout:    200 * time.Millisecond,
	})

	start := time.Now()
	err = adapter.Send(context.Background(), escalationPayload())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, 3*time.Second, "send must fail at the deadline, not hang")
}

// 调用方的 ctx 已经取消时，Send 立即失败而不是继续拨号。
func TestEmailSendHonorsCancelledContext(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)
	adapter := NewEmailEscalationAdapter(SMTPConfig{
		Host:       "127.0.0.1",
		Port:       addr.Port,
		From:       "alerts@example.com",
		Recipients: []string{"ops@example.com"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err = adapter.Send(ctx, escalationPayload())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
