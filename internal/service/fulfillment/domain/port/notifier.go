// internal/service/fulfillment/domain/port/notifier.go
package port

import (
	"context"

	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain"
)

// EscalationItem 是升级通知中的一行明细。
type EscalationItem struct {
	ProductID     string               `json:"product_id"`
	ProductTitle  string               `json:"product_title"`
	Quantity      int                  `json:"quantity"`
	Success       bool                 `json:"success"`
	Category      domain.ErrorCategory `json:"category,omitempty"`
	ErrorMessage  string               `json:"error_message,omitempty"`
	CorrelationID string               `json:"correlation_id,omitempty"`
	RequestID     string               `json:"request_id,omitempty"`
}

// EscalationPayload 是发给运营的结构化失败摘要。
// 一次编排最多渲染一份，分发到所有通道。
type EscalationPayload struct {
	OrderID           uint             `json:"order_id"`
	OrderNumber       string           `json:"order_number"`
	CustomerEmail     string           `json:"customer_email"`
	TotalProducts     int              `json:"total_products"`
	FulfilledProducts int              `json:"fulfilled_products"`
	FailedProducts    int              `json:"failed_products"`
	Items             []EscalationItem `json:"items"`
}

// EscalationChannel 是一个独立的通知通道（邮件、即时消息等）。
// 发送是尽力而为：实现方可以返回错误用于记录，
// 但调用方保证该错误不会传播回履约结果。
type EscalationChannel interface {
	Name() string
	Send(ctx context.Context, payload *EscalationPayload) error
}
