// internal/service/fulfillment/application/escalator.go
package application

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/logger"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain/port"
)

// Escalator 把履约失败摘要分发到若干独立通道（邮件、即时消息）。
// 投递是尽力而为：任何通道的失败只会被记录，
// 永远不会传播回编排器的返回值。
type Escalator struct {
	channels []port.EscalationChannel
	tracer   trace.Tracer
}

// NewEscalator 创建升级通知器。通道列表与各通道的收件人配置在构造时注入。
func NewEscalator(channels []port.EscalationChannel, tracer trace.Tracer) *Escalator {
	return &Escalator{channels: channels, tracer: tracer}
}

// Escalate 渲染一份结构化摘要并发往所有通道。每次编排最多调用一次。
func (e *Escalator) Escalate(ctx context.Context, order *domain.Order, runResults []domain.ItemResult) {
	ctx, span := e.tracer.Start(ctx, "fulfillment.Escalate")
	defer span.End()
	span.SetAttributes(attribute.Int("order.id", int(order.ID)))

	payload := buildEscalationPayload(order, runResults)

	for _, channel := range e.channels {
		e.sendIsolated(ctx, channel, payload)
	}
}

// sendIsolated 隔离单个通道的发送：一个通道挂了不影响另一个。
func (e *Escalator) sendIsolated(ctx context.Context, channel port.EscalationChannel, payload *port.EscalationPayload) {
	defer func() {
		if r := recover(); r != nil {
			escalationsTotal.WithLabelValues(channel.Name(), "panic").Inc()
			logger.Ctx(ctx).Error().Str("channel", channel.Name()).Str("panic", "recovered").
				Msg("escalation channel panicked")
		}
	}()

	if err := channel.Send(ctx, payload); err != nil {
		escalationsTotal.WithLabelValues(channel.Name(), "error").Inc()
		logger.Ctx(ctx).Error().Err(err).Str("channel", channel.Name()).Uint("order_id", payload.OrderID).
			Msg("escalation send failed")
		return
	}
	escalationsTotal.WithLabelValues(channel.Name(), "sent").Inc()
	logger.Ctx(ctx).Info().Str("channel", channel.Name()).Uint("order_id", payload.OrderID).
		Msg("escalation sent")
}

// buildEscalationPayload 装配完整的逐项明细：本次运行处理过的项
// 带上错误分类与平台诊断 ID，之前已成功的项作为成功行补齐。
func buildEscalationPayload(order *domain.Order, runResults []domain.ItemResult) *port.EscalationPayload {
	resultByItem := make(map[uint]domain.ItemResult, len(runResults))
	for _, res := range runResults {
		resultByItem[res.ItemID] = res
	}

	items := make([]port.EscalationItem, 0, len(order.Items))
	for _, item := range order.Items {
		row := port.EscalationItem{
			ProductID:    item.ProductID,
			ProductTitle: item.ProductTitle,
			Quantity:     item.Quantity,
		}
		if res, ok := resultByItem[item.ID]; ok {
			row.Success = res.Success
			if !res.Success {
				row.Category = domain.Classify(res.ErrorMessage)
				row.ErrorMessage = res.ErrorMessage
				if res.ErrorDetails != nil {
					row.CorrelationID = res.ErrorDetails.CorrelationID
					row.RequestID = res.ErrorDetails.RequestID
				}
			}
		} else {
			// 本次未处理的项只能是之前已经成功的
			row.Success = item.FulfillmentStatus == domain.ItemStatusFulfilled
			if !row.Success && item.FulfillmentError != "" {
				row.Category = domain.Classify(item.FulfillmentError)
				row.ErrorMessage = item.FulfillmentError
			}
		}
		items = append(items, row)
	}

	return &port.EscalationPayload{
		OrderID:           order.ID,
		OrderNumber:       order.OrderNumber,
		CustomerEmail:     order.CustomerEmail,
		TotalProducts:     len(order.Items),
		FulfilledProducts: order.FulfilledCount(),
		FailedProducts:    order.FailedCount(),
		Items:             items,
	}
}
