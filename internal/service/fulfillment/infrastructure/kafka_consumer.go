// internal/service/fulfillment/infrastructure/kafka_consumer.go
package infrastructure

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/logger"
	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/mq"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/application"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain"
)

// PaidOrderConsumerAdapter 是一个驱动适配器：监听支付完成事件并驱动履约编排。
type PaidOrderConsumerAdapter struct {
	reader  *kafka.Reader
	service *application.FulfillmentService
	wg      sync.WaitGroup
	stopped atomic.Bool
}

// NewPaidOrderConsumerAdapter 创建一个新的Kafka消费者适配器。
func NewPaidOrderConsumerAdapter(reader *kafka.Reader, service *application.FulfillmentService) *PaidOrderConsumerAdapter {
	return &PaidOrderConsumerAdapter{
		reader:  reader,
		service: service,
	}
}

// Start 开始监听Kafka主题。这是一个长期运行的方法。
func (a *PaidOrderConsumerAdapter) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", a.reader.Config().Topic).Msg("paid-order consumer started")
		for {
			if a.stopped.Load() {
				return
			}
			// 使用FetchMessage而不是ReadMessage，以便更好地控制提交时机
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Msg("paid-order consumer shutting down")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Msg("could not read message, retrying")
				time.Sleep(1 * time.Second) // 避免快速失败循环
				continue
			}

			a.processMessage(ctx, msg)

			// 无论处理结果如何都提交 Offset：失败的订单项已经落库为 failed，
			// 由重试协调器接管，消息层不做重放
			if err := a.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("failed to commit messages")
			}
		}
	}()
}

// Stop 优雅地停止消费者。
func (a *PaidOrderConsumerAdapter) Stop() {
	a.stopped.Store(true)
	a.reader.Close()
	a.wg.Wait()
	logger.Ctx(context.Background()).Info().Msg("paid-order consumer stopped")
}

// processMessage 反序列化事件、重建追踪上下文并调用编排器。
func (a *PaidOrderConsumerAdapter) processMessage(parentCtx context.Context, msg kafka.Message) {
	var event domain.OrderPaidEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Ctx(parentCtx).Error().Err(err).Msg("failed to unmarshal paid-order event, message skipped")
		return
	}

	ctx := mq.ExtractTraceContext(parentCtx, msg.Headers)

	result, err := a.service.ProcessOrder(ctx, event.OrderID)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Uint("order_id", event.OrderID).
			Msg("failed to process paid order")
		return
	}
	logger.Ctx(ctx).Info().Uint("order_id", event.OrderID).
		Str("fulfillment_status", string(result.FulfillmentStatus)).
		Msg("paid order processed")
}
