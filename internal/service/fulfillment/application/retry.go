// internal/service/fulfillment/application/retry.go
package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/logger"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain"
)

// RetryCoordinator 提供两个重入口：单订单重试和时间窗口批量重试。
// 重试的安全性来自 "重置后再编排" 的组合：编排器的挑选策略永远
// 跳过 fulfilled 的项，所以重试只可能影响之前失败（或卡住）的项，
// 绝不会重复扣费或重复开通已成功的订阅。
type RetryCoordinator struct {
	orders      domain.OrderRepository
	service     *FulfillmentService
	tracer      trace.Tracer
	concurrency int
}

// NewRetryCoordinator 创建重试协调器。concurrency 约束批量重试时
// 同时处理的订单数；单个订单内部始终是顺序的。
func NewRetryCoordinator(orders domain.OrderRepository, service *FulfillmentService, tracer trace.Tracer, concurrency int) *RetryCoordinator {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &RetryCoordinator{
		orders:      orders,
		service:     service,
		tracer:      tracer,
		concurrency: concurrency,
	}
}

// RetryOrder 把一张订单的全部失败项重置回 pending，然后重新编排。
func (c *RetryCoordinator) RetryOrder(ctx context.Context, orderID uint) (*ProcessResult, error) {
	ctx, span := c.tracer.Start(ctx, "fulfillment.RetryOrder")
	defer span.End()
	span.SetAttributes(attribute.Int("order.id", int(orderID)))

	failedItems, err := c.orders.FindFailedItems(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to load failed items")
	}

	for _, item := range failedItems {
		if err := item.ResetForRetry(); err != nil {
			// 并发窗口里状态可能已经变了，跳过即可
			logger.Ctx(ctx).Warn().Uint("item_id", item.ID).Str("status", string(item.FulfillmentStatus)).
				Msg("item no longer failed, skipping reset")
			continue
		}
		if err := c.orders.UpdateItemFulfillment(ctx, item); err != nil {
			span.RecordError(err)
			return nil, errors.Wrapf(err, "failed to reset item %d", item.ID)
		}
	}
	span.SetAttributes(attribute.Int("retry.reset_items", len(failedItems)))
	logger.Ctx(ctx).Info().Uint("order_id", orderID).Int("reset_items", len(failedItems)).
		Msg("failed items reset, reprocessing order")

	return c.service.ProcessOrder(ctx, orderID)
}

// RetryRecentFailures 找出窗口期内失败的所有订单项，按订单分组后
// 逐单重试。订单之间相互独立，按订单粒度用 errgroup 并发推进，
// 单个订单的失败不会中止整个扫描。
func (c *RetryCoordinator) RetryRecentFailures(ctx context.Context, windowHours int) (*SweepResult, error) {
	ctx, span := c.tracer.Start(ctx, "fulfillment.RetryRecentFailures")
	defer span.End()
	span.SetAttributes(attribute.Int("retry.window_hours", windowHours))

	since := time.Now().Add(-time.Duration(windowHours) * time.Hour)
	failedItems, err := c.orders.FindItemsFailedSince(ctx, since)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to scan recent failures")
	}

	// 按订单分组
	seen := make(map[uint]bool)
	var orderIDs []uint
	for _, item := range failedItems {
		if !seen[item.OrderID] {
			seen[item.OrderID] = true
			orderIDs = append(orderIDs, item.OrderID)
		}
	}
	sort.Slice(orderIDs, func(i, j int) bool { return orderIDs[i] < orderIDs[j] })
	span.SetAttributes(attribute.Int("retry.affected_orders", len(orderIDs)))
	logger.Ctx(ctx).Info().Int("affected_orders", len(orderIDs)).Int("window_hours", windowHours).
		Msg("starting retry sweep")

	var mu sync.Mutex
	results := make(map[uint]*ProcessResult, len(orderIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, orderID := range orderIDs {
		orderID := orderID
		g.Go(func() error {
			res, err := c.RetryOrder(gctx, orderID)
			if err != nil {
				// 单个订单失败只记录，不取消其它订单的重试
				logger.Ctx(gctx).Error().Err(err).Uint("order_id", orderID).Msg("retry failed for order")
				res = &ProcessResult{
					Success: false,
					Message: err.Error(),
					OrderID: orderID,
				}
			}
			mu.Lock()
			results[orderID] = res
			mu.Unlock()
			return nil
		})
	}
	// g.Go 的闭包永远返回 nil，Wait 只用来等待全部完成
	_ = g.Wait()

	sweep := &SweepResult{OrdersRetried: len(orderIDs)}
	for _, orderID := range orderIDs {
		sweep.Orders = append(sweep.Orders, results[orderID])
	}
	return sweep, nil
}
