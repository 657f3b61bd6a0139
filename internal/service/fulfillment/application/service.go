// internal/service/fulfillment/application/service.go
package application

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/logger"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain/port"
)

// FulfillmentService 是履约编排器：挑选待处理的订单项，顺序驱动
// ItemProvisioner，聚合结果，持久化订单级状态，必要时触发升级通知。
//
// 订单项必须顺序处理：上游平台把一次购买建模为同一客户名下
// 增量构建的购物车，同一订单的调用交错会污染远端状态；
// 顺序执行也让每个错误能无歧义地归因到具体哪一次 HTTP 调用。
type FulfillmentService struct {
	orders      domain.OrderRepository
	provisioner *ItemProvisioner
	escalator   *Escalator
	locker      port.OrderLocker
	tracer      trace.Tracer
}

// NewFulfillmentService 创建编排器。所有依赖在构造时注入，运行期不读全局状态。
func NewFulfillmentService(orders domain.OrderRepository, provisioner *ItemProvisioner, escalator *Escalator, locker port.OrderLocker, tracer trace.Tracer) *FulfillmentService {
	return &FulfillmentService{
		orders:      orders,
		provisioner: provisioner,
		escalator:   escalator,
		locker:      locker,
		tracer:      tracer,
	}
}

// ProcessOrder 处理一张已支付订单的履约。
// 唯一的整单致命错误是订单不存在（domain.ErrOrderNotFound）；
// 任何单项失败都被隔离在循环内，不会中断其余订单项。
func (s *FulfillmentService) ProcessOrder(ctx context.Context, orderID uint) (*ProcessResult, error) {
	ctx, span := s.tracer.Start(ctx, "fulfillment.ProcessOrder")
	defer span.End()
	span.SetAttributes(attribute.Int("order.id", int(orderID)))

	// 按订单粒度持锁：并发的重试调用在这里串行化，
	// 防止两次运行同时挑中同一个失败项。
	lock, err := s.locker.Acquire(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to acquire order lock")
		return nil, fmt.Errorf("failed to acquire lock for order %d: %w", orderID, err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Uint("order_id", orderID).Msg("failed to release order lock")
		}
	}()

	// 持锁之后再加载，保证看到的是上一次运行提交后的状态
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order lookup failed")
		return nil, err
	}

	eligible := order.EligibleItems()
	logger.Ctx(ctx).Info().Uint("order_id", orderID).Str("order_number", order.OrderNumber).
		Int("eligible_items", len(eligible)).Int("total_items", len(order.Items)).
		Msg("starting fulfillment run")

	// 顺序处理，单项失败不允许逃出循环
	runResults := make([]domain.ItemResult, 0, len(eligible))
	for _, item := range eligible {
		runResults = append(runResults, s.provisionSafely(ctx, order, item))
	}

	// 聚合基于全部订单项，而不只是本次处理的子集
	order.DeriveFulfillment()
	if err := s.orders.UpdateStatus(ctx, order.ID, order.Status, order.FulfillmentStatus); err != nil {
		// 状态落库失败不推翻已经发生的单项结果，记录后继续返回
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).Uint("order_id", orderID).Msg("failed to persist derived order status")
	}
	ordersProcessedTotal.WithLabelValues(string(order.FulfillmentStatus)).Inc()

	// 只要本次运行之后仍有失败项，就升级一次；纯成功的运行不打扰运营
	if order.FailedCount() > 0 {
		s.escalator.Escalate(ctx, order, runResults)
	}

	result := buildProcessResult(order, runResults)
	span.SetAttributes(
		attribute.String("order.fulfillment_status", string(order.FulfillmentStatus)),
		attribute.Int("order.failed_products", result.FailedProducts),
	)
	logger.Ctx(ctx).Info().Uint("order_id", orderID).
		Str("fulfillment_status", string(order.FulfillmentStatus)).
		Int("processed_this_run", result.ProductsProcessedThisRun).
		Int("successful_this_run", result.ProductsSuccessfulThisRun).
		Msg("fulfillment run finished")
	return result, nil
}

// provisionSafely 是单项失败隔离边界：开通器本身从不返回 error，
// 这里再兜住 panic，保证一个订单项的任何异常都不会中断循环。
func (s *FulfillmentService) provisionSafely(ctx context.Context, order *domain.Order, item *domain.OrderItem) (res domain.ItemResult) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("unexpected panic while provisioning item %d: %v", item.ID, r)
			logger.Ctx(ctx).Error().Uint("item_id", item.ID).Str("panic", fmt.Sprint(r)).
				Msg("recovered from panic in item provisioning")
			item.MarkFailed(msg)
			if err := s.orders.UpdateItemFulfillment(ctx, item); err != nil {
				logger.Ctx(ctx).Error().Err(err).Uint("item_id", item.ID).Msg("failed to persist failed state after panic")
			}
			res = domain.FailedResult(item, domain.FailureInternal, msg, nil)
		}
	}()
	return s.provisioner.Provision(ctx, order, item)
}
