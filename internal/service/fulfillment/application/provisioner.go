// internal/service/fulfillment/application/provisioner.go
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/logger"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain/port"
)

// ItemProvisioner 负责单个订单项的远程开通。
// 它从不向编排器返回 Go error：所有失败都被捕获进 ItemResult
// 和订单项的持久化状态里。组件内部不做任何重试。
type ItemProvisioner struct {
	orders       domain.OrderRepository
	subscription domain.SubscriptionRepository
	availability domain.AvailabilityRepository
	platform     port.CommercePlatform
	attempts     port.AttemptRegistry
	tracer       trace.Tracer
	callTimeout  time.Duration
}

// NewItemProvisioner 创建一个新的开通器。callTimeout 约束单次远程调用。
func NewItemProvisioner(orders domain.OrderRepository, subscription domain.SubscriptionRepository, availability domain.AvailabilityRepository, platform port.CommercePlatform, attempts port.AttemptRegistry, tracer trace.Tracer, callTimeout time.Duration) *ItemProvisioner {
	return &ItemProvisioner{
		orders:       orders,
		subscription: subscription,
		availability: availability,
		platform:     platform,
		attempts:     attempts,
		tracer:       tracer,
		callTimeout:  callTimeout,
	}
}

// Provision 执行一次完整的单项开通，每一步都是一个持久化检查点。
func (p *ItemProvisioner) Provision(ctx context.Context, order *domain.Order, item *domain.OrderItem) domain.ItemResult {
	ctx, span := p.tracer.Start(ctx, "fulfillment.ProvisionItem")
	defer span.End()
	span.SetAttributes(
		attribute.Int("order.id", int(order.ID)),
		attribute.Int("order.item_id", int(item.ID)),
		attribute.String("product.id", item.ProductID),
		attribute.String("product.sku", item.SkuID),
	)

	// 1. 在任何远程调用之前把 processing 落库。
	// 如果进程在远程调用中途崩溃，这条记录就是可恢复的现场。
	if err := item.MarkProcessing(time.Now()); err != nil {
		return p.fail(ctx, span, item, domain.FailureValidation,
			fmt.Sprintf("item %d is in state %s and cannot be provisioned", item.ID, item.FulfillmentStatus), nil)
	}
	if err := p.orders.UpdateItemFulfillment(ctx, item); err != nil {
		return p.fail(ctx, span, item, domain.FailurePersistence,
			errors.Wrap(err, "failed to persist processing state").Error(), nil)
	}

	// 2. 可售性前置条件：没检查过或不可售都直接失败，不碰远程平台。
	avail, err := p.availability.FindForSku(ctx, item.ProductID, item.SkuID)
	if err != nil {
		return p.fail(ctx, span, item, domain.FailurePersistence,
			errors.Wrap(err, "failed to read availability").Error(), nil)
	}
	if !avail.Purchasable() {
		return p.fail(ctx, span, item, domain.FailureValidation,
			fmt.Sprintf("availability not verified or product unavailable for %s:%s", item.ProductID, item.SkuID), nil)
	}

	// 3. 先行登记幂等键，再发起远程开通。
	// 登记失败不阻塞开通：退化为一次性的随机 attempt id。
	attemptID, replay, err := p.attempts.Begin(ctx, order.ID, item.ID)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Uint("item_id", item.ID).Msg("attempt registry unavailable, using one-shot attempt id")
		attemptID = uuid.New().String()
	}
	if replay {
		span.AddEvent("replaying previous provisioning attempt")
		logger.Ctx(ctx).Info().Uint("item_id", item.ID).Str("attempt_id", attemptID).
			Msg("item has an in-flight attempt, resubmitting with same attempt id")
	}

	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	created, err := p.platform.CreateSubscription(callCtx, &port.SubscriptionRequest{
		AccountRef:      order.RemoteAccountID,
		ProductRef:      item.ProductID,
		SkuRef:          item.SkuID,
		AvailabilityRef: avail.RemoteAvailabilityID,
		Quantity:        item.Quantity,
		Term: port.TermParams{
			BillingCycle: item.BillingCycle,
			TermDuration: item.TermDuration,
		},
		AttemptID: attemptID,
	})
	if err != nil {
		kind, details := remoteFailure(err)
		return p.fail(ctx, span, item, kind, err.Error(), details)
	}

	// 4. 成功：创建本地订阅记录并把 fulfilled 落库。
	// ExistsForItem 是幂等兜底，一个订单项永远只有一条订阅。
	exists, err := p.subscription.ExistsForItem(ctx, item.ID)
	if err != nil {
		return p.fail(ctx, span, item, domain.FailurePersistence,
			errors.Wrap(err, "failed to check existing subscription").Error(), nil)
	}
	if !exists {
		sub := &domain.Subscription{
			OrderID:              order.ID,
			OrderItemID:          item.ID,
			RemoteAccountID:      order.RemoteAccountID,
			ProductID:            item.ProductID,
			SkuID:                item.SkuID,
			RemoteSubscriptionID: created.SubscriptionID,
			Quantity:             item.Quantity,
			Price:                item.LineTotal,
		}
		if err := p.subscription.Create(ctx, sub); err != nil {
			return p.fail(ctx, span, item, domain.FailurePersistence,
				errors.Wrap(err, "subscription created remotely but local record failed").Error(), nil)
		}
	}

	if err := item.MarkFulfilled(created.SubscriptionID, time.Now()); err != nil {
		return p.fail(ctx, span, item, domain.FailurePersistence, err.Error(), nil)
	}
	if err := p.orders.UpdateItemFulfillment(ctx, item); err != nil {
		return p.fail(ctx, span, item, domain.FailurePersistence,
			errors.Wrap(err, "failed to persist fulfilled state").Error(), nil)
	}

	if err := p.attempts.Finish(ctx, order.ID, item.ID); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Uint("item_id", item.ID).Msg("failed to clear attempt key")
	}

	span.AddEvent("subscription provisioned")
	itemsProvisionedTotal.WithLabelValues("success").Inc()
	logger.Ctx(ctx).Info().Uint("item_id", item.ID).Str("subscription_id", created.SubscriptionID).
		Msg("order item fulfilled")
	return domain.SuccessResult(item, created.SubscriptionID, created.CartID)
}

// fail 把失败写进订单项并构造失败结果。落库是尽力而为：
// 这里再失败也只能记日志，错误信息仍然会出现在返回的结果里。
func (p *ItemProvisioner) fail(ctx context.Context, span trace.Span, item *domain.OrderItem, kind domain.FailureKind, message string, details *domain.RemoteErrorDetails) domain.ItemResult {
	span.SetStatus(codes.Error, message)
	item.MarkFailed(message)
	if err := p.orders.UpdateItemFulfillment(ctx, item); err != nil {
		logger.Ctx(ctx).Error().Err(err).Uint("item_id", item.ID).Msg("failed to persist failed state")
	}
	itemsProvisionedTotal.WithLabelValues("failed").Inc()
	logger.Ctx(ctx).Error().Uint("item_id", item.ID).Str("kind", string(kind)).Str("error", message).
		Msg("order item provisioning failed")
	return domain.FailedResult(item, kind, message, details)
}

// remoteFailure 把平台层错误映射为失败分类与结构化细节。
// 传输层错误没有 HTTP 状态码，细节中相应字段留空。
func remoteFailure(err error) (domain.FailureKind, *domain.RemoteErrorDetails) {
	var remoteErr *port.RemoteError
	if !errors.As(err, &remoteErr) {
		// context 超时等未包装的传输层错误
		return domain.FailureTransport, &domain.RemoteErrorDetails{Description: err.Error()}
	}

	details := &domain.RemoteErrorDetails{
		ErrorCode:     remoteErr.Code,
		Description:   remoteErr.Description,
		CorrelationID: remoteErr.CorrelationID,
		RequestID:     remoteErr.RequestID,
		RawResponse:   remoteErr.RawResponse,
	}
	if remoteErr.Transport {
		return domain.FailureTransport, details
	}
	status := remoteErr.HTTPStatus
	details.HTTPStatus = &status
	return domain.FailureRemoteRejection, details
}
