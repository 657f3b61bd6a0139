// internal/service/fulfillment/domain/port/commerce.go
package port

import (
	"context"
	"fmt"
)

// TermParams 是订阅的期限与计费参数，来自订单项的购买快照。
type TermParams struct {
	BillingCycle string // 例如 monthly / annual
	TermDuration string // ISO-8601 duration，例如 P1Y
}

// SubscriptionRequest 是一次远程开通的全部输入。
// AttemptID 是本次尝试的幂等键，会作为请求 ID 传给平台，
// 同一个键的重放可以在平台侧去重。
type SubscriptionRequest struct {
	AccountRef      string
	ProductRef      string
	SkuRef          string
	AvailabilityRef string
	Quantity        int
	Term            TermParams
	AttemptID       string
}

// SubscriptionResult 是开通成功后平台返回的标识。
type SubscriptionResult struct {
	SubscriptionID string
	CartID         string
}

// RemoteError 是平台调用失败的结构化描述。
// 传输层失败（超时、连接拒绝）没有 HTTP 状态码，此时 HTTPStatus 为 0、
// Transport 为 true。
type RemoteError struct {
	HTTPStatus    int
	Code          string
	Description   string
	CorrelationID string
	RequestID     string
	RawResponse   string
	Transport     bool
}

func (e *RemoteError) Error() string {
	if e.Transport {
		return fmt.Sprintf("transport error: %s", e.Description)
	}
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d [%s]: %s", e.HTTPStatus, e.Code, e.Description)
	}
	return fmt.Sprintf("HTTP %d: %s", e.HTTPStatus, e.Description)
}

// CommercePlatform 是上游商务平台的出站端口。
// 实现方负责把一次逻辑上的 "创建订阅" 映射为平台的实际调用序列。
// 失败时返回 *RemoteError。
type CommercePlatform interface {
	CreateSubscription(ctx context.Context, req *SubscriptionRequest) (*SubscriptionResult, error)
}
