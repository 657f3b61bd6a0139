// internal/service/fulfillment/infrastructure/adapter/partnercenter_http_adapter.go
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/httpclient"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain/port"
)

// TokenSource 提供平台调用所需的 Bearer token。
// token 的获取与刷新由外部协作方负责，这里只消费。
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// PartnerCenterAdapter 实现了 port.CommercePlatform 接口。
// 平台把一次购买建模为 "建购物车 → 结账" 两步：
// 先用 catalog item id（product:sku:availability）创建只含一行的购物车，
// 再对购物车结账，从结账结果中取出订阅 id。
type PartnerCenterAdapter struct {
	client  *httpclient.Client
	baseURL string
	tokens  TokenSource
}

// NewPartnerCenterAdapter 创建一个新的平台适配器。
func NewPartnerCenterAdapter(client *httpclient.Client, baseURL string, tokens TokenSource) *PartnerCenterAdapter {
	return &PartnerCenterAdapter{client: client, baseURL: baseURL, tokens: tokens}
}

type cartLineItem struct {
	ID            int    `json:"id"`
	CatalogItemID string `json:"catalogItemId"`
	Quantity      int    `json:"quantity"`
	BillingCycle  string `json:"billingCycle"`
	TermDuration  string `json:"termDuration"`
}

type cartRequest struct {
	LineItems []cartLineItem `json:"lineItems"`
}

type cartResponse struct {
	ID string `json:"id"`
}

type checkoutResponse struct {
	Orders []struct {
		ID        string `json:"id"`
		LineItems []struct {
			SubscriptionID string `json:"subscriptionId"`
		} `json:"lineItems"`
	} `json:"orders"`
}

// platformError 是平台错误响应体的固定形状。
// code 在线上是数字，但文档里也出现过字符串，这里统一收成 json.Number。
type platformError struct {
	Code        json.Number `json:"code"`
	Description string      `json:"description"`
}

// CreateSubscription 执行一次完整的开通调用序列。
// req.AttemptID 作为 MS-RequestId 传给平台：同一尝试的重放带着同一个
// 请求 id，平台可以据此去重。
func (a *PartnerCenterAdapter) CreateSubscription(ctx context.Context, req *port.SubscriptionRequest) (*port.SubscriptionResult, error) {
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return nil, &port.RemoteError{
			Transport:   true,
			Description: fmt.Sprintf("failed to acquire platform token: %v", err),
			RequestID:   req.AttemptID,
		}
	}

	correlationID := uuid.New().String()
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)
	headers.Set("MS-RequestId", req.AttemptID)
	headers.Set("MS-CorrelationId", correlationID)

	// 1. 创建只含一行的购物车
	catalogItemID := fmt.Sprintf("%s:%s:%s", req.ProductRef, req.SkuRef, req.AvailabilityRef)
	body, _ := json.Marshal(cartRequest{
		LineItems: []cartLineItem{{
			ID:            0,
			CatalogItemID: catalogItemID,
			Quantity:      req.Quantity,
			BillingCycle:  req.Term.BillingCycle,
			TermDuration:  req.Term.TermDuration,
		}},
	})
	cartURL := fmt.Sprintf("%s/v1/customers/%s/carts", a.baseURL, req.AccountRef)
	resp, err := a.client.DoJSON(ctx, http.MethodPost, cartURL, headers, body)
	if err != nil {
		return nil, transportError(err, correlationID, req.AttemptID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, rejectionError(resp, correlationID, req.AttemptID)
	}

	var cart cartResponse
	if err := json.Unmarshal(resp.Body, &cart); err != nil || cart.ID == "" {
		return nil, malformedError(resp, correlationID, req.AttemptID, "cart response missing cart id")
	}

	// 2. 对购物车结账
	checkoutURL := fmt.Sprintf("%s/v1/customers/%s/carts/%s/checkout", a.baseURL, req.AccountRef, cart.ID)
	resp, err = a.client.DoJSON(ctx, http.MethodPost, checkoutURL, headers, nil)
	if err != nil {
		return nil, transportError(err, correlationID, req.AttemptID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, rejectionError(resp, correlationID, req.AttemptID)
	}

	var checkout checkoutResponse
	if err := json.Unmarshal(resp.Body, &checkout); err != nil {
		return nil, malformedError(resp, correlationID, req.AttemptID, "checkout response is not valid json")
	}
	subscriptionID := ""
	for _, order := range checkout.Orders {
		for _, line := range order.LineItems {
			if line.SubscriptionID != "" {
				subscriptionID = line.SubscriptionID
				break
			}
		}
	}
	if subscriptionID == "" {
		return nil, malformedError(resp, correlationID, req.AttemptID, "checkout response missing subscription id")
	}

	return &port.SubscriptionResult{
		SubscriptionID: subscriptionID,
		CartID:         cart.ID,
	}, nil
}

func transportError(err error, correlationID, requestID string) *port.RemoteError {
	return &port.RemoteError{
		Transport:     true,
		Description:   err.Error(),
		CorrelationID: correlationID,
		RequestID:     requestID,
	}
}

// rejectionError 解析平台的结构化错误响应；解析不动时退回原始 body。
func rejectionError(resp *httpclient.Response, correlationID, requestID string) *port.RemoteError {
	remoteErr := &port.RemoteError{
		HTTPStatus:    resp.StatusCode,
		CorrelationID: correlationID,
		RequestID:     requestID,
		RawResponse:   string(resp.Body),
	}
	// 平台在响应头里回传自己的诊断 id，优先采用
	if v := resp.Header.Get("MS-CorrelationId"); v != "" {
		remoteErr.CorrelationID = v
	}
	if v := resp.Header.Get("MS-RequestId"); v != "" {
		remoteErr.RequestID = v
	}

	var parsed platformError
	if err := json.Unmarshal(resp.Body, &parsed); err == nil && parsed.Description != "" {
		remoteErr.Code = parsed.Code.String()
		remoteErr.Description = parsed.Description
	} else {
		remoteErr.Description = fmt.Sprintf("HTTP Error: %d", resp.StatusCode)
	}
	return remoteErr
}

func malformedError(resp *httpclient.Response, correlationID, requestID, reason string) *port.RemoteError {
	return &port.RemoteError{
		HTTPStatus:    resp.StatusCode,
		Description:   reason,
		CorrelationID: correlationID,
		RequestID:     requestID,
		RawResponse:   string(resp.Body),
	}
}
