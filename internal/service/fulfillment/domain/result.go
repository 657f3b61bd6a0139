// internal/service/fulfillment/domain/result.go
package domain

import "time"

// FailureKind 是单项失败的内部分类，决定错误如何被记录与上报。
// 它不参与控制流：无论哪一种，订单项都落在 failed，等待重试或人工介入。
type FailureKind string

const (
	// 前置条件不满足，未发起任何远程调用
	FailureValidation FailureKind = "validation"
	// 网络层失败（超时、连接拒绝）
	FailureTransport FailureKind = "transport"
	// 平台返回了结构化的 4xx/5xx 拒绝
	FailureRemoteRejection FailureKind = "remote_rejection"
	// 本地写库失败，仅对该项致命
	FailurePersistence FailureKind = "persistence"
	// 开通过程中的未预期异常（panic），由隔离边界兜住
	FailureInternal FailureKind = "internal"
)

// RemoteErrorDetails 承载上游平台返回的结构化错误信息。
// 字段按需填充：传输层错误没有 HTTPStatus，此时保持为 nil。
type RemoteErrorDetails struct {
	HTTPStatus    *int   `json:"http_status,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
	Description   string `json:"description,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
	RawResponse   string `json:"raw_response,omitempty"`
}

// ItemResult 是一次单项开通尝试的完整结果，仅在进程内传递，不落库。
// 由 Item Provisioner 产出，编排器和升级通知使用。
type ItemResult struct {
	ItemID       uint
	ProductID    string
	ProductTitle string
	Quantity     int

	Success              bool
	RemoteSubscriptionID string
	RemoteCartID         string

	FailureKind  FailureKind
	ErrorMessage string
	ErrorDetails *RemoteErrorDetails

	ProcessedAt time.Time
}

// FailedResult 构造一个失败结果，快照字段从订单项带过来。
func FailedResult(item *OrderItem, kind FailureKind, message string, details *RemoteErrorDetails) ItemResult {
	return ItemResult{
		ItemID:       item.ID,
		ProductID:    item.ProductID,
		ProductTitle: item.ProductTitle,
		Quantity:     item.Quantity,
		Success:      false,
		FailureKind:  kind,
		ErrorMessage: message,
		ErrorDetails: details,
		ProcessedAt:  time.Now(),
	}
}

// SuccessResult 构造一个成功结果。
func SuccessResult(item *OrderItem, subscriptionID, cartID string) ItemResult {
	return ItemResult{
		ItemID:               item.ID,
		ProductID:            item.ProductID,
		ProductTitle:         item.ProductTitle,
		Quantity:             item.Quantity,
		Success:              true,
		RemoteSubscriptionID: subscriptionID,
		RemoteCartID:         cartID,
		ProcessedAt:          time.Now(),
	}
}
