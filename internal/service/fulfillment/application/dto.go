// internal/service/fulfillment/application/dto.go
package application

import (
	"fmt"
	"time"

	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain"
)

// ProductDetail 是返回给调用方的单个订单项结果。
type ProductDetail struct {
	ProductID          string                     `json:"product_id"`
	ProductTitle       string                     `json:"product_title"`
	Quantity           int                        `json:"quantity"`
	Status             string                     `json:"status"` // success | failed
	ProcessedAt        time.Time                  `json:"processed_at"`
	SubscriptionID     string                     `json:"subscription_id,omitempty"`
	RemoteCartID       string                     `json:"remote_cart_id,omitempty"`
	ErrorMessage       string                     `json:"error_message,omitempty"`
	ErrorCategory      domain.ErrorCategory       `json:"error_category,omitempty"`
	RemoteErrorDetails *domain.RemoteErrorDetails `json:"remote_error_details,omitempty"`
}

// ProcessResult 是三个入口（处理、单单重试、批量重试中的每一单）
// 共用的结果契约。表格、报表等展示完全是调用方的事。
type ProcessResult struct {
	Success                   bool                     `json:"success"`
	Message                   string                   `json:"message"`
	OrderID                   uint                     `json:"order_id"`
	TotalProducts             int                      `json:"total_products"`
	SuccessfulProducts        int                      `json:"successful_products"`
	FailedProducts            int                      `json:"failed_products"`
	ProductsProcessedThisRun  int                      `json:"products_processed_this_run"`
	ProductsSuccessfulThisRun int                      `json:"products_successful_this_run"`
	OrderStatus               domain.OrderStatus       `json:"order_status"`
	FulfillmentStatus         domain.FulfillmentStatus `json:"fulfillment_status"`
	ProductDetails            []ProductDetail          `json:"product_details"`
}

// SweepResult 是一次时间窗口批量重试的汇总。
type SweepResult struct {
	OrdersRetried int              `json:"orders_retried"`
	Orders        []*ProcessResult `json:"orders"`
}

// buildProcessResult 把编排后的订单状态与本次运行的逐项结果装配为结果契约。
// 总量统计基于订单的全部订单项，this_run 计数只覆盖本次被处理的子集。
func buildProcessResult(order *domain.Order, runResults []domain.ItemResult) *ProcessResult {
	successfulThisRun := 0
	details := make([]ProductDetail, 0, len(runResults))
	for _, res := range runResults {
		detail := ProductDetail{
			ProductID:    res.ProductID,
			ProductTitle: res.ProductTitle,
			Quantity:     res.Quantity,
			ProcessedAt:  res.ProcessedAt,
		}
		if res.Success {
			successfulThisRun++
			detail.Status = "success"
			detail.SubscriptionID = res.RemoteSubscriptionID
			detail.RemoteCartID = res.RemoteCartID
		} else {
			detail.Status = "failed"
			detail.ErrorMessage = res.ErrorMessage
			detail.ErrorCategory = domain.Classify(res.ErrorMessage)
			detail.RemoteErrorDetails = res.ErrorDetails
		}
		details = append(details, detail)
	}

	failed := order.FailedCount()
	result := &ProcessResult{
		Success:                   failed == 0,
		OrderID:                   order.ID,
		TotalProducts:             len(order.Items),
		SuccessfulProducts:        order.FulfilledCount(),
		FailedProducts:            failed,
		ProductsProcessedThisRun:  len(runResults),
		ProductsSuccessfulThisRun: successfulThisRun,
		OrderStatus:               order.Status,
		FulfillmentStatus:         order.FulfillmentStatus,
		ProductDetails:            details,
	}

	switch {
	case len(runResults) == 0:
		result.Message = fmt.Sprintf("order %s: nothing to process", order.OrderNumber)
	case failed == 0:
		result.Message = fmt.Sprintf("order %s: all %d products fulfilled", order.OrderNumber, len(order.Items))
	default:
		result.Message = fmt.Sprintf("order %s: %d of %d products failed", order.OrderNumber, failed, len(order.Items))
	}
	return result
}
