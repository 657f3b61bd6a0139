// internal/service/fulfillment/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/application"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain"
)

const serviceName = "fulfillment-service"

// FulfillmentHandler 封装了履约服务的 HTTP 处理器。
// 三个入口返回同一份结果契约，展示（表格、报表）完全是调用方的事。
type FulfillmentHandler struct {
	service *application.FulfillmentService
	retry   *application.RetryCoordinator
}

// NewFulfillmentHandler 创建一个新的 HTTP 处理器实例
func NewFulfillmentHandler(service *application.FulfillmentService, retry *application.RetryCoordinator) *FulfillmentHandler {
	return &FulfillmentHandler{service: service, retry: retry}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *FulfillmentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/fulfillment/process", h.processOrderHandler)
	mux.HandleFunc("/fulfillment/retry", h.retryOrderHandler)
	mux.HandleFunc("/fulfillment/retry_recent", h.retryRecentHandler)
}

func (h *FulfillmentHandler) processOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "api.ProcessOrder")
	defer span.End()

	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	result, err := h.service.ProcessOrder(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

func (h *FulfillmentHandler) retryOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "api.RetryOrder")
	defer span.End()

	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	result, err := h.retry.RetryOrder(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

func (h *FulfillmentHandler) retryRecentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "api.RetryRecentFailures")
	defer span.End()

	windowHours, err := strconv.Atoi(r.URL.Query().Get("window_hours"))
	if err != nil || windowHours <= 0 {
		windowHours = 24 // 默认扫描最近一天
	}

	result, err := h.retry.RetryRecentFailures(ctx, windowHours)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := r.URL.Query().Get("order_id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		http.Error(w, "order_id is required and must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrOrderNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
