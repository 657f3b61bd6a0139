package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/doarsal/readymarket-backend-sub003/internal/pkg/httpclient"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain/port"
)

type staticTokens string

func (t staticTokens) Token(context.Context) (string, error) { return string(t), nil }

type failingTokens struct{}

func (failingTokens) Token(context.Context) (string, error) {
	return "", errors.New("token file unreadable")
}

func newTestAdapter(baseURL string) *PartnerCenterAdapter {
	client := httpclient.NewClient(noop.NewTracerProvider().Tracer("test"))
	return NewPartnerCenterAdapter(client, baseURL, staticTokens("tok-123"))
}

func subscriptionRequest() *port.SubscriptionRequest {
	return &port.SubscriptionRequest{
		AccountRef:      "acct-1001",
		ProductRef:      "X12-34567",
		SkuRef:          "0001",
		AvailabilityRef: "DZH318Z0BPS6",
		Quantity:        3,
		Term:            port.TermParams{BillingCycle: "monthly", TermDuration: "P1Y"},
		AttemptID:       "attempt-1",
	}
}

func TestCreateSubscription_Success(t *testing.T) {
	var cartBody cartRequest
	var cartHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/customers/acct-1001/carts":
			cartHeaders = r.Header.Clone()
			require.NoError(t, json.NewDecoder(r.Body).Decode(&cartBody))
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(cartResponse{ID: "cart-777"})
		case "/v1/customers/acct-1001/carts/cart-777/checkout":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"orders":[{"id":"o1","lineItems":[{"subscriptionId":"sub-999"}]}]}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	result, err := newTestAdapter(server.URL).CreateSubscription(context.Background(), subscriptionRequest())
	require.NoError(t, err)
	assert.Equal(t, "sub-999", result.SubscriptionID)
	assert.Equal(t, "cart-777", result.CartID)

	// catalog item id 由 product:sku:availability 拼成
	require.Len(t, cartBody.LineItems, 1)
	line := cartBody.LineItems[0]
	assert.Equal(t, "X12-34567:0001:DZH318Z0BPS6", line.CatalogItemID)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, "monthly", line.BillingCycle)
	assert.Equal(t, "P1Y", line.TermDuration)

	// 幂等键作为请求 id 传给平台
	assert.Equal(t, "attempt-1", cartHeaders.Get("MS-RequestId"))
	assert.Equal(t, "Bearer tok-123", cartHeaders.Get("Authorization"))
	assert.NotEmpty(t, cartHeaders.Get("MS-CorrelationId"))
}

func TestCreateSubscription_StructuredRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("MS-CorrelationId", "corr-from-platform")
		w.Header().Set("MS-RequestId", "req-from-platform")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":800002,"description":"The CatalogItem Id is invalid."}`))
	}))
	defer server.Close()

	_, err := newTestAdapter(server.URL).CreateSubscription(context.Background(), subscriptionRequest())
	require.Error(t, err)

	var remoteErr *port.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.False(t, remoteErr.Transport)
	assert.Equal(t, http.StatusBadRequest, remoteErr.HTTPStatus)
	assert.Equal(t, "800002", remoteErr.Code)
	assert.Equal(t, "The CatalogItem Id is invalid.", remoteErr.Description)
	// 平台回传的诊断 id 优先于本地生成的
	assert.Equal(t, "corr-from-platform", remoteErr.CorrelationID)
	assert.Equal(t, "req-from-platform", remoteErr.RequestID)
	assert.Contains(t, remoteErr.RawResponse, "800002")
	assert.Contains(t, remoteErr.Error(), "CatalogItem")
}

func TestCreateSubscription_UnparseableErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("<html>gateway error</html>"))
	}))
	defer server.Close()

	_, err := newTestAdapter(server.URL).CreateSubscription(context.Background(), subscriptionRequest())
	var remoteErr *port.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusInternalServerError, remoteErr.HTTPStatus)
	assert.Equal(t, "HTTP Error: 500", remoteErr.Description)
	assert.Equal(t, "<html>gateway error</html>", remoteErr.RawResponse)
}

func TestCreateSubscription_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // 立即关掉，调用必然连接失败

	_, err := newTestAdapter(server.URL).CreateSubscription(context.Background(), subscriptionRequest())
	var remoteErr *port.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.True(t, remoteErr.Transport)
	assert.Zero(t, remoteErr.HTTPStatus)
	assert.NotEmpty(t, remoteErr.Description)
}

func TestCreateSubscription_MissingCartID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := newTestAdapter(server.URL).CreateSubscription(context.Background(), subscriptionRequest())
	var remoteErr *port.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Contains(t, remoteErr.Description, "missing cart id")
}

func TestCreateSubscription_CheckoutMissingSubscriptionID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/customers/acct-1001/carts" {
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(cartResponse{ID: "cart-1"})
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"orders":[]}`))
	}))
	defer server.Close()

	_, err := newTestAdapter(server.URL).CreateSubscription(context.Background(), subscriptionRequest())
	var remoteErr *port.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Contains(t, remoteErr.Description, "missing subscription id")
}

func TestCreateSubscription_TokenFailure(t *testing.T) {
	client := httpclient.NewClient(noop.NewTracerProvider().Tracer("test"))
	adapter := NewPartnerCenterAdapter(client, "http://unused", failingTokens{})

	_, err := adapter.CreateSubscription(context.Background(), subscriptionRequest())
	var remoteErr *port.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.True(t, remoteErr.Transport)
	assert.Contains(t, remoteErr.Description, "token")
}
