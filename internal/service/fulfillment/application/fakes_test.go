package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain"
	"github.com/doarsal/readymarket-backend-sub003/internal/service/fulfillment/domain/port"
)

// 测试替身：只实现编排所需的最小行为，全部存内存。

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[uint]*domain.Order

	failUpdateItemFor map[uint]error // item id → 落库错误
	failUpdateStatus  error
	itemUpdates       int
	statusUpdates     int
}

func newFakeOrderRepo(orders ...*domain.Order) *fakeOrderRepo {
	repo := &fakeOrderRepo{
		orders:            make(map[uint]*domain.Order),
		failUpdateItemFor: make(map[uint]error),
	}
	for _, o := range orders {
		repo.orders[o.ID] = o
	}
	return repo
}

func (r *fakeOrderRepo) FindByID(_ context.Context, orderID uint) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, orderID uint, status domain.OrderStatus, fulfillment domain.FulfillmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdateStatus != nil {
		return r.failUpdateStatus
	}
	r.statusUpdates++
	if order, ok := r.orders[orderID]; ok {
		order.Status = status
		order.FulfillmentStatus = fulfillment
	}
	return nil
}

func (r *fakeOrderRepo) UpdateItemFulfillment(_ context.Context, item *domain.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failUpdateItemFor[item.ID]; ok {
		return err
	}
	r.itemUpdates++
	return nil
}

func (r *fakeOrderRepo) FindFailedItems(_ context.Context, orderID uint) ([]*domain.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return nil, nil
	}
	var failed []*domain.OrderItem
	for _, item := range order.Items {
		if item.FulfillmentStatus == domain.ItemStatusFailed {
			failed = append(failed, item)
		}
	}
	return failed, nil
}

func (r *fakeOrderRepo) FindItemsFailedSince(_ context.Context, _ time.Time) ([]*domain.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var failed []*domain.OrderItem
	for _, order := range r.orders {
		for _, item := range order.Items {
			if item.FulfillmentStatus == domain.ItemStatusFailed {
				failed = append(failed, item)
			}
		}
	}
	return failed, nil
}

type fakeSubscriptionRepo struct {
	mu       sync.Mutex
	created  []*domain.Subscription
	existing map[uint]bool
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{existing: make(map[uint]bool)}
}

func (r *fakeSubscriptionRepo) Create(_ context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.existing[sub.OrderItemID] {
		return domain.ErrSubscriptionExists
	}
	r.existing[sub.OrderItemID] = true
	r.created = append(r.created, sub)
	return nil
}

func (r *fakeSubscriptionRepo) ExistsForItem(_ context.Context, orderItemID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.existing[orderItemID], nil
}

type fakeAvailabilityRepo struct {
	records map[string]*domain.Availability
}

func newFakeAvailabilityRepo() *fakeAvailabilityRepo {
	return &fakeAvailabilityRepo{records: make(map[string]*domain.Availability)}
}

func (r *fakeAvailabilityRepo) allow(productID, skuID string) {
	now := time.Now()
	r.records[productID+":"+skuID] = &domain.Availability{
		ProductID:            productID,
		SkuID:                skuID,
		RemoteAvailabilityID: "avail-" + productID,
		Available:            true,
		CheckedAt:            &now,
	}
}

func (r *fakeAvailabilityRepo) FindForSku(_ context.Context, productID, skuID string) (*domain.Availability, error) {
	return r.records[productID+":"+skuID], nil
}

// platformOutcome 按 product id 预设远程开通的结局。
type platformOutcome struct {
	result *port.SubscriptionResult
	err    error
}

type fakePlatform struct {
	mu       sync.Mutex
	outcomes map[string]platformOutcome
	calls    []*port.SubscriptionRequest
	panicFor string // 对该 product id 的调用直接 panic
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{outcomes: make(map[string]platformOutcome)}
}

func (p *fakePlatform) succeed(productID, subscriptionID string) {
	p.outcomes[productID] = platformOutcome{result: &port.SubscriptionResult{
		SubscriptionID: subscriptionID,
		CartID:         "cart-" + productID,
	}}
}

func (p *fakePlatform) reject(productID string, err *port.RemoteError) {
	p.outcomes[productID] = platformOutcome{err: err}
}

func (p *fakePlatform) CreateSubscription(_ context.Context, req *port.SubscriptionRequest) (*port.SubscriptionResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()
	if req.ProductRef == p.panicFor {
		panic("platform adapter blew up")
	}
	outcome, ok := p.outcomes[req.ProductRef]
	if !ok {
		return nil, &port.RemoteError{Transport: true, Description: "no outcome configured for " + req.ProductRef}
	}
	if outcome.err != nil {
		return nil, outcome.err
	}
	return outcome.result, nil
}

func (p *fakePlatform) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fakeAttempts struct {
	mu       sync.Mutex
	next     int
	inFlight map[string]string
	beginErr error
	finished int
}

func newFakeAttempts() *fakeAttempts {
	return &fakeAttempts{inFlight: make(map[string]string)}
}

func (a *fakeAttempts) Begin(_ context.Context, orderID, itemID uint) (string, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.beginErr != nil {
		return "", false, a.beginErr
	}
	key := fmt.Sprintf("%d:%d", orderID, itemID)
	if id, ok := a.inFlight[key]; ok {
		return id, true, nil
	}
	a.next++
	id := fmt.Sprintf("attempt-%d", a.next)
	a.inFlight[key] = id
	return id, false, nil
}

func (a *fakeAttempts) Finish(_ context.Context, orderID, itemID uint) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inFlight, fmt.Sprintf("%d:%d", orderID, itemID))
	a.finished++
	return nil
}

type fakeLock struct {
	released int
}

func (l *fakeLock) Release() error {
	l.released++
	return nil
}

type fakeLocker struct {
	mu         sync.Mutex
	acquireErr error
	acquired   int
	lock       *fakeLock
}

func (l *fakeLocker) Acquire(_ context.Context, _ uint) (port.OrderLock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.acquireErr != nil {
		return nil, l.acquireErr
	}
	l.acquired++
	l.lock = &fakeLock{}
	return l.lock, nil
}

type fakeChannel struct {
	mu       sync.Mutex
	name     string
	sendErr  error
	panics   bool
	payloads []*port.EscalationPayload
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(_ context.Context, payload *port.EscalationPayload) error {
	if c.panics {
		panic("channel exploded")
	}
	c.mu.Lock()
	c.payloads = append(c.payloads, payload)
	c.mu.Unlock()
	return c.sendErr
}

func (c *fakeChannel) sent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

// testEnv 把全套替身和被测对象装配到一起。
type testEnv struct {
	orders       *fakeOrderRepo
	subscription *fakeSubscriptionRepo
	availability *fakeAvailabilityRepo
	platform     *fakePlatform
	attempts     *fakeAttempts
	locker       *fakeLocker
	channel      *fakeChannel
	service      *FulfillmentService
	retry        *RetryCoordinator
}

func newTestEnv(orders ...*domain.Order) *testEnv {
	tracer := noop.NewTracerProvider().Tracer("test")
	env := &testEnv{
		orders:       newFakeOrderRepo(orders...),
		subscription: newFakeSubscriptionRepo(),
		availability: newFakeAvailabilityRepo(),
		platform:     newFakePlatform(),
		attempts:     newFakeAttempts(),
		locker:       &fakeLocker{},
		channel:      &fakeChannel{name: "test"},
	}
	provisioner := NewItemProvisioner(env.orders, env.subscription, env.availability, env.platform, env.attempts, tracer, 5*time.Second)
	escalator := NewEscalator([]port.EscalationChannel{env.channel}, tracer)
	env.service = NewFulfillmentService(env.orders, provisioner, escalator, env.locker, tracer)
	env.retry = NewRetryCoordinator(env.orders, env.service, tracer, 2)
	return env
}

// rejection 构造一个平台侧 400 拒绝。
func rejection(code, description string) *port.RemoteError {
	return &port.RemoteError{
		HTTPStatus:    400,
		Code:          code,
		Description:   description,
		CorrelationID: "corr-test",
		RequestID:     "req-test",
	}
}

// twoItemOrder 构造一张含两行的标准测试订单。
func twoItemOrder() *domain.Order {
	return &domain.Order{
		ID:              42,
		OrderNumber:     "ORD-2026-0042",
		Status:          domain.OrderStatusProcessing,
		CustomerID:      7,
		CustomerEmail:   "buyer@example.com",
		RemoteAccountID: "acct-1001",
		Items: []*domain.OrderItem{
			{ID: 1, OrderID: 42, ProductID: "prod-a", SkuID: "0001", BillingCycle: "monthly", TermDuration: "P1Y", ProductTitle: "Product A", Quantity: 2, FulfillmentStatus: domain.ItemStatusPending},
			{ID: 2, OrderID: 42, ProductID: "prod-b", SkuID: "0002", BillingCycle: "annual", TermDuration: "P1Y", ProductTitle: "Product B", Quantity: 1, FulfillmentStatus: domain.ItemStatusPending},
		},
	}
}
