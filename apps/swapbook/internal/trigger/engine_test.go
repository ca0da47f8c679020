package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"swapbook/apps/swapbook/internal/model"
)

// fakeConditionalStore mirrors the claim semantics of the real store: the
// pending -> triggered transition succeeds for exactly one caller.
type fakeConditionalStore struct {
	mu        sync.Mutex
	orders    map[string]*model.ConditionalOrder
	resulting map[string]string
}

func newFakeConditionalStore(orders ...model.ConditionalOrder) *fakeConditionalStore {
	store := &fakeConditionalStore{
		orders:    make(map[string]*model.ConditionalOrder),
		resulting: make(map[string]string),
	}
	for i := range orders {
		co := orders[i]
		store.orders[co.ID] = &co
	}
	return store
}

func (f *fakeConditionalStore) GetPendingConditionalOrders(network string, now time.Time) ([]model.ConditionalOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ConditionalOrder
	for _, co := range f.orders {
		if co.Network != network || co.Status != model.ConditionalStatusPending {
			continue
		}
		if co.Expiration != nil && *co.Expiration <= now.Unix() {
			continue
		}
		out = append(out, *co)
	}
	return out, nil
}

func (f *fakeConditionalStore) ClaimTrigger(id, network string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	co, ok := f.orders[id]
	if !ok || co.Network != network || co.Status != model.ConditionalStatusPending {
		return false, nil
	}
	co.Status = model.ConditionalStatusTriggered
	return true, nil
}

func (f *fakeConditionalStore) SetResultingOrderID(id, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resulting[id] = orderID
	return nil
}

func (f *fakeConditionalStore) status(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id].Status
}

type fakeOrderStore struct {
	mu      sync.Mutex
	created []model.Order
	failErr error
}

func (f *fakeOrderStore) CreateOrder(order model.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.created = append(f.created, order)
	return nil
}

func (f *fakeOrderStore) all() []model.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Order(nil), f.created...)
}

type staticPrices map[string]float64

func (s staticPrices) LatestPrices(network string) (map[string]float64, error) {
	return s, nil
}

func pendingOrder(id, triggerType string, triggerPrice float64) model.ConditionalOrder {
	return model.ConditionalOrder{
		ID:           id,
		Network:      "base",
		Maker:        "0xAbCd000000000000000000000000000000000001",
		BaseToken:    "0xbase",
		QuoteToken:   "0xquote",
		Pair:         model.PairKey("0xbase", "0xquote"),
		TriggerType:  triggerType,
		TriggerPrice: triggerPrice,
		TokenIn:      "0xToken000000000000000000000000000000000In",
		TokenOut:     "0xToken00000000000000000000000000000000Out",
		AmountIn:     "1000000000000000000",
		AmountOutMin: "950000000000000000",
		Nonce:        7,
		Receiver:     "0xAbCd000000000000000000000000000000000001",
		Salt:         "12345",
		Signature:    "0xsig",
		Status:       model.ConditionalStatusPending,
	}
}

func TestShouldTrigger(t *testing.T) {
	tests := []struct {
		name         string
		triggerType  string
		price        float64
		triggerPrice float64
		fired        bool
		known        bool
	}{
		{"stop loss fires below", model.TriggerTypeStopLoss, 95, 100, true, true},
		{"stop loss fires at equality", model.TriggerTypeStopLoss, 100, 100, true, true},
		{"stop loss holds above", model.TriggerTypeStopLoss, 101, 100, false, true},
		{"take profit fires above", model.TriggerTypeTakeProfit, 105, 100, true, true},
		{"take profit fires at equality", model.TriggerTypeTakeProfit, 100, 100, true, true},
		{"take profit holds below", model.TriggerTypeTakeProfit, 99, 100, false, true},
		{"unknown type never fires", "trailing_stop", 0, 100, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fired, known := ShouldTrigger(tt.triggerType, tt.price, tt.triggerPrice)
			assert.Equal(t, tt.fired, fired)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestDeriveOrderIDIsDeterministic(t *testing.T) {
	a := DeriveOrderID("base", "0xAbCd", 7, "0xIn", "0xOut", "42")
	b := DeriveOrderID("base", "0xabcd", 7, "0xin", "0xout", "42")
	assert.Equal(t, a, b, "address casing must not change the id")

	c := DeriveOrderID("base", "0xAbCd", 8, "0xIn", "0xOut", "42")
	assert.NotEqual(t, a, c, "a different nonce must change the id")

	d := DeriveOrderID("arbitrum", "0xAbCd", 7, "0xIn", "0xOut", "42")
	assert.NotEqual(t, a, d, "a different network must change the id")
}

func TestStopLossTriggersAndCreatesOrder(t *testing.T) {
	co := pendingOrder("co-1", model.TriggerTypeStopLoss, 100)
	store := newFakeConditionalStore(co)
	orders := &fakeOrderStore{}
	prices := staticPrices{co.Pair: 95}

	engine := NewEngine(store, orders, prices, time.Now, zap.NewNop())
	require.NoError(t, engine.Run(context.Background(), "base"))

	assert.Equal(t, model.ConditionalStatusTriggered, store.status("co-1"))

	created := orders.all()
	require.Len(t, created, 1)
	order := created[0]
	assert.Equal(t, model.OrderStatusOpen, order.Status)
	assert.Equal(t, model.OrderSourceConditional, order.Source)
	assert.Equal(t, co.AmountIn, order.Remaining)
	require.NotNil(t, order.SourceConditionalOrderID)
	assert.Equal(t, "co-1", *order.SourceConditionalOrderID)
	assert.Equal(t, order.OrderID, store.resulting["co-1"])
}

func TestTakeProfitBelowThresholdDoesNotTrigger(t *testing.T) {
	co := pendingOrder("co-2", model.TriggerTypeTakeProfit, 100)
	store := newFakeConditionalStore(co)
	orders := &fakeOrderStore{}
	prices := staticPrices{co.Pair: 99}

	engine := NewEngine(store, orders, prices, time.Now, zap.NewNop())
	require.NoError(t, engine.Run(context.Background(), "base"))

	assert.Equal(t, model.ConditionalStatusPending, store.status("co-2"))
	assert.Empty(t, orders.all())
}

func TestMissingPriceNeverTriggers(t *testing.T) {
	co := pendingOrder("co-3", model.TriggerTypeStopLoss, 100)
	store := newFakeConditionalStore(co)
	orders := &fakeOrderStore{}

	engine := NewEngine(store, orders, staticPrices{}, time.Now, zap.NewNop())
	require.NoError(t, engine.Run(context.Background(), "base"))

	assert.Equal(t, model.ConditionalStatusPending, store.status("co-3"))
	assert.Empty(t, orders.all())
}

func TestExpiredOrderIsNeverEvaluated(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	past := now.Add(-time.Minute).Unix()

	co := pendingOrder("co-4", model.TriggerTypeStopLoss, 100)
	co.Expiration = &past
	store := newFakeConditionalStore(co)
	orders := &fakeOrderStore{}
	prices := staticPrices{co.Pair: 50} // would fire if evaluated

	engine := NewEngine(store, orders, prices, func() time.Time { return now }, zap.NewNop())
	require.NoError(t, engine.Run(context.Background(), "base"))

	assert.Equal(t, model.ConditionalStatusPending, store.status("co-4"))
	assert.Empty(t, orders.all())
}

func TestUnknownTriggerTypeIsSkipped(t *testing.T) {
	co := pendingOrder("co-5", "trailing_stop", 100)
	store := newFakeConditionalStore(co)
	orders := &fakeOrderStore{}
	prices := staticPrices{co.Pair: 50}

	engine := NewEngine(store, orders, prices, time.Now, zap.NewNop())
	require.NoError(t, engine.Run(context.Background(), "base"))

	assert.Equal(t, model.ConditionalStatusPending, store.status("co-5"))
	assert.Empty(t, orders.all())
}

func TestOrderInsertFailureLeavesClaimInPlace(t *testing.T) {
	co := pendingOrder("co-6", model.TriggerTypeStopLoss, 100)
	store := newFakeConditionalStore(co)
	orders := &fakeOrderStore{failErr: errors.New("insert failed")}
	prices := staticPrices{co.Pair: 95}

	engine := NewEngine(store, orders, prices, time.Now, zap.NewNop())
	require.NoError(t, engine.Run(context.Background(), "base"))

	// The claim is never rolled back or retried.
	assert.Equal(t, model.ConditionalStatusTriggered, store.status("co-6"))
	assert.Empty(t, store.resulting["co-6"])
}

func TestConcurrentEvaluationTriggersExactlyOnce(t *testing.T) {
	co := pendingOrder("co-race", model.TriggerTypeStopLoss, 100)
	store := newFakeConditionalStore(co)
	orders := &fakeOrderStore{}
	prices := staticPrices{co.Pair: 95}

	engine := NewEngine(store, orders, prices, time.Now, zap.NewNop())

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, engine.Run(context.Background(), "base"))
		}()
	}
	wg.Wait()

	assert.Equal(t, model.ConditionalStatusTriggered, store.status("co-race"))
	assert.Len(t, orders.all(), 1, "the claim must admit exactly one resulting order")
}
