package listener

import (
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"swapbook/apps/swapbook/internal/chain"
	"swapbook/apps/swapbook/internal/config"
	"swapbook/apps/swapbook/internal/model"
	"swapbook/apps/swapbook/internal/tokens"
)

type fakeScanState struct {
	checkpoints []uint64
	fillEvents  []model.FillOutboxEvent
}

func (f *fakeScanState) GetLastProcessedBlock(network string) (uint64, error) { return 0, nil }

func (f *fakeScanState) UpdateLastProcessedBlock(network string, block uint64) error {
	f.checkpoints = append(f.checkpoints, block)
	return nil
}

func (f *fakeScanState) StoreFillEvent(event model.FillOutboxEvent) error {
	f.fillEvents = append(f.fillEvents, event)
	return nil
}

// fakeTradeStore mirrors the insert-once semantics of the trades table.
type fakeTradeStore struct {
	seen map[string]bool
}

func (f *fakeTradeStore) InsertTrade(trade model.Trade) (bool, error) {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	key := fmt.Sprintf("%s/%s/%d", trade.Network, trade.TxHash, trade.LogIndex)
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

type fakeOrderStore struct {
	fills      []string
	cancels    []string
	nonceCalls int
}

func (f *fakeOrderStore) ApplyFill(network, orderID, fillAmount string) error {
	f.fills = append(f.fills, fillAmount)
	return nil
}

func (f *fakeOrderStore) UpdateOrderStatus(network, orderID, fromStatus, toStatus string) (int64, error) {
	f.cancels = append(f.cancels, orderID)
	return 1, nil
}

func (f *fakeOrderStore) CancelOrdersBelowNonce(network, maker string, minNonce uint64) (int64, error) {
	f.nonceCalls++
	return 0, nil
}

type fakeAdaptiveStore struct {
	order     *model.AdaptiveOrder
	soldAdded []float64
}

func (f *fakeAdaptiveStore) GetAdaptiveOrderByID(network, orderID string) (*model.AdaptiveOrder, error) {
	return f.order, nil
}

func (f *fakeAdaptiveStore) AddSoldAmount(network, orderID string, amount float64) error {
	f.soldAdded = append(f.soldAdded, amount)
	return nil
}

func newTestListener(t *testing.T, scanState *fakeScanState, trades *fakeTradeStore, orders *fakeOrderStore, adaptive *fakeAdaptiveStore) *Listener {
	t.Helper()
	l, err := NewListener(
		&chain.Connection{Name: "base"},
		config.NetworkConfig{Name: "base", ChunkSize: 100},
		tokens.NewRegistry(nil),
		scanState, trades, orders, adaptive,
		zap.NewNop())
	require.NoError(t, err)
	l.limiter = rate.NewLimiter(rate.Inf, 1)
	return l
}

func orderFilledLog(t *testing.T, parsed abi.ABI, orderHash common.Hash, amountIn, amountOut *big.Int) types.Log {
	t.Helper()
	data, err := parsed.Events["OrderFilled"].Inputs.NonIndexed().Pack(
		common.HexToAddress("0x4200000000000000000000000000000000000006"),
		common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		amountIn,
		amountOut,
	)
	require.NoError(t, err)

	return types.Log{
		Topics: []common.Hash{
			OrderFilledEventSig,
			orderHash,
			common.HexToHash("0x0B8fA6F76eB75ae3a4ca28eb3020DFC4503F2136"), // maker
			common.HexToHash("0x1111111111111111111111111111111111111111"), // taker
		},
		Data:        data,
		BlockNumber: 42,
		TxHash:      common.HexToHash("0xfeed"),
		Index:       3,
	}
}

func TestOrderFilledAppliedExactlyOnceOnRescan(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(SettlementEventABI))
	require.NoError(t, err)

	scanState := &fakeScanState{}
	trades := &fakeTradeStore{}
	orders := &fakeOrderStore{}
	adaptive := &fakeAdaptiveStore{order: &model.AdaptiveOrder{OrderID: "0xabc"}}
	l := newTestListener(t, scanState, trades, orders, adaptive)

	amountIn, _ := new(big.Int).SetString("1000000000000000000", 10)
	eventLog := orderFilledLog(t, parsed, common.HexToHash("0xabc"), amountIn, big.NewInt(2000000000))

	// A chunk that was checkpointed but then rescanned after a later chunk
	// failed delivers the same log again.
	require.NoError(t, l.processOrderFilledEvent(eventLog, time.Now()))
	require.NoError(t, l.processOrderFilledEvent(eventLog, time.Now()))

	assert.Len(t, orders.fills, 1, "remaining must be decremented once per fill")
	assert.Len(t, adaptive.soldAdded, 1, "sold amount must be added once per fill")
	assert.Len(t, scanState.fillEvents, 1, "one outbox row per fill")
}

func TestOrderFilledTracksAdaptiveInventory(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(SettlementEventABI))
	require.NoError(t, err)

	scanState := &fakeScanState{}
	trades := &fakeTradeStore{}
	orders := &fakeOrderStore{}
	adaptive := &fakeAdaptiveStore{order: &model.AdaptiveOrder{OrderID: "0xabc"}}
	l := newTestListener(t, scanState, trades, orders, adaptive)

	amountIn, _ := new(big.Int).SetString("1500000000000000000", 10)
	eventLog := orderFilledLog(t, parsed, common.HexToHash("0xabc"), amountIn, big.NewInt(1))

	require.NoError(t, l.processOrderFilledEvent(eventLog, time.Now()))

	require.Len(t, orders.fills, 1)
	assert.Equal(t, amountIn.String(), orders.fills[0])
	require.Len(t, adaptive.soldAdded, 1)
	assert.InDelta(t, 1.5, adaptive.soldAdded[0], 1e-12)
}

func TestOrderFilledSkipsInventoryForPlainOrders(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(SettlementEventABI))
	require.NoError(t, err)

	scanState := &fakeScanState{}
	trades := &fakeTradeStore{}
	orders := &fakeOrderStore{}
	adaptive := &fakeAdaptiveStore{} // no adaptive row for this order
	l := newTestListener(t, scanState, trades, orders, adaptive)

	eventLog := orderFilledLog(t, parsed, common.HexToHash("0xdef"), big.NewInt(500), big.NewInt(600))

	require.NoError(t, l.processOrderFilledEvent(eventLog, time.Now()))

	assert.Len(t, orders.fills, 1)
	assert.Empty(t, adaptive.soldAdded)
}

func TestSettlementEventABIParses(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(SettlementEventABI))
	require.NoError(t, err)

	for _, name := range []string{"Matched", "OrderFilled", "OrderCancelled", "MinNonceUpdated"} {
		event, ok := parsed.Events[name]
		require.True(t, ok, "missing event %s", name)
		assert.Equal(t, event.ID, map[string]interface{}{
			"Matched":         MatchedEventSig,
			"OrderFilled":     OrderFilledEventSig,
			"OrderCancelled":  OrderCancelledEventSig,
			"MinNonceUpdated": MinNonceUpdatedEventSig,
		}[name], "signature mismatch for %s", name)
	}
}

func TestFillPrice(t *testing.T) {
	weth := func(v string) *big.Int {
		n, _ := new(big.Int).SetString(v, 10)
		return n
	}

	// 1 WETH (18 decimals) filled for 2000 USDC (6 decimals) prices at 2000.
	price := fillPrice(weth("1000000000000000000"), weth("2000000000"), 18, 6)
	assert.InDelta(t, 2000.0, price, 1e-9)

	// Same decimals on both legs is a plain ratio.
	price = fillPrice(big.NewInt(4), big.NewInt(6), 0, 0)
	assert.InDelta(t, 1.5, price, 1e-12)
}

func TestFillPriceDegenerateInputs(t *testing.T) {
	assert.Equal(t, 0.0, fillPrice(nil, big.NewInt(1), 18, 18))
	assert.Equal(t, 0.0, fillPrice(big.NewInt(1), nil, 18, 18))
	assert.Equal(t, 0.0, fillPrice(big.NewInt(0), big.NewInt(1), 18, 18))
}

func TestDecimalAmount(t *testing.T) {
	amount, _ := new(big.Int).SetString("1500000000000000000", 10)
	got, err := decimalAmount(amount, 18)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, got, 1e-12)

	_, err = decimalAmount(nil, 18)
	assert.Error(t, err)
}
