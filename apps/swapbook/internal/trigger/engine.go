package trigger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"swapbook/apps/swapbook/internal/model"
)

// ConditionalStore is the persistence contract of the trigger engine.
// ClaimTrigger must be backed by an atomic conditional update: it returns
// true for exactly one caller per conditional order, across goroutines and
// across process instances.
type ConditionalStore interface {
	GetPendingConditionalOrders(network string, now time.Time) ([]model.ConditionalOrder, error)
	ClaimTrigger(id, network string) (bool, error)
	SetResultingOrderID(id, orderID string) error
}

// OrderStore creates the resulting live orders.
type OrderStore interface {
	CreateOrder(order model.Order) error
}

// LatestPriceSource supplies the per-pair latest-price map for one network.
type LatestPriceSource interface {
	LatestPrices(network string) (map[string]float64, error)
}

// Clock is injected so expiration checks share a controllable time source
// with tests.
type Clock func() time.Time

// Engine scans pending conditional orders each tick and promotes triggered
// ones into live resting orders.
type Engine struct {
	conditionals ConditionalStore
	orders       OrderStore
	prices       LatestPriceSource
	clock        Clock
	logger       *zap.Logger
}

func NewEngine(conditionals ConditionalStore, orders OrderStore, prices LatestPriceSource, clock Clock, logger *zap.Logger) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		conditionals: conditionals,
		orders:       orders,
		prices:       prices,
		clock:        clock,
		logger:       logger,
	}
}

// Run evaluates all pending conditional orders of one network against the
// latest observed prices. Errors on individual orders never abort the pass.
func (e *Engine) Run(ctx context.Context, network string) error {
	pending, err := e.conditionals.GetPendingConditionalOrders(network, e.clock())
	if err != nil {
		return fmt.Errorf("failed to fetch pending conditional orders: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	latest, err := e.prices.LatestPrices(network)
	if err != nil {
		return fmt.Errorf("failed to build latest price map: %w", err)
	}

	now := e.clock()
	for _, co := range pending {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// The store already filters expired rows; re-check against the same
		// clock so a slow pass never triggers an order that expired mid-tick.
		if co.Expiration != nil && *co.Expiration <= now.Unix() {
			continue
		}

		e.evaluate(network, co, latest)
	}

	return nil
}

func (e *Engine) evaluate(network string, co model.ConditionalOrder, latest map[string]float64) {
	price, ok := latest[co.Pair]
	if !ok {
		// No data, no trigger. Never fire on stale or missing prices.
		return
	}

	fired, known := ShouldTrigger(co.TriggerType, price, co.TriggerPrice)
	if !known {
		e.logger.Warn("Unknown trigger type, skipping",
			zap.String("id", co.ID),
			zap.String("network", network),
			zap.String("trigger_type", co.TriggerType))
		return
	}
	if !fired {
		return
	}

	if co.TokenIn == "" || co.TokenOut == "" {
		e.logger.Error("Conditional order template missing token addresses, skipping",
			zap.String("id", co.ID),
			zap.String("network", network))
		return
	}

	// Atomic claim: pending -> triggered. Zero rows affected means another
	// worker already claimed this order; that is an expected race, not an
	// error.
	claimed, err := e.conditionals.ClaimTrigger(co.ID, network)
	if err != nil {
		e.logger.Error("Failed to claim conditional order",
			zap.String("id", co.ID),
			zap.String("network", network),
			zap.Error(err))
		return
	}
	if !claimed {
		return
	}

	orderID := DeriveOrderID(network, co.Maker, co.Nonce, co.TokenIn, co.TokenOut, co.Salt)
	conditionalID := co.ID

	order := model.Order{
		OrderID:                  orderID,
		Network:                  network,
		Maker:                    strings.ToLower(co.Maker),
		TokenIn:                  strings.ToLower(co.TokenIn),
		TokenOut:                 strings.ToLower(co.TokenOut),
		AmountIn:                 co.AmountIn,
		AmountOutMin:             co.AmountOutMin,
		Expiration:               co.Expiration,
		Nonce:                    co.Nonce,
		Receiver:                 co.Receiver,
		Salt:                     co.Salt,
		Signature:                co.Signature,
		Remaining:                co.AmountIn,
		Status:                   model.OrderStatusOpen,
		Source:                   model.OrderSourceConditional,
		SourceConditionalOrderID: &conditionalID,
	}

	if err := e.orders.CreateOrder(order); err != nil {
		// The claim is not retried: re-claiming is impossible by design, so
		// this conditional order stays triggered without a resulting order.
		// Surface it loudly for remediation instead of hiding it.
		e.logger.Error("Conditional order triggered but resulting order insert failed",
			zap.String("id", co.ID),
			zap.String("network", network),
			zap.String("order_id", orderID),
			zap.Error(err))
		return
	}

	e.logger.Info("Conditional order triggered",
		zap.String("id", co.ID),
		zap.String("network", network),
		zap.String("trigger_type", co.TriggerType),
		zap.Float64("trigger_price", co.TriggerPrice),
		zap.Float64("observed_price", price),
		zap.String("order_id", orderID))

	// Best-effort backfill; the triggered state and the created order
	// survive regardless.
	if err := e.conditionals.SetResultingOrderID(co.ID, orderID); err != nil {
		e.logger.Error("Failed to backfill resulting order id",
			zap.String("id", co.ID),
			zap.String("order_id", orderID),
			zap.Error(err))
	}
}

// ShouldTrigger evaluates a trigger condition. known is false for
// unrecognized trigger types, which never fire.
func ShouldTrigger(triggerType string, price, triggerPrice float64) (fired, known bool) {
	switch triggerType {
	case model.TriggerTypeStopLoss:
		return price <= triggerPrice, true
	case model.TriggerTypeTakeProfit:
		return price >= triggerPrice, true
	default:
		return false, false
	}
}

// DeriveOrderID hashes the canonical signable tuple into a deterministic
// order id. Retried or duplicate trigger attempts produce the same id, so
// the store's hash uniqueness dedupes them naturally.
func DeriveOrderID(network, maker string, nonce uint64, tokenIn, tokenOut, salt string) string {
	canonical := strings.Join([]string{
		network,
		strings.ToLower(maker),
		strconv.FormatUint(nonce, 10),
		strings.ToLower(tokenIn),
		strings.ToLower(tokenOut),
		salt,
	}, "|")
	return crypto.Keccak256Hash([]byte(canonical)).Hex()
}
