package pricing

import (
	"context"
	"math"

	"go.uber.org/zap"
	"swapbook/apps/swapbook/internal/model"
)

// priceEpsilon suppresses writes for changes too small to matter, keeping
// analytics churn down.
const priceEpsilon = 1e-9

// AdaptiveStore is the persistence contract of the pricing engine.
type AdaptiveStore interface {
	GetActiveAdaptiveOrders(network string) ([]model.AdaptiveOrder, error)
	UpdatePrice(network, orderID string, price, avgFillPrice float64) error
	AppendPriceHistory(entry model.PriceHistoryEntry) error
	GetPriceHistory(network, orderID string) ([]model.PriceHistoryEntry, error)
}

// OrderPriceStore updates the posted price on the underlying order row.
type OrderPriceStore interface {
	UpdateOrderPrice(network, orderID, price string) error
}

// PriceSource supplies a market reference price per pair.
type PriceSource interface {
	CurrentPrice(network, baseToken, quoteToken string) (float64, bool)
}

// Engine recomputes adaptive-liquidity order prices each tick.
type Engine struct {
	store  AdaptiveStore
	orders OrderPriceStore
	prices PriceSource
	logger *zap.Logger
}

func NewEngine(store AdaptiveStore, orders OrderPriceStore, prices PriceSource, logger *zap.Logger) *Engine {
	return &Engine{store: store, orders: orders, prices: prices, logger: logger}
}

// Run recomputes prices for all active adaptive orders of one network.
// A failure on a single order is logged and the pass continues; Run only
// errors when the initial listing fails.
func (e *Engine) Run(ctx context.Context, network string) error {
	orders, err := e.store.GetActiveAdaptiveOrders(network)
	if err != nil {
		return err
	}

	for _, ao := range orders {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := e.recompute(network, ao); err != nil {
			e.logger.Error("Failed to recompute adaptive order price",
				zap.String("network", network),
				zap.String("order_id", ao.OrderID),
				zap.Error(err))
		}
	}

	return nil
}

func (e *Engine) recompute(network string, ao model.AdaptiveOrder) error {
	params, err := ParamsFromOrder(ao)
	if err != nil {
		return err
	}

	var marketPrice *float64
	if ao.CurveType == model.CurveMarketTracking {
		if price, ok := e.prices.CurrentPrice(network, ao.BaseToken, ao.QuoteToken); ok {
			marketPrice = &price
		}
	}

	soldRatio := SoldRatio(ao.SoldAmount, ao.TotalInventory)
	newPrice := ComputePrice(params, soldRatio, marketPrice)

	if math.Abs(newPrice-ao.CurrentPrice) <= priceEpsilon {
		return nil
	}

	if err := e.store.AppendPriceHistory(model.PriceHistoryEntry{
		Network:    network,
		OrderID:    ao.OrderID,
		Price:      newPrice,
		SoldAmount: ao.SoldAmount,
	}); err != nil {
		return err
	}

	history, err := e.store.GetPriceHistory(network, ao.OrderID)
	if err != nil {
		return err
	}
	avgFillPrice := VolumeWeightedAverage(history)

	if err := e.store.UpdatePrice(network, ao.OrderID, newPrice, avgFillPrice); err != nil {
		return err
	}
	if err := e.orders.UpdateOrderPrice(network, ao.OrderID, FormatPrice(newPrice)); err != nil {
		return err
	}

	e.logger.Info("Updated adaptive order price",
		zap.String("network", network),
		zap.String("order_id", ao.OrderID),
		zap.String("curve_type", ao.CurveType),
		zap.Float64("sold_ratio", soldRatio),
		zap.Float64("old_price", ao.CurrentPrice),
		zap.Float64("new_price", newPrice),
		zap.Float64("avg_fill_price", avgFillPrice))
	return nil
}

// VolumeWeightedAverage computes the average fill price over the history:
// sum(amount * price) / sum(amount), where each entry's amount is the
// inventory sold since the previous entry (sold_amount is cumulative).
func VolumeWeightedAverage(history []model.PriceHistoryEntry) float64 {
	var weighted, volume float64
	var prevSold float64

	for _, entry := range history {
		amount := entry.SoldAmount - prevSold
		prevSold = entry.SoldAmount
		if amount <= 0 {
			continue
		}
		weighted += amount * entry.Price
		volume += amount
	}

	if volume == 0 {
		return 0
	}
	return weighted / volume
}
