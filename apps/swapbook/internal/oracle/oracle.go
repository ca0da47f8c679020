package oracle

import (
	"math/big"
	"sort"
	"time"

	"go.uber.org/zap"
	"swapbook/apps/swapbook/internal/cache"
	"swapbook/apps/swapbook/internal/model"
)

const (
	// tradeScanWindow caps how many recent trades one price derivation reads.
	tradeScanWindow = 1000
	// minUsableTrades is the floor below which the oracle reports no price
	// rather than guessing from a single print.
	minUsableTrades = 2
)

// TradeSource is the price-feed read contract: recent trades, newest first.
type TradeSource interface {
	GetRecentTrades(network string, limit int) ([]model.Trade, error)
	GetRecentTradesByPair(network, pair string, limit int) ([]model.Trade, error)
}

// Oracle derives reference prices per trading pair from recently executed
// trades.
type Oracle struct {
	trades TradeSource
	cache  *cache.TTLCache[float64]
	logger *zap.Logger
}

func New(trades TradeSource, ttl time.Duration, clock cache.Clock, logger *zap.Logger) *Oracle {
	return &Oracle{
		trades: trades,
		cache:  cache.NewTTLCache[float64](ttl, clock),
		logger: logger,
	}
}

// CurrentPrice returns the median price of recent trades for the pair. It
// reports ok=false when fewer than two usable trades exist. The median keeps
// a single outlier print from moving the reference price.
func (o *Oracle) CurrentPrice(network, baseToken, quoteToken string) (float64, bool) {
	pair := model.PairKey(baseToken, quoteToken)
	cacheKey := network + ":" + pair

	if price, ok := o.cache.Get(cacheKey); ok {
		return price, true
	}

	trades, err := o.trades.GetRecentTradesByPair(network, pair, tradeScanWindow)
	if err != nil {
		o.logger.Error("Failed to read recent trades",
			zap.String("network", network),
			zap.String("pair", pair),
			zap.Error(err))
		return 0, false
	}

	prices := make([]float64, 0, len(trades))
	for _, trade := range trades {
		if !usableTrade(trade) {
			continue
		}
		prices = append(prices, trade.Price)
	}

	if len(prices) < minUsableTrades {
		return 0, false
	}

	price := median(prices)
	o.cache.Set(cacheKey, price)
	return price, true
}

// LatestPrices builds a per-pair latest-price map from one scan of recent
// trades. The source returns trades newest first, so the first trade seen
// per pair key wins; that reduction is deliberate, not an iteration
// accident.
func (o *Oracle) LatestPrices(network string) (map[string]float64, error) {
	trades, err := o.trades.GetRecentTrades(network, tradeScanWindow)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]float64)
	for _, trade := range trades {
		if !usableTrade(trade) {
			continue
		}
		if _, seen := latest[trade.Pair]; seen {
			continue
		}
		latest[trade.Pair] = trade.Price
	}
	return latest, nil
}

// usableTrade rejects rows with non-positive prices or malformed/zero
// amounts. Bad rows are skipped, never fatal to the computation.
func usableTrade(trade model.Trade) bool {
	if trade.Price <= 0 {
		return false
	}
	amountBase, ok := new(big.Int).SetString(trade.AmountBase, 10)
	if !ok || amountBase.Sign() <= 0 {
		return false
	}
	amountQuote, ok := new(big.Int).SetString(trade.AmountQuote, 10)
	if !ok || amountQuote.Sign() <= 0 {
		return false
	}
	return true
}

func median(prices []float64) float64 {
	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
