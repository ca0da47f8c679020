package model

import (
	"encoding/json"
	"time"
)

// Curve types
const (
	CurveLinear         = "linear"
	CurveExponential    = "exponential"
	CurveStepwise       = "stepwise"
	CurveMarketTracking = "market_tracking"
)

// AdaptiveOrder is an order whose posted price is recomputed from the share
// of inventory already sold. Covers both plain liquidity orders and the
// single-adaptive-liquidity variant; they differ only in curve configuration.
type AdaptiveOrder struct {
	OrderID        string          `db:"order_id"`
	Network        string          `db:"network"`
	Pair           string          `db:"pair"`
	BaseToken      string          `db:"base_token"`
	QuoteToken     string          `db:"quote_token"`
	CurveType      string          `db:"curve_type"`
	InitialPrice   float64         `db:"initial_price"`
	CurrentPrice   float64         `db:"current_price"`
	MinPrice       *float64        `db:"min_price"`
	MaxPrice       *float64        `db:"max_price"`
	Slope          float64         `db:"slope"`
	Exponent       float64         `db:"exponent"`
	Multiplier     float64         `db:"multiplier"`
	StepConfig     json.RawMessage `db:"step_config"` // ordered thresholds and multipliers
	MaxDeviation   float64         `db:"max_deviation"`
	TotalInventory float64         `db:"total_inventory"`
	SoldAmount     float64         `db:"sold_amount"`
	AvgFillPrice   float64         `db:"avg_fill_price"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// PriceHistoryEntry is an append-only analytics row recorded on every
// accepted price change of an adaptive order.
type PriceHistoryEntry struct {
	ID         int64     `db:"id"`
	Network    string    `db:"network"`
	OrderID    string    `db:"order_id"`
	Price      float64   `db:"price"`
	SoldAmount float64   `db:"sold_amount"`
	CreatedAt  time.Time `db:"created_at"`
}
