package pricing

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"swapbook/apps/swapbook/internal/model"
)

// Step is one stepwise-curve band: the multiplier applies once soldRatio
// reaches Threshold.
type Step struct {
	Threshold  float64 `json:"threshold"`
	Multiplier float64 `json:"multiplier"`
}

// DefaultSteps are the four standard bands at 25/50/75/100% of inventory.
var DefaultSteps = []Step{
	{Threshold: 0.25, Multiplier: 1.1},
	{Threshold: 0.5, Multiplier: 1.25},
	{Threshold: 0.75, Multiplier: 1.4},
	{Threshold: 1.0, Multiplier: 1.5},
}

// CurveParams is the full input of a price computation. ComputePrice is a
// pure function of these values, the sold ratio and an optional market
// price; identical inputs always yield identical prices.
type CurveParams struct {
	CurveType    string
	InitialPrice float64
	MinPrice     *float64
	MaxPrice     *float64
	Slope        float64
	Exponent     float64
	Multiplier   float64
	Steps        []Step
	MaxDeviation float64
}

// ParamsFromOrder builds CurveParams from a stored adaptive order,
// normalizing unset shaping values and decoding the step configuration.
func ParamsFromOrder(ao model.AdaptiveOrder) (CurveParams, error) {
	params := CurveParams{
		CurveType:    ao.CurveType,
		InitialPrice: ao.InitialPrice,
		MinPrice:     ao.MinPrice,
		MaxPrice:     ao.MaxPrice,
		Slope:        ao.Slope,
		Exponent:     ao.Exponent,
		Multiplier:   ao.Multiplier,
		MaxDeviation: ao.MaxDeviation,
	}

	if params.Exponent <= 0 {
		params.Exponent = 1
	}
	if params.Multiplier <= 0 {
		params.Multiplier = 1
	}

	if len(ao.StepConfig) > 0 {
		if err := json.Unmarshal(ao.StepConfig, &params.Steps); err != nil {
			return CurveParams{}, fmt.Errorf("malformed step config for order %s: %w", ao.OrderID, err)
		}
		sort.Slice(params.Steps, func(i, j int) bool {
			return params.Steps[i].Threshold < params.Steps[j].Threshold
		})
	}
	if len(params.Steps) == 0 {
		params.Steps = DefaultSteps
	}

	return params, nil
}

// SoldRatio returns sold/total, clamped to [0, 1]. A zero or unset total
// yields ratio 0, so the computed price stays at the initial price instead
// of dividing by zero.
func SoldRatio(sold, total float64) float64 {
	if total <= 0 {
		return 0
	}
	ratio := sold / total
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

// ComputePrice evaluates the configured curve at soldRatio. marketPrice is
// only consulted by the market_tracking curve; pass nil when no market price
// is available and that curve degrades to plain linear.
func ComputePrice(params CurveParams, soldRatio float64, marketPrice *float64) float64 {
	var price float64

	switch params.CurveType {
	case model.CurveLinear:
		price = linearPrice(params, soldRatio)
	case model.CurveExponential:
		price = exponentialPrice(params, soldRatio)
	case model.CurveStepwise:
		price = stepwisePrice(params, soldRatio)
	case model.CurveMarketTracking:
		price = linearPrice(params, soldRatio)
		if marketPrice != nil && *marketPrice > 0 && params.MaxDeviation > 0 {
			lo := *marketPrice * (1 - params.MaxDeviation)
			hi := *marketPrice * (1 + params.MaxDeviation)
			price = clamp(price, lo, hi)
		}
	default:
		price = params.InitialPrice
	}

	if params.MinPrice != nil && price < *params.MinPrice {
		price = *params.MinPrice
	}
	if params.MaxPrice != nil && price > *params.MaxPrice {
		price = *params.MaxPrice
	}
	return price
}

// maxTarget is the price the curve should reach at soldRatio = 1: the
// configured max when bounds are set, otherwise the slope-implied ceiling.
func maxTarget(params CurveParams) float64 {
	if params.MaxPrice != nil {
		return *params.MaxPrice
	}
	return params.InitialPrice * (1 + params.Slope)
}

func linearPrice(params CurveParams, soldRatio float64) float64 {
	return params.InitialPrice + (maxTarget(params)-params.InitialPrice)*soldRatio
}

// exponentialPrice grows from the initial price so that the curve reaches
// the configured max at soldRatio = 1; the exponent shapes only the
// approach. The normalization constant absorbs the multiplier so the
// asymptote holds for any shaping values.
func exponentialPrice(params CurveParams, soldRatio float64) float64 {
	if params.InitialPrice <= 0 {
		return params.InitialPrice
	}
	growth := maxTarget(params)/params.InitialPrice - 1
	k := growth / params.Multiplier
	return params.InitialPrice * (1 + k*math.Pow(soldRatio, params.Exponent)*params.Multiplier)
}

// stepwisePrice applies the multiplier of the highest threshold that
// soldRatio has reached; below the first threshold the price is the initial
// price.
func stepwisePrice(params CurveParams, soldRatio float64) float64 {
	multiplier := 1.0
	for _, step := range params.Steps {
		if soldRatio >= step.Threshold {
			multiplier = step.Multiplier
		}
	}
	return params.InitialPrice * multiplier
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FormatPrice serializes a price with 18 fractional digits so sub-unit
// prices survive storage without truncation.
func FormatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', 18, 64)
}
