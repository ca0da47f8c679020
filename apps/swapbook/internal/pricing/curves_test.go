package pricing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"swapbook/apps/swapbook/internal/model"
)

func floatPtr(v float64) *float64 { return &v }

func TestLinearCurveEndpoints(t *testing.T) {
	params := CurveParams{
		CurveType:    model.CurveLinear,
		InitialPrice: 1.0,
		MaxPrice:     floatPtr(2.0),
	}

	assert.InDelta(t, 1.0, ComputePrice(params, 0, nil), 1e-12)
	assert.InDelta(t, 2.0, ComputePrice(params, 1, nil), 1e-12)
	assert.InDelta(t, 1.25, ComputePrice(params, 0.25, nil), 1e-12)
}

func TestLinearCurveSlopeImpliedMax(t *testing.T) {
	// Without explicit bounds the ceiling is initial * (1 + slope).
	params := CurveParams{
		CurveType:    model.CurveLinear,
		InitialPrice: 2.0,
		Slope:        0.5,
	}

	assert.InDelta(t, 2.0, ComputePrice(params, 0, nil), 1e-12)
	assert.InDelta(t, 3.0, ComputePrice(params, 1, nil), 1e-12)
}

func TestComputePriceIsIdempotent(t *testing.T) {
	params := CurveParams{
		CurveType:    model.CurveExponential,
		InitialPrice: 1.0,
		MaxPrice:     floatPtr(3.0),
		Exponent:     2,
		Multiplier:   1.5,
	}
	market := floatPtr(1.8)

	first := ComputePrice(params, 0.37, market)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ComputePrice(params, 0.37, market))
	}
}

func TestExponentialCurveReachesMaxAtFullSold(t *testing.T) {
	for _, exponent := range []float64{0.5, 1, 2, 3} {
		params := CurveParams{
			CurveType:    model.CurveExponential,
			InitialPrice: 1.0,
			MaxPrice:     floatPtr(4.0),
			Exponent:     exponent,
			Multiplier:   2.0,
		}

		assert.InDelta(t, 1.0, ComputePrice(params, 0, nil), 1e-12, "exponent %v", exponent)
		assert.InDelta(t, 4.0, ComputePrice(params, 1, nil), 1e-9, "exponent %v", exponent)
	}
}

func TestExponentialCurveIsMonotonic(t *testing.T) {
	params := CurveParams{
		CurveType:    model.CurveExponential,
		InitialPrice: 1.0,
		MaxPrice:     floatPtr(2.0),
		Exponent:     2,
		Multiplier:   1,
	}

	prev := ComputePrice(params, 0, nil)
	for r := 0.1; r <= 1.0; r += 0.1 {
		price := ComputePrice(params, r, nil)
		assert.GreaterOrEqual(t, price, prev)
		prev = price
	}
}

func TestStepwiseCurveBands(t *testing.T) {
	params := CurveParams{
		CurveType:    model.CurveStepwise,
		InitialPrice: 2.0,
		Steps:        DefaultSteps,
	}

	assert.InDelta(t, 2.0, ComputePrice(params, 0, nil), 1e-12)
	assert.InDelta(t, 2.0, ComputePrice(params, 0.24, nil), 1e-12)
	assert.InDelta(t, 2.2, ComputePrice(params, 0.25, nil), 1e-12)
	assert.InDelta(t, 2.5, ComputePrice(params, 0.6, nil), 1e-12)
	assert.InDelta(t, 2.8, ComputePrice(params, 0.75, nil), 1e-12)
	assert.InDelta(t, 3.0, ComputePrice(params, 1.0, nil), 1e-12)
}

func TestMarketTrackingStaysWithinDeviationBand(t *testing.T) {
	params := CurveParams{
		CurveType:    model.CurveMarketTracking,
		InitialPrice: 1.0,
		Slope:        4.0,
		MaxDeviation: 0.1,
	}

	for _, market := range []float64{0.5, 1.0, 2.0, 10.0} {
		for r := 0.0; r <= 1.0; r += 0.2 {
			price := ComputePrice(params, r, &market)
			assert.GreaterOrEqual(t, price, market*0.9, "market %v ratio %v", market, r)
			assert.LessOrEqual(t, price, market*1.1, "market %v ratio %v", market, r)
		}
	}
}

func TestMarketTrackingFallsBackToLinearWithoutMarketPrice(t *testing.T) {
	params := CurveParams{
		CurveType:    model.CurveMarketTracking,
		InitialPrice: 1.0,
		MaxPrice:     floatPtr(2.0),
		MaxDeviation: 0.05,
	}
	linear := params
	linear.CurveType = model.CurveLinear

	for r := 0.0; r <= 1.0; r += 0.25 {
		assert.Equal(t, ComputePrice(linear, r, nil), ComputePrice(params, r, nil))
	}
}

func TestMinMaxClamp(t *testing.T) {
	params := CurveParams{
		CurveType:    model.CurveLinear,
		InitialPrice: 1.0,
		Slope:        10, // would reach 11 unbounded
		MinPrice:     floatPtr(1.2),
		MaxPrice:     floatPtr(3.0),
	}

	assert.InDelta(t, 1.2, ComputePrice(params, 0, nil), 1e-12) // lifted to min
	assert.InDelta(t, 3.0, ComputePrice(params, 1, nil), 1e-12) // capped at max
}

func TestSoldRatio(t *testing.T) {
	assert.Equal(t, 0.25, SoldRatio(250, 1000))
	assert.Equal(t, 0.0, SoldRatio(100, 0))  // zero inventory never divides
	assert.Equal(t, 0.0, SoldRatio(-5, 100)) // clamped below
	assert.Equal(t, 1.0, SoldRatio(2000, 1000))
}

func TestScenarioLinearQuarterSold(t *testing.T) {
	// initial 1.0, linear, max 2.0, sold 250 of 1000 -> 1.25
	params := CurveParams{
		CurveType:    model.CurveLinear,
		InitialPrice: 1.0,
		MaxPrice:     floatPtr(2.0),
	}
	price := ComputePrice(params, SoldRatio(250, 1000), nil)
	assert.InDelta(t, 1.25, price, 1e-12)
}

func TestFormatPriceKeeps18FractionalDigits(t *testing.T) {
	formatted := FormatPrice(1.25)
	parts := strings.Split(formatted, ".")
	require.Len(t, parts, 2)
	assert.Len(t, parts[1], 18)
	assert.True(t, strings.HasPrefix(formatted, "1.25"))

	// sub-unit prices keep their leading zeros
	assert.True(t, strings.HasPrefix(FormatPrice(0.000001), "0.000001"))
}

func TestParamsFromOrderDefaults(t *testing.T) {
	params, err := ParamsFromOrder(model.AdaptiveOrder{
		OrderID:      "0xabc",
		CurveType:    model.CurveStepwise,
		InitialPrice: 1.0,
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultSteps, params.Steps)
	assert.Equal(t, 1.0, params.Exponent)
	assert.Equal(t, 1.0, params.Multiplier)
}

func TestParamsFromOrderMalformedStepConfig(t *testing.T) {
	_, err := ParamsFromOrder(model.AdaptiveOrder{
		OrderID:    "0xabc",
		CurveType:  model.CurveStepwise,
		StepConfig: []byte(`{"not": "a list"`),
	})
	assert.Error(t, err)
}

func TestParamsFromOrderSortsSteps(t *testing.T) {
	params, err := ParamsFromOrder(model.AdaptiveOrder{
		OrderID:    "0xabc",
		CurveType:  model.CurveStepwise,
		StepConfig: []byte(`[{"threshold":0.75,"multiplier":1.4},{"threshold":0.25,"multiplier":1.1}]`),
	})
	require.NoError(t, err)

	assert.Equal(t, 0.25, params.Steps[0].Threshold)
	assert.Equal(t, 0.75, params.Steps[1].Threshold)
}
