package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"swapbook/apps/swapbook/internal/model"
)

func validAdaptiveRequest() AdaptiveOrderRequest {
	return AdaptiveOrderRequest{
		Network:        "base",
		Maker:          "0xAbCd000000000000000000000000000000000001",
		BaseToken:      "0xbase",
		QuoteToken:     "0xquote",
		TokenIn:        "0xin",
		TokenOut:       "0xout",
		AmountIn:       "1000000000000000000",
		AmountOutMin:   "0",
		Receiver:       "0xAbCd000000000000000000000000000000000001",
		Salt:           "42",
		Signature:      "0xsig",
		CurveType:      model.CurveLinear,
		InitialPrice:   1.0,
		TotalInventory: 100,
	}
}

func TestValidateAdaptiveOrderRequest(t *testing.T) {
	assert.Empty(t, validateAdaptiveOrderRequest(validAdaptiveRequest()))

	mutations := []struct {
		name   string
		mutate func(*AdaptiveOrderRequest)
	}{
		{"missing network", func(r *AdaptiveOrderRequest) { r.Network = "" }},
		{"missing maker", func(r *AdaptiveOrderRequest) { r.Maker = "" }},
		{"missing quote token", func(r *AdaptiveOrderRequest) { r.QuoteToken = "" }},
		{"missing template token", func(r *AdaptiveOrderRequest) { r.TokenIn = "" }},
		{"missing signature", func(r *AdaptiveOrderRequest) { r.Signature = "" }},
		{"missing salt", func(r *AdaptiveOrderRequest) { r.Salt = "" }},
		{"missing receiver", func(r *AdaptiveOrderRequest) { r.Receiver = "" }},
		{"unknown curve type", func(r *AdaptiveOrderRequest) { r.CurveType = "parabolic" }},
		{"zero initial price", func(r *AdaptiveOrderRequest) { r.InitialPrice = 0 }},
		{"zero inventory", func(r *AdaptiveOrderRequest) { r.TotalInventory = 0 }},
		{"negative min price", func(r *AdaptiveOrderRequest) { r.MinPrice = floatPtr(-1) }},
		{"min above max", func(r *AdaptiveOrderRequest) {
			r.MinPrice = floatPtr(2)
			r.MaxPrice = floatPtr(1)
		}},
		{"market tracking without deviation", func(r *AdaptiveOrderRequest) {
			r.CurveType = model.CurveMarketTracking
			r.MaxDeviation = 0
		}},
		{"malformed step config", func(r *AdaptiveOrderRequest) {
			r.CurveType = model.CurveStepwise
			r.StepConfig = json.RawMessage(`{"not": "a list"}`)
		}},
		{"step threshold above one", func(r *AdaptiveOrderRequest) {
			r.CurveType = model.CurveStepwise
			r.StepConfig = json.RawMessage(`[{"threshold": 1.5, "multiplier": 1.1}]`)
		}},
		{"zero step multiplier", func(r *AdaptiveOrderRequest) {
			r.CurveType = model.CurveStepwise
			r.StepConfig = json.RawMessage(`[{"threshold": 0.5, "multiplier": 0}]`)
		}},
		{"non-numeric amount in", func(r *AdaptiveOrderRequest) { r.AmountIn = "1.5" }},
		{"negative amount out min", func(r *AdaptiveOrderRequest) { r.AmountOutMin = "-1" }},
	}

	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			req := validAdaptiveRequest()
			tt.mutate(&req)
			assert.NotEmpty(t, validateAdaptiveOrderRequest(req))
		})
	}
}

func TestValidateAdaptiveOrderRequestAcceptsAllCurveTypes(t *testing.T) {
	for _, curve := range []string{model.CurveLinear, model.CurveExponential, model.CurveStepwise} {
		req := validAdaptiveRequest()
		req.CurveType = curve
		assert.Empty(t, validateAdaptiveOrderRequest(req), curve)
	}

	req := validAdaptiveRequest()
	req.CurveType = model.CurveMarketTracking
	req.MaxDeviation = 0.1
	assert.Empty(t, validateAdaptiveOrderRequest(req))
}

func floatPtr(v float64) *float64 { return &v }
