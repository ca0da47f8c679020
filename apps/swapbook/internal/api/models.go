package api

import (
	"encoding/json"
	"time"
)

// OrderResponse represents the API response for order information
type OrderResponse struct {
	OrderID                  string  `json:"order_id"`
	Network                  string  `json:"network"`
	Maker                    string  `json:"maker"`
	TokenIn                  string  `json:"token_in"`
	TokenOut                 string  `json:"token_out"`
	AmountIn                 string  `json:"amount_in"`
	AmountOutMin             string  `json:"amount_out_min"`
	Expiration               *int64  `json:"expiration,omitempty"`
	Price                    *string `json:"price,omitempty"`
	Remaining                string  `json:"remaining"`
	Status                   string  `json:"status"`
	Source                   string  `json:"source"`
	SourceConditionalOrderID *string `json:"source_conditional_order_id,omitempty"`
	CreatedAt                time.Time `json:"created_at"`
}

// ConditionalOrderRequest represents the request body for creating a
// conditional order
type ConditionalOrderRequest struct {
	Network      string  `json:"network" validate:"required"`
	Maker        string  `json:"maker" validate:"required"`
	BaseToken    string  `json:"base_token" validate:"required"`
	QuoteToken   string  `json:"quote_token" validate:"required"`
	TriggerType  string  `json:"trigger_type" validate:"required,oneof=stop_loss take_profit"`
	TriggerPrice float64 `json:"trigger_price" validate:"required,gt=0"`
	TokenIn      string  `json:"token_in" validate:"required"`
	TokenOut     string  `json:"token_out" validate:"required"`
	AmountIn     string  `json:"amount_in" validate:"required"`
	AmountOutMin string  `json:"amount_out_min" validate:"required"`
	Expiration   *int64  `json:"expiration,omitempty"`
	Nonce        uint64  `json:"nonce"`
	Receiver     string  `json:"receiver" validate:"required"`
	Salt         string  `json:"salt" validate:"required"`
	Signature    string  `json:"signature" validate:"required"`
}

// ConditionalOrderResponse represents the API response for a conditional
// order
type ConditionalOrderResponse struct {
	ID               string    `json:"id"`
	Network          string    `json:"network"`
	Maker            string    `json:"maker"`
	Pair             string    `json:"pair"`
	TriggerType      string    `json:"trigger_type"`
	TriggerPrice     float64   `json:"trigger_price"`
	Status           string    `json:"status"`
	ResultingOrderID *string   `json:"resulting_order_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// AdaptiveOrderRequest represents the request body for creating an adaptive
// order: a signed order template plus the pricing curve driving it
type AdaptiveOrderRequest struct {
	Network      string `json:"network" validate:"required"`
	Maker        string `json:"maker" validate:"required"`
	BaseToken    string `json:"base_token" validate:"required"`
	QuoteToken   string `json:"quote_token" validate:"required"`
	TokenIn      string `json:"token_in" validate:"required"`
	TokenOut     string `json:"token_out" validate:"required"`
	AmountIn     string `json:"amount_in" validate:"required"`
	AmountOutMin string `json:"amount_out_min" validate:"required"`
	Expiration   *int64 `json:"expiration,omitempty"`
	Nonce        uint64 `json:"nonce"`
	Receiver     string `json:"receiver" validate:"required"`
	Salt         string `json:"salt" validate:"required"`
	Signature    string `json:"signature" validate:"required"`

	CurveType      string          `json:"curve_type" validate:"required,oneof=linear exponential stepwise market_tracking"`
	InitialPrice   float64         `json:"initial_price" validate:"required,gt=0"`
	MinPrice       *float64        `json:"min_price,omitempty"`
	MaxPrice       *float64        `json:"max_price,omitempty"`
	Slope          float64         `json:"slope,omitempty"`
	Exponent       float64         `json:"exponent,omitempty"`
	Multiplier     float64         `json:"multiplier,omitempty"`
	StepConfig     json.RawMessage `json:"step_config,omitempty"`
	MaxDeviation   float64         `json:"max_deviation,omitempty"`
	TotalInventory float64         `json:"total_inventory" validate:"required,gt=0"`
}

// AdaptiveOrderResponse represents the API response for an adaptive order
type AdaptiveOrderResponse struct {
	OrderID        string    `json:"order_id"`
	Network        string    `json:"network"`
	Pair           string    `json:"pair"`
	CurveType      string    `json:"curve_type"`
	InitialPrice   float64   `json:"initial_price"`
	CurrentPrice   float64   `json:"current_price"`
	MinPrice       *float64  `json:"min_price,omitempty"`
	MaxPrice       *float64  `json:"max_price,omitempty"`
	TotalInventory float64   `json:"total_inventory"`
	SoldAmount     float64   `json:"sold_amount"`
	AvgFillPrice   float64   `json:"avg_fill_price"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// ErrorResponse represents the API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
