package test

// Shared constants and request/response types for the API integration tests.
// These tests expect a running server (docker-compose up) at BaseURL.

const (
	// Test server configuration
	BaseURL = "http://localhost:8080"

	// Test network configuration
	TestNetwork = "base"

	// Test wallet address (example address)
	TestWalletAddress = "0x0B8fA6F76eB75ae3a4ca28eb3020DFC4503F2136"

	// Test token addresses (Base mainnet WETH/USDC)
	TestBaseToken  = "0x4200000000000000000000000000000000000006"
	TestQuoteToken = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
)

// ConditionalOrderRequest mirrors the create endpoint's request body
type ConditionalOrderRequest struct {
	Network      string  `json:"network"`
	Maker        string  `json:"maker"`
	BaseToken    string  `json:"base_token"`
	QuoteToken   string  `json:"quote_token"`
	TriggerType  string  `json:"trigger_type"`
	TriggerPrice float64 `json:"trigger_price"`
	TokenIn      string  `json:"token_in"`
	TokenOut     string  `json:"token_out"`
	AmountIn     string  `json:"amount_in"`
	AmountOutMin string  `json:"amount_out_min"`
	Expiration   *int64  `json:"expiration,omitempty"`
	Nonce        uint64  `json:"nonce"`
	Receiver     string  `json:"receiver"`
	Salt         string  `json:"salt"`
	Signature    string  `json:"signature"`
}

// ConditionalOrderResponse mirrors the API response for a conditional order
type ConditionalOrderResponse struct {
	ID               string  `json:"id"`
	Network          string  `json:"network"`
	Maker            string  `json:"maker"`
	Pair             string  `json:"pair"`
	TriggerType      string  `json:"trigger_type"`
	TriggerPrice     float64 `json:"trigger_price"`
	Status           string  `json:"status"`
	ResultingOrderID *string `json:"resulting_order_id,omitempty"`
}

// OrderResponse mirrors the API response for order information
type OrderResponse struct {
	OrderID   string  `json:"order_id"`
	Network   string  `json:"network"`
	Maker     string  `json:"maker"`
	AmountIn  string  `json:"amount_in"`
	Remaining string  `json:"remaining"`
	Price     *string `json:"price,omitempty"`
	Status    string  `json:"status"`
	Source    string  `json:"source"`
}

// AdaptiveOrderRequest mirrors the adaptive create endpoint's request body
type AdaptiveOrderRequest struct {
	Network        string   `json:"network"`
	Maker          string   `json:"maker"`
	BaseToken      string   `json:"base_token"`
	QuoteToken     string   `json:"quote_token"`
	TokenIn        string   `json:"token_in"`
	TokenOut       string   `json:"token_out"`
	AmountIn       string   `json:"amount_in"`
	AmountOutMin   string   `json:"amount_out_min"`
	Expiration     *int64   `json:"expiration,omitempty"`
	Nonce          uint64   `json:"nonce"`
	Receiver       string   `json:"receiver"`
	Salt           string   `json:"salt"`
	Signature      string   `json:"signature"`
	CurveType      string   `json:"curve_type"`
	InitialPrice   float64  `json:"initial_price"`
	MinPrice       *float64 `json:"min_price,omitempty"`
	MaxPrice       *float64 `json:"max_price,omitempty"`
	MaxDeviation   float64  `json:"max_deviation,omitempty"`
	TotalInventory float64  `json:"total_inventory"`
}

// AdaptiveOrderResponse mirrors the API response for an adaptive order
type AdaptiveOrderResponse struct {
	OrderID        string  `json:"order_id"`
	Network        string  `json:"network"`
	Pair           string  `json:"pair"`
	CurveType      string  `json:"curve_type"`
	InitialPrice   float64 `json:"initial_price"`
	CurrentPrice   float64 `json:"current_price"`
	TotalInventory float64 `json:"total_inventory"`
	SoldAmount     float64 `json:"sold_amount"`
	Status         string  `json:"status"`
}

// ErrorResponse represents the API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
