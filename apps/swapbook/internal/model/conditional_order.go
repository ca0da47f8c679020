package model

import (
	"time"
)

// ConditionalOrder statuses
const (
	ConditionalStatusPending   = "pending"
	ConditionalStatusTriggered = "triggered"
	ConditionalStatusCancelled = "cancelled"
	ConditionalStatusExpired   = "expired"
)

// Trigger types
const (
	TriggerTypeStopLoss   = "stop_loss"
	TriggerTypeTakeProfit = "take_profit"
)

// ConditionalOrder is a pending trigger holding a pre-signed order template.
// It transitions pending -> triggered exactly once; the transition is claimed
// through a conditional update scoped by (id, network, status = 'pending').
type ConditionalOrder struct {
	ID               string    `db:"id"`
	Network          string    `db:"network"`
	Maker            string    `db:"maker"`
	BaseToken        string    `db:"base_token"`
	QuoteToken       string    `db:"quote_token"`
	Pair             string    `db:"pair"`
	TriggerType      string    `db:"trigger_type"`
	TriggerPrice     float64   `db:"trigger_price"`
	TokenIn          string    `db:"token_in"`
	TokenOut         string    `db:"token_out"`
	AmountIn         string    `db:"amount_in"`
	AmountOutMin     string    `db:"amount_out_min"`
	Expiration       *int64    `db:"expiration"` // unix seconds, nil = never expires
	Nonce            uint64    `db:"nonce"`
	Receiver         string    `db:"receiver"`
	Salt             string    `db:"salt"`
	Signature        string    `db:"signature"`
	Status           string    `db:"status"`
	ResultingOrderID *string   `db:"resulting_order_id"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}
