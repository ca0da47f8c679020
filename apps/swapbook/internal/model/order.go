package model

import (
	"time"
)

// Order statuses
const (
	OrderStatusOpen      = "open"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
	OrderStatusExpired   = "expired"
)

// Order sources
const (
	OrderSourceDirect      = "direct"
	OrderSourceConditional = "conditional"
)

type Order struct {
	OrderID                  string     `db:"order_id"` // keccak256 of the canonical signable tuple, hex
	Network                  string     `db:"network"`
	Maker                    string     `db:"maker"`
	TokenIn                  string     `db:"token_in"`
	TokenOut                 string     `db:"token_out"`
	AmountIn                 string     `db:"amount_in"`
	AmountOutMin             string     `db:"amount_out_min"`
	Expiration               *int64     `db:"expiration"` // unix seconds, nil = never expires
	Nonce                    uint64     `db:"nonce"`
	Receiver                 string     `db:"receiver"`
	Salt                     string     `db:"salt"`
	Signature                string     `db:"signature"`
	Price                    *string    `db:"price"` // 18-decimal string, set by the pricing engine
	Remaining                string     `db:"remaining"`
	Status                   string     `db:"status"`
	Source                   string     `db:"source"`
	SourceConditionalOrderID *string    `db:"source_conditional_order_id"`
	CreatedAt                time.Time  `db:"created_at"`
	UpdatedAt                time.Time  `db:"updated_at"`
}
