package model

import (
	"strings"
	"time"
)

// Trade is an executed fill observed on-chain. Trades feed the market price
// oracle; they are written once per (network, tx_hash, log_index) and never
// mutated.
type Trade struct {
	Network     string    `db:"network"`
	TxHash      string    `db:"tx_hash"`
	LogIndex    uint64    `db:"log_index"`
	BlockNumber uint64    `db:"block_number"`
	BaseToken   string    `db:"base_token"`
	QuoteToken  string    `db:"quote_token"`
	Pair        string    `db:"pair"`
	AmountBase  string    `db:"amount_base"`
	AmountQuote string    `db:"amount_quote"`
	Price       float64   `db:"price"`
	Maker       string    `db:"maker"`
	Taker       string    `db:"taker"`
	CreatedAt   time.Time `db:"created_at"`
}

// PairKey builds the canonical pair key used by the oracle's latest-price
// map. Addresses are lowercased so lookups are case-insensitive.
func PairKey(baseToken, quoteToken string) string {
	return strings.ToLower(baseToken) + "/" + strings.ToLower(quoteToken)
}
