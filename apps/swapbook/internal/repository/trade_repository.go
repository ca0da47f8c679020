package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"swapbook/apps/swapbook/internal/model"
)

type TradeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewTradeRepository(db *sql.DB, logger *zap.Logger) *TradeRepository {
	return &TradeRepository{db: db, logger: logger}
}

// InsertTrade writes a trade row exactly once per (network, tx_hash,
// log_index). Trades are immutable, so a conflict means the event was already
// recorded; inserted is false in that case and the caller must not re-apply
// any downstream bookkeeping for it.
func (r *TradeRepository) InsertTrade(trade model.Trade) (bool, error) {
	res, err := r.db.Exec(`
		INSERT INTO trades (network, tx_hash, log_index, block_number, base_token, quote_token, pair, amount_base, amount_quote, price, maker, taker, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (network, tx_hash, log_index) DO NOTHING
	`, trade.Network, trade.TxHash, trade.LogIndex, trade.BlockNumber, trade.BaseToken,
		trade.QuoteToken, trade.Pair, trade.AmountBase, trade.AmountQuote, trade.Price,
		trade.Maker, trade.Taker, trade.CreatedAt)

	if err != nil {
		return false, fmt.Errorf("failed to insert trade: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	r.logger.Info("Recorded trade",
		zap.String("network", trade.Network),
		zap.String("tx_hash", trade.TxHash),
		zap.Uint64("log_index", trade.LogIndex),
		zap.String("pair", trade.Pair),
		zap.Float64("price", trade.Price))
	return true, nil
}

// GetRecentTrades returns the most recent trades for a network, newest
// first. The ordering is load-bearing: the oracle's latest-price reduction
// takes the first trade seen per pair.
func (r *TradeRepository) GetRecentTrades(network string, limit int) ([]model.Trade, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 1000 {
		limit = 1000
	}

	rows, err := r.db.Query(`
		SELECT network, tx_hash, log_index, block_number, base_token, quote_token, pair, amount_base, amount_quote, price, maker, taker, created_at
		FROM trades
		WHERE network = $1
		ORDER BY created_at DESC, log_index DESC
		LIMIT $2
	`, network, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetRecentTradesByPair returns the most recent trades for one pair, newest
// first.
func (r *TradeRepository) GetRecentTradesByPair(network, pair string, limit int) ([]model.Trade, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 1000 {
		limit = 1000
	}

	rows, err := r.db.Query(`
		SELECT network, tx_hash, log_index, block_number, base_token, quote_token, pair, amount_base, amount_quote, price, maker, taker, created_at
		FROM trades
		WHERE network = $1 AND pair = $2
		ORDER BY created_at DESC, log_index DESC
		LIMIT $3
	`, network, pair, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent trades by pair: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

func scanTrades(rows *sql.Rows) ([]model.Trade, error) {
	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		if err := rows.Scan(&t.Network, &t.TxHash, &t.LogIndex, &t.BlockNumber, &t.BaseToken,
			&t.QuoteToken, &t.Pair, &t.AmountBase, &t.AmountQuote, &t.Price, &t.Maker, &t.Taker,
			&t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}
