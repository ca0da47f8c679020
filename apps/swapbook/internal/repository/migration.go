package repository

import (
	"database/sql"
	"fmt"
)

// InitMigration initializes the database. In production, this would use a proper migration
// library like go-migrate
func InitMigration(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			order_id VARCHAR(66) NOT NULL,
			network VARCHAR(32) NOT NULL,
			maker VARCHAR(42) NOT NULL,
			token_in VARCHAR(42) NOT NULL,
			token_out VARCHAR(42) NOT NULL,
			amount_in DECIMAL(78,0) NOT NULL,
			amount_out_min DECIMAL(78,0) NOT NULL,
			expiration BIGINT,
			nonce BIGINT NOT NULL,
			receiver VARCHAR(42) NOT NULL,
			salt VARCHAR(66) NOT NULL,
			signature TEXT NOT NULL,
			price VARCHAR(80),
			remaining DECIMAL(78,0) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'open',
			source VARCHAR(20) NOT NULL DEFAULT 'direct',
			source_conditional_order_id UUID,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			PRIMARY KEY (network, order_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_network_status ON orders (network, status)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_maker_nonce ON orders (network, maker, nonce)`,
		`CREATE TABLE IF NOT EXISTS conditional_orders (
			id UUID PRIMARY KEY,
			network VARCHAR(32) NOT NULL,
			maker VARCHAR(42) NOT NULL,
			base_token VARCHAR(42) NOT NULL,
			quote_token VARCHAR(42) NOT NULL,
			pair VARCHAR(90) NOT NULL,
			trigger_type VARCHAR(20) NOT NULL,
			trigger_price DOUBLE PRECISION NOT NULL,
			token_in VARCHAR(42) NOT NULL,
			token_out VARCHAR(42) NOT NULL,
			amount_in DECIMAL(78,0) NOT NULL,
			amount_out_min DECIMAL(78,0) NOT NULL,
			expiration BIGINT,
			nonce BIGINT NOT NULL,
			receiver VARCHAR(42) NOT NULL,
			salt VARCHAR(66) NOT NULL,
			signature TEXT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			resulting_order_id VARCHAR(66),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conditional_network_status ON conditional_orders (network, status)`,
		`CREATE TABLE IF NOT EXISTS adaptive_orders (
			order_id VARCHAR(66) NOT NULL,
			network VARCHAR(32) NOT NULL,
			pair VARCHAR(90) NOT NULL,
			base_token VARCHAR(42) NOT NULL,
			quote_token VARCHAR(42) NOT NULL,
			curve_type VARCHAR(20) NOT NULL,
			initial_price DOUBLE PRECISION NOT NULL,
			current_price DOUBLE PRECISION NOT NULL,
			min_price DOUBLE PRECISION,
			max_price DOUBLE PRECISION,
			slope DOUBLE PRECISION NOT NULL DEFAULT 0,
			exponent DOUBLE PRECISION NOT NULL DEFAULT 1,
			multiplier DOUBLE PRECISION NOT NULL DEFAULT 1,
			step_config JSONB,
			max_deviation DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_inventory DOUBLE PRECISION NOT NULL DEFAULT 0,
			sold_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_fill_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			PRIMARY KEY (network, order_id)
		)`,
		`CREATE TABLE IF NOT EXISTS price_history (
			id BIGSERIAL PRIMARY KEY,
			network VARCHAR(32) NOT NULL,
			order_id VARCHAR(66) NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			sold_amount DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_order ON price_history (network, order_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS trades (
			network VARCHAR(32) NOT NULL,
			tx_hash VARCHAR(66) NOT NULL,
			log_index BIGINT NOT NULL,
			block_number BIGINT NOT NULL,
			base_token VARCHAR(42) NOT NULL,
			quote_token VARCHAR(42) NOT NULL,
			pair VARCHAR(90) NOT NULL,
			amount_base DECIMAL(78,0) NOT NULL,
			amount_quote DECIMAL(78,0) NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			maker VARCHAR(42) NOT NULL,
			taker VARCHAR(42) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			PRIMARY KEY (network, tx_hash, log_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_network_pair_date ON trades (network, pair, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS fill_outbox (
			tx_hash VARCHAR(66) NOT NULL,
			log_index BIGINT NOT NULL,
			network VARCHAR(32) NOT NULL,
			event_type VARCHAR(30) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'unsent',
			order_id VARCHAR(66) NOT NULL,
			block_number BIGINT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			PRIMARY KEY (network, tx_hash, log_index)
		)`,
		`CREATE TABLE IF NOT EXISTS listener_state (
			network VARCHAR(32) PRIMARY KEY,
			last_processed_block BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT NOW()
		)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}

	return nil
}
