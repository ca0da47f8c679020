package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"swapbook/apps/swapbook/internal/model"
)

type ConditionalOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewConditionalOrderRepository(db *sql.DB, logger *zap.Logger) *ConditionalOrderRepository {
	return &ConditionalOrderRepository{db: db, logger: logger}
}

const conditionalColumns = `id, network, maker, base_token, quote_token, pair, trigger_type, trigger_price, token_in, token_out, amount_in, amount_out_min, expiration, nonce, receiver, salt, signature, status, resulting_order_id, created_at, updated_at`

func scanConditionalOrder(row interface{ Scan(...interface{}) error }) (*model.ConditionalOrder, error) {
	var co model.ConditionalOrder
	err := row.Scan(&co.ID, &co.Network, &co.Maker, &co.BaseToken, &co.QuoteToken, &co.Pair,
		&co.TriggerType, &co.TriggerPrice, &co.TokenIn, &co.TokenOut, &co.AmountIn, &co.AmountOutMin,
		&co.Expiration, &co.Nonce, &co.Receiver, &co.Salt, &co.Signature, &co.Status,
		&co.ResultingOrderID, &co.CreatedAt, &co.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &co, nil
}

func (r *ConditionalOrderRepository) CreateConditionalOrder(co model.ConditionalOrder) error {
	_, err := r.db.Exec(`
		INSERT INTO conditional_orders (id, network, maker, base_token, quote_token, pair, trigger_type, trigger_price, token_in, token_out, amount_in, amount_out_min, expiration, nonce, receiver, salt, signature, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, co.ID, co.Network, co.Maker, co.BaseToken, co.QuoteToken, co.Pair, co.TriggerType,
		co.TriggerPrice, co.TokenIn, co.TokenOut, co.AmountIn, co.AmountOutMin, co.Expiration,
		co.Nonce, co.Receiver, co.Salt, co.Signature, co.Status)

	if err != nil {
		return fmt.Errorf("failed to create conditional order: %w", err)
	}

	r.logger.Info("Created conditional order",
		zap.String("id", co.ID),
		zap.String("network", co.Network),
		zap.String("trigger_type", co.TriggerType),
		zap.Float64("trigger_price", co.TriggerPrice),
		zap.String("pair", co.Pair))
	return nil
}

// GetPendingConditionalOrders returns pending conditional orders that have
// not yet expired. now is compared in unix seconds, the same reference the
// rows were written with; a null expiration never expires.
func (r *ConditionalOrderRepository) GetPendingConditionalOrders(network string, now time.Time) ([]model.ConditionalOrder, error) {
	rows, err := r.db.Query(`
		SELECT `+conditionalColumns+`
		FROM conditional_orders
		WHERE network = $1 AND status = $2 AND (expiration IS NULL OR expiration > $3)
		ORDER BY created_at
	`, network, model.ConditionalStatusPending, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to get pending conditional orders: %w", err)
	}
	defer rows.Close()

	var orders []model.ConditionalOrder
	for rows.Next() {
		co, err := scanConditionalOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conditional order: %w", err)
		}
		orders = append(orders, *co)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conditional orders: %w", err)
	}

	return orders, nil
}

func (r *ConditionalOrderRepository) GetConditionalOrderByID(id string) (*model.ConditionalOrder, error) {
	co, err := scanConditionalOrder(r.db.QueryRow(`
		SELECT `+conditionalColumns+`
		FROM conditional_orders
		WHERE id = $1
	`, id))

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conditional order: %w", err)
	}

	return co, nil
}

// ClaimTrigger atomically moves a conditional order from pending to
// triggered. It returns true only when this caller won the claim: the update
// is scoped by (id, network, status = 'pending') so the store's row-level
// atomicity guarantees at most one winner across processes.
func (r *ConditionalOrderRepository) ClaimTrigger(id, network string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE conditional_orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND network = $3 AND status = $4
	`, model.ConditionalStatusTriggered, id, network, model.ConditionalStatusPending)

	if err != nil {
		return false, fmt.Errorf("failed to claim trigger: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected == 1, nil
}

// SetResultingOrderID backfills the resulting order onto a triggered
// conditional order. Best effort; the caller treats failure as non-fatal.
func (r *ConditionalOrderRepository) SetResultingOrderID(id, orderID string) error {
	_, err := r.db.Exec(`
		UPDATE conditional_orders SET resulting_order_id = $1, updated_at = NOW()
		WHERE id = $2
	`, orderID, id)

	if err != nil {
		return fmt.Errorf("failed to set resulting order id: %w", err)
	}
	return nil
}

// CancelConditionalOrder moves a pending conditional order to cancelled.
// Returns rows affected; zero means it was already triggered, cancelled or
// expired.
func (r *ConditionalOrderRepository) CancelConditionalOrder(id string) (int64, error) {
	res, err := r.db.Exec(`
		UPDATE conditional_orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, model.ConditionalStatusCancelled, id, model.ConditionalStatusPending)

	if err != nil {
		return 0, fmt.Errorf("failed to cancel conditional order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected > 0 {
		r.logger.Info("Cancelled conditional order", zap.String("id", id))
	}
	return affected, nil
}
