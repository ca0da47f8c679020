package repository

import (
	"database/sql"
	"fmt"
	"math/big"

	"go.uber.org/zap"
	"swapbook/apps/swapbook/internal/model"
)

type OrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOrderRepository(db *sql.DB, logger *zap.Logger) *OrderRepository {
	return &OrderRepository{db: db, logger: logger}
}

const orderColumns = `order_id, network, maker, token_in, token_out, amount_in, amount_out_min, expiration, nonce, receiver, salt, signature, price, remaining, status, source, source_conditional_order_id, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*model.Order, error) {
	var order model.Order
	err := row.Scan(&order.OrderID, &order.Network, &order.Maker, &order.TokenIn, &order.TokenOut,
		&order.AmountIn, &order.AmountOutMin, &order.Expiration, &order.Nonce, &order.Receiver,
		&order.Salt, &order.Signature, &order.Price, &order.Remaining, &order.Status, &order.Source,
		&order.SourceConditionalOrderID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) CreateOrder(order model.Order) error {
	_, err := r.db.Exec(`
		INSERT INTO orders (order_id, network, maker, token_in, token_out, amount_in, amount_out_min, expiration, nonce, receiver, salt, signature, price, remaining, status, source, source_conditional_order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, order.OrderID, order.Network, order.Maker, order.TokenIn, order.TokenOut, order.AmountIn,
		order.AmountOutMin, order.Expiration, order.Nonce, order.Receiver, order.Salt, order.Signature,
		order.Price, order.Remaining, order.Status, order.Source, order.SourceConditionalOrderID)

	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Info("Created order",
		zap.String("order_id", order.OrderID),
		zap.String("network", order.Network),
		zap.String("maker", order.Maker),
		zap.String("status", order.Status),
		zap.String("source", order.Source))
	return nil
}

func (r *OrderRepository) GetOrderByID(network, orderID string) (*model.Order, error) {
	order, err := scanOrder(r.db.QueryRow(`
		SELECT `+orderColumns+`
		FROM orders
		WHERE network = $1 AND order_id = $2
	`, network, orderID))

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return order, nil
}

func (r *OrderRepository) GetOrdersByStatus(network, status string, limit int) ([]model.Order, error) {
	rows, err := r.db.Query(`
		SELECT `+orderColumns+`
		FROM orders
		WHERE network = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, network, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get orders by status: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// UpdateOrderStatus performs a conditional status transition scoped by the
// expected prior status. Returns the number of rows affected so callers can
// detect lost compare-and-swap races.
func (r *OrderRepository) UpdateOrderStatus(network, orderID, fromStatus, toStatus string) (int64, error) {
	res, err := r.db.Exec(`
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE network = $2 AND order_id = $3 AND status = $4
	`, toStatus, network, orderID, fromStatus)

	if err != nil {
		return 0, fmt.Errorf("failed to update order status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected > 0 {
		r.logger.Info("Updated order status",
			zap.String("order_id", orderID),
			zap.String("network", network),
			zap.String("status", toStatus))
	}
	return affected, nil
}

// ApplyFill decrements the remaining amount of an order and flips its status
// to filled when remaining reaches zero. fillAmount is a base-unit integer
// string.
func (r *OrderRepository) ApplyFill(network, orderID, fillAmount string) error {
	order, err := r.GetOrderByID(network, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return nil // not an order we track
	}

	remaining, ok := new(big.Int).SetString(order.Remaining, 10)
	if !ok {
		return fmt.Errorf("order %s has malformed remaining amount %q", orderID, order.Remaining)
	}
	fill, ok := new(big.Int).SetString(fillAmount, 10)
	if !ok {
		return fmt.Errorf("malformed fill amount %q for order %s", fillAmount, orderID)
	}

	remaining.Sub(remaining, fill)
	if remaining.Sign() < 0 {
		remaining.SetInt64(0)
	}

	status := order.Status
	if remaining.Sign() == 0 {
		status = model.OrderStatusFilled
	}

	_, err = r.db.Exec(`
		UPDATE orders SET remaining = $1, status = $2, updated_at = NOW()
		WHERE network = $3 AND order_id = $4
	`, remaining.String(), status, network, orderID)

	if err != nil {
		return fmt.Errorf("failed to apply fill: %w", err)
	}

	r.logger.Info("Applied fill",
		zap.String("order_id", orderID),
		zap.String("network", network),
		zap.String("fill_amount", fillAmount),
		zap.String("remaining", remaining.String()),
		zap.String("status", status))
	return nil
}

// UpdateOrderPrice writes the recomputed price of an adaptive order. Only the
// price column is touched.
func (r *OrderRepository) UpdateOrderPrice(network, orderID, price string) error {
	_, err := r.db.Exec(`
		UPDATE orders SET price = $1, updated_at = NOW()
		WHERE network = $2 AND order_id = $3
	`, price, network, orderID)

	if err != nil {
		return fmt.Errorf("failed to update order price: %w", err)
	}
	return nil
}

// CancelOrdersBelowNonce cancels all open orders of a maker whose nonce is
// below the given minimum. Used when the settlement contract reports a
// MinNonceUpdated event.
func (r *OrderRepository) CancelOrdersBelowNonce(network, maker string, minNonce uint64) (int64, error) {
	res, err := r.db.Exec(`
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE network = $2 AND LOWER(maker) = LOWER($3) AND nonce < $4 AND status = $5
	`, model.OrderStatusCancelled, network, maker, minNonce, model.OrderStatusOpen)

	if err != nil {
		return 0, fmt.Errorf("failed to cancel orders below nonce: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected > 0 {
		r.logger.Info("Cancelled orders below min nonce",
			zap.String("network", network),
			zap.String("maker", maker),
			zap.Uint64("min_nonce", minNonce),
			zap.Int64("count", affected))
	}
	return affected, nil
}
