package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"swapbook/apps/swapbook/internal/model"
)

type AdaptiveOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewAdaptiveOrderRepository(db *sql.DB, logger *zap.Logger) *AdaptiveOrderRepository {
	return &AdaptiveOrderRepository{db: db, logger: logger}
}

const adaptiveColumns = `order_id, network, pair, base_token, quote_token, curve_type, initial_price, current_price, min_price, max_price, slope, exponent, multiplier, step_config, max_deviation, total_inventory, sold_amount, avg_fill_price, created_at, updated_at`

func scanAdaptiveOrder(row interface{ Scan(...interface{}) error }) (*model.AdaptiveOrder, error) {
	var ao model.AdaptiveOrder
	err := row.Scan(&ao.OrderID, &ao.Network, &ao.Pair, &ao.BaseToken, &ao.QuoteToken,
		&ao.CurveType, &ao.InitialPrice, &ao.CurrentPrice, &ao.MinPrice, &ao.MaxPrice,
		&ao.Slope, &ao.Exponent, &ao.Multiplier, &ao.StepConfig, &ao.MaxDeviation,
		&ao.TotalInventory, &ao.SoldAmount, &ao.AvgFillPrice, &ao.CreatedAt, &ao.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ao, nil
}

func (r *AdaptiveOrderRepository) UpsertAdaptiveOrder(ao model.AdaptiveOrder) error {
	_, err := r.db.Exec(`
		INSERT INTO adaptive_orders (order_id, network, pair, base_token, quote_token, curve_type, initial_price, current_price, min_price, max_price, slope, exponent, multiplier, step_config, max_deviation, total_inventory, sold_amount, avg_fill_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (network, order_id) DO UPDATE SET
			curve_type = EXCLUDED.curve_type,
			current_price = EXCLUDED.current_price,
			min_price = EXCLUDED.min_price,
			max_price = EXCLUDED.max_price,
			slope = EXCLUDED.slope,
			exponent = EXCLUDED.exponent,
			multiplier = EXCLUDED.multiplier,
			step_config = EXCLUDED.step_config,
			max_deviation = EXCLUDED.max_deviation,
			total_inventory = EXCLUDED.total_inventory,
			sold_amount = EXCLUDED.sold_amount,
			updated_at = NOW()
	`, ao.OrderID, ao.Network, ao.Pair, ao.BaseToken, ao.QuoteToken, ao.CurveType,
		ao.InitialPrice, ao.CurrentPrice, ao.MinPrice, ao.MaxPrice, ao.Slope, ao.Exponent,
		ao.Multiplier, ao.StepConfig, ao.MaxDeviation, ao.TotalInventory, ao.SoldAmount,
		ao.AvgFillPrice)

	if err != nil {
		return fmt.Errorf("failed to upsert adaptive order: %w", err)
	}

	r.logger.Info("Upserted adaptive order",
		zap.String("order_id", ao.OrderID),
		zap.String("network", ao.Network),
		zap.String("curve_type", ao.CurveType))
	return nil
}

// GetActiveAdaptiveOrders returns adaptive orders whose underlying order is
// still open with remaining inventory.
func (r *AdaptiveOrderRepository) GetActiveAdaptiveOrders(network string) ([]model.AdaptiveOrder, error) {
	rows, err := r.db.Query(`
		SELECT a.order_id, a.network, a.pair, a.base_token, a.quote_token, a.curve_type, a.initial_price, a.current_price, a.min_price, a.max_price, a.slope, a.exponent, a.multiplier, a.step_config, a.max_deviation, a.total_inventory, a.sold_amount, a.avg_fill_price, a.created_at, a.updated_at
		FROM adaptive_orders a
		JOIN orders o ON o.network = a.network AND o.order_id = a.order_id
		WHERE a.network = $1 AND o.status = $2 AND o.remaining > 0
		ORDER BY a.created_at
	`, network, model.OrderStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to get active adaptive orders: %w", err)
	}
	defer rows.Close()

	var orders []model.AdaptiveOrder
	for rows.Next() {
		ao, err := scanAdaptiveOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan adaptive order: %w", err)
		}
		orders = append(orders, *ao)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating adaptive orders: %w", err)
	}

	return orders, nil
}

func (r *AdaptiveOrderRepository) GetAdaptiveOrderByID(network, orderID string) (*model.AdaptiveOrder, error) {
	ao, err := scanAdaptiveOrder(r.db.QueryRow(`
		SELECT `+adaptiveColumns+`
		FROM adaptive_orders
		WHERE network = $1 AND order_id = $2
	`, network, orderID))

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get adaptive order: %w", err)
	}

	return ao, nil
}

// UpdatePrice writes the recomputed current price and volume-weighted
// average fill price of an adaptive order.
func (r *AdaptiveOrderRepository) UpdatePrice(network, orderID string, price, avgFillPrice float64) error {
	_, err := r.db.Exec(`
		UPDATE adaptive_orders SET current_price = $1, avg_fill_price = $2, updated_at = NOW()
		WHERE network = $3 AND order_id = $4
	`, price, avgFillPrice, network, orderID)

	if err != nil {
		return fmt.Errorf("failed to update adaptive order price: %w", err)
	}
	return nil
}

// AddSoldAmount increments the cumulative sold amount after a fill.
func (r *AdaptiveOrderRepository) AddSoldAmount(network, orderID string, amount float64) error {
	_, err := r.db.Exec(`
		UPDATE adaptive_orders SET sold_amount = sold_amount + $1, updated_at = NOW()
		WHERE network = $2 AND order_id = $3
	`, amount, network, orderID)

	if err != nil {
		return fmt.Errorf("failed to add sold amount: %w", err)
	}
	return nil
}

// AppendPriceHistory records one analytics point. History rows are
// append-only and never mutated.
func (r *AdaptiveOrderRepository) AppendPriceHistory(entry model.PriceHistoryEntry) error {
	_, err := r.db.Exec(`
		INSERT INTO price_history (network, order_id, price, sold_amount)
		VALUES ($1, $2, $3, $4)
	`, entry.Network, entry.OrderID, entry.Price, entry.SoldAmount)

	if err != nil {
		return fmt.Errorf("failed to append price history: %w", err)
	}
	return nil
}

func (r *AdaptiveOrderRepository) GetPriceHistory(network, orderID string) ([]model.PriceHistoryEntry, error) {
	rows, err := r.db.Query(`
		SELECT id, network, order_id, price, sold_amount, created_at
		FROM price_history
		WHERE network = $1 AND order_id = $2
		ORDER BY created_at, id
	`, network, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get price history: %w", err)
	}
	defer rows.Close()

	var entries []model.PriceHistoryEntry
	for rows.Next() {
		var e model.PriceHistoryEntry
		if err := rows.Scan(&e.ID, &e.Network, &e.OrderID, &e.Price, &e.SoldAmount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price history entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price history: %w", err)
	}

	return entries, nil
}
