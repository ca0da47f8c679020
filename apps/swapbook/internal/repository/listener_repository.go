package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"swapbook/apps/swapbook/internal/model"
)

// ListenerRepository tracks per-network scan checkpoints and the fill outbox
// that feeds the Kafka publisher.
type ListenerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewListenerRepository(db *sql.DB, logger *zap.Logger) *ListenerRepository {
	return &ListenerRepository{db: db, logger: logger}
}

func (r *ListenerRepository) GetLastProcessedBlock(network string) (uint64, error) {
	var block uint64
	err := r.db.QueryRow(`
		SELECT last_processed_block FROM listener_state WHERE network = $1
	`, network).Scan(&block)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	return block, err
}

func (r *ListenerRepository) UpdateLastProcessedBlock(network string, block uint64) error {
	_, err := r.db.Exec(`
		INSERT INTO listener_state (network, last_processed_block)
		VALUES ($1, $2)
		ON CONFLICT (network) DO UPDATE SET
			last_processed_block = EXCLUDED.last_processed_block,
			updated_at = NOW()
	`, network, block)
	return err
}

func (r *ListenerRepository) StoreFillEvent(event model.FillOutboxEvent) error {
	_, err := r.db.Exec(`
		INSERT INTO fill_outbox (tx_hash, log_index, network, event_type, status, order_id, block_number, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (network, tx_hash, log_index) DO NOTHING
	`, event.TxHash, event.LogIndex, event.Network, event.EventType, event.Status,
		event.OrderID, event.BlockNumber, event.Payload)

	if err != nil {
		return fmt.Errorf("failed to store fill event: %w", err)
	}

	r.logger.Info("Stored fill event",
		zap.String("network", event.Network),
		zap.String("event_type", event.EventType),
		zap.String("tx_hash", event.TxHash),
		zap.String("order_id", event.OrderID))
	return nil
}

// GetUnsentEventsForProcessing selects a batch of unsent outbox rows and
// marks them as processing inside one transaction. FOR UPDATE SKIP LOCKED
// keeps concurrent publisher instances off each other's batches.
func (r *ListenerRepository) GetUnsentEventsForProcessing(limit int) ([]model.FillOutboxEvent, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // Will be ignored if tx.Commit() succeeds

	rows, err := tx.Query(`
		SELECT tx_hash, log_index, network, event_type, status, order_id, block_number, payload, created_at
		FROM fill_outbox
		WHERE status = 'unsent'
		ORDER BY created_at, log_index
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.FillOutboxEvent
	for rows.Next() {
		var event model.FillOutboxEvent
		if err := rows.Scan(&event.TxHash, &event.LogIndex, &event.Network, &event.EventType,
			&event.Status, &event.OrderID, &event.BlockNumber, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	rows.Close()

	for _, event := range events {
		_, err = tx.Exec(`
			UPDATE fill_outbox
			SET status = 'processing', updated_at = NOW()
			WHERE network = $1 AND tx_hash = $2 AND log_index = $3 AND status = 'unsent'
		`, event.Network, event.TxHash, event.LogIndex)
		if err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return events, nil
}

func (r *ListenerRepository) MarkEventAsSent(network, txHash string, logIndex uint64) error {
	_, err := r.db.Exec(`
		UPDATE fill_outbox
		SET status = 'sent', updated_at = NOW()
		WHERE network = $1 AND tx_hash = $2 AND log_index = $3
	`, network, txHash, logIndex)
	return err
}

func (r *ListenerRepository) MarkEventAsFailed(network, txHash string, logIndex uint64) error {
	_, err := r.db.Exec(`
		UPDATE fill_outbox
		SET status = 'unsent', updated_at = NOW()
		WHERE network = $1 AND tx_hash = $2 AND log_index = $3 AND status = 'processing'
	`, network, txHash, logIndex)
	return err
}

// ReclaimStuckEvents returns rows stuck in 'processing' to 'unsent'. A crash
// between claiming a batch and marking its rows leaves them in 'processing'
// forever; anything older than the given age cannot still be in flight.
func (r *ListenerRepository) ReclaimStuckEvents(olderThan time.Duration) (int64, error) {
	res, err := r.db.Exec(`
		UPDATE fill_outbox
		SET status = 'unsent', updated_at = NOW()
		WHERE status = 'processing' AND updated_at < NOW() - ($1 * INTERVAL '1 second')
	`, int64(olderThan.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stuck outbox events: %w", err)
	}
	return res.RowsAffected()
}
