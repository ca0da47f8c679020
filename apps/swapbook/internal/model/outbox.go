package model

import (
	"encoding/json"
	"time"
)

// Fill outbox statuses
const (
	OutboxStatusUnsent     = "unsent"
	OutboxStatusProcessing = "processing"
	OutboxStatusSent       = "sent"
)

type FillOutboxEvent struct {
	TxHash      string          `db:"tx_hash"`
	LogIndex    uint64          `db:"log_index"`
	Network     string          `db:"network"`
	EventType   string          `db:"event_type"`
	Status      string          `db:"status"`
	OrderID     string          `db:"order_id"`
	BlockNumber uint64          `db:"block_number"`
	Payload     json.RawMessage `db:"payload"`
	CreatedAt   time.Time       `db:"created_at"`
}
