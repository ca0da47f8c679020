package events

import (
	"encoding/json"
	"time"
)

// FillEvent is the wire shape published to Kafka for every settlement fill
// or match observed on-chain.
type FillEvent struct {
	EventType   string          `json:"event_type"`
	Network     string          `json:"network"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	BlockNumber uint64          `json:"block_number"`
	OrderID     string          `json:"order_id"`
	EventData   json.RawMessage `json:"event_data"`
	Timestamp   time.Time       `json:"timestamp"`
}
