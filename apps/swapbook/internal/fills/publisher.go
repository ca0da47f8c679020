package fills

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"
	"swapbook/apps/swapbook/internal/events"
	"swapbook/apps/swapbook/internal/model"
)

// stuckEventAge is how long a row may sit in 'processing' before it is
// considered orphaned by a crashed publisher and returned to the queue.
const stuckEventAge = 5 * time.Minute

// OutboxStore is the outbox side of the fill publisher.
type OutboxStore interface {
	GetUnsentEventsForProcessing(limit int) ([]model.FillOutboxEvent, error)
	MarkEventAsSent(network, txHash string, logIndex uint64) error
	MarkEventAsFailed(network, txHash string, logIndex uint64) error
	ReclaimStuckEvents(olderThan time.Duration) (int64, error)
}

// Publisher drains the fill outbox to Kafka so downstream consumers (the
// reward system, client notification services) see every settlement fill.
type Publisher struct {
	logger        *zap.Logger
	kafkaProducer *kafka.Producer
	kafkaTopic    string
	repository    OutboxStore
	mu            sync.Mutex // Protects concurrent access to publishing operations
}

func NewPublisher(kafkaBroker, kafkaTopic string, logger *zap.Logger, repository OutboxStore) (*Publisher, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": kafkaBroker,
		"acks":              "all",
		"retries":           3,
		"retry.backoff.ms":  100,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &Publisher{
		logger:        logger,
		kafkaProducer: producer,
		kafkaTopic:    kafkaTopic,
		repository:    repository,
	}, nil
}

// StartPublishing drains the outbox on a fixed interval until ctx is
// cancelled.
func (p *Publisher) StartPublishing(ctx context.Context) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := p.publishUnsentEvents(); err != nil {
			p.logger.Error("Error publishing fill events to Kafka", zap.Error(err))
		}
	}
}

func (p *Publisher) publishUnsentEvents() error {
	// Only one publishing operation at a time per instance; concurrent
	// instances are kept apart by the repository's SKIP LOCKED batch.
	p.mu.Lock()
	defer p.mu.Unlock()

	reclaimed, err := p.repository.ReclaimStuckEvents(stuckEventAge)
	if err != nil {
		p.logger.Error("Failed to reclaim stuck fill events", zap.Error(err))
	} else if reclaimed > 0 {
		p.logger.Warn("Reclaimed fill events stuck in processing",
			zap.Int64("count", reclaimed))
	}

	outboxEvents, err := p.repository.GetUnsentEventsForProcessing(100)
	if err != nil {
		return err
	}

	successCount := 0
	for _, event := range outboxEvents {
		if err := p.publishEventToKafka(event); err != nil {
			p.logger.Error("Failed to publish fill event to Kafka",
				zap.String("tx_hash", event.TxHash),
				zap.String("event_type", event.EventType),
				zap.Error(err))
			// Mark as failed (returns status to 'unsent' for retry)
			if markErr := p.repository.MarkEventAsFailed(event.Network, event.TxHash, event.LogIndex); markErr != nil {
				p.logger.Error("Failed to mark fill event as failed",
					zap.String("tx_hash", event.TxHash),
					zap.Uint64("log_index", event.LogIndex),
					zap.Error(markErr))
			}
			continue
		}

		if err := p.repository.MarkEventAsSent(event.Network, event.TxHash, event.LogIndex); err != nil {
			p.logger.Error("Failed to mark fill event as sent",
				zap.String("tx_hash", event.TxHash),
				zap.Uint64("log_index", event.LogIndex),
				zap.Error(err))
			// Event was published but marking failed - may lead to a duplicate send
		} else {
			successCount++
		}
	}

	if successCount > 0 {
		p.logger.Info("Published fill events to Kafka",
			zap.Int("success_count", successCount),
			zap.Int("attempted", len(outboxEvents)))
	}

	return nil
}

func (p *Publisher) publishEventToKafka(event model.FillOutboxEvent) error {
	kafkaMsg := events.FillEvent{
		EventType:   event.EventType,
		Network:     event.Network,
		TxHash:      event.TxHash,
		LogIndex:    event.LogIndex,
		BlockNumber: event.BlockNumber,
		OrderID:     event.OrderID,
		EventData:   event.Payload,
		Timestamp:   time.Now(),
	}

	msgBytes, err := json.Marshal(kafkaMsg)
	if err != nil {
		return err
	}

	deliveryChan := make(chan kafka.Event)
	defer close(deliveryChan)

	err = p.kafkaProducer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.kafkaTopic, Partition: kafka.PartitionAny},
		Key:            []byte(event.OrderID), // order hash keys keep one order's fills in sequence
		Value:          msgBytes,
	}, deliveryChan)

	if err != nil {
		return err
	}

	// Wait for delivery confirmation
	e := <-deliveryChan
	switch ev := e.(type) {
	case *kafka.Message:
		if ev.TopicPartition.Error != nil {
			return ev.TopicPartition.Error
		}
		return nil
	default:
		return fmt.Errorf("unexpected kafka event type: %T", e)
	}
}

func (p *Publisher) Close() error {
	if p.kafkaProducer != nil {
		p.kafkaProducer.Close()
	}
	return nil
}
