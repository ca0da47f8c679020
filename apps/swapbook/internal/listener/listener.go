package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"swapbook/apps/swapbook/internal/chain"
	"swapbook/apps/swapbook/internal/config"
	"swapbook/apps/swapbook/internal/model"
	"swapbook/apps/swapbook/internal/tokens"
)

const SettlementEventABI = `[
	{
		"type": "event",
		"name": "Matched",
		"inputs": [
			{"internalType": "bytes32", "name": "buyOrderHash", "type": "bytes32", "indexed": true},
			{"internalType": "bytes32", "name": "sellOrderHash", "type": "bytes32", "indexed": true},
			{"internalType": "address", "name": "matcher", "type": "address", "indexed": true},
			{"internalType": "uint256", "name": "amountBase", "type": "uint256", "indexed": false},
			{"internalType": "uint256", "name": "amountQuote", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "OrderFilled",
		"inputs": [
			{"internalType": "bytes32", "name": "orderHash", "type": "bytes32", "indexed": true},
			{"internalType": "address", "name": "maker", "type": "address", "indexed": true},
			{"internalType": "address", "name": "taker", "type": "address", "indexed": true},
			{"internalType": "address", "name": "tokenIn", "type": "address", "indexed": false},
			{"internalType": "address", "name": "tokenOut", "type": "address", "indexed": false},
			{"internalType": "uint256", "name": "amountIn", "type": "uint256", "indexed": false},
			{"internalType": "uint256", "name": "amountOut", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "OrderCancelled",
		"inputs": [
			{"internalType": "bytes32", "name": "orderHash", "type": "bytes32", "indexed": true},
			{"internalType": "address", "name": "maker", "type": "address", "indexed": true}
		]
	},
	{
		"type": "event",
		"name": "MinNonceUpdated",
		"inputs": [
			{"internalType": "address", "name": "maker", "type": "address", "indexed": true},
			{"internalType": "uint256", "name": "newMinNonce", "type": "uint256", "indexed": false}
		]
	}
]`

// Event signatures
var (
	MatchedEventSig         = crypto.Keccak256Hash([]byte("Matched(bytes32,bytes32,address,uint256,uint256)"))
	OrderFilledEventSig     = crypto.Keccak256Hash([]byte("OrderFilled(bytes32,address,address,address,address,uint256,uint256)"))
	OrderCancelledEventSig  = crypto.Keccak256Hash([]byte("OrderCancelled(bytes32,address)"))
	MinNonceUpdatedEventSig = crypto.Keccak256Hash([]byte("MinNonceUpdated(address,uint256)"))
)

// ScanStateStore tracks per-network scan checkpoints and the fill outbox.
type ScanStateStore interface {
	GetLastProcessedBlock(network string) (uint64, error)
	UpdateLastProcessedBlock(network string, block uint64) error
	StoreFillEvent(event model.FillOutboxEvent) error
}

// TradeStore records observed fills. InsertTrade reports whether the row was
// newly written; a false result means the event was already processed and its
// downstream bookkeeping must not run again.
type TradeStore interface {
	InsertTrade(trade model.Trade) (bool, error)
}

// OrderStore applies settlement outcomes to resting orders.
type OrderStore interface {
	ApplyFill(network, orderID, fillAmount string) error
	UpdateOrderStatus(network, orderID, fromStatus, toStatus string) (int64, error)
	CancelOrdersBelowNonce(network, maker string, minNonce uint64) (int64, error)
}

// AdaptiveStore keeps adaptive-order inventory in sync with fills.
type AdaptiveStore interface {
	GetAdaptiveOrderByID(network, orderID string) (*model.AdaptiveOrder, error)
	AddSoldAmount(network, orderID string, amount float64) error
}

// Listener scans one network's settlement contract for match and fill
// events, reconciling local order state and feeding the trade table the
// oracle reads from. It performs no business logic of its own.
type Listener struct {
	conn          *chain.Connection
	cfg           config.NetworkConfig
	logger        *zap.Logger
	settlementABI abi.ABI
	registry      *tokens.Registry
	limiter       *rate.Limiter

	scanState ScanStateStore
	trades    TradeStore
	orders    OrderStore
	adaptive  AdaptiveStore
}

func NewListener(
	conn *chain.Connection,
	cfg config.NetworkConfig,
	registry *tokens.Registry,
	scanState ScanStateStore,
	trades TradeStore,
	orders OrderStore,
	adaptive AdaptiveStore,
	logger *zap.Logger) (*Listener, error) {

	parsedABI, err := abi.JSON(strings.NewReader(SettlementEventABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse settlement event ABI: %w", err)
	}

	return &Listener{
		conn:          conn,
		cfg:           cfg,
		logger:        logger,
		settlementABI: parsedABI,
		registry:      registry,
		// At most 10 chunk scans per second so bursts of backlog never
		// hammer the RPC endpoint.
		limiter:   rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		scanState: scanState,
		trades:    trades,
		orders:    orders,
		adaptive:  adaptive,
	}, nil
}

// Start runs the scanning loop until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	l.logger.Info("Starting settlement event listener",
		zap.String("network", l.conn.Name),
		zap.String("contract", l.conn.SettlementContract.Hex()))

	ticker := time.NewTicker(12 * time.Second)
	defer ticker.Stop()

	lastProcessedBlock, err := l.scanState.GetLastProcessedBlock(l.conn.Name)
	if err != nil {
		return fmt.Errorf("failed to get last processed block: %w", err)
	}

	l.logger.Info("Starting from block",
		zap.String("network", l.conn.Name),
		zap.Uint64("block", lastProcessedBlock))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		var latestBlock uint64
		err := l.conn.Call(ctx, func(callCtx context.Context) error {
			var blockErr error
			latestBlock, blockErr = l.conn.Client.BlockNumber(callCtx)
			return blockErr
		})
		if err != nil {
			l.logger.Error("Error getting latest block",
				zap.String("network", l.conn.Name),
				zap.Error(err))
			continue
		}

		if latestBlock < l.cfg.FinalityOffset {
			continue
		}
		safeBlock := latestBlock - l.cfg.FinalityOffset
		if safeBlock <= lastProcessedBlock {
			continue
		}

		done, err := l.processBlockRange(ctx, lastProcessedBlock+1, safeBlock)
		// Chunks that completed before a failure stay completed: forgetting
		// them here would rescan their events on the next tick.
		lastProcessedBlock = done
		if err != nil {
			l.logger.Error("Error processing blocks",
				zap.String("network", l.conn.Name),
				zap.Uint64("resume_from", done+1),
				zap.Uint64("end", safeBlock),
				zap.Error(err))
		}
	}
}

// processBlockRange scans [fromBlock, toBlock] in chunks and returns the last
// block of the final chunk that completed, so the caller resumes after it
// even when a later chunk failed.
func (l *Listener) processBlockRange(ctx context.Context, fromBlock, toBlock uint64) (uint64, error) {
	chunkSize := l.cfg.ChunkSize
	done := fromBlock - 1

	for start := fromBlock; start <= toBlock; start += chunkSize {
		end := start + chunkSize - 1
		if end > toBlock {
			end = toBlock
		}

		if err := l.limiter.Wait(ctx); err != nil {
			return done, err
		}

		l.logger.Info("Scanning block range for settlement events",
			zap.String("network", l.conn.Name),
			zap.Uint64("start", start),
			zap.Uint64("end", end))

		if err := l.processSettlementEvents(ctx, start, end); err != nil {
			return done, fmt.Errorf("failed to process chunk %d-%d: %w", start, end, err)
		}
		done = end

		// Checkpoint after each chunk so a crash never rescans far back. A
		// failed checkpoint write only widens the restart rescan window;
		// in-process progress is tracked by the return value.
		if err := l.scanState.UpdateLastProcessedBlock(l.conn.Name, end); err != nil {
			l.logger.Error("Error updating last processed block after chunk",
				zap.String("network", l.conn.Name),
				zap.Uint64("end", end),
				zap.Error(err))
		}
	}

	return done, nil
}

func (l *Listener) processSettlementEvents(ctx context.Context, fromBlock, toBlock uint64) error {
	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(int64(fromBlock)),
		ToBlock:   big.NewInt(int64(toBlock)),
		Addresses: []common.Address{l.conn.SettlementContract},
		Topics: [][]common.Hash{
			{MatchedEventSig, OrderFilledEventSig, OrderCancelledEventSig, MinNonceUpdatedEventSig},
		},
	}

	var logs []types.Log
	err := l.conn.Call(ctx, func(callCtx context.Context) error {
		var filterErr error
		logs, filterErr = l.conn.Client.FilterLogs(callCtx, query)
		return filterErr
	})
	if err != nil {
		return fmt.Errorf("failed to filter logs: %w", err)
	}

	for _, eventLog := range logs {
		if err := l.processSettlementEvent(ctx, eventLog); err != nil {
			// A malformed event must not abort the rest of the chunk.
			l.logger.Error("Error processing settlement event",
				zap.String("network", l.conn.Name),
				zap.String("tx_hash", eventLog.TxHash.Hex()),
				zap.Error(err))
		}
	}

	return nil
}

func (l *Listener) processSettlementEvent(ctx context.Context, eventLog types.Log) error {
	var blockTime time.Time
	err := l.conn.Call(ctx, func(callCtx context.Context) error {
		header, headerErr := l.conn.Client.HeaderByNumber(callCtx, big.NewInt(int64(eventLog.BlockNumber)))
		if headerErr != nil {
			return headerErr
		}
		blockTime = time.Unix(int64(header.Time), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to get block header: %w", err)
	}

	switch eventLog.Topics[0] {
	case OrderFilledEventSig:
		return l.processOrderFilledEvent(eventLog, blockTime)
	case MatchedEventSig:
		return l.processMatchedEvent(eventLog)
	case OrderCancelledEventSig:
		return l.processOrderCancelledEvent(eventLog)
	case MinNonceUpdatedEventSig:
		return l.processMinNonceUpdatedEvent(eventLog)
	}

	return nil
}

func (l *Listener) processOrderFilledEvent(eventLog types.Log, blockTime time.Time) error {
	var eventData struct {
		TokenIn   common.Address
		TokenOut  common.Address
		AmountIn  *big.Int
		AmountOut *big.Int
	}

	if err := l.settlementABI.UnpackIntoInterface(&eventData, "OrderFilled", eventLog.Data); err != nil {
		return fmt.Errorf("failed to unpack OrderFilled event data: %w", err)
	}
	if len(eventLog.Topics) < 4 {
		return fmt.Errorf("OrderFilled event with %d topics", len(eventLog.Topics))
	}

	orderHash := eventLog.Topics[1]
	maker := common.BytesToAddress(eventLog.Topics[2].Bytes())
	taker := common.BytesToAddress(eventLog.Topics[3].Bytes())

	if eventData.AmountIn == nil || eventData.AmountIn.Sign() <= 0 {
		return fmt.Errorf("OrderFilled event with zero amountIn in tx %s", eventLog.TxHash.Hex())
	}

	price := fillPrice(eventData.AmountIn, eventData.AmountOut,
		l.registry.Decimals(eventData.TokenIn), l.registry.Decimals(eventData.TokenOut))

	trade := model.Trade{
		Network:     l.conn.Name,
		TxHash:      eventLog.TxHash.Hex(),
		LogIndex:    uint64(eventLog.Index),
		BlockNumber: eventLog.BlockNumber,
		BaseToken:   strings.ToLower(eventData.TokenIn.Hex()),
		QuoteToken:  strings.ToLower(eventData.TokenOut.Hex()),
		Pair:        model.PairKey(eventData.TokenIn.Hex(), eventData.TokenOut.Hex()),
		AmountBase:  eventData.AmountIn.String(),
		AmountQuote: eventData.AmountOut.String(),
		Price:       price,
		Maker:       strings.ToLower(maker.Hex()),
		Taker:       strings.ToLower(taker.Hex()),
		CreatedAt:   blockTime,
	}
	inserted, err := l.trades.InsertTrade(trade)
	if err != nil {
		return err
	}
	if !inserted {
		// Already recorded: this chunk was checkpointed on an earlier pass
		// and is being rescanned. The fill bookkeeping below is not
		// idempotent, so it must run exactly once per trade row.
		return nil
	}

	if err := l.orders.ApplyFill(l.conn.Name, orderHash.Hex(), eventData.AmountIn.String()); err != nil {
		l.logger.Error("Failed to apply fill to order",
			zap.String("network", l.conn.Name),
			zap.String("order_id", orderHash.Hex()),
			zap.Error(err))
	}

	// Keep adaptive inventory in sync when the filled order is adaptive.
	ao, err := l.adaptive.GetAdaptiveOrderByID(l.conn.Name, orderHash.Hex())
	if err != nil {
		l.logger.Error("Failed to look up adaptive order for fill",
			zap.String("order_id", orderHash.Hex()),
			zap.Error(err))
	} else if ao != nil {
		sold, parseErr := decimalAmount(eventData.AmountIn, l.registry.Decimals(eventData.TokenIn))
		if parseErr != nil {
			l.logger.Error("Failed to convert fill amount",
				zap.String("order_id", orderHash.Hex()),
				zap.Error(parseErr))
		} else if err := l.adaptive.AddSoldAmount(l.conn.Name, orderHash.Hex(), sold); err != nil {
			l.logger.Error("Failed to add sold amount",
				zap.String("order_id", orderHash.Hex()),
				zap.Error(err))
		}
	}

	payload, err := json.Marshal(map[string]interface{}{
		"order_hash": orderHash.Hex(),
		"maker":      maker.Hex(),
		"taker":      taker.Hex(),
		"token_in":   eventData.TokenIn.Hex(),
		"token_out":  eventData.TokenOut.Hex(),
		"amount_in":  eventData.AmountIn.String(),
		"amount_out": eventData.AmountOut.String(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal fill payload: %w", err)
	}

	return l.scanState.StoreFillEvent(model.FillOutboxEvent{
		TxHash:      eventLog.TxHash.Hex(),
		LogIndex:    uint64(eventLog.Index),
		Network:     l.conn.Name,
		EventType:   "order_filled",
		Status:      model.OutboxStatusUnsent,
		OrderID:     orderHash.Hex(),
		BlockNumber: eventLog.BlockNumber,
		Payload:     payload,
	})
}

func (l *Listener) processMatchedEvent(eventLog types.Log) error {
	var eventData struct {
		AmountBase  *big.Int
		AmountQuote *big.Int
	}

	if err := l.settlementABI.UnpackIntoInterface(&eventData, "Matched", eventLog.Data); err != nil {
		return fmt.Errorf("failed to unpack Matched event data: %w", err)
	}
	if len(eventLog.Topics) < 4 {
		return fmt.Errorf("Matched event with %d topics", len(eventLog.Topics))
	}

	buyOrderHash := eventLog.Topics[1]
	sellOrderHash := eventLog.Topics[2]
	matcher := common.BytesToAddress(eventLog.Topics[3].Bytes())

	l.logger.Info("Found Matched event",
		zap.String("network", l.conn.Name),
		zap.String("tx_hash", eventLog.TxHash.Hex()),
		zap.String("buy_order", buyOrderHash.Hex()),
		zap.String("sell_order", sellOrderHash.Hex()))

	payload, err := json.Marshal(map[string]interface{}{
		"buy_order_hash":  buyOrderHash.Hex(),
		"sell_order_hash": sellOrderHash.Hex(),
		"matcher":         matcher.Hex(),
		"amount_base":     eventData.AmountBase.String(),
		"amount_quote":    eventData.AmountQuote.String(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal match payload: %w", err)
	}

	return l.scanState.StoreFillEvent(model.FillOutboxEvent{
		TxHash:      eventLog.TxHash.Hex(),
		LogIndex:    uint64(eventLog.Index),
		Network:     l.conn.Name,
		EventType:   "matched",
		Status:      model.OutboxStatusUnsent,
		OrderID:     buyOrderHash.Hex(),
		BlockNumber: eventLog.BlockNumber,
		Payload:     payload,
	})
}

func (l *Listener) processOrderCancelledEvent(eventLog types.Log) error {
	if len(eventLog.Topics) < 3 {
		return fmt.Errorf("OrderCancelled event with %d topics", len(eventLog.Topics))
	}
	orderHash := eventLog.Topics[1]

	affected, err := l.orders.UpdateOrderStatus(l.conn.Name, orderHash.Hex(),
		model.OrderStatusOpen, model.OrderStatusCancelled)
	if err != nil {
		return err
	}
	if affected == 0 {
		// Not an order we track, or already terminal.
		return nil
	}

	l.logger.Info("Order cancelled on-chain",
		zap.String("network", l.conn.Name),
		zap.String("order_id", orderHash.Hex()))
	return nil
}

func (l *Listener) processMinNonceUpdatedEvent(eventLog types.Log) error {
	var eventData struct {
		NewMinNonce *big.Int
	}

	if err := l.settlementABI.UnpackIntoInterface(&eventData, "MinNonceUpdated", eventLog.Data); err != nil {
		return fmt.Errorf("failed to unpack MinNonceUpdated event data: %w", err)
	}
	if len(eventLog.Topics) < 2 {
		return fmt.Errorf("MinNonceUpdated event with %d topics", len(eventLog.Topics))
	}

	maker := common.BytesToAddress(eventLog.Topics[1].Bytes())

	_, err := l.orders.CancelOrdersBelowNonce(l.conn.Name, maker.Hex(), eventData.NewMinNonce.Uint64())
	return err
}

// fillPrice derives the executed price (quote per base) from the raw fill
// amounts, adjusting for token decimals.
func fillPrice(amountIn, amountOut *big.Int, decimalsIn, decimalsOut int) float64 {
	if amountIn == nil || amountOut == nil || amountIn.Sign() <= 0 {
		return 0
	}

	in := new(big.Float).SetInt(amountIn)
	out := new(big.Float).SetInt(amountOut)

	scaleIn := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimalsIn)), nil))
	scaleOut := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimalsOut)), nil))

	in.Quo(in, scaleIn)
	out.Quo(out, scaleOut)

	price, _ := new(big.Float).Quo(out, in).Float64()
	return price
}

func decimalAmount(amount *big.Int, decimals int) (float64, error) {
	if amount == nil {
		return 0, fmt.Errorf("nil amount")
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := new(big.Float).Quo(new(big.Float).SetInt(amount), scale).Float64()
	return out, nil
}
