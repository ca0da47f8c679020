package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"swapbook/apps/swapbook/internal/backoff"
	"swapbook/apps/swapbook/internal/config"
)

// SettlementViewABI covers the read-only views of the settlement contract
// consumed by this service. The contract's matching and signature
// verification stay on-chain.
const SettlementViewABI = `[
	{"type": "function", "name": "filledAmountIn", "stateMutability": "view",
		"inputs": [{"name": "orderHash", "type": "bytes32"}],
		"outputs": [{"name": "", "type": "uint256"}]},
	{"type": "function", "name": "cancelled", "stateMutability": "view",
		"inputs": [{"name": "orderHash", "type": "bytes32"}],
		"outputs": [{"name": "", "type": "bool"}]},
	{"type": "function", "name": "minNonce", "stateMutability": "view",
		"inputs": [{"name": "maker", "type": "address"}],
		"outputs": [{"name": "", "type": "uint256"}]}
]`

// Connection is a live, validated session with one blockchain network.
type Connection struct {
	Name               string
	ChainID            *big.Int
	Client             *ethclient.Client
	SigningKey         *ecdsa.PrivateKey
	SignerAddress      common.Address
	SettlementContract common.Address

	rpcTimeoutDur time.Duration
	viewABI       abi.ABI
	logger        *zap.Logger
}

// Connect establishes a connection to one network with bounded retries.
// A chain-id mismatch or a missing signing key is a permanent error and is
// never retried; transient dial failures back off exponentially. Each
// attempt uses a fresh client.
func Connect(ctx context.Context, cfg config.NetworkConfig, logger *zap.Logger) (*Connection, error) {
	keyHex := cfg.SigningKey()
	if keyHex == "" {
		return nil, fmt.Errorf("network %s: signing key not configured (env %s)", cfg.Name, cfg.SigningKeyEnv)
	}
	signingKey, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("network %s: invalid signing key: %w", cfg.Name, err)
	}

	viewABI, err := abi.JSON(strings.NewReader(SettlementViewABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse settlement view ABI: %w", err)
	}

	var client *ethclient.Client
	var chainID *big.Int

	err = backoff.Retry(ctx, cfg.ConnectAttempts, cfg.ConnectBaseDelay(), cfg.ConnectMaxDelay(), func() error {
		for _, url := range cfg.RpcURLs {
			c, cid, dialErr := dialAndVerify(ctx, url, cfg.ChainID, cfg.RPCTimeout())
			if dialErr == nil {
				client = c
				chainID = cid
				return nil
			}
			if backoff.IsPermanent(dialErr) {
				return dialErr
			}
			logger.Warn("RPC endpoint unreachable",
				zap.String("network", cfg.Name),
				zap.String("url", url),
				zap.Error(dialErr))
		}
		return fmt.Errorf("no reachable RPC endpoint for network %s", cfg.Name)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to network %s: %w", cfg.Name, err)
	}

	conn := &Connection{
		Name:               cfg.Name,
		ChainID:            chainID,
		Client:             client,
		SigningKey:         signingKey,
		SignerAddress:      crypto.PubkeyToAddress(signingKey.PublicKey),
		SettlementContract: common.HexToAddress(cfg.SettlementContract),
		viewABI:            viewABI,
		logger:             logger,
	}
	conn.rpcTimeoutDur = cfg.RPCTimeout()

	logger.Info("Connected to network",
		zap.String("network", cfg.Name),
		zap.String("chain_id", chainID.String()),
		zap.String("signer", conn.SignerAddress.Hex()))

	return conn, nil
}

// dialAndVerify opens a fresh session and checks the reported chain id. A
// mismatch is a misconfiguration, not transience, so it is marked permanent.
func dialAndVerify(ctx context.Context, url string, expectedChainID int64, rpcTimeout time.Duration) (*ethclient.Client, *big.Int, error) {
	dialCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	client, err := ethclient.DialContext(dialCtx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	idCtx, cancelID := context.WithTimeout(ctx, rpcTimeout)
	defer cancelID()

	chainID, err := client.ChainID(idCtx)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to query chain id from %s: %w", url, err)
	}

	if chainID.Int64() != expectedChainID {
		client.Close()
		return nil, nil, backoff.Permanent(
			fmt.Errorf("chain id mismatch on %s: expected %d, got %s", url, expectedChainID, chainID))
	}

	return client, chainID, nil
}

// Call runs op under the connection's RPC timeout. Every RPC invocation goes
// through here so a hung network cannot stall scheduler ticks.
func (c *Connection) Call(ctx context.Context, op func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, c.rpcTimeoutDur)
	defer cancel()
	return op(callCtx)
}

// FilledAmountIn reads the contract's filled amount for an order hash.
func (c *Connection) FilledAmountIn(ctx context.Context, orderHash common.Hash) (*big.Int, error) {
	var out *big.Int
	err := c.view(ctx, "filledAmountIn", []interface{}{orderHash}, func(results []interface{}) error {
		v, ok := results[0].(*big.Int)
		if !ok {
			return fmt.Errorf("unexpected filledAmountIn result type %T", results[0])
		}
		out = v
		return nil
	})
	return out, err
}

// Cancelled reads whether the contract marks an order hash cancelled.
func (c *Connection) Cancelled(ctx context.Context, orderHash common.Hash) (bool, error) {
	var out bool
	err := c.view(ctx, "cancelled", []interface{}{orderHash}, func(results []interface{}) error {
		v, ok := results[0].(bool)
		if !ok {
			return fmt.Errorf("unexpected cancelled result type %T", results[0])
		}
		out = v
		return nil
	})
	return out, err
}

// MinNonce reads the maker's minimum valid nonce from the contract.
func (c *Connection) MinNonce(ctx context.Context, maker common.Address) (*big.Int, error) {
	var out *big.Int
	err := c.view(ctx, "minNonce", []interface{}{maker}, func(results []interface{}) error {
		v, ok := results[0].(*big.Int)
		if !ok {
			return fmt.Errorf("unexpected minNonce result type %T", results[0])
		}
		out = v
		return nil
	})
	return out, err
}

func (c *Connection) view(ctx context.Context, method string, args []interface{}, decode func([]interface{}) error) error {
	data, err := c.viewABI.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	var raw []byte
	err = c.Call(ctx, func(callCtx context.Context) error {
		msg := ethereum.CallMsg{To: &c.SettlementContract, Data: data}
		var callErr error
		raw, callErr = c.Client.CallContract(callCtx, msg, nil)
		return callErr
	})
	if err != nil {
		return fmt.Errorf("%s call failed: %w", method, err)
	}

	results, err := c.viewABI.Unpack(method, raw)
	if err != nil {
		return fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	if len(results) == 0 {
		return fmt.Errorf("%s returned no results", method)
	}
	return decode(results)
}

func (c *Connection) Close() {
	if c.Client != nil {
		c.Client.Close()
	}
}
