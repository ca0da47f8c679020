package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DbURL           string
	KafkaBroker     string
	KafkaTopic      string
	APIPort         int
	TickInterval    time.Duration
	NetworksFile    string
	Networks        []NetworkConfig
	MakerRewardRate float64
	TakerRewardRate float64
	MinRewardVolume float64
}

// NetworkConfig describes one blockchain network. Loaded from the networks
// YAML file; the signing key itself is read from the environment variable
// named by SigningKeyEnv so keys never live in the file.
type NetworkConfig struct {
	Name               string   `yaml:"name"`
	RpcURLs            []string `yaml:"rpc_urls"`
	ChainID            int64    `yaml:"chain_id"`
	SigningKeyEnv      string   `yaml:"signing_key_env"`
	SettlementContract string   `yaml:"settlement_contract"`
	ConnectAttempts    int      `yaml:"connect_attempts"`
	ConnectBaseDelayMs int      `yaml:"connect_base_delay_ms"`
	ConnectMaxDelayMs  int      `yaml:"connect_max_delay_ms"`
	RPCTimeoutMs       int      `yaml:"rpc_timeout_ms"`
	FinalityOffset     uint64   `yaml:"finality_offset"`
	ChunkSize          uint64   `yaml:"chunk_size"`
	Tokens             []TokenConfig `yaml:"tokens"`
}

// TokenConfig is the known-token metadata of one network, used for decimal
// conversion of on-chain amounts.
type TokenConfig struct {
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	Decimals int    `yaml:"decimals"`
}

// NewConfig loads configuration from environment variables and the networks
// YAML file.
func NewConfig() *Config {
	// Load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		DbURL:           getEnvOrFatal("DB_URL"),
		KafkaBroker:     getEnvOrFatal("KAFKA_BROKER"),
		KafkaTopic:      getEnvOrFatal("KAFKA_TOPIC"),
		APIPort:         getEnvInt("API_PORT", 8080),
		TickInterval:    time.Duration(getEnvInt("TICK_INTERVAL_SECONDS", 5)) * time.Second,
		NetworksFile:    getEnv("NETWORKS_FILE", "networks.yaml"),
		MakerRewardRate: getEnvFloat("MAKER_REWARD_RATE", 0.0002),
		TakerRewardRate: getEnvFloat("TAKER_REWARD_RATE", 0.0005),
		MinRewardVolume: getEnvFloat("MIN_REWARD_VOLUME", 100),
	}

	networks, err := LoadNetworks(cfg.NetworksFile)
	if err != nil {
		log.Fatalf("failed to load networks file %s: %v", cfg.NetworksFile, err)
	}
	cfg.Networks = networks

	return cfg
}

// LoadNetworks parses the per-network YAML file and applies defaults.
// A network entry without a name or RPC endpoint is a configuration error.
func LoadNetworks(path string) ([]NetworkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read networks file: %w", err)
	}

	var doc struct {
		Networks []NetworkConfig `yaml:"networks"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse networks file: %w", err)
	}

	for i := range doc.Networks {
		n := &doc.Networks[i]
		if n.Name == "" {
			return nil, fmt.Errorf("network entry %d has no name", i)
		}
		if len(n.RpcURLs) == 0 {
			return nil, fmt.Errorf("network %s has no rpc_urls", n.Name)
		}
		if n.ChainID <= 0 {
			return nil, fmt.Errorf("network %s has no chain_id", n.Name)
		}
		if n.ConnectAttempts <= 0 {
			n.ConnectAttempts = 5
		}
		if n.ConnectBaseDelayMs <= 0 {
			n.ConnectBaseDelayMs = 500
		}
		if n.ConnectMaxDelayMs <= 0 {
			n.ConnectMaxDelayMs = 30000
		}
		if n.RPCTimeoutMs <= 0 {
			n.RPCTimeoutMs = 10000
		}
		if n.ChunkSize == 0 {
			n.ChunkSize = 100
		}
		if n.FinalityOffset == 0 {
			n.FinalityOffset = 12
		}
	}

	return doc.Networks, nil
}

// SigningKey returns the hex private key for the network, or an empty string
// if it is not configured.
func (n *NetworkConfig) SigningKey() string {
	if n.SigningKeyEnv == "" {
		return ""
	}
	return os.Getenv(n.SigningKeyEnv)
}

func (n *NetworkConfig) ConnectBaseDelay() time.Duration {
	return time.Duration(n.ConnectBaseDelayMs) * time.Millisecond
}

func (n *NetworkConfig) ConnectMaxDelay() time.Duration {
	return time.Duration(n.ConnectMaxDelayMs) * time.Millisecond
}

func (n *NetworkConfig) RPCTimeout() time.Duration {
	return time.Duration(n.RPCTimeoutMs) * time.Millisecond
}

func getEnvOrFatal(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	log.Fatalf("environment variable %s not set", key)

	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
