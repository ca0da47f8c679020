package chain

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"swapbook/apps/swapbook/internal/config"
)

// Manager holds the connections that came up successfully. A network that
// exhausts its connection attempts is simply absent from the active set; the
// process keeps running with the networks it has.
type Manager struct {
	connections map[string]*Connection
	logger      *zap.Logger
}

// NewManager connects to all configured networks concurrently. Connection
// failures are logged per network and never fail the manager itself.
func NewManager(ctx context.Context, networks []config.NetworkConfig, logger *zap.Logger) *Manager {
	m := &Manager{
		connections: make(map[string]*Connection),
		logger:      logger,
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, cfg := range networks {
		wg.Add(1)
		go func(cfg config.NetworkConfig) {
			defer wg.Done()

			conn, err := Connect(ctx, cfg, logger)
			if err != nil {
				logger.Error("Network unavailable, continuing without it",
					zap.String("network", cfg.Name),
					zap.Error(err))
				return
			}

			mu.Lock()
			m.connections[cfg.Name] = conn
			mu.Unlock()
		}(cfg)
	}
	wg.Wait()

	logger.Info("Network manager ready",
		zap.Int("configured", len(networks)),
		zap.Int("connected", len(m.connections)))

	return m
}

// Get returns the live connection for a network, if it is in the active set.
func (m *Manager) Get(network string) (*Connection, bool) {
	conn, ok := m.connections[network]
	return conn, ok
}

// ActiveNetworks lists the names of connected networks.
func (m *Manager) ActiveNetworks() []string {
	names := make([]string, 0, len(m.connections))
	for name := range m.connections {
		names = append(names, name)
	}
	return names
}

func (m *Manager) Close() {
	for _, conn := range m.connections {
		conn.Close()
	}
}
