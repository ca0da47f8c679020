package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Engine is anything driven by the per-network tick: the trigger engine and
// the adaptive pricing engine both satisfy it.
type Engine interface {
	Run(ctx context.Context, network string) error
}

// Scheduler drives the trigger and pricing engines on a fixed interval, one
// goroutine per network. Networks tick independently; a slow or hung
// network never stalls the others.
type Scheduler struct {
	interval time.Duration
	engines  []namedEngine
	logger   *zap.Logger
	wg       sync.WaitGroup
}

type namedEngine struct {
	name   string
	engine Engine
}

func New(interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{interval: interval, logger: logger}
}

// Register adds an engine under a label used in tick logs. Engines run in
// registration order within a tick.
func (s *Scheduler) Register(name string, engine Engine) {
	s.engines = append(s.engines, namedEngine{name: name, engine: engine})
}

// Start launches one ticking goroutine per network and returns immediately.
func (s *Scheduler) Start(ctx context.Context, networks []string) {
	for _, network := range networks {
		s.wg.Add(1)
		go func(network string) {
			defer s.wg.Done()
			s.runNetwork(ctx, network)
		}(network)
	}
}

func (s *Scheduler) runNetwork(ctx context.Context, network string) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Scheduler started for network",
		zap.String("network", network),
		zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, e := range s.engines {
			if err := e.engine.Run(ctx, network); err != nil {
				if ctx.Err() != nil {
					return
				}
				// Tick errors are logged, never fatal; the next tick
				// re-evaluates from scratch.
				s.logger.Error("Engine tick failed",
					zap.String("network", network),
					zap.String("engine", e.name),
					zap.Error(err))
			}
		}
	}
}

// Wait blocks until all network goroutines exit.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
