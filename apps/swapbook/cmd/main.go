package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"swapbook/apps/swapbook/internal/api"
	"swapbook/apps/swapbook/internal/chain"
	"swapbook/apps/swapbook/internal/config"
	"swapbook/apps/swapbook/internal/fills"
	"swapbook/apps/swapbook/internal/listener"
	"swapbook/apps/swapbook/internal/oracle"
	"swapbook/apps/swapbook/internal/pricing"
	"swapbook/apps/swapbook/internal/repository"
	"swapbook/apps/swapbook/internal/scheduler"
	"swapbook/apps/swapbook/internal/tokens"
	"swapbook/apps/swapbook/internal/trigger"
)

func main() {
	// Initialize zap logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	// Load configuration from environment variables and the networks file
	cfg := config.NewConfig()

	logger.Info("Starting application with configuration",
		zap.String("db_url", cfg.DbURL),
		zap.String("kafka_broker", cfg.KafkaBroker),
		zap.String("kafka_topic", cfg.KafkaTopic),
		zap.Int("api_port", cfg.APIPort),
		zap.Duration("tick_interval", cfg.TickInterval),
		zap.Int("networks", len(cfg.Networks)),
	)

	// Connect to database
	db, err := sql.Open("postgres", cfg.DbURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Initialize database tables
	if err := repository.InitMigration(db); err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	orderRepository := repository.NewOrderRepository(db, logger)
	conditionalRepository := repository.NewConditionalOrderRepository(db, logger)
	adaptiveRepository := repository.NewAdaptiveOrderRepository(db, logger)
	tradeRepository := repository.NewTradeRepository(db, logger)
	listenerRepository := repository.NewListenerRepository(db, logger)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to all configured networks; the process keeps running with
	// whichever subset comes up.
	manager := chain.NewManager(rootCtx, cfg.Networks, logger)
	defer manager.Close()

	if len(manager.ActiveNetworks()) == 0 {
		logger.Warn("No networks connected; trigger and pricing engines will be idle")
	}

	// Market price oracle shared by the trigger and pricing engines
	priceOracle := oracle.New(tradeRepository, 10*time.Second, time.Now, logger)

	// Engines driven by the scheduler tick
	triggerEngine := trigger.NewEngine(conditionalRepository, orderRepository, priceOracle, time.Now, logger)
	pricingEngine := pricing.NewEngine(adaptiveRepository, orderRepository, priceOracle, logger)

	sched := scheduler.New(cfg.TickInterval, logger)
	sched.Register("trigger", triggerEngine)
	sched.Register("pricing", pricingEngine)
	sched.Start(rootCtx, manager.ActiveNetworks())

	// Fill publisher drains the outbox to Kafka
	publisher, err := fills.NewPublisher(cfg.KafkaBroker, cfg.KafkaTopic, logger, listenerRepository)
	if err != nil {
		logger.Fatal("Failed to create fill publisher", zap.Error(err))
	}
	defer publisher.Close()
	go publisher.StartPublishing(rootCtx)

	// One settlement event listener per connected network. A listener that
	// fails to start must not block listeners on other networks.
	for _, netCfg := range cfg.Networks {
		conn, ok := manager.Get(netCfg.Name)
		if !ok {
			continue
		}

		registry := tokens.RegistryFromConfig(netCfg.Tokens)
		l, err := listener.NewListener(conn, netCfg, registry, listenerRepository,
			tradeRepository, orderRepository, adaptiveRepository, logger)
		if err != nil {
			logger.Error("Failed to create settlement listener",
				zap.String("network", netCfg.Name),
				zap.Error(err))
			continue
		}

		go func(name string) {
			if err := l.Start(rootCtx); err != nil && rootCtx.Err() == nil {
				logger.Error("Settlement listener stopped",
					zap.String("network", name),
					zap.Error(err))
			}
		}(netCfg.Name)
	}

	// Create and start API server
	apiServer := api.NewServer(cfg.APIPort, orderRepository, conditionalRepository, adaptiveRepository, logger)
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	<-sigChan
	logger.Info("Received shutdown signal, starting graceful shutdown...")
	cancel()

	// Create a context with timeout for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown API server gracefully
	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error shutting down API server", zap.Error(err))
	}

	sched.Wait()
	logger.Info("Application shutdown complete")
}
