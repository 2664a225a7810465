package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/trigg3rX/pumpkit-operator/internal/operator"
	"github.com/trigg3rX/pumpkit-operator/internal/operator/api"
	"github.com/trigg3rX/pumpkit-operator/internal/operator/config"
	"github.com/trigg3rX/pumpkit-operator/internal/operator/events"
	"github.com/trigg3rX/pumpkit-operator/internal/operator/ledger"
	"github.com/trigg3rX/pumpkit-operator/internal/operator/oracle"
	"github.com/trigg3rX/pumpkit-operator/internal/operator/responder"
	"github.com/trigg3rX/pumpkit-operator/pkg/logging"
)

const apiShutdownTimeout = 5 * time.Second

func runOperator(c *cli.Context) error {
	if err := config.Init(); err != nil {
		return err
	}
	logger, err := newLogger(logging.OperatorProcess)
	if err != nil {
		return err
	}
	defer logging.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting PumpKit operator ...")

	n, err := newNode(ctx, logger, config.IsRegisterOnStartup())
	if err != nil {
		logger.Fatal("Failed to initialize operator", "error", err)
	}
	defer n.Close()
	logger.Info("[1/5] Chain client and signer initialized", "chain_id", n.chainID.String())

	if err := n.collector.Start(); err != nil {
		logger.Warn("Failed to start metrics jobs", "error", err)
	}

	if err := n.coordinator.Run(ctx); err != nil {
		logger.Fatal("Operator registration failed", "error", err)
	}
	logger.Info("[2/5] Operator registered", "operator", n.operator.Address().Hex())

	taskLedger, err := newLedger(logger)
	if err != nil {
		logger.Fatal("Failed to initialize task ledger", "error", err)
	}
	defer taskLedger.Close()
	logger.Info("[3/5] Task ledger initialized", "backend", config.GetLedgerBackend())

	composer, err := oracle.NewComposer(oracle.Config{
		BaseURL:         config.GetOracleURL(),
		EligibilityPath: config.GetOracleEligibilityPath(),
		DetailsPath:     config.GetOracleDetailsPath(),
		Timeout:         config.GetOracleTimeout(),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize oracle client", "error", err)
	}
	defer composer.Close()

	taskResponder := responder.NewTaskResponder(config.GetServiceManagerAddress(), composer, n.signer, n.gateway, logger)
	dispatcher := operator.NewDispatcher(n.operator, taskResponder, taskLedger, operator.DispatcherConfig{
		MaxConcurrentTasks: config.GetMaxConcurrentTasks(),
		TaskTimeout:        config.GetTaskTimeout(),
		ShutdownTimeout:    config.GetShutdownTimeout(),
	}, logger).WithMetrics(n.metrics)
	logger.Info("[4/5] Task responder initialized", "oracle", config.GetOracleURL())

	watcherConfig := events.DefaultConfig()
	watcherConfig.ServiceManager = config.GetServiceManagerAddress()
	watcherConfig.StartBlock = config.GetStartBlock()
	watcherConfig.PollInterval = config.GetPollInterval()
	watcherConfig.MaxBlockRange = config.GetMaxBlockRange()
	watcher, err := events.NewWatcher(n.client, watcherConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize event watcher", "error", err)
	}

	var server *api.Server
	if config.IsAPIEnabled() {
		server = api.NewServer(api.Config{Port: config.GetOperatorAPIPort()}, api.Dependencies{
			Logger:         logger,
			Operator:       n.operator,
			Watcher:        watcher,
			Dispatcher:     dispatcher,
			MetricsHandler: n.collector.Handler(),
			ChainID:        n.chainID.String(),
		})
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("API server stopped", "error", err)
			}
		}()
	}
	logger.Info("[5/5] Watching task events", "service_manager", config.GetServiceManagerAddress().Hex())

	runErr := dispatcher.Run(ctx, watcher.Watch(ctx))

	logger.Info("Shutting down ...")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), apiShutdownTimeout)
		if err := server.Stop(shutdownCtx); err != nil {
			logger.Warn("API server did not stop cleanly", "error", err)
		}
		cancel()
	}

	if runErr != nil && !errors.Is(runErr, operator.ErrShutdownTimeout) {
		return runErr
	}
	if runErr != nil {
		logger.Warn("Shutdown timed out with tasks in flight", "error", runErr)
	}
	logger.Info("Operator stopped", "stats", fmt.Sprintf("%+v", dispatcher.Stats()))
	return nil
}

func newLedger(logger logging.Logger) (ledger.Ledger, error) {
	if config.GetLedgerBackend() == config.LedgerRedis {
		return ledger.NewRedisLedger(ledger.RedisConfig{
			Addr:     config.GetRedisAddr(),
			Password: config.GetRedisPassword(),
			TTL:      config.GetLedgerTTL(),
		}, logger)
	}
	return ledger.NewMemoryLedger(config.GetLedgerTTL()), nil
}

func registerOperator(c *cli.Context) error {
	if err := config.Init(); err != nil {
		return err
	}
	logger, err := newLogger(logging.RegistrationProcess)
	if err != nil {
		return err
	}
	defer logging.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := newNode(ctx, logger, true)
	if err != nil {
		return err
	}
	defer n.Close()

	if err := n.coordinator.Run(ctx); err != nil {
		return err
	}
	fmt.Printf("Operator %s is registered\n", n.operator.Address().Hex())
	return nil
}

func printStatus(c *cli.Context) error {
	if err := config.Init(); err != nil {
		return err
	}
	logger, err := newLogger(logging.CLIProcess)
	if err != nil {
		return err
	}
	defer logging.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := newNode(ctx, logger, false)
	if err != nil {
		return err
	}
	defer n.Close()

	report, err := n.coordinator.Inspect(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Operator:         %s\n", report.Operator.Hex())
	fmt.Printf("Chain ID:         %s\n", n.chainID.String())
	fmt.Printf("Core registered:  %t\n", report.CoreRegistered)
	fmt.Printf("AVS registered:   %t\n", report.AVSRegistered)
	fmt.Printf("Service manager:  %s\n", config.GetServiceManagerAddress().Hex())
	return nil
}
