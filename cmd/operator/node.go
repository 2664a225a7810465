package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/eigensdk-go/chainio/clients/eth"
	rpccalls "github.com/Layr-Labs/eigensdk-go/metrics/collectors/rpc_calls"

	"github.com/trigg3rX/pumpkit-operator/internal/operator"
	"github.com/trigg3rX/pumpkit-operator/internal/operator/config"
	"github.com/trigg3rX/pumpkit-operator/internal/operator/contracts"
	"github.com/trigg3rX/pumpkit-operator/internal/operator/events"
	"github.com/trigg3rX/pumpkit-operator/internal/operator/registration"
	"github.com/trigg3rX/pumpkit-operator/pkg/digest"
	"github.com/trigg3rX/pumpkit-operator/pkg/logging"
	"github.com/trigg3rX/pumpkit-operator/pkg/metrics"
	"github.com/trigg3rX/pumpkit-operator/pkg/signer"
	"github.com/trigg3rX/pumpkit-operator/pkg/submission"
)

// chainClient is what the gateway and the watcher share
type chainClient interface {
	submission.EthClient
	events.LogSource
}

// node holds the components every command needs
type node struct {
	logger      logging.Logger
	client      chainClient
	chainID     *big.Int
	signer      *signer.KeyringSigner
	operator    *operator.Operator
	gateway     *submission.Gateway
	reader      *contracts.Reader
	coordinator *registration.Coordinator
	collector   *metrics.Collector
	metrics     *metrics.OperatorMetrics
}

const avsName = "pumpkit"

func newLogger(process logging.ProcessName) (logging.Logger, error) {
	logConfig := logging.NewDefaultConfig(process)
	if !config.IsDevMode() {
		logConfig.Environment = logging.Production
		logConfig.UseColors = false
	}
	if err := logging.InitServiceLogger(logConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logging.GetServiceLogger(), nil
}

func loadSigner() (*signer.KeyringSigner, error) {
	if key := config.GetOperatorPrivateKey(); key != "" {
		return signer.NewKeyringSignerFromHex(key)
	}
	return signer.NewKeyringSignerFromKeystore(config.GetKeystorePath(), config.GetKeystorePassword())
}

func newNode(ctx context.Context, logger logging.Logger, registerOnStartup bool) (*node, error) {
	s, err := loadSigner()
	if err != nil {
		return nil, err
	}
	logger.Info("Operator key loaded", "operator", s.Address().Hex())

	collector := metrics.NewCollector(string(logging.OperatorProcess))
	operatorMetrics := metrics.NewOperatorMetrics(collector)

	// RPC call counts and latencies land on the operator registry
	rpcCallsCollector := rpccalls.NewCollector(avsName, collector.Registry())
	client, err := eth.NewInstrumentedClient(config.GetEthRPCURL(), rpcCallsCollector)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.GetEthRPCURL(), err)
	}

	chainID := new(big.Int).SetUint64(config.GetChainID())
	if chainID.Sign() == 0 {
		if chainID, err = client.ChainID(ctx); err != nil {
			return nil, fmt.Errorf("failed to read chain id: %w", err)
		}
	}

	txSigner, err := s.TxSigner(ctx, chainID)
	if err != nil {
		return nil, err
	}

	gwConfig := submission.DefaultConfig()
	gwConfig.From = s.Address()
	gwConfig.Signer = txSigner
	gwConfig.ChainID = chainID
	gwConfig.MaxAttempts = config.GetSubmitMaxAttempts()
	gwConfig.BackoffBase = config.GetSubmitBackoffBase()
	gwConfig.BackoffMax = config.GetSubmitBackoffMax()
	gwConfig.ConfirmationDepth = config.GetConfirmationDepth()
	gwConfig.ConfirmationTimeout = config.GetConfirmationTimeout()
	gwConfig.GasLimit = config.GetGasLimit()

	gateway, err := submission.NewGateway(ctx, client, gwConfig, logger)
	if err != nil {
		return nil, err
	}
	gateway.WithRecorder(operatorMetrics)

	reader := contracts.NewReader(gateway, contracts.Addresses{
		DelegationManager: config.GetDelegationManagerAddress(),
		AVSDirectory:      config.GetAVSDirectoryAddress(),
		ServiceManager:    config.GetServiceManagerAddress(),
		StakeRegistry:     config.GetStakeRegistryAddress(),
	})

	op := operator.NewOperator(s)
	coordinator := registration.NewCoordinator(registration.Config{
		DelegationManager: config.GetDelegationManagerAddress(),
		StakeRegistry:     config.GetStakeRegistryAddress(),
		ServiceManager:    config.GetServiceManagerAddress(),
		Domain:            digest.RegistrationDomain{ChainID: chainID, Directory: config.GetAVSDirectoryAddress()},
		MetadataURI:       config.GetOperatorMetadataURI(),
		ExpiryWindow:      config.GetRegistrationExpiryWindow(),
		MaxAttempts:       config.GetRegistrationMaxAttempts(),
		VerifyDigest:      config.IsRegistrationVerifyDigest(),
		ReadOnly:          !registerOnStartup,
	}, s, reader, gateway, logger)
	coordinator.OnStatusChange(func(status registration.Status) {
		op.SetStatus(status)
		operatorMetrics.SetRegistered(status == registration.Registered)
	})

	return &node{
		logger:      logger,
		client:      client,
		chainID:     chainID,
		signer:      s,
		operator:    op,
		gateway:     gateway,
		reader:      reader,
		coordinator: coordinator,
		collector:   collector,
		metrics:     operatorMetrics,
	}, nil
}

func (n *node) Close() {
	n.collector.Stop()
}
