// Package submission sends contract write calls, waits for them to be
// confirmed and classifies failures into transient, rejected and fatal.
package submission

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/trigg3rX/pumpkit-operator/pkg/logging"
	"github.com/trigg3rX/pumpkit-operator/pkg/retry"
)

// EthClient is the subset of ethclient.Client the gateway uses
type EthClient interface {
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Recorder receives one observation per finished submission
type Recorder interface {
	ObserveSubmission(method string, outcome string, attempts int, elapsed time.Duration)
}

// ContractCall is a packed write call
type ContractCall struct {
	To       common.Address
	Method   string
	Data     []byte
	GasLimit uint64 // 0 means estimate
}

// Confirmation describes a mined and sufficiently deep transaction
type Confirmation struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Attempts    int
}

type Config struct {
	From   common.Address
	Signer bind.SignerFn

	// ChainID is queried from the node when nil
	ChainID *big.Int

	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration

	ConfirmationDepth   uint64
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration

	GasLimit       uint64   // fixed limit for every call, 0 means estimate
	GasBufferPct   uint64   // added to estimates
	FallbackTipCap *big.Int // used when the node cannot suggest a tip
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:         5,
		BackoffBase:         time.Second,
		BackoffMax:          30 * time.Second,
		ConfirmationDepth:   1,
		ConfirmationTimeout: 2 * time.Minute,
		PollInterval:        2 * time.Second,
		GasBufferPct:        20,
		FallbackTipCap:      big.NewInt(2_000_000_000),
	}
}

// Gateway is safe for concurrent use. Each Submit re-reads nonce and gas on
// every attempt, so concurrent submissions from one account resolve nonce
// collisions through the transient retry path.
type Gateway struct {
	client   EthClient
	cfg      Config
	logger   logging.Logger
	recorder Recorder
}

func NewGateway(ctx context.Context, client EthClient, cfg Config, logger logging.Logger) (*Gateway, error) {
	if client == nil {
		return nil, errors.New("eth client is required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("transaction signer is required")
	}
	if cfg.From == (common.Address{}) {
		return nil, errors.New("sender address is required")
	}
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = max(def.BackoffMax, cfg.BackoffBase)
	}
	if cfg.ConfirmationDepth == 0 {
		cfg.ConfirmationDepth = def.ConfirmationDepth
	}
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = def.ConfirmationTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.FallbackTipCap == nil {
		cfg.FallbackTipCap = def.FallbackTipCap
	}
	if cfg.ChainID == nil {
		chainID, err := client.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get chain id: %w", err)
		}
		cfg.ChainID = chainID
	}

	return &Gateway{client: client, cfg: cfg, logger: logger}, nil
}

// WithRecorder attaches a metrics recorder
func (g *Gateway) WithRecorder(r Recorder) *Gateway {
	g.recorder = r
	return g
}

func (g *Gateway) From() common.Address {
	return g.cfg.From
}

func (g *Gateway) ChainID() *big.Int {
	return new(big.Int).Set(g.cfg.ChainID)
}

// BlockNumber returns the current chain head
func (g *Gateway) BlockNumber(ctx context.Context) (uint64, error) {
	return g.client.BlockNumber(ctx)
}

// Call runs a read-only call against the latest block
func (g *Gateway) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := g.client.CallContract(ctx, ethereum.CallMsg{From: g.cfg.From, To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call to %s failed: %w", to.Hex(), err)
	}
	return out, nil
}

// Submit broadcasts call, retrying transient failures with fresh nonce and
// gas up to MaxAttempts, then blocks until the transaction is
// ConfirmationDepth blocks deep. A broadcast transaction is never resent.
func (g *Gateway) Submit(ctx context.Context, call ContractCall) (*Confirmation, error) {
	start := time.Now()
	conf, err := g.submit(ctx, call)

	if g.recorder != nil {
		outcome := "confirmed"
		attempts := 0
		var subErr *SubmissionError
		if errors.As(err, &subErr) {
			outcome = subErr.Class.String()
			attempts = subErr.Attempts
		} else if conf != nil {
			attempts = conf.Attempts
		}
		g.recorder.ObserveSubmission(call.Method, outcome, attempts, time.Since(start))
	}
	return conf, err
}

func (g *Gateway) submit(ctx context.Context, call ContractCall) (*Confirmation, error) {
	if call.To == (common.Address{}) {
		return nil, &SubmissionError{Class: ClassFatal, Method: call.Method, Err: errors.New("missing target contract")}
	}
	if len(call.Data) < 4 {
		return nil, &SubmissionError{Class: ClassFatal, Method: call.Method, Err: errors.New("calldata has no method selector")}
	}

	attempts := 0
	retryCfg := &retry.RetryConfig{
		MaxRetries:      g.cfg.MaxAttempts,
		InitialDelay:    g.cfg.BackoffBase,
		MaxDelay:        g.cfg.BackoffMax,
		BackoffFactor:   2.0,
		JitterFactor:    0.2,
		LogRetryAttempt: true,
		ShouldRetry: func(err error, _ int) bool {
			return errors.Is(err, ErrTransient)
		},
	}

	tx, err := retry.Retry(ctx, func() (*types.Transaction, error) {
		attempts++
		tx, err := g.sendOnce(ctx, call)
		if err != nil {
			return nil, g.wrap(call, attempts, err)
		}
		return tx, nil
	}, retryCfg, g.logger)
	if err != nil {
		var subErr *SubmissionError
		if !errors.As(err, &subErr) {
			return nil, &SubmissionError{Class: Classify(err), Method: call.Method, Attempts: attempts, Err: err}
		}
		if errors.Is(err, retry.ErrMaxRetriesExceeded) {
			subErr.Exhausted = true
		}
		subErr.Attempts = attempts
		return nil, subErr
	}

	g.logger.Debug("Transaction broadcast", "method", call.Method, "tx", tx.Hash().Hex(), "nonce", tx.Nonce(), "attempt", attempts)

	receipt, err := g.waitForConfirmation(ctx, tx)
	if err != nil {
		return nil, &SubmissionError{Class: ClassTransient, Method: call.Method, Attempts: attempts, TxHash: tx.Hash(), Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &SubmissionError{
			Class:    ClassRejected,
			Method:   call.Method,
			Attempts: attempts,
			TxHash:   tx.Hash(),
			Reason:   fmt.Sprintf("transaction reverted in block %d", receipt.BlockNumber.Uint64()),
			Err:      errors.New("execution reverted"),
		}
	}

	return &Confirmation{
		TxHash:      tx.Hash(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Attempts:    attempts,
	}, nil
}

func (g *Gateway) wrap(call ContractCall, attempt int, err error) *SubmissionError {
	class := Classify(err)
	subErr := &SubmissionError{Class: class, Method: call.Method, Attempts: attempt, Err: err}
	if class == ClassRejected {
		subErr.Reason = RevertReason(err)
		subErr.RevertData = RevertData(err)
	}
	return subErr
}

// sendOnce builds, signs and broadcasts one transaction with the current
// pending nonce and gas price.
func (g *Gateway) sendOnce(ctx context.Context, call ContractCall) (*types.Transaction, error) {
	nonce, err := g.client.PendingNonceAt(ctx, g.cfg.From)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending nonce: %w", err)
	}

	head, err := g.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}

	msg := ethereum.CallMsg{From: g.cfg.From, To: &call.To, Data: call.Data}

	var gasPrice, tipCap, feeCap *big.Int
	if head.BaseFee != nil {
		tipCap, err = g.client.SuggestGasTipCap(ctx)
		if err != nil {
			g.logger.Warnf("Failed to suggest gas tip cap, using fallback: %v", err)
			tipCap = new(big.Int).Set(g.cfg.FallbackTipCap)
		}
		feeCap = new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tipCap)
		msg.GasTipCap, msg.GasFeeCap = tipCap, feeCap
	} else {
		suggested, err := g.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to suggest gas price: %w", err)
		}
		gasPrice = new(big.Int).Div(new(big.Int).Mul(suggested, big.NewInt(120)), big.NewInt(100))
		msg.GasPrice = gasPrice
	}

	gasLimit := call.GasLimit
	if gasLimit == 0 {
		gasLimit = g.cfg.GasLimit
	}
	if gasLimit == 0 {
		estimated, err := g.client.EstimateGas(ctx, msg)
		if err != nil {
			return nil, fmt.Errorf("failed to estimate gas: %w", err)
		}
		gasLimit = estimated + estimated*g.cfg.GasBufferPct/100
	}

	var tx *types.Transaction
	if head.BaseFee != nil {
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   g.cfg.ChainID,
			Nonce:     nonce,
			GasTipCap: tipCap,
			GasFeeCap: feeCap,
			Gas:       gasLimit,
			To:        &call.To,
			Value:     big.NewInt(0),
			Data:      call.Data,
		})
	} else {
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gasLimit,
			To:       &call.To,
			Value:    big.NewInt(0),
			Data:     call.Data,
		})
	}

	signed, err := g.cfg.Signer(g.cfg.From, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := g.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	return signed, nil
}

// waitForConfirmation waits for the receipt, then for ConfirmationDepth-1
// further blocks on top of it.
func (g *Gateway) waitForConfirmation(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, g.cfg.ConfirmationTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, g.client, tx)
	if err != nil {
		return nil, fmt.Errorf("transaction %s not mined: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful || g.cfg.ConfirmationDepth <= 1 {
		return receipt, nil
	}

	target := receipt.BlockNumber.Uint64() + g.cfg.ConfirmationDepth - 1
	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()

	for {
		head, err := g.client.BlockNumber(waitCtx)
		if err == nil && head >= target {
			return receipt, nil
		}
		if err != nil {
			g.logger.Debugf("Failed to read head while confirming %s: %v", tx.Hash().Hex(), err)
		}

		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("transaction %s not confirmed at depth %d: %w", tx.Hash().Hex(), g.cfg.ConfirmationDepth, waitCtx.Err())
		case <-ticker.C:
		}
	}
}
