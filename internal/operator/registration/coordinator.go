// Package registration registers the operator with the EigenLayer
// DelegationManager and then with the AVS stake registry.
package registration

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/trigg3rX/pumpkit-operator/internal/operator/contracts"
	"github.com/trigg3rX/pumpkit-operator/pkg/digest"
	"github.com/trigg3rX/pumpkit-operator/pkg/logging"
	"github.com/trigg3rX/pumpkit-operator/pkg/signer"
	"github.com/trigg3rX/pumpkit-operator/pkg/submission"
)

var ErrRegistrationFailed = errors.New("operator registration failed")

// ChainReader is the read side of the registration handshake
type ChainReader interface {
	IsOperator(ctx context.Context, operator common.Address) (bool, error)
	OperatorRegistered(ctx context.Context, operator common.Address) (bool, error)
	CalculateRegistrationDigest(ctx context.Context, operator, avs common.Address, salt [32]byte, expiry *big.Int) (common.Hash, error)
}

// Submitter sends registration transactions
type Submitter interface {
	Submit(ctx context.Context, call submission.ContractCall) (*submission.Confirmation, error)
}

type Config struct {
	DelegationManager common.Address
	StakeRegistry     common.Address
	// ServiceManager is the AVS address the registration digest commits to
	ServiceManager common.Address
	Domain         digest.RegistrationDomain

	MetadataURI  string
	ExpiryWindow time.Duration
	MaxAttempts  int

	// VerifyDigest cross-checks the local digest with the AVSDirectory
	VerifyDigest bool
	// ReadOnly makes Run only check the on-chain state
	ReadOnly bool
}

// Report is the on-chain registration state of an operator
type Report struct {
	Operator       common.Address
	CoreRegistered bool
	AVSRegistered  bool
}

type Coordinator struct {
	cfg     Config
	signer  signer.Signer
	reader  ChainReader
	gateway Submitter
	logger  logging.Logger

	mu       sync.RWMutex
	status   Status
	salts    [][32]byte
	onChange func(Status)

	now     func() time.Time
	entropy io.Reader
}

func NewCoordinator(cfg Config, s signer.Signer, reader ChainReader, gateway Submitter, logger logging.Logger) *Coordinator {
	if cfg.ExpiryWindow <= 0 {
		cfg.ExpiryWindow = time.Hour
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Coordinator{
		cfg:     cfg,
		signer:  s,
		reader:  reader,
		gateway: gateway,
		logger:  logger.With("operator", s.Address().Hex()),
		now:     time.Now,
		entropy: rand.Reader,
	}
}

// OnStatusChange registers a callback fired on every status transition
func (c *Coordinator) OnStatusChange(fn func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Salts returns every salt that was signed and submitted, in order
func (c *Coordinator) Salts() [][32]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([][32]byte, len(c.salts))
	copy(out, c.salts)
	return out
}

func (c *Coordinator) setStatus(s Status) {
	c.mu.Lock()
	if c.status == s {
		c.mu.Unlock()
		return
	}
	c.status = s
	fn := c.onChange
	c.mu.Unlock()

	c.logger.Info("Registration status changed", "status", s.String())
	if fn != nil {
		fn(s)
	}
}

// Run performs the full registration handshake, or only verifies it when
// ReadOnly is set.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.Status() == Registered {
		return nil
	}

	if c.cfg.ReadOnly {
		report, err := c.Inspect(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
		}
		if !report.AVSRegistered {
			return fmt.Errorf("%w: operator is not registered with the AVS and startup registration is disabled", ErrRegistrationFailed)
		}
		c.setStatus(Registered)
		return nil
	}

	if err := c.RegisterWithCore(ctx); err != nil {
		return err
	}
	return c.RegisterWithAVS(ctx)
}

// Inspect reads the registration state from chain without changing anything
func (c *Coordinator) Inspect(ctx context.Context) (*Report, error) {
	operator := c.signer.Address()

	isOperator, err := c.reader.IsOperator(ctx, operator)
	if err != nil {
		return nil, fmt.Errorf("failed to read core registration: %w", err)
	}
	registered, err := c.reader.OperatorRegistered(ctx, operator)
	if err != nil {
		return nil, fmt.Errorf("failed to read AVS registration: %w", err)
	}

	return &Report{Operator: operator, CoreRegistered: isOperator, AVSRegistered: registered}, nil
}

// RegisterWithCore registers the operator with the DelegationManager unless
// it already is an operator there.
func (c *Coordinator) RegisterWithCore(ctx context.Context) error {
	operator := c.signer.Address()

	isOperator, err := c.reader.IsOperator(ctx, operator)
	if err != nil {
		return fmt.Errorf("%w: failed to read core registration: %w", ErrRegistrationFailed, err)
	}
	if isOperator {
		c.logger.Debug("Operator already registered with core contracts")
		return nil
	}

	data, err := contracts.PackRegisterAsOperator(contracts.OperatorDetails{
		EarningsReceiver: operator,
	}, c.cfg.MetadataURI)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}

	conf, err := c.gateway.Submit(ctx, submission.ContractCall{
		To:     c.cfg.DelegationManager,
		Method: contracts.MethodRegisterAsOperator,
		Data:   data,
	})
	if err != nil {
		if errors.Is(err, submission.ErrRejected) && submission.IsAlreadyRegistered(err) {
			c.logger.Info("Operator already registered with core contracts", "reason", submission.RevertReason(err))
			return nil
		}
		return fmt.Errorf("%w: core registration: %w", ErrRegistrationFailed, err)
	}

	c.logger.Info("Operator registered with core contracts", "tx", conf.TxHash.Hex(), "block", conf.BlockNumber)
	return nil
}

// RegisterWithAVS registers the operator with the stake registry. Every
// attempt signs a fresh salt and expiry; only rejections are retried here,
// transient failures were already retried by the gateway.
func (c *Coordinator) RegisterWithAVS(ctx context.Context) error {
	if c.Status() == Registered {
		return nil
	}
	operator := c.signer.Address()

	registered, err := c.reader.OperatorRegistered(ctx, operator)
	if err != nil {
		return fmt.Errorf("%w: failed to read AVS registration: %w", ErrRegistrationFailed, err)
	}
	if registered {
		c.setStatus(Registered)
		return nil
	}

	c.setStatus(PendingRegistration)

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		done, err := c.attemptAVSRegistration(ctx, operator, attempt)
		if done {
			c.setStatus(Registered)
			return nil
		}
		lastErr = err
		if !errors.Is(err, submission.ErrRejected) {
			break
		}
		c.logger.Warn("AVS registration rejected", "attempt", attempt, "max_attempts", c.cfg.MaxAttempts, "reason", submission.RevertReason(err))
	}

	c.setStatus(Unregistered)
	return fmt.Errorf("%w: %w", ErrRegistrationFailed, lastErr)
}

func (c *Coordinator) attemptAVSRegistration(ctx context.Context, operator common.Address, attempt int) (bool, error) {
	var salt [32]byte
	if _, err := io.ReadFull(c.entropy, salt[:]); err != nil {
		return false, fmt.Errorf("failed to draw salt: %w", err)
	}
	expiry := big.NewInt(c.now().Add(c.cfg.ExpiryWindow).Unix())

	registrationDigest, err := c.cfg.Domain.BuildRegistrationDigest(operator, c.cfg.ServiceManager, salt, expiry)
	if err != nil {
		return false, fmt.Errorf("failed to build registration digest: %w", err)
	}

	if c.cfg.VerifyDigest {
		onChain, err := c.reader.CalculateRegistrationDigest(ctx, operator, c.cfg.ServiceManager, salt, expiry)
		if err != nil {
			return false, fmt.Errorf("failed to read registration digest: %w", err)
		}
		if onChain != registrationDigest {
			return false, fmt.Errorf("registration digest mismatch: local %s, directory %s", registrationDigest.Hex(), onChain.Hex())
		}
	}

	signature, err := c.signer.Sign(registrationDigest.Bytes())
	if err != nil {
		return false, fmt.Errorf("failed to sign registration digest: %w", err)
	}

	data, err := contracts.PackRegisterOperatorWithSignature(contracts.SignatureWithSaltAndExpiry{
		Signature: signature,
		Salt:      salt,
		Expiry:    expiry,
	}, operator)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	c.salts = append(c.salts, salt)
	c.mu.Unlock()

	c.logger.Debug("Submitting AVS registration", "attempt", attempt, "salt", common.Hash(salt).Hex(), "expiry", expiry.String())

	conf, err := c.gateway.Submit(ctx, submission.ContractCall{
		To:     c.cfg.StakeRegistry,
		Method: contracts.MethodRegisterWithSignature,
		Data:   data,
	})
	if err != nil {
		if errors.Is(err, submission.ErrRejected) && submission.IsAlreadyRegistered(err) {
			c.logger.Info("Operator already registered with AVS", "reason", submission.RevertReason(err))
			return true, nil
		}
		return false, err
	}

	c.logger.Info("Operator registered with AVS", "tx", conf.TxHash.Hex(), "block", conf.BlockNumber)
	return true, nil
}
