package registration

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trigg3rX/pumpkit-operator/internal/operator/contracts"
	"github.com/trigg3rX/pumpkit-operator/pkg/digest"
	"github.com/trigg3rX/pumpkit-operator/pkg/logging"
	"github.com/trigg3rX/pumpkit-operator/pkg/signer"
	"github.com/trigg3rX/pumpkit-operator/pkg/submission"
)

const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	delegationManager = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	stakeRegistry     = common.HexToAddress("0x00000000000000000000000000000000000000d2")
	serviceManager    = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	avsDirectory      = common.HexToAddress("0x0000000000000000000000000000000000000abc")
	testDomain        = digest.RegistrationDomain{ChainID: big.NewInt(31337), Directory: avsDirectory}
)

type fakeReader struct {
	isOperator     bool
	registered     bool
	readErr        error
	onChainDigest  *common.Hash
	digestRequests int
}

func (f *fakeReader) IsOperator(ctx context.Context, operator common.Address) (bool, error) {
	return f.isOperator, f.readErr
}

func (f *fakeReader) OperatorRegistered(ctx context.Context, operator common.Address) (bool, error) {
	return f.registered, f.readErr
}

func (f *fakeReader) CalculateRegistrationDigest(ctx context.Context, operator, avs common.Address, salt [32]byte, expiry *big.Int) (common.Hash, error) {
	f.digestRequests++
	if f.onChainDigest != nil {
		return *f.onChainDigest, nil
	}
	return testDomain.BuildRegistrationDigest(operator, avs, salt, expiry)
}

type fakeGateway struct {
	mu    sync.Mutex
	calls []submission.ContractCall
	// errs is consumed in order, nil entries mean success
	errs []error
}

func (f *fakeGateway) Submit(ctx context.Context, call submission.ContractCall) (*submission.Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.calls)
	f.calls = append(f.calls, call)
	if n < len(f.errs) && f.errs[n] != nil {
		return nil, f.errs[n]
	}
	return &submission.Confirmation{TxHash: common.BigToHash(big.NewInt(int64(n + 1))), BlockNumber: 100, Attempts: 1}, nil
}

func (f *fakeGateway) methods() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Method)
	}
	return out
}

func rejected(reason string) error {
	return &submission.SubmissionError{Class: submission.ClassRejected, Method: "x", Reason: reason, Err: errors.New("execution reverted")}
}

func newTestCoordinator(t *testing.T, reader *fakeReader, gw *fakeGateway, mutate func(*Config)) (*Coordinator, *signer.KeyringSigner) {
	t.Helper()
	s, err := signer.NewKeyringSignerFromHex(testKeyHex)
	require.NoError(t, err)

	cfg := Config{
		DelegationManager: delegationManager,
		StakeRegistry:     stakeRegistry,
		ServiceManager:    serviceManager,
		Domain:            testDomain,
		ExpiryWindow:      time.Hour,
		MaxAttempts:       3,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	c := NewCoordinator(cfg, s, reader, gw, logging.NewNoOpLogger())
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c, s
}

func decodeSignatureCall(t *testing.T, data []byte) (contracts.SignatureWithSaltAndExpiry, common.Address) {
	t.Helper()
	parsed, err := contracts.StakeRegistryMetaData.GetAbi()
	require.NoError(t, err)
	method, err := parsed.MethodById(data[:4])
	require.NoError(t, err)
	values, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	sig := *abi.ConvertType(values[0], new(contracts.SignatureWithSaltAndExpiry)).(*contracts.SignatureWithSaltAndExpiry)
	return sig, values[1].(common.Address)
}

func TestRun_AlreadyRegistered_NoSubmissions(t *testing.T) {
	reader := &fakeReader{isOperator: true, registered: true}
	gw := &fakeGateway{}
	c, _ := newTestCoordinator(t, reader, gw, nil)

	require.NoError(t, c.Run(context.Background()))
	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, Registered, c.Status())
	assert.Empty(t, gw.calls)
	assert.Empty(t, c.Salts())
}

func TestRun_Fresh_RegistersCoreThenAVS(t *testing.T) {
	reader := &fakeReader{}
	gw := &fakeGateway{}
	c, s := newTestCoordinator(t, reader, gw, nil)

	var transitions []Status
	c.OnStatusChange(func(st Status) { transitions = append(transitions, st) })

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, Registered, c.Status())
	assert.Equal(t, []Status{PendingRegistration, Registered}, transitions)
	require.Equal(t, []string{contracts.MethodRegisterAsOperator, contracts.MethodRegisterWithSignature}, gw.methods())
	assert.Equal(t, delegationManager, gw.calls[0].To)
	assert.Equal(t, stakeRegistry, gw.calls[1].To)

	sig, signingKey := decodeSignatureCall(t, gw.calls[1].Data)
	assert.Equal(t, s.Address(), signingKey)
	assert.Equal(t, big.NewInt(1700000000+3600), sig.Expiry)
	require.Len(t, c.Salts(), 1)
	assert.Equal(t, c.Salts()[0], sig.Salt)

	want, err := testDomain.BuildRegistrationDigest(s.Address(), serviceManager, sig.Salt, sig.Expiry)
	require.NoError(t, err)
	assert.True(t, signer.Verify(sig.Signature, want.Bytes(), s.Address()))
}

func TestRun_CoreAlreadyRegisteredRejection_Continues(t *testing.T) {
	reader := &fakeReader{}
	gw := &fakeGateway{errs: []error{rejected("DelegationManager.registerAsOperator: operator has already registered")}}
	c, _ := newTestCoordinator(t, reader, gw, nil)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, Registered, c.Status())
	assert.Len(t, gw.calls, 2)
}

func TestRegisterWithAVS_RejectedThenAccepted_FreshSaltEachAttempt(t *testing.T) {
	reader := &fakeReader{isOperator: true}
	gw := &fakeGateway{errs: []error{rejected("signature expired"), rejected("invalid signature"), nil}}
	c, _ := newTestCoordinator(t, reader, gw, nil)

	require.NoError(t, c.RegisterWithAVS(context.Background()))

	assert.Equal(t, Registered, c.Status())
	salts := c.Salts()
	require.Len(t, salts, 3)
	assert.NotEqual(t, salts[0], salts[1])
	assert.NotEqual(t, salts[1], salts[2])
	assert.NotEqual(t, salts[0], salts[2])
}

func TestRegisterWithAVS_RejectedEveryAttempt_Fails(t *testing.T) {
	reader := &fakeReader{isOperator: true}
	gw := &fakeGateway{errs: []error{rejected("no"), rejected("no"), rejected("no"), rejected("no")}}
	c, _ := newTestCoordinator(t, reader, gw, nil)

	err := c.RegisterWithAVS(context.Background())
	require.ErrorIs(t, err, ErrRegistrationFailed)
	assert.ErrorIs(t, err, submission.ErrRejected)

	assert.Equal(t, Unregistered, c.Status())
	assert.Len(t, gw.calls, 3)
	assert.Len(t, c.Salts(), 3)
}

func TestRegisterWithAVS_AlreadyRegisteredRejection_Registered(t *testing.T) {
	reader := &fakeReader{isOperator: true}
	gw := &fakeGateway{errs: []error{&submission.SubmissionError{
		Class:      submission.ClassRejected,
		RevertData: []byte{0x35, 0x4a, 0x51, 0x76},
		Err:        errors.New("execution reverted"),
	}}}
	c, _ := newTestCoordinator(t, reader, gw, nil)

	require.NoError(t, c.RegisterWithAVS(context.Background()))
	assert.Equal(t, Registered, c.Status())
}

func TestRegisterWithAVS_TransientExhausted_FailsWithoutNewSalt(t *testing.T) {
	reader := &fakeReader{isOperator: true}
	gw := &fakeGateway{errs: []error{&submission.SubmissionError{
		Class:     submission.ClassTransient,
		Exhausted: true,
		Attempts:  5,
		Err:       errors.New("connection refused"),
	}}}
	c, _ := newTestCoordinator(t, reader, gw, nil)

	err := c.RegisterWithAVS(context.Background())
	require.ErrorIs(t, err, ErrRegistrationFailed)
	assert.ErrorIs(t, err, submission.ErrTransientExhausted)
	assert.Len(t, gw.calls, 1)
	assert.Equal(t, Unregistered, c.Status())
}

func TestRegisterWithAVS_VerifyDigest_MatchSubmits(t *testing.T) {
	reader := &fakeReader{isOperator: true}
	gw := &fakeGateway{}
	c, _ := newTestCoordinator(t, reader, gw, func(cfg *Config) { cfg.VerifyDigest = true })

	require.NoError(t, c.RegisterWithAVS(context.Background()))
	assert.Equal(t, 1, reader.digestRequests)
	assert.Len(t, gw.calls, 1)
}

func TestRegisterWithAVS_VerifyDigest_MismatchFails(t *testing.T) {
	wrong := common.HexToHash("0x01")
	reader := &fakeReader{isOperator: true, onChainDigest: &wrong}
	gw := &fakeGateway{}
	c, _ := newTestCoordinator(t, reader, gw, func(cfg *Config) { cfg.VerifyDigest = true })

	err := c.RegisterWithAVS(context.Background())
	require.ErrorIs(t, err, ErrRegistrationFailed)
	assert.Empty(t, gw.calls)
}

func TestRun_ReadOnlyNotRegistered_Fails(t *testing.T) {
	reader := &fakeReader{isOperator: true}
	gw := &fakeGateway{}
	c, _ := newTestCoordinator(t, reader, gw, func(cfg *Config) { cfg.ReadOnly = true })

	err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrRegistrationFailed)
	assert.Empty(t, gw.calls)
}

func TestRun_ReadError_Fails(t *testing.T) {
	reader := &fakeReader{readErr: errors.New("connection refused")}
	c, _ := newTestCoordinator(t, reader, &fakeGateway{}, nil)

	assert.ErrorIs(t, c.Run(context.Background()), ErrRegistrationFailed)
}

func TestInspect_ReportsState(t *testing.T) {
	reader := &fakeReader{isOperator: true, registered: false}
	c, s := newTestCoordinator(t, reader, &fakeGateway{}, nil)

	report, err := c.Inspect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Report{Operator: s.Address(), CoreRegistered: true, AVSRegistered: false}, report)
}
