package signer

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	sdkecdsa "github.com/Layr-Labs/eigensdk-go/crypto/ecdsa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// first anvil development account
const (
	testKeyHex  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func newTestSigner(t *testing.T) *KeyringSigner {
	t.Helper()
	s, err := NewKeyringSignerFromHex("0x" + testKeyHex)
	require.NoError(t, err)
	return s
}

func TestNewKeyringSignerFromHex_ValidKey_DerivesAddress(t *testing.T) {
	s := newTestSigner(t)
	assert.Equal(t, common.HexToAddress(testAddress), s.Address())

	unprefixed, err := NewKeyringSignerFromHex(testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), unprefixed.Address())
}

func TestNewKeyringSignerFromHex_InvalidKey_ReturnsKeyUnavailable(t *testing.T) {
	for _, key := range []string{"", "0x", "nothex", testKeyHex[:10]} {
		_, err := NewKeyringSignerFromHex(key)
		assert.ErrorIs(t, err, ErrKeyUnavailable, "key %q", key)
	}
}

func TestNewKeyringSignerFromKeystore_MissingFile_ReturnsKeyUnavailable(t *testing.T) {
	_, err := NewKeyringSignerFromKeystore(filepath.Join(t.TempDir(), "missing.json"), "pw")
	assert.ErrorIs(t, err, ErrKeyUnavailable)
}

func TestNewKeyringSignerFromKeystore_RoundTrip(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "operator.ecdsa.key.json")
	require.NoError(t, sdkecdsa.WriteKey(path, key, "correct horse"))

	s, err := NewKeyringSignerFromKeystore(path, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddress), s.Address())

	_, err = NewKeyringSignerFromKeystore(path, "wrong password")
	assert.ErrorIs(t, err, ErrKeyUnavailable)
}

func TestKeyringSigner_Sign_IsDeterministic(t *testing.T) {
	s := newTestSigner(t)
	digest := crypto.Keccak256([]byte("registration digest"))

	first, err := s.Sign(digest)
	require.NoError(t, err)
	second, err := s.Sign(digest)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, SignatureLength)
	assert.Contains(t, []byte{27, 28}, first[64])
}

func TestKeyringSigner_Sign_RejectsNonDigest(t *testing.T) {
	s := newTestSigner(t)
	_, err := s.Sign([]byte("short"))
	assert.Error(t, err)
}

func TestKeyringSigner_SignVerify_RoundTrip(t *testing.T) {
	s := newTestSigner(t)
	other, err := NewKeyringSignerFromHex("59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d")
	require.NoError(t, err)

	messages := [][]byte{
		crypto.Keccak256([]byte("true")),
		crypto.Keccak256([]byte("false")),
		crypto.Keccak256([]byte("a longer token description")),
	}

	for _, msg := range messages {
		sig, err := s.Sign(msg)
		require.NoError(t, err)
		assert.True(t, Verify(sig, msg, s.Address()))
		assert.False(t, Verify(sig, msg, other.Address()))

		personal, err := s.SignMessage(msg)
		require.NoError(t, err)
		assert.True(t, VerifyMessage(personal, msg, s.Address()))
		assert.False(t, Verify(personal, msg, s.Address()), "personal signature must not verify as raw")
		assert.NotEqual(t, sig, personal)
	}
}

func TestRecover_InvalidSignatureLength_ReturnsError(t *testing.T) {
	_, err := Recover(make([]byte, 64), crypto.Keccak256(nil))
	assert.Error(t, err)
	assert.False(t, Verify(nil, crypto.Keccak256(nil), common.Address{}))
}

func TestKeyringSigner_TxSigner_SignsForOperator(t *testing.T) {
	s := newTestSigner(t)
	chainID := big.NewInt(31337)

	signerFn, err := s.TxSigner(context.Background(), chainID)
	require.NoError(t, err)

	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     1,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(0),
	})

	signed, err := signerFn(s.Address(), tx)
	require.NoError(t, err)

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), sender)
}
