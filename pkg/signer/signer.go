// Package signer holds the operator's ECDSA key and produces the signatures
// the stake registry and service manager verify.
package signer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	sdkecdsa "github.com/Layr-Labs/eigensdk-go/crypto/ecdsa"
	"github.com/Layr-Labs/eigensdk-go/signerv2"
	sdkutils "github.com/Layr-Labs/eigensdk-go/utils"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrKeyUnavailable is returned when key material cannot be read or parsed
var ErrKeyUnavailable = errors.New("signing key unavailable")

const SignatureLength = 65

// Signer is what the registration and task pipelines need from a key
type Signer interface {
	Address() common.Address
	// Sign signs a 32-byte digest as is
	Sign(digest []byte) ([]byte, error)
	// SignMessage signs msg as an EIP-191 personal message
	SignMessage(msg []byte) ([]byte, error)
}

// KeyringSigner signs with an in-memory secp256k1 key. Signing is
// deterministic (RFC6979), so the same digest always gives the same signature.
type KeyringSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

var _ Signer = (*KeyringSigner)(nil)

func NewKeyringSigner(key *ecdsa.PrivateKey) (*KeyringSigner, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil private key", ErrKeyUnavailable)
	}
	address, err := sdkutils.EcdsaPrivateKeyToAddress(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	return &KeyringSigner{key: key, address: address}, nil
}

// NewKeyringSignerFromHex parses a hex private key, 0x prefix optional
func NewKeyringSignerFromHex(hexKey string) (*KeyringSigner, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("%w: empty private key", ErrKeyUnavailable)
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid private key: %v", ErrKeyUnavailable, err)
	}
	return NewKeyringSigner(key)
}

// NewKeyringSignerFromKeystore decrypts an eigenlayer-style ecdsa keystore file
func NewKeyringSignerFromKeystore(path, password string) (*KeyringSigner, error) {
	key, err := sdkecdsa.ReadKey(path, password)
	if err != nil {
		return nil, fmt.Errorf("%w: reading keystore %s: %v", ErrKeyUnavailable, path, err)
	}
	return NewKeyringSigner(key)
}

func (k *KeyringSigner) Address() common.Address {
	return k.address
}

// Sign returns [R || S || V] with V in {27, 28}
func (k *KeyringSigner) Sign(digest []byte) ([]byte, error) {
	if len(digest) != common.HashLength {
		return nil, fmt.Errorf("digest must be %d bytes, got %d", common.HashLength, len(digest))
	}
	sig, err := crypto.Sign(digest, k.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// SignMessage hashes "\x19Ethereum Signed Message:\n" + len(msg) + msg and signs it
func (k *KeyringSigner) SignMessage(msg []byte) ([]byte, error) {
	return k.Sign(accounts.TextHash(msg))
}

// TxSigner returns a transaction signer bound to chainID, for the submission gateway
func (k *KeyringSigner) TxSigner(ctx context.Context, chainID *big.Int) (bind.SignerFn, error) {
	signerFn, _, err := signerv2.SignerFromConfig(signerv2.Config{PrivateKey: k.key}, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction signer: %w", err)
	}
	return signerFn(ctx, k.address)
}

// Verify reports whether sig over digest was produced by address
func Verify(sig, digest []byte, address common.Address) bool {
	recovered, err := Recover(sig, digest)
	if err != nil {
		return false
	}
	return recovered == address
}

// VerifyMessage is Verify for EIP-191 personal messages
func VerifyMessage(sig, msg []byte, address common.Address) bool {
	return Verify(sig, accounts.TextHash(msg), address)
}

// Recover returns the address that produced sig over digest
func Recover(sig, digest []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(sig))
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pubKey, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}
