// Package digest builds the byte-exact hashes and envelopes that the
// service manager and the AVS directory verify on-chain.
package digest

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// OperatorAVSRegistrationTypehash matches AVSDirectory.OPERATOR_AVS_REGISTRATION_TYPEHASH
	OperatorAVSRegistrationTypehash = crypto.Keccak256Hash([]byte("OperatorAVSRegistration(address operator,address avs,bytes32 salt,uint256 expiry)"))

	// DomainTypehash is the EIP-712 domain type used by the EigenLayer core contracts
	DomainTypehash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,uint256 chainId,address verifyingContract)"))

	domainNameHash = crypto.Keccak256Hash([]byte("EigenLayer"))
)

var (
	bytes32Ty = mustType("bytes32")
	addressTy = mustType("address")
	uint256Ty = mustType("uint256")

	registrationArgs = abi.Arguments{{Type: bytes32Ty}, {Type: addressTy}, {Type: addressTy}, {Type: bytes32Ty}, {Type: uint256Ty}}
	domainArgs       = abi.Arguments{{Type: bytes32Ty}, {Type: bytes32Ty}, {Type: uint256Ty}, {Type: addressTy}}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi type %s: %v", t, err))
	}
	return typ
}

// BuildTaskDigest is solidityPackedKeccak256(["string"], [message])
func BuildTaskDigest(message string) common.Hash {
	return crypto.Keccak256Hash([]byte(message))
}

// BuildRegistrationStructHash hashes the (operator, avs, salt, expiry) tuple
// under the OperatorAVSRegistration typehash.
func BuildRegistrationStructHash(operator, avs common.Address, salt [32]byte, expiry *big.Int) (common.Hash, error) {
	if expiry == nil || expiry.Sign() < 0 {
		return common.Hash{}, fmt.Errorf("expiry must be a non-negative integer")
	}
	encoded, err := registrationArgs.Pack([32]byte(OperatorAVSRegistrationTypehash), operator, avs, salt, expiry)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode registration tuple: %w", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

// RegistrationDomain is the EIP-712 domain of an AVSDirectory deployment
type RegistrationDomain struct {
	ChainID   *big.Int
	Directory common.Address
}

func (d RegistrationDomain) Separator() (common.Hash, error) {
	if d.ChainID == nil || d.ChainID.Sign() <= 0 {
		return common.Hash{}, fmt.Errorf("chain id must be positive")
	}
	encoded, err := domainArgs.Pack([32]byte(DomainTypehash), [32]byte(domainNameHash), d.ChainID, d.Directory)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode domain: %w", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

// BuildRegistrationDigest returns what calculateOperatorAVSRegistrationDigestHash
// returns on-chain: keccak256(0x1901 || separator || structHash).
func (d RegistrationDomain) BuildRegistrationDigest(operator, avs common.Address, salt [32]byte, expiry *big.Int) (common.Hash, error) {
	separator, err := d.Separator()
	if err != nil {
		return common.Hash{}, err
	}
	structHash, err := BuildRegistrationStructHash(operator, avs, salt, expiry)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash([]byte("\x19\x01"), separator.Bytes(), structHash.Bytes()), nil
}
