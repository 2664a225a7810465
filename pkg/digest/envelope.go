package digest

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var envelopeArgs = abi.Arguments{
	{Type: mustType("address[]")},
	{Type: mustType("bytes[]")},
	{Type: mustType("uint32")},
}

// SignedEnvelope is the aggregate authorization the stake registry checks:
// operators[i] signed with signatures[i], against referenceBlock.
type SignedEnvelope struct {
	Operators      []common.Address
	Signatures     [][]byte
	ReferenceBlock uint32
}

// NewSingleEnvelope wraps one operator signature
func NewSingleEnvelope(operator common.Address, signature []byte, referenceBlock uint32) *SignedEnvelope {
	return &SignedEnvelope{
		Operators:      []common.Address{operator},
		Signatures:     [][]byte{signature},
		ReferenceBlock: referenceBlock,
	}
}

func (e *SignedEnvelope) Validate() error {
	if len(e.Operators) == 0 {
		return errors.New("envelope has no operators")
	}
	if len(e.Operators) != len(e.Signatures) {
		return fmt.Errorf("envelope has %d operators but %d signatures", len(e.Operators), len(e.Signatures))
	}
	for i, sig := range e.Signatures {
		if len(sig) == 0 {
			return fmt.Errorf("signature %d is empty", i)
		}
	}
	return nil
}

// Encode returns abi.encode(address[] operators, bytes[] signatures, uint32 referenceBlock)
func (e *SignedEnvelope) Encode() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	encoded, err := envelopeArgs.Pack(e.Operators, e.Signatures, e.ReferenceBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return encoded, nil
}

// DecodeEnvelope is the inverse of Encode
func DecodeEnvelope(data []byte) (*SignedEnvelope, error) {
	values, err := envelopeArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	operators, ok := values[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected operators type %T", values[0])
	}
	signatures, ok := values[1].([][]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected signatures type %T", values[1])
	}
	referenceBlock, ok := values[2].(uint32)
	if !ok {
		return nil, fmt.Errorf("unexpected reference block type %T", values[2])
	}
	env := &SignedEnvelope{Operators: operators, Signatures: signatures, ReferenceBlock: referenceBlock}
	return env, env.Validate()
}
