package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Caller runs read-only contract calls. submission.Gateway satisfies it.
type Caller interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Addresses of the contracts the operator talks to
type Addresses struct {
	DelegationManager common.Address
	AVSDirectory      common.Address
	ServiceManager    common.Address
	StakeRegistry     common.Address
}

// Reader wraps the view functions used during registration
type Reader struct {
	caller Caller
	addrs  Addresses
}

func NewReader(caller Caller, addrs Addresses) *Reader {
	return &Reader{caller: caller, addrs: addrs}
}

func (r *Reader) Addresses() Addresses {
	return r.addrs
}

func (r *Reader) IsOperator(ctx context.Context, operator common.Address) (bool, error) {
	return r.callBool(ctx, DelegationManagerMetaData, r.addrs.DelegationManager, MethodIsOperator, operator)
}

func (r *Reader) OperatorRegistered(ctx context.Context, operator common.Address) (bool, error) {
	return r.callBool(ctx, StakeRegistryMetaData, r.addrs.StakeRegistry, MethodOperatorRegistered, operator)
}

// CalculateRegistrationDigest asks the AVSDirectory for the digest the
// operator has to sign to register with avs.
func (r *Reader) CalculateRegistrationDigest(ctx context.Context, operator, avs common.Address, salt [32]byte, expiry *big.Int) (common.Hash, error) {
	out, err := r.call(ctx, AVSDirectoryMetaData, r.addrs.AVSDirectory, MethodCalculateDigestHash, operator, avs, salt, expiry)
	if err != nil {
		return common.Hash{}, err
	}
	digest, ok := out[0].([32]byte)
	if !ok {
		return common.Hash{}, fmt.Errorf("unexpected %s output type %T", MethodCalculateDigestHash, out[0])
	}
	return common.Hash(digest), nil
}

func (r *Reader) callBool(ctx context.Context, md *bind.MetaData, to common.Address, method string, args ...interface{}) (bool, error) {
	out, err := r.call(ctx, md, to, method, args...)
	if err != nil {
		return false, err
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected %s output type %T", method, out[0])
	}
	return v, nil
}

func (r *Reader) call(ctx context.Context, md *bind.MetaData, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	if to == (common.Address{}) {
		return nil, fmt.Errorf("no contract address configured for %s", method)
	}
	parsed, err := md.GetAbi()
	if err != nil {
		return nil, fmt.Errorf("failed to parse abi: %w", err)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	raw, err := r.caller.Call(ctx, to, data)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s returned no data: %w", method, bind.ErrNoCode)
	}

	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return out, nil
}
