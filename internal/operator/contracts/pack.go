package contracts

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// OperatorDetails is the DelegationManager operator registration tuple
type OperatorDetails struct {
	EarningsReceiver         common.Address
	DelegationApprover       common.Address
	StakerOptOutWindowBlocks uint32
}

// SignatureWithSaltAndExpiry is the tuple the stake registry verifies
// against the AVSDirectory registration digest.
type SignatureWithSaltAndExpiry struct {
	Signature []byte
	Salt      [32]byte
	Expiry    *big.Int
}

// TokenTask is the task tuple echoed back in every service manager response
type TokenTask struct {
	TokenName             string
	ContractAddress       common.Address
	TokenDataCreatedBlock uint32
}

func pack(md *bind.MetaData, method string, args ...interface{}) ([]byte, error) {
	parsed, err := md.GetAbi()
	if err != nil {
		return nil, fmt.Errorf("failed to parse abi: %w", err)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	return data, nil
}

func PackRegisterAsOperator(details OperatorDetails, metadataURI string) ([]byte, error) {
	return pack(DelegationManagerMetaData, MethodRegisterAsOperator, details, metadataURI)
}

func PackRegisterOperatorWithSignature(sig SignatureWithSaltAndExpiry, signingKey common.Address) ([]byte, error) {
	if sig.Expiry == nil {
		return nil, errors.New("signature expiry is required")
	}
	return pack(StakeRegistryMetaData, MethodRegisterWithSignature, sig, signingKey)
}

func PackRespondToTokenData(task TokenTask, isEligible string, taskIndex uint32, envelope []byte) ([]byte, error) {
	return pack(ServiceManagerMetaData, MethodRespondToTokenData, task, isEligible, taskIndex, envelope)
}

func PackRespondToTokenDetails(task TokenTask, description string, taskIndex uint32, envelope []byte) ([]byte, error) {
	return pack(ServiceManagerMetaData, MethodRespondToTokenDetails, task, description, taskIndex, envelope)
}

// RespondCall is a decoded respondToTokenData or respondToTokenDetails call
type RespondCall struct {
	Method    string
	Task      TokenTask
	Answer    string
	TaskIndex uint32
	Envelope  []byte
}

// DecodeRespondCall decodes service manager response calldata
func DecodeRespondCall(data []byte) (*RespondCall, error) {
	if len(data) < 4 {
		return nil, errors.New("calldata too short")
	}
	parsed, err := ServiceManagerMetaData.GetAbi()
	if err != nil {
		return nil, fmt.Errorf("failed to parse abi: %w", err)
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	if method.Name != MethodRespondToTokenData && method.Name != MethodRespondToTokenDetails {
		return nil, fmt.Errorf("unexpected method %s", method.Name)
	}

	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method.Name, err)
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("expected 4 arguments, got %d", len(values))
	}

	task, ok := abi.ConvertType(values[0], new(TokenTask)).(*TokenTask)
	if !ok {
		return nil, errors.New("unexpected task tuple type")
	}
	answer, _ := values[1].(string)
	taskIndex, _ := values[2].(uint32)
	envelope, _ := values[3].([]byte)

	return &RespondCall{
		Method:    method.Name,
		Task:      *task,
		Answer:    answer,
		TaskIndex: taskIndex,
		Envelope:  envelope,
	}, nil
}
