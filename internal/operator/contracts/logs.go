package contracts

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var errNoEventSignature = errors.New("log has no event signature")

// TokenDataCreatedLog is a decoded NewTokenDataCreated event
type TokenDataCreatedLog struct {
	TokenDataIndex  uint32
	TokenName       string
	ContractAddress common.Address
}

// TokenDetailRequestedLog is a decoded NewTokenDetailRequested event
type TokenDetailRequestedLog struct {
	ContractAddress common.Address
	TokenName       string
}

// EventID returns topic0 of a service manager event
func EventID(name string) (common.Hash, error) {
	parsed, err := ServiceManagerMetaData.GetAbi()
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to parse abi: %w", err)
	}
	event, ok := parsed.Events[name]
	if !ok {
		return common.Hash{}, fmt.Errorf("unknown event %s", name)
	}
	return event.ID, nil
}

func ParseNewTokenDataCreated(log types.Log) (*TokenDataCreatedLog, error) {
	out := new(TokenDataCreatedLog)
	if err := unpackLog(out, EventNewTokenDataCreated, log); err != nil {
		return nil, err
	}
	return out, nil
}

func ParseNewTokenDetailRequested(log types.Log) (*TokenDetailRequestedLog, error) {
	out := new(TokenDetailRequestedLog)
	if err := unpackLog(out, EventNewTokenDetailRequested, log); err != nil {
		return nil, err
	}
	return out, nil
}

func unpackLog(out interface{}, name string, log types.Log) error {
	if len(log.Topics) == 0 {
		return errNoEventSignature
	}
	parsed, err := ServiceManagerMetaData.GetAbi()
	if err != nil {
		return fmt.Errorf("failed to parse abi: %w", err)
	}
	event := parsed.Events[name]
	if log.Topics[0] != event.ID {
		return fmt.Errorf("log is not a %s event", name)
	}

	if len(log.Data) > 0 {
		if err := parsed.UnpackIntoInterface(out, name, log.Data); err != nil {
			return fmt.Errorf("failed to unpack %s data: %w", name, err)
		}
	}

	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopics(out, indexed, log.Topics[1:]); err != nil {
		return fmt.Errorf("failed to parse %s topics: %w", name, err)
	}
	return nil
}
