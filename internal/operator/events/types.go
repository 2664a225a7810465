package events

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Kind is the service manager event a task came from
type Kind int

const (
	TokenDataCreated Kind = iota + 1
	TokenDetailRequested
)

func (k Kind) String() string {
	switch k {
	case TokenDataCreated:
		return "TokenDataCreated"
	case TokenDetailRequested:
		return "TokenDetailRequested"
	default:
		return "Unknown"
	}
}

// TaskEvent is one task observed on chain. Data tasks are identified by
// (Kind, TaskIndex, SubjectAddress). Detail requests carry no index, so
// they are identified by the log that emitted them.
type TaskEvent struct {
	Kind           Kind
	TaskIndex      uint32
	SubjectName    string
	SubjectAddress common.Address
	CreatedAtBlock uint64

	TxHash   common.Hash
	LogIndex uint
}

// Key identifies the task across redeliveries
func (e TaskEvent) Key() string {
	if e.Kind == TokenDetailRequested {
		return fmt.Sprintf("%s:%s:%d", e.Kind, e.TxHash.Hex(), e.LogIndex)
	}
	return fmt.Sprintf("%s:%d:%s", e.Kind, e.TaskIndex, e.SubjectAddress.Hex())
}

// LogFields returns the fields every per-task log line carries
func (e TaskEvent) LogFields() []interface{} {
	return []interface{}{
		"kind", e.Kind.String(),
		"task_index", e.TaskIndex,
		"subject", e.SubjectName,
		"subject_address", e.SubjectAddress.Hex(),
		"block", e.CreatedAtBlock,
	}
}
