// Package responder answers one task: it asks the oracle, signs the answer
// and submits the signed response to the service manager.
package responder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/trigg3rX/pumpkit-operator/internal/operator/contracts"
	"github.com/trigg3rX/pumpkit-operator/internal/operator/events"
	"github.com/trigg3rX/pumpkit-operator/internal/operator/oracle"
	"github.com/trigg3rX/pumpkit-operator/pkg/digest"
	"github.com/trigg3rX/pumpkit-operator/pkg/logging"
	"github.com/trigg3rX/pumpkit-operator/pkg/signer"
	"github.com/trigg3rX/pumpkit-operator/pkg/submission"
)

// Outcome is the terminal state of one task
type Outcome string

const (
	OutcomeSubmitted Outcome = "submitted"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
	OutcomeDuplicate Outcome = "duplicate"
)

type Result struct {
	Outcome        Outcome
	Err            error
	TxHash         common.Hash
	ReferenceBlock uint32
	Elapsed        time.Duration
}

type Composer interface {
	Compose(ctx context.Context, event events.TaskEvent) (oracle.ResponsePayload, error)
}

// Gateway submits the response and reads the chain head for the reference block
type Gateway interface {
	Submit(ctx context.Context, call submission.ContractCall) (*submission.Confirmation, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

type TaskResponder struct {
	serviceManager common.Address
	composer       Composer
	signer         signer.Signer
	gateway        Gateway
	logger         logging.Logger
}

func NewTaskResponder(serviceManager common.Address, composer Composer, s signer.Signer, gateway Gateway, logger logging.Logger) *TaskResponder {
	return &TaskResponder{
		serviceManager: serviceManager,
		composer:       composer,
		signer:         s,
		gateway:        gateway,
		logger:         logger,
	}
}

// Handle runs compose, digest, sign, envelope and submit strictly in order
// and logs exactly one line for the terminal state.
func (r *TaskResponder) Handle(ctx context.Context, event events.TaskEvent) Result {
	start := time.Now()
	logger := r.logger.WithTraceID(uuid.NewString()).With(event.LogFields()...)

	result := r.handle(ctx, event, logger)
	result.Elapsed = time.Since(start)

	LogOutcome(logger, result)
	return result
}

func (r *TaskResponder) handle(ctx context.Context, event events.TaskEvent, logger logging.Logger) Result {
	payload, err := r.composer.Compose(ctx, event)
	if err != nil {
		return Result{Outcome: OutcomeSkipped, Err: err}
	}
	message := payload.Message()

	taskDigest := digest.BuildTaskDigest(message)
	signature, err := r.signer.SignMessage(taskDigest.Bytes())
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("failed to sign task digest: %w", err)}
	}

	head, err := r.gateway.BlockNumber(ctx)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("failed to read chain head: %w", err)}
	}
	if head == 0 || head-1 > math.MaxUint32 {
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("chain head %d cannot give a reference block", head)}
	}
	referenceBlock := uint32(head - 1)

	envelope, err := digest.NewSingleEnvelope(r.signer.Address(), signature, referenceBlock).Encode()
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	call, err := r.buildCall(event, message, envelope)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: err, ReferenceBlock: referenceBlock}
	}

	logger.Debug("Submitting task response", "message", message, "digest", taskDigest.Hex(), "reference_block", referenceBlock)

	conf, err := r.gateway.Submit(ctx, call)
	if err != nil {
		outcome := OutcomeFailed
		if errors.Is(err, submission.ErrRejected) {
			outcome = OutcomeRejected
		}
		return Result{Outcome: outcome, Err: err, ReferenceBlock: referenceBlock}
	}

	return Result{Outcome: OutcomeSubmitted, TxHash: conf.TxHash, ReferenceBlock: referenceBlock}
}

func (r *TaskResponder) buildCall(event events.TaskEvent, message string, envelope []byte) (submission.ContractCall, error) {
	if event.CreatedAtBlock > math.MaxUint32 {
		return submission.ContractCall{}, fmt.Errorf("task block %d overflows uint32", event.CreatedAtBlock)
	}
	task := contracts.TokenTask{
		TokenName:             event.SubjectName,
		ContractAddress:       event.SubjectAddress,
		TokenDataCreatedBlock: uint32(event.CreatedAtBlock),
	}

	var (
		method string
		data   []byte
		err    error
	)
	switch event.Kind {
	case events.TokenDataCreated:
		method = contracts.MethodRespondToTokenData
		data, err = contracts.PackRespondToTokenData(task, message, event.TaskIndex, envelope)
	case events.TokenDetailRequested:
		method = contracts.MethodRespondToTokenDetails
		data, err = contracts.PackRespondToTokenDetails(task, message, event.TaskIndex, envelope)
	default:
		return submission.ContractCall{}, fmt.Errorf("unsupported task kind %s", event.Kind)
	}
	if err != nil {
		return submission.ContractCall{}, err
	}

	return submission.ContractCall{To: r.serviceManager, Method: method, Data: data}, nil
}

// LogOutcome writes the single terminal log line of a task
func LogOutcome(logger logging.Logger, result Result) {
	fields := []interface{}{"outcome", string(result.Outcome), "elapsed", result.Elapsed}
	if result.TxHash != (common.Hash{}) {
		fields = append(fields, "tx", result.TxHash.Hex())
	}
	if result.ReferenceBlock > 0 {
		fields = append(fields, "reference_block", result.ReferenceBlock)
	}
	if result.Err != nil {
		fields = append(fields, "error", result.Err.Error())
	}

	switch result.Outcome {
	case OutcomeSubmitted:
		logger.Info("Task submitted", fields...)
	case OutcomeSkipped:
		logger.Warn("Task skipped", fields...)
	case OutcomeDuplicate:
		logger.Info("Task already handled", fields...)
	case OutcomeRejected:
		logger.Error("Task rejected", fields...)
	default:
		logger.Error("Task failed", fields...)
	}
}
