package submission

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Class is how a failed submission should be treated
type Class int

const (
	ClassTransient Class = iota + 1 // retry with fresh nonce and gas
	ClassRejected                   // contract said no, surface to caller
	ClassFatal                      // malformed call or unusable target
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassRejected:
		return "rejected"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

var (
	ErrTransient          = errors.New("transient chain error")
	ErrTransientExhausted = errors.New("transient chain error, attempts exhausted")
	ErrRejected           = errors.New("call rejected by contract")
	ErrFatal              = errors.New("fatal submission error")
)

// SubmissionError carries the class of a failed submission. It matches the
// class sentinels under errors.Is.
type SubmissionError struct {
	Class      Class
	Method     string
	Attempts   int
	Exhausted  bool
	Reason     string
	RevertData []byte
	TxHash     common.Hash
	Err        error
}

func (e *SubmissionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s submission of %s failed", e.Class, e.Method)
	if e.Attempts > 0 {
		fmt.Fprintf(&b, " after %d attempt(s)", e.Attempts)
	}
	if e.TxHash != (common.Hash{}) {
		fmt.Fprintf(&b, " (tx %s)", e.TxHash.Hex())
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

func (e *SubmissionError) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Class == ClassTransient
	case ErrTransientExhausted:
		return e.Class == ClassTransient && e.Exhausted
	case ErrRejected:
		return e.Class == ClassRejected
	case ErrFatal:
		return e.Class == ClassFatal
	}
	return false
}

var rejectedPatterns = []string{
	"execution reverted",
	"vm exception",
	"revert",
}

// fatalPatterns are node-side rejections that no retry can fix. Their texts
// embed addresses and wei amounts, so they are matched before the transient
// scan.
var fatalPatterns = []string{
	"insufficient funds",
	"invalid sender",
	"intrinsic gas too low",
}

var transientPatterns = []string{
	"nonce too low",
	"replacement transaction underpriced",
	"transaction underpriced",
	"already known",
	"max fee per gas less than block base fee",
	"header not found",
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"broken pipe",
	"unexpected eof",
	"too many requests",
	"rate limit",
	"temporarily unavailable",
}

// JSON-RPC codes providers use for throttling; -32005 is "limit exceeded"
var rateLimitCodes = map[int]bool{-32005: true, 429: true}

// Classify maps an RPC or client error to a Class. Unrecognised errors are
// fatal so that they are never retried blindly.
func Classify(err error) Class {
	if err == nil {
		return 0
	}
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr.Class
	}
	if errors.Is(err, context.Canceled) {
		return ClassFatal
	}
	if errors.Is(err, bind.ErrNoCode) {
		return ClassFatal
	}

	msg := strings.ToLower(err.Error())
	if containsAny(msg, rejectedPatterns) {
		return ClassRejected
	}
	if containsAny(msg, fatalPatterns) {
		return ClassFatal
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}
	if status, ok := httpStatus(err); ok {
		if status == http.StatusTooManyRequests || status >= 500 {
			return ClassTransient
		}
		return ClassFatal
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rateLimitCodes[rpcErr.ErrorCode()] {
		return ClassTransient
	}
	if containsAny(msg, transientPatterns) {
		return ClassTransient
	}
	return ClassFatal
}

// httpStatus returns the status of a non-2xx reply from an HTTP RPC endpoint
func httpStatus(err error) (int, bool) {
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}
	var httpErrPtr *rpc.HTTPError
	if errors.As(err, &httpErrPtr) && httpErrPtr != nil {
		return httpErrPtr.StatusCode, true
	}
	return 0, false
}

func containsAny(msg string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// RevertReason extracts the Error(string) reason from an RPC revert, falling
// back to the error text.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	if data := RevertData(err); len(data) > 0 {
		if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
			return reason
		}
	}
	return err.Error()
}

// Custom error selectors raised by the core and middleware contracts when
// the operator is already registered.
var alreadyRegisteredSelectors = [][]byte{
	{0x42, 0xee, 0x68, 0xb5}, // OperatorAlreadyRegistered()
	{0x77, 0xe5, 0x6a, 0x06}, // ActivelyDelegated()
	{0x35, 0x4a, 0x51, 0x76}, // OperatorAlreadyRegisteredToAVS()
}

var alreadyRegisteredPatterns = []string{
	"already registered",
	"already an operator",
	"already actively delegated",
	"operatoralreadyregistered",
}

// IsAlreadyRegistered reports whether a rejection means the operator is
// already where the call wanted it to be.
func IsAlreadyRegistered(err error) bool {
	if err == nil {
		return false
	}
	if data := RevertData(err); len(data) >= 4 {
		for _, sel := range alreadyRegisteredSelectors {
			if bytes.Equal(data[:4], sel) {
				return true
			}
		}
	}
	reason := strings.ToLower(err.Error())
	for _, p := range alreadyRegisteredPatterns {
		if strings.Contains(reason, p) {
			return true
		}
	}
	return false
}

// RevertData returns the raw revert payload attached to an RPC error, if any
func RevertData(err error) []byte {
	var subErr *SubmissionError
	if errors.As(err, &subErr) && len(subErr.RevertData) > 0 {
		return subErr.RevertData
	}
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil
	}
	hexData, ok := dataErr.ErrorData().(string)
	if !ok {
		return nil
	}
	data, decodeErr := hexutil.Decode(hexData)
	if decodeErr != nil {
		return nil
	}
	return data
}
