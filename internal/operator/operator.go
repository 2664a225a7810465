// Package operator ties the registration handshake, the task event stream
// and the task responder into one running node.
package operator

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/trigg3rX/pumpkit-operator/internal/operator/registration"
	"github.com/trigg3rX/pumpkit-operator/pkg/signer"
)

// Operator is the process-wide identity. Its status is written by the
// registration coordinator before the watcher starts.
type Operator struct {
	signer signer.Signer

	mu     sync.RWMutex
	status registration.Status
}

func NewOperator(s signer.Signer) *Operator {
	return &Operator{signer: s, status: registration.Unregistered}
}

func (o *Operator) Address() common.Address {
	return o.signer.Address()
}

func (o *Operator) Signer() signer.Signer {
	return o.signer
}

func (o *Operator) Status() registration.Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// SetStatus is meant to be passed to Coordinator.OnStatusChange
func (o *Operator) SetStatus(s registration.Status) {
	o.mu.Lock()
	o.status = s
	o.mu.Unlock()
}
