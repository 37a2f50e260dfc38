package session

import (
	"errors"
	"fmt"

	"github.com/samiralibabic/stepd/internal/protocol"
)

var (
	ErrNotInitialized = errors.New("session not initialized")
	ErrSessionClosed  = errors.New("session closed")
)

// StateError rejects a command that is not legal in the session's current
// state. It matches ErrNotInitialized or ErrSessionClosed.
type StateError struct {
	State  State
	Method string
	Err    error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s is not allowed while %s", e.Err, e.Method, e.State)
}

func (e *StateError) Unwrap() error { return e.Err }

func (e *StateError) RPCCode() int { return protocol.CodeInvalidState }

func (e *StateError) RPCData() any {
	return map[string]string{"state": e.State.String(), "method": e.Method}
}

type MethodNotFoundError struct {
	Method string
}

func (e *MethodNotFoundError) Error() string { return "Method not found" }

func (e *MethodNotFoundError) RPCCode() int { return protocol.CodeMethodNotFound }

func (e *MethodNotFoundError) RPCData() any {
	return map[string]string{"method": e.Method}
}

// CapabilityError wraps a failure reported by the VM or by artifact
// loading. Its message is the cause's message.
type CapabilityError struct {
	Op  string
	Err error
}

func (e *CapabilityError) Error() string { return e.Err.Error() }

func (e *CapabilityError) Unwrap() error { return e.Err }

func (e *CapabilityError) RPCCode() int { return protocol.CodeInternal }

func (e *CapabilityError) RPCData() any {
	return map[string]string{"op": e.Op}
}

// AddressError rejects a continue target that is not a program counter.
type AddressError struct {
	Token string
	Err   error
}

func (e *AddressError) Error() string { return e.Err.Error() }

func (e *AddressError) Unwrap() error { return e.Err }

func (e *AddressError) RPCCode() int { return protocol.CodeInvalidParams }

func (e *AddressError) RPCData() any {
	return map[string]string{"param": "until", "value": e.Token}
}
