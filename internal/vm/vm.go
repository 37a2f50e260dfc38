// Package vm declares the capability the debug session needs from a virtual
// machine runtime. The session only ever talks to a runtime through
// Capability and the opaque Program and Execution handles it returns, so any
// runtime can be plugged in by writing an adapter.
package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	// ErrMalformedProgram is returned by Load when the artifact cannot be parsed.
	ErrMalformedProgram = errors.New("malformed program")

	// ErrExecutionClosed is returned when a released execution is used.
	ErrExecutionClosed = errors.New("execution is closed")

	// ErrForeignHandle is returned when a handle created by another runtime is passed in.
	ErrForeignHandle = errors.New("handle was not created by this runtime")
)

// PC marks an execution position inside a loaded program.
type PC uint32

func (pc PC) String() string {
	return fmt.Sprintf("0x%x", uint32(pc))
}

// ParsePC accepts hexadecimal ("0x1f"), octal ("0o17"), binary ("0b1") and
// decimal tokens.
func ParsePC(token string) (PC, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(token), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid instruction pointer %q: %w", token, err)
	}
	return PC(v), nil
}

// Program is a loaded, not yet running, program.
type Program interface {
	Name() string
}

// Execution is a live instance of a Program. It is owned by exactly one
// debug session and must be released with Close.
type Execution interface {
	PC() PC
	Close() error
}

type Options struct {
	// StepBudget caps the units executed by a single Run. Zero means no cap.
	StepBudget int

	// Output receives whatever the program prints.
	Output io.Writer
}

type StopKind int

const (
	// StopStep executes exactly one unit.
	StopStep StopKind = iota
	// StopAt runs until the execution reaches Target.
	StopAt
	// StopPause suspends without executing anything.
	StopPause
)

type StopCondition struct {
	Kind   StopKind
	Target PC
}

func Step() StopCondition { return StopCondition{Kind: StopStep} }
func Until(target PC) StopCondition { return StopCondition{Kind: StopAt, Target: target} }
func Pause() StopCondition { return StopCondition{Kind: StopPause} }

// Reason tells why a Run returned.
type Reason int

const (
	ReasonStep Reason = iota
	ReasonReached
	ReasonPaused
	ReasonFinished
	ReasonTrapped
	ReasonOutOfResource
)

// String returns the status reported to clients. ReasonReached reads
// "running": the execution is still live, parked at the requested position.
func (r Reason) String() string {
	switch r {
	case ReasonStep:
		return "step"
	case ReasonReached:
		return "running"
	case ReasonPaused:
		return "paused"
	case ReasonFinished:
		return "finished"
	case ReasonTrapped:
		return "trapped"
	case ReasonOutOfResource:
		return "out-of-resource"
	default:
		return "unknown"
	}
}

// Interrupt reports where and why a run stopped. Err is set for traps.
type Interrupt struct {
	Reason Reason
	PC     PC
	Err    error
}

type SourceLocation struct {
	File     string
	Line     int
	Function string
}

// Capability is the runtime surface consumed by the debug session.
type Capability interface {
	Load(ctx context.Context, name string, code []byte) (Program, error)
	Instantiate(prog Program, opts Options) (Execution, error)
	Run(ctx context.Context, exec Execution, stop StopCondition) (Interrupt, error)
	ResolveSource(exec Execution, pc PC) (SourceLocation, bool)
}
