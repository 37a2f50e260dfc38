// Package session holds the per-connection debug session and the state
// machine that decides which commands it accepts.
package session

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/go-logr/logr"

	"github.com/samiralibabic/stepd/internal/locate"
	"github.com/samiralibabic/stepd/internal/protocol"
	"github.com/samiralibabic/stepd/internal/version"
	"github.com/samiralibabic/stepd/internal/vm"
)

// Session owns at most one VM execution. It belongs to a single connection
// and is not safe for concurrent use.
type Session struct {
	cap     vm.Capability
	log     logr.Logger
	locator *locate.Locator
	budget  int
	output  io.Writer

	state State
	exec  vm.Execution
}

type Option func(*Session)

func WithLogger(log logr.Logger) Option {
	return func(s *Session) { s.log = log }
}

func WithLocator(l *locate.Locator) Option {
	return func(s *Session) { s.locator = l }
}

func WithStepBudget(n int) Option {
	return func(s *Session) { s.budget = n }
}

// WithOutput sends program output to w instead of the session log.
func WithOutput(w io.Writer) Option {
	return func(s *Session) { s.output = w }
}

func New(c vm.Capability, opts ...Option) *Session {
	s := &Session{
		cap: c,
		log: logr.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locator == nil {
		s.locator = &locate.Locator{}
	}
	if s.output == nil {
		s.output = &logWriter{log: s.log.WithName("program")}
	}
	return s
}

func (s *Session) State() State { return s.state }

// Initialize loads the program found at path and makes it the session's
// execution. A previous execution is released only once the new one exists.
func (s *Session) Initialize(ctx context.Context, path string) (protocol.InitializeResult, error) {
	resolved, err := s.locator.Resolve(path)
	if err != nil {
		return protocol.InitializeResult{}, &CapabilityError{Op: "resolve", Err: err}
	}
	code, err := s.locator.Read(resolved)
	if err != nil {
		return protocol.InitializeResult{}, &CapabilityError{Op: "read", Err: err}
	}
	prog, err := s.cap.Load(ctx, resolved, code)
	if err != nil {
		return protocol.InitializeResult{}, &CapabilityError{Op: "load", Err: err}
	}
	exec, err := s.cap.Instantiate(prog, vm.Options{StepBudget: s.budget, Output: s.output})
	if err != nil {
		return protocol.InitializeResult{}, &CapabilityError{Op: "instantiate", Err: err}
	}

	s.release()
	s.exec = exec
	s.state = Initialized
	s.log.Info("Program initialized", "program", resolved, "bytes", len(code))
	return protocol.InitializeResult{Status: "initialized", Version: version.Version}, nil
}

func (s *Session) Pause(ctx context.Context) (protocol.ExecutionResult, error) {
	return s.run(ctx, "pause", vm.Pause())
}

// Continue runs until the execution reaches the program counter named by
// until, finishes, traps or exhausts its step budget.
func (s *Session) Continue(ctx context.Context, until string) (protocol.ExecutionResult, error) {
	pc, err := vm.ParsePC(until)
	if err != nil {
		return protocol.ExecutionResult{}, &AddressError{Token: until, Err: err}
	}
	return s.run(ctx, "continue", vm.Until(pc))
}

func (s *Session) Next(ctx context.Context) (protocol.ExecutionResult, error) {
	return s.run(ctx, "next", vm.Step())
}

func (s *Session) run(ctx context.Context, op string, stop vm.StopCondition) (protocol.ExecutionResult, error) {
	intr, err := s.cap.Run(ctx, s.exec, stop)
	if err != nil {
		return protocol.ExecutionResult{}, &CapabilityError{Op: op, Err: err}
	}
	res := protocol.ExecutionResult{
		Status:             intr.Reason.String(),
		InstructionPointer: intr.PC.String(),
	}
	if loc, ok := s.cap.ResolveSource(s.exec, intr.PC); ok {
		res.Source = &protocol.SourceLocation{File: loc.File, Line: loc.Line, Function: loc.Function}
	}
	if intr.Err != nil {
		res.Message = intr.Err.Error()
	}
	s.log.V(1).Info("Run stopped", "op", op, "status", res.Status, "pc", res.InstructionPointer)
	return res, nil
}

func (s *Session) Disconnect() protocol.DisconnectResult {
	s.Close()
	return protocol.DisconnectResult{Disconnected: true}
}

// Close releases the execution and ends the session. It is used when the
// client goes away without disconnecting and is safe to call repeatedly.
func (s *Session) Close() {
	s.release()
	s.state = Disconnected
}

func (s *Session) release() {
	if s.exec == nil {
		return
	}
	if err := s.exec.Close(); err != nil {
		s.log.Error(err, "Failed to release execution")
	}
	s.exec = nil
}

// logWriter turns program output into log lines.
type logWriter struct {
	log logr.Logger
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Keep the partial line for the next write.
			w.buf.Reset()
			w.buf.WriteString(line)
			return len(p), nil
		}
		w.log.Info(line[:len(line)-1])
	}
}
