// Package luavm adapts gopher-lua to the vm.Capability interface.
//
// A program artifact is a Lua chunk. Load instruments every statement with a
// trace call carrying the statement's program counter, so a running chunk
// yields back to the runtime before each statement. One statement is one
// step. The chunk runs in a coroutine of a sandboxed LState; an execution is
// parked at the entry point as soon as it is instantiated.
//
// Statements executed underneath a Go function (pcall, table.sort
// comparators, string.gsub callbacks) cannot yield. They are traced but do
// not stop the run; they still count against the step budget.
package luavm

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/go-logr/logr"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/samiralibabic/stepd/internal/vm"
)

type Runtime struct {
	log logr.Logger
}

func New(log logr.Logger) *Runtime {
	return &Runtime{log: log.WithName("luavm")}
}

var _ vm.Capability = (*Runtime)(nil)

type program struct {
	name   string
	proto  *lua.FunctionProto
	points []point
}

func (p *program) Name() string { return p.name }

func (r *Runtime) Load(ctx context.Context, name string, code []byte) (vm.Program, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chunk, err := parse.Parse(bytes.NewReader(code), name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vm.ErrMalformedProgram, err)
	}
	chunk, points := instrument(chunk)
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vm.ErrMalformedProgram, err)
	}
	r.log.V(1).Info("Program loaded", "name", name, "statements", len(points))
	return &program{name: name, proto: proto, points: points}, nil
}

func (r *Runtime) Instantiate(p vm.Program, opts vm.Options) (vm.Execution, error) {
	prog, ok := p.(*program)
	if !ok {
		return nil, vm.ErrForeignHandle
	}
	out := opts.Output
	if out == nil {
		out = io.Discard
	}
	L, err := newSandboxedState(out)
	if err != nil {
		return nil, err
	}
	co, cancel := L.NewThread()
	e := &execution{
		prog:   prog,
		owner:  L,
		co:     co,
		cancel: cancel,
		fn:     L.NewFunctionFromProto(prog.proto),
		budget: opts.StepBudget,
	}
	e.hook = L.NewFunction(e.trace)

	// Park at the first statement so the first step executes it.
	r.resume(e)
	return e, nil
}

func (r *Runtime) Run(ctx context.Context, h vm.Execution, stop vm.StopCondition) (vm.Interrupt, error) {
	e, ok := h.(*execution)
	if !ok {
		return vm.Interrupt{}, vm.ErrForeignHandle
	}
	if e.closed {
		return vm.Interrupt{}, vm.ErrExecutionClosed
	}
	if e.done {
		return vm.Interrupt{Reason: e.end, PC: e.pc, Err: e.trap}, nil
	}
	if stop.Kind == vm.StopPause {
		return vm.Interrupt{Reason: vm.ReasonPaused, PC: e.pc}, nil
	}

	steps := 0
	for {
		if err := ctx.Err(); err != nil {
			return vm.Interrupt{}, err
		}
		intr := r.resume(e)
		if intr.Reason != vm.ReasonStep {
			return intr, nil
		}
		steps++
		switch {
		case stop.Kind == vm.StopStep:
			return intr, nil
		case stop.Kind == vm.StopAt && e.pc == stop.Target:
			return vm.Interrupt{Reason: vm.ReasonReached, PC: e.pc}, nil
		case e.budget > 0 && steps >= e.budget:
			return vm.Interrupt{Reason: vm.ReasonOutOfResource, PC: e.pc}, nil
		}
	}
}

// resume runs the coroutine up to the next trace call or to the end of the
// chunk.
func (r *Runtime) resume(e *execution) vm.Interrupt {
	e.nested = 0
	var args []lua.LValue
	if !e.started {
		// The chunk's varargs carry the trace hook into its hidden local.
		args = []lua.LValue{e.hook}
		e.started = true
	}
	st, err, _ := e.owner.Resume(e.co, e.fn, args...)
	switch {
	case e.exhausted:
		e.done, e.end = true, vm.ReasonOutOfResource
		r.log.V(1).Info("Step budget exhausted", "name", e.prog.name, "pc", e.pc.String())
		return vm.Interrupt{Reason: vm.ReasonOutOfResource, PC: e.pc}
	case st == lua.ResumeYield:
		return vm.Interrupt{Reason: vm.ReasonStep, PC: e.pc}
	case st == lua.ResumeOK:
		e.done, e.end = true, vm.ReasonFinished
		r.log.V(1).Info("Program finished", "name", e.prog.name)
		return vm.Interrupt{Reason: vm.ReasonFinished, PC: e.pc}
	default:
		e.done, e.end, e.trap = true, vm.ReasonTrapped, err
		r.log.V(1).Info("Program trapped", "name", e.prog.name, "pc", e.pc.String(), "error", err.Error())
		return vm.Interrupt{Reason: vm.ReasonTrapped, PC: e.pc, Err: err}
	}
}

func (r *Runtime) ResolveSource(h vm.Execution, pc vm.PC) (vm.SourceLocation, bool) {
	e, ok := h.(*execution)
	if !ok || int(pc) >= len(e.prog.points) {
		return vm.SourceLocation{}, false
	}
	p := e.prog.points[pc]
	return vm.SourceLocation{File: e.prog.name, Line: p.line, Function: p.function}, true
}

type execution struct {
	prog   *program
	owner  *lua.LState
	co     *lua.LState
	cancel context.CancelFunc
	fn     *lua.LFunction
	hook   *lua.LFunction
	budget int

	pc        vm.PC
	started   bool
	nested    int
	exhausted bool
	done      bool
	end       vm.Reason
	trap      error
	closed    bool
}

func (e *execution) PC() vm.PC { return e.pc }

func (e *execution) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.cancel != nil {
		e.cancel()
	}
	e.owner.Close()
	return nil
}

// trace is the Go side of the instrumented trace calls.
func (e *execution) trace(L *lua.LState) int {
	e.pc = vm.PC(L.CheckInt(1))
	if underGoFrame(L) {
		e.nested++
		if e.budget > 0 && e.nested > e.budget {
			e.exhausted = true
			L.RaiseError("step budget of %d exhausted inside a non-yieldable call", e.budget)
		}
		return 0
	}
	return L.Yield(lua.LNumber(e.pc))
}

// underGoFrame reports whether any caller of the trace call is a Go
// function, in which case yielding would cross a Go call boundary.
func underGoFrame(L *lua.LState) bool {
	for level := 1; ; level++ {
		dbg, ok := L.GetStack(level)
		if !ok {
			return false
		}
		if _, err := L.GetInfo("S", dbg, lua.LNil); err != nil {
			return false
		}
		if dbg.What == "G" {
			return true
		}
	}
}
