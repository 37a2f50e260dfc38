package luavm

import (
	"strconv"

	"github.com/yuin/gopher-lua/ast"
)

// traceFunc names the chunk local holding the trace hook. It is called before
// every statement with the statement's program counter. The name is not a
// valid Lua identifier, so program code can neither read nor shadow it.
const traceFunc = "(stepd trace)"

const mainChunk = "main chunk"

// point is what a program counter resolves to.
type point struct {
	line     int
	function string
}

// instrumenter rewrites a parsed chunk so that every statement is preceded by
// a trace call. Program counters are assigned in source order.
type instrumenter struct {
	points []point
}

func instrument(chunk []ast.Stmt) ([]ast.Stmt, []point) {
	in := &instrumenter{}
	body := in.block(chunk, mainChunk, 1, false)
	return wrap(body), in.points
}

// wrap binds the trace hook passed as the chunk's first vararg and runs body
// in an inner function called without arguments:
//
//	local <traceFunc> = ...
//	(function(...) <body> end)()
//
// so the program's own varargs stay empty.
func wrap(body []ast.Stmt) []ast.Stmt {
	last := 1
	if n := len(body); n > 0 {
		last = body[n-1].LastLine()
	}
	bind := &ast.LocalAssignStmt{Names: []string{traceFunc}, Exprs: []ast.Expr{&ast.Comma3Expr{}}}
	bind.SetLine(1)
	bind.SetLastLine(1)

	inner := &ast.FunctionExpr{ParList: &ast.ParList{HasVargs: true, Names: []string{}}, Stmts: body}
	inner.SetLine(1)
	inner.SetLastLine(last)
	call := &ast.FuncCallExpr{Func: inner}
	call.SetLine(1)
	call.SetLastLine(last)
	run := &ast.FuncCallStmt{Expr: call}
	run.SetLine(1)
	run.SetLastLine(last)
	return []ast.Stmt{bind, run}
}

func (in *instrumenter) marker(line int, fn string) ast.Stmt {
	pc := len(in.points)
	in.points = append(in.points, point{line: line, function: fn})

	ident := &ast.IdentExpr{Value: traceFunc}
	ident.SetLine(line)
	arg := &ast.NumberExpr{Value: strconv.Itoa(pc)}
	arg.SetLine(line)
	call := &ast.FuncCallExpr{Func: ident, Args: []ast.Expr{arg}}
	call.SetLine(line)
	call.SetLastLine(line)
	stmt := &ast.FuncCallStmt{Expr: call}
	stmt.SetLine(line)
	stmt.SetLastLine(line)
	return stmt
}

// block instruments stmts. Loop bodies pass ensure so that even an empty body
// yields once per iteration and cannot spin without reaching a trace call.
func (in *instrumenter) block(stmts []ast.Stmt, fn string, line int, ensure bool) []ast.Stmt {
	out := make([]ast.Stmt, 0, 2*len(stmts)+1)
	if len(stmts) == 0 && ensure {
		out = append(out, in.marker(line, fn))
	}
	for _, st := range stmts {
		out = append(out, in.marker(st.Line(), fn))
		in.stmt(st, fn)
		out = append(out, st)
	}
	return out
}

func (in *instrumenter) stmt(st ast.Stmt, fn string) {
	switch s := st.(type) {
	case *ast.DoBlockStmt:
		s.Stmts = in.block(s.Stmts, fn, s.Line(), false)
	case *ast.WhileStmt:
		in.expr(s.Condition, fn, "")
		s.Stmts = in.block(s.Stmts, fn, s.Line(), true)
	case *ast.RepeatStmt:
		s.Stmts = in.block(s.Stmts, fn, s.Line(), true)
		in.expr(s.Condition, fn, "")
	case *ast.IfStmt:
		in.expr(s.Condition, fn, "")
		s.Then = in.block(s.Then, fn, s.Line(), false)
		s.Else = in.block(s.Else, fn, s.Line(), false)
	case *ast.NumberForStmt:
		in.exprs(fn, s.Init, s.Limit, s.Step)
		s.Stmts = in.block(s.Stmts, fn, s.Line(), true)
	case *ast.GenericForStmt:
		in.exprs(fn, s.Exprs...)
		s.Stmts = in.block(s.Stmts, fn, s.Line(), true)
	case *ast.FuncDefStmt:
		in.function(s.Func, funcName(s.Name))
	case *ast.LocalAssignStmt:
		for i, e := range s.Exprs {
			name := ""
			if i < len(s.Names) {
				name = s.Names[i]
			}
			in.expr(e, fn, name)
		}
	case *ast.AssignStmt:
		in.exprs(fn, s.Lhs...)
		for i, e := range s.Rhs {
			name := ""
			if i < len(s.Lhs) {
				name = exprName(s.Lhs[i])
			}
			in.expr(e, fn, name)
		}
	case *ast.FuncCallStmt:
		in.expr(s.Expr, fn, "")
	case *ast.ReturnStmt:
		in.exprs(fn, s.Exprs...)
	}
}

func (in *instrumenter) exprs(fn string, exprs ...ast.Expr) {
	for _, e := range exprs {
		in.expr(e, fn, "")
	}
}

// expr walks into expressions looking for function literals; name is the
// binding the expression is assigned to, if any.
func (in *instrumenter) expr(e ast.Expr, fn, name string) {
	switch x := e.(type) {
	case nil:
	case *ast.FunctionExpr:
		if name == "" {
			name = "function@" + strconv.Itoa(x.Line())
		}
		in.function(x, name)
	case *ast.FuncCallExpr:
		in.exprs(fn, x.Func, x.Receiver)
		in.exprs(fn, x.Args...)
	case *ast.TableExpr:
		for _, f := range x.Fields {
			in.expr(f.Key, fn, "")
			in.expr(f.Value, fn, exprName(f.Key))
		}
	case *ast.AttrGetExpr:
		in.exprs(fn, x.Object, x.Key)
	case *ast.LogicalOpExpr:
		in.exprs(fn, x.Lhs, x.Rhs)
	case *ast.RelationalOpExpr:
		in.exprs(fn, x.Lhs, x.Rhs)
	case *ast.StringConcatOpExpr:
		in.exprs(fn, x.Lhs, x.Rhs)
	case *ast.ArithmeticOpExpr:
		in.exprs(fn, x.Lhs, x.Rhs)
	case *ast.UnaryMinusOpExpr:
		in.expr(x.Expr, fn, "")
	case *ast.UnaryNotOpExpr:
		in.expr(x.Expr, fn, "")
	case *ast.UnaryLenOpExpr:
		in.expr(x.Expr, fn, "")
	}
}

func (in *instrumenter) function(f *ast.FunctionExpr, name string) {
	if f == nil {
		return
	}
	f.Stmts = in.block(f.Stmts, name, f.Line(), false)
}

func funcName(n *ast.FuncName) string {
	if n == nil {
		return "function"
	}
	if n.Method != "" {
		return exprName(n.Receiver) + ":" + n.Method
	}
	return exprName(n.Func)
}

func exprName(e ast.Expr) string {
	switch x := e.(type) {
	case *ast.IdentExpr:
		return x.Value
	case *ast.StringExpr:
		return x.Value
	case *ast.AttrGetExpr:
		return exprName(x.Object) + "." + exprName(x.Key)
	default:
		return ""
	}
}
