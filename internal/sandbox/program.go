package sandbox

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Kind tells whether a snippet runs as an action or is evaluated as a condition.
type Kind int

const (
	KindAction Kind = iota
	KindCondition
)

func (k Kind) String() string {
	if k == KindCondition {
		return "condition"
	}
	return "action"
}

// Scope is the environment a snippet runs against.
type Scope struct {
	// Variables is the persistent variable store. Actions write back into it.
	Variables map[string]any
	Tick      int
	// Machine is exposed to snippets as "sm".
	Machine map[string]any
	// Print receives the output of print().
	Print func(string)
}

// Program is a compiled snippet. A blocked program never runs; it carries the
// reason it was refused.
type Program struct {
	source  string
	kind    Kind
	stmts   []compiled
	blocked error
}

type compiled struct {
	statement
	program *vm.Program
	names   []string
	body    *compiled
}

// Compile checks and compiles a snippet. It returns a *Violation when the
// snippet uses a refused construct and a *SyntaxError when it cannot be parsed.
func Compile(source string, kind Kind) (*Program, error) {
	raws, err := splitStatements(source)
	if err != nil {
		return nil, err
	}
	stmts := make([]statement, 0, len(raws))
	for _, raw := range raws {
		st, err := parseStatement(raw)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
	}

	var reasons []string
	for _, st := range stmts {
		for s := &st; s != nil; s = s.body {
			if s.kind == stmtImport {
				reasons = append(reasons, fmt.Sprintf("Imports (%s) are not allowed in FSM code.", s.expr))
			}
		}
	}
	if len(reasons) > 0 {
		return nil, &Violation{Reasons: reasons}
	}

	if kind == KindCondition {
		if len(stmts) != 1 || stmts[0].kind != stmtExpr {
			line := 1
			if len(stmts) > 0 {
				line = stmts[len(stmts)-1].line
			}
			return nil, &SyntaxError{Msg: "condition must be a single expression", Line: line, Offset: 1}
		}
	}

	p := &Program{source: source, kind: kind}
	var violation Violation
	for _, st := range stmts {
		c, err := compileStatement(st, &violation)
		if err != nil {
			return nil, err
		}
		p.stmts = append(p.stmts, c)
	}
	if len(violation.Reasons) > 0 {
		return nil, &violation
	}
	return p, nil
}

func compileStatement(st statement, violation *Violation) (compiled, error) {
	c := compiled{statement: st}
	if st.kind == stmtPass {
		return c, nil
	}
	src := st.expr
	if st.kind == stmtAssign && st.op != "" {
		src = fmt.Sprintf("(%s) %s (%s)", st.target, st.op, st.expr)
	}
	src, err := rewriteFloorDiv(src, st.line)
	if err != nil {
		var vio *Violation
		if errors.As(err, &vio) {
			for _, r := range vio.Reasons {
				if !contains(violation.Reasons, r) {
					violation.Reasons = append(violation.Reasons, r)
				}
			}
			return c, nil
		}
		return c, err
	}

	v, err := inspect(src, st.line)
	if err != nil {
		return c, err
	}
	for _, r := range v.violations {
		if !contains(violation.Reasons, r) {
			violation.Reasons = append(violation.Reasons, r)
		}
	}
	c.names = v.names

	if len(v.violations) == 0 {
		program, err := expr.Compile(src, expr.DisableAllBuiltins(), expr.Patch(&pythonPatcher{}))
		if err != nil {
			return c, &SyntaxError{Msg: firstLine(err.Error()), Line: st.line, Offset: 1}
		}
		c.program = program
	}

	if st.body != nil {
		body, err := compileStatement(*st.body, violation)
		if err != nil {
			return c, err
		}
		c.body = &body
	}
	return c, nil
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

// Blocked wraps a snippet that failed Compile so callers can keep a placeholder.
func Blocked(source string, kind Kind, reason error) *Program {
	return &Program{source: source, kind: kind, blocked: reason}
}

// Source returns the snippet text.
func (p *Program) Source() string { return p.source }

// Kind returns whether the program is an action or a condition.
func (p *Program) Kind() Kind { return p.kind }

// Blocked returns the reason the program was refused, or nil.
func (p *Program) Blocked() error { return p.blocked }

// Exec runs an action. On success every name the snippet assigned is copied
// back into s.Variables; on failure the store is left untouched.
func (p *Program) Exec(s Scope) error {
	if p.blocked != nil {
		return nil
	}
	locals := maps.Clone(s.Variables)
	if locals == nil {
		locals = make(map[string]any)
	}
	env := newEnv(s)
	for _, st := range p.stmts {
		if err := execStatement(&st, locals, env); err != nil {
			return err
		}
	}
	for k, v := range locals {
		if !IsReserved(k) {
			s.Variables[k] = v
		}
	}
	return nil
}

// Eval evaluates a condition and coerces the result to a boolean.
// A blocked condition is always false.
func (p *Program) Eval(s Scope) (bool, error) {
	if p.blocked != nil {
		return false, nil
	}
	if len(p.stmts) != 1 {
		return false, errors.New("sandbox: program is not a condition")
	}
	out, err := evalExpr(&p.stmts[0], s.Variables, newEnv(s))
	if err != nil {
		return false, err
	}
	return Truthy(out), nil
}

type environment struct {
	fixed map[string]any
}

func newEnv(s Scope) environment {
	fixed := builtins(s.Print)
	for k, v := range constants {
		fixed[k] = v
	}
	fixed[machineName] = s.Machine
	fixed[tickName] = s.Tick
	return environment{fixed: fixed}
}

func execStatement(st *compiled, locals map[string]any, env environment) error {
	switch st.kind {
	case stmtPass:
		return nil
	case stmtIf:
		cond, err := evalExpr(st, locals, env)
		if err != nil {
			return err
		}
		if Truthy(cond) {
			return execStatement(st.body, locals, env)
		}
		return nil
	case stmtAssign:
		v, err := evalExpr(st, locals, env)
		if err != nil {
			return err
		}
		locals[st.target] = v
		return nil
	}
	_, err := evalExpr(st, locals, env)
	return err
}

func evalExpr(st *compiled, locals map[string]any, env environment) (any, error) {
	scope := make(map[string]any, len(locals)+len(env.fixed))
	maps.Copy(scope, locals)
	maps.Copy(scope, env.fixed)
	for _, name := range st.names {
		if _, ok := scope[name]; !ok {
			return nil, runtimeErrorf(NameError, "name '%s' is not defined", name)
		}
	}
	out, err := expr.Run(st.program, scope)
	if err != nil {
		var rt *RuntimeError
		if errors.As(err, &rt) {
			return nil, rt
		}
		if raised := raisedIn(err); raised != nil {
			return nil, raised
		}
		return nil, classify(err)
	}
	return out, nil
}

// raisedIn recovers a RuntimeError a builtin returned when the VM error does
// not unwrap to it.
func raisedIn(err error) *RuntimeError {
	msg := err.Error()
	for _, kind := range []ErrorKind{ZeroDivisionError, NameError, TypeError, ValueError, IndexError} {
		prefix := string(kind) + ": "
		if i := strings.Index(msg, prefix); i >= 0 {
			return &RuntimeError{Kind: kind, Msg: firstLine(msg[i+len(prefix):])}
		}
	}
	return nil
}
