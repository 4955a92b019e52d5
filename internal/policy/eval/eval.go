// Package eval evaluates conditional boolean expressions attached to
// policy rules, e.g. "secure_mode && !permissive_net". Expressions are
// plain boolean logic over policy boolean names; anything else is
// rejected before evaluation.
package eval

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Eval evaluates cond against the boolean assignment in vars. An empty
// condition is unconditionally true.
func Eval(cond string, vars map[string]any) (bool, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return true, nil
	}

	if err := Validate(cond); err != nil {
		return false, err
	}

	out, err := expr.Eval(cond, vars)
	if err != nil {
		return false, err
	}

	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition must evaluate to bool (got %T)", out)
	}

	return b, nil
}

// Compile validates cond against the declared boolean names and returns
// the compiled program. Unknown names and non-boolean results are
// compile-time errors, so a policy with a bad conditional fails at load
// rather than during graph construction.
func Compile(cond string, booleans map[string]bool) (*vm.Program, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return nil, nil
	}

	if err := Validate(cond); err != nil {
		return nil, err
	}

	env := make(map[string]any, len(booleans))
	for name, value := range booleans {
		env[name] = value
	}

	program, err := expr.Compile(cond, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, err
	}
	return program, nil
}

// EvalCompiled runs a program produced by Compile under vars. A nil
// program (empty condition) is unconditionally true.
func EvalCompiled(program *vm.Program, vars map[string]any) (bool, error) {
	if program == nil {
		return true, nil
	}

	out, err := expr.Run(program, vars)
	if err != nil {
		return false, err
	}

	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition must evaluate to bool (got %T)", out)
	}

	return b, nil
}
