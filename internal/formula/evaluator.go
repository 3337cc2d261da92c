// Package formula hides the concrete expression language behind a narrow
// capability interface so the pricing pipeline never depends on it.
package formula

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"
)

// ErrMissingInput is returned when a declared formula input is absent from
// the caller-supplied context.
var ErrMissingInput = errors.New("formula input missing")

// Spec describes one evaluation: the expression, its declared inputs, and
// the rounding and cap rules applied to the raw result.
type Spec struct {
	Expression    string
	Inputs        []string
	RoundDecimals int32
	Cap           *decimal.Decimal
}

// Result carries the raw numeric outcome plus the rounded and capped value
// the pipeline actually prices with.
type Result struct {
	Raw     decimal.Decimal
	Rounded decimal.Decimal
}

// Evaluator evaluates an opaque expression against named numeric inputs.
type Evaluator interface {
	Evaluate(ctx context.Context, spec Spec, env map[string]float64) (Result, error)
}

// ExprEvaluator evaluates formulas with the expr language. Compiled
// programs are cached per expression text, so repeated quotes against the
// same formula skip recompilation.
type ExprEvaluator struct {
	programs sync.Map // expression text -> *vm.Program
}

// NewExprEvaluator returns an evaluator with an empty program cache.
func NewExprEvaluator() *ExprEvaluator {
	return &ExprEvaluator{}
}

// Evaluate compiles (or reuses) and runs the expression. Declared inputs
// must all be present; a malformed expression or missing input fails the
// evaluation.
func (e *ExprEvaluator) Evaluate(_ context.Context, spec Spec, env map[string]float64) (Result, error) {
	scope := make(map[string]any, len(env))
	for name, value := range env {
		scope[name] = value
	}
	for _, name := range spec.Inputs {
		if _, ok := scope[name]; !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrMissingInput, name)
		}
	}

	program, err := e.compile(spec.Expression)
	if err != nil {
		return Result{}, fmt.Errorf("compile formula: %w", err)
	}
	out, err := expr.Run(program, scope)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate formula: %w", err)
	}
	raw, ok := out.(float64)
	if !ok {
		return Result{}, fmt.Errorf("formula result is not numeric: %T", out)
	}

	rawDec := decimal.NewFromFloat(raw)
	rounded := rawDec.Round(spec.RoundDecimals)
	if spec.Cap != nil && rounded.GreaterThan(*spec.Cap) {
		rounded = *spec.Cap
	}
	return Result{Raw: rawDec, Rounded: rounded}, nil
}

func (e *ExprEvaluator) compile(expression string) (*vm.Program, error) {
	if cached, ok := e.programs.Load(expression); ok {
		return cached.(*vm.Program), nil
	}
	// Compiled without a typed env: formulas reference whatever inputs the
	// request context carries, and the declared-input check above already
	// rejects evaluations with missing variables.
	program, err := expr.Compile(expression, expr.AsFloat64())
	if err != nil {
		return nil, err
	}
	e.programs.Store(expression, program)
	return program, nil
}
