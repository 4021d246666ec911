//go:build js_eval

package history

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	evaluatorConfig
}

// NewJSEvaluator returns an evaluator backed by goja. Each evaluation runs in
// a fresh runtime with the configuration fields as globals.
func NewJSEvaluator(opts ...EvaluatorOption) Evaluator {
	return &jsEvaluator{evaluatorConfig: newEvaluatorConfig(opts)}
}

// Engine names the evaluator in errors and log events.
func (e *jsEvaluator) Engine() string { return "js" }

func (e *jsEvaluator) Evaluate(ctx RuleContext, expr string) (any, error) {
	return evaluateOnce(e, ctx, expr)
}

func (e *jsEvaluator) Compile(expr string) (CompiledRule, error) {
	if err := requireExpression(expr); err != nil {
		return nil, err
	}
	program, err := cachedProgram(e.cache, "js:"+expr, func() (*goja.Program, error) {
		return goja.Compile("rule", fmt.Sprintf("(function(){ return (%s); })()", expr), true)
	})
	if err != nil {
		return nil, err
	}
	return &jsRule{evaluator: e, program: program}, nil
}

type jsRule struct {
	evaluator *jsEvaluator
	program   *goja.Program
}

func (r *jsRule) Evaluate(ctx RuleContext) (any, error) {
	vm := goja.New()
	for name, value := range ctx.variables() {
		if err := vm.Set(name, value); err != nil {
			return nil, err
		}
	}
	for name, fn := range r.evaluator.functions.bindings() {
		fn := fn
		if err := vm.Set(name, func(args ...any) (any, error) { return fn(args...) }); err != nil {
			return nil, err
		}
	}
	value, err := vm.RunProgram(r.program)
	if err != nil {
		return nil, err
	}
	return value.Export(), nil
}

func jsEvaluatorAvailable() bool {
	return true
}
