package history

import (
	"strings"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

type exprEvaluator struct {
	evaluatorConfig
}

// NewExprEvaluator returns the default evaluator, backed by expr-lang/expr.
// Configuration fields are undeclared at compile time, so a rule may name
// fields that only some versions carry.
func NewExprEvaluator(opts ...EvaluatorOption) Evaluator {
	return &exprEvaluator{evaluatorConfig: newEvaluatorConfig(opts)}
}

// Engine names the evaluator in errors and log events.
func (e *exprEvaluator) Engine() string { return "expr" }

func (e *exprEvaluator) Evaluate(ctx RuleContext, expr string) (any, error) {
	return evaluateOnce(e, ctx, expr)
}

func (e *exprEvaluator) Compile(expr string) (CompiledRule, error) {
	if err := requireExpression(expr); err != nil {
		return nil, err
	}
	program, err := cachedProgram(e.cache, "expr:"+strings.Join(e.functions.Names(), ",")+":"+expr, func() (*exprvm.Program, error) {
		options := []exprlang.Option{
			exprlang.Env(map[string]any{}),
			exprlang.AllowUndefinedVariables(),
		}
		for name, fn := range e.functions.bindings() {
			options = append(options, exprlang.Function(name, fn))
		}
		return exprlang.Compile(expr, options...)
	})
	if err != nil {
		return nil, err
	}
	return exprRule{program: program}, nil
}

type exprRule struct {
	program *exprvm.Program
}

func (r exprRule) Evaluate(ctx RuleContext) (any, error) {
	return exprlang.Run(r.program, ctx.variables())
}
