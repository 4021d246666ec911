package history

import (
	"fmt"
	"reflect"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

type celEvaluator struct {
	evaluatorConfig
}

// NewCELEvaluator returns an evaluator backed by cel-go. Expressions are
// parsed when compiled and type checked once per set of configuration
// fields, which are declared as dyn variables.
func NewCELEvaluator(opts ...EvaluatorOption) Evaluator {
	return &celEvaluator{evaluatorConfig: newEvaluatorConfig(opts)}
}

// Engine names the evaluator in errors and log events.
func (e *celEvaluator) Engine() string { return "cel" }

func (e *celEvaluator) Evaluate(ctx RuleContext, expr string) (any, error) {
	return evaluateOnce(e, ctx, expr)
}

func (e *celEvaluator) Compile(expr string) (CompiledRule, error) {
	if err := requireExpression(expr); err != nil {
		return nil, err
	}
	env, err := e.env(nil)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	return &celRule{evaluator: e, expr: expr, ast: ast}, nil
}

func (e *celEvaluator) env(fields []string) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("metadata", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("config", celgo.StringType),
		celgo.Variable("version", celgo.StringType),
	}
	if e.functions != nil {
		opts = append(opts, celgo.Function(callFunction,
			celgo.Overload("call_string",
				[]*celgo.Type{celgo.StringType},
				celgo.DynType,
				celgo.UnaryBinding(func(name ref.Val) ref.Val {
					return e.call(name, nil)
				}),
			),
			celgo.Overload("call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.BinaryBinding(e.call),
			),
		))
	}
	for _, field := range fields {
		opts = append(opts, celgo.Variable(field, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) call(nameVal ref.Val, argsVal ref.Val) ref.Val {
	name, ok := nameVal.Value().(string)
	if !ok {
		return types.NewErr("call name must be a string")
	}
	var args []any
	if argsVal != nil {
		native, err := argsVal.ConvertToNative(reflect.TypeOf([]any{}))
		if err != nil {
			return types.NewErr("call %s arguments: %v", name, err)
		}
		args, _ = native.([]any)
	}
	result, err := e.functions.Call(name, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

type celRule struct {
	evaluator *celEvaluator
	expr      string
	ast       *celgo.Ast
}

func (r *celRule) Evaluate(ctx RuleContext) (any, error) {
	fields := ctx.fields()
	key := fmt.Sprintf("cel:%s:%s:%s", strings.Join(r.evaluator.functions.Names(), ","), strings.Join(fields, ","), r.expr)
	program, err := cachedProgram(r.evaluator.cache, key, func() (celgo.Program, error) {
		env, err := r.evaluator.env(fields)
		if err != nil {
			return nil, err
		}
		checked, issues := env.Check(r.ast)
		if issues != nil && issues.Err() != nil {
			return nil, issues.Err()
		}
		return env.Program(checked)
	})
	if err != nil {
		return nil, err
	}
	out, _, err := program.Eval(ctx.variables())
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}
