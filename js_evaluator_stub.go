//go:build !js_eval

package history

// NewJSEvaluator returns nil without the js_eval build tag. Passing the
// result to RulesWithEvaluator makes NewRuleTransformer fail with
// ErrNoEvaluator.
func NewJSEvaluator(...EvaluatorOption) Evaluator {
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}
