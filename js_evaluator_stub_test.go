//go:build !js_eval

package history

import (
	"errors"
	"testing"
)

func TestJSEvaluatorRequiresBuildTag(t *testing.T) {
	if jsEvaluatorAvailable() {
		t.Fatalf("js evaluator should be unavailable without js_eval")
	}
	_, err := NewRuleTransformer([]Rule{{Expr: "true"}}, RulesWithEvaluator(NewJSEvaluator()))
	if !errors.Is(err, ErrNoEvaluator) {
		t.Fatalf("expected ErrNoEvaluator, got %v", err)
	}
}
