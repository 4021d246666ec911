//go:build js_eval

package history

import "testing"

func TestJSEvaluatorRules(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("prefix", func(args ...any) (any, error) {
		return "js:" + args[0].(string), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	rules, err := NewRuleTransformer([]Rule{
		{Name: "config", Expr: `config === "billing"`},
		{Name: "derived", Expr: `prefix(host)`, Field: "label"},
	}, RulesWithEvaluator(NewJSEvaluator(EvaluatorWithFunctions(registry), EvaluatorWithProgramCache(NewMemoryProgramCache()))))
	if err != nil {
		t.Fatalf("rules: %v", err)
	}

	type endpoint struct {
		Host  string `json:"host"`
		Label string `json:"label"`
	}
	out, err := rules.TransformObject("billing", endpoint{Host: "db"})
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if got := out.(endpoint); got.Label != "js:db" {
		t.Fatalf("unexpected value %+v", got)
	}
	if _, err := rules.TransformObject("search", endpoint{Host: "db"}); err == nil {
		t.Fatalf("expected assertion failure for another config")
	}
}
