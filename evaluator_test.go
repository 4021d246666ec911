package history

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRuleContextVariables(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ctx := RuleContext{
		Snapshot: map[string]any{"host": "db", "now": "shadowed", "args": 1},
		Now:      &now,
		Config:   "mailer",
		Version:  "mailer.v3",
	}

	want := map[string]any{
		"now":      now,
		"args":     map[string]any{},
		"metadata": map[string]any{},
		"config":   "mailer",
		"version":  "mailer.v3",
		"host":     "db",
	}
	if diff := cmp.Diff(want, ctx.variables()); diff != "" {
		t.Fatalf("unexpected variables (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"host"}, ctx.fields()); diff != "" {
		t.Fatalf("unexpected fields (-want +got):\n%s", diff)
	}
}

func TestCachedProgramCompilesOnce(t *testing.T) {
	cache := NewMemoryProgramCache()
	calls := 0
	compile := func() (string, error) {
		calls++
		return "program", nil
	}
	for i := 0; i < 3; i++ {
		program, err := cachedProgram(cache, "expr:rule", compile)
		if err != nil || program != "program" {
			t.Fatalf("unexpected result %q %v", program, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one compilation, got %d", calls)
	}

	failing := errors.New("syntax")
	if _, err := cachedProgram(cache, "expr:broken", func() (string, error) { return "", failing }); !errors.Is(err, failing) {
		t.Fatalf("expected compile error, got %v", err)
	}
	if _, ok := cache.Get("expr:broken"); ok {
		t.Fatalf("failed compilations should not be cached")
	}
	if _, err := cachedProgram[string](nil, "expr:rule", compile); err != nil {
		t.Fatalf("nil cache: %v", err)
	}
}

func TestEvaluatorsNameTheirEngine(t *testing.T) {
	cases := map[string]Evaluator{
		"expr": NewExprEvaluator(),
		"cel":  NewCELEvaluator(),
	}
	for want, evaluator := range cases {
		if got := evaluatorEngineName(evaluator); got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
	if got := evaluatorEngineName(nil); got != "custom" {
		t.Fatalf("expected custom, got %s", got)
	}
}
