package history_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	history "github.com/goliatone/go-config-history"
)

func parseV2WithRules(t *testing.T, value string, rules *history.RuleTransformer, opts ...history.ParseOption) (history.Result[configV3], error) {
	t.Helper()
	raw, err := history.Serialize(configV2{Value: value}, history.NewJSONSerializer())
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	opts = append(opts, history.WithTransformers(rules))
	return newHistory(t).ParseResult(raw, allSerializers(), opts...)
}

func TestRuleTransformerDerivesFieldsWithExpr(t *testing.T) {
	rules, err := history.NewRuleTransformer([]history.Rule{
		{Name: "non-empty", Expr: `str1 != ""`},
		{Name: "wrap", Expr: `"<b>" + str1 + "</b>"`, Field: "str2"},
	})
	if err != nil {
		t.Fatalf("rules: %v", err)
	}

	result, err := parseV2WithRules(t, "x", rules)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diff := cmp.Diff(configV3{Str1: "x", Str2: "<b>x</b>"}, result.Value); diff != "" {
		t.Fatalf("unexpected value (-want +got):\n%s", diff)
	}
	if !result.Transformed {
		t.Fatalf("derived field should mark the result transformed")
	}
}

func TestRuleTransformerFailingAssertion(t *testing.T) {
	rules, err := history.NewRuleTransformer([]history.Rule{{Name: "long enough", Expr: `len(str1) > 10`}})
	if err != nil {
		t.Fatalf("rules: %v", err)
	}

	_, err = parseV2WithRules(t, "short", rules)
	if !errors.Is(err, history.ErrTransform) || !errors.Is(err, history.ErrRuleFailed) {
		t.Fatalf("expected rule failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "long enough") {
		t.Fatalf("expected rule name in error, got %v", err)
	}
}

func TestRuleTransformerCompileErrorAtRegistration(t *testing.T) {
	_, err := history.NewRuleTransformer([]history.Rule{{Expr: `str1 +`}})
	var evalErr *history.EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if evalErr.Engine != "expr" || evalErr.Expr != "str1 +" {
		t.Fatalf("unexpected evaluation error %+v", evalErr)
	}

	if _, err := history.NewRuleTransformer([]history.Rule{{Expr: "  "}}); err == nil {
		t.Fatalf("expected error for empty expression")
	}
}

func TestRuleTransformerExposesConfigArgsAndMetadata(t *testing.T) {
	rules, err := history.NewRuleTransformer([]history.Rule{
		{Expr: `config + ":" + args.region + ":" + metadata.owner`, Field: "str2"},
	},
		history.RulesWithArgs(map[string]any{"region": "eu"}),
		history.RulesWithMetadata(map[string]any{"owner": "ops"}),
	)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}

	result, err := parseV2WithRules(t, "v", rules, history.WithConfigName("billing"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.Value.Str2 != "billing:eu:ops" {
		t.Fatalf("unexpected derived value %q", result.Value.Str2)
	}
}

func TestRuleTransformerScopedToConfigs(t *testing.T) {
	rules, err := history.NewRuleTransformer([]history.Rule{{Expr: `false`}}, history.RulesForConfigs("billing"))
	if err != nil {
		t.Fatalf("rules: %v", err)
	}

	if _, err := parseV2WithRules(t, "v", rules, history.WithConfigName("search")); err != nil {
		t.Fatalf("rules should not apply to search: %v", err)
	}
	if _, err := parseV2WithRules(t, "v", rules, history.WithConfigName("billing")); !errors.Is(err, history.ErrRuleFailed) {
		t.Fatalf("expected rule failure for billing, got %v", err)
	}
}

func TestRuleTransformerCustomFunctionsAndCache(t *testing.T) {
	cache := history.NewMemoryProgramCache()
	var events []history.EvaluatorLogEvent
	rules, err := history.NewRuleTransformer([]history.Rule{
		{Name: "shout", Expr: `shout(str1)`, Field: "str2"},
	},
		history.RulesWithCustomFunction("shout", func(args ...any) (any, error) {
			return strings.ToUpper(args[0].(string)) + "!", nil
		}),
		history.RulesWithProgramCache(cache),
		history.RulesWithEvaluatorLogger(history.EvaluatorLoggerFunc(func(event history.EvaluatorLogEvent) {
			events = append(events, event)
		})),
	)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	if _, ok := cache.Get(`expr:shout:shout(str1)`); !ok {
		t.Fatalf("expected compiled program to be cached at registration")
	}

	result, err := parseV2WithRules(t, "hey", rules, history.WithConfigName("billing"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.Value.Str2 != "HEY!" {
		t.Fatalf("unexpected derived value %q", result.Value.Str2)
	}
	if len(events) != 1 {
		t.Fatalf("expected one evaluation event, got %d", len(events))
	}
	if events[0].Engine != "expr" || events[0].Config != "billing" || events[0].Version != "history_test.configV3" || events[0].Rule != "shout" || events[0].Err != nil {
		t.Fatalf("unexpected evaluation event %+v", events[0])
	}
}

func TestRuleTransformerWithCEL(t *testing.T) {
	registry := history.NewFunctionRegistry()
	if err := registry.Register("suffix", func(args ...any) (any, error) {
		return args[0].(string) + "-cel", nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	rules, err := history.NewRuleTransformer([]history.Rule{
		{Name: "named", Expr: `config == "billing"`},
		{Name: "derived", Expr: `call("suffix", [str1])`, Field: "str2"},
	}, history.RulesWithEvaluator(history.NewCELEvaluator(history.EvaluatorWithFunctions(registry))))
	if err != nil {
		t.Fatalf("rules: %v", err)
	}

	result, err := parseV2WithRules(t, "v", rules, history.WithConfigName("billing"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.Value.Str2 != "v-cel" {
		t.Fatalf("unexpected derived value %q", result.Value.Str2)
	}

	_, err = parseV2WithRules(t, "v", rules, history.WithConfigName("search"))
	if !errors.Is(err, history.ErrRuleFailed) {
		t.Fatalf("expected CEL assertion failure, got %v", err)
	}
}

func TestRuleTransformerEvaluationErrorCarriesConfig(t *testing.T) {
	rules, err := history.NewRuleTransformer([]history.Rule{{Expr: `missing.field == 1`}},
		history.RulesWithEvaluator(history.NewCELEvaluator()))
	if err != nil {
		t.Fatalf("rules: %v", err)
	}

	_, err = parseV2WithRules(t, "v", rules, history.WithConfigName("billing"))
	var evalErr *history.EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if evalErr.Engine != "cel" || evalErr.Config != "billing" || evalErr.Version != "history_test.configV3" {
		t.Fatalf("unexpected evaluation error %+v", evalErr)
	}
}

func TestFunctionRegistryRegister(t *testing.T) {
	registry := history.NewFunctionRegistry()
	fn := func(...any) (any, error) { return nil, nil }
	if err := registry.Register("twice", fn); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("Twice", fn); err != nil {
		t.Fatalf("names should be case sensitive: %v", err)
	}

	cases := []struct {
		name string
		fn   history.Function
	}{
		{name: "twice", fn: fn},
		{name: "", fn: fn},
		{name: "nil", fn: nil},
		{name: "config", fn: fn},
		{name: "call", fn: fn},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := registry.Register(tc.name, tc.fn); err == nil {
				t.Fatalf("expected registration of %q to fail", tc.name)
			}
		})
	}

	if diff := cmp.Diff([]string{"Twice", "twice"}, registry.Names()); diff != "" {
		t.Fatalf("unexpected names (-want +got):\n%s", diff)
	}
	if _, err := registry.Call("unknown"); err == nil {
		t.Fatalf("expected error for unknown function")
	}
}

func TestRuleTransformerReportsCustomFunctionErrors(t *testing.T) {
	fn := func(...any) (any, error) { return "x", nil }
	cases := []struct {
		name string
		opts []history.RuleOption
	}{
		{name: "nil function", opts: []history.RuleOption{history.RulesWithCustomFunction("f", nil)}},
		{name: "duplicate name", opts: []history.RuleOption{
			history.RulesWithCustomFunction("f", fn),
			history.RulesWithCustomFunction("f", fn),
		}},
		{name: "reserved name", opts: []history.RuleOption{history.RulesWithCustomFunction("now", fn)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := history.NewRuleTransformer([]history.Rule{{Expr: `true`}}, tc.opts...); err == nil {
				t.Fatalf("expected registration error")
			}
		})
	}
}

func TestRuleTransformerCELSyntaxErrorAtRegistration(t *testing.T) {
	_, err := history.NewRuleTransformer([]history.Rule{{Name: "broken", Expr: `str1 +`}},
		history.RulesWithEvaluator(history.NewCELEvaluator()))
	var evalErr *history.EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if evalErr.Engine != "cel" || evalErr.Rule != "broken" {
		t.Fatalf("unexpected evaluation error %+v", evalErr)
	}
}

// reservedFields has json names that clash with rule context variables.
type reservedFields struct {
	Config  string `json:"config"`
	Version string `json:"version"`
	Label   string `json:"label"`
}

func TestRuleContextVariablesWinOverFields(t *testing.T) {
	engines := []struct {
		name      string
		evaluator history.Evaluator
	}{
		{name: "expr", evaluator: history.NewExprEvaluator()},
		{name: "cel", evaluator: history.NewCELEvaluator()},
	}
	for _, engine := range engines {
		t.Run(engine.name, func(t *testing.T) {
			rules, err := history.NewRuleTransformer([]history.Rule{
				{Expr: `config + "/" + version`, Field: "label"},
			}, history.RulesWithEvaluator(engine.evaluator))
			if err != nil {
				t.Fatalf("rules: %v", err)
			}
			out, err := rules.TransformObject("billing", reservedFields{Config: "field", Version: "field"})
			if err != nil {
				t.Fatalf("transform: %v", err)
			}
			if got := out.(reservedFields).Label; got != "billing/history_test.reservedFields" {
				t.Fatalf("unexpected label %q", got)
			}
		})
	}
}

func TestEvaluationErrorMessage(t *testing.T) {
	err := &history.EvaluationError{
		Engine:  "expr",
		Rule:    "port range",
		Expr:    "port > 0",
		Config:  "mailer",
		Version: "mailer.v3",
		Err:     errors.New("boom"),
	}
	want := `history: expr rule "port range" for mailer at mailer.v3: boom`
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
	anonymous := &history.EvaluationError{Engine: "cel", Expr: "x > 1", Err: errors.New("boom")}
	if got := anonymous.Error(); got != `history: cel rule "x > 1": boom` {
		t.Fatalf("unexpected message %q", got)
	}
}
