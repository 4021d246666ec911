package history

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-config-history/internal/hydrate"
)

var (
	// ErrNoEvaluator indicates a rule transformer was given a nil evaluator.
	ErrNoEvaluator = errors.New("history: evaluator not configured")
	// ErrRuleFailed indicates an assertion rule did not evaluate to true.
	ErrRuleFailed = errors.New("history: rule failed")
)

// Rule is an expression evaluated against a parsed configuration. Fields of
// the configuration are exposed as variables using their json names. When
// Field is empty the expression must evaluate to true; otherwise its result
// is stored at the dotted Field path.
type Rule struct {
	Name  string
	Expr  string
	Field string
}

func (r Rule) label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Expr
}

// RuleOption configures a RuleTransformer.
type RuleOption func(*ruleConfig)

type ruleConfig struct {
	evaluator    Evaluator
	evaluatorSet bool
	programCache ProgramCache
	functions    *FunctionRegistry
	logger       EvaluatorLogger
	args         map[string]any
	metadata     map[string]any
	configs      []string
	errs         []error
}

// RulesWithEvaluator selects the expression engine. The default is expr.
// A nil evaluator, such as NewJSEvaluator without the js_eval build tag,
// makes NewRuleTransformer fail with ErrNoEvaluator.
func RulesWithEvaluator(e Evaluator) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.evaluator = e
		cfg.evaluatorSet = true
	}
}

// RulesWithProgramCache shares compiled programs of the default evaluator.
func RulesWithProgramCache(cache ProgramCache) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.programCache = cache
	}
}

// RulesWithEvaluatorLogger reports every rule evaluation to logger.
func RulesWithEvaluatorLogger(logger EvaluatorLogger) RuleOption {
	return func(cfg *ruleConfig) {
		if logger == nil {
			logger = noopEvaluatorLogger{}
		}
		cfg.logger = logger
	}
}

// RulesWithArgs exposes args to expressions as the args variable.
func RulesWithArgs(args map[string]any) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.args = args
	}
}

// RulesWithMetadata exposes metadata to expressions as the metadata variable.
func RulesWithMetadata(metadata map[string]any) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.metadata = metadata
	}
}

// RulesForConfigs restricts the rules to the named configurations.
func RulesForConfigs(names ...string) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.configs = append(cfg.configs, names...)
	}
}

type compiledRule struct {
	rule    Rule
	program CompiledRule
}

// RuleTransformer checks and derives fields of the current configuration
// version after migration.
type RuleTransformer struct {
	cfg     ruleConfig
	engine  string
	rules   []compiledRule
	decoder *hydrate.Decoder
}

// NewRuleTransformer compiles rules so syntax errors surface at registration
// time. Errors that depend on the configuration fields, such as CEL type
// checks, surface when the rule first runs.
func NewRuleTransformer(rules []Rule, opts ...RuleOption) (*RuleTransformer, error) {
	cfg := ruleConfig{logger: noopEvaluatorLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if err := errors.Join(cfg.errs...); err != nil {
		return nil, err
	}
	evaluator, err := resolveEvaluator(cfg)
	if err != nil {
		return nil, err
	}
	cfg.evaluator = evaluator

	t := &RuleTransformer{
		cfg:     cfg,
		engine:  evaluatorEngineName(evaluator),
		decoder: hydrate.NewDecoder(),
	}
	for i, rule := range rules {
		if strings.TrimSpace(rule.Expr) == "" {
			return nil, fmt.Errorf("history: rule %d has an empty expression", i)
		}
		program, err := evaluator.Compile(rule.Expr)
		if err != nil {
			return nil, t.evaluationError(rule, RuleContext{}, err)
		}
		t.rules = append(t.rules, compiledRule{rule: rule, program: program})
	}
	return t, nil
}

// TransformString implements Transformer.
func (t *RuleTransformer) TransformString(_ string, raw string) (string, error) {
	return raw, nil
}

// TransformObject implements Transformer.
func (t *RuleTransformer) TransformObject(name string, value any) (any, error) {
	if t == nil || len(t.rules) == 0 || !t.applies(name) {
		return value, nil
	}
	snapshot, err := hydrate.ToMap(serializableValue(value))
	if err != nil {
		return nil, fmt.Errorf("history: rule snapshot of %T: %w", value, err)
	}
	if snapshot == nil {
		snapshot = map[string]any{}
	}
	now := time.Now()
	ctx := RuleContext{
		Snapshot: snapshot,
		Args:     t.cfg.args,
		Metadata: t.cfg.metadata,
		Config:   name,
		Version:  NameOf(value),
		Now:      &now,
	}
	changed := false
	for _, compiled := range t.rules {
		start := time.Now()
		out, err := compiled.program.Evaluate(ctx)
		if err != nil {
			err = t.evaluationError(compiled.rule, ctx, err)
		}
		t.cfg.logger.LogEvaluation(EvaluatorLogEvent{
			Engine:   t.engine,
			Rule:     compiled.rule.Name,
			Expr:     compiled.rule.Expr,
			Config:   name,
			Version:  ctx.Version,
			Duration: time.Since(start),
			Err:      err,
		})
		if err != nil {
			return nil, err
		}

		if compiled.rule.Field == "" {
			if ok, isBool := out.(bool); !isBool || !ok {
				return nil, fmt.Errorf("%w: %s", ErrRuleFailed, compiled.rule.label())
			}
			continue
		}
		if err := setPath(snapshot, compiled.rule.Field, out); err != nil {
			return nil, fmt.Errorf("history: rule %s: %w", compiled.rule.label(), err)
		}
		changed = true
	}

	if !changed {
		return value, nil
	}
	target := reflect.TypeOf(value)
	ptr, result := decodeTarget(target)
	if err := t.decoder.Decode(hydrate.Context{Config: name, Type: TypeName(target)}, snapshot, ptr); err != nil {
		return nil, err
	}
	return result(), nil
}

func (t *RuleTransformer) applies(name string) bool {
	if len(t.cfg.configs) == 0 {
		return true
	}
	for _, config := range t.cfg.configs {
		if config == name {
			return true
		}
	}
	return false
}

func resolveEvaluator(cfg ruleConfig) (Evaluator, error) {
	if cfg.evaluatorSet {
		if isNil(cfg.evaluator) {
			return nil, ErrNoEvaluator
		}
		return cfg.evaluator, nil
	}
	return NewExprEvaluator(
		EvaluatorWithProgramCache(cfg.programCache),
		EvaluatorWithFunctions(cfg.functions),
	), nil
}

func evaluatorEngineName(e Evaluator) string {
	if named, ok := e.(interface{ Engine() string }); ok {
		return named.Engine()
	}
	return "custom"
}

func (t *RuleTransformer) evaluationError(rule Rule, ctx RuleContext, err error) error {
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}
	return &EvaluationError{
		Engine:  t.engine,
		Rule:    rule.Name,
		Expr:    rule.Expr,
		Config:  ctx.Config,
		Version: ctx.Version,
		Err:     err,
	}
}

func setPath(root map[string]any, path string, value any) error {
	segments := strings.Split(path, ".")
	current := root
	for i, segment := range segments {
		if segment == "" {
			return fmt.Errorf("invalid field path %q", path)
		}
		if i == len(segments)-1 {
			current[segment] = value
			return nil
		}
		next, ok := current[segment].(map[string]any)
		if !ok {
			if current[segment] != nil {
				return fmt.Errorf("field %q in %q is not an object", segment, path)
			}
			next = map[string]any{}
			current[segment] = next
		}
		current = next
	}
	return nil
}
