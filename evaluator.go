package history

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Evaluator compiles rule expressions for one expression engine.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule is an expression ready to run against many configurations.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// RuleContext is what a rule sees of the configuration being parsed.
type RuleContext struct {
	// Snapshot holds the configuration fields keyed by json name.
	Snapshot map[string]any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	// Config is the name passed with WithConfigName.
	Config string
	// Version is the type name of the parsed value.
	Version string
}

// reservedVariables are always bound from the context. Configuration fields
// with these names are not exposed to expressions.
var reservedVariables = map[string]bool{
	"now":      true,
	"args":     true,
	"metadata": true,
	"config":   true,
	"version":  true,
}

func (ctx RuleContext) timestamp() time.Time {
	if ctx.Now != nil {
		return *ctx.Now
	}
	return time.Now()
}

// variables returns the expression environment without functions.
func (ctx RuleContext) variables() map[string]any {
	vars := map[string]any{
		"now":      ctx.timestamp(),
		"args":     emptyIfNil(ctx.Args),
		"metadata": emptyIfNil(ctx.Metadata),
		"config":   ctx.Config,
		"version":  ctx.Version,
	}
	for key, value := range ctx.Snapshot {
		if reservedVariables[key] {
			continue
		}
		vars[key] = value
	}
	return vars
}

// fields returns the exposed snapshot keys, sorted.
func (ctx RuleContext) fields() []string {
	names := make([]string, 0, len(ctx.Snapshot))
	for key := range ctx.Snapshot {
		if !reservedVariables[key] {
			names = append(names, key)
		}
	}
	sort.Strings(names)
	return names
}

func emptyIfNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// EvaluatorOption configures any of the built-in evaluators.
type EvaluatorOption func(*evaluatorConfig)

type evaluatorConfig struct {
	cache     ProgramCache
	functions *FunctionRegistry
}

// EvaluatorWithProgramCache shares compiled programs across evaluators and
// rule transformers. Keys are prefixed by engine and function names, so
// evaluators sharing a cache should register the same functions.
func EvaluatorWithProgramCache(cache ProgramCache) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.cache = cache
	}
}

// EvaluatorWithFunctions makes the functions in registry callable from
// expressions, by name and through call(name, args...).
func EvaluatorWithFunctions(registry *FunctionRegistry) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.functions = registry.Clone()
	}
}

func newEvaluatorConfig(opts []EvaluatorOption) evaluatorConfig {
	cfg := evaluatorConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func requireExpression(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return errors.New("expression must not be empty")
	}
	return nil
}

func evaluateOnce(e Evaluator, ctx RuleContext, expr string) (any, error) {
	rule, err := e.Compile(expr)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

// ProgramCache stores compiled programs.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MemoryProgramCache is a ProgramCache backed by a sync.Map.
type MemoryProgramCache struct {
	programs sync.Map
}

// NewMemoryProgramCache returns an empty in-memory cache.
func NewMemoryProgramCache() *MemoryProgramCache {
	return &MemoryProgramCache{}
}

// Get implements ProgramCache.
func (c *MemoryProgramCache) Get(key string) (any, bool) {
	return c.programs.Load(key)
}

// Set implements ProgramCache.
func (c *MemoryProgramCache) Set(key string, value any) {
	c.programs.Store(key, value)
}

func cachedProgram[P any](cache ProgramCache, key string, compile func() (P, error)) (P, error) {
	if cache != nil {
		if cached, ok := cache.Get(key); ok {
			if program, ok := cached.(P); ok {
				return program, nil
			}
		}
	}
	program, err := compile()
	if err != nil {
		return program, err
	}
	if cache != nil {
		cache.Set(key, program)
	}
	return program, nil
}

// EvaluationError reports a rule that failed to compile or evaluate.
type EvaluationError struct {
	Engine  string
	Rule    string
	Expr    string
	Config  string
	Version string
	Err     error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	label := e.Rule
	if label == "" {
		label = e.Expr
	}
	var b strings.Builder
	fmt.Fprintf(&b, "history: %s rule %q", e.Engine, label)
	if e.Config != "" {
		fmt.Fprintf(&b, " for %s", e.Config)
	}
	if e.Version != "" {
		fmt.Fprintf(&b, " at %s", e.Version)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EvaluatorLogEvent describes one rule evaluation.
type EvaluatorLogEvent struct {
	Engine   string
	Rule     string
	Expr     string
	Config   string
	Version  string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records rule evaluations.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}
