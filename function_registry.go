package history

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Function is a custom function callable from rule expressions.
type Function func(args ...any) (any, error)

const callFunction = "call"

// FunctionRegistry holds the custom functions rules may call. Names are case
// sensitive and may not shadow the rule context variables or call.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: make(map[string]Function)}
}

// Register adds fn under name.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	switch {
	case name == "":
		return errors.New("history: function name must not be empty")
	case fn == nil:
		return fmt.Errorf("history: function %q is nil", name)
	case name == callFunction || reservedVariables[name]:
		return fmt.Errorf("history: function name %q is reserved", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	if _, exists := r.functions[name]; exists {
		return fmt.Errorf("history: function %q already registered", name)
	}
	r.functions[name] = fn
	return nil
}

// Clone returns a copy that later registrations on r do not affect.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{functions: make(map[string]Function, len(r.functions))}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call executes the function registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("history: function %q not registered", name)
	}
	r.mu.RLock()
	fn := r.functions[name]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("history: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns the registered function names, sorted.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// bindings returns every registered function plus call, keyed by the name
// expressions use.
func (r *FunctionRegistry) bindings() map[string]Function {
	if r == nil {
		return nil
	}
	out := map[string]Function{
		callFunction: func(args ...any) (any, error) {
			if len(args) == 0 {
				return nil, errors.New("history: call needs a function name")
			}
			name, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("history: call name must be a string, got %T", args[0])
			}
			return r.Call(name, args[1:]...)
		},
	}
	for _, name := range r.Names() {
		name := name
		out[name] = func(args ...any) (any, error) {
			return r.Call(name, args...)
		}
	}
	return out
}

// RulesWithFunctionRegistry makes the functions in registry callable from
// rules compiled by the default evaluator.
func RulesWithFunctionRegistry(registry *FunctionRegistry) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.functions = registry.Clone()
	}
}

// RulesWithCustomFunction registers fn under name for rules compiled by the
// default evaluator. Registration errors are returned by NewRuleTransformer.
func RulesWithCustomFunction(name string, fn Function) RuleOption {
	return func(cfg *ruleConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		if err := cfg.functions.Register(name, fn); err != nil {
			cfg.errs = append(cfg.errs, err)
		}
	}
}
