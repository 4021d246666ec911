package history

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoHistory indicates the blob did not decode as the current version
	// and no history was registered to fall back on.
	ErrNoHistory = errors.New("history: no history available")
	// ErrNoMatchingRecord indicates neither the current version nor any
	// historical version (or alternative) decoded the blob.
	ErrNoMatchingRecord = errors.New("history: no historical record matched")
	// ErrChainBroken indicates a historical value was decoded but could not be
	// advanced to the current version.
	ErrChainBroken = errors.New("history: cannot update configuration to current version")
	// ErrInvalidChain indicates a history was registered with inconsistent
	// version links.
	ErrInvalidChain = errors.New("history: invalid history chain")
	// ErrTransform indicates a transformer rejected the blob or value.
	ErrTransform = errors.New("history: transform failed")
)

// ConfigError is returned by every failing parse. Kind holds one of the
// sentinel errors above so callers can use errors.Is; Causes carries the
// individual serializer or migration errors collected along the way.
type ConfigError struct {
	Kind     error
	Config   string
	Target   string
	Attempts int
	Detail   string
	Causes   []error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "<nil>"
	}
	kind := "history: configuration error"
	if e.Kind != nil {
		kind = e.Kind.Error()
	}
	var b strings.Builder
	b.WriteString(kind)
	if e.Config != "" {
		fmt.Fprintf(&b, " config=%s", e.Config)
	}
	if e.Target != "" {
		fmt.Fprintf(&b, " target=%s", e.Target)
	}
	if e.Attempts > 0 {
		fmt.Fprintf(&b, " attempts=%d", e.Attempts)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if len(e.Causes) > 0 {
		messages := make([]string, 0, len(e.Causes))
		for _, cause := range e.Causes {
			if cause != nil {
				messages = append(messages, cause.Error())
			}
		}
		b.WriteString(": ")
		b.WriteString(strings.Join(messages, "; "))
	}
	return b.String()
}

// Unwrap exposes the kind and every cause to errors.Is and errors.As.
func (e *ConfigError) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, len(e.Causes)+1)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	for _, cause := range e.Causes {
		if cause != nil {
			out = append(out, cause)
		}
	}
	return out
}

func newConfigError(kind error, config, target string, attempts int, detail string, causes ...error) *ConfigError {
	var kept []error
	for _, cause := range causes {
		if cause != nil {
			kept = append(kept, cause)
		}
	}
	return &ConfigError{
		Kind:     kind,
		Config:   config,
		Target:   target,
		Attempts: attempts,
		Detail:   detail,
		Causes:   kept,
	}
}
