package history

import layering "github.com/goliatone/go-config-history/layering"

// ParseOption configures a single Parse call.
type ParseOption func(*parseConfig)

type parseConfig struct {
	name         string
	logger       Logger
	transformers []Transformer
	defaults     any
	hasDefaults  bool
}

func applyParseOptions(opts []ParseOption) parseConfig {
	cfg := parseConfig{logger: noopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithConfigName names the configuration for transformers, logs and errors.
func WithConfigName(name string) ParseOption {
	return func(cfg *parseConfig) {
		cfg.name = name
	}
}

// WithLogger attaches a parse logger. A nil logger disables logging.
func WithLogger(logger Logger) ParseOption {
	return func(cfg *parseConfig) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithTransformers appends transformers applied in registration order.
func WithTransformers(transformers ...Transformer) ParseOption {
	return func(cfg *parseConfig) {
		for _, t := range transformers {
			if t != nil {
				cfg.transformers = append(cfg.transformers, t)
			}
		}
	}
}

// WithDefaults fills zero fields of the parsed value from defaults. The
// parsed value always wins where it is set. defaults is copied, so later
// changes to it do not leak into parses.
func WithDefaults[T any](defaults T) ParseOption {
	snapshot := layering.Clone(defaults)
	return func(cfg *parseConfig) {
		cfg.defaults = snapshot
		cfg.hasDefaults = true
	}
}
