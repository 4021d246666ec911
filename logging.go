package history

import "time"

// Stage identifies the part of Parse that produced a log event.
type Stage string

const (
	// StageCurrent is a decode attempt against the current version.
	StageCurrent Stage = "current"
	// StageHistory is a decode attempt against a historical primary type.
	StageHistory Stage = "history"
	// StageAlternative is a decode attempt against an alternative type.
	StageAlternative Stage = "alternative"
	// StageMigrate is one forward migration step.
	StageMigrate Stage = "migrate"
	// StageTransform is one transformer invocation.
	StageTransform Stage = "transform"
)

// ParseEvent describes a single attempt made while parsing a blob.
type ParseEvent struct {
	Stage      Stage
	Config     string
	Type       string
	Serializer string
	Matched    bool
	Duration   time.Duration
	Err        error
}

// Logger records parse events.
type Logger interface {
	LogParse(ParseEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(ParseEvent)

// LogParse implements Logger.
func (f LoggerFunc) LogParse(event ParseEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogParse(ParseEvent) {}
