package activity

import (
	"strings"
	"time"
)

// Verbs and object type used for configuration events.
const (
	VerbConfigCreated  = "config.created"
	VerbConfigMigrated = "config.migrated"
	VerbConfigUpdated  = "config.updated"

	ObjectTypeConfig = "config"
)

// ConfigEventInput describes a stored configuration and what happened to it.
type ConfigEventInput struct {
	ActorID  string
	UserID   string
	TenantID string
	Channel  string
	// Name and Instance identify the stored configuration; the event object
	// id is "name/instance", or just name when Instance is empty.
	Name     string
	Instance string
	// FromVersion and ToVersion are configuration type names.
	FromVersion string
	ToVersion   string
	Steps       int
	Serializer  string
	SnapshotID  string
	Metadata    map[string]any
	OccurredAt  time.Time
}

// ObjectID returns the identifier used as the event object id.
func (in ConfigEventInput) ObjectID() string {
	name := strings.TrimSpace(in.Name)
	instance := strings.TrimSpace(in.Instance)
	if instance == "" {
		return name
	}
	return name + "/" + instance
}

// BuildConfigCreatedEvent describes the first save of a configuration.
func BuildConfigCreatedEvent(input ConfigEventInput) Event {
	return buildConfigEvent(VerbConfigCreated, input)
}

// BuildConfigMigratedEvent describes a stored blob parsed from an older
// version into the current one.
func BuildConfigMigratedEvent(input ConfigEventInput) Event {
	return buildConfigEvent(VerbConfigMigrated, input)
}

// BuildConfigUpdatedEvent describes a configuration being rewritten.
func BuildConfigUpdatedEvent(input ConfigEventInput) Event {
	return buildConfigEvent(VerbConfigUpdated, input)
}

func buildConfigEvent(verb string, input ConfigEventInput) Event {
	metadata := CloneMetadata(input.Metadata)
	set := func(key string, value any) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		set("config_name", name)
	}
	if instance := strings.TrimSpace(input.Instance); instance != "" {
		set("config_instance", instance)
	}
	if input.FromVersion != "" {
		set("from_version", input.FromVersion)
	}
	if input.ToVersion != "" {
		set("to_version", input.ToVersion)
	}
	if input.Steps > 0 {
		set("steps", input.Steps)
	}
	if input.Serializer != "" {
		set("serializer", input.Serializer)
	}
	if input.SnapshotID != "" {
		set("snapshot_id", input.SnapshotID)
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectTypeConfig,
		ObjectID:   input.ObjectID(),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
