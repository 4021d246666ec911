package activity

import (
	"testing"
	"time"
)

func TestBuildConfigMigratedEventIncludesVersions(t *testing.T) {
	occurred := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	input := ConfigEventInput{
		ActorID:     " actor ",
		TenantID:    " tenant ",
		Name:        " billing ",
		Instance:    "acme",
		FromVersion: "settings.V1",
		ToVersion:   "settings.V3",
		Steps:       2,
		Serializer:  "xml",
		SnapshotID:  "snap-1",
		Metadata:    map[string]any{"custom": "value"},
		OccurredAt:  occurred,
	}

	event := BuildConfigMigratedEvent(input)

	if event.Verb != VerbConfigMigrated {
		t.Fatalf("expected verb %s got %s", VerbConfigMigrated, event.Verb)
	}
	if event.ObjectType != "config" || event.ObjectID != "billing/acme" {
		t.Fatalf("unexpected object fields: %+v", event)
	}
	if event.ActorID != "actor" || event.TenantID != "tenant" {
		t.Fatalf("unexpected identity fields: %+v", event)
	}
	if event.Metadata["from_version"] != "settings.V1" || event.Metadata["to_version"] != "settings.V3" {
		t.Fatalf("expected version metadata, got %+v", event.Metadata)
	}
	if event.Metadata["steps"] != 2 || event.Metadata["serializer"] != "xml" {
		t.Fatalf("expected steps and serializer, got %+v", event.Metadata)
	}
	if event.Metadata["snapshot_id"] != "snap-1" || event.Metadata["custom"] != "value" {
		t.Fatalf("expected snapshot and custom metadata, got %+v", event.Metadata)
	}
	if !event.OccurredAt.Equal(occurred) {
		t.Fatalf("expected occurred_at preserved, got %v", event.OccurredAt)
	}
}

func TestBuildConfigEventDoesNotMutateInputMetadata(t *testing.T) {
	meta := map[string]any{"k": "v"}
	event := BuildConfigUpdatedEvent(ConfigEventInput{Name: "billing", Metadata: meta, Steps: 1})

	if _, ok := meta["steps"]; ok {
		t.Fatalf("input metadata should not be modified: %+v", meta)
	}
	if event.Metadata["steps"] != 1 {
		t.Fatalf("expected steps metadata, got %+v", event.Metadata)
	}
}

func TestBuildConfigEventObjectIDWithoutInstance(t *testing.T) {
	event := BuildConfigCreatedEvent(ConfigEventInput{Name: "billing"})

	if event.Verb != VerbConfigCreated {
		t.Fatalf("unexpected verb %s", event.Verb)
	}
	if event.ObjectID != "billing" {
		t.Fatalf("expected object id billing, got %q", event.ObjectID)
	}
	if event.Metadata["config_name"] != "billing" {
		t.Fatalf("expected config_name metadata, got %+v", event.Metadata)
	}
	if _, ok := event.Metadata["config_instance"]; ok {
		t.Fatalf("unexpected config_instance metadata: %+v", event.Metadata)
	}
}

func TestBuildConfigEventWithoutNameIsInvalid(t *testing.T) {
	event := BuildConfigUpdatedEvent(ConfigEventInput{})
	if event.Valid() {
		t.Fatalf("event without a name should not be valid: %+v", event)
	}
	if event.Metadata != nil {
		t.Fatalf("expected nil metadata, got %+v", event.Metadata)
	}
}
