// Package usersink forwards configuration activity events to a go-users
// ActivitySink.
package usersink

import (
	"context"
	"strings"

	"github.com/goliatone/go-config-history/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
	// Verbs restricts forwarding to the listed verbs. Empty forwards all.
	Verbs []string
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
// Actor, user and tenant ids that are not UUIDs are recorded as uuid.Nil.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	normalized := activity.NormalizeEvent(event)
	if !normalized.Valid() || !h.forwards(normalized.Verb) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	record := usertypes.ActivityRecord{
		ActorID:    parseUUID(normalized.ActorID),
		UserID:     parseUUID(normalized.UserID),
		TenantID:   parseUUID(normalized.TenantID),
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Data:       normalized.Metadata,
		OccurredAt: normalized.OccurredAt,
	}
	return h.Sink.Log(ctx, record)
}

func (h Hook) forwards(verb string) bool {
	if len(h.Verbs) == 0 {
		return true
	}
	for _, candidate := range h.Verbs {
		if strings.EqualFold(strings.TrimSpace(candidate), verb) {
			return true
		}
	}
	return false
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
