package usersink

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-statepath/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook forwards statepath activity events to a go-users ActivitySink, so
// writes and invalidations show up in the user activity feed.
type Hook struct {
	Sink usertypes.ActivitySink
	// ObjectPrefix is prepended to the object type, e.g. "state." yields
	// "state.address".
	ObjectPrefix string
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}

	normalized := activity.NormalizeEvent(event)
	if normalized.Verb == "" || normalized.ObjectType == "" || normalized.ObjectID == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	data := cloneMap(normalized.Metadata)
	if data == nil {
		data = map[string]any{}
	}
	if normalized.RootName != "" {
		data["root"] = normalized.RootName
	}
	if normalized.ListIndex != "" {
		data["list_index"] = normalized.ListIndex
	}

	record := usertypes.ActivityRecord{
		ActorID:    parseUUID(normalized.ActorID),
		TenantID:   parseUUID(normalized.RootID),
		Verb:       normalized.Verb,
		ObjectType: h.ObjectPrefix + normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Data:       data,
		OccurredAt: normalized.OccurredAt,
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now()
	}

	return h.Sink.Log(ctx, record)
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
