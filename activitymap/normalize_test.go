package activitymap_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/r6-tools/activitymap"
	"github.com/goliatone/r6-tools/auth"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType:  auth.ActivityEventStateChanged,
		UserID:     "user-100",
		Email:      "ash@rainbow.six",
		AuthEvent:  auth.EventSignedIn,
		FromStatus: auth.StatusUnauthenticated,
		ToStatus:   auth.StatusAuthenticated,
		Metadata: map[string]any{
			"path": "/profile",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "user-100" {
		t.Fatalf("expected actor_id user-100, got %q", out.ActorID)
	}
	if out.Verb != string(auth.ActivityEventStateChanged) {
		t.Fatalf("expected verb %q, got %q", auth.ActivityEventStateChanged, out.Verb)
	}
	if out.ObjectType != "session" {
		t.Fatalf("expected object_type session, got %q", out.ObjectType)
	}
	if out.ObjectID != "user-100" {
		t.Fatalf("expected object_id user-100, got %q", out.ObjectID)
	}
	if out.Channel != "auth" {
		t.Fatalf("expected channel auth, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}

	if out.Metadata["path"] != "/profile" {
		t.Fatalf("expected metadata path /profile, got %#v", out.Metadata["path"])
	}
	if out.Metadata[activitymap.MetadataKeyAuthEvent] != "SIGNED_IN" {
		t.Fatalf("expected metadata auth_event SIGNED_IN, got %#v", out.Metadata[activitymap.MetadataKeyAuthEvent])
	}
	if out.Metadata[activitymap.MetadataKeyFromStatus] != "unauthenticated" {
		t.Fatalf("expected metadata from_status unauthenticated, got %#v", out.Metadata[activitymap.MetadataKeyFromStatus])
	}
	if out.Metadata[activitymap.MetadataKeyToStatus] != "authenticated" {
		t.Fatalf("expected metadata to_status authenticated, got %#v", out.Metadata[activitymap.MetadataKeyToStatus])
	}
}

func TestNormalizeActorFallbacks(t *testing.T) {
	t.Parallel()

	failed := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventSignInFailure,
		Email:     "ash@rainbow.six",
	})
	if failed.ActorID != "ash@rainbow.six" {
		t.Fatalf("expected email actor, got %q", failed.ActorID)
	}
	if failed.ObjectID != "" {
		t.Fatalf("expected empty object_id, got %q", failed.ObjectID)
	}
	if failed.Metadata != nil {
		t.Fatalf("expected no metadata, got %#v", failed.Metadata)
	}
	if failed.OccurredAt.IsZero() {
		t.Fatal("expected occurred_at to default to now")
	}

	anon := activitymap.Normalize(auth.ActivityEvent{EventType: auth.ActivityEventSignOut})
	if anon.ActorID != "guest" {
		t.Fatalf("expected guest actor, got %q", anon.ActorID)
	}

	custom := activitymap.Normalize(auth.ActivityEvent{EventType: auth.ActivityEventSignOut},
		activitymap.WithActorFallback("cli"))
	if custom.ActorID != "cli" {
		t.Fatalf("expected cli actor, got %q", custom.ActorID)
	}
}

func TestNormalizeOptions(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventTokenRefreshed,
		UserID:    "user-7",
		Metadata:  map[string]any{"session": "s-1"},
	},
		activitymap.WithDefaultChannel(" web "),
		activitymap.WithDefaultObjectType("token"),
		activitymap.WithObjectIDResolver(func(e auth.ActivityEvent) string {
			v, _ := e.Metadata["session"].(string)
			return v
		}),
	)

	if out.Channel != "web" {
		t.Fatalf("expected channel web, got %q", out.Channel)
	}
	if out.ObjectType != "token" {
		t.Fatalf("expected object_type token, got %q", out.ObjectType)
	}
	if out.ObjectID != "s-1" {
		t.Fatalf("expected object_id s-1, got %q", out.ObjectID)
	}
}

func TestNormalizeDoesNotMutateEvent(t *testing.T) {
	t.Parallel()

	meta := map[string]any{"path": "/"}
	activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventSignOut,
		AuthEvent: auth.EventSignedOut,
		Metadata:  meta,
	})

	if len(meta) != 1 {
		t.Fatalf("expected source metadata untouched, got %#v", meta)
	}
}

type lineLogger struct {
	msgs []string
	args [][]any
}

func (l *lineLogger) Debug(string, ...any) {}
func (l *lineLogger) Warn(string, ...any)  {}
func (l *lineLogger) Error(string, ...any) {}
func (l *lineLogger) Info(msg string, args ...any) {
	l.msgs = append(l.msgs, msg)
	l.args = append(l.args, args)
}

func TestLogSink(t *testing.T) {
	t.Parallel()

	logger := &lineLogger{}
	sink := activitymap.LogSink(logger)

	if err := sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventSignOut,
		UserID:    "user-1",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(logger.msgs) != 1 || logger.msgs[0] != "activity" {
		t.Fatalf("expected one activity line, got %#v", logger.msgs)
	}
	if logger.args[0][1] != "user-1" || logger.args[0][3] != string(auth.ActivityEventSignOut) {
		t.Fatalf("unexpected log args %#v", logger.args[0])
	}

	if err := activitymap.LogSink(nil).Record(context.Background(), auth.ActivityEvent{}); err != nil {
		t.Fatalf("nil logger should be a no-op, got %v", err)
	}
}
