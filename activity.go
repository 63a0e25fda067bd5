package gymgate

import (
	"context"
	"time"
)

// ActivityEventType identifies auth lifecycle events.
type ActivityEventType string

const (
	ActivityEventSignup        ActivityEventType = "auth.signup"
	ActivityEventLoginSuccess  ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure  ActivityEventType = "auth.login.failure"
	ActivityEventStatusChanged ActivityEventType = "principal.status.changed"
)

// ActorRef identifies who/what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent is the audit payload emitted on auth and lifecycle events.
type ActivityEvent struct {
	EventType   ActivityEventType
	Actor       ActorRef
	PrincipalID string
	FromStatus  Status
	ToStatus    Status
	Metadata    map[string]any
	OccurredAt  time.Time
}

// ActivitySink receives activity events. Implementations must be safe to
// call from request handlers; failures are logged, never propagated.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function into an ActivitySink.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record satisfies the ActivitySink interface.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error { return nil }

func normalizeActivitySink(sink ActivitySink) ActivitySink {
	if sink == nil {
		return noopActivitySink{}
	}
	return sink
}
