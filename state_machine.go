package gymgate

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid principal status transition", goerrors.CategoryValidation).
	WithTextCode("INVALID_STATUS_TRANSITION").
	WithCode(goerrors.CodeBadRequest)

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor     ActorRef
	Principal *Principal
	From      Status
	To        Status
	Meta      TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// PrincipalStateMachine defines lifecycle operations for principals.
type PrincipalStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, p *Principal, target Status, opts ...TransitionOption) (*Principal, error)
	CurrentStatus(p *Principal) Status
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*principalStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *principalStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *principalStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *principalStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithForceTransition bypasses validation rules (use sparingly).
func WithForceTransition() TransitionOption {
	return func(opts *transitionOptions) {
		opts.force = true
	}
}

// WithBeforeTransitionHook adds a hook executed before the status update.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the status update succeeds.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// WithSuspensionTime overrides the timestamp recorded when entering the suspended state.
func WithSuspensionTime(t time.Time) TransitionOption {
	return func(opts *transitionOptions) {
		opts.suspensionTime = &t
	}
}

// statusUpdater is the slice of the principals repository the machine needs.
type statusUpdater interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, opts ...StatusUpdateOption) (*Principal, error)
}

// NewPrincipalStateMachine returns the default implementation backed by the
// provided repository. Allowed transitions: pending→active, active⇄suspended,
// active⇄inactive.
func NewPrincipalStateMachine(principals statusUpdater, opts ...StateMachineOption) PrincipalStateMachine {
	sm := &principalStateMachine{
		principals: principals,
		transitions: map[Status]map[Status]struct{}{
			StatusPending: {
				StatusActive: {},
			},
			StatusActive: {
				StatusSuspended: {},
				StatusInactive:  {},
			},
			StatusSuspended: {
				StatusActive: {},
			},
			StatusInactive: {
				StatusActive: {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type principalStateMachine struct {
	principals   statusUpdater
	transitions  map[Status]map[Status]struct{}
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
}

type transitionOptions struct {
	metadata       TransitionMetadata
	force          bool
	beforeHooks    []TransitionHook
	afterHooks     []TransitionHook
	suspensionTime *time.Time
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

func (sm *principalStateMachine) Transition(ctx context.Context, actor ActorRef, p *Principal, target Status, opts ...TransitionOption) (*Principal, error) {
	if p == nil {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"target": target,
			"reason": "principal is nil",
		})
	}

	p.EnsureStatus()
	from := p.Status
	if target == "" {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"reason": "target status is empty",
		})
	}

	if from == target {
		return p, nil
	}

	options := sm.buildTransitionOptions(opts...)

	if !options.force && !sm.canTransition(from, target) {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	ctxData := TransitionContext{
		Actor:     actor,
		Principal: p,
		From:      from,
		To:        target,
		Meta:      options.cloneMetadata(),
	}

	if err := sm.runHooks(ctx, options.beforeHooks, ctxData); err != nil {
		return nil, err
	}

	statusOpts, chosenSuspension := sm.buildStatusOptions(p, from, target, options)

	updated, err := sm.principals.UpdateStatus(ctx, p.ID, target, statusOpts...)
	if err != nil {
		return nil, err
	}

	sm.applyUpdates(p, updated, target, from, chosenSuspension)

	if err := sm.runHooks(ctx, options.afterHooks, ctxData); err != nil {
		return nil, err
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType:   ActivityEventStatusChanged,
		Actor:       actor,
		PrincipalID: p.ID.String(),
		FromStatus:  from,
		ToStatus:    target,
		Metadata:    sm.transitionMetadata(ctxData.Meta),
	})

	return p, nil
}

func (sm *principalStateMachine) CurrentStatus(p *Principal) Status {
	if p == nil {
		return ""
	}
	p.EnsureStatus()
	return p.Status
}

func (sm *principalStateMachine) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

func (sm *principalStateMachine) canTransition(from, to Status) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *principalStateMachine) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func (sm *principalStateMachine) buildStatusOptions(p *Principal, from, to Status, opts *transitionOptions) ([]StatusUpdateOption, *time.Time) {
	statusOpts := []StatusUpdateOption{}
	var suspensionTime *time.Time

	if to == StatusSuspended {
		switch {
		case opts.suspensionTime != nil:
			suspensionTime = opts.suspensionTime
		case p.SuspendedAt != nil:
			suspensionTime = p.SuspendedAt
		default:
			now := sm.now()
			suspensionTime = &now
		}
		statusOpts = append(statusOpts, WithSuspendedAt(suspensionTime))
	} else if from == StatusSuspended && p.SuspendedAt != nil {
		statusOpts = append(statusOpts, WithSuspendedAt(nil))
	}

	return statusOpts, suspensionTime
}

func (sm *principalStateMachine) applyUpdates(p, updated *Principal, target, from Status, suspensionTime *time.Time) {
	if updated != nil {
		if updated.Status != "" {
			p.Status = updated.Status
		} else {
			p.Status = target
		}
		p.SuspendedAt = updated.SuspendedAt
		return
	}

	p.Status = target
	if target == StatusSuspended {
		p.SuspendedAt = suspensionTime
	} else if from == StatusSuspended {
		p.SuspendedAt = nil
	}
}

func (sm *principalStateMachine) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = sm.now()
	}

	sink := normalizeActivitySink(sm.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		sm.logger.Warn("state machine activity sink error: %v", err)
	}
}

func (sm *principalStateMachine) transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}
