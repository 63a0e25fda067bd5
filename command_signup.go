package gymgate

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SignUpMessage carries a registration request. GymID is required for
// members and trainers, ignored for gym owners.
type SignUpMessage struct {
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	Password     string     `json:"password"`
	Role         Role       `json:"role"`
	GymID        *uuid.UUID `json:"gym_id"`
	BusinessName string     `json:"business_name"`
}

func (e SignUpMessage) Type() string { return "principal.signup" }

// SignUpHandler creates pending principals. Duplicate checks run inside the
// registration transaction so concurrent signups for the same email cannot
// both pass.
type SignUpHandler struct {
	repo         RepositoryManager
	activitySink ActivitySink
	logger       Logger
}

func NewSignUpHandler(repo RepositoryManager) *SignUpHandler {
	return &SignUpHandler{
		repo:         repo,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}
}

func (h *SignUpHandler) WithActivitySink(sink ActivitySink) *SignUpHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

func (h *SignUpHandler) WithLogger(logger Logger) *SignUpHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *SignUpHandler) Execute(ctx context.Context, event SignUpMessage) (*Principal, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during signup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignUpHandler) execute(ctx context.Context, event SignUpMessage) (*Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	role := event.Role
	if !role.IsValid() {
		return nil, ErrInvalidRole.WithMetadata(map[string]any{
			"role": string(role),
		})
	}

	var gym *Gym
	if role.RequiresGym() {
		if event.GymID == nil {
			return nil, ErrGymNotFound.WithMetadata(map[string]any{
				"reason": "gym id is required for this role",
			})
		}

		found, err := h.repo.Gyms().GetByRecordID(ctx, *event.GymID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return nil, ErrGymNotFound.WithMetadata(map[string]any{
					"gym_id": event.GymID.String(),
				})
			}
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load gym during signup")
		}

		if !found.IsAcceptingRegistrations {
			return nil, ErrGymClosed.WithMetadata(map[string]any{
				"gym_id": found.ID.String(),
			})
		}

		gym = found
	}

	p := &Principal{
		Role:      role,
		Email:     NormalizeEmail(event.Email),
		FirstName: event.FirstName,
		LastName:  event.LastName,
		Phone:     event.Phone,
		Status:    StatusPending,
	}

	if role == RoleGymOwner {
		p.BusinessName = event.BusinessName
	}

	if gym != nil {
		p.GymID = &gym.ID
		if role == RoleMember {
			p.MembershipState = MembershipNone
		}
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := h.repo.Principals().FindCollisionTx(ctx, tx, role, p.Email, p.GymID)
		if err == nil && existing != nil {
			return ErrEmailTaken.WithMetadata(map[string]any{
				"email": p.Email,
				"role":  string(existing.Role),
			})
		}
		if err != nil && !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed duplicate email check")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}
		p.PasswordHash = hash

		if p, err = h.repo.Principals().RegisterTx(ctx, tx, p); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "signup transaction failed")
	}

	h.recordSignup(ctx, p)

	return p, nil
}

func (h *SignUpHandler) recordSignup(ctx context.Context, p *Principal) {
	event := ActivityEvent{
		EventType:   ActivityEventSignup,
		Actor:       ActorRef{ID: p.ID.String(), Type: "principal"},
		PrincipalID: p.ID.String(),
		ToStatus:    p.Status,
		Metadata: map[string]any{
			"role": string(p.Role),
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activitySink).Record(ctx, event); err != nil {
		h.logger.Warn("signup activity sink error: %v", err)
	}
}
