package gymgate

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// MaxLoginAttempts is the maximum number of attempts a principal gets
// in a period
var MaxLoginAttempts = 5

// LoginCooldownPeriod is the window over which failed attempts accumulate.
var LoginCooldownPeriod = 24 * time.Hour

// PrincipalStore is the slice of the principals repository the provider needs.
type PrincipalStore interface {
	GetByEmail(ctx context.Context, email string) (*Principal, error)
	GetByIDAndRole(ctx context.Context, id uuid.UUID, role Role) (*Principal, error)
	TrackAttemptedLogin(ctx context.Context, p *Principal) error
	TrackSuccessfulLogin(ctx context.Context, p *Principal) error
}

// PrincipalProvider resolves credentials and session references into
// principals.
type PrincipalProvider struct {
	store     PrincipalStore
	Validator func(*Principal) error
	logger    Logger
}

var _ CredentialVerifier = (*PrincipalProvider)(nil)

// NewPrincipalProvider will create a new PrincipalProvider
func NewPrincipalProvider(store PrincipalStore) *PrincipalProvider {
	return &PrincipalProvider{
		store:     store,
		logger:    defLogger{},
		Validator: defaultValidator,
	}
}

func (u *PrincipalProvider) WithLogger(l Logger) *PrincipalProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

func (u *PrincipalProvider) validate(p *Principal) error {
	if u.Validator != nil {
		return u.Validator(p)
	}
	return defaultValidator(p)
}

// VerifyCredentials finds the principal behind the email, compares the
// password, and returns the record. Unknown email and a failed comparison
// produce the same error. When the same member email exists at several gyms
// the oldest registration wins.
func (u *PrincipalProvider) VerifyCredentials(ctx context.Context, email, password string) (*Principal, error) {
	p, err := u.store.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve principal during verification")
	}

	if p.LoginAttemptAt != nil && time.Since(*p.LoginAttemptAt) > LoginCooldownPeriod {
		p.LoginAttempts = 0
	}

	// too many attempts in the window, cool off
	if p.LoginAttempts > MaxLoginAttempts {
		return nil, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, p.PasswordHash); err != nil {
		// increment the login_attempts counter and login_attempt_at
		if err2 := u.store.TrackAttemptedLogin(ctx, p); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}
		return nil, ErrInvalidCredentials
	}

	// reset the login_attempts counter and login_attempt_at
	if err := u.store.TrackSuccessfulLogin(ctx, p); err != nil {
		u.logger.Error("failed to track successful login", "error", err)
	}

	if err := u.validate(p); err != nil {
		return nil, err
	}

	now := time.Now()
	p.LoggedInAt = &now
	p.EnsureStatus()

	return p, nil
}

// FindByID resolves the principal a validated session points at. Only the
// id and role embedded in the token are trusted.
func (u *PrincipalProvider) FindByID(ctx context.Context, id string, role Role) (*Principal, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrTokenMalformed
	}

	p, err := u.store.GetByIDAndRole(ctx, uid, role)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrPrincipalNotFound
		}
		return nil, err
	}

	if err := u.validate(p); err != nil {
		return nil, err
	}

	return p, nil
}

func defaultValidator(p *Principal) error {
	if p == nil {
		return ErrPrincipalNotFound
	}

	if !p.Role.IsValid() {
		return ErrInvalidRole.WithMetadata(map[string]any{
			"role":         p.Role,
			"principal_id": p.ID.String(),
		})
	}

	return nil
}
