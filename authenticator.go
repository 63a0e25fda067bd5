package gymgate

import (
	"context"
	"strings"
	"time"
)

// Auther verifies credentials and issues session tokens.
type Auther struct {
	provider       CredentialVerifier
	tokenService   TokenService
	tokenValidator TokenValidator
	activitySink   ActivitySink
	logger         Logger
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(store PrincipalStore, cfg Config) *Auther {
	tokenService := NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:     NewPrincipalProvider(store),
		tokenService: tokenService,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}
}

func (a *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithCredentialVerifier swaps the default PrincipalProvider.
func (a *Auther) WithCredentialVerifier(provider CredentialVerifier) *Auther {
	if provider != nil {
		a.provider = provider
	}
	return a
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (a *Auther) WithActivitySink(sink ActivitySink) *Auther {
	a.activitySink = normalizeActivitySink(sink)
	return a
}

// WithTokenValidator sets a custom token validator for externally issued tokens.
func (a *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	a.tokenValidator = validator
	return a
}

// TokenService returns the TokenService instance used by this Authenticator
func (a *Auther) TokenService() TokenService {
	return a.tokenService
}

// Login verifies the email/password pair against the credential store. The
// returned error is identical for an unknown email and a wrong password.
// Status does not block login; it only selects the response message.
func (a *Auther) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)

	p, err := a.provider.VerifyCredentials(ctx, email, password)
	if err != nil {
		a.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return nil, err
	}

	token, err := a.TokenFor(p.Identity())
	if err != nil {
		a.logger.Error("login token generation failed", "error", err)
		return nil, err
	}

	a.emitAuthEvent(ctx, ActivityEventLoginSuccess, ActorRef{ID: p.ID.String(), Type: "principal"}, p.ID.String(), nil)

	return &LoginResult{
		Token:     token,
		Principal: p,
		Message:   StatusLoginMessage(p.Status, p.Role),
	}, nil
}

// TokenFor issues a session token for the given identity.
func (a *Auther) TokenFor(identity Identity) (string, error) {
	return a.tokenService.Generate(identity)
}

// SessionFromToken validates a raw token and returns the session view.
func (a *Auther) SessionFromToken(raw string) (Session, error) {
	validator := a.tokenValidator
	if validator == nil {
		validator = a.tokenService
	}

	claims, err := validator.Validate(raw)
	if err != nil {
		a.logger.Error("SessionFromToken validation failed", "error", err)
		return nil, err
	}

	session, err := SessionFromClaims(claims)
	if err != nil {
		a.logger.Error("SessionFromToken failed to create session from claims", "error", err)
		return nil, err
	}

	return session, nil
}

// PrincipalFromSession re-fetches the principal behind a session. Only the
// id and role embedded in the token are trusted; everything else comes from
// the store.
func (a *Auther) PrincipalFromSession(ctx context.Context, session Session) (*Principal, error) {
	return a.provider.FindByID(ctx, session.GetPrincipalID(), session.GetRole())
}

func (a *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, principalID string, metadata map[string]any) {
	sink := normalizeActivitySink(a.activitySink)
	event := ActivityEvent{
		EventType:   eventType,
		Actor:       actor,
		PrincipalID: principalID,
		Metadata:    metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		a.logger.Warn("activity sink record error: %v", err)
	}
}

// StatusLoginMessage selects the login response message for a status. Only
// active principals get the generic success string; everyone else gets an
// explanation of their holding state.
func StatusLoginMessage(status Status, role Role) string {
	switch status {
	case StatusPending:
		return "Login successful. Your account is pending gym owner approval."
	case StatusSuspended:
		return "Login successful. Your account is suspended; contact your gym for assistance."
	case StatusInactive:
		return "Login successful. Your account is inactive; contact your gym to reactivate it."
	default:
		return "Login successful."
	}
}

// NormalizeEmail lowercases and trims an email for lookups and uniqueness
// checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
