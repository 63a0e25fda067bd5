package gymgate

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Session holds attributes that are part of an auth session
type Session interface {
	GetPrincipalID() string
	GetRole() Role
	GetEmail() string
	GetStatus() Status
	GetIssuer() string
	GetIssuedAt() *time.Time
	GetExpiration() *time.Time
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	TokenFor(identity Identity) (string, error)
	SessionFromToken(token string) (Session, error)
	PrincipalFromSession(ctx context.Context, session Session) (*Principal, error)
}

// LoginResult carries the issued token plus the authenticated principal and
// the status-dependent message surfaced to the client.
type LoginResult struct {
	Token     string     `json:"token"`
	Principal *Principal `json:"user"`
	Message   string     `json:"message"`
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int // hours
	GetIssuer() string
	GetAudience() []string
}

// TokenService signs and validates session tokens.
type TokenService interface {
	TokenValidator
	Generate(identity Identity) (string, error)
	SignClaims(claims *SessionClaims) (string, error)
}

// CredentialVerifier resolves an email/password pair into a principal.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, email, password string) (*Principal, error)
	FindByID(ctx context.Context, id string, role Role) (*Principal, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] GYMGATE "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] GYMGATE "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] GYMGATE "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] GYMGATE "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
