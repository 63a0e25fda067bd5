package gymgate

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the structured view over a validated session token.
type Claims interface {
	Subject() string
	PrincipalID() string
	Role() string
	Email() string
	Status() string
	Expires() time.Time
	IssuedAt() time.Time
}

// SessionClaims is the concrete JWT payload: {subjectId, role, email, status}
// on top of the registered claim set.
type SessionClaims struct {
	jwt.RegisteredClaims
	UID           string `json:"uid,omitempty"`
	PrincipalRole string `json:"role,omitempty"`
	EmailAddress  string `json:"email,omitempty"`
	AccountStatus string `json:"status,omitempty"`
}

var _ Claims = (*SessionClaims)(nil)

// Subject returns the subject claim
func (c *SessionClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// PrincipalID returns the principal id, falling back to the subject
func (c *SessionClaims) PrincipalID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the role claim
func (c *SessionClaims) Role() string {
	return c.PrincipalRole
}

// Email returns the email claim
func (c *SessionClaims) Email() string {
	return c.EmailAddress
}

// Status returns the account status captured at issuance time. The stored
// record is authoritative; this value is informational only.
func (c *SessionClaims) Status() string {
	return c.AccountStatus
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *SessionClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
