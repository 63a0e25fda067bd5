package gymgate

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ Session = &SessionObject{}

// SessionObject is the decoded view of a validated session token.
type SessionObject struct {
	PrincipalID    string     `json:"principal_id,omitempty"`
	Role           Role       `json:"role,omitempty"`
	Email          string     `json:"email,omitempty"`
	Status         Status     `json:"status,omitempty"`
	Issuer         string     `json:"issuer,omitempty"`
	IssuedAt       *time.Time `json:"issued_at,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

func (s *SessionObject) GetPrincipalID() string {
	return s.PrincipalID
}

// GetPrincipalUUID parses the principal id
func (s *SessionObject) GetPrincipalUUID() (uuid.UUID, error) {
	return uuid.Parse(s.PrincipalID)
}

func (s *SessionObject) GetRole() Role {
	return s.Role
}

func (s *SessionObject) GetEmail() string {
	return s.Email
}

func (s *SessionObject) GetStatus() Status {
	return s.Status
}

func (s *SessionObject) GetIssuer() string {
	return s.Issuer
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetExpiration() *time.Time {
	return s.ExpirationDate
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"principal=%s role=%s status=%s iss=%s iat=%s",
		s.PrincipalID,
		s.Role,
		s.Status,
		s.Issuer,
		issuedAt,
	)
}

// SessionFromClaims creates a SessionObject from validated claims. The role
// claim must be one of the three known values.
func SessionFromClaims(claims Claims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrTokenMalformed
	}

	role, ok := ParseRole(claims.Role())
	if !ok {
		return nil, ErrInvalidRole.WithMetadata(map[string]any{
			"role": claims.Role(),
		})
	}

	status, ok := ParseStatus(claims.Status())
	if !ok {
		status = StatusPending
	}

	issuedAt := claims.IssuedAt()
	expiresAt := claims.Expires()

	return &SessionObject{
		PrincipalID:    claims.PrincipalID(),
		Role:           role,
		Email:          claims.Email(),
		Status:         status,
		Issuer:         issuerFromClaims(claims),
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
	}, nil
}

func issuerFromClaims(claims Claims) string {
	if sc, ok := claims.(*SessionClaims); ok {
		if sc.RegisteredClaims.Issuer != "" {
			return sc.RegisteredClaims.Issuer
		}
	}
	return claims.Subject()
}
