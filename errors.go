package gymgate

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrInvalidCredentials covers both an unknown email and a failed password
// comparison. The message is identical in both cases so responses cannot be
// used to enumerate registered emails.
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailTaken is returned when the signup email collides with an existing
// principal. Metadata carries the colliding role.
var ErrEmailTaken = goerrors.New("email is already registered", goerrors.CategoryConflict).
	WithTextCode("EMAIL_TAKEN").
	WithCode(goerrors.CodeConflict)

// ErrGymNotFound is returned when a member/trainer signup references a gym
// that does not exist or was deleted.
var ErrGymNotFound = goerrors.New("gym not found", goerrors.CategoryNotFound).
	WithTextCode("GYM_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

// ErrGymClosed is returned when the referenced gym is not accepting new
// registrations.
var ErrGymClosed = goerrors.New("gym is not accepting registrations", goerrors.CategoryValidation).
	WithTextCode("GYM_REGISTRATIONS_CLOSED").
	WithCode(goerrors.CodeBadRequest)

// ErrSlugTaken is returned when a new gym's derived slug collides with a
// non-deleted gym.
var ErrSlugTaken = goerrors.New("a gym with that name already exists", goerrors.CategoryConflict).
	WithTextCode("GYM_SLUG_TAKEN").
	WithCode(goerrors.CodeConflict)

// ErrInvalidRole is returned when a token's role claim is not one of the
// three known values.
var ErrInvalidRole = goerrors.New("unknown principal role", goerrors.CategoryAuth).
	WithTextCode("INVALID_ROLE").
	WithCode(goerrors.CodeUnauthorized)

// ErrPrincipalNotFound is returned when the principal referenced by a valid
// token no longer exists.
var ErrPrincipalNotFound = goerrors.New("principal not found", goerrors.CategoryAuth).
	WithTextCode("PRINCIPAL_NOT_FOUND").
	WithCode(goerrors.CodeUnauthorized)

// ErrTargetNotFound is returned when a lifecycle endpoint references a
// principal that does not exist. Unlike ErrPrincipalNotFound the caller is
// authenticated; the target is what is missing.
var ErrTargetNotFound = goerrors.New("principal not found", goerrors.CategoryNotFound).
	WithTextCode("TARGET_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

// ErrMissingToken is returned when a request carries no session token.
var ErrMissingToken = goerrors.New("missing or malformed session token", goerrors.CategoryAuth).
	WithTextCode("TOKEN_MISSING").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for tokens past their expiry.
var ErrTokenExpired = goerrors.New("session token is expired", goerrors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that fail to parse or verify.
var ErrTokenMalformed = goerrors.New("session token is malformed", goerrors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned when the login cooldown kicks in.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts, try again later", goerrors.CategoryAuth).
	WithTextCode("TOO_MANY_LOGIN_ATTEMPTS").
	WithCode(goerrors.CodeUnauthorized)

// ErrForbiddenRole is returned by the access gate when the principal's role
// is not in the route's allow list.
var ErrForbiddenRole = goerrors.New("role not permitted for this route", goerrors.CategoryAuthz).
	WithTextCode("ROLE_FORBIDDEN").
	WithCode(goerrors.CodeForbidden)

// ErrEmptyPassword rejects empty passwords before hashing.
var ErrEmptyPassword = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode("EMPTY_PASSWORD").
	WithCode(goerrors.CodeBadRequest)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed")
}
