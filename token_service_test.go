package gymgate_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymstack/gymgate"
)

type testIdentity struct {
	id     string
	email  string
	role   gymgate.Role
	status gymgate.Status
}

func (t testIdentity) ID() string             { return t.id }
func (t testIdentity) Email() string          { return t.email }
func (t testIdentity) Role() gymgate.Role     { return t.role }
func (t testIdentity) Status() gymgate.Status { return t.status }

func newTestTokenService() gymgate.TokenService {
	return gymgate.NewTokenService(
		[]byte("test-signing-key"),
		24,
		"test-issuer",
		[]string{"test:audience"},
		nil,
	)
}

func TestTokenServiceGenerate(t *testing.T) {
	ts := newTestTokenService()

	identity := testIdentity{
		id:     "5a84792d-82a9-4c9e-8e03-c64e3d8e6a71",
		email:  "member@example.com",
		role:   gymgate.RoleMember,
		status: gymgate.StatusActive,
	}

	token, err := ts.Generate(identity)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	parsed, err := jwt.ParseWithClaims(token, &gymgate.SessionClaims{}, func(t *jwt.Token) (any, error) {
		return []byte("test-signing-key"), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims, ok := parsed.Claims.(*gymgate.SessionClaims)
	require.True(t, ok)
	assert.Equal(t, identity.id, claims.Subject())
	assert.Equal(t, identity.id, claims.PrincipalID())
	assert.Equal(t, "member", claims.Role())
	assert.Equal(t, "member@example.com", claims.Email())
	assert.Equal(t, "active", claims.Status())
	assert.Equal(t, "test-issuer", claims.RegisteredClaims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"test:audience"}, claims.RegisteredClaims.Audience)
	assert.NotEmpty(t, claims.RegisteredClaims.ID)
}

func TestTokenServiceValidate(t *testing.T) {
	ts := newTestTokenService()

	identity := testIdentity{
		id:     "5a84792d-82a9-4c9e-8e03-c64e3d8e6a71",
		email:  "member@example.com",
		role:   gymgate.RoleMember,
		status: gymgate.StatusPending,
	}

	token, err := ts.Generate(identity)
	require.NoError(t, err)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, identity.id, claims.PrincipalID())
	assert.Equal(t, "pending", claims.Status())
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.Expires(), time.Minute)
}

func TestTokenServiceValidateExpired(t *testing.T) {
	ts := newTestTokenService()

	claims := &gymgate.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			Subject:   "some-id",
			Audience:  jwt.ClaimStrings{"test:audience"},
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-48 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-24 * time.Hour)),
		},
		UID:           "some-id",
		PrincipalRole: "member",
	}

	token, err := ts.SignClaims(claims)
	require.NoError(t, err)

	_, err = ts.Validate(token)
	require.Error(t, err)
	assert.True(t, gymgate.IsTokenExpiredError(err))
}

func TestTokenServiceValidateWrongKey(t *testing.T) {
	ts := newTestTokenService()
	other := gymgate.NewTokenService([]byte("other-key"), 24, "test-issuer", []string{"test:audience"}, nil)

	token, err := other.Generate(testIdentity{
		id:   "some-id",
		role: gymgate.RoleTrainer,
	})
	require.NoError(t, err)

	_, err = ts.Validate(token)
	require.Error(t, err)
	assert.True(t, gymgate.IsMalformedError(err))
}

func TestTokenServiceValidateGarbage(t *testing.T) {
	ts := newTestTokenService()

	_, err := ts.Validate("not-a-token")
	require.Error(t, err)
	assert.True(t, gymgate.IsMalformedError(err))
}

func TestMultiTokenValidator(t *testing.T) {
	primary := newTestTokenService()
	secondary := gymgate.NewTokenService([]byte("secondary-key"), 24, "other-issuer", nil, nil)

	multi := gymgate.NewMultiTokenValidator(primary, secondary)

	token, err := secondary.Generate(testIdentity{
		id:     "6f8ce3f7-94ab-4eb3-9d57-8d59af1c0a10",
		role:   gymgate.RoleGymOwner,
		status: gymgate.StatusActive,
	})
	require.NoError(t, err)

	claims, err := multi.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "6f8ce3f7-94ab-4eb3-9d57-8d59af1c0a10", claims.PrincipalID())

	_, err = multi.Validate("garbage")
	require.Error(t, err)
}
