package gymgate_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/gymstack/gymgate"
	"github.com/gymstack/gymgate/middleware/sessionware"
)

type testEnv struct {
	t    *testing.T
	app  *fiber.App
	repo gymgate.RepositoryManager
}

func newTestEnv(t *testing.T, enforceStatus bool) *testEnv {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	require.NoError(t, gymgate.CreateSchema(context.Background(), db))

	repo := gymgate.NewRepositoryManager(db)
	auther := gymgate.NewAuthenticator(repo.Principals(), testConfig{})

	app := fiber.New(fiber.Config{
		ErrorHandler: gymgate.HTTPErrorHandler(nil),
	})

	protected := sessionware.New(sessionware.Config{
		Auther:        auther,
		EnforceStatus: enforceStatus,
	})

	controller := gymgate.NewAuthController(
		gymgate.WithControllerRepo(repo),
		gymgate.WithControllerAuther(auther),
		gymgate.WithControllerCookies(gymgate.NewSessionCookies(testConfig{}, false)),
	)

	gymgate.RegisterAuthRoutes(app, controller, protected)

	return &testEnv{t: t, app: app, repo: repo}
}

func (e *testEnv) request(method, path string, payload any, token string) (*http.Response, map[string]any) {
	e.t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(e.t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)

	decoded := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	resp.Body.Close()
	if len(raw) > 0 {
		require.NoError(e.t, json.Unmarshal(raw, &decoded), string(raw))
	}

	return resp, decoded
}

func (e *testEnv) signup(payload map[string]any) (*http.Response, map[string]any) {
	return e.request(fiber.MethodPost, "/api/auth/signup", payload, "")
}

func (e *testEnv) login(email, password string) (*http.Response, map[string]any) {
	return e.request(fiber.MethodPost, "/api/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, "")
}

// signupOwner registers a gym owner and returns its id and session token.
func (e *testEnv) signupOwner(email string) (uuid.UUID, string) {
	e.t.Helper()

	resp, body := e.signup(map[string]any{
		"first_name":    "Olive",
		"last_name":     "Owner",
		"email":         email,
		"password":      "password123",
		"role":          "gym_owner",
		"business_name": "Iron Temple LLC",
	})
	require.Equal(e.t, http.StatusCreated, resp.StatusCode)

	return principalID(e.t, body), body["token"].(string)
}

func (e *testEnv) createGym(name string, ownerID uuid.UUID, accepting bool) *gymgate.Gym {
	e.t.Helper()

	gym, err := e.repo.Gyms().Register(context.Background(), &gymgate.Gym{
		Name:                     name,
		OwnerID:                  ownerID,
		IsAcceptingRegistrations: accepting,
	})
	require.NoError(e.t, err)
	return gym
}

func memberPayload(email string, gymID uuid.UUID) map[string]any {
	return map[string]any{
		"first_name": "Max",
		"last_name":  "Member",
		"email":      email,
		"password":   "password123",
		"role":       "member",
		"gym_id":     gymID.String(),
	}
}

func principalID(t *testing.T, body map[string]any) uuid.UUID {
	t.Helper()

	user, ok := body["user"].(map[string]any)
	require.True(t, ok, "response has no user payload: %v", body)
	id, err := uuid.Parse(user["id"].(string))
	require.NoError(t, err)
	return id
}

func TestSignupLoginEndToEnd(t *testing.T) {
	env := newTestEnv(t, false)
	ownerID, _ := env.signupOwner("owner@example.com")
	gym := env.createGym("Iron Temple", ownerID, true)

	resp, body := env.signup(memberPayload("max@example.com", gym.ID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["token"])
	assert.Contains(t, body["message"], "pending gym owner approval")

	user := body["user"].(map[string]any)
	assert.Equal(t, "pending", user["status"])
	assert.Equal(t, "member", user["role"])
	_, hasHash := user["password_hash"]
	assert.False(t, hasHash)

	var sessionCookie *http.Cookie
	for _, cookie := range resp.Cookies() {
		if cookie.Name == gymgate.TokenCookieName {
			sessionCookie = cookie
		}
	}
	require.NotNil(t, sessionCookie)
	assert.True(t, sessionCookie.HttpOnly)

	resp, body = env.login("max@example.com", "password123")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])
	assert.Contains(t, body["message"], "pending gym owner approval")

	token := body["token"].(string)
	resp, body = env.request(fiber.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "max@example.com", body["user"].(map[string]any)["email"])
}

func TestSignupPhoneNormalization(t *testing.T) {
	env := newTestEnv(t, false)
	ownerID, _ := env.signupOwner("owner@example.com")
	gym := env.createGym("Iron Temple", ownerID, true)

	// junk phone values never block a signup
	payload := memberPayload("max@example.com", gym.ID)
	payload["phone"] = "1"
	resp, body := env.signup(payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "1", body["user"].(map[string]any)["phone_number"])

	payload = memberPayload("other@example.com", gym.ID)
	payload["phone"] = "(212) 555-0123"
	resp, body = env.signup(payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "+12125550123", body["user"].(map[string]any)["phone_number"])
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		name    string
		mutate  func(map[string]any)
		expects int
	}{
		{"short password", func(p map[string]any) { p["password"] = "short" }, http.StatusBadRequest},
		{"bad email", func(p map[string]any) { p["email"] = "not-an-email" }, http.StatusBadRequest},
		{"unknown role", func(p map[string]any) { p["role"] = "superadmin" }, http.StatusBadRequest},
		{"member without gym", func(p map[string]any) { delete(p, "gym_id") }, http.StatusBadRequest},
		{"owner without business name", func(p map[string]any) {
			p["role"] = "gym_owner"
			delete(p, "gym_id")
		}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := memberPayload("max@example.com", uuid.New())
			tt.mutate(payload)

			resp, body := env.signup(payload)
			assert.Equal(t, tt.expects, resp.StatusCode)
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestSignupCrossRoleEmailConflict(t *testing.T) {
	env := newTestEnv(t, false)
	ownerID, _ := env.signupOwner("shared@example.com")
	gym := env.createGym("Iron Temple", ownerID, true)

	payload := memberPayload("shared@example.com", gym.ID)
	payload["role"] = "trainer"
	resp, body := env.signup(payload)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, false, body["success"])

	// members collide with staff emails too
	resp, _ = env.signup(memberPayload("shared@example.com", gym.ID))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestMemberEmailScopedByGym(t *testing.T) {
	env := newTestEnv(t, false)
	ownerID, _ := env.signupOwner("owner@example.com")
	gymA := env.createGym("Iron Temple", ownerID, true)
	gymB := env.createGym("Steel Works", ownerID, true)

	resp, _ := env.signup(memberPayload("max@example.com", gymA.ID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// same email at a different gym is a separate account
	resp, _ = env.signup(memberPayload("max@example.com", gymB.ID))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// but not twice at the same gym
	resp, _ = env.signup(memberPayload("max@example.com", gymA.ID))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSignupGymGate(t *testing.T) {
	env := newTestEnv(t, false)
	ownerID, _ := env.signupOwner("owner@example.com")
	closed := env.createGym("Closed Gym", ownerID, false)

	resp, _ := env.signup(memberPayload("max@example.com", closed.ID))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.signup(memberPayload("max@example.com", uuid.New()))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLoginUniformFailureResponses(t *testing.T) {
	env := newTestEnv(t, false)
	env.signupOwner("owner@example.com")

	respWrong, bodyWrong := env.login("owner@example.com", "not-the-password")
	respUnknown, bodyUnknown := env.login("nobody@example.com", "password123")

	assert.Equal(t, http.StatusUnauthorized, respWrong.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, respUnknown.StatusCode)
	assert.Equal(t, bodyWrong["message"], bodyUnknown["message"])
	assert.Equal(t, "invalid email or password", bodyWrong["message"])
}

func TestLoginRecoversAfterFailedAttempt(t *testing.T) {
	env := newTestEnv(t, false)
	env.signupOwner("owner@example.com")

	resp, _ := env.login("owner@example.com", "not-the-password")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// a failed attempt only bumps the counters; the stored credentials
	// still work
	resp, body := env.login("owner@example.com", "password123")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])
}

func TestSuspendedProfileAccess(t *testing.T) {
	env := newTestEnv(t, false)
	ownerID, _ := env.signupOwner("owner@example.com")
	gym := env.createGym("Iron Temple", ownerID, true)

	resp, body := env.signup(memberPayload("max@example.com", gym.ID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	memberID := principalID(t, body)
	token := body["token"].(string)

	ctx := context.Background()
	_, err := env.repo.Principals().UpdateStatus(ctx, memberID, gymgate.StatusSuspended)
	require.NoError(t, err)

	// suspended accounts can still read their own profile
	resp, body = env.request(fiber.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "suspended", body["user"].(map[string]any)["status"])
}

func TestSuspendedProfileAccessEnforced(t *testing.T) {
	env := newTestEnv(t, true)
	ownerID, _ := env.signupOwner("owner@example.com")
	gym := env.createGym("Iron Temple", ownerID, true)

	resp, body := env.signup(memberPayload("max@example.com", gym.ID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	memberID := principalID(t, body)
	token := body["token"].(string)

	ctx := context.Background()
	_, err := env.repo.Principals().UpdateStatus(ctx, memberID, gymgate.StatusSuspended)
	require.NoError(t, err)

	resp, _ = env.request(fiber.MethodGet, "/api/auth/me", nil, token)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMeRequiresToken(t *testing.T) {
	env := newTestEnv(t, false)

	resp, body := env.request(fiber.MethodGet, "/api/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestGymEndpoints(t *testing.T) {
	env := newTestEnv(t, false)
	_, ownerToken := env.signupOwner("owner@example.com")

	resp, body := env.request(fiber.MethodPost, "/api/gyms", map[string]any{
		"name":    "Iron Temple",
		"address": "1 Barbell Way",
	}, ownerToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	gym := body["gym"].(map[string]any)
	assert.Equal(t, "iron-temple", gym["slug"])
	assert.Equal(t, true, gym["is_accepting_registrations"])
	gymID, err := uuid.Parse(gym["id"].(string))
	require.NoError(t, err)

	// gym directory is public
	resp, body = env.request(fiber.MethodGet, "/api/gyms", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["gyms"], 1)

	// duplicate name means duplicate slug
	resp, _ = env.request(fiber.MethodPost, "/api/gyms", map[string]any{
		"name": "Iron Temple",
	}, ownerToken)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// close registrations, member signups now bounce
	resp, _ = env.request(fiber.MethodPatch, "/api/gyms/"+gymID.String()+"/registrations", map[string]any{
		"accepting": false,
	}, ownerToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.signup(memberPayload("max@example.com", gymID))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.request(fiber.MethodGet, "/api/gyms", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["gyms"], 0)

	// delete hides the gym from signups entirely
	resp, _ = env.request(fiber.MethodDelete, "/api/gyms/"+gymID.String(), nil, ownerToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.signup(memberPayload("max@example.com", gymID))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGymOwnershipChecks(t *testing.T) {
	env := newTestEnv(t, false)
	ownerID, _ := env.signupOwner("owner@example.com")
	_, rivalToken := env.signupOwner("rival@example.com")
	gym := env.createGym("Iron Temple", ownerID, true)

	resp, _ := env.request(fiber.MethodPatch, "/api/gyms/"+gym.ID.String()+"/registrations", map[string]any{
		"accepting": false,
	}, rivalToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.request(fiber.MethodDelete, "/api/gyms/"+gym.ID.String(), nil, rivalToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// members cannot create gyms
	memberResp, memberBody := env.signup(memberPayload("max@example.com", gym.ID))
	require.Equal(t, http.StatusCreated, memberResp.StatusCode)

	resp, _ = env.request(fiber.MethodPost, "/api/gyms", map[string]any{
		"name": "Member Gym",
	}, memberBody["token"].(string))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPrincipalLifecycleEndpoints(t *testing.T) {
	env := newTestEnv(t, false)
	ownerID, ownerToken := env.signupOwner("owner@example.com")
	_, rivalToken := env.signupOwner("rival@example.com")
	gym := env.createGym("Iron Temple", ownerID, true)

	resp, body := env.signup(memberPayload("max@example.com", gym.ID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	memberID := principalID(t, body)

	base := "/api/principals/" + memberID.String()

	// only the owner of the member's gym may move its status
	resp, _ = env.request(fiber.MethodPost, base+"/approve", nil, rivalToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = env.request(fiber.MethodPost, base+"/approve", nil, ownerToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "active", body["user"].(map[string]any)["status"])

	_, body = env.login("max@example.com", "password123")
	assert.Equal(t, "Login successful.", body["message"])

	resp, body = env.request(fiber.MethodPost, base+"/suspend", map[string]any{
		"reason": "unpaid dues",
	}, ownerToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "suspended", body["user"].(map[string]any)["status"])
	assert.NotEmpty(t, body["user"].(map[string]any)["suspended_at"])

	resp, body = env.request(fiber.MethodPost, base+"/activate", nil, ownerToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "active", body["user"].(map[string]any)["status"])

	resp, body = env.request(fiber.MethodPost, base+"/deactivate", nil, ownerToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "inactive", body["user"].(map[string]any)["status"])

	// inactive -> suspended is not a legal move
	resp, _ = env.request(fiber.MethodPost, base+"/suspend", nil, ownerToken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.request(fiber.MethodPost, "/api/principals/"+uuid.NewString()+"/approve", nil, ownerToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusWait(t *testing.T) {
	prevTimeout, prevInterval := gymgate.StatusWaitTimeout, gymgate.StatusWaitInterval
	gymgate.StatusWaitTimeout = 500 * time.Millisecond
	gymgate.StatusWaitInterval = 50 * time.Millisecond
	defer func() {
		gymgate.StatusWaitTimeout, gymgate.StatusWaitInterval = prevTimeout, prevInterval
	}()

	env := newTestEnv(t, false)
	ownerID, _ := env.signupOwner("owner@example.com")
	gym := env.createGym("Iron Temple", ownerID, true)

	resp, body := env.signup(memberPayload("max@example.com", gym.ID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	memberID := principalID(t, body)
	token := body["token"].(string)

	// nothing changes, the wait window closes
	resp, body = env.request(fiber.MethodGet, "/api/auth/status?current=pending", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["changed"])
	assert.Equal(t, "pending", body["status"])

	// approval lands while the request is being held open
	go func() {
		time.Sleep(100 * time.Millisecond)
		env.repo.Principals().UpdateStatus(context.Background(), memberID, gymgate.StatusActive)
	}()

	resp, body = env.request(fiber.MethodGet, "/api/auth/status?current=pending", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["changed"])
	assert.Equal(t, "active", body["status"])

	// client already knows a stale status, answer immediately
	resp, body = env.request(fiber.MethodGet, "/api/auth/status?current=pending", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["changed"])
}
