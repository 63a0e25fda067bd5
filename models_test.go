package gymgate_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/gymstack/gymgate"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		raw  string
		want gymgate.Role
		ok   bool
	}{
		{"gym_owner", gymgate.RoleGymOwner, true},
		{"member", gymgate.RoleMember, true},
		{"trainer", gymgate.RoleTrainer, true},
		{"  trainer  ", gymgate.RoleTrainer, true},
		{"admin", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := gymgate.ParseRole(tt.raw)
		assert.Equal(t, tt.ok, ok, "raw=%q", tt.raw)
		assert.Equal(t, tt.want, got, "raw=%q", tt.raw)
	}
}

func TestRoleRequiresGym(t *testing.T) {
	assert.False(t, gymgate.RoleGymOwner.RequiresGym())
	assert.True(t, gymgate.RoleMember.RequiresGym())
	assert.True(t, gymgate.RoleTrainer.RequiresGym())
}

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"pending", "active", "suspended", "inactive"} {
		status, ok := gymgate.ParseStatus(valid)
		assert.True(t, ok)
		assert.Equal(t, gymgate.Status(valid), status)
	}

	_, ok := gymgate.ParseStatus("banned")
	assert.False(t, ok)
}

func TestPrincipalEnsureStatus(t *testing.T) {
	p := &gymgate.Principal{}
	p.EnsureStatus()
	assert.Equal(t, gymgate.StatusPending, p.Status)

	p.Status = gymgate.StatusActive
	p.EnsureStatus()
	assert.Equal(t, gymgate.StatusActive, p.Status)
	assert.True(t, p.IsActive())
	assert.False(t, p.IsSuspended())
}

func TestPrincipalIdentity(t *testing.T) {
	id := uuid.New()
	p := &gymgate.Principal{
		ID:    id,
		Email: "owner@example.com",
		Role:  gymgate.RoleGymOwner,
	}

	identity := p.Identity()
	assert.Equal(t, id.String(), identity.ID())
	assert.Equal(t, "owner@example.com", identity.Email())
	assert.Equal(t, gymgate.RoleGymOwner, identity.Role())
	assert.Equal(t, gymgate.StatusPending, identity.Status())
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Iron Temple", "iron-temple"},
		{"  Gold's Gym  ", "gold-s-gym"},
		{"24/7 Fitness", "24-7-fitness"},
		{"CrossFit!!", "crossfit"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, gymgate.Slugify(tt.name), "name=%q", tt.name)
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", gymgate.NormalizeEmail("  User@Example.COM  "))
}
