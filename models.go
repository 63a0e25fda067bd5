package gymgate

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role discriminates which kind of principal a record represents.
type Role string

const (
	// RoleGymOwner runs one or more gyms
	RoleGymOwner Role = "gym_owner"
	// RoleMember is registered at a single gym
	RoleMember Role = "member"
	// RoleTrainer works at a single gym
	RoleTrainer Role = "trainer"
)

// ParseRole validates a raw role value
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.TrimSpace(raw)) {
	case RoleGymOwner:
		return RoleGymOwner, true
	case RoleMember:
		return RoleMember, true
	case RoleTrainer:
		return RoleTrainer, true
	default:
		return "", false
	}
}

// IsValid checks the role is one of the three known values
func (r Role) IsValid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// RequiresGym reports whether principals of this role must reference a gym.
func (r Role) RequiresGym() bool {
	return r == RoleMember || r == RoleTrainer
}

// Status is the lifecycle state of a principal
type Status string

const (
	// StatusPending awaits gym owner approval
	StatusPending Status = "pending"
	// StatusActive has full access
	StatusActive Status = "active"
	// StatusSuspended was suspended by an owner/administrator
	StatusSuspended Status = "suspended"
	// StatusInactive was deactivated (e.g. lapsed membership)
	StatusInactive Status = "inactive"
)

// ParseStatus validates a raw status value
func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.TrimSpace(raw)) {
	case StatusPending:
		return StatusPending, true
	case StatusActive:
		return StatusActive, true
	case StatusSuspended:
		return StatusSuspended, true
	case StatusInactive:
		return StatusInactive, true
	default:
		return "", false
	}
}

// IsValid checks the status is one of the known lifecycle values
func (s Status) IsValid() bool {
	_, ok := ParseStatus(string(s))
	return ok
}

// MembershipState tracks a member's plan, independent from account status.
type MembershipState = string

const (
	MembershipNone    MembershipState = "none"
	MembershipTrial   MembershipState = "trial"
	MembershipCurrent MembershipState = "current"
	MembershipLapsed  MembershipState = "lapsed"
)

// Principal is the shared account record for gym owners, members and
// trainers. Role selects which of the optional payload columns apply:
// BusinessName for owners, GymID (+MembershipState for members) otherwise.
type Principal struct {
	bun.BaseModel `bun:"table:principals,alias:p"`

	ID           uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role         Role      `bun:"role,notnull" json:"role,omitempty"`
	Email        string    `bun:"email,notnull" json:"email,omitempty"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	Status       Status    `bun:"status,notnull" json:"status,omitempty"`

	FirstName string `bun:"first_name" json:"first_name,omitempty"`
	LastName  string `bun:"last_name" json:"last_name,omitempty"`
	Phone     string `bun:"phone_number" json:"phone_number,omitempty"`

	// gym owner payload
	BusinessName string `bun:"business_name" json:"business_name,omitempty"`
	OwnedGyms    []*Gym `bun:"rel:has-many,join:id=owner_id" json:"owned_gyms,omitempty"`

	// member/trainer payload
	GymID           *uuid.UUID      `bun:"gym_id,nullzero,type:uuid" json:"gym_id,omitempty"`
	Gym             *Gym            `bun:"rel:belongs-to,join:gym_id=id" json:"gym,omitempty"`
	MembershipState MembershipState `bun:"membership_state" json:"membership_state,omitempty"`

	LoginAttempts  int        `bun:"login_attempts" json:"-"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"-"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	SuspendedAt    *time.Time `bun:"suspended_at,nullzero" json:"suspended_at,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureStatus fills in the creation default
func (p *Principal) EnsureStatus() {
	if p.Status == "" {
		p.Status = StatusPending
	}
}

// IsActive reports whether the principal has full access
func (p *Principal) IsActive() bool {
	return p.Status == StatusActive
}

// IsSuspended reports whether the principal is suspended
func (p *Principal) IsSuspended() bool {
	return p.Status == StatusSuspended
}

// Identity projects the principal into the token-facing identity view.
func (p *Principal) Identity() Identity {
	p.EnsureStatus()
	return principalIdentity{
		id:     p.ID.String(),
		email:  p.Email,
		role:   p.Role,
		status: p.Status,
	}
}

// Gym is a tenant. Slug is derived from the name and unique among
// non-deleted gyms; the id is derived deterministically from the slug.
type Gym struct {
	bun.BaseModel `bun:"table:gyms,alias:gym"`

	ID      uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name    string     `bun:"name,notnull" json:"name,omitempty"`
	Slug    string     `bun:"slug,notnull" json:"slug,omitempty"`
	OwnerID uuid.UUID  `bun:"owner_id,nullzero,type:uuid" json:"owner_id,omitempty"`
	Owner   *Principal `bun:"rel:belongs-to,join:owner_id=id" json:"owner,omitempty"`
	Address string     `bun:"address" json:"address,omitempty"`

	IsAcceptingRegistrations bool `bun:"is_accepting_registrations" json:"is_accepting_registrations"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Identity is the token-facing view of a principal
type Identity interface {
	ID() string
	Email() string
	Role() Role
	Status() Status
}

type principalIdentity struct {
	id     string
	email  string
	role   Role
	status Status
}

func (i principalIdentity) ID() string     { return i.id }
func (i principalIdentity) Email() string  { return i.email }
func (i principalIdentity) Role() Role     { return i.role }
func (i principalIdentity) Status() Status { return i.status }

var _ Identity = principalIdentity{}
