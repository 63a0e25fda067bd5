package gymgate

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Principals is the credential store. It owns every account record
// regardless of role; the Role column discriminates owners, trainers, and
// members sharing the same table.
type Principals interface {
	repository.Repository[*Principal]

	Register(ctx context.Context, p *Principal) (*Principal, error)
	RegisterTx(ctx context.Context, tx bun.IDB, p *Principal) (*Principal, error)

	GetByEmail(ctx context.Context, email string) (*Principal, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Principal, error)
	GetByEmailAndRole(ctx context.Context, email string, role Role) (*Principal, error)
	GetByRecordID(ctx context.Context, id uuid.UUID) (*Principal, error)
	GetByIDAndRole(ctx context.Context, id uuid.UUID, role Role) (*Principal, error)

	FindCollision(ctx context.Context, role Role, email string, gymID *uuid.UUID) (*Principal, error)
	FindCollisionTx(ctx context.Context, tx bun.IDB, role Role, email string, gymID *uuid.UUID) (*Principal, error)

	TrackAttemptedLogin(ctx context.Context, p *Principal) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, p *Principal) error
	TrackSuccessfulLogin(ctx context.Context, p *Principal) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, p *Principal) error

	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, opts ...StatusUpdateOption) (*Principal, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status Status, opts ...StatusUpdateOption) (*Principal, error)

	Approve(ctx context.Context, actor ActorRef, p *Principal, opts ...TransitionOption) (*Principal, error)
	Suspend(ctx context.Context, actor ActorRef, p *Principal, opts ...TransitionOption) (*Principal, error)
	Reinstate(ctx context.Context, actor ActorRef, p *Principal, opts ...TransitionOption) (*Principal, error)
	Deactivate(ctx context.Context, actor ActorRef, p *Principal, opts ...TransitionOption) (*Principal, error)

	ListByGym(ctx context.Context, gymID uuid.UUID, roles ...Role) ([]*Principal, error)
}

type principals struct {
	repository.Repository[*Principal]
	db                  *bun.DB
	stateMachine        PrincipalStateMachine
	stateMachineOptions []StateMachineOption
}

var (
	_ Principals                        = (*principals)(nil)
	_ repository.Repository[*Principal] = (*principals)(nil)
)

type PrincipalsOption func(*principals)

func NewPrincipalsRepository(db *bun.DB, opts ...PrincipalsOption) Principals {
	repo := repository.NewRepository[*Principal](db, repository.ModelHandlers[*Principal]{
		NewRecord: func() *Principal { return &Principal{} },
		GetID: func(p *Principal) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Principal, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})

	repoPrincipals := &principals{
		Repository: repo,
		db:         db,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoPrincipals)
		}
	}

	return repoPrincipals
}

func WithPrincipalsStateMachineOptions(options ...StateMachineOption) PrincipalsOption {
	return func(p *principals) {
		if len(options) == 0 {
			return
		}
		p.stateMachineOptions = append(p.stateMachineOptions, options...)
		p.stateMachine = nil
	}
}

func WithPrincipalsStateMachine(sm PrincipalStateMachine) PrincipalsOption {
	return func(p *principals) {
		p.stateMachine = sm
	}
}

func (a *principals) Register(ctx context.Context, p *Principal) (*Principal, error) {
	return a.RegisterTx(ctx, a.db, p)
}

func (a *principals) RegisterTx(ctx context.Context, tx bun.IDB, p *Principal) (*Principal, error) {
	return a.CreateTx(ctx, tx, p)
}

func (a *principals) Create(ctx context.Context, record *Principal, criteria ...repository.InsertCriteria) (*Principal, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *principals) CreateTx(ctx context.Context, tx bun.IDB, record *Principal, criteria ...repository.InsertCriteria) (*Principal, error) {
	preparePrincipalDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

// GetByEmail returns the oldest live record for the given email. Member
// emails are only unique per gym, so the same address can resolve to several
// rows; the earliest registration wins for credential checks.
func (a *principals) GetByEmail(ctx context.Context, email string) (*Principal, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *principals) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Principal, error) {
	record := &Principal{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Where("?TableAlias.deleted_at IS NULL").
		Order("created_at ASC").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": email,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *principals) GetByEmailAndRole(ctx context.Context, email string, role Role) (*Principal, error) {
	record := &Principal{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Where("?TableAlias.role = ?", role).
		Where("?TableAlias.deleted_at IS NULL").
		Order("created_at ASC").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": email,
					"role":  role,
				})
		}
		return nil, err
	}

	return record, nil
}

// GetByRecordID looks a principal up by primary key. The embedded generic
// repository already exposes a string-keyed GetByID, so the uuid variant
// carries its own name.
func (a *principals) GetByRecordID(ctx context.Context, id uuid.UUID) (*Principal, error) {
	return a.getByRecordIDTx(ctx, a.db, id)
}

func (a *principals) getByRecordIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Principal, error) {
	record := &Principal{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.deleted_at IS NULL").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *principals) GetByIDAndRole(ctx context.Context, id uuid.UUID, role Role) (*Principal, error) {
	record := &Principal{}
	q := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.role = ?", role).
		Where("?TableAlias.deleted_at IS NULL").
		Limit(1)

	switch role {
	case RoleGymOwner:
		q.Relation("OwnedGyms")
	case RoleMember, RoleTrainer:
		q.Relation("Gym")
	}

	if err := q.Scan(ctx); err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id":   id.String(),
					"role": role,
				})
		}
		return nil, err
	}

	return record, nil
}

// FindCollision returns the existing record that blocks a signup for the
// given role/email pair, or a not-found error when the email is free.
//
// Owners and trainers claim an email globally. Members collide with any
// owner or trainer holding the email, and with another member of the same
// gym; the same member email at a different gym is fine.
func (a *principals) FindCollision(ctx context.Context, role Role, email string, gymID *uuid.UUID) (*Principal, error) {
	return a.FindCollisionTx(ctx, a.db, role, email, gymID)
}

func (a *principals) FindCollisionTx(ctx context.Context, tx bun.IDB, role Role, email string, gymID *uuid.UUID) (*Principal, error) {
	record := &Principal{}
	q := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Where("?TableAlias.deleted_at IS NULL")

	if role == RoleMember {
		if gymID == nil {
			return nil, fmt.Errorf("member collision check requires a gym id")
		}
		q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.role IN (?)", bun.In([]Role{RoleGymOwner, RoleTrainer})).
				WhereOr("(?TableAlias.role = ? AND ?TableAlias.gym_id = ?)", RoleMember, *gymID)
		})
	}

	err := q.Order("created_at ASC").Limit(1).Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": email,
					"role":  role,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *principals) TrackSuccessfulLogin(ctx context.Context, p *Principal) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, p)
}

func (a *principals) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, p *Principal) error {
	// NOTE: Updating using the ORM fails due to a bug, it wont reset
	// login_attempt_at, login_attempts fields.
	loggedInAt := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "principals" AS "p"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("p".id = ?)
			AND "p"."deleted_at" IS NULL;
	`, loggedInAt, p.ID).Exec(ctx)

	return err
}

func (a *principals) TrackAttemptedLogin(ctx context.Context, p *Principal) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, p)
}

func (a *principals) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, p *Principal) error {
	record := &Principal{}
	record.ID = p.ID
	record.LoginAttempts = p.LoginAttempts + 1
	now := time.Now()
	record.LoginAttemptAt = &now

	// The record is sparse; constrain the SET clause so the untouched
	// columns keep their stored values.
	_, err := tx.NewUpdate().
		Model(record).
		Column("login_attempts", "login_attempt_at").
		WherePK().
		Exec(ctx)

	return err
}

func (a *principals) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, opts ...StatusUpdateOption) (*Principal, error) {
	return a.UpdateStatusTx(ctx, a.db, id, status, opts...)
}

func (a *principals) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status Status, opts ...StatusUpdateOption) (*Principal, error) {
	record := &Principal{
		ID:     id,
		Status: status,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(record)
		}
	}

	now := time.Now()
	record.UpdatedAt = &now

	// Status transitions own the suspension timestamp. Everything else on
	// the row must survive the update untouched.
	if _, err := tx.NewUpdate().
		Model(record).
		Column("status", "suspended_at", "updated_at").
		WherePK().
		Exec(ctx); err != nil {
		return nil, err
	}

	return a.getByRecordIDTx(ctx, tx, id)
}

func (a *principals) Approve(ctx context.Context, actor ActorRef, p *Principal, opts ...TransitionOption) (*Principal, error) {
	return a.lifecycleMachine().Transition(ctx, actor, p, StatusActive, opts...)
}

func (a *principals) Suspend(ctx context.Context, actor ActorRef, p *Principal, opts ...TransitionOption) (*Principal, error) {
	return a.lifecycleMachine().Transition(ctx, actor, p, StatusSuspended, opts...)
}

func (a *principals) Reinstate(ctx context.Context, actor ActorRef, p *Principal, opts ...TransitionOption) (*Principal, error) {
	return a.lifecycleMachine().Transition(ctx, actor, p, StatusActive, opts...)
}

func (a *principals) Deactivate(ctx context.Context, actor ActorRef, p *Principal, opts ...TransitionOption) (*Principal, error) {
	return a.lifecycleMachine().Transition(ctx, actor, p, StatusInactive, opts...)
}

func (a *principals) ListByGym(ctx context.Context, gymID uuid.UUID, roles ...Role) ([]*Principal, error) {
	records := []*Principal{}
	q := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.gym_id = ?", gymID).
		Where("?TableAlias.deleted_at IS NULL").
		Order("created_at ASC")

	if len(roles) > 0 {
		q.Where("?TableAlias.role IN (?)", bun.In(roles))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	return records, nil
}

// StatusUpdateOption allows callers to mutate the record before persisting status changes.
type StatusUpdateOption func(*Principal)

// WithSuspendedAt sets the SuspendedAt timestamp during a status transition.
func WithSuspendedAt(at *time.Time) StatusUpdateOption {
	return func(p *Principal) {
		p.SuspendedAt = at
	}
}

func preparePrincipalDefaults(record *Principal) {
	if record == nil {
		return
	}

	record.Email = NormalizeEmail(record.Email)
	record.EnsureStatus()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func (a *principals) lifecycleMachine() PrincipalStateMachine {
	if a.stateMachine == nil {
		a.stateMachine = NewPrincipalStateMachine(a, a.stateMachineOptions...)
	}
	return a.stateMachine
}
