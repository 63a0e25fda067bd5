package gymgate

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Gyms is the registry of gyms members and trainers attach to.
type Gyms interface {
	repository.Repository[*Gym]

	Register(ctx context.Context, gym *Gym) (*Gym, error)
	RegisterTx(ctx context.Context, tx bun.IDB, gym *Gym) (*Gym, error)

	GetByRecordID(ctx context.Context, id uuid.UUID) (*Gym, error)
	GetByRecordIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Gym, error)
	GetBySlug(ctx context.Context, slug string) (*Gym, error)

	ListOpen(ctx context.Context) ([]*Gym, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Gym, error)

	SetAcceptingRegistrations(ctx context.Context, id uuid.UUID, accepting bool) (*Gym, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type gyms struct {
	repository.Repository[*Gym]
	db *bun.DB
}

var (
	_ Gyms                        = (*gyms)(nil)
	_ repository.Repository[*Gym] = (*gyms)(nil)
)

func NewGymsRepository(db *bun.DB) Gyms {
	repo := repository.NewRepository[*Gym](db, repository.ModelHandlers[*Gym]{
		NewRecord: func() *Gym { return &Gym{} },
		GetID: func(g *Gym) uuid.UUID {
			if g == nil {
				return uuid.Nil
			}
			return g.ID
		},
		SetID: func(g *Gym, id uuid.UUID) {
			if g != nil {
				g.ID = id
			}
		},
	})

	return &gyms{
		Repository: repo,
		db:         db,
	}
}

func (a *gyms) Register(ctx context.Context, gym *Gym) (*Gym, error) {
	return a.RegisterTx(ctx, a.db, gym)
}

func (a *gyms) RegisterTx(ctx context.Context, tx bun.IDB, gym *Gym) (*Gym, error) {
	prepareGymDefaults(gym)

	existing, err := a.getBySlugTx(ctx, tx, gym.Slug)
	if err == nil && existing != nil {
		return nil, ErrSlugTaken.WithMetadata(map[string]any{
			"slug": gym.Slug,
		})
	}
	if err != nil && !repository.IsRecordNotFound(err) {
		return nil, err
	}

	return a.Repository.CreateTx(ctx, tx, gym)
}

// GetByRecordID looks a gym up by primary key. The embedded generic
// repository exposes a string-keyed GetByID already, so the uuid variant
// carries its own name.
func (a *gyms) GetByRecordID(ctx context.Context, id uuid.UUID) (*Gym, error) {
	return a.GetByRecordIDTx(ctx, a.db, id)
}

func (a *gyms) GetByRecordIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Gym, error) {
	record := &Gym{}
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

func (a *gyms) GetBySlug(ctx context.Context, slug string) (*Gym, error) {
	return a.getBySlugTx(ctx, a.db, slug)
}

func (a *gyms) getBySlugTx(ctx context.Context, tx bun.IDB, slug string) (*Gym, error) {
	record := &Gym{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.slug = ?", slug).
		Where("?TableAlias.deleted_at IS NULL").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"slug": slug,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *gyms) ListOpen(ctx context.Context) ([]*Gym, error) {
	records := []*Gym{}
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.is_accepting_registrations = ?", true).
		Where("?TableAlias.deleted_at IS NULL").
		Order("name ASC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *gyms) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Gym, error) {
	records := []*Gym{}
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_id = ?", ownerID).
		Where("?TableAlias.deleted_at IS NULL").
		Order("created_at ASC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *gyms) SetAcceptingRegistrations(ctx context.Context, id uuid.UUID, accepting bool) (*Gym, error) {
	now := time.Now()
	record := &Gym{
		ID:                       id,
		IsAcceptingRegistrations: accepting,
		UpdatedAt:                &now,
	}

	// Only the toggle and the bookkeeping column change; a sparse record
	// must not blank the rest of the row.
	if _, err := a.db.NewUpdate().
		Model(record).
		Column("is_accepting_registrations", "updated_at").
		WherePK().
		Exec(ctx); err != nil {
		return nil, err
	}

	return a.GetByRecordID(ctx, id)
}

func (a *gyms) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.NewDelete().
		Model((*Gym)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	return err
}

var slugScrubber = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify normalizes a gym name into its URL identifier.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugScrubber.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

func prepareGymDefaults(record *Gym) {
	if record == nil {
		return
	}

	if record.Slug == "" {
		record.Slug = Slugify(record.Name)
	}

	// Gym ids are derived from the slug so re-registering the same gym
	// name is idempotent across environments.
	if record.ID == uuid.Nil {
		if id, err := hashid.NewUUID(record.Slug); err == nil {
			record.ID = id
		} else {
			record.ID = uuid.New()
		}
	}
}
