package gymgate

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CreateGymMessage registers a gym under an owner account.
type CreateGymMessage struct {
	Name                     string    `json:"name"`
	Address                  string    `json:"address"`
	OwnerID                  uuid.UUID `json:"owner_id"`
	IsAcceptingRegistrations *bool     `json:"is_accepting_registrations"`
}

func (e CreateGymMessage) Type() string { return "gym.create" }

type CreateGymHandler struct {
	repo RepositoryManager
}

func NewCreateGymHandler(repo RepositoryManager) *CreateGymHandler {
	return &CreateGymHandler{repo: repo}
}

func (h *CreateGymHandler) Execute(ctx context.Context, event CreateGymMessage) (*Gym, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during gym creation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateGymHandler) execute(ctx context.Context, event CreateGymMessage) (*Gym, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	owner, err := h.repo.Principals().GetByIDAndRole(ctx, event.OwnerID, RoleGymOwner)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrPrincipalNotFound.WithMetadata(map[string]any{
				"owner_id": event.OwnerID.String(),
			})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load owner during gym creation")
	}

	gym := &Gym{
		Name:                     event.Name,
		Address:                  event.Address,
		OwnerID:                  owner.ID,
		IsAcceptingRegistrations: true,
	}

	if event.IsAcceptingRegistrations != nil {
		gym.IsAcceptingRegistrations = *event.IsAcceptingRegistrations
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := h.repo.Gyms().RegisterTx(ctx, tx, gym)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create gym")
		}
		gym = created
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "gym creation transaction failed")
	}

	return gym, nil
}
