package gymgate

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Principals() Principals
	Gyms() Gyms
}

type mngr struct {
	db         *bun.DB
	principals Principals
	gyms       Gyms
}

func NewRepositoryManager(db *bun.DB, opts ...PrincipalsOption) RepositoryManager {
	return &mngr{
		db:         db,
		principals: NewPrincipalsRepository(db, opts...),
		gyms:       NewGymsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.principals == nil {
		return errors.New("repository principals should be initialized")
	}

	if m.gyms == nil {
		return errors.New("repository gyms should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Principals() Principals {
	return m.principals
}

func (m mngr) Gyms() Gyms {
	return m.gyms
}
