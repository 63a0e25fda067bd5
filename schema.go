package gymgate

import (
	"context"

	"github.com/uptrace/bun"
)

// Email uniqueness is role aware: owners and trainers claim an address
// globally, members only within their gym. Each partial index rejects
// duplicates within its own scope. Cross-scope collisions (a member row
// against a staff row) fall outside any single index and are caught by
// the collision check inside the signup transaction.
var schemaIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_principals_email_staff
		ON principals (email)
		WHERE role IN ('gym_owner', 'trainer') AND deleted_at IS NULL;`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_principals_email_member_gym
		ON principals (email, gym_id)
		WHERE role = 'member' AND deleted_at IS NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_principals_gym
		ON principals (gym_id)
		WHERE deleted_at IS NULL;`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_gyms_slug
		ON gyms (slug)
		WHERE deleted_at IS NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_gyms_owner
		ON gyms (owner_id)
		WHERE deleted_at IS NULL;`,
}

// CreateSchema creates the principals and gyms tables along with their
// indexes. Safe to call on every boot.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*Gym)(nil),
		(*Principal)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	for _, ddl := range schemaIndexes {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}

	return nil
}
