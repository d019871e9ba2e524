// Package migrations applies ordered, idempotent backend bootstrap
// steps (schema/keyspace creation) ahead of serving traffic, adapted
// from the teacher's own migrations package: a named, ordered list of
// Migration values run sequentially by a Migrator, logged as they go.
// Unlike the teacher, which tracks applied migrations per-database so a
// later run can skip ones already applied, every migration here is
// itself idempotent (CREATE TABLE IF NOT EXISTS, CREATE KEYSPACE IF NOT
// EXISTS) — there is no schema-evolution history to replay, only a
// storage backend to make ready, so the applied-migrations ledger the
// teacher keeps has no counterpart here: re-running a Migrator is
// always a safe no-op.
package migrations

import (
	"context"
	"fmt"

	"github.com/wuttem/gotsdb/log"
)

// Migration is one named, idempotent setup step.
type Migration struct {
	Name string
	Up   func(ctx context.Context) error
}

// Migrator runs a fixed, ordered list of migrations.
type Migrator struct {
	Migrations []Migration
}

// NewMigrator builds a Migrator over steps, in the order given.
func NewMigrator(steps ...Migration) *Migrator {
	return &Migrator{Migrations: steps}
}

// Apply runs every migration in order, stopping at the first error.
func (m *Migrator) Apply(ctx context.Context) error {
	for _, mig := range m.Migrations {
		log.Info("applying migration", "name", mig.Name)
		if err := mig.Up(ctx); err != nil {
			return fmt.Errorf("migrations: %s: %w", mig.Name, err)
		}
		log.Info("applied migration", "name", mig.Name)
	}
	return nil
}
