package store

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"gitlab.com/dirk.krummacker/location-contacts/internal/store/migrations"
)

const (
	dialectMySQL    = "mysql"
	dialectPostgres = "postgres"
)

func dialectFor(driverName string) string {
	switch driverName {
	case "pgx", "postgres":
		return dialectPostgres
	default:
		return dialectMySQL
	}
}

// applyMigrations is a seam for testing; it runs all pending migrations in fsys.
var applyMigrations = func(ctx context.Context, dialect string, db *sql.DB, fsys fs.FS) error {
	gooseDialect := goose.DialectMySQL
	if dialect == dialectPostgres {
		gooseDialect = goose.DialectPostgres
	}
	provider, err := goose.NewProvider(gooseDialect, db, fsys)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

// InitializeSchema makes sure the contacts table and its indexes exist. It is idempotent:
// migrations that were applied before are skipped.
func (s *ContactStore) InitializeSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	fsys, err := fs.Sub(migrations.FS, s.dialect)
	if err != nil {
		return errors.Wrap(err, "open migrations")
	}
	if err := applyMigrations(ctx, s.dialect, s.rawDB(), fsys); err != nil {
		return errors.Wrapf(err, "apply %s migrations", s.dialect)
	}
	return nil
}
