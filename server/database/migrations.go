package dbops

import (
	"context"
	"strconv"

	"github.com/go-pg/migrations/v8"
	"github.com/go-pg/pg/v10"
	"github.com/pkg/errors"

	// Registers the schema migrations in the migration collection.
	_ "github.com/grimm00/networking-learning-sub003/server/database/migrations"
)

// Checks if the migrations table exists, i.e. the 'init' command was called.
func Initialized(db *PgDB) bool {
	var n int
	_, err := db.QueryOne(pg.Scan(&n), "SELECT count(*) FROM gopg_migrations")
	return err == nil
}

// Migrates the database version down to 0 and then removes the
// gopg_migrations table.
func Toss(db *PgDB) error {
	if db == nil {
		return errors.New("database is nil")
	}
	if !Initialized(db) {
		return nil
	}

	if _, _, err := Migrate(db, "reset"); err != nil {
		return err
	}

	return db.RunInTransaction(context.Background(), func(tx *pg.Tx) error {
		if _, err := tx.Exec("DROP TABLE IF EXISTS gopg_migrations"); err != nil {
			return errors.Wrap(err, "problem removing the migrations table")
		}
		_, err := tx.Exec("DROP SEQUENCE IF EXISTS gopg_migrations_id_seq")
		return errors.Wrap(err, "problem removing the migrations sequence")
	})
}

// Migrates the database. The args specify one of the migration
// operations supported by go-pg/migrations. Down migrations to a
// specific version run one step at a time because the framework only
// supports single step down migrations.
func Migrate(db *PgDB, args ...string) (oldVersion, newVersion int64, err error) {
	if len(args) > 0 && args[0] == "up" && !Initialized(db) {
		if oldVersion, newVersion, err = migrations.Run(db, "init"); err != nil {
			return oldVersion, newVersion, errors.Wrapf(err, "problem initiating database")
		}
	}

	if len(args) > 1 && args[0] == "down" {
		var oldVer int64
		if oldVer, _, err = migrations.Run(db, "version"); err != nil {
			return oldVer, oldVer, errors.Wrapf(err, "problem checking database version")
		}
		toVer, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return oldVer, oldVer, errors.Wrapf(err, "cannot parse %s as target database version", args[1])
		}
		if toVer >= oldVer {
			return oldVer, oldVer, errors.Errorf("cannot migrate down, current version %d, want %d", oldVer, toVer)
		}
		var newVer int64
		for i := oldVer; i > toVer; i-- {
			if _, newVer, err = migrations.Run(db, "down"); err != nil {
				return oldVer, newVer, errors.Wrapf(err, "problem migrating down")
			}
		}
		return oldVer, newVer, nil
	}

	oldVersion, newVersion, err = migrations.Run(db, args...)
	if err != nil {
		return oldVersion, newVersion, errors.Wrapf(err, "problem migrating database")
	}
	return oldVersion, newVersion, nil
}

// Migrates the database schema to the latest version.
func MigrateToLatest(db *PgDB) (oldVersion, newVersion int64, err error) {
	return Migrate(db, "up")
}

// Returns the current schema version.
func CurrentVersion(db *PgDB) (int64, error) {
	version, _, err := Migrate(db, "version")
	return version, err
}
