package dbops

import (
	"context"
	"time"

	"github.com/go-pg/pg/v10"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type dbLogger struct{}

// Hook run before SQL query execution.
func (d dbLogger) BeforeQuery(c context.Context, q *pg.QueryEvent) (context.Context, error) {
	query, err := q.FormattedQuery()
	if err != nil {
		return c, err
	}
	log.Println(string(query))
	return c, nil
}

// Hook run after SQL query execution.
func (d dbLogger) AfterQuery(c context.Context, q *pg.QueryEvent) error {
	return nil
}

// Creates a bare database connection and verifies it. The connection
// attempt is retried for a while because the database container may
// still be starting when the server comes up.
func NewPgDBConn(pgParams *PgOptions) (*PgDB, error) {
	db := pg.Connect(pgParams)

	var err error
	for tries := 0; tries < 10; tries++ {
		var n int
		_, err = db.QueryOne(pg.Scan(&n), "SELECT 1")
		if err == nil {
			break
		}
		log.Printf("Waiting for the database to become available: %s", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to connect to the database using provided credentials")
	}
	return db, nil
}

// Creates a database connection and migrates the schema to the latest
// version if necessary.
func NewPgDB(settings *DatabaseSettings) (*PgDB, error) {
	Password(settings)

	db, err := NewPgDBConn(settings.PgParams())
	if err != nil {
		return nil, err
	}

	oldVer, newVer, err := MigrateToLatest(db)
	if err != nil {
		return nil, err
	}
	if oldVer != newVer {
		log.WithFields(log.Fields{
			"old-version": oldVer,
			"new-version": newVer,
		}).Info("Successfully migrated database schema")
	}

	if settings.TraceSQL {
		db.AddQueryHook(dbLogger{})
	}

	log.Infof("Connected to database %s:%d, schema version %d", settings.Host, settings.Port, newVer)
	return db, nil
}
