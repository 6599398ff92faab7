package dbmigs

import (
	"github.com/go-pg/migrations/v8"
)

func init() {
	migrations.MustRegisterTx(func(db migrations.DB) error {
		_, err := db.Exec(
			`-- Events presented in the event stream.
             CREATE TABLE public.event (
                 id         SERIAL PRIMARY KEY,
                 created    TIMESTAMP WITHOUT TIME ZONE NOT NULL DEFAULT (now() AT TIME ZONE 'utc'),
                 level      INTEGER NOT NULL DEFAULT 0,
                 text       TEXT NOT NULL,
                 details    JSONB,
                 machine_id INTEGER REFERENCES machine (id) ON DELETE CASCADE
             );

             CREATE INDEX event_machine_id_idx ON public.event (machine_id);`)
		return err
	}, func(db migrations.DB) error {
		_, err := db.Exec(
			`DROP TABLE public.event;`)
		return err
	})
}
