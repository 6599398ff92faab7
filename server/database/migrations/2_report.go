package dbmigs

import (
	"github.com/go-pg/migrations/v8"
)

func init() {
	migrations.MustRegisterTx(func(db migrations.DB) error {
		_, err := db.Exec(
			`-- Diagnostic reports collected from the machines.
             CREATE TABLE public.report (
                 id         SERIAL PRIMARY KEY,
                 created    TIMESTAMP WITHOUT TIME ZONE NOT NULL DEFAULT (now() AT TIME ZONE 'utc'),
                 machine_id INTEGER NOT NULL REFERENCES machine (id) ON DELETE CASCADE,
                 kind       VARCHAR(63) NOT NULL,
                 content    JSONB NOT NULL
             );

             CREATE INDEX report_machine_id_idx ON public.report (machine_id);
             CREATE INDEX report_kind_idx ON public.report (kind);`)
		return err
	}, func(db migrations.DB) error {
		_, err := db.Exec(
			`DROP TABLE public.report;`)
		return err
	})
}
