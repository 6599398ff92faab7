package dbmigs

import (
	"github.com/go-pg/migrations/v8"
)

func init() {
	migrations.MustRegisterTx(func(db migrations.DB) error {
		_, err := db.Exec(
			`-- Lab machines running the agent.
             CREATE TABLE public.machine (
                 id            SERIAL PRIMARY KEY,
                 created       TIMESTAMP WITHOUT TIME ZONE NOT NULL DEFAULT (now() AT TIME ZONE 'utc'),
                 address       VARCHAR(255) NOT NULL,
                 agent_port    INTEGER NOT NULL DEFAULT 8888,
                 agent_version VARCHAR(31),
                 state         JSONB,
                 last_visited  TIMESTAMP WITHOUT TIME ZONE,
                 error         TEXT,
                 UNIQUE (address, agent_port)
             );`)
		return err
	}, func(db migrations.DB) error {
		_, err := db.Exec(
			`DROP TABLE public.machine;`)
		return err
	})
}
