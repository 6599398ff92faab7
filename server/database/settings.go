package dbops

import (
	"fmt"
	"os"

	"github.com/go-pg/pg/v10"
	"github.com/go-pg/pg/v10/orm"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Database connection settings filled from the command line and the
// environment.
type DatabaseSettings struct {
	DBName   string `short:"d" long:"db-name" description:"the name of the database to connect to" env:"NETLAB_DATABASE_NAME" default:"netlab"`
	User     string `short:"u" long:"db-user" description:"the user name to be used for database connections" env:"NETLAB_DATABASE_USER_NAME" default:"netlab"`
	Password string `description:"the database password to be used for database connections" env:"NETLAB_DATABASE_PASSWORD"`
	Host     string `long:"db-host" description:"the name of the host where database is available" env:"NETLAB_DATABASE_HOST" default:"localhost"`
	Port     int    `short:"p" long:"db-port" description:"the port on which the database is available" env:"NETLAB_DATABASE_PORT" default:"5432"`
	TraceSQL bool   `long:"db-trace-queries" description:"enable tracing SQL queries" env:"NETLAB_DATABASE_TRACE"`
}

// Alias to pg.DB.
type PgDB = pg.DB

// Alias to pg.Options.
type PgOptions = pg.Options

// Enables singular SQL table names for go-pg ORM.
func init() {
	orm.SetTableNameInflector(func(s string) string {
		return s
	})
}

// Converts the connection settings to go-pg options.
func (settings *DatabaseSettings) PgParams() *PgOptions {
	pgopts := &PgOptions{
		Database: settings.DBName,
		User:     settings.User,
		Password: settings.Password,
	}
	pgopts.Addr = fmt.Sprintf("%s:%d", settings.Host, settings.Port)
	return pgopts
}

// Fetches the database password from the environment variable or
// prompts the user for it.
func Password(settings *DatabaseSettings) {
	if settings.Password != "" {
		return
	}
	settings.Password = os.Getenv("NETLAB_DATABASE_PASSWORD")
	if settings.Password == "" {
		fmt.Printf("database password: ")
		pass, err := term.ReadPassword(0)
		fmt.Print("\n")
		if err != nil {
			log.Fatal(err.Error())
		}
		settings.Password = string(pass)
	}
}
