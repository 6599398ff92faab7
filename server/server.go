// Package server implements the central service of the lab suite. It
// keeps the inventory of lab machines in PostgreSQL, pulls their state
// from the agents, stores diagnostic reports and streams events.
package server

import (
	"errors"
	"fmt"
	"time"

	flags "github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"github.com/grimm00/networking-learning-sub003"
	dbops "github.com/grimm00/networking-learning-sub003/server/database"
	"github.com/grimm00/networking-learning-sub003/server/eventcenter"
	"github.com/grimm00/networking-learning-sub003/server/pullers"
	"github.com/grimm00/networking-learning-sub003/server/restservice"
	netlabutil "github.com/grimm00/networking-learning-sub003/util"
)

// Global server state.
type NetlabServer struct {
	DBSettings dbops.DatabaseSettings
	DB         *dbops.PgDB

	RestAPISettings restservice.RestAPISettings
	RestAPI         *restservice.RestAPI

	EventCenter eventcenter.EventCenter

	StatePuller *pullers.StatePuller
	Pruner      *pullers.RetentionPruner
}

// Global server settings (called application settings in go-flags
// nomenclature).
type Settings struct {
	Version             bool   `short:"v" long:"version" description:"show software version"`
	EnvFile             string `long:"env-file" description:"environment file with server settings" env:"NETLAB_SERVER_ENV_FILE" default:""`
	StatePullerInterval int    `long:"state-puller-interval" description:"interval of agent state pulling in seconds" env:"NETLAB_SERVER_STATE_PULLER_INTERVAL" default:"30"`
	RetentionDays       int    `long:"retention-days" description:"days to keep reports and events, 0 disables pruning" env:"NETLAB_SERVER_RETENTION_DAYS" default:"30"`
}

// Parse the command line arguments into Go structures. Returns done as
// true if the command is already handled (i.e. version or help) and no
// server should start.
func (ns *NetlabServer) ParseArgs() (done bool, interval, retention time.Duration, err error) {
	var serverSettings Settings
	parser := flags.NewParser(&serverSettings, flags.Default)
	parser.ShortDescription = "Netlab Server"
	parser.LongDescription = "Netlab Server keeps the inventory of networking lab machines"

	if _, err = parser.AddGroup("Database Connection Flags", "", &ns.DBSettings); err != nil {
		return
	}
	if _, err = parser.AddGroup("ReST Server Flags", "", &ns.RestAPISettings); err != nil {
		return
	}

	if _, err = parser.Parse(); err != nil {
		var flagsError *flags.Error
		if errors.As(err, &flagsError) && flagsError.Type == flags.ErrHelp {
			return true, 0, 0, nil
		}
		return false, 0, 0, err
	}

	if serverSettings.EnvFile != "" {
		if err = netlabutil.LoadEnvironmentFileToProcess(serverSettings.EnvFile); err != nil {
			return false, 0, 0, err
		}
	}

	if serverSettings.Version {
		fmt.Printf("%s\n", netlab.Version)
		return true, 0, 0, nil
	}
	interval = time.Duration(serverSettings.StatePullerInterval) * time.Second
	retention = time.Duration(serverSettings.RetentionDays) * 24 * time.Hour
	return false, interval, retention, nil
}

// Init for the server state: parses args, connects to the database and
// wires the subsystems together.
func NewNetlabServer() (*NetlabServer, error) {
	ns := &NetlabServer{}
	done, pullerInterval, retention, err := ns.ParseArgs()
	if err != nil {
		return nil, err
	}
	if done {
		return nil, nil
	}

	ns.DB, err = dbops.NewPgDB(&ns.DBSettings)
	if err != nil {
		return nil, err
	}

	ns.EventCenter = eventcenter.NewEventCenter(ns.DB)

	store := restservice.NewDatabaseStore(ns.DB)
	ns.RestAPI = restservice.NewRestAPI(&ns.RestAPISettings, store, ns.EventCenter)

	ns.StatePuller = pullers.NewStatePuller(store, ns.EventCenter, pullerInterval)
	if retention > 0 {
		ns.Pruner = pullers.NewRetentionPruner(store, retention)
	}
	return ns, nil
}

// Serve blocks, serving the REST API.
func (ns *NetlabServer) Serve() error {
	log.Printf("Netlab Server %s started", netlab.Version)
	return ns.RestAPI.Serve()
}

// Shutdown the server subsystems in reverse start order.
func (ns *NetlabServer) Shutdown() {
	log.Println("Shutting down Netlab Server")
	if ns.Pruner != nil {
		ns.Pruner.Shutdown()
	}
	ns.StatePuller.Shutdown()
	ns.RestAPI.Shutdown()
	ns.EventCenter.Shutdown()
	if ns.DB != nil {
		ns.DB.Close()
	}
	log.Println("Netlab Server shut down")
}
