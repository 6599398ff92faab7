// Package agent implements the host-side daemon of the lab suite. It
// watches the services a lab host runs, serves diagnostics over a REST
// API, exports metrics to Prometheus and registers the host in the
// central server.
package agent

import (
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/grimm00/networking-learning-sub003"
)

// Global agent state.
type NetlabAgent struct {
	Settings *cli.Context
	Monitor  ServiceMonitor

	RestAPI     *RestAPI
	Exporter    *PromExporter
	Registrator *Registrator

	machineID int64
	pinger    *time.Ticker
	pingQuit  chan bool
}

// Interval of keepalive pings to the server.
const pingInterval = time.Minute

// Creates the agent from command line settings.
func NewNetlabAgent(settings *cli.Context, monitor ServiceMonitor) *NetlabAgent {
	na := &NetlabAgent{
		Settings: settings,
		Monitor:  monitor,
		pingQuit: make(chan bool),
	}

	restAddress := net.JoinHostPort(settings.String("host"), fmt.Sprint(settings.Int("port")))
	na.RestAPI = NewRestAPI(restAddress, monitor)

	exporterAddress := net.JoinHostPort(settings.String("host"), fmt.Sprint(settings.Int("prometheus-port")))
	interval := time.Duration(settings.Int("prometheus-interval")) * time.Second
	na.Exporter = NewPromExporter(exporterAddress, interval, monitor)

	if serverURL := settings.String("server-url"); serverURL != "" {
		na.Registrator = NewRegistrator(serverURL)
	}
	return na
}

// Starts all agent subsystems. Registration retries in the background
// until the server is reachable.
func (na *NetlabAgent) Serve() error {
	na.RestAPI.Start()
	na.Exporter.Start()

	if na.Registrator != nil {
		go na.registerAndPing()
	}
	return nil
}

func (na *NetlabAgent) registerAndPing() {
	address := na.Settings.String("host")
	machineID, err := na.Registrator.Register(address, na.Settings.Int("port"), netlab.Version, true)
	if err != nil {
		log.Errorf("Registration failed: %s", err)
		return
	}
	na.machineID = machineID

	na.pinger = time.NewTicker(pingInterval)
	for {
		select {
		case <-na.pinger.C:
			if err := na.Registrator.Ping(na.machineID); err != nil {
				log.Warnf("Keepalive ping failed: %s", err)
			}
		case <-na.pingQuit:
			return
		}
	}
}

// Stops the agent subsystems in reverse start order.
func (na *NetlabAgent) Shutdown() {
	if na.pinger != nil {
		na.pinger.Stop()
		na.pingQuit <- true
	}
	na.Exporter.Shutdown()
	na.RestAPI.Shutdown()
	na.Monitor.Shutdown()
}
