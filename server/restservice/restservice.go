// Package restservice implements the server's REST API: machine
// registration and inventory, diagnostic reports and the event stream.
package restservice

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	dbops "github.com/grimm00/networking-learning-sub003/server/database"
	dbmodel "github.com/grimm00/networking-learning-sub003/server/database/model"
	"github.com/grimm00/networking-learning-sub003/server/eventcenter"
)

// REST API settings filled from the command line and the environment.
type RestAPISettings struct {
	Host string `long:"rest-host" description:"the IP to listen on" env:"NETLAB_REST_HOST" default:""`
	Port int    `long:"rest-port" description:"the port to listen on for connections" env:"NETLAB_REST_PORT" default:"8080"`
}

// Storage operations the REST API needs. Implemented by the database
// layer; tests substitute an in-memory fake.
type MachineStore interface {
	AddMachine(machine *dbmodel.Machine) error
	UpdateMachine(machine *dbmodel.Machine) error
	GetMachineByID(id int64) (*dbmodel.Machine, error)
	GetMachineByAddressAndAgentPort(address string, agentPort int64) (*dbmodel.Machine, error)
	GetAllMachines() ([]dbmodel.Machine, error)
	DeleteMachine(machine *dbmodel.Machine) error
	AddReport(report *dbmodel.Report) error
	GetReportsByMachineID(machineID int64, kind string, limit int) ([]dbmodel.Report, error)
	GetReportByID(id int64) (*dbmodel.Report, error)
	GetEvents(offset, limit int, level dbmodel.EventLevel, machineID int64) ([]dbmodel.Event, int, error)
}

// MachineStore implementation backed by PostgreSQL. It additionally
// carries the retention operations used by the pruner.
type DatabaseStore struct {
	db *dbops.PgDB
}

func NewDatabaseStore(db *dbops.PgDB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (s *DatabaseStore) AddMachine(machine *dbmodel.Machine) error {
	return dbmodel.AddMachine(s.db, machine)
}

func (s *DatabaseStore) UpdateMachine(machine *dbmodel.Machine) error {
	return dbmodel.UpdateMachine(s.db, machine)
}

func (s *DatabaseStore) GetMachineByID(id int64) (*dbmodel.Machine, error) {
	return dbmodel.GetMachineByID(s.db, id)
}

func (s *DatabaseStore) GetMachineByAddressAndAgentPort(address string, agentPort int64) (*dbmodel.Machine, error) {
	return dbmodel.GetMachineByAddressAndAgentPort(s.db, address, agentPort)
}

func (s *DatabaseStore) GetAllMachines() ([]dbmodel.Machine, error) {
	return dbmodel.GetAllMachines(s.db)
}

func (s *DatabaseStore) DeleteMachine(machine *dbmodel.Machine) error {
	return dbmodel.DeleteMachine(s.db, machine)
}

func (s *DatabaseStore) AddReport(report *dbmodel.Report) error {
	return dbmodel.AddReport(s.db, report)
}

func (s *DatabaseStore) GetReportsByMachineID(machineID int64, kind string, limit int) ([]dbmodel.Report, error) {
	return dbmodel.GetReportsByMachineID(s.db, machineID, kind, limit)
}

func (s *DatabaseStore) GetReportByID(id int64) (*dbmodel.Report, error) {
	return dbmodel.GetReportByID(s.db, id)
}

func (s *DatabaseStore) GetEvents(offset, limit int, level dbmodel.EventLevel, machineID int64) ([]dbmodel.Event, int, error) {
	return dbmodel.GetEvents(s.db, offset, limit, level, machineID)
}

func (s *DatabaseStore) DeleteReportsBefore(before time.Time) (int, error) {
	return dbmodel.DeleteReportsBefore(s.db, before)
}

func (s *DatabaseStore) DeleteEventsBefore(before time.Time) (int, error) {
	return dbmodel.DeleteEventsBefore(s.db, before)
}

// RestAPI is the server's REST interface.
type RestAPI struct {
	Settings    *RestAPISettings
	Store       MachineStore
	EventCenter eventcenter.EventCenter

	HTTPServer *http.Server

	registry        *prometheus.Registry
	reportsReceived prometheus.Counter
}

// Instantiates the REST API and builds its routing.
func NewRestAPI(settings *RestAPISettings, store MachineStore, eventCenter eventcenter.EventCenter) *RestAPI {
	api := &RestAPI{
		Settings:    settings,
		Store:       store,
		EventCenter: eventCenter,
	}

	api.registry = prometheus.NewRegistry()
	factory := promauto.With(api.registry)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "netlab",
		Subsystem: "server",
		Name:      "machines_total",
		Help:      "Number of registered machines.",
	}, func() float64 {
		machines, err := store.GetAllMachines()
		if err != nil {
			log.WithError(err).Error("Cannot count machines for metrics")
			return 0
		}
		return float64(len(machines))
	})
	api.reportsReceived = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "netlab",
		Subsystem: "server",
		Name:      "reports_received_total",
		Help:      "Number of diagnostic reports submitted by agents and tools.",
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/api/machines", api.createMachine)
	router.GET("/api/machines", api.getMachines)
	router.GET("/api/machines/:id", api.getMachine)
	router.DELETE("/api/machines/:id", api.deleteMachine)
	router.POST("/api/machines/:id/ping", api.pingMachine)
	router.POST("/api/machines/:id/reports", api.createReport)
	router.GET("/api/machines/:id/reports", api.getReports)
	router.GET("/api/reports/:id", api.getReport)
	router.GET("/api/events", api.getEvents)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(api.registry, promhttp.HandlerOpts{})))
	if eventCenter != nil {
		router.GET("/api/events/stream", gin.WrapH(eventCenter))
	}

	api.HTTPServer = &http.Server{
		Handler: router,
	}
	return api
}

// Serve starts the HTTP server and blocks until it is shut down.
func (api *RestAPI) Serve() error {
	address := net.JoinHostPort(api.Settings.Host, strconv.Itoa(api.Settings.Port))
	api.HTTPServer.Addr = address
	log.Printf("Server REST API listening on %s", address)
	err := api.HTTPServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "problem serving REST API")
	}
	return nil
}

// Stops the HTTP server gracefully.
func (api *RestAPI) Shutdown() {
	log.Printf("Stopping server REST API")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	api.HTTPServer.SetKeepAlivesEnabled(false)
	if err := api.HTTPServer.Shutdown(ctx); err != nil {
		log.Warnf("Could not gracefully shut down the REST API: %s", err)
	}
	log.Printf("Stopped server REST API")
}
