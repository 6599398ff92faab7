package agent

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/grimm00/networking-learning-sub003/analyzer/iface"
	"github.com/grimm00/networking-learning-sub003/analyzer/sockets"
)

// RestAPI exposes the agent's diagnostics over HTTP so the server and
// the exercises can query them remotely.
type RestAPI struct {
	monitor       ServiceMonitor
	socketsReader *sockets.Reader
	HTTPServer    *http.Server
}

// Instantiates the REST API for the agent.
func NewRestAPI(address string, monitor ServiceMonitor) *RestAPI {
	api := &RestAPI{
		monitor:       monitor,
		socketsReader: sockets.NewReader(),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/api/state", api.getState)
	router.GET("/api/services", api.getServices)
	router.GET("/api/interfaces", api.getInterfaces)
	router.GET("/api/sockets", api.getSockets)

	api.HTTPServer = &http.Server{
		Addr:    address,
		Handler: router,
	}
	return api
}

// Starts serving requests in a background goroutine.
func (api *RestAPI) Start() {
	log.Printf("Agent REST API listening on %s", api.HTTPServer.Addr)
	go func() {
		err := api.HTTPServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Problem serving agent REST API: %s", err)
		}
	}()
}

// Stops the HTTP server gracefully.
func (api *RestAPI) Shutdown() {
	log.Printf("Stopping agent REST API")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	api.HTTPServer.SetKeepAlivesEnabled(false)
	if err := api.HTTPServer.Shutdown(ctx); err != nil {
		log.Warnf("Could not gracefully shut down the agent REST API: %s", err)
	}
	log.Printf("Stopped agent REST API")
}

func (api *RestAPI) getState(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, GetState(api.monitor))
}

func (api *RestAPI) getServices(ctx *gin.Context) {
	services := api.monitor.GetServices()
	if services == nil {
		services = []*Service{}
	}
	ctx.JSON(http.StatusOK, services)
}

func (api *RestAPI) getInterfaces(ctx *gin.Context) {
	interfaces, err := iface.NewAnalyzer().ListInterfaces()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, interfaces)
}

func (api *RestAPI) getSockets(ctx *gin.Context) {
	all, err := api.socketsReader.ReadSockets()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, sockets.Summarize(all))
}
