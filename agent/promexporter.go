package agent

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/grimm00/networking-learning-sub003/analyzer/sockets"
)

// PromExporter exposes the agent's view of the host to Prometheus:
// which lab services run and how the socket tables look.
type PromExporter struct {
	monitor       ServiceMonitor
	socketsReader *sockets.Reader
	interval      time.Duration

	HTTPServer *http.Server
	Registry   *prometheus.Registry
	Ticker     *time.Ticker
	Wg         sync.WaitGroup
	done       chan bool

	ServiceUp       *prometheus.GaugeVec
	SocketsByState  *prometheus.GaugeVec
	ListeningPorts  prometheus.Gauge
	CollectFailures prometheus.Counter
}

const metricsNamespace = "netlab"

// Instantiates the exporter listening on the given address.
func NewPromExporter(address string, interval time.Duration, monitor ServiceMonitor) *PromExporter {
	pe := &PromExporter{
		monitor:       monitor,
		socketsReader: sockets.NewReader(),
		interval:      interval,
		Registry:      prometheus.NewRegistry(),
		done:          make(chan bool),
	}

	factory := promauto.With(pe.Registry)
	pe.ServiceUp = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "agent",
		Name:      "service_up",
		Help:      "Whether a known lab service process is running.",
	}, []string{"service", "kind"})
	pe.SocketsByState = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "agent",
		Name:      "sockets_by_state",
		Help:      "Number of sockets per connection state.",
	}, []string{"state"})
	pe.ListeningPorts = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "agent",
		Name:      "listening_ports",
		Help:      "Number of distinct listening ports.",
	})
	pe.CollectFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "agent",
		Name:      "collect_failures_total",
		Help:      "Number of failed metric collection rounds.",
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(pe.Registry, promhttp.HandlerOpts{}))
	pe.HTTPServer = &http.Server{
		Addr:    address,
		Handler: mux,
	}
	return pe
}

// Start the http server exposing the metrics and the collecting loop.
func (pe *PromExporter) Start() {
	log.Printf("Prometheus exporter listening on %s, collection interval %s", pe.HTTPServer.Addr, pe.interval)

	go func() {
		err := pe.HTTPServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Problem serving Prometheus exporter: %s", err)
		}
	}()

	pe.Ticker = time.NewTicker(pe.interval)
	pe.Wg.Add(1)
	go pe.collectorLoop()
}

// Shutdown exporter goroutines and the http server.
func (pe *PromExporter) Shutdown() {
	log.Printf("Stopping Prometheus exporter")

	if pe.Ticker != nil {
		pe.Ticker.Stop()
		pe.done <- true
		pe.Wg.Wait()
	}

	if pe.HTTPServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pe.HTTPServer.SetKeepAlivesEnabled(false)
		if err := pe.HTTPServer.Shutdown(ctx); err != nil {
			log.Warnf("Could not gracefully shut down the Prometheus exporter: %s", err)
		}
	}
	log.Printf("Stopped Prometheus exporter")
}

func (pe *PromExporter) collectorLoop() {
	defer pe.Wg.Done()
	pe.collect()
	for {
		select {
		case <-pe.Ticker.C:
			pe.collect()
		case <-pe.done:
			return
		}
	}
}

// One collection round.
func (pe *PromExporter) collect() {
	pe.ServiceUp.Reset()
	for _, service := range pe.monitor.GetServices() {
		pe.ServiceUp.WithLabelValues(service.Name, service.Kind).Set(1)
	}

	all, err := pe.socketsReader.ReadSockets()
	if err != nil {
		log.Warnf("Cannot collect socket metrics: %s", err)
		pe.CollectFailures.Inc()
		return
	}
	summary := sockets.Summarize(all)
	pe.SocketsByState.Reset()
	for state, count := range summary.ByState {
		pe.SocketsByState.WithLabelValues(state).Set(float64(count))
	}
	pe.ListeningPorts.Set(float64(len(sockets.ListeningPorts(all))))
}
