package agent

import (
	"time"

	"github.com/shirou/gopsutil/v4/process"
	log "github.com/sirupsen/logrus"
)

// A network service detected on the host.
type Service struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	PID     int32  `json:"pid"`
	Cmdline string `json:"cmdline,omitempty"`
}

// Process names mapped to the service kinds the labs work with.
var knownServices = map[string]string{
	"nginx":          "web",
	"haproxy":        "load-balancer",
	"named":          "dns",
	"coredns":        "dns",
	"dnsmasq":        "dhcp-dns",
	"chronyd":        "ntp",
	"ntpd":           "ntp",
	"prometheus":     "monitoring",
	"grafana":        "monitoring",
	"grafana-server": "monitoring",
	"postgres":       "database",
}

// ServiceMonitor keeps an up to date list of lab services running on
// the host.
type ServiceMonitor interface {
	GetServices() []*Service
	Shutdown()
}

type serviceMonitor struct {
	requests chan chan []*Service
	quit     chan bool

	services []*Service
}

const serviceDetectionInterval = 10 * time.Second

// Creates the monitor and starts its detection goroutine.
func NewServiceMonitor() ServiceMonitor {
	sm := &serviceMonitor{
		requests: make(chan chan []*Service),
		quit:     make(chan bool),
	}
	go sm.run()
	return sm
}

// The monitor serves requests for the current service list from the
// same goroutine that refreshes it, so no locking is needed.
func (sm *serviceMonitor) run() {
	log.Printf("Started service monitor")

	sm.detectServices()
	ticker := time.NewTicker(serviceDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case ret := <-sm.requests:
			ret <- sm.services

		case <-ticker.C:
			sm.detectServices()

		case <-sm.quit:
			log.Printf("Stopped service monitor")
			return
		}
	}
}

func (sm *serviceMonitor) detectServices() {
	var services []*Service

	procs, err := process.Processes()
	if err != nil {
		log.Warnf("Cannot list processes: %s", err)
		return
	}
	for _, p := range procs {
		procName, err := p.Name()
		if err != nil {
			continue
		}
		kind, ok := knownServices[procName]
		if !ok {
			continue
		}
		cmdline, err := p.Cmdline()
		if err != nil {
			log.Warnf("Cannot get process command line: %s", err)
		}
		services = append(services, &Service{
			Name:    procName,
			Kind:    kind,
			PID:     p.Pid,
			Cmdline: cmdline,
		})
	}
	sm.services = services
}

func (sm *serviceMonitor) GetServices() []*Service {
	ret := make(chan []*Service)
	sm.requests <- ret
	return <-ret
}

func (sm *serviceMonitor) Shutdown() {
	sm.quit <- true
}
