package lab

import (
	"fmt"
	"net"
	"time"

	"github.com/grimm00/networking-learning-sub003/analyzer/scan"
	"github.com/grimm00/networking-learning-sub003/analyzer/sockets"
)

// Result of checking one expected service port.
type PortCheck struct {
	Service  string `json:"service"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Optional bool   `json:"optional"`
	Open     bool   `json:"open"`
}

// Result of checking all ports of a topology.
type PortsReport struct {
	Topology string       `json:"topology"`
	Checks   []*PortCheck `json:"checks"`
	Missing  int          `json:"missing"`
}

// Per-port connect timeout for the fallback probe.
const portProbeTimeout = time.Second

// Checks the topology's service ports against the local socket tables.
// Ports that are not found listening locally are probed with a connect
// attempt, so services published by containers on other addresses
// still count as open.
func CheckPorts(topology *Topology, reader *sockets.Reader) (*PortsReport, error) {
	all, err := reader.ReadSockets()
	if err != nil {
		return nil, err
	}

	report := &PortsReport{Topology: topology.Name}
	for _, service := range topology.Services {
		if service.Port == 0 {
			continue
		}
		check := &PortCheck{
			Service:  service.Name,
			Port:     service.Port,
			Protocol: service.Protocol,
			Optional: service.Optional,
		}
		if service.Protocol == "tcp" {
			check.Open = sockets.IsTCPPortListening(all, service.Port)
			if !check.Open {
				check.Open = probeTCPPort(service.Port)
			}
		} else {
			check.Open = udpPortBound(all, service.Port)
		}
		if !check.Open && !check.Optional {
			report.Missing++
		}
		report.Checks = append(report.Checks, check)
	}
	return report, nil
}

func probeTCPPort(port int) bool {
	address := net.JoinHostPort("127.0.0.1", fmt.Sprint(port))
	conn, err := net.DialTimeout("tcp", address, portProbeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func udpPortBound(all []*sockets.Socket, port int) bool {
	for _, socket := range all {
		if socket.State == "UNCONN" && socket.LocalPort == port {
			return true
		}
	}
	return false
}

// Names the services behind the missing ports, annotated with the well
// known service name when there is one.
func (report *PortsReport) MissingServices() []string {
	var missing []string
	for _, check := range report.Checks {
		if check.Open || check.Optional {
			continue
		}
		name := check.Service
		if wellKnown := scan.ServiceName(check.Port); wellKnown != "" && wellKnown != name {
			name = fmt.Sprintf("%s (%s)", name, wellKnown)
		}
		missing = append(missing, fmt.Sprintf("%s on %s port %d", name, check.Protocol, check.Port))
	}
	return missing
}
