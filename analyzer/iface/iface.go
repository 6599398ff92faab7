// Package iface analyzes the network interfaces of a lab host or
// container: state, addressing, traffic counters, routing and basic
// connectivity.
package iface

import (
	"net"
	"time"

	gopsutilnet "github.com/shirou/gopsutil/v4/net"
	log "github.com/sirupsen/logrus"
)

// Traffic counters of a single interface.
type Stats struct {
	RxBytes   uint64 `json:"rxBytes"`
	RxPackets uint64 `json:"rxPackets"`
	RxErrors  uint64 `json:"rxErrors"`
	RxDropped uint64 `json:"rxDropped"`
	TxBytes   uint64 `json:"txBytes"`
	TxPackets uint64 `json:"txPackets"`
	TxErrors  uint64 `json:"txErrors"`
	TxDropped uint64 `json:"txDropped"`
}

// State and configuration of a single interface.
type Interface struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	State       string   `json:"state"`
	MTU         int      `json:"mtu"`
	MACAddress  string   `json:"macAddress,omitempty"`
	Addresses   []string `json:"addresses"`
	IsUp        bool     `json:"isUp"`
	IsLoopback  bool     `json:"isLoopback"`
	Stats       *Stats   `json:"stats,omitempty"`
}

// Analyzer inspects host interfaces. The environment (container or bare
// host) decides which interfaces are filtered out of the inventory.
type Analyzer struct {
	environment Environment
}

// Creates an analyzer detecting the runtime environment.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		environment: DetectEnvironment(),
	}
}

// Creates an analyzer with a fixed environment. Used in tests and when
// the caller wants to force host or container filtering rules.
func NewAnalyzerForEnvironment(environment Environment) *Analyzer {
	return &Analyzer{
		environment: environment,
	}
}

// Returns the detected runtime environment.
func (a *Analyzer) Environment() Environment {
	return a.environment
}

// Returns the analyzable interfaces with addressing and traffic counters.
func (a *Analyzer) ListInterfaces() ([]*Interface, error) {
	netIfaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	counters := a.ioCounters()

	var interfaces []*Interface
	for i := range netIfaces {
		netIface := netIfaces[i]
		if !a.shouldAnalyze(netIface.Name) {
			continue
		}
		interfaces = append(interfaces, a.describeInterface(&netIface, counters))
	}
	return interfaces, nil
}

// Returns a single interface by name or nil when not present.
func (a *Analyzer) GetInterface(name string) (*Interface, error) {
	netIface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return a.describeInterface(netIface, a.ioCounters()), nil
}

func (a *Analyzer) describeInterface(netIface *net.Interface, counters map[string]*Stats) *Interface {
	iface := &Interface{
		Name:       netIface.Name,
		Type:       InterfaceType(netIface.Name),
		State:      "DOWN",
		MTU:        netIface.MTU,
		MACAddress: netIface.HardwareAddr.String(),
		IsLoopback: netIface.Flags&net.FlagLoopback != 0,
		Stats:      counters[netIface.Name],
	}
	if description, ok := interfaceDescriptions[cleanName(netIface.Name)]; ok {
		iface.Description = description
	}
	if netIface.Flags&net.FlagUp != 0 {
		iface.State = "UP"
		iface.IsUp = true
	}

	addresses, err := netIface.Addrs()
	if err != nil {
		log.WithError(err).Warnf("Cannot list addresses of interface %s", netIface.Name)
	}
	for _, address := range addresses {
		iface.Addresses = append(iface.Addresses, address.String())
	}
	return iface
}

// Reads per-interface traffic counters keyed by interface name.
func (a *Analyzer) ioCounters() map[string]*Stats {
	stats, err := gopsutilnet.IOCounters(true)
	if err != nil {
		log.WithError(err).Warn("Cannot read interface traffic counters")
		return nil
	}

	counters := make(map[string]*Stats)
	for _, stat := range stats {
		counters[stat.Name] = &Stats{
			RxBytes:   stat.BytesRecv,
			RxPackets: stat.PacketsRecv,
			RxErrors:  stat.Errin,
			RxDropped: stat.Dropin,
			TxBytes:   stat.BytesSent,
			TxPackets: stat.PacketsSent,
			TxErrors:  stat.Errout,
			TxDropped: stat.Dropout,
		}
	}
	return counters
}

// Tests that packets can leave the host towards target's DNS port. It is
// a cheap reachability check that works without raw sockets, so it can
// run in unprivileged lab containers.
func (a *Analyzer) TestConnectivity(target string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("udp", net.JoinHostPort(target, "53"), timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_, err = conn.Write([]byte("probe"))
	return err == nil
}
