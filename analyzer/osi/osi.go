// Package osi provides the reference material behind the layered model
// walkthroughs: layer descriptions, protocol to layer mapping and the
// encapsulation chain for common application protocols.
package osi

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// One layer of the reference model.
type Layer struct {
	Number    int      `json:"number"`
	Name      string   `json:"name"`
	Unit      string   `json:"unit"`
	Function  string   `json:"function"`
	Protocols []string `json:"protocols"`
	Devices   []string `json:"devices,omitempty"`
}

var layers = []*Layer{
	{
		Number:    7,
		Name:      "Application",
		Unit:      "data",
		Function:  "network services consumed directly by applications",
		Protocols: []string{"HTTP", "HTTPS", "DNS", "DHCP", "NTP", "SSH", "SMTP", "FTP"},
	},
	{
		Number:    6,
		Name:      "Presentation",
		Unit:      "data",
		Function:  "data representation, encryption and compression",
		Protocols: []string{"TLS", "SSL", "JPEG", "ASCII"},
	},
	{
		Number:    5,
		Name:      "Session",
		Unit:      "data",
		Function:  "establishing and tearing down dialogues between hosts",
		Protocols: []string{"NetBIOS", "RPC", "PPTP"},
	},
	{
		Number:    4,
		Name:      "Transport",
		Unit:      "segment",
		Function:  "end to end delivery, ports, reliability and flow control",
		Protocols: []string{"TCP", "UDP", "QUIC", "SCTP"},
		Devices:   []string{"firewall", "load balancer"},
	},
	{
		Number:    3,
		Name:      "Network",
		Unit:      "packet",
		Function:  "logical addressing and routing between networks",
		Protocols: []string{"IP", "ICMP", "OSPF", "BGP", "ARP"},
		Devices:   []string{"router", "layer 3 switch"},
	},
	{
		Number:    2,
		Name:      "Data Link",
		Unit:      "frame",
		Function:  "node to node delivery on a shared medium, MAC addressing",
		Protocols: []string{"Ethernet", "802.11", "PPP", "VLAN"},
		Devices:   []string{"switch", "bridge", "access point"},
	},
	{
		Number:    1,
		Name:      "Physical",
		Unit:      "bit",
		Function:  "transmission of raw bits over the medium",
		Protocols: []string{"10BASE-T", "1000BASE-T", "DSL", "fiber"},
		Devices:   []string{"hub", "repeater", "cable"},
	},
}

// Protocols mapped to their layer and default transport port. Zero port
// means the protocol carries no port of its own.
type protocolInfo struct {
	layer     int
	transport string
	port      int
}

var protocols = map[string]protocolInfo{
	"http":  {layer: 7, transport: "tcp", port: 80},
	"https": {layer: 7, transport: "tcp", port: 443},
	"dns":   {layer: 7, transport: "udp", port: 53},
	"dhcp":  {layer: 7, transport: "udp", port: 67},
	"ntp":   {layer: 7, transport: "udp", port: 123},
	"ssh":   {layer: 7, transport: "tcp", port: 22},
	"smtp":  {layer: 7, transport: "tcp", port: 25},
	"ftp":   {layer: 7, transport: "tcp", port: 21},
	"tls":   {layer: 6},
	"tcp":   {layer: 4},
	"udp":   {layer: 4},
	"ip":    {layer: 3},
	"icmp":  {layer: 3},
	"arp":   {layer: 3},
	"vlan":  {layer: 2},
}

// Returns all layers ordered from application down to physical.
func Layers() []*Layer {
	return layers
}

// Finds a layer by number.
func GetLayer(number int) (*Layer, error) {
	for _, layer := range layers {
		if layer.Number == number {
			return layer, nil
		}
	}
	return nil, errors.Errorf("no layer %d in the reference model", number)
}

// Returns the layer a protocol belongs to.
func ProtocolLayer(name string) (*Layer, error) {
	info, ok := protocols[strings.ToLower(name)]
	if !ok {
		return nil, errors.Errorf("unknown protocol %s", name)
	}
	return GetLayer(info.layer)
}

// Returns the default port and transport of an application protocol.
func ProtocolPort(name string) (int, string, error) {
	info, ok := protocols[strings.ToLower(name)]
	if !ok {
		return 0, "", errors.Errorf("unknown protocol %s", name)
	}
	if info.port == 0 {
		return 0, "", errors.Errorf("protocol %s has no default port", name)
	}
	return info.port, info.transport, nil
}

// Returns the application protocols known to the reference data, sorted.
func KnownProtocols() []string {
	names := make([]string, 0, len(protocols))
	for name := range protocols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
