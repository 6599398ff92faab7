package iface

import (
	"os"
	"strings"
)

// Environment in which the analyzer runs.
type Environment string

const (
	EnvironmentHost      Environment = "host"
	EnvironmentContainer Environment = "container"
)

// Tunnel and TAP devices kept in the container inventory because the labs
// use them to demonstrate encapsulation.
var educationalInterfaces = map[string]bool{
	"tunl0":   true,
	"gre0":    true,
	"gretap0": true,
	"sit0":    true,
	"tun0":    true,
	"tap0":    true,
}

// Kernel-created tunnel devices hidden on a bare host where they are noise.
var hostHiddenInterfaces = map[string]bool{
	"tunl0":    true,
	"gre0":     true,
	"gretap0":  true,
	"erspan0":  true,
	"ip_vti0":  true,
	"ip6_vti0": true,
	"sit0":     true,
	"ip6tnl0":  true,
	"ip6gre0":  true,
}

var interfaceDescriptions = map[string]string{
	"tunl0":    "Used for IP-in-IP tunneling, encapsulates IPv4 packets in IPv4",
	"gre0":     "Generic Routing Encapsulation tunnel for point-to-point connections",
	"gretap0":  "GRE TAP interface for layer 2 tunneling over GRE",
	"sit0":     "Simple Internet Transition for IPv6 over IPv4 tunneling",
	"tun0":     "TUN interface for user-space network applications",
	"tap0":     "TAP interface for bridging virtual machines",
	"ip_vti0":  "IPv4 Virtual Tunnel Interface for IPsec VPNs",
	"ip6_vti0": "IPv6 Virtual Tunnel Interface for IPsec VPNs",
	"ip6tnl0":  "IPv6 tunnel interface for IPv6 over IPv4",
	"ip6gre0":  "IPv6 GRE tunnel for IPv6 over IPv4",
	"erspan0":  "ERSPAN tunnel for network monitoring and analysis",
}

// Detects if the analyzer runs inside a container by checking the cgroup
// of the init process, the Docker sentinel file and environment variables.
func DetectEnvironment() Environment {
	if content, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		if strings.Contains(string(content), "docker") || strings.Contains(string(content), "containerd") {
			return EnvironmentContainer
		}
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return EnvironmentContainer
	}
	if os.Getenv("container") != "" || os.Getenv("DOCKER_CONTAINER") != "" {
		return EnvironmentContainer
	}
	return EnvironmentHost
}

// Strips the peer suffix from veth-style names, e.g. eth0@if42 -> eth0.
func cleanName(name string) string {
	clean, _, _ := strings.Cut(name, "@")
	return clean
}

// Decides whether an interface belongs in the inventory. Containers get
// the educational tunnel devices but not the Docker plumbing; hosts get
// real devices only.
func (a *Analyzer) shouldAnalyze(name string) bool {
	clean := cleanName(name)
	if a.environment == EnvironmentContainer {
		if educationalInterfaces[clean] {
			return true
		}
		for _, prefix := range []string{"veth", "docker", "br-", "virbr"} {
			if strings.HasPrefix(clean, prefix) {
				return false
			}
		}
		return true
	}

	if hostHiddenInterfaces[clean] {
		return false
	}
	return true
}

// Returns a human readable interface type derived from the device name.
func InterfaceType(name string) string {
	clean := cleanName(name)
	switch {
	case strings.HasPrefix(clean, "lo"):
		return "Loopback"
	case strings.HasPrefix(clean, "eth"), strings.HasPrefix(clean, "en"):
		return "Ethernet"
	case strings.HasPrefix(clean, "wlan"), strings.HasPrefix(clean, "wl"):
		return "Wireless"
	case clean == "tunl0":
		return "IP-in-IP Tunnel"
	case clean == "gre0":
		return "GRE Tunnel"
	case clean == "gretap0":
		return "GRE TAP Interface"
	case clean == "sit0":
		return "IPv6-over-IPv4 Tunnel"
	case strings.HasPrefix(clean, "ip_vti"):
		return "IPv4 VTI Tunnel"
	case strings.HasPrefix(clean, "ip6_vti"):
		return "IPv6 VTI Tunnel"
	case strings.HasPrefix(clean, "ip6tnl"):
		return "IPv6 Tunnel"
	case strings.HasPrefix(clean, "ip6gre"):
		return "IPv6 GRE Tunnel"
	case strings.HasPrefix(clean, "erspan"):
		return "ERSPAN Tunnel"
	case strings.HasPrefix(clean, "tun"):
		return "TUN Interface"
	case strings.HasPrefix(clean, "tap"):
		return "TAP Interface"
	case strings.HasPrefix(clean, "veth"):
		return "Virtual Ethernet Pair"
	case strings.HasPrefix(clean, "br"):
		return "Bridge Interface"
	case strings.HasPrefix(clean, "bond"):
		return "Bond Interface"
	default:
		return "Network Interface"
	}
}
