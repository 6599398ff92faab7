package iface

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Check that interface types are derived from device names.
func TestInterfaceType(t *testing.T) {
	require.Equal(t, "Loopback", InterfaceType("lo"))
	require.Equal(t, "Ethernet", InterfaceType("eth0"))
	require.Equal(t, "Ethernet", InterfaceType("eth0@if42"))
	require.Equal(t, "Ethernet", InterfaceType("enp3s0"))
	require.Equal(t, "Wireless", InterfaceType("wlan0"))
	require.Equal(t, "IP-in-IP Tunnel", InterfaceType("tunl0"))
	require.Equal(t, "GRE Tunnel", InterfaceType("gre0"))
	require.Equal(t, "TUN Interface", InterfaceType("tun1"))
	require.Equal(t, "Virtual Ethernet Pair", InterfaceType("veth12ab"))
	require.Equal(t, "Bridge Interface", InterfaceType("br-lab"))
	require.Equal(t, "Network Interface", InterfaceType("dummy0"))
}

// Check the container filtering rules: Docker plumbing hidden, tunnel
// devices kept for the encapsulation exercises.
func TestShouldAnalyzeInContainer(t *testing.T) {
	analyzer := NewAnalyzerForEnvironment(EnvironmentContainer)

	require.True(t, analyzer.shouldAnalyze("eth0"))
	require.True(t, analyzer.shouldAnalyze("eth0@if42"))
	require.True(t, analyzer.shouldAnalyze("lo"))
	require.True(t, analyzer.shouldAnalyze("tunl0"))
	require.True(t, analyzer.shouldAnalyze("gre0"))

	require.False(t, analyzer.shouldAnalyze("veth0a1b2c"))
	require.False(t, analyzer.shouldAnalyze("docker0"))
	require.False(t, analyzer.shouldAnalyze("br-4f1a"))
	require.False(t, analyzer.shouldAnalyze("virbr0"))
}

// Check the host filtering rules: kernel tunnel stubs hidden.
func TestShouldAnalyzeOnHost(t *testing.T) {
	analyzer := NewAnalyzerForEnvironment(EnvironmentHost)

	require.True(t, analyzer.shouldAnalyze("eth0"))
	require.True(t, analyzer.shouldAnalyze("lo"))
	require.True(t, analyzer.shouldAnalyze("docker0"))

	require.False(t, analyzer.shouldAnalyze("tunl0"))
	require.False(t, analyzer.shouldAnalyze("erspan0"))
	require.False(t, analyzer.shouldAnalyze("ip6tnl0"))
}

// Check parsing a /proc/net/route dump with a default and a local route.
func TestParseRoutes(t *testing.T) {
	content := `Iface	Destination	Gateway 	Flags	RefCnt	Use	Metric	Mask		MTU	Window	IRTT
eth0	00000000	010011AC	0003	0	0	100	00000000	0	0	0
eth0	000011AC	00000000	0001	0	0	0	0000FFFF	0	0	0
`
	routes, err := parseRoutes(strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, routes, 2)

	require.True(t, routes[0].IsDefault)
	require.Equal(t, "default", routes[0].Destination)
	require.Equal(t, "172.17.0.1", routes[0].Gateway)
	require.Equal(t, "eth0", routes[0].Interface)
	require.Equal(t, 100, routes[0].Metric)

	require.False(t, routes[1].IsDefault)
	require.Equal(t, "172.17.0.0/16", routes[1].Destination)
	require.Empty(t, routes[1].Gateway)

	defaultRoute := DefaultRoute(routes)
	require.NotNil(t, defaultRoute)
	require.Equal(t, "eth0", defaultRoute.Interface)
}

// Check that a malformed hex column is reported.
func TestParseRoutesInvalid(t *testing.T) {
	content := "Iface\tDestination\tGateway\nbad\tZZZZZZZZ\t00000000\t0\t0\t0\t0\t00000000\n"
	_, err := parseRoutes(strings.NewReader(content))
	require.Error(t, err)
}

// Check that the local interface inventory can be listed. The loopback
// device exists everywhere the tests run.
func TestListInterfaces(t *testing.T) {
	analyzer := NewAnalyzer()
	interfaces, err := analyzer.ListInterfaces()
	require.NoError(t, err)
	require.NotEmpty(t, interfaces)

	var loopback *Interface
	for _, iface := range interfaces {
		if iface.IsLoopback {
			loopback = iface
		}
	}
	require.NotNil(t, loopback)
	require.Equal(t, "Loopback", loopback.Type)
	require.True(t, loopback.IsUp)
}
