package osi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayers(t *testing.T) {
	all := Layers()
	require.Len(t, all, 7)
	require.EqualValues(t, 7, all[0].Number)
	require.EqualValues(t, 1, all[6].Number)
	require.EqualValues(t, "Transport", all[3].Name)
}

func TestGetLayer(t *testing.T) {
	layer, err := GetLayer(3)
	require.NoError(t, err)
	require.EqualValues(t, "Network", layer.Name)
	require.EqualValues(t, "packet", layer.Unit)
	require.Contains(t, layer.Protocols, "BGP")

	_, err = GetLayer(8)
	require.Error(t, err)
}

func TestProtocolLayer(t *testing.T) {
	layer, err := ProtocolLayer("HTTPS")
	require.NoError(t, err)
	require.EqualValues(t, 7, layer.Number)

	layer, err = ProtocolLayer("tcp")
	require.NoError(t, err)
	require.EqualValues(t, 4, layer.Number)

	_, err = ProtocolLayer("gopher")
	require.Error(t, err)
}

func TestProtocolPort(t *testing.T) {
	port, transport, err := ProtocolPort("dns")
	require.NoError(t, err)
	require.EqualValues(t, 53, port)
	require.EqualValues(t, "udp", transport)

	_, _, err = ProtocolPort("tcp")
	require.Error(t, err)
}

func TestKnownProtocols(t *testing.T) {
	names := KnownProtocols()
	require.Contains(t, names, "http")
	require.Contains(t, names, "icmp")
	require.IsIncreasing(t, names)
}

func TestEncapsulate(t *testing.T) {
	steps, err := Encapsulate("http")
	require.NoError(t, err)
	require.Len(t, steps, 5)
	require.EqualValues(t, 7, steps[0].Layer)
	require.EqualValues(t, "TCP header", steps[1].Header)
	require.Contains(t, steps[1].Description, "port 80")
	require.EqualValues(t, 1, steps[4].Layer)

	// Transport protocols have no application payload to wrap.
	_, err = Encapsulate("udp")
	require.Error(t, err)
}
