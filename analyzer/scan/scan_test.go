package scan

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePorts(t *testing.T) {
	ports, err := ParsePorts("443,80,8000-8002")
	require.NoError(t, err)
	require.EqualValues(t, []int{80, 443, 8000, 8001, 8002}, ports)

	// Duplicates collapse.
	ports, err = ParsePorts("80,80,80")
	require.NoError(t, err)
	require.EqualValues(t, []int{80}, ports)

	ports, err = ParsePorts("common")
	require.NoError(t, err)
	require.Contains(t, ports, 22)
	require.Contains(t, ports, 443)
}

func TestParsePortsInvalid(t *testing.T) {
	_, err := ParsePorts("")
	require.Error(t, err)

	_, err = ParsePorts("abc")
	require.Error(t, err)

	_, err = ParsePorts("0")
	require.Error(t, err)

	_, err = ParsePorts("70000")
	require.Error(t, err)

	// Reversed range.
	_, err = ParsePorts("100-10")
	require.Error(t, err)
}

func TestServiceName(t *testing.T) {
	require.EqualValues(t, "ssh", ServiceName(22))
	require.EqualValues(t, "https", ServiceName(443))
	require.Empty(t, ServiceName(54321))
}

func TestScanFindsOpenPort(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	openPort := listener.Addr().(*net.TCPAddr).Port

	closedListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := closedListener.Addr().(*net.TCPAddr).Port
	// Closing immediately frees the port so the probe is refused.
	closedListener.Close()

	scanner := NewScanner(4)
	report, err := scanner.Scan(context.Background(), "127.0.0.1", []int{openPort, closedPort})
	require.NoError(t, err)

	require.EqualValues(t, 2, report.Scanned)
	require.EqualValues(t, "127.0.0.1", report.Address)
	require.Len(t, report.Open, 1)
	require.EqualValues(t, openPort, report.Open[0].Port)
	require.True(t, report.Open[0].Open)
}

func TestScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner := NewScanner(2)
	_, err := scanner.Scan(ctx, "127.0.0.1", []int{1, 2, 3})
	require.Error(t, err)
}

func TestNewScannerDefaults(t *testing.T) {
	scanner := NewScanner(0)
	require.EqualValues(t, 64, scanner.workers)
}
