package sockets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grimm00/networking-learning-sub003/testutil"
)

// Socket table content in the exact format of /proc/net/tcp.
const tcpFixture = `  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode
   0: 0100007F:1F90 00000000:0000 0A 00000000:00000000 00:00000000 00000000  1000        0 12345 1 0000000000000000 100 0 0 10 0
   1: 0F02000A:D2F0 0E02000A:0050 01 00000000:00000000 00:00000000 00000000  1000        0 12346 1 0000000000000000 100 0 0 10 -1
   2: 0F02000A:D2F1 0E02000A:0050 06 00000000:00000000 00:00000000 00000000     0        0 0 3 0000000000000000
`

const udpFixture = `   sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode ref pointer drops
   10: 00000000:0035 00000000:0000 07 00000000:00000000 00:00000000 00000000   101        0 22222 2 0000000000000000 0
`

func TestParseSocketTableTCP(t *testing.T) {
	sockets, err := parseSocketTable("tcp", strings.NewReader(tcpFixture))
	require.NoError(t, err)
	require.Len(t, sockets, 3)

	require.EqualValues(t, "tcp", sockets[0].Protocol)
	require.EqualValues(t, "127.0.0.1", sockets[0].LocalAddress)
	require.EqualValues(t, 8080, sockets[0].LocalPort)
	require.EqualValues(t, "LISTEN", sockets[0].State)
	require.EqualValues(t, 1000, sockets[0].UID)
	require.EqualValues(t, "12345", sockets[0].Inode)

	require.EqualValues(t, "10.0.2.15", sockets[1].LocalAddress)
	require.EqualValues(t, "10.0.2.14", sockets[1].RemoteAddress)
	require.EqualValues(t, 80, sockets[1].RemotePort)
	require.EqualValues(t, "ESTABLISHED", sockets[1].State)

	require.EqualValues(t, "TIME_WAIT", sockets[2].State)
}

func TestParseSocketTableUDP(t *testing.T) {
	sockets, err := parseSocketTable("udp", strings.NewReader(udpFixture))
	require.NoError(t, err)
	require.Len(t, sockets, 1)

	// UDP reuses the TCP CLOSE code for unconnected sockets.
	require.EqualValues(t, "UNCONN", sockets[0].State)
	require.EqualValues(t, "0.0.0.0", sockets[0].LocalAddress)
	require.EqualValues(t, 53, sockets[0].LocalPort)
}

func TestParseHexAddressIPv6(t *testing.T) {
	address, port, err := parseHexAddress("00000000000000000000000001000000:1A85")
	require.NoError(t, err)
	require.EqualValues(t, "::1", address)
	require.EqualValues(t, 6789, port)
}

func TestParseHexAddressInvalid(t *testing.T) {
	_, _, err := parseHexAddress("0100007F")
	require.Error(t, err)

	_, _, err = parseHexAddress("XYZ0007F:0050")
	require.Error(t, err)
}

func TestReadSockets(t *testing.T) {
	sandbox := testutil.NewSandbox()
	defer sandbox.Close()

	_, err := sandbox.Write("tcp", tcpFixture)
	require.NoError(t, err)
	_, err = sandbox.Write("udp", udpFixture)
	require.NoError(t, err)

	reader := NewReaderForDir(sandbox.BasePath)
	sockets, err := reader.ReadSockets()
	require.NoError(t, err)
	// Missing tcp6 and udp6 tables are skipped.
	require.Len(t, sockets, 4)
}

func TestSummarize(t *testing.T) {
	tcpSockets, err := parseSocketTable("tcp", strings.NewReader(tcpFixture))
	require.NoError(t, err)
	udpSockets, err := parseSocketTable("udp", strings.NewReader(udpFixture))
	require.NoError(t, err)
	sockets := append(tcpSockets, udpSockets...)

	summary := Summarize(sockets)
	require.EqualValues(t, 4, summary.Total)
	require.EqualValues(t, 3, summary.ByProtocol["tcp"])
	require.EqualValues(t, 1, summary.ByProtocol["udp"])
	require.EqualValues(t, 1, summary.ByState["LISTEN"])
	require.EqualValues(t, 1, summary.ByState["ESTABLISHED"])
	require.EqualValues(t, 1, summary.TimeWait)

	require.Len(t, summary.Listening, 2)
	require.EqualValues(t, 53, summary.Listening[0].LocalPort)
	require.EqualValues(t, 8080, summary.Listening[1].LocalPort)

	require.Len(t, summary.Established, 1)
}

func TestListeningPorts(t *testing.T) {
	tcpSockets, err := parseSocketTable("tcp", strings.NewReader(tcpFixture))
	require.NoError(t, err)
	udpSockets, err := parseSocketTable("udp", strings.NewReader(udpFixture))
	require.NoError(t, err)
	sockets := append(tcpSockets, udpSockets...)

	ports := ListeningPorts(sockets)
	require.EqualValues(t, []int{53, 8080}, ports)

	require.True(t, IsTCPPortListening(sockets, 8080))
	require.False(t, IsTCPPortListening(sockets, 53))
	require.False(t, IsTCPPortListening(sockets, 81))
}
