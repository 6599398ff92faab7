// Package sockets inspects the socket tables exposed by the kernel in
// /proc/net: connection states, listening ports and per-protocol
// summaries. It replaces shelling out to ss for the lab diagnostics.
package sockets

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// TCP socket states as encoded in /proc/net/tcp.
var tcpStates = map[uint8]string{
	1:  "ESTABLISHED",
	2:  "SYN_SENT",
	3:  "SYN_RECV",
	4:  "FIN_WAIT1",
	5:  "FIN_WAIT2",
	6:  "TIME_WAIT",
	7:  "CLOSE",
	8:  "CLOSE_WAIT",
	9:  "LAST_ACK",
	10: "LISTEN",
	11: "CLOSING",
}

// A single socket table entry.
type Socket struct {
	Protocol      string `json:"protocol"`
	LocalAddress  string `json:"localAddress"`
	LocalPort     int    `json:"localPort"`
	RemoteAddress string `json:"remoteAddress"`
	RemotePort    int    `json:"remotePort"`
	State         string `json:"state"`
	UID           int    `json:"uid"`
	Inode         string `json:"inode"`
}

// Aggregated view over all socket tables.
type Summary struct {
	Total       int            `json:"total"`
	ByProtocol  map[string]int `json:"byProtocol"`
	ByState     map[string]int `json:"byState"`
	Listening   []*Socket      `json:"listening"`
	Established []*Socket      `json:"established"`
	TimeWait    int            `json:"timeWait"`
}

// Default location of the kernel socket tables.
const defaultProcNetDir = "/proc/net"

// Reader loads socket tables from a /proc/net style directory tree so
// that tests can point it at fixtures.
type Reader struct {
	procNetDir string
}

// Creates a reader over the live /proc/net tables.
func NewReader() *Reader {
	return &Reader{procNetDir: defaultProcNetDir}
}

// Creates a reader over an alternative directory. Used in tests.
func NewReaderForDir(dir string) *Reader {
	return &Reader{procNetDir: dir}
}

// Reads all IPv4 and IPv6 TCP and UDP sockets. Missing tables (e.g. no
// IPv6 support) are skipped silently.
func (r *Reader) ReadSockets() ([]*Socket, error) {
	var sockets []*Socket
	for _, protocol := range []string{"tcp", "tcp6", "udp", "udp6"} {
		file, err := os.Open(path.Join(r.procNetDir, protocol))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "cannot open socket table %s", protocol)
		}
		parsed, err := parseSocketTable(protocol, file)
		file.Close()
		if err != nil {
			return nil, err
		}
		sockets = append(sockets, parsed...)
	}
	return sockets, nil
}

// Parses one socket table in the /proc/net/tcp format.
func parseSocketTable(protocol string, reader io.Reader) ([]*Socket, error) {
	var sockets []*Socket
	scanner := bufio.NewScanner(reader)

	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			// Header line.
			first = false
			continue
		}
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 10 {
			continue
		}

		localAddress, localPort, err := parseHexAddress(fields[1])
		if err != nil {
			return nil, errors.WithMessagef(err, "invalid local address in %s entry", protocol)
		}
		remoteAddress, remotePort, err := parseHexAddress(fields[2])
		if err != nil {
			return nil, errors.WithMessagef(err, "invalid remote address in %s entry", protocol)
		}
		stateCode, err := strconv.ParseUint(fields[3], 16, 8)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid state in %s entry", protocol)
		}
		uid, _ := strconv.Atoi(fields[7])

		socket := &Socket{
			Protocol:      protocol,
			LocalAddress:  localAddress,
			LocalPort:     localPort,
			RemoteAddress: remoteAddress,
			RemotePort:    remotePort,
			State:         socketState(protocol, uint8(stateCode)),
			UID:           uid,
			Inode:         fields[9],
		}
		sockets = append(sockets, socket)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "cannot read socket table %s", protocol)
	}
	return sockets, nil
}

// Maps the kernel state code to a name. UDP has no TCP state machine:
// everything but ESTABLISHED shows as unconnected.
func socketState(protocol string, code uint8) string {
	state, ok := tcpStates[code]
	if !ok {
		return "UNKNOWN"
	}
	if strings.HasPrefix(protocol, "udp") {
		if state == "ESTABLISHED" {
			return "ESTABLISHED"
		}
		return "UNCONN"
	}
	return state
}

// Decodes the ADDRESS:PORT hex notation of /proc/net tables. IPv4
// addresses are one little-endian 32-bit group; IPv6 addresses are four.
func parseHexAddress(value string) (string, int, error) {
	addressPart, portPart, ok := strings.Cut(value, ":")
	if !ok {
		return "", 0, errors.Errorf("missing port separator in %s", value)
	}

	port, err := strconv.ParseUint(portPart, 16, 16)
	if err != nil {
		return "", 0, errors.Wrapf(err, "cannot parse port in %s", value)
	}

	raw, err := hexToBytes(addressPart)
	if err != nil {
		return "", 0, err
	}

	var ip net.IP
	switch len(raw) {
	case 4:
		ip = make(net.IP, 4)
		binary.LittleEndian.PutUint32(ip, binary.BigEndian.Uint32(raw))
	case 16:
		ip = make(net.IP, 16)
		for group := 0; group < 4; group++ {
			value := binary.BigEndian.Uint32(raw[group*4 : group*4+4])
			binary.LittleEndian.PutUint32(ip[group*4:group*4+4], value)
		}
	default:
		return "", 0, errors.Errorf("unexpected address length in %s", value)
	}
	return ip.String(), int(port), nil
}

func hexToBytes(value string) ([]byte, error) {
	if len(value)%2 != 0 {
		return nil, errors.Errorf("odd-length hex address %s", value)
	}
	raw := make([]byte, len(value)/2)
	for i := 0; i < len(raw); i++ {
		octet, err := strconv.ParseUint(value[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot parse hex address %s", value)
		}
		raw[i] = byte(octet)
	}
	return raw, nil
}
