package iface

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// A single kernel routing table entry.
type Route struct {
	Destination string `json:"destination"`
	Gateway     string `json:"gateway,omitempty"`
	Interface   string `json:"interface"`
	Metric      int    `json:"metric"`
	IsDefault   bool   `json:"isDefault"`
}

const procNetRoute = "/proc/net/route"

// Reads the IPv4 routing table from /proc/net/route.
func (a *Analyzer) Routes() ([]*Route, error) {
	file, err := os.Open(procNetRoute)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %s", procNetRoute)
	}
	defer file.Close()
	return parseRoutes(file)
}

// Parses the /proc/net/route format: hex little-endian destination,
// gateway and mask columns, decimal metric.
func parseRoutes(reader io.Reader) ([]*Route, error) {
	var routes []*Route
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
		if len(fields) < 8 {
			continue
		}

		destination, err := parseHexIP(fields[1])
		if err != nil {
			return nil, errors.WithMessagef(err, "invalid destination in route entry %s", line)
		}
		gateway, err := parseHexIP(fields[2])
		if err != nil {
			return nil, errors.WithMessagef(err, "invalid gateway in route entry %s", line)
		}
		mask, err := parseHexIP(fields[7])
		if err != nil {
			return nil, errors.WithMessagef(err, "invalid mask in route entry %s", line)
		}
		metric, err := strconv.Atoi(fields[6])
		if err != nil {
			metric = 0
		}

		ones, _ := net.IPMask(mask).Size()
		route := &Route{
			Destination: (&net.IPNet{IP: destination, Mask: net.IPMask(mask)}).String(),
			Interface:   fields[0],
			Metric:      metric,
			IsDefault:   destination.Equal(net.IPv4zero.To4()) && ones == 0,
		}
		if route.IsDefault {
			route.Destination = "default"
		}
		if !gateway.Equal(net.IPv4zero.To4()) {
			route.Gateway = gateway.String()
		}
		routes = append(routes, route)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "cannot read routing table")
	}
	return routes, nil
}

// Decodes the zero-padded little-endian hex IP used by /proc/net/route.
func parseHexIP(value string) (net.IP, error) {
	raw, err := strconv.ParseUint(value, 16, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse %s as a hex IP address", value)
	}
	ip := make(net.IP, 4)
	binary.LittleEndian.PutUint32(ip, uint32(raw))
	return ip, nil
}

// Returns the default route or nil when the host has none.
func DefaultRoute(routes []*Route) *Route {
	for _, route := range routes {
		if route.IsDefault {
			return route
		}
	}
	return nil
}
