package scan

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Ports scanned by the "common" shorthand. The selection mirrors the
// services deployed in the lab containers.
var commonPorts = []int{21, 22, 23, 25, 53, 80, 110, 123, 143, 443, 465, 587, 993, 995, 3000, 3306, 5432, 6379, 8080, 8081, 8443, 9090}

// Well known service names keyed by TCP port.
var serviceNames = map[int]string{
	21:   "ftp",
	22:   "ssh",
	23:   "telnet",
	25:   "smtp",
	53:   "domain",
	80:   "http",
	110:  "pop3",
	123:  "ntp",
	143:  "imap",
	443:  "https",
	465:  "smtps",
	587:  "submission",
	993:  "imaps",
	995:  "pop3s",
	3000: "grafana",
	3306: "mysql",
	5432: "postgresql",
	6379: "redis",
	8080: "http-alt",
	8081: "http-alt",
	8443: "https-alt",
	9090: "prometheus",
}

// Returns the well known service name for a port or an empty string.
func ServiceName(port int) string {
	return serviceNames[port]
}

// Parses a port specification into a sorted, deduplicated port list.
// Accepts comma separated values and ranges, e.g. "80,443,8000-8010",
// and the "common" shorthand.
func ParsePorts(spec string) ([]int, error) {
	if strings.EqualFold(strings.TrimSpace(spec), "common") {
		ports := make([]int, len(commonPorts))
		copy(ports, commonPorts)
		return ports, nil
	}

	seen := map[int]bool{}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		first, last, isRange := strings.Cut(part, "-")
		begin, err := parsePort(first)
		if err != nil {
			return nil, err
		}
		end := begin
		if isRange {
			end, err = parsePort(last)
			if err != nil {
				return nil, err
			}
			if end < begin {
				return nil, errors.Errorf("invalid port range %s", part)
			}
		}
		for port := begin; port <= end; port++ {
			seen[port] = true
		}
	}
	if len(seen) == 0 {
		return nil, errors.Errorf("no ports in specification %s", spec)
	}

	ports := make([]int, 0, len(seen))
	for port := range seen {
		ports = append(ports, port)
	}
	sort.Ints(ports)
	return ports, nil
}

func parsePort(value string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || port < 1 || port > 65535 {
		return 0, errors.Errorf("invalid port %s", value)
	}
	return port, nil
}
