package sockets

import (
	"sort"
)

// Builds the aggregated view used by the sockets report: counts by
// protocol and state plus the listening and established entries.
func Summarize(sockets []*Socket) *Summary {
	summary := &Summary{
		Total:      len(sockets),
		ByProtocol: map[string]int{},
		ByState:    map[string]int{},
	}
	for _, socket := range sockets {
		summary.ByProtocol[socket.Protocol]++
		summary.ByState[socket.State]++
		switch socket.State {
		case "LISTEN", "UNCONN":
			summary.Listening = append(summary.Listening, socket)
		case "ESTABLISHED":
			summary.Established = append(summary.Established, socket)
		case "TIME_WAIT":
			summary.TimeWait++
		}
	}
	sort.Slice(summary.Listening, func(i, j int) bool {
		return summary.Listening[i].LocalPort < summary.Listening[j].LocalPort
	})
	return summary
}

// Returns the distinct local ports with a TCP listener or a bound UDP
// socket, in ascending order.
func ListeningPorts(sockets []*Socket) []int {
	seen := map[int]bool{}
	for _, socket := range sockets {
		if socket.State == "LISTEN" || socket.State == "UNCONN" {
			seen[socket.LocalPort] = true
		}
	}
	ports := make([]int, 0, len(seen))
	for port := range seen {
		ports = append(ports, port)
	}
	sort.Ints(ports)
	return ports
}

// Tells whether any socket listens on the given TCP port.
func IsTCPPortListening(sockets []*Socket, port int) bool {
	for _, socket := range sockets {
		if socket.State == "LISTEN" && socket.LocalPort == port {
			return true
		}
	}
	return false
}
