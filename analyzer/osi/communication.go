package osi

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// One layer's observation while talking to a live target.
type CommunicationStep struct {
	Layer  int    `json:"layer"`
	Name   string `json:"name"`
	Detail string `json:"detail"`
}

// The walkthrough of a real connection to a target, layer by layer.
type CommunicationReport struct {
	Target      string               `json:"target"`
	Port        int                  `json:"port"`
	Addresses   []string             `json:"addresses"`
	LocalAddr   string               `json:"localAddr"`
	RemoteAddr  string               `json:"remoteAddr"`
	ConnectTime string               `json:"connectTime"`
	HeaderBytes int                  `json:"headerBytes"`
	Steps       []*CommunicationStep `json:"steps"`
}

// Header sizes of a typical segment on an Ethernet network, without
// options.
const (
	ethernetHeaderBytes = 14
	ipHeaderBytes       = 20
	tcpHeaderBytes      = 20
)

// Walks a real connection down the stack: name resolution at the
// application layer, a TCP handshake at the transport layer and the
// header overhead every segment pays on its way to the wire.
func AnalyzeCommunication(target string, port int, timeout time.Duration) (*CommunicationReport, error) {
	report := &CommunicationReport{Target: target, Port: port}

	addresses, err := net.LookupHost(target)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve %s", target)
	}
	report.Addresses = addresses
	report.Steps = append(report.Steps, &CommunicationStep{
		Layer:  7,
		Name:   "Application",
		Detail: fmt.Sprintf("resolved %s to %s", target, strings.Join(addresses, ", ")),
	})

	start := time.Now()
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(target, strconv.Itoa(port)), timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to %s port %d", target, port)
	}
	defer conn.Close()

	report.ConnectTime = time.Since(start).Round(time.Microsecond).String()
	report.LocalAddr = conn.LocalAddr().String()
	report.RemoteAddr = conn.RemoteAddr().String()
	report.HeaderBytes = tcpHeaderBytes + ipHeaderBytes + ethernetHeaderBytes

	report.Steps = append(report.Steps,
		&CommunicationStep{
			Layer:  4,
			Name:   "Transport",
			Detail: fmt.Sprintf("TCP three-way handshake with port %d completed in %s", port, report.ConnectTime),
		},
		&CommunicationStep{
			Layer:  3,
			Name:   "Network",
			Detail: fmt.Sprintf("packets routed from %s to %s", report.LocalAddr, report.RemoteAddr),
		},
		&CommunicationStep{
			Layer:  2,
			Name:   "Data Link",
			Detail: fmt.Sprintf("each segment pays %d bytes of TCP, %d of IP and %d of Ethernet header, %d in total",
				tcpHeaderBytes, ipHeaderBytes, ethernetHeaderBytes, report.HeaderBytes),
		},
	)
	return report, nil
}
