package osi

import (
	"fmt"
	"strings"
)

// One step of the encapsulation walkthrough.
type EncapsulationStep struct {
	Layer       int    `json:"layer"`
	Name        string `json:"name"`
	Unit        string `json:"unit"`
	Header      string `json:"header"`
	Description string `json:"description"`
}

// Builds the encapsulation chain for an application protocol: which
// headers wrap the payload on its way down the stack. Layers 6 and 5
// are folded into the application step because the TCP/IP suite does
// not materialize them as separate headers.
func Encapsulate(protocol string) ([]*EncapsulationStep, error) {
	info, ok := protocols[strings.ToLower(protocol)]
	if !ok || info.layer != 7 {
		return nil, fmt.Errorf("cannot encapsulate %s: not an application protocol", protocol)
	}

	transport := strings.ToUpper(info.transport)
	steps := []*EncapsulationStep{
		{
			Layer:       7,
			Name:        "Application",
			Unit:        "data",
			Header:      strings.ToUpper(protocol) + " message",
			Description: fmt.Sprintf("the %s payload produced by the application", strings.ToUpper(protocol)),
		},
		{
			Layer:       4,
			Name:        "Transport",
			Unit:        "segment",
			Header:      transport + " header",
			Description: fmt.Sprintf("adds source and destination ports; %s targets port %d", transport, info.port),
		},
		{
			Layer:       3,
			Name:        "Network",
			Unit:        "packet",
			Header:      "IP header",
			Description: "adds source and destination IP addresses, TTL and the transport protocol number",
		},
		{
			Layer:       2,
			Name:        "Data Link",
			Unit:        "frame",
			Header:      "Ethernet header and trailer",
			Description: "adds source and destination MAC addresses and the frame check sequence",
		},
		{
			Layer:       1,
			Name:        "Physical",
			Unit:        "bits",
			Header:      "line encoding",
			Description: "the frame leaves the interface as an encoded bit stream",
		},
	}
	return steps, nil
}
