// Package ipv4calc provides IPv4 addressing and subnetting calculations
// used by the lab exercises: address breakdowns, subnet splitting, VLSM
// planning and route summarization.
package ipv4calc

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"net"
	"strings"

	"github.com/apparentlymart/go-cidr/cidr"
	"github.com/pkg/errors"
)

// Detailed breakdown of an IPv4 address or prefix.
type AddressInfo struct {
	Address          string `json:"address"`
	PrefixLength     int    `json:"prefixLength"`
	SubnetMask       string `json:"subnetMask"`
	WildcardMask     string `json:"wildcardMask"`
	NetworkAddress   string `json:"networkAddress"`
	BroadcastAddress string `json:"broadcastAddress"`
	FirstHost        string `json:"firstHost"`
	LastHost         string `json:"lastHost"`
	TotalAddresses   uint64 `json:"totalAddresses"`
	UsableHosts      uint64 `json:"usableHosts"`
	IsPrivate        bool   `json:"isPrivate"`
	IsLoopback       bool   `json:"isLoopback"`
	IsLinkLocal      bool   `json:"isLinkLocal"`
	IsMulticast      bool   `json:"isMulticast"`
	Class            string `json:"class"`
	Binary           string `json:"binary"`
	Hex              string `json:"hex"`
}

// Analyzes an IPv4 address or prefix. A bare address is treated as a /32.
func AnalyzeAddress(address string) (*AddressInfo, error) {
	if !strings.Contains(address, "/") {
		address += "/32"
	}
	ip, network, err := net.ParseCIDR(address)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid IPv4 address or prefix %s", address)
	}
	ip = ip.To4()
	if ip == nil {
		return nil, errors.Errorf("%s is not an IPv4 address", address)
	}

	ones, _ := network.Mask.Size()
	first, last := cidr.AddressRange(network)
	total := cidr.AddressCount(network)

	info := &AddressInfo{
		Address:          ip.String(),
		PrefixLength:     ones,
		SubnetMask:       net.IP(network.Mask).String(),
		WildcardMask:     wildcardMask(network.Mask),
		NetworkAddress:   first.String(),
		BroadcastAddress: last.String(),
		FirstHost:        "N/A",
		LastHost:         "N/A",
		TotalAddresses:   total,
		IsPrivate:        ip.IsPrivate(),
		IsLoopback:       ip.IsLoopback(),
		IsLinkLocal:      ip.IsLinkLocalUnicast(),
		IsMulticast:      ip.IsMulticast(),
		Class:            addressClass(ip),
		Binary:           toBinary(ip),
		Hex:              fmt.Sprintf("%08X", binary.BigEndian.Uint32(ip)),
	}

	// A /31 and /32 have no network/broadcast split, hence no usable range.
	if total > 2 {
		info.UsableHosts = total - 2
		firstHost, err := cidr.Host(network, 1)
		if err != nil {
			return nil, errors.Wrap(err, "cannot determine first host")
		}
		lastHost, err := cidr.Host(network, int(total-2))
		if err != nil {
			return nil, errors.Wrap(err, "cannot determine last host")
		}
		info.FirstHost = firstHost.String()
		info.LastHost = lastHost.String()
	}

	return info, nil
}

// Returns the historical class of an IPv4 address (A-E).
func addressClass(ip net.IP) string {
	switch firstOctet := ip.To4()[0]; {
	case firstOctet >= 1 && firstOctet <= 126:
		return "A"
	case firstOctet == 127:
		return "A (Loopback)"
	case firstOctet >= 128 && firstOctet <= 191:
		return "B"
	case firstOctet >= 192 && firstOctet <= 223:
		return "C"
	case firstOctet >= 224 && firstOctet <= 239:
		return "D (Multicast)"
	case firstOctet >= 240:
		return "E (Reserved)"
	default:
		return "Unknown"
	}
}

// Renders the address as dotted binary octets.
func toBinary(ip net.IP) string {
	octets := make([]string, 4)
	for i, octet := range ip.To4() {
		octets[i] = fmt.Sprintf("%08b", octet)
	}
	return strings.Join(octets, ".")
}

// Returns the wildcard (inverse) mask for a network mask.
func wildcardMask(mask net.IPMask) string {
	wildcard := make(net.IP, len(mask))
	for i, octet := range mask {
		wildcard[i] = ^octet
	}
	return wildcard.String()
}

// Number of subnet bits needed to carve the requested number of subnets.
func bitsForSubnets(count int) int {
	if count <= 1 {
		return 0
	}
	return bits.Len(uint(count - 1))
}

// Number of host bits needed to accommodate hosts plus the network and
// broadcast addresses.
func bitsForHosts(hosts int) int {
	return bits.Len(uint(hosts + 2 - 1))
}
