package ipv4calc

import (
	"encoding/binary"
	"net"
	"sort"

	"github.com/apparentlymart/go-cidr/cidr"
	"github.com/pkg/errors"

	netlabutil "github.com/grimm00/networking-learning-sub003/util"
)

// A single VLSM allocation: the requested host count and the subnet that
// satisfies it.
type VLSMAllocation struct {
	RequestedHosts int          `json:"requestedHosts"`
	Subnet         *AddressInfo `json:"subnet"`
}

// Splits a network into at least count equally sized subnets.
func SplitIntoSubnets(network string, count int) ([]*AddressInfo, error) {
	if count < 1 {
		return nil, errors.New("the number of subnets must be positive")
	}
	_, base, err := net.ParseCIDR(network)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid network %s", network)
	}

	newBits := bitsForSubnets(count)
	ones, maskBits := base.Mask.Size()
	if ones+newBits > maskBits {
		return nil, errors.Errorf("cannot split %s into %d subnets", network, count)
	}

	subnets := make([]*AddressInfo, 0, count)
	for i := 0; i < count; i++ {
		subnet, err := cidr.Subnet(base, newBits, i)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot compute subnet %d of %s", i, network)
		}
		info, err := AnalyzeAddress(subnet.String())
		if err != nil {
			return nil, err
		}
		subnets = append(subnets, info)
	}
	return subnets, nil
}

// Splits a network into subnets that can each hold the given number of hosts.
func SplitByHostCount(network string, hosts int) ([]*AddressInfo, error) {
	if hosts < 1 {
		return nil, errors.New("the number of hosts must be positive")
	}
	_, base, err := net.ParseCIDR(network)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid network %s", network)
	}

	hostBits := bitsForHosts(hosts)
	ones, maskBits := base.Mask.Size()
	newPrefix := maskBits - hostBits
	if newPrefix < ones {
		return nil, errors.Errorf("network %s is too small for %d hosts per subnet", network, hosts)
	}

	newBits := newPrefix - ones
	count := 1 << newBits
	subnets := make([]*AddressInfo, 0, count)
	for i := 0; i < count; i++ {
		subnet, err := cidr.Subnet(base, newBits, i)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot compute subnet %d of %s", i, network)
		}
		info, err := AnalyzeAddress(subnet.String())
		if err != nil {
			return nil, err
		}
		subnets = append(subnets, info)
	}
	return subnets, nil
}

// Plans variable length subnets for a list of host requirements. The
// requirements are allocated largest first so the block boundaries stay
// aligned.
func PlanVLSM(network string, hostCounts []int) ([]*VLSMAllocation, error) {
	if len(hostCounts) == 0 {
		return nil, errors.New("at least one host requirement is needed")
	}
	_, base, err := net.ParseCIDR(network)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid network %s", network)
	}
	for _, hosts := range hostCounts {
		if hosts < 1 {
			return nil, errors.New("the number of hosts must be positive")
		}
	}

	requirements := make([]int, len(hostCounts))
	copy(requirements, hostCounts)
	sort.Sort(sort.Reverse(sort.IntSlice(requirements)))

	_, maskBits := base.Mask.Size()
	_, baseLast := cidr.AddressRange(base)

	var allocations []*VLSMAllocation
	var current *net.IPNet
	for _, hosts := range requirements {
		prefixLen := maskBits - bitsForHosts(hosts)
		if current == nil {
			first, _ := cidr.AddressRange(base)
			current = &net.IPNet{IP: first, Mask: net.CIDRMask(prefixLen, maskBits)}
		} else {
			next, exceeded := cidr.NextSubnet(current, prefixLen)
			if exceeded {
				return nil, errors.Errorf("network %s exhausted while planning VLSM", network)
			}
			current = next
		}

		_, allocLast := cidr.AddressRange(current)
		if !base.Contains(current.IP) || ipToUint32(allocLast) > ipToUint32(baseLast) {
			return nil, errors.Errorf("network %s is too small for the requested hosts", network)
		}

		info, err := AnalyzeAddress(current.String())
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, &VLSMAllocation{
			RequestedHosts: hosts,
			Subnet:         info,
		})
	}
	return allocations, nil
}

// Summarizes networks into the smallest common supernet. Bare
// addresses are accepted and treated as /32 networks.
func Summarize(networks []string) (string, error) {
	if len(networks) == 0 {
		return "", errors.New("at least one network is needed")
	}

	lowest := uint32(0xffffffff)
	highest := uint32(0)
	for _, network := range networks {
		network, err := netlabutil.MakeCIDR(network)
		if err != nil {
			return "", err
		}
		_, parsed, err := net.ParseCIDR(network)
		if err != nil {
			return "", errors.Wrapf(err, "invalid network %s", network)
		}
		if parsed.IP.To4() == nil {
			return "", errors.Errorf("%s is not an IPv4 network", network)
		}
		first, last := cidr.AddressRange(parsed)
		if ipToUint32(first) < lowest {
			lowest = ipToUint32(first)
		}
		if ipToUint32(last) > highest {
			highest = ipToUint32(last)
		}
	}

	// Shrink the prefix until it covers the whole range.
	prefixLen := 32
	for prefixLen > 0 {
		mask := uint32(0xffffffff) << (32 - prefixLen)
		if prefixLen == 32 {
			mask = 0xffffffff
		}
		if lowest&mask == highest&mask {
			break
		}
		prefixLen--
	}

	mask := net.CIDRMask(prefixLen, 32)
	supernet := &net.IPNet{IP: uint32ToIP(lowest).Mask(mask), Mask: mask}
	return supernet.String(), nil
}

func ipToUint32(ip net.IP) uint32 {
	return binary.BigEndian.Uint32(ip.To4())
}

func uint32ToIP(value uint32) net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, value)
	return ip
}
