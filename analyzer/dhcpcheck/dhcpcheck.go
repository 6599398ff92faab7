// Package dhcpcheck analyzes the state of a dnsmasq DHCP server from
// its lease database: pool utilization, lease expiry and clients
// holding addresses outside the configured pool.
package dhcpcheck

import (
	"context"
	"encoding/binary"
	"net/netip"
	"os"
	"sort"
	"time"

	"github.com/b0ch3nski/go-dnsmasq-utils/dnsmasq"
	human_duration "github.com/davidbanham/human_duration/v3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// A configured DHCP address pool.
type Pool struct {
	Start netip.Addr
	End   netip.Addr
}

// One active lease presented to the user.
type LeaseInfo struct {
	IPAddress  string `json:"ipAddress"`
	MACAddress string `json:"macAddress"`
	Hostname   string `json:"hostname,omitempty"`
	ExpiresIn  string `json:"expiresIn"`
	InPool     bool   `json:"inPool"`
}

// Pool utilization report.
type Report struct {
	PoolStart    string       `json:"poolStart"`
	PoolEnd      string       `json:"poolEnd"`
	PoolSize     int          `json:"poolSize"`
	Leased       int          `json:"leased"`
	Utilization  float64      `json:"utilization"`
	Leases       []*LeaseInfo `json:"leases"`
	OutsidePool  int          `json:"outsidePool"`
	ExpiringSoon int          `json:"expiringSoon"`
	Issues       []string     `json:"issues,omitempty"`
}

// Leases expiring within this window count as expiring soon.
const expiryWarningWindow = 15 * time.Minute

// Utilization above this fraction is reported as an issue.
const utilizationWarningThreshold = 0.9

// Parses a pool given as start and end addresses.
func NewPool(start, end string) (*Pool, error) {
	first, err := netip.ParseAddr(start)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid pool start %s", start)
	}
	last, err := netip.ParseAddr(end)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid pool end %s", end)
	}
	if !first.Is4() || !last.Is4() {
		return nil, errors.Errorf("pool %s-%s must be IPv4", start, end)
	}
	if last.Less(first) {
		return nil, errors.Errorf("pool end %s precedes start %s", end, start)
	}
	return &Pool{Start: first, End: last}, nil
}

// Number of addresses in the pool.
func (pool *Pool) Size() int {
	first := pool.Start.As4()
	last := pool.End.As4()
	return int(binary.BigEndian.Uint32(last[:])-binary.BigEndian.Uint32(first[:])) + 1
}

// Tells whether an address belongs to the pool.
func (pool *Pool) Contains(address netip.Addr) bool {
	return !address.Less(pool.Start) && !pool.End.Less(address)
}

// Analyzer inspects a dnsmasq lease database against a configured pool.
type Analyzer struct {
	leaseFile string
	pool      *Pool
	now       func() time.Time
}

func NewAnalyzer(leaseFile string, pool *Pool) *Analyzer {
	return &Analyzer{
		leaseFile: leaseFile,
		pool:      pool,
		now:       time.Now,
	}
}

// Reads the lease database. A missing file yields an empty lease set
// because dnsmasq creates it lazily.
func (analyzer *Analyzer) ReadLeases() ([]*dnsmasq.Lease, error) {
	file, err := os.Open(analyzer.leaseFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "cannot open lease file %s", analyzer.leaseFile)
	}
	defer file.Close()

	leases, err := dnsmasq.ReadLeases(file)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse lease file %s", analyzer.leaseFile)
	}
	return leases, nil
}

// Streams lease database updates into the channel until the context is
// cancelled.
func (analyzer *Analyzer) WatchLeases(ctx context.Context, leasesCh chan []*dnsmasq.Lease) error {
	log.WithField("file", analyzer.leaseFile).Info("watching lease database")
	return dnsmasq.WatchLeases(ctx, analyzer.leaseFile, leasesCh)
}

// Builds the pool utilization report from the current lease database.
func (analyzer *Analyzer) Analyze() (*Report, error) {
	leases, err := analyzer.ReadLeases()
	if err != nil {
		return nil, err
	}
	return analyzer.AnalyzeLeases(leases), nil
}

// Builds the pool utilization report from an already loaded lease set,
// e.g. one delivered by WatchLeases.
func (analyzer *Analyzer) AnalyzeLeases(leases []*dnsmasq.Lease) *Report {
	report := &Report{
		PoolStart: analyzer.pool.Start.String(),
		PoolEnd:   analyzer.pool.End.String(),
		PoolSize:  analyzer.pool.Size(),
	}

	now := analyzer.now()
	for _, lease := range leases {
		inPool := analyzer.pool.Contains(lease.IPAddr)
		info := &LeaseInfo{
			IPAddress:  lease.IPAddr.String(),
			MACAddress: lease.MacAddr.String(),
			Hostname:   lease.Hostname,
			ExpiresIn:  human_duration.ShortString(lease.Expires.Sub(now), human_duration.Minute),
			InPool:     inPool,
		}
		report.Leases = append(report.Leases, info)

		if inPool {
			report.Leased++
		} else {
			report.OutsidePool++
		}
		if remaining := lease.Expires.Sub(now); remaining > 0 && remaining < expiryWarningWindow {
			report.ExpiringSoon++
		}
	}
	sort.Slice(report.Leases, func(i, j int) bool {
		return report.Leases[i].IPAddress < report.Leases[j].IPAddress
	})

	if report.PoolSize > 0 {
		report.Utilization = float64(report.Leased) / float64(report.PoolSize)
	}
	report.Issues = detectIssues(report)
	return report
}

func detectIssues(report *Report) []string {
	var issues []string
	if report.Utilization >= utilizationWarningThreshold {
		issues = append(issues, "address pool almost exhausted; consider widening the range")
	}
	if report.OutsidePool > 0 {
		issues = append(issues, "leases exist outside the configured pool; static reservations or a stale range")
	}
	if report.ExpiringSoon > 0 {
		issues = append(issues, "leases expire shortly; clients should renew or churn is high")
	}
	return issues
}
