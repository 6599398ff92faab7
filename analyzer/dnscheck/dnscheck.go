// Package dnscheck analyzes DNS records and troubleshoots resolution
// issues: per-record-type lookups, reverse lookups, propagation across
// public resolvers and query latency statistics.
package dnscheck

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/miekg/dns"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// The record types inspected by a full domain analysis.
var analyzedRecordTypes = []uint16{
	dns.TypeA,
	dns.TypeAAAA,
	dns.TypeMX,
	dns.TypeNS,
	dns.TypeTXT,
	dns.TypeSOA,
	dns.TypeCNAME,
}

// Public resolvers queried by the propagation check.
var propagationResolvers = []string{
	"8.8.8.8",
	"1.1.1.1",
	"9.9.9.9",
	"208.67.222.222",
}

const defaultQueryTimeout = 5 * time.Second

// Outcome of a single query for one record type.
type Lookup struct {
	RecordType   string        `json:"recordType"`
	Records      []string      `json:"records"`
	Rcode        string        `json:"rcode"`
	ResponseTime time.Duration `json:"responseTime"`
}

// Full analysis of a domain against one resolver.
type Report struct {
	Domain  string             `json:"domain"`
	Server  string             `json:"server"`
	Lookups map[string]*Lookup `json:"lookups"`
	Issues  []string           `json:"issues"`
}

// Answers of one resolver during a propagation check.
type PropagationResult struct {
	Server    string   `json:"server"`
	Addresses []string `json:"addresses"`
	Err       string   `json:"error,omitempty"`
}

// Latency statistics over repeated queries.
type PerformanceStats struct {
	Queries int           `json:"queries"`
	Failed  int           `json:"failed"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Avg     time.Duration `json:"avg"`
}

// Analyzer performs DNS queries against a chosen resolver.
type Analyzer struct {
	server string
	client *dns.Client
}

// Creates an analyzer. When server is empty, the first system resolver
// from /etc/resolv.conf is used. The server may carry an optional port.
func NewAnalyzer(server string) (*Analyzer, error) {
	if server == "" {
		config, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil || len(config.Servers) == 0 {
			return nil, errors.New("no DNS server specified and no system resolver found")
		}
		server = net.JoinHostPort(config.Servers[0], config.Port)
	} else if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}

	return &Analyzer{
		server: server,
		client: &dns.Client{Timeout: defaultQueryTimeout},
	}, nil
}

// Returns the resolver address used by the analyzer.
func (a *Analyzer) Server() string {
	return a.server
}

// Queries a single record type for a domain.
func (a *Analyzer) Lookup(domain string, recordType uint16) (*Lookup, error) {
	message := new(dns.Msg)
	message.SetQuestion(dns.Fqdn(domain), recordType)
	message.RecursionDesired = true

	response, rtt, err := a.client.Exchange(message, a.server)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s %s @%s failed", domain, dns.TypeToString[recordType], a.server)
	}

	lookup := &Lookup{
		RecordType:   dns.TypeToString[recordType],
		Rcode:        dns.RcodeToString[response.Rcode],
		ResponseTime: rtt,
	}
	for _, answer := range response.Answer {
		lookup.Records = append(lookup.Records, formatRecord(answer))
	}
	return lookup, nil
}

// Performs a reverse (PTR) lookup of an IP address.
func (a *Analyzer) Reverse(address string) (*Lookup, error) {
	reverse, err := dns.ReverseAddr(address)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot build reverse name for %s", address)
	}

	message := new(dns.Msg)
	message.SetQuestion(reverse, dns.TypePTR)
	message.RecursionDesired = true

	response, rtt, err := a.client.Exchange(message, a.server)
	if err != nil {
		return nil, errors.Wrapf(err, "reverse query for %s @%s failed", address, a.server)
	}

	lookup := &Lookup{
		RecordType:   "PTR",
		Rcode:        dns.RcodeToString[response.Rcode],
		ResponseTime: rtt,
	}
	for _, answer := range response.Answer {
		lookup.Records = append(lookup.Records, formatRecord(answer))
	}
	return lookup, nil
}

// Runs the full record-type sweep for a domain and derives issues from
// the answers.
func (a *Analyzer) AnalyzeDomain(domain string) (*Report, error) {
	if !govalidator.IsDNSName(domain) {
		return nil, errors.Errorf("%s is not a valid domain name", domain)
	}

	report := &Report{
		Domain:  domain,
		Server:  a.server,
		Lookups: make(map[string]*Lookup),
	}

	for _, recordType := range analyzedRecordTypes {
		lookup, err := a.Lookup(domain, recordType)
		if err != nil {
			log.WithError(err).Debugf("Lookup of %s records failed", dns.TypeToString[recordType])
			report.Issues = append(report.Issues, fmt.Sprintf("%s query failed: %s", dns.TypeToString[recordType], err))
			continue
		}
		report.Lookups[lookup.RecordType] = lookup
	}

	report.Issues = append(report.Issues, detectIssues(report)...)
	return report, nil
}

// Queries the domain's A records on each public resolver and tells
// whether the answers are consistent.
func (a *Analyzer) CheckPropagation(domain string) ([]*PropagationResult, bool) {
	var results []*PropagationResult
	answerSets := make(map[string]bool)

	for _, resolver := range propagationResolvers {
		peer := &Analyzer{
			server: net.JoinHostPort(resolver, "53"),
			client: a.client,
		}
		result := &PropagationResult{Server: resolver}
		lookup, err := peer.Lookup(domain, dns.TypeA)
		if err != nil {
			result.Err = err.Error()
		} else {
			result.Addresses = extractAddresses(lookup.Records)
			answerSets[strings.Join(result.Addresses, ",")] = true
		}
		results = append(results, result)
	}

	return results, len(answerSets) == 1
}

// Repeats an A query to collect latency statistics.
func (a *Analyzer) MeasurePerformance(domain string, queries int) *PerformanceStats {
	stats := &PerformanceStats{Queries: queries}

	var total time.Duration
	for i := 0; i < queries; i++ {
		lookup, err := a.Lookup(domain, dns.TypeA)
		if err != nil {
			stats.Failed++
			continue
		}
		rtt := lookup.ResponseTime
		total += rtt
		if stats.Min == 0 || rtt < stats.Min {
			stats.Min = rtt
		}
		if rtt > stats.Max {
			stats.Max = rtt
		}
	}
	if succeeded := queries - stats.Failed; succeeded > 0 {
		stats.Avg = total / time.Duration(succeeded)
	}
	return stats
}

// Derives troubleshooting hints from a completed report.
func detectIssues(report *Report) []string {
	var issues []string

	if lookup, ok := report.Lookups["A"]; ok {
		switch {
		case lookup.Rcode == "NXDOMAIN":
			issues = append(issues, "domain does not exist (NXDOMAIN)")
		case lookup.Rcode == "SERVFAIL":
			issues = append(issues, "resolver reported a server failure (SERVFAIL)")
		case lookup.Rcode == "NOERROR" && len(lookup.Records) == 0:
			issues = append(issues, "no A records: domain resolves to no IPv4 address")
		}
	}
	if lookup, ok := report.Lookups["NS"]; ok && lookup.Rcode == "NOERROR" && len(lookup.Records) == 0 {
		issues = append(issues, "no NS records returned: delegation cannot be verified")
	}
	if lookup, ok := report.Lookups["MX"]; ok && lookup.Rcode == "NOERROR" && len(lookup.Records) == 0 {
		issues = append(issues, "no MX records: mail for this domain is not deliverable")
	}
	return issues
}

// Renders a resource record without the name/TTL/class prefix.
func formatRecord(rr dns.RR) string {
	full := rr.String()
	header := rr.Header().String()
	return strings.TrimSpace(strings.TrimPrefix(full, header))
}

// Picks plain addresses out of A record values.
func extractAddresses(records []string) []string {
	var addresses []string
	for _, record := range records {
		if net.ParseIP(record) != nil {
			addresses = append(addresses, record)
		}
	}
	return addresses
}
