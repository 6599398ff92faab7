// Package scan implements a TCP connect scanner for discovering
// services on lab hosts. It probes ports concurrently with a bounded
// worker pool and annotates open ports with well known service names.
package scan

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Outcome of probing a single port.
type PortResult struct {
	Port    int           `json:"port"`
	Open    bool          `json:"open"`
	Service string        `json:"service,omitempty"`
	Latency time.Duration `json:"latency"`
}

// Outcome of scanning one host.
type Report struct {
	Target    string        `json:"target"`
	Address   string        `json:"address"`
	Hostnames []string      `json:"hostnames,omitempty"`
	Open      []*PortResult `json:"open"`
	Scanned   int           `json:"scanned"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Scanner probes TCP ports on a target host.
type Scanner struct {
	dialer  *net.Dialer
	workers int
}

// Default per-port connect timeout.
const defaultDialTimeout = 2 * time.Second

// Creates a scanner with the given worker pool size. A non-positive
// size falls back to a sensible default.
func NewScanner(workers int) *Scanner {
	if workers <= 0 {
		workers = 64
	}
	return &Scanner{
		dialer:  &net.Dialer{Timeout: defaultDialTimeout},
		workers: workers,
	}
}

// Probes a single port. Returns the result even when the port is
// closed so callers can count attempts.
func (scanner *Scanner) probe(ctx context.Context, target string, port int) *PortResult {
	result := &PortResult{Port: port}
	address := net.JoinHostPort(target, fmt.Sprint(port))

	started := time.Now()
	conn, err := scanner.dialer.DialContext(ctx, "tcp", address)
	result.Latency = time.Since(started)
	if err != nil {
		return result
	}
	conn.Close()

	result.Open = true
	result.Service = ServiceName(port)
	return result
}

// Scans the given ports on the target and returns the open ones. The
// target is resolved once up front; scanning is aborted when the
// context is cancelled, returning whatever was gathered so far.
func (scanner *Scanner) Scan(ctx context.Context, target string, ports []int) (*Report, error) {
	report := &Report{
		Target:  target,
		Scanned: len(ports),
	}

	addresses, err := net.DefaultResolver.LookupHost(ctx, target)
	if err != nil {
		return nil, err
	}
	report.Address = addresses[0]

	// Reverse lookup is best effort.
	if names, err := net.DefaultResolver.LookupAddr(ctx, report.Address); err == nil {
		report.Hostnames = names
	}

	log.WithFields(log.Fields{
		"target": target,
		"ports":  len(ports),
	}).Info("starting port scan")

	started := time.Now()
	jobs := make(chan int)
	results := make(chan *PortResult)

	var wg sync.WaitGroup
	for i := 0; i < scanner.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for port := range jobs {
				results <- scanner.probe(ctx, report.Address, port)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, port := range ports {
			select {
			case jobs <- port:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for result := range results {
		if result.Open {
			report.Open = append(report.Open, result)
		}
	}
	report.Elapsed = time.Since(started)

	sort.Slice(report.Open, func(i, j int) bool {
		return report.Open[i].Port < report.Open[j].Port
	})

	log.WithFields(log.Fields{
		"target":  target,
		"open":    len(report.Open),
		"elapsed": report.Elapsed,
	}).Info("port scan finished")

	return report, ctx.Err()
}
