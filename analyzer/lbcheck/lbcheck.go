// Package lbcheck probes an HTTP load balancer from the outside: it
// samples the frontend to measure how requests spread over backends
// and checks each backend's health endpoint directly.
package lbcheck

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

// Response headers that identify the backend that served a request.
var backendHeaders = []string{"X-Backend", "X-Served-By", "X-Upstream", "X-Server-ID"}

// Distribution of frontend requests over backends.
type DistributionReport struct {
	Frontend        string         `json:"frontend"`
	Samples         int            `json:"samples"`
	Failures        int            `json:"failures"`
	Backends        map[string]int `json:"backends"`
	Distribution    string         `json:"distribution"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// Health of a single backend probed directly.
type BackendStatus struct {
	URL        string        `json:"url"`
	Healthy    bool          `json:"healthy"`
	StatusCode int           `json:"statusCode,omitempty"`
	Latency    time.Duration `json:"latency"`
	Error      string        `json:"error,omitempty"`
}

// A wrapper for the REST client probing frontends and backends.
type Checker struct {
	innerClient *resty.Client
}

// Instantiates the load balancer checker.
func NewChecker() *Checker {
	return &Checker{
		innerClient: resty.New(),
	}
}

// Sets custom timeout for REST client requests.
func (checker *Checker) SetRequestTimeout(timeout time.Duration) {
	checker.innerClient.SetTimeout(timeout)
}

// Samples the frontend URL repeatedly and attributes each response to a
// backend using the identifying response headers. Sessions are not
// reused between samples so cookie based stickiness does not mask the
// balancing algorithm.
func (checker *Checker) ProbeFrontend(url string, samples int) (*DistributionReport, error) {
	if samples <= 0 {
		samples = 10
	}
	report := &DistributionReport{
		Frontend: url,
		Samples:  samples,
		Backends: map[string]int{},
	}

	for i := 0; i < samples; i++ {
		response, err := checker.innerClient.R().Get(url)
		if err != nil || response.StatusCode() >= http.StatusInternalServerError {
			report.Failures++
			continue
		}
		report.Backends[backendIdentity(response)]++
	}

	report.Distribution = classifyDistribution(report)
	report.Recommendations = recommend(report)

	log.WithFields(log.Fields{
		"frontend": url,
		"backends": len(report.Backends),
		"failures": report.Failures,
	}).Info("frontend probing finished")
	return report, nil
}

// Probes each backend's health endpoint directly.
func (checker *Checker) CheckBackends(urls []string) []*BackendStatus {
	statuses := make([]*BackendStatus, 0, len(urls))
	for _, url := range urls {
		status := &BackendStatus{URL: url}
		started := time.Now()
		response, err := checker.innerClient.R().Get(url)
		status.Latency = time.Since(started)
		if err != nil {
			status.Error = err.Error()
		} else {
			status.StatusCode = response.StatusCode()
			status.Healthy = response.StatusCode() < http.StatusInternalServerError
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// Extracts the backend identity from the response headers. Responses
// without any identifying header fall into a shared bucket.
func backendIdentity(response *resty.Response) string {
	for _, header := range backendHeaders {
		if value := response.Header().Get(header); value != "" {
			return value
		}
	}
	return "(unidentified)"
}

// Names the observed balancing behavior.
func classifyDistribution(report *DistributionReport) string {
	succeeded := report.Samples - report.Failures
	switch {
	case succeeded == 0:
		return "unreachable"
	case len(report.Backends) == 1:
		return "single backend or sticky sessions"
	}

	counts := make([]int, 0, len(report.Backends))
	for _, count := range report.Backends {
		counts = append(counts, count)
	}
	sort.Ints(counts)
	// A spread of at most one request between the busiest and the
	// least busy backend looks like round robin.
	if counts[len(counts)-1]-counts[0] <= 1 {
		return "even, round robin like"
	}
	return "uneven, weighted or least connections"
}

func recommend(report *DistributionReport) []string {
	var recommendations []string
	if report.Failures > 0 {
		recommendations = append(recommendations, "some requests failed; check backend health and timeouts")
	}
	if report.Distribution == "single backend or sticky sessions" && report.Samples > 1 {
		recommendations = append(recommendations, "all requests hit one backend; verify the others are enabled in the pool")
	}
	if _, ok := report.Backends["(unidentified)"]; ok {
		recommendations = append(recommendations, "backends do not identify themselves; add an X-Backend response header to make balancing observable")
	}
	return recommendations
}
