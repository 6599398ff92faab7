// Package moncheck validates a lab monitoring stack: it checks that
// Prometheus is healthy and scraping its targets and that Grafana
// answers on its health endpoint with a working database.
package moncheck

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// One Prometheus scrape target.
type Target struct {
	Job       string `json:"job"`
	Instance  string `json:"instance"`
	Health    string `json:"health"`
	LastError string `json:"lastError,omitempty"`
}

// The state of a Prometheus server.
type PrometheusStatus struct {
	URL      string    `json:"url"`
	Healthy  bool      `json:"healthy"`
	Targets  []*Target `json:"targets"`
	Up       int       `json:"up"`
	Down     int       `json:"down"`
	Issues   []string  `json:"issues,omitempty"`
}

// The state of a Grafana server.
type GrafanaStatus struct {
	URL      string `json:"url"`
	Healthy  bool   `json:"healthy"`
	Version  string `json:"version,omitempty"`
	Database string `json:"database,omitempty"`
}

// Shape of the Prometheus /api/v1/targets response.
type targetsResponse struct {
	Status string `json:"status"`
	Data   struct {
		ActiveTargets []struct {
			Labels    map[string]string `json:"labels"`
			Health    string            `json:"health"`
			LastError string            `json:"lastError"`
		} `json:"activeTargets"`
	} `json:"data"`
}

// Shape of the Grafana /api/health response.
type grafanaHealthResponse struct {
	Version  string `json:"version"`
	Database string `json:"database"`
}

// A wrapper for the REST client probing the monitoring stack.
type Checker struct {
	innerClient *resty.Client
}

// Instantiates the monitoring stack checker.
func NewChecker() *Checker {
	return &Checker{
		innerClient: resty.New(),
	}
}

// Sets custom timeout for REST client requests.
func (checker *Checker) SetRequestTimeout(timeout time.Duration) {
	checker.innerClient.SetTimeout(timeout)
}

// Checks the Prometheus health endpoint and fetches the active scrape
// targets.
func (checker *Checker) CheckPrometheus(url string) (*PrometheusStatus, error) {
	url = strings.TrimSuffix(url, "/")
	status := &PrometheusStatus{URL: url}

	response, err := checker.innerClient.R().Get(url + "/-/healthy")
	if err != nil {
		return nil, errors.WithMessagef(err, "problem checking Prometheus health at %s", url)
	}
	status.Healthy = response.StatusCode() == http.StatusOK
	if !status.Healthy {
		status.Issues = append(status.Issues, "health endpoint did not answer with 200")
		return status, nil
	}

	response, err = checker.innerClient.R().Get(url + "/api/v1/targets")
	if err != nil {
		return nil, errors.WithMessagef(err, "problem fetching Prometheus targets from %s", url)
	}
	var targets targetsResponse
	if err = json.Unmarshal(response.Body(), &targets); err != nil {
		return nil, errors.Wrapf(err, "cannot parse Prometheus targets response from %s", url)
	}

	for _, active := range targets.Data.ActiveTargets {
		target := &Target{
			Job:       active.Labels["job"],
			Instance:  active.Labels["instance"],
			Health:    active.Health,
			LastError: active.LastError,
		}
		status.Targets = append(status.Targets, target)
		if active.Health == "up" {
			status.Up++
		} else {
			status.Down++
		}
	}

	if len(status.Targets) == 0 {
		status.Issues = append(status.Issues, "no scrape targets configured")
	}
	if status.Down > 0 {
		status.Issues = append(status.Issues, "some scrape targets are down")
	}
	return status, nil
}

// Checks the Grafana health endpoint.
func (checker *Checker) CheckGrafana(url string) (*GrafanaStatus, error) {
	url = strings.TrimSuffix(url, "/")
	status := &GrafanaStatus{URL: url}

	response, err := checker.innerClient.R().Get(url + "/api/health")
	if err != nil {
		return nil, errors.WithMessagef(err, "problem checking Grafana health at %s", url)
	}
	if response.StatusCode() != http.StatusOK {
		return status, nil
	}

	var health grafanaHealthResponse
	if err = json.Unmarshal(response.Body(), &health); err != nil {
		return nil, errors.Wrapf(err, "cannot parse Grafana health response from %s", url)
	}
	status.Version = health.Version
	status.Database = health.Database
	status.Healthy = health.Database == "ok"
	return status, nil
}
