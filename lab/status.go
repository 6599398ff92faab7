package lab

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	netlabutil "github.com/grimm00/networking-learning-sub003/util"
)

// State of one container in the exercise environment.
type ContainerStatus struct {
	Name    string `json:"name"`
	Service string `json:"service"`
	State   string `json:"state"`
	Health  string `json:"health,omitempty"`
	Running bool   `json:"running"`
}

// Shape of one line of `docker compose ps --format json` output.
type composePSEntry struct {
	Name    string `json:"Name"`
	Service string `json:"Service"`
	State   string `json:"State"`
	Health  string `json:"Health"`
}

// Reads the state of the containers behind a compose file by invoking
// docker compose through the command runner.
func ContainerStatuses(commander netlabutil.Commander, composeFile string) ([]*ContainerStatus, error) {
	args := []string{"compose"}
	if composeFile != "" {
		args = append(args, "-f", composeFile)
	}
	args = append(args, "ps", "--all", "--format", "json")

	output, err := commander.Output("docker", args...)
	if err != nil {
		return nil, errors.Wrap(err, "problem listing compose containers")
	}

	// Depending on the compose version the output is either one JSON
	// object per line or a single JSON array.
	var statuses []*ContainerStatus
	trimmed := strings.TrimSpace(string(output))
	if strings.HasPrefix(trimmed, "[") {
		var entries []composePSEntry
		if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
			return nil, errors.Wrap(err, "cannot parse compose container list")
		}
		for _, entry := range entries {
			statuses = append(statuses, newContainerStatus(entry))
		}
		return statuses, nil
	}

	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry composePSEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, errors.Wrap(err, "cannot parse compose container list")
		}
		statuses = append(statuses, newContainerStatus(entry))
	}
	return statuses, nil
}

func newContainerStatus(entry composePSEntry) *ContainerStatus {
	return &ContainerStatus{
		Name:    entry.Name,
		Service: entry.Service,
		State:   entry.State,
		Health:  entry.Health,
		Running: entry.State == "running",
	}
}

// Compares the running containers against the topology's expectations.
// Returns the services whose containers are missing or stopped.
func VerifyContainers(topology *Topology, statuses []*ContainerStatus) []string {
	running := map[string]bool{}
	for _, status := range statuses {
		if status.Running {
			running[status.Service] = true
			running[status.Name] = true
		}
	}

	var stopped []string
	for _, service := range topology.Services {
		if service.Container == "" || service.Optional {
			continue
		}
		if !running[service.Container] {
			stopped = append(stopped, service.Container)
			log.WithFields(log.Fields{
				"topology":  topology.Name,
				"container": service.Container,
			}).Warn("expected container is not running")
		}
	}
	return stopped
}
