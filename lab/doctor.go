package lab

import (
	"os"
	"strings"

	netlabutil "github.com/grimm00/networking-learning-sub003/util"
)

// Tools every exercise relies on regardless of topology.
var baseTools = []string{"docker", "ip", "ping"}

// Outcome of a single environment check.
type DoctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Details string `json:"details,omitempty"`
}

// Outcome of the full environment validation.
type DoctorReport struct {
	Checks  []*DoctorCheck `json:"checks"`
	Failed  int            `json:"failed"`
	Healthy bool           `json:"healthy"`
}

// Validates that the host can run the exercises: required tools are on
// PATH, the docker daemon answers, the compose plugin is installed and
// the kernel socket tables are readable. Extra tools from the topology
// are checked too when one is given.
func Doctor(commander netlabutil.Commander, topology *Topology) *DoctorReport {
	report := &DoctorReport{}

	tools := append([]string{}, baseTools...)
	if topology != nil {
		tools = append(tools, topology.Tools...)
	}
	for _, tool := range tools {
		check := &DoctorCheck{Name: "tool: " + tool}
		if path, err := commander.LookPath(tool); err != nil {
			check.Details = "not found on PATH"
		} else {
			check.OK = true
			check.Details = path
		}
		report.Checks = append(report.Checks, check)
	}

	report.Checks = append(report.Checks, checkDockerDaemon(commander))
	report.Checks = append(report.Checks, checkComposePlugin(commander))
	report.Checks = append(report.Checks, checkProcNet())

	for _, check := range report.Checks {
		if !check.OK {
			report.Failed++
		}
	}
	report.Healthy = report.Failed == 0
	return report
}

func checkDockerDaemon(commander netlabutil.Commander) *DoctorCheck {
	check := &DoctorCheck{Name: "docker daemon"}
	output, err := commander.Output("docker", "info", "--format", "{{.ServerVersion}}")
	if err != nil {
		check.Details = "daemon not reachable; is the docker service running and the user in the docker group?"
		return check
	}
	check.OK = true
	check.Details = "server version " + strings.TrimSpace(string(output))
	return check
}

func checkComposePlugin(commander netlabutil.Commander) *DoctorCheck {
	check := &DoctorCheck{Name: "docker compose"}
	output, err := commander.Output("docker", "compose", "version", "--short")
	if err != nil {
		check.Details = "compose plugin not installed"
		return check
	}
	check.OK = true
	check.Details = "version " + strings.TrimSpace(string(output))
	return check
}

func checkProcNet() *DoctorCheck {
	check := &DoctorCheck{Name: "socket tables"}
	if _, err := os.Stat("/proc/net/tcp"); err != nil {
		check.Details = "/proc/net/tcp is not readable"
		return check
	}
	check.OK = true
	check.Details = "/proc/net is readable"
	return check
}
