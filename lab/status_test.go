package lab

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// Canned command runner used in place of the real docker binary.
type testCommander struct {
	outputs  map[string]string
	missing  map[string]bool
	failures map[string]bool
}

func newTestCommander() *testCommander {
	return &testCommander{
		outputs:  map[string]string{},
		missing:  map[string]bool{},
		failures: map[string]bool{},
	}
}

func (c *testCommander) Output(command string, args ...string) ([]byte, error) {
	key := command + " " + strings.Join(args, " ")
	if c.failures[key] {
		return nil, errors.Errorf("command %s failed", key)
	}
	return []byte(c.outputs[key]), nil
}

func (c *testCommander) LookPath(file string) (string, error) {
	if c.missing[file] {
		return "", errors.Errorf("%s not found", file)
	}
	return "/usr/bin/" + file, nil
}

func TestContainerStatuses(t *testing.T) {
	commander := newTestCommander()
	commander.outputs["docker compose -f dc.yml ps --all --format json"] = `{"Name": "dns-server", "Service": "resolver", "State": "running", "Health": "healthy"}
{"Name": "web-server", "Service": "web", "State": "exited", "Health": ""}`

	statuses, err := ContainerStatuses(commander, "dc.yml")
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	require.True(t, statuses[0].Running)
	require.EqualValues(t, "healthy", statuses[0].Health)
	require.False(t, statuses[1].Running)
}

func TestContainerStatusesArrayOutput(t *testing.T) {
	commander := newTestCommander()
	commander.outputs["docker compose ps --all --format json"] = `[{"Name": "dns-server", "Service": "resolver", "State": "running"}]`

	statuses, err := ContainerStatuses(commander, "")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.EqualValues(t, "dns-server", statuses[0].Name)
}

func TestContainerStatusesCommandFailure(t *testing.T) {
	commander := newTestCommander()
	commander.failures["docker compose ps --all --format json"] = true

	_, err := ContainerStatuses(commander, "")
	require.Error(t, err)
}

func TestVerifyContainers(t *testing.T) {
	topology, err := ParseTopology([]byte(topologyFixture))
	require.NoError(t, err)

	statuses := []*ContainerStatus{
		{Name: "dns-server", Service: "resolver", State: "running", Running: true},
		{Name: "web-server", Service: "web", State: "exited"},
	}

	stopped := VerifyContainers(topology, statuses)
	require.EqualValues(t, []string{"web-server"}, stopped)
}

func TestDoctor(t *testing.T) {
	commander := newTestCommander()
	commander.outputs["docker info --format {{.ServerVersion}}"] = "27.1.1\n"
	commander.outputs["docker compose version --short"] = "2.29.0\n"

	report := Doctor(commander, nil)
	require.True(t, report.Healthy)
	require.Zero(t, report.Failed)
	// Base tools plus daemon, compose and socket table checks.
	require.Len(t, report.Checks, len(baseTools)+3)
}

func TestDoctorMissingTool(t *testing.T) {
	commander := newTestCommander()
	commander.outputs["docker info --format {{.ServerVersion}}"] = "27.1.1"
	commander.outputs["docker compose version --short"] = "2.29.0"
	commander.missing["dig"] = true

	topology, err := ParseTopology([]byte(topologyFixture))
	require.NoError(t, err)

	report := Doctor(commander, topology)
	require.False(t, report.Healthy)
	require.EqualValues(t, 1, report.Failed)
}

func TestDoctorDaemonDown(t *testing.T) {
	commander := newTestCommander()
	commander.failures["docker info --format {{.ServerVersion}}"] = true
	commander.outputs["docker compose version --short"] = "2.29.0"

	report := Doctor(commander, nil)
	require.False(t, report.Healthy)
	require.EqualValues(t, 1, report.Failed)
}
