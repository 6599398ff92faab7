package moncheck

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"
)

func TestCheckPrometheus(t *testing.T) {
	defer gock.Off()
	gock.New("http://localhost:9090").
		Get("/-/healthy").
		Reply(200).
		BodyString("Prometheus Server is Healthy.")
	gock.New("http://localhost:9090").
		Get("/api/v1/targets").
		Reply(200).
		AddHeader("Content-Type", "application/json").
		BodyString(`{
			"status": "success",
			"data": {
				"activeTargets": [
					{"labels": {"job": "prometheus", "instance": "localhost:9090"}, "health": "up"},
					{"labels": {"job": "node", "instance": "node1:9100"}, "health": "down", "lastError": "connection refused"}
				]
			}
		}`)
	checker := NewChecker()
	gock.InterceptClient(checker.innerClient.GetClient())

	status, err := checker.CheckPrometheus("http://localhost:9090/")
	require.NoError(t, err)
	require.True(t, status.Healthy)
	require.Len(t, status.Targets, 2)
	require.EqualValues(t, 1, status.Up)
	require.EqualValues(t, 1, status.Down)
	require.EqualValues(t, "node", status.Targets[1].Job)
	require.EqualValues(t, "connection refused", status.Targets[1].LastError)
	require.Len(t, status.Issues, 1)
	require.Contains(t, status.Issues[0], "targets are down")
}

func TestCheckPrometheusUnhealthy(t *testing.T) {
	defer gock.Off()
	gock.New("http://localhost:9090").
		Get("/-/healthy").
		Reply(503)
	checker := NewChecker()
	gock.InterceptClient(checker.innerClient.GetClient())

	status, err := checker.CheckPrometheus("http://localhost:9090")
	require.NoError(t, err)
	require.False(t, status.Healthy)
	require.Empty(t, status.Targets)
	require.Len(t, status.Issues, 1)
}

func TestCheckPrometheusNoTargets(t *testing.T) {
	defer gock.Off()
	gock.New("http://localhost:9090").
		Get("/-/healthy").
		Reply(200)
	gock.New("http://localhost:9090").
		Get("/api/v1/targets").
		Reply(200).
		AddHeader("Content-Type", "application/json").
		BodyString(`{"status": "success", "data": {"activeTargets": []}}`)
	checker := NewChecker()
	gock.InterceptClient(checker.innerClient.GetClient())

	status, err := checker.CheckPrometheus("http://localhost:9090")
	require.NoError(t, err)
	require.True(t, status.Healthy)
	require.Contains(t, status.Issues[0], "no scrape targets")
}

func TestCheckGrafana(t *testing.T) {
	defer gock.Off()
	gock.New("http://localhost:3000").
		Get("/api/health").
		Reply(200).
		AddHeader("Content-Type", "application/json").
		BodyString(`{"commit": "abc", "database": "ok", "version": "10.4.2"}`)
	checker := NewChecker()
	gock.InterceptClient(checker.innerClient.GetClient())

	status, err := checker.CheckGrafana("http://localhost:3000")
	require.NoError(t, err)
	require.True(t, status.Healthy)
	require.EqualValues(t, "10.4.2", status.Version)
	require.EqualValues(t, "ok", status.Database)
}

func TestCheckGrafanaDown(t *testing.T) {
	defer gock.Off()
	gock.New("http://localhost:3000").
		Get("/api/health").
		Reply(502)
	checker := NewChecker()
	gock.InterceptClient(checker.innerClient.GetClient())

	status, err := checker.CheckGrafana("http://localhost:3000")
	require.NoError(t, err)
	require.False(t, status.Healthy)
	require.Empty(t, status.Version)
}
