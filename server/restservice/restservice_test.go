package restservice

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	dbmodel "github.com/grimm00/networking-learning-sub003/server/database/model"
)

// In-memory MachineStore used in place of the database.
type memoryStore struct {
	machines map[int64]*dbmodel.Machine
	reports  []dbmodel.Report
	events   []dbmodel.Event
	nextID   int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		machines: map[int64]*dbmodel.Machine{},
		nextID:   1,
	}
}

func (s *memoryStore) AddMachine(machine *dbmodel.Machine) error {
	machine.ID = s.nextID
	s.nextID++
	s.machines[machine.ID] = machine
	return nil
}

func (s *memoryStore) UpdateMachine(machine *dbmodel.Machine) error {
	s.machines[machine.ID] = machine
	return nil
}

func (s *memoryStore) GetMachineByID(id int64) (*dbmodel.Machine, error) {
	return s.machines[id], nil
}

func (s *memoryStore) GetMachineByAddressAndAgentPort(address string, agentPort int64) (*dbmodel.Machine, error) {
	for _, machine := range s.machines {
		if machine.Address == address && machine.AgentPort == agentPort {
			return machine, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) GetAllMachines() ([]dbmodel.Machine, error) {
	var machines []dbmodel.Machine
	for _, machine := range s.machines {
		machines = append(machines, *machine)
	}
	return machines, nil
}

func (s *memoryStore) DeleteMachine(machine *dbmodel.Machine) error {
	delete(s.machines, machine.ID)
	return nil
}

func (s *memoryStore) AddReport(report *dbmodel.Report) error {
	report.ID = s.nextID
	s.nextID++
	s.reports = append(s.reports, *report)
	return nil
}

func (s *memoryStore) GetReportsByMachineID(machineID int64, kind string, limit int) ([]dbmodel.Report, error) {
	var reports []dbmodel.Report
	for _, report := range s.reports {
		if report.MachineID != machineID {
			continue
		}
		if kind != "" && report.Kind != kind {
			continue
		}
		reports = append(reports, report)
		if limit > 0 && len(reports) == limit {
			break
		}
	}
	return reports, nil
}

func (s *memoryStore) GetReportByID(id int64) (*dbmodel.Report, error) {
	for i := range s.reports {
		if s.reports[i].ID == id {
			return &s.reports[i], nil
		}
	}
	return nil, nil
}

func (s *memoryStore) GetEvents(offset, limit int, level dbmodel.EventLevel, machineID int64) ([]dbmodel.Event, int, error) {
	var events []dbmodel.Event
	for _, event := range s.events {
		if event.Level < level {
			continue
		}
		events = append(events, event)
	}
	return events, len(events), nil
}

func newTestAPI() (*RestAPI, *memoryStore) {
	store := newMemoryStore()
	settings := &RestAPISettings{Port: 8080}
	return NewRestAPI(settings, store, nil), store
}

func doRequest(api *RestAPI, method, path, body string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	var request *http.Request
	if body != "" {
		request = httptest.NewRequest(method, path, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	} else {
		request = httptest.NewRequest(method, path, nil)
	}
	api.HTTPServer.Handler.ServeHTTP(recorder, request)
	return recorder
}

func TestCreateMachine(t *testing.T) {
	api, store := newTestAPI()

	recorder := doRequest(api, http.MethodPost, "/api/machines", `{"address": "lab1", "agentPort": 8888, "agentVersion": "1.3.0"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Len(t, store.machines, 1)
	require.EqualValues(t, "lab1", store.machines[1].Address)
}

func TestCreateMachineConflict(t *testing.T) {
	api, _ := newTestAPI()

	recorder := doRequest(api, http.MethodPost, "/api/machines", `{"address": "lab1", "agentPort": 8888}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doRequest(api, http.MethodPost, "/api/machines", `{"address": "lab1", "agentPort": 8888}`)
	require.Equal(t, http.StatusConflict, recorder.Code)
	require.Equal(t, "/api/machines/1", recorder.Header().Get("Location"))
}

func TestCreateMachineBadRequest(t *testing.T) {
	api, _ := newTestAPI()

	recorder := doRequest(api, http.MethodPost, "/api/machines", `{"address": "lab1"}`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetMachines(t *testing.T) {
	api, store := newTestAPI()
	require.NoError(t, store.AddMachine(&dbmodel.Machine{Address: "lab1", AgentPort: 8888}))

	recorder := doRequest(api, http.MethodGet, "/api/machines", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var machines []dbmodel.Machine
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &machines))
	require.Len(t, machines, 1)
}

func TestGetMachineNotFound(t *testing.T) {
	api, _ := newTestAPI()

	recorder := doRequest(api, http.MethodGet, "/api/machines/42", "")
	require.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = doRequest(api, http.MethodGet, "/api/machines/abc", "")
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestDeleteMachine(t *testing.T) {
	api, store := newTestAPI()
	require.NoError(t, store.AddMachine(&dbmodel.Machine{Address: "lab1", AgentPort: 8888}))

	recorder := doRequest(api, http.MethodDelete, "/api/machines/1", "")
	require.Equal(t, http.StatusNoContent, recorder.Code)
	require.Empty(t, store.machines)
}

func TestPingMachine(t *testing.T) {
	api, store := newTestAPI()
	require.NoError(t, store.AddMachine(&dbmodel.Machine{Address: "lab1", AgentPort: 8888}))

	recorder := doRequest(api, http.MethodPost, "/api/machines/1/ping", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.False(t, store.machines[1].LastVisited.IsZero())
}

func TestReports(t *testing.T) {
	api, store := newTestAPI()
	require.NoError(t, store.AddMachine(&dbmodel.Machine{Address: "lab1", AgentPort: 8888}))

	recorder := doRequest(api, http.MethodPost, "/api/machines/1/reports", `{"kind": "dns", "content": {"domain": "example.org"}}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doRequest(api, http.MethodGet, "/api/machines/1/reports?kind=dns", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	var reports []dbmodel.Report
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &reports))
	require.Len(t, reports, 1)
	require.EqualValues(t, "dns", reports[0].Kind)

	recorder = doRequest(api, http.MethodGet, "/api/machines/1/reports?kind=ntp", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, "[]", recorder.Body.String())
}

func TestGetReport(t *testing.T) {
	api, store := newTestAPI()
	require.NoError(t, store.AddMachine(&dbmodel.Machine{Address: "lab1", AgentPort: 8888}))
	require.NoError(t, store.AddReport(&dbmodel.Report{MachineID: 1, Kind: "scan", Content: map[string]interface{}{"host": "lab1"}}))

	recorder := doRequest(api, http.MethodGet, "/api/reports/2", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	var report dbmodel.Report
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &report))
	require.EqualValues(t, "scan", report.Kind)

	recorder = doRequest(api, http.MethodGet, "/api/reports/42", "")
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestMetrics(t *testing.T) {
	api, store := newTestAPI()
	require.NoError(t, store.AddMachine(&dbmodel.Machine{Address: "lab1", AgentPort: 8888}))

	recorder := doRequest(api, http.MethodPost, "/api/machines/1/reports", `{"kind": "scan", "content": {}}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doRequest(api, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), "netlab_server_machines_total 1")
	require.Contains(t, recorder.Body.String(), "netlab_server_reports_received_total 1")
}

func TestGetEvents(t *testing.T) {
	api, store := newTestAPI()
	store.events = []dbmodel.Event{
		{Text: "machine lab1 registered", Level: dbmodel.EvInfo},
		{Text: "cannot reach lab2", Level: dbmodel.EvError},
	}

	recorder := doRequest(api, http.MethodGet, "/api/events?level=2", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var page struct {
		Items []dbmodel.Event `json:"items"`
		Total int             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &page))
	require.EqualValues(t, 1, page.Total)
	require.EqualValues(t, "cannot reach lab2", page.Items[0].Text)
}
