package pullers

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"

	dbmodel "github.com/grimm00/networking-learning-sub003/server/database/model"
	"github.com/grimm00/networking-learning-sub003/testutil"
)

// In-memory MachineLister used in place of the database.
type fakeLister struct {
	machines []dbmodel.Machine
	updated  []*dbmodel.Machine
}

func (fl *fakeLister) GetAllMachines() ([]dbmodel.Machine, error) {
	return fl.machines, nil
}

func (fl *fakeLister) UpdateMachine(machine *dbmodel.Machine) error {
	fl.updated = append(fl.updated, machine)
	return nil
}

func TestPullStates(t *testing.T) {
	defer gock.Off()
	gock.New("http://lab1:8888").
		Get("/api/state").
		Reply(200).
		AddHeader("Content-Type", "application/json").
		BodyString(`{"AgentVersion": "1.3.0", "Hostname": "lab1", "Cpus": 4}`)

	store := &fakeLister{
		machines: []dbmodel.Machine{
			{ID: 1, Address: "lab1", AgentPort: 8888},
		},
	}
	puller := NewStatePuller(store, nil, time.Hour)
	defer puller.Shutdown()
	gock.InterceptClient(puller.innerClient.GetClient())

	require.NoError(t, puller.pullStates())
	require.Len(t, store.updated, 1)
	require.Empty(t, store.updated[0].Error)
	require.EqualValues(t, "1.3.0", store.updated[0].AgentVersion)
	require.EqualValues(t, 4, store.updated[0].State.Cpus)
	require.False(t, store.updated[0].LastVisited.IsZero())
}

func TestPullStatesAgentDown(t *testing.T) {
	defer gock.Off()
	gock.New("http://lab1:8888").
		Get("/api/state").
		Reply(500)

	store := &fakeLister{
		machines: []dbmodel.Machine{
			{ID: 1, Address: "lab1", AgentPort: 8888},
		},
	}
	puller := NewStatePuller(store, nil, time.Hour)
	defer puller.Shutdown()
	gock.InterceptClient(puller.innerClient.GetClient())

	var logs testutil.SafeBuffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stdout)

	require.NoError(t, puller.pullStates())
	require.Len(t, store.updated, 1)
	require.Contains(t, store.updated[0].Error, "status 500")
	require.Contains(t, logs.String(), "Completed machine state pull round")
}

func TestTruncateError(t *testing.T) {
	short := errors.New("agent unreachable")
	require.Equal(t, "agent unreachable", truncateError(short))

	long := errors.New(strings.Repeat("x", maxErrorLength+100))
	require.Len(t, truncateError(long), maxErrorLength)
}
