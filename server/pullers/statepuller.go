// Package pullers implements the server's periodic data collection
// from the agents.
package pullers

import (
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	dbmodel "github.com/grimm00/networking-learning-sub003/server/database/model"
	"github.com/grimm00/networking-learning-sub003/server/eventcenter"
	netlabutil "github.com/grimm00/networking-learning-sub003/util"
)

// Longest agent error text stored with a machine record.
const maxErrorLength = 2048

// Storage operations the state puller needs.
type MachineLister interface {
	GetAllMachines() ([]dbmodel.Machine, error)
	UpdateMachine(machine *dbmodel.Machine) error
}

// StatePuller periodically queries every known agent for its state and
// stores the result with the machine record.
type StatePuller struct {
	store       MachineLister
	eventCenter eventcenter.EventCenter
	innerClient *resty.Client
	executor    *netlabutil.PeriodicExecutor
}

// Creates the puller and starts its periodic executor.
func NewStatePuller(store MachineLister, eventCenter eventcenter.EventCenter, interval time.Duration) *StatePuller {
	puller := &StatePuller{
		store:       store,
		eventCenter: eventCenter,
		innerClient: resty.New().SetTimeout(10 * time.Second),
	}
	puller.executor = netlabutil.NewPeriodicExecutor("machine state puller", interval, puller.pullStates)
	return puller
}

// Stops the puller.
func (puller *StatePuller) Shutdown() {
	puller.executor.Shutdown()
}

// One pull round over all machines.
func (puller *StatePuller) pullStates() error {
	machines, err := puller.store.GetAllMachines()
	if err != nil {
		return errors.WithMessage(err, "cannot list machines for state pulling")
	}

	var failed int
	for i := range machines {
		machine := &machines[i]
		state, err := puller.getMachineState(machine)
		wasReachable := machine.Error == ""

		machine.LastVisited = netlabutil.UTCNow()
		if err != nil {
			failed++
			machine.Error = truncateError(err)
			if wasReachable && puller.eventCenter != nil {
				puller.eventCenter.AddErrorEvent("cannot reach the agent on {machine}", machine)
			}
		} else {
			machine.Error = ""
			machine.State = *state
			machine.AgentVersion = state.AgentVersion
			if !wasReachable && puller.eventCenter != nil {
				puller.eventCenter.AddInfoEvent("communication with {machine} resumed", machine)
			}
		}
		if err := puller.store.UpdateMachine(machine); err != nil {
			log.Errorf("Cannot store state of machine %s: %+v", machine.Address, err)
		}
	}
	log.WithFields(log.Fields{
		"machines": len(machines),
		"failed":   failed,
	}).Info("Completed machine state pull round")
	return nil
}

// Caps the error text stored with a machine record.
func truncateError(err error) string {
	text := err.Error()
	if len(text) > maxErrorLength {
		text = text[:maxErrorLength]
	}
	return text
}

// Queries one agent for its state.
func (puller *StatePuller) getMachineState(machine *dbmodel.Machine) (*dbmodel.MachineState, error) {
	url := netlabutil.HostWithPortURL(machine.Address, machine.AgentPort) + "api/state"
	response, err := puller.innerClient.R().Get(url)
	if err != nil {
		return nil, errors.Wrapf(err, "problem querying the agent on %s", machine.Address)
	}
	if response.StatusCode() != 200 {
		return nil, errors.Errorf("agent on %s answered with status %d", machine.Address, response.StatusCode())
	}

	var state dbmodel.MachineState
	if err := json.Unmarshal(response.Body(), &state); err != nil {
		return nil, errors.Wrapf(err, "cannot parse the state of the agent on %s", machine.Address)
	}
	return &state, nil
}
