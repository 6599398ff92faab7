package dbmodel

import (
	"errors"
	"time"

	"github.com/go-pg/pg/v10"
	pkgerrors "github.com/pkg/errors"
)

// Part of the machine table that describes the state of a machine. In
// the database it is stored as JSONB.
type MachineState struct {
	AgentVersion         string
	Cpus                 int64
	CpusLoad             string
	Memory               int64
	Hostname             string
	Uptime               int64
	UsedMemory           int64
	Os                   string
	Platform             string
	PlatformFamily       string
	PlatformVersion      string
	KernelVersion        string
	KernelArch           string
	VirtualizationSystem string
	VirtualizationRole   string
	HostID               string
	Services             []MachineService
}

// One detected lab service running on a machine.
type MachineService struct {
	Name string
	Kind string
	PID  int32
}

// Represents a machine held in the machine table.
type Machine struct {
	ID           int64
	Created      time.Time
	Address      string
	AgentPort    int64
	AgentVersion string
	State        MachineState
	LastVisited  time.Time
	Error        string
}

// Add new machine to the database.
func AddMachine(db pg.DBI, machine *Machine) error {
	_, err := db.Model(machine).Insert()
	if err != nil {
		err = pkgerrors.Wrapf(err, "problem inserting machine %+v", machine)
	}
	return err
}

// Update a machine in the database.
func UpdateMachine(db pg.DBI, machine *Machine) error {
	result, err := db.Model(machine).WherePK().ExcludeColumn("created").Update()
	if err != nil {
		err = pkgerrors.Wrapf(err, "problem updating machine %+v", machine)
	} else if result.RowsAffected() <= 0 {
		err = pkgerrors.Errorf("machine with ID %d does not exist", machine.ID)
	}
	return err
}

// Get a machine by its ID. Returns nil without an error when the
// machine does not exist.
func GetMachineByID(db pg.DBI, id int64) (*Machine, error) {
	machine := Machine{}
	err := db.Model(&machine).Where("id = ?", id).Select()
	if errors.Is(err, pg.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, pkgerrors.Wrapf(err, "problem getting machine %d", id)
	}
	return &machine, nil
}

// Get a machine by address and agent port.
func GetMachineByAddressAndAgentPort(db pg.DBI, address string, agentPort int64) (*Machine, error) {
	machine := Machine{}
	err := db.Model(&machine).
		Where("address = ?", address).
		Where("agent_port = ?", agentPort).
		Select()
	if errors.Is(err, pg.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, pkgerrors.Wrapf(err, "problem getting machine %s:%d", address, agentPort)
	}
	return &machine, nil
}

// Get all machines ordered by address.
func GetAllMachines(db pg.DBI) ([]Machine, error) {
	var machines []Machine
	err := db.Model(&machines).OrderExpr("address ASC").Select()
	if err != nil && !errors.Is(err, pg.ErrNoRows) {
		return nil, pkgerrors.Wrapf(err, "problem getting machines")
	}
	return machines, nil
}

// Delete a machine and, through cascading, its reports and events.
func DeleteMachine(db pg.DBI, machine *Machine) error {
	result, err := db.Model(machine).WherePK().Delete()
	if err != nil {
		err = pkgerrors.Wrapf(err, "problem deleting machine %+v", machine)
	} else if result.RowsAffected() <= 0 {
		err = pkgerrors.Errorf("machine with ID %d does not exist", machine.ID)
	}
	return err
}
