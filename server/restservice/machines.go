package restservice

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	dbmodel "github.com/grimm00/networking-learning-sub003/server/database/model"
	netlabutil "github.com/grimm00/networking-learning-sub003/util"
)

// Payload of the machine registration request sent by agents.
type createMachineRequest struct {
	Address      string `json:"address" binding:"required"`
	AgentPort    int64  `json:"agentPort" binding:"required"`
	AgentVersion string `json:"agentVersion"`
}

// Registers a new machine. When a machine with the same address and
// agent port already exists the answer is a conflict carrying the
// existing machine's location.
func (api *RestAPI) createMachine(ctx *gin.Context) {
	var request createMachineRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := api.Store.GetMachineByAddressAndAgentPort(request.Address, request.AgentPort)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if existing != nil {
		ctx.Header("Location", fmt.Sprintf("/api/machines/%d", existing.ID))
		ctx.JSON(http.StatusConflict, gin.H{"id": existing.ID})
		return
	}

	machine := &dbmodel.Machine{
		Address:      request.Address,
		AgentPort:    request.AgentPort,
		AgentVersion: request.AgentVersion,
	}
	if err := api.Store.AddMachine(machine); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if api.EventCenter != nil {
		api.EventCenter.AddInfoEvent("machine {machine} registered", machine)
	}
	ctx.JSON(http.StatusOK, gin.H{"id": machine.ID})
}

func (api *RestAPI) getMachines(ctx *gin.Context) {
	machines, err := api.Store.GetAllMachines()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if machines == nil {
		machines = []dbmodel.Machine{}
	}
	ctx.JSON(http.StatusOK, machines)
}

func (api *RestAPI) getMachine(ctx *gin.Context) {
	machine, done := api.machineFromPath(ctx)
	if done {
		return
	}
	ctx.JSON(http.StatusOK, machine)
}

func (api *RestAPI) deleteMachine(ctx *gin.Context) {
	machine, done := api.machineFromPath(ctx)
	if done {
		return
	}
	if err := api.Store.DeleteMachine(machine); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if api.EventCenter != nil {
		api.EventCenter.AddWarningEvent("machine {machine} removed", machine)
	}
	ctx.Status(http.StatusNoContent)
}

// Keepalive from the agent. Updates the last visited timestamp.
func (api *RestAPI) pingMachine(ctx *gin.Context) {
	machine, done := api.machineFromPath(ctx)
	if done {
		return
	}
	machine.LastVisited = netlabutil.UTCNow()
	machine.Error = ""
	if err := api.Store.UpdateMachine(machine); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.Status(http.StatusOK)
}

// Resolves the machine named in the request path. Returns done as true
// when the response was already written.
func (api *RestAPI) machineFromPath(ctx *gin.Context) (*dbmodel.Machine, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid machine ID"})
		return nil, true
	}
	machine, err := api.Store.GetMachineByID(id)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, true
	}
	if machine == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "machine not found"})
		return nil, true
	}
	return machine, false
}
