package restservice

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	dbmodel "github.com/grimm00/networking-learning-sub003/server/database/model"
)

// Payload of the report submission request.
type createReportRequest struct {
	Kind    string                 `json:"kind" binding:"required"`
	Content map[string]interface{} `json:"content" binding:"required"`
}

// Stores a diagnostic report submitted for a machine.
func (api *RestAPI) createReport(ctx *gin.Context) {
	machine, done := api.machineFromPath(ctx)
	if done {
		return
	}

	var request createReportRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report := &dbmodel.Report{
		MachineID: machine.ID,
		Kind:      request.Kind,
		Content:   request.Content,
	}
	if err := api.Store.AddReport(report); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	api.reportsReceived.Inc()
	ctx.JSON(http.StatusOK, gin.H{"id": report.ID})
}

// Fetches one report by its ID.
func (api *RestAPI) getReport(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid report ID"})
		return
	}
	report, err := api.Store.GetReportByID(id)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if report == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	ctx.JSON(http.StatusOK, report)
}

// Lists the reports of a machine, newest first. Supports kind and
// limit query parameters.
func (api *RestAPI) getReports(ctx *gin.Context) {
	machine, done := api.machineFromPath(ctx)
	if done {
		return
	}

	limit := 20
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	reports, err := api.Store.GetReportsByMachineID(machine.ID, ctx.Query("kind"), limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if reports == nil {
		reports = []dbmodel.Report{}
	}
	ctx.JSON(http.StatusOK, reports)
}

// Lists stored events, newest first. Supports offset, limit, level and
// machine query parameters.
func (api *RestAPI) getEvents(ctx *gin.Context) {
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	level, _ := strconv.Atoi(ctx.DefaultQuery("level", "0"))
	machineID, _ := strconv.ParseInt(ctx.DefaultQuery("machine", "0"), 10, 64)

	events, total, err := api.Store.GetEvents(offset, limit, dbmodel.EventLevel(level), machineID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if events == nil {
		events = []dbmodel.Event{}
	}
	ctx.JSON(http.StatusOK, gin.H{"items": events, "total": total})
}
