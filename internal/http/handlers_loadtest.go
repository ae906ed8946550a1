package httpx

import (
	"context"
	"net/http"

	"github.com/probeworks/apiprobe/internal/loadtest"
)

// LoadDriver manages load-test worker processes.
type LoadDriver interface {
	Start(ctx context.Context, params loadtest.StartParams) (*loadtest.StartResult, error)
	Status(taskID string) *loadtest.StatusResult
	Stop(taskID string) *loadtest.StopResult
	Collect(ctx context.Context, taskID, reportName string) (*loadtest.CollectResult, error)
}

// LoadTestHandlers serves the load-test lifecycle endpoints. Driver
// refusals (unknown task, missing result file) ride inside a code-0
// envelope with success=false; failure envelopes are reserved for
// validation and infrastructure errors.
type LoadTestHandlers struct {
	Driver LoadDriver
}

type loadStartRequest struct {
	ApiIDs    []int64 `json:"api_ids"`
	Users     int     `json:"users"`
	SpawnRate int     `json:"spawn_rate"`
	RunTime   string  `json:"run_time"`
	TaskID    string  `json:"task_id"`
}

// Start spawns a worker process for the selected configs. Sizing fields
// are passed through as-is; the driver applies the defaults.
func (h *LoadTestHandlers) Start(w http.ResponseWriter, r *http.Request) {
	var req loadStartRequest
	decodeBody(r, &req)
	if len(req.ApiIDs) == 0 {
		writeFailure(w, http.StatusBadRequest, "請選擇接口")
		return
	}

	result, err := h.Driver.Start(r.Context(), loadtest.StartParams{
		TaskID:    req.TaskID,
		ApiIDs:    req.ApiIDs,
		Users:     req.Users,
		SpawnRate: req.SpawnRate,
		RunTime:   req.RunTime,
	})
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, result, result.Message)
}

// Status reports the worker's live counters or its exit outcome.
func (h *LoadTestHandlers) Status(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, h.Driver.Status(r.PathValue("task_id")), "")
}

// Stop asks the worker to drain and exit.
func (h *LoadTestHandlers) Stop(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, h.Driver.Stop(r.PathValue("task_id")), "")
}

type loadCollectRequest struct {
	ReportName string `json:"report_name"`
}

// Collect persists the worker's result file as a finished report.
func (h *LoadTestHandlers) Collect(w http.ResponseWriter, r *http.Request) {
	var req loadCollectRequest
	decodeBody(r, &req)

	result, err := h.Driver.Collect(r.Context(), r.PathValue("task_id"), req.ReportName)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, result, result.Message)
}
