package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/probeworks/apiprobe/internal/data"
	"github.com/probeworks/apiprobe/internal/domain/model"
	"github.com/probeworks/apiprobe/internal/service/batch"
)

// previewLimit caps the response body echoed in the single-run summary.
// Full bodies stay available through the persisted result rows.
const previewLimit = 5000

// ApiSource loads stored API configs.
type ApiSource interface {
	GetByID(ctx context.Context, id int64) (*model.ApiConfig, error)
}

// BatchRunner executes configured requests and persists their reports.
type BatchRunner interface {
	Run(ctx context.Context, params batch.Params) (*model.TestReport, error)
	RunSingle(ctx context.Context, params batch.SingleParams) (*batch.SingleOutcome, error)
}

// ReportSource loads persisted reports for status payloads.
type ReportSource interface {
	GetReport(ctx context.Context, id int64) (*model.TestReport, error)
}

// RunHandlers serves the single-run and batch-run endpoints.
type RunHandlers struct {
	Apis     ApiSource
	Reports  ReportSource
	Runner   BatchRunner
	Progress *batch.Registry
	Logger   *slog.Logger
	// BatchTimeout bounds a background batch; zero means no limit.
	BatchTimeout time.Duration
}

type runSingleRequest struct {
	Extras     map[string]any `json:"extras"`
	ExtraVars  map[string]any `json:"extra_vars"`
	ReportName string         `json:"report_name"`
}

// singleRunResponse summarizes one config run. The headline fields
// mirror the final iteration; Results carries every iteration in order.
type singleRunResponse struct {
	ReportID       int64                     `json:"report_id"`
	Status         model.ResultStatus        `json:"status"`
	UseAsync       bool                      `json:"use_async"`
	UseSession     bool                      `json:"use_session"`
	ResponseStatus int                       `json:"response_status"`
	ResponseBody   string                    `json:"response_body"`
	ResponseTimeMs float64                   `json:"response_time_ms"`
	ExtractedVars  map[string]any            `json:"extracted_vars"`
	Assertions     []model.AssertionRecord   `json:"assertion_results"`
	DBAssertions   []model.DBAssertionRecord `json:"db_assertion_results"`
	DeepDiffs      []model.DeepDiffRecord    `json:"deepdiff_results"`
	PreSQL         *model.SQLRunResult       `json:"pre_sql_result"`
	PostSQL        *model.SQLRunResult       `json:"post_sql_result"`
	ErrorMessage   string                    `json:"error_message"`
	Results        []*model.RunResult        `json:"results"`
}

// RunSingle executes one config through the pipeline and answers with
// the persisted report id plus a result summary.
func (h *RunHandlers) RunSingle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeFailure(w, http.StatusNotFound, "接口不存在")
		return
	}

	var req runSingleRequest
	decodeBody(r, &req)

	api, err := h.Apis.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, data.ErrApiConfigNotFound) {
			writeFailure(w, http.StatusNotFound, "接口不存在")
			return
		}
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}

	outcome, err := h.Runner.RunSingle(r.Context(), batch.SingleParams{
		API:        api,
		Extras:     mergeExtras(req.ExtraVars, req.Extras),
		ReportName: req.ReportName,
	})
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeSuccess(w, newSingleRunResponse(outcome), "執行完成")
}

func newSingleRunResponse(outcome *batch.SingleOutcome) singleRunResponse {
	resp := singleRunResponse{
		ReportID: outcome.Report.ID,
		Results:  outcome.Results,
	}
	if len(outcome.Results) == 0 {
		return resp
	}
	last := outcome.Results[len(outcome.Results)-1]
	resp.Status = last.Status
	resp.UseAsync = last.UseAsync
	resp.UseSession = last.UseSession
	resp.ResponseStatus = last.ResponseStatus
	resp.ResponseBody = preview(last.ResponseBody)
	resp.ResponseTimeMs = last.ResponseTimeMs
	resp.ExtractedVars = last.ExtractedVars
	resp.Assertions = last.AssertionRecords
	resp.DBAssertions = last.DBRecords
	resp.DeepDiffs = last.DeepDiffRecords
	resp.PreSQL = last.PreSQL
	resp.PostSQL = last.PostSQL
	resp.ErrorMessage = last.ErrorMessage
	return resp
}

// mergeExtras folds the legacy extra_vars key into extras, with extras
// winning on overlap.
func mergeExtras(legacy, extras map[string]any) map[string]any {
	if len(legacy) == 0 {
		return extras
	}
	merged := make(map[string]any, len(legacy)+len(extras))
	for k, v := range legacy {
		merged[k] = v
	}
	for k, v := range extras {
		merged[k] = v
	}
	return merged
}

// preview truncates to previewLimit characters without cutting a rune.
func preview(body string) string {
	if len(body) <= previewLimit {
		return body
	}
	count := 0
	for i := range body {
		if count == previewLimit {
			return body[:i]
		}
		count++
	}
	return body
}

type runBatchRequest struct {
	ApiIDs        []int64 `json:"api_ids"`
	ReportName    string  `json:"report_name"`
	StopOnFailure bool    `json:"stop_on_failure"`
}

// RunBatch starts a batch in the background and answers immediately
// with the task id to poll.
func (h *RunHandlers) RunBatch(w http.ResponseWriter, r *http.Request) {
	var req runBatchRequest
	decodeBody(r, &req)
	if len(req.ApiIDs) == 0 {
		writeFailure(w, http.StatusBadRequest, "請選擇要執行的接口")
		return
	}

	taskID := uuid.NewString()
	// Seed the registry before answering so an immediate status poll
	// finds the task. The runner refines the total once configs load.
	h.Progress.Running(taskID, 0, len(req.ApiIDs))
	go h.runBatch(taskID, req)

	writeSuccess(w, map[string]string{"task_id": taskID}, "")
}

func (h *RunHandlers) runBatch(taskID string, req runBatchRequest) {
	ctx := context.Background()
	if h.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.BatchTimeout)
		defer cancel()
	}

	// The runner publishes its own failure entry; this log is the only
	// other trace of a background abort.
	if _, err := h.Runner.Run(ctx, batch.Params{
		ApiIDs:        req.ApiIDs,
		ReportName:    req.ReportName,
		StopOnFailure: req.StopOnFailure,
		TaskID:        taskID,
	}); err != nil {
		h.log().ErrorContext(ctx, "background batch failed",
			slog.String("task_id", taskID),
			slog.Any("error", err))
	}
}

type batchStatusResponse struct {
	Status   batch.Status        `json:"status"`
	Progress int                 `json:"progress"`
	Total    int                 `json:"total"`
	Error    string              `json:"error,omitempty"`
	Report   *batchReportSummary `json:"report,omitempty"`
}

type batchReportSummary struct {
	ReportID        int64   `json:"report_id"`
	Name            string  `json:"name"`
	PassRate        float64 `json:"pass_rate"`
	Passed          int     `json:"passed"`
	Failed          int     `json:"failed"`
	Errored         int     `json:"error"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// BatchStatus reports a background batch's progress; once the batch
// completes the persisted report summary rides along.
func (h *RunHandlers) BatchStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	entry, ok := h.Progress.Get(taskID)
	if !ok {
		writeFailure(w, http.StatusNotFound, "任務不存在")
		return
	}

	resp := batchStatusResponse{
		Status:   entry.Status,
		Progress: entry.Progress,
		Total:    entry.Total,
		Error:    entry.Error,
	}
	if entry.ReportID != 0 {
		report, err := h.Reports.GetReport(r.Context(), entry.ReportID)
		if err != nil {
			h.log().WarnContext(r.Context(), "batch report lookup failed",
				slog.String("task_id", taskID),
				slog.Int64("report_id", entry.ReportID),
				slog.Any("error", err))
		} else {
			resp.Report = &batchReportSummary{
				ReportID:        report.ID,
				Name:            report.Name,
				PassRate:        report.PassRate(),
				Passed:          report.Passed,
				Failed:          report.Failed,
				Errored:         report.Errored,
				DurationSeconds: report.DurationSeconds,
			}
		}
	}
	writeSuccess(w, resp, "")
}

func (h *RunHandlers) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
