// Package batch drives ordered API lists through the run pipeline and
// persists the outcome as a TestReport with one TestResult row per
// execution. It owns the shared variable store's reset boundary and the
// progress registry that background runs publish into.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/probeworks/apiprobe/internal/core"
	"github.com/probeworks/apiprobe/internal/data"
	"github.com/probeworks/apiprobe/internal/domain/model"
	"github.com/probeworks/apiprobe/internal/domain/vars"
	"github.com/probeworks/apiprobe/internal/observability/metrics"
	"github.com/probeworks/apiprobe/internal/observability/statsd"
)

// ErrNoApis is returned when none of the requested ids resolve to a
// stored config.
var ErrNoApis = errors.New("no matching api configs")

// PipelineRunner executes one config. The run pipeline is the production
// implementation.
type PipelineRunner interface {
	Run(ctx context.Context, api *model.ApiConfig, extras map[string]any) *model.RunResult
}

// ApiSource fetches the configs for a batch in execution order.
type ApiSource interface {
	ListByIDs(ctx context.Context, ids []int64) ([]*model.ApiConfig, error)
}

// ReportStore persists reports and their result rows.
type ReportStore interface {
	CreateReport(ctx context.Context, report *model.TestReport) (*model.TestReport, error)
	AddResult(ctx context.Context, result *model.TestResult) (*model.TestResult, error)
	FinalizeReport(ctx context.Context, params core.FinalizeReportParams) (*model.TestReport, error)
}

// Options holds the dependencies for creating a Runner.
type Options struct {
	APIs         ApiSource
	Reports      ReportStore
	Pipeline     PipelineRunner
	Vars         *vars.Store
	Progress     *Registry
	Metrics      statsd.Sink
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// Runner executes batches sequentially. The shared variable store means
// two batches must not run concurrently; a run-level lock serializes
// scheduler firings and ad-hoc invocations through the same gate.
type Runner struct {
	apis         ApiSource
	reports      ReportStore
	pipeline     PipelineRunner
	vars         *vars.Store
	progress     *Registry
	metrics      statsd.Sink
	timeProvider data.TimeProvider
	logger       *slog.Logger

	runMu sync.Mutex
}

// NewRunner creates a Runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.APIs == nil {
		return nil, errors.New("api source is required")
	}
	if opts.Reports == nil {
		return nil, errors.New("report store is required")
	}
	if opts.Pipeline == nil {
		return nil, errors.New("pipeline runner is required")
	}
	if opts.Vars == nil {
		return nil, errors.New("variable store is required")
	}
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		apis:         opts.APIs,
		reports:      opts.Reports,
		pipeline:     opts.Pipeline,
		vars:         opts.Vars,
		progress:     opts.Progress,
		metrics:      opts.Metrics,
		timeProvider: opts.TimeProvider,
		logger:       opts.Logger,
	}, nil
}

// Params selects what a batch runs and how it reports progress.
type Params struct {
	ApiIDs        []int64
	ReportName    string
	StopOnFailure bool
	// TaskID keys progress updates in the registry; empty disables
	// publishing.
	TaskID string
}

// Run executes the batch: reset the variable store, fetch the configs in
// (sort_order, id) order, run each through the pipeline, and finalize the
// report. Repeat-enabled configs count once per iteration. The returned
// error is also published to the progress registry when a task id is set.
// Concurrent calls queue; the variable store only serves one batch at a
// time.
func (r *Runner) Run(ctx context.Context, params Params) (*model.TestReport, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	r.vars.Reset()

	apis, err := r.apis.ListByIDs(ctx, params.ApiIDs)
	if err != nil {
		return nil, r.fail(ctx, params.TaskID, fmt.Errorf("list api configs: %w", err))
	}
	if len(apis) == 0 {
		return nil, r.fail(ctx, params.TaskID, ErrNoApis)
	}

	total := 0
	for _, api := range apis {
		total += api.EffectiveRepeat()
	}

	name := strings.TrimSpace(params.ReportName)
	if name == "" {
		name = "批量測試_" + r.timeProvider.Now().Format("20060102_150405")
	}

	report, err := r.reports.CreateReport(ctx, &model.TestReport{
		Name:   name,
		Status: model.ReportStatusRunning,
		Total:  total,
	})
	if err != nil {
		return nil, r.fail(ctx, params.TaskID, fmt.Errorf("create report: %w", err))
	}
	r.publishRunning(params.TaskID, 0, total)
	r.logger.InfoContext(ctx, "batch started",
		slog.Int64("report_id", report.ID),
		slog.String("name", name),
		slog.Int("total", total))

	start := r.timeProvider.Now()
	var passed, failed, errored, done int

runLoop:
	for _, api := range apis {
		for n := 0; n < api.EffectiveRepeat(); n++ {
			if err := ctx.Err(); err != nil {
				return nil, r.fail(ctx, params.TaskID, err)
			}

			res := r.pipeline.Run(ctx, api, nil)
			if _, err := r.reports.AddResult(ctx, res.ToTestResult(report.ID)); err != nil {
				return nil, r.fail(ctx, params.TaskID,
					fmt.Errorf("persist result for %q: %w", api.Name, err))
			}

			switch res.Status {
			case model.ResultPass:
				passed++
			case model.ResultFail:
				failed++
			default:
				errored++
			}
			done++
			r.publishRunning(params.TaskID, done, total)

			if params.StopOnFailure && res.Status != model.ResultPass {
				r.logger.InfoContext(ctx, "batch stopped on failure",
					slog.Int64("report_id", report.ID),
					slog.String("api", api.Name),
					slog.String("status", string(res.Status)))
				break runLoop
			}
		}
	}

	final, err := r.reports.FinalizeReport(ctx, core.FinalizeReportParams{
		ReportID:        report.ID,
		Status:          model.ReportStatusCompleted,
		Passed:          passed,
		Failed:          failed,
		Errored:         errored,
		DurationSeconds: round3(r.timeProvider.Now().Sub(start).Seconds()),
	})
	if err != nil {
		return nil, r.fail(ctx, params.TaskID, fmt.Errorf("finalize report: %w", err))
	}

	r.publishCompleted(params.TaskID, done, total, final.ID)
	metrics.EmitBatch(r.metrics, metrics.BatchMetric{
		Result:   metrics.ResultSuccess,
		Total:    total,
		Passed:   passed,
		Failed:   failed,
		Errored:  errored,
		Duration: r.timeProvider.Now().Sub(start),
	})
	r.logger.InfoContext(ctx, "batch completed",
		slog.Int64("report_id", final.ID),
		slog.Int("passed", passed),
		slog.Int("failed", failed),
		slog.Int("errored", errored),
		slog.Float64("duration_seconds", final.DurationSeconds))
	return final, nil
}

// SingleParams selects a one-config run.
type SingleParams struct {
	API        *model.ApiConfig
	Extras     map[string]any
	ReportName string
}

// SingleOutcome carries the persisted report and the full result of every
// iteration for the caller's response payload.
type SingleOutcome struct {
	Report  *model.TestReport
	Results []*model.RunResult
}

// RunSingle executes one config, repeat_count times when repeat is
// enabled, and persists a report. Unlike Run it does not reset the
// variable store, so values extracted by earlier runs stay visible.
func (r *Runner) RunSingle(ctx context.Context, params SingleParams) (*SingleOutcome, error) {
	api := params.API
	iterations := api.EffectiveRepeat()

	name := strings.TrimSpace(params.ReportName)
	if name == "" {
		name = fmt.Sprintf("單測-%s-%s", api.Name, r.timeProvider.Now().Format("15:04:05"))
	}

	report, err := r.reports.CreateReport(ctx, &model.TestReport{
		Name:   name,
		Status: model.ReportStatusRunning,
		Total:  iterations,
	})
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}

	results := make([]*model.RunResult, 0, iterations)
	var passed, failed, errored int
	var elapsedMs float64
	for n := 0; n < iterations; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := r.pipeline.Run(ctx, api, params.Extras)
		if _, err := r.reports.AddResult(ctx, res.ToTestResult(report.ID)); err != nil {
			return nil, fmt.Errorf("persist result: %w", err)
		}
		switch res.Status {
		case model.ResultPass:
			passed++
		case model.ResultFail:
			failed++
		default:
			errored++
		}
		elapsedMs += res.ResponseTimeMs
		results = append(results, res)
	}

	final, err := r.reports.FinalizeReport(ctx, core.FinalizeReportParams{
		ReportID:        report.ID,
		Status:          model.ReportStatusCompleted,
		Passed:          passed,
		Failed:          failed,
		Errored:         errored,
		DurationSeconds: round3(elapsedMs / 1000),
	})
	if err != nil {
		return nil, fmt.Errorf("finalize report: %w", err)
	}
	return &SingleOutcome{Report: final, Results: results}, nil
}

func (r *Runner) fail(ctx context.Context, taskID string, err error) error {
	r.logger.ErrorContext(ctx, "batch aborted", slog.Any("error", err))
	if taskID != "" && r.progress != nil {
		r.progress.Failed(taskID, err.Error())
	}
	metrics.EmitBatch(r.metrics, metrics.BatchMetric{Result: metrics.ResultError, Err: err})
	return err
}

func (r *Runner) publishRunning(taskID string, progress, total int) {
	if taskID != "" && r.progress != nil {
		r.progress.Running(taskID, progress, total)
	}
}

func (r *Runner) publishCompleted(taskID string, progress, total int, reportID int64) {
	if taskID != "" && r.progress != nil {
		r.progress.Completed(taskID, progress, total, reportID)
	}
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
