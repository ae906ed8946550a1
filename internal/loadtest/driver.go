package loadtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/probeworks/apiprobe/internal/data"
	"github.com/probeworks/apiprobe/internal/domain/model"
	"github.com/probeworks/apiprobe/internal/domain/vars"
)

// WorkerBinName is the worker executable spawned per task.
const WorkerBinName = "apiprobe-worker"

const (
	defaultUsers     = 10
	defaultSpawnRate = 2
	defaultRunTime   = "60s"

	logTailLines = 10
)

// ApiSource lists the stored API configs a task targets.
type ApiSource interface {
	ListByIDs(ctx context.Context, ids []int64) ([]*model.ApiConfig, error)
}

// GlobalSource lists the stored global variables used for payload
// substitution.
type GlobalSource interface {
	List(ctx context.Context) ([]*model.GlobalVariable, error)
}

// ReportStore persists collected load-test reports.
type ReportStore interface {
	CreateReport(ctx context.Context, report *model.TestReport) (*model.TestReport, error)
	AddResult(ctx context.Context, result *model.TestResult) (*model.TestResult, error)
}

// Options holds the dependencies for creating a Driver.
type Options struct {
	APIs    ApiSource
	Globals GlobalSource
	Reports ReportStore
	// WorkDir is where the exchange files live. Defaults to
	// DefaultWorkDir().
	WorkDir string
	// WorkerBin is the worker executable path. Defaults to a sibling of
	// the current executable.
	WorkerBin    string
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// Driver starts, observes, stops, and collects per-task worker
// processes.
type Driver struct {
	apis         ApiSource
	globals      GlobalSource
	reports      ReportStore
	workDir      string
	workerBin    string
	timeProvider data.TimeProvider
	logger       *slog.Logger

	mu    sync.Mutex
	tasks map[string]*taskState
}

type taskState struct {
	cmd      *exec.Cmd
	pid      int
	apiIDs   []int64
	users    int
	runTime  string
	duration int
	started  time.Time

	// done and exitCode are written by the waiter goroutine under the
	// driver mutex.
	done     bool
	exitCode int
}

// NewDriver creates a Driver.
func NewDriver(opts Options) (*Driver, error) {
	if opts.APIs == nil {
		return nil, errors.New("api source is required")
	}
	if opts.Globals == nil {
		return nil, errors.New("global variable source is required")
	}
	if opts.Reports == nil {
		return nil, errors.New("report store is required")
	}
	if opts.WorkDir == "" {
		opts.WorkDir = DefaultWorkDir()
	}
	if opts.WorkerBin == "" {
		if self, err := os.Executable(); err == nil {
			opts.WorkerBin = filepath.Join(filepath.Dir(self), WorkerBinName)
		} else {
			opts.WorkerBin = WorkerBinName
		}
	}
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Driver{
		apis:         opts.APIs,
		globals:      opts.Globals,
		reports:      opts.Reports,
		workDir:      opts.WorkDir,
		workerBin:    opts.WorkerBin,
		timeProvider: opts.TimeProvider,
		logger:       opts.Logger,
		tasks:        map[string]*taskState{},
	}, nil
}

// StartParams configures one load-test task.
type StartParams struct {
	TaskID    string
	ApiIDs    []int64
	Users     int
	SpawnRate int
	RunTime   string
}

// StartResult reports the spawn outcome.
type StartResult struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id,omitempty"`
	PID     int    `json:"pid,omitempty"`
	Message string `json:"message"`
}

// Start materializes the task config and spawns a worker process. A
// refusal (no matching APIs, spawn failure) comes back as an
// unsuccessful result; errors are reserved for infrastructure failures.
func (d *Driver) Start(ctx context.Context, params StartParams) (*StartResult, error) {
	users := params.Users
	if users <= 0 {
		users = defaultUsers
	}
	spawnRate := params.SpawnRate
	if spawnRate <= 0 {
		spawnRate = defaultSpawnRate
	}
	runTime := strings.TrimSpace(params.RunTime)
	if runTime == "" {
		runTime = defaultRunTime
	}
	taskID := strings.TrimSpace(params.TaskID)
	if taskID == "" {
		taskID = fmt.Sprintf("run_%d", d.timeProvider.Now().Unix())
	}

	apis, err := d.apis.ListByIDs(ctx, params.ApiIDs)
	if err != nil {
		return nil, fmt.Errorf("list apis: %w", err)
	}
	if len(apis) == 0 {
		return &StartResult{Success: false, Message: "未找到有效接口"}, nil
	}

	variables, err := d.globalValues(ctx)
	if err != nil {
		return nil, err
	}
	duration := ParseDuration(runTime)

	if err := os.MkdirAll(d.workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	cfg := WorkerConfig{
		APIs:      materializePayloads(apis, variables),
		Users:     users,
		SpawnRate: spawnRate,
		Duration:  duration,
		WaitMin:   defaultWaitMin,
		WaitMax:   defaultWaitMax,
	}
	if err := writeJSONFile(configPath(d.workDir, taskID), cfg); err != nil {
		return nil, err
	}

	// Clear leftovers from a previous task with the same id.
	_ = os.Remove(resultPath(d.workDir, taskID))
	if err := writeJSONFile(statusPath(d.workDir, taskID), WorkerStatus{Status: StatusStarting}); err != nil {
		return nil, err
	}

	logFile, err := os.Create(logPath(d.workDir, taskID))
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	cmd := exec.Command(d.workerBin,
		configPath(d.workDir, taskID),
		statusPath(d.workDir, taskID),
		resultPath(d.workDir, taskID))
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return &StartResult{Success: false, Message: fmt.Sprintf("啟動失敗: %v", err)}, nil
	}
	// The child holds its own copy of the log fd.
	_ = logFile.Close()

	st := &taskState{
		cmd:      cmd,
		pid:      cmd.Process.Pid,
		apiIDs:   params.ApiIDs,
		users:    users,
		runTime:  runTime,
		duration: duration,
		started:  d.timeProvider.Now(),
	}
	d.mu.Lock()
	d.tasks[taskID] = st
	d.mu.Unlock()
	go d.await(st)

	d.logger.InfoContext(ctx, "load test started",
		slog.String("task_id", taskID),
		slog.Int("pid", st.pid),
		slog.Int("users", users),
		slog.Int("duration_secs", duration))
	return &StartResult{
		Success: true,
		TaskID:  taskID,
		PID:     st.pid,
		Message: fmt.Sprintf("壓測已啟動 (PID=%d)", st.pid),
	}, nil
}

func (d *Driver) await(st *taskState) {
	err := st.cmd.Wait()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	d.mu.Lock()
	st.done = true
	st.exitCode = code
	d.mu.Unlock()
}

// StatusResult merges the child's liveness with its latest status file.
type StatusResult struct {
	Found         bool     `json:"found"`
	TaskID        string   `json:"task_id,omitempty"`
	Status        string   `json:"status,omitempty"`
	PID           int      `json:"pid,omitempty"`
	Elapsed       float64  `json:"elapsed,omitempty"`
	Users         int      `json:"users,omitempty"`
	RunTime       string   `json:"run_time,omitempty"`
	ReturnCode    *int     `json:"return_code"`
	ActiveUsers   int      `json:"active_users"`
	TotalRequests int64    `json:"total_requests"`
	TotalFailures int64    `json:"total_failures"`
	LogTail       []string `json:"log_tail,omitempty"`
	Message       string   `json:"message,omitempty"`
}

// Status reports a task's current state. While the worker lives the
// status comes from its status file; after exit, a zero code means
// completed and anything else surfaces as an error with the log tail.
func (d *Driver) Status(taskID string) *StatusResult {
	d.mu.Lock()
	st, ok := d.tasks[taskID]
	var done bool
	var exitCode int
	if ok {
		done, exitCode = st.done, st.exitCode
	}
	d.mu.Unlock()
	if !ok {
		return &StatusResult{Found: false, Message: "任務不存在"}
	}

	var live WorkerStatus
	_ = readJSONFile(statusPath(d.workDir, taskID), &live)

	res := &StatusResult{
		Found:         true,
		TaskID:        taskID,
		PID:           st.pid,
		Elapsed:       round1(d.timeProvider.Now().Sub(st.started).Seconds()),
		Users:         st.users,
		RunTime:       st.runTime,
		ActiveUsers:   live.ActiveUsers,
		TotalRequests: live.TotalRequests,
		TotalFailures: live.TotalFailures,
	}
	switch {
	case !done:
		res.Status = live.Status
		if res.Status == "" {
			res.Status = StatusRunning
		}
	case exitCode == 0:
		code := exitCode
		res.Status = StatusCompleted
		res.ReturnCode = &code
	default:
		code := exitCode
		res.Status = StatusError
		res.ReturnCode = &code
		res.LogTail = lastLogLines(logPath(d.workDir, taskID), logTailLines)
	}
	return res
}

// StopResult reports the termination outcome.
type StopResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Stop sends the worker a graceful termination signal; the worker gets
// its drain window before exiting.
func (d *Driver) Stop(taskID string) *StopResult {
	d.mu.Lock()
	st, ok := d.tasks[taskID]
	d.mu.Unlock()
	if !ok {
		return &StopResult{Success: false, Message: "任務不存在"}
	}

	if err := st.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return &StopResult{Success: false, Message: err.Error()}
	}
	return &StopResult{Success: true, Message: fmt.Sprintf("已停止 PID=%d", st.pid)}
}

// EndpointSummary condenses one endpoint's result row.
type EndpointSummary struct {
	Name     string  `json:"name"`
	Method   string  `json:"method"`
	Requests int64   `json:"requests"`
	Failures int64   `json:"failures"`
	AvgMs    float64 `json:"avg_ms"`
	MinMs    float64 `json:"min_ms"`
	MaxMs    float64 `json:"max_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P90Ms    float64 `json:"p90_ms"`
	P99Ms    float64 `json:"p99_ms"`
	RPS      float64 `json:"rps"`
}

// StatsSummary condenses the aggregated result row plus all endpoints;
// it is returned to callers and serialized into each persisted result.
type StatsSummary struct {
	TotalRequests   int64             `json:"total_requests"`
	TotalFailures   int64             `json:"total_failures"`
	FailRate        float64           `json:"fail_rate"`
	AvgResponseTime float64           `json:"avg_response_time"`
	MinResponseTime float64           `json:"min_response_time"`
	MaxResponseTime float64           `json:"max_response_time"`
	P50             float64           `json:"p50"`
	P75             float64           `json:"p75"`
	P90             float64           `json:"p90"`
	P95             float64           `json:"p95"`
	P99             float64           `json:"p99"`
	RPS             float64           `json:"rps"`
	Users           int               `json:"users"`
	RunTime         string            `json:"run_time"`
	PerEndpoint     []EndpointSummary `json:"per_endpoint"`
}

// CollectResult reports the collection outcome.
type CollectResult struct {
	Success  bool          `json:"success"`
	ReportID int64         `json:"report_id,omitempty"`
	Stats    *StatsSummary `json:"stats,omitempty"`
	Message  string        `json:"message"`
}

// Collect reads the task's result file and persists it as a finished
// report with one result row per endpoint.
func (d *Driver) Collect(ctx context.Context, taskID, reportName string) (*CollectResult, error) {
	d.mu.Lock()
	st, ok := d.tasks[taskID]
	d.mu.Unlock()
	if !ok {
		return &CollectResult{Success: false, Message: "任務不存在"}, nil
	}

	path := resultPath(d.workDir, taskID)
	if _, err := os.Stat(path); err != nil {
		return &CollectResult{Success: false, Message: "結果文件不存在，壓測可能尚未完成"}, nil
	}
	var rows []EndpointStats
	if err := readJSONFile(path, &rows); err != nil {
		return &CollectResult{Success: false, Message: fmt.Sprintf("解析結果失敗: %v", err)}, nil
	}

	var agg EndpointStats
	endpoints := make([]EndpointStats, 0, len(rows))
	for _, row := range rows {
		if row.Name == AggregatedName {
			agg = row
			continue
		}
		endpoints = append(endpoints, row)
	}
	summary := buildSummary(agg, endpoints, st.users, st.runTime)

	apisByName := map[string]*model.ApiConfig{}
	apis, err := d.apis.ListByIDs(ctx, st.apiIDs)
	if err != nil {
		return nil, fmt.Errorf("list apis: %w", err)
	}
	for _, api := range apis {
		apisByName[api.Name] = api
	}

	name := strings.TrimSpace(reportName)
	if name == "" {
		name = fmt.Sprintf("壓測報告-%s-%s", taskID, d.timeProvider.Now().Format("20060102_150405"))
	}
	report, err := d.reports.CreateReport(ctx, &model.TestReport{
		Name:            name,
		Status:          model.ReportStatusCompleted,
		Total:           int(agg.NumRequests),
		Passed:          int(agg.NumRequests - agg.NumFailures),
		Failed:          int(agg.NumFailures),
		DurationSeconds: float64(st.duration),
	})
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}

	statsJSON := vars.Stringify(summary)
	for _, ep := range summary.PerEndpoint {
		urlStr := ep.Name
		if matched := apisByName[ep.Name]; matched != nil {
			urlStr = matched.URL
		}
		method := ep.Method
		if method == "" {
			method = "GET"
		}
		errRate := 0.0
		if ep.Requests > 0 {
			errRate = float64(ep.Failures) / float64(ep.Requests) * 100
		}
		status := model.ResultPass
		responseStatus := 200
		if errRate != 0 {
			status = model.ResultFail
			responseStatus = 500
		}

		result := &model.TestResult{
			ReportID:       report.ID,
			ApiName:        ep.Name,
			URL:            urlStr,
			Method:         method,
			ResponseStatus: responseStatus,
			ResponseTimeMs: ep.AvgMs,
			Status:         status,
			ErrorMessage: fmt.Sprintf("失敗率 %.1f%% | avg=%vms p50=%vms p90=%vms p99=%vms | RPS=%v",
				errRate, ep.AvgMs, ep.P50Ms, ep.P90Ms, ep.P99Ms, ep.RPS),
			RequestBody: statsJSON,
		}
		if _, err := d.reports.AddResult(ctx, result); err != nil {
			return nil, fmt.Errorf("persist endpoint result: %w", err)
		}
	}

	d.logger.InfoContext(ctx, "load test collected",
		slog.String("task_id", taskID),
		slog.Int64("report_id", report.ID),
		slog.Int64("requests", agg.NumRequests),
		slog.Int64("failures", agg.NumFailures))
	return &CollectResult{
		Success:  true,
		ReportID: report.ID,
		Stats:    summary,
		Message:  fmt.Sprintf("壓測報告已保存 (report_id=%d)", report.ID),
	}, nil
}

func (d *Driver) globalValues(ctx context.Context) (map[string]any, error) {
	globals, err := d.globals.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load global variables: %w", err)
	}
	values := make(map[string]any, len(globals))
	for _, g := range globals {
		values[g.Name] = g.TypedValue()
	}
	return values, nil
}

// materializePayloads substitutes stored variables into each API's url,
// headers, params, and body. The worker replays the payloads as-is.
func materializePayloads(apis []*model.ApiConfig, variables map[string]any) []APIPayload {
	out := make([]APIPayload, 0, len(apis))
	for _, api := range apis {
		headers, _ := vars.SubstituteDeep(api.DecodedHeaders(), variables).(map[string]any)
		if headers == nil {
			headers = map[string]any{}
		}
		params, _ := vars.SubstituteDeep(api.DecodedParams(), variables).(map[string]any)
		if params == nil {
			params = map[string]any{}
		}
		body := vars.SubstituteDeep(api.DecodedBody(), variables)
		if body == nil {
			body = map[string]any{}
		}
		bodyType := string(api.BodyType)
		if bodyType == "" {
			bodyType = string(model.BodyTypeJSON)
		}

		out = append(out, APIPayload{
			Name:     api.Name,
			Method:   strings.ToUpper(api.Method),
			URL:      vars.Substitute(api.URL, variables),
			Headers:  headers,
			Body:     body,
			Params:   params,
			BodyType: bodyType,
		})
	}
	return out
}

func buildSummary(agg EndpointStats, endpoints []EndpointStats, users int, runTime string) *StatsSummary {
	failRate := 0.0
	if agg.NumRequests > 0 {
		failRate = round2(float64(agg.NumFailures) / float64(agg.NumRequests) * 100)
	}
	summary := &StatsSummary{
		TotalRequests:   agg.NumRequests,
		TotalFailures:   agg.NumFailures,
		FailRate:        failRate,
		AvgResponseTime: agg.AvgResponseTime,
		MinResponseTime: agg.MinResponseTime,
		MaxResponseTime: agg.MaxResponseTime,
		P50:             agg.ResponseTimes["50"],
		P75:             agg.ResponseTimes["75"],
		P90:             agg.ResponseTimes["90"],
		P95:             agg.ResponseTimes["95"],
		P99:             agg.ResponseTimes["99"],
		RPS:             agg.TotalRPS,
		Users:           users,
		RunTime:         runTime,
	}
	for _, ep := range endpoints {
		summary.PerEndpoint = append(summary.PerEndpoint, EndpointSummary{
			Name:     ep.Name,
			Method:   ep.Method,
			Requests: ep.NumRequests,
			Failures: ep.NumFailures,
			AvgMs:    ep.AvgResponseTime,
			MinMs:    ep.MinResponseTime,
			MaxMs:    ep.MaxResponseTime,
			P50Ms:    ep.ResponseTimes["50"],
			P90Ms:    ep.ResponseTimes["90"],
			P99Ms:    ep.ResponseTimes["99"],
			RPS:      ep.TotalRPS,
		})
	}
	return summary
}

func lastLogLines(path string, n int) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	trimmed := strings.TrimRight(string(data), "\n")
	if trimmed == "" {
		return nil
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
