// Package schedule fires stored tasks on their cron or interval triggers
// and records each run's outcome back onto the task row. One scheduler
// instance exists per process; registrations are replaced in place as
// tasks change.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"

	"github.com/probeworks/apiprobe/internal/core"
	"github.com/probeworks/apiprobe/internal/data"
	"github.com/probeworks/apiprobe/internal/domain/model"
	"github.com/probeworks/apiprobe/internal/observability/metrics"
	"github.com/probeworks/apiprobe/internal/observability/statsd"
	"github.com/probeworks/apiprobe/internal/service/batch"
)

const (
	defaultPoolSize     = 5
	defaultMisfireGrace = 60 * time.Second
	defaultDrainTimeout = 30 * time.Second
)

// emptyBatchResult is recorded when a firing found no runnable APIs.
const emptyBatchResult = "執行失敗：未找到有效接口"

var (
	// standardParser accepts the stored 5-field cron form.
	standardParser = cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	// secondsParser accepts the 6-field variant with a leading seconds
	// field.
	secondsParser = cron.NewParser(
		cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
)

// TaskSource loads and updates stored tasks.
type TaskSource interface {
	GetByID(ctx context.Context, id int64) (*model.ScheduledTask, error)
	ListActive(ctx context.Context) ([]*model.ScheduledTask, error)
	RecordRun(ctx context.Context, params core.RecordTaskRunParams) error
}

// BatchRunner executes one ordered API list. The batch runner is the
// production implementation.
type BatchRunner interface {
	Run(ctx context.Context, params batch.Params) (*model.TestReport, error)
}

// ReportNotifier delivers a finalized report to the task's recipients.
type ReportNotifier interface {
	NotifyReport(ctx context.Context, report *model.TestReport, recipients []string) error
}

// Options holds the dependencies for creating a Scheduler.
type Options struct {
	Tasks    TaskSource
	Batches  BatchRunner
	Notifier ReportNotifier
	Metrics  statsd.Sink
	// Location is the timezone report name templates and cron triggers
	// evaluate in. Defaults to UTC.
	Location *time.Location
	// PoolSize bounds how many tasks run concurrently. Defaults to 5.
	PoolSize int64
	// MisfireGrace is how long a firing may wait for the pool before it
	// is skipped. Defaults to 60s.
	MisfireGrace time.Duration
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// Scheduler owns the cron engine, the per-task registrations, and the
// shared worker gate.
type Scheduler struct {
	tasks        TaskSource
	batches      BatchRunner
	notifier     ReportNotifier
	metrics      statsd.Sink
	location     *time.Location
	misfireGrace time.Duration
	drainTimeout time.Duration
	timeProvider data.TimeProvider
	logger       *slog.Logger

	cron *cron.Cron
	sem  *semaphore.Weighted

	mu       sync.Mutex
	started  bool
	baseCtx  context.Context
	entries  map[int64]cron.EntryID
	inflight map[int64]bool
}

// New creates a Scheduler. It does not start firing until Start.
func New(opts Options) (*Scheduler, error) {
	if opts.Tasks == nil {
		return nil, errors.New("task source is required")
	}
	if opts.Batches == nil {
		return nil, errors.New("batch runner is required")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = defaultPoolSize
	}
	if opts.MisfireGrace <= 0 {
		opts.MisfireGrace = defaultMisfireGrace
	}
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Scheduler{
		tasks:        opts.Tasks,
		batches:      opts.Batches,
		notifier:     opts.Notifier,
		metrics:      opts.Metrics,
		location:     opts.Location,
		misfireGrace: opts.MisfireGrace,
		drainTimeout: defaultDrainTimeout,
		timeProvider: opts.TimeProvider,
		logger:       opts.Logger,
		sem:          semaphore.NewWeighted(opts.PoolSize),
		baseCtx:      context.Background(),
		entries:      map[int64]cron.EntryID{},
		inflight:     map[int64]bool{},
	}
	s.cron = cron.New(
		cron.WithLocation(opts.Location),
		cron.WithLogger(&cronLogger{logger: opts.Logger}),
		cron.WithChain(cron.Recover(&cronLogger{logger: opts.Logger})),
	)
	return s, nil
}

// Start loads every active task, registers it, and starts the cron
// engine. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	tasks, err := s.tasks.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("load active tasks: %w", err)
	}
	for _, task := range tasks {
		s.registerLocked(task)
	}

	s.baseCtx = ctx
	s.cron.Start()
	s.started = true
	s.logger.InfoContext(ctx, "scheduler started",
		slog.Int("tasks", len(tasks)),
		slog.String("timezone", s.location.String()))
	return nil
}

// Stop halts new firings and waits, bounded, for in-flight runs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("scheduler stopped")
	case <-time.After(s.drainTimeout):
		s.logger.Warn("scheduler stopped with runs still in flight",
			slog.Duration("drain_timeout", s.drainTimeout))
	}
}

// Register replaces any existing registration for the task. Non-active
// tasks are only removed.
func (s *Scheduler) Register(task *model.ScheduledTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerLocked(task)
}

// Remove unregisters the task if present.
func (s *Scheduler) Remove(taskID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(taskID)
}

// TriggerNow fires the task outside its schedule. On a running scheduler
// the firing goes through the normal coalesce/pool gate in the
// background; otherwise the task executes synchronously on the caller.
func (s *Scheduler) TriggerNow(ctx context.Context, taskID int64) error {
	s.mu.Lock()
	running := s.started
	s.mu.Unlock()

	if !running {
		return s.runTask(ctx, taskID)
	}
	go s.fire(taskID)
	return nil
}

func (s *Scheduler) registerLocked(task *model.ScheduledTask) {
	s.removeLocked(task.ID)
	if task.Status != model.TaskStatusActive {
		return
	}

	taskID := task.ID
	entryID := s.cron.Schedule(s.scheduleFor(task), cron.FuncJob(func() {
		s.fire(taskID)
	}))
	s.entries[task.ID] = entryID
	s.logger.Info("task registered",
		slog.Int64("task_id", task.ID),
		slog.String("name", task.Name),
		slog.String("trigger", string(task.TriggerType)))
}

func (s *Scheduler) removeLocked(taskID int64) {
	if entryID, ok := s.entries[taskID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, taskID)
	}
}

// scheduleFor builds the trigger. Interval triggers get the 60s floor;
// malformed cron expressions fall back to the daily default.
func (s *Scheduler) scheduleFor(task *model.ScheduledTask) cron.Schedule {
	if task.TriggerType == model.TriggerInterval {
		secs := task.IntervalSecs
		if secs < model.MinIntervalSeconds {
			secs = model.MinIntervalSeconds
		}
		return cron.Every(time.Duration(secs) * time.Second)
	}

	sched, err := parseCron(task.CronExpr)
	if err != nil {
		s.logger.Warn("malformed cron expression, using fallback",
			slog.Int64("task_id", task.ID),
			slog.String("cron_expr", task.CronExpr),
			slog.String("fallback", model.FallbackCronExpr))
		sched, _ = standardParser.Parse(model.FallbackCronExpr)
	}
	return sched
}

// parseCron accepts the 5-field form and the 6-field leading-seconds
// variant.
func parseCron(expr string) (cron.Schedule, error) {
	if sched, err := standardParser.Parse(expr); err == nil {
		return sched, nil
	}
	return secondsParser.Parse(expr)
}

// fire is the gated execution path shared by trigger firings and
// trigger-now: coalesce if the task is already in flight, wait for a
// pool slot up to the misfire grace, then run.
func (s *Scheduler) fire(taskID int64) {
	s.mu.Lock()
	ctx := s.baseCtx
	if s.inflight[taskID] {
		s.mu.Unlock()
		s.logger.InfoContext(ctx, "task firing coalesced", slog.Int64("task_id", taskID))
		metrics.EmitScheduleFire(s.metrics, metrics.ScheduleMetric{Outcome: metrics.OutcomeCoalesced})
		return
	}
	s.inflight[taskID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inflight, taskID)
		s.mu.Unlock()
	}()

	acquireCtx, cancel := context.WithTimeout(ctx, s.misfireGrace)
	defer cancel()
	if err := s.sem.Acquire(acquireCtx, 1); err != nil {
		s.logger.WarnContext(ctx, "task firing skipped, pool saturated past misfire grace",
			slog.Int64("task_id", taskID),
			slog.Duration("grace", s.misfireGrace))
		metrics.EmitScheduleFire(s.metrics, metrics.ScheduleMetric{Outcome: metrics.OutcomeMisfire})
		return
	}
	defer s.sem.Release(1)

	start := s.timeProvider.Now()
	err := s.runTask(ctx, taskID)
	elapsed := s.timeProvider.Now().Sub(start)

	outcome := metrics.ResultSuccess
	if err != nil {
		outcome = metrics.ResultError
		s.logger.ErrorContext(ctx, "scheduled task failed",
			slog.Int64("task_id", taskID), slog.Any("error", err))
	}
	metrics.EmitScheduleFire(s.metrics, metrics.ScheduleMetric{
		Outcome:  outcome,
		Duration: elapsed,
		Err:      err,
	})
}

// runTask reloads the task and executes its batch, recording the outcome
// on the task row. Skips are silent successes: a paused task or an empty
// API list ends the firing without error.
func (s *Scheduler) runTask(ctx context.Context, taskID int64) error {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("load task %d: %w", taskID, err)
	}
	if task.Status != model.TaskStatusActive {
		s.logger.InfoContext(ctx, "task not active, skipping",
			slog.Int64("task_id", taskID), slog.String("status", string(task.Status)))
		return nil
	}
	apiIDs := task.DecodedApiIDs()
	if len(apiIDs) == 0 {
		s.logger.WarnContext(ctx, "task has an empty api list, skipping",
			slog.Int64("task_id", taskID), slog.String("name", task.Name))
		return nil
	}

	name := renderReportName(task.ReportNameTpl, task.Name, s.timeProvider.Now().In(s.location))
	s.logger.InfoContext(ctx, "scheduled task starting",
		slog.String("name", task.Name), slog.Int("apis", len(apiIDs)))

	report, err := s.batches.Run(ctx, batch.Params{ApiIDs: apiIDs, ReportName: name})
	if err != nil {
		if errors.Is(err, batch.ErrNoApis) {
			if recErr := s.tasks.RecordRun(ctx, core.RecordTaskRunParams{
				TaskID: task.ID,
				RanAt:  s.timeProvider.Now(),
				Result: emptyBatchResult,
			}); recErr != nil {
				return fmt.Errorf("record empty run: %w", recErr)
			}
			return nil
		}
		return fmt.Errorf("run batch for task %q: %w", task.Name, err)
	}

	summary := fmt.Sprintf("通過率 %.1f%% (%d/%d)", report.PassRate(), report.Passed, report.Total)
	if err := s.tasks.RecordRun(ctx, core.RecordTaskRunParams{
		TaskID:   task.ID,
		RanAt:    s.timeProvider.Now(),
		ReportID: report.ID,
		Result:   summary,
	}); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	s.logger.InfoContext(ctx, "scheduled task completed",
		slog.String("name", task.Name), slog.String("result", summary))

	if task.SendEmail && s.notifier != nil {
		recipients := task.Recipients()
		if len(recipients) == 0 {
			s.logger.WarnContext(ctx, "task wants delivery but has no recipients",
				slog.String("name", task.Name))
		} else if err := s.notifier.NotifyReport(ctx, report, recipients); err != nil {
			// Delivery failures never fail the run.
			s.logger.WarnContext(ctx, "report delivery failed",
				slog.String("name", task.Name), slog.Any("error", err))
		}
	}
	return nil
}

func renderReportName(tpl, taskName string, now time.Time) string {
	if strings.TrimSpace(tpl) == "" {
		tpl = model.DefaultReportNameTpl
	}
	out := strings.ReplaceAll(tpl, "{task}", taskName)
	return strings.ReplaceAll(out, "{time}", now.Format("20060102_150405"))
}

// cronLogger adapts slog to the cron engine's logger.
type cronLogger struct {
	logger *slog.Logger
}

func (c *cronLogger) Info(msg string, keysAndValues ...any) {
	c.logger.Debug("cron: "+msg, keysAndValues...)
}

func (c *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{slog.Any("error", err)}, keysAndValues...)
	c.logger.Error("cron: "+msg, args...)
}
