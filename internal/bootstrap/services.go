package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/probeworks/apiprobe/config"
	"github.com/probeworks/apiprobe/internal/adapters/httpclient"
	"github.com/probeworks/apiprobe/internal/adapters/reaper"
	"github.com/probeworks/apiprobe/internal/adapters/redisunit"
	"github.com/probeworks/apiprobe/internal/adapters/sqlexec"
	"github.com/probeworks/apiprobe/internal/certstore"
	"github.com/probeworks/apiprobe/internal/data"
	"github.com/probeworks/apiprobe/internal/domain/vars"
	"github.com/probeworks/apiprobe/internal/loadtest"
	"github.com/probeworks/apiprobe/internal/observability/statsd"
	"github.com/probeworks/apiprobe/internal/service/batch"
	"github.com/probeworks/apiprobe/internal/service/notify"
	"github.com/probeworks/apiprobe/internal/service/pipeline"
	"github.com/probeworks/apiprobe/internal/service/schedule"
)

// ServiceContainer holds the wired engine services.
type ServiceContainer struct {
	Apis        *data.ApiConfigRepo
	Globals     *data.GlobalVariableRepo
	Connections *data.ConnectionRepo
	Reports     *data.ReportRepo
	Tasks       *data.ScheduledTaskRepo

	Vars      *vars.Store
	Pipeline  *pipeline.Runner
	Batches   *batch.Runner
	Progress  *batch.Registry
	RedisUnit *redisunit.Unit
	Scheduler *schedule.Scheduler
	Driver    *loadtest.Driver
	Notifier  notify.ReportNotifier

	// Metrics is nil-receiver safe; a disabled sink still satisfies
	// statsd.Sink without emitting.
	Metrics *statsd.Client
}

// ServiceDeps carries what NewServices needs from the entrypoint.
type ServiceDeps struct {
	Config *config.AppConfig
	DB     *sql.DB
	Logger *slog.Logger
}

// NewServices wires repositories, the pipeline, and the runtime services.
// Webhook expressions and the scheduler timezone are validated here so a
// bad configuration fails at startup.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	metrics := buildMetrics(logger, cfg.Observability.Metrics, cfg.IsDev)
	encryptor := CreateEncryptor(cfg.Engine.CredentialKey, logger)

	apis := data.NewApiConfigRepo(deps.DB)
	globals := data.NewGlobalVariableRepo(deps.DB)
	connections := data.NewConnectionRepo(deps.DB, encryptor)
	reports := data.NewReportRepo(deps.DB)
	tasks := data.NewScheduledTaskRepo(deps.DB)

	varStore := vars.NewStore()
	certs := certstore.New(cfg.Engine.CertDir)
	sqlExec := sqlexec.NewExecutor(logger.With("component", "sqlexec"))
	sessions := httpclient.NewSessionStore(logger)
	dispatcher := httpclient.NewDispatcher(sessions, logger.With("component", "dispatcher"))

	redisUnit, err := redisunit.NewUnit(redisunit.UnitOptions{
		Connections: connections,
		Globals:     globals,
		Vars:        varStore,
		Logger:      logger.With("component", "redisunit"),
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create redis unit: %w", err)
	}

	runner, err := pipeline.NewRunner(pipeline.Options{
		Globals:    globals,
		Vars:       varStore,
		Redis:      redisUnit,
		Databases:  connections,
		SQL:        sqlExec,
		Dispatcher: dispatcher,
		TLS:        certs,
		NewDBQuerier: func() pipeline.DBQuerier {
			return sqlexec.NewConnCache(sqlExec, connections, logger)
		},
		Logger: logger.With("component", "pipeline"),
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create pipeline runner: %w", err)
	}

	progress := batch.NewRegistry()
	batches, err := batch.NewRunner(batch.Options{
		APIs:     apis,
		Reports:  reports,
		Pipeline: runner,
		Vars:     varStore,
		Progress: progress,
		Metrics:  metrics,
		Logger:   logger.With("component", "batch"),
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create batch runner: %w", err)
	}

	notifier, err := buildNotifier(logger, cfg.Engine)
	if err != nil {
		return ServiceContainer{}, err
	}

	location, err := time.LoadLocation(cfg.Engine.Timezone)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("load scheduler timezone %q: %w", cfg.Engine.Timezone, err)
	}

	scheduler, err := schedule.New(schedule.Options{
		Tasks:        tasks,
		Batches:      batches,
		Notifier:     notifier,
		Metrics:      metrics,
		Location:     location,
		PoolSize:     int64(cfg.Engine.SchedulerPoolSize),
		MisfireGrace: cfg.Engine.SchedulerMisfireGrace,
		Logger:       logger.With("component", "scheduler"),
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create scheduler: %w", err)
	}

	driver, err := loadtest.NewDriver(loadtest.Options{
		APIs:      apis,
		Globals:   globals,
		Reports:   reports,
		WorkDir:   cfg.Engine.LoadTestWorkDir,
		WorkerBin: cfg.Engine.LoadTestWorkerBin,
		Logger:    logger.With("component", "loadtest"),
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create load test driver: %w", err)
	}

	return ServiceContainer{
		Apis:        apis,
		Globals:     globals,
		Connections: connections,
		Reports:     reports,
		Tasks:       tasks,
		Vars:        varStore,
		Pipeline:    runner,
		Batches:     batches,
		Progress:    progress,
		RedisUnit:   redisUnit,
		Scheduler:   scheduler,
		Driver:      driver,
		Notifier:    notifier,
		Metrics:     metrics,
	}, nil
}

// buildMetrics configures the StatsD sink. A nil client disables emission
// without leaving nil checks to callers.
func buildMetrics(logger *slog.Logger, cfg config.MetricsConfig, dev bool) *statsd.Client {
	if !cfg.IsEnabled() {
		return nil
	}

	env := "production"
	if dev {
		env = "development"
	}

	client, err := statsd.NewClient(statsd.Config{
		Enabled:    true,
		Address:    cfg.Addr,
		Prefix:     cfg.Prefix,
		Logger:     logger,
		GlobalTags: map[string]string{"env": env},
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	return client
}

// buildNotifier picks the report notifier: webhook when configured, log
// delivery otherwise. A malformed webhook body expression is a startup
// error.
//
//nolint:ireturn // the two notifier implementations share no other surface.
func buildNotifier(logger *slog.Logger, cfg config.EngineConfig) (notify.ReportNotifier, error) {
	if cfg.ReportWebhookURL == "" {
		return notify.NewLogNotifier(logger.With("component", "notify")), nil
	}

	notifier, err := notify.NewWebhookNotifier(notify.WebhookConfig{
		URL:      cfg.ReportWebhookURL,
		BodyExpr: cfg.ReportWebhookBody,
		Logger:   logger.With("component", "notify"),
	})
	if err != nil {
		return nil, fmt.Errorf("create webhook notifier: %w", err)
	}
	return notifier, nil
}

// ServiceOrchestrationConfig is the input to RunServicesWithShutdown.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// shutdownWaitTimeout caps how long shutdown waits on each piece: the
// HTTP drain and then every background loop in turn.
const shutdownWaitTimeout = 15 * time.Second

// orchestrator owns the lifecycle of the enabled service roles for one
// process.
type orchestrator struct {
	cfg    *ServiceOrchestrationConfig
	logger *slog.Logger
	errCh  chan error
}

// serviceDone names a running background loop and the channel that
// closes when it returns.
type serviceDone struct {
	name string
	done <-chan struct{}
}

// RunServicesWithShutdown starts the roles named in SERVICES and blocks
// until SIGINT/SIGTERM or until one of them fails. Either way it drains
// the HTTP server, waits for the background loops, and flushes metrics
// before returning.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("orchestration config with app config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o := &orchestrator{
		cfg:    cfg,
		logger: logger,
		errCh:  make(chan error, errorChannelBufferSize(enabled)),
	}

	var httpServer *http.Server
	if enabled[config.ServiceModeHTTP] {
		httpServer = StartHTTPServer(&HTTPServerConfig{
			Config:   cfg.Config,
			Services: cfg.Services,
			Logger:   logger,
		})
	}

	var running []serviceDone
	if enabled[config.ServiceModeScheduler] {
		running = append(running, o.spawn(ctx, "scheduler", o.runScheduler))
	}
	if enabled[config.ServiceModeReaper] {
		running = append(running, o.spawn(ctx, "reaper", o.runReaper))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		logger.Info("shutting down services")
		cancel()
		return o.shutdown(httpServer, running)
	case err := <-o.errCh:
		logger.Error("service error", "error", err)
		cancel()
		if stopErr := o.shutdown(httpServer, running); stopErr != nil {
			logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// spawn runs one background loop and surfaces its failure on errCh. The
// channel is sized for every enabled role, so the send only falls to the
// default branch if a loop somehow fails twice.
func (o *orchestrator) spawn(ctx context.Context, name string, run func(context.Context) error) serviceDone {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := run(ctx); err != nil {
			select {
			case o.errCh <- fmt.Errorf("%s failed: %w", name, err):
			default:
				o.logger.WarnContext(ctx, "dropping background service error",
					"service", name, "error", err)
			}
		}
	}()
	o.logger.Info("background service started", "service", name)
	return serviceDone{name: name, done: done}
}

// runScheduler registers stored tasks and keeps the cron engine running
// until the context ends.
func (o *orchestrator) runScheduler(ctx context.Context) error {
	scheduler := o.cfg.Services.Scheduler
	if scheduler == nil {
		return errors.New("scheduler service is not wired")
	}
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	<-ctx.Done()
	scheduler.Stop()
	return nil
}

// runReaper sweeps abandoned batch progress entries until the context
// ends.
func (o *orchestrator) runReaper(ctx context.Context) error {
	engine := o.cfg.Config.Engine
	runner, err := reaper.NewRunner(reaper.Options{
		Registry: o.cfg.Services.Progress,
		Interval: engine.ProgressSweepInterval,
		TTL:      engine.ProgressTTL,
		Logger:   o.logger,
		Metrics:  o.cfg.Services.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}
	return runner.Run(ctx)
}

// shutdown drains the HTTP server first so in-flight runs finish, then
// waits out the background loops and closes the metrics sink.
func (o *orchestrator) shutdown(server *http.Server, running []serviceDone) error {
	if server != nil {
		// The service context is already canceled, so the drain gets its
		// own deadline.
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(drainCtx, server, o.logger); err != nil {
			return err
		}
	}

	for _, svc := range running {
		select {
		case <-svc.done:
			o.logger.Info(svc.name + " stopped")
		case <-time.After(shutdownWaitTimeout):
			o.logger.Warn("timeout waiting for " + svc.name + " to stop")
		}
	}

	if o.cfg.Services.Metrics != nil {
		if err := o.cfg.Services.Metrics.Close(); err != nil {
			o.logger.Warn("close statsd client failed", "error", err)
		}
	}
	return nil
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

// errorChannelBufferSize leaves one spare slot so a failure racing
// shutdown never blocks the sender.
func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	return max(errorChannelCapacity(enabled)+1, 1)
}
