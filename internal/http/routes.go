// Package httpx exposes the engine operations over a JSON REST surface.
// Every endpoint answers with the `{code, message, data}` envelope;
// code is zero on success and repeats the HTTP status on failure.
package httpx

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/probeworks/apiprobe/internal/adapters/redisunit"
	"github.com/probeworks/apiprobe/internal/service/batch"
)

// RouterServices holds all the dependencies needed by the HTTP router.
type RouterServices struct {
	Apis         ApiSource
	Tasks        TaskSource
	Reports      ReportSource
	Runner       BatchRunner
	Progress     *batch.Registry
	Scheduler    TaskTrigger
	Driver       LoadDriver
	RedisConfigs redisunit.ConfigSource
	Captcha      CaptchaFetcher
	// BatchTimeout bounds background batches; zero means no limit.
	BatchTimeout time.Duration
	Logger       *slog.Logger
}

// NewRouter wires the handler groups onto a ServeMux. Middleware
// (Recover, Logging) is applied by the caller around the returned
// handler.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	runHandlers := &RunHandlers{
		Apis:         services.Apis,
		Reports:      services.Reports,
		Runner:       services.Runner,
		Progress:     services.Progress,
		Logger:       services.Logger,
		BatchTimeout: services.BatchTimeout,
	}
	schedulerHandlers := &SchedulerHandlers{Tasks: services.Tasks, Scheduler: services.Scheduler}
	loadHandlers := &LoadTestHandlers{Driver: services.Driver}
	redisHandlers := &RedisHandlers{Configs: services.RedisConfigs, Unit: services.Captcha}

	registerRunRoutes(mux, runHandlers)
	registerSchedulerRoutes(mux, schedulerHandlers)
	registerLoadTestRoutes(mux, loadHandlers)
	registerRedisRoutes(mux, redisHandlers)
	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("HEAD /healthz", healthz)

	return mux
}

func registerRunRoutes(mux *http.ServeMux, h *RunHandlers) {
	mux.HandleFunc("POST /apis/{id}/run", h.RunSingle)
	mux.HandleFunc("POST /run/batch", h.RunBatch)
	mux.HandleFunc("GET /run/batch/status/{task_id}", h.BatchStatus)
}

func registerSchedulerRoutes(mux *http.ServeMux, h *SchedulerHandlers) {
	mux.HandleFunc("POST /scheduler/tasks/{id}/run", h.TriggerTask)
}

func registerLoadTestRoutes(mux *http.ServeMux, h *LoadTestHandlers) {
	mux.HandleFunc("POST /locust/start", h.Start)
	mux.HandleFunc("GET /locust/status/{task_id}", h.Status)
	mux.HandleFunc("POST /locust/stop/{task_id}", h.Stop)
	mux.HandleFunc("POST /locust/collect/{task_id}", h.Collect)
}

func registerRedisRoutes(mux *http.ServeMux, h *RedisHandlers) {
	mux.HandleFunc("POST /redis/{id}/fetch-captcha", h.FetchCaptcha)
}

// healthz answers liveness probes without touching any backend.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, `{"status":"ok"}`); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}
