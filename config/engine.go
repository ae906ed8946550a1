package config

import (
	"strings"
	"time"
)

// EngineConfig contains test engine configuration. All fields read from
// the ENGINE_ prefix.
type EngineConfig struct {
	// Timezone is the IANA location cron triggers and report name
	// templates evaluate in.
	Timezone string `env:"TIMEZONE" envDefault:"UTC"`

	// SchedulerPoolSize bounds how many scheduled tasks run concurrently.
	SchedulerPoolSize int `env:"SCHEDULER_POOL_SIZE" envDefault:"5"`

	// SchedulerMisfireGrace is how long a firing may wait for a pool
	// slot before it is skipped.
	SchedulerMisfireGrace time.Duration `env:"SCHEDULER_MISFIRE_GRACE" envDefault:"60s"`

	// ProgressTTL is how long an untouched batch progress entry survives
	// before the reaper removes it.
	ProgressTTL time.Duration `env:"PROGRESS_TTL" envDefault:"1h"`

	// ProgressSweepInterval is the reaper tick interval.
	ProgressSweepInterval time.Duration `env:"PROGRESS_SWEEP_INTERVAL" envDefault:"10m"`

	// CertDir is the directory holding certificate material: CA bundles
	// under certs/, client cert/key pairs under client_certs/.
	CertDir string `env:"CERT_DIR" envDefault:"."`

	// CredentialKey encrypts stored connection credentials at rest.
	// 64 hex chars or 32 raw bytes; plaintext storage when empty.
	CredentialKey string `env:"CREDENTIAL_KEY"`

	// LoadTestWorkDir is the exchange directory for load test worker
	// files. Defaults to a directory under the system temp dir.
	LoadTestWorkDir string `env:"LOADTEST_WORK_DIR"`

	// LoadTestWorkerBin is the load test worker executable path.
	// Defaults to a sibling of the running binary.
	LoadTestWorkerBin string `env:"LOADTEST_WORKER_BIN"`

	// ReportWebhookURL receives scheduled report summaries when set.
	ReportWebhookURL string `env:"REPORT_WEBHOOK_URL"`

	// ReportWebhookBody optionally reshapes the webhook payload with a
	// JMESPath expression. Validated at startup.
	ReportWebhookBody string `env:"REPORT_WEBHOOK_BODY"`
}

// Sanitize applies guardrails to engine configuration values.
func (e *EngineConfig) Sanitize() {
	if e.Timezone = strings.TrimSpace(e.Timezone); e.Timezone == "" {
		e.Timezone = "UTC"
	}
	if e.SchedulerPoolSize < 1 {
		e.SchedulerPoolSize = 1
	}
	if e.SchedulerMisfireGrace <= 0 {
		e.SchedulerMisfireGrace = 60 * time.Second
	}

	// Enforce minimum sweep cadence so the reaper cannot spin
	if e.ProgressTTL < time.Minute {
		e.ProgressTTL = time.Minute
	}
	if e.ProgressSweepInterval < time.Minute {
		e.ProgressSweepInterval = time.Minute
	}

	e.CertDir = strings.TrimSpace(e.CertDir)
	if e.CertDir == "" {
		e.CertDir = "."
	}

	e.CredentialKey = strings.TrimSpace(e.CredentialKey)
	e.LoadTestWorkDir = strings.TrimSpace(e.LoadTestWorkDir)
	e.LoadTestWorkerBin = strings.TrimSpace(e.LoadTestWorkerBin)
	e.ReportWebhookURL = strings.TrimSpace(e.ReportWebhookURL)
	e.ReportWebhookBody = strings.TrimSpace(e.ReportWebhookBody)
}
