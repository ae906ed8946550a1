// Package loadtest drives dedicated load-test runs. The host-side
// Driver spawns one worker process per task and exchanges JSON files
// with it under the shared work directory; the Worker implements the
// virtual-user fan-out the child process runs.
package loadtest

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// WorkDirName is the directory under the system temp dir holding the
// per-task exchange files.
const WorkDirName = "locust_presstest"

// Worker lifecycle states written to the status file.
const (
	StatusStarting  = "starting"
	StatusRamping   = "ramping"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// AggregatedName labels the roll-up row in the result file.
const AggregatedName = "Aggregated"

// DefaultWorkDir returns the task exchange directory.
func DefaultWorkDir() string {
	return filepath.Join(os.TempDir(), WorkDirName)
}

func configPath(dir, taskID string) string {
	return filepath.Join(dir, fmt.Sprintf("config_%s.json", taskID))
}

func statusPath(dir, taskID string) string {
	return filepath.Join(dir, fmt.Sprintf("status_%s.json", taskID))
}

func resultPath(dir, taskID string) string {
	return filepath.Join(dir, fmt.Sprintf("result_%s.json", taskID))
}

func logPath(dir, taskID string) string {
	return filepath.Join(dir, fmt.Sprintf("log_%s.txt", taskID))
}

// APIPayload is one materialized endpoint handed to the worker. All
// variable substitution happens host-side; the worker replays the
// payload verbatim.
type APIPayload struct {
	Name     string         `json:"name"`
	Method   string         `json:"method"`
	URL      string         `json:"url"`
	Headers  map[string]any `json:"headers"`
	Body     any            `json:"body"`
	Params   map[string]any `json:"params"`
	BodyType string         `json:"body_type"`
}

// WorkerConfig is the config file contents.
type WorkerConfig struct {
	APIs      []APIPayload `json:"apis"`
	Users     int          `json:"users"`
	SpawnRate int          `json:"spawn_rate"`
	// Duration is the run length in seconds.
	Duration int     `json:"duration"`
	WaitMin  float64 `json:"wait_min"`
	WaitMax  float64 `json:"wait_max"`
}

// WorkerStatus is the status file contents, refreshed by the worker at
// least every half second.
type WorkerStatus struct {
	Status        string  `json:"status"`
	Elapsed       float64 `json:"elapsed"`
	ActiveUsers   int     `json:"active_users"`
	TotalRequests int64   `json:"total_requests"`
	TotalFailures int64   `json:"total_failures"`
}

// EndpointStats is one row of the result file. Percentile keys are the
// strings "50" "75" "90" "95" "99".
type EndpointStats struct {
	Name            string             `json:"name"`
	Method          string             `json:"method"`
	NumRequests     int64              `json:"num_requests"`
	NumFailures     int64              `json:"num_failures"`
	AvgResponseTime float64            `json:"avg_response_time"`
	MinResponseTime float64            `json:"min_response_time"`
	MaxResponseTime float64            `json:"max_response_time"`
	ResponseTimes   map[string]float64 `json:"response_times"`
	TotalRPS        float64            `json:"total_rps"`
}

// ParseDuration reads the run_time form "<n>h", "<n>m", "<n>s" or a
// bare number of seconds. Unparseable input falls back to 60.
func ParseDuration(runTime string) int {
	s := strings.ToLower(strings.TrimSpace(runTime))
	mult := 1
	switch {
	case strings.HasSuffix(s, "h"):
		mult, s = 3600, strings.TrimSuffix(s, "h")
	case strings.HasSuffix(s, "m"):
		mult, s = 60, strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "s"):
		s = strings.TrimSuffix(s, "s")
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 60
	}
	return n * mult
}

func writeJSONFile(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// percentile returns the p-th percentile of sorted response times using
// the nearest-rank index ceil(n*p/100)-1, floored at 0.
func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(float64(len(sorted))*float64(p)/100)) - 1
	if idx < 0 {
		idx = 0
	}
	return round2(sorted[idx])
}
