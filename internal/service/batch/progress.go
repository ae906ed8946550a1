package batch

import (
	"sync"
	"time"

	"github.com/probeworks/apiprobe/internal/data"
)

// Status is the lifecycle state of one background batch task.
type Status string

const (
	// StatusRunning marks a batch still working through its API list.
	StatusRunning Status = "running"
	// StatusCompleted marks a batch that finalized its report.
	StatusCompleted Status = "completed"
	// StatusError marks a batch that aborted before finalizing.
	StatusError Status = "error"
)

// Entry is the published progress of one batch task.
type Entry struct {
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Total     int       `json:"total"`
	ReportID  int64     `json:"report_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry tracks background batch progress by task id so the status
// endpoint can poll it. Entries are kept until the reaper sweeps them.
type Registry struct {
	mu           sync.Mutex
	entries      map[string]Entry
	timeProvider data.TimeProvider
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return NewRegistryWithTimeProvider(&data.RealTimeProvider{})
}

// NewRegistryWithTimeProvider creates a Registry with an injectable clock.
func NewRegistryWithTimeProvider(tp data.TimeProvider) *Registry {
	return &Registry{entries: map[string]Entry{}, timeProvider: tp}
}

// Running publishes an in-flight progress update.
func (r *Registry) Running(taskID string, progress, total int) {
	r.put(taskID, Entry{Status: StatusRunning, Progress: progress, Total: total})
}

// Completed publishes the terminal success state with the report link.
func (r *Registry) Completed(taskID string, progress, total int, reportID int64) {
	r.put(taskID, Entry{Status: StatusCompleted, Progress: progress, Total: total, ReportID: reportID})
}

// Failed publishes the terminal error state.
func (r *Registry) Failed(taskID string, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[taskID]
	e.Status = StatusError
	e.Error = message
	e.UpdatedAt = r.timeProvider.Now()
	r.entries[taskID] = e
}

// Get returns the entry for a task id.
func (r *Registry) Get(taskID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[taskID]
	return e, ok
}

// Len returns the number of tracked tasks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep removes entries not updated within ttl and returns how many were
// dropped. The reaper calls this on a ticker.
func (r *Registry) Sweep(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.timeProvider.Now().Add(-ttl)
	removed := 0
	for id, e := range r.entries {
		if e.UpdatedAt.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) put(taskID string, e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.UpdatedAt = r.timeProvider.Now()
	r.entries[taskID] = e
}
