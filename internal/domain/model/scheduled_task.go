package model

import (
	"encoding/json"
	"strings"
	"time"
)

// TriggerType selects how a scheduled task fires.
type TriggerType string

const (
	// TriggerCron fires on a cron expression.
	TriggerCron TriggerType = "cron"
	// TriggerInterval fires every fixed number of seconds.
	TriggerInterval TriggerType = "interval"
)

// TaskStatus is the registration state of a scheduled task.
type TaskStatus string

const (
	// TaskStatusActive tasks are registered with the scheduler.
	TaskStatusActive TaskStatus = "active"
	// TaskStatusPaused tasks stay stored but do not fire.
	TaskStatusPaused TaskStatus = "paused"
	// TaskStatusStopped tasks are retired.
	TaskStatusStopped TaskStatus = "stopped"
)

// MinIntervalSeconds is the floor enforced on interval triggers.
const MinIntervalSeconds = 60

// FallbackCronExpr replaces malformed cron expressions.
const FallbackCronExpr = "0 9 * * *"

// DefaultReportNameTpl names reports from tasks that did not set a
// template.
const DefaultReportNameTpl = "定時任務-{task}"

// ScheduledTask replays an ordered API list on a cron or interval trigger.
type ScheduledTask struct {
	ID            int64       `json:"id"              db:"id"`
	Name          string      `json:"name"            db:"name"`
	ApiIDs        string      `json:"api_ids"         db:"api_ids"`
	TriggerType   TriggerType `json:"trigger_type"    db:"trigger_type"`
	CronExpr      string      `json:"cron_expr"       db:"cron_expr"`
	IntervalSecs  int         `json:"interval_secs"   db:"interval_secs"`
	ReportNameTpl string      `json:"report_name_tpl" db:"report_name_tpl"`
	SendEmail     bool        `json:"send_email"      db:"send_email"`
	EmailTo       string      `json:"email_to"        db:"email_to"`
	Status        TaskStatus  `json:"status"          db:"status"`
	LastRunAt     *time.Time  `json:"last_run_at,omitempty"    db:"last_run_at"`
	LastReportID  *int64      `json:"last_report_id,omitempty" db:"last_report_id"`
	LastResult    string      `json:"last_result"     db:"last_result"`
	CreatedAt     time.Time   `json:"created_at"      db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"      db:"updated_at"`
}

// DecodedApiIDs parses the stored ordered API id list.
func (t *ScheduledTask) DecodedApiIDs() []int64 {
	raw := strings.TrimSpace(t.ApiIDs)
	if raw == "" {
		return nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}

// Recipients splits the comma-separated email_to list, dropping blanks.
func (t *ScheduledTask) Recipients() []string {
	var out []string
	for _, part := range strings.Split(t.EmailTo, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
