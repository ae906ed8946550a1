package model

import (
	"math"
	"time"
)

// ReportStatus is the lifecycle state of a TestReport.
type ReportStatus string

const (
	// ReportStatusRunning marks a report whose batch is still executing.
	ReportStatusRunning ReportStatus = "running"
	// ReportStatusCompleted marks a finalized report.
	ReportStatusCompleted ReportStatus = "completed"
	// ReportStatusError marks a report whose batch aborted.
	ReportStatusError ReportStatus = "error"
)

// ResultStatus is the outcome of one API execution.
type ResultStatus string

const (
	// ResultPass means the response satisfied every declared assertion set.
	ResultPass ResultStatus = "pass"
	// ResultFail means at least one assertion did not hold.
	ResultFail ResultStatus = "fail"
	// ResultError means the request itself failed (timeout, network, config).
	ResultError ResultStatus = "error"
)

// ResponseBodyLimit caps the persisted response body length in characters.
const ResponseBodyLimit = 10000

// TestReport aggregates one batch of API executions.
type TestReport struct {
	ID              int64        `json:"id"               db:"id"`
	Name            string       `json:"name"             db:"name"`
	Status          ReportStatus `json:"status"           db:"status"`
	Total           int          `json:"total"            db:"total"`
	Passed          int          `json:"passed"           db:"passed"`
	Failed          int          `json:"failed"           db:"failed"`
	Errored         int          `json:"error"            db:"errored"`
	DurationSeconds float64      `json:"duration_seconds" db:"duration_seconds"`
	CreatedAt       time.Time    `json:"created_at"       db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"       db:"updated_at"`
}

// PassRate returns passed/total as a percentage rounded to one decimal,
// or 0 when the report is empty.
func (r *TestReport) PassRate() float64 {
	if r.Total == 0 {
		return 0
	}
	rate := float64(r.Passed) / float64(r.Total) * 100
	return math.Round(rate*10) / 10
}

// TestResult is the persisted snapshot of one API execution inside a report.
type TestResult struct {
	ID       int64 `json:"id"        db:"id"`
	ReportID int64 `json:"report_id" db:"report_id"`

	ApiName  string `json:"api_name"  db:"api_name"`
	URL      string `json:"url"       db:"url"`
	Method   string `json:"method"    db:"method"`
	UseAsync bool   `json:"use_async" db:"use_async"`

	RequestHeaders string `json:"request_headers" db:"request_headers"`
	RequestParams  string `json:"request_params"  db:"request_params"`
	RequestBody    string `json:"request_body"    db:"request_body"`

	ResponseStatus  int     `json:"response_status"  db:"response_status"`
	ResponseHeaders string  `json:"response_headers" db:"response_headers"`
	ResponseBody    string  `json:"response_body"    db:"response_body"`
	ResponseTimeMs  float64 `json:"response_time_ms" db:"response_time_ms"`

	Status       ResultStatus `json:"status"        db:"status"`
	ErrorMessage string       `json:"error_message" db:"error_message"`

	ExtractedVars      string `json:"extracted_vars"       db:"extracted_vars"`
	AssertionResults   string `json:"assertion_results"    db:"assertion_results"`
	DBAssertionResults string `json:"db_assertion_results" db:"db_assertion_results"`
	DeepDiffResults    string `json:"deepdiff_results"     db:"deepdiff_results"`
	PreSQLResult       string `json:"pre_sql_result"       db:"pre_sql_result"`
	PostSQLResult      string `json:"post_sql_result"      db:"post_sql_result"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TruncateResponseBody enforces the persisted body cap. The cap counts
// characters, not bytes, so multi-byte payloads are never cut mid-rune.
func TruncateResponseBody(body string) string {
	if len(body) <= ResponseBodyLimit {
		return body
	}
	count := 0
	for i := range body {
		if count == ResponseBodyLimit {
			return body[:i]
		}
		count++
	}
	return body
}
