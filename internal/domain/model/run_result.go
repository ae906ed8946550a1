package model

import "encoding/json"

// StatementKind classifies one SQL statement executed against a target database.
type StatementKind string

const (
	// StatementSelect returns rows.
	StatementSelect StatementKind = "SELECT"
	// StatementDML returns an affected-row count.
	StatementDML StatementKind = "DML"
	// StatementDDL returns neither rows nor counts.
	StatementDDL StatementKind = "DDL"
)

// SQLStatementResult is the typed outcome of one statement. SELECT row
// values are stringified for JSON safety; NULL columns stay nil.
type SQLStatementResult struct {
	SQL          string           `json:"sql"`
	Kind         StatementKind    `json:"type"`
	Rows         []map[string]any `json:"rows,omitempty"`
	RowsAffected int64            `json:"rows_affected,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// SQLRunResult is the outcome of executing one SQL text (possibly several
// statements split on semicolons).
type SQLRunResult struct {
	Success    bool                 `json:"success"`
	Statements []SQLStatementResult `json:"statements"`
}

// AssertionRecord is the outcome of one HTTP assertion rule.
type AssertionRecord struct {
	Type     AssertionType `json:"type"`
	Path     string        `json:"path,omitempty"`
	Expected any           `json:"expected,omitempty"`
	Actual   any           `json:"actual,omitempty"`
	Passed   bool          `json:"passed"`
	Message  string        `json:"message,omitempty"`
}

// DeepDiffRecord is the outcome of one structural-diff assertion.
type DeepDiffRecord struct {
	Label   string `json:"label"`
	Passed  bool   `json:"passed"`
	Diff    string `json:"diff,omitempty"`
	Message string `json:"message,omitempty"`
}

// DBFieldRecord is the outcome of one field check in a DB assertion.
type DBFieldRecord struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Expected string `json:"expected"`
	Actual   any    `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

// DBAssertionRecord is the outcome of one DB assertion rule.
type DBAssertionRecord struct {
	Label   string          `json:"label"`
	SQL     string          `json:"sql"`
	Passed  bool            `json:"passed"`
	Fields  []DBFieldRecord `json:"fields,omitempty"`
	Message string          `json:"message,omitempty"`
}

// RedisFetchRecord logs one pre-request Redis rule outcome.
type RedisFetchRecord struct {
	Key     string `json:"key"`
	VarName string `json:"var_name"`
	Value   string `json:"value,omitempty"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// RunResult is the full outcome of one pipeline execution, kept typed until
// the batch runner persists it as a TestResult row.
type RunResult struct {
	ApiID      int64    `json:"api_id"`
	ApiName    string   `json:"api_name"`
	URL        string   `json:"url"`
	Method     string   `json:"method"`
	UseAsync   bool     `json:"use_async"`
	UseSession bool     `json:"use_session"`
	BodyType   BodyType `json:"body_type"`

	RequestHeaders map[string]any `json:"request_headers,omitempty"`
	RequestParams  map[string]any `json:"request_params,omitempty"`
	RequestBody    any            `json:"request_body,omitempty"`
	EncryptedBody  string         `json:"encrypted_body,omitempty"`

	ResponseStatus  int               `json:"response_status"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	ResponseBody    string            `json:"response_body,omitempty"`
	ResponseTimeMs  float64           `json:"response_time_ms"`

	Status       ResultStatus `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`

	ExtractedVars    map[string]any      `json:"extracted_vars,omitempty"`
	AssertionRecords []AssertionRecord   `json:"assertion_results,omitempty"`
	DeepDiffRecords  []DeepDiffRecord    `json:"deepdiff_results,omitempty"`
	DBRecords        []DBAssertionRecord `json:"db_assertion_results,omitempty"`
	RedisRecords     []RedisFetchRecord  `json:"pre_redis_results,omitempty"`
	EncryptedFields  []string            `json:"encrypted_fields,omitempty"`

	PreSQL  *SQLRunResult `json:"pre_sql_result,omitempty"`
	PostSQL *SQLRunResult `json:"post_sql_result,omitempty"`
}

// ToTestResult converts the run outcome into its persisted row form.
// Structured fields are serialized to JSON text; the response body is
// truncated to the persistence cap.
func (r *RunResult) ToTestResult(reportID int64) *TestResult {
	return &TestResult{
		ReportID:           reportID,
		ApiName:            r.ApiName,
		URL:                r.URL,
		Method:             r.Method,
		UseAsync:           r.UseAsync,
		RequestHeaders:     marshalOrEmpty(r.RequestHeaders),
		RequestParams:      marshalOrEmpty(r.RequestParams),
		RequestBody:        marshalOrEmpty(r.RequestBody),
		ResponseStatus:     r.ResponseStatus,
		ResponseHeaders:    marshalOrEmpty(r.ResponseHeaders),
		ResponseBody:       TruncateResponseBody(r.ResponseBody),
		ResponseTimeMs:     r.ResponseTimeMs,
		Status:             r.Status,
		ErrorMessage:       r.ErrorMessage,
		ExtractedVars:      marshalOrEmpty(r.ExtractedVars),
		AssertionResults:   marshalOrEmpty(r.AssertionRecords),
		DBAssertionResults: marshalOrEmpty(r.DBRecords),
		DeepDiffResults:    marshalOrEmpty(r.DeepDiffRecords),
		PreSQLResult:       marshalOrEmpty(r.PreSQL),
		PostSQLResult:      marshalOrEmpty(r.PostSQL),
	}
}

func marshalOrEmpty(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	s := string(b)
	if s == "null" {
		return ""
	}
	return s
}
