package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/probeworks/apiprobe/internal/core"
	"github.com/probeworks/apiprobe/internal/data/pgxutil"
	"github.com/probeworks/apiprobe/internal/domain/model"
)

// ReportRepo provides database operations for test reports and their
// per-API results.
type ReportRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewReportRepo creates a new ReportRepo with real time provider.
func NewReportRepo(db *sql.DB) *ReportRepo {
	return &ReportRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewReportRepoWithTimeProvider creates a new ReportRepo with a custom time provider.
func NewReportRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ReportRepo {
	return &ReportRepo{DB: db, timeProvider: tp}
}

// CreateReport inserts a new report in the running state.
func (r *ReportRepo) CreateReport(ctx context.Context, report *model.TestReport) (*model.TestReport, error) {
	if report == nil {
		return nil, errors.New("report is required")
	}

	status := report.Status
	if status == "" {
		status = model.ReportStatusRunning
	}

	createdAt := r.timeProvider.Now().UTC()
	var out model.TestReport
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO test_reports (name, status, total, passed, failed, errored, duration_seconds, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
			RETURNING `+reportColumns,
			report.Name, status, report.Total,
			report.Passed, report.Failed, report.Errored,
			report.DurationSeconds, createdAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.TestReport])
		return err
	}); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	return &out, nil
}

// FinalizeReport transitions a running report to its terminal state and
// records the batch counters. A report that is already finalized is
// returned unchanged; finalize is the only mutation a report accepts
// after creation.
func (r *ReportRepo) FinalizeReport(ctx context.Context, params core.FinalizeReportParams) (*model.TestReport, error) {
	status := params.Status
	if status != model.ReportStatusCompleted && status != model.ReportStatusError {
		return nil, fmt.Errorf("finalize status must be terminal, got %q", status)
	}

	now := r.timeProvider.Now().UTC()
	var out model.TestReport
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{Fn: func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			UPDATE test_reports
			SET status = $2, passed = $3, failed = $4, errored = $5,
			    duration_seconds = $6, updated_at = $7
			WHERE id = $1 AND status = 'running'
			RETURNING `+reportColumns,
			params.ReportID, status, params.Passed, params.Failed, params.Errored,
			params.DurationSeconds, now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.TestReport])
		if errors.Is(err, pgx.ErrNoRows) {
			// Already finalized (or missing). Hand back what is stored.
			return r.reportByIDTx(ctx, tx, params.ReportID, &out)
		}
		return err
	}})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("finalize report: %w", err)
	}
	return &out, nil
}

// GetReport retrieves a report by ID.
func (r *ReportRepo) GetReport(ctx context.Context, id int64) (*model.TestReport, error) {
	var out model.TestReport
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, reportGetByIDQuery, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.TestReport])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("get report: %w", err)
	}
	return &out, nil
}

// ListReports retrieves reports with pagination, newest first.
func (r *ReportRepo) ListReports(ctx context.Context, limit, offset int) ([]*model.TestReport, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rowsOut []model.TestReport
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, reportListQuery, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.TestReport])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return toPtrSlice(rowsOut), nil
}

// AddResult appends one API execution snapshot to a report. The response
// body is truncated to the persisted cap.
func (r *ReportRepo) AddResult(ctx context.Context, result *model.TestResult) (*model.TestResult, error) {
	if result == nil {
		return nil, errors.New("result is required")
	}
	if result.ReportID == 0 {
		return nil, errors.New("report_id is required")
	}

	createdAt := r.timeProvider.Now().UTC()
	var out model.TestResult
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO test_results (
				report_id, api_name, url, method, use_async,
				request_headers, request_params, request_body,
				response_status, response_headers, response_body, response_time_ms,
				status, error_message,
				extracted_vars, assertion_results, db_assertion_results,
				deepdiff_results, pre_sql_result, post_sql_result, created_at
			) VALUES (
				$1, $2, $3, $4, $5,
				$6, $7, $8,
				$9, $10, $11, $12,
				$13, $14,
				$15, $16, $17,
				$18, $19, $20, $21
			) RETURNING `+resultColumns,
			result.ReportID, result.ApiName, result.URL, result.Method, result.UseAsync,
			result.RequestHeaders, result.RequestParams, result.RequestBody,
			result.ResponseStatus, result.ResponseHeaders,
			model.TruncateResponseBody(result.ResponseBody), result.ResponseTimeMs,
			result.Status, result.ErrorMessage,
			result.ExtractedVars, result.AssertionResults, result.DBAssertionResults,
			result.DeepDiffResults, result.PreSQLResult, result.PostSQLResult, createdAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.TestResult])
		return err
	}); err != nil {
		return nil, mapConstraintErr(err)
	}
	return &out, nil
}

// ListResults retrieves a report's results in execution order.
func (r *ReportRepo) ListResults(ctx context.Context, reportID int64) ([]*model.TestResult, error) {
	var rowsOut []model.TestResult
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, resultListQuery, reportID)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.TestResult])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return toPtrSlice(rowsOut), nil
}

func (r *ReportRepo) reportByIDTx(ctx context.Context, tx pgx.Tx, id int64, out *model.TestReport) error {
	rows, err := tx.Query(ctx, reportGetByIDQuery, id)
	if err != nil {
		return err
	}
	defer rows.Close()
	*out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.TestReport])
	return err
}

const (
	reportColumns = `id, name, status, total, passed, failed, errored, duration_seconds, created_at, updated_at`

	reportGetByIDQuery = `
		SELECT ` + reportColumns + `
		FROM test_reports
		WHERE id = $1`

	reportListQuery = `
		SELECT ` + reportColumns + `
		FROM test_reports
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	resultColumns = `id, report_id, api_name, url, method, use_async,
		request_headers, request_params, request_body,
		response_status, response_headers, response_body, response_time_ms,
		status, error_message,
		extracted_vars, assertion_results, db_assertion_results,
		deepdiff_results, pre_sql_result, post_sql_result, created_at`

	resultListQuery = `
		SELECT ` + resultColumns + `
		FROM test_results
		WHERE report_id = $1
		ORDER BY id`
)
