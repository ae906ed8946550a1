package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/probeworks/apiprobe/internal/core"
	"github.com/probeworks/apiprobe/internal/data/pgxutil"
	"github.com/probeworks/apiprobe/internal/domain/model"
)

// ScheduledTaskRepo provides database operations for scheduled batch tasks.
type ScheduledTaskRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewScheduledTaskRepo creates a new ScheduledTaskRepo with real time provider.
func NewScheduledTaskRepo(db *sql.DB) *ScheduledTaskRepo {
	return &ScheduledTaskRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewScheduledTaskRepoWithTimeProvider creates a new ScheduledTaskRepo with a custom time provider.
func NewScheduledTaskRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ScheduledTaskRepo {
	return &ScheduledTaskRepo{DB: db, timeProvider: tp}
}

// Create inserts a new scheduled task.
func (r *ScheduledTaskRepo) Create(ctx context.Context, task *model.ScheduledTask) (*model.ScheduledTask, error) {
	if task == nil {
		return nil, errors.New("scheduled task is required")
	}
	if strings.TrimSpace(task.Name) == "" {
		return nil, errors.New("task name is required")
	}
	triggerType := task.TriggerType
	if triggerType == "" {
		triggerType = model.TriggerCron
	}
	status := task.Status
	if status == "" {
		status = model.TaskStatusActive
	}
	apiIDs := task.ApiIDs
	if strings.TrimSpace(apiIDs) == "" {
		apiIDs = "[]"
	}
	nameTpl := task.ReportNameTpl
	if strings.TrimSpace(nameTpl) == "" {
		nameTpl = model.DefaultReportNameTpl
	}

	createdAt := r.timeProvider.Now().UTC()
	var out model.ScheduledTask
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO scheduled_tasks (
				name, api_ids, trigger_type, cron_expr, interval_secs,
				report_name_tpl, send_email, email_to, status, last_result,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, '', $10, $10)
			RETURNING `+scheduledTaskColumns,
			strings.TrimSpace(task.Name), apiIDs, triggerType,
			task.CronExpr, task.IntervalSecs,
			nameTpl, task.SendEmail, task.EmailTo, status,
			createdAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ScheduledTask])
		return err
	}); err != nil {
		return nil, mapConstraintErr(err)
	}
	return &out, nil
}

// GetByID retrieves a scheduled task by ID.
func (r *ScheduledTaskRepo) GetByID(ctx context.Context, id int64) (*model.ScheduledTask, error) {
	var out model.ScheduledTask
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, scheduledTaskGetByIDQuery, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ScheduledTask])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get scheduled task: %w", err)
	}
	return &out, nil
}

// List retrieves all scheduled tasks ordered by id.
func (r *ScheduledTaskRepo) List(ctx context.Context) ([]*model.ScheduledTask, error) {
	return r.listByQuery(ctx, scheduledTaskListQuery, "list scheduled tasks")
}

// ListActive retrieves the tasks the scheduler should register.
func (r *ScheduledTaskRepo) ListActive(ctx context.Context) ([]*model.ScheduledTask, error) {
	return r.listByQuery(ctx, scheduledTaskListActiveQuery, "list active scheduled tasks")
}

// RecordRun stores the outcome of one trigger firing.
func (r *ScheduledTaskRepo) RecordRun(ctx context.Context, params core.RecordTaskRunParams) error {
	var reportID *int64
	if params.ReportID != 0 {
		id := params.ReportID
		reportID = &id
	}
	ranAt := params.RanAt
	if ranAt.IsZero() {
		ranAt = r.timeProvider.Now()
	}

	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `
			UPDATE scheduled_tasks
			SET last_run_at = $2, last_report_id = $3, last_result = $4, updated_at = $5
			WHERE id = $1`,
			params.TaskID, ranAt.UTC(), reportID, params.Result, r.timeProvider.Now().UTC(),
		)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("record task run: %w", err)
	}
	if affected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// UpdateStatus moves a task between active, paused, and stopped.
func (r *ScheduledTaskRepo) UpdateStatus(ctx context.Context, id int64, status model.TaskStatus) (*model.ScheduledTask, error) {
	var out model.ScheduledTask
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE scheduled_tasks
			SET status = $2, updated_at = $3
			WHERE id = $1
			RETURNING `+scheduledTaskColumns,
			id, status, r.timeProvider.Now().UTC(),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ScheduledTask])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("update task status: %w", err)
	}
	return &out, nil
}

func (r *ScheduledTaskRepo) listByQuery(ctx context.Context, query, errMsg string) ([]*model.ScheduledTask, error) {
	var rowsOut []model.ScheduledTask
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.ScheduledTask])
		return err
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return toPtrSlice(rowsOut), nil
}

const (
	scheduledTaskColumns = `id, name, api_ids, trigger_type, cron_expr, interval_secs,
		report_name_tpl, send_email, email_to, status,
		last_run_at, last_report_id, last_result, created_at, updated_at`

	scheduledTaskGetByIDQuery = `
		SELECT ` + scheduledTaskColumns + `
		FROM scheduled_tasks
		WHERE id = $1`

	scheduledTaskListQuery = `
		SELECT ` + scheduledTaskColumns + `
		FROM scheduled_tasks
		ORDER BY id`

	scheduledTaskListActiveQuery = `
		SELECT ` + scheduledTaskColumns + `
		FROM scheduled_tasks
		WHERE status = 'active'
		ORDER BY id`
)
