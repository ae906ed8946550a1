package core

import (
	"context"
	"time"

	"github.com/probeworks/apiprobe/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// ApiConfigRepository defines the interface for stored API test definitions.
type ApiConfigRepository interface {
	Create(ctx context.Context, api *model.ApiConfig) (*model.ApiConfig, error)
	GetByID(ctx context.Context, id int64) (*model.ApiConfig, error)
	// ListByIDs returns the configs for the given ids ordered by
	// (sort_order, id), silently dropping ids that no longer exist.
	ListByIDs(ctx context.Context, ids []int64) ([]*model.ApiConfig, error)
	List(ctx context.Context) ([]*model.ApiConfig, error)
}

// UpsertGlobalVariableParams groups parameters for GlobalVariableRepository.Upsert.
type UpsertGlobalVariableParams struct {
	Name        string
	Value       string
	VarType     model.VarType
	Description string
}

// GlobalVariableRepository defines the interface for persisted variables.
type GlobalVariableRepository interface {
	List(ctx context.Context) ([]*model.GlobalVariable, error)
	GetByName(ctx context.Context, name string) (*model.GlobalVariable, error)
	Upsert(ctx context.Context, params UpsertGlobalVariableParams) (*model.GlobalVariable, error)
}

// ConnectionRepository defines the interface for target connection configs
// (databases, Redis instances, SMTP). Stored passwords are decrypted on read.
type ConnectionRepository interface {
	GetDatabaseConfig(ctx context.Context, id int64) (*model.DatabaseConfig, error)
	CreateDatabaseConfig(ctx context.Context, cfg *model.DatabaseConfig) (*model.DatabaseConfig, error)
	GetRedisConfig(ctx context.Context, id int64) (*model.RedisConfig, error)
	CreateRedisConfig(ctx context.Context, cfg *model.RedisConfig) (*model.RedisConfig, error)
	ListEmailConfigs(ctx context.Context) ([]*model.EmailConfig, error)
	// GetActiveEmailConfig returns the lowest-id active SMTP config.
	GetActiveEmailConfig(ctx context.Context) (*model.EmailConfig, error)
}

// FinalizeReportParams groups parameters for ReportRepository.FinalizeReport.
type FinalizeReportParams struct {
	ReportID        int64
	Status          model.ReportStatus
	Passed          int
	Failed          int
	Errored         int
	DurationSeconds float64
}

// ReportRepository defines the interface for test reports and their results.
type ReportRepository interface {
	CreateReport(ctx context.Context, report *model.TestReport) (*model.TestReport, error)
	// FinalizeReport transitions a running report to its terminal state.
	// Reports already finalized are left untouched.
	FinalizeReport(ctx context.Context, params FinalizeReportParams) (*model.TestReport, error)
	GetReport(ctx context.Context, id int64) (*model.TestReport, error)
	ListReports(ctx context.Context, limit, offset int) ([]*model.TestReport, error)
	AddResult(ctx context.Context, result *model.TestResult) (*model.TestResult, error)
	ListResults(ctx context.Context, reportID int64) ([]*model.TestResult, error)
}

// RecordTaskRunParams groups parameters for ScheduledTaskRepository.RecordRun.
type RecordTaskRunParams struct {
	TaskID   int64
	RanAt    time.Time
	ReportID int64
	Result   string
}

// ScheduledTaskRepository defines the interface for scheduled batch tasks.
type ScheduledTaskRepository interface {
	Create(ctx context.Context, task *model.ScheduledTask) (*model.ScheduledTask, error)
	GetByID(ctx context.Context, id int64) (*model.ScheduledTask, error)
	List(ctx context.Context) ([]*model.ScheduledTask, error)
	ListActive(ctx context.Context) ([]*model.ScheduledTask, error)
	RecordRun(ctx context.Context, params RecordTaskRunParams) error
}
