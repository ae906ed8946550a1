// Package mocks provides mock implementations for testing the engine services.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockReportRepository(ctrl)
//	mockRepo.EXPECT().CreateReport(gomock.Any(), gomock.Any()).Return(report, nil)
package mocks

// Generate mock for ApiConfigRepository interface from internal/core package.
// This creates MockApiConfigRepository with methods for all ApiConfigRepository interface methods:
// Create, GetByID, ListByIDs, List
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=api_config_repository_mock.go github.com/probeworks/apiprobe/internal/core ApiConfigRepository

// Generate mock for GlobalVariableRepository interface from internal/core package.
// This creates MockGlobalVariableRepository with methods for all GlobalVariableRepository interface methods:
// List, GetByName, Upsert
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=global_variable_repository_mock.go github.com/probeworks/apiprobe/internal/core GlobalVariableRepository

// Generate mock for ConnectionRepository interface from internal/core package.
// This creates MockConnectionRepository with methods for all ConnectionRepository interface methods:
// GetDatabaseConfig, CreateDatabaseConfig, GetRedisConfig, CreateRedisConfig, ListEmailConfigs, GetActiveEmailConfig
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=connection_repository_mock.go github.com/probeworks/apiprobe/internal/core ConnectionRepository

// Generate mock for ReportRepository interface from internal/core package.
// This creates MockReportRepository with methods for all ReportRepository interface methods:
// CreateReport, FinalizeReport, GetReport, ListReports, AddResult, ListResults
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=report_repository_mock.go github.com/probeworks/apiprobe/internal/core ReportRepository

// Generate mock for ScheduledTaskRepository interface from internal/core package.
// This creates MockScheduledTaskRepository with methods for all ScheduledTaskRepository interface methods:
// Create, GetByID, List, ListActive, RecordRun
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=scheduled_task_repository_mock.go github.com/probeworks/apiprobe/internal/core ScheduledTaskRepository
