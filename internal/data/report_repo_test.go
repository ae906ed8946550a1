package data

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeworks/apiprobe/internal/core"
	"github.com/probeworks/apiprobe/internal/domain/model"
	"github.com/probeworks/apiprobe/internal/testutil"
)

func TestReportRepo_CreateAndFinalize(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewReportRepo(db)

		report, err := repo.CreateReport(ctx, &model.TestReport{Name: "nightly smoke", Total: 3})
		require.NoError(t, err)
		require.NotZero(t, report.ID)
		assert.Equal(t, model.ReportStatusRunning, report.Status)
		assert.Equal(t, 3, report.Total)
		assert.False(t, report.CreatedAt.IsZero())

		final, err := repo.FinalizeReport(ctx, core.FinalizeReportParams{
			ReportID:        report.ID,
			Status:          model.ReportStatusCompleted,
			Passed:          2,
			Failed:          1,
			DurationSeconds: 1.234,
		})
		require.NoError(t, err)
		assert.Equal(t, model.ReportStatusCompleted, final.Status)
		assert.Equal(t, 2, final.Passed)
		assert.Equal(t, 1, final.Failed)
		assert.Equal(t, 0, final.Errored)
		assert.InDelta(t, 1.234, final.DurationSeconds, 0.0001)

		// Second finalize is a no-op and returns the stored row
		again, err := repo.FinalizeReport(ctx, core.FinalizeReportParams{
			ReportID: report.ID,
			Status:   model.ReportStatusError,
			Errored:  99,
		})
		require.NoError(t, err)
		assert.Equal(t, model.ReportStatusCompleted, again.Status)
		assert.Equal(t, 2, again.Passed)
		assert.Equal(t, 0, again.Errored)

		_, err = repo.FinalizeReport(ctx, core.FinalizeReportParams{
			ReportID: report.ID + 100000,
			Status:   model.ReportStatusCompleted,
		})
		assert.ErrorIs(t, err, ErrReportNotFound)

		_, err = repo.FinalizeReport(ctx, core.FinalizeReportParams{
			ReportID: report.ID,
			Status:   model.ReportStatusRunning,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be terminal")
	})
}

func TestReportRepo_ListReports(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		tp := NewFixedTimeProvider(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
		repo := NewReportRepoWithTimeProvider(db, tp)

		names := []string{"first", "second", "third"}
		for _, name := range names {
			_, err := repo.CreateReport(ctx, &model.TestReport{Name: name})
			require.NoError(t, err)
			tp.AddTime(time.Second)
		}

		page, err := repo.ListReports(ctx, 2, 0)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "third", page[0].Name)
		assert.Equal(t, "second", page[1].Name)

		rest, err := repo.ListReports(ctx, 2, 2)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, "first", rest[0].Name)
	})
}

func TestReportRepo_AddResult(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewReportRepo(db)

		report, err := repo.CreateReport(ctx, &model.TestReport{Name: "with results"})
		require.NoError(t, err)

		t.Run("persists snapshot fields", func(t *testing.T) {
			created, err := repo.AddResult(ctx, &model.TestResult{
				ReportID:         report.ID,
				ApiName:          "login",
				URL:              "https://example.com/login",
				Method:           "POST",
				ResponseStatus:   200,
				ResponseBody:     `{"ok":true}`,
				ResponseTimeMs:   12.34,
				Status:           model.ResultPass,
				ExtractedVars:    `{"token":"abc"}`,
				AssertionResults: `[{"passed":true}]`,
			})
			require.NoError(t, err)
			require.NotZero(t, created.ID)
			assert.Equal(t, report.ID, created.ReportID)
			assert.Equal(t, "login", created.ApiName)
			assert.Equal(t, `{"ok":true}`, created.ResponseBody)
			assert.InDelta(t, 12.34, created.ResponseTimeMs, 0.0001)
			assert.Equal(t, model.ResultPass, created.Status)
		})

		t.Run("truncates oversized body without splitting runes", func(t *testing.T) {
			body := strings.Repeat("測", model.ResponseBodyLimit+500)
			created, err := repo.AddResult(ctx, &model.TestResult{
				ReportID:     report.ID,
				ApiName:      "big-body",
				Status:       model.ResultPass,
				ResponseBody: body,
			})
			require.NoError(t, err)
			assert.Equal(t, model.ResponseBodyLimit, utf8.RuneCountInString(created.ResponseBody))
			assert.True(t, utf8.ValidString(created.ResponseBody))
		})

		t.Run("unknown report id", func(t *testing.T) {
			_, err := repo.AddResult(ctx, &model.TestResult{
				ReportID: report.ID + 100000,
				ApiName:  "orphan",
				Status:   model.ResultError,
			})
			assert.ErrorIs(t, err, ErrReferencedRowMissing)
		})

		t.Run("missing report id", func(t *testing.T) {
			_, err := repo.AddResult(ctx, &model.TestResult{ApiName: "no-report"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "report_id is required")
		})
	})
}

func TestReportRepo_ListResults(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewReportRepo(db)

		report, err := repo.CreateReport(ctx, &model.TestReport{Name: "ordered"})
		require.NoError(t, err)
		other, err := repo.CreateReport(ctx, &model.TestReport{Name: "other"})
		require.NoError(t, err)

		for _, name := range []string{"a", "b", "c"} {
			_, err := repo.AddResult(ctx, &model.TestResult{
				ReportID: report.ID, ApiName: name, Status: model.ResultPass,
			})
			require.NoError(t, err)
		}
		_, err = repo.AddResult(ctx, &model.TestResult{
			ReportID: other.ID, ApiName: "elsewhere", Status: model.ResultFail,
		})
		require.NoError(t, err)

		results, err := repo.ListResults(ctx, report.ID)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "a", results[0].ApiName)
		assert.Equal(t, "b", results[1].ApiName)
		assert.Equal(t, "c", results[2].ApiName)

		empty, err := repo.ListResults(ctx, report.ID+100000)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}
