package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeworks/apiprobe/internal/data"
	"github.com/probeworks/apiprobe/internal/domain/model"
	"github.com/probeworks/apiprobe/internal/service/batch"
)

type stubApiSource struct {
	getByID func(ctx context.Context, id int64) (*model.ApiConfig, error)
}

func (s *stubApiSource) GetByID(ctx context.Context, id int64) (*model.ApiConfig, error) {
	return s.getByID(ctx, id)
}

type stubRunner struct {
	mu          sync.Mutex
	batchParams []batch.Params
	run         func(ctx context.Context, params batch.Params) (*model.TestReport, error)
	runSingle   func(ctx context.Context, params batch.SingleParams) (*batch.SingleOutcome, error)
}

func (s *stubRunner) Run(ctx context.Context, params batch.Params) (*model.TestReport, error) {
	s.mu.Lock()
	s.batchParams = append(s.batchParams, params)
	s.mu.Unlock()
	if s.run != nil {
		return s.run(ctx, params)
	}
	return &model.TestReport{ID: 1}, nil
}

func (s *stubRunner) RunSingle(ctx context.Context, params batch.SingleParams) (*batch.SingleOutcome, error) {
	return s.runSingle(ctx, params)
}

func (s *stubRunner) captured() []batch.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]batch.Params(nil), s.batchParams...)
}

type stubReportSource struct {
	getReport func(ctx context.Context, id int64) (*model.TestReport, error)
}

func (s *stubReportSource) GetReport(ctx context.Context, id int64) (*model.TestReport, error) {
	return s.getReport(ctx, id)
}

func passOutcome() *batch.SingleOutcome {
	return &batch.SingleOutcome{
		Report: &model.TestReport{ID: 41, Name: "單測-登入-10:00:00", Status: model.ReportStatusCompleted, Total: 1, Passed: 1},
		Results: []*model.RunResult{{
			ApiID:          7,
			ApiName:        "登入",
			URL:            "https://api.example.com/login",
			Method:         "POST",
			UseSession:     true,
			ResponseStatus: 200,
			ResponseBody:   `{"token":"t-1"}`,
			ResponseTimeMs: 123.4,
			Status:         model.ResultPass,
			ExtractedVars:  map[string]any{"token": "t-1"},
		}},
	}
}

func TestRunSingle(t *testing.T) {
	api := &model.ApiConfig{ID: 7, Name: "登入", URL: "https://api.example.com/login", Method: "POST"}

	t.Run("executes and summarizes", func(t *testing.T) {
		var captured batch.SingleParams
		h := &RunHandlers{
			Apis: &stubApiSource{getByID: func(_ context.Context, id int64) (*model.ApiConfig, error) {
				require.EqualValues(t, 7, id)
				return api, nil
			}},
			Runner: &stubRunner{runSingle: func(_ context.Context, params batch.SingleParams) (*batch.SingleOutcome, error) {
				captured = params
				return passOutcome(), nil
			}},
			Logger: testLogger(),
		}

		body := `{"extras":{"env":"staging"},"report_name":"夜間單測"}`
		req := httptest.NewRequest("POST", "/apis/7/run", strings.NewReader(body))
		req.SetPathValue("id", "7")
		rec := httptest.NewRecorder()
		h.RunSingle(rec, req)

		require.Equal(t, 200, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.Equal(t, 0, env.Code)
		assert.Equal(t, "執行完成", env.Message)

		assert.Same(t, api, captured.API)
		assert.Equal(t, map[string]any{"env": "staging"}, captured.Extras)
		assert.Equal(t, "夜間單測", captured.ReportName)

		var got struct {
			ReportID       int64            `json:"report_id"`
			Status         string           `json:"status"`
			UseSession     bool             `json:"use_session"`
			ResponseStatus int              `json:"response_status"`
			ResponseBody   string           `json:"response_body"`
			ResponseTimeMs float64          `json:"response_time_ms"`
			ExtractedVars  map[string]any   `json:"extracted_vars"`
			Results        []map[string]any `json:"results"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.EqualValues(t, 41, got.ReportID)
		assert.Equal(t, "pass", got.Status)
		assert.True(t, got.UseSession)
		assert.Equal(t, 200, got.ResponseStatus)
		assert.Equal(t, `{"token":"t-1"}`, got.ResponseBody)
		assert.Equal(t, 123.4, got.ResponseTimeMs)
		assert.Equal(t, map[string]any{"token": "t-1"}, got.ExtractedVars)
		require.Len(t, got.Results, 1)
		assert.Equal(t, "登入", got.Results[0]["api_name"])
	})

	t.Run("merges legacy extra_vars key", func(t *testing.T) {
		var captured batch.SingleParams
		h := &RunHandlers{
			Apis: &stubApiSource{getByID: func(context.Context, int64) (*model.ApiConfig, error) { return api, nil }},
			Runner: &stubRunner{runSingle: func(_ context.Context, params batch.SingleParams) (*batch.SingleOutcome, error) {
				captured = params
				return passOutcome(), nil
			}},
			Logger: testLogger(),
		}

		body := `{"extra_vars":{"env":"legacy","region":"east"},"extras":{"env":"staging"}}`
		req := httptest.NewRequest("POST", "/apis/7/run", strings.NewReader(body))
		req.SetPathValue("id", "7")
		h.RunSingle(httptest.NewRecorder(), req)

		assert.Equal(t, map[string]any{"env": "staging", "region": "east"}, captured.Extras)
	})

	t.Run("truncates the body preview", func(t *testing.T) {
		long := strings.Repeat("測", previewLimit+500)
		outcome := passOutcome()
		outcome.Results[0].ResponseBody = long
		h := &RunHandlers{
			Apis: &stubApiSource{getByID: func(context.Context, int64) (*model.ApiConfig, error) { return api, nil }},
			Runner: &stubRunner{runSingle: func(context.Context, batch.SingleParams) (*batch.SingleOutcome, error) {
				return outcome, nil
			}},
			Logger: testLogger(),
		}

		req := httptest.NewRequest("POST", "/apis/7/run", nil)
		req.SetPathValue("id", "7")
		rec := httptest.NewRecorder()
		h.RunSingle(rec, req)

		var got struct {
			ResponseBody string           `json:"response_body"`
			Results      []map[string]any `json:"results"`
		}
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
		assert.Equal(t, previewLimit, utf8.RuneCountInString(got.ResponseBody))
		full, _ := got.Results[0]["response_body"].(string)
		assert.Equal(t, long, full, "the result rows keep the full body")
	})

	t.Run("unknown api", func(t *testing.T) {
		h := &RunHandlers{
			Apis: &stubApiSource{getByID: func(context.Context, int64) (*model.ApiConfig, error) {
				return nil, data.ErrApiConfigNotFound
			}},
			Runner: &stubRunner{},
			Logger: testLogger(),
		}

		req := httptest.NewRequest("POST", "/apis/99/run", nil)
		req.SetPathValue("id", "99")
		rec := httptest.NewRecorder()
		h.RunSingle(rec, req)

		require.Equal(t, 404, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.Equal(t, 404, env.Code)
		assert.Equal(t, "接口不存在", env.Message)
	})

	t.Run("non-numeric id", func(t *testing.T) {
		h := &RunHandlers{Runner: &stubRunner{}, Logger: testLogger()}
		req := httptest.NewRequest("POST", "/apis/abc/run", nil)
		req.SetPathValue("id", "abc")
		rec := httptest.NewRecorder()
		h.RunSingle(rec, req)

		require.Equal(t, 404, rec.Code)
		assert.Equal(t, "接口不存在", decodeEnvelope(t, rec).Message)
	})

	t.Run("runner error becomes 500", func(t *testing.T) {
		h := &RunHandlers{
			Apis: &stubApiSource{getByID: func(context.Context, int64) (*model.ApiConfig, error) { return api, nil }},
			Runner: &stubRunner{runSingle: func(context.Context, batch.SingleParams) (*batch.SingleOutcome, error) {
				return nil, errors.New("create report: db down")
			}},
			Logger: testLogger(),
		}

		req := httptest.NewRequest("POST", "/apis/7/run", nil)
		req.SetPathValue("id", "7")
		rec := httptest.NewRecorder()
		h.RunSingle(rec, req)

		require.Equal(t, 500, rec.Code)
		assert.Contains(t, decodeEnvelope(t, rec).Message, "db down")
	})
}

func TestRunBatch(t *testing.T) {
	t.Run("submits in the background", func(t *testing.T) {
		runner := &stubRunner{}
		registry := batch.NewRegistry()
		h := &RunHandlers{Runner: runner, Progress: registry, Logger: testLogger()}

		body := `{"api_ids":[3,5],"report_name":"回歸","stop_on_failure":true}`
		req := httptest.NewRequest("POST", "/run/batch", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.RunBatch(rec, req)

		require.Equal(t, 200, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.Equal(t, 0, env.Code)

		var got struct {
			TaskID string `json:"task_id"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &got))
		require.NotEmpty(t, got.TaskID)

		entry, ok := registry.Get(got.TaskID)
		require.True(t, ok, "task must be registered before the handler answers")
		assert.Equal(t, batch.StatusRunning, entry.Status)
		assert.Equal(t, 2, entry.Total)

		require.Eventually(t, func() bool {
			return len(runner.captured()) == 1
		}, 3*time.Second, 10*time.Millisecond, "background batch should reach the runner")
		params := runner.captured()[0]
		assert.Equal(t, []int64{3, 5}, params.ApiIDs)
		assert.Equal(t, "回歸", params.ReportName)
		assert.True(t, params.StopOnFailure)
		assert.Equal(t, got.TaskID, params.TaskID)
	})

	t.Run("rejects empty selection", func(t *testing.T) {
		h := &RunHandlers{Runner: &stubRunner{}, Progress: batch.NewRegistry(), Logger: testLogger()}

		for _, body := range []string{``, `{}`, `{"api_ids":[]}`, `{"api_ids": not-json`} {
			req := httptest.NewRequest("POST", "/run/batch", strings.NewReader(body))
			rec := httptest.NewRecorder()
			h.RunBatch(rec, req)

			require.Equal(t, 400, rec.Code, "body %q", body)
			assert.Equal(t, "請選擇要執行的接口", decodeEnvelope(t, rec).Message)
		}
	})
}

func TestBatchStatus(t *testing.T) {
	reports := &stubReportSource{getReport: func(_ context.Context, id int64) (*model.TestReport, error) {
		require.EqualValues(t, 55, id)
		return &model.TestReport{
			ID: 55, Name: "回歸", Status: model.ReportStatusCompleted,
			Total: 10, Passed: 9, Failed: 1, DurationSeconds: 12.5,
		}, nil
	}}

	t.Run("running", func(t *testing.T) {
		registry := batch.NewRegistry()
		registry.Running("t1", 3, 10)
		h := &RunHandlers{Reports: reports, Progress: registry, Logger: testLogger()}

		req := httptest.NewRequest("GET", "/run/batch/status/t1", nil)
		req.SetPathValue("task_id", "t1")
		rec := httptest.NewRecorder()
		h.BatchStatus(rec, req)

		require.Equal(t, 200, rec.Code)
		var got batchStatusResponse
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
		assert.Equal(t, batch.StatusRunning, got.Status)
		assert.Equal(t, 3, got.Progress)
		assert.Equal(t, 10, got.Total)
		assert.Nil(t, got.Report)
	})

	t.Run("completed includes the report summary", func(t *testing.T) {
		registry := batch.NewRegistry()
		registry.Completed("t2", 10, 10, 55)
		h := &RunHandlers{Reports: reports, Progress: registry, Logger: testLogger()}

		req := httptest.NewRequest("GET", "/run/batch/status/t2", nil)
		req.SetPathValue("task_id", "t2")
		rec := httptest.NewRecorder()
		h.BatchStatus(rec, req)

		var got batchStatusResponse
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
		assert.Equal(t, batch.StatusCompleted, got.Status)
		require.NotNil(t, got.Report)
		assert.EqualValues(t, 55, got.Report.ReportID)
		assert.Equal(t, 90.0, got.Report.PassRate)
		assert.Equal(t, 9, got.Report.Passed)
		assert.Equal(t, 1, got.Report.Failed)
		assert.Equal(t, 12.5, got.Report.DurationSeconds)
	})

	t.Run("failed carries the error", func(t *testing.T) {
		registry := batch.NewRegistry()
		registry.Failed("t3", "no matching api configs")
		h := &RunHandlers{Reports: reports, Progress: registry, Logger: testLogger()}

		req := httptest.NewRequest("GET", "/run/batch/status/t3", nil)
		req.SetPathValue("task_id", "t3")
		rec := httptest.NewRecorder()
		h.BatchStatus(rec, req)

		var got batchStatusResponse
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
		assert.Equal(t, batch.StatusError, got.Status)
		assert.Equal(t, "no matching api configs", got.Error)
	})

	t.Run("report lookup failure degrades to status only", func(t *testing.T) {
		registry := batch.NewRegistry()
		registry.Completed("t4", 4, 4, 77)
		h := &RunHandlers{
			Reports: &stubReportSource{getReport: func(context.Context, int64) (*model.TestReport, error) {
				return nil, errors.New("db down")
			}},
			Progress: registry,
			Logger:   testLogger(),
		}

		req := httptest.NewRequest("GET", "/run/batch/status/t4", nil)
		req.SetPathValue("task_id", "t4")
		rec := httptest.NewRecorder()
		h.BatchStatus(rec, req)

		require.Equal(t, 200, rec.Code)
		var got batchStatusResponse
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
		assert.Equal(t, batch.StatusCompleted, got.Status)
		assert.Nil(t, got.Report)
	})

	t.Run("unknown task", func(t *testing.T) {
		h := &RunHandlers{Reports: reports, Progress: batch.NewRegistry(), Logger: testLogger()}

		req := httptest.NewRequest("GET", "/run/batch/status/nope", nil)
		req.SetPathValue("task_id", "nope")
		rec := httptest.NewRecorder()
		h.BatchStatus(rec, req)

		require.Equal(t, 404, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.Equal(t, 404, env.Code)
		assert.Equal(t, "任務不存在", env.Message)
	})
}
