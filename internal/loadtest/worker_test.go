package loadtest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeWorkerFixture(t *testing.T, dir string, cfg WorkerConfig) (*Worker, string, string) {
	t.Helper()
	configPath := filepath.Join(dir, "config_t1.json")
	statusPath := filepath.Join(dir, "status_t1.json")
	resultPath := filepath.Join(dir, "result_t1.json")
	require.NoError(t, writeJSONFile(configPath, cfg))
	w, err := NewWorker(configPath, statusPath, resultPath, testLogger())
	require.NoError(t, err)
	return w, statusPath, resultPath
}

func TestNewWorker(t *testing.T) {
	t.Run("missing config", func(t *testing.T) {
		_, err := NewWorker(filepath.Join(t.TempDir(), "nope.json"), "", "", testLogger())
		require.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		w, _, _ := writeWorkerFixture(t, t.TempDir(), WorkerConfig{})
		assert.Equal(t, 1, w.cfg.Users)
		assert.Equal(t, 1, w.cfg.SpawnRate)
		assert.Equal(t, defaultWaitMin, w.cfg.WaitMin)
		assert.Equal(t, defaultWaitMax, w.cfg.WaitMax)
	})

	t.Run("clamps inverted waits", func(t *testing.T) {
		w, _, _ := writeWorkerFixture(t, t.TempDir(), WorkerConfig{WaitMin: 0.5, WaitMax: 0.1})
		assert.Equal(t, 0.5, w.cfg.WaitMin)
		assert.Equal(t, 0.5, w.cfg.WaitMax)
	})
}

func TestEndpointRow(t *testing.T) {
	t.Run("computes stats from samples", func(t *testing.T) {
		row := endpointRow("訂單查詢", "GET", 4, 1, []float64{30, 10, 20, 40}, 2)
		assert.Equal(t, int64(4), row.NumRequests)
		assert.Equal(t, int64(1), row.NumFailures)
		assert.Equal(t, 25.0, row.AvgResponseTime)
		assert.Equal(t, 10.0, row.MinResponseTime)
		assert.Equal(t, 40.0, row.MaxResponseTime)
		assert.Equal(t, 2.0, row.TotalRPS)
		assert.Equal(t, 20.0, row.ResponseTimes["50"])
		assert.Equal(t, 40.0, row.ResponseTimes["99"])
	})

	t.Run("all failures leave times empty", func(t *testing.T) {
		row := endpointRow("下單", "POST", 3, 3, nil, 1.5)
		assert.Equal(t, 2.0, row.TotalRPS)
		assert.Zero(t, row.AvgResponseTime)
		assert.Zero(t, row.MaxResponseTime)
		assert.Zero(t, row.ResponseTimes["50"])
		assert.Zero(t, row.ResponseTimes["95"])
	})
}

func TestWorkerRun(t *testing.T) {
	var okHits, failHits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			assert.Equal(t, "1", r.URL.Query().Get("page"))
			assert.Equal(t, "probe", r.Header.Get("X-Client"))
			okHits.Add(1)
			w.Write([]byte(`{"ok":true}`))
		case "/orders":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			failHits.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := WorkerConfig{
		APIs: []APIPayload{
			{
				Name:    "查詢接口",
				Method:  "GET",
				URL:     srv.URL + "/search",
				Params:  map[string]any{"page": 1},
				Headers: map[string]any{"X-Client": "probe"},
			},
			{
				Name:     "下單接口",
				Method:   "POST",
				URL:      srv.URL + "/orders",
				Body:     map[string]any{"sku": "A1"},
				BodyType: "json",
			},
		},
		Users:     2,
		SpawnRate: 100,
		Duration:  1,
		WaitMin:   0.001,
		WaitMax:   0.002,
	}
	w, statusPath, resultPath := writeWorkerFixture(t, t.TempDir(), cfg)

	require.NoError(t, w.Run(context.Background()))

	assert.Positive(t, okHits.Load())
	assert.Positive(t, failHits.Load())

	var status WorkerStatus
	require.NoError(t, readJSONFile(statusPath, &status))
	assert.Equal(t, StatusCompleted, status.Status)
	assert.Zero(t, status.ActiveUsers)
	assert.Equal(t, okHits.Load()+failHits.Load(), status.TotalRequests)
	assert.Equal(t, failHits.Load(), status.TotalFailures)

	var rows []EndpointStats
	require.NoError(t, readJSONFile(resultPath, &rows))
	require.Len(t, rows, 3)

	byName := map[string]EndpointStats{}
	for _, row := range rows {
		byName[row.Name] = row
	}

	search := byName["查詢接口"]
	assert.Equal(t, "GET", search.Method)
	assert.Equal(t, okHits.Load(), search.NumRequests)
	assert.Zero(t, search.NumFailures)
	assert.Positive(t, search.AvgResponseTime)
	assert.Contains(t, search.ResponseTimes, "50")
	assert.Contains(t, search.ResponseTimes, "99")

	orders := byName["下單接口"]
	assert.Equal(t, failHits.Load(), orders.NumRequests)
	assert.Equal(t, failHits.Load(), orders.NumFailures)
	assert.Zero(t, orders.AvgResponseTime, "failed requests contribute no samples")

	agg := byName[AggregatedName]
	assert.Equal(t, search.NumRequests+orders.NumRequests, agg.NumRequests)
	assert.Equal(t, orders.NumFailures, agg.NumFailures)
	assert.Positive(t, agg.TotalRPS)

	// Result rows keep the configured API order, aggregate last.
	assert.Equal(t, "查詢接口", rows[0].Name)
	assert.Equal(t, "下單接口", rows[1].Name)
	assert.Equal(t, AggregatedName, rows[2].Name)
}

func TestWorkerRunCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := WorkerConfig{
		APIs:      []APIPayload{{Name: "慢查詢", Method: "GET", URL: srv.URL}},
		Users:     1,
		SpawnRate: 10,
		Duration:  30,
		WaitMin:   0.001,
		WaitMax:   0.002,
	}
	w, statusPath, resultPath := writeWorkerFixture(t, t.TempDir(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	require.NoError(t, w.Run(ctx))
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation must cut the run short")

	var status WorkerStatus
	require.NoError(t, readJSONFile(statusPath, &status))
	assert.Equal(t, StatusCompleted, status.Status)

	var rows []EndpointStats
	require.NoError(t, readJSONFile(resultPath, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "慢查詢", rows[0].Name)
	assert.Positive(t, rows[0].NumRequests)
}

func TestWorkerIssueFormBody(t *testing.T) {
	var gotBody atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotBody.Store(r.PostForm.Get("account"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	w := &Worker{logger: testLogger(), stats: map[string]*endpointAccum{}}
	status, err := w.issue(srv.Client(), APIPayload{
		Name:     "表單登入",
		Method:   "post",
		URL:      srv.URL,
		Body:     map[string]any{"account": "tester"},
		BodyType: "form",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "tester", gotBody.Load())
}
