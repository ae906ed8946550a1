package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeworks/apiprobe/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleReport() *model.TestReport {
	return &model.TestReport{
		ID:              42,
		Name:            "冒煙測試",
		Status:          model.ReportStatusCompleted,
		Total:           4,
		Passed:          3,
		Failed:          1,
		DurationSeconds: 2.5,
	}
}

func TestNewWebhookNotifier(t *testing.T) {
	t.Run("requires a url", func(t *testing.T) {
		_, err := NewWebhookNotifier(WebhookConfig{})
		assert.EqualError(t, err, "webhook url is required")
	})

	t.Run("rejects a malformed body expression", func(t *testing.T) {
		_, err := NewWebhookNotifier(WebhookConfig{
			URL:      "https://hooks.example.com/report",
			BodyExpr: "not]]a[path",
		})
		assert.ErrorContains(t, err, "invalid report body expression")
	})

	t.Run("accepts an empty body expression", func(t *testing.T) {
		n, err := NewWebhookNotifier(WebhookConfig{URL: "https://hooks.example.com/report"})
		require.NoError(t, err)
		assert.Empty(t, n.bodyExpr)
	})
}

func TestWebhookNotifierDelivery(t *testing.T) {
	ctx := context.Background()

	t.Run("posts the summary payload", func(t *testing.T) {
		var gotContentType string
		var gotBody map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotContentType = r.Header.Get("Content-Type")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		n, err := NewWebhookNotifier(WebhookConfig{URL: srv.URL, Logger: testLogger()})
		require.NoError(t, err)

		require.NoError(t, n.NotifyReport(ctx, sampleReport(), []string{"qa@example.com"}))

		assert.Equal(t, "application/json", gotContentType)
		assert.Equal(t, float64(42), gotBody["report_id"])
		assert.Equal(t, "冒煙測試", gotBody["name"])
		assert.Equal(t, float64(75), gotBody["pass_rate"])
		assert.Equal(t, []any{"qa@example.com"}, gotBody["recipients"])
	})

	t.Run("reshapes with a body expression", func(t *testing.T) {
		var gotBody map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		n, err := NewWebhookNotifier(WebhookConfig{
			URL:      srv.URL,
			BodyExpr: "{report: name, rate: pass_rate}",
			Logger:   testLogger(),
		})
		require.NoError(t, err)

		require.NoError(t, n.NotifyReport(ctx, sampleReport(), nil))

		assert.Equal(t, map[string]any{"report": "冒煙測試", "rate": float64(75)}, gotBody)
	})

	t.Run("non 2xx status is a delivery error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		n, err := NewWebhookNotifier(WebhookConfig{URL: srv.URL, Logger: testLogger()})
		require.NoError(t, err)

		err = n.NotifyReport(ctx, sampleReport(), nil)
		assert.ErrorContains(t, err, "500")
		assert.ErrorContains(t, err, "boom")
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		n, err := NewWebhookNotifier(WebhookConfig{URL: srv.URL, RetryLimit: 1, Logger: testLogger()})
		require.NoError(t, err)

		require.NoError(t, n.NotifyReport(ctx, sampleReport(), nil))
		assert.Equal(t, int32(2), hits.Load())
	})

	t.Run("stops retrying on a cancelled context", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		n, err := NewWebhookNotifier(WebhookConfig{URL: srv.URL, RetryLimit: 3, Logger: testLogger()})
		require.NoError(t, err)

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		err = n.NotifyReport(cancelled, sampleReport(), nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(testLogger())
	assert.NoError(t, n.NotifyReport(context.Background(), sampleReport(), []string{"qa@example.com"}))
}

func TestJMESPathLibEvaluator(t *testing.T) {
	eval := jmespathLibEvaluator{}

	assert.NoError(t, eval.Validate(""))
	assert.NoError(t, eval.Validate("{rate: pass_rate}"))
	assert.Error(t, eval.Validate("not]]a[path"))

	got, err := eval.Evaluate("name", map[string]any{"name": "冒煙"})
	require.NoError(t, err)
	assert.Equal(t, "冒煙", got)
}
