package httpx

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wireEnvelope mirrors the response envelope with the data left raw so
// each test can decode it into its own shape.
type wireEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) wireEnvelope {
	t.Helper()
	var env wireEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "response must be an envelope: %s", rec.Body.String())
	return env
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteSuccess(t *testing.T) {
	t.Run("default message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		writeSuccess(rec, map[string]int{"count": 3}, "")

		require.Equal(t, 200, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		env := decodeEnvelope(t, rec)
		assert.Equal(t, 0, env.Code)
		assert.Equal(t, "操作成功", env.Message)
		assert.JSONEq(t, `{"count":3}`, string(env.Data))
	})

	t.Run("custom message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		writeSuccess(rec, nil, "執行完成")

		env := decodeEnvelope(t, rec)
		assert.Equal(t, 0, env.Code)
		assert.Equal(t, "執行完成", env.Message)
	})

	t.Run("nil data serializes as null", func(t *testing.T) {
		rec := httptest.NewRecorder()
		writeSuccess(rec, nil, "")

		assert.Contains(t, rec.Body.String(), `"data":null`)
	})
}

func TestWriteFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	writeFailure(rec, 404, "任務不存在")

	require.Equal(t, 404, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, 404, env.Code)
	assert.Equal(t, "任務不存在", env.Message)
	assert.Contains(t, rec.Body.String(), `"data":null`, "failure envelopes still carry the data key")
}

func TestDecodeBody(t *testing.T) {
	type payload struct {
		Name  string  `json:"name"`
		Count int     `json:"count"`
		IDs   []int64 `json:"ids"`
	}

	tests := []struct {
		name string
		body string
		want payload
	}{
		{"valid json", `{"name":"冒煙","count":2,"ids":[3,4]}`, payload{Name: "冒煙", Count: 2, IDs: []int64{3, 4}}},
		{"empty body", ``, payload{}},
		{"whitespace body", "  \n\t", payload{}},
		{"malformed json keeps defaults", `{"name": tr`, payload{}},
		{"wrong shape keeps defaults", `[1,2,3]`, payload{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/x", strings.NewReader(tt.body))
			var got payload
			decodeBody(req, &got)
			assert.Equal(t, tt.want, got)
		})
	}
}
