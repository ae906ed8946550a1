package httpclient

import (
	"mime"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeworks/apiprobe/internal/domain/model"
)

func TestPrepareURL(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		params map[string]any
		want   string
	}{
		{
			name:   "plain params",
			url:    "https://h/p",
			params: map[string]any{"a": "1", "b": float64(2)},
			want:   "https://h/p?a=1&b=2",
		},
		{
			name:   "empty and null params dropped",
			url:    "https://h/p",
			params: map[string]any{"a": "1", "empty": "", "null": nil},
			want:   "https://h/p?a=1",
		},
		{
			name:   "raw path segment",
			url:    "https://h/p",
			params: map[string]any{"_raw": "abc"},
			want:   "https://h/p/abc",
		},
		{
			name:   "raw path segment strips slashes",
			url:    "https://h/p/",
			params: map[string]any{"_raw": "/abc/"},
			want:   "https://h/p/abc",
		},
		{
			name:   "raw query pair",
			url:    "https://h/p",
			params: map[string]any{"_raw": "a=1"},
			want:   "https://h/p?a=1",
		},
		{
			name:   "raw query pair on url with query",
			url:    "https://h/p?x=0",
			params: map[string]any{"_raw": "a=1"},
			want:   "https://h/p?x=0&a=1",
		},
		{
			name:   "raw plus regular params",
			url:    "https://h/p",
			params: map[string]any{"_raw": "v2", "a": "1"},
			want:   "https://h/p/v2?a=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			preq, err := Prepare(RequestSpec{
				Method: "get", URL: tt.url, Params: tt.params, BodyType: model.BodyTypeJSON,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, preq.URL)
			assert.Equal(t, "GET", preq.Method)
		})
	}
}

func TestPrepareBodyFramings(t *testing.T) {
	t.Run("json object", func(t *testing.T) {
		preq, err := Prepare(RequestSpec{
			Method: "POST", URL: "https://h/p",
			Body: map[string]any{"a": float64(1)}, BodyType: model.BodyTypeJSON,
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(preq.Body))
		assert.Equal(t, "application/json", preq.Header.Get("Content-Type"))
	})

	t.Run("json respects caller content type", func(t *testing.T) {
		preq, err := Prepare(RequestSpec{
			Method: "POST", URL: "https://h/p",
			Headers: map[string]any{"Content-Type": "application/vnd.custom+json"},
			Body:    map[string]any{"a": float64(1)}, BodyType: model.BodyTypeJSON,
		})
		require.NoError(t, err)
		assert.Equal(t, "application/vnd.custom+json", preq.Header.Get("Content-Type"))
	})

	t.Run("empty bodies send nothing", func(t *testing.T) {
		for _, body := range []any{nil, "", map[string]any{}, []any{}} {
			preq, err := Prepare(RequestSpec{
				Method: "POST", URL: "https://h/p", Body: body, BodyType: model.BodyTypeJSON,
			})
			require.NoError(t, err)
			assert.Nil(t, preq.Body)
			assert.Empty(t, preq.Header.Get("Content-Type"))
		}
	})

	t.Run("data map is urlencoded", func(t *testing.T) {
		preq, err := Prepare(RequestSpec{
			Method: "POST", URL: "https://h/p",
			Body: map[string]any{"a": "1", "b": "x y"}, BodyType: model.BodyTypeData,
		})
		require.NoError(t, err)
		values, err := url.ParseQuery(string(preq.Body))
		require.NoError(t, err)
		assert.Equal(t, "1", values.Get("a"))
		assert.Equal(t, "x y", values.Get("b"))
		assert.Equal(t, "application/x-www-form-urlencoded", preq.Header.Get("Content-Type"))
	})

	t.Run("data string passes through without content type", func(t *testing.T) {
		preq, err := Prepare(RequestSpec{
			Method: "POST", URL: "https://h/p", Body: "k=v&k2=v2", BodyType: model.BodyTypeData,
		})
		require.NoError(t, err)
		assert.Equal(t, "k=v&k2=v2", string(preq.Body))
		assert.Empty(t, preq.Header.Get("Content-Type"))
	})

	t.Run("params body merges into query", func(t *testing.T) {
		preq, err := Prepare(RequestSpec{
			Method: "GET", URL: "https://h/p",
			Params: map[string]any{"page": "1"},
			Body:   map[string]any{"size": float64(20), "skip": ""},
			BodyType: model.BodyTypeParams,
		})
		require.NoError(t, err)
		assert.Equal(t, "https://h/p?page=1&size=20", preq.URL)
		assert.Nil(t, preq.Body)
	})

	t.Run("params body as json string", func(t *testing.T) {
		preq, err := Prepare(RequestSpec{
			Method: "GET", URL: "https://h/p",
			Body: `{"size": 20}`, BodyType: model.BodyTypeParams,
		})
		require.NoError(t, err)
		assert.Equal(t, "https://h/p?size=20", preq.URL)
	})

	t.Run("form stringifies values", func(t *testing.T) {
		preq, err := Prepare(RequestSpec{
			Method: "POST", URL: "https://h/p",
			Body: map[string]any{"n": float64(3), "s": "v"}, BodyType: model.BodyTypeForm,
		})
		require.NoError(t, err)
		values, err := url.ParseQuery(string(preq.Body))
		require.NoError(t, err)
		assert.Equal(t, "3", values.Get("n"))
		assert.Equal(t, "v", values.Get("s"))
		assert.Equal(t, "application/x-www-form-urlencoded", preq.Header.Get("Content-Type"))
	})

	t.Run("form with non map body sends nothing", func(t *testing.T) {
		preq, err := Prepare(RequestSpec{
			Method: "POST", URL: "https://h/p", Body: "oops", BodyType: model.BodyTypeForm,
		})
		require.NoError(t, err)
		assert.Nil(t, preq.Body)
	})

	t.Run("text string", func(t *testing.T) {
		preq, err := Prepare(RequestSpec{
			Method: "POST", URL: "https://h/p", Body: "hello", BodyType: model.BodyTypeText,
		})
		require.NoError(t, err)
		assert.Equal(t, "hello", string(preq.Body))
		assert.Equal(t, "text/plain; charset=utf-8", preq.Header.Get("Content-Type"))
	})

	t.Run("text empty string sends nothing", func(t *testing.T) {
		preq, err := Prepare(RequestSpec{
			Method: "POST", URL: "https://h/p", Body: "", BodyType: model.BodyTypeText,
		})
		require.NoError(t, err)
		assert.Nil(t, preq.Body)
		assert.Empty(t, preq.Header.Get("Content-Type"))
	})

	t.Run("text map serializes as json text", func(t *testing.T) {
		preq, err := Prepare(RequestSpec{
			Method: "POST", URL: "https://h/p",
			Body: map[string]any{"a": "好"}, BodyType: model.BodyTypeText,
		})
		require.NoError(t, err)
		assert.Equal(t, `{"a":"好"}`, string(preq.Body))
		assert.Equal(t, "text/plain; charset=utf-8", preq.Header.Get("Content-Type"))
	})

	t.Run("raw map serializes with json content type", func(t *testing.T) {
		preq, err := Prepare(RequestSpec{
			Method: "POST", URL: "https://h/p",
			Body: map[string]any{"a": float64(1)}, BodyType: model.BodyTypeRaw,
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(preq.Body))
		assert.Equal(t, "application/json", preq.Header.Get("Content-Type"))
	})

	t.Run("raw string passes through without content type", func(t *testing.T) {
		preq, err := Prepare(RequestSpec{
			Method: "POST", URL: "https://h/p", Body: "ciphertext==", BodyType: model.BodyTypeRaw,
		})
		require.NoError(t, err)
		assert.Equal(t, "ciphertext==", string(preq.Body))
		assert.Empty(t, preq.Header.Get("Content-Type"))
	})

	t.Run("unknown body type falls back to json", func(t *testing.T) {
		preq, err := Prepare(RequestSpec{
			Method: "POST", URL: "https://h/p",
			Body: map[string]any{"a": float64(1)}, BodyType: model.BodyType("mystery"),
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(preq.Body))
		assert.Equal(t, "application/json", preq.Header.Get("Content-Type"))
	})
}

func TestPrepareFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "avatar.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o600))

	t.Run("multipart with fields and file", func(t *testing.T) {
		preq, err := Prepare(RequestSpec{
			Method: "POST", URL: "https://h/upload",
			Body: map[string]any{
				"user": "u1",
				"__files__": []any{
					map[string]any{"field": "avatar", "path": path, "mime": "image/png"},
					map[string]any{"field": "ghost", "path": filepath.Join(dir, "missing.bin")},
				},
			},
			BodyType: model.BodyTypeFiles,
		})
		require.NoError(t, err)

		mediaType, params, err := mime.ParseMediaType(preq.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.Equal(t, "multipart/form-data", mediaType)

		reader := multipart.NewReader(strings.NewReader(string(preq.Body)), params["boundary"])
		form, err := reader.ReadForm(1 << 20)
		require.NoError(t, err)
		defer func() { _ = form.RemoveAll() }()

		assert.Equal(t, []string{"u1"}, form.Value["user"])
		require.Len(t, form.File["avatar"], 1)
		assert.Equal(t, "avatar.png", form.File["avatar"][0].Filename)
		assert.Equal(t, "image/png", form.File["avatar"][0].Header.Get("Content-Type"))
		assert.Empty(t, form.File["ghost"])
	})

	t.Run("fields only falls back to urlencoded", func(t *testing.T) {
		preq, err := Prepare(RequestSpec{
			Method: "POST", URL: "https://h/upload",
			Body:     map[string]any{"user": "u1"},
			BodyType: model.BodyTypeFiles,
		})
		require.NoError(t, err)
		assert.Equal(t, "user=u1", string(preq.Body))
		assert.Equal(t, "application/x-www-form-urlencoded", preq.Header.Get("Content-Type"))
	})
}
