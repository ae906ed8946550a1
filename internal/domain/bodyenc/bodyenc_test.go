package bodyenc

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeworks/apiprobe/internal/domain/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decryptGCM(t *testing.T, encoded, key string) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(raw), gcmNonceSize+16)

	block, err := aes.NewCipher(adjustKey(key))
	require.NoError(t, err)
	gcm, err := cipher.NewGCMWithNonceSize(block, gcmNonceSize)
	require.NoError(t, err)

	plain, err := gcm.Open(nil, raw[:gcmNonceSize], raw[gcmNonceSize:], nil)
	require.NoError(t, err)
	return string(plain)
}

func TestAdjustKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		key     string
		wantLen int
	}{
		{name: "short key pads to 16", key: "abc", wantLen: 16},
		{name: "exactly 16", key: "0123456789abcdef", wantLen: 16},
		{name: "17 pads to 24", key: "0123456789abcdefg", wantLen: 24},
		{name: "25 pads to 32", key: "0123456789abcdef012345678", wantLen: 32},
		{name: "over 32 truncates", key: "0123456789abcdef0123456789abcdef-extra", wantLen: 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adjustKey(tt.key)
			assert.Len(t, got, tt.wantLen)
			if len(tt.key) <= tt.wantLen {
				assert.Equal(t, tt.key, string(got[:len(tt.key)]))
				for _, b := range got[len(tt.key):] {
					assert.Equal(t, byte(0), b, "padding must be zero bytes")
				}
			}
		})
	}
}

func TestEncryptGCM(t *testing.T) {
	t.Parallel()

	out, err := EncryptGCM("hello world", "test-key")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(out)
	require.NoError(t, err)
	// nonce || ciphertext || 16-byte tag
	assert.Len(t, raw, gcmNonceSize+len("hello world")+16)
	assert.Equal(t, make([]byte, gcmNonceSize), raw[:gcmNonceSize], "nonce is fixed zeros")

	assert.Equal(t, "hello world", decryptGCM(t, out, "test-key"))

	// Zero nonce means identical input encrypts identically.
	again, err := EncryptGCM("hello world", "test-key")
	require.NoError(t, err)
	assert.Equal(t, out, again)

	other, err := EncryptGCM("hello world", "other-key")
	require.NoError(t, err)
	assert.NotEqual(t, out, other)
}

func TestEncryptCBC(t *testing.T) {
	t.Parallel()

	out, err := EncryptCBC("secret payload", "test-key")
	require.NoError(t, err)

	var doc struct {
		IV   string `json:"iv"`
		Data string `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	iv, err := base64.StdEncoding.DecodeString(doc.IV)
	require.NoError(t, err)
	require.Len(t, iv, aes.BlockSize)
	ct, err := base64.StdEncoding.DecodeString(doc.Data)
	require.NoError(t, err)
	require.Zero(t, len(ct)%aes.BlockSize)

	block, err := aes.NewCipher(adjustKey("test-key"))
	require.NoError(t, err)
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)
	pad := int(plain[len(plain)-1])
	require.True(t, pad >= 1 && pad <= aes.BlockSize)
	assert.Equal(t, "secret payload", string(plain[:len(plain)-pad]))

	// Random IV: a second call must not repeat.
	again, err := EncryptCBC("secret payload", "test-key")
	require.NoError(t, err)
	assert.NotEqual(t, out, again)
}

func TestEncodeBase64AndMD5(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "aGVsbG8=", EncodeBase64("hello"))
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", HashMD5("hello"))
}

func TestEncryptBody(t *testing.T) {
	t.Parallel()

	t.Run("base64", func(t *testing.T) {
		out, err := EncryptBody("abc", model.AlgorithmBase64, "k")
		require.NoError(t, err)
		assert.Equal(t, "YWJj", out)
	})

	t.Run("gcm roundtrip", func(t *testing.T) {
		out, err := EncryptBody(`{"a":1}`, model.AlgorithmAESGCM, "k1")
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, decryptGCM(t, out, "k1"))
	})

	t.Run("unknown algorithm passes through", func(t *testing.T) {
		out, err := EncryptBody("abc", "ROT13", "k")
		require.NoError(t, err)
		assert.Equal(t, "abc", out)
	})
}

func TestApplyRules(t *testing.T) {
	t.Parallel()

	logger := discardLogger()

	t.Run("substitutes and encrypts into field", func(t *testing.T) {
		body := map[string]any{"user": "u1"}
		out, encrypted := ApplyRules(body,
			[]model.BodyEncRule{{Field: "password", Source: "{{pwd}}"}},
			"default-key", map[string]any{"pwd": "s3cret"}, logger)

		assert.Equal(t, []string{"password"}, encrypted)
		assert.Equal(t, "u1", out["user"])
		assert.Equal(t, "s3cret", decryptGCM(t, out["password"].(string), "default-key"))
		// input untouched
		_, had := body["password"]
		assert.False(t, had)
	})

	t.Run("rule key overrides default", func(t *testing.T) {
		out, _ := ApplyRules(map[string]any{},
			[]model.BodyEncRule{{Field: "f", Source: "v", Key: "rule-key"}},
			"default-key", nil, logger)
		assert.Equal(t, "v", decryptGCM(t, out["f"].(string), "rule-key"))
	})

	t.Run("json_dumps serializes variable value", func(t *testing.T) {
		out, _ := ApplyRules(map[string]any{},
			[]model.BodyEncRule{{Field: "f", Source: "{{doc}}", JSONDumps: true, Key: "k"}},
			"", map[string]any{"doc": map[string]any{"a": float64(1)}}, logger)
		assert.JSONEq(t, `{"a":1}`, decryptGCM(t, out["f"].(string), "k"))
	})

	t.Run("json_dumps serializes body field", func(t *testing.T) {
		out, _ := ApplyRules(map[string]any{"profile": []any{"x", "y"}},
			[]model.BodyEncRule{{Field: "f", Source: "profile", JSONDumps: true, Key: "k"}},
			"", nil, logger)
		assert.JSONEq(t, `["x","y"]`, decryptGCM(t, out["f"].(string), "k"))
	})

	t.Run("json_dumps quotes a bare string", func(t *testing.T) {
		out, _ := ApplyRules(map[string]any{},
			[]model.BodyEncRule{{Field: "f", Source: "plain text", JSONDumps: true, Key: "k"}},
			"", nil, logger)
		assert.Equal(t, `"plain text"`, decryptGCM(t, out["f"].(string), "k"))
	})

	t.Run("json_dumps keeps valid JSON text", func(t *testing.T) {
		out, _ := ApplyRules(map[string]any{},
			[]model.BodyEncRule{{Field: "f", Source: `[1,2]`, JSONDumps: true, Key: "k"}},
			"", nil, logger)
		assert.Equal(t, `[1,2]`, decryptGCM(t, out["f"].(string), "k"))
	})

	t.Run("skips incomplete rules", func(t *testing.T) {
		out, encrypted := ApplyRules(map[string]any{"keep": true},
			[]model.BodyEncRule{
				{Field: "", Source: "x"},
				{Field: "f", Source: ""},
				{Field: "nokey", Source: "x"},
			},
			"", nil, logger)
		assert.Empty(t, encrypted)
		assert.Equal(t, map[string]any{"keep": true}, out)
	})

	t.Run("non-map body starts empty", func(t *testing.T) {
		out, encrypted := ApplyRules("raw string body",
			[]model.BodyEncRule{{Field: "f", Source: "v", Key: "k"}},
			"", nil, logger)
		assert.Equal(t, []string{"f"}, encrypted)
		assert.Len(t, out, 1)
	})
}
