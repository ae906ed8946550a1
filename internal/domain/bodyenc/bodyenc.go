// Package bodyenc implements the payload encryption modes the target
// services expect: whole-body AES-GCM/AES-CBC/BASE64/MD5 and field-level
// AES-GCM driven by per-field rules.
package bodyenc

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/probeworks/apiprobe/internal/domain/model"
	"github.com/probeworks/apiprobe/internal/domain/vars"
)

// gcmNonceSize is fixed at 12 bytes of zeros. The receiving services derive
// the nonce the same way, so randomizing it would break decryption on their
// side.
const gcmNonceSize = 12

var soloPlaceholderRe = regexp.MustCompile(`^\{\{\s*([^}]+?)\s*\}\}$`)

// adjustKey pads the key with zero bytes up to the nearest AES key size
// (16, 24, or 32) and truncates anything longer than 32 bytes.
func adjustKey(key string) []byte {
	kb := []byte(key)
	for _, size := range []int{16, 24, 32} {
		if len(kb) <= size {
			padded := make([]byte, size)
			copy(padded, kb)
			return padded
		}
	}
	return kb[:32]
}

// EncryptGCM encrypts plaintext with AES-GCM under the zero nonce and
// returns base64(nonce || ciphertext || tag).
func EncryptGCM(plaintext, key string) (string, error) {
	block, err := aes.NewCipher(adjustKey(key))
	if err != nil {
		return "", fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, gcmNonceSize)
	if err != nil {
		return "", fmt.Errorf("gcm mode: %w", err)
	}
	nonce := make([]byte, gcmNonceSize)
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	out := make([]byte, 0, gcmNonceSize+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// EncryptCBC encrypts plaintext with AES-CBC under a random IV and returns
// a JSON document {"iv": base64, "data": base64}.
func EncryptCBC(plaintext, key string) (string, error) {
	block, err := aes.NewCipher(adjustKey(key))
	if err != nil {
		return "", fmt.Errorf("aes cipher: %w", err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("random iv: %w", err)
	}
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	doc, err := json.Marshal(map[string]string{
		"iv":   base64.StdEncoding.EncodeToString(iv),
		"data": base64.StdEncoding.EncodeToString(ct),
	})
	if err != nil {
		return "", err
	}
	return string(doc), nil
}

// EncodeBase64 base64-encodes the plaintext.
func EncodeBase64(plaintext string) string {
	return base64.StdEncoding.EncodeToString([]byte(plaintext))
}

// HashMD5 returns the lowercase hex MD5 digest of the plaintext.
func HashMD5(plaintext string) string {
	sum := md5.Sum([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// EncryptBody applies the whole-body algorithm to the serialized body.
// Unknown algorithms return the body unchanged.
func EncryptBody(body string, algorithm model.EncryptionAlgorithm, key string) (string, error) {
	switch algorithm {
	case model.AlgorithmAESGCM:
		return EncryptGCM(body, key)
	case model.AlgorithmAES:
		return EncryptCBC(body, key)
	case model.AlgorithmBase64:
		return EncodeBase64(body), nil
	case model.AlgorithmMD5:
		return HashMD5(body), nil
	default:
		return body, nil
	}
}

// ApplyRules runs the field-level encryption rules against a request body
// and returns the rewritten body plus the names of the fields written.
// Field-level rules always use AES-GCM. The source expression has variables
// substituted first; with json_dumps set, the source is resolved to its
// structured value (from the variable table or the body itself) and
// serialized before encryption. Rules missing a field, source, or key are
// skipped with a warning rather than failing the run.
func ApplyRules(body any, rules []model.BodyEncRule, defaultKey string, variables map[string]any, logger *slog.Logger) (map[string]any, []string) {
	out := map[string]any{}
	if m, ok := body.(map[string]any); ok {
		for k, v := range m {
			out[k] = v
		}
	}

	var encrypted []string
	for _, rule := range rules {
		if rule.Field == "" || rule.Source == "" {
			logger.Warn("body enc rule skipped: field and source are required",
				slog.String("field", rule.Field))
			continue
		}
		key := rule.Key
		if key == "" {
			key = defaultKey
		}
		if key == "" {
			logger.Warn("body enc rule skipped: no key configured", slog.String("field", rule.Field))
			continue
		}

		value := vars.Substitute(rule.Source, variables)
		if rule.JSONDumps {
			value = resolveJSONSource(rule.Source, value, out, variables)
		}

		ct, err := EncryptGCM(value, key)
		if err != nil {
			logger.Warn("body enc rule failed", slog.String("field", rule.Field), slog.Any("error", err))
			continue
		}
		out[rule.Field] = ct
		encrypted = append(encrypted, rule.Field)
	}
	return out, encrypted
}

// resolveJSONSource picks the value to serialize when a rule asks for
// json_dumps. A bare {{name}} source serializes the variable's structured
// value; a source naming a body field serializes that field; otherwise the
// substituted text is kept if it already parses as JSON and quoted into a
// JSON string if not.
func resolveJSONSource(source, substituted string, body map[string]any, variables map[string]any) string {
	if m := soloPlaceholderRe.FindStringSubmatch(strings.TrimSpace(source)); m != nil {
		if v, ok := variables[m[1]]; ok {
			return jsonDump(v)
		}
	}
	if v, ok := body[source]; ok {
		return jsonDump(v)
	}
	if json.Valid([]byte(substituted)) {
		return substituted
	}
	return jsonDump(substituted)
}

// jsonDump serializes without HTML escaping so payloads match what the
// target services sign against.
func jsonDump(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}
