// Package model defines the core data types used throughout the apiprobe engine.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// BodyType controls how the outgoing request body is framed.
type BodyType string

const (
	// BodyTypeJSON serializes the body as a JSON document.
	BodyTypeJSON BodyType = "json"
	// BodyTypeData passes a map or string as form-like data.
	BodyTypeData BodyType = "data"
	// BodyTypeParams merges the body into the query string.
	BodyTypeParams BodyType = "params"
	// BodyTypeForm urlencodes the body with stringified values.
	BodyTypeForm BodyType = "form"
	// BodyTypeText sends the stringified body as text/plain.
	BodyTypeText BodyType = "text"
	// BodyTypeRaw sends strings verbatim and serializes structured values as JSON.
	BodyTypeRaw BodyType = "raw"
	// BodyTypeFiles packs a multipart form from __files__ entries.
	BodyTypeFiles BodyType = "files"
)

// Valid returns true if the BodyType is one of the supported framings.
func (b BodyType) Valid() bool {
	switch b {
	case BodyTypeJSON, BodyTypeData, BodyTypeParams, BodyTypeForm, BodyTypeText, BodyTypeRaw, BodyTypeFiles:
		return true
	default:
		return false
	}
}

// EncryptionAlgorithm selects the whole-body encryption mode.
type EncryptionAlgorithm string

const (
	// AlgorithmAES is AES-CBC with a random IV, emitted as {iv, data} JSON.
	AlgorithmAES EncryptionAlgorithm = "AES"
	// AlgorithmAESGCM is AES-GCM with the fixed zero IV the target servers expect.
	AlgorithmAESGCM EncryptionAlgorithm = "AES-GCM"
	// AlgorithmBase64 is plain base64 encoding.
	AlgorithmBase64 EncryptionAlgorithm = "BASE64"
	// AlgorithmMD5 is an MD5 hex digest.
	AlgorithmMD5 EncryptionAlgorithm = "MD5"
)

// BodyEncRule encrypts one source value into one body field (field-level
// AES-GCM mode). Key overrides the config-level encryption key; its wire
// name "raw" matches the stored rule format.
type BodyEncRule struct {
	Field     string `json:"field"`
	Source    string `json:"ssrc"`
	JSONDumps bool   `json:"json_dumps,omitempty"`
	Key       string `json:"raw,omitempty"`
}

// ExtractRule pulls a value out of the decoded response into the variable store.
type ExtractRule struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// AssertionType enumerates the HTTP assertion kinds.
type AssertionType string

const (
	// AssertStatusCode compares the response status code.
	AssertStatusCode AssertionType = "status_code"
	// AssertJSONPath extracts a value by path and compares for equality.
	AssertJSONPath AssertionType = "json_path"
	// AssertContains searches the stringified body for a substring.
	AssertContains AssertionType = "contains"
	// AssertNotEmpty checks that the extracted value is present and non-empty.
	AssertNotEmpty AssertionType = "not_empty"
	// AssertRegex matches a pattern against the extracted or stringified value.
	AssertRegex AssertionType = "regex"
)

// Assertion is one HTTP assertion rule on an ApiConfig.
type Assertion struct {
	Type     AssertionType `json:"type"`
	Path     string        `json:"path,omitempty"`
	Expected any           `json:"expected,omitempty"`
}

// DeepDiffAssertion deep-compares an expected document against the response.
type DeepDiffAssertion struct {
	Label        string   `json:"label,omitempty"`
	Expected     any      `json:"expected"`
	IgnoreFields []string `json:"ignore_fields,omitempty"`
	CheckPath    string   `json:"check_path,omitempty"`
}

// DBAssertionField is one field check inside a multi-field DB assertion.
type DBAssertionField struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Expected string `json:"expected"`
}

// DBAssertion verifies a database row after the request ran. The single-field
// form sets Field/Operator/Expected; the multi-field form sets Fields.
type DBAssertion struct {
	DatabaseID int64              `json:"db_id"`
	SQL        string             `json:"sql"`
	Label      string             `json:"label,omitempty"`
	Field      string             `json:"field,omitempty"`
	Operator   string             `json:"operator,omitempty"`
	Expected   string             `json:"expected,omitempty"`
	Fields     []DBAssertionField `json:"fields,omitempty"`
}

// MultiField reports whether the assertion uses the multi-field form.
func (a DBAssertion) MultiField() bool { return len(a.Fields) > 0 }

// PreRedisRule fetches a Redis value into the variable store before dispatch.
type PreRedisRule struct {
	RedisID      int64  `json:"redis_id"`
	Key          string `json:"key"`
	VarName      string `json:"var_name"`
	ExtractField string `json:"extract_field,omitempty"`
}

// RawParamKey is the distinguished params key whose value is appended to the
// request URL instead of being sent as a regular query parameter.
const RawParamKey = "_raw"

// ApiConfig is a stored HTTP request template with templating, encryption,
// assertions, and pre/post hooks.
type ApiConfig struct {
	ID         int64  `json:"id"                    db:"id"`
	Name       string `json:"name"                  db:"name"`
	CategoryID *int64 `json:"category_id,omitempty" db:"category_id"`
	SortOrder  int    `json:"sort_order"            db:"sort_order"`

	URL            string `json:"url"             db:"url"`
	Method         string `json:"method"          db:"method"`
	TimeoutSeconds int    `json:"timeout_seconds" db:"timeout_seconds"`

	Headers string `json:"headers" db:"headers"`
	Params  string `json:"params"  db:"params"`
	Body    string `json:"body"    db:"body"`

	BodyType   BodyType `json:"body_type"   db:"body_type"`
	UseSession bool     `json:"use_session" db:"use_session"`
	UseAsync   bool     `json:"use_async"   db:"use_async"`

	SSLVerify         string `json:"ssl_verify"          db:"ssl_verify"`
	SSLCert           string `json:"ssl_cert,omitempty"  db:"ssl_cert"`
	ClientCertEnabled bool   `json:"client_cert_enabled" db:"client_cert_enabled"`
	ClientCert        string `json:"client_cert,omitempty" db:"client_cert"`
	ClientKey         string `json:"client_key,omitempty"  db:"client_key"`

	Encrypted           bool                `json:"encrypted"            db:"encrypted"`
	EncryptionKey       string              `json:"encryption_key"       db:"encryption_key"`
	EncryptionAlgorithm EncryptionAlgorithm `json:"encryption_algorithm" db:"encryption_algorithm"`
	BodyEncRules        string              `json:"body_enc_rules"       db:"body_enc_rules"`

	ExtractVars        string `json:"extract_vars"        db:"extract_vars"`
	Assertions         string `json:"assertions"          db:"assertions"`
	DeepDiffAssertions string `json:"deepdiff_assertions" db:"deepdiff_assertions"`
	DBAssertions       string `json:"db_assertions"       db:"db_assertions"`
	PreRedisRules      string `json:"pre_redis_rules"     db:"pre_redis_rules"`

	PreSQLDatabaseID  *int64 `json:"pre_sql_db_id,omitempty"  db:"pre_sql_db_id"`
	PreSQL            string `json:"pre_sql,omitempty"        db:"pre_sql"`
	PostSQLDatabaseID *int64 `json:"post_sql_db_id,omitempty" db:"post_sql_db_id"`
	PostSQL           string `json:"post_sql,omitempty"       db:"post_sql"`

	RepeatEnabled bool `json:"repeat_enabled" db:"repeat_enabled"`
	RepeatCount   int  `json:"repeat_count"   db:"repeat_count"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks the fields a run depends on.
func (a *ApiConfig) Validate() error {
	if strings.TrimSpace(a.URL) == "" {
		return errors.New("url is required")
	}
	switch strings.ToUpper(a.Method) {
	case "GET", "POST", "PUT", "PATCH", "DELETE":
	default:
		return fmt.Errorf("invalid method: %q", a.Method)
	}
	if a.TimeoutSeconds < 1 {
		return errors.New("timeout_seconds must be >= 1")
	}
	if a.RepeatEnabled && (a.RepeatCount < 1 || a.RepeatCount > 100) {
		return errors.New("repeat_count must be in [1,100]")
	}
	return nil
}

// EffectiveRepeat returns how many times the pipeline runs this config.
func (a *ApiConfig) EffectiveRepeat() int {
	if !a.RepeatEnabled || a.RepeatCount < 1 {
		return 1
	}
	if a.RepeatCount > 100 {
		return 100
	}
	return a.RepeatCount
}

// DecodedHeaders parses the stored headers blob. Anything that is not a JSON
// object decodes to an empty map.
func (a *ApiConfig) DecodedHeaders() map[string]any {
	return decodeObject(a.Headers)
}

// DecodedParams parses the stored params blob. Three formats are accepted:
// a JSON object, a k=v&k2=v2 query string (first value wins), and a bare
// string, which becomes {"_raw": value}.
func (a *ApiConfig) DecodedParams() map[string]any {
	raw := strings.TrimSpace(a.Params)
	if raw == "" {
		return map[string]any{}
	}
	if m := decodeObject(raw); len(m) > 0 || strings.HasPrefix(raw, "{") {
		return m
	}
	if strings.Contains(raw, "=") {
		values, err := url.ParseQuery(raw)
		if err == nil {
			out := make(map[string]any, len(values))
			for k, vs := range values {
				if len(vs) > 0 {
					out[k] = vs[0]
				} else {
					out[k] = ""
				}
			}
			return out
		}
	}
	return map[string]any{RawParamKey: raw}
}

// DecodedBody parses the stored body blob. Valid JSON keeps its decoded
// shape (objects, arrays, and scalars); anything else is returned as the raw
// string. An empty blob decodes to nil.
func (a *ApiConfig) DecodedBody() any {
	raw := strings.TrimSpace(a.Body)
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// DecodedBodyEncRules parses the field-level encryption rule list.
func (a *ApiConfig) DecodedBodyEncRules() []BodyEncRule {
	var rules []BodyEncRule
	decodeList(a.BodyEncRules, &rules)
	return rules
}

// DecodedExtractVars parses the extraction rule list.
func (a *ApiConfig) DecodedExtractVars() []ExtractRule {
	var rules []ExtractRule
	decodeList(a.ExtractVars, &rules)
	return rules
}

// DecodedAssertions parses the HTTP assertion list.
func (a *ApiConfig) DecodedAssertions() []Assertion {
	var rules []Assertion
	decodeList(a.Assertions, &rules)
	return rules
}

// DecodedDeepDiffAssertions parses the structural-diff assertion list.
func (a *ApiConfig) DecodedDeepDiffAssertions() []DeepDiffAssertion {
	var rules []DeepDiffAssertion
	decodeList(a.DeepDiffAssertions, &rules)
	return rules
}

// DecodedDBAssertions parses the database assertion list.
func (a *ApiConfig) DecodedDBAssertions() []DBAssertion {
	var rules []DBAssertion
	decodeList(a.DBAssertions, &rules)
	return rules
}

// DecodedPreRedisRules parses the pre-request Redis rule list.
func (a *ApiConfig) DecodedPreRedisRules() []PreRedisRule {
	var rules []PreRedisRule
	decodeList(a.PreRedisRules, &rules)
	return rules
}

func decodeObject(raw string) map[string]any {
	out := map[string]any{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{}
	}
	return out
}

func decodeList(raw string, dst any) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	// Tolerate stored degradations: a decode failure means no rules.
	_ = json.Unmarshal([]byte(raw), dst)
}
