package testutil

import (
	"github.com/probeworks/apiprobe/internal/domain/model"
)

// ApiConfigBuilder provides a fluent interface for building ApiConfig
// fixtures for tests.
type ApiConfigBuilder struct {
	cfg *model.ApiConfig
}

// NewApiConfig creates a new ApiConfigBuilder with sensible defaults.
func NewApiConfig(name string) *ApiConfigBuilder {
	return &ApiConfigBuilder{
		cfg: &model.ApiConfig{
			Name:                name,
			URL:                 "https://example.com/api",
			Method:              "GET",
			TimeoutSeconds:      30,
			BodyType:            model.BodyTypeJSON,
			SSLVerify:           "true",
			EncryptionAlgorithm: model.AlgorithmAESGCM,
			RepeatCount:         1,
		},
	}
}

// WithURL sets the request URL.
func (b *ApiConfigBuilder) WithURL(url string) *ApiConfigBuilder {
	b.cfg.URL = url
	return b
}

// WithMethod sets the HTTP method.
func (b *ApiConfigBuilder) WithMethod(method string) *ApiConfigBuilder {
	b.cfg.Method = method
	return b
}

// WithSortOrder sets the batch ordering key.
func (b *ApiConfigBuilder) WithSortOrder(order int) *ApiConfigBuilder {
	b.cfg.SortOrder = order
	return b
}

// WithTimeout sets the request timeout in seconds.
func (b *ApiConfigBuilder) WithTimeout(seconds int) *ApiConfigBuilder {
	b.cfg.TimeoutSeconds = seconds
	return b
}

// WithHeaders sets the stored headers blob.
func (b *ApiConfigBuilder) WithHeaders(headers string) *ApiConfigBuilder {
	b.cfg.Headers = headers
	return b
}

// WithParams sets the stored params blob.
func (b *ApiConfigBuilder) WithParams(params string) *ApiConfigBuilder {
	b.cfg.Params = params
	return b
}

// WithBody sets the stored body blob and its framing.
func (b *ApiConfigBuilder) WithBody(bodyType model.BodyType, body string) *ApiConfigBuilder {
	b.cfg.BodyType = bodyType
	b.cfg.Body = body
	return b
}

// WithSession enables the per-API cookie session.
func (b *ApiConfigBuilder) WithSession() *ApiConfigBuilder {
	b.cfg.UseSession = true
	return b
}

// WithAsync enables async dispatch.
func (b *ApiConfigBuilder) WithAsync() *ApiConfigBuilder {
	b.cfg.UseAsync = true
	return b
}

// WithEncryption enables whole-body encryption.
func (b *ApiConfigBuilder) WithEncryption(alg model.EncryptionAlgorithm, key string) *ApiConfigBuilder {
	b.cfg.Encrypted = true
	b.cfg.EncryptionAlgorithm = alg
	b.cfg.EncryptionKey = key
	return b
}

// WithBodyEncRules sets the field-level encryption rule blob.
func (b *ApiConfigBuilder) WithBodyEncRules(rules string) *ApiConfigBuilder {
	b.cfg.BodyEncRules = rules
	return b
}

// WithExtractVars sets the extraction rule blob.
func (b *ApiConfigBuilder) WithExtractVars(rules string) *ApiConfigBuilder {
	b.cfg.ExtractVars = rules
	return b
}

// WithAssertions sets the HTTP assertion blob.
func (b *ApiConfigBuilder) WithAssertions(rules string) *ApiConfigBuilder {
	b.cfg.Assertions = rules
	return b
}

// WithDeepDiffAssertions sets the structural-diff assertion blob.
func (b *ApiConfigBuilder) WithDeepDiffAssertions(rules string) *ApiConfigBuilder {
	b.cfg.DeepDiffAssertions = rules
	return b
}

// WithDBAssertions sets the database assertion blob.
func (b *ApiConfigBuilder) WithDBAssertions(rules string) *ApiConfigBuilder {
	b.cfg.DBAssertions = rules
	return b
}

// WithPreRedisRules sets the pre-request Redis rule blob.
func (b *ApiConfigBuilder) WithPreRedisRules(rules string) *ApiConfigBuilder {
	b.cfg.PreRedisRules = rules
	return b
}

// WithPreSQL sets the pre-request SQL hook.
func (b *ApiConfigBuilder) WithPreSQL(dbID int64, script string) *ApiConfigBuilder {
	b.cfg.PreSQLDatabaseID = &dbID
	b.cfg.PreSQL = script
	return b
}

// WithPostSQL sets the post-request SQL hook.
func (b *ApiConfigBuilder) WithPostSQL(dbID int64, script string) *ApiConfigBuilder {
	b.cfg.PostSQLDatabaseID = &dbID
	b.cfg.PostSQL = script
	return b
}

// WithRepeat enables repeat mode with the given count.
func (b *ApiConfigBuilder) WithRepeat(count int) *ApiConfigBuilder {
	b.cfg.RepeatEnabled = true
	b.cfg.RepeatCount = count
	return b
}

// Build returns the constructed ApiConfig.
func (b *ApiConfigBuilder) Build() *model.ApiConfig {
	return b.cfg
}
