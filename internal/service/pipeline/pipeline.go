// Package pipeline turns one stored ApiConfig into one RunResult by
// executing the ordered request stages: variable snapshot, pre-request
// Redis and SQL hooks, template substitution, payload encryption, HTTP
// dispatch, extraction, and the three assertion sets.
package pipeline

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/probeworks/apiprobe/internal/adapters/httpclient"
	"github.com/probeworks/apiprobe/internal/certstore"
	"github.com/probeworks/apiprobe/internal/data"
	"github.com/probeworks/apiprobe/internal/domain/assertion"
	"github.com/probeworks/apiprobe/internal/domain/bodyenc"
	"github.com/probeworks/apiprobe/internal/domain/extract"
	"github.com/probeworks/apiprobe/internal/domain/model"
	"github.com/probeworks/apiprobe/internal/domain/vars"
)

// errTruncateAt caps the stored message for non-timeout dispatch failures.
const errTruncateAt = 400

// GlobalSource lists the persisted variables merged under the runtime
// store when a run takes its snapshot.
type GlobalSource interface {
	List(ctx context.Context) ([]*model.GlobalVariable, error)
}

// RedisReader reads one key from a stored target Redis as a plain string.
// The Redis unit is the production implementation.
type RedisReader interface {
	GetRaw(ctx context.Context, redisID int64, key string) (*string, error)
}

// DatabaseSource resolves stored target database configs for the SQL hooks.
type DatabaseSource interface {
	GetDatabaseConfig(ctx context.Context, id int64) (*model.DatabaseConfig, error)
}

// SQLRunner executes one SQL script against a target database.
type SQLRunner interface {
	RunOnce(ctx context.Context, cfg *model.DatabaseConfig, script string) *model.SQLRunResult
}

// Dispatcher sends the prepared request.
type Dispatcher interface {
	Do(ctx context.Context, spec httpclient.RequestSpec, opts httpclient.Options) (*httpclient.Response, error)
}

// TLSResolver turns an API's certificate references into a tls.Config.
type TLSResolver interface {
	Resolve(m certstore.Material) (*tls.Config, error)
}

// DBQuerier is the per-run connection cache the DB assertions evaluate
// through. CloseAll releases the cached target connections.
type DBQuerier interface {
	assertion.RowQuerier
	CloseAll()
}

// Options holds the dependencies for creating a Runner.
type Options struct {
	Globals    GlobalSource
	Vars       *vars.Store
	Redis      RedisReader
	Databases  DatabaseSource
	SQL        SQLRunner
	Dispatcher Dispatcher
	TLS        TLSResolver
	// NewDBQuerier builds a fresh connection cache per run; DB assertion
	// rules against the same database share one connection inside it.
	NewDBQuerier func() DBQuerier
	Logger       *slog.Logger
}

// Runner executes API configs. Safe for sequential use; batches own the
// ordering guarantees.
type Runner struct {
	globals      GlobalSource
	vars         *vars.Store
	redis        RedisReader
	databases    DatabaseSource
	sql          SQLRunner
	dispatcher   Dispatcher
	tls          TLSResolver
	newDBQuerier func() DBQuerier
	logger       *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if opts.Vars == nil {
		return nil, errors.New("variable store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		globals:      opts.Globals,
		vars:         opts.Vars,
		redis:        opts.Redis,
		databases:    opts.Databases,
		sql:          opts.SQL,
		dispatcher:   opts.Dispatcher,
		tls:          opts.TLS,
		newDBQuerier: opts.NewDBQuerier,
		logger:       opts.Logger,
	}, nil
}

// Run executes one config against the current variable snapshot, with
// extras layered on top. Failures never escape as errors: every outcome,
// timeout and config mistake included, lands in the returned RunResult.
func (r *Runner) Run(ctx context.Context, api *model.ApiConfig, extras map[string]any) *model.RunResult {
	timeout := api.TimeoutSeconds
	if timeout < 1 {
		timeout = 1
	}

	snapshot := r.snapshot(ctx, extras)

	result := &model.RunResult{
		ApiID:      api.ID,
		ApiName:    api.Name,
		Method:     api.Method,
		UseAsync:   api.UseAsync,
		UseSession: api.UseSession,
		BodyType:   api.BodyType,
	}

	// Pre-request Redis rules run first so injected values are visible to
	// the URL, headers, params, and body templates.
	result.RedisRecords = r.runPreRedis(ctx, api.DecodedPreRedisRules(), snapshot)

	result.URL = vars.Substitute(api.URL, snapshot)
	headers := substituteMap(api.DecodedHeaders(), snapshot)
	params := substituteMap(api.DecodedParams(), snapshot)
	body := vars.SubstituteDeep(api.DecodedBody(), snapshot)
	result.RequestHeaders = headers
	result.RequestParams = params

	encRules := api.DecodedBodyEncRules()
	if len(encRules) > 0 {
		encBody, fields := bodyenc.ApplyRules(body, encRules, api.EncryptionKey, snapshot, r.logger)
		body = encBody
		result.EncryptedFields = fields
	}
	// The recorded request body is the pre-ciphertext form; whole-body
	// encryption keeps the readable payload inspectable in reports.
	result.RequestBody = body

	bodyType := api.BodyType
	if api.Encrypted && api.EncryptionKey != "" && len(encRules) == 0 {
		body, bodyType = r.encryptWholeBody(result, body, bodyType, api)
	}

	if api.PreSQL != "" && derefID(api.PreSQLDatabaseID) != 0 {
		result.PreSQL = r.runSQLHook(ctx, derefID(api.PreSQLDatabaseID), api.PreSQL, snapshot)
	}

	responseData := r.dispatch(ctx, result, httpclient.RequestSpec{
		Method:   api.Method,
		URL:      result.URL,
		Headers:  headers,
		Params:   params,
		Body:     body,
		BodyType: bodyType,
	}, api, timeout)

	// Extraction and assertions only see responses that actually arrived.
	if result.ErrorMessage == "" && responseData != nil {
		result.ExtractedVars = r.extractVars(api.DecodedExtractVars(), responseData, snapshot)
	}

	assertRules := api.DecodedAssertions()
	ddRules := api.DecodedDeepDiffAssertions()
	dbRules := api.DecodedDBAssertions()
	if result.ErrorMessage == "" {
		if len(assertRules) > 0 {
			result.AssertionRecords = assertion.Evaluate(assertRules, result.ResponseStatus, responseData)
		}
		if len(ddRules) > 0 {
			result.DeepDiffRecords = assertion.EvaluateDeepDiff(ddRules, responseData)
		}
	}

	// Post-SQL runs even after a dispatch failure so cleanup statements
	// always execute.
	if api.PostSQL != "" && derefID(api.PostSQLDatabaseID) != 0 {
		result.PostSQL = r.runSQLHook(ctx, derefID(api.PostSQLDatabaseID), api.PostSQL, snapshot)
	}

	if result.ErrorMessage == "" && len(dbRules) > 0 {
		result.DBRecords = r.runDBAssertions(ctx, dbRules, snapshot)
	}

	result.Status = finalStatus(result, len(assertRules)+len(ddRules)+len(dbRules) > 0)
	return result
}

// snapshot merges persisted globals, runtime entries, and caller extras,
// in that precedence order.
func (r *Runner) snapshot(ctx context.Context, extras map[string]any) map[string]any {
	globals := map[string]any{}
	if r.globals != nil {
		rows, err := r.globals.List(ctx)
		if err != nil {
			r.logger.WarnContext(ctx, "list global variables", slog.Any("error", err))
		}
		for _, row := range rows {
			globals[row.Name] = row.TypedValue()
		}
	}
	snapshot := r.vars.Snapshot(globals)
	for k, v := range extras {
		snapshot[k] = v
	}
	return snapshot
}

// runPreRedis reads each rule's key and injects the value into both the
// local snapshot and the runtime store. Rules missing their identifiers
// are skipped without a record; read failures are recorded and the run
// proceeds.
func (r *Runner) runPreRedis(ctx context.Context, rules []model.PreRedisRule, snapshot map[string]any) []model.RedisFetchRecord {
	if len(rules) == 0 || r.redis == nil {
		return nil
	}
	records := make([]model.RedisFetchRecord, 0, len(rules))
	for _, rule := range rules {
		rule.Key = strings.TrimSpace(rule.Key)
		rule.VarName = strings.TrimSpace(rule.VarName)
		if rule.RedisID == 0 || rule.Key == "" || rule.VarName == "" {
			continue
		}
		key := vars.Substitute(rule.Key, snapshot)
		rec := model.RedisFetchRecord{Key: key, VarName: rule.VarName}

		value, err := r.redis.GetRaw(ctx, rule.RedisID, key)
		switch {
		case err != nil:
			rec.Message = err.Error()
		case value == nil:
			rec.Message = fmt.Sprintf("key [%s] 不存在或已過期", key)
		default:
			final := redisRuleValue(*value, rule.ExtractField)
			snapshot[rule.VarName] = final
			r.vars.Set(rule.VarName, final)
			rec.Success = true
			rec.Value = final
		}
		records = append(records, rec)
	}
	return records
}

// redisRuleValue applies the optional extract_field: the raw value is
// parsed as JSON and the field pulled out. Anything that does not line
// up keeps the raw value; inline rules never fail on shape.
func redisRuleValue(raw, field string) string {
	if field == "" {
		return raw
	}
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return raw
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return raw
	}
	v, ok := obj[field]
	if !ok {
		return raw
	}
	return vars.Stringify(v)
}

// encryptWholeBody serializes and encrypts the payload. Text-like body
// types send the bare ciphertext under their original framing; json and
// form wrap it as {"encrypted": ct} and switch to json framing.
func (r *Runner) encryptWholeBody(result *model.RunResult, body any, bodyType model.BodyType, api *model.ApiConfig) (any, model.BodyType) {
	ct, err := bodyenc.EncryptBody(plainBodyText(body), api.EncryptionAlgorithm, api.EncryptionKey)
	if err != nil {
		r.logger.Warn("whole-body encryption failed",
			slog.String("api", api.Name), slog.Any("error", err))
		return body, bodyType
	}
	result.EncryptedBody = ct

	switch bodyType {
	case model.BodyTypeText, model.BodyTypeData, model.BodyTypeRaw:
		return ct, bodyType
	default:
		result.BodyType = model.BodyTypeJSON
		return map[string]any{"encrypted": ct}, model.BodyTypeJSON
	}
}

func plainBodyText(body any) string {
	switch b := body.(type) {
	case nil:
		return ""
	case string:
		return b
	default:
		return vars.Stringify(b)
	}
}

// runSQLHook substitutes variables into the script and runs it on the
// referenced target database. Config lookup failures take the same typed
// shape as statement failures.
func (r *Runner) runSQLHook(ctx context.Context, dbID int64, script string, snapshot map[string]any) *model.SQLRunResult {
	script = vars.Substitute(script, snapshot)

	if r.databases == nil || r.sql == nil {
		return sqlHookFailure(script, "sql executor not configured")
	}
	cfg, err := r.databases.GetDatabaseConfig(ctx, dbID)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, data.ErrDatabaseConfigNotFound) {
			msg = fmt.Sprintf("數據庫配置 id=%d 不存在", dbID)
		}
		return sqlHookFailure(script, msg)
	}
	return r.sql.RunOnce(ctx, cfg, script)
}

func sqlHookFailure(script, msg string) *model.SQLRunResult {
	return &model.SQLRunResult{Success: false, Statements: []model.SQLStatementResult{{
		SQL:   script,
		Kind:  model.StatementDDL,
		Error: msg,
	}}}
}

// dispatch sends the request and decodes the response. The decoded value
// is returned for the extraction and assertion stages; on failure the
// result carries the error message and a zero status.
func (r *Runner) dispatch(ctx context.Context, result *model.RunResult, spec httpclient.RequestSpec, api *model.ApiConfig, timeout int) any {
	var tlsConf *tls.Config
	if r.tls != nil {
		conf, err := r.tls.Resolve(certstore.Material{
			SSLVerify:         api.SSLVerify,
			SSLCert:           api.SSLCert,
			ClientCertEnabled: api.ClientCertEnabled,
			ClientCert:        api.ClientCert,
			ClientKey:         api.ClientKey,
		})
		if err != nil {
			result.ErrorMessage = truncateChars(err.Error(), errTruncateAt)
			return nil
		}
		tlsConf = conf
	}

	start := time.Now()
	resp, err := r.dispatcher.Do(ctx, spec, httpclient.Options{
		APIID:          api.ID,
		UseSession:     api.UseSession,
		UseAsync:       api.UseAsync,
		TimeoutSeconds: timeout,
		TLS:            tlsConf,
	})
	result.ResponseTimeMs = roundMillis(time.Since(start))

	if err != nil {
		var te *httpclient.TimeoutError
		if errors.As(err, &te) {
			result.ErrorMessage = te.Error()
		} else {
			result.ErrorMessage = truncateChars(err.Error(), errTruncateAt)
		}
		return nil
	}

	result.ResponseStatus = resp.Status
	result.ResponseHeaders = resp.Headers
	result.ResponseBody = resp.Body
	return decodeResponse(resp.Body)
}

// decodeResponse tries JSON first and keeps the raw text otherwise. A
// literal null decodes to nil, which reads as "nothing to extract".
func decodeResponse(body string) any {
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return body
	}
	return v
}

// extractVars applies the extract rules to the decoded response, writing
// hits into the runtime store and the local snapshot. Only resolved
// values are stored; a broken path extracts nothing.
func (r *Runner) extractVars(rules []model.ExtractRule, responseData any, snapshot map[string]any) map[string]any {
	extracted := map[string]any{}
	for _, rule := range rules {
		if rule.Name == "" || rule.Path == "" {
			continue
		}
		value := extract.Value(responseData, rule.Path)
		if value == nil {
			continue
		}
		extracted[rule.Name] = value
		r.vars.Set(rule.Name, value)
		snapshot[rule.Name] = value
	}
	return extracted
}

// runDBAssertions substitutes variables into the rules (SQL, expected,
// and every multi-field expected), then evaluates them over a per-run
// connection cache.
func (r *Runner) runDBAssertions(ctx context.Context, rules []model.DBAssertion, snapshot map[string]any) []model.DBAssertionRecord {
	substituted := make([]model.DBAssertion, len(rules))
	for i, rule := range rules {
		rule.SQL = vars.Substitute(rule.SQL, snapshot)
		rule.Expected = vars.Substitute(rule.Expected, snapshot)
		if len(rule.Fields) > 0 {
			fields := make([]model.DBAssertionField, len(rule.Fields))
			for j, f := range rule.Fields {
				f.Expected = vars.Substitute(f.Expected, snapshot)
				fields[j] = f
			}
			rule.Fields = fields
		}
		substituted[i] = rule
	}

	if r.newDBQuerier == nil {
		r.logger.WarnContext(ctx, "db assertions skipped: no database querier configured")
		return nil
	}
	querier := r.newDBQuerier()
	defer querier.CloseAll()
	return assertion.EvaluateDB(ctx, querier, substituted)
}

// finalStatus derives the run verdict: an error message always wins;
// declared assertions decide pass/fail when present; otherwise any 2xx
// response passes.
func finalStatus(result *model.RunResult, declared bool) model.ResultStatus {
	if result.ErrorMessage != "" {
		return model.ResultError
	}
	if !declared {
		if result.ResponseStatus >= 200 && result.ResponseStatus < 300 {
			return model.ResultPass
		}
		return model.ResultFail
	}
	for _, rec := range result.AssertionRecords {
		if !rec.Passed {
			return model.ResultFail
		}
	}
	for _, rec := range result.DeepDiffRecords {
		if !rec.Passed {
			return model.ResultFail
		}
	}
	for _, rec := range result.DBRecords {
		if !rec.Passed {
			return model.ResultFail
		}
	}
	return model.ResultPass
}

func substituteMap(m map[string]any, snapshot map[string]any) map[string]any {
	out, ok := vars.SubstituteDeep(m, snapshot).(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return out
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

func roundMillis(d time.Duration) float64 {
	ms := float64(d) / float64(time.Millisecond)
	return math.Round(ms*100) / 100
}

// truncateChars cuts by character count so multi-byte messages never
// split mid-rune.
func truncateChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
