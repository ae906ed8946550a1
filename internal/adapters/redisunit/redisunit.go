// Package redisunit runs ad-hoc operations against the Redis instances a
// test targets: typed reads, writes, scans, TTL management, and the
// captcha fetch that feeds the variable store.
package redisunit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/probeworks/apiprobe/internal/core"
	"github.com/probeworks/apiprobe/internal/data"
	"github.com/probeworks/apiprobe/internal/domain/model"
	"github.com/probeworks/apiprobe/internal/domain/vars"
)

// opTimeout bounds every socket operation against a target Redis.
const opTimeout = 5 * time.Second

// scanCap limits how many keys one scan returns.
const scanCap = 200

// ConfigSource resolves stored target Redis configs.
type ConfigSource interface {
	GetRedisConfig(ctx context.Context, id int64) (*model.RedisConfig, error)
}

// GlobalStore is the slice of the variable repository the captcha fetch
// needs.
type GlobalStore interface {
	List(ctx context.Context) ([]*model.GlobalVariable, error)
	Upsert(ctx context.Context, params core.UpsertGlobalVariableParams) (*model.GlobalVariable, error)
}

// UnitOptions holds the dependencies for creating a Unit.
type UnitOptions struct {
	Connections ConfigSource
	Globals     GlobalStore
	Vars        *vars.Store
	Logger      *slog.Logger
}

// Unit executes operations against target Redis instances. Every operation
// dials, runs, and closes; targets are external systems that should not
// hold idle connections between tests.
type Unit struct {
	connections ConfigSource
	globals     GlobalStore
	vars        *vars.Store
	logger      *slog.Logger
}

// NewUnit creates a Unit.
func NewUnit(opts UnitOptions) (*Unit, error) {
	if opts.Connections == nil {
		return nil, errors.New("connection config source is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Unit{
		connections: opts.Connections,
		globals:     opts.Globals,
		vars:        opts.Vars,
		logger:      opts.Logger,
	}, nil
}

// GetResult is the outcome of a typed key read.
type GetResult struct {
	Success bool   `json:"success"`
	Key     string `json:"key"`
	Value   any    `json:"value"`
	Type    string `json:"type,omitempty"`
	TTL     int64  `json:"ttl"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OpResult is the outcome of a write-side operation.
type OpResult struct {
	Success bool   `json:"success"`
	Key     string `json:"key,omitempty"`
	Deleted int64  `json:"deleted,omitempty"`
	TTL     int64  `json:"ttl,omitempty"`
	Applied bool   `json:"result"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ScanResult is the outcome of a pattern scan.
type ScanResult struct {
	Success bool     `json:"success"`
	Pattern string   `json:"pattern,omitempty"`
	Keys    []string `json:"keys"`
	Total   int      `json:"total"`
	Error   string   `json:"error,omitempty"`
}

// Get reads a key with its type and TTL. Strings come back verbatim,
// hashes as field maps, lists and sets as slices, sorted sets as
// member/score pairs. A missing key is a success with a nil value.
func (u *Unit) Get(ctx context.Context, redisID int64, key string) GetResult {
	client, err := u.client(ctx, redisID)
	if err != nil {
		return GetResult{Success: false, Key: key, TTL: -1, Error: err.Error()}
	}
	defer func() { _ = client.Close() }()

	keyType, err := client.Type(ctx, key).Result()
	if err != nil {
		return GetResult{Success: false, Key: key, TTL: -1, Error: err.Error()}
	}
	ttlDur, err := client.TTL(ctx, key).Result()
	if err != nil {
		return GetResult{Success: false, Key: key, TTL: -1, Error: err.Error()}
	}
	ttl := ttlSeconds(ttlDur)

	if keyType == "none" {
		return GetResult{
			Success: true, Key: key, Type: "none", TTL: ttl,
			Message: fmt.Sprintf("Key [%s] 不存在", key),
		}
	}

	var value any
	switch keyType {
	case "string":
		value, err = client.Get(ctx, key).Result()
	case "hash":
		value, err = client.HGetAll(ctx, key).Result()
	case "list":
		value, err = client.LRange(ctx, key, 0, -1).Result()
	case "set":
		value, err = client.SMembers(ctx, key).Result()
	case "zset":
		var members []redis.Z
		members, err = client.ZRangeWithScores(ctx, key, 0, -1).Result()
		if err == nil {
			pairs := make([]map[string]any, 0, len(members))
			for _, z := range members {
				pairs = append(pairs, map[string]any{"member": z.Member, "score": z.Score})
			}
			value = pairs
		}
	default:
		value, err = client.Get(ctx, key).Result()
	}
	if err != nil {
		return GetResult{Success: false, Key: key, TTL: -1, Error: err.Error()}
	}

	return GetResult{Success: true, Key: key, Value: value, Type: keyType, TTL: ttl}
}

// GetRaw reads a key as a plain string GET with no type dispatch, the way
// pre-request variable injection does. A missing key returns (nil, nil);
// a key of another type is an error.
func (u *Unit) GetRaw(ctx context.Context, redisID int64, key string) (*string, error) {
	client, err := u.client(ctx, redisID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	val, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &val, nil
}

// Set writes a string value, with an expiry when ttlSeconds is positive.
func (u *Unit) Set(ctx context.Context, redisID int64, key, value string, ttlSeconds int64) OpResult {
	client, err := u.client(ctx, redisID)
	if err != nil {
		return OpResult{Success: false, Error: err.Error()}
	}
	defer func() { _ = client.Close() }()

	var setErr error
	if ttlSeconds > 0 {
		setErr = client.SetEx(ctx, key, value, time.Duration(ttlSeconds)*time.Second).Err()
	} else {
		setErr = client.Set(ctx, key, value, 0).Err()
	}
	if setErr != nil {
		return OpResult{Success: false, Error: setErr.Error()}
	}
	return OpResult{Success: true, Key: key, Message: "設置成功"}
}

// Delete removes keys and reports how many existed.
func (u *Unit) Delete(ctx context.Context, redisID int64, keys []string) OpResult {
	client, err := u.client(ctx, redisID)
	if err != nil {
		return OpResult{Success: false, Error: err.Error()}
	}
	defer func() { _ = client.Close() }()

	count, delErr := client.Del(ctx, keys...).Result()
	if delErr != nil {
		return OpResult{Success: false, Error: delErr.Error()}
	}
	return OpResult{Success: true, Deleted: count, Message: fmt.Sprintf("刪除 %d 個 Key", count)}
}

// Scan walks keys matching pattern, capped at 200 results, sorted.
func (u *Unit) Scan(ctx context.Context, redisID int64, pattern string, count int64) ScanResult {
	if pattern == "" {
		pattern = "*"
	}
	if count <= 0 {
		count = 100
	}
	client, err := u.client(ctx, redisID)
	if err != nil {
		return ScanResult{Success: false, Error: err.Error(), Keys: []string{}}
	}
	defer func() { _ = client.Close() }()

	keys := []string{}
	var cursor uint64
	for {
		batch, next, scanErr := client.Scan(ctx, cursor, pattern, count).Result()
		if scanErr != nil {
			return ScanResult{Success: false, Error: scanErr.Error(), Keys: []string{}}
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 || len(keys) >= scanCap {
			break
		}
	}
	sort.Strings(keys)
	return ScanResult{Success: true, Pattern: pattern, Keys: keys, Total: len(keys)}
}

// TTL reports a key's remaining lifetime with the human description the
// UI shows: 永久 for persistent keys, 不存在 for missing ones.
func (u *Unit) TTL(ctx context.Context, redisID int64, key string) OpResult {
	client, err := u.client(ctx, redisID)
	if err != nil {
		return OpResult{Success: false, Error: err.Error()}
	}
	defer func() { _ = client.Close() }()

	ttl, ttlErr := client.TTL(ctx, key).Result()
	if ttlErr != nil {
		return OpResult{Success: false, Error: ttlErr.Error()}
	}
	secs := ttlSeconds(ttl)

	var message string
	switch secs {
	case -1:
		message = "永久"
	case -2:
		message = "不存在"
	default:
		message = fmt.Sprintf("%d秒後過期", secs)
	}
	return OpResult{Success: true, Key: key, TTL: secs, Message: message}
}

// Expire sets a key's TTL.
func (u *Unit) Expire(ctx context.Context, redisID int64, key string, ttlSecs int64) OpResult {
	client, err := u.client(ctx, redisID)
	if err != nil {
		return OpResult{Success: false, Error: err.Error()}
	}
	defer func() { _ = client.Close() }()

	applied, expErr := client.Expire(ctx, key, time.Duration(ttlSecs)*time.Second).Result()
	if expErr != nil {
		return OpResult{Success: false, Error: expErr.Error()}
	}
	return OpResult{
		Success: true, Key: key, Applied: applied,
		Message: fmt.Sprintf("已設置 %d秒 TTL", ttlSecs),
	}
}

// FetchCaptchaParams identifies which key to read and where the value goes.
type FetchCaptchaParams struct {
	RedisConfigID int64  `json:"redis_config_id"`
	Key           string `json:"key"`
	VarName       string `json:"var_name"`
	ExtractField  string `json:"extract_field,omitempty"`
}

// FetchCaptchaResult is the outcome of a captcha fetch.
type FetchCaptchaResult struct {
	Success        bool   `json:"success"`
	Key            string `json:"key,omitempty"`
	RawValue       string `json:"raw_value,omitempty"`
	ExtractedValue string `json:"extracted_value,omitempty"`
	VarName        string `json:"var_name,omitempty"`
	TTL            int64  `json:"ttl,omitempty"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}

// FetchCaptcha reads a captcha from Redis and stores it as a variable,
// both persisted and in the runtime store, so the next request in a flow
// can reference it. The key may itself contain {{name}} placeholders.
func (u *Unit) FetchCaptcha(ctx context.Context, params FetchCaptchaParams) FetchCaptchaResult {
	variables := u.snapshotVars(ctx)
	realKey := vars.Substitute(params.Key, variables)

	res := u.Get(ctx, params.RedisConfigID, realKey)
	if !res.Success {
		return FetchCaptchaResult{Success: false, Error: res.Error}
	}
	if res.Value == nil {
		return FetchCaptchaResult{
			Success: false, Key: realKey,
			Error: fmt.Sprintf("Key [%s] 不存在或已過期", realKey),
		}
	}

	rawValue := vars.Stringify(res.Value)
	finalValue, extractErr := extractCaptchaField(res.Value, params.ExtractField)
	if extractErr != "" {
		return FetchCaptchaResult{Success: false, Key: realKey, Error: extractErr}
	}

	if u.globals != nil {
		_, err := u.globals.Upsert(ctx, core.UpsertGlobalVariableParams{
			Name:        params.VarName,
			Value:       finalValue,
			VarType:     model.VarTypeString,
			Description: fmt.Sprintf("Redis 驗證碼 key=%s", realKey),
		})
		if err != nil {
			return FetchCaptchaResult{Success: false, Key: realKey, Error: err.Error()}
		}
	}
	if u.vars != nil {
		u.vars.Set(params.VarName, finalValue)
	}

	u.logger.InfoContext(ctx, "captcha fetched into variable",
		slog.String("key", realKey), slog.String("var_name", params.VarName))

	return FetchCaptchaResult{
		Success:        true,
		Key:            realKey,
		RawValue:       rawValue,
		ExtractedValue: finalValue,
		VarName:        params.VarName,
		TTL:            res.TTL,
		Message:        fmt.Sprintf("已獲取並存入變量 {{ %s }}", params.VarName),
	}
}

// extractCaptchaField pulls one field out of a JSON-encoded value. Values
// that are not JSON objects pass through untouched; an object without the
// field is an error so a silently wrong captcha never reaches a test.
func extractCaptchaField(raw any, field string) (string, string) {
	if field == "" {
		return vars.Stringify(raw), ""
	}

	var doc any
	switch rv := raw.(type) {
	case string:
		if err := json.Unmarshal([]byte(rv), &doc); err != nil {
			return rv, ""
		}
	case map[string]string:
		m := make(map[string]any, len(rv))
		for k, v := range rv {
			m[k] = v
		}
		doc = m
	default:
		doc = raw
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return "", fmt.Sprintf("JSON 字段 [%s] 不存在，原始值: %s", field, vars.Stringify(raw))
	}
	value, present := obj[field]
	if !present {
		return "", fmt.Sprintf("JSON 字段 [%s] 不存在，原始值: %s", field, vars.Stringify(raw))
	}
	return vars.Stringify(value), ""
}

func (u *Unit) snapshotVars(ctx context.Context) map[string]any {
	globals := map[string]any{}
	if u.globals != nil {
		rows, err := u.globals.List(ctx)
		if err != nil {
			u.logger.WarnContext(ctx, "list global variables", slog.Any("error", err))
		}
		for _, row := range rows {
			globals[row.Name] = row.TypedValue()
		}
	}
	if u.vars == nil {
		return globals
	}
	return u.vars.Snapshot(globals)
}

func (u *Unit) client(ctx context.Context, redisID int64) (*redis.Client, error) {
	cfg, err := u.connections.GetRedisConfig(ctx, redisID)
	if errors.Is(err, data.ErrRedisConfigNotFound) {
		return nil, fmt.Errorf("Redis 配置 id=%d 不存在", redisID)
	}
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  opTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("Redis 連接失敗: %s", err)
	}
	return client, nil
}

// ttlSeconds converts go-redis durations back to the protocol's integer
// seconds. go-redis leaves the -1 (persistent) and -2 (missing) sentinels
// unscaled, so they pass through as-is.
func ttlSeconds(d time.Duration) int64 {
	if d < 0 {
		return int64(d)
	}
	return int64(d / time.Second)
}
