package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/probeworks/apiprobe/internal/data/pgxutil"
	"github.com/probeworks/apiprobe/internal/domain/model"
)

// ApiConfigRepo provides database operations for stored API test definitions.
type ApiConfigRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewApiConfigRepo creates a new ApiConfigRepo with real time provider.
func NewApiConfigRepo(db *sql.DB) *ApiConfigRepo {
	return &ApiConfigRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewApiConfigRepoWithTimeProvider creates a new ApiConfigRepo with a custom time provider.
func NewApiConfigRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ApiConfigRepo {
	return &ApiConfigRepo{DB: db, timeProvider: tp}
}

// Create inserts a new API config, applying the stored-model defaults
// before validation.
func (r *ApiConfigRepo) Create(ctx context.Context, api *model.ApiConfig) (*model.ApiConfig, error) {
	if api == nil {
		return nil, errors.New("api config is required")
	}

	cfg := *api
	applyApiConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	createdAt := r.timeProvider.Now().UTC()
	var out model.ApiConfig
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO api_configs (
				name, category_id, sort_order, url, method, timeout_seconds,
				headers, params, body, body_type, use_session, use_async,
				ssl_verify, ssl_cert, client_cert_enabled, client_cert, client_key,
				encrypted, encryption_key, encryption_algorithm, body_enc_rules,
				extract_vars, assertions, deepdiff_assertions, db_assertions, pre_redis_rules,
				pre_sql_db_id, pre_sql, post_sql_db_id, post_sql,
				repeat_enabled, repeat_count, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6,
				$7, $8, $9, $10, $11, $12,
				$13, $14, $15, $16, $17,
				$18, $19, $20, $21,
				$22, $23, $24, $25, $26,
				$27, $28, $29, $30,
				$31, $32, $33, $33
			) RETURNING `+apiConfigColumns,
			strings.TrimSpace(cfg.Name),
			cfg.CategoryID,
			cfg.SortOrder,
			strings.TrimSpace(cfg.URL),
			strings.ToUpper(cfg.Method),
			cfg.TimeoutSeconds,
			cfg.Headers,
			cfg.Params,
			cfg.Body,
			cfg.BodyType,
			cfg.UseSession,
			cfg.UseAsync,
			cfg.SSLVerify,
			cfg.SSLCert,
			cfg.ClientCertEnabled,
			cfg.ClientCert,
			cfg.ClientKey,
			cfg.Encrypted,
			cfg.EncryptionKey,
			cfg.EncryptionAlgorithm,
			cfg.BodyEncRules,
			cfg.ExtractVars,
			cfg.Assertions,
			cfg.DeepDiffAssertions,
			cfg.DBAssertions,
			cfg.PreRedisRules,
			cfg.PreSQLDatabaseID,
			cfg.PreSQL,
			cfg.PostSQLDatabaseID,
			cfg.PostSQL,
			cfg.RepeatEnabled,
			cfg.RepeatCount,
			createdAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ApiConfig])
		return err
	}); err != nil {
		return nil, mapConstraintErr(err)
	}
	return &out, nil
}

// GetByID retrieves an API config by ID.
func (r *ApiConfigRepo) GetByID(ctx context.Context, id int64) (*model.ApiConfig, error) {
	var out model.ApiConfig
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, apiConfigGetByIDQuery, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ApiConfig])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrApiConfigNotFound
		}
		return nil, fmt.Errorf("get api config by id: %w", err)
	}
	return &out, nil
}

// ListByIDs retrieves the configs for the given ids ordered by
// (sort_order, id). Ids that no longer exist are dropped without error.
func (r *ApiConfigRepo) ListByIDs(ctx context.Context, ids []int64) ([]*model.ApiConfig, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rowsOut []model.ApiConfig
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, apiConfigListByIDsQuery, ids)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.ApiConfig])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list api configs by ids: %w", err)
	}
	return toPtrSlice(rowsOut), nil
}

// List retrieves all API configs ordered by (sort_order, id).
func (r *ApiConfigRepo) List(ctx context.Context) ([]*model.ApiConfig, error) {
	var rowsOut []model.ApiConfig
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, apiConfigListQuery)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.ApiConfig])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list api configs: %w", err)
	}
	return toPtrSlice(rowsOut), nil
}

// applyApiConfigDefaults fills the column defaults the store would apply,
// so validation and the returned row agree.
func applyApiConfigDefaults(cfg *model.ApiConfig) {
	if strings.TrimSpace(cfg.Method) == "" {
		cfg.Method = "GET"
	}
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = 30
	}
	if cfg.BodyType == "" {
		cfg.BodyType = model.BodyTypeJSON
	}
	if cfg.SSLVerify == "" {
		cfg.SSLVerify = "true"
	}
	if cfg.EncryptionAlgorithm == "" {
		cfg.EncryptionAlgorithm = model.AlgorithmAESGCM
	}
	if cfg.RepeatCount == 0 {
		cfg.RepeatCount = 1
	}
}

// toPtrSlice converts a value slice into the pointer slice repositories return.
func toPtrSlice[T any](in []T) []*T {
	out := make([]*T, len(in))
	for i := range in {
		out[i] = &in[i]
	}
	return out
}

// SQL query constants for static queries.
const (
	apiConfigColumns = `id, name, category_id, sort_order, url, method, timeout_seconds,
		headers, params, body, body_type, use_session, use_async,
		ssl_verify, ssl_cert, client_cert_enabled, client_cert, client_key,
		encrypted, encryption_key, encryption_algorithm, body_enc_rules,
		extract_vars, assertions, deepdiff_assertions, db_assertions, pre_redis_rules,
		pre_sql_db_id, pre_sql, post_sql_db_id, post_sql,
		repeat_enabled, repeat_count, created_at, updated_at`

	apiConfigGetByIDQuery = `
		SELECT ` + apiConfigColumns + `
		FROM api_configs
		WHERE id = $1`

	apiConfigListByIDsQuery = `
		SELECT ` + apiConfigColumns + `
		FROM api_configs
		WHERE id = ANY($1)
		ORDER BY sort_order, id`

	apiConfigListQuery = `
		SELECT ` + apiConfigColumns + `
		FROM api_configs
		ORDER BY sort_order, id`
)
