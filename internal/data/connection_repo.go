package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/probeworks/apiprobe/internal/data/cryptoutil"
	"github.com/probeworks/apiprobe/internal/data/pgxutil"
	"github.com/probeworks/apiprobe/internal/domain/model"
)

// ConnectionRepo provides database operations for target connection
// configs (databases, Redis instances, SMTP). Passwords are encrypted at
// rest and decrypted before configs are handed to executors.
type ConnectionRepo struct {
	DB  *sql.DB
	Enc cryptoutil.Encryptor
}

// NewConnectionRepo creates a new ConnectionRepo.
func NewConnectionRepo(db *sql.DB, enc cryptoutil.Encryptor) *ConnectionRepo {
	return &ConnectionRepo{DB: db, Enc: enc}
}

// GetDatabaseConfig retrieves a target database config by ID with
// decrypted password.
func (r *ConnectionRepo) GetDatabaseConfig(ctx context.Context, id int64) (*model.DatabaseConfig, error) {
	var out model.DatabaseConfig
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, databaseConfigGetQuery, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.DatabaseConfig])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDatabaseConfigNotFound
		}
		return nil, fmt.Errorf("get database config: %w", err)
	}
	if err := r.decryptPassword(&out.Password); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateDatabaseConfig inserts a target database config, storing the
// encrypted password.
func (r *ConnectionRepo) CreateDatabaseConfig(ctx context.Context, cfg *model.DatabaseConfig) (*model.DatabaseConfig, error) {
	if cfg == nil {
		return nil, errors.New("database config is required")
	}
	if strings.TrimSpace(cfg.Name) == "" || strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("database config name and host are required")
	}

	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	charset := cfg.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	cipher, err := r.encryptPassword(cfg.Password)
	if err != nil {
		return nil, err
	}

	var out model.DatabaseConfig
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO database_configs (name, host, port, db_user, password, db_name, charset)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, name, host, port, db_user, password, db_name, charset, created_at, updated_at`,
			strings.TrimSpace(cfg.Name), strings.TrimSpace(cfg.Host), port,
			cfg.User, cipher, cfg.DBName, charset,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.DatabaseConfig])
		return err
	}); err != nil {
		return nil, mapConstraintErr(err)
	}
	out.Password = cfg.Password
	return &out, nil
}

// GetRedisConfig retrieves a target Redis config by ID with decrypted
// password.
func (r *ConnectionRepo) GetRedisConfig(ctx context.Context, id int64) (*model.RedisConfig, error) {
	var out model.RedisConfig
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, redisConfigGetQuery, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.RedisConfig])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRedisConfigNotFound
		}
		return nil, fmt.Errorf("get redis config: %w", err)
	}
	if err := r.decryptPassword(&out.Password); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRedisConfig inserts a target Redis config, storing the encrypted
// password.
func (r *ConnectionRepo) CreateRedisConfig(ctx context.Context, cfg *model.RedisConfig) (*model.RedisConfig, error) {
	if cfg == nil {
		return nil, errors.New("redis config is required")
	}
	if strings.TrimSpace(cfg.Name) == "" || strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("redis config name and host are required")
	}

	port := cfg.Port
	if port == 0 {
		port = 6379
	}
	cipher, err := r.encryptPassword(cfg.Password)
	if err != nil {
		return nil, err
	}

	var out model.RedisConfig
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO redis_configs (name, host, port, password, db)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, name, host, port, password, db, created_at, updated_at`,
			strings.TrimSpace(cfg.Name), strings.TrimSpace(cfg.Host), port, cipher, cfg.DB,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.RedisConfig])
		return err
	}); err != nil {
		return nil, mapConstraintErr(err)
	}
	out.Password = cfg.Password
	return &out, nil
}

// ListEmailConfigs retrieves all SMTP configs ordered by id with
// decrypted passwords.
func (r *ConnectionRepo) ListEmailConfigs(ctx context.Context) ([]*model.EmailConfig, error) {
	var rowsOut []model.EmailConfig
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, emailConfigListQuery)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.EmailConfig])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list email configs: %w", err)
	}
	out := toPtrSlice(rowsOut)
	for _, cfg := range out {
		if err := r.decryptPassword(&cfg.Password); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetActiveEmailConfig retrieves the lowest-id active SMTP config with
// decrypted password.
func (r *ConnectionRepo) GetActiveEmailConfig(ctx context.Context) (*model.EmailConfig, error) {
	var out model.EmailConfig
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, emailConfigActiveQuery)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.EmailConfig])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmailConfigNotFound
		}
		return nil, fmt.Errorf("get active email config: %w", err)
	}
	if err := r.decryptPassword(&out.Password); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateEmailConfig inserts an SMTP config, storing the encrypted password.
func (r *ConnectionRepo) CreateEmailConfig(ctx context.Context, cfg *model.EmailConfig) (*model.EmailConfig, error) {
	if cfg == nil {
		return nil, errors.New("email config is required")
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("email config host is required")
	}

	port := cfg.Port
	if port == 0 {
		port = 25
	}
	cipher, err := r.encryptPassword(cfg.Password)
	if err != nil {
		return nil, err
	}

	var out model.EmailConfig
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO email_configs (host, port, username, password, use_tls, sender, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, host, port, username, password, use_tls, sender, is_active, created_at, updated_at`,
			strings.TrimSpace(cfg.Host), port, cfg.Username, cipher, cfg.UseTLS, cfg.Sender, cfg.IsActive,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.EmailConfig])
		return err
	}); err != nil {
		return nil, mapConstraintErr(err)
	}
	out.Password = cfg.Password
	return &out, nil
}

func (r *ConnectionRepo) encryptPassword(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	cipher, err := r.Enc.Encrypt([]byte(plain))
	if err != nil {
		return "", fmt.Errorf("encrypt password: %w", err)
	}
	return cipher, nil
}

func (r *ConnectionRepo) decryptPassword(stored *string) error {
	if stored == nil || *stored == "" {
		return nil
	}
	pt, err := r.Enc.Decrypt(*stored)
	if err != nil {
		prefix := *stored
		if len(prefix) > 20 {
			prefix = prefix[:20] + "..."
		}
		return fmt.Errorf("decrypt password (prefix: %s): %w", prefix, err)
	}
	*stored = string(pt)
	return nil
}

const (
	databaseConfigGetQuery = `
		SELECT id, name, host, port, db_user, password, db_name, charset, created_at, updated_at
		FROM database_configs
		WHERE id = $1`

	redisConfigGetQuery = `
		SELECT id, name, host, port, password, db, created_at, updated_at
		FROM redis_configs
		WHERE id = $1`

	emailConfigListQuery = `
		SELECT id, host, port, username, password, use_tls, sender, is_active, created_at, updated_at
		FROM email_configs
		ORDER BY id`

	emailConfigActiveQuery = `
		SELECT id, host, port, username, password, use_tls, sender, is_active, created_at, updated_at
		FROM email_configs
		WHERE is_active = TRUE
		ORDER BY id
		LIMIT 1`
)
