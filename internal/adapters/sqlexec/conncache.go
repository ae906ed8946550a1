package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/probeworks/apiprobe/internal/data"
	"github.com/probeworks/apiprobe/internal/domain/assertion"
	"github.com/probeworks/apiprobe/internal/domain/model"
)

// ConfigSource resolves stored target database configs.
type ConfigSource interface {
	GetDatabaseConfig(ctx context.Context, id int64) (*model.DatabaseConfig, error)
}

// Opener dials a target database from its stored config. *Executor is the
// production implementation.
type Opener interface {
	Open(ctx context.Context, cfg *model.DatabaseConfig) (*sql.DB, error)
}

// ConnCache pools one target connection per database id for the duration
// of a single assertion pass. Lookup failures are cached too, so a broken
// config fails fast instead of re-dialing per rule. Not safe for use from
// multiple goroutines after CloseAll.
type ConnCache struct {
	exec    Opener
	configs ConfigSource
	logger  *slog.Logger

	mu      sync.Mutex
	order   []int64
	entries map[int64]*cacheEntry
}

type cacheEntry struct {
	db  *sql.DB
	err error
}

// NewConnCache creates a cache around the executor and config source.
func NewConnCache(exec Opener, configs ConfigSource, logger *slog.Logger) *ConnCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnCache{
		exec:    exec,
		configs: configs,
		logger:  logger,
		entries: make(map[int64]*cacheEntry),
	}
}

// QueryFirstRow implements assertion.RowQuerier: run the query on the
// cached connection for the database id and return the first row, or nil
// when the query matched nothing.
func (c *ConnCache) QueryFirstRow(ctx context.Context, databaseID int64, query string) (*assertion.Row, error) {
	db, err := c.acquire(ctx, databaseID)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		return nil, rows.Err()
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := &assertion.Row{Columns: cols, Values: make(map[string]any, len(cols))}
	for i, col := range cols {
		row.Values[col] = nativeColumn(values[i])
	}
	return row, nil
}

func (c *ConnCache) acquire(ctx context.Context, databaseID int64) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[databaseID]; ok {
		return entry.db, entry.err
	}

	entry := &cacheEntry{}
	cfg, err := c.configs.GetDatabaseConfig(ctx, databaseID)
	switch {
	case errors.Is(err, data.ErrDatabaseConfigNotFound):
		entry.err = &assertion.ConnectError{Err: fmt.Errorf("數據庫配置 id=%d 不存在", databaseID)}
	case err != nil:
		entry.err = &assertion.ConnectError{Err: fmt.Errorf("連接失敗: %s", err)}
	default:
		db, openErr := c.exec.Open(ctx, cfg)
		if openErr != nil {
			entry.err = &assertion.ConnectError{Err: fmt.Errorf("連接失敗: %s", openErr)}
		} else {
			entry.db = db
		}
	}

	c.entries[databaseID] = entry
	c.order = append(c.order, databaseID)
	return entry.db, entry.err
}

// CloseAll closes cached connections in reverse acquisition order.
func (c *ConnCache) CloseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.order) - 1; i >= 0; i-- {
		entry := c.entries[c.order[i]]
		if entry != nil && entry.db != nil {
			if err := entry.db.Close(); err != nil {
				c.logger.Warn("close target db", slog.Int64("db_id", c.order[i]), slog.Any("error", err))
			}
		}
	}
	c.order = nil
	c.entries = make(map[int64]*cacheEntry)
}

// nativeColumn normalizes driver values for comparison: byte slices become
// strings, timestamps take the report format, and numerics pass through.
func nativeColumn(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	default:
		return v
	}
}
