// Package sqlexec runs SQL scripts and assertion queries against the MySQL
// databases a test targets. Connections are opened from stored
// DatabaseConfig rows, never from the application's own database.
package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/probeworks/apiprobe/internal/domain/model"
)

// defaultConnectTimeout bounds the TCP dial to a target database.
const defaultConnectTimeout = 10 * time.Second

// Executor opens target connections and executes semicolon-separated SQL
// scripts, reporting per-statement outcomes instead of failing the run.
type Executor struct {
	logger         *slog.Logger
	connectTimeout time.Duration
}

// NewExecutor creates an Executor.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger, connectTimeout: defaultConnectTimeout}
}

// Open dials a target database and verifies the connection. Callers own
// the returned handle and must close it.
func (e *Executor) Open(ctx context.Context, cfg *model.DatabaseConfig) (*sql.DB, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.DBName
	mc.Timeout = e.connectTimeout
	mc.MultiStatements = false
	if cfg.Charset != "" {
		mc.Params = map[string]string{"charset": cfg.Charset}
	}

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open target db %q: %w", cfg.Name, err)
	}
	// Target databases see short bursts of statements, keep the pool tiny.
	db.SetMaxOpenConns(2)
	db.SetConnMaxIdleTime(time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, e.connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect target db %q: %w", cfg.Name, err)
	}
	return db, nil
}

// Run executes a script statement by statement. A failing statement is
// recorded and execution continues; Success reports whether every
// statement ran clean.
func (e *Executor) Run(ctx context.Context, db *sql.DB, script string) *model.SQLRunResult {
	result := &model.SQLRunResult{Success: true}
	for _, stmt := range SplitStatements(script) {
		item := model.SQLStatementResult{SQL: stmt, Kind: ClassifyStatement(stmt)}

		switch item.Kind {
		case model.StatementSelect:
			rows, err := db.QueryContext(ctx, stmt)
			if err != nil {
				item.Error = err.Error()
				break
			}
			collected, err := collectRows(rows)
			if err != nil {
				item.Error = err.Error()
			}
			item.Rows = collected
			item.RowsAffected = int64(len(collected))
		default:
			res, err := db.ExecContext(ctx, stmt)
			if err != nil {
				item.Error = err.Error()
				break
			}
			if item.Kind == model.StatementDML {
				if n, err := res.RowsAffected(); err == nil {
					item.RowsAffected = n
				}
			}
		}

		if item.Error != "" {
			result.Success = false
			e.logger.WarnContext(ctx, "sql statement failed",
				slog.String("sql", stmt), slog.String("error", item.Error))
		}
		result.Statements = append(result.Statements, item)
	}
	return result
}

// RunOnce opens a connection, runs the script, and closes the connection.
// The pre/post SQL hooks go through here.
func (e *Executor) RunOnce(ctx context.Context, cfg *model.DatabaseConfig, script string) *model.SQLRunResult {
	db, err := e.Open(ctx, cfg)
	if err != nil {
		return &model.SQLRunResult{Success: false, Statements: []model.SQLStatementResult{{
			SQL:   script,
			Kind:  model.StatementDDL,
			Error: err.Error(),
		}}}
	}
	defer func() { _ = db.Close() }()
	return e.Run(ctx, db, script)
}

// SplitStatements splits a script on semicolons, dropping blanks.
func SplitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// ClassifyStatement buckets a statement by its leading keyword: SELECT,
// DML (INSERT/UPDATE/DELETE/REPLACE), or DDL for everything else.
func ClassifyStatement(stmt string) model.StatementKind {
	fields := strings.Fields(strings.ToUpper(stmt))
	if len(fields) == 0 {
		return model.StatementDDL
	}
	switch fields[0] {
	case "SELECT":
		return model.StatementSelect
	case "INSERT", "UPDATE", "DELETE", "REPLACE":
		return model.StatementDML
	default:
		return model.StatementDDL
	}
}

// collectRows drains a result set with every value stringified, keeping
// NULL as nil so reports can tell empty from missing.
func collectRows(rows *sql.Rows) ([]map[string]any, error) {
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return out, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if values[i] == nil {
				row[col] = nil
				continue
			}
			row[col] = stringifyColumn(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func stringifyColumn(v any) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprintf("%v", t)
	}
}
