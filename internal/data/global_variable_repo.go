package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/probeworks/apiprobe/internal/core"
	"github.com/probeworks/apiprobe/internal/data/pgxutil"
	"github.com/probeworks/apiprobe/internal/domain/model"
)

// GlobalVariableRepo provides database operations for persisted variables.
type GlobalVariableRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewGlobalVariableRepo creates a new GlobalVariableRepo with real time provider.
func NewGlobalVariableRepo(db *sql.DB) *GlobalVariableRepo {
	return &GlobalVariableRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewGlobalVariableRepoWithTimeProvider creates a new GlobalVariableRepo with a custom time provider.
func NewGlobalVariableRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *GlobalVariableRepo {
	return &GlobalVariableRepo{DB: db, timeProvider: tp}
}

// List retrieves all global variables ordered by name.
func (r *GlobalVariableRepo) List(ctx context.Context) ([]*model.GlobalVariable, error) {
	var rowsOut []model.GlobalVariable
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, globalVariableListQuery)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.GlobalVariable])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list global variables: %w", err)
	}
	return toPtrSlice(rowsOut), nil
}

// GetByName retrieves a global variable by its unique name.
func (r *GlobalVariableRepo) GetByName(ctx context.Context, name string) (*model.GlobalVariable, error) {
	var out model.GlobalVariable
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, globalVariableGetByNameQuery, name)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.GlobalVariable])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVariableNotFound
		}
		return nil, fmt.Errorf("get global variable by name: %w", err)
	}
	return &out, nil
}

// Upsert creates the variable or, when the name exists, overwrites its
// value, type, and description.
func (r *GlobalVariableRepo) Upsert(ctx context.Context, params core.UpsertGlobalVariableParams) (*model.GlobalVariable, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, errors.New("variable name is required")
	}
	varType := params.VarType
	if varType == "" {
		varType = model.VarTypeString
	}

	now := r.timeProvider.Now().UTC()
	var out model.GlobalVariable
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO global_variables (name, value, var_type, description, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			ON CONFLICT (name) DO UPDATE SET
				value = EXCLUDED.value,
				var_type = EXCLUDED.var_type,
				description = EXCLUDED.description,
				updated_at = EXCLUDED.updated_at
			RETURNING id, name, value, var_type, description, created_at, updated_at`,
			name, params.Value, varType, params.Description, now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.GlobalVariable])
		return err
	}); err != nil {
		return nil, fmt.Errorf("upsert global variable: %w", err)
	}
	return &out, nil
}

// Delete removes a global variable by name.
func (r *GlobalVariableRepo) Delete(ctx context.Context, name string) (bool, error) {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM global_variables WHERE name = $1`, name)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete global variable: %w", err)
	}
	return affected > 0, nil
}

const (
	globalVariableListQuery = `
		SELECT id, name, value, var_type, description, created_at, updated_at
		FROM global_variables
		ORDER BY name`

	globalVariableGetByNameQuery = `
		SELECT id, name, value, var_type, description, created_at, updated_at
		FROM global_variables
		WHERE name = $1`
)
