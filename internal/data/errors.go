package data

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Shared sentinel errors for data-layer repositories.
var (
	// ErrApiConfigNotFound is returned when an API config is not found.
	ErrApiConfigNotFound = errors.New("api config not found")
	// ErrVariableNotFound is returned when a global variable is not found.
	ErrVariableNotFound = errors.New("global variable not found")
	// ErrDatabaseConfigNotFound is returned when a database config is not found.
	ErrDatabaseConfigNotFound = errors.New("database config not found")
	// ErrRedisConfigNotFound is returned when a Redis config is not found.
	ErrRedisConfigNotFound = errors.New("redis config not found")
	// ErrEmailConfigNotFound is returned when no active email config exists.
	ErrEmailConfigNotFound = errors.New("email config not found")
	// ErrReportNotFound is returned when a test report is not found.
	ErrReportNotFound = errors.New("test report not found")
	// ErrTaskNotFound is returned when a scheduled task is not found.
	ErrTaskNotFound = errors.New("scheduled task not found")

	// ErrNameExists is returned on unique-name violations.
	ErrNameExists = errors.New("name already exists")
	// ErrReferencedRowMissing is returned on foreign key violations.
	ErrReferencedRowMissing = errors.New("referenced row does not exist")
)

// isPgCode reports whether err carries the given Postgres error code.
func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// mapConstraintErr translates unique and FK violations into sentinels,
// leaving everything else untouched.
func mapConstraintErr(err error) error {
	switch {
	case err == nil:
		return nil
	case isPgCode(err, pgerrcode.UniqueViolation):
		return ErrNameExists
	case isPgCode(err, pgerrcode.ForeignKeyViolation):
		return ErrReferencedRowMissing
	default:
		return err
	}
}
