package assertion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/probeworks/apiprobe/internal/domain/model"
	"github.com/probeworks/apiprobe/internal/domain/vars"
)

// Row is the first result row of an assertion query, with column order
// preserved so a rule without a field name can address the first column.
type Row struct {
	Columns []string
	Values  map[string]any
}

// RowQuerier runs one assertion query against a configured target database.
// Implementations cache connections per database id for the lifetime of one
// EvaluateDB call and return a nil Row when the query matched nothing.
type RowQuerier interface {
	QueryFirstRow(ctx context.Context, databaseID int64, query string) (*Row, error)
}

// ConnectError marks a failure to reach the target database (missing
// config, refused connection) as opposed to a statement that executed and
// failed. The report message differs between the two.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string { return e.Err.Error() }

func (e *ConnectError) Unwrap() error { return e.Err }

// EvaluateDB runs each DB assertion rule: execute the query, take the first
// row, and apply the field checks. A rule with Fields set checks several
// columns and passes only when all of them do. The querier's connection
// cache keeps repeated rules against the same database on one connection.
func EvaluateDB(ctx context.Context, querier RowQuerier, rules []model.DBAssertion) []model.DBAssertionRecord {
	records := make([]model.DBAssertionRecord, 0, len(rules))
	for _, rule := range rules {
		query := strings.TrimSpace(rule.SQL)
		label := rule.Label
		if label == "" {
			if query != "" {
				label = truncate(query, 60)
			} else {
				label = "未命名斷言"
			}
		}

		rec := model.DBAssertionRecord{Label: label, SQL: query}

		if rule.DatabaseID == 0 || query == "" {
			rec.Message = "規則不完整：缺少 db_id 或 sql"
			records = append(records, rec)
			continue
		}

		row, err := querier.QueryFirstRow(ctx, rule.DatabaseID, query)
		if err != nil {
			var connErr *ConnectError
			if errors.As(err, &connErr) {
				rec.Message = connErr.Error()
			} else {
				rec.Message = fmt.Sprintf("SQL 執行錯誤: %s", err)
			}
			records = append(records, rec)
			continue
		}

		checks := rule.Fields
		if !rule.MultiField() {
			checks = []model.DBAssertionField{{
				Field:    rule.Field,
				Operator: rule.Operator,
				Expected: rule.Expected,
			}}
		}

		fields := make([]model.DBFieldRecord, 0, len(checks))
		for _, check := range checks {
			fields = append(fields, evaluateField(row, check))
		}
		rec.Fields = fields

		rec.Passed = len(fields) > 0
		failed := 0
		for _, f := range fields {
			if !f.Passed {
				rec.Passed = false
				failed++
			}
		}

		if len(fields) == 1 {
			rec.Message = fmt.Sprintf("[DB] %s → %s", label, fields[0].Message)
		} else {
			details := make([]string, 0, len(fields))
			for _, f := range fields {
				details = append(details, f.Message)
			}
			overall := "✓ 全部通過"
			if !rec.Passed {
				overall = fmt.Sprintf("✗ %d/%d 失敗", failed, len(fields))
			}
			rec.Message = fmt.Sprintf("[DB] %s → %s | %s", label, overall, strings.Join(details, " | "))
		}

		records = append(records, rec)
	}
	return records
}

func evaluateField(row *Row, check model.DBAssertionField) model.DBFieldRecord {
	fieldName := strings.TrimSpace(check.Field)
	operator := check.Operator
	if operator == "" {
		operator = OpEq
	}

	var actual any
	switch {
	case row == nil:
		actual = nil
	case fieldName != "":
		actual = row.Values[fieldName]
	case len(row.Columns) > 0:
		actual = row.Values[row.Columns[0]]
	}

	// A NULL or missing value fails every operator, not_empty included.
	passed := actual != nil && Compare(operator, actual, check.Expected)

	rec := model.DBFieldRecord{
		Field:    fieldName,
		Operator: operator,
		Expected: check.Expected,
		Passed:   passed,
	}
	if actual != nil {
		rec.Actual = vars.Stringify(actual)
	}

	display := fieldName
	if display == "" {
		display = "第1列"
	}
	verdict := "✗ 失敗"
	if passed {
		verdict = "✓ 通過"
	}
	rec.Message = fmt.Sprintf("字段[%s]=%s %s %s → %s",
		display, displayValue(actual), operator, check.Expected, verdict)
	return rec
}
