package assertion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeworks/apiprobe/internal/domain/model"
)

type stubQuerier struct {
	queryFn func(ctx context.Context, databaseID int64, query string) (*Row, error)
}

func (s *stubQuerier) QueryFirstRow(ctx context.Context, databaseID int64, query string) (*Row, error) {
	return s.queryFn(ctx, databaseID, query)
}

func rowOf(cols []string, values map[string]any) *Row {
	return &Row{Columns: cols, Values: values}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		operator string
		actual   any
		expected string
		want     bool
	}{
		{name: "eq string", operator: OpEq, actual: "abc", expected: "abc", want: true},
		{name: "eq number vs string", operator: OpEq, actual: float64(5), expected: "5", want: true},
		{name: "ne", operator: OpNe, actual: "a", expected: "b", want: true},
		{name: "gt", operator: OpGt, actual: float64(10), expected: "9.5", want: true},
		{name: "gt unparsable expected reads zero", operator: OpGt, actual: float64(1), expected: "abc", want: true},
		{name: "lt", operator: OpLt, actual: "3", expected: "4", want: true},
		{name: "ge equal", operator: OpGe, actual: "4", expected: "4", want: true},
		{name: "le fails", operator: OpLe, actual: "5", expected: "4", want: false},
		{name: "contains", operator: OpContains, actual: "hello world", expected: "lo wo", want: true},
		{name: "contains miss", operator: OpContains, actual: "hello", expected: "xyz", want: false},
		{name: "not_empty value", operator: OpNotEmpty, actual: "x", expected: "", want: true},
		{name: "not_empty blank", operator: OpNotEmpty, actual: "", expected: "", want: false},
		{name: "not_empty zero string", operator: OpNotEmpty, actual: "0", expected: "", want: false},
		{name: "not_empty zero number", operator: OpNotEmpty, actual: float64(0), expected: "", want: false},
		{name: "unknown operator falls back to eq", operator: "~=", actual: "a", expected: "a", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.operator, tt.actual, tt.expected))
		})
	}
}

func TestEvaluateDBSingleField(t *testing.T) {
	t.Parallel()

	q := &stubQuerier{queryFn: func(_ context.Context, databaseID int64, query string) (*Row, error) {
		assert.Equal(t, int64(3), databaseID)
		assert.Equal(t, "SELECT count(*) AS cnt FROM orders", query)
		return rowOf([]string{"cnt"}, map[string]any{"cnt": int64(2)}), nil
	}}

	recs := EvaluateDB(context.Background(), q, []model.DBAssertion{{
		DatabaseID: 3,
		SQL:        "SELECT count(*) AS cnt FROM orders",
		Field:      "cnt",
		Operator:   OpEq,
		Expected:   "2",
		Label:      "訂單數",
	}})

	require.Len(t, recs, 1)
	assert.True(t, recs[0].Passed)
	require.Len(t, recs[0].Fields, 1)
	assert.Equal(t, "2", recs[0].Fields[0].Actual)
	assert.Equal(t, "[DB] 訂單數 → 字段[cnt]=2 == 2 → ✓ 通過", recs[0].Message)
}

func TestEvaluateDBMultiField(t *testing.T) {
	t.Parallel()

	q := &stubQuerier{queryFn: func(context.Context, int64, string) (*Row, error) {
		return rowOf([]string{"name", "age"}, map[string]any{"name": "alice", "age": int64(17)}), nil
	}}

	recs := EvaluateDB(context.Background(), q, []model.DBAssertion{{
		DatabaseID: 1,
		SQL:        "SELECT name, age FROM users WHERE id=1",
		Label:      "用戶檢查",
		Fields: []model.DBAssertionField{
			{Field: "name", Operator: OpContains, Expected: "ali"},
			{Field: "age", Operator: OpGe, Expected: "18"},
		},
	}})

	require.Len(t, recs, 1)
	assert.False(t, recs[0].Passed)
	require.Len(t, recs[0].Fields, 2)
	assert.True(t, recs[0].Fields[0].Passed)
	assert.False(t, recs[0].Fields[1].Passed)
	assert.Contains(t, recs[0].Message, "✗ 1/2 失敗")
}

func TestEvaluateDBFirstColumnFallback(t *testing.T) {
	t.Parallel()

	q := &stubQuerier{queryFn: func(context.Context, int64, string) (*Row, error) {
		return rowOf([]string{"total", "other"}, map[string]any{"total": "9", "other": "1"}), nil
	}}

	recs := EvaluateDB(context.Background(), q, []model.DBAssertion{{
		DatabaseID: 1,
		SQL:        "SELECT count(*), max(id) FROM t",
		Operator:   OpEq,
		Expected:   "9",
	}})

	require.Len(t, recs, 1)
	assert.True(t, recs[0].Passed, "empty field name reads the first column")
	assert.Contains(t, recs[0].Fields[0].Message, "第1列")
}

func TestEvaluateDBEdgeCases(t *testing.T) {
	t.Parallel()

	t.Run("incomplete rule", func(t *testing.T) {
		recs := EvaluateDB(context.Background(), nil, []model.DBAssertion{{SQL: "SELECT 1"}})
		require.Len(t, recs, 1)
		assert.False(t, recs[0].Passed)
		assert.Equal(t, "規則不完整：缺少 db_id 或 sql", recs[0].Message)
	})

	t.Run("no row fails even not_empty", func(t *testing.T) {
		q := &stubQuerier{queryFn: func(context.Context, int64, string) (*Row, error) {
			return nil, nil
		}}
		recs := EvaluateDB(context.Background(), q, []model.DBAssertion{{
			DatabaseID: 1, SQL: "SELECT 1", Field: "x", Operator: OpNotEmpty,
		}})
		require.Len(t, recs, 1)
		assert.False(t, recs[0].Passed)
	})

	t.Run("connect error uses raw message", func(t *testing.T) {
		q := &stubQuerier{queryFn: func(context.Context, int64, string) (*Row, error) {
			return nil, &ConnectError{Err: errors.New("連接失敗: dial tcp refused")}
		}}
		recs := EvaluateDB(context.Background(), q, []model.DBAssertion{{
			DatabaseID: 1, SQL: "SELECT 1",
		}})
		require.Len(t, recs, 1)
		assert.Equal(t, "連接失敗: dial tcp refused", recs[0].Message)
	})

	t.Run("query error is prefixed", func(t *testing.T) {
		q := &stubQuerier{queryFn: func(context.Context, int64, string) (*Row, error) {
			return nil, errors.New("syntax error near SELECT")
		}}
		recs := EvaluateDB(context.Background(), q, []model.DBAssertion{{
			DatabaseID: 1, SQL: "SELEC 1",
		}})
		require.Len(t, recs, 1)
		assert.Equal(t, "SQL 執行錯誤: syntax error near SELECT", recs[0].Message)
	})

	t.Run("label defaults to truncated sql", func(t *testing.T) {
		q := &stubQuerier{queryFn: func(context.Context, int64, string) (*Row, error) {
			return rowOf([]string{"a"}, map[string]any{"a": "1"}), nil
		}}
		recs := EvaluateDB(context.Background(), q, []model.DBAssertion{{
			DatabaseID: 1, SQL: "SELECT 1", Field: "a", Expected: "1",
		}})
		require.Len(t, recs, 1)
		assert.Equal(t, "SELECT 1", recs[0].Label)
	})
}
