package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	t.Parallel()

	var doc any
	err := json.Unmarshal([]byte(`{
		"code": 0,
		"data": {
			"token": "tk-1",
			"items": [
				{"id": 11, "tags": ["a", "b"]},
				{"id": 22}
			],
			"empty": []
		}
	}`), &doc)
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		want any
	}{
		{name: "top-level key", path: "code", want: float64(0)},
		{name: "nested key", path: "data.token", want: "tk-1"},
		{name: "dollar prefix", path: "$.data.token", want: "tk-1"},
		{name: "leading dot", path: ".data.token", want: "tk-1"},
		{name: "bracket index", path: "data.items[0].id", want: float64(11)},
		{name: "dotted index", path: "data.items.1.id", want: float64(22)},
		{name: "nested array", path: "data.items[0].tags[1]", want: "b"},
		{name: "negative index", path: "data.items[-1].id", want: float64(22)},
		{name: "missing key", path: "data.nope", want: nil},
		{name: "index out of range", path: "data.items[5]", want: nil},
		{name: "index into empty array", path: "data.empty[0]", want: nil},
		{name: "key into scalar", path: "data.token.sub", want: nil},
		{name: "non-numeric index", path: "data.items[x]", want: nil},
		{name: "whole document", path: "$", want: doc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Value(doc, tt.path))
		})
	}
}

func TestValueNilData(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Value(nil, "a.b"))
	assert.Nil(t, Value("scalar", "a"))
	assert.Equal(t, "scalar", Value("scalar", ""))
}
