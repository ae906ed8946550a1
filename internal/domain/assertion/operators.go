// Package assertion evaluates the three assertion families a run declares:
// HTTP response assertions, structural deep-diff assertions, and database
// row assertions.
package assertion

import (
	"strconv"
	"strings"

	"github.com/probeworks/apiprobe/internal/domain/vars"
)

// Comparison operators shared by DB assertions. String operators compare
// stringified values; numeric operators coerce both sides with unparsable
// values reading as zero.
const (
	OpEq       = "=="
	OpNe       = "!="
	OpGt       = ">"
	OpLt       = "<"
	OpGe       = ">="
	OpLe       = "<="
	OpContains = "contains"
	OpNotEmpty = "not_empty"
)

// Compare applies one operator. Unknown operators fall back to equality.
func Compare(operator string, actual any, expected string) bool {
	switch operator {
	case OpNe:
		return vars.Stringify(actual) != expected
	case OpGt:
		return toNum(actual) > toNumString(expected)
	case OpLt:
		return toNum(actual) < toNumString(expected)
	case OpGe:
		return toNum(actual) >= toNumString(expected)
	case OpLe:
		return toNum(actual) <= toNumString(expected)
	case OpContains:
		return strings.Contains(vars.Stringify(actual), expected)
	case OpNotEmpty:
		s := vars.Stringify(actual)
		return actual != nil && s != "" && s != "0"
	case OpEq:
		return vars.Stringify(actual) == expected
	default:
		return vars.Stringify(actual) == expected
	}
}

func toNum(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return toNumString(vars.Stringify(v))
	}
}

func toNumString(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// displayValue renders a value for report messages. nil reads as null so a
// missing extraction is visible in the text.
func displayValue(v any) string {
	if v == nil {
		return "null"
	}
	return vars.Stringify(v)
}
