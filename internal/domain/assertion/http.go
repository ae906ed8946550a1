package assertion

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/probeworks/apiprobe/internal/domain/extract"
	"github.com/probeworks/apiprobe/internal/domain/model"
	"github.com/probeworks/apiprobe/internal/domain/vars"
)

// Evaluate runs the HTTP assertion rules against a response. Every rule
// produces exactly one record; evaluation never stops early and never
// returns an error, since a broken rule is itself a failed assertion.
func Evaluate(rules []model.Assertion, responseStatus int, responseData any) []model.AssertionRecord {
	records := make([]model.AssertionRecord, 0, len(rules))
	for _, rule := range rules {
		rec := model.AssertionRecord{
			Type:     rule.Type,
			Path:     rule.Path,
			Expected: rule.Expected,
		}
		expected := vars.Stringify(rule.Expected)

		switch rule.Type {
		case model.AssertStatusCode:
			actual := responseStatus
			rec.Actual = actual
			rec.Passed = vars.Stringify(actual) == expected
			rec.Message = fmt.Sprintf("狀態碼 %d %s %s", actual, eqSign(rec.Passed), expected)

		case model.AssertJSONPath:
			actual := extract.Value(responseData, rule.Path)
			rec.Actual = actual
			rec.Passed = vars.Stringify(actual) == expected
			rec.Message = fmt.Sprintf("路徑[%s]=%s %s %s", rule.Path, displayValue(actual), eqSign(rec.Passed), expected)

		case model.AssertContains:
			body := vars.Stringify(responseData)
			rec.Actual = "(響應體)"
			rec.Passed = strings.Contains(body, expected)
			if rec.Passed {
				rec.Message = fmt.Sprintf("響應體包含 %q", expected)
			} else {
				rec.Message = fmt.Sprintf("響應體不包含 %q", expected)
			}

		case model.AssertNotEmpty:
			actual := extract.Value(responseData, rule.Path)
			rec.Actual = actual
			rec.Passed = notEmptyValue(actual)
			if rec.Passed {
				rec.Message = fmt.Sprintf("路徑[%s] 非空", rule.Path)
			} else {
				rec.Message = fmt.Sprintf("路徑[%s] 為空", rule.Path)
			}

		case model.AssertRegex:
			var actual any
			if rule.Path != "" {
				actual = extract.Value(responseData, rule.Path)
			} else {
				actual = vars.Stringify(responseData)
			}
			rec.Actual = actual
			re, err := regexp.Compile(expected)
			rec.Passed = err == nil && re.MatchString(vars.Stringify(actual))
			if rec.Passed {
				rec.Message = fmt.Sprintf("正則[%s]%q 匹配 /%s/", rule.Path, displayValue(actual), expected)
			} else {
				rec.Message = fmt.Sprintf("正則[%s]%q 不匹配 /%s/", rule.Path, displayValue(actual), expected)
			}

		default:
			// Unknown type: the record fails with no further detail.
		}

		records = append(records, rec)
	}
	return records
}

func eqSign(passed bool) string {
	if passed {
		return "=="
	}
	return "!="
}

// notEmptyValue treats nil, empty strings, and empty containers as empty.
func notEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
