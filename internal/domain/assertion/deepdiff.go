package assertion

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/probeworks/apiprobe/internal/domain/extract"
	"github.com/probeworks/apiprobe/internal/domain/model"
)

// diffTruncateAt caps the diff text stored on a record.
const diffTruncateAt = 500

// floatDecimals is how many decimal places survive before two floats are
// considered equal.
const floatDecimals = 6

const defaultDeepDiffLabel = "DeepDiff 斷言"

// EvaluateDeepDiff structurally compares each rule's expected document
// against the response (or the subtree its check_path selects). Order
// inside arrays is ignored, floats compare after rounding, and entries
// named in ignore_fields are excluded at every depth.
func EvaluateDeepDiff(rules []model.DeepDiffAssertion, responseData any) []model.DeepDiffRecord {
	records := make([]model.DeepDiffRecord, 0, len(rules))
	for _, rule := range rules {
		label := rule.Label
		if label == "" {
			label = defaultDeepDiffLabel
		}

		expected := rule.Expected
		if s, ok := expected.(string); ok {
			var decoded any
			if err := json.Unmarshal([]byte(s), &decoded); err == nil {
				expected = decoded
			}
		}

		actual := responseData
		if rule.CheckPath != "" {
			actual = extract.Value(responseData, rule.CheckPath)
		}

		rec := diffOne(label, expected, actual, rule.IgnoreFields)
		records = append(records, rec)
	}
	return records
}

func diffOne(label string, expected, actual any, ignoreFields []string) (rec model.DeepDiffRecord) {
	rec.Label = label
	defer func() {
		if r := recover(); r != nil {
			rec.Passed = false
			rec.Message = fmt.Sprintf("[DeepDiff] %s: 異常 %v", label, r)
		}
	}()

	ignore := make(map[string]struct{}, len(ignoreFields))
	for _, f := range ignoreFields {
		ignore[f] = struct{}{}
	}

	opts := cmp.Options{
		cmpopts.IgnoreMapEntries(func(k string, _ any) bool {
			_, drop := ignore[k]
			return drop
		}),
		cmpopts.SortSlices(func(a, b any) bool {
			return canonicalJSON(a) < canonicalJSON(b)
		}),
		cmp.Comparer(func(x, y float64) bool {
			return roundTo(x, floatDecimals) == roundTo(y, floatDecimals)
		}),
	}

	diff := cmp.Diff(expected, actual, opts)
	rec.Passed = diff == ""
	if rec.Passed {
		rec.Message = fmt.Sprintf("[DeepDiff] %s: ✓ 一致", label)
		return rec
	}
	rec.Diff = truncate(diff, diffTruncateAt)
	rec.Message = fmt.Sprintf("[DeepDiff] %s: ✗ 差異→%s", label, rec.Diff)
	return rec
}

// canonicalJSON renders a value with sorted keys so slice ordering checks
// stay deterministic.
func canonicalJSON(v any) string {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := "{"
		for i, k := range keys {
			if i > 0 {
				out += ","
			}
			out += fmt.Sprintf("%q:%s", k, canonicalJSON(t[k]))
		}
		return out + "}"
	case []any:
		out := "["
		for i, e := range t {
			if i > 0 {
				out += ","
			}
			out += canonicalJSON(e)
		}
		return out + "]"
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

func roundTo(x float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(x*scale) / scale
}

// truncate cuts by character count so multi-byte diff text never splits
// mid-rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
