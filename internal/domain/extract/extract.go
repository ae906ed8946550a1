// Package extract walks decoded JSON documents with dotted/bracketed paths
// like data.items[0].id or $.token.
package extract

import (
	"strconv"
	"strings"
)

// Value resolves path against data and returns the value it lands on.
// A leading $ and leading dots are ignored; segments are split on dots and
// bracket indexers. Numeric segments index arrays (negative counts from the
// end), other segments key into objects. Any traversal failure returns nil,
// never an error, so a broken path reads as "nothing extracted".
func Value(data any, path string) any {
	p := strings.TrimLeft(path, "$")
	p = strings.TrimLeft(p, ".")
	cur := data
	for _, seg := range splitPath(p) {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return nil
			}
			if idx < 0 {
				idx += len(node)
			}
			if idx < 0 || idx >= len(node) {
				return nil
			}
			cur = node[idx]
		default:
			return nil
		}
	}
	return cur
}

func splitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool {
		return r == '.' || r == '[' || r == ']'
	})
}
