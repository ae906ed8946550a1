// Package vars holds the shared variable store and the {{name}} template
// substitution applied to request templates before dispatch.
package vars

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// placeholderRe matches {{ident}} occurrences. The ident may carry
// surrounding whitespace, which is trimmed before lookup.
var placeholderRe = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Store is the process-wide runtime variable table. Entries written by
// extraction rules and captcha fetches live here until the next batch
// resets them. All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	runtime map[string]any
	onReset []func()
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{runtime: make(map[string]any)}
}

// Reset drops every runtime entry and runs the registered reset hooks.
// A batch calls this once before its first API executes so values never
// leak between batches.
func (s *Store) Reset() {
	s.mu.Lock()
	s.runtime = make(map[string]any)
	hooks := make([]func(), len(s.onReset))
	copy(hooks, s.onReset)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// OnReset registers a hook invoked on every Reset. The HTTP session pool
// uses this to drop keyed sessions together with the variables.
func (s *Store) OnReset(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReset = append(s.onReset, fn)
}

// Set stores one runtime entry.
func (s *Store) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runtime[name] = value
}

// Get returns one runtime entry.
func (s *Store) Get(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.runtime[name]
	return v, ok
}

// Runtime returns a copy of the current runtime entries.
func (s *Store) Runtime() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.runtime))
	for k, v := range s.runtime {
		out[k] = v
	}
	return out
}

// Snapshot merges the persisted globals under the runtime entries and
// returns the combined view. Runtime values shadow globals of the same
// name, so a token refreshed mid-batch wins over its stored seed.
func (s *Store) Snapshot(globals map[string]any) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(globals)+len(s.runtime))
	for k, v := range globals {
		out[k] = v
	}
	for k, v := range s.runtime {
		out[k] = v
	}
	return out
}

// Substitute replaces every {{name}} placeholder in s with the stringified
// value from variables. Unknown placeholders are left verbatim so partially
// templated payloads stay inspectable in reports.
func Substitute(s string, variables map[string]any) string {
	if s == "" || !strings.Contains(s, "{{") {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		ident := trimIdent(m)
		if v, ok := variables[ident]; ok {
			return Stringify(v)
		}
		return m
	})
}

// SubstituteDeep walks decoded JSON (strings, arrays, objects) and applies
// Substitute to every string leaf. Non-string scalars pass through
// unchanged. The input is never mutated.
func SubstituteDeep(v any, variables map[string]any) any {
	switch t := v.(type) {
	case string:
		return Substitute(t, variables)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = SubstituteDeep(val, variables)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = SubstituteDeep(val, variables)
		}
		return out
	default:
		return v
	}
}

// Stringify renders a variable value for placement inside a template
// string. Numbers drop their trailing zeros, structured values are
// serialized as JSON, and nil becomes the empty string.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return fmt.Sprintf("%v", v)
		}
		return strings.TrimSuffix(buf.String(), "\n")
	}
}

func trimIdent(match string) string {
	inner := match[2 : len(match)-2]
	start, end := 0, len(inner)
	for start < end && (inner[start] == ' ' || inner[start] == '\t') {
		start++
	}
	for end > start && (inner[end-1] == ' ' || inner[end-1] == '\t') {
		end--
	}
	return inner[start:end]
}
