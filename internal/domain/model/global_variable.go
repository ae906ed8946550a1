package model

import (
	"encoding/json"
	"time"
)

// VarType describes how a global variable value should be interpreted.
type VarType string

const (
	// VarTypeString is a plain string value.
	VarTypeString VarType = "string"
	// VarTypeToken marks credentials refreshed by test flows.
	VarTypeToken VarType = "token"
	// VarTypeJSON holds a JSON document as its serialized text.
	VarTypeJSON VarType = "json"
)

// GlobalVariable is a persisted name/value pair merged under runtime
// variables when a batch takes its snapshot.
type GlobalVariable struct {
	ID          int64     `json:"id"          db:"id"`
	Name        string    `json:"name"        db:"name"`
	Value       string    `json:"value"       db:"value"`
	VarType     VarType   `json:"var_type"    db:"var_type"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at"  db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"  db:"updated_at"`
}

// TypedValue returns the value in its declared shape: json variables
// decode to their structured form so extraction rules and json_dumps
// encryption sources see real objects. Malformed json stays a string.
func (g *GlobalVariable) TypedValue() any {
	if g.VarType == VarTypeJSON {
		var v any
		if err := json.Unmarshal([]byte(g.Value), &v); err == nil {
			return v
		}
	}
	return g.Value
}
