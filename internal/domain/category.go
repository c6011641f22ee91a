package domain

import (
	"fmt"
	"strings"
)

// EntityIDField is the column that identifies a college in every dataset.
// It is never exposed as a searchable category.
const EntityIDField = "college_id"

// ValueType is the declared type of a category's values.
type ValueType string

const (
	TypeText    ValueType = "TEXT"
	TypeInteger ValueType = "INTEGER"
	TypeReal    ValueType = "REAL"
)

// ParseValueType accepts the type names reported by the data API, case-insensitively.
func ParseValueType(s string) (ValueType, error) {
	switch t := ValueType(strings.ToUpper(strings.TrimSpace(s))); t {
	case TypeText, TypeInteger, TypeReal:
		return t, nil
	default:
		return "", fmt.Errorf("unknown value type %q", s)
	}
}

func (t ValueType) Numeric() bool {
	return t == TypeInteger || t == TypeReal
}

// Scope tells where a category's values live: one row per college, or one row
// per college per year.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeYear   Scope = "year"
)

func ParseScope(s string) (Scope, error) {
	switch sc := Scope(strings.ToLower(strings.TrimSpace(s))); sc {
	case ScopeGlobal, ScopeYear:
		return sc, nil
	default:
		return "", fmt.Errorf("unknown scope %q", s)
	}
}

// Category describes one queryable data field.
type Category struct {
	Name  string    `json:"name"`
	Type  ValueType `json:"type"`
	Scope Scope     `json:"scope"`
}

// RawRecord is one fetched datapoint for one category.
type RawRecord struct {
	EntityID string `json:"college_id"`
	Value    Value  `json:"value"`
}
