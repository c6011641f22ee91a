package search

import (
	"fmt"
	"strings"

	"cscexplorer/internal/domain"
)

// Comparator is the comparison a criterion applies to each dataset value.
type Comparator string

const (
	Equal       Comparator = "EQUAL"
	GreaterThan Comparator = "GREATER_THAN"
	LessThan    Comparator = "LESS_THAN"
)

var comparatorAliases = map[string]Comparator{
	"equal":        Equal,
	"equal to":     Equal,
	"equal_to":     Equal,
	"eq":           Equal,
	"=":            Equal,
	"==":           Equal,
	"greater_than": GreaterThan,
	"greater than": GreaterThan,
	"gt":           GreaterThan,
	">":            GreaterThan,
	"less_than":    LessThan,
	"less than":    LessThan,
	"lt":           LessThan,
	"<":            LessThan,
}

// ParseComparator accepts the canonical names plus the labels and symbols
// used by the explorer form ("Less than", "<", "lt").
func ParseComparator(s string) (Comparator, error) {
	if c, ok := comparatorAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown comparator %q", s)
}

// AllowedComparators lists the comparators a value type supports. TEXT
// categories only support equality.
func AllowedComparators(t domain.ValueType) []Comparator {
	switch t {
	case domain.TypeText:
		return []Comparator{Equal}
	case domain.TypeInteger, domain.TypeReal:
		return []Comparator{Equal, GreaterThan, LessThan}
	default:
		return nil
	}
}

// Allowed reports whether c may be used with values of type t.
func Allowed(t domain.ValueType, c Comparator) bool {
	for _, a := range AllowedComparators(t) {
		if a == c {
			return true
		}
	}
	return false
}

// holds applies the comparator to an ordering result of value vs operand.
func (c Comparator) holds(order int) bool {
	switch c {
	case Equal:
		return order == 0
	case GreaterThan:
		return order > 0
	case LessThan:
		return order < 0
	default:
		return false
	}
}
