package handler

import (
	"fmt"
	"strings"

	"cscexplorer/internal/domain"
	"cscexplorer/internal/search"
	dErrors "cscexplorer/pkg/domain-errors"
)

const maxCriteria = 32

// SearchRequest is the HTTP request body for POST /api/v1/search.
type SearchRequest struct {
	Criteria []CriterionRequest `json:"criteria"`

	parsed []search.Criterion
}

// CriterionRequest is one row of the search form. A row without a category is
// inert. Value is a JSON number or string.
type CriterionRequest struct {
	Category   string `json:"category"`
	Comparator string `json:"comparator"`
	Value      any    `json:"value"`
	Year       string `json:"year,omitempty"`
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *SearchRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Criteria) > maxCriteria {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("at most %d criteria are allowed", maxCriteria))
	}

	r.parsed = make([]search.Criterion, len(r.Criteria))
	for i, c := range r.Criteria {
		crit := search.Criterion{Index: i, Comparator: search.Equal}

		name := strings.TrimSpace(c.Category)
		if name != "" {
			crit.Category = &domain.Category{Name: name}
		}

		if cmp := strings.TrimSpace(c.Comparator); cmp != "" {
			parsed, err := search.ParseComparator(cmp)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("criteria[%d].comparator: %s", i, err))
			}
			crit.Comparator = parsed
		}

		if c.Value != nil {
			v, ok := domain.FromWire(c.Value)
			if !ok {
				return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("criteria[%d].value must be a number or string", i))
			}
			crit.Value = v
		}

		crit.Year = strings.TrimSpace(c.Year)
		if crit.Year != "" && !isYear(crit.Year) {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("criteria[%d].year must be a four digit year", i))
		}

		r.parsed[i] = crit
	}
	return nil
}

// Parsed returns the criteria built by Validate.
func (r *SearchRequest) Parsed() []search.Criterion {
	return r.parsed
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
