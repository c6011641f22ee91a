package search

import (
	"fmt"

	"cscexplorer/internal/domain"
)

// DemoCategory and DemoThreshold define the sample search: colleges admitting
// fewer than one in ten applicants.
const (
	DemoCategory  = "ADM_RATE"
	DemoThreshold = 0.1
)

// DemoCriteria builds the sample search once the catalog knows DemoCategory.
func DemoCriteria(cat Catalog) ([]Criterion, error) {
	if !cat.Ready() {
		return nil, ErrNotReady
	}
	c, ok := cat.Get(DemoCategory)
	if !ok {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidCriterion, DemoCategory)
	}
	return []Criterion{{
		Index:      0,
		Category:   &c,
		Comparator: LessThan,
		Value:      domain.RealValue(DemoThreshold),
	}}, nil
}
