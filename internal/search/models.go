// Package search evaluates multi-criterion college searches: one concurrent
// fetch and evaluation per active criterion, then an AND-join on college id.
package search

import (
	"errors"
	"time"

	"cscexplorer/internal/catalog"
	"cscexplorer/internal/domain"
)

var (
	// ErrNotReady is returned while the category catalog is still loading.
	ErrNotReady = errors.New("category metadata not ready")
	// ErrInvalidCriterion is returned for criteria naming an unknown category,
	// a comparator the category type does not allow, or an incomparable value.
	ErrInvalidCriterion = errors.New("invalid criterion")
	// ErrSuperseded is returned by a session search that a newer search replaced.
	ErrSuperseded = errors.New("search superseded by a newer search")
)

// Criterion is one filter: category, comparator and comparison value.
// A criterion without a category is inert and never evaluated.
type Criterion struct {
	Index      int
	Category   *domain.Category
	Comparator Comparator
	Value      domain.Value
	// Year overrides the configured data year for year-scoped categories.
	Year string
}

// Active reports whether the criterion participates in evaluation.
func (c Criterion) Active() bool {
	return c.Category != nil && c.Category.Name != ""
}

// Match is one entity's qualifying value for one criterion.
type Match struct {
	Category string
	Value    domain.Value
}

// MatchSet maps entity id to its match for a single criterion.
type MatchSet map[string]Match

// AggregatedResult accumulates, per entity, the matches of every criterion
// in merge order.
type AggregatedResult map[string][]Match

// ResultRecord is one entity satisfying every active criterion.
type ResultRecord struct {
	EntityID string
	Values   map[string]domain.Value
	Location *catalog.Location
}

// Warning reports a criterion whose dataset could not be fetched. The
// criterion matched no entities.
type Warning struct {
	CriterionIndex int
	Category       string
	Reason         string
	Message        string
}

// ResultSet is the outcome of one completed search.
type ResultSet struct {
	Generation     uint64
	ActiveCriteria int
	Records        []ResultRecord
	Warnings       []Warning
	CompletedAt    time.Time
}

// Len returns the number of qualifying entities.
func (r ResultSet) Len() int {
	return len(r.Records)
}
