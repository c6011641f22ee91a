package search

import "cscexplorer/internal/domain"

// Evaluate returns the entities of dataset whose value satisfies c, compared
// under the category's declared type. Records with no entity id or with a
// value that cannot be read as that type are skipped. When an entity appears
// more than once, its last qualifying record wins.
func Evaluate(c Criterion, dataset []domain.RawRecord) MatchSet {
	out := MatchSet{}
	if !c.Active() || !Allowed(c.Category.Type, c.Comparator) {
		return out
	}
	operand, ok := domain.Coerce(c.Category.Type, c.Value)
	if !ok {
		return out
	}
	for _, rec := range dataset {
		if rec.EntityID == "" {
			continue
		}
		v, ok := domain.Coerce(c.Category.Type, rec.Value)
		if !ok {
			continue
		}
		order, ok := v.Compare(operand)
		if !ok || !c.Comparator.holds(order) {
			continue
		}
		out[rec.EntityID] = Match{Category: c.Category.Name, Value: v}
	}
	return out
}
