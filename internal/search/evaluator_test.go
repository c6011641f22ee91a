package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cscexplorer/internal/domain"
)

var (
	admRate = domain.Category{Name: "ADM_RATE", Type: domain.TypeReal, Scope: domain.ScopeYear}
	ugds    = domain.Category{Name: "UGDS", Type: domain.TypeInteger, Scope: domain.ScopeYear}
	instnm  = domain.Category{Name: "INSTNM", Type: domain.TypeText, Scope: domain.ScopeGlobal}
)

func criterion(cat domain.Category, cmp Comparator, v domain.Value) Criterion {
	return Criterion{Category: &cat, Comparator: cmp, Value: v}
}

func TestEvaluate_NumericComparators(t *testing.T) {
	dataset := []domain.RawRecord{
		{EntityID: "1", Value: domain.RealValue(0.05)},
		{EntityID: "2", Value: domain.RealValue(0.1)},
		{EntityID: "3", Value: domain.RealValue(0.3)},
	}

	tests := []struct {
		name string
		cmp  Comparator
		want []string
	}{
		{name: "less than", cmp: LessThan, want: []string{"1"}},
		{name: "equal", cmp: Equal, want: []string{"2"}},
		{name: "greater than", cmp: GreaterThan, want: []string{"3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(criterion(admRate, tt.cmp, domain.RealValue(0.1)), dataset)
			assert.ElementsMatch(t, tt.want, keys(got))
		})
	}
}

func TestEvaluate_IntegerCategoryAcceptsTextOperand(t *testing.T) {
	dataset := []domain.RawRecord{
		{EntityID: "1", Value: domain.IntValue(1200)},
		{EntityID: "2", Value: domain.IntValue(5000)},
		{EntityID: "3", Value: domain.TextValue("800")},
	}

	got := Evaluate(criterion(ugds, GreaterThan, domain.TextValue("1000")), dataset)

	assert.ElementsMatch(t, []string{"1", "2"}, keys(got))
	assert.Equal(t, domain.IntValue(5000), got["2"].Value)
	assert.Equal(t, "UGDS", got["2"].Category)
}

func TestEvaluate_TextIsExactEquality(t *testing.T) {
	dataset := []domain.RawRecord{
		{EntityID: "1", Value: domain.TextValue("Acme College")},
		{EntityID: "2", Value: domain.TextValue("acme college")},
		{EntityID: "3", Value: domain.TextValue("Acme")},
	}

	got := Evaluate(criterion(instnm, Equal, domain.TextValue("Acme College")), dataset)
	assert.Equal(t, []string{"1"}, keys(got))

	assert.Empty(t, Evaluate(criterion(instnm, GreaterThan, domain.TextValue("A")), dataset),
		"ordering comparators do not apply to text")
}

func TestEvaluate_LastQualifyingRecordWins(t *testing.T) {
	dataset := []domain.RawRecord{
		{EntityID: "1", Value: domain.RealValue(0.02)},
		{EntityID: "1", Value: domain.RealValue(0.5)},
		{EntityID: "1", Value: domain.RealValue(0.07)},
	}

	got := Evaluate(criterion(admRate, LessThan, domain.RealValue(0.1)), dataset)

	assert.Equal(t, domain.RealValue(0.07), got["1"].Value)
}

func TestEvaluate_SkipsMalformedRecords(t *testing.T) {
	dataset := []domain.RawRecord{
		{EntityID: "", Value: domain.RealValue(0.01)},
		{EntityID: "2", Value: domain.Value{}},
		{EntityID: "3", Value: domain.TextValue("n/a")},
		{EntityID: "4", Value: domain.RealValue(0.04)},
	}

	got := Evaluate(criterion(admRate, LessThan, domain.RealValue(0.1)), dataset)

	assert.Equal(t, []string{"4"}, keys(got))
}

func TestEvaluate_InertOrInvalidCriterionMatchesNothing(t *testing.T) {
	dataset := []domain.RawRecord{{EntityID: "1", Value: domain.RealValue(0.05)}}

	assert.Empty(t, Evaluate(Criterion{Comparator: LessThan, Value: domain.RealValue(1)}, dataset))
	assert.Empty(t, Evaluate(criterion(admRate, LessThan, domain.Value{}), dataset))
	assert.Empty(t, Evaluate(criterion(admRate, Comparator("LIKE"), domain.RealValue(1)), dataset))
}

func TestParseComparator(t *testing.T) {
	for in, want := range map[string]Comparator{
		"Less than":    LessThan,
		"Greater than": GreaterThan,
		"Equal to":     Equal,
		"EQUAL":        Equal,
		" < ":          LessThan,
	} {
		got, err := ParseComparator(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseComparator("between")
	assert.Error(t, err)
}

func TestAllowedComparators(t *testing.T) {
	assert.Equal(t, []Comparator{Equal}, AllowedComparators(domain.TypeText))
	assert.Equal(t, []Comparator{Equal, GreaterThan, LessThan}, AllowedComparators(domain.TypeReal))
	assert.True(t, Allowed(domain.TypeInteger, LessThan))
	assert.False(t, Allowed(domain.TypeText, LessThan))
}

func keys(m MatchSet) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
