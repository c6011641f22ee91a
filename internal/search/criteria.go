package search

import (
	"errors"
	"fmt"
	"sync"

	"cscexplorer/internal/domain"
)

var (
	ErrIndexOutOfRange = errors.New("criterion index out of range")
	ErrNoCategory      = errors.New("criterion has no category selected")
)

// CriteriaList is the ordered, editable list of criteria behind the explorer
// form. Indices are always 0..Len()-1 in list order.
type CriteriaList struct {
	mu    sync.Mutex
	items []Criterion
}

func NewCriteriaList() *CriteriaList {
	return &CriteriaList{}
}

// Add appends an inert criterion and returns its index.
func (l *CriteriaList) Add() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, Criterion{Index: len(l.items), Comparator: Equal})
	return len(l.items) - 1
}

// Remove deletes the criterion at index and renumbers the ones after it.
func (l *CriteriaList) Remove(index int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.check(index); err != nil {
		return err
	}
	l.items = append(l.items[:index], l.items[index+1:]...)
	for i := index; i < len(l.items); i++ {
		l.items[i].Index = i
	}
	return nil
}

// SelectCategory sets the category of a criterion and clears its value. The
// comparator falls back to Equal when the new type does not allow it.
func (l *CriteriaList) SelectCategory(index int, cat domain.Category) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.check(index); err != nil {
		return err
	}
	c := &l.items[index]
	c.Category = &cat
	c.Value = domain.Value{}
	if !Allowed(cat.Type, c.Comparator) {
		c.Comparator = Equal
	}
	return nil
}

// AllowedComparators lists the comparators valid for the criterion's category.
func (l *CriteriaList) AllowedComparators(index int) ([]Comparator, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.check(index); err != nil {
		return nil, err
	}
	c := l.items[index]
	if c.Category == nil {
		return nil, ErrNoCategory
	}
	return AllowedComparators(c.Category.Type), nil
}

func (l *CriteriaList) SetComparator(index int, cmp Comparator) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.check(index); err != nil {
		return err
	}
	c := &l.items[index]
	if c.Category == nil {
		return ErrNoCategory
	}
	if !Allowed(c.Category.Type, cmp) {
		return fmt.Errorf("%w: comparator %q not allowed for %s", ErrInvalidCriterion, cmp, c.Category.Type)
	}
	c.Comparator = cmp
	return nil
}

// SetValue stores v converted to the criterion's category type.
func (l *CriteriaList) SetValue(index int, v domain.Value) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.check(index); err != nil {
		return err
	}
	c := &l.items[index]
	if c.Category == nil {
		return ErrNoCategory
	}
	coerced, ok := domain.Coerce(c.Category.Type, v)
	if !ok {
		return fmt.Errorf("%w: value %q is not a valid %s", ErrInvalidCriterion, v.String(), c.Category.Type)
	}
	c.Value = coerced
	return nil
}

func (l *CriteriaList) SetYear(index int, year string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.check(index); err != nil {
		return err
	}
	l.items[index].Year = year
	return nil
}

// Snapshot returns a copy of the list safe to hand to a search.
func (l *CriteriaList) Snapshot() []Criterion {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Criterion, len(l.items))
	for i, c := range l.items {
		if c.Category != nil {
			cat := *c.Category
			c.Category = &cat
		}
		out[i] = c
	}
	return out
}

func (l *CriteriaList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

func (l *CriteriaList) check(index int) error {
	if index < 0 || index >= len(l.items) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return nil
}
