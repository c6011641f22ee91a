// Package scorecard serves College Scorecard data: the college listing,
// per-college attributes and per-data-type value lists, validated against
// the years, colleges and data types present in the database.
package scorecard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"cscexplorer/internal/domain"
	"cscexplorer/internal/scorecard/store"
	dErrors "cscexplorer/pkg/domain-errors"
	"cscexplorer/pkg/platform/sentinel"
)

// Store is the read model the service needs.
type Store interface {
	Tables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]store.Column, error)
	Colleges(ctx context.Context) ([]store.College, error)
	CollegeIDs(ctx context.Context) ([]string, error)
	GlobalRow(ctx context.Context, collegeID string) (map[string]any, error)
	YearRow(ctx context.Context, year, collegeID string) (map[string]any, error)
	ColumnValues(ctx context.Context, table, column string) ([]store.Pair, error)
}

var ErrNotInitialized = errors.New("scorecard service not initialized")

// Service answers data API queries. Init must succeed before use.
type Service struct {
	store  Store
	logger *slog.Logger

	mu            sync.RWMutex
	initialized   bool
	years         []string
	yearSet       map[string]struct{}
	collegeIDs    map[string]struct{}
	yearColumns   []store.Column
	globalColumns []store.Column
	yearCols      map[string]struct{}
	globalCols    map[string]struct{}
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(st Store, opts ...Option) *Service {
	s := &Service{store: st, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init caches the years, college ids and column sets used for validation.
// Year tables are the tables whose name is an integer; their columns are
// taken from the earliest year.
func (s *Service) Init(ctx context.Context) error {
	tables, err := s.store.Tables(ctx)
	if err != nil {
		return fmt.Errorf("init scorecard: %w", err)
	}
	var years []string
	for _, t := range tables {
		if _, err := strconv.Atoi(t); err == nil {
			years = append(years, t)
		}
	}
	slices.SortFunc(years, func(a, b string) int {
		x, _ := strconv.Atoi(a)
		y, _ := strconv.Atoi(b)
		return x - y
	})

	globalColumns, err := s.store.Columns(ctx, store.GlobalTable)
	if err != nil {
		return fmt.Errorf("init scorecard: %w", err)
	}
	var yearColumns []store.Column
	if len(years) > 0 {
		if yearColumns, err = s.store.Columns(ctx, years[0]); err != nil {
			return fmt.Errorf("init scorecard: %w", err)
		}
	}
	ids, err := s.store.CollegeIDs(ctx)
	if err != nil {
		return fmt.Errorf("init scorecard: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.years = years
	s.yearSet = toSet(years)
	s.collegeIDs = toSet(ids)
	s.yearColumns = yearColumns
	s.globalColumns = globalColumns
	s.yearCols = columnSet(yearColumns)
	s.globalCols = columnSet(globalColumns)
	s.initialized = true

	s.logger.InfoContext(ctx, "scorecard data loaded",
		"years", len(years),
		"colleges", len(ids),
		"year_columns", len(yearColumns),
		"global_columns", len(globalColumns),
	)
	return nil
}

// Years returns the year tables in ascending order.
func (s *Service) Years() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.years)
}

// DataTypes lists year-scoped columns first, then global columns.
func (s *Service) DataTypes(ctx context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	out := make([]domain.Category, 0, len(s.yearColumns)+len(s.globalColumns))
	for _, c := range s.yearColumns {
		out = append(out, domain.Category{Name: c.Name, Type: c.Type, Scope: domain.ScopeYear})
	}
	for _, c := range s.globalColumns {
		out = append(out, domain.Category{Name: c.Name, Type: c.Type, Scope: domain.ScopeGlobal})
	}
	return out, nil
}

// LoadCategories lets the service act as the category catalog's loader.
func (s *Service) LoadCategories(ctx context.Context) ([]domain.Category, error) {
	return s.DataTypes(ctx)
}

func (s *Service) Colleges(ctx context.Context) ([]store.College, error) {
	return s.store.Colleges(ctx)
}

// CollegeGlobal returns the non-null global attributes of a college.
func (s *Service) CollegeGlobal(ctx context.Context, collegeID string) (map[string]any, error) {
	if err := s.checkCollege(collegeID); err != nil {
		return nil, err
	}
	row, err := s.store.GlobalRow(ctx, collegeID)
	if err != nil {
		return nil, translate(err, "college "+collegeID)
	}
	return row, nil
}

// CollegeYears returns the college's attributes per year in [minYear, maxYear].
// Years without a row for the college are omitted.
func (s *Service) CollegeYears(ctx context.Context, collegeID, minYear, maxYear string) (map[string]map[string]any, error) {
	years, err := s.yearRange(minYear, maxYear)
	if err != nil {
		return nil, err
	}
	if err := s.checkCollege(collegeID); err != nil {
		return nil, err
	}
	out := make(map[string]map[string]any, len(years))
	for _, y := range years {
		row, err := s.store.YearRow(ctx, y, collegeID)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("college %s year %s: %w", collegeID, y, err)
		}
		out[y] = row
	}
	return out, nil
}

// College merges every year of data with the global attributes under "global".
func (s *Service) College(ctx context.Context, collegeID string) (map[string]any, error) {
	years := s.Years()
	if len(years) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "no year data available")
	}
	byYear, err := s.CollegeYears(ctx, collegeID, years[0], years[len(years)-1])
	if err != nil {
		return nil, err
	}
	global, err := s.CollegeGlobal(ctx, collegeID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(byYear)+1)
	for y, row := range byYear {
		out[y] = row
	}
	out["global"] = global
	return out, nil
}

// DataTypeGlobal returns every non-null value of a global data type.
func (s *Service) DataTypeGlobal(ctx context.Context, name string) ([]store.Pair, error) {
	s.mu.RLock()
	_, ok := s.globalCols[name]
	s.mu.RUnlock()
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown global data type "+name)
	}
	return s.store.ColumnValues(ctx, store.GlobalTable, name)
}

// DataTypeYears returns every non-null value of a year data type per year in
// [minYear, maxYear].
func (s *Service) DataTypeYears(ctx context.Context, name, minYear, maxYear string) (map[string][]store.Pair, error) {
	years, err := s.yearRange(minYear, maxYear)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	_, ok := s.yearCols[name]
	s.mu.RUnlock()
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown year data type "+name)
	}
	out := make(map[string][]store.Pair, len(years))
	for _, y := range years {
		pairs, err := s.store.ColumnValues(ctx, y, name)
		if err != nil {
			return nil, fmt.Errorf("data type %s year %s: %w", name, y, err)
		}
		if pairs == nil {
			pairs = []store.Pair{}
		}
		out[y] = pairs
	}
	return out, nil
}

func (s *Service) checkCollege(collegeID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.collegeIDs[collegeID]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "unknown college "+collegeID)
	}
	return nil
}

// yearRange validates both bounds and returns the known years between them.
func (s *Service) yearRange(minYear, maxYear string) ([]string, error) {
	lo, err := strconv.Atoi(minYear)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown year "+minYear)
	}
	hi, err := strconv.Atoi(maxYear)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown year "+maxYear)
	}
	if lo > hi {
		return nil, dErrors.New(dErrors.CodeNotFound, "min year after max year")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.yearSet[minYear]; !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown year "+minYear)
	}
	if _, ok := s.yearSet[maxYear]; !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown year "+maxYear)
	}
	var out []string
	for _, y := range s.years {
		n, _ := strconv.Atoi(y)
		if n >= lo && n <= hi {
			out = append(out, y)
		}
	}
	return out, nil
}

func translate(err error, what string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, what+" not found")
	}
	return fmt.Errorf("%s: %w", what, err)
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}

func columnSet(cols []store.Column) map[string]struct{} {
	out := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		out[c.Name] = struct{}{}
	}
	return out
}
