package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"cscexplorer/internal/catalog"
	"cscexplorer/internal/domain"
	"cscexplorer/internal/search/metrics"
	"cscexplorer/internal/source"
)

const (
	defaultDataYear     = "2014"
	defaultFetchTimeout = 15 * time.Second
	tracerName          = "cscexplorer/internal/search"
)

// Catalog is the category metadata the aggregator resolves criteria against.
type Catalog interface {
	Ready() bool
	Get(name string) (domain.Category, bool)
}

// Aggregator runs searches: it fetches and evaluates every active criterion
// concurrently, waits for all of them, and joins the match sets.
type Aggregator struct {
	catalog        Catalog
	source         source.DataSource
	directory      *catalog.Directory
	dataYear       string
	fetchTimeout   time.Duration
	maxConcurrency int
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	now            func() time.Time
}

type Option func(*Aggregator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

// WithDirectory attaches college name and location to result records.
func WithDirectory(d *catalog.Directory) Option {
	return func(a *Aggregator) {
		a.directory = d
	}
}

// WithDataYear sets the year used for year-scoped categories when a
// criterion does not name one.
func WithDataYear(year string) Option {
	return func(a *Aggregator) {
		if year != "" {
			a.dataYear = year
		}
	}
}

// WithFetchTimeout bounds each dataset fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		a.fetchTimeout = d
	}
}

// WithMaxConcurrency caps concurrent fetches per search. Zero means one
// goroutine per criterion.
func WithMaxConcurrency(n int) Option {
	return func(a *Aggregator) {
		a.maxConcurrency = n
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(a *Aggregator) {
		if t != nil {
			a.tracer = t
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAggregator(cat Catalog, src source.DataSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		catalog:      cat,
		source:       src,
		dataYear:     defaultDataYear,
		fetchTimeout: defaultFetchTimeout,
		logger:       slog.Default(),
		tracer:       otel.Tracer(tracerName),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// plannedFetch is an active criterion resolved against the catalog.
type plannedFetch struct {
	criterion Criterion
	request   source.FetchRequest
}

type outcome struct {
	matches MatchSet
	warning *Warning
}

// Search evaluates criteria and returns the entities satisfying every active
// criterion. A failed fetch yields a warning and an empty match set for that
// criterion. Cancellation of ctx aborts the search with ctx.Err().
func (a *Aggregator) Search(ctx context.Context, criteria []Criterion) (ResultSet, error) {
	ctx, span := a.tracer.Start(ctx, "search.Aggregator.Search",
		trace.WithAttributes(attribute.Int("criteria.total", len(criteria))),
	)
	defer span.End()
	start := a.now()

	if !a.catalog.Ready() {
		span.SetStatus(codes.Error, "catalog not ready")
		return ResultSet{}, ErrNotReady
	}

	active := ActiveCriteria(criteria)
	span.SetAttributes(attribute.Int("criteria.active", len(active)))
	if len(active) == 0 {
		return ResultSet{Records: []ResultRecord{}, CompletedAt: a.now()}, nil
	}

	plans, err := a.plan(active)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid criteria")
		return ResultSet{}, err
	}

	span.AddEvent("dispatching")
	a.logger.DebugContext(ctx, "search dispatching", "criteria", len(plans))
	outcomes := make([]outcome, len(plans))
	var g errgroup.Group
	if a.maxConcurrency > 0 {
		g.SetLimit(a.maxConcurrency)
	}
	for i, p := range plans {
		g.Go(func() error {
			outcomes[i] = a.fetchAndEvaluate(ctx, p)
			return nil
		})
	}

	span.AddEvent("awaiting_all")
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search canceled")
		return ResultSet{}, err
	}

	span.AddEvent("joining")
	sets := make([]MatchSet, len(outcomes))
	var warnings []Warning
	for i, o := range outcomes {
		sets[i] = o.matches
		if o.warning != nil {
			warnings = append(warnings, *o.warning)
		}
	}
	records := BuildRecords(Join(sets), len(plans), a.directory)

	elapsed := a.now().Sub(start)
	a.metrics.ObserveSearch(elapsed, len(records))
	span.SetAttributes(
		attribute.Int("result.records", len(records)),
		attribute.Int("result.warnings", len(warnings)),
	)
	span.SetStatus(codes.Ok, "complete")
	a.logger.DebugContext(ctx, "search complete",
		"criteria", len(plans),
		"records", len(records),
		"warnings", len(warnings),
		"duration_ms", elapsed.Milliseconds(),
	)

	return ResultSet{
		ActiveCriteria: len(plans),
		Records:        records,
		Warnings:       warnings,
		CompletedAt:    a.now(),
	}, nil
}

// plan resolves every active criterion before anything is fetched, so an
// invalid criterion never triggers a fetch.
func (a *Aggregator) plan(active []Criterion) ([]plannedFetch, error) {
	plans := make([]plannedFetch, 0, len(active))
	for _, c := range active {
		cat, ok := a.catalog.Get(c.Category.Name)
		if !ok {
			return nil, fmt.Errorf("%w: criterion %d: unknown category %q", ErrInvalidCriterion, c.Index, c.Category.Name)
		}
		if !Allowed(cat.Type, c.Comparator) {
			return nil, fmt.Errorf("%w: criterion %d: comparator %q not allowed for %s category %s",
				ErrInvalidCriterion, c.Index, c.Comparator, cat.Type, cat.Name)
		}
		value, ok := domain.Coerce(cat.Type, c.Value)
		if !ok {
			return nil, fmt.Errorf("%w: criterion %d: value %q is not a valid %s", ErrInvalidCriterion, c.Index, c.Value.String(), cat.Type)
		}

		req := source.FetchRequest{Category: cat.Name, Scope: cat.Scope}
		if cat.Scope == domain.ScopeYear {
			req.Year = cmp.Or(c.Year, a.dataYear)
		}
		resolved := c
		resolved.Category = &cat
		resolved.Value = value
		plans = append(plans, plannedFetch{criterion: resolved, request: req})
	}
	return plans, nil
}

func (a *Aggregator) fetchAndEvaluate(ctx context.Context, p plannedFetch) outcome {
	ctx, span := a.tracer.Start(ctx, "search.Aggregator.fetch",
		trace.WithAttributes(
			attribute.String("category", p.request.Category),
			attribute.String("scope", string(p.request.Scope)),
			attribute.Int("criterion.index", p.criterion.Index),
		),
	)
	defer span.End()

	fetchCtx := ctx
	if a.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, a.fetchTimeout)
		defer cancel()
	}

	start := time.Now()
	records, err := a.source.Fetch(fetchCtx, p.request)
	a.metrics.ObserveFetchLatency(p.request.Category, time.Since(start))
	if err != nil {
		reason := string(source.GetCategory(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		if ctx.Err() == nil {
			a.metrics.IncrementFetchFailure(p.request.Category, reason)
			a.logger.WarnContext(ctx, "criterion fetch failed",
				"criterion", p.criterion.Index,
				"category", p.request.Category,
				"reason", reason,
				"error", err,
			)
		}
		return outcome{
			matches: MatchSet{},
			warning: &Warning{
				CriterionIndex: p.criterion.Index,
				Category:       p.request.Category,
				Reason:         reason,
				Message:        err.Error(),
			},
		}
	}

	matches := Evaluate(p.criterion, records)
	span.SetAttributes(
		attribute.Int("dataset.records", len(records)),
		attribute.Int("matches", len(matches)),
	)
	return outcome{matches: matches}
}

// ActiveCriteria filters out inert criteria, keeping list order.
func ActiveCriteria(criteria []Criterion) []Criterion {
	out := make([]Criterion, 0, len(criteria))
	for _, c := range criteria {
		if c.Active() {
			out = append(out, c)
		}
	}
	return out
}

// Join merges match sets in the given order, appending each entity's match
// to its accumulated list.
func Join(sets []MatchSet) AggregatedResult {
	agg := AggregatedResult{}
	for _, set := range sets {
		for id, m := range set {
			agg[id] = append(agg[id], m)
		}
	}
	return agg
}

// BuildRecords emits one record per entity matched by exactly required
// criteria, i.e. by every one of them. Values are keyed by category name; a
// category repeated across criteria keeps the value merged last. Records are
// ordered by entity id.
func BuildRecords(agg AggregatedResult, required int, dir *catalog.Directory) []ResultRecord {
	records := []ResultRecord{}
	if required <= 0 {
		return records
	}
	for id, matches := range agg {
		if len(matches) != required {
			continue
		}
		rec := ResultRecord{EntityID: id, Values: make(map[string]domain.Value, len(matches))}
		for _, m := range matches {
			rec.Values[m.Category] = m.Value
		}
		if loc, ok := dir.Lookup(id); ok {
			rec.Location = &loc
		}
		records = append(records, rec)
	}
	slices.SortFunc(records, func(x, y ResultRecord) int {
		return compareEntityIDs(x.EntityID, y.EntityID)
	})
	return records
}

// compareEntityIDs orders numeric ids numerically and everything else lexically.
func compareEntityIDs(a, b string) int {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(x, y)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}
