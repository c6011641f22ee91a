package adapters

import (
	"context"
	"fmt"

	"cscexplorer/internal/domain"
	"cscexplorer/internal/scorecard/store"
	"cscexplorer/internal/source"
	dErrors "cscexplorer/pkg/domain-errors"
)

const scorecardSourceName = "scorecard-local"

// ScorecardService is the part of the scorecard data service the search
// needs: dataset reads for global and year-scoped data types.
type ScorecardService interface {
	DataTypeGlobal(ctx context.Context, name string) ([]store.Pair, error)
	DataTypeYears(ctx context.Context, name, minYear, maxYear string) (map[string][]store.Pair, error)
}

// ScorecardSource is an in-process DataSource that reads datasets straight
// from the scorecard service, skipping the HTTP hop when search and data API
// run in the same process.
type ScorecardSource struct {
	service ScorecardService
}

func NewScorecardSource(service ScorecardService) *ScorecardSource {
	return &ScorecardSource{service: service}
}

// Fetch returns one record per non-null value of the requested data type.
func (a *ScorecardSource) Fetch(ctx context.Context, req source.FetchRequest) ([]domain.RawRecord, error) {
	var (
		pairs []store.Pair
		err   error
	)
	switch req.Scope {
	case domain.ScopeGlobal:
		pairs, err = a.service.DataTypeGlobal(ctx, req.Category)
	case domain.ScopeYear:
		if req.Year == "" {
			return nil, source.NewFetchError(source.ErrorBadData, scorecardSourceName, "year-scoped request without year", nil)
		}
		var byYear map[string][]store.Pair
		byYear, err = a.service.DataTypeYears(ctx, req.Category, req.Year, req.Year)
		pairs = byYear[req.Year]
	default:
		return nil, source.NewFetchError(source.ErrorBadData, scorecardSourceName, fmt.Sprintf("unknown scope %q", req.Scope), nil)
	}
	if err != nil {
		return nil, classify(ctx, req, err)
	}

	records := make([]domain.RawRecord, 0, len(pairs))
	for _, p := range pairs {
		id, ok := domain.EntityIDFromWire(p.CollegeID)
		if !ok {
			continue
		}
		v, ok := domain.FromWire(p.Value)
		if !ok {
			continue
		}
		records = append(records, domain.RawRecord{EntityID: id, Value: v})
	}
	return records, nil
}

func classify(ctx context.Context, req source.FetchRequest, err error) error {
	msg := "fetch " + req.Key()
	switch {
	case ctx.Err() != nil:
		return source.NewFetchError(source.ErrorTimeout, scorecardSourceName, msg, err)
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		return source.NewFetchError(source.ErrorNotFound, scorecardSourceName, msg, err)
	default:
		return source.NewFetchError(source.ErrorInternal, scorecardSourceName, msg, err)
	}
}
