package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"cscexplorer/internal/catalog"
	"cscexplorer/internal/domain"
	"cscexplorer/internal/search"
	"cscexplorer/internal/search/handler"
	"cscexplorer/internal/source"
	"cscexplorer/pkg/testutil"
)

// =============================================================================
// Search API Test Suite
// =============================================================================
// Drives the HTTP surface against a real aggregator over canned datasets.

type SearchAPISuite struct {
	suite.Suite
	router   chi.Router
	catalog  *catalog.Catalog
	datasets map[string][]domain.RawRecord
	fail     map[string]error
}

func TestSearchAPISuite(t *testing.T) {
	suite.Run(t, new(SearchAPISuite))
}

func (s *SearchAPISuite) SetupTest() {
	s.datasets = map[string][]domain.RawRecord{
		"ADM_RATE:year:2014": {
			{EntityID: "1", Value: domain.RealValue(0.05)},
			{EntityID: "2", Value: domain.RealValue(0.3)},
		},
		"INSTNM:global": {
			{EntityID: "1", Value: domain.TextValue("Acme College")},
			{EntityID: "2", Value: domain.TextValue("Beta University")},
		},
	}
	s.fail = map[string]error{}
	src := source.DataSourceFunc(func(_ context.Context, req source.FetchRequest) ([]domain.RawRecord, error) {
		if err, ok := s.fail[req.Key()]; ok {
			return nil, err
		}
		return s.datasets[req.Key()], nil
	})

	s.catalog = catalog.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	agg := search.NewAggregator(s.catalog, src,
		search.WithLogger(logger),
		search.WithDirectory(catalog.NewDirectory(map[string]catalog.Location{
			"1": {Name: "Acme College", City: "Springfield", State: "IL"},
		})),
	)

	s.router = chi.NewRouter()
	handler.New(s.catalog, search.NewSessions(agg), logger).Register(s.router)
}

func (s *SearchAPISuite) loadCatalog() {
	s.Require().NoError(s.catalog.Load(context.Background(), catalog.Static{
		{Name: "ADM_RATE", Type: domain.TypeReal, Scope: domain.ScopeYear},
		{Name: "INSTNM", Type: domain.TypeText, Scope: domain.ScopeGlobal},
	}))
}

func (s *SearchAPISuite) post(session string, body any) *http.Request {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/search", body)
	return testutil.WithSession(req, session)
}

func criteria(rows ...map[string]any) map[string]any {
	return map[string]any{"criteria": rows}
}

func (s *SearchAPISuite) TestCategories() {
	s.Run("not ready", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/categories"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, "not_ready")
	})

	s.loadCatalog()
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/categories"))
	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[handler.CategoriesResponse](s.T(), rr)
	s.Require().Len(resp.Categories, 2)
	s.Equal([]search.Comparator{search.Equal, search.GreaterThan, search.LessThan}, resp.Categories[0].Comparators)
	s.Equal([]search.Comparator{search.Equal}, resp.Categories[1].Comparators)
}

func (s *SearchAPISuite) TestSearchAndLastResults() {
	s.loadCatalog()

	rr := testutil.DoRequest(s.router, s.post("sess-1", criteria(
		map[string]any{"category": "ADM_RATE", "comparator": "Less than", "value": 0.1},
	)))
	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[handler.ResultResponse](s.T(), rr)
	s.Equal(uint64(1), resp.Generation)
	s.Equal(1, resp.Count)
	s.Require().Len(resp.Records, 1)
	s.Equal("1", resp.Records[0].CollegeID)
	s.Equal(domain.RealValue(0.05), resp.Records[0].Values["ADM_RATE"])
	s.Equal("Springfield", resp.Records[0].Location.City)
	s.NotNil(resp.CompletedAt)

	last := testutil.DoRequest(s.router, testutil.WithSession(
		testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/search/last"), "sess-1"))
	testutil.AssertStatusOK(s.T(), last)
	lastResp := testutil.UnmarshalResponse[handler.ResultResponse](s.T(), last)
	s.Equal(resp.Generation, lastResp.Generation)
	s.Equal(resp.Records, lastResp.Records)

	other := testutil.DoRequest(s.router, testutil.WithSession(
		testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/search/last"), "sess-2"))
	otherResp := testutil.UnmarshalResponse[handler.ResultResponse](s.T(), other)
	s.Zero(otherResp.Generation)
	s.Empty(otherResp.Records)
}

func (s *SearchAPISuite) TestSearchWithWarning() {
	s.loadCatalog()
	s.fail["INSTNM:global"] = source.NewFetchError(source.ErrorProviderOutage, "test", "unavailable", nil)

	rr := testutil.DoRequest(s.router, s.post("sess-1", criteria(
		map[string]any{"category": "ADM_RATE", "comparator": "LESS_THAN", "value": "0.1"},
		map[string]any{"category": "INSTNM", "comparator": "EQUAL", "value": "Acme College"},
	)))

	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[handler.ResultResponse](s.T(), rr)
	s.Empty(resp.Records)
	s.Require().Len(resp.Warnings, 1)
	s.Equal(1, resp.Warnings[0].Criterion)
	s.Equal("provider_outage", resp.Warnings[0].Reason)
}

func (s *SearchAPISuite) TestSearchErrors() {
	s.Run("catalog not loaded", func() {
		rr := testutil.DoRequest(s.router, s.post("sess-1", criteria(
			map[string]any{"category": "ADM_RATE", "comparator": "<", "value": 0.1},
		)))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, "not_ready")
	})

	s.loadCatalog()

	tests := []struct {
		name string
		body any
		code string
	}{
		{"unknown comparator", criteria(map[string]any{"category": "ADM_RATE", "comparator": "between", "value": 1}), "validation_error"},
		{"ordering on text", criteria(map[string]any{"category": "INSTNM", "comparator": ">", "value": "A"}), "validation_error"},
		{"unknown category", criteria(map[string]any{"category": "NOPE", "comparator": "=", "value": 1}), "validation_error"},
		{"bad year", criteria(map[string]any{"category": "ADM_RATE", "comparator": "=", "value": 1, "year": "14"}), "validation_error"},
		{"non scalar value", criteria(map[string]any{"category": "ADM_RATE", "comparator": "=", "value": true}), "validation_error"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rr := testutil.DoRequest(s.router, s.post("sess-1", tt.body))
			testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, tt.code)
		})
	}

	s.Run("malformed json", func() {
		req := testutil.WithSession(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/api/v1/search", "{"), "sess-1")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("missing session", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/search", criteria())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *SearchAPISuite) TestInertCriteriaYieldEmptyResult() {
	s.loadCatalog()

	rr := testutil.DoRequest(s.router, s.post("sess-1", criteria(
		map[string]any{"category": "", "comparator": "", "value": nil},
	)))

	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[handler.ResultResponse](s.T(), rr)
	s.Zero(resp.ActiveCriteria)
	s.NotNil(resp.Records)
	s.Empty(resp.Records)
}

func (s *SearchAPISuite) TestDemo() {
	s.loadCatalog()

	req := testutil.WithSession(testutil.NewRequest(s.T(), http.MethodPost, "/api/v1/search/demo"), "sess-1")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[handler.ResultResponse](s.T(), rr)
	s.Require().Len(resp.Records, 1)
	s.Equal("1", resp.Records[0].CollegeID)
}
