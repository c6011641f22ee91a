package httpsource

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"cscexplorer/internal/domain"
	"cscexplorer/internal/source"
	"cscexplorer/pkg/platform/circuit"
	"cscexplorer/pkg/platform/sentinel"
)

type ClientSuite struct {
	suite.Suite
	mux    *http.ServeMux
	server *httptest.Server
	client *Client
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.mux = http.NewServeMux()
	s.server = httptest.NewServer(s.mux)
	s.client = New(s.server.URL+"/cscvis/api/v2.0/data/",
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))),
	)
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientSuite) TestDatasetURL() {
	base := s.server.URL + "/cscvis/api/v2.0/data"
	s.Equal(base+"/data_types/ADM_RATE/year/2014",
		s.client.DatasetURL(source.FetchRequest{Category: "ADM_RATE", Scope: domain.ScopeYear, Year: "2014"}))
	s.Equal(base+"/data_types/INSTNM/global",
		s.client.DatasetURL(source.FetchRequest{Category: "INSTNM", Scope: domain.ScopeGlobal}))
}

func (s *ClientSuite) TestFetchGlobal() {
	s.mux.HandleFunc("/cscvis/api/v2.0/data/data_types/INSTNM/global", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"Global":[{"college_id":1,"value":"Acme"},{"college_id":2,"value":"Beta"}]}`)
	})

	records, err := s.client.Fetch(context.Background(), source.FetchRequest{Category: "INSTNM", Scope: domain.ScopeGlobal})
	s.Require().NoError(err)
	s.Equal([]domain.RawRecord{
		{EntityID: "1", Value: domain.TextValue("Acme")},
		{EntityID: "2", Value: domain.TextValue("Beta")},
	}, records)
}

func (s *ClientSuite) TestFetchYear() {
	s.mux.HandleFunc("/cscvis/api/v2.0/data/data_types/ADM_RATE/year/2014", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"2014":[{"college_id":1,"value":0.05},{"college_id":2,"value":0.3}]}`)
	})

	records, err := s.client.Fetch(context.Background(), source.FetchRequest{Category: "ADM_RATE", Scope: domain.ScopeYear, Year: "2014"})
	s.Require().NoError(err)
	s.Equal([]domain.RawRecord{
		{EntityID: "1", Value: domain.RealValue(0.05)},
		{EntityID: "2", Value: domain.RealValue(0.3)},
	}, records)
}

func (s *ClientSuite) TestFetchYearRequiresYear() {
	_, err := s.client.Fetch(context.Background(), source.FetchRequest{Category: "ADM_RATE", Scope: domain.ScopeYear})
	s.Equal(source.ErrorInternal, source.GetCategory(err))
}

func (s *ClientSuite) TestFetchNotFound() {
	_, err := s.client.Fetch(context.Background(), source.FetchRequest{Category: "NOPE", Scope: domain.ScopeGlobal})
	s.Require().Error(err)
	s.Equal(source.ErrorNotFound, source.GetCategory(err))
	s.False(source.IsRetryable(err))
}

func (s *ClientSuite) TestFetchBadData() {
	s.mux.HandleFunc("/cscvis/api/v2.0/data/data_types/X/global", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"Global":`)
	})

	_, err := s.client.Fetch(context.Background(), source.FetchRequest{Category: "X", Scope: domain.ScopeGlobal})
	s.Equal(source.ErrorBadData, source.GetCategory(err))
}

func (s *ClientSuite) TestRateLimitedUpstream() {
	s.mux.HandleFunc("/cscvis/api/v2.0/data/data_types/X/global", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := s.client.Fetch(context.Background(), source.FetchRequest{Category: "X", Scope: domain.ScopeGlobal})
	s.Equal(source.ErrorRateLimited, source.GetCategory(err))
	s.True(source.IsRetryable(err))
}

func (s *ClientSuite) TestBreakerOpensOnRepeatedOutage() {
	var calls atomic.Int32
	s.mux.HandleFunc("/cscvis/api/v2.0/data/data_types/X/global", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	req := source.FetchRequest{Category: "X", Scope: domain.ScopeGlobal}

	for range 2 {
		_, err := s.client.Fetch(context.Background(), req)
		s.Equal(source.ErrorProviderOutage, source.GetCategory(err))
	}

	_, err := s.client.Fetch(context.Background(), req)
	s.Require().Error(err)
	s.Contains(err.Error(), "circuit open")
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.Equal(int32(2), calls.Load(), "open breaker must not reach upstream")
}

func (s *ClientSuite) TestCanceledRequestsDoNotTripBreaker() {
	var slow atomic.Bool
	slow.Store(true)
	s.mux.HandleFunc("/cscvis/api/v2.0/data/data_types/X/global", func(w http.ResponseWriter, r *http.Request) {
		if slow.Load() {
			<-r.Context().Done()
			return
		}
		_, _ = io.WriteString(w, `{"Global":[{"college_id":1,"value":1}]}`)
	})
	req := source.FetchRequest{Category: "X", Scope: domain.ScopeGlobal}

	for range 3 {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)
		_, err := s.client.Fetch(ctx, req)
		s.Require().Error(err)
		s.NotEqual(source.ErrorProviderOutage, source.GetCategory(err))
		cancel()
	}
	s.False(s.client.breaker.IsOpen())

	slow.Store(false)
	records, err := s.client.Fetch(context.Background(), req)
	s.Require().NoError(err)
	s.Len(records, 1)
}

func (s *ClientSuite) TestLoadCategories() {
	s.mux.HandleFunc("/cscvis/api/v2.0/data/data_types", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data_type":[
			{"name":"college_id","type":"INTEGER","scope":"year"},
			{"name":"ADM_RATE","type":"REAL","scope":"year"},
			{"name":"INSTNM","type":"TEXT","scope":"global"},
			{"name":"BLOBBY","type":"BLOB","scope":"global"}
		]}`)
	})

	cats, err := s.client.LoadCategories(context.Background())
	s.Require().NoError(err)
	s.Equal([]domain.Category{
		{Name: "college_id", Type: domain.TypeInteger, Scope: domain.ScopeYear},
		{Name: "ADM_RATE", Type: domain.TypeReal, Scope: domain.ScopeYear},
		{Name: "INSTNM", Type: domain.TypeText, Scope: domain.ScopeGlobal},
	}, cats)
}

func TestDecodeDataset(t *testing.T) {
	t.Run("members concatenated in key order", func(t *testing.T) {
		body := `{"2014":[{"college_id":"1","value":2}],"2013":[{"college_id":"1","value":1}],"note":"ignored"}`
		records, err := DecodeDataset([]byte(body))
		require.NoError(t, err)
		assert.Equal(t, []domain.RawRecord{
			{EntityID: "1", Value: domain.IntValue(1)},
			{EntityID: "1", Value: domain.IntValue(2)},
		}, records)
	})

	t.Run("malformed items are passed through for the evaluator to skip", func(t *testing.T) {
		records, err := DecodeDataset([]byte(`{"Global":[{"value":3},{"college_id":5}]}`))
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Empty(t, records[0].EntityID)
		assert.True(t, records[1].Value.IsZero())
	})

	t.Run("non-object body", func(t *testing.T) {
		_, err := DecodeDataset([]byte(`[1,2]`))
		assert.Error(t, err)
	})
}

func TestRateLimiterHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"Global":[]}`)
	}))
	defer srv.Close()

	c := New(srv.URL, WithRateLimit(0.001, 1))
	req := source.FetchRequest{Category: "X", Scope: domain.ScopeGlobal}

	_, err := c.Fetch(context.Background(), req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Fetch(ctx, req)
	require.Error(t, err)
	assert.NotEqual(t, source.ErrorProviderOutage, source.GetCategory(err))
}
