// Package httpsource fetches category datasets and metadata from the
// Scorecard data API over HTTP.
package httpsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"cscexplorer/internal/domain"
	"cscexplorer/internal/source"
	"cscexplorer/pkg/platform/circuit"
	"cscexplorer/pkg/platform/sentinel"
)

const (
	sourceName      = "scorecard-http"
	maxResponseSize = 64 << 20
)

// Client is a source.DataSource backed by the Scorecard data API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithRateLimit bounds outbound requests to rps with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the API rooted at baseURL, e.g.
// http://host/cscvis/api/v2.0/data.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: circuit.New(sourceName),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DatasetURL returns the endpoint serving the dataset for req.
func (c *Client) DatasetURL(req source.FetchRequest) string {
	name := url.PathEscape(req.Category)
	if req.Scope == domain.ScopeYear {
		return fmt.Sprintf("%s/data_types/%s/year/%s", c.baseURL, name, url.PathEscape(req.Year))
	}
	return fmt.Sprintf("%s/data_types/%s/global", c.baseURL, name)
}

// Fetch implements source.DataSource.
func (c *Client) Fetch(ctx context.Context, req source.FetchRequest) ([]domain.RawRecord, error) {
	if req.Scope == domain.ScopeYear && req.Year == "" {
		return nil, source.NewFetchError(source.ErrorInternal, sourceName, "year is required for year-scoped category "+req.Category, nil)
	}
	body, err := c.get(ctx, c.DatasetURL(req))
	if err != nil {
		return nil, err
	}
	records, err := DecodeDataset(body)
	if err != nil {
		return nil, source.NewFetchError(source.ErrorBadData, sourceName, "decode dataset "+req.Category, err)
	}
	return records, nil
}

type dataTypesResponse struct {
	DataType []struct {
		Name  string `json:"name"`
		Type  string `json:"type"`
		Scope string `json:"scope"`
	} `json:"data_type"`
}

// LoadCategories fetches the category metadata. Entries with an unknown type
// or scope are skipped.
func (c *Client) LoadCategories(ctx context.Context) ([]domain.Category, error) {
	body, err := c.get(ctx, c.baseURL+"/data_types")
	if err != nil {
		return nil, err
	}
	var resp dataTypesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, source.NewFetchError(source.ErrorBadData, sourceName, "decode data types", err)
	}
	out := make([]domain.Category, 0, len(resp.DataType))
	for _, dt := range resp.DataType {
		vt, err := domain.ParseValueType(dt.Type)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping data type", "name", dt.Name, "error", err)
			continue
		}
		scope, err := domain.ParseScope(dt.Scope)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping data type", "name", dt.Name, "error", err)
			continue
		}
		out = append(out, domain.Category{Name: dt.Name, Type: vt, Scope: scope})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		return nil, source.NewFetchError(source.ErrorProviderOutage, sourceName, "circuit open", sentinel.ErrUnavailable)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, source.NewFetchError(source.ErrorTimeout, sourceName, "waiting for rate limiter", err)
			}
			return nil, source.NewFetchError(source.ErrorRateLimited, sourceName, "rate limit exceeded", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, source.NewFetchError(source.ErrorInternal, sourceName, "build request", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if callerCanceled(ctx, err) {
			return nil, source.NewFetchError(source.ErrorInternal, sourceName, "request canceled", err)
		}
		c.recordFailure(ctx)
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, source.NewFetchError(source.ErrorTimeout, sourceName, "request timed out", err)
		}
		return nil, source.NewFetchError(source.ErrorProviderOutage, sourceName, "request failed", err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "scorecard api response",
		"url", target,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.recordSuccess(ctx)
		return nil, source.NewFetchError(source.ErrorNotFound, sourceName, "no such dataset: "+target, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, source.NewFetchError(source.ErrorRateLimited, sourceName, "rate limited by upstream", nil)
	case resp.StatusCode >= 500:
		c.recordFailure(ctx)
		return nil, source.NewFetchError(source.ErrorProviderOutage, sourceName, fmt.Sprintf("upstream status %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, source.NewFetchError(source.ErrorInternal, sourceName, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if !callerCanceled(ctx, err) {
			c.recordFailure(ctx)
		}
		return nil, source.NewFetchError(source.ErrorProviderOutage, sourceName, "read body", err)
	}
	c.recordSuccess(ctx)
	return body, nil
}

func (c *Client) recordFailure(ctx context.Context) {
	if c.breaker == nil {
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "circuit breaker opened", "breaker", c.breaker.Name())
	}
}

func (c *Client) recordSuccess(ctx context.Context) {
	if c.breaker == nil {
		return
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "circuit breaker closed", "breaker", c.breaker.Name())
	}
}

// callerCanceled reports whether err comes from the caller abandoning the
// request. Those say nothing about upstream health and never reach the breaker.
func callerCanceled(ctx context.Context, err error) bool {
	return errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

type wireRecord struct {
	CollegeID any `json:"college_id"`
	Value     any `json:"value"`
}

// DecodeDataset flattens any JSON object whose members are arrays of
// {college_id, value} objects. Members are read in key order, so a year range
// response yields the earliest year first. Non-array members are ignored.
// Records are returned as-is; the evaluator drops malformed ones.
func DecodeDataset(body []byte) ([]domain.RawRecord, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(body, &members); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(members))
	for k := range members {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var out []domain.RawRecord
	for _, k := range keys {
		raw := members[k]
		if len(raw) == 0 || raw[0] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(string(raw)))
		dec.UseNumber()
		var items []wireRecord
		if err := dec.Decode(&items); err != nil {
			return nil, fmt.Errorf("member %q: %w", k, err)
		}
		for _, it := range items {
			id, _ := domain.EntityIDFromWire(it.CollegeID)
			v, _ := domain.FromWire(it.Value)
			out = append(out, domain.RawRecord{EntityID: id, Value: v})
		}
	}
	return out, nil
}
