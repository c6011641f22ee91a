package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cscexplorer/internal/domain"
	"cscexplorer/internal/search"
	dErrors "cscexplorer/pkg/domain-errors"
	"cscexplorer/pkg/platform/httputil"
	"cscexplorer/pkg/requestcontext"
)

// Catalog exposes the category metadata to the search API.
type Catalog interface {
	search.Catalog
	List() []domain.Category
}

// Sessions resolves explorer sessions by id.
type Sessions interface {
	Get(id string) *search.Session
	Lookup(id string) (*search.Session, bool)
}

// Handler wires the search API to the aggregator sessions.
type Handler struct {
	catalog  Catalog
	sessions Sessions
	logger   *slog.Logger
}

// New constructs a search handler with its dependencies.
func New(catalog Catalog, sessions Sessions, logger *slog.Logger) *Handler {
	return &Handler{
		catalog:  catalog,
		sessions: sessions,
		logger:   logger,
	}
}

// Register mounts the search endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/categories", h.HandleCategories)
		r.Post("/search", h.HandleSearch)
		r.Post("/search/demo", h.HandleDemo)
		r.Get("/search/last", h.HandleLastResults)
	})
}

// HandleCategories handles GET /api/v1/categories.
func (h *Handler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	if !h.catalog.Ready() {
		httputil.WriteError(w, toDomainError(search.ErrNotReady))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCategoriesResponse(h.catalog.List()))
}

// HandleSearch handles POST /api/v1/search requests.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[SearchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	h.runSearch(w, r, sessionID, req.Parsed())
}

// HandleDemo handles POST /api/v1/search/demo: the sample search shown when
// the explorer first opens.
func (h *Handler) HandleDemo(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	criteria, err := search.DemoCriteria(h.catalog)
	if err != nil {
		httputil.WriteError(w, toDomainError(err))
		return
	}
	h.runSearch(w, r, sessionID, criteria)
}

// HandleLastResults handles GET /api/v1/search/last. A session that has not
// completed a search yet gets an empty result.
func (h *Handler) HandleLastResults(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	var rs search.ResultSet
	if sess, found := h.sessions.Lookup(sessionID); found {
		rs, _ = sess.LastResults()
	}
	httputil.WriteJSON(w, http.StatusOK, toResultResponse(rs))
}

func (h *Handler) runSearch(w http.ResponseWriter, r *http.Request, sessionID string, criteria []search.Criterion) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	rs, err := h.sessions.Get(sessionID).Search(ctx, criteria)
	if err != nil {
		level := slog.LevelWarn
		if dErrors.CodeOf(toDomainError(err)) == dErrors.CodeInternal {
			level = slog.LevelError
		}
		h.logger.Log(ctx, level, "search failed",
			"request_id", requestID,
			"session_id", sessionID,
			"criteria", len(criteria),
			"error", err,
		)
		httputil.WriteError(w, toDomainError(err))
		return
	}

	h.logger.InfoContext(ctx, "search completed",
		"request_id", requestID,
		"session_id", sessionID,
		"generation", rs.Generation,
		"active_criteria", rs.ActiveCriteria,
		"records", len(rs.Records),
		"warnings", len(rs.Warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, toResultResponse(rs))
}

func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := requestcontext.SessionID(r.Context())
	if sessionID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "X-Session-ID header is required"))
		return "", false
	}
	return sessionID, true
}

// toDomainError translates search errors into coded errors for the HTTP edge.
func toDomainError(err error) error {
	switch {
	case errors.Is(err, search.ErrNotReady):
		return dErrors.Wrap(err, dErrors.CodeNotReady, "category metadata is still loading")
	case errors.Is(err, search.ErrInvalidCriterion):
		return dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
	case errors.Is(err, search.ErrSuperseded):
		return dErrors.Wrap(err, dErrors.CodeConflict, "search superseded by a newer search in this session")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "search canceled")
	default:
		return err
	}
}
