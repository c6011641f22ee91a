package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"cscexplorer/internal/domain"
	"cscexplorer/internal/scorecard/store"
	dErrors "cscexplorer/pkg/domain-errors"
	"cscexplorer/pkg/platform/httputil"
	"cscexplorer/pkg/requestcontext"
)

// BasePath is where the data API is mounted.
const BasePath = "/cscvis/api/v2.0/data"

// Service defines the scorecard queries the handler needs.
type Service interface {
	Colleges(ctx context.Context) ([]store.College, error)
	College(ctx context.Context, collegeID string) (map[string]any, error)
	CollegeGlobal(ctx context.Context, collegeID string) (map[string]any, error)
	CollegeYears(ctx context.Context, collegeID, minYear, maxYear string) (map[string]map[string]any, error)
	DataTypes(ctx context.Context) ([]domain.Category, error)
	DataTypeGlobal(ctx context.Context, name string) ([]store.Pair, error)
	DataTypeYears(ctx context.Context, name, minYear, maxYear string) (map[string][]store.Pair, error)
}

// Handler exposes the Scorecard data API.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the data API on r. Year ranges use the path form
// year&min={min}&max={max}, so they are matched by the catch-all segment.
func (h *Handler) Register(r chi.Router) {
	r.Route(BasePath, func(r chi.Router) {
		r.Get("/colleges", h.HandleColleges)
		r.Get("/colleges/{id}", h.HandleCollege)
		r.Get("/colleges/{id}/global", h.HandleCollegeGlobal)
		r.Get("/colleges/{id}/year/{year}", h.HandleCollegeYear)
		r.Get("/colleges/{id}/{range}", h.HandleCollegeYearRange)
		r.Get("/data_types", h.HandleDataTypes)
		r.Get("/data_types/{name}/global", h.HandleDataTypeGlobal)
		r.Get("/data_types/{name}/year/{year}", h.HandleDataTypeYear)
		r.Get("/data_types/{name}/{range}", h.HandleDataTypeYearRange)
	})
}

// HandleColleges handles GET /colleges.
func (h *Handler) HandleColleges(w http.ResponseWriter, r *http.Request) {
	colleges, err := h.service.Colleges(r.Context())
	if err != nil {
		h.fail(w, r, "list colleges failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCollegesResponse(colleges))
}

// HandleCollege handles GET /colleges/{id}.
func (h *Handler) HandleCollege(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.College(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get college failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data)
}

// HandleCollegeGlobal handles GET /colleges/{id}/global.
func (h *Handler) HandleCollegeGlobal(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.CollegeGlobal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get college global data failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"global": data})
}

// HandleCollegeYear handles GET /colleges/{id}/year/{year}.
func (h *Handler) HandleCollegeYear(w http.ResponseWriter, r *http.Request) {
	year := chi.URLParam(r, "year")
	h.writeCollegeYears(w, r, year, year)
}

// HandleCollegeYearRange handles GET /colleges/{id}/year&min={min}&max={max}.
func (h *Handler) HandleCollegeYearRange(w http.ResponseWriter, r *http.Request) {
	minYear, maxYear, ok := ParseYearRange(chi.URLParam(r, "range"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no such resource"))
		return
	}
	h.writeCollegeYears(w, r, minYear, maxYear)
}

func (h *Handler) writeCollegeYears(w http.ResponseWriter, r *http.Request, minYear, maxYear string) {
	data, err := h.service.CollegeYears(r.Context(), chi.URLParam(r, "id"), minYear, maxYear)
	if err != nil {
		h.fail(w, r, "get college year data failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data)
}

// HandleDataTypes handles GET /data_types.
func (h *Handler) HandleDataTypes(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.DataTypes(r.Context())
	if err != nil {
		h.fail(w, r, "list data types failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDataTypesResponse(cats))
}

// HandleDataTypeGlobal handles GET /data_types/{name}/global.
func (h *Handler) HandleDataTypeGlobal(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.service.DataTypeGlobal(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, r, "get global data type failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"Global": toValues(pairs)})
}

// HandleDataTypeYear handles GET /data_types/{name}/year/{year}.
func (h *Handler) HandleDataTypeYear(w http.ResponseWriter, r *http.Request) {
	year := chi.URLParam(r, "year")
	h.writeDataTypeYears(w, r, year, year)
}

// HandleDataTypeYearRange handles GET /data_types/{name}/year&min={min}&max={max}.
func (h *Handler) HandleDataTypeYearRange(w http.ResponseWriter, r *http.Request) {
	minYear, maxYear, ok := ParseYearRange(chi.URLParam(r, "range"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no such resource"))
		return
	}
	h.writeDataTypeYears(w, r, minYear, maxYear)
}

func (h *Handler) writeDataTypeYears(w http.ResponseWriter, r *http.Request, minYear, maxYear string) {
	byYear, err := h.service.DataTypeYears(r.Context(), chi.URLParam(r, "name"), minYear, maxYear)
	if err != nil {
		h.fail(w, r, "get year data type failed", err)
		return
	}
	out := make(map[string][]ValueResponse, len(byYear))
	for y, pairs := range byYear {
		out[y] = toValues(pairs)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		h.logger.DebugContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "path", r.URL.Path, "error", err)
	} else {
		h.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "path", r.URL.Path, "error", err)
	}
	httputil.WriteError(w, err)
}

// ParseYearRange parses the "year&min=2013&max=2014" path segment.
func ParseYearRange(segment string) (minYear, maxYear string, ok bool) {
	rest, found := strings.CutPrefix(segment, "year&")
	if !found {
		return "", "", false
	}
	q, err := url.ParseQuery(rest)
	if err != nil {
		return "", "", false
	}
	minYear, maxYear = q.Get("min"), q.Get("max")
	return minYear, maxYear, minYear != "" && maxYear != ""
}
