package handler

import (
	"time"

	"cscexplorer/internal/catalog"
	"cscexplorer/internal/domain"
	"cscexplorer/internal/search"
)

// CategoryResponse describes one searchable category and the comparators its
// type allows.
type CategoryResponse struct {
	Name        string              `json:"name"`
	Type        domain.ValueType    `json:"type"`
	Scope       domain.Scope        `json:"scope"`
	Comparators []search.Comparator `json:"comparators"`
}

type CategoriesResponse struct {
	Categories []CategoryResponse `json:"categories"`
}

// RecordResponse is one college matching every criterion.
type RecordResponse struct {
	CollegeID string                  `json:"college_id"`
	Values    map[string]domain.Value `json:"values"`
	Location  *catalog.Location       `json:"location,omitempty"`
}

type WarningResponse struct {
	Criterion int    `json:"criterion"`
	Category  string `json:"category"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
}

// ResultResponse is the body of a search or last-results response.
type ResultResponse struct {
	Generation     uint64            `json:"generation"`
	ActiveCriteria int               `json:"active_criteria"`
	Count          int               `json:"count"`
	Records        []RecordResponse  `json:"records"`
	Warnings       []WarningResponse `json:"warnings"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

func toCategoriesResponse(cats []domain.Category) CategoriesResponse {
	out := CategoriesResponse{Categories: make([]CategoryResponse, 0, len(cats))}
	for _, c := range cats {
		out.Categories = append(out.Categories, CategoryResponse{
			Name:        c.Name,
			Type:        c.Type,
			Scope:       c.Scope,
			Comparators: search.AllowedComparators(c.Type),
		})
	}
	return out
}

func toResultResponse(rs search.ResultSet) ResultResponse {
	out := ResultResponse{
		Generation:     rs.Generation,
		ActiveCriteria: rs.ActiveCriteria,
		Count:          len(rs.Records),
		Records:        make([]RecordResponse, 0, len(rs.Records)),
		Warnings:       make([]WarningResponse, 0, len(rs.Warnings)),
	}
	for _, rec := range rs.Records {
		out.Records = append(out.Records, RecordResponse{
			CollegeID: rec.EntityID,
			Values:    rec.Values,
			Location:  rec.Location,
		})
	}
	for _, w := range rs.Warnings {
		out.Warnings = append(out.Warnings, WarningResponse{
			Criterion: w.CriterionIndex,
			Category:  w.Category,
			Reason:    w.Reason,
			Message:   w.Message,
		})
	}
	if !rs.CompletedAt.IsZero() {
		completed := rs.CompletedAt.UTC()
		out.CompletedAt = &completed
	}
	return out
}
