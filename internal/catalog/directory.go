package catalog

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"cscexplorer/internal/domain"
	"cscexplorer/internal/source"
)

// Global categories the directory is built from.
const (
	NameField  = "INSTNM"
	CityField  = "CITY"
	StateField = "STABBR"
)

// Location is the display information attached to every search result.
type Location struct {
	Name  string `json:"name,omitempty"`
	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`
}

// Directory maps college ids to their Location. It is immutable once built.
type Directory struct {
	entries map[string]Location
}

// LoadDirectory fetches the name, city and state datasets concurrently.
func LoadDirectory(ctx context.Context, src source.DataSource) (*Directory, error) {
	fields := []string{NameField, CityField, StateField}
	datasets := make([][]domain.RawRecord, len(fields))

	g, gctx := errgroup.WithContext(ctx)
	for i, field := range fields {
		g.Go(func() error {
			records, err := src.Fetch(gctx, source.FetchRequest{Category: field, Scope: domain.ScopeGlobal})
			if err != nil {
				return fmt.Errorf("load %s: %w", field, err)
			}
			datasets[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := &Directory{entries: make(map[string]Location)}
	for i, field := range fields {
		for _, rec := range datasets[i] {
			if rec.EntityID == "" || rec.Value.IsZero() {
				continue
			}
			loc := d.entries[rec.EntityID]
			switch field {
			case NameField:
				loc.Name = rec.Value.String()
			case CityField:
				loc.City = rec.Value.String()
			case StateField:
				loc.State = rec.Value.String()
			}
			d.entries[rec.EntityID] = loc
		}
	}
	return d, nil
}

// NewDirectory builds a Directory from known entries.
func NewDirectory(entries map[string]Location) *Directory {
	d := &Directory{entries: make(map[string]Location, len(entries))}
	for id, loc := range entries {
		d.entries[id] = loc
	}
	return d
}

// Lookup is safe on a nil Directory.
func (d *Directory) Lookup(id string) (Location, bool) {
	if d == nil {
		return Location{}, false
	}
	loc, ok := d.entries[id]
	return loc, ok
}

func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}
