// Package catalog holds the category metadata shared read-only by every search.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cscexplorer/internal/domain"
)

var ErrAlreadyLoaded = errors.New("catalog already loaded")

// Loader supplies the category metadata.
type Loader interface {
	LoadCategories(ctx context.Context) ([]domain.Category, error)
}

// Catalog is populated once and read-only afterwards.
type Catalog struct {
	loadMu  sync.Mutex
	mu      sync.RWMutex
	byName  map[string]domain.Category
	ordered []domain.Category
	ready   chan struct{}
}

func New() *Catalog {
	return &Catalog{ready: make(chan struct{})}
}

// Load populates the catalog from loader. The college id sentinel is dropped
// and the first occurrence of a duplicated name wins. A second Load fails
// with ErrAlreadyLoaded.
func (c *Catalog) Load(ctx context.Context, loader Loader) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if c.Ready() {
		return ErrAlreadyLoaded
	}

	cats, err := loader.LoadCategories(ctx)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}

	byName := make(map[string]domain.Category, len(cats))
	ordered := make([]domain.Category, 0, len(cats))
	for _, cat := range cats {
		if cat.Name == "" || cat.Name == domain.EntityIDField {
			continue
		}
		if _, dup := byName[cat.Name]; dup {
			continue
		}
		byName[cat.Name] = cat
		ordered = append(ordered, cat)
	}

	c.mu.Lock()
	c.byName = byName
	c.ordered = ordered
	c.mu.Unlock()
	close(c.ready)
	return nil
}

// LoadWithRetry calls Load until it succeeds or ctx is done, doubling the
// wait between attempts up to maxWait.
func (c *Catalog) LoadWithRetry(ctx context.Context, loader Loader, initialWait, maxWait time.Duration, logger *slog.Logger) error {
	wait := initialWait
	for attempt := 1; ; attempt++ {
		err := c.Load(ctx, loader)
		if err == nil || errors.Is(err, ErrAlreadyLoaded) {
			return nil
		}
		if logger != nil {
			logger.WarnContext(ctx, "category catalog load failed",
				"attempt", attempt,
				"retry_in", wait,
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, maxWait)
	}
}

// Ready reports whether Load has completed.
func (c *Catalog) Ready() bool {
	select {
	case <-c.ready:
		return true
	default:
		return false
	}
}

// WaitReady blocks until the catalog is loaded or ctx is done.
func (c *Catalog) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get looks up a visible category by name.
func (c *Catalog) Get(name string) (domain.Category, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cat, ok := c.byName[name]
	return cat, ok
}

// List returns the visible categories in load order.
func (c *Catalog) List() []domain.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Category, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Static is a Loader over a fixed category list.
type Static []domain.Category

func (s Static) LoadCategories(context.Context) ([]domain.Category, error) {
	return s, nil
}
