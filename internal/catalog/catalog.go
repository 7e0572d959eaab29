package catalog

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"seasonstay/internal/models"
)

// Source loads listings from durable storage
type Source interface {
	ListListings(ctx context.Context) ([]models.Listing, error)
}

// Catalog is the read-only set of listings served to searches. Listings are
// never mutated in place; a reload swaps the whole set.
type Catalog struct {
	mu       sync.RWMutex
	listings []models.Listing
	index    map[int64]int
	loadedAt time.Time
}

// New creates a catalog holding the given listings in order
func New(listings []models.Listing) *Catalog {
	c := &Catalog{}
	c.Replace(listings)
	return c
}

// Replace swaps the catalog contents
func (c *Catalog) Replace(listings []models.Listing) {
	own := slices.Clone(listings)
	index := make(map[int64]int, len(own))
	for i, l := range own {
		index[l.ID] = i
	}

	c.mu.Lock()
	c.listings = own
	c.index = index
	c.loadedAt = time.Now()
	c.mu.Unlock()
}

// Reload replaces the contents with what src returns. On error the current
// contents are kept.
func (c *Catalog) Reload(ctx context.Context, src Source) error {
	listings, err := src.ListListings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	c.Replace(listings)
	return nil
}

// All returns the listings in catalog order
func (c *Catalog) All() []models.Listing {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.listings)
}

// Get returns a listing by ID
func (c *Catalog) Get(id int64) (models.Listing, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return models.Listing{}, false
	}
	return c.listings[i], true
}

// Len returns the number of listings
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listings)
}

// LoadedAt returns when the contents were last replaced
func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// Options describes the values offered by the filter controls
type Options struct {
	Types    []models.PropertyType `json:"property_types"`
	Partners []Partner             `json:"partners"`
	PriceMin float64               `json:"price_min"`
	PriceMax float64               `json:"price_max"`
	Count    int                   `json:"count"`
}

// Options returns the filter values for the current contents. Known types
// come first in their usual order, followed by any other type seen.
func (c *Catalog) Options() Options {
	c.mu.RLock()
	defer c.mu.RUnlock()

	opts := Options{
		Types:    slices.Clone(models.KnownTypes),
		Partners: slices.Clone(Partners),
		Count:    len(c.listings),
	}

	var extra []models.PropertyType
	for i, l := range c.listings {
		if l.Type != "" && !slices.Contains(opts.Types, l.Type) && !slices.Contains(extra, l.Type) {
			extra = append(extra, l.Type)
		}
		if i == 0 || l.Price < opts.PriceMin {
			opts.PriceMin = l.Price
		}
		if l.Price > opts.PriceMax {
			opts.PriceMax = l.Price
		}
	}
	slices.Sort(extra)
	opts.Types = append(opts.Types, extra...)
	return opts
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
