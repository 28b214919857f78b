package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-omegaloops/internal/ledger"
	"go-omegaloops/internal/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
)

// ErrCatalogFetch is matched by every FetchAll failure.
var ErrCatalogFetch = errors.New("catalog fetch failed")

// DefaultConcurrency bounds parallel detail reads when Options leaves it unset.
const DefaultConcurrency = 4

// FetchError names the item whose detail read failed. ItemID is zero when the
// event log itself could not be read.
type FetchError struct {
	ItemID uint64
	Err    error
}

func (e *FetchError) Error() string {
	if e.ItemID == 0 {
		return fmt.Sprintf("catalog fetch failed: reading events: %v", e.Err)
	}
	return fmt.Sprintf("catalog fetch failed: item %d: %v", e.ItemID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrCatalogFetch }

// Options tune FetchAll.
type Options struct {
	FromBlock   uint64
	Concurrency int
}

// Catalog rebuilds the marketplace listing from the ledger.
type Catalog struct {
	ledger ledger.Ledger
	opts   Options
}

// New creates a Catalog reading from l.
func New(l ledger.Ledger, opts Options) *Catalog {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Catalog{ledger: l, opts: opts}
}

// FetchAll reads every creation event, then the current detail of each item,
// and returns the joined items in event order. Either every detail read
// succeeds or no items are returned.
func (c *Catalog) FetchAll(ctx context.Context) ([]models.CatalogItem, error) {
	events, err := c.ledger.CreationEvents(ctx, c.opts.FromBlock)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	log.WithField("events", len(events)).Debug("Fetching item details")

	items := make([]models.CatalogItem, len(events))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i, ev := range events {
		g.Go(func() error {
			detail, err := c.ledger.ItemDetail(gctx, ev.ID)
			if err != nil {
				return &FetchError{ItemID: ev.ID, Err: err}
			}
			items[i] = join(ev, detail)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, it := range items {
		if !models.IsKnownCategory(it.Category) {
			log.WithFields(log.Fields{"id": it.ID, "category": it.Category}).Debug("Item has a category outside the taxonomy")
		}
	}
	log.WithField("items", len(items)).Info("Catalog fetched")
	return items, nil
}

// join merges an event with its detail read. Detail fields win.
func join(ev models.CreationEvent, d models.ItemDetail) models.CatalogItem {
	return models.CatalogItem{
		ID:             ev.ID,
		Creator:        ev.Creator,
		Artist:         d.Artist,
		Title:          d.Title,
		Category:       d.Category,
		Description:    d.Description,
		NumberOfCopies: d.NumberOfCopies,
		Price:          d.Price,
		CID:            d.CID,
	}
}

// Search keeps the items whose title, artist or description contains query,
// compared under Unicode case folding. An empty query returns items as is.
func Search(items []models.CatalogItem, query string) []models.CatalogItem {
	if query == "" {
		return items
	}
	fold := cases.Fold()
	q := fold.String(query)

	out := make([]models.CatalogItem, 0, len(items))
	for _, it := range items {
		if strings.Contains(fold.String(it.Title), q) ||
			strings.Contains(fold.String(it.Artist), q) ||
			strings.Contains(fold.String(it.Description), q) {
			out = append(out, it)
		}
	}
	return out
}

// FilterByCategory keeps the items whose category equals *category exactly.
// A nil category returns items as is.
func FilterByCategory(items []models.CatalogItem, category *string) []models.CatalogItem {
	if category == nil {
		return items
	}
	out := make([]models.CatalogItem, 0, len(items))
	for _, it := range items {
		if it.Category == *category {
			out = append(out, it)
		}
	}
	return out
}

// DistinctCategories returns the set of categories present in items.
func DistinctCategories(items []models.CatalogItem) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it.Category] = struct{}{}
	}
	return set
}
