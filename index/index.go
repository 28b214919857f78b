package index

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"go-omegaloops/internal/helpers"
	"go-omegaloops/internal/models"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
)

const defaultIndexPath = "omegaloops.bleve"

// Item is the indexed form of a catalog item. Fields are searchable by their
// JSON names, e.g. '+category:House' or 'artist:larry'.
type Item struct {
	ID             string  `json:"id"` // sample_<ledger id>
	Type           string  `json:"type"`
	Title          string  `json:"title"`
	Artist         string  `json:"artist"`
	Category       string  `json:"category"`
	CategoryGroup  string  `json:"categoryGroup,omitempty"`
	Description    string  `json:"description"`
	Creator        string  `json:"creator"`
	CID            string  `json:"cid,omitempty"`
	MediaURL       string  `json:"mediaUrl,omitempty"`
	NumberOfCopies float64 `json:"numberOfCopies"`
	PriceEth       string  `json:"priceEth"`
}

// DocID returns the index document id of a ledger item.
func DocID(id uint64) string {
	return "sample_" + strconv.FormatUint(id, 10)
}

// ItemFromCatalog converts a catalog item. gatewayURL, when set, is prefixed
// to the CID to form MediaURL.
func ItemFromCatalog(c models.CatalogItem, gatewayURL string) Item {
	it := Item{
		ID:             DocID(c.ID),
		Type:           "sample",
		Title:          c.Title,
		Artist:         c.Artist,
		Category:       c.Category,
		Description:    c.Description,
		Creator:        c.Creator,
		CID:            c.CID,
		NumberOfCopies: float64(c.NumberOfCopies),
		PriceEth:       helpers.FormatWei(c.Price),
	}
	if group, ok := models.GroupOf(c.Category); ok {
		it.CategoryGroup = group
	}
	if c.HasMedia() && gatewayURL != "" {
		it.MediaURL = gatewayURL + c.CID
	}
	return it
}

// OpenOrCreateIndex opens an existing Bleve index or creates a new one if it doesn't exist.
func OpenOrCreateIndex(indexPath string) (bleve.Index, error) {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}

	idx, err := bleve.Open(indexPath)
	switch {
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		log.Infof("Creating new index at: %s", indexPath)
		idx, err = bleve.New(indexPath, bleve.NewIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("creating index at %s: %w", indexPath, err)
		}
	case err != nil:
		return nil, fmt.Errorf("opening index at %s: %w", indexPath, err)
	default:
		log.Debugf("Opened existing index at: %s", indexPath)
	}
	return idx, nil
}

// indexer is satisfied by both bleve.Index and *bleve.Batch.
type indexer interface {
	Index(id string, data interface{}) error
}

// IndexItem adds or updates an item in an index or batch.
func IndexItem(idx indexer, item Item) error {
	return idx.Index(item.ID, item)
}

// IndexCatalog writes every item in one batch and returns how many were indexed.
func IndexCatalog(idx bleve.Index, items []models.CatalogItem, gatewayURL string) (int, error) {
	batch := idx.NewBatch()
	for _, c := range items {
		it := ItemFromCatalog(c, gatewayURL)
		if err := IndexItem(batch, it); err != nil {
			return 0, fmt.Errorf("batching %s: %w", it.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return 0, fmt.Errorf("writing index batch: %w", err)
	}
	return len(items), nil
}

// RebuildIndex replaces the index at indexPath with one built from items, so
// it mirrors a single catalog snapshot. The caller closes the returned index.
func RebuildIndex(indexPath string, items []models.CatalogItem, gatewayURL string) (bleve.Index, error) {
	if err := DeleteIndex(indexPath); err != nil {
		return nil, fmt.Errorf("removing old index: %w", err)
	}
	idx, err := OpenOrCreateIndex(indexPath)
	if err != nil {
		return nil, err
	}
	if _, err := IndexCatalog(idx, items, gatewayURL); err != nil {
		idx.Close()
		return nil, err
	}
	return idx, nil
}

// SearchIndex runs a query string search and returns up to size hits with
// all stored fields.
func SearchIndex(idx bleve.Index, query string, size int) (*bleve.SearchResult, error) {
	req := bleve.NewSearchRequest(bleve.NewQueryStringQuery(query))
	if size > 0 {
		req.Size = size
	}
	req.Fields = []string{"*"}
	return idx.Search(req)
}

// DeleteIndex removes the index directory.
func DeleteIndex(indexPath string) error {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}
	log.Debugf("Deleting index at: %s", indexPath)
	return os.RemoveAll(indexPath)
}
