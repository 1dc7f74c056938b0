// Package syncer reconciles a freshly crawled snapshot against the
// stored set for a site. The crawl result is treated as the complete
// current truth: stored rows missing from it are removed.
package syncer

import (
	"context"
	"fmt"
	"log"

	"emlaksync/models"
)

// Store is the persistence surface the engine needs. storage.Postgres
// implements it; tests use an in-memory fake.
type Store interface {
	ListBySite(ctx context.Context, site string) ([]models.StoredRecord, error)
	Insert(ctx context.Context, listing *models.CanonicalListing) error
	Update(ctx context.Context, id int64, listing *models.CanonicalListing) error
	Delete(ctx context.Context, id int64) error
}

// RowError wraps a single row that could not be written. Row errors are
// counted into the stats and never abort the sync.
type RowError struct {
	Op  string
	URL string
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("sync %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// significantFields is the fixed subset whose changes mark a listing as
// updated. Cosmetic churn elsewhere (description rewording, relisted
// dates) does not count.
var significantFields = []string{
	models.FieldTitle,
	models.FieldPrice,
	models.FieldGrossM2,
	models.FieldNetM2,
	models.FieldRooms,
	models.FieldBathrooms,
	models.FieldFloor,
	models.FieldTotalFloors,
	models.FieldBuildingAge,
	models.FieldFurnished,
}

type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Sync applies the snapshot for one site. It returns an error only when
// the stored set cannot be loaded; individual row failures are logged
// and counted.
func (e *Engine) Sync(ctx context.Context, site string, incoming []models.CanonicalListing) (models.SyncStats, error) {
	var stats models.SyncStats

	stored, err := e.store.ListBySite(ctx, site)
	if err != nil {
		return stats, fmt.Errorf("load stored listings for %s: %w", site, err)
	}

	storedByURL := make(map[string]*models.StoredRecord)
	storedByListingID := make(map[string]*models.StoredRecord)
	for i := range stored {
		rec := &stored[i]
		if rec.URL != "" {
			storedByURL[rec.URL] = rec
		}
		if rec.ListingID != "" {
			storedByListingID[rec.ListingID] = rec
		}
	}

	incomingByURL := make(map[string]struct{})
	incomingByListingID := make(map[string]struct{})
	for i := range incoming {
		if incoming[i].URL != "" {
			incomingByURL[incoming[i].URL] = struct{}{}
		}
		if incoming[i].ListingID != "" {
			incomingByListingID[incoming[i].ListingID] = struct{}{}
		}
	}

	// Guards against two incoming rows resolving to the same stored id.
	claimed := make(map[int64]struct{})

	for i := range incoming {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		listing := &incoming[i]

		var match *models.StoredRecord
		if rec, ok := storedByURL[listing.URL]; ok {
			match = rec
		} else if rec, ok := storedByListingID[listing.ListingID]; ok && listing.ListingID != "" {
			match = rec
		}
		if match != nil {
			if _, dup := claimed[match.ID]; dup {
				match = nil
			}
		}

		switch {
		case match == nil:
			if err := e.store.Insert(ctx, listing); err != nil {
				stats.Failed++
				log.Printf("%v", &RowError{Op: "insert", URL: listing.URL, Err: err})
				continue
			}
			stats.Added++
		case hasChanged(match, listing):
			if err := e.store.Update(ctx, match.ID, listing); err != nil {
				stats.Failed++
				log.Printf("%v", &RowError{Op: "update", URL: listing.URL, Err: err})
				continue
			}
			claimed[match.ID] = struct{}{}
			stats.Updated++
		default:
			claimed[match.ID] = struct{}{}
			stats.Unchanged++
		}
	}

	for i := range stored {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rec := &stored[i]

		if _, ok := incomingByURL[rec.URL]; ok {
			continue
		}
		if rec.ListingID != "" {
			if _, ok := incomingByListingID[rec.ListingID]; ok {
				continue
			}
		}

		if err := e.store.Delete(ctx, rec.ID); err != nil {
			stats.Failed++
			log.Printf("%v", &RowError{Op: "delete", URL: rec.URL, Err: err})
			continue
		}
		stats.Deleted++
	}

	log.Printf("[%s] sync: +%d ~%d -%d =%d, %d failed",
		site, stats.Added, stats.Updated, stats.Deleted, stats.Unchanged, stats.Failed)
	return stats, nil
}

// hasChanged compares the stored record with the fresh extraction over
// the significant subset, the numeric price, and the image count.
func hasChanged(stored *models.StoredRecord, incoming *models.CanonicalListing) bool {
	if !priceEqual(stored.PriceNumeric, incoming.PriceNumeric) {
		return true
	}
	for _, field := range significantFields {
		if stored.Field(field) != incoming.Field(field) {
			return true
		}
	}
	if len(stored.Images) != len(incoming.Images) {
		return true
	}
	return false
}

func priceEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
