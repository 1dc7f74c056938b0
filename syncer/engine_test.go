package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"emlaksync/models"
)

// fakeStore keeps records in memory and can be told to fail specific
// operations.
type fakeStore struct {
	nextID  int64
	records map[int64]*models.StoredRecord

	failInsert bool
	failDelete bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, records: make(map[int64]*models.StoredRecord)}
}

func (s *fakeStore) ListBySite(_ context.Context, site string) ([]models.StoredRecord, error) {
	var out []models.StoredRecord
	for _, rec := range s.records {
		if rec.Site == site {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *fakeStore) Insert(_ context.Context, listing *models.CanonicalListing) error {
	if s.failInsert {
		return errors.New("insert refused")
	}
	id := s.nextID
	s.nextID++
	s.records[id] = &models.StoredRecord{
		ID:           id,
		Site:         listing.Site,
		ListingID:    listing.ListingID,
		URL:          listing.URL,
		Fields:       listing.Fields,
		PriceNumeric: listing.PriceNumeric,
		Coordinates:  listing.Coordinates,
		Images:       listing.Images,
		ExtractedAt:  listing.ExtractedAt,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	return nil
}

func (s *fakeStore) Update(_ context.Context, id int64, listing *models.CanonicalListing) error {
	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("no record %d", id)
	}
	rec.ListingID = listing.ListingID
	rec.URL = listing.URL
	rec.Fields = listing.Fields
	rec.PriceNumeric = listing.PriceNumeric
	rec.Coordinates = listing.Coordinates
	rec.Images = listing.Images
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id int64) error {
	if s.failDelete {
		return errors.New("delete refused")
	}
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("no record %d", id)
	}
	delete(s.records, id)
	return nil
}

func (s *fakeStore) urls() map[string]bool {
	out := make(map[string]bool)
	for _, rec := range s.records {
		out[rec.URL] = true
	}
	return out
}

func price(v int64) *int64 { return &v }

func listing(site, id, url string, priceNumeric int64, fields map[string]string, images int) models.CanonicalListing {
	if fields == nil {
		fields = map[string]string{}
	}
	var imgs []string
	for i := 0; i < images; i++ {
		imgs = append(imgs, fmt.Sprintf("https://img.example.com/%s/%d.jpg", id, i))
	}
	return models.CanonicalListing{
		Site:         site,
		ListingID:    id,
		URL:          url,
		Fields:       fields,
		PriceNumeric: price(priceNumeric),
		Images:       imgs,
		ExtractedAt:  time.Now().UTC(),
	}
}

func TestSyncEmptyStoreAddsEverything(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store)

	incoming := []models.CanonicalListing{
		listing("hepsiemlak", "a1", "https://he.example/a1", 1000, nil, 2),
		listing("hepsiemlak", "a2", "https://he.example/a2", 2000, nil, 3),
	}

	stats, err := engine.Sync(context.Background(), "hepsiemlak", incoming)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if stats.Added != 2 || stats.Updated != 0 || stats.Deleted != 0 || stats.Unchanged != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(store.records) != 2 {
		t.Fatalf("expected 2 stored records, got %d", len(store.records))
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store)

	incoming := []models.CanonicalListing{
		listing("hepsiemlak", "a1", "https://he.example/a1", 1000, map[string]string{
			models.FieldTitle: "Daire",
			models.FieldRooms: "3+1",
		}, 2),
	}

	if _, err := engine.Sync(context.Background(), "hepsiemlak", incoming); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	stats, err := engine.Sync(context.Background(), "hepsiemlak", incoming)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if stats.Added != 0 || stats.Updated != 0 || stats.Deleted != 0 {
		t.Fatalf("second sync should be a no-op, got %+v", stats)
	}
	if stats.Unchanged != 1 {
		t.Fatalf("expected 1 unchanged, got %+v", stats)
	}
}

// Scenario: one listing disappears, one appears, one changes price, one
// stays. Each is classified independently.
func TestSyncMixedSnapshot(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store)
	ctx := context.Background()

	first := []models.CanonicalListing{
		listing("emlakjet", "b1", "https://ej.example/b1", 1000, nil, 1),
		listing("emlakjet", "b2", "https://ej.example/b2", 2000, nil, 1),
		listing("emlakjet", "b3", "https://ej.example/b3", 3000, nil, 1),
	}
	if _, err := engine.Sync(ctx, "emlakjet", first); err != nil {
		t.Fatalf("seed sync failed: %v", err)
	}

	second := []models.CanonicalListing{
		listing("emlakjet", "b2", "https://ej.example/b2", 2500, nil, 1), // price change
		listing("emlakjet", "b3", "https://ej.example/b3", 3000, nil, 1), // unchanged
		listing("emlakjet", "b4", "https://ej.example/b4", 4000, nil, 1), // new
	}
	stats, err := engine.Sync(ctx, "emlakjet", second)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if stats.Added != 1 || stats.Updated != 1 || stats.Deleted != 1 || stats.Unchanged != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	urls := store.urls()
	if urls["https://ej.example/b1"] {
		t.Error("b1 should have been deleted")
	}
	if !urls["https://ej.example/b4"] {
		t.Error("b4 should have been added")
	}
	for _, rec := range store.records {
		if rec.URL == "https://ej.example/b2" && (rec.PriceNumeric == nil || *rec.PriceNumeric != 2500) {
			t.Errorf("b2 price not updated: %v", rec.PriceNumeric)
		}
	}
}

func TestSyncMatchesByListingIDWhenURLChanges(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store)
	ctx := context.Background()

	if _, err := engine.Sync(ctx, "emlakjet", []models.CanonicalListing{
		listing("emlakjet", "c1", "https://ej.example/old-slug-c1", 1000, nil, 1),
	}); err != nil {
		t.Fatalf("seed sync failed: %v", err)
	}

	// The portal re-slugged the URL but the listing is the same.
	stats, err := engine.Sync(ctx, "emlakjet", []models.CanonicalListing{
		listing("emlakjet", "c1", "https://ej.example/new-slug-c1", 1000, nil, 1),
	})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if stats.Added != 0 || stats.Deleted != 0 {
		t.Fatalf("re-slugged listing must not churn, got %+v", stats)
	}
	if stats.Updated+stats.Unchanged != 1 {
		t.Fatalf("expected the listing to be matched, got %+v", stats)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.records))
	}
}

func TestSyncDetectsSignificantFieldChange(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store)
	ctx := context.Background()

	base := func(fields map[string]string) []models.CanonicalListing {
		return []models.CanonicalListing{
			listing("hepsiemlak", "d1", "https://he.example/d1", 1000, fields, 2),
		}
	}

	if _, err := engine.Sync(ctx, "hepsiemlak", base(map[string]string{
		models.FieldRooms:       "3+1",
		models.FieldDescription: "Deniz manzaralı",
	})); err != nil {
		t.Fatalf("seed sync failed: %v", err)
	}

	// Description is not in the significant subset.
	stats, err := engine.Sync(ctx, "hepsiemlak", base(map[string]string{
		models.FieldRooms:       "3+1",
		models.FieldDescription: "Deniz manzaralı, acil satılık",
	}))
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if stats.Unchanged != 1 || stats.Updated != 0 {
		t.Fatalf("description churn must not trigger an update, got %+v", stats)
	}

	// Room count is.
	stats, err = engine.Sync(ctx, "hepsiemlak", base(map[string]string{
		models.FieldRooms: "4+1",
	}))
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if stats.Updated != 1 {
		t.Fatalf("room change must trigger an update, got %+v", stats)
	}
}

func TestSyncDetectsImageCountChange(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store)
	ctx := context.Background()

	if _, err := engine.Sync(ctx, "hepsiemlak", []models.CanonicalListing{
		listing("hepsiemlak", "e1", "https://he.example/e1", 1000, nil, 2),
	}); err != nil {
		t.Fatalf("seed sync failed: %v", err)
	}

	stats, err := engine.Sync(ctx, "hepsiemlak", []models.CanonicalListing{
		listing("hepsiemlak", "e1", "https://he.example/e1", 1000, nil, 5),
	})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if stats.Updated != 1 {
		t.Fatalf("image count change must trigger an update, got %+v", stats)
	}
}

func TestSyncEmptySnapshotDeletesEverything(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store)
	ctx := context.Background()

	if _, err := engine.Sync(ctx, "emlakjet", []models.CanonicalListing{
		listing("emlakjet", "f1", "https://ej.example/f1", 1000, nil, 1),
		listing("emlakjet", "f2", "https://ej.example/f2", 2000, nil, 1),
	}); err != nil {
		t.Fatalf("seed sync failed: %v", err)
	}

	stats, err := engine.Sync(ctx, "emlakjet", nil)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if stats.Deleted != 2 {
		t.Fatalf("expected 2 deletions, got %+v", stats)
	}
	if len(store.records) != 0 {
		t.Fatalf("expected empty store, got %d records", len(store.records))
	}
}

func TestSyncLeavesOtherSitesAlone(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store)
	ctx := context.Background()

	if _, err := engine.Sync(ctx, "hepsiemlak", []models.CanonicalListing{
		listing("hepsiemlak", "g1", "https://he.example/g1", 1000, nil, 1),
	}); err != nil {
		t.Fatalf("seed sync failed: %v", err)
	}

	if _, err := engine.Sync(ctx, "emlakjet", nil); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if len(store.records) != 1 {
		t.Fatal("syncing one site must never touch another site's rows")
	}
}

func TestSyncCountsRowFailures(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store)
	ctx := context.Background()

	if _, err := engine.Sync(ctx, "emlakjet", []models.CanonicalListing{
		listing("emlakjet", "h1", "https://ej.example/h1", 1000, nil, 1),
	}); err != nil {
		t.Fatalf("seed sync failed: %v", err)
	}

	store.failInsert = true
	store.failDelete = true

	stats, err := engine.Sync(ctx, "emlakjet", []models.CanonicalListing{
		listing("emlakjet", "h2", "https://ej.example/h2", 2000, nil, 1),
	})
	if err != nil {
		t.Fatalf("row failures must not fail the sync: %v", err)
	}

	// The insert of h2 and the delete of h1 both failed.
	if stats.Failed != 2 {
		t.Fatalf("expected 2 failed rows, got %+v", stats)
	}
	if stats.Added != 0 || stats.Deleted != 0 {
		t.Fatalf("failed rows must not be counted as applied, got %+v", stats)
	}
}
