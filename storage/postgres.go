package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"emlaksync/models"
)

// PostgresStore is the canonical listing store. One row per live
// listing, keyed (site, url); rows leave the table when the listing
// leaves the portal.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS parsed_listings (
		id BIGSERIAL PRIMARY KEY,
		site_name TEXT NOT NULL,
		listing_id TEXT,
		url TEXT NOT NULL,
		data JSONB NOT NULL DEFAULT '{}',
		price_numeric BIGINT,
		lat DOUBLE PRECISION,
		lng DOUBLE PRECISION,
		extracted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (site_name, url)
	);

	CREATE INDEX IF NOT EXISTS idx_parsed_listings_site ON parsed_listings(site_name);
	CREATE INDEX IF NOT EXISTS idx_parsed_listings_listing_id ON parsed_listings(site_name, listing_id);
	CREATE INDEX IF NOT EXISTS idx_parsed_listings_created ON parsed_listings(created_at DESC);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// listingData is the JSONB payload for a row.
type listingData struct {
	Fields map[string]string `json:"fields"`
	Images []string          `json:"images,omitempty"`
}

func (s *PostgresStore) ListBySite(ctx context.Context, site string) ([]models.StoredRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, site_name, listing_id, url, data, price_numeric, lat, lng,
			extracted_at, created_at, updated_at
		FROM parsed_listings WHERE site_name = $1`, site)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.StoredRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Insert(ctx context.Context, l *models.CanonicalListing) error {
	data, err := json.Marshal(listingData{Fields: l.Fields, Images: l.Images})
	if err != nil {
		return err
	}

	var lat, lng *float64
	if l.Coordinates != nil {
		lat, lng = &l.Coordinates.Lat, &l.Coordinates.Lng
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO parsed_listings (site_name, listing_id, url, data, price_numeric, lat, lng, extracted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.Site, l.ListingID, l.URL, data, l.PriceNumeric, lat, lng, l.ExtractedAt)
	return err
}

func (s *PostgresStore) Update(ctx context.Context, id int64, l *models.CanonicalListing) error {
	data, err := json.Marshal(listingData{Fields: l.Fields, Images: l.Images})
	if err != nil {
		return err
	}

	var lat, lng *float64
	if l.Coordinates != nil {
		lat, lng = &l.Coordinates.Lat, &l.Coordinates.Lng
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE parsed_listings
		SET listing_id = $1, url = $2, data = $3, price_numeric = $4,
			lat = COALESCE($5, lat), lng = COALESCE($6, lng),
			extracted_at = $7, updated_at = NOW()
		WHERE id = $8`,
		l.ListingID, l.URL, data, l.PriceNumeric, lat, lng, l.ExtractedAt, id)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM parsed_listings WHERE id = $1`, id)
	return err
}

// GetByURL returns the stored row for a site/url pair, or nil when the
// listing is not tracked.
func (s *PostgresStore) GetByURL(ctx context.Context, site, url string) (*models.StoredRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, site_name, listing_id, url, data, price_numeric, lat, lng,
			extracted_at, created_at, updated_at
		FROM parsed_listings WHERE site_name = $1 AND url = $2`, site, url)

	rec, err := scanRecord(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// NewListingsSince returns listings first seen after the cutoff, newest
// first. Notification consumers poll this after each sync.
func (s *PostgresStore) NewListingsSince(ctx context.Context, site string, since time.Time, limit int) ([]models.StoredRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, site_name, listing_id, url, data, price_numeric, lat, lng,
			extracted_at, created_at, updated_at
		FROM parsed_listings
		WHERE site_name = $1 AND created_at > $2
		ORDER BY created_at DESC
		LIMIT $3`, site, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.StoredRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// SiteCounts returns the live listing count and average numeric price
// for a site.
func (s *PostgresStore) SiteCounts(ctx context.Context, site string) (int, float64, error) {
	var count int
	var avg *float64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), AVG(price_numeric)
		FROM parsed_listings WHERE site_name = $1`, site).Scan(&count, &avg)
	if err != nil {
		return 0, 0, err
	}
	if avg == nil {
		return count, 0, nil
	}
	return count, *avg, nil
}

func scanRecord(row pgx.Row) (*models.StoredRecord, error) {
	var (
		rec         models.StoredRecord
		listingID   *string
		raw         []byte
		lat, lng    *float64
		extractedAt *time.Time
	)

	err := row.Scan(&rec.ID, &rec.Site, &listingID, &rec.URL, &raw,
		&rec.PriceNumeric, &lat, &lng, &extractedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if listingID != nil {
		rec.ListingID = *listingID
	}
	if extractedAt != nil {
		rec.ExtractedAt = *extractedAt
	}
	if lat != nil && lng != nil {
		rec.Coordinates = &models.LatLng{Lat: *lat, Lng: *lng}
	}

	var data listingData
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("decode listing data for row %d: %w", rec.ID, err)
		}
	}
	rec.Fields = data.Fields
	if rec.Fields == nil {
		rec.Fields = map[string]string{}
	}
	rec.Images = data.Images

	return &rec, nil
}
