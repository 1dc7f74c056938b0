package models

import (
	"time"
)

// Canonical field names shared by every site adapter. Adapters never emit
// keys outside this set; translate.Apply is responsible for the mapping.
const (
	FieldTitle          = "title"
	FieldProvince       = "province"
	FieldListingNo      = "listing_no"
	FieldListedAt       = "listed_at"
	FieldPropertyKind   = "property_kind"
	FieldHousingType    = "housing_type"
	FieldGrossM2        = "gross_m2"
	FieldNetM2          = "net_m2"
	FieldRooms          = "rooms"
	FieldBathrooms      = "bathrooms"
	FieldFloor          = "floor"
	FieldTotalFloors    = "total_floors"
	FieldBuildingAge    = "building_age"
	FieldHeating        = "heating"
	FieldFuelType       = "fuel_type"
	FieldFurnished      = "furnished"
	FieldUsageStatus    = "usage_status"
	FieldInComplex      = "in_complex"
	FieldDues           = "dues"
	FieldCreditEligible = "credit_eligible"
	FieldDeedStatus     = "deed_status"
	FieldListedBy       = "listed_by"
	FieldSwap           = "swap"
	FieldPrice          = "price"
	FieldDescription    = "description"
)

// FieldOrder is the display order for canonical fields. Maps don't keep
// insertion order, so anything rendering a listing walks this slice.
var FieldOrder = []string{
	FieldTitle,
	FieldPrice,
	FieldProvince,
	FieldListingNo,
	FieldListedAt,
	FieldPropertyKind,
	FieldHousingType,
	FieldGrossM2,
	FieldNetM2,
	FieldRooms,
	FieldBathrooms,
	FieldFloor,
	FieldTotalFloors,
	FieldBuildingAge,
	FieldHeating,
	FieldFuelType,
	FieldFurnished,
	FieldUsageStatus,
	FieldInComplex,
	FieldDues,
	FieldCreditEligible,
	FieldDeedStatus,
	FieldListedBy,
	FieldSwap,
	FieldDescription,
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CanonicalListing is one listing extracted from a portal page and
// normalized into the canonical field vocabulary. (Site, URL) is the
// natural key; ListingID is the site-native identifier when the portal
// exposes one.
type CanonicalListing struct {
	Site         string            `json:"site"`
	ListingID    string            `json:"listing_id,omitempty"`
	URL          string            `json:"url"`
	Fields       map[string]string `json:"fields"`
	PriceNumeric *int64            `json:"price_numeric,omitempty"`
	Coordinates  *LatLng           `json:"coordinates,omitempty"`
	Images       []string          `json:"images,omitempty"`
	ExtractedAt  time.Time         `json:"extracted_at"`
}

// Field returns the canonical field value, or "" when absent.
func (l *CanonicalListing) Field(name string) string {
	if l.Fields == nil {
		return ""
	}
	return l.Fields[name]
}

// StoredRecord is the persisted projection of a CanonicalListing plus
// store bookkeeping.
type StoredRecord struct {
	ID           int64             `json:"id" db:"id"`
	Site         string            `json:"site" db:"site"`
	ListingID    string            `json:"listing_id" db:"listing_id"`
	URL          string            `json:"url" db:"url"`
	Fields       map[string]string `json:"fields" db:"fields"`
	PriceNumeric *int64            `json:"price_numeric" db:"price_numeric"`
	Coordinates  *LatLng           `json:"coordinates" db:"coordinates"`
	Images       []string          `json:"images" db:"images"`
	ExtractedAt  time.Time         `json:"extracted_at" db:"extracted_at"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`
}

// Field returns the canonical field value, or "" when absent.
func (r *StoredRecord) Field(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// CrawlFailure records one URL that could not be extracted during a session.
type CrawlFailure struct {
	URL string `json:"url"`
	Err string `json:"error"`
}

// CrawlResult is the transient outcome of one crawl session. It is handed
// to the sync engine and discarded, never persisted.
type CrawlResult struct {
	Succeeded []CanonicalListing `json:"succeeded"`
	Failed    []CrawlFailure     `json:"failed"`
}

// SyncStats is the outcome of one sync pass for a site.
type SyncStats struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// Total returns the number of incoming records the pass classified.
func (s SyncStats) Total() int {
	return s.Added + s.Updated + s.Unchanged + s.Failed
}
