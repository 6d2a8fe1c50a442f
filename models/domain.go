package models

import (
	"time"

	"github.com/google/uuid"
)

// Building is a physical structure that hosts one or more MasterProperty units.
type Building struct {
	ID                uuid.UUID `json:"id" db:"id"`
	CanonicalName     string    `json:"canonical_name" db:"canonical_name"`
	NormalizedName    string    `json:"normalized_name" db:"normalized_name"`
	Address           string    `json:"address" db:"address"`
	NormalizedAddress string    `json:"normalized_address" db:"normalized_address"`
	BuiltYear         *int      `json:"built_year" db:"built_year"`
	BuiltMonth        *int      `json:"built_month" db:"built_month"`
	TotalFloors       *int      `json:"total_floors" db:"total_floors"`
	BasementFloors    *int      `json:"basement_floors" db:"basement_floors"`
	TotalUnits        *int      `json:"total_units" db:"total_units"`
	ConstructionType  string    `json:"construction_type" db:"construction_type"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Triple returns the building-identity attributes used by the Resolver
// for automatic attach (total_floors, built_year, total_units).
func (b *Building) Triple() (floors, year, units int, ok bool) {
	if b.TotalFloors == nil || b.BuiltYear == nil || b.TotalUnits == nil {
		return 0, 0, 0, false
	}
	return *b.TotalFloors, *b.BuiltYear, *b.TotalUnits, true
}

// MasterProperty is a unit within a Building.
type MasterProperty struct {
	ID                  uuid.UUID  `json:"id" db:"id"`
	BuildingID          uuid.UUID  `json:"building_id" db:"building_id"`
	FloorNumber         *int       `json:"floor_number" db:"floor_number"`
	AreaM2              *float64   `json:"area_m2" db:"area_m2"`
	Layout              string     `json:"layout" db:"layout"`
	Direction           string     `json:"direction" db:"direction"`
	RoomNumber          string     `json:"room_number" db:"room_number"`
	BalconyAreaM2       *float64   `json:"balcony_area_m2" db:"balcony_area_m2"`
	ManagementFee       *int       `json:"management_fee" db:"management_fee"`
	RepairFund          *int       `json:"repair_fund" db:"repair_fund"`
	CurrentPrice        *int       `json:"current_price" db:"current_price"`
	FinalPrice          *int       `json:"final_price" db:"final_price"`
	SoldAt              *time.Time `json:"sold_at" db:"sold_at"`
	EarliestListingDate *time.Time `json:"earliest_listing_date" db:"earliest_listing_date"`
	LatestPriceChangeAt *time.Time `json:"latest_price_change_at" db:"latest_price_change_at"`
	DisplayBuildingName string     `json:"display_building_name" db:"display_building_name"`
	IsResale            *bool      `json:"is_resale" db:"is_resale"`
	TransactionType     string     `json:"transaction_type" db:"transaction_type"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// UnitKey is the structural-equality key spec.md §4.3 uses to decide
// whether two MasterProperty rows describe the same physical unit.
type UnitKey struct {
	FloorNumber int
	HalfArea    int // round(area_m2*2), i.e. half-unit precision
	Layout      string
	Direction   string
}

// HalfUnitArea rounds area_m2 to half-unit (0.5 m2) precision, returned as
// an integer count of halves so the key is comparable without floats.
func HalfUnitArea(area float64) int {
	return int(area*2 + 0.5)
}

// UnitArea rounds area_m2 to the nearest whole m2 (used by the property
// duplicate scan's bucket key, see design notes on rounding) so that e.g.
// 40.03 and 40.3 land in the same bucket.
func UnitArea(area float64) int {
	return int(area + 0.5)
}

// Key computes the structural unit key at half-m2 precision.
func (p *MasterProperty) Key() (UnitKey, bool) {
	if p.FloorNumber == nil || p.AreaM2 == nil {
		return UnitKey{}, false
	}
	return UnitKey{
		FloorNumber: *p.FloorNumber,
		HalfArea:    HalfUnitArea(*p.AreaM2),
		Layout:      p.Layout,
		Direction:   p.Direction,
	}, true
}

// Listing is one appearance of a MasterProperty on one source site.
type Listing struct {
	ID                    uuid.UUID  `json:"id" db:"id"`
	SourceSite            string     `json:"source_site" db:"source_site"`
	SitePropertyID        string     `json:"site_property_id" db:"site_property_id"`
	URL                   string     `json:"url" db:"url"`
	MasterPropertyID      uuid.UUID  `json:"master_property_id" db:"master_property_id"`
	IsActive              bool       `json:"is_active" db:"is_active"`
	CurrentPrice          *int       `json:"current_price" db:"current_price"`
	ListingBuildingName   string     `json:"listing_building_name" db:"listing_building_name"`
	FirstSeenAt           time.Time  `json:"first_seen_at" db:"first_seen_at"`
	LastConfirmedAt       time.Time  `json:"last_confirmed_at" db:"last_confirmed_at"`
	DelistedAt            *time.Time `json:"delisted_at" db:"delisted_at"`
	PublishedAt           *time.Time `json:"published_at" db:"published_at"`
	FirstPublishedAt      *time.Time `json:"first_published_at" db:"first_published_at"`
	ListingTotalFloors    *int       `json:"listing_total_floors" db:"listing_total_floors"`
	ListingBasementFloors *int       `json:"listing_basement_floors" db:"listing_basement_floors"`
	ListingBuiltYear      *int       `json:"listing_built_year" db:"listing_built_year"`
	ListingBuiltMonth     *int       `json:"listing_built_month" db:"listing_built_month"`
	ListingTotalUnits     *int       `json:"listing_total_units" db:"listing_total_units"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`
}

// EarliestDate returns the observation used to seed a MasterProperty's
// earliest_listing_date, per the §3 invariant.
func (l *Listing) EarliestDate() time.Time {
	if l.FirstPublishedAt != nil {
		return *l.FirstPublishedAt
	}
	if l.PublishedAt != nil {
		return *l.PublishedAt
	}
	if !l.FirstSeenAt.IsZero() {
		return l.FirstSeenAt
	}
	return l.CreatedAt
}

// PriceHistory is an append-only record of an observed price for a listing.
type PriceHistory struct {
	ID         int64     `json:"id" db:"id"`
	ListingID  uuid.UUID `json:"listing_id" db:"listing_id"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
	Price      int       `json:"price" db:"price"`
}

// PropertyPriceChange is appended only when the majority-vote price for a
// master property changes.
type PropertyPriceChange struct {
	ID               int64     `json:"id" db:"id"`
	MasterPropertyID uuid.UUID `json:"master_property_id" db:"master_property_id"`
	ChangeDate       time.Time `json:"change_date" db:"change_date"`
	NewMajorityPrice int       `json:"new_majority_price" db:"new_majority_price"`
}

// BuildingExternalID is one site's reference to a Building (e.g. the
// site's own building/development identifier, distinct from the
// per-listing SitePropertyID on Listing). A merge rewrites these onto the
// primary building, dropping any row that would duplicate an
// (source_site, external_id) pair already present there.
type BuildingExternalID struct {
	ID         int64     `json:"id" db:"id"`
	BuildingID uuid.UUID `json:"building_id" db:"building_id"`
	SourceSite string    `json:"source_site" db:"source_site"`
	ExternalID string    `json:"external_id" db:"external_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// AliasEntry is a per-building multiset of every listing-name observed.
type AliasEntry struct {
	BuildingID      uuid.UUID `json:"building_id" db:"building_id"`
	CanonicalName   string    `json:"canonical_name" db:"canonical_name"`
	DisplayName     string    `json:"display_name" db:"display_name"`
	SourceSites     []string  `json:"source_sites" db:"source_sites"`
	OccurrenceCount int       `json:"occurrence_count" db:"occurrence_count"`
	FirstSeenAt     time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt      time.Time `json:"last_seen_at" db:"last_seen_at"`
}

// MergeKind distinguishes building-level from property-level merge records.
type MergeKind string

const (
	MergeKindBuilding MergeKind = "building"
	MergeKindProperty MergeKind = "property"
)

// MergeHistory records a merge for later revert. Snapshot holds the
// merged-away entity's attributes (and, for building merges, every moved
// property) as JSON so Revert can recreate it verbatim.
type MergeHistory struct {
	ID           int64      `json:"id" db:"id"`
	Kind         MergeKind  `json:"kind" db:"kind"`
	PrimaryID    uuid.UUID  `json:"primary_id" db:"primary_id"`
	MergedAwayID uuid.UUID  `json:"merged_away_id" db:"merged_away_id"`
	Snapshot     []byte     `json:"snapshot" db:"snapshot"`
	MergeDetails []byte     `json:"merge_details" db:"merge_details"`
	Actor        string     `json:"actor" db:"actor"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	RevertedAt   *time.Time `json:"reverted_at" db:"reverted_at"`
}

// MergeExclusion marks an unordered pair of entity ids that must never be
// offered as a merge candidate again.
type MergeExclusion struct {
	ID        int64     `json:"id" db:"id"`
	Kind      MergeKind `json:"kind" db:"kind"`
	AID       uuid.UUID `json:"a_id" db:"a_id"`
	BID       uuid.UUID `json:"b_id" db:"b_id"`
	Reason    string    `json:"reason" db:"reason"`
	Actor     string    `json:"actor" db:"actor"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ExclusionPair returns (a,b) ordered so lookups don't depend on argument
// order (the pair is unordered by definition).
func ExclusionPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() <= b.String() {
		return a, b
	}
	return b, a
}
