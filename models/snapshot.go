package models

import "time"

// RawListing is the uniform record every source parser produces for one
// listing sighting. It is the scraper input contract the core accepts —
// HTML fetching and per-site parsing live upstream of this boundary.
type RawListing struct {
	SourceSite     string `json:"source_site"`
	SitePropertyID string `json:"site_property_id"`
	URL            string `json:"url"`

	ListingBuildingName   string `json:"listing_building_name,omitempty"`
	ListingAddress        string `json:"listing_address,omitempty"`
	ListingTotalFloors    *int   `json:"listing_total_floors,omitempty"`
	ListingBasementFloors *int   `json:"listing_basement_floors,omitempty"`
	ListingBuiltYear      *int   `json:"listing_built_year,omitempty"`
	ListingBuiltMonth     *int   `json:"listing_built_month,omitempty"`
	ListingTotalUnits     *int   `json:"listing_total_units,omitempty"`

	FloorNumber   *int     `json:"floor_number,omitempty"`
	AreaM2        *float64 `json:"area_m2,omitempty"`
	Layout        string   `json:"layout,omitempty"`
	Direction     string   `json:"direction,omitempty"`
	RoomNumber    string   `json:"room_number,omitempty"`
	BalconyAreaM2 *float64 `json:"balcony_area_m2,omitempty"`

	CurrentPrice  *int `json:"current_price,omitempty"` // unit: 10,000 JPY
	ManagementFee *int `json:"management_fee,omitempty"`
	RepairFund    *int `json:"repair_fund,omitempty"`

	IsResale        *bool  `json:"is_resale,omitempty"`
	TransactionType string `json:"transaction_type,omitempty"`

	PublishedAt      *time.Time `json:"published_at,omitempty"`
	FirstPublishedAt *time.Time `json:"first_published_at,omitempty"`
	ObservedAt       time.Time  `json:"observed_at"`
}

// ResolveResult is the tuple returned to callers of the Resolver, per §6.
type ResolveResult struct {
	BuildingID       string `json:"building_id"`
	MasterPropertyID string `json:"master_property_id"`
	ListingID        string `json:"listing_id"`
	CreatedBuilding  bool   `json:"created_building"`
	CreatedProperty  bool   `json:"created_property"`
	Reattached       bool   `json:"reattached"`
}
