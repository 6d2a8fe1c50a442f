// Package store is the entity store of spec.md §4.2: buildings,
// master-properties, listings, price history, the alias ledger, and the
// merge/exclusion tables, behind a single Store interface so the domain
// packages (resolve, aggregate, lifecycle, dupes, merge, alias) can run
// against either a live Postgres-backed implementation or the in-memory
// fake used by their tests.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"condocore/models"
)

// Store is the entity store contract every domain package depends on.
// All multi-row writes happen inside Tx; the Lock* methods must only be
// called from within a Tx and take the row lock in the caller's chosen
// order (callers are responsible for ascending-id ordering per §5).
type Store interface {
	// Tx runs fn in a single transaction, retrying on deadlock per the
	// txretry policy. fn receives a Store scoped to that transaction.
	Tx(ctx context.Context, fn func(ctx context.Context, s Store) error) error

	GetBuilding(ctx context.Context, id uuid.UUID) (*models.Building, error)
	LockBuilding(ctx context.Context, id uuid.UUID) (*models.Building, error)
	FindBuildingsByCanonicalName(ctx context.Context, canonicalName string) ([]*models.Building, error)
	ListAllBuildings(ctx context.Context) ([]*models.Building, error)
	CreateBuilding(ctx context.Context, b *models.Building) error
	UpdateBuilding(ctx context.Context, b *models.Building) error
	DeleteBuilding(ctx context.Context, id uuid.UUID) error

	GetMasterProperty(ctx context.Context, id uuid.UUID) (*models.MasterProperty, error)
	LockMasterProperty(ctx context.Context, id uuid.UUID) (*models.MasterProperty, error)
	ListMasterPropertiesByBuilding(ctx context.Context, buildingID uuid.UUID) ([]*models.MasterProperty, error)
	CreateMasterProperty(ctx context.Context, p *models.MasterProperty) error
	UpdateMasterProperty(ctx context.Context, p *models.MasterProperty) error
	DeleteMasterProperty(ctx context.Context, id uuid.UUID) error

	GetListingBySource(ctx context.Context, sourceSite, sitePropertyID string) (*models.Listing, error)
	GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	LockListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	ListListingsByMasterProperty(ctx context.Context, masterPropertyID uuid.UUID) ([]*models.Listing, error)
	CreateListing(ctx context.Context, l *models.Listing) error
	UpdateListing(ctx context.Context, l *models.Listing) error
	ListStaleActiveListings(ctx context.Context, olderThan time.Time, limit int) ([]*models.Listing, error)
	ListReopenableListings(ctx context.Context, confirmedAfter time.Time, limit int) ([]*models.Listing, error)

	AppendPriceHistory(ctx context.Context, ph *models.PriceHistory) error
	GetLastPriceHistory(ctx context.Context, listingID uuid.UUID) (*models.PriceHistory, error)
	ListPriceHistoryForListing(ctx context.Context, listingID uuid.UUID) ([]*models.PriceHistory, error)
	ListPriceHistoryForMasterProperty(ctx context.Context, masterPropertyID uuid.UUID) ([]*models.PriceHistory, error)

	AppendPropertyPriceChange(ctx context.Context, c *models.PropertyPriceChange) error
	GetLastPropertyPriceChange(ctx context.Context, masterPropertyID uuid.UUID) (*models.PropertyPriceChange, error)

	CreateBuildingExternalID(ctx context.Context, e *models.BuildingExternalID) error
	ListBuildingExternalIDs(ctx context.Context, buildingID uuid.UUID) ([]*models.BuildingExternalID, error)
	RewriteBuildingExternalIDs(ctx context.Context, fromBuildingID, toBuildingID uuid.UUID) error

	UpsertAliasEntry(ctx context.Context, buildingID uuid.UUID, canonicalName, displayName, sourceSite string, seenAt time.Time) error
	SetAliasEntry(ctx context.Context, entry *models.AliasEntry) error
	ListAliasEntries(ctx context.Context, buildingID uuid.UUID) ([]*models.AliasEntry, error)
	DeleteAliasEntries(ctx context.Context, buildingID uuid.UUID) error

	CreateMergeHistory(ctx context.Context, h *models.MergeHistory) (int64, error)
	GetMergeHistory(ctx context.Context, id int64) (*models.MergeHistory, error)
	MarkMergeReverted(ctx context.Context, id int64, revertedAt time.Time) error
	RewriteMergeHistoryPrimary(ctx context.Context, kind models.MergeKind, oldPrimary, newPrimary uuid.UUID) error

	CreateMergeExclusion(ctx context.Context, e *models.MergeExclusion) error
	IsExcluded(ctx context.Context, kind models.MergeKind, a, b uuid.UUID) (bool, error)
	ListMergeExclusions(ctx context.Context, kind models.MergeKind) ([]*models.MergeExclusion, error)
	DeleteMergeExclusionsMentioning(ctx context.Context, kind models.MergeKind, id uuid.UUID) error
}

// ErrNotFound is returned by Get*/Lock* methods when no row matches.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "store: not found" }
