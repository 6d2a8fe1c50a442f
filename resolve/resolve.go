// Package resolve implements the entity-resolution engine (spec.md §4.3):
// given a normalised listing sighting, find or create the building and
// master-property it belongs to, upsert the listing itself, and detect
// mis-attachment. Grounded on the teacher's ProcessListing fan-out shape
// in services/listing.go (find-or-create property, then find-or-create
// listing, then derived-event bookkeeping), generalised from a flat
// property/listing model into the spec's building → master-property →
// listing hierarchy.
package resolve

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"condocore/aggregate"
	"condocore/alias"
	"condocore/lifecycle"
	"condocore/models"
	"condocore/normalize"
	"condocore/store"
)

// Engine resolves RawListings into the canonical building/master-property/
// listing graph, writing through the Store and re-running the Aggregator,
// Lifecycle, and Alias ledger on every entity it touches.
type Engine struct {
	Store      store.Store
	Normalizer *normalize.Engine
	Aggregate  *aggregate.Engine
	Lifecycle  *lifecycle.Engine
	Alias      *alias.Ledger
}

// NewEngine wires the Resolver to its collaborators.
func NewEngine(st store.Store, norm *normalize.Engine, agg *aggregate.Engine, lc *lifecycle.Engine, al *alias.Ledger) *Engine {
	return &Engine{Store: st, Normalizer: norm, Aggregate: agg, Lifecycle: lc, Alias: al}
}

const stationNoisePlaceholder = "\x00STATION-NOISE"

// Resolve is the single entrypoint satisfying the scraper input contract
// of spec.md §6: normalise raw, find or create the building and
// master-property, upsert the listing, and re-run the Aggregator,
// Lifecycle and Alias ledger on whatever it touched.
func (e *Engine) Resolve(ctx context.Context, raw *models.RawListing) (models.ResolveResult, error) {
	n := e.Normalizer.Normalise(raw)

	var result models.ResolveResult
	err := e.Store.Tx(ctx, func(ctx context.Context, st store.Store) error {
		building, created, err := e.resolveBuilding(ctx, st, raw, n)
		if err != nil {
			return err
		}
		result.CreatedBuilding = created

		property, propCreated, reattached, err := e.resolveMasterProperty(ctx, st, building, raw, n)
		if err != nil {
			return err
		}
		result.CreatedProperty = propCreated
		result.Reattached = reattached

		listing, err := e.resolveListing(ctx, st, property.ID, raw, n)
		if err != nil {
			return err
		}

		if err := e.observeAlias(ctx, st, building.ID, raw, n); err != nil {
			return err
		}

		if !propCreated {
			moved, newBuildingID, err := e.checkMisattachment(ctx, st, building, property, raw, n)
			if err != nil {
				return err
			}
			if moved {
				building = mustGetBuilding(ctx, st, newBuildingID)
			}
		}

		if err := e.Aggregate.RefreshMasterProperty(ctx, property.ID); err != nil {
			return err
		}
		if err := e.Aggregate.RefreshBuilding(ctx, building.ID); err != nil {
			return err
		}
		if err := e.Lifecycle.EvaluateSoldStatus(ctx, property.ID, time.Now()); err != nil {
			return err
		}
		if err := e.Lifecycle.RefreshDerivedTimestamps(ctx, property.ID); err != nil {
			return err
		}

		result.BuildingID = building.ID.String()
		result.MasterPropertyID = property.ID.String()
		result.ListingID = listing.ID.String()
		return nil
	})
	return result, err
}

func mustGetBuilding(ctx context.Context, st store.Store, id uuid.UUID) *models.Building {
	b, err := st.GetBuilding(ctx, id)
	if err != nil {
		log.Printf("Warning: mis-attachment target building %s vanished mid-transaction: %v", id, err)
		return &models.Building{ID: id}
	}
	return b
}

// resolveBuilding implements §4.3's building step.
func (e *Engine) resolveBuilding(ctx context.Context, st store.Store, raw *models.RawListing, n normalize.Listing) (*models.Building, bool, error) {
	searchKey := n.CanonicalBuildingName
	if n.StationNoise || searchKey == "" {
		searchKey = stationNoisePlaceholder
	}

	candidates, err := st.FindBuildingsByCanonicalName(ctx, searchKey)
	if err != nil {
		return nil, false, err
	}

	type scored struct {
		b          *models.Building
		exactAddr  bool
		propCount  int
	}
	var passing []scored
	for _, b := range candidates {
		if b.NormalizedAddress != n.NormalisedAddress && !normalize.IsPrefixChainPartner(b.NormalizedAddress, n.NormalisedAddress) {
			continue
		}
		floors, year, units, ok := b.Triple()
		if !ok {
			continue
		}
		if n.ListingTotalFloors == nil || n.ListingBuiltYear == nil || n.ListingTotalUnits == nil {
			continue
		}
		if floors != *n.ListingTotalFloors || year != *n.ListingBuiltYear || units != *n.ListingTotalUnits {
			continue
		}
		props, err := st.ListMasterPropertiesByBuilding(ctx, b.ID)
		if err != nil {
			return nil, false, err
		}
		passing = append(passing, scored{b: b, exactAddr: b.NormalizedAddress == n.NormalisedAddress, propCount: len(props)})
	}

	if len(passing) > 0 {
		best := passing[0]
		for _, c := range passing[1:] {
			if better(c, best) {
				best = c
			}
		}
		return best.b, false, nil
	}

	now := time.Now()
	building := &models.Building{
		ID:                uuid.New(),
		CanonicalName:     n.CanonicalBuildingName,
		NormalizedName:    n.NormalisedBuildingName,
		Address:           raw.ListingAddress,
		NormalizedAddress: n.NormalisedAddress,
		TotalFloors:       n.ListingTotalFloors,
		BasementFloors:    n.ListingBasementFloors,
		BuiltYear:         n.ListingBuiltYear,
		BuiltMonth:        n.ListingBuiltMonth,
		TotalUnits:        n.ListingTotalUnits,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := st.CreateBuilding(ctx, building); err != nil {
		return nil, false, err
	}
	return building, true, nil
}

type buildingCandidate = struct {
	b         *models.Building
	exactAddr bool
	propCount int
}

func better(c, best buildingCandidate) bool {
	if c.exactAddr != best.exactAddr {
		return c.exactAddr
	}
	if c.propCount != best.propCount {
		return c.propCount > best.propCount
	}
	return c.b.ID.String() < best.b.ID.String()
}

// resolveMasterProperty implements §4.3's master-property step.
func (e *Engine) resolveMasterProperty(ctx context.Context, st store.Store, building *models.Building, raw *models.RawListing, n normalize.Listing) (*models.MasterProperty, bool, bool, error) {
	props, err := st.ListMasterPropertiesByBuilding(ctx, building.ID)
	if err != nil {
		return nil, false, false, err
	}

	incomingKey, haveIncomingKey := unitKeyOf(n)
	for _, p := range props {
		if !haveIncomingKey {
			break
		}
		key, ok := p.Key()
		if !ok || key != incomingKey {
			continue
		}
		roomNumber := n.RoomNumber
		if roomNumber == "" {
			roomNumber = n.RoomNumberFromName
		}
		if p.RoomNumber != "" && roomNumber != "" && p.RoomNumber != roomNumber {
			continue
		}

		reattached := false
		if p.SoldAt != nil {
			p.SoldAt = nil
			p.FinalPrice = nil
			reattached = true
		}
		p.UpdatedAt = time.Now()
		if err := st.UpdateMasterProperty(ctx, p); err != nil {
			return nil, false, false, err
		}
		return p, false, reattached, nil
	}

	now := time.Now()
	roomNumber := n.RoomNumber
	if roomNumber == "" {
		roomNumber = n.RoomNumberFromName
	}
	property := &models.MasterProperty{
		ID:                  uuid.New(),
		BuildingID:          building.ID,
		FloorNumber:         n.FloorNumber,
		AreaM2:              n.AreaM2,
		Layout:              n.Layout,
		Direction:           n.Direction,
		RoomNumber:          roomNumber,
		BalconyAreaM2:       n.BalconyAreaM2,
		ManagementFee:       n.ManagementFee,
		RepairFund:          n.RepairFund,
		DisplayBuildingName: n.NormalisedBuildingName,
		IsResale:            raw.IsResale,
		TransactionType:     raw.TransactionType,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := st.CreateMasterProperty(ctx, property); err != nil {
		return nil, false, false, err
	}
	return property, true, false, nil
}

func unitKeyOf(n normalize.Listing) (models.UnitKey, bool) {
	if n.FloorNumber == nil || n.AreaM2 == nil {
		return models.UnitKey{}, false
	}
	return models.UnitKey{
		FloorNumber: *n.FloorNumber,
		HalfArea:    models.HalfUnitArea(*n.AreaM2),
		Layout:      n.Layout,
		Direction:   n.Direction,
	}, true
}

// resolveListing implements §4.3's listing step.
func (e *Engine) resolveListing(ctx context.Context, st store.Store, masterPropertyID uuid.UUID, raw *models.RawListing, n normalize.Listing) (*models.Listing, error) {
	now := raw.ObservedAt
	if now.IsZero() {
		now = time.Now()
	}

	existing, err := st.GetListingBySource(ctx, raw.SourceSite, raw.SitePropertyID)
	if err != nil && err != store.ErrNotFound {
		return nil, err
	}

	if existing == nil {
		listing := &models.Listing{
			ID:                    uuid.New(),
			SourceSite:            raw.SourceSite,
			SitePropertyID:        raw.SitePropertyID,
			URL:                   raw.URL,
			MasterPropertyID:      masterPropertyID,
			IsActive:              true,
			CurrentPrice:          n.CurrentPrice,
			ListingBuildingName:   raw.ListingBuildingName,
			FirstSeenAt:           now,
			LastConfirmedAt:       now,
			PublishedAt:           raw.PublishedAt,
			FirstPublishedAt:      raw.FirstPublishedAt,
			ListingTotalFloors:    n.ListingTotalFloors,
			ListingBasementFloors: n.ListingBasementFloors,
			ListingBuiltYear:      n.ListingBuiltYear,
			ListingBuiltMonth:     n.ListingBuiltMonth,
			ListingTotalUnits:     n.ListingTotalUnits,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := st.CreateListing(ctx, listing); err != nil {
			return nil, err
		}
		if n.CurrentPrice != nil {
			if err := st.AppendPriceHistory(ctx, &models.PriceHistory{ListingID: listing.ID, RecordedAt: now, Price: *n.CurrentPrice}); err != nil {
				return nil, err
			}
		}
		return listing, nil
	}

	if existing.MasterPropertyID != masterPropertyID {
		log.Printf("Warning: listing (%s,%s) resolved to a different master property than last time; later write wins",
			raw.SourceSite, raw.SitePropertyID)
	}

	reconfirming := !existing.IsActive
	priceChanged := n.CurrentPrice != nil && (existing.CurrentPrice == nil || *existing.CurrentPrice != *n.CurrentPrice)

	existing.MasterPropertyID = masterPropertyID
	existing.URL = raw.URL
	existing.IsActive = true
	existing.DelistedAt = nil
	existing.CurrentPrice = n.CurrentPrice
	existing.ListingBuildingName = raw.ListingBuildingName
	existing.LastConfirmedAt = now
	existing.ListingTotalFloors = n.ListingTotalFloors
	existing.ListingBasementFloors = n.ListingBasementFloors
	existing.ListingBuiltYear = n.ListingBuiltYear
	existing.ListingBuiltMonth = n.ListingBuiltMonth
	existing.ListingTotalUnits = n.ListingTotalUnits
	existing.UpdatedAt = now
	if existing.PublishedAt == nil {
		existing.PublishedAt = raw.PublishedAt
	}
	if existing.FirstPublishedAt == nil {
		existing.FirstPublishedAt = raw.FirstPublishedAt
	}

	if err := st.UpdateListing(ctx, existing); err != nil {
		return nil, err
	}
	if priceChanged {
		if err := st.AppendPriceHistory(ctx, &models.PriceHistory{ListingID: existing.ID, RecordedAt: now, Price: *n.CurrentPrice}); err != nil {
			return nil, err
		}
	}
	if reconfirming {
		if err := e.Lifecycle.Reconfirm(ctx, existing.ID); err != nil {
			return nil, err
		}
	}
	return existing, nil
}

func (e *Engine) observeAlias(ctx context.Context, st store.Store, buildingID uuid.UUID, raw *models.RawListing, n normalize.Listing) error {
	seenAt := raw.ObservedAt
	if seenAt.IsZero() {
		seenAt = time.Now()
	}
	return e.Alias.Observe(ctx, buildingID, n.CanonicalBuildingName, n.NormalisedBuildingName, raw.SourceSite, n.StationNoise, seenAt)
}

// checkMisattachment implements §4.3's mis-attachment detection: compare
// the incoming observation with the building's stored triple; ≥2 of 3
// disagreements flags a move, whose target is chosen from the triple
// ballots tallied across the building's listings.
func (e *Engine) checkMisattachment(ctx context.Context, st store.Store, building *models.Building, property *models.MasterProperty, raw *models.RawListing, n normalize.Listing) (bool, uuid.UUID, error) {
	if n.ListingTotalFloors == nil || n.ListingBuiltYear == nil || n.ListingTotalUnits == nil {
		return false, uuid.Nil, nil
	}
	floors, year, units, ok := building.Triple()
	if !ok {
		return false, uuid.Nil, nil
	}

	disagreements := 0
	if floors != *n.ListingTotalFloors {
		disagreements++
	}
	if year != *n.ListingBuiltYear {
		disagreements++
	}
	if units != *n.ListingTotalUnits {
		disagreements++
	}
	if disagreements < 2 {
		return false, uuid.Nil, nil
	}

	ballots, err := e.buildingTripleBallots(ctx, st, building.ID)
	if err != nil {
		return false, uuid.Nil, err
	}

	candidates, err := st.FindBuildingsByCanonicalName(ctx, n.CanonicalBuildingName)
	if err != nil {
		return false, uuid.Nil, err
	}
	for _, cand := range candidates {
		if cand.ID == building.ID {
			continue
		}
		if cand.NormalizedAddress != n.NormalisedAddress && !normalize.IsPrefixChainPartner(cand.NormalizedAddress, n.NormalisedAddress) {
			continue
		}
		cf, cy, cu, ok := cand.Triple()
		if !ok {
			continue
		}
		if cf == ballots.floors && cy == ballots.year && cu == ballots.units {
			property.BuildingID = cand.ID
			property.UpdatedAt = time.Now()
			if err := st.UpdateMasterProperty(ctx, property); err != nil {
				return false, uuid.Nil, err
			}
			if err := e.Aggregate.RefreshBuilding(ctx, building.ID); err != nil {
				return false, uuid.Nil, err
			}
			if err := e.Aggregate.RefreshBuilding(ctx, cand.ID); err != nil {
				return false, uuid.Nil, err
			}
			return true, cand.ID, nil
		}
	}

	now := time.Now()
	newBuilding := &models.Building{
		ID:                uuid.New(),
		CanonicalName:     n.CanonicalBuildingName,
		NormalizedName:    n.NormalisedBuildingName,
		Address:           raw.ListingAddress,
		NormalizedAddress: n.NormalisedAddress,
		TotalFloors:       &ballots.floors,
		BuiltYear:         &ballots.year,
		TotalUnits:        &ballots.units,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := st.CreateBuilding(ctx, newBuilding); err != nil {
		return false, uuid.Nil, err
	}
	property.BuildingID = newBuilding.ID
	property.UpdatedAt = now
	if err := st.UpdateMasterProperty(ctx, property); err != nil {
		return false, uuid.Nil, err
	}
	if err := e.Aggregate.RefreshBuilding(ctx, building.ID); err != nil {
		return false, uuid.Nil, err
	}
	return true, newBuilding.ID, nil
}

type tripleBallots struct {
	floors, year, units int
}

func (e *Engine) buildingTripleBallots(ctx context.Context, st store.Store, buildingID uuid.UUID) (tripleBallots, error) {
	props, err := st.ListMasterPropertiesByBuilding(ctx, buildingID)
	if err != nil {
		return tripleBallots{}, err
	}

	var floors, years, units []aggregate.Ballot[int]
	for _, p := range props {
		listings, err := st.ListListingsByMasterProperty(ctx, p.ID)
		if err != nil {
			return tripleBallots{}, err
		}
		for _, l := range listings {
			if !l.IsActive {
				continue
			}
			if l.ListingTotalFloors != nil {
				floors = append(floors, aggregate.Ballot[int]{Value: *l.ListingTotalFloors, ObservedAt: l.LastConfirmedAt})
			}
			if l.ListingBuiltYear != nil {
				years = append(years, aggregate.Ballot[int]{Value: *l.ListingBuiltYear, ObservedAt: l.LastConfirmedAt})
			}
			if l.ListingTotalUnits != nil {
				units = append(units, aggregate.Ballot[int]{Value: *l.ListingTotalUnits, ObservedAt: l.LastConfirmedAt})
			}
		}
	}

	f, _ := aggregate.Mode(floors, aggregate.LessInt)
	y, _ := aggregate.Mode(years, aggregate.LessInt)
	u, _ := aggregate.Mode(units, aggregate.LessInt)
	return tripleBallots{floors: f, year: y, units: u}, nil
}

// ErrUnresolvable wraps a Resolve failure naming the raw listing that
// could not be placed, for callers that need to log and skip rather than
// abort the whole ingest run.
type ErrUnresolvable struct {
	SourceSite     string
	SitePropertyID string
	Cause          error
}

func (e *ErrUnresolvable) Error() string {
	return "resolve: " + e.SourceSite + "/" + e.SitePropertyID + ": " + e.Cause.Error()
}

func (e *ErrUnresolvable) Unwrap() error { return e.Cause }
