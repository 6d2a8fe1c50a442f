package aggregate

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"condocore/models"
	"condocore/store"
)

// Engine runs the majority-vote aggregation of spec.md §4.4 against a
// Store. It writes through to the owner row and never reads back its own
// writes when assembling ballots for a given call — every ballot comes
// from Listing rows.
type Engine struct {
	Store store.Store
}

// NewEngine returns an Engine bound to st.
func NewEngine(st store.Store) *Engine {
	return &Engine{Store: st}
}

// RefreshMasterProperty recomputes current_price from the property's
// active listings (invariant 4: mode over active listings; ties follow
// Mode's order — most recently confirmed price first, then lowest price).
// A PropertyPriceChange row is appended only when the majority price
// actually changed.
func (e *Engine) RefreshMasterProperty(ctx context.Context, masterPropertyID uuid.UUID) error {
	listings, err := e.Store.ListListingsByMasterProperty(ctx, masterPropertyID)
	if err != nil {
		return err
	}

	var priceBallots []Ballot[int]
	for _, l := range listings {
		if !l.IsActive || l.CurrentPrice == nil {
			continue
		}
		priceBallots = append(priceBallots, Ballot[int]{Value: *l.CurrentPrice, ObservedAt: l.LastConfirmedAt})
	}
	newPrice, ok := Mode(priceBallots, LessInt)

	prop, err := e.Store.GetMasterProperty(ctx, masterPropertyID)
	if err != nil {
		return err
	}

	oldPrice := prop.CurrentPrice
	if ok {
		v := newPrice
		prop.CurrentPrice = &v
	} else {
		prop.CurrentPrice = nil
	}
	prop.UpdatedAt = time.Now()

	priceChanged := ok && (oldPrice == nil || *oldPrice != newPrice)
	if priceChanged {
		now := time.Now()
		if err := e.Store.AppendPropertyPriceChange(ctx, &models.PropertyPriceChange{
			MasterPropertyID: masterPropertyID,
			ChangeDate:       now,
			NewMajorityPrice: newPrice,
		}); err != nil {
			return err
		}
		prop.LatestPriceChangeAt = &now
	}

	return e.Store.UpdateMasterProperty(ctx, prop)
}

// RefreshBuilding recomputes a Building's canonical attributes from the
// ballot fields (listing_total_floors, listing_built_year, …) of the
// active listings across every MasterProperty it owns.
func (e *Engine) RefreshBuilding(ctx context.Context, buildingID uuid.UUID) error {
	props, err := e.Store.ListMasterPropertiesByBuilding(ctx, buildingID)
	if err != nil {
		return err
	}

	var floors, basements, years, months, units []Ballot[int]
	for _, p := range props {
		listings, err := e.Store.ListListingsByMasterProperty(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, l := range listings {
			if !l.IsActive {
				continue
			}
			if l.ListingTotalFloors != nil {
				floors = append(floors, Ballot[int]{Value: *l.ListingTotalFloors, ObservedAt: l.LastConfirmedAt})
			}
			if l.ListingBasementFloors != nil {
				basements = append(basements, Ballot[int]{Value: *l.ListingBasementFloors, ObservedAt: l.LastConfirmedAt})
			}
			if l.ListingBuiltYear != nil {
				years = append(years, Ballot[int]{Value: *l.ListingBuiltYear, ObservedAt: l.LastConfirmedAt})
			}
			if l.ListingBuiltMonth != nil {
				months = append(months, Ballot[int]{Value: *l.ListingBuiltMonth, ObservedAt: l.LastConfirmedAt})
			}
			if l.ListingTotalUnits != nil {
				units = append(units, Ballot[int]{Value: *l.ListingTotalUnits, ObservedAt: l.LastConfirmedAt})
			}
		}
	}

	b, err := e.Store.GetBuilding(ctx, buildingID)
	if err != nil {
		return err
	}

	b.TotalFloors = modePtr(floors)
	b.BasementFloors = modePtr(basements)
	b.BuiltYear = modePtr(years)
	b.BuiltMonth = modePtr(months)
	b.TotalUnits = modePtr(units)
	b.UpdatedAt = time.Now()

	return e.Store.UpdateBuilding(ctx, b)
}

func modePtr(ballots []Ballot[int]) *int {
	v, ok := Mode(ballots, LessInt)
	if !ok {
		return nil
	}
	return &v
}

// RefreshPriceTimeline reconstructs the day-by-day majority price sequence
// for a master property over the union of its listings' active windows
// (§4.4's carry-forward rule) and appends a PropertyPriceChange for every
// day whose majority differs from the day before. It is a batch/backfill
// operation over the full history — day-to-day progression during normal
// ingest is handled by RefreshMasterProperty instead, which is the path
// callers should use on every resolve.
func (e *Engine) RefreshPriceTimeline(ctx context.Context, masterPropertyID uuid.UUID) error {
	listings, err := e.Store.ListListingsByMasterProperty(ctx, masterPropertyID)
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		return nil
	}

	history, err := e.Store.ListPriceHistoryForMasterProperty(ctx, masterPropertyID)
	if err != nil {
		return err
	}
	byListing := make(map[uuid.UUID][]*models.PriceHistory, len(listings))
	for _, ph := range history {
		byListing[ph.ListingID] = append(byListing[ph.ListingID], ph)
	}
	for _, entries := range byListing {
		sort.Slice(entries, func(i, j int) bool { return entries[i].RecordedAt.Before(entries[j].RecordedAt) })
	}

	start := truncateDay(listings[0].FirstSeenAt)
	end := truncateDay(time.Now())
	for _, l := range listings {
		if fs := truncateDay(l.FirstSeenAt); fs.Before(start) {
			start = fs
		}
		if l.DelistedAt != nil {
			if de := truncateDay(*l.DelistedAt); de.After(end) {
				end = de
			}
		}
	}

	var prevValue int
	havePrev := false
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		var ballots []Ballot[int]
		for _, l := range listings {
			if d.Before(truncateDay(l.FirstSeenAt)) {
				continue
			}
			if l.DelistedAt != nil && d.After(truncateDay(*l.DelistedAt)) {
				continue
			}
			price, at, ok := latestPriceOnOrBefore(byListing[l.ID], d)
			if !ok {
				continue
			}
			ballots = append(ballots, Ballot[int]{Value: price, ObservedAt: at})
		}
		majority, ok := Mode(ballots, LessInt)
		if !ok {
			continue
		}
		if havePrev && majority == prevValue {
			continue
		}
		if err := e.Store.AppendPropertyPriceChange(ctx, &models.PropertyPriceChange{
			MasterPropertyID: masterPropertyID,
			ChangeDate:       d,
			NewMajorityPrice: majority,
		}); err != nil {
			return err
		}
		prevValue, havePrev = majority, true
	}

	return nil
}

// latestPriceOnOrBefore returns the most recent recorded price at or
// before day, from a listing's chronologically sorted price history.
func latestPriceOnOrBefore(entries []*models.PriceHistory, day time.Time) (int, time.Time, bool) {
	var best *models.PriceHistory
	cutoff := day.AddDate(0, 0, 1)
	for _, e := range entries {
		if !e.RecordedAt.Before(cutoff) {
			break
		}
		if best == nil || e.RecordedAt.After(best.RecordedAt) {
			best = e
		}
	}
	if best == nil {
		return 0, time.Time{}, false
	}
	return best.Price, best.RecordedAt, true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
