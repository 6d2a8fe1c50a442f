// Package lifecycle drives the sold/active transitions, final_price
// computation, and derived-timestamp refreshes of spec.md §4.5, generalised
// from the teacher's healthcheck worker's stale-threshold scan and
// touch/mark-inactive transitions.
package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"condocore/aggregate"
	"condocore/models"
	"condocore/store"
)

// Engine applies lifecycle transitions against a Store, re-running the
// Aggregator on any MasterProperty it touches.
type Engine struct {
	Store            store.Store
	Aggregate        *aggregate.Engine
	StalledThreshold time.Duration
	FinalPriceWindow time.Duration
}

// NewEngine returns an Engine using the given thresholds (config.CoreConfig's
// StalledListingThreshold/FinalPriceWindow).
func NewEngine(st store.Store, agg *aggregate.Engine, stalledThreshold, finalPriceWindow time.Duration) *Engine {
	return &Engine{Store: st, Aggregate: agg, StalledThreshold: stalledThreshold, FinalPriceWindow: finalPriceWindow}
}

// Reconfirm is called after every listing sighting (resolve's listing
// step). A listing that was inactive reopens: is_active=true,
// delisted_at=NULL, and its master property's sold_at/final_price clear —
// the re-open half of §4.5's second transition. An already-active listing
// is a no-op here; last_confirmed_at bookkeeping is the caller's job.
func (e *Engine) Reconfirm(ctx context.Context, listingID uuid.UUID) error {
	l, err := e.Store.GetListing(ctx, listingID)
	if err != nil {
		return err
	}
	if l.IsActive {
		return nil
	}

	now := time.Now()
	l.IsActive = true
	l.DelistedAt = nil
	l.UpdatedAt = now
	if err := e.Store.UpdateListing(ctx, l); err != nil {
		return err
	}

	prop, err := e.Store.GetMasterProperty(ctx, l.MasterPropertyID)
	if err != nil {
		return err
	}
	if prop.SoldAt != nil {
		prop.SoldAt = nil
		prop.FinalPrice = nil
		prop.UpdatedAt = now
		if err := e.Store.UpdateMasterProperty(ctx, prop); err != nil {
			return err
		}
	}

	return e.Aggregate.RefreshMasterProperty(ctx, l.MasterPropertyID)
}

// SweepStaleListings transitions every active listing whose
// last_confirmed_at is older than StalledThreshold to is_active=false,
// delisted_at=now, then re-aggregates and re-evaluates sold status for
// every touched MasterProperty. Returns the count of listings transitioned.
func (e *Engine) SweepStaleListings(ctx context.Context, now time.Time, batchSize int) (int, error) {
	cutoff := now.Add(-e.StalledThreshold)
	stale, err := e.Store.ListStaleActiveListings(ctx, cutoff, batchSize)
	if err != nil {
		return 0, err
	}

	touched := make(map[uuid.UUID]struct{}, len(stale))
	for _, l := range stale {
		l.IsActive = false
		delistedAt := now
		l.DelistedAt = &delistedAt
		l.UpdatedAt = now
		if err := e.Store.UpdateListing(ctx, l); err != nil {
			return 0, err
		}
		touched[l.MasterPropertyID] = struct{}{}
	}

	for propID := range touched {
		if err := e.Aggregate.RefreshMasterProperty(ctx, propID); err != nil {
			return 0, err
		}
		if err := e.EvaluateSoldStatus(ctx, propID, now); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

// EvaluateSoldStatus applies lifecycle invariants 1 and 2: a property all
// of whose listings are non-active becomes sold (sold_at = max delisted_at,
// final_price per computeFinalPrice); a property that regained an active
// listing clears sold_at/final_price.
func (e *Engine) EvaluateSoldStatus(ctx context.Context, masterPropertyID uuid.UUID, now time.Time) error {
	listings, err := e.Store.ListListingsByMasterProperty(ctx, masterPropertyID)
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		return nil
	}

	prop, err := e.Store.GetMasterProperty(ctx, masterPropertyID)
	if err != nil {
		return err
	}

	anyActive := false
	var soldAt time.Time
	for _, l := range listings {
		if l.IsActive {
			anyActive = true
			continue
		}
		if l.DelistedAt != nil && l.DelistedAt.After(soldAt) {
			soldAt = *l.DelistedAt
		}
	}

	if anyActive {
		if prop.SoldAt == nil {
			return nil
		}
		prop.SoldAt = nil
		prop.FinalPrice = nil
		prop.UpdatedAt = now
		return e.Store.UpdateMasterProperty(ctx, prop)
	}

	if soldAt.IsZero() {
		return nil
	}

	finalPrice, err := e.computeFinalPrice(ctx, listings, soldAt)
	if err != nil {
		return err
	}

	prop.SoldAt = &soldAt
	prop.FinalPrice = finalPrice
	prop.UpdatedAt = now
	return e.Store.UpdateMasterProperty(ctx, prop)
}

// computeFinalPrice implements §3 invariant 2: the mode of PriceHistory
// rows across all of the property's listings within
// [sold_at-FinalPriceWindow, sold_at]; falling back to the most-recently
// updated listing's current_price when that window holds no observations.
func (e *Engine) computeFinalPrice(ctx context.Context, listings []*models.Listing, soldAt time.Time) (*int, error) {
	windowStart := soldAt.Add(-e.FinalPriceWindow)

	var ballots []aggregate.Ballot[int]
	for _, l := range listings {
		history, err := e.Store.ListPriceHistoryForListing(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		for _, ph := range history {
			if ph.RecordedAt.Before(windowStart) || ph.RecordedAt.After(soldAt) {
				continue
			}
			ballots = append(ballots, aggregate.Ballot[int]{Value: ph.Price, ObservedAt: ph.RecordedAt})
		}
	}

	if price, ok := aggregate.Mode(ballots, func(a, b int) bool { return a < b }); ok {
		return &price, nil
	}

	var latest *models.Listing
	for _, l := range listings {
		if latest == nil || l.UpdatedAt.After(latest.UpdatedAt) {
			latest = l
		}
	}
	if latest != nil {
		return latest.CurrentPrice, nil
	}
	return nil, nil
}

// RefreshDerivedTimestamps recomputes earliest_listing_date (§3 invariant
// 3) for a MasterProperty from its listings' observation timestamps.
func (e *Engine) RefreshDerivedTimestamps(ctx context.Context, masterPropertyID uuid.UUID) error {
	listings, err := e.Store.ListListingsByMasterProperty(ctx, masterPropertyID)
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		return nil
	}

	earliest := listings[0].EarliestDate()
	for _, l := range listings[1:] {
		if d := l.EarliestDate(); d.Before(earliest) {
			earliest = d
		}
	}

	prop, err := e.Store.GetMasterProperty(ctx, masterPropertyID)
	if err != nil {
		return err
	}
	prop.EarliestListingDate = &earliest
	prop.UpdatedAt = time.Now()
	return e.Store.UpdateMasterProperty(ctx, prop)
}
