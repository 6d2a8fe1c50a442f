// Package alias maintains the per-building multiset of every listing-name
// observed (spec.md §4.8), grounded on the teacher's per-sighting
// ON CONFLICT upsert shape and its idempotent rebuild-on-miss pattern.
package alias

import (
	"context"
	"time"

	"github.com/google/uuid"

	"condocore/models"
	"condocore/normalize"
	"condocore/store"
)

// Ledger maintains AliasEntry rows for buildings.
type Ledger struct {
	Store store.Store
}

// NewLedger returns a Ledger bound to st.
func NewLedger(st store.Store) *Ledger {
	return &Ledger{Store: st}
}

// Observe folds one listing sighting's building name into the ledger: a
// first sighting of a canonical name inserts occurrence_count=1, a repeat
// increments it and extends source_sites. Station-noise names are never
// written — the listing still resolves and ingests normally.
func (l *Ledger) Observe(ctx context.Context, buildingID uuid.UUID, canonicalName, displayName, sourceSite string, stationNoise bool, seenAt time.Time) error {
	if stationNoise || canonicalName == "" {
		return nil
	}
	return l.Store.UpsertAliasEntry(ctx, buildingID, canonicalName, displayName, sourceSite, seenAt)
}

// Refresh idempotently rebuilds a building's alias ledger from its current
// listings: delete every existing entry, then re-insert one row per
// distinct canonical_name, choosing the most-frequently-seen display form
// and the union of source sites. Called after merge/split/move/revert,
// where the listing set behind a building has changed wholesale.
func (l *Ledger) Refresh(ctx context.Context, buildingID uuid.UUID) error {
	props, err := l.Store.ListMasterPropertiesByBuilding(ctx, buildingID)
	if err != nil {
		return err
	}

	type accumulator struct {
		canonicalName string
		displayCounts map[string]int
		sources       map[string]struct{}
		occurrences   int
		firstSeenAt   time.Time
		lastSeenAt    time.Time
	}
	byName := make(map[string]*accumulator)
	order := make([]string, 0)

	for _, p := range props {
		listings, err := l.Store.ListListingsByMasterProperty(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, lst := range listings {
			if lst.ListingBuildingName == "" {
				continue
			}
			_, canonical := normalize.BuildingName(lst.ListingBuildingName)
			if canonical == "" {
				continue
			}

			acc, ok := byName[canonical]
			if !ok {
				acc = &accumulator{
					canonicalName: canonical,
					displayCounts: make(map[string]int),
					sources:       make(map[string]struct{}),
					firstSeenAt:   lst.FirstSeenAt,
					lastSeenAt:    lst.LastConfirmedAt,
				}
				byName[canonical] = acc
				order = append(order, canonical)
			}
			acc.occurrences++
			acc.displayCounts[lst.ListingBuildingName]++
			acc.sources[lst.SourceSite] = struct{}{}
			if lst.FirstSeenAt.Before(acc.firstSeenAt) {
				acc.firstSeenAt = lst.FirstSeenAt
			}
			if lst.LastConfirmedAt.After(acc.lastSeenAt) {
				acc.lastSeenAt = lst.LastConfirmedAt
			}
		}
	}

	if err := l.Store.DeleteAliasEntries(ctx, buildingID); err != nil {
		return err
	}

	for _, canonical := range order {
		acc := byName[canonical]
		display := mostFrequentDisplay(acc.displayCounts)
		sources := make([]string, 0, len(acc.sources))
		for s := range acc.sources {
			sources = append(sources, s)
		}
		entry := &models.AliasEntry{
			BuildingID:      buildingID,
			CanonicalName:   canonical,
			DisplayName:     display,
			SourceSites:     sources,
			OccurrenceCount: acc.occurrences,
			FirstSeenAt:     acc.firstSeenAt,
			LastSeenAt:      acc.lastSeenAt,
		}
		if err := l.Store.SetAliasEntry(ctx, entry); err != nil {
			return err
		}
	}

	return nil
}

func mostFrequentDisplay(counts map[string]int) string {
	var best string
	bestCount := -1
	for name, c := range counts {
		if c > bestCount || (c == bestCount && name < best) {
			best, bestCount = name, c
		}
	}
	return best
}
