package alias

import (
	"context"
	"testing"
	"time"

	"condocore/models"
	"condocore/store"
)

func TestObserveSkipsStationNoise(t *testing.T) {
	ctx := context.Background()
	st := store.NewFakeStore()
	b := &models.Building{CanonicalName: "X", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := st.CreateBuilding(ctx, b); err != nil {
		t.Fatalf("create building: %v", err)
	}
	l := NewLedger(st)
	if err := l.Observe(ctx, b.ID, "SOMENAME", "Some Name", "site-a", true, time.Now()); err != nil {
		t.Fatalf("observe: %v", err)
	}
	entries, err := st.ListAliasEntries(ctx, b.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no alias entries for station-noise name, got %d", len(entries))
	}
}

func TestObserveIncrementsOccurrence(t *testing.T) {
	ctx := context.Background()
	st := store.NewFakeStore()
	b := &models.Building{CanonicalName: "X", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := st.CreateBuilding(ctx, b); err != nil {
		t.Fatalf("create building: %v", err)
	}
	l := NewLedger(st)
	if err := l.Observe(ctx, b.ID, "PARKCOURT", "パークコート赤坂", "site-a", false, time.Now()); err != nil {
		t.Fatalf("observe 1: %v", err)
	}
	if err := l.Observe(ctx, b.ID, "PARKCOURT", "パークコート赤坂", "site-b", false, time.Now()); err != nil {
		t.Fatalf("observe 2: %v", err)
	}
	entries, err := st.ListAliasEntries(ctx, b.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 alias entry, got %d", len(entries))
	}
	if entries[0].OccurrenceCount != 2 {
		t.Fatalf("expected occurrence_count 2, got %d", entries[0].OccurrenceCount)
	}
	if len(entries[0].SourceSites) != 2 {
		t.Fatalf("expected 2 source sites, got %d", len(entries[0].SourceSites))
	}
}

func TestRefreshIsIdempotentAndMatchesListings(t *testing.T) {
	ctx := context.Background()
	st := store.NewFakeStore()
	b := &models.Building{CanonicalName: "X", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := st.CreateBuilding(ctx, b); err != nil {
		t.Fatalf("create building: %v", err)
	}
	p := &models.MasterProperty{BuildingID: b.ID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := st.CreateMasterProperty(ctx, p); err != nil {
		t.Fatalf("create property: %v", err)
	}
	now := time.Now()
	listing := &models.Listing{
		SourceSite: "site-a", SitePropertyID: "a1", MasterPropertyID: p.ID,
		ListingBuildingName: "パークコート赤坂", FirstSeenAt: now, LastConfirmedAt: now,
	}
	if err := st.CreateListing(ctx, listing); err != nil {
		t.Fatalf("create listing: %v", err)
	}

	l := NewLedger(st)
	if err := l.Refresh(ctx, b.ID); err != nil {
		t.Fatalf("refresh 1: %v", err)
	}
	first, err := st.ListAliasEntries(ctx, b.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := l.Refresh(ctx, b.ID); err != nil {
		t.Fatalf("refresh 2: %v", err)
	}
	second, err := st.ListAliasEntries(ctx, b.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != len(second) || len(first) != 1 {
		t.Fatalf("expected idempotent refresh with 1 entry, got %d then %d", len(first), len(second))
	}
	if first[0].OccurrenceCount != second[0].OccurrenceCount {
		t.Fatalf("expected stable occurrence_count across refreshes, got %d then %d", first[0].OccurrenceCount, second[0].OccurrenceCount)
	}
}
