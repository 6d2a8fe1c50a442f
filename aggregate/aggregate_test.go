package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"condocore/models"
	"condocore/store"
)

func seedProperty(t *testing.T, st *store.FakeStore) (uuid.UUID, uuid.UUID) {
	ctx := context.Background()
	b := &models.Building{CanonicalName: "TESTBUILDING", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := st.CreateBuilding(ctx, b); err != nil {
		t.Fatalf("create building: %v", err)
	}
	p := &models.MasterProperty{BuildingID: b.ID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := st.CreateMasterProperty(ctx, p); err != nil {
		t.Fatalf("create property: %v", err)
	}
	return b.ID, p.ID
}

func activeListing(t *testing.T, st *store.FakeStore, propertyID uuid.UUID, price int, confirmedAt time.Time) {
	t.Helper()
	price2 := price
	l := &models.Listing{
		SourceSite:       "site-" + uuid.NewString(),
		SitePropertyID:   uuid.NewString(),
		MasterPropertyID: propertyID,
		IsActive:         true,
		CurrentPrice:     &price2,
		FirstSeenAt:      confirmedAt,
		LastConfirmedAt:  confirmedAt,
	}
	if err := st.CreateListing(context.Background(), l); err != nil {
		t.Fatalf("create listing: %v", err)
	}
}

// TestRefreshMasterPropertyMajorityShift implements scenario S4: three
// active listings priced 5800,5800,6000 hold the majority at 5800; a
// fourth listing at 6000, confirmed most recently, shifts the majority to
// 6000 and records a PropertyPriceChange.
func TestRefreshMasterPropertyMajorityShift(t *testing.T) {
	ctx := context.Background()
	st := store.NewFakeStore()
	_, propID := seedProperty(t, st)

	base := time.Now().Add(-time.Hour)
	activeListing(t, st, propID, 5800, base)
	activeListing(t, st, propID, 5800, base)
	activeListing(t, st, propID, 6000, base)

	eng := NewEngine(st)
	if err := eng.RefreshMasterProperty(ctx, propID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	prop, err := st.GetMasterProperty(ctx, propID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if prop.CurrentPrice == nil || *prop.CurrentPrice != 5800 {
		t.Fatalf("expected initial majority 5800, got %v", prop.CurrentPrice)
	}

	activeListing(t, st, propID, 6000, time.Now())
	if err := eng.RefreshMasterProperty(ctx, propID); err != nil {
		t.Fatalf("refresh after 4th listing: %v", err)
	}

	prop, err = st.GetMasterProperty(ctx, propID)
	if err != nil {
		t.Fatalf("get after shift: %v", err)
	}
	if prop.CurrentPrice == nil || *prop.CurrentPrice != 6000 {
		t.Fatalf("expected majority shift to 6000, got %v", prop.CurrentPrice)
	}

	change, err := st.GetLastPropertyPriceChange(ctx, propID)
	if err != nil {
		t.Fatalf("expected a PropertyPriceChange row, got error: %v", err)
	}
	if change.NewMajorityPrice != 6000 {
		t.Fatalf("expected recorded majority 6000, got %d", change.NewMajorityPrice)
	}
}

func TestRefreshMasterPropertyNoActiveListingsClearsPrice(t *testing.T) {
	ctx := context.Background()
	st := store.NewFakeStore()
	_, propID := seedProperty(t, st)

	eng := NewEngine(st)
	if err := eng.RefreshMasterProperty(ctx, propID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	prop, err := st.GetMasterProperty(ctx, propID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if prop.CurrentPrice != nil {
		t.Fatalf("expected nil current_price with no active listings, got %v", *prop.CurrentPrice)
	}
}

func TestModeTiesBreakByRecencyThenValue(t *testing.T) {
	now := time.Now()
	ballots := []Ballot[int]{
		{Value: 10, ObservedAt: now.Add(-time.Hour)},
		{Value: 20, ObservedAt: now.Add(-time.Hour)},
	}
	got, ok := Mode(ballots, LessInt)
	if !ok || got != 10 {
		t.Fatalf("expected tie broken toward smallest value 10, got (%d, %v)", got, ok)
	}

	ballots = []Ballot[int]{
		{Value: 10, ObservedAt: now.Add(-time.Hour)},
		{Value: 20, ObservedAt: now},
	}
	got, ok = Mode(ballots, LessInt)
	if !ok || got != 20 {
		t.Fatalf("expected tie broken toward most recent value 20, got (%d, %v)", got, ok)
	}
}
