package lifecycle

import (
	"context"
	"testing"
	"time"

	"condocore/aggregate"
	"condocore/models"
	"condocore/store"
)

func days(n int) time.Time {
	return time.Now().AddDate(0, 0, n)
}

func intPtr(v int) *int { return &v }

// TestSoldAndFinalPrice implements scenario S5: MasterProperty P2 with
// listings A (price history 5800->5700->5700 over days -10..-1, delisted at
// day -1) and B (5700 throughout, delisted at day -2); both non-active at
// day 0. Expect sold_at = day -1, final_price = 5700 (mode within the
// 7-day window).
func TestSoldAndFinalPrice(t *testing.T) {
	ctx := context.Background()
	st := store.NewFakeStore()

	b := &models.Building{CanonicalName: "P2BUILDING", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := st.CreateBuilding(ctx, b); err != nil {
		t.Fatalf("create building: %v", err)
	}
	prop := &models.MasterProperty{BuildingID: b.ID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := st.CreateMasterProperty(ctx, prop); err != nil {
		t.Fatalf("create property: %v", err)
	}

	delistedA := days(-1)
	listingA := &models.Listing{
		SourceSite: "site-a", SitePropertyID: "a1", MasterPropertyID: prop.ID,
		IsActive: false, CurrentPrice: intPtr(5700),
		FirstSeenAt: days(-10), LastConfirmedAt: days(-1), DelistedAt: &delistedA,
		UpdatedAt: days(-1),
	}
	if err := st.CreateListing(ctx, listingA); err != nil {
		t.Fatalf("create listing A: %v", err)
	}
	for day, price := range map[int]int{-10: 5800, -6: 5700} {
		if err := st.AppendPriceHistory(ctx, &models.PriceHistory{ListingID: listingA.ID, RecordedAt: days(day), Price: price}); err != nil {
			t.Fatalf("append history A: %v", err)
		}
	}
	if err := st.AppendPriceHistory(ctx, &models.PriceHistory{ListingID: listingA.ID, RecordedAt: days(-2), Price: 5700}); err != nil {
		t.Fatalf("append history A: %v", err)
	}

	delistedB := days(-2)
	listingB := &models.Listing{
		SourceSite: "site-b", SitePropertyID: "b1", MasterPropertyID: prop.ID,
		IsActive: false, CurrentPrice: intPtr(5700),
		FirstSeenAt: days(-10), LastConfirmedAt: days(-2), DelistedAt: &delistedB,
		UpdatedAt: days(-2),
	}
	if err := st.CreateListing(ctx, listingB); err != nil {
		t.Fatalf("create listing B: %v", err)
	}
	if err := st.AppendPriceHistory(ctx, &models.PriceHistory{ListingID: listingB.ID, RecordedAt: days(-10), Price: 5700}); err != nil {
		t.Fatalf("append history B: %v", err)
	}

	agg := aggregate.NewEngine(st)
	eng := NewEngine(st, agg, 24*time.Hour, 7*24*time.Hour)

	if err := eng.EvaluateSoldStatus(ctx, prop.ID, days(0)); err != nil {
		t.Fatalf("evaluate sold status: %v", err)
	}

	got, err := st.GetMasterProperty(ctx, prop.ID)
	if err != nil {
		t.Fatalf("get property: %v", err)
	}
	if got.SoldAt == nil {
		t.Fatal("expected sold_at to be set")
	}
	if !sameDay(*got.SoldAt, days(-1)) {
		t.Fatalf("expected sold_at = day -1, got %v", got.SoldAt)
	}
	if got.FinalPrice == nil || *got.FinalPrice != 5700 {
		t.Fatalf("expected final_price 5700, got %v", got.FinalPrice)
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func TestReconfirmReopensListingAndClearsSoldProperty(t *testing.T) {
	ctx := context.Background()
	st := store.NewFakeStore()

	b := &models.Building{CanonicalName: "REOPEN", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := st.CreateBuilding(ctx, b); err != nil {
		t.Fatalf("create building: %v", err)
	}
	soldAt := days(-1)
	prop := &models.MasterProperty{BuildingID: b.ID, SoldAt: &soldAt, FinalPrice: intPtr(5700), CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := st.CreateMasterProperty(ctx, prop); err != nil {
		t.Fatalf("create property: %v", err)
	}
	delistedAt := days(-1)
	listing := &models.Listing{
		SourceSite: "site-a", SitePropertyID: "a1", MasterPropertyID: prop.ID,
		IsActive: false, CurrentPrice: intPtr(5900),
		FirstSeenAt: days(-10), LastConfirmedAt: days(-1), DelistedAt: &delistedAt,
		UpdatedAt: days(-1),
	}
	if err := st.CreateListing(ctx, listing); err != nil {
		t.Fatalf("create listing: %v", err)
	}

	agg := aggregate.NewEngine(st)
	eng := NewEngine(st, agg, 24*time.Hour, 7*24*time.Hour)
	if err := eng.Reconfirm(ctx, listing.ID); err != nil {
		t.Fatalf("reconfirm: %v", err)
	}

	gotListing, err := st.GetListing(ctx, listing.ID)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if !gotListing.IsActive || gotListing.DelistedAt != nil {
		t.Fatalf("expected listing reopened, got active=%v delisted=%v", gotListing.IsActive, gotListing.DelistedAt)
	}

	gotProp, err := st.GetMasterProperty(ctx, prop.ID)
	if err != nil {
		t.Fatalf("get property: %v", err)
	}
	if gotProp.SoldAt != nil || gotProp.FinalPrice != nil {
		t.Fatalf("expected sold_at/final_price cleared, got sold_at=%v final_price=%v", gotProp.SoldAt, gotProp.FinalPrice)
	}
}
