package merge

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"condocore/aggregate"
	"condocore/alias"
	"condocore/models"
	"condocore/store"
)

func f64p(v float64) *float64 { return &v }

// S6: merging B4 into B5 moves B4's one property, then reverting recreates
// B4 with its original id, moves the property back, and records the
// (B4,B5) pair in MergeExclusion so the duplicate finder never offers it
// again.
func TestMergeBuildingRevertRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := store.NewFakeStore()
	agg := aggregate.NewEngine(st)
	al := alias.NewLedger(st)
	e := NewEngine(st, agg, al)
	now := time.Now()

	b4 := &models.Building{CanonicalName: "四号館", NormalizedAddress: "東京都港区南青山1-1-1", CreatedAt: now, UpdatedAt: now}
	b5 := &models.Building{CanonicalName: "五号館", NormalizedAddress: "東京都港区南青山2-2-2", CreatedAt: now, UpdatedAt: now}
	if err := st.CreateBuilding(ctx, b4); err != nil {
		t.Fatalf("create b4: %v", err)
	}
	if err := st.CreateBuilding(ctx, b5); err != nil {
		t.Fatalf("create b5: %v", err)
	}
	originalB4ID := b4.ID

	prop := &models.MasterProperty{
		BuildingID: b4.ID, FloorNumber: intp(7), AreaM2: f64p(55.5), Layout: "2LDK", Direction: "南",
		CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateMasterProperty(ctx, prop); err != nil {
		t.Fatalf("create property: %v", err)
	}

	listing := &models.Listing{
		SourceSite: "site-a", SitePropertyID: "s6-1", MasterPropertyID: prop.ID, IsActive: true,
		ListingBuildingName: "四号館", FirstSeenAt: now, LastConfirmedAt: now, CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateListing(ctx, listing); err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if err := al.Refresh(ctx, b4.ID); err != nil {
		t.Fatalf("seed alias refresh: %v", err)
	}

	// b4 carries two external ids, one of which (site-a/ext-shared) already
	// exists on b5 — the merge must drop that duplicate and move the other.
	if err := st.CreateBuildingExternalID(ctx, &models.BuildingExternalID{BuildingID: b4.ID, SourceSite: "site-a", ExternalID: "ext-shared", CreatedAt: now}); err != nil {
		t.Fatalf("seed b4 external id: %v", err)
	}
	if err := st.CreateBuildingExternalID(ctx, &models.BuildingExternalID{BuildingID: b4.ID, SourceSite: "site-b", ExternalID: "ext-only-on-b4", CreatedAt: now}); err != nil {
		t.Fatalf("seed b4 external id: %v", err)
	}
	if err := st.CreateBuildingExternalID(ctx, &models.BuildingExternalID{BuildingID: b5.ID, SourceSite: "site-a", ExternalID: "ext-shared", CreatedAt: now}); err != nil {
		t.Fatalf("seed b5 external id: %v", err)
	}

	if err := e.MergeBuildings(ctx, b5.ID, []uuid.UUID{b4.ID}, "operator"); err != nil {
		t.Fatalf("merge: %v", err)
	}

	if _, err := st.GetBuilding(ctx, originalB4ID); err != store.ErrNotFound {
		t.Fatalf("expected b4 deleted after merge, got err=%v", err)
	}
	props, err := st.ListMasterPropertiesByBuilding(ctx, b5.ID)
	if err != nil || len(props) != 1 {
		t.Fatalf("expected 1 property under b5 after merge, got %d (err %v)", len(props), err)
	}

	mergedExternalIDs, err := st.ListBuildingExternalIDs(ctx, b5.ID)
	if err != nil || len(mergedExternalIDs) != 2 {
		t.Fatalf("expected 2 external ids on b5 after merge (1 moved + 1 original, dropping the shared duplicate), got %d (err %v)", len(mergedExternalIDs), err)
	}

	if err := e.RevertBuildingMerge(ctx, 1, "operator"); err != nil {
		t.Fatalf("revert: %v", err)
	}

	reverted, err := st.GetBuilding(ctx, originalB4ID)
	if err != nil {
		t.Fatalf("expected b4 recreated with original id: %v", err)
	}
	if reverted.ID != originalB4ID {
		t.Fatalf("expected reverted building to keep original id, got %s", reverted.ID)
	}

	revertedProps, err := st.ListMasterPropertiesByBuilding(ctx, originalB4ID)
	if err != nil || len(revertedProps) != 1 {
		t.Fatalf("expected property back under b4, got %d (err %v)", len(revertedProps), err)
	}

	excluded, err := st.IsExcluded(ctx, models.MergeKindBuilding, originalB4ID, b5.ID)
	if err != nil || !excluded {
		t.Fatalf("expected (b4,b5) recorded as a merge exclusion, excluded=%v err=%v", excluded, err)
	}

	b4Aliases, err := st.ListAliasEntries(ctx, originalB4ID)
	if err != nil || len(b4Aliases) != 1 || b4Aliases[0].CanonicalName == "" {
		t.Fatalf("expected b4's alias ledger to reflect its listing, got %+v (err %v)", b4Aliases, err)
	}
}

func intp(v int) *int { return &v }
