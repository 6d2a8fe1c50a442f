package resolve

import (
	"context"
	"testing"
	"time"

	"condocore/aggregate"
	"condocore/alias"
	"condocore/lifecycle"
	"condocore/models"
	"condocore/normalize"
	"condocore/store"
)

func newTestEngine(st store.Store) *Engine {
	agg := aggregate.NewEngine(st)
	lc := lifecycle.NewEngine(st, agg, 24*time.Hour, 7*24*time.Hour)
	al := alias.NewLedger(st)
	return NewEngine(st, normalize.NewEngine(), agg, lc, al)
}

func intp(v int) *int { return &v }
func f64p(v float64) *float64 { return &v }

// S1: attach by exact triple.
func TestResolveAttachesByExactTriple(t *testing.T) {
	ctx := context.Background()
	st := store.NewFakeStore()
	now := time.Now()

	b1 := &models.Building{
		CanonicalName: "パークコート赤坂", NormalizedAddress: "東京都港区赤坂9-1-1",
		TotalFloors: intp(20), BuiltYear: intp(2015), TotalUnits: intp(120),
		CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateBuilding(ctx, b1); err != nil {
		t.Fatalf("seed building: %v", err)
	}

	e := newTestEngine(st)
	raw := &models.RawListing{
		SourceSite: "site-a", SitePropertyID: "p1",
		ListingBuildingName: "パークコート 赤坂", ListingAddress: "東京都港区赤坂９丁目１−１",
		ListingTotalFloors: intp(20), ListingBuiltYear: intp(2015), ListingTotalUnits: intp(120),
		FloorNumber: intp(12), AreaM2: f64p(75.3), Layout: "2LDK", Direction: "南東",
		CurrentPrice: intp(15800), ObservedAt: now,
	}

	result, err := e.Resolve(ctx, raw)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.CreatedBuilding {
		t.Fatalf("expected attach to existing building, got created_building=true")
	}
	if result.BuildingID != b1.ID.String() {
		t.Fatalf("expected attach to B1, got %s", result.BuildingID)
	}
	if !result.CreatedProperty {
		t.Fatalf("expected a new master property")
	}

	entries, err := st.ListAliasEntries(ctx, b1.ID)
	if err != nil {
		t.Fatalf("list aliases: %v", err)
	}
	if len(entries) != 1 || entries[0].OccurrenceCount != 1 {
		t.Fatalf("expected one alias entry with occurrence_count 1, got %+v", entries)
	}
}

// S2: address prefix completion — attach without overwriting the
// building's less-complete normalised_address.
func TestResolveAttachesByAddressPrefixChain(t *testing.T) {
	ctx := context.Background()
	st := store.NewFakeStore()
	now := time.Now()

	b2 := &models.Building{
		CanonicalName: "XYZ", NormalizedAddress: "東京都港区芝浦4",
		TotalFloors: intp(47), BuiltYear: intp(2007), TotalUnits: intp(869),
		CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateBuilding(ctx, b2); err != nil {
		t.Fatalf("seed building: %v", err)
	}

	e := newTestEngine(st)
	raw := &models.RawListing{
		SourceSite: "site-a", SitePropertyID: "p2",
		ListingBuildingName: "XYZ", ListingAddress: "東京都港区芝浦4-10-1",
		ListingTotalFloors: intp(47), ListingBuiltYear: intp(2007), ListingTotalUnits: intp(869),
		FloorNumber: intp(5), AreaM2: f64p(60), Layout: "1LDK", Direction: "北",
		ObservedAt: now,
	}

	result, err := e.Resolve(ctx, raw)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.CreatedBuilding {
		t.Fatalf("expected attach via prefix-chain match, got created_building=true")
	}
	if result.BuildingID != b2.ID.String() {
		t.Fatalf("expected attach to B2, got %s", result.BuildingID)
	}

	reloaded, err := st.GetBuilding(ctx, b2.ID)
	if err != nil {
		t.Fatalf("reload building: %v", err)
	}
	if reloaded.NormalizedAddress != "東京都港区芝浦4" {
		t.Fatalf("expected normalised_address left untouched, got %q", reloaded.NormalizedAddress)
	}
}

// S3: mis-attachment rejected at the building step — no automatic attach
// when the triple disagrees, so a new Building is created.
func TestResolveRejectsTripleMismatch(t *testing.T) {
	ctx := context.Background()
	st := store.NewFakeStore()
	now := time.Now()

	b3 := &models.Building{
		CanonicalName: "SAMENAME", NormalizedAddress: "東京都渋谷区1-1-1",
		TotalFloors: intp(20), BuiltYear: intp(2015), TotalUnits: intp(120),
		CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateBuilding(ctx, b3); err != nil {
		t.Fatalf("seed building: %v", err)
	}

	e := newTestEngine(st)
	raw := &models.RawListing{
		SourceSite: "site-a", SitePropertyID: "p3",
		ListingBuildingName: "SAMENAME", ListingAddress: "東京都渋谷区1-1-1",
		ListingTotalFloors: intp(35), ListingBuiltYear: intp(2020), ListingTotalUnits: intp(450),
		FloorNumber: intp(10), AreaM2: f64p(50), Layout: "1LDK", Direction: "南",
		ObservedAt: now,
	}

	result, err := e.Resolve(ctx, raw)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !result.CreatedBuilding {
		t.Fatalf("expected a new building when the triple mismatches, got attach to existing")
	}
	if result.BuildingID == b3.ID.String() {
		t.Fatalf("expected a building distinct from B3")
	}
}

// Resolving the identical RawListing twice yields the same building,
// master-property and listing ids (§8 idempotence).
func TestResolveIdempotentOnRepeatSighting(t *testing.T) {
	ctx := context.Background()
	st := store.NewFakeStore()
	e := newTestEngine(st)
	now := time.Now()

	raw := &models.RawListing{
		SourceSite: "site-a", SitePropertyID: "p1",
		ListingBuildingName: "テストマンション", ListingAddress: "東京都新宿区1-1-1",
		ListingTotalFloors: intp(10), ListingBuiltYear: intp(2000), ListingTotalUnits: intp(50),
		FloorNumber: intp(3), AreaM2: f64p(40), Layout: "1K", Direction: "東",
		CurrentPrice: intp(3000), ObservedAt: now,
	}

	first, err := e.Resolve(ctx, raw)
	if err != nil {
		t.Fatalf("resolve 1: %v", err)
	}
	second, err := e.Resolve(ctx, raw)
	if err != nil {
		t.Fatalf("resolve 2: %v", err)
	}
	if first.BuildingID != second.BuildingID || first.MasterPropertyID != second.MasterPropertyID || first.ListingID != second.ListingID {
		t.Fatalf("expected identical ids across repeat resolves, got %+v then %+v", first, second)
	}
}
