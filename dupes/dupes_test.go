package dupes

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"condocore/models"
	"condocore/store"
)

func intp(v int) *int { return &v }

func TestBuildingSimilarityExactAttributesOverridesNameMismatch(t *testing.T) {
	a := &models.Building{
		CanonicalName: "AAAAAAAA", NormalizedAddress: "東京都港区赤坂9-1-1",
		BuiltYear: intp(2015), TotalFloors: intp(20), TotalUnits: intp(120),
	}
	b := &models.Building{
		CanonicalName: "ZZZZZZZZ", NormalizedAddress: "東京都港区赤坂9-1-1",
		BuiltYear: intp(2015), TotalFloors: intp(20), TotalUnits: intp(120),
	}
	score := BuildingSimilarity(a, b)
	if score < 0.92 {
		t.Fatalf("expected override score >= 0.92 for exact address+attrs, got %f", score)
	}
}

func TestFindBuildingDuplicatesGroupsSimilarBuildingsInDistrict(t *testing.T) {
	ctx := context.Background()
	st := store.NewFakeStore()

	mk := func(name, addr string, floors, year, units int) *models.Building {
		b := &models.Building{
			CanonicalName: name, NormalizedAddress: addr,
			TotalFloors: intp(floors), BuiltYear: intp(year), TotalUnits: intp(units),
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}
		if err := st.CreateBuilding(ctx, b); err != nil {
			t.Fatalf("create building: %v", err)
		}
		return b
	}

	b1 := mk("パークコート赤坂", "東京都港区赤坂9-1-1", 20, 2015, 120)
	b2 := mk("パークコート赤坂タワー", "東京都港区赤坂9-1-1", 20, 2015, 120)
	mk("全然違うマンション", "東京都渋谷区恵比寿1-2-3", 10, 1995, 40)

	groups, err := FindBuildingDuplicates(ctx, st, 0.5)
	if err != nil {
		t.Fatalf("find duplicates: %v", err)
	}
	found := false
	for _, g := range groups {
		if containsID(g.Members, b1.ID) && containsID(g.Members, b2.ID) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected b1 and b2 grouped together, got %+v", groups)
	}
}

func containsID(ids []uuid.UUID, target uuid.UUID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
