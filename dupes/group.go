package dupes

import (
	"context"
	"sort"

	roaring "github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"

	"condocore/models"
	"condocore/normalize"
	"condocore/store"
)

// Group is a candidate set of likely-duplicate entities for human review.
type Group struct {
	Primary       uuid.UUID
	Members       []uuid.UUID
	AvgSimilarity float64
}

// unionFind is the explicit-array union-find of design note §9: indices
// into a flat id slice, no pointer graph.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}

type edge struct {
	i, j  int
	score float64
}

// FindBuildingDuplicates scans every building in the store, partitions them
// by district prefix (town-level address head) for O(n²) pruning within
// each partition, builds a similarity graph above minSimilarity excluding
// excluded pairs, and emits one Group per connected component.
func FindBuildingDuplicates(ctx context.Context, st store.Store, minSimilarity float64) ([]Group, error) {
	buildings, err := st.ListAllBuildings(ctx)
	if err != nil {
		return nil, err
	}
	if len(buildings) < 2 {
		return nil, nil
	}

	exclusions, err := st.ListMergeExclusions(ctx, models.MergeKindBuilding)
	if err != nil {
		return nil, err
	}
	excluded := make(map[[2]uuid.UUID]bool, len(exclusions))
	for _, ex := range exclusions {
		excluded[[2]uuid.UUID{ex.AID, ex.BID}] = true
	}

	partitions := make(map[string][]int)
	for i, b := range buildings {
		key := normalize.AddressPrefix(b.NormalizedAddress, 0)
		partitions[key] = append(partitions[key], i)
	}

	uf := newUnionFind(len(buildings))
	edgeScores := make(map[[2]int]float64)

	for _, members := range partitions {
		bitmap := roaring.New()
		for _, idx := range members {
			bitmap.Add(uint32(idx))
		}
		it := bitmap.Iterator()
		for it.HasNext() {
			i := int(it.Next())
			inner := roaring.New()
			for _, idx := range members {
				if idx > i {
					inner.Add(uint32(idx))
				}
			}
			jt := inner.Iterator()
			for jt.HasNext() {
				j := int(jt.Next())
				a, b := buildings[i].ID, buildings[j].ID
				lo, hi := models.ExclusionPair(a, b)
				if excluded[[2]uuid.UUID{lo, hi}] {
					continue
				}
				score := BuildingSimilarity(buildings[i], buildings[j])
				if score >= minSimilarity {
					uf.union(i, j)
					edgeScores[[2]int{i, j}] = score
				}
			}
		}
	}

	return componentsToGroups(buildings, uf, edgeScores, excluded), nil
}

func componentsToGroups(buildings []*models.Building, uf *unionFind, edgeScores map[[2]int]float64, excluded map[[2]uuid.UUID]bool) []Group {
	byRoot := make(map[int][]int)
	for i := range buildings {
		root := uf.find(i)
		byRoot[root] = append(byRoot[root], i)
	}

	var groups []Group
	for _, members := range byRoot {
		if len(members) < 2 {
			continue
		}
		if splitOnExclusion(buildings, members, excluded) {
			for _, sub := range splitGreedily(buildings, members, edgeScores, excluded) {
				groups = append(groups, buildGroup(buildings, sub, edgeScores))
			}
			continue
		}
		groups = append(groups, buildGroup(buildings, members, edgeScores))
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Primary.String() < groups[j].Primary.String() })
	return groups
}

func splitOnExclusion(buildings []*models.Building, members []int, excluded map[[2]uuid.UUID]bool) bool {
	for _, i := range members {
		for _, j := range members {
			if i >= j {
				continue
			}
			lo, hi := models.ExclusionPair(buildings[i].ID, buildings[j].ID)
			if excluded[[2]uuid.UUID{lo, hi}] {
				return true
			}
		}
	}
	return false
}

// splitGreedily re-splits a component broken by an exclusion edge: repeatedly
// take the highest-scoring remaining pair and grow a sub-group around it,
// skipping any member already assigned to a sub-group (each building enters
// at most one).
func splitGreedily(buildings []*models.Building, members []int, edgeScores map[[2]int]float64, excluded map[[2]uuid.UUID]bool) [][]int {
	type scoredEdge struct {
		i, j  int
		score float64
	}
	var edges []scoredEdge
	for _, i := range members {
		for _, j := range members {
			if i >= j {
				continue
			}
			lo, hi := models.ExclusionPair(buildings[i].ID, buildings[j].ID)
			if excluded[[2]uuid.UUID{lo, hi}] {
				continue
			}
			if s, ok := edgeScores[[2]int{i, j}]; ok {
				edges = append(edges, scoredEdge{i, j, s})
			}
		}
	}
	sort.Slice(edges, func(a, b int) bool { return edges[a].score > edges[b].score })

	assigned := make(map[int]int) // member index -> sub-group index
	var subs [][]int
	for _, e := range edges {
		gi, iok := assigned[e.i]
		gj, jok := assigned[e.j]
		switch {
		case !iok && !jok:
			subs = append(subs, []int{e.i, e.j})
			assigned[e.i] = len(subs) - 1
			assigned[e.j] = len(subs) - 1
		case iok && !jok:
			subs[gi] = append(subs[gi], e.j)
			assigned[e.j] = gi
		case !iok && jok:
			subs[gj] = append(subs[gj], e.i)
			assigned[e.i] = gj
		}
	}
	for _, m := range members {
		if _, ok := assigned[m]; !ok {
			subs = append(subs, []int{m})
		}
	}
	return subs
}

func buildGroup(buildings []*models.Building, members []int, edgeScores map[[2]int]float64) Group {
	if len(members) == 1 {
		return Group{Primary: buildings[members[0]].ID, Members: []uuid.UUID{buildings[members[0]].ID}}
	}

	bestAvg := -1.0
	bestIdx := members[0]
	for _, i := range members {
		sum, n := 0.0, 0
		for _, j := range members {
			if i == j {
				continue
			}
			if s, ok := scoreOf(edgeScores, i, j); ok {
				sum += s
				n++
			}
		}
		avg := 0.0
		if n > 0 {
			avg = sum / float64(n)
		}
		if avg > bestAvg {
			bestAvg, bestIdx = avg, i
		}
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, i := range members {
		ids = append(ids, buildings[i].ID)
	}
	return Group{Primary: buildings[bestIdx].ID, Members: ids, AvgSimilarity: bestAvg}
}

func scoreOf(edgeScores map[[2]int]float64, i, j int) (float64, bool) {
	if i > j {
		i, j = j, i
	}
	s, ok := edgeScores[[2]int{i, j}]
	return s, ok
}

// FindPropertyDuplicates groups MasterProperties within a Building sharing
// floor_number and area_m2 rounded to the nearest whole m2 (so e.g. 40.03
// and 40.3 land in the same bucket), with matching normalised layout,
// compatible direction, and non-conflicting room numbers.
func FindPropertyDuplicates(ctx context.Context, st store.Store, buildingID uuid.UUID) ([]Group, error) {
	props, err := st.ListMasterPropertiesByBuilding(ctx, buildingID)
	if err != nil {
		return nil, err
	}

	type bucketKey struct {
		floor int
		area  int
	}
	buckets := make(map[bucketKey][]*models.MasterProperty)
	for _, p := range props {
		if p.FloorNumber == nil || p.AreaM2 == nil {
			continue
		}
		if !normalize.ValidLayout(p.Layout) {
			// A stored Layout is expected to already be canonical (it went
			// through normalize.Layout on the way in); skip rather than
			// re-derive it, so a corrupted row can't false-positive match
			// another corrupted row sharing the same bad string.
			continue
		}
		key := bucketKey{floor: *p.FloorNumber, area: models.UnitArea(*p.AreaM2)}
		buckets[key] = append(buckets[key], p)
	}

	var groups []Group
	for _, bucket := range buckets {
		uf := newUnionFind(len(bucket))
		for i := range bucket {
			for j := i + 1; j < len(bucket); j++ {
				if bucket[i].Layout != bucket[j].Layout {
					continue
				}
				if !normalize.CompatibleDirection(bucket[i].Direction, bucket[j].Direction) {
					continue
				}
				if bucket[i].RoomNumber != "" && bucket[j].RoomNumber != "" && bucket[i].RoomNumber != bucket[j].RoomNumber {
					continue
				}
				uf.union(i, j)
			}
		}
		byRoot := make(map[int][]int)
		for i := range bucket {
			byRoot[uf.find(i)] = append(byRoot[uf.find(i)], i)
		}
		for _, members := range byRoot {
			if len(members) < 2 {
				continue
			}
			sort.Slice(members, func(a, b int) bool { return bucket[members[a]].CreatedAt.Before(bucket[members[b]].CreatedAt) })
			ids := make([]uuid.UUID, 0, len(members))
			for _, i := range members {
				ids = append(ids, bucket[i].ID)
			}
			groups = append(groups, Group{Primary: bucket[members[0]].ID, Members: ids})
		}
	}

	return groups, nil
}
