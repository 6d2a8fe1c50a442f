// Package merge implements the merge, split/revert, and move operators of
// spec.md §4.7, generalised from the teacher's transactional multi-table
// writes and ON CONFLICT upsert idioms, run under row locks acquired in
// ascending id order per §5.
package merge

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"condocore/aggregate"
	"condocore/alias"
	"condocore/errkind"
	"condocore/models"
	"condocore/store"
)

// Engine executes merge/split/move/revert operations against a Store,
// re-running the Aggregator and Alias ledger on every entity it touches.
type Engine struct {
	Store     store.Store
	Aggregate *aggregate.Engine
	Alias     *alias.Ledger
}

// NewEngine returns an Engine bound to st.
func NewEngine(st store.Store, agg *aggregate.Engine, al *alias.Ledger) *Engine {
	return &Engine{Store: st, Aggregate: agg, Alias: al}
}

type buildingSnapshot struct {
	Building   *models.Building          `json:"building"`
	Properties []*models.MasterProperty  `json:"properties"`
}

type propertySnapshot struct {
	Property   *models.MasterProperty `json:"property"`
	ListingIDs []uuid.UUID            `json:"listing_ids"`
}

// MergeBuildings merges every secondary building into primaryID: properties
// move, MergeHistory records a revertible snapshot, BuildingExternalID rows
// are rewritten onto the primary (dropping duplicates on (source_site,
// external_id)), prior MergeHistory rows naming a secondary as primary are
// rewritten forward, and exclusions mentioning it are dropped before the
// row itself is deleted. After every
// move, the union of MasterProperties under primaryID is scanned for
// structural duplicates and each cluster is merged into its
// earliest-created member.
func (e *Engine) MergeBuildings(ctx context.Context, primaryID uuid.UUID, secondaryIDs []uuid.UUID, actor string) error {
	return e.Store.Tx(ctx, func(ctx context.Context, st store.Store) error {
		ids := append([]uuid.UUID{primaryID}, secondaryIDs...)
		sortUUIDs(ids)
		for _, id := range ids {
			if _, err := st.LockBuilding(ctx, id); err != nil {
				return err
			}
		}

		for _, secondaryID := range secondaryIDs {
			if err := e.mergeOneBuilding(ctx, st, primaryID, secondaryID, actor); err != nil {
				return err
			}
		}

		if err := e.dedupeStructuralDuplicates(ctx, st, primaryID, actor); err != nil {
			return err
		}
		if err := e.Aggregate.RefreshBuilding(ctx, primaryID); err != nil {
			return err
		}
		return e.Alias.Refresh(ctx, primaryID)
	})
}

func (e *Engine) mergeOneBuilding(ctx context.Context, st store.Store, primaryID, secondaryID uuid.UUID, actor string) error {
	secondary, err := st.GetBuilding(ctx, secondaryID)
	if err != nil {
		if err == store.ErrNotFound {
			return &errkind.ReferentialError{Kind: "building", MissingID: secondaryID.String()}
		}
		return err
	}
	props, err := st.ListMasterPropertiesByBuilding(ctx, secondaryID)
	if err != nil {
		return err
	}

	snapshot, err := json.Marshal(buildingSnapshot{Building: secondary, Properties: props})
	if err != nil {
		return err
	}

	now := time.Now()
	if _, err := st.CreateMergeHistory(ctx, &models.MergeHistory{
		Kind: models.MergeKindBuilding, PrimaryID: primaryID, MergedAwayID: secondaryID,
		Snapshot: snapshot, Actor: actor, CreatedAt: now,
	}); err != nil {
		return err
	}

	for _, p := range props {
		p.BuildingID = primaryID
		p.UpdatedAt = now
		if err := st.UpdateMasterProperty(ctx, p); err != nil {
			return err
		}
	}

	if err := st.RewriteBuildingExternalIDs(ctx, secondaryID, primaryID); err != nil {
		return err
	}
	if err := st.RewriteMergeHistoryPrimary(ctx, models.MergeKindBuilding, secondaryID, primaryID); err != nil {
		return err
	}
	if err := st.DeleteMergeExclusionsMentioning(ctx, models.MergeKindBuilding, secondaryID); err != nil {
		return err
	}
	return st.DeleteBuilding(ctx, secondaryID)
}

// dedupeStructuralDuplicates merges every cluster of MasterProperties under
// buildingID that shares the §4.3 unit key into its earliest-created
// member.
func (e *Engine) dedupeStructuralDuplicates(ctx context.Context, st store.Store, buildingID uuid.UUID, actor string) error {
	props, err := st.ListMasterPropertiesByBuilding(ctx, buildingID)
	if err != nil {
		return err
	}

	clusters := make(map[models.UnitKey][]*models.MasterProperty)
	for _, p := range props {
		key, ok := p.Key()
		if !ok {
			continue
		}
		clusters[key] = append(clusters[key], p)
	}

	for _, cluster := range clusters {
		if len(cluster) < 2 {
			continue
		}
		sort.Slice(cluster, func(i, j int) bool { return cluster[i].CreatedAt.Before(cluster[j].CreatedAt) })
		primary := cluster[0]
		for _, dup := range cluster[1:] {
			if err := e.mergeOneProperty(ctx, st, primary.ID, dup.ID, actor); err != nil {
				return err
			}
		}
	}
	return nil
}

// MergeProperties merges secondaryPropertyID into primaryPropertyID: its
// listings move, a revertible snapshot is recorded, and the primary is
// re-aggregated.
func (e *Engine) MergeProperties(ctx context.Context, primaryPropertyID, secondaryPropertyID uuid.UUID, actor string) error {
	return e.Store.Tx(ctx, func(ctx context.Context, st store.Store) error {
		ids := []uuid.UUID{primaryPropertyID, secondaryPropertyID}
		sortUUIDs(ids)
		for _, id := range ids {
			if _, err := st.LockMasterProperty(ctx, id); err != nil {
				return err
			}
		}
		if err := e.mergeOneProperty(ctx, st, primaryPropertyID, secondaryPropertyID, actor); err != nil {
			return err
		}
		return e.Aggregate.RefreshMasterProperty(ctx, primaryPropertyID)
	})
}

func (e *Engine) mergeOneProperty(ctx context.Context, st store.Store, primaryID, secondaryID uuid.UUID, actor string) error {
	secondary, err := st.GetMasterProperty(ctx, secondaryID)
	if err != nil {
		if err == store.ErrNotFound {
			return &errkind.ReferentialError{Kind: "master_property", MissingID: secondaryID.String()}
		}
		return err
	}
	listings, err := st.ListListingsByMasterProperty(ctx, secondaryID)
	if err != nil {
		return err
	}

	listingIDs := make([]uuid.UUID, 0, len(listings))
	for _, l := range listings {
		listingIDs = append(listingIDs, l.ID)
	}
	details, err := json.Marshal(propertySnapshot{Property: secondary, ListingIDs: listingIDs})
	if err != nil {
		return err
	}

	now := time.Now()
	if _, err := st.CreateMergeHistory(ctx, &models.MergeHistory{
		Kind: models.MergeKindProperty, PrimaryID: primaryID, MergedAwayID: secondaryID,
		Snapshot: details, MergeDetails: details, Actor: actor, CreatedAt: now,
	}); err != nil {
		return err
	}

	for _, l := range listings {
		l.MasterPropertyID = primaryID
		l.UpdatedAt = now
		if err := st.UpdateListing(ctx, l); err != nil {
			return err
		}
	}

	if err := st.RewriteMergeHistoryPrimary(ctx, models.MergeKindProperty, secondaryID, primaryID); err != nil {
		return err
	}
	if err := st.DeleteMergeExclusionsMentioning(ctx, models.MergeKindProperty, secondaryID); err != nil {
		return err
	}
	return st.DeleteMasterProperty(ctx, secondaryID)
}

// RevertBuildingMerge recreates the building merged away in mergeHistoryID
// from its snapshot, reusing its original id, moves its snapshotted
// properties back, re-aggregates both buildings, refreshes both alias
// ledgers, and records an exclusion pair so the Duplicate finder never
// offers the pair again.
func (e *Engine) RevertBuildingMerge(ctx context.Context, mergeHistoryID int64, actor string) error {
	return e.Store.Tx(ctx, func(ctx context.Context, st store.Store) error {
		h, err := st.GetMergeHistory(ctx, mergeHistoryID)
		if err != nil {
			return err
		}
		var snap buildingSnapshot
		if err := json.Unmarshal(h.Snapshot, &snap); err != nil {
			return err
		}

		now := time.Now()
		snap.Building.UpdatedAt = now
		if err := st.CreateBuilding(ctx, snap.Building); err != nil {
			return err
		}
		for _, p := range snap.Properties {
			p.BuildingID = snap.Building.ID
			p.UpdatedAt = now
			if err := st.UpdateMasterProperty(ctx, p); err != nil {
				return err
			}
		}

		if err := st.MarkMergeReverted(ctx, mergeHistoryID, now); err != nil {
			return err
		}
		if err := st.CreateMergeExclusion(ctx, exclusionOf(models.MergeKindBuilding, h.PrimaryID, snap.Building.ID, "reverted merge", actor, now)); err != nil {
			return err
		}

		if err := e.Aggregate.RefreshBuilding(ctx, h.PrimaryID); err != nil {
			return err
		}
		if err := e.Aggregate.RefreshBuilding(ctx, snap.Building.ID); err != nil {
			return err
		}
		if err := e.Alias.Refresh(ctx, h.PrimaryID); err != nil {
			return err
		}
		return e.Alias.Refresh(ctx, snap.Building.ID)
	})
}

// RevertPropertyMerge recreates the MasterProperty merged away in
// mergeHistoryID from its snapshot, reusing its original id, and moves its
// snapshotted listings back.
func (e *Engine) RevertPropertyMerge(ctx context.Context, mergeHistoryID int64, actor string) error {
	return e.Store.Tx(ctx, func(ctx context.Context, st store.Store) error {
		h, err := st.GetMergeHistory(ctx, mergeHistoryID)
		if err != nil {
			return err
		}
		var snap propertySnapshot
		if err := json.Unmarshal(h.Snapshot, &snap); err != nil {
			return err
		}

		now := time.Now()
		snap.Property.UpdatedAt = now
		if err := st.CreateMasterProperty(ctx, snap.Property); err != nil {
			return err
		}
		for _, id := range snap.ListingIDs {
			l, err := st.GetListing(ctx, id)
			if err != nil {
				continue
			}
			l.MasterPropertyID = snap.Property.ID
			l.UpdatedAt = now
			if err := st.UpdateListing(ctx, l); err != nil {
				return err
			}
		}

		if err := st.MarkMergeReverted(ctx, mergeHistoryID, now); err != nil {
			return err
		}
		if err := st.CreateMergeExclusion(ctx, exclusionOf(models.MergeKindProperty, h.PrimaryID, snap.Property.ID, "reverted merge", actor, now)); err != nil {
			return err
		}

		if err := e.Aggregate.RefreshMasterProperty(ctx, h.PrimaryID); err != nil {
			return err
		}
		return e.Aggregate.RefreshMasterProperty(ctx, snap.Property.ID)
	})
}

// Move relocates a MasterProperty to a different Building. If the target
// already holds a structural duplicate (§4.3 unit key), the moved property
// merges into it instead of being rebound standalone.
func (e *Engine) Move(ctx context.Context, masterPropertyID, targetBuildingID uuid.UUID, actor string) error {
	return e.Store.Tx(ctx, func(ctx context.Context, st store.Store) error {
		prop, err := st.GetMasterProperty(ctx, masterPropertyID)
		if err != nil {
			return err
		}
		sourceBuildingID := prop.BuildingID

		ids := []uuid.UUID{sourceBuildingID, targetBuildingID}
		sortUUIDs(ids)
		for _, id := range ids {
			if _, err := st.LockBuilding(ctx, id); err != nil {
				return err
			}
		}

		targetProps, err := st.ListMasterPropertiesByBuilding(ctx, targetBuildingID)
		if err != nil {
			return err
		}

		key, haveKey := prop.Key()
		var duplicate *models.MasterProperty
		if haveKey {
			for _, tp := range targetProps {
				tk, ok := tp.Key()
				if !ok {
					continue
				}
				if tk == key && !conflictingRoomNumbers(prop.RoomNumber, tp.RoomNumber) {
					duplicate = tp
					break
				}
			}
		}

		if duplicate != nil {
			if err := e.mergeOneProperty(ctx, st, duplicate.ID, masterPropertyID, actor); err != nil {
				return err
			}
		} else {
			prop.BuildingID = targetBuildingID
			prop.UpdatedAt = time.Now()
			if err := st.UpdateMasterProperty(ctx, prop); err != nil {
				return err
			}
		}

		if err := e.Aggregate.RefreshBuilding(ctx, sourceBuildingID); err != nil {
			return err
		}
		if err := e.Aggregate.RefreshBuilding(ctx, targetBuildingID); err != nil {
			return err
		}
		if err := e.Alias.Refresh(ctx, sourceBuildingID); err != nil {
			return err
		}
		return e.Alias.Refresh(ctx, targetBuildingID)
	})
}

func conflictingRoomNumbers(a, b string) bool {
	return a != "" && b != "" && a != b
}

func exclusionOf(kind models.MergeKind, a, b uuid.UUID, reason, actor string, at time.Time) *models.MergeExclusion {
	lo, hi := models.ExclusionPair(a, b)
	return &models.MergeExclusion{Kind: kind, AID: lo, BID: hi, Reason: reason, Actor: actor, CreatedAt: at}
}

func sortUUIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
