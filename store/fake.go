package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"condocore/models"
)

// FakeStore is an in-memory Store used by the domain packages' tests, per
// spec.md §8's no-live-database testing strategy. It is not safe for
// concurrent callers that expect row-level locking semantics beyond what a
// single mutex provides — Lock* here just takes the shared mutex and
// returns the row, good enough for single-goroutine test scenarios.
type FakeStore struct {
	mu sync.Mutex

	buildings   map[uuid.UUID]*models.Building
	properties  map[uuid.UUID]*models.MasterProperty
	listings    map[uuid.UUID]*models.Listing
	prices      []*models.PriceHistory
	changes     []*models.PropertyPriceChange
	aliases     map[uuid.UUID]map[string]*models.AliasEntry
	externalIDs []*models.BuildingExternalID
	history     map[int64]*models.MergeHistory
	exclusions  map[int64]*models.MergeExclusion

	nextPriceID    int64
	nextChangeID   int64
	nextExternalID int64
	nextHistoryID  int64
	nextExclID     int64
}

// NewFakeStore returns an empty in-memory store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		buildings:  make(map[uuid.UUID]*models.Building),
		properties: make(map[uuid.UUID]*models.MasterProperty),
		listings:   make(map[uuid.UUID]*models.Listing),
		aliases:    make(map[uuid.UUID]map[string]*models.AliasEntry),
		history:    make(map[int64]*models.MergeHistory),
		exclusions: make(map[int64]*models.MergeExclusion),
	}
}

// Tx runs fn directly against the same store; the fake has no real
// transaction isolation, it exists to exercise callers' Tx-shaped code
// under test without a live database.
func (s *FakeStore) Tx(ctx context.Context, fn func(ctx context.Context, st Store) error) error {
	return fn(ctx, s)
}

func cloneBuilding(b *models.Building) *models.Building {
	cp := *b
	return &cp
}

func cloneProperty(p *models.MasterProperty) *models.MasterProperty {
	cp := *p
	return &cp
}

func cloneListing(l *models.Listing) *models.Listing {
	cp := *l
	return &cp
}

// --- Building ---

func (s *FakeStore) GetBuilding(ctx context.Context, id uuid.UUID) (*models.Building, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buildings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBuilding(b), nil
}

func (s *FakeStore) LockBuilding(ctx context.Context, id uuid.UUID) (*models.Building, error) {
	return s.GetBuilding(ctx, id)
}

func (s *FakeStore) FindBuildingsByCanonicalName(ctx context.Context, canonicalName string) ([]*models.Building, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Building
	for _, b := range s.buildings {
		if b.CanonicalName == canonicalName {
			out = append(out, cloneBuilding(b))
		}
	}
	return out, nil
}

func (s *FakeStore) ListAllBuildings(ctx context.Context) ([]*models.Building, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Building, 0, len(s.buildings))
	for _, b := range s.buildings {
		out = append(out, cloneBuilding(b))
	}
	return out, nil
}

func (s *FakeStore) CreateBuilding(ctx context.Context, b *models.Building) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	s.buildings[b.ID] = cloneBuilding(b)
	return nil
}

func (s *FakeStore) UpdateBuilding(ctx context.Context, b *models.Building) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buildings[b.ID]; !ok {
		return ErrNotFound
	}
	s.buildings[b.ID] = cloneBuilding(b)
	return nil
}

func (s *FakeStore) DeleteBuilding(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buildings, id)
	return nil
}

// --- MasterProperty ---

func (s *FakeStore) GetMasterProperty(ctx context.Context, id uuid.UUID) (*models.MasterProperty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.properties[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneProperty(p), nil
}

func (s *FakeStore) LockMasterProperty(ctx context.Context, id uuid.UUID) (*models.MasterProperty, error) {
	return s.GetMasterProperty(ctx, id)
}

func (s *FakeStore) ListMasterPropertiesByBuilding(ctx context.Context, buildingID uuid.UUID) ([]*models.MasterProperty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.MasterProperty
	for _, p := range s.properties {
		if p.BuildingID == buildingID {
			out = append(out, cloneProperty(p))
		}
	}
	return out, nil
}

func (s *FakeStore) CreateMasterProperty(ctx context.Context, p *models.MasterProperty) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.properties[p.ID] = cloneProperty(p)
	return nil
}

func (s *FakeStore) UpdateMasterProperty(ctx context.Context, p *models.MasterProperty) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.properties[p.ID]; !ok {
		return ErrNotFound
	}
	s.properties[p.ID] = cloneProperty(p)
	return nil
}

func (s *FakeStore) DeleteMasterProperty(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.properties, id)
	return nil
}

// --- Listing ---

func (s *FakeStore) GetListingBySource(ctx context.Context, sourceSite, sitePropertyID string) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.listings {
		if l.SourceSite == sourceSite && l.SitePropertyID == sitePropertyID {
			return cloneListing(l), nil
		}
	}
	return nil, ErrNotFound
}

func (s *FakeStore) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneListing(l), nil
}

func (s *FakeStore) LockListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	return s.GetListing(ctx, id)
}

func (s *FakeStore) ListListingsByMasterProperty(ctx context.Context, masterPropertyID uuid.UUID) ([]*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Listing
	for _, l := range s.listings {
		if l.MasterPropertyID == masterPropertyID {
			out = append(out, cloneListing(l))
		}
	}
	return out, nil
}

func (s *FakeStore) CreateListing(ctx context.Context, l *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.listings {
		if existing.SourceSite == l.SourceSite && existing.SitePropertyID == l.SitePropertyID {
			return nil
		}
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	s.listings[l.ID] = cloneListing(l)
	return nil
}

func (s *FakeStore) UpdateListing(ctx context.Context, l *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[l.ID]; !ok {
		return ErrNotFound
	}
	s.listings[l.ID] = cloneListing(l)
	return nil
}

func (s *FakeStore) ListStaleActiveListings(ctx context.Context, olderThan time.Time, limit int) ([]*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Listing
	for _, l := range s.listings {
		if l.IsActive && l.LastConfirmedAt.Before(olderThan) {
			out = append(out, cloneListing(l))
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *FakeStore) ListReopenableListings(ctx context.Context, confirmedAfter time.Time, limit int) ([]*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Listing
	for _, l := range s.listings {
		if !l.IsActive && !l.LastConfirmedAt.Before(confirmedAfter) {
			out = append(out, cloneListing(l))
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// --- PriceHistory / PropertyPriceChange ---

func (s *FakeStore) AppendPriceHistory(ctx context.Context, ph *models.PriceHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPriceID++
	ph.ID = s.nextPriceID
	cp := *ph
	s.prices = append(s.prices, &cp)
	return nil
}

func (s *FakeStore) GetLastPriceHistory(ctx context.Context, listingID uuid.UUID) (*models.PriceHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.PriceHistory
	for _, ph := range s.prices {
		if ph.ListingID != listingID {
			continue
		}
		if latest == nil || ph.RecordedAt.After(latest.RecordedAt) {
			latest = ph
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *FakeStore) ListPriceHistoryForListing(ctx context.Context, listingID uuid.UUID) ([]*models.PriceHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.PriceHistory
	for _, ph := range s.prices {
		if ph.ListingID == listingID {
			cp := *ph
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *FakeStore) ListPriceHistoryForMasterProperty(ctx context.Context, masterPropertyID uuid.UUID) ([]*models.PriceHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.PriceHistory
	for _, ph := range s.prices {
		l, ok := s.listings[ph.ListingID]
		if !ok || l.MasterPropertyID != masterPropertyID {
			continue
		}
		cp := *ph
		out = append(out, &cp)
	}
	return out, nil
}

func (s *FakeStore) AppendPropertyPriceChange(ctx context.Context, c *models.PropertyPriceChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextChangeID++
	c.ID = s.nextChangeID
	cp := *c
	s.changes = append(s.changes, &cp)
	return nil
}

func (s *FakeStore) GetLastPropertyPriceChange(ctx context.Context, masterPropertyID uuid.UUID) (*models.PropertyPriceChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.PropertyPriceChange
	for _, c := range s.changes {
		if c.MasterPropertyID != masterPropertyID {
			continue
		}
		if latest == nil || c.ChangeDate.After(latest.ChangeDate) {
			latest = c
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

// --- BuildingExternalID ---

func (s *FakeStore) CreateBuildingExternalID(ctx context.Context, e *models.BuildingExternalID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.externalIDs {
		if existing.BuildingID == e.BuildingID && existing.SourceSite == e.SourceSite && existing.ExternalID == e.ExternalID {
			return nil
		}
	}
	s.nextExternalID++
	e.ID = s.nextExternalID
	cp := *e
	s.externalIDs = append(s.externalIDs, &cp)
	return nil
}

func (s *FakeStore) ListBuildingExternalIDs(ctx context.Context, buildingID uuid.UUID) ([]*models.BuildingExternalID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.BuildingExternalID
	for _, e := range s.externalIDs {
		if e.BuildingID == buildingID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// RewriteBuildingExternalIDs moves fromBuildingID's rows onto
// toBuildingID, dropping any that would duplicate an existing
// (source_site, external_id) pair already on the target, per spec.md §4.7.
func (s *FakeStore) RewriteBuildingExternalIDs(ctx context.Context, fromBuildingID, toBuildingID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := make(map[[2]string]bool)
	for _, e := range s.externalIDs {
		if e.BuildingID == toBuildingID {
			existing[[2]string{e.SourceSite, e.ExternalID}] = true
		}
	}
	kept := s.externalIDs[:0]
	for _, e := range s.externalIDs {
		if e.BuildingID == fromBuildingID {
			key := [2]string{e.SourceSite, e.ExternalID}
			if existing[key] {
				continue
			}
			existing[key] = true
			e.BuildingID = toBuildingID
		}
		kept = append(kept, e)
	}
	s.externalIDs = kept
	return nil
}

// --- AliasEntry ---

func (s *FakeStore) UpsertAliasEntry(ctx context.Context, buildingID uuid.UUID, canonicalName, displayName, sourceSite string, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byName, ok := s.aliases[buildingID]
	if !ok {
		byName = make(map[string]*models.AliasEntry)
		s.aliases[buildingID] = byName
	}
	a, ok := byName[canonicalName]
	if !ok {
		byName[canonicalName] = &models.AliasEntry{
			BuildingID:      buildingID,
			CanonicalName:   canonicalName,
			DisplayName:     displayName,
			SourceSites:     []string{sourceSite},
			OccurrenceCount: 1,
			FirstSeenAt:     seenAt,
			LastSeenAt:      seenAt,
		}
		return nil
	}
	a.OccurrenceCount++
	a.LastSeenAt = seenAt
	found := false
	for _, site := range a.SourceSites {
		if site == sourceSite {
			found = true
			break
		}
	}
	if !found {
		a.SourceSites = append(a.SourceSites, sourceSite)
	}
	return nil
}

func (s *FakeStore) SetAliasEntry(ctx context.Context, e *models.AliasEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byName, ok := s.aliases[e.BuildingID]
	if !ok {
		byName = make(map[string]*models.AliasEntry)
		s.aliases[e.BuildingID] = byName
	}
	cp := *e
	byName[e.CanonicalName] = &cp
	return nil
}

func (s *FakeStore) ListAliasEntries(ctx context.Context, buildingID uuid.UUID) ([]*models.AliasEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AliasEntry
	for _, a := range s.aliases[buildingID] {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (s *FakeStore) DeleteAliasEntries(ctx context.Context, buildingID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.aliases, buildingID)
	return nil
}

// --- MergeHistory / MergeExclusion ---

func (s *FakeStore) CreateMergeHistory(ctx context.Context, h *models.MergeHistory) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHistoryID++
	h.ID = s.nextHistoryID
	cp := *h
	s.history[h.ID] = &cp
	return h.ID, nil
}

func (s *FakeStore) GetMergeHistory(ctx context.Context, id int64) (*models.MergeHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.history[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (s *FakeStore) MarkMergeReverted(ctx context.Context, id int64, revertedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.history[id]
	if !ok {
		return ErrNotFound
	}
	t := revertedAt
	h.RevertedAt = &t
	return nil
}

func (s *FakeStore) RewriteMergeHistoryPrimary(ctx context.Context, kind models.MergeKind, oldPrimary, newPrimary uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.history {
		if h.Kind == kind && h.PrimaryID == oldPrimary {
			h.PrimaryID = newPrimary
		}
	}
	return nil
}

func (s *FakeStore) CreateMergeExclusion(ctx context.Context, e *models.MergeExclusion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextExclID++
	e.ID = s.nextExclID
	cp := *e
	s.exclusions[e.ID] = &cp
	return nil
}

func (s *FakeStore) IsExcluded(ctx context.Context, kind models.MergeKind, a, b uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lo, hi := models.ExclusionPair(a, b)
	for _, e := range s.exclusions {
		if e.Kind == kind && e.AID == lo && e.BID == hi {
			return true, nil
		}
	}
	return false, nil
}

func (s *FakeStore) ListMergeExclusions(ctx context.Context, kind models.MergeKind) ([]*models.MergeExclusion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.MergeExclusion
	for _, e := range s.exclusions {
		if e.Kind == kind {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *FakeStore) DeleteMergeExclusionsMentioning(ctx context.Context, kind models.MergeKind, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for eid, e := range s.exclusions {
		if e.Kind == kind && (e.AID == id || e.BID == id) {
			delete(s.exclusions, eid)
		}
	}
	return nil
}
