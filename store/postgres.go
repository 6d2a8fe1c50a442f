package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"condocore/models"
	"condocore/txretry"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting every SQL
// method below run unchanged whether it is pool-scoped or transaction-scoped.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the entity store of spec.md §4.2, grounded on
// storage/postgres.go's pgxpool usage, ON CONFLICT upserts, and
// pgx.ErrNoRows handling.
type PostgresStore struct {
	pool *pgxpool.Pool
	db   querier
	cfg  txretry.Config
}

// NewPostgresStore connects a pool and pings it, per storage/postgres.go's
// NewPostgresStore.
func NewPostgresStore(ctx context.Context, connString string, retryCfg txretry.Config) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool, db: pool, cfg: retryCfg}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() { s.pool.Close() }

// Tx runs fn in a single pgx.Tx, retrying the whole operation on deadlock
// per §5's policy.
func (s *PostgresStore) Tx(ctx context.Context, fn func(ctx context.Context, st Store) error) error {
	return txretry.Do(ctx, s.cfg, func(ctx context.Context) error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return err
		}
		scoped := &PostgresStore{pool: s.pool, db: tx, cfg: s.cfg}
		if err := fn(ctx, scoped); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		return tx.Commit(ctx)
	})
}

// --- Building ---

const buildingColumns = `id, canonical_name, normalized_name, address, normalized_address,
	built_year, built_month, total_floors, basement_floors, total_units,
	construction_type, created_at, updated_at`

func scanBuilding(row pgx.Row) (*models.Building, error) {
	var b models.Building
	err := row.Scan(
		&b.ID, &b.CanonicalName, &b.NormalizedName, &b.Address, &b.NormalizedAddress,
		&b.BuiltYear, &b.BuiltMonth, &b.TotalFloors, &b.BasementFloors, &b.TotalUnits,
		&b.ConstructionType, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *PostgresStore) GetBuilding(ctx context.Context, id uuid.UUID) (*models.Building, error) {
	row := s.db.QueryRow(ctx, `SELECT `+buildingColumns+` FROM buildings WHERE id = $1`, id)
	return scanBuilding(row)
}

func (s *PostgresStore) LockBuilding(ctx context.Context, id uuid.UUID) (*models.Building, error) {
	row := s.db.QueryRow(ctx, `SELECT `+buildingColumns+` FROM buildings WHERE id = $1 FOR UPDATE`, id)
	return scanBuilding(row)
}

func (s *PostgresStore) FindBuildingsByCanonicalName(ctx context.Context, canonicalName string) ([]*models.Building, error) {
	rows, err := s.db.Query(ctx, `SELECT `+buildingColumns+` FROM buildings WHERE canonical_name = $1`, canonicalName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListAllBuildings(ctx context.Context) ([]*models.Building, error) {
	rows, err := s.db.Query(ctx, `SELECT `+buildingColumns+` FROM buildings ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateBuilding(ctx context.Context, b *models.Building) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	query := `
		INSERT INTO buildings (id, canonical_name, normalized_name, address, normalized_address,
			built_year, built_month, total_floors, basement_floors, total_units,
			construction_type, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := s.db.Exec(ctx, query,
		b.ID, b.CanonicalName, b.NormalizedName, b.Address, b.NormalizedAddress,
		b.BuiltYear, b.BuiltMonth, b.TotalFloors, b.BasementFloors, b.TotalUnits,
		b.ConstructionType, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) UpdateBuilding(ctx context.Context, b *models.Building) error {
	query := `
		UPDATE buildings SET canonical_name=$2, normalized_name=$3, address=$4, normalized_address=$5,
			built_year=$6, built_month=$7, total_floors=$8, basement_floors=$9, total_units=$10,
			construction_type=$11, updated_at=$12
		WHERE id=$1`
	_, err := s.db.Exec(ctx, query,
		b.ID, b.CanonicalName, b.NormalizedName, b.Address, b.NormalizedAddress,
		b.BuiltYear, b.BuiltMonth, b.TotalFloors, b.BasementFloors, b.TotalUnits,
		b.ConstructionType, b.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) DeleteBuilding(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM buildings WHERE id=$1`, id)
	return err
}

// --- MasterProperty ---

const propertyColumns = `id, building_id, floor_number, area_m2, layout, direction, room_number,
	balcony_area_m2, management_fee, repair_fund, current_price, final_price, sold_at,
	earliest_listing_date, latest_price_change_at, display_building_name, is_resale,
	transaction_type, created_at, updated_at`

func scanProperty(row pgx.Row) (*models.MasterProperty, error) {
	var p models.MasterProperty
	err := row.Scan(
		&p.ID, &p.BuildingID, &p.FloorNumber, &p.AreaM2, &p.Layout, &p.Direction, &p.RoomNumber,
		&p.BalconyAreaM2, &p.ManagementFee, &p.RepairFund, &p.CurrentPrice, &p.FinalPrice, &p.SoldAt,
		&p.EarliestListingDate, &p.LatestPriceChangeAt, &p.DisplayBuildingName, &p.IsResale,
		&p.TransactionType, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetMasterProperty(ctx context.Context, id uuid.UUID) (*models.MasterProperty, error) {
	row := s.db.QueryRow(ctx, `SELECT `+propertyColumns+` FROM master_properties WHERE id=$1`, id)
	return scanProperty(row)
}

func (s *PostgresStore) LockMasterProperty(ctx context.Context, id uuid.UUID) (*models.MasterProperty, error) {
	row := s.db.QueryRow(ctx, `SELECT `+propertyColumns+` FROM master_properties WHERE id=$1 FOR UPDATE`, id)
	return scanProperty(row)
}

func (s *PostgresStore) ListMasterPropertiesByBuilding(ctx context.Context, buildingID uuid.UUID) ([]*models.MasterProperty, error) {
	rows, err := s.db.Query(ctx, `SELECT `+propertyColumns+` FROM master_properties WHERE building_id=$1 ORDER BY id`, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.MasterProperty
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateMasterProperty(ctx context.Context, p *models.MasterProperty) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO master_properties (id, building_id, floor_number, area_m2, layout, direction,
			room_number, balcony_area_m2, management_fee, repair_fund, current_price, final_price,
			sold_at, earliest_listing_date, latest_price_change_at, display_building_name, is_resale,
			transaction_type, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`
	_, err := s.db.Exec(ctx, query,
		p.ID, p.BuildingID, p.FloorNumber, p.AreaM2, p.Layout, p.Direction,
		p.RoomNumber, p.BalconyAreaM2, p.ManagementFee, p.RepairFund, p.CurrentPrice, p.FinalPrice,
		p.SoldAt, p.EarliestListingDate, p.LatestPriceChangeAt, p.DisplayBuildingName, p.IsResale,
		p.TransactionType, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) UpdateMasterProperty(ctx context.Context, p *models.MasterProperty) error {
	query := `
		UPDATE master_properties SET building_id=$2, floor_number=$3, area_m2=$4, layout=$5,
			direction=$6, room_number=$7, balcony_area_m2=$8, management_fee=$9, repair_fund=$10,
			current_price=$11, final_price=$12, sold_at=$13, earliest_listing_date=$14,
			latest_price_change_at=$15, display_building_name=$16, is_resale=$17,
			transaction_type=$18, updated_at=$19
		WHERE id=$1`
	_, err := s.db.Exec(ctx, query,
		p.ID, p.BuildingID, p.FloorNumber, p.AreaM2, p.Layout,
		p.Direction, p.RoomNumber, p.BalconyAreaM2, p.ManagementFee, p.RepairFund,
		p.CurrentPrice, p.FinalPrice, p.SoldAt, p.EarliestListingDate,
		p.LatestPriceChangeAt, p.DisplayBuildingName, p.IsResale,
		p.TransactionType, p.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) DeleteMasterProperty(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM master_properties WHERE id=$1`, id)
	return err
}

// --- Listing ---

const listingColumns = `id, source_site, site_property_id, url, master_property_id, is_active,
	current_price, listing_building_name, first_seen_at, last_confirmed_at, delisted_at,
	published_at, first_published_at, listing_total_floors, listing_basement_floors,
	listing_built_year, listing_built_month, listing_total_units, created_at, updated_at`

func scanListing(row pgx.Row) (*models.Listing, error) {
	var l models.Listing
	err := row.Scan(
		&l.ID, &l.SourceSite, &l.SitePropertyID, &l.URL, &l.MasterPropertyID, &l.IsActive,
		&l.CurrentPrice, &l.ListingBuildingName, &l.FirstSeenAt, &l.LastConfirmedAt, &l.DelistedAt,
		&l.PublishedAt, &l.FirstPublishedAt, &l.ListingTotalFloors, &l.ListingBasementFloors,
		&l.ListingBuiltYear, &l.ListingBuiltMonth, &l.ListingTotalUnits, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PostgresStore) GetListingBySource(ctx context.Context, sourceSite, sitePropertyID string) (*models.Listing, error) {
	row := s.db.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE source_site=$1 AND site_property_id=$2`, sourceSite, sitePropertyID)
	return scanListing(row)
}

func (s *PostgresStore) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	row := s.db.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id=$1`, id)
	return scanListing(row)
}

func (s *PostgresStore) LockListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	row := s.db.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id=$1 FOR UPDATE`, id)
	return scanListing(row)
}

func (s *PostgresStore) ListListingsByMasterProperty(ctx context.Context, masterPropertyID uuid.UUID) ([]*models.Listing, error) {
	rows, err := s.db.Query(ctx, `SELECT `+listingColumns+` FROM listings WHERE master_property_id=$1 ORDER BY id`, masterPropertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateListing(ctx context.Context, l *models.Listing) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	query := `
		INSERT INTO listings (id, source_site, site_property_id, url, master_property_id, is_active,
			current_price, listing_building_name, first_seen_at, last_confirmed_at, delisted_at,
			published_at, first_published_at, listing_total_floors, listing_basement_floors,
			listing_built_year, listing_built_month, listing_total_units, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (source_site, site_property_id) DO NOTHING`
	_, err := s.db.Exec(ctx, query,
		l.ID, l.SourceSite, l.SitePropertyID, l.URL, l.MasterPropertyID, l.IsActive,
		l.CurrentPrice, l.ListingBuildingName, l.FirstSeenAt, l.LastConfirmedAt, l.DelistedAt,
		l.PublishedAt, l.FirstPublishedAt, l.ListingTotalFloors, l.ListingBasementFloors,
		l.ListingBuiltYear, l.ListingBuiltMonth, l.ListingTotalUnits, l.CreatedAt, l.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) UpdateListing(ctx context.Context, l *models.Listing) error {
	query := `
		UPDATE listings SET source_site=$2, site_property_id=$3, url=$4, master_property_id=$5,
			is_active=$6, current_price=$7, listing_building_name=$8, first_seen_at=$9,
			last_confirmed_at=$10, delisted_at=$11, published_at=$12, first_published_at=$13,
			listing_total_floors=$14, listing_basement_floors=$15, listing_built_year=$16,
			listing_built_month=$17, listing_total_units=$18, updated_at=$19
		WHERE id=$1`
	_, err := s.db.Exec(ctx, query,
		l.ID, l.SourceSite, l.SitePropertyID, l.URL, l.MasterPropertyID,
		l.IsActive, l.CurrentPrice, l.ListingBuildingName, l.FirstSeenAt,
		l.LastConfirmedAt, l.DelistedAt, l.PublishedAt, l.FirstPublishedAt,
		l.ListingTotalFloors, l.ListingBasementFloors, l.ListingBuiltYear,
		l.ListingBuiltMonth, l.ListingTotalUnits, l.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) ListStaleActiveListings(ctx context.Context, olderThan time.Time, limit int) ([]*models.Listing, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE is_active = true AND last_confirmed_at < $1
		ORDER BY last_confirmed_at LIMIT $2`, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListReopenableListings(ctx context.Context, confirmedAfter time.Time, limit int) ([]*models.Listing, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE is_active = false AND last_confirmed_at >= $1
		ORDER BY last_confirmed_at LIMIT $2`, confirmedAfter, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// --- PriceHistory / PropertyPriceChange ---

func (s *PostgresStore) AppendPriceHistory(ctx context.Context, ph *models.PriceHistory) error {
	query := `INSERT INTO price_history (listing_id, recorded_at, price) VALUES ($1,$2,$3) RETURNING id`
	return s.db.QueryRow(ctx, query, ph.ListingID, ph.RecordedAt, ph.Price).Scan(&ph.ID)
}

func (s *PostgresStore) GetLastPriceHistory(ctx context.Context, listingID uuid.UUID) (*models.PriceHistory, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, listing_id, recorded_at, price FROM price_history
		WHERE listing_id=$1 ORDER BY recorded_at DESC LIMIT 1`, listingID)
	var ph models.PriceHistory
	err := row.Scan(&ph.ID, &ph.ListingID, &ph.RecordedAt, &ph.Price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ph, nil
}

func (s *PostgresStore) ListPriceHistoryForListing(ctx context.Context, listingID uuid.UUID) ([]*models.PriceHistory, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, listing_id, recorded_at, price FROM price_history
		WHERE listing_id=$1 ORDER BY recorded_at`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.PriceHistory
	for rows.Next() {
		var ph models.PriceHistory
		if err := rows.Scan(&ph.ID, &ph.ListingID, &ph.RecordedAt, &ph.Price); err != nil {
			return nil, err
		}
		out = append(out, &ph)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListPriceHistoryForMasterProperty(ctx context.Context, masterPropertyID uuid.UUID) ([]*models.PriceHistory, error) {
	rows, err := s.db.Query(ctx, `
		SELECT ph.id, ph.listing_id, ph.recorded_at, ph.price
		FROM price_history ph
		JOIN listings l ON l.id = ph.listing_id
		WHERE l.master_property_id = $1
		ORDER BY ph.recorded_at`, masterPropertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.PriceHistory
	for rows.Next() {
		var ph models.PriceHistory
		if err := rows.Scan(&ph.ID, &ph.ListingID, &ph.RecordedAt, &ph.Price); err != nil {
			return nil, err
		}
		out = append(out, &ph)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendPropertyPriceChange(ctx context.Context, c *models.PropertyPriceChange) error {
	query := `INSERT INTO property_price_changes (master_property_id, change_date, new_majority_price)
		VALUES ($1,$2,$3) RETURNING id`
	return s.db.QueryRow(ctx, query, c.MasterPropertyID, c.ChangeDate, c.NewMajorityPrice).Scan(&c.ID)
}

func (s *PostgresStore) GetLastPropertyPriceChange(ctx context.Context, masterPropertyID uuid.UUID) (*models.PropertyPriceChange, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, master_property_id, change_date, new_majority_price FROM property_price_changes
		WHERE master_property_id=$1 ORDER BY change_date DESC LIMIT 1`, masterPropertyID)
	var c models.PropertyPriceChange
	err := row.Scan(&c.ID, &c.MasterPropertyID, &c.ChangeDate, &c.NewMajorityPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// --- BuildingExternalID ---

func (s *PostgresStore) CreateBuildingExternalID(ctx context.Context, e *models.BuildingExternalID) error {
	query := `
		INSERT INTO building_external_ids (building_id, source_site, external_id, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (building_id, source_site, external_id) DO NOTHING
		RETURNING id`
	err := s.db.QueryRow(ctx, query, e.BuildingID, e.SourceSite, e.ExternalID, e.CreatedAt).Scan(&e.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}

func (s *PostgresStore) ListBuildingExternalIDs(ctx context.Context, buildingID uuid.UUID) ([]*models.BuildingExternalID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, building_id, source_site, external_id, created_at
		FROM building_external_ids WHERE building_id=$1`, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.BuildingExternalID
	for rows.Next() {
		var e models.BuildingExternalID
		if err := rows.Scan(&e.ID, &e.BuildingID, &e.SourceSite, &e.ExternalID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// RewriteBuildingExternalIDs moves fromBuildingID's external-id rows onto
// toBuildingID, per spec.md §4.7's merge clause: any row that would
// duplicate an (source_site, external_id) pair already present on the
// target is dropped rather than moved.
func (s *PostgresStore) RewriteBuildingExternalIDs(ctx context.Context, fromBuildingID, toBuildingID uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `
		DELETE FROM building_external_ids src
		WHERE src.building_id=$1 AND EXISTS (
			SELECT 1 FROM building_external_ids dst
			WHERE dst.building_id=$2 AND dst.source_site=src.source_site AND dst.external_id=src.external_id
		)`, fromBuildingID, toBuildingID); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `UPDATE building_external_ids SET building_id=$2 WHERE building_id=$1`, fromBuildingID, toBuildingID)
	return err
}

// --- AliasEntry ---

func (s *PostgresStore) UpsertAliasEntry(ctx context.Context, buildingID uuid.UUID, canonicalName, displayName, sourceSite string, seenAt time.Time) error {
	query := `
		INSERT INTO alias_entries (building_id, canonical_name, display_name, source_sites, occurrence_count, first_seen_at, last_seen_at)
		VALUES ($1, $2, $3, ARRAY[$4]::text[], 1, $5, $5)
		ON CONFLICT (building_id, canonical_name) DO UPDATE SET
			occurrence_count = alias_entries.occurrence_count + 1,
			source_sites = CASE WHEN $4 = ANY(alias_entries.source_sites) THEN alias_entries.source_sites
				ELSE array_append(alias_entries.source_sites, $4) END,
			last_seen_at = $5`
	_, err := s.db.Exec(ctx, query, buildingID, canonicalName, displayName, sourceSite, seenAt)
	return err
}

// SetAliasEntry writes an entry's exact final state, used by the alias
// ledger's refresh rebuild rather than its per-sighting increment path.
func (s *PostgresStore) SetAliasEntry(ctx context.Context, e *models.AliasEntry) error {
	query := `
		INSERT INTO alias_entries (building_id, canonical_name, display_name, source_sites, occurrence_count, first_seen_at, last_seen_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (building_id, canonical_name) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			source_sites = EXCLUDED.source_sites,
			occurrence_count = EXCLUDED.occurrence_count,
			first_seen_at = EXCLUDED.first_seen_at,
			last_seen_at = EXCLUDED.last_seen_at`
	_, err := s.db.Exec(ctx, query, e.BuildingID, e.CanonicalName, e.DisplayName, e.SourceSites, e.OccurrenceCount, e.FirstSeenAt, e.LastSeenAt)
	return err
}

func (s *PostgresStore) ListAliasEntries(ctx context.Context, buildingID uuid.UUID) ([]*models.AliasEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT building_id, canonical_name, display_name, source_sites, occurrence_count, first_seen_at, last_seen_at
		FROM alias_entries WHERE building_id=$1`, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.AliasEntry
	for rows.Next() {
		var a models.AliasEntry
		if err := rows.Scan(&a.BuildingID, &a.CanonicalName, &a.DisplayName, &a.SourceSites,
			&a.OccurrenceCount, &a.FirstSeenAt, &a.LastSeenAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteAliasEntries(ctx context.Context, buildingID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM alias_entries WHERE building_id=$1`, buildingID)
	return err
}

// --- MergeHistory / MergeExclusion ---

func (s *PostgresStore) CreateMergeHistory(ctx context.Context, h *models.MergeHistory) (int64, error) {
	query := `
		INSERT INTO merge_history (kind, primary_id, merged_away_id, snapshot, merge_details, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`
	var id int64
	err := s.db.QueryRow(ctx, query, h.Kind, h.PrimaryID, h.MergedAwayID, h.Snapshot, h.MergeDetails, h.Actor, h.CreatedAt).Scan(&id)
	return id, err
}

func (s *PostgresStore) GetMergeHistory(ctx context.Context, id int64) (*models.MergeHistory, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, kind, primary_id, merged_away_id, snapshot, merge_details, actor, created_at, reverted_at
		FROM merge_history WHERE id=$1`, id)
	var h models.MergeHistory
	err := row.Scan(&h.ID, &h.Kind, &h.PrimaryID, &h.MergedAwayID, &h.Snapshot, &h.MergeDetails, &h.Actor, &h.CreatedAt, &h.RevertedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *PostgresStore) MarkMergeReverted(ctx context.Context, id int64, revertedAt time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE merge_history SET reverted_at=$2 WHERE id=$1`, id, revertedAt)
	return err
}

// RewriteMergeHistoryPrimary rewrites prior merge_history rows that name
// oldPrimary as primary_id to point at newPrimary, keeping the cyclic
// reference chain at length <= 2 per Design Note §9.
func (s *PostgresStore) RewriteMergeHistoryPrimary(ctx context.Context, kind models.MergeKind, oldPrimary, newPrimary uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE merge_history SET primary_id=$3 WHERE kind=$1 AND primary_id=$2`, kind, oldPrimary, newPrimary)
	return err
}

func (s *PostgresStore) CreateMergeExclusion(ctx context.Context, e *models.MergeExclusion) error {
	query := `
		INSERT INTO merge_exclusions (kind, a_id, b_id, reason, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`
	return s.db.QueryRow(ctx, query, e.Kind, e.AID, e.BID, e.Reason, e.Actor, e.CreatedAt).Scan(&e.ID)
}

func (s *PostgresStore) IsExcluded(ctx context.Context, kind models.MergeKind, a, b uuid.UUID) (bool, error) {
	lo, hi := models.ExclusionPair(a, b)
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM merge_exclusions WHERE kind=$1 AND a_id=$2 AND b_id=$3)`,
		kind, lo, hi).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) ListMergeExclusions(ctx context.Context, kind models.MergeKind) ([]*models.MergeExclusion, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, kind, a_id, b_id, reason, actor, created_at FROM merge_exclusions WHERE kind=$1`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.MergeExclusion
	for rows.Next() {
		var e models.MergeExclusion
		if err := rows.Scan(&e.ID, &e.Kind, &e.AID, &e.BID, &e.Reason, &e.Actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteMergeExclusionsMentioning(ctx context.Context, kind models.MergeKind, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM merge_exclusions WHERE kind=$1 AND (a_id=$2 OR b_id=$2)`, kind, id)
	return err
}
