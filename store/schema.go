package store

import "context"

// Migrate creates every table and index the entity store needs, mirroring
// storage/sqlite.go's single migrate() string-literal approach but targeting
// Postgres types and the index set spec.md §4.2 calls out.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS buildings (
		id UUID PRIMARY KEY,
		canonical_name TEXT NOT NULL,
		normalized_name TEXT NOT NULL,
		address TEXT NOT NULL,
		normalized_address TEXT NOT NULL,
		built_year INTEGER,
		built_month INTEGER,
		total_floors INTEGER,
		basement_floors INTEGER,
		total_units INTEGER,
		construction_type TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_buildings_canonical_name ON buildings(canonical_name);
	CREATE INDEX IF NOT EXISTS idx_buildings_normalized_address ON buildings(normalized_address);
	CREATE INDEX IF NOT EXISTS idx_buildings_name_address ON buildings(canonical_name, normalized_address);

	CREATE TABLE IF NOT EXISTS master_properties (
		id UUID PRIMARY KEY,
		building_id UUID NOT NULL REFERENCES buildings(id),
		floor_number INTEGER,
		area_m2 DOUBLE PRECISION,
		layout TEXT,
		direction TEXT,
		room_number TEXT,
		balcony_area_m2 DOUBLE PRECISION,
		management_fee INTEGER,
		repair_fund INTEGER,
		current_price INTEGER,
		final_price INTEGER,
		sold_at TIMESTAMPTZ,
		earliest_listing_date TIMESTAMPTZ,
		latest_price_change_at TIMESTAMPTZ,
		display_building_name TEXT,
		is_resale BOOLEAN,
		transaction_type TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_properties_building ON master_properties(building_id);

	CREATE TABLE IF NOT EXISTS listings (
		id UUID PRIMARY KEY,
		source_site TEXT NOT NULL,
		site_property_id TEXT NOT NULL,
		url TEXT,
		master_property_id UUID NOT NULL REFERENCES master_properties(id),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		current_price INTEGER,
		listing_building_name TEXT,
		first_seen_at TIMESTAMPTZ NOT NULL,
		last_confirmed_at TIMESTAMPTZ NOT NULL,
		delisted_at TIMESTAMPTZ,
		published_at TIMESTAMPTZ,
		first_published_at TIMESTAMPTZ,
		listing_total_floors INTEGER,
		listing_basement_floors INTEGER,
		listing_built_year INTEGER,
		listing_built_month INTEGER,
		listing_total_units INTEGER,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE(source_site, site_property_id)
	);

	CREATE INDEX IF NOT EXISTS idx_listings_property ON listings(master_property_id);
	CREATE INDEX IF NOT EXISTS idx_listings_active_confirmed ON listings(is_active, last_confirmed_at);

	CREATE TABLE IF NOT EXISTS price_history (
		id BIGSERIAL PRIMARY KEY,
		listing_id UUID NOT NULL REFERENCES listings(id),
		recorded_at TIMESTAMPTZ NOT NULL,
		price INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_price_history_listing ON price_history(listing_id, recorded_at);

	CREATE TABLE IF NOT EXISTS property_price_changes (
		id BIGSERIAL PRIMARY KEY,
		master_property_id UUID NOT NULL REFERENCES master_properties(id),
		change_date TIMESTAMPTZ NOT NULL,
		new_majority_price INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_price_changes_property ON property_price_changes(master_property_id, change_date);

	CREATE TABLE IF NOT EXISTS building_external_ids (
		id BIGSERIAL PRIMARY KEY,
		building_id UUID NOT NULL REFERENCES buildings(id),
		source_site TEXT NOT NULL,
		external_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE(building_id, source_site, external_id)
	);

	CREATE INDEX IF NOT EXISTS idx_building_external_ids_building ON building_external_ids(building_id);

	CREATE TABLE IF NOT EXISTS alias_entries (
		building_id UUID NOT NULL REFERENCES buildings(id),
		canonical_name TEXT NOT NULL,
		display_name TEXT NOT NULL,
		source_sites TEXT[] NOT NULL DEFAULT '{}',
		occurrence_count INTEGER NOT NULL DEFAULT 0,
		first_seen_at TIMESTAMPTZ NOT NULL,
		last_seen_at TIMESTAMPTZ NOT NULL,
		UNIQUE(building_id, canonical_name)
	);

	CREATE TABLE IF NOT EXISTS merge_history (
		id BIGSERIAL PRIMARY KEY,
		kind TEXT NOT NULL,
		primary_id UUID NOT NULL,
		merged_away_id UUID NOT NULL,
		snapshot JSONB NOT NULL,
		merge_details JSONB,
		actor TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		reverted_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_merge_history_primary ON merge_history(kind, primary_id);

	CREATE TABLE IF NOT EXISTS merge_exclusions (
		id BIGSERIAL PRIMARY KEY,
		kind TEXT NOT NULL,
		a_id UUID NOT NULL,
		b_id UUID NOT NULL,
		reason TEXT,
		actor TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE(kind, a_id, b_id)
	);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}
