package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
)

// InitSchema creates the topology tables in Postgres.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createLocationsQuery := `
	CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		lat DOUBLE PRECISION NOT NULL,
		lng DOUBLE PRECISION NOT NULL,
		class TEXT NOT NULL,
		capacity INTEGER NOT NULL CHECK (capacity > 0),
		accessibility DOUBLE PRECISION NOT NULL CHECK (accessibility BETWEEN 0 AND 1),
		safety DOUBLE PRECISION NOT NULL CHECK (safety BETWEEN 0 AND 1),
		amenities TEXT NOT NULL DEFAULT '',
		emergency_services BOOLEAN NOT NULL DEFAULT FALSE,
		base_crowd INTEGER NOT NULL DEFAULT 0,
		base_flow_rate DOUBLE PRECISION NOT NULL DEFAULT 0
	);
	`

	createConnectionsQuery := `
	CREATE TABLE IF NOT EXISTS connections (
		location_a TEXT NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
		location_b TEXT NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
		distance_km DOUBLE PRECISION NOT NULL CHECK (distance_km > 0),
		road_class TEXT NOT NULL,
		width_m DOUBLE PRECISION NOT NULL DEFAULT 0,
		accessibility DOUBLE PRECISION NOT NULL,
		safety DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (location_a, location_b),
		CHECK (location_a <> location_b)
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_connections_location_b
	ON connections(location_b);
	`

	statements := []string{
		createLocationsQuery,
		createConnectionsQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// SeedFromJSON upserts the topology document at jsonPath. The document is
// validated before anything is written.
func SeedFromJSON(ctx context.Context, db *sql.DB, jsonPath string) error {
	f, err := os.Open(jsonPath)
	if err != nil {
		return fmt.Errorf("seed topology: open %q: %w", jsonPath, err)
	}
	defer f.Close()

	doc, err := Decode(f)
	if err != nil {
		return fmt.Errorf("seed topology: %w", err)
	}
	locs, conns, err := doc.ToDomain()
	if err != nil {
		return fmt.Errorf("seed topology: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed topology: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	locQuery := `
	INSERT INTO locations (
		id, name, lat, lng, class, capacity,
		accessibility, safety, amenities, emergency_services,
		base_crowd, base_flow_rate
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		lat = EXCLUDED.lat,
		lng = EXCLUDED.lng,
		class = EXCLUDED.class,
		capacity = EXCLUDED.capacity,
		accessibility = EXCLUDED.accessibility,
		safety = EXCLUDED.safety,
		amenities = EXCLUDED.amenities,
		emergency_services = EXCLUDED.emergency_services,
		base_crowd = EXCLUDED.base_crowd,
		base_flow_rate = EXCLUDED.base_flow_rate;
	`
	locStmt, err := tx.PrepareContext(ctx, locQuery)
	if err != nil {
		return fmt.Errorf("seed topology: prepare location insert: %w", err)
	}
	defer locStmt.Close()

	for _, l := range locs {
		if _, err := locStmt.ExecContext(ctx,
			l.ID, l.Name, l.Coordinates.Lat, l.Coordinates.Lng, string(l.Class), l.Capacity,
			l.AccessibilityScore, l.SafetyScore, joinAmenities(l.Amenities), l.EmergencyServices,
			l.BaseCrowd, l.BaseFlowRate,
		); err != nil {
			return fmt.Errorf("seed topology: insert location id=%s: %w", l.ID, err)
		}
	}

	connQuery := `
	INSERT INTO connections (
		location_a, location_b, distance_km, road_class,
		width_m, accessibility, safety
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (location_a, location_b) DO UPDATE SET
		distance_km = EXCLUDED.distance_km,
		road_class = EXCLUDED.road_class,
		width_m = EXCLUDED.width_m,
		accessibility = EXCLUDED.accessibility,
		safety = EXCLUDED.safety;
	`
	connStmt, err := tx.PrepareContext(ctx, connQuery)
	if err != nil {
		return fmt.Errorf("seed topology: prepare connection insert: %w", err)
	}
	defer connStmt.Close()

	for _, c := range conns {
		if _, err := connStmt.ExecContext(ctx,
			c.A, c.B, c.DistanceKm, string(c.RoadClass),
			c.WidthM, c.AccessibilityScore, c.SafetyScore,
		); err != nil {
			return fmt.Errorf("seed topology: insert connection %s-%s: %w", c.A, c.B, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed topology: commit tx: %w", err)
	}

	return nil
}
