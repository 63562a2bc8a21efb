package importer

import (
	"context"
	"crowd-route-service/internal/domain"
	"crowd-route-service/internal/platform/obs"
	"crowd-route-service/internal/ports"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SQLLoader reads the topology from the locations and connections tables.
type SQLLoader struct{ DB *sql.DB }

var _ ports.TopologyLoader = (*SQLLoader)(nil)

func NewSQLLoader(db *sql.DB) *SQLLoader {
	return &SQLLoader{DB: db}
}

func (s *SQLLoader) LoadTopology(ctx context.Context) (_ []domain.Location, _ []domain.Connection, err error) {
	defer obs.Time(ctx, "topology.sql.Load")(&err)

	if s.DB == nil {
		return nil, nil, errors.New("sql topology loader: DB is nil")
	}

	// Both reads share one snapshot of the tables.
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return nil, nil, fmt.Errorf("load topology: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	doc := TopologyFile{}
	if doc.Locations, err = queryLocations(ctx, tx); err != nil {
		return nil, nil, err
	}
	if doc.Connections, err = queryConnections(ctx, tx); err != nil {
		return nil, nil, err
	}

	locs, conns, err := doc.ToDomain()
	if err != nil {
		return nil, nil, fmt.Errorf("load topology: %w", err)
	}
	return locs, conns, nil
}

func queryLocations(ctx context.Context, tx *sql.Tx) ([]LocationRecord, error) {
	query := `
	SELECT
		id, name, lat, lng, class, capacity,
		accessibility, safety, amenities, emergency_services,
		base_crowd, base_flow_rate
	FROM locations
	ORDER BY id;
	`
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load topology: query locations: %w", err)
	}
	defer rows.Close()

	out := make([]LocationRecord, 0, 64)
	for rows.Next() {
		var r LocationRecord
		var amenities string
		if err := rows.Scan(
			&r.ID, &r.Name, &r.Lat, &r.Lng, &r.Class, &r.Capacity,
			&r.Accessibility, &r.Safety, &amenities, &r.EmergencyServices,
			&r.BaseCrowd, &r.BaseFlowRate,
		); err != nil {
			return nil, fmt.Errorf("load topology: scan location: %w", err)
		}
		r.Amenities = splitAmenities(amenities)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load topology: location rows: %w", err)
	}
	return out, nil
}

func queryConnections(ctx context.Context, tx *sql.Tx) ([]ConnectionRecord, error) {
	query := `
	SELECT
		location_a, location_b, distance_km, road_class,
		width_m, accessibility, safety
	FROM connections
	ORDER BY location_a, location_b;
	`
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load topology: query connections: %w", err)
	}
	defer rows.Close()

	out := make([]ConnectionRecord, 0, 128)
	for rows.Next() {
		var r ConnectionRecord
		if err := rows.Scan(
			&r.From, &r.To, &r.DistanceKm, &r.RoadClass,
			&r.WidthM, &r.Accessibility, &r.Safety,
		); err != nil {
			return nil, fmt.Errorf("load topology: scan connection: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load topology: connection rows: %w", err)
	}
	return out, nil
}

// Amenities are stored as a ';'-separated list.
const amenitySep = ";"

func splitAmenities(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, amenitySep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinAmenities(a []string) string { return strings.Join(a, amenitySep) }
