// Package importer loads the static venue topology from a JSON file or Postgres.
package importer

import (
	"crowd-route-service/internal/domain"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// LocationRecord is the wire form of a location.
type LocationRecord struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Lat               float64  `json:"lat"`
	Lng               float64  `json:"lng"`
	Class             string   `json:"class"`
	Capacity          int      `json:"capacity"`
	Accessibility     float64  `json:"accessibility"`
	Safety            float64  `json:"safety"`
	Amenities         []string `json:"amenities,omitempty"`
	EmergencyServices bool     `json:"emergency_services,omitempty"`
	BaseCrowd         int      `json:"base_crowd,omitempty"`
	BaseFlowRate      float64  `json:"base_flow_rate,omitempty"`
}

// ConnectionRecord is the wire form of a connection.
type ConnectionRecord struct {
	From          string  `json:"from"`
	To            string  `json:"to"`
	DistanceKm    float64 `json:"distance_km"`
	RoadClass     string  `json:"road_class"`
	WidthM        float64 `json:"width_m"`
	Accessibility float64 `json:"accessibility"`
	Safety        float64 `json:"safety"`
}

type TopologyFile struct {
	Locations   []LocationRecord   `json:"locations"`
	Connections []ConnectionRecord `json:"connections"`
}

// Decode parses a topology document. Unknown fields are rejected.
func Decode(r io.Reader) (TopologyFile, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var f TopologyFile
	if err := dec.Decode(&f); err != nil {
		return TopologyFile{}, fmt.Errorf("decode topology: %w", err)
	}
	return f, nil
}

func (r LocationRecord) toDomain() (domain.Location, error) {
	class, err := domain.ParseLocationClass(strings.TrimSpace(r.Class))
	if err != nil {
		return domain.Location{}, err
	}
	return domain.Location{
		ID:                 strings.TrimSpace(r.ID),
		Name:               r.Name,
		Coordinates:        domain.Coordinates{Lat: r.Lat, Lng: r.Lng},
		Class:              class,
		Capacity:           r.Capacity,
		AccessibilityScore: r.Accessibility,
		SafetyScore:        r.Safety,
		Amenities:          r.Amenities,
		EmergencyServices:  r.EmergencyServices,
		BaseCrowd:          r.BaseCrowd,
		BaseFlowRate:       r.BaseFlowRate,
	}, nil
}

func (r ConnectionRecord) toDomain() (domain.Connection, error) {
	rc, err := domain.ParseRoadClass(strings.TrimSpace(r.RoadClass))
	if err != nil {
		return domain.Connection{}, err
	}
	return domain.Connection{
		A:                  strings.TrimSpace(r.From),
		B:                  strings.TrimSpace(r.To),
		DistanceKm:         r.DistanceKm,
		RoadClass:          rc,
		WidthM:             r.WidthM,
		SafetyScore:        r.Safety,
		AccessibilityScore: r.Accessibility,
	}, nil
}

// ToDomain converts every record. Any malformed record fails the whole file.
func (f TopologyFile) ToDomain() ([]domain.Location, []domain.Connection, error) {
	var errs []error

	locs := make([]domain.Location, 0, len(f.Locations))
	for i, r := range f.Locations {
		l, err := r.toDomain()
		if err != nil {
			errs = append(errs, fmt.Errorf("location #%d %q: %w", i+1, r.ID, err))
			continue
		}
		locs = append(locs, l)
	}

	conns := make([]domain.Connection, 0, len(f.Connections))
	for i, r := range f.Connections {
		c, err := r.toDomain()
		if err != nil {
			errs = append(errs, fmt.Errorf("connection #%d %s-%s: %w", i+1, r.From, r.To, err))
			continue
		}
		conns = append(conns, c)
	}

	if len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}
	return locs, conns, nil
}

// FromDomain is the inverse of ToDomain.
func FromDomain(locs []domain.Location, conns []domain.Connection) TopologyFile {
	f := TopologyFile{
		Locations:   make([]LocationRecord, 0, len(locs)),
		Connections: make([]ConnectionRecord, 0, len(conns)),
	}
	for _, l := range locs {
		f.Locations = append(f.Locations, LocationRecord{
			ID: l.ID, Name: l.Name, Lat: l.Coordinates.Lat, Lng: l.Coordinates.Lng,
			Class: string(l.Class), Capacity: l.Capacity,
			Accessibility: l.AccessibilityScore, Safety: l.SafetyScore,
			Amenities: l.Amenities, EmergencyServices: l.EmergencyServices,
			BaseCrowd: l.BaseCrowd, BaseFlowRate: l.BaseFlowRate,
		})
	}
	for _, c := range conns {
		f.Connections = append(f.Connections, ConnectionRecord{
			From: c.A, To: c.B, DistanceKm: c.DistanceKm, RoadClass: string(c.RoadClass),
			WidthM: c.WidthM, Accessibility: c.AccessibilityScore, Safety: c.SafetyScore,
		})
	}
	return f
}
