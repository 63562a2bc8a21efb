package domain

import "fmt"

// RoadClass is the physical category of a connection.
type RoadClass string

const (
	RoadPedestrian RoadClass = "pedestrian"
	RoadService    RoadClass = "service"
	RoadMain       RoadClass = "main"
	RoadArterial   RoadClass = "arterial"
	RoadEmergency  RoadClass = "emergency"
	RoadRestricted RoadClass = "restricted"
)

var AllRoadClasses = []RoadClass{
	RoadPedestrian, RoadService, RoadMain, RoadArterial, RoadEmergency, RoadRestricted,
}

func ParseRoadClass(s string) (RoadClass, error) {
	for _, c := range AllRoadClasses {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("parse road class: unknown class %q", s)
}

// Connection is an undirected, traversable link between two locations.
// Both directions share the same physical attributes.
type Connection struct {
	A                  string
	B                  string
	DistanceKm         float64
	RoadClass          RoadClass
	WidthM             float64
	SafetyScore        float64
	AccessibilityScore float64
}

// Other returns the endpoint opposite to id.
func (c Connection) Other(id string) string {
	if c.A == id {
		return c.B
	}
	return c.A
}

// Key is an order-independent identifier for the pair of endpoints.
func (c Connection) Key() string {
	if c.A < c.B {
		return c.A + "|" + c.B
	}
	return c.B + "|" + c.A
}
