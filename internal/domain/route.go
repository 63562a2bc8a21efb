package domain

// Represents one traversal between two adjacent locations in a planned route.
// Factors are evaluated against the snapshot used for the search.
type RouteSegment struct {
	From                string
	To                  string
	DistanceKm          float64
	DurationMin         float64
	CrowdFactor         float64
	SafetyFactor        float64
	AccessibilityFactor float64
	RoadClass           RoadClass
	WidthM              float64
	Cost                float64
}

// Waypoint is a location on a route, ranked by its position along the path.
type Waypoint struct {
	Rank        int
	LocationID  string
	Name        string
	Class       LocationClass
	Coordinates Coordinates
}

// Represents the planned route for a single policy.
// Aggregate scores are arithmetic means over segments; a zero-segment route
// reports the scores of its single location.
type Route struct {
	Policy             Policy
	Segments           []RouteSegment
	Waypoints          []Waypoint
	TotalDistanceKm    float64
	TotalDurationMin   float64
	TotalCost          float64
	SafetyScore        float64
	AccessibilityScore float64
	CrowdLevel         float64
	Steps              int
	Calories           int
}

// Hops returns the number of segments.
func (r Route) Hops() int { return len(r.Segments) }

// Path returns the ordered location ids of the route.
func (r Route) Path() []string {
	out := make([]string, 0, len(r.Waypoints))
	for _, w := range r.Waypoints {
		out = append(out, w.LocationID)
	}
	return out
}

// ExcludedNode explains why a location could not be used under a policy.
type ExcludedNode struct {
	LocationID string
	Policy     Policy
	Reason     string
}

// NoRouteFound is the success-shaped empty result when every policy failed.
type NoRouteFound struct {
	Start             string
	End               string
	AttemptedPolicies []Policy
	PolicyFailures    map[Policy]string
	ExcludedNodes     []ExcludedNode
}
