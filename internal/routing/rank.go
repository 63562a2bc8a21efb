package routing

import (
	"crowd-route-service/internal/domain"
	"math"
	"slices"
	"strings"
)

// rankRoutes orders routes in place: optimal first when present, then
// ascending total cost, fewest hops, smallest id path, policy name.
func rankRoutes(routes []domain.Route) {
	slices.SortStableFunc(routes, func(a, b domain.Route) int {
		ap, bp := a.Policy == domain.PolicyOptimal, b.Policy == domain.PolicyOptimal
		if ap != bp {
			if ap {
				return -1
			}
			return 1
		}

		if math.Abs(a.TotalCost-b.TotalCost) > costEpsilon {
			if a.TotalCost < b.TotalCost {
				return -1
			}
			return 1
		}
		if a.Hops() != b.Hops() {
			return a.Hops() - b.Hops()
		}
		if c := slices.Compare(a.Path(), b.Path()); c != 0 {
			return c
		}
		return strings.Compare(string(a.Policy), string(b.Policy))
	})
}
