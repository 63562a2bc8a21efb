package topology

import (
	"crowd-route-service/internal/domain"
	"fmt"
)

// ReachabilityRule requires a path from every location of a From class to every
// location of a To class.
type ReachabilityRule struct {
	From []domain.LocationClass
	To   []domain.LocationClass
}

// DefaultReachabilityRules: medical and security posts must reach every ghat and temple.
func DefaultReachabilityRules() []ReachabilityRule {
	return []ReachabilityRule{
		{
			From: []domain.LocationClass{domain.ClassMedical, domain.ClassSecurity},
			To:   []domain.LocationClass{domain.ClassGhat, domain.ClassTemple},
		},
	}
}

type buildOptions struct {
	rules []ReachabilityRule
}

type BuildOption func(*buildOptions)

func defaultBuildOptions() buildOptions {
	return buildOptions{rules: DefaultReachabilityRules()}
}

// WithReachabilityRules replaces the default required-reachability rules.
func WithReachabilityRules(rules ...ReachabilityRule) BuildOption {
	return func(o *buildOptions) {
		o.rules = rules
	}
}

// components labels each location with the id of its connected component.
// The graph is undirected, so reachability is component membership.
func (g *Graph) components() map[string]int {
	comp := make(map[string]int, len(g.ids))
	next := 0

	for _, start := range g.ids {
		if _, ok := comp[start]; ok {
			continue
		}

		queue := []string{start}
		comp[start] = next
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, n := range g.adjacency[cur] {
				if _, ok := comp[n.Location.ID]; ok {
					continue
				}
				comp[n.Location.ID] = next
				queue = append(queue, n.Location.ID)
			}
		}
		next++
	}

	return comp
}

func (g *Graph) checkReachability(rules []ReachabilityRule) []string {
	if len(rules) == 0 {
		return nil
	}

	comp := g.components()
	var problems []string

	for _, rule := range rules {
		from := g.idsOfClasses(rule.From)
		to := g.idsOfClasses(rule.To)
		for _, f := range from {
			for _, t := range to {
				if comp[f] != comp[t] {
					problems = append(problems, fmt.Sprintf("required path missing: %s (%s) cannot reach %s (%s)",
						f, g.locations[f].Class, t, g.locations[t].Class))
				}
			}
		}
	}

	return problems
}

func (g *Graph) idsOfClasses(classes []domain.LocationClass) []string {
	want := make(map[domain.LocationClass]struct{}, len(classes))
	for _, c := range classes {
		want[c] = struct{}{}
	}

	var out []string
	for _, id := range g.ids {
		if _, ok := want[g.locations[id].Class]; ok {
			out = append(out, id)
		}
	}
	return out
}
