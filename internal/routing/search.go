package routing

import (
	"container/heap"
	"context"
	"crowd-route-service/internal/topology"
	"math"
	"slices"
)

// costEpsilon treats totals closer than this as equal so ties fall through to
// hop count and path order.
const costEpsilon = 1e-9

// edgeCostFunc returns the cost of stepping onto n, or +Inf with a reason.
type edgeCostFunc func(n topology.Neighbor) (float64, string)

// label is one tentative path ending at node.
type label struct {
	node string
	cost float64
	hops int
	path []string
}

// before is the total order used by the search:
// cost, then fewest hops, then lexicographically smallest id path.
func (a *label) before(b *label) bool {
	if math.Abs(a.cost-b.cost) > costEpsilon {
		return a.cost < b.cost
	}
	if a.hops != b.hops {
		return a.hops < b.hops
	}
	return slices.Compare(a.path, b.path) < 0
}

// labelPQ is a min-heap of labels. Outdated labels stay in the heap and are
// skipped when popped.
type labelPQ []*label

func (pq labelPQ) Len() int            { return len(pq) }
func (pq labelPQ) Less(i, j int) bool  { return pq[i].before(pq[j]) }
func (pq labelPQ) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *labelPQ) Push(x interface{}) { *pq = append(*pq, x.(*label)) }
func (pq *labelPQ) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

type searchResult struct {
	found bool
	path  []string
	cost  float64
	// blocked maps nodes that were only adjacent through unusable connections
	// to the first reason recorded for them.
	blocked map[string]string
	settled map[string]bool
}

// search runs a label-setting shortest path from start to end. The context is
// checked at every heap pop; a cancelled search returns the context error.
func search(ctx context.Context, g *topology.Graph, start, end string, cost edgeCostFunc) (searchResult, error) {
	res := searchResult{
		blocked: make(map[string]string),
		settled: make(map[string]bool, g.Len()),
	}

	best := make(map[string]*label, g.Len())
	pq := make(labelPQ, 0, g.Len())
	heap.Init(&pq)

	first := &label{node: start, path: []string{start}}
	best[start] = first
	heap.Push(&pq, first)

	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return searchResult{}, err
		}

		cur := heap.Pop(&pq).(*label)
		if res.settled[cur.node] || best[cur.node] != cur {
			continue
		}
		res.settled[cur.node] = true

		if cur.node == end {
			res.found = true
			res.path = cur.path
			res.cost = cur.cost
			return res, nil
		}

		neighbors, err := g.Neighbors(cur.node)
		if err != nil {
			return searchResult{}, err
		}

		for _, n := range neighbors {
			id := n.Location.ID
			if res.settled[id] {
				continue
			}

			c, reason := cost(n)
			if math.IsInf(c, 1) {
				if _, seen := res.blocked[id]; !seen {
					res.blocked[id] = reason
				}
				continue
			}

			path := make([]string, len(cur.path), len(cur.path)+1)
			copy(path, cur.path)
			next := &label{
				node: id,
				cost: cur.cost + c,
				hops: cur.hops + 1,
				path: append(path, id),
			}

			if prev, ok := best[id]; ok && !next.before(prev) {
				continue
			}
			best[id] = next
			heap.Push(&pq, next)
		}
	}

	return res, nil
}
