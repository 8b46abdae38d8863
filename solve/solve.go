// Package solve picks a minimum-cost arborescence out of a queryspace.Space
// using the repeated multi-source-shortest-path heuristic for the directed
// Steiner tree problem described in spec §4.4: reach every indispensable
// leaf field as cheaply as possible, treating an edge already on the tree
// as free for later terminals so that reusing a subgraph round trip never
// costs more than opening it once.
package solve

import (
	"fmt"

	"github.com/graphfed/engine/internal/idpack"
	"github.com/graphfed/engine/queryspace"
)

// Arborescence is the tree the solver chose: for every node it decided to
// include, the single edge that reaches it from an already-included
// ancestor (Root has no incoming edge).
type Arborescence struct {
	Reached      map[queryspace.NodeID]bool
	IncomingEdge map[queryspace.NodeID]queryspace.Edge
}

// Includes reports whether node n is part of the selected tree.
func (a *Arborescence) Includes(n queryspace.NodeID) bool { return a.Reached[n] }

// SelectedChildren returns the subset of sp.Outgoing(n) that the solver
// actually chose to reach their destination (as opposed to candidate edges
// it considered and discarded).
func (a *Arborescence) SelectedChildren(sp *queryspace.Space, n queryspace.NodeID) []queryspace.Edge {
	var out []queryspace.Edge
	for _, e := range sp.Outgoing(n) {
		if chosen, ok := a.IncomingEdge[e.To]; ok && chosen == e {
			out = append(out, e)
		}
	}
	return out
}

// edgeKindWidth is the number of low bits idpack.Pack needs to distinguish
// every queryspace.EdgeKind tag.
var edgeKindWidth = idpack.Width(4)

// packEdgeArrival packs an edge's kind and destination node into one id,
// the way the solver's per-From override table keys on "which kind of edge
// landed on which node" without paying for a 3-field struct key on every
// shortestPath lookup.
func packEdgeArrival(e queryspace.Edge) idpack.Packed {
	return idpack.Pack(edgeKindWidth, uint32(e.Kind), uint32(e.To))
}

// Solve runs the heuristic to completion, including the fixed-point pass
// that pulls in `@requires` dependencies of any resolver the tree ends up
// using (spec step 4: "requires edges force the required fields to be
// included in any selected tree").
func Solve(sp *queryspace.Space) (*Arborescence, error) {
	arb := &Arborescence{
		Reached:      map[queryspace.NodeID]bool{sp.Root: true},
		IncomingEdge: map[queryspace.NodeID]queryspace.Edge{},
	}
	overrides := map[queryspace.NodeID]map[idpack.Packed]int{}
	effCost := func(e queryspace.Edge) int {
		if m, ok := overrides[e.From]; ok {
			if c, ok := m[packEdgeArrival(e)]; ok {
				return c
			}
		}
		return e.Cost
	}

	var queue []queryspace.NodeID
	queued := map[queryspace.NodeID]bool{}
	enqueue := func(n queryspace.NodeID) {
		if arb.Reached[n] || queued[n] {
			return
		}
		queued[n] = true
		queue = append(queue, n)
	}

	for _, n := range sp.Nodes {
		if n.Kind == queryspace.NodeQueryField &&
			n.QueryField.Flags.Has(queryspace.FlagIndispensable) &&
			n.QueryField.Flags.Has(queryspace.FlagLeaf) {
			enqueue(n.ID)
		}
	}

	for len(queue) > 0 {
		target := queue[0]
		queue = queue[1:]
		queued[target] = false
		if arb.Reached[target] {
			continue
		}

		path, err := shortestPath(sp, effCost, arb.Reached, target)
		if err != nil {
			return nil, err
		}
		for _, e := range path {
			arb.Reached[e.To] = true
			arb.IncomingEdge[e.To] = e
			if overrides[e.From] == nil {
				overrides[e.From] = map[idpack.Packed]int{}
			}
			overrides[e.From][packEdgeArrival(e)] = 0
			// A reached field's parent field must be in the tree too; Field
			// edges are not relaxed, so make the parent a target of its own.
			for _, pe := range sp.Edges {
				if pe.Kind == queryspace.EdgeField && pe.To == e.To {
					enqueue(pe.From)
				}
			}
		}

		for n := range arb.Reached {
			node := sp.Node(n)
			if node.Kind != queryspace.NodeResolver {
				continue
			}
			for _, e := range sp.Edges {
				if e.Kind == queryspace.EdgeRequires && e.To == n && !arb.Reached[e.From] {
					enqueue(e.From)
				}
			}
		}
	}

	return arb, nil
}

// shortestPath runs a multi-source Dijkstra seeded at every node already in
// reached (distance 0), returning the edges from the tree's frontier to
// target in root-to-leaf order. Node ids break cost ties, which is what
// makes the solver's output deterministic given the builder's deterministic
// node-insertion order (spec §4.4).
func shortestPath(sp *queryspace.Space, cost func(queryspace.Edge) int, reached map[queryspace.NodeID]bool, target queryspace.NodeID) ([]queryspace.Edge, error) {
	const inf = 1 << 30
	n := len(sp.Nodes)
	dist := make([]int, n)
	prevEdge := make([]*queryspace.Edge, n)
	visited := make([]bool, n)
	for i := range dist {
		dist[i] = inf
	}
	for r := range reached {
		dist[r] = 0
	}

	for {
		cur := -1
		for i := 0; i < n; i++ {
			if visited[i] || dist[i] >= inf {
				continue
			}
			if cur == -1 || dist[i] < dist[cur] {
				cur = i
			}
		}
		if cur == -1 {
			return nil, fmt.Errorf("queryspace has no path to field node %d", target)
		}
		visited[cur] = true
		if queryspace.NodeID(cur) == target {
			break
		}
		for _, e := range sp.Outgoing(queryspace.NodeID(cur)) {
			// Field edges are structural containment, not a resolving
			// choice: they would otherwise offer a free bypass around every
			// resolver, since they're always cost 0. The one exception is
			// __typename, which never needs a resolver at all.
			if e.Kind == queryspace.EdgeField {
				dest := sp.Node(e.To)
				if dest.QueryField == nil || !dest.QueryField.Flags.Has(queryspace.FlagTypename) {
					continue
				}
			}
			nd := dist[cur] + cost(e)
			if nd < dist[e.To] {
				dist[e.To] = nd
				edge := e
				prevEdge[e.To] = &edge
			}
		}
	}

	var path []queryspace.Edge
	cur := target
	for prevEdge[cur] != nil {
		e := *prevEdge[cur]
		path = append([]queryspace.Edge{e}, path...)
		cur = e.From
		if reached[cur] {
			break
		}
	}
	return path, nil
}
