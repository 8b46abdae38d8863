// Package queryspace builds the candidate graph (spec §3 "QuerySolutionSpace")
// that the solver chooses a minimum-cost arborescence over: for every
// selection in a bound operation, the set of resolvers across subgraphs
// that could produce it, and the dependencies (`@requires`) those resolvers
// demand before they can run.
package queryspace

import (
	"github.com/graphfed/engine/operation"
	"github.com/graphfed/engine/schema"
)

type NodeID int

type NodeKind uint8

const (
	NodeRoot NodeKind = iota
	NodeQueryField
	NodeResolver
	NodeProvidableField
)

// Flags mark why a QueryField node exists and what shape of value it holds.
type Flags uint8

const (
	FlagIndispensable Flags = 1 << iota
	FlagExtra
	FlagLeaf
	FlagTypename
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// QueryFieldData is the payload of a NodeQueryField node: one occurrence of
// a selection (client-authored or injected by a requirement).
type QueryFieldData struct {
	ParentType  schema.TypeID
	ResponseKey string
	FieldID     schema.FieldID // zero when Typename
	Flags       Flags
	// Selection points back at the originating bound selection, for
	// client-authored fields and the binder's synthetic __typename alike;
	// nil for fields injected to satisfy a requirement.
	Selection *operation.Selection
	// TypeCondition restricts this field to a concrete/abstract type,
	// mirroring operation.Selection.TypeCondition; zero means unconditional.
	TypeCondition schema.TypeID
	// DedupKey groups query fields that are identical in
	// (type_conditions, response_key, definition, arguments, directives) so
	// the solver resolves them once (spec §4.4 Deduplication).
	DedupKey string
}

// ResolverData is the payload of a NodeResolver node: one admissible
// resolver choice at a specific point in the candidate tree.
type ResolverData struct {
	Subgraph   schema.SubgraphID
	Kind       schema.ResolverKind
	ParentType schema.TypeID
	FieldResolver schema.FieldResolver
	// AtQueryField is the query field this resolver was introduced to
	// satisfy (the field that triggered enumerating this candidate).
	AtQueryField NodeID
}

// ProvidableData is the payload of a NodeProvidableField node: "resolver R
// can produce query field F", carrying the resolver's own @provides as
// declared; @provides of ancestor resolvers are not merged in.
type ProvidableData struct {
	QueryField NodeID
	Resolver   NodeID
	Provides   schema.FieldSetID
}

type Node struct {
	ID         NodeID
	Kind       NodeKind
	QueryField *QueryFieldData
	Resolver   *ResolverData
	Providable *ProvidableData
}

type EdgeKind uint8

const (
	EdgeField EdgeKind = iota
	EdgeCanProvide
	EdgeProvides
	EdgeRequires
)

type Edge struct {
	From, To NodeID
	Kind     EdgeKind
	Cost     int
}

// Space is the full candidate graph for one operation.
type Space struct {
	Schema *schema.Schema
	Root   NodeID
	Nodes  []Node
	Edges  []Edge

	outgoing map[NodeID][]int // node -> indices into Edges
}

func newSpace(sch *schema.Schema) *Space {
	sp := &Space{Schema: sch, outgoing: map[NodeID][]int{}}
	sp.Root = sp.addNode(Node{Kind: NodeRoot})
	return sp
}

func (sp *Space) addNode(n Node) NodeID {
	n.ID = NodeID(len(sp.Nodes))
	sp.Nodes = append(sp.Nodes, n)
	return n.ID
}

func (sp *Space) addEdge(from, to NodeID, kind EdgeKind, cost int) {
	idx := len(sp.Edges)
	sp.Edges = append(sp.Edges, Edge{From: from, To: to, Kind: kind, Cost: cost})
	sp.outgoing[from] = append(sp.outgoing[from], idx)
}

// Outgoing returns the edges leaving node n, in insertion order (used by
// the solver for deterministic tie-breaks, spec §4.4).
func (sp *Space) Outgoing(n NodeID) []Edge {
	idxs := sp.outgoing[n]
	out := make([]Edge, len(idxs))
	for i, idx := range idxs {
		out[i] = sp.Edges[idx]
	}
	return out
}

func (sp *Space) Node(id NodeID) *Node { return &sp.Nodes[id] }
