// Package plan turns a solved queryspace.Space into a Plan: a dependency
// DAG of per-subgraph requests ready for the executor to dispatch, per
// spec §4.5.
package plan

import (
	"github.com/graphfed/engine/operation"
	"github.com/graphfed/engine/queryspace"
	"github.com/graphfed/engine/schema"
)

type StepID int

// SelectionNode is one field in the GraphQL document a Step will send to
// its subgraph. It doubles as the response shape: QueryField links the
// printed field back to the node whose value it fills in the arena the
// response builder assembles (spec §4.7).
type SelectionNode struct {
	Alias      string
	FieldName  string
	Arguments  map[string]interface{}
	IsTypename bool
	QueryField queryspace.NodeID
	Children   []*SelectionNode

	// TypeCondition names the concrete/abstract type this child only
	// applies under (e.g. "Dog" for a field reached through `... on Dog`);
	// empty means unconditional. Print wraps a run of same-conditioned
	// siblings in an inline fragment so the printed document stays valid
	// GraphQL for subgraphs serving an interface or union field.
	TypeCondition string
}

// Step is a single outbound request to one subgraph.
type Step struct {
	ID       StepID
	Subgraph schema.SubgraphID
	Kind     schema.ResolverKind

	// ParentField is the QueryField this step's result grafts under; zero
	// (queryspace.Space's Root id) for a root-level step (nothing to graft,
	// it populates the top of the response).
	ParentField queryspace.NodeID
	// Path is the response-key path from the document root down to
	// ParentField (e.g. ["me"]), letting the executor locate the parent
	// object(s) this step's result merges into without re-walking the
	// candidate graph at dispatch time. Empty for a root-level step.
	Path []string
	// DependsOn lists steps that must run, and have their results grafted
	// into the response arena, before this one can be dispatched.
	DependsOn []StepID

	// EntityKey and KeySelection are set when Kind == schema.ResolverEntity:
	// the key used to build `_entities` representations, and the printed
	// key field selection the executor reads representation values from.
	EntityKey    schema.EntityKeyID
	KeySelection *SelectionNode
	// entityTypeName names the `... on <Type>` fragment an _entities batch
	// needs; only meaningful alongside EntityKey.
	entityTypeName string

	Root *SelectionNode
}

// Plan is the full set of steps needed to resolve one operation.
type Plan struct {
	Steps []Step
	Kind  operation.Kind
}

// EntityTypeName names the `... on <Type>` fragment an _entities batch
// needs for this step; only meaningful when EntityKey != 0.
func (s *Step) EntityTypeName() string { return s.entityTypeName }

// RootSteps returns the steps with no dependency on another step's output
// (ParentField zero) — what the executor starts with.
func (p *Plan) RootSteps() []Step {
	var out []Step
	for _, s := range p.Steps {
		if len(s.DependsOn) == 0 {
			out = append(out, s)
		}
	}
	return out
}
