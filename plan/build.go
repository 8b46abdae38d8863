package plan

import (
	"github.com/graphfed/engine/operation"
	"github.com/graphfed/engine/queryspace"
	"github.com/graphfed/engine/schema"
	"github.com/graphfed/engine/solve"
)

// Build materializes the arborescence the solver chose into a Plan: one
// Step per Resolver node actually selected, grouping every field that
// resolver continues to provide (spec step 3(a)) into the same printed
// document, and opening a new, dependent Step wherever the tree crosses
// into a different resolver.
func Build(sch *schema.Schema, op *operation.Operation, sp *queryspace.Space, arb *solve.Arborescence) (*Plan, error) {
	m := &materializer{
		sp:           sp,
		arb:          arb,
		sch:          sch,
		resolverStep: map[queryspace.NodeID]StepID{},
		parentOf:     map[queryspace.NodeID]queryspace.NodeID{},
	}
	for _, e := range sp.Edges {
		if e.Kind == queryspace.EdgeField {
			m.parentOf[e.To] = e.From
		}
	}

	for _, e := range arb.SelectedChildren(sp, sp.Root) {
		if e.Kind != queryspace.EdgeCanProvide {
			continue
		}
		if sp.Node(e.To).Kind != queryspace.NodeResolver {
			continue
		}
		m.stepForResolver(e.To, 0, 0)
	}

	return &Plan{Steps: m.steps, Kind: op.Attributes.Kind}, nil
}

type materializer struct {
	sp  *queryspace.Space
	arb *solve.Arborescence
	sch *schema.Schema

	steps        []Step
	nextID       StepID
	resolverStep map[queryspace.NodeID]StepID
	// parentOf maps a QueryField (or Root) node to the node it hangs off of
	// via EdgeField, so stepForResolver can tell a resolver's true entry
	// fields (its parent isn't also reached through this same resolver)
	// from fields it only reaches by nested continuation under one of its
	// own entry fields — those get picked up by buildSelectionNode's own
	// recursion instead of being added as flat step children.
	parentOf map[queryspace.NodeID]queryspace.NodeID
}

func (m *materializer) stepForResolver(resolverNode, parentField queryspace.NodeID, parentStep StepID) StepID {
	if id, ok := m.resolverStep[resolverNode]; ok {
		return id
	}

	rd := m.sp.Node(resolverNode).Resolver
	m.nextID++
	id := m.nextID
	m.resolverStep[resolverNode] = id
	// Reserve this step's slot before recursing into children, so a parent
	// step always precedes the dependent steps it spawns.
	idx := len(m.steps)
	m.steps = append(m.steps, Step{})

	step := Step{
		ID:          id,
		Subgraph:    rd.Subgraph,
		Kind:        rd.Kind,
		ParentField: parentField,
		Path:        m.pathTo(parentField),
		Root:        &SelectionNode{},
	}
	if parentStep != 0 {
		step.DependsOn = append(step.DependsOn, parentStep)
	}
	if rd.Kind == schema.ResolverEntity && rd.FieldResolver.Key != 0 {
		step.EntityKey = rd.FieldResolver.Key
		step.entityTypeName = m.sch.NamedTypeName(rd.ParentType)
		if keyFS := m.sch.EntityKey(rd.FieldResolver.Key).Fields; !keyFS.Empty() {
			step.KeySelection = m.printFieldSet(keyFS)
		}
	}

	for _, pe := range m.arb.SelectedChildren(m.sp, resolverNode) {
		if pe.Kind != queryspace.EdgeCanProvide {
			continue
		}
		provNode := m.sp.Node(pe.To)
		if provNode.Kind != queryspace.NodeProvidableField {
			continue
		}
		fieldNode := provNode.Providable.QueryField
		if parent, ok := m.parentOf[fieldNode]; ok {
			if pr, ok := m.providerResolverOf(parent); ok && pr == resolverNode {
				// Nested continuation: fieldNode's parent is itself
				// resolved by resolverNode, so buildSelectionNode already
				// walks down into fieldNode while printing the parent.
				continue
			}
		}
		step.Root.Children = append(step.Root.Children, m.buildSelectionNode(fieldNode, resolverNode, id))
	}

	m.steps[idx] = step
	return id
}

// buildSelectionNode prints one field of the current step's document,
// recursing into children the same resolver continues to provide and
// spinning off a dependent Step wherever a child is produced by a
// different resolver (the tree's subgraph boundary).
func (m *materializer) buildSelectionNode(fieldNode, currentResolver queryspace.NodeID, currentStep StepID) *SelectionNode {
	qf := m.sp.Node(fieldNode).QueryField
	node := &SelectionNode{
		Alias:      qf.ResponseKey,
		IsTypename: qf.Flags.Has(queryspace.FlagTypename),
		QueryField: fieldNode,
	}
	if qf.TypeCondition != 0 {
		node.TypeCondition = m.sch.NamedTypeName(qf.TypeCondition)
	}
	switch {
	case node.IsTypename:
		node.FieldName = "__typename"
		return node
	case qf.Selection != nil:
		node.FieldName = qf.Selection.FieldName
		node.Arguments = qf.Selection.Arguments
	default:
		node.FieldName = m.sch.String(m.sch.Field(qf.FieldID).Name)
	}

	for _, ce := range m.sp.Outgoing(fieldNode) {
		if ce.Kind != queryspace.EdgeField || !m.arb.Includes(ce.To) {
			continue
		}
		childResolver, ok := m.providerResolverOf(ce.To)
		if !ok || childResolver == currentResolver {
			node.Children = append(node.Children, m.buildSelectionNode(ce.To, currentResolver, currentStep))
			continue
		}
		m.stepForResolver(childResolver, fieldNode, currentStep)
	}
	return node
}

// providerResolverOf reports which Resolver node the solver used to reach
// fieldNode, found by looking at the selected incoming edge: for any
// non-__typename field this is always a ProvidableField -> field edge.
func (m *materializer) providerResolverOf(fieldNode queryspace.NodeID) (queryspace.NodeID, bool) {
	e, ok := m.arb.IncomingEdge[fieldNode]
	if !ok {
		return 0, false
	}
	from := m.sp.Node(e.From)
	if from.Kind != queryspace.NodeProvidableField {
		return 0, false
	}
	return from.Providable.Resolver, true
}

// pathTo returns the response-key path from the document root down to
// fieldNode, by walking parentOf until it reaches Root (whose QueryField is
// nil). The executor uses this to locate, at dispatch time, exactly which
// object(s) in the response built so far a dependent step's result grafts
// onto, without re-walking the candidate graph itself.
func (m *materializer) pathTo(fieldNode queryspace.NodeID) []string {
	var keys []string
	for cur := fieldNode; ; {
		qf := m.sp.Node(cur).QueryField
		if qf == nil {
			break
		}
		keys = append(keys, qf.ResponseKey)
		parent, ok := m.parentOf[cur]
		if !ok {
			break
		}
		cur = parent
	}
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return keys
}

// printFieldSet turns a schema.FieldSet (a `@key`/`@requires` selection)
// into a SelectionNode tree with no QueryField backing it, since it isn't
// part of the candidate graph — it only needs to be printable.
func (m *materializer) printFieldSet(fs *schema.FieldSet) *SelectionNode {
	root := &SelectionNode{}
	for _, sel := range fs.Selections {
		def := m.sch.Field(sel.Field)
		name := m.sch.String(def.Name)
		child := &SelectionNode{Alias: name, FieldName: name}
		if sel.Sub != 0 {
			sub := m.printFieldSet(m.sch.FieldSet(sel.Sub))
			child.Children = sub.Children
		}
		root.Children = append(root.Children, child)
	}
	return root
}
