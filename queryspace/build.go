package queryspace

import (
	"fmt"
	"sort"
	"strings"

	"github.com/graphfed/engine/operation"
	"github.com/graphfed/engine/schema"
)

// Build expands a bound Operation into the candidate graph the solver picks
// an arborescence over (spec §4.3). It fails outright, before any solving,
// if a client-selected field has no admissible resolver anywhere.
func Build(sch *schema.Schema, op *operation.Operation) (*Space, error) {
	sp := newSpace(sch)
	bd := &builder{
		sp:             sp,
		sch:            sch,
		fieldProviders: map[NodeID]map[schema.SubgraphID]NodeID{},
		jumpCache:      map[NodeID]map[schema.SubgraphID]NodeID{},
		dedup:          map[NodeID]map[string]NodeID{},
	}
	bd.buildSelections(sp.Root, op.RootType, op.Selections)
	if len(bd.unplannable) > 0 {
		return nil, bd.unplannable[0]
	}
	return sp, nil
}

// builder carries the per-Build caches that make the expansion a DAG instead
// of a tree.
//
// fieldProviders records, for each QueryField node, the Resolver node(s)
// that were actually used to provide *it* (keyed by subgraph). A child
// field looks itself up here first: if its own parent is already being
// resolved in the same subgraph it needs, it attaches directly to that same
// Resolver node with no new round trip at all (spec step 3(a), "same
// subgraph continuation" — the true case, a field riding along on the
// request that's already fetching its parent).
//
// jumpCache is the fallback: it dedupes *new* resolver nodes opened at a
// given parent so that several children all newly jumping to the same
// subgraph share one Resolver node (and one CanProvide edge) instead of
// each paying costNewResolver separately.
//
// dedup lets identical selections (whether client-authored twice via
// aliases-minus-one or injected repeatedly by overlapping @requires chains)
// collapse to one node (spec §4.4 Deduplication).
type builder struct {
	sp  *Space
	sch *schema.Schema

	fieldProviders map[NodeID]map[schema.SubgraphID]NodeID
	jumpCache      map[NodeID]map[schema.SubgraphID]NodeID
	dedup          map[NodeID]map[string]NodeID

	unplannable []error
}

func (bd *builder) buildSelections(parentNode NodeID, parentType schema.TypeID, sels []*operation.Selection) {
	for _, sel := range sels {
		bd.buildField(parentNode, parentType, sel)
	}
}

func (bd *builder) buildField(parentNode NodeID, parentType schema.TypeID, sel *operation.Selection) NodeID {
	key := dedupKey(sel)
	if existing, ok := bd.dedup[parentNode][key]; ok {
		return existing
	}

	data := &QueryFieldData{
		ParentType:    parentType,
		ResponseKey:   sel.ResponseKey,
		TypeCondition: sel.TypeCondition,
		Selection:     sel,
		DedupKey:      key,
		Flags:         FlagIndispensable,
	}
	if sel.IsTypename {
		data.Flags |= FlagLeaf | FlagTypename
	} else {
		data.FieldID = sel.Field
		if sel.IsLeaf {
			data.Flags |= FlagLeaf
		}
	}

	node := bd.sp.addNode(Node{Kind: NodeQueryField, QueryField: data})
	bd.sp.addEdge(parentNode, node, EdgeField, costStructural)
	bd.rememberDedup(parentNode, key, node)

	if sel.IsTypename {
		return node
	}

	def := bd.sch.Field(sel.Field)
	bd.attachResolvers(node, parentNode, parentType, def)

	if len(sel.SelectionSet) > 0 {
		bd.buildSelections(node, def.Type.Named, sel.SelectionSet)
	}
	return node
}

// attachResolvers enumerates every subgraph admissible to resolve fieldNode,
// wiring a (possibly shared) Resolver node for each and, on first use of a
// resolver, materializing its `@requires` dependencies as sibling fields of
// the parent (spec step 4).
func (bd *builder) attachResolvers(fieldNode, parentNode NodeID, parentType schema.TypeID, def *schema.FieldDefinition) {
	if len(def.Resolvers) == 0 {
		bd.unplannable = append(bd.unplannable, &UnplannableField{
			ParentType: bd.sch.NamedTypeName(parentType),
			Field:      bd.sch.String(def.Name),
			Reason:     "no subgraph declares a resolver for this field",
		})
		return
	}

	for _, fr := range def.Resolvers {
		resolverNode, isNew := bd.resolveFieldResolver(parentNode, parentType, fr)
		if isNew {
			bd.sp.addEdge(parentNode, resolverNode, EdgeCanProvide, costNewResolver)
		}
		// A resolver node can be shared by several fields (continuation
		// reuse, either kind below); each field's own FieldResolver still
		// carries its own @requires, so this has to run per field, not
		// just once per resolver node.
		if reqFS := bd.sch.FieldSet(fr.Requires); !reqFS.Empty() {
			for _, reqNode := range bd.injectFieldSet(parentNode, parentType, reqFS) {
				bd.sp.addEdge(reqNode, resolverNode, EdgeRequires, costStructural)
			}
		}
		bd.createProvidable(resolverNode, fieldNode, fr.Provides)
		bd.rememberProvider(fieldNode, fr.Subgraph, resolverNode)
	}
}

// resolveFieldResolver returns the Resolver node fieldNode should attach to
// for fr's subgraph, preferring true continuation over opening a new one.
//
// It checks two things, in order:
//
//  1. Did parentNode's own resolution already land in fr.Subgraph? If so,
//     this is spec step 3(a)'s "same subgraph continuation": the exact
//     Resolver node that provided the parent is reused directly, with no
//     new CanProvide edge into it at all (it's already reachable however
//     the parent was reached) — riding along on a request that's already
//     going out, at no marginal round-trip cost.
//  2. Otherwise, has some other child of parentNode already opened a new
//     jump into fr.Subgraph? If so, reuse that one instead of opening a
//     second, so sibling fields needing the same new subgraph still share
//     a single resolver/request.
//
// Only when neither applies is a brand new Resolver node created.
func (bd *builder) resolveFieldResolver(parentNode NodeID, parentType schema.TypeID, fr schema.FieldResolver) (NodeID, bool) {
	if providers, ok := bd.fieldProviders[parentNode]; ok {
		if r, ok := providers[fr.Subgraph]; ok {
			return r, false
		}
	}

	bySubgraph := bd.jumpCache[parentNode]
	if bySubgraph == nil {
		bySubgraph = map[schema.SubgraphID]NodeID{}
		bd.jumpCache[parentNode] = bySubgraph
	}
	if existing, ok := bySubgraph[fr.Subgraph]; ok {
		return existing, false
	}
	node := bd.sp.addNode(Node{Kind: NodeResolver, Resolver: &ResolverData{
		Subgraph:      fr.Subgraph,
		Kind:          fr.Kind,
		ParentType:    parentType,
		FieldResolver: fr,
		AtQueryField:  parentNode,
	}})
	bySubgraph[fr.Subgraph] = node
	return node, true
}

// rememberProvider records that resolverNode (in subgraph sg) is now one of
// fieldNode's own providers, so fieldNode's children can, in turn, continue
// through it for free.
func (bd *builder) rememberProvider(fieldNode NodeID, sg schema.SubgraphID, resolverNode NodeID) {
	m := bd.fieldProviders[fieldNode]
	if m == nil {
		m = map[schema.SubgraphID]NodeID{}
		bd.fieldProviders[fieldNode] = m
	}
	m[sg] = resolverNode
}

// createProvidable records "resolver can produce field", carrying the
// resolver's own `@provides` as declared. No merge with the @provides of
// ancestor resolvers is performed, here or when the plan is built.
func (bd *builder) createProvidable(resolverNode, fieldNode NodeID, provides schema.FieldSetID) NodeID {
	node := bd.sp.addNode(Node{Kind: NodeProvidableField, Providable: &ProvidableData{
		QueryField: fieldNode,
		Resolver:   resolverNode,
		Provides:   provides,
	}})
	bd.sp.addEdge(resolverNode, node, EdgeCanProvide, costContinuation)
	bd.sp.addEdge(node, fieldNode, EdgeCanProvide, costStructural)
	return node
}

// injectFieldSet materializes a schema.FieldSet (a `@requires` or nested
// `@key` selection) as EXTRA|INDISPENSABLE sibling QueryField nodes under
// parentNode, recursively attaching their own resolvers and sub-selections.
func (bd *builder) injectFieldSet(parentNode NodeID, parentType schema.TypeID, fs *schema.FieldSet) []NodeID {
	if fs.Empty() {
		return nil
	}
	nodes := make([]NodeID, 0, len(fs.Selections))
	for _, fsel := range fs.Selections {
		def := bd.sch.Field(fsel.Field)
		key := fmt.Sprintf("req:%d:%d", parentType, fsel.Field)
		if existing, ok := bd.dedup[parentNode][key]; ok {
			nodes = append(nodes, existing)
			continue
		}
		// A field the client already selected (or an earlier @requires
		// chain already injected) satisfies this requirement too; no need
		// for a second node resolving the same field on the same parent.
		if existing, ok := bd.findFieldByID(parentNode, fsel.Field); ok {
			bd.rememberDedup(parentNode, key, existing)
			nodes = append(nodes, existing)
			continue
		}

		data := &QueryFieldData{
			ParentType:  parentType,
			ResponseKey: bd.sch.String(def.Name),
			FieldID:     fsel.Field,
			DedupKey:    key,
			Flags:       FlagExtra | FlagIndispensable,
		}
		namedKind := bd.sch.KindOf(def.Type.Named)
		if namedKind == schema.KindScalar || namedKind == schema.KindEnum {
			data.Flags |= FlagLeaf
		}
		node := bd.sp.addNode(Node{Kind: NodeQueryField, QueryField: data})
		bd.sp.addEdge(parentNode, node, EdgeField, costStructural)
		bd.rememberDedup(parentNode, key, node)

		bd.attachResolvers(node, parentNode, parentType, def)
		if fsel.Sub != 0 {
			bd.injectFieldSet(node, def.Type.Named, bd.sch.FieldSet(fsel.Sub))
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// findFieldByID looks for a QueryField node already attached directly under
// parentNode that resolves the same schema field, so a `@requires` chain
// reuses a client-selected (or previously injected) field instead of
// planning it twice.
func (bd *builder) findFieldByID(parentNode NodeID, fieldID schema.FieldID) (NodeID, bool) {
	for _, e := range bd.sp.Outgoing(parentNode) {
		if e.Kind != EdgeField {
			continue
		}
		n := bd.sp.Node(e.To)
		if n.Kind == NodeQueryField && !n.QueryField.Flags.Has(FlagTypename) && n.QueryField.FieldID == fieldID {
			return n.ID, true
		}
	}
	return 0, false
}

func (bd *builder) rememberDedup(parent NodeID, key string, node NodeID) {
	m := bd.dedup[parent]
	if m == nil {
		m = map[string]NodeID{}
		bd.dedup[parent] = m
	}
	m[key] = node
}

// dedupKey matches spec §4.4's dedup criteria: type condition, response
// key, field definition, and arguments (directives are not yet modeled on
// bound selections, so they're omitted here).
func dedupKey(sel *operation.Selection) string {
	var args strings.Builder
	if len(sel.Arguments) > 0 {
		keys := make([]string, 0, len(sel.Arguments))
		for k := range sel.Arguments {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&args, "%s=%v;", k, sel.Arguments[k])
		}
	}
	return fmt.Sprintf("%d|%s|%d|%s", sel.TypeCondition, sel.ResponseKey, sel.Field, args.String())
}
