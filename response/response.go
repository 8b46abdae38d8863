// Package response assembles the final `{data, errors}` envelope (spec
// §4.7): it walks the bound operation's selection tree against the
// executor's merged result tree, bubbling nulls up to the nearest nullable
// ancestor on any field error, and discriminating polymorphic selections
// by `__typename`.
package response

import (
	"github.com/graphfed/engine/executor"
	"github.com/graphfed/engine/gwerr"
	"github.com/graphfed/engine/operation"
	"github.com/graphfed/engine/plan"
	"github.com/graphfed/engine/schema"
)

// Envelope is the final GraphQL-over-HTTP response body.
type Envelope struct {
	Data   interface{}    `json:"data"`
	Errors []*gwerr.Error `json:"errors,omitempty"`
}

// Build walks op's selections against exec's merged result tree and
// produces the response envelope. p supplies each step's Path so a
// subgraph-reported error (only step-relative in exec.Errors) can be
// translated into a document-relative response path.
func Build(sch *schema.Schema, op *operation.Operation, p *plan.Plan, exec *executor.ExecutionResult) *Envelope {
	b := &builder{sch: sch}

	for _, e := range exec.Errors {
		b.errs = append(b.errs, subgraphError(p, e))
	}

	data, _, nullified := b.buildSelectionSet(op.Selections, op.RootType, exec.Data, nil)
	if nullified {
		return &Envelope{Data: nil, Errors: b.errs}
	}
	return &Envelope{Data: data, Errors: b.errs}
}

func subgraphError(p *plan.Plan, e executor.ExecutionError) *gwerr.Error {
	path := make([]interface{}, 0, len(e.Path))
	for _, s := range p.Steps {
		if s.ID != e.Step {
			continue
		}
		for _, k := range s.Path {
			path = append(path, k)
		}
		break
	}
	path = append(path, e.Path...)
	return &gwerr.Error{Message: e.Message, Path: path, Code: gwerr.SubgraphError}
}

type builder struct {
	sch  *schema.Schema
	errs []*gwerr.Error
}

// buildSelectionSet evaluates every selection applicable at concreteType
// against data (the parent object, or nil), merging selections that share
// a response key (the same field reached through several fragments) the
// way GraphQL's CollectFields does. It returns the built object, whether
// any field recorded an error, and whether a non-null field bubbled a null
// all the way up through this object (meaning the caller must null out
// this whole selection set).
func (b *builder) buildSelectionSet(sels []*operation.Selection, concreteType schema.TypeID, data map[string]interface{}, path []interface{}) (map[string]interface{}, bool, bool) {
	groups, order := groupByResponseKey(sels, b.sch, concreteType, data)

	out := map[string]interface{}{}
	var anyErr, nullified bool
	for _, key := range order {
		group := groups[key]
		first := group[0]
		fieldPath := append(append([]interface{}{}, path...), key)

		if first.IsTypename {
			if allSynthetic(group) {
				// Forced in by the binder purely to discriminate the
				// concrete type (spec step 4.3.6); the client never asked
				// for __typename, so it must not leak into the envelope.
				continue
			}
			out[key] = b.sch.NamedTypeName(concreteType)
			continue
		}

		def := b.sch.Field(first.Field)
		raw := data[key]

		merged := mergeSubSelections(group)
		value, errored, fieldNullified := b.resolveValue(def.Type, merged, raw, fieldPath)
		if errored {
			anyErr = true
		}
		if fieldNullified {
			anyErr = true
			if def.Type.Wrapping.Required() {
				nullified = true
				return nil, anyErr, true
			}
		}
		out[key] = value
	}
	return out, anyErr, nullified
}

// resolveValue renders one field's value per ft's list/nullability shape,
// recursing into nested selections for composite types.
func (b *builder) resolveValue(ft schema.FieldType, sub []*operation.Selection, raw interface{}, path []interface{}) (interface{}, bool, bool) {
	if ft.Wrapping.IsList() {
		if raw == nil {
			if ft.Wrapping.Required() {
				b.errs = append(b.errs, gwerr.New(gwerr.InvalidSubgraphResponse, "non-null list field was null"))
				return nil, true, true
			}
			return nil, false, false
		}
		list, ok := raw.([]interface{})
		if !ok {
			b.errs = append(b.errs, gwerr.New(gwerr.InvalidSubgraphResponse, "expected list value"))
			return nil, true, ft.Wrapping.Required()
		}
		elemWrapping, _ := ft.Wrapping.Unwrap()
		elemFt := schema.FieldType{Named: ft.Named, Wrapping: elemWrapping}

		out := make([]interface{}, len(list))
		var anyErr bool
		for i, item := range list {
			itemPath := append(append([]interface{}{}, path...), i)
			v, errored, nullified := b.resolveValue(elemFt, sub, item, itemPath)
			if errored {
				anyErr = true
			}
			if nullified && elemWrapping.Required() {
				b.errs = append(b.errs, gwerr.New(gwerr.InvalidSubgraphResponse, "non-null list element was null"))
				return nil, true, ft.Wrapping.Required()
			}
			out[i] = v
		}
		return out, anyErr, false
	}

	if len(sub) == 0 {
		// Leaf scalar/enum.
		if raw == nil && ft.Wrapping.Required() {
			b.errs = append(b.errs, gwerr.New(gwerr.InvalidSubgraphResponse, "non-null field was null"))
			return nil, true, true
		}
		return raw, false, false
	}

	if raw == nil {
		if ft.Wrapping.Required() {
			b.errs = append(b.errs, gwerr.New(gwerr.InvalidSubgraphResponse, "non-null field was null"))
			return nil, true, true
		}
		return nil, false, false
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		b.errs = append(b.errs, gwerr.New(gwerr.InvalidSubgraphResponse, "expected object value"))
		return nil, true, ft.Wrapping.Required()
	}

	concrete := b.concreteTypeOf(ft.Named, obj)
	value, errored, nullified := b.buildSelectionSet(sub, concrete, obj, path)
	if nullified {
		return nil, true, ft.Wrapping.Required()
	}
	return value, errored, false
}

// concreteTypeOf resolves which object type an abstract (interface/union)
// selection actually hit, using the subgraph-reported __typename; a
// concrete object type needs no discrimination.
func (b *builder) concreteTypeOf(named schema.TypeID, obj map[string]interface{}) schema.TypeID {
	if b.sch.KindOf(named) == schema.KindObject {
		return named
	}
	name, ok := obj["__typename"].(string)
	if !ok {
		return named
	}
	if t, ok := b.sch.LookupName(name); ok {
		return t
	}
	return named
}

// groupByResponseKey collects every selection in sels whose type condition
// is satisfied at concreteType, grouped by response key in first-seen
// order (CollectFields, spec §9's "deep polymorphism via tagged variant"
// handled here by the __typename check above rather than by a separate
// variant type, since Go's interface{} result tree already plays that
// role).
func groupByResponseKey(sels []*operation.Selection, sch *schema.Schema, concreteType schema.TypeID, data map[string]interface{}) (map[string][]*operation.Selection, []string) {
	groups := map[string][]*operation.Selection{}
	var order []string
	for _, sel := range sels {
		if sel.TypeCondition != 0 && !satisfies(sch, sel.TypeCondition, concreteType, data) {
			continue
		}
		if _, ok := groups[sel.ResponseKey]; !ok {
			order = append(order, sel.ResponseKey)
		}
		groups[sel.ResponseKey] = append(groups[sel.ResponseKey], sel)
	}
	return groups, order
}

// satisfies reports whether typeCondition applies to an object resolved as
// concreteType, falling back to the object's own reported __typename when
// concreteType is itself still abstract (e.g. a field typed as an
// interface whose selection set mixes inline fragments).
func satisfies(sch *schema.Schema, typeCondition, concreteType schema.TypeID, data map[string]interface{}) bool {
	if typeCondition == concreteType {
		return true
	}
	if sch.KindOf(concreteType) != schema.KindObject {
		if name, ok := data["__typename"].(string); ok {
			if t, ok := sch.LookupName(name); ok {
				concreteType = t
			}
		}
	}
	for _, possible := range sch.PossibleTypes(typeCondition) {
		if possible == concreteType {
			return true
		}
	}
	return false
}

// allSynthetic reports whether every selection sharing this response key was
// injected by the binder rather than authored by the client.
func allSynthetic(group []*operation.Selection) bool {
	for _, sel := range group {
		if !sel.Synthetic {
			return false
		}
	}
	return true
}

// mergeSubSelections flattens the selection sets of every selection
// sharing a response key into one slice, the way CollectFields merges
// fragments that target the same field.
func mergeSubSelections(group []*operation.Selection) []*operation.Selection {
	if len(group) == 1 {
		return group[0].SelectionSet
	}
	var out []*operation.Selection
	for _, sel := range group {
		out = append(out, sel.SelectionSet...)
	}
	return out
}
