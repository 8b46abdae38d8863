package executor

import (
	"github.com/samsarahq/go/oops"

	"github.com/graphfed/engine/plan"
)

// representationsFor builds the `_entities` representations list for an
// entity step, by walking res.Data down s.Path to find every parent object
// this step grafts onto, then copying out the key fields s.KeySelection
// names plus a __typename discriminator. Root-level steps (EntityKey == 0)
// need no representations.
func representationsFor(res *ExecutionResult, s *plan.Step) ([]interface{}, error) {
	if s.EntityKey == 0 {
		return nil, nil
	}

	parents, err := valuesAtPath(res.Data, s.Path)
	if err != nil {
		return nil, err
	}

	reps := make([]interface{}, 0, len(parents))
	for _, p := range parents {
		obj, ok := p.(map[string]interface{})
		if !ok || obj == nil {
			// A null parent (field resolved to null, or an earlier error
			// nulled it out) contributes no representation.
			continue
		}
		reps = append(reps, buildRepresentation(obj, s.EntityTypeName(), s.KeySelection))
	}
	return reps, nil
}

// valuesAtPath walks root by successive object-field lookups, flattening
// through any list encountered along the way, and returns every leaf value
// reached. An absent or null intermediate object simply contributes
// nothing further down that branch, rather than erroring: a partially-null
// parent tree is expected whenever an earlier step hit a field error.
func valuesAtPath(root interface{}, path []string) ([]interface{}, error) {
	values := []interface{}{root}
	for _, key := range path {
		var next []interface{}
		for _, v := range values {
			next = append(next, expand(v, key)...)
		}
		values = next
	}
	return values, nil
}

// expand looks up key on v (or on every element of v, if v is a list),
// returning the resulting value(s).
func expand(v interface{}, key string) []interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		child, ok := val[key]
		if !ok {
			return nil
		}
		return []interface{}{child}
	case []interface{}:
		var out []interface{}
		for _, item := range val {
			out = append(out, expand(item, key)...)
		}
		return out
	default:
		return nil
	}
}

// buildRepresentation constructs one `_entities` representation: a
// __typename discriminator plus whatever leaf fields keySelection names,
// copied recursively out of obj.
func buildRepresentation(obj map[string]interface{}, typeName string, keySelection *plan.SelectionNode) map[string]interface{} {
	rep := map[string]interface{}{"__typename": typeName}
	if keySelection == nil {
		return rep
	}
	copyKeyFields(obj, rep, keySelection.Children)
	return rep
}

// copyKeyFields copies every field named by sels from src into dst,
// recursing into nested selections for composite key fields.
func copyKeyFields(src, dst map[string]interface{}, sels []*plan.SelectionNode) {
	for _, sel := range sels {
		v, ok := src[sel.Alias]
		if !ok {
			continue
		}
		if len(sel.Children) == 0 {
			dst[sel.Alias] = v
			continue
		}
		sub, ok := v.(map[string]interface{})
		if !ok {
			dst[sel.Alias] = v
			continue
		}
		nested := map[string]interface{}{}
		copyKeyFields(sub, nested, sel.Children)
		dst[sel.Alias] = nested
	}
}

// mergeStep grafts resp's decoded data into res at s.Path, and records
// resp's errors against the step. For an entity step, resp.Data is the
// `_entities` list in representation order and is zipped back onto the
// same parent objects representationsFor walked.
func mergeStep(res *ExecutionResult, s *plan.Step, resp *Response) {
	for _, e := range resp.Errors {
		res.Errors = append(res.Errors, ExecutionError{Step: s.ID, GraphQLError: e})
	}

	if s.EntityKey == 0 {
		obj, ok := resp.Data.(map[string]interface{})
		if !ok {
			return
		}
		for k, v := range obj {
			res.Data[k] = v
		}
		return
	}

	mergeEntities(res, s, resp.Data)
}

// mergeEntities zips an `_entities` response list back onto the same
// sequence of parent objects representationsFor produced, shallow-merging
// each entity's fields into its parent.
func mergeEntities(res *ExecutionResult, s *plan.Step, data interface{}) {
	entities, _ := data.(map[string]interface{})
	list, _ := entities["_entities"].([]interface{})

	parents, err := valuesAtPath(res.Data, s.Path)
	if err != nil {
		res.Errors = append(res.Errors, ExecutionError{Step: s.ID, GraphQLError: GraphQLError{
			Message: oops.Wrapf(err, "merging entity response").Error(),
		}})
		return
	}

	i := 0
	for _, p := range parents {
		obj, ok := p.(map[string]interface{})
		if !ok || obj == nil {
			continue
		}
		if i >= len(list) {
			break
		}
		entity, _ := list[i].(map[string]interface{})
		i++
		for k, v := range entity {
			if k == "__typename" {
				continue
			}
			obj[k] = v
		}
	}
}
