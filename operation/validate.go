package operation

import (
	"fmt"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/graphfed/engine/schema"
)

// binder walks a gqlparser selection set, flattening fragments and
// enforcing the configured Limits as it goes, producing a bound Selection
// tree. One binder is used per Parse call.
type binder struct {
	schema    *schema.Schema
	fragments map[string]*ast.FragmentDefinition
	variables map[string]interface{}
	limits    Limits
	usedFrag  map[string]bool
	attrs     Attributes
}

func (b *binder) bindSelectionSet(set ast.SelectionSet, parentType schema.TypeID, depth int, isRoot bool) ([]*Selection, error) {
	if b.limits.MaxDepth > 0 && depth > b.limits.MaxDepth {
		return nil, newValidationError(&b.attrs, fmt.Sprintf("selection depth %d exceeds max %d", depth, b.limits.MaxDepth), locOf(set))
	}
	if depth > b.attrs.Depth {
		b.attrs.Depth = depth
	}

	var out []*Selection
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			bound, err := b.bindField(s, parentType, depth)
			if err != nil {
				return nil, err
			}
			out = append(out, bound)

		case *ast.InlineFragment:
			cond := parentType
			if s.TypeCondition != "" {
				id, ok := b.schema.LookupName(s.TypeCondition)
				if !ok {
					return nil, newValidationError(&b.attrs, fmt.Sprintf("unknown type condition %q", s.TypeCondition), locOf(s.SelectionSet))
				}
				cond = id
			}
			children, err := b.bindSelectionSet(s.SelectionSet, cond, depth+1, false)
			if err != nil {
				return nil, err
			}
			for _, c := range children {
				if c.TypeCondition == 0 {
					c.TypeCondition = cond
				}
			}
			out = append(out, children...)

		case *ast.FragmentSpread:
			frag, ok := b.fragments[s.Name]
			if !ok {
				return nil, newValidationError(&b.attrs, fmt.Sprintf("unknown fragment %q", s.Name), Location{})
			}
			cond := parentType
			if frag.TypeCondition != "" {
				id, ok := b.schema.LookupName(frag.TypeCondition)
				if !ok {
					return nil, newValidationError(&b.attrs, fmt.Sprintf("unknown type condition %q", frag.TypeCondition), Location{})
				}
				cond = id
			}
			children, err := b.bindSelectionSet(frag.SelectionSet, cond, depth+1, false)
			if err != nil {
				return nil, err
			}
			for _, c := range children {
				if c.TypeCondition == 0 {
					c.TypeCondition = cond
				}
			}
			out = append(out, children...)

		default:
			return nil, newValidationError(&b.attrs, "unknown selection kind", Location{})
		}
	}
	return out, nil
}

func (b *binder) bindField(f *ast.Field, parentType schema.TypeID, depth int) (*Selection, error) {
	responseKey := f.Alias
	if responseKey == "" {
		responseKey = f.Name
	}
	if f.Alias != "" && f.Alias != f.Name {
		b.attrs.AliasCount++
	}
	b.attrs.Complexity++

	sel := &Selection{
		ResponseKey: responseKey,
		FieldName:   f.Name,
		ParentType:  parentType,
		Line:        lineOf(f.Position),
	}

	if f.Name == "__typename" {
		sel.IsTypename = true
		sel.IsLeaf = true
		return sel, nil
	}

	fieldID, ok := b.schema.FieldByName(parentType, f.Name)
	if !ok {
		return nil, newValidationError(&b.attrs, fmt.Sprintf("unknown field %q on type %q", f.Name, b.schema.NamedTypeName(parentType)), Location{Line: sel.Line})
	}
	sel.Field = fieldID

	args, err := b.bindArguments(f.Arguments)
	if err != nil {
		return nil, err
	}
	sel.Arguments = args

	def := b.schema.Field(fieldID)
	namedKind := b.schema.KindOf(def.Type.Named)
	sel.IsLeaf = namedKind == schema.KindScalar || namedKind == schema.KindEnum

	if !sel.IsLeaf {
		children, err := b.bindSelectionSet(f.SelectionSet, def.Type.Named, depth+1, false)
		if err != nil {
			return nil, err
		}
		if namedKind == schema.KindInterface || namedKind == schema.KindUnion {
			children = ensureTypename(children, sel.Line)
		}
		sel.SelectionSet = children
	}

	return sel, nil
}

// ensureTypename guarantees an unconditional __typename selection is present
// among children whenever the parent field's named type is abstract, so the
// response builder can always discriminate the concrete type a subgraph
// returned even when the client never selected __typename itself (spec step
// 4.3.6). A client-authored __typename already satisfies this and is left
// alone.
func ensureTypename(children []*Selection, line int) []*Selection {
	for _, c := range children {
		if c.IsTypename && c.TypeCondition == 0 {
			return children
		}
	}
	return append(children, &Selection{
		ResponseKey: "__typename",
		FieldName:   "__typename",
		IsTypename:  true,
		IsLeaf:      true,
		Synthetic:   true,
		Line:        line,
	})
}

func (b *binder) bindArguments(args ast.ArgumentList) (map[string]interface{}, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string]interface{}, len(args))
	for _, a := range args {
		v, err := b.bindValue(a.Value)
		if err != nil {
			return nil, err
		}
		out[a.Name] = v
	}
	return out, nil
}

func (b *binder) bindValue(v *ast.Value) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch v.Kind {
	case ast.Variable:
		val, ok := b.variables[v.Raw]
		if !ok {
			return nil, newValidationError(&b.attrs, fmt.Sprintf("missing variable $%s", v.Raw), Location{})
		}
		return val, nil
	case ast.IntValue:
		i, err := strconv.ParseInt(v.Raw, 10, 64)
		if err != nil {
			return nil, newValidationError(&b.attrs, fmt.Sprintf("bad int literal %q", v.Raw), Location{})
		}
		return i, nil
	case ast.FloatValue:
		f, err := strconv.ParseFloat(v.Raw, 64)
		if err != nil {
			return nil, newValidationError(&b.attrs, fmt.Sprintf("bad float literal %q", v.Raw), Location{})
		}
		return f, nil
	case ast.StringValue, ast.BlockValue, ast.EnumValue:
		return v.Raw, nil
	case ast.BooleanValue:
		return v.Raw == "true", nil
	case ast.NullValue:
		return nil, nil
	case ast.ListValue:
		out := make([]interface{}, 0, len(v.Children))
		for _, c := range v.Children {
			cv, err := b.bindValue(c.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, cv)
		}
		return out, nil
	case ast.ObjectValue:
		out := make(map[string]interface{}, len(v.Children))
		for _, c := range v.Children {
			cv, err := b.bindValue(c.Value)
			if err != nil {
				return nil, err
			}
			out[c.Name] = cv
		}
		return out, nil
	default:
		return nil, newValidationError(&b.attrs, "unsupported value kind", Location{})
	}
}

func locOf(set ast.SelectionSet) Location {
	for _, s := range set {
		if f, ok := s.(*ast.Field); ok {
			return Location{Line: lineOf(f.Position)}
		}
	}
	return Location{}
}

func lineOf(pos *ast.Position) int {
	if pos == nil {
		return 0
	}
	return pos.Line
}
