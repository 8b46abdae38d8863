package operation

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/graphfed/engine/schema"
)

// Parse validates and binds a GraphQL document in one pass, per spec §4.2.
// httpMethod is the inbound HTTP verb ("GET" or "POST"); GET is rejected
// for mutations (spec §4.2, §6).
func Parse(sch *schema.Schema, operationName string, documentSrc string, rawVariables map[string]interface{}, httpMethod string, limits Limits) (*Operation, error) {
	doc, gqlErr := parser.ParseQuery(&ast.Source{Input: documentSrc})
	if gqlErr != nil {
		return nil, newParseError(gqlErr.Error())
	}

	op, err := selectOperation(doc, operationName)
	if err != nil {
		return nil, err
	}

	kind, err := kindOf(op)
	if err != nil {
		return nil, err
	}
	if kind == KindMutation && httpMethod == "GET" {
		return nil, &MethodNotAllowedError{}
	}

	rootType, err := rootTypeFor(sch, kind)
	if err != nil {
		return nil, err
	}

	fragments := make(map[string]*ast.FragmentDefinition, len(doc.Fragments))
	for _, f := range doc.Fragments {
		fragments[f.Name] = f
	}
	if err := checkFragmentCycles(fragments); err != nil {
		return nil, err
	}

	b := &binder{
		schema:      sch,
		fragments:   fragments,
		variables:   rawVariables,
		limits:      limits,
		usedFrag:    map[string]bool{},
		attrs:       Attributes{Kind: kind},
	}

	selections, err := b.bindSelectionSet(op.SelectionSet, rootType, 1, true)
	if err != nil {
		return nil, err
	}

	b.attrs.RootFieldCount = len(selections)
	if limits.MaxRootFields > 0 && b.attrs.RootFieldCount > limits.MaxRootFields {
		return nil, newValidationError(&b.attrs, fmt.Sprintf("root field count %d exceeds max %d", b.attrs.RootFieldCount, limits.MaxRootFields))
	}
	if limits.MaxComplexity > 0 && b.attrs.Complexity > limits.MaxComplexity {
		return nil, newValidationError(&b.attrs, fmt.Sprintf("complexity %d exceeds max %d", b.attrs.Complexity, limits.MaxComplexity))
	}
	if limits.MaxAliases > 0 && b.attrs.AliasCount > limits.MaxAliases {
		return nil, newValidationError(&b.attrs, fmt.Sprintf("alias count %d exceeds max %d", b.attrs.AliasCount, limits.MaxAliases))
	}

	return &Operation{
		Schema:     sch,
		Name:       op.Name,
		RootType:   rootType,
		Selections: selections,
		Variables:  rawVariables,
		Attributes: b.attrs,
	}, nil
}

func selectOperation(doc *ast.QueryDocument, name string) (*ast.OperationDefinition, error) {
	if name == "" {
		if len(doc.Operations) == 1 {
			return doc.Operations[0], nil
		}
		return nil, newParseError("multiple operations present; operationName is required")
	}
	for _, op := range doc.Operations {
		if op.Name == name {
			return op, nil
		}
	}
	return nil, newParseError(fmt.Sprintf("no operation named %q", name))
}

func kindOf(op *ast.OperationDefinition) (Kind, error) {
	switch op.Operation {
	case ast.Query, "":
		return KindQuery, nil
	case ast.Mutation:
		return KindMutation, nil
	case ast.Subscription:
		return KindSubscription, nil
	default:
		return 0, newParseError(fmt.Sprintf("unknown operation type %q", op.Operation))
	}
}

func rootTypeFor(sch *schema.Schema, kind Kind) (schema.TypeID, error) {
	switch kind {
	case KindQuery:
		return sch.QueryType(), nil
	case KindMutation:
		t, ok := sch.MutationType()
		if !ok {
			return 0, newParseError("schema defines no mutation type")
		}
		return t, nil
	case KindSubscription:
		t, ok := sch.SubscriptionType()
		if !ok {
			return 0, newParseError("schema defines no subscription type")
		}
		return t, nil
	default:
		return 0, newParseError("unknown operation kind")
	}
}

func checkFragmentCycles(fragments map[string]*ast.FragmentDefinition) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(fragments))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			return newParseError(fmt.Sprintf("fragment cycle detected: %v", append(path, name)))
		}
		color[name] = gray
		frag := fragments[name]
		if frag != nil {
			for _, spread := range fragmentSpreadsIn(frag.SelectionSet) {
				if err := visit(spread, append(path, name)); err != nil {
					return err
				}
			}
		}
		color[name] = black
		return nil
	}

	for name := range fragments {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

func fragmentSpreadsIn(set ast.SelectionSet) []string {
	var out []string
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.FragmentSpread:
			out = append(out, s.Name)
		case *ast.InlineFragment:
			out = append(out, fragmentSpreadsIn(s.SelectionSet)...)
		case *ast.Field:
			out = append(out, fragmentSpreadsIn(s.SelectionSet)...)
		}
	}
	return out
}
