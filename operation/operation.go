// Package operation turns a parsed GraphQL document plus raw variables into
// a typed Operation bound against a schema.Schema, applying the
// GraphQL-over-HTTP query limits as it descends (spec §4.2).
package operation

import "github.com/graphfed/engine/schema"

// Kind is the GraphQL operation kind.
type Kind uint8

const (
	KindQuery Kind = iota
	KindMutation
	KindSubscription
)

func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindMutation:
		return "mutation"
	case KindSubscription:
		return "subscription"
	default:
		return "unknown"
	}
}

// Attributes are computed once while binding an operation, and surfaced to
// validation error extensions and to telemetry spans.
type Attributes struct {
	Kind           Kind
	Complexity     int
	RootFieldCount int
	Depth          int
	AliasCount int
}

// Selection is one occurrence of a field (or `__typename`) in a bound
// operation. Fragment spreads and inline fragments have already been
// flattened into the tree by the time parsing finishes: a Selection whose
// TypeCondition is non-zero only applies under that concrete/abstract type.
type Selection struct {
	ResponseKey   string
	FieldName     string
	ParentType    schema.TypeID
	Field         schema.FieldID // zero (with IsTypename set) for __typename
	IsTypename    bool
	Arguments     map[string]interface{}
	TypeCondition schema.TypeID // zero if unconditional (matches ParentType)
	SelectionSet  []*Selection
	IsLeaf        bool

	// Synthetic marks a selection the binder injected rather than the client
	// authoring it — currently only the forced __typename discriminator on
	// abstract-typed fields (spec step 4.3.6). The response builder must
	// never surface a Synthetic-only selection in the client-facing output.
	Synthetic bool

	// Line is the 1-based line of the selection in the source document,
	// used to attribute validation errors (spec §4.2, §8 scenario 6).
	Line int
}

// Operation is a single bound request: a parsed document, the operation
// picked out of it by name (or the lone operation if unambiguous), and the
// raw variables exactly as supplied; they are neither coerced nor
// type-checked against their declared types.
type Operation struct {
	Schema     *schema.Schema
	Name       string
	RootType   schema.TypeID
	Selections []*Selection
	Variables  map[string]interface{}
	Attributes Attributes
}
