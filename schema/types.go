package schema

// FieldType is a field's named type plus its list/nullability wrapping.
type FieldType struct {
	Named    TypeID
	Wrapping Wrapping
}

// Argument is a named, typed input to a field or directive.
type Argument struct {
	Name         StringID
	Type         FieldType
	DefaultValue *Value
}

// DirectiveUse is one application of a directive on some schema location,
// with its arguments already coerced against the directive's declared
// argument types.
type DirectiveUse struct {
	Name StringID
	Args []ArgumentValue
}

// ArgumentValue binds one of a directive's or field's declared arguments to
// a coerced value.
type ArgumentValue struct {
	Name  StringID
	Value Value
}

// Value is a coerced GraphQL input value (const context: no variables).
// Exactly one field is meaningful per Kind.
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueInt
	ValueFloat
	ValueString
	ValueBool
	ValueEnum
	ValueList
	ValueObject
)

type Value struct {
	Kind   ValueKind
	Int    int64
	Float  float64
	Str    string
	Bool   bool
	List   []Value
	Object []ArgumentValue
}

// ScalarDef is a leaf type, e.g. String, Int, a subgraph-defined custom
// scalar like DateTime.
type ScalarDef struct {
	Name       StringID
	Directives []DirectiveUse
}

// ObjectDef is a composite output type with fields, possibly implementing
// interfaces, possibly an entity (has at least one EntityKey).
type ObjectDef struct {
	Name       StringID
	Interfaces []TypeID
	Fields     []FieldID // indices into Schema.fields belonging to this object
	Keys       []EntityKeyID
	Directives []DirectiveUse
}

// InterfaceDef mirrors ObjectDef; implementers are tracked for fast
// abstract-type resolution during planning and response typing.
type InterfaceDef struct {
	Name        StringID
	Fields      []FieldID
	Implementers []TypeID
	Directives  []DirectiveUse
}

// UnionDef lists its member object types.
type UnionDef struct {
	Name       StringID
	Members    []TypeID
	Directives []DirectiveUse
}

// EnumDef lists its values (each interned, no further structure needed).
type EnumDef struct {
	Name       StringID
	Values     []StringID
	Directives []DirectiveUse
}

// InputObjectDef is an input-only composite type.
type InputObjectDef struct {
	Name       StringID
	Fields     []InputFieldDef
	Directives []DirectiveUse
}

type InputFieldDef struct {
	Name         StringID
	Type         FieldType
	DefaultValue *Value
}

// ResolverKind tags which of the four resolver shapes a FieldResolver is.
// Spec §9: "no virtual dispatch is needed at runtime because the plan has
// already chosen the concrete resolver" — the query-space builder copies
// this tag onto each Resolver node, and plan.Build reads it to decide
// whether a step is an `_entities` fetch; there is no per-kind interface.
type ResolverKind uint8

const (
	ResolverRoot ResolverKind = iota
	ResolverEntity
	ResolverExtension
	ResolverLookup
)

func (k ResolverKind) String() string {
	switch k {
	case ResolverRoot:
		return "root"
	case ResolverEntity:
		return "entity"
	case ResolverExtension:
		return "extension"
	case ResolverLookup:
		return "lookup"
	default:
		return "unknown"
	}
}

// FieldResolver is one subgraph's ability to resolve a field: which
// subgraph, what kind of resolver it is, and what it requires/provides.
type FieldResolver struct {
	Subgraph SubgraphID
	Kind     ResolverKind
	// Key is set for ResolverEntity: the EntityKey used to "jump" into this
	// subgraph for the parent entity.
	Key EntityKeyID
	// Requires is the field set that must already be resolved on the parent
	// object before this resolver can run (may be the zero FieldSetID, i.e.
	// none).
	Requires FieldSetID
	// Provides is the field set this resolver additionally surfaces beyond
	// its schema declaration (may be zero).
	Provides FieldSetID
}

// FieldDefinition is a field of an Object or Interface, annotated per
// subgraph with how it can be resolved there.
type FieldDefinition struct {
	Parent     TypeID
	Name       StringID
	Type       FieldType
	Arguments  []ArgumentID
	Directives []DirectiveUse
	// Resolvers lists, for every subgraph that exposes this field, how it
	// can be resolved there. A field exposed identically by three subgraphs
	// has three entries.
	Resolvers []FieldResolver
}

// ResolvableBy reports whether subgraph sg can resolve this field at all,
// returning the first matching FieldResolver.
func (f *FieldDefinition) ResolvableBy(sg SubgraphID) (FieldResolver, bool) {
	for _, r := range f.Resolvers {
		if r.Subgraph == sg {
			return r, true
		}
	}
	return FieldResolver{}, false
}
