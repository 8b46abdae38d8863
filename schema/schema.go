// Package schema holds the composed supergraph model: an interned,
// id-indexed representation of every type, field, resolver, entity key and
// subgraph in a composed SDL. A Schema is immutable after Build returns;
// every other operation in this package is a read-only traversal.
package schema

import "net/url"

// Schema is the composed supergraph. Nothing mutates it after Build: the
// operation parser, query-space builder, solver, and executor all borrow
// from it for the lifetime of whatever request they're serving.
type Schema struct {
	strings *interner

	scalars      arena[ScalarDef]
	objects      arena[ObjectDef]
	interfaces   arena[InterfaceDef]
	unions       arena[UnionDef]
	enums        arena[EnumDef]
	inputObjects arena[InputObjectDef]

	fields    arena[FieldDefinition]
	arguments arena[Argument]
	fieldSets arena[FieldSet]
	keys      arena[EntityKey]
	subgraphs arena[Subgraph]
	urls      arena[url.URL]

	kinds map[TypeID]TypeKind
	byIdx map[TypeID]uint32 // TypeID -> index within its kind-specific arena
	byName map[StringID]TypeID

	queryType        TypeID
	mutationType     TypeID
	subscriptionType TypeID
	hasMutation      bool
	hasSubscription  bool
}

// Intern returns the StringID for s, interning it if this is the first
// time it has been seen. Exposed so callers building operations against
// this schema (the parser) can compare names as ids too.
func (s *Schema) Intern(str string) StringID { return s.strings.intern(str) }

// String resolves an interned StringID back to its text.
func (s *Schema) String(id StringID) string { return s.strings.lookup(id) }

// LookupName returns the TypeID for a named type, if one was defined.
func (s *Schema) LookupName(name string) (TypeID, bool) {
	id, ok := s.strings.tryLookup(name)
	if !ok {
		return 0, false
	}
	t, ok := s.byName[id]
	return t, ok
}

// KindOf reports what kind of definition a TypeID refers to.
func (s *Schema) KindOf(t TypeID) TypeKind { return s.kinds[t] }

func (s *Schema) Object(t TypeID) *ObjectDef          { return s.objects.get(s.byIdx[t]) }
func (s *Schema) Interface(t TypeID) *InterfaceDef    { return s.interfaces.get(s.byIdx[t]) }
func (s *Schema) Union(t TypeID) *UnionDef            { return s.unions.get(s.byIdx[t]) }
func (s *Schema) Enum(t TypeID) *EnumDef              { return s.enums.get(s.byIdx[t]) }
func (s *Schema) InputObject(t TypeID) *InputObjectDef { return s.inputObjects.get(s.byIdx[t]) }
func (s *Schema) Scalar(t TypeID) *ScalarDef          { return s.scalars.get(s.byIdx[t]) }

func (s *Schema) Field(id FieldID) *FieldDefinition { return s.fields.get(uint32(id)) }
func (s *Schema) Argument(id ArgumentID) *Argument  { return s.arguments.get(uint32(id)) }
func (s *Schema) FieldSet(id FieldSetID) *FieldSet {
	if id == 0 {
		return nil
	}
	return s.fieldSets.get(uint32(id))
}
func (s *Schema) EntityKey(id EntityKeyID) *EntityKey { return s.keys.get(uint32(id)) }
func (s *Schema) Subgraph(id SubgraphID) *Subgraph    { return s.subgraphs.get(uint32(id)) }
func (s *Schema) URL(id URLID) *url.URL               { return s.urls.get(uint32(id)) }

func (s *Schema) NumSubgraphs() int { return s.subgraphs.len() }

// AllSubgraphs returns every subgraph id in declaration order.
func (s *Schema) AllSubgraphs() []SubgraphID {
	ids := make([]SubgraphID, s.subgraphs.len())
	for i := range ids {
		ids[i] = SubgraphID(i)
	}
	return ids
}

// QueryType, MutationType, SubscriptionType return the supergraph's root
// operation types. Mutation/Subscription may be absent.
func (s *Schema) QueryType() TypeID { return s.queryType }
func (s *Schema) MutationType() (TypeID, bool) { return s.mutationType, s.hasMutation }
func (s *Schema) SubscriptionType() (TypeID, bool) { return s.subscriptionType, s.hasSubscription }

// FieldByName looks up a field of an object or interface type by name.
func (s *Schema) FieldByName(parent TypeID, name string) (FieldID, bool) {
	nameID, ok := s.strings.tryLookup(name)
	if !ok {
		return 0, false
	}
	var fieldIDs []FieldID
	switch s.KindOf(parent) {
	case KindObject:
		fieldIDs = s.Object(parent).Fields
	case KindInterface:
		fieldIDs = s.Interface(parent).Fields
	default:
		return 0, false
	}
	for _, fid := range fieldIDs {
		if s.Field(fid).Name == nameID {
			return fid, true
		}
	}
	return 0, false
}

// IsEntity reports whether an object type declares at least one @key.
func (s *Schema) IsEntity(t TypeID) bool {
	if s.KindOf(t) != KindObject {
		return false
	}
	return len(s.Object(t).Keys) > 0
}

// PossibleTypes returns the concrete object types a union or interface can
// resolve to at runtime — used by the response builder's type-discriminated
// polymorphic seed and by the query-space builder when enumerating
// fragment conditions.
func (s *Schema) PossibleTypes(t TypeID) []TypeID {
	switch s.KindOf(t) {
	case KindUnion:
		return s.Union(t).Members
	case KindInterface:
		return s.Interface(t).Implementers
	case KindObject:
		return []TypeID{t}
	default:
		return nil
	}
}

// NamedTypeName resolves the display name of a type.
func (s *Schema) NamedTypeName(t TypeID) string {
	switch s.KindOf(t) {
	case KindScalar:
		return s.String(s.Scalar(t).Name)
	case KindObject:
		return s.String(s.Object(t).Name)
	case KindInterface:
		return s.String(s.Interface(t).Name)
	case KindUnion:
		return s.String(s.Union(t).Name)
	case KindEnum:
		return s.String(s.Enum(t).Name)
	case KindInputObject:
		return s.String(s.InputObject(t).Name)
	default:
		return "<unknown>"
	}
}

// internFieldSet adds a newly constructed FieldSet (e.g. the result of a
// Merge) to the arena and returns its id. Used by fieldset.go's Merge.
func (s *Schema) internFieldSet(fs *FieldSet) FieldSetID {
	return FieldSetID(s.fieldSets.add(*fs))
}
