package schema

// TypeWalker pairs a TypeID with the Schema it belongs to, letting callers
// traverse the graph (fields, interfaces, possible types) without holding
// raw pointers into the arenas. Cheap to copy, cheap to compare by ID.
type TypeWalker struct {
	Schema *Schema
	ID     TypeID
}

func (s *Schema) Walk(t TypeID) TypeWalker { return TypeWalker{Schema: s, ID: t} }

func (w TypeWalker) Kind() TypeKind { return w.Schema.KindOf(w.ID) }
func (w TypeWalker) Name() string   { return w.Schema.NamedTypeName(w.ID) }

func (w TypeWalker) Fields() []FieldWalker {
	var ids []FieldID
	switch w.Kind() {
	case KindObject:
		ids = w.Schema.Object(w.ID).Fields
	case KindInterface:
		ids = w.Schema.Interface(w.ID).Fields
	}
	out := make([]FieldWalker, len(ids))
	for i, id := range ids {
		out[i] = FieldWalker{Schema: w.Schema, ID: id}
	}
	return out
}

func (w TypeWalker) PossibleTypes() []TypeWalker {
	ids := w.Schema.PossibleTypes(w.ID)
	out := make([]TypeWalker, len(ids))
	for i, id := range ids {
		out[i] = TypeWalker{Schema: w.Schema, ID: id}
	}
	return out
}

// FieldWalker pairs a FieldID with its Schema.
type FieldWalker struct {
	Schema *Schema
	ID     FieldID
}

func (w FieldWalker) Def() *FieldDefinition { return w.Schema.Field(w.ID) }
func (w FieldWalker) Name() string          { return w.Schema.String(w.Def().Name) }
func (w FieldWalker) NamedType() TypeWalker {
	return TypeWalker{Schema: w.Schema, ID: w.Def().Type.Named}
}
func (w FieldWalker) Resolvers() []FieldResolver { return w.Def().Resolvers }
