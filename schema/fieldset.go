package schema

// FieldSet is a selection shape over a type — the structure used for
// `@key`, `@requires`, and `@provides` arguments. Unlike a full Operation
// selection set, a FieldSet carries no aliases, arguments, or directives:
// it only names which fields (and, transitively, which sub-fields) are
// needed or produced.
type FieldSet struct {
	On         TypeID
	Selections []FieldSetSelection
}

type FieldSetSelection struct {
	Field FieldID
	Sub   FieldSetID // zero (InvalidID-free sentinel handled by caller) if this field is a leaf
}

// Empty reports whether the field set has no selections (a zero-value
// field set, used for resolvers that require/provide nothing).
func (fs *FieldSet) Empty() bool {
	return fs == nil || len(fs.Selections) == 0
}

// Merge returns the union of two field sets on the same parent type,
// matching fields by FieldID and recursively unioning their sub-selections.
// This is the merge rule spec §4.3 step 5 calls for when combining a
// resolver's own `@provides` with ancestor `@provides` chains, and §9 flags
// as "union of field sets" with conflicting argument values left
// unresolved (an explicit Open Question, see DESIGN.md).
func Merge(schema *Schema, a, b *FieldSet) *FieldSet {
	if a.Empty() {
		return b
	}
	if b.Empty() {
		return a
	}
	merged := &FieldSet{On: a.On}
	byField := make(map[FieldID]int, len(a.Selections))
	for _, sel := range a.Selections {
		byField[sel.Field] = len(merged.Selections)
		merged.Selections = append(merged.Selections, sel)
	}
	for _, sel := range b.Selections {
		if idx, ok := byField[sel.Field]; ok {
			existing := merged.Selections[idx]
			if existing.Sub != 0 && sel.Sub != 0 {
				subA := schema.FieldSet(existing.Sub)
				subB := schema.FieldSet(sel.Sub)
				mergedSub := Merge(schema, subA, subB)
				merged.Selections[idx].Sub = schema.internFieldSet(mergedSub)
			}
			continue
		}
		byField[sel.Field] = len(merged.Selections)
		merged.Selections = append(merged.Selections, sel)
	}
	return merged
}
