package schema

import (
	"fmt"
	"net/url"

	"github.com/samsarahq/go/oops"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// federation directive names embedded in the composed SDL, per spec §6.
const (
	dirJoinGraph = "join__graph"
	dirJoinType  = "join__type"
	dirJoinField = "join__field"
	dirKey       = "key"
	dirRequires  = "requires"
	dirProvides  = "provides"
)

// Build parses a single composed supergraph SDL string (the output of an
// external composition step, spec §1) together with the per-subgraph
// runtime configuration, and produces an immutable Schema.
func Build(sdl string, subgraphConfigs []SubgraphConfig) (*Schema, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: "supergraph.graphql", Input: sdl})
	if err != nil {
		return nil, newBuildError(GraphQLParse, "", err)
	}

	b := &builder{
		schema:        &Schema{strings: newInterner(), kinds: map[TypeID]TypeKind{}, byIdx: map[TypeID]uint32{}, byName: map[StringID]TypeID{}},
		doc:           doc,
		subgraphByKey: map[string]SubgraphID{},
	}
	// Reserve index 0 in the field-set arena as the canonical "empty field
	// set" sentinel so FieldSetID zero always means "none".
	b.schema.fieldSets.add(FieldSet{})

	if err := b.registerSubgraphs(subgraphConfigs); err != nil {
		return nil, err
	}
	if err := b.declareNames(doc); err != nil {
		return nil, err
	}
	if err := b.buildBodies(doc); err != nil {
		return nil, err
	}
	if err := b.resolveRoots(doc); err != nil {
		return nil, err
	}
	if err := b.validateEntities(); err != nil {
		return nil, err
	}
	return b.schema, nil
}

type builder struct {
	schema        *Schema
	doc           *ast.SchemaDocument
	subgraphByKey map[string]SubgraphID // join__graph enum value -> SubgraphID
}

func (b *builder) registerSubgraphs(configs []SubgraphConfig) error {
	// join__Graph enum values name each subgraph; match them by name to the
	// runtime SubgraphConfig supplied by the configuration collaborator.
	byName := make(map[string]SubgraphConfig, len(configs))
	for _, c := range configs {
		byName[c.Name] = c
	}

	for _, def := range b.doc.Definitions {
		if def.Kind != ast.Enum || def.Name != "join__Graph" {
			continue
		}
		for _, v := range def.EnumValues {
			graphDir := v.Directives.ForName(dirJoinGraph)
			name := v.Name
			if graphDir != nil {
				if nameArg := graphDir.Arguments.ForName("name"); nameArg != nil {
					name = stringLiteral(nameArg.Value)
				}
			}
			cfg, ok := byName[name]
			if !ok {
				return wrapBuildErrorf(UnsupportedExtension, "join__Graph."+v.Name, "no subgraph configuration supplied for %q", name)
			}
			sg, err := b.buildSubgraph(cfg)
			if err != nil {
				return err
			}
			b.subgraphByKey[v.Name] = sg
		}
	}
	return nil
}

func (b *builder) buildSubgraph(cfg SubgraphConfig) (SubgraphID, error) {
	var urlID, wsURLID URLID
	if cfg.URL != "" {
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return 0, newBuildError(InvalidURL, cfg.Name, oops.Wrapf(err, "parsing subgraph url"))
		}
		urlID = URLID(b.schema.urls.add(*u))
	}
	if cfg.WebsocketURL != "" {
		u, err := url.Parse(cfg.WebsocketURL)
		if err != nil {
			return 0, newBuildError(InvalidURL, cfg.Name, oops.Wrapf(err, "parsing subgraph websocket url"))
		}
		wsURLID = URLID(b.schema.urls.add(*u))
	}
	id := b.schema.subgraphs.add(Subgraph{
		Name:         b.schema.Intern(cfg.Name),
		URL:          urlID,
		WebsocketURL: wsURLID,
		IsVirtual:    cfg.IsVirtual,
		Headers:      cfg.Headers,
		Timeout:      cfg.Timeout,
		Retry:        cfg.Retry,
	})
	return SubgraphID(id), nil
}

// declareNames is the first pass: it assigns a TypeID to every named
// definition so forward references (a field whose type is declared later
// in the document) resolve during the second pass.
func (b *builder) declareNames(doc *ast.SchemaDocument) error {
	nextID := TypeID(0)
	for _, def := range doc.Definitions {
		if isFederationBookkeepingType(def.Name) {
			continue
		}
		nameID := b.schema.Intern(def.Name)
		id := nextID
		nextID++
		b.schema.byName[nameID] = id

		switch def.Kind {
		case ast.Scalar:
			b.schema.kinds[id] = KindScalar
			b.schema.byIdx[id] = b.schema.scalars.add(ScalarDef{Name: nameID})
		case ast.Object:
			b.schema.kinds[id] = KindObject
			b.schema.byIdx[id] = b.schema.objects.add(ObjectDef{Name: nameID})
		case ast.Interface:
			b.schema.kinds[id] = KindInterface
			b.schema.byIdx[id] = b.schema.interfaces.add(InterfaceDef{Name: nameID})
		case ast.Union:
			b.schema.kinds[id] = KindUnion
			b.schema.byIdx[id] = b.schema.unions.add(UnionDef{Name: nameID})
		case ast.Enum:
			b.schema.kinds[id] = KindEnum
			b.schema.byIdx[id] = b.schema.enums.add(EnumDef{Name: nameID})
		case ast.InputObject:
			b.schema.kinds[id] = KindInputObject
			b.schema.byIdx[id] = b.schema.inputObjects.add(InputObjectDef{Name: nameID})
		default:
			return wrapBuildErrorf(GraphQLValidation, def.Name, "unsupported definition kind %v", def.Kind)
		}
	}
	return nil
}

// buildBodies is the second pass: fields, arguments, directives, and
// per-subgraph resolver sets are filled in now that every name resolves.
func (b *builder) buildBodies(doc *ast.SchemaDocument) error {
	for _, def := range doc.Definitions {
		if isFederationBookkeepingType(def.Name) {
			continue
		}
		typeID := b.schema.byName[b.schema.Intern(def.Name)]

		switch def.Kind {
		case ast.Object, ast.Interface:
			if err := b.buildFieldedType(typeID, def); err != nil {
				return err
			}
		case ast.Union:
			members := make([]TypeID, 0, len(def.Types))
			for _, m := range def.Types {
				mid, ok := b.schema.LookupName(m)
				if !ok {
					return wrapBuildErrorf(GraphQLValidation, def.Name, "union member %q not found", m)
				}
				members = append(members, mid)
			}
			b.schema.Union(typeID).Members = members
		case ast.Enum:
			enum := b.schema.Enum(typeID)
			for _, v := range def.EnumValues {
				enum.Values = append(enum.Values, b.schema.Intern(v.Name))
			}
		case ast.InputObject:
			input := b.schema.InputObject(typeID)
			for _, f := range def.Fields {
				ft, err := b.buildFieldType(f.Type)
				if err != nil {
					return wrapBuildErrorf(GraphQLValidation, def.Name+"."+f.Name, "bad type: %v", err)
				}
				var dv *Value
				if f.DefaultValue != nil {
					v, err := b.coerceValue(f.DefaultValue, ft)
					if err != nil {
						return newBuildError(DefaultValueCoercionError, def.Name+"."+f.Name, err)
					}
					dv = &v
				}
				input.Fields = append(input.Fields, InputFieldDef{Name: b.schema.Intern(f.Name), Type: ft, DefaultValue: dv})
			}
		}
	}

	// Implementer back-references, so abstract-type resolution (response
	// discrimination, query-space fragment expansion) is O(1).
	for _, def := range doc.Definitions {
		if def.Kind != ast.Object {
			continue
		}
		objID, _ := b.schema.LookupName(def.Name)
		for _, iface := range def.Interfaces {
			ifaceID, ok := b.schema.LookupName(iface)
			if !ok {
				continue
			}
			i := b.schema.Interface(ifaceID)
			i.Implementers = append(i.Implementers, objID)
		}
	}

	// Entity keys have to exist before resolvers are attached (a resolver's
	// Kind depends on whether its subgraph owns one of the parent's @key
	// entries), but building them requires every type's fields to already
	// be in place (@key strings reference fields by name). So resolver
	// attachment is a third pass, once both of those are done.
	if err := b.buildEntityKeys(doc); err != nil {
		return err
	}
	for _, def := range doc.Definitions {
		if def.Kind != ast.Object && def.Kind != ast.Interface {
			continue
		}
		typeID := b.schema.byName[b.schema.Intern(def.Name)]
		if err := b.buildTypeResolvers(typeID, def); err != nil {
			return err
		}
	}
	return nil
}

// buildTypeResolvers attaches FieldResolvers to every field of an
// already-shaped Object/Interface, now that entity keys are known.
func (b *builder) buildTypeResolvers(typeID TypeID, def *ast.Definition) error {
	for _, f := range def.Fields {
		if isIntrospectionField(f.Name) {
			continue
		}
		fieldID, ok := b.schema.FieldByName(typeID, f.Name)
		if !ok {
			return wrapBuildErrorf(GraphQLValidation, def.Name+"."+f.Name, "field disappeared between shape and resolver passes")
		}
		if err := b.buildFieldResolvers(typeID, fieldID, f, def); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) buildFieldedType(typeID TypeID, def *ast.Definition) error {
	var fieldIDs *[]FieldID
	var interfaces *[]TypeID
	switch b.schema.KindOf(typeID) {
	case KindObject:
		o := b.schema.Object(typeID)
		fieldIDs = &o.Fields
		interfaces = &o.Interfaces
	case KindInterface:
		i := b.schema.Interface(typeID)
		fieldIDs = &i.Fields
	}
	if interfaces != nil {
		for _, iname := range def.Interfaces {
			iid, ok := b.schema.LookupName(iname)
			if !ok {
				return wrapBuildErrorf(GraphQLValidation, def.Name, "interface %q not found", iname)
			}
			*interfaces = append(*interfaces, iid)
		}
	}

	for _, f := range def.Fields {
		if isIntrospectionField(f.Name) {
			continue
		}
		ft, err := b.buildFieldType(f.Type)
		if err != nil {
			return wrapBuildErrorf(GraphQLValidation, def.Name+"."+f.Name, "bad type: %v", err)
		}

		args := make([]ArgumentID, 0, len(f.Arguments))
		for _, a := range f.Arguments {
			at, err := b.buildFieldType(a.Type)
			if err != nil {
				return wrapBuildErrorf(GraphQLValidation, def.Name+"."+f.Name+"."+a.Name, "bad arg type: %v", err)
			}
			var dv *Value
			if a.DefaultValue != nil {
				v, err := b.coerceValue(a.DefaultValue, at)
				if err != nil {
					return newBuildError(DefaultValueCoercionError, def.Name+"."+f.Name+"."+a.Name, err)
				}
				dv = &v
			}
			argID := b.schema.arguments.add(Argument{Name: b.schema.Intern(a.Name), Type: at, DefaultValue: dv})
			args = append(args, ArgumentID(argID))
		}

		fieldID := FieldID(b.schema.fields.add(FieldDefinition{
			Parent:    typeID,
			Name:      b.schema.Intern(f.Name),
			Type:      ft,
			Arguments: args,
		}))
		*fieldIDs = append(*fieldIDs, fieldID)
	}
	return nil
}

// buildFieldResolvers inspects a field's @join__field directives (one per
// owning subgraph) and records a FieldResolver per subgraph. A field with
// no @join__field at all is assumed resolvable by every subgraph that
// declares the parent type (the common un-annotated case).
func (b *builder) buildFieldResolvers(parent TypeID, fieldID FieldID, f *ast.FieldDefinition, typeDef *ast.Definition) error {
	field := b.schema.Field(fieldID)
	joinFields := f.Directives.ForNames(dirJoinField)
	if len(joinFields) == 0 {
		return b.buildImplicitResolvers(fieldID, typeDef)
	}
	for _, jf := range joinFields {
		graphArg := jf.Arguments.ForName("graph")
		if graphArg == nil {
			continue
		}
		sg, ok := b.subgraphByKey[enumLiteral(graphArg.Value)]
		if !ok {
			continue
		}

		resolver := FieldResolver{Subgraph: sg, Kind: ResolverRoot}

		if requiresArg := jf.Arguments.ForName(dirRequires); requiresArg != nil {
			fs, err := b.parseFieldSet(parent, stringLiteral(requiresArg.Value))
			if err != nil {
				return newBuildError(InvalidFieldSet, b.schema.NamedTypeName(parent)+"."+b.schema.String(field.Name), err)
			}
			resolver.Requires = fs
		}
		if providesArg := jf.Arguments.ForName(dirProvides); providesArg != nil {
			namedType, err := namedTypeOf(b.schema, field.Type)
			if err != nil {
				return err
			}
			fs, err := b.parseFieldSet(namedType, stringLiteral(providesArg.Value))
			if err != nil {
				return newBuildError(InvalidFieldSet, b.schema.NamedTypeName(parent)+"."+b.schema.String(field.Name), err)
			}
			resolver.Provides = fs
		}

		if b.schema.IsEntity(parent) {
			for _, k := range b.schema.Object(parent).Keys {
				key := b.schema.EntityKey(k)
				if key.Subgraph == sg {
					resolver.Kind = ResolverEntity
					resolver.Key = k
				}
			}
		}
		if b.schema.Subgraph(sg).IsVirtual {
			resolver.Kind = ResolverExtension
		}

		field.Resolvers = append(field.Resolvers, resolver)
	}
	return nil
}

// buildImplicitResolvers handles a field with no @join__field at all: it is
// resolvable in whichever subgraphs declare the parent type via
// @join__type, or in every subgraph if the parent type isn't federated
// (declares no @join__type), since then it only exists in one place.
func (b *builder) buildImplicitResolvers(fieldID FieldID, typeDef *ast.Definition) error {
	field := b.schema.Field(fieldID)
	joinTypes := typeDef.Directives.ForNames(dirJoinType)
	if len(joinTypes) == 0 {
		for _, sg := range b.schema.AllSubgraphs() {
			field.Resolvers = append(field.Resolvers, FieldResolver{Subgraph: sg, Kind: ResolverRoot})
		}
		return nil
	}
	for _, jt := range joinTypes {
		graphArg := jt.Arguments.ForName("graph")
		if graphArg == nil {
			continue
		}
		sg, ok := b.subgraphByKey[enumLiteral(graphArg.Value)]
		if !ok {
			continue
		}
		resolver := FieldResolver{Subgraph: sg, Kind: ResolverRoot}
		if b.schema.IsEntity(field.Parent) {
			for _, k := range b.schema.Object(field.Parent).Keys {
				if b.schema.EntityKey(k).Subgraph == sg {
					resolver.Kind = ResolverEntity
					resolver.Key = k
				}
			}
		}
		if b.schema.Subgraph(sg).IsVirtual {
			resolver.Kind = ResolverExtension
		}
		field.Resolvers = append(field.Resolvers, resolver)
	}
	return nil
}

// buildEntityKeys walks @join__type(graph:,key:) directives on every
// object definition, producing one EntityKey per (subgraph, key field set).
func (b *builder) buildEntityKeys(doc *ast.SchemaDocument) error {
	for _, def := range doc.Definitions {
		if def.Kind != ast.Object {
			continue
		}
		typeID, _ := b.schema.LookupName(def.Name)
		for _, jt := range def.Directives.ForNames(dirJoinType) {
			graphArg := jt.Arguments.ForName("graph")
			keyArg := jt.Arguments.ForName(dirKey)
			if graphArg == nil || keyArg == nil {
				continue
			}
			sg, ok := b.subgraphByKey[enumLiteral(graphArg.Value)]
			if !ok {
				continue
			}
			fs, err := b.parseFieldSet(typeID, stringLiteral(keyArg.Value))
			if err != nil {
				return newBuildError(InvalidFieldSet, def.Name+"@key", err)
			}
			keyID := EntityKeyID(b.schema.keys.add(EntityKey{Subgraph: sg, Type: typeID, Fields: fs}))
			obj := b.schema.Object(typeID)
			obj.Keys = append(obj.Keys, keyID)
		}
	}
	return nil
}

func (b *builder) resolveRoots(doc *ast.SchemaDocument) error {
	queryName, mutationName, subscriptionName := "Query", "Mutation", "Subscription"
	if doc.Schema != nil {
		for _, s := range doc.Schema {
			for _, op := range s.OperationTypes {
				switch op.Operation {
				case ast.Query:
					queryName = op.Type
				case ast.Mutation:
					mutationName = op.Type
				case ast.Subscription:
					subscriptionName = op.Type
				}
			}
		}
	}
	qid, ok := b.schema.LookupName(queryName)
	if !ok {
		return wrapBuildErrorf(GraphQLValidation, queryName, "query root type not found")
	}
	b.schema.queryType = qid
	if mid, ok := b.schema.LookupName(mutationName); ok {
		b.schema.mutationType = mid
		b.schema.hasMutation = true
	}
	if sid, ok := b.schema.LookupName(subscriptionName); ok {
		b.schema.subscriptionType = sid
		b.schema.hasSubscription = true
	}
	return nil
}

// validateEntities enforces spec §3's cross-subgraph key invariant: for
// every object appearing in more than one subgraph, at least one subgraph
// declares a @key compatible with another.
func (b *builder) validateEntities() error {
	for t, kind := range b.schema.kinds {
		if kind != KindObject {
			continue
		}
		obj := b.schema.Object(t)
		seenSubgraphs := map[SubgraphID]bool{}
		for _, fid := range obj.Fields {
			for _, r := range b.schema.Field(fid).Resolvers {
				seenSubgraphs[r.Subgraph] = true
			}
		}
		if len(seenSubgraphs) > 1 && len(obj.Keys) == 0 {
			return wrapBuildErrorf(GraphQLValidation, b.schema.String(obj.Name),
				"type is resolvable by %d subgraphs but declares no @key", len(seenSubgraphs))
		}
	}
	return nil
}

// parseFieldSet parses a `@key`/`@requires`/`@provides` string argument
// (itself a tiny GraphQL selection-set grammar, e.g. "id sku") against its
// parent type, validating every named field exists.
func (b *builder) parseFieldSet(parent TypeID, raw string) (FieldSetID, error) {
	sels, err := parser.ParseQuery(&ast.Source{Input: "{" + raw + "}"})
	if err != nil {
		return 0, oops.Wrapf(err, "parsing field set %q", raw)
	}
	if len(sels.Operations) == 0 {
		return 0, fmt.Errorf("empty field set")
	}
	fs, err := b.buildFieldSetFromSelectionSet(parent, sels.Operations[0].SelectionSet)
	if err != nil {
		return 0, err
	}
	return b.schema.internFieldSet(fs), nil
}

func (b *builder) buildFieldSetFromSelectionSet(parent TypeID, set ast.SelectionSet) (*FieldSet, error) {
	fs := &FieldSet{On: parent}
	for _, sel := range set {
		field, ok := sel.(*ast.Field)
		if !ok {
			return nil, fmt.Errorf("field set selections must be plain fields")
		}
		fid, ok := b.schema.FieldByName(parent, field.Name)
		if !ok {
			return nil, fmt.Errorf("field %q not found on %s", field.Name, b.schema.NamedTypeName(parent))
		}
		var sub FieldSetID
		if len(field.SelectionSet) > 0 {
			namedType, err := namedTypeOf(b.schema, b.schema.Field(fid).Type)
			if err != nil {
				return nil, err
			}
			subFS, err := b.buildFieldSetFromSelectionSet(namedType, field.SelectionSet)
			if err != nil {
				return nil, err
			}
			sub = b.schema.internFieldSet(subFS)
		}
		fs.Selections = append(fs.Selections, FieldSetSelection{Field: fid, Sub: sub})
	}
	return fs, nil
}

func (b *builder) buildFieldType(t *ast.Type) (FieldType, error) {
	var bld WrappingBuilder
	var walk func(t *ast.Type) (TypeID, error)
	// gqlparser represents wrapping outside-in via NonNull/Elem; collect the
	// chain of list wrappers first, then resolve the named type.
	var levels []bool
	cur := t
	for cur.NamedType == "" {
		levels = append(levels, cur.NonNull)
		cur = cur.Elem
	}
	for _, nn := range levels {
		bld.List(nn)
	}
	walk = func(t *ast.Type) (TypeID, error) {
		id, ok := b.schema.LookupName(t.NamedType)
		if !ok {
			return 0, fmt.Errorf("unknown type %q", t.NamedType)
		}
		return id, nil
	}
	named, err := walk(cur)
	if err != nil {
		return FieldType{}, err
	}
	bld.Named(cur.NonNull)
	w, err := bld.Build()
	if err != nil {
		return FieldType{}, err
	}
	return FieldType{Named: named, Wrapping: w}, nil
}

func (b *builder) coerceValue(v *ast.Value, ft FieldType) (Value, error) {
	// Const-context coercion: default values never reference variables.
	switch v.Kind {
	case ast.IntValue:
		var i int64
		if _, err := fmt.Sscanf(v.Raw, "%d", &i); err != nil {
			return Value{}, oops.Wrapf(err, "coercing int default")
		}
		return Value{Kind: ValueInt, Int: i}, nil
	case ast.FloatValue:
		var f float64
		if _, err := fmt.Sscanf(v.Raw, "%g", &f); err != nil {
			return Value{}, oops.Wrapf(err, "coercing float default")
		}
		return Value{Kind: ValueFloat, Float: f}, nil
	case ast.StringValue, ast.BlockValue:
		return Value{Kind: ValueString, Str: v.Raw}, nil
	case ast.BooleanValue:
		return Value{Kind: ValueBool, Bool: v.Raw == "true"}, nil
	case ast.NullValue:
		return Value{Kind: ValueNull}, nil
	case ast.EnumValue:
		return Value{Kind: ValueEnum, Str: v.Raw}, nil
	case ast.ListValue:
		items := make([]Value, 0, len(v.Children))
		for _, c := range v.Children {
			cv, err := b.coerceValue(c.Value, ft)
			if err != nil {
				return Value{}, err
			}
			items = append(items, cv)
		}
		return Value{Kind: ValueList, List: items}, nil
	case ast.ObjectValue:
		fields := make([]ArgumentValue, 0, len(v.Children))
		for _, c := range v.Children {
			cv, err := b.coerceValue(c.Value, ft)
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, ArgumentValue{Name: b.schema.Intern(c.Name), Value: cv})
		}
		return Value{Kind: ValueObject, Object: fields}, nil
	default:
		return Value{}, fmt.Errorf("unsupported default value kind %v", v.Kind)
	}
}

func namedTypeOf(s *Schema, ft FieldType) (TypeID, error) {
	return ft.Named, nil
}

func stringLiteral(v *ast.Value) string {
	if v == nil {
		return ""
	}
	return v.Raw
}

func enumLiteral(v *ast.Value) string {
	if v == nil {
		return ""
	}
	return v.Raw
}

func isIntrospectionField(name string) bool {
	return len(name) >= 2 && name[0] == '_' && name[1] == '_'
}

func isFederationBookkeepingType(name string) bool {
	switch name {
	case "join__Graph", "join__FieldSet", "_Any", "_Service", "_Entity":
		return true
	default:
		return false
	}
}
