package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfed/engine/schema"
)

const kitchenSinkSDL = `
enum join__Graph {
  USERS @join__graph(name: "users")
  REVIEWS @join__graph(name: "reviews")
}

type Query {
  me: User @join__field(graph: USERS)
}

type User @join__type(graph: USERS, key: "id") @join__type(graph: REVIEWS, key: "id") {
  id: ID!
  username: String @join__field(graph: USERS)
  reviewCount: Int @join__field(graph: REVIEWS)
}
`

func buildKitchenSink(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.Build(kitchenSinkSDL, []schema.SubgraphConfig{
		{Name: "users", URL: "http://users.internal/graphql"},
		{Name: "reviews", URL: "http://reviews.internal/graphql"},
	})
	require.NoError(t, err)
	require.NotNil(t, sch)
	return sch
}

func TestBuild_RootTypes(t *testing.T) {
	sch := buildKitchenSink(t)

	queryID := sch.QueryType()
	assert.Equal(t, "Query", sch.NamedTypeName(queryID))

	_, hasMutation := sch.MutationType()
	assert.False(t, hasMutation)
}

func TestBuild_EntityHasKeyFromBothSubgraphs(t *testing.T) {
	sch := buildKitchenSink(t)

	userID, ok := sch.LookupName("User")
	require.True(t, ok)
	assert.True(t, sch.IsEntity(userID))
	assert.Len(t, sch.Object(userID).Keys, 2)
}

func TestBuild_FieldResolversPerSubgraph(t *testing.T) {
	sch := buildKitchenSink(t)

	userID, _ := sch.LookupName("User")
	reviewCountID, ok := sch.FieldByName(userID, "reviewCount")
	require.True(t, ok)

	field := sch.Field(reviewCountID)
	require.Len(t, field.Resolvers, 1)
	assert.Equal(t, "reviews", sch.String(sch.Subgraph(field.Resolvers[0].Subgraph).Name))
}

func TestBuild_MissingSubgraphConfigFails(t *testing.T) {
	_, err := schema.Build(kitchenSinkSDL, []schema.SubgraphConfig{
		{Name: "users", URL: "http://users.internal/graphql"},
	})
	require.Error(t, err)

	var buildErr *schema.BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, schema.UnsupportedExtension, buildErr.Code)
}

func TestWrapping_RoundTrip(t *testing.T) {
	// [[Int!]!]!
	var b schema.WrappingBuilder
	w, err := b.List(true).List(true).Named(true).Build()
	require.NoError(t, err)

	assert.Equal(t, 2, w.Depth())
	assert.True(t, w.LevelRequired(0))
	assert.True(t, w.LevelRequired(1))
	assert.True(t, w.InnerRequired())
	assert.Equal(t, "[[Int!]!]!", w.String("Int"))

	inner, ok := w.Unwrap()
	require.True(t, ok)
	assert.Equal(t, 1, inner.Depth())
	assert.True(t, inner.LevelRequired(0))
	assert.True(t, inner.InnerRequired())
}

func TestWrapping_BareNamedType(t *testing.T) {
	var b schema.WrappingBuilder
	w, err := b.Named(false).Build()
	require.NoError(t, err)

	assert.Equal(t, 0, w.Depth())
	assert.False(t, w.IsList())
	assert.False(t, w.Required())
	assert.Equal(t, "Int", w.String("Int"))
}
