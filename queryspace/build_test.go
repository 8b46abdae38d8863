package queryspace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfed/engine/operation"
	"github.com/graphfed/engine/queryspace"
	"github.com/graphfed/engine/schema"
)

const fedSDL = `
enum join__Graph {
  USERS @join__graph(name: "users")
  REVIEWS @join__graph(name: "reviews")
}

type Query {
  me: User @join__field(graph: USERS)
}

type User @join__type(graph: USERS, key: "id") @join__type(graph: REVIEWS, key: "id") {
  id: ID!
  name: String @join__field(graph: USERS)
  reviewCount: Int @join__field(graph: REVIEWS, requires: "name")
}
`

func buildFedSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.Build(fedSDL, []schema.SubgraphConfig{
		{Name: "users", URL: "http://users.internal/graphql"},
		{Name: "reviews", URL: "http://reviews.internal/graphql"},
	})
	require.NoError(t, err)
	return sch
}

func countNodes(sp *queryspace.Space, kind queryspace.NodeKind) int {
	n := 0
	for _, node := range sp.Nodes {
		if node.Kind == kind {
			n++
		}
	}
	return n
}

func TestBuild_SameSubgraphFieldsShareOneResolverNode(t *testing.T) {
	sch := buildFedSchema(t)
	op, err := operation.Parse(sch, "", `{ me { id name } }`, nil, "POST", operation.Limits{})
	require.NoError(t, err)

	sp, err := queryspace.Build(sch, op)
	require.NoError(t, err)

	// "me" needs one resolver (users, root). "id" has no explicit
	// @join__field so it's a candidate in both users and reviews (User
	// declares @join__type in both): its users candidate is true
	// continuation through the exact resolver that already produced "me"
	// (no new node), and its reviews candidate opens one new node. "name"
	// is explicit users-only and is also true continuation through "me"'s
	// resolver. Total: the root "me" resolver, plus the one new reviews
	// jump opened for "id".
	assert.Equal(t, 2, countNodes(sp, queryspace.NodeResolver))
}

func TestBuild_RequiresInjectsFieldAndReusesClientSelection(t *testing.T) {
	sch := buildFedSchema(t)
	op, err := operation.Parse(sch, "", `{ me { id name reviewCount } }`, nil, "POST", operation.Limits{})
	require.NoError(t, err)

	sp, err := queryspace.Build(sch, op)
	require.NoError(t, err)

	nameFieldID, ok := sch.FieldByName(mustUserType(t, sch), "name")
	require.True(t, ok)

	var nameNodes int
	for _, n := range sp.Nodes {
		if n.Kind == queryspace.NodeQueryField && n.QueryField.FieldID == nameFieldID {
			nameNodes++
		}
	}
	// "name" was selected once by the client and also required by
	// reviewCount's resolver; it must still be a single node.
	assert.Equal(t, 1, nameNodes)

	var foundRequiresEdge bool
	for _, e := range sp.Edges {
		if e.Kind == queryspace.EdgeRequires {
			foundRequiresEdge = true
		}
	}
	assert.True(t, foundRequiresEdge, "expected a Requires edge from the injected/reused name field to reviewCount's resolver")
}

func TestBuild_UnresolvableFieldFails(t *testing.T) {
	sch, err := schema.Build(`
enum join__Graph {
  USERS @join__graph(name: "users")
}
type Query {
  me: User @join__field(graph: USERS)
}
type User @join__type(graph: USERS, key: "id") {
  id: ID!
  ghost: String @join__field(graph: REVIEWS)
}
`, []schema.SubgraphConfig{{Name: "users", URL: "http://users.internal/graphql"}})
	require.NoError(t, err)

	op, err := operation.Parse(sch, "", `{ me { id ghost } }`, nil, "POST", operation.Limits{})
	require.NoError(t, err)

	_, err = queryspace.Build(sch, op)
	require.Error(t, err)
	var unplannable *queryspace.UnplannableField
	require.ErrorAs(t, err, &unplannable)
	assert.Equal(t, "ghost", unplannable.Field)
}

func mustUserType(t *testing.T, sch *schema.Schema) schema.TypeID {
	t.Helper()
	id, ok := sch.LookupName("User")
	require.True(t, ok)
	return id
}
