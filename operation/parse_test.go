package operation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfed/engine/operation"
	"github.com/graphfed/engine/schema"
)

const testSDL = `
enum join__Graph {
  USERS @join__graph(name: "users")
}

type Query {
  me: User @join__field(graph: USERS)
}

type Mutation {
  setName(name: String!): User @join__field(graph: USERS)
}

type User @join__type(graph: USERS, key: "id") {
  id: ID!
  name: String
  friends: [User!]
}
`

func buildTestSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.Build(testSDL, []schema.SubgraphConfig{
		{Name: "users", URL: "http://users.internal/graphql"},
	})
	require.NoError(t, err)
	return sch
}

func TestParse_SimpleQuery(t *testing.T) {
	sch := buildTestSchema(t)

	op, err := operation.Parse(sch, "", `{ me { id name } }`, nil, "POST", operation.Limits{})
	require.NoError(t, err)

	require.Len(t, op.Selections, 1)
	me := op.Selections[0]
	assert.Equal(t, "me", me.ResponseKey)
	require.Len(t, me.SelectionSet, 2)
	assert.Equal(t, operation.KindQuery, op.Attributes.Kind)
}

func TestParse_MutationOverGETRejected(t *testing.T) {
	sch := buildTestSchema(t)

	_, err := operation.Parse(sch, "", `mutation { setName(name: "a") { id } }`, nil, "GET", operation.Limits{})
	require.Error(t, err)

	var methodErr *operation.MethodNotAllowedError
	require.ErrorAs(t, err, &methodErr)
}

func TestParse_DepthLimit(t *testing.T) {
	sch := buildTestSchema(t)

	query := `{ me { friends { friends { friends { id } } } } }`
	_, err := operation.Parse(sch, "", query, nil, "POST", operation.Limits{MaxDepth: 3})
	require.Error(t, err)

	var parseErr *operation.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, operation.Validation, parseErr.Code)
}

func TestParse_DepthLimitAtBoundarySucceeds(t *testing.T) {
	sch := buildTestSchema(t)

	query := `{ me { friends { id } } }`
	_, err := operation.Parse(sch, "", query, nil, "POST", operation.Limits{MaxDepth: 3})
	require.NoError(t, err)
}

func TestParse_VariableBinding(t *testing.T) {
	sch := buildTestSchema(t)

	query := `mutation SetName($name: String!) { setName(name: $name) { id } }`
	op, err := operation.Parse(sch, "", query, map[string]interface{}{"name": "Ada"}, "POST", operation.Limits{})
	require.NoError(t, err)

	require.Len(t, op.Selections, 1)
	assert.Equal(t, "Ada", op.Selections[0].Arguments["name"])
}

const polySDL = `
enum join__Graph {
  USERS @join__graph(name: "users")
}

type Query {
  pet: Pet @join__field(graph: USERS)
}

interface Pet {
  name: String
}

type Dog implements Pet @join__type(graph: USERS, key: "name") {
  name: String
  breed: String
}

type Cat implements Pet @join__type(graph: USERS, key: "name") {
  name: String
  livesLeft: Int
}
`

func buildPolySchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.Build(polySDL, []schema.SubgraphConfig{
		{Name: "users", URL: "http://users.internal/graphql"},
	})
	require.NoError(t, err)
	return sch
}

func TestParse_AbstractFieldGetsSyntheticTypename(t *testing.T) {
	sch := buildPolySchema(t)

	query := `{ pet { name ... on Dog { breed } ... on Cat { livesLeft } } }`
	op, err := operation.Parse(sch, "", query, nil, "POST", operation.Limits{})
	require.NoError(t, err)

	pet := op.Selections[0]
	var typenames int
	for _, c := range pet.SelectionSet {
		if c.IsTypename {
			typenames++
			assert.Equal(t, schema.TypeID(0), c.TypeCondition)
			assert.True(t, c.Synthetic)
		}
	}
	assert.Equal(t, 1, typenames, "an unconditional __typename should be injected exactly once")
}

func TestParse_ClientTypenameNotDuplicated(t *testing.T) {
	sch := buildPolySchema(t)

	query := `{ pet { __typename name } }`
	op, err := operation.Parse(sch, "", query, nil, "POST", operation.Limits{})
	require.NoError(t, err)

	pet := op.Selections[0]
	var typenames int
	for _, c := range pet.SelectionSet {
		if c.IsTypename {
			typenames++
			assert.False(t, c.Synthetic)
		}
	}
	assert.Equal(t, 1, typenames)
}

func TestParse_FragmentCycleRejected(t *testing.T) {
	sch := buildTestSchema(t)

	query := `
	{ me { ...A } }
	fragment A on User { name ...B }
	fragment B on User { name ...A }
	`
	_, err := operation.Parse(sch, "", query, nil, "POST", operation.Limits{})
	require.Error(t, err)
}
