package response_test

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfed/engine/executor"
	"github.com/graphfed/engine/operation"
	"github.com/graphfed/engine/plan"
	"github.com/graphfed/engine/queryspace"
	"github.com/graphfed/engine/response"
	"github.com/graphfed/engine/schema"
	"github.com/graphfed/engine/solve"
)

const responseSDL = `
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
  reviewCount: Int @join__field(graph: REVIEWS)
}
`

func buildResponsePlan(t *testing.T, query string) (*schema.Schema, *operation.Operation, *plan.Plan) {
	t.Helper()
	sch, err := schema.Build(responseSDL, []schema.SubgraphConfig{
		{Name: "users", URL: "http://users.internal/graphql"},
		{Name: "reviews", URL: "http://reviews.internal/graphql"},
	})
	require.NoError(t, err)

	op, err := operation.Parse(sch, "", query, nil, "POST", operation.Limits{})
	require.NoError(t, err)

	sp, err := queryspace.Build(sch, op)
	require.NoError(t, err)

	arb, err := solve.Solve(sp)
	require.NoError(t, err)

	p, err := plan.Build(sch, op, sp, arb)
	require.NoError(t, err)
	return sch, op, p
}

func TestBuild_HappyPathProducesExactShape(t *testing.T) {
	sch, op, p := buildResponsePlan(t, `{ me { id name } }`)

	exec := &executor.ExecutionResult{Data: map[string]interface{}{
		"me": map[string]interface{}{"id": "1", "name": "Ada"},
	}}

	env := response.Build(sch, op, p, exec)
	require.Empty(t, env.Errors)
	if d := pretty.Compare(env.Data, map[string]interface{}{
		"me": map[string]interface{}{"id": "1", "name": "Ada"},
	}); d != "" {
		t.Errorf("response data did not match expected shape: %s", d)
	}
}

func TestBuild_NonNullFieldNullBubblesToNearestNullableAncestor(t *testing.T) {
	sch, op, p := buildResponsePlan(t, `{ me { id name } }`)

	// "id" is non-null; a missing id must null out the whole object, and
	// since "me" is nullable (no "!" on Query.me) that in turn only nulls
	// "me", not the entire data root.
	exec := &executor.ExecutionResult{Data: map[string]interface{}{
		"me": map[string]interface{}{"name": "Ada"},
	}}

	env := response.Build(sch, op, p, exec)
	require.NotEmpty(t, env.Errors)
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Nil(t, data["me"])
}

const polyResponseSDL = `
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

func buildPolyResponsePlan(t *testing.T, query string) (*schema.Schema, *operation.Operation, *plan.Plan) {
	t.Helper()
	sch, err := schema.Build(polyResponseSDL, []schema.SubgraphConfig{
		{Name: "users", URL: "http://users.internal/graphql"},
	})
	require.NoError(t, err)

	op, err := operation.Parse(sch, "", query, nil, "POST", operation.Limits{})
	require.NoError(t, err)

	sp, err := queryspace.Build(sch, op)
	require.NoError(t, err)

	arb, err := solve.Solve(sp)
	require.NoError(t, err)

	p, err := plan.Build(sch, op, sp, arb)
	require.NoError(t, err)
	return sch, op, p
}

func TestBuild_AbstractFieldDiscriminatesConcreteTypeWithoutLeakingTypename(t *testing.T) {
	sch, op, p := buildPolyResponsePlan(t, `{ pet { name ... on Dog { breed } ... on Cat { livesLeft } } }`)

	exec := &executor.ExecutionResult{Data: map[string]interface{}{
		"pet": map[string]interface{}{"__typename": "Dog", "name": "Fido", "breed": "Lab"},
	}}

	env := response.Build(sch, op, p, exec)
	require.Empty(t, env.Errors)
	if d := pretty.Compare(env.Data, map[string]interface{}{
		"pet": map[string]interface{}{"name": "Fido", "breed": "Lab"},
	}); d != "" {
		t.Errorf("the forced __typename discriminator must not leak into a response the client never asked for it in: %s", d)
	}
}

func TestBuild_ClientRequestedTypenameIsReturned(t *testing.T) {
	sch, op, p := buildPolyResponsePlan(t, `{ pet { __typename name ... on Cat { livesLeft } } }`)

	exec := &executor.ExecutionResult{Data: map[string]interface{}{
		"pet": map[string]interface{}{"__typename": "Cat", "name": "Tom", "livesLeft": float64(9)},
	}}

	env := response.Build(sch, op, p, exec)
	require.Empty(t, env.Errors)
	if d := pretty.Compare(env.Data, map[string]interface{}{
		"pet": map[string]interface{}{"__typename": "Cat", "name": "Tom", "livesLeft": float64(9)},
	}); d != "" {
		t.Errorf("response data did not match expected shape: %s", d)
	}
}

func TestBuild_SubgraphErrorSurfacesWithGraftedPath(t *testing.T) {
	sch, op, p := buildResponsePlan(t, `{ me { id reviewCount } }`)

	exec := &executor.ExecutionResult{
		Data: map[string]interface{}{
			"me": map[string]interface{}{"id": "1"},
		},
		Errors: []executor.ExecutionError{
			{Step: p.Steps[1].ID, GraphQLError: executor.GraphQLError{
				Message: "reviews service unavailable",
				Path:    []interface{}{"reviewCount"},
			}},
		},
	}

	env := response.Build(sch, op, p, exec)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "reviews service unavailable", env.Errors[0].Message)
	assert.Equal(t, []interface{}{"me", "reviewCount"}, env.Errors[0].Path)
}
