package plan_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfed/engine/operation"
	"github.com/graphfed/engine/plan"
	"github.com/graphfed/engine/queryspace"
	"github.com/graphfed/engine/schema"
	"github.com/graphfed/engine/solve"
)

const planSDL = `
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

func buildPlan(t *testing.T, query string) *plan.Plan {
	t.Helper()
	sch, err := schema.Build(planSDL, []schema.SubgraphConfig{
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
	return p
}

func TestBuild_SingleSubgraphIsOneStep(t *testing.T) {
	p := buildPlan(t, `{ me { id name } }`)

	require.Len(t, p.Steps, 1)
	assert.Empty(t, p.Steps[0].DependsOn)
	doc := p.Steps[0].Print()
	assert.Contains(t, doc, "me")
	assert.Contains(t, doc, "name")
}

func TestBuild_CrossSubgraphFieldOpensDependentEntityStep(t *testing.T) {
	p := buildPlan(t, `{ me { id reviewCount } }`)

	require.Len(t, p.Steps, 2)
	root := p.Steps[0]
	dependent := p.Steps[1]
	assert.Empty(t, root.DependsOn)
	require.Len(t, dependent.DependsOn, 1)
	assert.Equal(t, root.ID, dependent.DependsOn[0])
	assert.NotZero(t, dependent.EntityKey)
	assert.Equal(t, []string{"me"}, dependent.Path)
	assert.Empty(t, root.Path)

	doc := dependent.Print()
	assert.True(t, strings.Contains(doc, "_entities"))
	assert.True(t, strings.Contains(doc, "... on User"))
	assert.True(t, strings.Contains(doc, "reviewCount"))
}

const polyPlanSDL = `
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

func buildPolyPlan(t *testing.T, query string) *plan.Plan {
	t.Helper()
	sch, err := schema.Build(polyPlanSDL, []schema.SubgraphConfig{
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
	return p
}

func TestBuild_AbstractFieldPrintsInlineFragmentsPerType(t *testing.T) {
	p := buildPolyPlan(t, `{ pet { name ... on Dog { breed } ... on Cat { livesLeft } } }`)

	require.Len(t, p.Steps, 1)
	doc := p.Steps[0].Print()

	assert.Contains(t, doc, "__typename")
	assert.Contains(t, doc, "... on Dog")
	assert.Contains(t, doc, "breed")
	assert.Contains(t, doc, "... on Cat")
	assert.Contains(t, doc, "livesLeft")
}
