package solve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfed/engine/operation"
	"github.com/graphfed/engine/queryspace"
	"github.com/graphfed/engine/schema"
	"github.com/graphfed/engine/solve"
)

const solveSDL = `
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

func buildSpace(t *testing.T, query string) (*queryspace.Space, *solve.Arborescence) {
	t.Helper()
	sch, err := schema.Build(solveSDL, []schema.SubgraphConfig{
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
	return sp, arb
}

func TestSolve_ReachesEveryIndispensableLeaf(t *testing.T) {
	sp, arb := buildSpace(t, `{ me { id name } }`)

	for _, n := range sp.Nodes {
		if n.Kind == queryspace.NodeQueryField && n.QueryField.Flags.Has(queryspace.FlagIndispensable) && n.QueryField.Flags.Has(queryspace.FlagLeaf) {
			assert.True(t, arb.Includes(n.ID), "expected leaf %s to be reached", n.QueryField.ResponseKey)
		}
	}
}

func TestSolve_PullsInRequiresDependency(t *testing.T) {
	sp, arb := buildSpace(t, `{ me { id reviewCount } }`)

	var nameNode queryspace.NodeID
	var found bool
	for _, n := range sp.Nodes {
		if n.Kind == queryspace.NodeQueryField && n.QueryField.ResponseKey == "name" {
			nameNode = n.ID
			found = true
		}
	}
	require.True(t, found, "expected @requires to have injected a name field node")
	assert.True(t, arb.Includes(nameNode), "solver must include the field reviewCount's resolver requires")
}

func TestSolve_ReusesResolverAcrossSiblings(t *testing.T) {
	sp, arb := buildSpace(t, `{ me { id name } }`)

	var resolverNodes []queryspace.NodeID
	for _, n := range sp.Nodes {
		if n.Kind == queryspace.NodeResolver && arb.Includes(n.ID) {
			resolverNodes = append(resolverNodes, n.ID)
		}
	}
	// "me", "id" and "name" all resolve in the users subgraph in a single
	// request: "id"/"name" continue through the exact resolver that already
	// produced "me", so only one resolver node is ever selected.
	assert.Len(t, resolverNodes, 1)
}
