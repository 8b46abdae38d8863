package executor_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfed/engine/executor"
	"github.com/graphfed/engine/operation"
	"github.com/graphfed/engine/plan"
	"github.com/graphfed/engine/queryspace"
	"github.com/graphfed/engine/schema"
	"github.com/graphfed/engine/solve"
)

const execSDL = `
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

// fakeTransport answers with canned responses keyed by subgraph name,
// recording every request it saw for assertions.
type fakeTransport struct {
	sch       *schema.Schema
	responses map[string]*executor.Response
	errs      map[string]error

	mu    sync.Mutex
	calls []executor.Request
}

func (f *fakeTransport) Do(ctx context.Context, sg *schema.Subgraph, req executor.Request) (*executor.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	name := f.sch.String(sg.Name)
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	if resp, ok := f.responses[name]; ok {
		return resp, nil
	}
	return &executor.Response{}, nil
}

func buildExecPlan(t *testing.T, query string) (*schema.Schema, *plan.Plan) {
	t.Helper()
	sch, err := schema.Build(execSDL, []schema.SubgraphConfig{
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
	return sch, p
}

func TestExecute_SingleStepMergesDataAtRoot(t *testing.T) {
	sch, p := buildExecPlan(t, `{ me { id name } }`)

	transport := &fakeTransport{
		sch: sch,
		responses: map[string]*executor.Response{
			"users": {Data: map[string]interface{}{
				"me": map[string]interface{}{"id": "1", "name": "Ada"},
			}},
		},
	}

	c := executor.NewCoordinator(sch, transport, 0)
	res, err := c.Execute(context.Background(), p)
	require.NoError(t, err)

	me, ok := res.Data["me"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "1", me["id"])
	assert.Equal(t, "Ada", me["name"])
	assert.Empty(t, res.Errors)
}

func TestExecute_DependentEntityStepGraftsOntoParentPath(t *testing.T) {
	sch, p := buildExecPlan(t, `{ me { id reviewCount } }`)

	transport := &fakeTransport{
		sch: sch,
		responses: map[string]*executor.Response{
			"users": {Data: map[string]interface{}{
				"me": map[string]interface{}{"id": "1"},
			}},
			"reviews": {Data: map[string]interface{}{
				"_entities": []interface{}{
					map[string]interface{}{"__typename": "User", "reviewCount": float64(4)},
				},
			}},
		},
	}

	c := executor.NewCoordinator(sch, transport, 0)
	res, err := c.Execute(context.Background(), p)
	require.NoError(t, err)

	me, ok := res.Data["me"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "1", me["id"])
	assert.Equal(t, float64(4), me["reviewCount"])

	transport.mu.Lock()
	defer transport.mu.Unlock()
	require.Len(t, transport.calls, 2)
	var sawRepresentations bool
	for _, call := range transport.calls {
		if call.Variables == nil {
			continue
		}
		reps, ok := call.Variables["representations"].([]interface{})
		if !ok || len(reps) == 0 {
			continue
		}
		sawRepresentations = true
		rep, ok := reps[0].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "User", rep["__typename"])
		assert.Equal(t, "1", rep["id"])
	}
	assert.True(t, sawRepresentations, "expected the entity step to carry a representation built from the root step's result")
}

func TestExecute_BoundedConcurrencyDoesNotDeadlock(t *testing.T) {
	sch, p := buildExecPlan(t, `{ me { id reviewCount } }`)

	transport := &fakeTransport{
		sch: sch,
		responses: map[string]*executor.Response{
			"users": {Data: map[string]interface{}{
				"me": map[string]interface{}{"id": "1"},
			}},
			"reviews": {Data: map[string]interface{}{
				"_entities": []interface{}{
					map[string]interface{}{"__typename": "User", "reviewCount": float64(4)},
				},
			}},
		},
	}

	c := executor.NewCoordinator(sch, transport, 2)
	res, err := c.Execute(context.Background(), p)
	require.NoError(t, err)

	me, ok := res.Data["me"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(4), me["reviewCount"])
}

func TestExecute_TransportFailureNullsOnlyThatStep(t *testing.T) {
	sch, p := buildExecPlan(t, `{ me { id reviewCount } }`)

	transport := &fakeTransport{
		sch: sch,
		responses: map[string]*executor.Response{
			"users": {Data: map[string]interface{}{
				"me": map[string]interface{}{"id": "1"},
			}},
		},
		errs: map[string]error{
			"reviews": errors.New("connection refused"),
		},
	}

	c := executor.NewCoordinator(sch, transport, 0)
	res, err := c.Execute(context.Background(), p)
	require.NoError(t, err, "a subgraph transport failure must not abort the whole request")

	me, ok := res.Data["me"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "1", me["id"], "the users step's data must still be present")
	assert.NotContains(t, me, "reviewCount", "the failed reviews step must contribute no data")

	require.Len(t, res.Errors, 1)
	assert.Equal(t, plan.StepID(2), res.Errors[0].Step)
}

func TestExecute_PropagatesSubgraphErrors(t *testing.T) {
	sch, p := buildExecPlan(t, `{ me { id name } }`)

	transport := &fakeTransport{
		sch: sch,
		responses: map[string]*executor.Response{
			"users": {
				Data: map[string]interface{}{"me": nil},
				Errors: []executor.GraphQLError{
					{Message: "me not found", Path: []interface{}{"me"}},
				},
			},
		},
	}

	c := executor.NewCoordinator(sch, transport, 0)
	res, err := c.Execute(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "me not found", res.Errors[0].Message)
	assert.Equal(t, plan.StepID(1), res.Errors[0].Step)
}
