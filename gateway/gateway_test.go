package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfed/engine/executor"
	"github.com/graphfed/engine/gateway"
	"github.com/graphfed/engine/schema"
)

const gatewaySDL = `
enum join__Graph {
  USERS @join__graph(name: "users")
}

type Query {
  me: User @join__field(graph: USERS)
}

type User @join__type(graph: USERS, key: "id") {
  id: ID!
  name: String @join__field(graph: USERS)
}
`

type fakeTransport struct {
	sch *schema.Schema
}

func (f *fakeTransport) Do(ctx context.Context, sg *schema.Subgraph, req executor.Request) (*executor.Response, error) {
	return &executor.Response{Data: map[string]interface{}{
		"me": map[string]interface{}{"id": "1", "name": "Ada"},
	}}, nil
}

func newTestGateway(t *testing.T) *gateway.Gateway {
	t.Helper()
	sch, err := schema.Build(gatewaySDL, []schema.SubgraphConfig{
		{Name: "users", URL: "http://users.internal/graphql"},
	})
	require.NoError(t, err)

	coordinator := executor.NewCoordinator(sch, &fakeTransport{sch: sch}, 0)
	return &gateway.Gateway{Schema: sch, Coordinator: coordinator}
}

func TestServeHTTP_PostReturnsEnvelope(t *testing.T) {
	gw := newTestGateway(t)

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ me { id name } }"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Ada"`)
}

func TestServeHTTP_GetParsesQueryParam(t *testing.T) {
	gw := newTestGateway(t)

	req := httptest.NewRequest(http.MethodGet, "/graphql?query="+url.QueryEscape(`{ me { id name } }`), nil)
	rec := httptest.NewRecorder()

	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"1"`)
}

func TestServeHTTP_BatchRejectsOversizedArray(t *testing.T) {
	gw := newTestGateway(t)
	gw.MaxBatchSize = 1

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(
		`[{"query":"{ me { id } }"},{"query":"{ me { id } }"}]`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "BAD_REQUEST")
}

func TestServeHTTP_InvalidQuerySurfacesParsingError(t *testing.T) {
	gw := newTestGateway(t)

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ nonexistentField }"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	gw.ServeHTTP(rec, req)

	assert.NotEqual(t, http.StatusOK, rec.Code)
}
