// Package gateway is the HTTP/WebSocket surface in front of the engine: it
// turns an incoming request into an operation.Operation, runs it through
// queryspace/solve/plan/executor/response, and writes back the GraphQL
// envelope (spec §6), content-negotiating the wire format the way
// thunder's graphql/http.go negotiates its own single JSON shape.
package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/samsarahq/go/oops"
	"go.opentelemetry.io/otel/attribute"

	"github.com/graphfed/engine/executor"
	"github.com/graphfed/engine/gwerr"
	"github.com/graphfed/engine/internal/tracing"
	"github.com/graphfed/engine/logger"
	"github.com/graphfed/engine/operation"
	"github.com/graphfed/engine/plan"
	"github.com/graphfed/engine/queryspace"
	"github.com/graphfed/engine/response"
	"github.com/graphfed/engine/schema"
	"github.com/graphfed/engine/solve"
)

var json2 = jsoniter.ConfigCompatibleWithStandardLibrary

// DocumentStore is the narrow persisted-state collaborator spec §6 names;
// the gateway never implements one itself (non-goal: persisted-document
// storage), only consumes it when configured.
type DocumentStore interface {
	Get(ctx context.Context, namespace, key string) (Entry, bool, error)
	Put(ctx context.Context, namespace, key string, state EntryState, value []byte, tags []string) error
	Delete(ctx context.Context, namespace, key string) error
	PurgeByTags(ctx context.Context, tags []string) error
	PurgeByHostname(ctx context.Context, hostname string) error
}

// EntryState tags a DocumentStore entry's lifecycle (e.g. active/revoked);
// a plain string keeps the interface collaborator-defined rather than
// prescribing a fixed enum the external store must adopt.
type EntryState string

// Entry is one persisted-document record.
type Entry struct {
	Value []byte
	State EntryState
	Tags  []string
}

// Gateway wires the engine's pipeline to an HTTP/WebSocket server.
type Gateway struct {
	Schema      *schema.Schema
	Coordinator *executor.Coordinator
	Limits      operation.Limits
	// Timeout is the gateway-wide deadline wrapping an entire request
	// (spec §4.6 Cancellation); zero means no deadline.
	Timeout time.Duration
	// MaxBatchSize bounds a JSON-array batch request (spec §4.7
	// Batching); zero falls back to DefaultMaxBatchSize.
	MaxBatchSize int
	Documents    DocumentStore
	// Logger receives operational log lines (malformed requests, envelope
	// encode failures); defaults to logger.New() when nil.
	Logger logger.Logger
}

func (g *Gateway) log() logger.Logger {
	if g.Logger == nil {
		return logger.New()
	}
	return g.Logger
}

// requestBody is the GraphQL-over-HTTP POST body (spec §6).
type requestBody struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
	Extensions    map[string]interface{} `json:"extensions"`
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if isWebsocketUpgrade(r) {
		g.serveWebsocket(w, r)
		return
	}

	ctx := r.Context()
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	switch r.Method {
	case http.MethodGet:
		g.serveGet(ctx, w, r)
	case http.MethodPost:
		g.servePost(ctx, w, r)
	default:
		g.writeEnvelopeError(w, http.StatusMethodNotAllowed, gwerr.New(gwerr.BadRequest, "method not allowed"))
	}
}

func (g *Gateway) serveGet(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	body := requestBody{
		Query:         q.Get("query"),
		OperationName: q.Get("operationName"),
	}
	if raw := q.Get("variables"); raw != "" {
		if err := json2.UnmarshalFromString(raw, &body.Variables); err != nil {
			g.writeEnvelopeError(w, http.StatusBadRequest, gwerr.Wrap(err, gwerr.BadRequest, "invalid variables"))
			return
		}
	}
	g.runOne(ctx, w, r, body)
}

func (g *Gateway) servePost(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		g.writeEnvelopeError(w, http.StatusBadRequest, gwerr.New(gwerr.BadRequest, "request must include a body"))
		return
	}
	defer r.Body.Close()

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		g.writeEnvelopeError(w, http.StatusBadRequest, gwerr.Wrap(err, gwerr.BadRequest, "failed to read request body"))
		return
	}

	if isArrayBody(raw) {
		g.serveBatch(ctx, w, raw)
		return
	}

	var body requestBody
	if err := json2.Unmarshal(raw, &body); err != nil {
		g.writeEnvelopeError(w, http.StatusBadRequest, gwerr.Wrap(err, gwerr.BadRequest, "invalid request body"))
		return
	}
	g.runOne(ctx, w, r, body)
}

// runOne executes a single operation and negotiates its response format:
// the streaming formats (spec §4.7/§6) for a subscription or an
// @defer/@stream-bearing query, a plain JSON envelope otherwise.
func (g *Gateway) runOne(ctx context.Context, w http.ResponseWriter, r *http.Request, body requestBody) {
	env, op, err := g.execute(ctx, body)
	if err != nil {
		g.writeEnvelopeError(w, statusFor(err), err)
		return
	}

	if format := wantsStream(r, op); format != streamNone {
		g.streamSingle(w, format, env)
		return
	}
	g.writeEnvelope(w, http.StatusOK, env)
}

// execute runs one operation all the way through the pipeline: parse,
// bind the query space, solve, materialize the plan, dispatch, and build
// the response envelope.
func (g *Gateway) execute(ctx context.Context, body requestBody) (*response.Envelope, *operation.Operation, *gwerr.Error) {
	span, ctx := tracing.StartSpan(ctx, "gateway.execute", attribute.String("graphfed.operation_name", body.OperationName))
	defer span.End()

	op, err := operation.Parse(g.Schema, body.OperationName, body.Query, body.Variables, http.MethodPost, g.Limits)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, nil, gwerr.Wrap(err, gwerr.OperationParsingError, "%s", err.Error())
	}

	sp, err := queryspace.Build(g.Schema, op)
	if err != nil {
		return nil, nil, gwerr.Wrap(err, gwerr.OperationValidationError, "%s", err.Error())
	}

	arb, err := solve.Solve(sp)
	if err != nil {
		return nil, nil, gwerr.Wrap(err, gwerr.InternalServerError, "failed to plan operation")
	}

	p, err := plan.Build(g.Schema, op, sp, arb)
	if err != nil {
		return nil, nil, gwerr.Wrap(err, gwerr.InternalServerError, "failed to materialize plan")
	}

	execResult, err := g.Coordinator.Execute(ctx, p)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, gwerr.Wrap(err, gwerr.GatewayTimeout, "request exceeded its deadline")
		}
		return nil, nil, gwerr.Wrap(err, gwerr.SubgraphError, "subgraph dispatch failed")
	}

	return response.Build(g.Schema, op, p, execResult), op, nil
}

func statusFor(err *gwerr.Error) int {
	switch err.Code {
	case gwerr.BadRequest, gwerr.OperationParsingError, gwerr.OperationValidationError:
		return http.StatusBadRequest
	case gwerr.Unauthorized:
		return http.StatusUnauthorized
	case gwerr.Forbidden:
		return http.StatusForbidden
	case gwerr.GatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (g *Gateway) writeEnvelope(w http.ResponseWriter, status int, env *response.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		g.log().Error("encoding response envelope", "err", oops.Wrapf(err, "encoding response envelope"))
	}
}

func (g *Gateway) writeEnvelopeError(w http.ResponseWriter, status int, err *gwerr.Error) {
	g.writeEnvelope(w, status, &response.Envelope{Errors: []*gwerr.Error{err}})
}

// isArrayBody reports whether raw's first non-whitespace byte is '[',
// meaning this is a batch request (spec §4.7 Batching).
func isArrayBody(raw []byte) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}
