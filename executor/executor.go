// Package executor dispatches a plan.Plan's steps to their subgraphs,
// respecting the dependency DAG, and merges the decoded responses into one
// result tree for the response builder (spec §4.6).
package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/samsarahq/go/oops"
	uuid "github.com/satori/go.uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/graphfed/engine/internal/climiter"
	"github.com/graphfed/engine/internal/tracing"
	"github.com/graphfed/engine/operation"
	"github.com/graphfed/engine/plan"
	"github.com/graphfed/engine/schema"
)

var json2 = jsoniter.ConfigCompatibleWithStandardLibrary

// Request is one outbound GraphQL call, already printed and ready to send.
type Request struct {
	Subgraph  schema.SubgraphID
	Document  string
	Variables map[string]interface{}
	RequestID string
}

// Response is a subgraph's reply, decoded only as far as the top-level
// GraphQL envelope; Data is left as a generic tree for mergeStep to walk.
type Response struct {
	Data   interface{}
	Errors []GraphQLError
}

// GraphQLError mirrors one entry of a subgraph's top-level "errors" array.
type GraphQLError struct {
	Message    string                 `json:"message"`
	Path       []interface{}          `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// Transport sends one GraphQL request to a subgraph and returns its
// decoded response. Production dispatch uses HTTPTransport; tests supply a
// fake.
type Transport interface {
	Do(ctx context.Context, sg *schema.Subgraph, req Request) (*Response, error)
}

// ExtensionHandler serves an IsVirtual subgraph in-process, bypassing
// network transport entirely (spec §4.6: extension subgraphs dispatch
// in-process rather than over HTTP).
type ExtensionHandler func(ctx context.Context, req Request) (*Response, error)

// ExecutionResult is the full merged output the response builder consumes:
// one JSON-tree value per root object key, plus every subgraph error
// encountered along the way, tagged with the step that produced it.
type ExecutionResult struct {
	Data   map[string]interface{}
	Errors []ExecutionError
}

// ExecutionError is a GraphQLError annotated with which step produced it,
// so the response builder can translate its subgraph-relative Path into a
// document-relative one using that step's plan.Step.Path prefix.
type ExecutionError struct {
	Step plan.StepID
	GraphQLError
}

// Coordinator drives one operation's plan to completion.
type Coordinator struct {
	Schema      *schema.Schema
	Transport   Transport
	Extensions  map[schema.SubgraphID]ExtensionHandler
	Concurrency int // max outbound subgraph calls in flight; 0 = unbounded
	Retries     *RetryTracker
}

// NewCoordinator builds a Coordinator with a fresh RetryTracker.
func NewCoordinator(sch *schema.Schema, t Transport, concurrency int) *Coordinator {
	return &Coordinator{
		Schema:      sch,
		Transport:   t,
		Extensions:  map[schema.SubgraphID]ExtensionHandler{},
		Concurrency: concurrency,
		Retries:     NewRetryTracker(),
	}
}

// Execute dispatches every step of p, honoring DependsOn, and returns the
// merged result tree. Mutation operations (spec §4.6) run their root steps
// strictly sequentially in plan order, even though the plan records no
// DependsOn edge between sibling mutation-root steps; every other step
// dispatches as soon as its dependencies are satisfied.
func (c *Coordinator) Execute(ctx context.Context, p *plan.Plan) (*ExecutionResult, error) {
	if c.Concurrency > 0 {
		ctx = climiter.With(ctx, c.Concurrency)
	}

	res := &ExecutionResult{Data: map[string]interface{}{}}
	var mu sync.Mutex

	done := make(map[plan.StepID]chan struct{}, len(p.Steps))
	for _, s := range p.Steps {
		done[s.ID] = make(chan struct{})
	}

	run := func(gctx context.Context, s *plan.Step) error {
		for _, dep := range s.DependsOn {
			select {
			case <-done[dep]:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		defer close(done[s.ID])

		mu.Lock()
		reps, parentErr := representationsFor(res, s)
		mu.Unlock()
		if parentErr != nil {
			return oops.Wrapf(parentErr, "locating parent objects for step %d", s.ID)
		}
		if s.EntityKey != 0 && len(reps) == 0 {
			// Every parent this step would graft onto is already null;
			// nothing to jump to.
			return nil
		}

		resp, err := c.dispatchStep(gctx, s, reps)
		if err != nil {
			// A canceled/deadlined context aborts the whole request (spec
			// §4.6 Cancellation); anything else is a transport/HTTP
			// failure scoped to this step alone (spec §7, §8 #5): the
			// selections this step was to fill become a field error and
			// null, while sibling steps' already-merged data stands.
			if gctx.Err() != nil {
				return oops.Wrapf(err, "dispatching step %d (subgraph %s)", s.ID, c.Schema.String(c.Schema.Subgraph(s.Subgraph).Name))
			}
			mu.Lock()
			res.Errors = append(res.Errors, ExecutionError{
				Step: s.ID,
				GraphQLError: GraphQLError{
					Message: fmt.Sprintf("request to subgraph %s failed", c.Schema.String(c.Schema.Subgraph(s.Subgraph).Name)),
				},
			})
			mu.Unlock()
			return nil
		}

		mu.Lock()
		defer mu.Unlock()
		mergeStep(res, s, resp)
		return nil
	}

	if p.Kind == operation.KindMutation {
		for i := range p.Steps {
			if err := run(ctx, &p.Steps[i]); err != nil {
				return nil, err
			}
		}
		return res, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range p.Steps {
		s := &p.Steps[i]
		g.Go(func() error { return run(gctx, s) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// newRequestID generates the id attached to every subgraph dispatch for
// cross-service correlation (spec §2): a random (version 4) UUID.
func newRequestID() string {
	return uuid.NewV4().String()
}

func (c *Coordinator) dispatchStep(ctx context.Context, s *plan.Step, representations []interface{}) (resp *Response, err error) {
	sg := c.Schema.Subgraph(s.Subgraph)

	span, ctx := tracing.StartSpan(ctx, "subgraph.dispatch",
		attribute.String("graphfed.subgraph", c.Schema.String(sg.Name)),
		attribute.Int64("graphfed.step", int64(s.ID)),
	)
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	var vars map[string]interface{}
	if s.EntityKey != 0 {
		vars = map[string]interface{}{"representations": representations}
	}

	req := Request{
		Subgraph:  s.Subgraph,
		Document:  s.Print(),
		Variables: vars,
		RequestID: newRequestID(),
	}

	if sg.IsVirtual {
		handler, ok := c.Extensions[s.Subgraph]
		if !ok {
			return nil, oops.Errorf("no extension handler registered for virtual subgraph %s", c.Schema.String(sg.Name))
		}
		return handler(ctx, req)
	}

	// Hold one concurrency permit for the whole dispatch, including any
	// retry; HTTPTransport.Do gives it up around the actual blocking round
	// trip via climiter.TemporarilyRelease and re-acquires it afterwards.
	ctx, release, err := climiter.Acquire(ctx)
	if err != nil {
		return nil, oops.Wrapf(err, "acquiring dispatch permit for subgraph %s", c.Schema.String(sg.Name))
	}
	defer release()

	if !sg.Retry.Enabled {
		return c.Transport.Do(ctx, sg, req)
	}

	resp, err = c.Transport.Do(ctx, sg, req)
	if err == nil {
		c.Retries.RecordSuccess(s.Subgraph)
		return resp, nil
	}
	if !c.Retries.Allow(s.Subgraph, sg.Retry) {
		return nil, oops.Wrapf(err, "retry budget exhausted for subgraph %s", c.Schema.String(sg.Name))
	}
	c.Retries.RecordRetry(s.Subgraph)
	return c.Transport.Do(ctx, sg, req)
}

// HTTPTransport is the production Transport: one POST per dispatch,
// applying the subgraph's configured header rules and timeout.
type HTTPTransport struct {
	Schema *schema.Schema
	Client *http.Client
}

// NewHTTPTransport builds an HTTPTransport with a default client; pass a
// custom one to share connection pooling across a process's subgraphs.
func NewHTTPTransport(sch *schema.Schema, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{Schema: sch, Client: client}
}

type graphqlPayload struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

func (t *HTTPTransport) Do(ctx context.Context, sg *schema.Subgraph, req Request) (*Response, error) {
	body, err := json2.Marshal(graphqlPayload{Query: req.Document, Variables: req.Variables})
	if err != nil {
		return nil, oops.Wrapf(err, "encoding request body")
	}

	if sg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sg.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Schema.URL(sg.URL).String(), bytes.NewReader(body))
	if err != nil {
		return nil, oops.Wrapf(err, "building request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-Id", req.RequestID)
	t.applyHeaderRules(httpReq, sg)

	var resp *http.Response
	climiter.TemporarilyRelease(ctx, func() {
		resp, err = t.Client.Do(httpReq)
	})
	if err != nil {
		return nil, oops.Wrapf(err, "calling subgraph")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, oops.Wrapf(err, "reading response body")
	}
	if resp.StatusCode >= 400 {
		return nil, oops.Errorf("subgraph returned HTTP %d: %s", resp.StatusCode, string(raw))
	}

	var envelope struct {
		Data   interface{}    `json:"data"`
		Errors []GraphQLError `json:"errors"`
	}
	if err := json2.Unmarshal(raw, &envelope); err != nil {
		return nil, oops.Wrapf(err, "decoding response body")
	}
	return &Response{Data: envelope.Data, Errors: envelope.Errors}, nil
}

func (t *HTTPTransport) applyHeaderRules(req *http.Request, sg *schema.Subgraph) {
	for _, rule := range sg.Headers {
		name := t.Schema.String(rule.Name)
		if rule.Forward {
			continue // forwarding incoming headers is the gateway layer's job
		}
		if rule.SetValueIsSet {
			req.Header.Set(name, rule.SetValue)
		}
	}
}
