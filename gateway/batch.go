package gateway

import (
	"context"
	"net/http"

	"github.com/graphfed/engine/gwerr"
	"github.com/graphfed/engine/response"
)

// DefaultMaxBatchSize bounds a JSON-array batch request when
// Gateway.MaxBatchSize is left at zero.
const DefaultMaxBatchSize = 10

// serveBatch handles a JSON-array request body: spec §4.7 requires each
// sub-request to execute in isolation, and the whole batch to be rejected
// with BadRequest if it exceeds the configured size ceiling.
func (g *Gateway) serveBatch(ctx context.Context, w http.ResponseWriter, raw []byte) {
	var bodies []requestBody
	if err := json2.Unmarshal(raw, &bodies); err != nil {
		g.writeEnvelopeError(w, http.StatusBadRequest, gwerr.Wrap(err, gwerr.BadRequest, "invalid batch request body"))
		return
	}

	limit := g.MaxBatchSize
	if limit <= 0 {
		limit = DefaultMaxBatchSize
	}
	if len(bodies) > limit {
		g.writeEnvelopeError(w, http.StatusBadRequest, gwerr.New(gwerr.BadRequest, "batch of %d operations exceeds limit of %d", len(bodies), limit))
		return
	}

	envs := make([]*response.Envelope, len(bodies))
	for i, body := range bodies {
		env, _, err := g.execute(ctx, body)
		if err != nil {
			envs[i] = &response.Envelope{Errors: []*gwerr.Error{err}}
			continue
		}
		envs[i] = env
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json2.NewEncoder(w).Encode(envs)
}
