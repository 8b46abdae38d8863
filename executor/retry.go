package executor

import (
	"sync"
	"time"

	"github.com/graphfed/engine/schema"
)

// RetryTracker enforces schema.RetryPolicy's time-bucketed retry budget
// per subgraph, the way a service mesh's retry-budget filter works: a
// subgraph may only be retried while recent traffic justifies it, with a
// floor so a newly-contacted or low-traffic subgraph still gets
// MinPerSecond retries regardless of how little history it has. No pack
// library models this; it's a small enough piece of bookkeeping that
// reaching for a full rate-limiting dependency over a mutex-guarded struct
// would add a dependency for no real capability gain.
type RetryTracker struct {
	mu      sync.Mutex
	buckets map[schema.SubgraphID]*retryBucket
	now     func() time.Time
}

type retryBucket struct {
	windowStart time.Time
	requests    int
	retries     int
}

// NewRetryTracker returns a tracker using the real clock.
func NewRetryTracker() *RetryTracker {
	return &RetryTracker{buckets: map[schema.SubgraphID]*retryBucket{}, now: time.Now}
}

// RecordSuccess counts a successful dispatch toward the subgraph's observed
// traffic, growing the budget available for future retries.
func (rt *RetryTracker) RecordSuccess(sg schema.SubgraphID) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.bucket(sg, rt.now(), 0).requests++
}

// RecordRetry counts a spent retry against the subgraph's budget.
func (rt *RetryTracker) RecordRetry(sg schema.SubgraphID) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.bucket(sg, rt.now(), 0).retries++
}

// Allow reports whether a failed dispatch to sg may be retried under
// policy: always true while fewer than MinPerSecond × TTL (in seconds)
// retries have been spent this window, otherwise gated by RetryPercentage
// of the window's observed request volume.
func (rt *RetryTracker) Allow(sg schema.SubgraphID, policy schema.RetryPolicy) bool {
	if !policy.Enabled {
		return false
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	now := rt.now()
	b := rt.bucket(sg, now, policy.TTL)

	floor := policy.MinPerSecond * policy.TTL.Seconds()
	if float64(b.retries) < floor {
		return true
	}
	budget := policy.RetryPercentage * float64(b.requests)
	return float64(b.retries) < budget
}

// bucket returns sg's current window, get-or-creating it. When ttl > 0 and
// the existing window is older than ttl, it resets first — this is how the
// retry budget "over a TTL window" (spec §4.6) rolls forward.
func (rt *RetryTracker) bucket(sg schema.SubgraphID, now time.Time, ttl time.Duration) *retryBucket {
	b, ok := rt.buckets[sg]
	if !ok {
		b = &retryBucket{windowStart: now}
		rt.buckets[sg] = b
		return b
	}
	if ttl > 0 && now.Sub(b.windowStart) > ttl {
		b.windowStart = now
		b.requests = 0
		b.retries = 0
	}
	return b
}
