// Package climiter bounds the number of outbound subgraph calls a single
// gateway process makes concurrently, the way thunder's concurrencylimiter
// bounds concurrent expensive field resolution: a context-scoped semaphore
// that callers Acquire before doing blocking work and release when done.
package climiter

import "context"

type limiterKey struct{}

type limiter struct {
	tokens chan struct{}
}

// With attaches a concurrency limit of n outstanding Acquire calls to ctx.
// A child context without a limiter falls back to unbounded concurrency,
// mirroring thunder's behavior when concurrencylimiter.With was never called.
func With(ctx context.Context, n int) context.Context {
	if n <= 0 {
		return ctx
	}
	l := &limiter{tokens: make(chan struct{}, n)}
	for i := 0; i < n; i++ {
		l.tokens <- struct{}{}
	}
	return context.WithValue(ctx, limiterKey{}, l)
}

// Acquire blocks until a concurrency token is available (or ctx is done) and
// returns a release func that must be called exactly once.
func Acquire(ctx context.Context) (context.Context, func(), error) {
	l, _ := ctx.Value(limiterKey{}).(*limiter)
	if l == nil {
		return ctx, func() {}, nil
	}
	select {
	case <-l.tokens:
		released := false
		release := func() {
			if released {
				return
			}
			released = true
			l.tokens <- struct{}{}
		}
		return ctx, release, nil
	case <-ctx.Done():
		return ctx, func() {}, ctx.Err()
	}
}

// TemporarilyRelease gives up the caller's token for the duration of fn,
// re-acquiring it afterwards. Used around blocking I/O that doesn't itself
// need the limiter's protection once in flight (e.g. awaiting a response
// after the request has already been written).
func TemporarilyRelease(ctx context.Context, fn func()) {
	l, _ := ctx.Value(limiterKey{}).(*limiter)
	if l == nil {
		fn()
		return
	}
	l.tokens <- struct{}{}
	defer func() { <-l.tokens }()
	fn()
}
