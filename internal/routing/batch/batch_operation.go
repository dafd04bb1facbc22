package batch

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"

	"github.com/wesleywu/ocs-route/internal/logger"
	"github.com/wesleywu/ocs-route/internal/routing/engine"
	"github.com/wesleywu/ocs-route/internal/routing/entities"
)

const releaseTimeout = 5 * time.Second

// InputResolver decides for transit packets
type InputResolver interface {
	ResolveInputForwarding(req engine.InputRequest) engine.Decision
}

// OutputResolver resolves routes for locally originated packets
type OutputResolver interface {
	ResolveOutputRoute(dst netip.Addr, oif uint32) (entities.Route, error)
}

// OutputQuery is one output resolution request
type OutputQuery struct {
	Destination netip.Addr
	Interface   uint32
}

// OutputResult pairs a resolved route with its error
type OutputResult struct {
	Query OutputQuery
	Route entities.Route
	Err   error
}

// ResolveInputs runs every request through r on a pool of at most
// concurrencyLimit workers. Decisions keep the order of requests.
func ResolveInputs(requests []engine.InputRequest, r InputResolver, concurrencyLimit int, log *logger.Logger) ([]engine.Decision, error) {
	start := time.Now()
	decisions := make([]engine.Decision, len(requests))

	err := process(len(requests), concurrencyLimit, func(i int) {
		decisions[i] = r.ResolveInputForwarding(requests[i])
	})
	if err != nil {
		return nil, err
	}

	handled := 0
	for _, d := range decisions {
		if d.Handled() {
			handled++
		}
	}
	if log != nil {
		log.BatchOperation("input", len(requests), handled, len(requests)-handled, time.Since(start).Milliseconds())
	}
	return decisions, nil
}

// ResolveOutputs resolves every query through r on a pool of at most
// concurrencyLimit workers. The returned error combines every failed query.
func ResolveOutputs(queries []OutputQuery, r OutputResolver, concurrencyLimit int, log *logger.Logger) ([]OutputResult, error) {
	start := time.Now()
	results := make([]OutputResult, len(queries))

	err := process(len(queries), concurrencyLimit, func(i int) {
		q := queries[i]
		route, err := r.ResolveOutputRoute(q.Destination, q.Interface)
		results[i] = OutputResult{Query: q, Route: route, Err: err}
	})
	if err != nil {
		return nil, err
	}

	var errs error
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", res.Query.Destination, res.Err))
		}
	}
	if log != nil {
		log.BatchOperation("output", len(queries), len(queries)-failed, failed, time.Since(start).Milliseconds())
	}
	return results, errs
}

// process calls fn(i) for i in [0, n) on a bounded pool and waits for all of them
func process(n, concurrencyLimit int, fn func(i int)) error {
	if n == 0 {
		return nil
	}
	if concurrencyLimit <= 0 {
		return errors.New("concurrency limit must be positive")
	}

	pool, err := ants.NewPool(concurrencyLimit)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.ReleaseTimeout(releaseTimeout)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			fn(i)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return fmt.Errorf("failed to submit task %d: %w", i, err)
		}
	}
	wg.Wait()
	return nil
}
