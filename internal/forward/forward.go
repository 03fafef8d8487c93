// Package forward implements the three forwarding strategies:
// round_robin (blocking, serial), parallel (all at once, deadline-
// bounded), and capacity (load-sorted then parallel). All three operate
// over the eligible downstream set computed by the orchestrator and
// return one result (or error) per neighbor.
package forward

import (
	"context"
	"sort"

	"github.com/dreamware/overlay/internal/neighbor"
	"github.com/dreamware/overlay/internal/transport"
	"github.com/sourcegraph/conc/pool"
)

// Strategy names as they appear in configuration.
const (
	RoundRobin = "round_robin"
	Parallel   = "parallel"
	Capacity   = "capacity"
)

// Result is one neighbor's outcome: either a decoded response or an error
// (neighbor.ErrUnreachable when the call failed after its retry). A
// neighbor that refused admission answers with a Resp whose Status is
// CAPACITY_EXHAUSTED, not an Err; callers treat both as a zero-row partial
// rather than a hard failure.
type Result struct {
	Resp *transport.QueryResponse
	Err  error
}

// SubQuery pairs a downstream neighbor id with the sub-query it should
// receive (already limit-split and hop-extended by the orchestrator).
type SubQuery struct {
	NeighborID string
	Request    transport.QueryRequest
}

// Fan dispatches subQueries to their neighbors per the named strategy and
// returns one Result per neighbor id, in the same set as subQueries. The
// deadline governing cancellation is expected to already be baked into
// ctx (the orchestrator derives it from the query's own deadline via
// neighbor.CallDeadline before calling Fan).
func Fan(ctx context.Context, strategyName string, registry *neighbor.Registry, subQueries []SubQuery) map[string]Result {
	switch strategyName {
	case RoundRobin:
		return fanRoundRobin(ctx, registry, subQueries)
	case Capacity:
		return fanCapacity(ctx, registry, subQueries)
	case Parallel:
		fallthrough
	default:
		return fanParallel(ctx, registry, subQueries)
	}
}

func fanRoundRobin(ctx context.Context, registry *neighbor.Registry, subQueries []SubQuery) map[string]Result {
	out := make(map[string]Result, len(subQueries))
	for _, sq := range subQueries {
		client := registry.Get(sq.NeighborID)
		if client == nil {
			out[sq.NeighborID] = Result{Err: neighbor.ErrUnreachable}
			continue
		}
		resp, err := client.Query(ctx, sq.Request)
		out[sq.NeighborID] = Result{Resp: resp, Err: err}
	}
	return out
}

func fanParallel(ctx context.Context, registry *neighbor.Registry, subQueries []SubQuery) map[string]Result {
	type keyed struct {
		id  string
		res Result
	}
	results := make(chan keyed, len(subQueries))

	p := pool.New().WithMaxGoroutines(max(1, len(subQueries)))
	for _, sq := range subQueries {
		sq := sq
		p.Go(func() {
			client := registry.Get(sq.NeighborID)
			if client == nil {
				results <- keyed{sq.NeighborID, Result{Err: neighbor.ErrUnreachable}}
				return
			}
			resp, err := client.Query(ctx, sq.Request)
			results <- keyed{sq.NeighborID, Result{Resp: resp, Err: err}}
		})
	}
	p.Wait()
	close(results)

	out := make(map[string]Result, len(subQueries))
	for k := range results {
		out[k.id] = k.res
	}
	return out
}

// fanCapacity sorts neighbors by most recently observed load ascending
// (ties by declaration order, which the caller already encodes in
// subQueries' order), then fans out exactly like parallel.
func fanCapacity(ctx context.Context, registry *neighbor.Registry, subQueries []SubQuery) map[string]Result {
	sorted := make([]SubQuery, len(subQueries))
	copy(sorted, subQueries)

	declRank := make(map[string]int, len(subQueries))
	for i, sq := range subQueries {
		declRank[sq.NeighborID] = i
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		ri, freshI := registry.LoadHint(sorted[i].NeighborID)
		rj, freshJ := registry.LoadHint(sorted[j].NeighborID)
		if !freshI && !freshJ {
			return declRank[sorted[i].NeighborID] < declRank[sorted[j].NeighborID]
		}
		if freshI != freshJ {
			// a fresh hint sorts before a stale one; ties among stale
			// entries fall through to declaration order via SliceStable.
			return freshI
		}
		return ri < rj
	})

	return fanParallel(ctx, registry, sorted)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
