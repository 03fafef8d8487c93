package neighbor

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// capacityHint is the last observed load sample for one neighbor.
type capacityHint struct {
	ratio            float64
	consecutiveFails int
	fresh            bool
}

// MetricsRefresher opportunistically polls each neighbor's GetMetrics
// endpoint and caches an active/capacity load ratio for the "capacity"
// forwarding strategy. It uses the same ticker-plus-context-cancellation
// shape and consecutive-failure counter as a health monitor, but instead
// of flipping a node to "unhealthy" and firing a rebalance callback, it
// just marks a hint stale so capacity-based ordering falls back to
// declaration order.
type MetricsRefresher struct {
	registry    *Registry
	neighborIDs []string
	maxCapacity int
	interval    time.Duration
	maxFailures int

	mu    sync.RWMutex
	hints map[string]*capacityHint

	cancel context.CancelFunc
	g      *errgroup.Group
}

// NewMetricsRefresher builds a refresher that polls neighborIDs every
// interval, treating maxCapacity as the denominator of the load ratio
// (every node in this cluster runs under the same admission limits, so a
// single shared maxCapacity is a legitimate simplification).
func NewMetricsRefresher(registry *Registry, neighborIDs []string, maxCapacity int, interval time.Duration) *MetricsRefresher {
	return &MetricsRefresher{
		registry:    registry,
		neighborIDs: neighborIDs,
		maxCapacity: maxCapacity,
		interval:    interval,
		maxFailures: 3,
		hints:       make(map[string]*capacityHint),
	}
}

// Start launches the background poll loop.
func (m *MetricsRefresher) Start(ctx context.Context) {
	if m.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	m.g = g
	g.Go(func() error {
		m.loop(gctx)
		return nil
	})
}

// Stop cancels the poll loop and waits for it to exit.
func (m *MetricsRefresher) Stop() {
	if m.cancel != nil {
		m.cancel()
		_ = m.g.Wait()
	}
}

func (m *MetricsRefresher) loop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.pollAll(ctx)
	for {
		select {
		case <-ticker.C:
			m.pollAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *MetricsRefresher) pollAll(ctx context.Context) {
	for _, id := range m.neighborIDs {
		m.poll(ctx, id)
	}
}

func (m *MetricsRefresher) poll(ctx context.Context, id string) {
	client := m.registry.Get(id)
	if client == nil {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	resp, err := client.GetMetrics(callCtx)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	hint, ok := m.hints[id]
	if !ok {
		hint = &capacityHint{}
		m.hints[id] = hint
	}

	if err != nil {
		hint.consecutiveFails++
		if hint.consecutiveFails >= m.maxFailures {
			hint.fresh = false
			log.Printf("neighbor[%s] capacity hint stale after %d failed polls", id, hint.consecutiveFails)
		}
		return
	}

	hint.consecutiveFails = 0
	hint.fresh = true
	if m.maxCapacity > 0 {
		hint.ratio = float64(resp.ActiveRequests) / float64(m.maxCapacity)
	}
}

// Hint returns the last fresh load ratio for neighbor id.
func (m *MetricsRefresher) Hint(id string) (ratio float64, fresh bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hints[id]
	if !ok || !h.fresh {
		return 0, false
	}
	return h.ratio, true
}
