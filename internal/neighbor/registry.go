package neighbor

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

// ErrUnreachable is returned when a neighbor call fails after its retry,
// to a NEIGHBOR_UNREACHABLE status. Callers degrade this to an empty
// partial result rather than failing the query.
var ErrUnreachable = errors.New("neighbor unreachable")

// Registry lazily opens and reuses one Client per declared neighbor id.
// It never buffers or reorders requests; it only owns the
// create-once-and-share lifecycle of the underlying Clients.
type Registry struct {
	mu       sync.RWMutex
	addrs    map[string]string
	clients  map[string]*Client
	refresher *MetricsRefresher
}

// New builds a registry over the given neighbor id -> address map.
func New(addrs map[string]string) *Registry {
	return &Registry{
		addrs:   addrs,
		clients: make(map[string]*Client),
	}
}

// Get returns the (lazily created) client for neighbor id, or nil if id
// is not a declared neighbor.
func (r *Registry) Get(id string) *Client {
	r.mu.RLock()
	c, ok := r.clients[id]
	r.mu.RUnlock()
	if ok {
		return c
	}

	addr, ok := r.addrs[id]
	if !ok {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[id]; ok {
		return c
	}
	c = NewClient(addr)
	r.clients[id] = c
	return c
}

// CallDeadline derives a per-call deadline from a query deadline,
// defaulting to a fixed window when the query carries none.
func CallDeadline(parent context.Context, deadline time.Time) (context.Context, context.CancelFunc) {
	return deadlineCtx(parent, deadline)
}

// AttachRefresher wires a MetricsRefresher whose capacity hints the
// "capacity" forwarding strategy can read via LoadHint.
func (r *Registry) AttachRefresher(ref *MetricsRefresher) {
	r.refresher = ref
}

// LoadHint returns the most recently observed active/capacity ratio for
// neighbor id, and whether that hint is still considered fresh. Declared-
// order iteration in the caller is the fallback when a hint is stale.
func (r *Registry) LoadHint(id string) (ratio float64, fresh bool) {
	if r.refresher == nil {
		return 0, false
	}
	return r.refresher.Hint(id)
}

// OrderedIDs returns ids sorted to match decl, the declared neighbor
// order, dropping any id not present in decl. Used by forwarding
// strategies to build deterministic tie-break orderings.
func OrderedIDs(decl []string, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, d := range decl {
		if slices.Contains(ids, d) {
			out = append(out, d)
		}
	}
	return out
}
