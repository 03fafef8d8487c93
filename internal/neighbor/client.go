// Package neighbor implements the neighbor registry: one
// long-lived, lazily-created client per declared neighbor, reused across
// all concurrent queries, with transparent single-retry reconnect and
// per-call deadlines derived from the query's own deadline.
package neighbor

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dreamware/overlay/internal/transport"
)

// Client is a typed view of one neighbor's wire endpoint.
type Client struct {
	addr string
}

// NewClient builds a client for the neighbor reachable at addr.
func NewClient(addr string) *Client {
	return &Client{addr: addr}
}

// retryOnce wraps a single RPC attempt with at most one transparent retry,
// transparently, at most once per call. A constant backoff
// of zero delay is used: the failure modes this guards against are
// transient connection resets, not rate limits, so there is nothing to be
// gained by waiting between the two attempts.
func retryOnce(ctx context.Context, call func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(0), 1), ctx)
	return backoff.Retry(call, policy)
}

// Query forwards req to this neighbor, retrying once on transport error.
func (c *Client) Query(ctx context.Context, req transport.QueryRequest) (*transport.QueryResponse, error) {
	var resp transport.QueryResponse
	err := retryOnce(ctx, func() error {
		return transport.PostJSON(ctx, c.addr+"/v1/query", req, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("neighbor: query %s: %w", c.addr, ErrUnreachable)
	}
	return &resp, nil
}

// GetChunk fetches one chunk from this neighbor's result cache.
func (c *Client) GetChunk(ctx context.Context, req transport.GetChunkRequest) (*transport.GetChunkResponse, error) {
	var resp transport.GetChunkResponse
	err := retryOnce(ctx, func() error {
		return transport.PostJSON(ctx, c.addr+"/v1/chunk", req, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("neighbor: get chunk %s: %w", c.addr, ErrUnreachable)
	}
	return &resp, nil
}

// GetMetrics fetches this neighbor's current metrics snapshot.
func (c *Client) GetMetrics(ctx context.Context) (*transport.GetMetricsResponse, error) {
	var resp transport.GetMetricsResponse
	err := retryOnce(ctx, func() error {
		return transport.GetJSON(ctx, c.addr+"/v1/metrics", &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("neighbor: get metrics %s: %w", c.addr, ErrUnreachable)
	}
	return &resp, nil
}

// deadlineCtx derives a per-call context from a query deadline, falling
// back to a sane default when the query carries none.
func deadlineCtx(parent context.Context, deadline time.Time) (context.Context, context.CancelFunc) {
	if deadline.IsZero() {
		return context.WithTimeout(parent, 5*time.Second)
	}
	return context.WithDeadline(parent, deadline)
}
