// Package transport implements the wire protocol: three JSON-
// over-HTTP operations (Query, GetChunk, GetMetrics) plus the small client
// helpers every caller - the neighbor registry, the CLI, tests - uses to
// speak it. The request/response shapes here are the contract; encoding
// is deliberately plain encoding/json; framing row batches never leaves the
// node in anything richer than a byte slice.
//
// A small JSON-over-HTTP client/server helper pair (PostJSON/GetJSON),
// generalized from a hard-coded 5s timeout to a caller-supplied context
// deadline, which is how the neighbor registry derives per-call deadlines
// from the query's own deadline.
package transport
