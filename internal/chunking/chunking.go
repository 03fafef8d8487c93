// Package chunking implements the three chunk-sizing strategies:
// fixed, adaptive, and query_based. Each takes the merged result size
// and the query's limit and returns a chunk size; total chunk count is
// always ceil(N/size), at least 1.
package chunking

// Strategy names as they appear in configuration.
const (
	Fixed      = "fixed"
	Adaptive   = "adaptive"
	QueryBased = "query_based"
)

// DefaultBaseChunkSize is used when configuration omits chunk_size.
// A reasonable default is 200 for single-host deployments, 500 for two-host; this
// module has no notion of host topology, so callers that care about the
// distinction pass their own base via config.
const DefaultBaseChunkSize = 200

const maxChunkSize = 1000

// Size computes the chunk size for a merged result of n rows, given the
// configured strategy name, base chunk size, and the originating query's
// limit (used only by query_based).
func Size(strategy string, base int, n int, limit uint32) int {
	if base <= 0 {
		base = DefaultBaseChunkSize
	}
	switch strategy {
	case Adaptive:
		switch {
		case n < 100:
			return 50
		case n < 500:
			return base
		case n < 2000:
			return clamp(2*base, 1, maxChunkSize)
		default:
			return clamp(maxChunkSize, 1, maxChunkSize)
		}
	case QueryBased:
		size := int(limit) / 10
		return clamp(size, base, 500)
	case Fixed:
		fallthrough
	default:
		return base
	}
}

// TotalChunks returns ceil(n/chunkSize), never less than 1 so that an empty
// result still yields a single, empty, is_last chunk.
func TotalChunks(n, chunkSize int) int {
	if chunkSize <= 0 {
		chunkSize = DefaultBaseChunkSize
	}
	if n == 0 {
		return 1
	}
	return (n + chunkSize - 1) / chunkSize
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
