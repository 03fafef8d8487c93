// Package query defines the query record, the row filter it carries, and
// the chunked result shape it produces - the data types that flow through
// every layer of the orchestration core.
package query

import (
	"time"

	"github.com/google/uuid"
)

// Comparator is one of the five filter operators the wire protocol accepts.
type Comparator string

const (
	LT Comparator = "<"
	LE Comparator = "<="
	EQ Comparator = "="
	GE Comparator = ">="
	GT Comparator = ">"
)

// Apply evaluates row[field] cmp threshold for a single numeric value.
func (c Comparator) Apply(value, threshold float64) bool {
	switch c {
	case LT:
		return value < threshold
	case LE:
		return value <= threshold
	case EQ:
		return value == threshold
	case GE:
		return value >= threshold
	case GT:
		return value > threshold
	default:
		return false
	}
}

// Status enumerates the outcomes a node can report for a Query or GetChunk
// call. It is a closed wire enum, not a Go error type.
type Status string

const (
	StatusOK                   Status = "OK"
	StatusCapacityExhausted    Status = "CAPACITY_EXHAUSTED"
	StatusUIDExpired           Status = "UID_EXPIRED"
	StatusUIDUnknown           Status = "UID_UNKNOWN"
	StatusLoopSuppressed       Status = "LOOP_SUPPRESSED"
	StatusNeighborUnreachable  Status = "NEIGHBOR_UNREACHABLE"
	StatusInternalError        Status = "INTERNAL_ERROR"
)

// Row is an opaque tabular record. Field lookups are done by name; values
// are stored as float64 because every comparator in this system is
// numeric. Rows are immutable after the data store loads them.
type Row map[string]float64

// NewUID mints a globally unique query identifier. Called exactly once,
// by the originating leader on first admission; forwards carry the value
// unchanged.
func NewUID() string {
	return uuid.NewString()
}

// Query is the record that travels the overlay: a filter, a limit, and the
// hop trace that both guards against loops and documents the query's path.
type Query struct {
	UID        string
	Field      string
	Comparator Comparator
	Threshold  float64
	Limit      uint32
	Hops       []string
	Deadline   time.Time
}

// HasVisited reports whether id already appears in the hop trace.
func (q *Query) HasVisited(id string) bool {
	for _, h := range q.Hops {
		if h == id {
			return true
		}
	}
	return false
}

// WithHop returns a copy of q with id appended to Hops. The original is
// left untouched so that a node can retain its own record while handing
// extended copies to each downstream neighbor.
func (q *Query) WithHop(id string) *Query {
	cp := *q
	cp.Hops = append(append([]string(nil), q.Hops...), id)
	return &cp
}

// WithLimit returns a copy of q with a different Limit, used when splitting
// the limit across eligible downstream neighbors.
func (q *Query) WithLimit(limit uint32) *Query {
	cp := *q
	cp.Limit = limit
	return &cp
}

// Chunk is one addressable slice of a ChunkedResult's rows.
type Chunk struct {
	UID         string
	Index       uint32
	TotalChunks uint32
	Rows        []Row
	IsLast      bool
}

// ChunkedResult is the published, TTL-bounded output of one orchestrated
// query, addressed by UID and partitioned into fixed-index chunks.
type ChunkedResult struct {
	UID         string
	Rows        []Row
	ChunkSize   int
	TotalChunks int
	CreatedAt   time.Time
	TTL         time.Duration
	Hops        []string
}

// TotalRecords is the number of rows in the merged result.
func (r *ChunkedResult) TotalRecords() int {
	return len(r.Rows)
}

// ExpiresAt is the instant after which GetChunk must report UID_EXPIRED.
func (r *ChunkedResult) ExpiresAt() time.Time {
	return r.CreatedAt.Add(r.TTL)
}

// Chunk returns the chunk at index, or ok=false if index is out of range.
// An empty result always has exactly one chunk (index 0), flagged IsLast,
// so that the decoded chunk sequence is never empty.
func (r *ChunkedResult) Chunk(index uint32) (Chunk, bool) {
	if int(index) >= r.TotalChunks {
		return Chunk{}, false
	}
	start := int(index) * r.ChunkSize
	end := start + r.ChunkSize
	if end > len(r.Rows) {
		end = len(r.Rows)
	}
	rows := r.Rows[start:end]
	return Chunk{
		UID:         r.UID,
		Index:       index,
		TotalChunks: uint32(r.TotalChunks),
		Rows:        rows,
		IsLast:      int(index) == r.TotalChunks-1,
	}, true
}
