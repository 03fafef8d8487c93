package transport

import "github.com/dreamware/overlay/internal/query"

// QueryRequest is the wire shape of a Query call. UID and Hops are set
// only on internal forwards; a client omits both and the receiving leader
// mints a fresh UID.
type QueryRequest struct {
	Field      string             `json:"field"`
	Comparator query.Comparator   `json:"comparator"`
	Threshold  float64            `json:"threshold"`
	Limit      uint32             `json:"limit"`
	UID        string             `json:"uid,omitempty"`
	Hops       []string           `json:"hops,omitempty"`
	DeadlineMS int64              `json:"deadline_ms,omitempty"`
}

// QueryResponse is the wire shape of a Query reply.
type QueryResponse struct {
	UID          string        `json:"uid"`
	TotalChunks  uint32        `json:"total_chunks"`
	TotalRecords uint32        `json:"total_records"`
	Hops         []string      `json:"hops"`
	Status       query.Status  `json:"status"`
}

// GetChunkRequest addresses one chunk of a published result.
type GetChunkRequest struct {
	UID   string `json:"uid"`
	Index uint32 `json:"index"`
}

// GetChunkResponse carries one chunk's row batch. Data is an opaque,
// losslessly round-trippable encoding of the chunk's rows (see codec.go);
// the orchestrator never inspects it.
type GetChunkResponse struct {
	UID         string       `json:"uid"`
	Index       uint32       `json:"index"`
	TotalChunks uint32       `json:"total_chunks"`
	Data        []byte       `json:"data"`
	IsLast      bool         `json:"is_last"`
	Status      query.Status `json:"status"`
}

// GetMetricsRequest carries no fields; it exists for symmetry with the
// other two operations and so that transport framing is uniform.
type GetMetricsRequest struct{}

// GetMetricsResponse is the wire shape of a GetMetrics reply. The
// strategy/capacity fields describe this node's static configuration
// rather than a live measurement; they're included so a client polling
// one node's metrics doesn't need a separate call to learn how it's
// configured to forward and chunk.
type GetMetricsResponse struct {
	ProcessID           string   `json:"process_id"`
	Role                string   `json:"role"`
	Team                string   `json:"team"`
	ActiveRequests      int      `json:"active_requests"`
	MaxCapacity         int      `json:"max_capacity"`
	QueueSize           int      `json:"queue_size"`
	AvgProcessingTimeMS float64  `json:"avg_processing_time_ms"`
	DataFilesLoaded     uint64   `json:"data_files_loaded"`
	IsHealthy           bool     `json:"is_healthy"`
	ForwardingStrategy  string   `json:"forwarding_strategy"`
	ChunkingStrategy    string   `json:"chunking_strategy"`
	FairnessStrategy    string   `json:"fairness_strategy"`
	AsyncForwarding     bool     `json:"async_forwarding"`
	RecentLogs          []string `json:"recent_logs,omitempty"`
}
