package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dreamware/overlay/internal/admission"
	"github.com/dreamware/overlay/internal/chunkcache"
	"github.com/dreamware/overlay/internal/chunking"
	"github.com/dreamware/overlay/internal/config"
	"github.com/dreamware/overlay/internal/forward"
	"github.com/dreamware/overlay/internal/metrics"
	"github.com/dreamware/overlay/internal/neighbor"
	"github.com/dreamware/overlay/internal/query"
	"github.com/dreamware/overlay/internal/store"
	"github.com/dreamware/overlay/internal/topology"
	"github.com/dreamware/overlay/internal/transport"
)

// DefaultQueryTimeout bounds a freshly originated query's lifetime when
// the caller supplies no deadline, so that every query eventually
// terminates.
const DefaultQueryTimeout = 5 * time.Second

// Orchestrator runs the query lifecycle for one node. It
// owns no transport code; internal/node's HTTP handlers call into it and
// translate its results to wire responses directly, since the wire shapes
// and internal shapes coincide here.
type Orchestrator struct {
	Self       *topology.Node
	Graph      *topology.Graph
	Shard      *store.Shard
	Admission  *admission.Controller
	Cache      *chunkcache.Cache
	Tracker    *metrics.Tracker
	Registry   *neighbor.Registry
	Strategies config.Strategies
	CacheTTL   time.Duration

	// DefaultTimeout is used to derive a deadline for queries that arrive
	// with no DeadlineMS (always true of a client-originated query; a
	// forward always carries the absolute deadline of the originating
	// admit).
	DefaultTimeout time.Duration
}

// HandleQuery runs one query through admission, loop suppression, local
// scan, downstream fan-out, merge, and publication, returning the wire
// response the caller (client or parent node) should see. Every outcome,
// including rejection and internal failure, is reported through the
// response's wire status; the returned error is always nil. Callers still
// map a non-nil error to INTERNAL_ERROR.
func (o *Orchestrator) HandleQuery(ctx context.Context, req transport.QueryRequest) (*transport.QueryResponse, error) {
	start := time.Now()

	uid := req.UID
	hops := req.Hops
	if uid == "" {
		uid = query.NewUID()
		hops = nil
	}

	deadline := time.UnixMilli(req.DeadlineMS)
	if req.DeadlineMS == 0 {
		timeout := o.DefaultTimeout
		if timeout <= 0 {
			timeout = DefaultQueryTimeout
		}
		deadline = start.Add(timeout)
	}

	q := &query.Query{
		UID:        uid,
		Field:      req.Field,
		Comparator: req.Comparator,
		Threshold:  req.Threshold,
		Limit:      req.Limit,
		Hops:       hops,
		Deadline:   deadline,
	}

	tok, err := o.Admission.Admit(o.Self.Team)
	if err != nil {
		o.Tracker.IncRejected()
		return &transport.QueryResponse{UID: q.UID, Hops: q.Hops, Status: query.StatusCapacityExhausted}, nil
	}
	defer tok.Release()
	o.Tracker.IncAdmitted()

	if q.HasVisited(o.Self.ID) {
		return &transport.QueryResponse{UID: q.UID, Hops: q.Hops, Status: query.StatusLoopSuppressed}, nil
	}
	q = q.WithHop(o.Self.ID)

	localStart := time.Now()
	localRows := o.Shard.Scan(q.Field, q.Comparator, q.Threshold, q.Limit)
	o.Tracker.ObserveLocalScan(time.Since(localStart))
	if len(localRows) > 0 {
		o.logf("%s local query: %d records from %d total", o.Self.ID, len(localRows), o.Shard.RowCount())
	}

	eligible := o.eligibleDownstream(q)

	merged := localRows
	if len(eligible) > 0 {
		downstreamRows, err := o.fanAndMerge(ctx, q, eligible)
		if err != nil {
			o.Tracker.IncFailed()
			return &transport.QueryResponse{UID: q.UID, Hops: q.Hops, Status: query.StatusInternalError}, nil
		}
		merged = append(merged, downstreamRows...)
	}

	if uint32(len(merged)) > q.Limit && q.Limit > 0 {
		merged = merged[:q.Limit]
	}

	chunkSize := chunking.Size(o.Strategies.Chunking, o.Strategies.ChunkSize, len(merged), q.Limit)
	totalChunks := chunking.TotalChunks(len(merged), chunkSize)
	ttl := o.CacheTTL
	if ttl <= 0 {
		ttl = chunkcache.DefaultTTL
	}
	result := &query.ChunkedResult{
		UID:         q.UID,
		Rows:        merged,
		ChunkSize:   chunkSize,
		TotalChunks: totalChunks,
		CreatedAt:   time.Now(),
		TTL:         ttl,
		Hops:        q.Hops,
	}
	o.Cache.Put(result)

	o.Tracker.IncCompleted()
	duration := time.Since(start)
	o.Tracker.ObserveEndToEnd(duration)

	if o.Self.Role == topology.RoleLeader {
		o.logf("%s coordinated query %s: aggregated %d records from team leaders, %.1fms", o.Self.ID, shortUID(q.UID), len(merged), float64(duration.Microseconds())/1000)
	} else {
		o.logf("%s query %s: %d records, %.1fms", o.Self.ID, shortUID(q.UID), len(merged), float64(duration.Microseconds())/1000)
	}

	return &transport.QueryResponse{
		UID:          q.UID,
		TotalChunks:  uint32(totalChunks),
		TotalRecords: uint32(len(merged)),
		Hops:         q.Hops,
		Status:       query.StatusOK,
	}, nil
}

// eligibleDownstream returns this node's downstream roster with any id
// already present in the hop trace removed: the loop guard applies to
// the forwarding decision as well as to self-admission.
func (o *Orchestrator) eligibleDownstream(q *query.Query) []string {
	candidates := o.Graph.DownstreamRoster(o.Self.ID)
	eligible := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if !q.HasVisited(id) {
			eligible = append(eligible, id)
		}
	}
	return eligible
}

// fanAndMerge splits q's limit across eligible neighbors, forwards via the
// configured strategy, and merges each reachable neighbor's published
// rows into a single slice in declared-order. An unreachable or erroring
// neighbor contributes zero rows rather than failing the whole query: an
// overloaded overlay degrades to a partial result rather than a hard
// failure.
func (o *Orchestrator) fanAndMerge(ctx context.Context, q *query.Query, eligible []string) ([]query.Row, error) {
	shares := splitLimit(q.Limit, len(eligible))
	subQueries := make([]forward.SubQuery, len(eligible))
	for i, id := range eligible {
		subQueries[i] = forward.SubQuery{
			NeighborID: id,
			Request: transport.QueryRequest{
				Field:      q.Field,
				Comparator: q.Comparator,
				Threshold:  q.Threshold,
				Limit:      shares[i],
				UID:        q.UID,
				Hops:       q.Hops,
				DeadlineMS: q.Deadline.UnixMilli(),
			},
		}
	}

	callCtx, cancel := neighbor.CallDeadline(ctx, q.Deadline)
	defer cancel()
	results := forward.Fan(callCtx, o.Strategies.Forwarding, o.Registry, subQueries)

	var merged []query.Row
	for _, id := range eligible {
		o.logf("%s forwarding to %s, remaining=%d", o.Self.ID, id, shares[indexOf(eligible, id)])
		res, ok := results[id]
		if !ok {
			continue
		}
		if res.Err != nil {
			o.logf("%s failed forwarding to %s: %v", o.Self.ID, id, res.Err)
			continue
		}
		if res.Resp == nil || res.Resp.Status != query.StatusOK {
			continue
		}
		rows, err := o.fetchPublishedRows(callCtx, id, res.Resp.UID, res.Resp.TotalChunks)
		if err != nil {
			continue
		}
		merged = append(merged, rows...)
	}
	return merged, nil
}

// indexOf returns the position of id within ids, or 0 if absent - used
// only to pair a neighbor id back up with its pre-split limit share for
// logging, never for correctness.
func indexOf(ids []string, id string) int {
	for i, candidate := range ids {
		if candidate == id {
			return i
		}
	}
	return 0
}

// logf writes msg to the process log and appends it to the tracker's
// recent-activity buffer, surfaced later through GetMetrics.recent_logs.
func (o *Orchestrator) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Print(msg)
	o.Tracker.AddLog(msg)
}

// shortUID truncates uid to its first 8 characters for log readability,
// matching how a full UID is rarely useful in a one-line summary.
func shortUID(uid string) string {
	if len(uid) <= 8 {
		return uid
	}
	return uid[:8]
}

// fetchPublishedRows retrieves every chunk neighbor id published under
// uid and concatenates their rows. A node's Query response never carries
// rows directly; the parent pulls them back out of
// the child's own result cache, the same way a client would.
func (o *Orchestrator) fetchPublishedRows(ctx context.Context, neighborID, uid string, totalChunks uint32) ([]query.Row, error) {
	client := o.Registry.Get(neighborID)
	if client == nil {
		return nil, fmt.Errorf("orchestrator: no client for neighbor %s", neighborID)
	}
	var rows []query.Row
	for idx := uint32(0); idx < totalChunks; idx++ {
		resp, err := client.GetChunk(ctx, transport.GetChunkRequest{UID: uid, Index: idx})
		if err != nil {
			return nil, err
		}
		if resp.Status != query.StatusOK {
			return nil, fmt.Errorf("orchestrator: neighbor %s chunk %d status %s", neighborID, idx, resp.Status)
		}
		decoded, err := transport.DecodeRows(resp.Data)
		if err != nil {
			return nil, err
		}
		rows = append(rows, decoded...)
	}
	return rows, nil
}

// splitLimit divides total as evenly as possible across n shares, handing
// the remainder to the first shares in declared order.
func splitLimit(total uint32, n int) []uint32 {
	if n <= 0 {
		return nil
	}
	base := total / uint32(n)
	remainder := total % uint32(n)
	out := make([]uint32, n)
	for i := range out {
		out[i] = base
		if uint32(i) < remainder {
			out[i]++
		}
	}
	return out
}

// GetChunk retrieves one chunk of a previously published result.
func (o *Orchestrator) GetChunk(req transport.GetChunkRequest) *transport.GetChunkResponse {
	chunk, err := o.Cache.GetChunk(req.UID, req.Index)
	switch err {
	case nil:
		data, encErr := transport.EncodeRows(chunk.Rows)
		if encErr != nil {
			return &transport.GetChunkResponse{UID: req.UID, Status: query.StatusInternalError}
		}
		return &transport.GetChunkResponse{
			UID:         chunk.UID,
			Index:       chunk.Index,
			TotalChunks: chunk.TotalChunks,
			Data:        data,
			IsLast:      chunk.IsLast,
			Status:      query.StatusOK,
		}
	case chunkcache.ErrUIDExpired:
		return &transport.GetChunkResponse{UID: req.UID, Status: query.StatusUIDExpired}
	default:
		return &transport.GetChunkResponse{UID: req.UID, Status: query.StatusUIDUnknown}
	}
}

// GetMetrics reports this node's current snapshot. QueueSize
// is always 0: admission is a non-blocking accept/reject gate, so
// no request is ever queued waiting for a slot. The strategy fields and
// RecentLogs exist so a caller polling one node's metrics can see how
// it's configured and what it's been doing without a second call.
func (o *Orchestrator) GetMetrics() *transport.GetMetricsResponse {
	snap := o.Tracker.Snapshot()
	adm := o.Admission.Snapshot()
	return &transport.GetMetricsResponse{
		ProcessID:           o.Self.ID,
		Role:                string(o.Self.Role),
		Team:                string(o.Self.Team),
		ActiveRequests:      adm.ActiveTotal,
		MaxCapacity:         adm.MaxTotal,
		QueueSize:           0,
		AvgProcessingTimeMS: snap.AvgEndToEndMillis,
		DataFilesLoaded:     snap.DataFilesLoaded,
		IsHealthy:           snap.Rejected == 0,
		ForwardingStrategy:  o.Strategies.Forwarding,
		ChunkingStrategy:    o.Strategies.Chunking,
		FairnessStrategy:    o.Strategies.Fairness,
		AsyncForwarding:     o.Strategies.Forwarding != forward.RoundRobin,
		RecentLogs:          o.Tracker.RecentLogs(10),
	}
}
