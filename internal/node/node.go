// Package node wires one process's topology identity, configuration,
// admission controller, data shard, result cache, metrics tracker, and
// neighbor registry into an orchestrator.Orchestrator, and exposes it over
// the three HTTP endpoints the wire protocol defines: /v1/query, /v1/chunk, and
// /v1/metrics. It also serves /health, a bare liveness probe that
// carries no payload.
package node

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/dreamware/overlay/internal/admission"
	"github.com/dreamware/overlay/internal/chunkcache"
	"github.com/dreamware/overlay/internal/config"
	"github.com/dreamware/overlay/internal/metrics"
	"github.com/dreamware/overlay/internal/neighbor"
	"github.com/dreamware/overlay/internal/orchestrator"
	"github.com/dreamware/overlay/internal/store"
	"github.com/dreamware/overlay/internal/transport"
)

// Node is the running process state for one overlay participant: its
// validated identity within Graph, its orchestrator, and the background
// loops (cache eviction, metrics refresh) that must start and stop with
// the process.
type Node struct {
	ID     string
	Orch   *orchestrator.Orchestrator
	Cache  *chunkcache.Cache
	Refresher *neighbor.MetricsRefresher
}

// Options bundles everything New needs to assemble a Node from a parsed
// configuration document.
type Options struct {
	Doc    *config.Document
	NodeID string
	Loader store.Loader

	// MetricsPollInterval governs the neighbor.MetricsRefresher backing
	// the "capacity" forwarding strategy; zero disables polling.
	MetricsPollInterval time.Duration
}

// New validates opts.Doc, builds the node's shard (loading data if this
// node owns a date range), and wires every dependency an Orchestrator
// needs. It returns an error rather than starting anything partially
// configured, mirroring topology.NewGraph's refuse-to-start philosophy.
func New(opts Options) (*Node, error) {
	graph, limits, err := opts.Doc.Build()
	if err != nil {
		return nil, err
	}
	self := graph.Nodes[opts.NodeID]
	if self == nil {
		return nil, &unknownNodeError{id: opts.NodeID}
	}

	var shard *store.Shard
	var filesLoaded uint64
	if self.OwnsData() {
		if opts.Loader == nil {
			return nil, &missingLoaderError{id: opts.NodeID}
		}
		shard, err = store.Load(opts.Loader, *self.DateBounds, self.Team)
		if err != nil {
			return nil, err
		}
		filesLoaded = uint64(shard.FilesLoaded())
	} else {
		shard = store.NewShard(self.Team)
	}

	neighborAddrs := make(map[string]string, len(self.Neighbors))
	for _, nbID := range self.Neighbors {
		if nb := graph.Nodes[nbID]; nb != nil {
			neighborAddrs[nbID] = nb.Addr
		}
	}
	registry := neighbor.New(neighborAddrs)

	tracker := metrics.New()
	tracker.SetDataFilesLoaded(filesLoaded)

	refresher := neighbor.NewMetricsRefresher(registry, self.Neighbors, opts.Doc.Admission.MaxTotal, opts.MetricsPollInterval)
	registry.AttachRefresher(refresher)

	cache := chunkcache.New(opts.Doc.CacheTTL() / 4)

	orch := &orchestrator.Orchestrator{
		Self:       self,
		Graph:      graph,
		Shard:      shard,
		Admission:  admission.New(opts.Doc.Strategies.Fairness, limits),
		Cache:      cache,
		Tracker:    tracker,
		Registry:   registry,
		Strategies: opts.Doc.Strategies,
		CacheTTL:   opts.Doc.CacheTTL(),
	}

	return &Node{ID: opts.NodeID, Orch: orch, Cache: cache, Refresher: refresher}, nil
}

type unknownNodeError struct{ id string }

func (e *unknownNodeError) Error() string {
	return "node: id " + e.id + " is not declared in the topology document"
}

type missingLoaderError struct{ id string }

func (e *missingLoaderError) Error() string {
	return "node: id " + e.id + " owns a date range but no data Loader was supplied"
}

// Start launches the node's background loops. Callers must call Stop on
// shutdown.
func (n *Node) Start() {
	n.Cache.Start(context.Background())
	n.Refresher.Start(context.Background())
}

// Stop halts the node's background loops.
func (n *Node) Stop() {
	n.Cache.Stop()
	n.Refresher.Stop()
}

// Mux builds the HTTP routes for this node, using the standard
// http.ServeMux-plus-handler-function style.
func (n *Node) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/query", n.handleQuery)
	mux.HandleFunc("/v1/chunk", n.handleChunk)
	mux.HandleFunc("/v1/metrics", n.handleMetrics)
	return mux
}

func (n *Node) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req transport.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	resp, err := n.Orch.HandleQuery(r.Context(), req)
	if err != nil {
		log.Printf("node[%s] query error: %v", n.ID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	transport.WriteJSON(w, http.StatusOK, resp)
}

func (n *Node) handleChunk(w http.ResponseWriter, r *http.Request) {
	var req transport.GetChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	transport.WriteJSON(w, http.StatusOK, n.Orch.GetChunk(req))
}

func (n *Node) handleMetrics(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, n.Orch.GetMetrics())
}
