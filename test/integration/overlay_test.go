// Package integration exercises the six-node overlay end to end over
// real TCP listeners. The six processes are in-process internal/node.Node
// instances bound to real net.Listeners rather than launched as
// subprocesses, since the overlay has no separate coordinator process to
// build and spawn; an in-process harness exercises the same HTTP surface
// without a build step.
package integration

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/dreamware/overlay/internal/config"
	"github.com/dreamware/overlay/internal/node"
	"github.com/dreamware/overlay/internal/query"
	"github.com/dreamware/overlay/internal/store"
	"github.com/dreamware/overlay/internal/topology"
	"github.com/dreamware/overlay/internal/transport"
	"github.com/stretchr/testify/require"
)

// rowLoader is an in-memory store.Loader seeded per node for test data,
// standing in for the out-of-scope dataset loader.
type rowLoader struct{ rows []query.Row }

func (l rowLoader) Load(topology.DateBounds) ([]query.Row, int, error) { return l.rows, len(l.rows), nil }

// cluster is six running nodes plus the shared document that described
// them, with addresses resolved to real ephemeral ports.
type cluster struct {
	nodes    map[string]*node.Node
	srvs     map[string]*http.Server
	addrs    map[string]string
	tcpAddrs map[string]net.Addr
}

func buildDoc(strategies config.Strategies, addrs map[string]net.Addr) *config.Document {
	port := func(id string) int { return addrs[id].(*net.TCPAddr).Port }
	return &config.Document{
		Strategies: strategies,
		Admission: config.Admission{
			MaxTotal:        100,
			MaxPerTeam:      map[string]int{"green": 100, "pink": 100},
			CacheTTLSeconds: 60,
		},
		Processes: map[string]config.NodeDoc{
			"A": {ID: "A", Role: "leader", Team: "green", Host: "127.0.0.1", Port: port("A"), Neighbors: []string{"B", "E"}},
			"B": {ID: "B", Role: "team_leader", Team: "green", Host: "127.0.0.1", Port: port("B"), Neighbors: []string{"A", "C", "D"}, DateBounds: []int{1, 10}},
			"C": {ID: "C", Role: "worker", Team: "green", Host: "127.0.0.1", Port: port("C"), Neighbors: []string{"B"}, DateBounds: []int{11, 20}},
			"D": {ID: "D", Role: "worker", Team: "pink", Host: "127.0.0.1", Port: port("D"), Neighbors: []string{"B", "E"}, DateBounds: []int{1, 10}},
			"E": {ID: "E", Role: "team_leader", Team: "pink", Host: "127.0.0.1", Port: port("E"), Neighbors: []string{"A", "F", "D"}, DateBounds: []int{11, 20}},
			"F": {ID: "F", Role: "worker", Team: "pink", Host: "127.0.0.1", Port: port("F"), Neighbors: []string{"E"}, DateBounds: []int{21, 30}},
		},
	}
}

// startCluster reserves one listener per node id, builds a shared
// config.Document from the resolved ports, constructs every node, and
// serves each over its own listener. rows seeds each data-owning node's
// shard; ids with no entry get no rows.
func startCluster(t *testing.T, strategies config.Strategies, rows map[string][]query.Row) *cluster {
	t.Helper()
	ids := []string{"A", "B", "C", "D", "E", "F"}

	listeners := make(map[string]net.Listener, len(ids))
	addrs := make(map[string]net.Addr, len(ids))
	for _, id := range ids {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		listeners[id] = l
		addrs[id] = l.Addr()
	}

	doc := buildDoc(strategies, addrs)

	c := &cluster{
		nodes:    make(map[string]*node.Node, len(ids)),
		srvs:     make(map[string]*http.Server, len(ids)),
		addrs:    make(map[string]string, len(ids)),
		tcpAddrs: addrs,
	}

	for _, id := range ids {
		var loader store.Loader
		if rs, ok := rows[id]; ok {
			loader = rowLoader{rows: rs}
		}
		n, err := node.New(node.Options{Doc: doc, NodeID: id, Loader: loader, MetricsPollInterval: 20 * time.Millisecond})
		require.NoError(t, err)
		n.Start()
		c.nodes[id] = n

		srv := &http.Server{Handler: n.Mux()}
		c.srvs[id] = srv
		c.addrs[id] = "http://" + listeners[id].Addr().String()
		go srv.Serve(listeners[id])
	}

	return c
}

func (c *cluster) stop() {
	for _, n := range c.nodes {
		n.Stop()
	}
	for _, srv := range c.srvs {
		srv.Close()
	}
}

func defaultStrategies() config.Strategies {
	return config.Strategies{Forwarding: "parallel", Chunking: "fixed", Fairness: "strict", ChunkSize: 200}
}

func seedRows() map[string][]query.Row {
	return map[string][]query.Row{
		"B": {{"amount": 5}, {"amount": 50}},
		"C": {{"amount": 7}, {"amount": 60}},
		"D": {{"amount": 9}},
		"E": {{"amount": 70}},
		"F": {{"amount": 80}},
	}
}

func postQuery(t *testing.T, addr string, req transport.QueryRequest) transport.QueryResponse {
	t.Helper()
	var resp transport.QueryResponse
	require.NoError(t, transport.PostJSON(context.Background(), addr+"/v1/query", req, &resp))
	return resp
}

func TestOverlay_BaselineQueryAggregatesAcrossAllOwningNodes(t *testing.T) {
	c := startCluster(t, defaultStrategies(), seedRows())
	defer c.stop()

	resp := postQuery(t, c.addrs["A"], transport.QueryRequest{
		Field: "amount", Comparator: query.GE, Threshold: 0, Limit: 100,
	})
	require.Equal(t, query.StatusOK, resp.Status)
	require.Equal(t, uint32(7), resp.TotalRecords)
	require.Equal(t, []string{"A"}, resp.Hops)
}

func TestOverlay_LoopSuppressedWhenHopsAlreadyContainTarget(t *testing.T) {
	c := startCluster(t, defaultStrategies(), seedRows())
	defer c.stop()

	resp := postQuery(t, c.addrs["B"], transport.QueryRequest{
		Field: "amount", Comparator: query.GT, Threshold: 0, Limit: 10,
		UID: "preset-uid", Hops: []string{"A", "B"},
	})
	require.Equal(t, query.StatusLoopSuppressed, resp.Status)
}

func TestOverlay_CapacityExhaustedWhenBudgetIsZero(t *testing.T) {
	strategies := defaultStrategies()
	c := startCluster(t, strategies, seedRows())
	defer c.stop()

	// Rebuilding a node against the same topology with MaxTotal dropped
	// to zero is the simplest way to force CAPACITY_EXHAUSTED
	// deterministically; holding a real in-flight HTTP request open long
	// enough to race a second one is not worth the flakiness here.
	zero := buildDoc(strategies, c.tcpAddrs)
	zero.Admission.MaxTotal = 0
	n, err := node.New(node.Options{Doc: zero, NodeID: "C", Loader: rowLoader{rows: seedRows()["C"]}})
	require.NoError(t, err)

	resp, err := n.Orch.HandleQuery(context.Background(), transport.QueryRequest{
		Field: "amount", Comparator: query.GT, Threshold: 0, Limit: 10,
	})
	require.NoError(t, err)
	require.Equal(t, query.StatusCapacityExhausted, resp.Status)
}

func TestOverlay_PartialFailureWhenANodeIsDown(t *testing.T) {
	c := startCluster(t, defaultStrategies(), seedRows())
	c.nodes["F"].Stop()
	c.srvs["F"].Close()
	defer c.stop()

	resp := postQuery(t, c.addrs["A"], transport.QueryRequest{
		Field: "amount", Comparator: query.GE, Threshold: 0, Limit: 100,
	})
	// F's 1 row is unreachable; the leader still publishes the other 6.
	require.Equal(t, query.StatusOK, resp.Status)
	require.Equal(t, uint32(6), resp.TotalRecords)
}

func TestOverlay_ChunkExpiresAfterTTL(t *testing.T) {
	strategies := defaultStrategies()
	c := startCluster(t, strategies, seedRows())
	defer c.stop()

	c.nodes["C"].Orch.CacheTTL = 10 * time.Millisecond
	resp, err := c.nodes["C"].Orch.HandleQuery(context.Background(), transport.QueryRequest{
		Field: "amount", Comparator: query.GT, Threshold: 0, Limit: 10,
	})
	require.NoError(t, err)
	require.Equal(t, query.StatusOK, resp.Status)

	time.Sleep(30 * time.Millisecond)
	chunk := c.nodes["C"].Orch.GetChunk(transport.GetChunkRequest{UID: resp.UID, Index: 0})
	require.Equal(t, query.StatusUIDExpired, chunk.Status)
}

func TestOverlay_StrategySwapProducesSameRowCount(t *testing.T) {
	rows := seedRows()

	rrCluster := startCluster(t, config.Strategies{Forwarding: "round_robin", Chunking: "fixed", Fairness: "strict", ChunkSize: 200}, rows)
	rrResp := postQuery(t, rrCluster.addrs["A"], transport.QueryRequest{Field: "amount", Comparator: query.GE, Threshold: 0, Limit: 100})
	rrCluster.stop()

	capCluster := startCluster(t, config.Strategies{Forwarding: "capacity", Chunking: "fixed", Fairness: "strict", ChunkSize: 200}, rows)
	capResp := postQuery(t, capCluster.addrs["A"], transport.QueryRequest{Field: "amount", Comparator: query.GE, Threshold: 0, Limit: 100})
	capCluster.stop()

	require.Equal(t, rrResp.TotalRecords, capResp.TotalRecords)
}
