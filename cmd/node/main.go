// Package main implements the overlay node service: one of the six fixed
// processes (A-F) that together form the query overlay. Every process in
// the cluster runs this same binary; --id (or NODE_ID) selects which
// entry of the shared topology document this instance plays.
//
// Architecture:
//
//	┌───────────────────────────────────────────┐
//	│                  Node                      │
//	├───────────────────────────────────────────┤
//	│  HTTP API:                                │
//	│    /health      - liveness probe          │
//	│    /v1/query    - admit + orchestrate      │
//	│    /v1/chunk    - fetch a published chunk  │
//	│    /v1/metrics  - GetMetrics snapshot      │
//	├───────────────────────────────────────────┤
//	│  Components:                              │
//	│    config.Document   - topology + strategy │
//	│    orchestrator       - query lifecycle     │
//	│    neighbor.Registry   - peer clients       │
//	└───────────────────────────────────────────┘
//
// Configuration:
//   - --config / NODE_CONFIG: path to the YAML topology document (required)
//   - --id / NODE_ID: this process's id within that document (required)
//   - --data-dir / NODE_DATA_DIR: directory of dated CSV shard files
//     (required only if this node owns a date range)
//   - --listen / NODE_LISTEN: listen address (default derived from the
//     node's configured port)
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreamware/overlay/internal/config"
	"github.com/dreamware/overlay/internal/node"
	"github.com/dreamware/overlay/internal/store"
)

// logFatal is a variable so tests can intercept a fatal exit without
// actually terminating the process.
var logFatal = log.Fatalf

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		logFatal("%v", err)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, nodeID, dataDir, listen string
	var metricsPoll time.Duration

	cmd := &cobra.Command{
		Use:   "node",
		Short: "run one process of the six-node query overlay",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = flagOrEnv(cmd, "config", "NODE_CONFIG", configPath)
			nodeID = flagOrEnv(cmd, "id", "NODE_ID", nodeID)
			dataDir = flagOrEnv(cmd, "data-dir", "NODE_DATA_DIR", dataDir)
			listen = flagOrEnv(cmd, "listen", "NODE_LISTEN", listen)

			if configPath == "" {
				return errRequired("--config/NODE_CONFIG")
			}
			if nodeID == "" {
				return errRequired("--id/NODE_ID")
			}
			return run(configPath, nodeID, dataDir, listen, metricsPoll)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to the topology YAML document")
	flags.StringVar(&nodeID, "id", "", "this process's id within the topology document")
	flags.StringVar(&dataDir, "data-dir", "", "directory of dated CSV shard files, if this node owns data")
	flags.StringVar(&listen, "listen", "", "listen address (default derived from this node's configured port)")
	flags.DurationVar(&metricsPoll, "metrics-poll", 5*time.Second, "neighbor capacity-hint poll interval")
	return cmd
}

// flagOrEnv returns the flag's value if it was explicitly set on the
// command line, else the named environment variable, else the flag's
// current (default) value - a flag-then-env-then-default fallback.
func flagOrEnv(cmd *cobra.Command, flagName, envName, current string) string {
	if cmd.Flags().Changed(flagName) {
		return current
	}
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return current
}

type errRequired string

func (e errRequired) Error() string { return "missing required flag " + string(e) }

func run(configPath, nodeID, dataDir, listen string, metricsPoll time.Duration) error {
	doc, err := config.Load(configPath)
	if err != nil {
		return err
	}
	graph, _, err := doc.Build()
	if err != nil {
		return err
	}
	self := graph.Nodes[nodeID]
	if self == nil {
		return errRequired("--id/NODE_ID (not present in " + configPath + ")")
	}

	var loader store.Loader
	if self.OwnsData() {
		if dataDir == "" {
			return errRequired("--data-dir/NODE_DATA_DIR (node " + nodeID + " owns a date range)")
		}
		loader = store.CSVLoader{Dir: dataDir}
	}

	n, err := node.New(node.Options{
		Doc:                 doc,
		NodeID:              nodeID,
		Loader:              loader,
		MetricsPollInterval: metricsPoll,
	})
	if err != nil {
		return err
	}
	n.Start()
	defer n.Stop()

	addr := listen
	if addr == "" {
		addr = ":" + portFromNodeDoc(doc, nodeID)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           n.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("node[%s] listening on %s", nodeID, addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logFatal("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("node[%s] shutdown error: %v", nodeID, err)
	}
	log.Printf("node[%s] stopped", nodeID)
	return nil
}

func portFromNodeDoc(doc *config.Document, id string) string {
	nd, ok := doc.Processes[id]
	if !ok || nd.Port == 0 {
		return "8080"
	}
	return strconv.Itoa(nd.Port)
}
