// Package main implements queryctl, a small command-line client for the
// overlay's wire protocol: query, chunk, and metrics subcommands, one per
// RPC the wire protocol exposes. It gives operators a runnable
// entrypoint to exercise the protocol end to end; the overlay's real
// client is out of scope for this module.
//
// One subcommand per server operation, built on cobra/pflag with a
// root command that wires each subcommand in via AddCommand, rather
// than hand-rolled flag parsing.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dreamware/overlay/internal/query"
	"github.com/dreamware/overlay/internal/transport"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var addr string
	root := &cobra.Command{
		Use:   "queryctl",
		Short: "send Query/GetChunk/GetMetrics RPCs to an overlay node",
	}
	root.PersistentFlags().StringVar(&addr, "addr", "http://127.0.0.1:8080", "target node's base URL")

	root.AddCommand(newQueryCommand(&addr))
	root.AddCommand(newChunkCommand(&addr))
	root.AddCommand(newMetricsCommand(&addr))
	return root
}

func newQueryCommand(addr *string) *cobra.Command {
	var field, comparator string
	var threshold float64
	var limit uint32

	cmd := &cobra.Command{
		Use:   "query",
		Short: "submit a filter query to a node",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := transport.QueryRequest{
				Field:      field,
				Comparator: query.Comparator(comparator),
				Threshold:  threshold,
				Limit:      limit,
			}
			var resp transport.QueryResponse
			if err := transport.PostJSON(context.Background(), *addr+"/v1/query", req, &resp); err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "row field to filter on")
	cmd.Flags().StringVar(&comparator, "comparator", string(query.GT), "one of < <= = >= >")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "comparison threshold")
	cmd.Flags().Uint32Var(&limit, "limit", 100, "maximum rows to return")
	return cmd
}

func newChunkCommand(addr *string) *cobra.Command {
	var uid string
	var index uint32

	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "fetch one chunk of a published result",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := transport.GetChunkRequest{UID: uid, Index: index}
			var resp transport.GetChunkResponse
			if err := transport.PostJSON(context.Background(), *addr+"/v1/chunk", req, &resp); err != nil {
				return err
			}
			rows, err := transport.DecodeRows(resp.Data)
			if err != nil {
				return err
			}
			return printJSON(struct {
				transport.GetChunkResponse
				Rows []query.Row `json:"rows"`
			}{resp, rows})
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "result UID returned by a prior query")
	cmd.Flags().Uint32Var(&index, "index", 0, "chunk index")
	return cmd
}

func newMetricsCommand(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "fetch a node's current metrics snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp transport.GetMetricsResponse
			if err := transport.GetJSON(context.Background(), *addr+"/v1/metrics", &resp); err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
