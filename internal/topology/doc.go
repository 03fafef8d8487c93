// Package topology defines the fixed node identity and overlay-graph types
// shared by every process in the cluster, and the invariants that a loaded
// configuration must satisfy before a node is allowed to start.
//
// A node's identity - its id, role, team, declared neighbors, and (for data
// owners) date bounds - is immutable after startup. This package has no
// knowledge of the wire protocol or of how configuration is loaded; it only
// knows how to validate and query the shape of the graph.
package topology
