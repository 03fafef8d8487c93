// Package orchestrator implements the per-node query lifecycle state
// machine: admission, loop suppression, local scan, downstream fan-out,
// deterministic merge, and chunk publication.
// Every other internal package (topology, admission, store, forward,
// chunking, chunkcache, metrics, neighbor) is wired together here; the
// orchestrator itself holds no networking code, only the sequencing.
package orchestrator
