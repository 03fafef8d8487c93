// Package store implements the per-node data store:
// an in-memory, read-only-after-load table of rows, scanned with a single
// linear pass per query. Loading the rows for a node's declared date range
// is delegated to a Loader so that the real dataset-materialization
// process - deliberately out of scope here - can be swapped in
// without touching the scan path.
package store
