package store

import (
	"fmt"
	"sync"

	"github.com/dreamware/overlay/internal/query"
	"github.com/dreamware/overlay/internal/topology"
)

// Loader materializes the rows for a node's declared date range, plus the
// count of files it actually read - which can be less than the number of
// calendar days in bounds, since a day with no file on disk is silently
// skipped rather than treated as an error. The real loader is out of
// scope for this module and is expected to read from wherever the
// deployment's dataset lives; CSVLoader below is a minimal in-tree
// implementation used by tests and single-host runs.
type Loader interface {
	Load(bounds topology.DateBounds) (rows []query.Row, filesLoaded int, err error)
}

// Shard holds one node's portion of the dataset. A node with no DateBounds
// owns no data and exposes an empty shard.
//
// Rows are immutable after Load: Scan never mutates the stored slice, and
// no method replaces the rows once the shard is built. The accessors only
// take the RWMutex's read lock, so concurrent scans never block each other.
type Shard struct {
	mu          sync.RWMutex
	rows        []query.Row
	bounds      *topology.DateBounds
	team        topology.Team
	filesLoaded int
}

// NewShard creates an empty shard for a node with no declared date bounds -
// a pure router that never owns data.
func NewShard(team topology.Team) *Shard {
	return &Shard{team: team}
}

// Load builds a new shard by invoking loader for bounds. Nodes with no
// DateBounds must never call Load; they use NewShard instead.
func Load(loader Loader, bounds topology.DateBounds, team topology.Team) (*Shard, error) {
	rows, filesLoaded, err := loader.Load(bounds)
	if err != nil {
		return nil, fmt.Errorf("store: load shard for bounds %+v: %w", bounds, err)
	}
	b := bounds
	return &Shard{rows: rows, bounds: &b, team: team, filesLoaded: filesLoaded}, nil
}

// Owns reports whether this shard was loaded for a declared date range. A
// loaded shard whose loader returned no rows still reports true.
func (s *Shard) Owns() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bounds != nil
}

// FilesLoaded reports how many files the loader actually read for this
// shard, for GetMetrics' data_files_loaded field.
func (s *Shard) FilesLoaded() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filesLoaded
}

// RowCount reports the total number of rows this shard holds, for log
// lines that report "N matched of M total" style summaries.
func (s *Shard) RowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Scan performs a single linear pass over the shard's rows, returning the
// first limit matches in load order. A shard with no rows
// (pure router) always returns an empty slice.
func (s *Shard) Scan(field string, cmp query.Comparator, threshold float64, limit uint32) []query.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit == 0 || len(s.rows) == 0 {
		return nil
	}

	out := make([]query.Row, 0, min(int(limit), len(s.rows)))
	for _, row := range s.rows {
		v, ok := row[field]
		if !ok {
			continue
		}
		if cmp.Apply(v, threshold) {
			out = append(out, row)
			if uint32(len(out)) >= limit {
				break
			}
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
