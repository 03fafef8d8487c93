// Package config loads and validates the static configuration document:
// cluster topology, per-node role/team/neighbors/date bounds, and the
// three strategy selectors, plus the admission budgets and cache TTL the
// rest of the system needs. Load reads and parses the file without
// validating it; Build refuses to start on any topology-invariant violation
// rather than silently repairing it.
package config
