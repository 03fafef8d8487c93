// Package admission implements the admission controller: a
// non-blocking accept/reject gate over global and per-team concurrency
// budgets, applying one of three fairness strategies on every admit.
package admission

import (
	"errors"
	"sync"

	"github.com/dreamware/overlay/internal/topology"
)

// Strategy names as they appear in configuration.
const (
	Strict   = "strict"
	Weighted = "weighted"
	Hybrid   = "hybrid"
)

// ErrCapacityExhausted is returned by Admit when no strategy permits the
// request. It maps to wire status CAPACITY_EXHAUSTED.
var ErrCapacityExhausted = errors.New("admission: capacity exhausted")

// Limits configures the controller's budgets, all fixed at startup.
type Limits struct {
	MaxTotal    int
	MaxPerTeam  map[topology.Team]int
}

// Controller gates admission of new queries and enforces per-team
// fairness. All counters are protected by a single mutex; the contended
// path is short (increment/decrement plus an arithmetic check), so a
// plain Mutex beats atomics-plus-CAS-retry here.
type Controller struct {
	mu           sync.Mutex
	strategy     string
	limits       Limits
	activeTotal  int
	activePerTeam map[topology.Team]int
}

// New creates a controller for the given fairness strategy and limits.
func New(strategy string, limits Limits) *Controller {
	return &Controller{
		strategy:      strategy,
		limits:        limits,
		activePerTeam: make(map[topology.Team]int),
	}
}

// Token is an opaque handle representing a reserved concurrency slot. Its
// Release is safe to call more than once (idempotent) and
// safe to call zero times only if the caller already panicked past it -
// every real code path must call Release exactly once.
type Token struct {
	team topology.Team
	once sync.Once
	c    *Controller
}

// Release decrements the matching counters. Must run on every exit path,
// including error and timeout; the sync.Once makes that
// safe even if a caller double-releases under a defer-plus-early-return.
func (tok *Token) Release() {
	if tok == nil {
		return
	}
	tok.once.Do(func() {
		tok.c.release(tok.team)
	})
}

// Admit attempts to reserve a concurrency slot for team. On success it
// returns a Token that the caller must Release exactly once; on failure
// it returns ErrCapacityExhausted and counters are left unchanged.
func (c *Controller) Admit(team topology.Team) (*Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.admitLocked(team) {
		return nil, ErrCapacityExhausted
	}

	c.activeTotal++
	c.activePerTeam[team]++
	return &Token{team: team, c: c}, nil
}

func (c *Controller) admitLocked(team topology.Team) bool {
	switch c.strategy {
	case Strict:
		return c.strictOK(team)
	case Weighted:
		return c.weightedOK(team)
	case Hybrid:
		if c.systemLoadLocked() > 0.8 {
			return c.strictOK(team)
		}
		return c.weightedOK(team)
	default:
		return c.strictOK(team)
	}
}

func (c *Controller) strictOK(team topology.Team) bool {
	if c.activeTotal >= c.limits.MaxTotal {
		return false
	}
	return c.activePerTeam[team] < c.limits.MaxPerTeam[team]
}

func (c *Controller) weightedOK(team topology.Team) bool {
	if c.activeTotal >= c.limits.MaxTotal {
		return false
	}
	other := otherTeam(team)
	otherMax := c.limits.MaxPerTeam[other]
	otherLoad := 0.0
	if otherMax > 0 {
		otherLoad = float64(c.activePerTeam[other]) / float64(otherMax)
	}
	slack := 1 - otherLoad
	if slack < 0 {
		slack = 0
	}
	bound := float64(c.limits.MaxPerTeam[team]) * (1 + slack)
	return float64(c.activePerTeam[team]) < bound
}

func (c *Controller) systemLoadLocked() float64 {
	if c.limits.MaxTotal == 0 {
		return 0
	}
	return float64(c.activeTotal) / float64(c.limits.MaxTotal)
}

func otherTeam(team topology.Team) topology.Team {
	if team == topology.TeamGreen {
		return topology.TeamPink
	}
	return topology.TeamGreen
}

func (c *Controller) release(team topology.Team) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeTotal > 0 {
		c.activeTotal--
	}
	if c.activePerTeam[team] > 0 {
		c.activePerTeam[team]--
	}
}

// Snapshot is the admission ledger, returned for metrics and
// routing hints.
type Snapshot struct {
	ActiveTotal   int
	ActivePerTeam map[topology.Team]int
	MaxTotal      int
	MaxPerTeam    map[topology.Team]int
	SystemLoad    float64
}

// Snapshot returns a copy of the current counters.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	perTeam := make(map[topology.Team]int, len(c.activePerTeam))
	for k, v := range c.activePerTeam {
		perTeam[k] = v
	}
	maxPerTeam := make(map[topology.Team]int, len(c.limits.MaxPerTeam))
	for k, v := range c.limits.MaxPerTeam {
		maxPerTeam[k] = v
	}

	return Snapshot{
		ActiveTotal:   c.activeTotal,
		ActivePerTeam: perTeam,
		MaxTotal:      c.limits.MaxTotal,
		MaxPerTeam:    maxPerTeam,
		SystemLoad:    c.systemLoadLocked(),
	}
}
