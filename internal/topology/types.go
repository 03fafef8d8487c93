package topology

import (
	"fmt"
	"sort"

	"golang.org/x/exp/slices"
)

// Role is a node's position in the leader -> team leader -> worker hierarchy.
type Role string

const (
	RoleLeader     Role = "leader"
	RoleTeamLeader Role = "team_leader"
	RoleWorker     Role = "worker"
)

// rank orders roles so that DownstreamRoster can find neighbors strictly
// below a given role. Lower rank means higher in the hierarchy.
var rank = map[Role]int{
	RoleLeader:     0,
	RoleTeamLeader: 1,
	RoleWorker:     2,
}

func (r Role) valid() bool {
	_, ok := rank[r]
	return ok
}

// Team partitions nodes into the two halves of the overlay that jointly own
// a disjoint date range.
type Team string

const (
	TeamGreen Team = "green"
	TeamPink  Team = "pink"
)

func (t Team) valid() bool {
	return t == TeamGreen || t == TeamPink
}

// DateBounds is an inclusive [Start, End] date range expressed as YYYYMMDD
// integers, matching the shard file naming convention the data store reads.
type DateBounds struct {
	Start int
	End   int
}

func (d DateBounds) valid() bool {
	return d.Start > 0 && d.End >= d.Start
}

// Overlaps reports whether two date ranges share any day.
func (d DateBounds) Overlaps(o DateBounds) bool {
	return d.Start <= o.End && o.Start <= d.End
}

// Node is one process's immutable identity: its id, role, team, wire
// endpoint, declared neighbors (in configuration order - iteration over
// this slice is the deterministic tie-break forwarding relies on), and, for nodes
// that own a shard, the date range that shard covers.
type Node struct {
	ID         string
	Role       Role
	Team       Team
	Addr       string
	Neighbors  []string
	DateBounds *DateBounds
}

// OwnsData reports whether this node has a shard to scan.
func (n *Node) OwnsData() bool {
	return n.DateBounds != nil
}

// fixedEdges is the undirected edge set the overlay is fixed to: {AB, BC, BD, AE, EF, ED}.
var fixedEdges = [][2]string{
	{"A", "B"}, {"B", "C"}, {"B", "D"}, {"A", "E"}, {"E", "F"}, {"E", "D"},
}

// Graph is the validated overlay: every node's identity plus the fixed edge
// set. It is built once at startup and never mutated afterward.
type Graph struct {
	Nodes map[string]*Node
}

// NewGraph validates the supplied nodes against the topology invariant and,
// on success, returns a Graph. It refuses to start (returns an error rather
// than synthesizing anything) on any violation. A node without DateBounds
// is accepted here whatever its role; config.Document.Build is what rejects
// a non-leader node that omits them.
func NewGraph(nodes map[string]*Node) (*Graph, error) {
	if err := validateEdges(nodes); err != nil {
		return nil, err
	}
	if err := validateSymmetry(nodes); err != nil {
		return nil, err
	}
	if err := validateRolesAndTeams(nodes); err != nil {
		return nil, err
	}
	if err := validateDateRanges(nodes); err != nil {
		return nil, err
	}
	return &Graph{Nodes: nodes}, nil
}

func edgeKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + b
}

func validateEdges(nodes map[string]*Node) error {
	want := make(map[string]bool, len(fixedEdges))
	for _, e := range fixedEdges {
		want[edgeKey(e[0], e[1])] = true
	}
	got := make(map[string]bool)
	for id, n := range nodes {
		for _, nb := range n.Neighbors {
			got[edgeKey(id, nb)] = true
		}
	}
	for k := range got {
		if !want[k] {
			return fmt.Errorf("topology: declared edge %q is not part of the fixed overlay {AB,BC,BD,AE,EF,ED}", k)
		}
	}
	for k := range want {
		if !got[k] {
			return fmt.Errorf("topology: required edge %q is missing from configuration", k)
		}
	}
	return nil
}

func validateSymmetry(nodes map[string]*Node) error {
	for id, n := range nodes {
		for _, nb := range n.Neighbors {
			other, ok := nodes[nb]
			if !ok {
				return fmt.Errorf("topology: node %q declares neighbor %q which does not exist", id, nb)
			}
			if !slices.Contains(other.Neighbors, id) {
				return fmt.Errorf("topology: neighbor link %q-%q is not symmetric", id, nb)
			}
		}
	}
	return nil
}

func validateRolesAndTeams(nodes map[string]*Node) error {
	for id, n := range nodes {
		if !n.Role.valid() {
			return fmt.Errorf("topology: node %q has invalid role %q", id, n.Role)
		}
		if !n.Team.valid() {
			return fmt.Errorf("topology: node %q has invalid team %q", id, n.Team)
		}
	}
	return nil
}

// validateDateRanges checks only the DateBounds that are present: a node
// with DateBounds == nil is always legal at this layer (a pure router).
// What is illegal is a DateBounds that is malformed, or that overlaps the
// range of another node in the same team. Ranges of nodes in different
// teams are not compared.
func validateDateRanges(nodes map[string]*Node) error {
	byTeam := map[Team][]*Node{}
	for _, n := range nodes {
		if n.DateBounds == nil {
			continue
		}
		if !n.DateBounds.valid() {
			return fmt.Errorf("topology: node %q has invalid date bounds %+v", n.ID, *n.DateBounds)
		}
		byTeam[n.Team] = append(byTeam[n.Team], n)
	}
	for team, owners := range byTeam {
		sort.Slice(owners, func(i, j int) bool { return owners[i].DateBounds.Start < owners[j].DateBounds.Start })
		for i := 1; i < len(owners); i++ {
			if owners[i-1].DateBounds.Overlaps(*owners[i].DateBounds) {
				return fmt.Errorf("topology: team %s nodes %q and %q have overlapping date bounds", team, owners[i-1].ID, owners[i].ID)
			}
		}
	}
	return nil
}

// DownstreamRoster returns the subset of id's declared neighbors that are
// strictly below id's role in the hierarchy, in declared order: the leader's
// downstream is its two team leaders (one per team - the leader sits above
// both teams, so this is the one case where downstream legitimately crosses
// the team boundary: A-E is a cross-team edge by construction); a team
// leader's downstream is its own team's workers; a worker's downstream is
// empty. See DESIGN.md for why the leader is exempted from the same-team
// restriction the glossary's "downstream roster" entry otherwise implies.
func (g *Graph) DownstreamRoster(id string) []string {
	n := g.Nodes[id]
	if n == nil {
		return nil
	}
	var out []string
	for _, nbID := range n.Neighbors {
		nb := g.Nodes[nbID]
		if nb == nil {
			continue
		}
		if rank[nb.Role] <= rank[n.Role] {
			continue
		}
		if n.Role != RoleLeader && nb.Team != n.Team {
			continue
		}
		out = append(out, nbID)
	}
	return out
}
