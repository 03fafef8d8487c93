package topology

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sixNodeGraph(t *testing.T) *Graph {
	t.Helper()
	nodes := map[string]*Node{
		"A": {ID: "A", Role: RoleLeader, Team: TeamGreen, Neighbors: []string{"B", "E"}},
		"B": {ID: "B", Role: RoleTeamLeader, Team: TeamGreen, Neighbors: []string{"A", "C", "D"}},
		"C": {ID: "C", Role: RoleWorker, Team: TeamGreen, Neighbors: []string{"B"}, DateBounds: &DateBounds{Start: 20240101, End: 20240131}},
		"D": {ID: "D", Role: RoleWorker, Team: TeamPink, Neighbors: []string{"B", "E"}, DateBounds: &DateBounds{Start: 20240101, End: 20240131}},
		"E": {ID: "E", Role: RoleTeamLeader, Team: TeamPink, Neighbors: []string{"A", "F", "D"}},
		"F": {ID: "F", Role: RoleWorker, Team: TeamPink, Neighbors: []string{"E"}, DateBounds: &DateBounds{Start: 20240201, End: 20240229}},
	}
	g, err := NewGraph(nodes)
	require.NoError(t, err)
	return g
}

func TestNewGraph_Valid(t *testing.T) {
	g := sixNodeGraph(t)
	require.Len(t, g.Nodes, 6)
}

func TestDownstreamRoster(t *testing.T) {
	g := sixNodeGraph(t)

	require.ElementsMatch(t, []string{"B", "E"}, g.DownstreamRoster("A"))
	require.ElementsMatch(t, []string{"C"}, g.DownstreamRoster("B"))
	require.ElementsMatch(t, []string{"D", "F"}, g.DownstreamRoster("E"))
	require.Empty(t, g.DownstreamRoster("C"))
	require.Empty(t, g.DownstreamRoster("F"))
}

func TestNewGraph_RejectsNonDeclaredEdge(t *testing.T) {
	nodes := map[string]*Node{
		"A": {ID: "A", Role: RoleLeader, Team: TeamGreen, Neighbors: []string{"B", "E", "C"}},
		"B": {ID: "B", Role: RoleTeamLeader, Team: TeamGreen, Neighbors: []string{"A", "C"}},
		"C": {ID: "C", Role: RoleWorker, Team: TeamGreen, Neighbors: []string{"B", "A"}},
		"E": {ID: "E", Role: RoleTeamLeader, Team: TeamPink, Neighbors: []string{"A"}},
	}
	_, err := NewGraph(nodes)
	require.Error(t, err)
}

func TestNewGraph_RejectsAsymmetricLink(t *testing.T) {
	// Full edge set so validateEdges passes; B omits its link back to A.
	nodes := map[string]*Node{
		"A": {ID: "A", Role: RoleLeader, Team: TeamGreen, Neighbors: []string{"B", "E"}},
		"B": {ID: "B", Role: RoleTeamLeader, Team: TeamGreen, Neighbors: []string{"C", "D"}},
		"C": {ID: "C", Role: RoleWorker, Team: TeamGreen, Neighbors: []string{"B"}},
		"D": {ID: "D", Role: RoleWorker, Team: TeamPink, Neighbors: []string{"B", "E"}},
		"E": {ID: "E", Role: RoleTeamLeader, Team: TeamPink, Neighbors: []string{"A", "F", "D"}},
		"F": {ID: "F", Role: RoleWorker, Team: TeamPink, Neighbors: []string{"E"}},
	}
	_, err := NewGraph(nodes)
	require.Error(t, err)
}

func TestNewGraph_RejectsOverlappingDateBounds(t *testing.T) {
	// Full, symmetric edge set so the date-range check is what rejects it.
	nodes := map[string]*Node{
		"A": {ID: "A", Role: RoleLeader, Team: TeamGreen, Neighbors: []string{"B", "E"}},
		"B": {ID: "B", Role: RoleTeamLeader, Team: TeamGreen, Neighbors: []string{"A", "C", "D"}},
		"C": {ID: "C", Role: RoleWorker, Team: TeamGreen, Neighbors: []string{"B"}, DateBounds: &DateBounds{Start: 20240101, End: 20240131}},
		"D": {ID: "D", Role: RoleWorker, Team: TeamPink, Neighbors: []string{"B", "E"}},
		"E": {ID: "E", Role: RoleTeamLeader, Team: TeamPink, Neighbors: []string{"A", "F", "D"}},
		"F": {ID: "F", Role: RoleWorker, Team: TeamPink, Neighbors: []string{"E"}},
	}
	nodes["B"].DateBounds = &DateBounds{Start: 20240115, End: 20240215}
	_, err := NewGraph(nodes)
	require.Error(t, err)
}
