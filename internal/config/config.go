package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/overlay/internal/admission"
	"github.com/dreamware/overlay/internal/topology"
)

// Strategies holds the three tagged-variant strategy selectors,
// resolved once at startup and passed by value from there on.
type Strategies struct {
	Forwarding string `yaml:"forwarding"`
	Chunking   string `yaml:"chunking"`
	Fairness   string `yaml:"fairness"`
	ChunkSize  int    `yaml:"chunk_size"`
}

// NodeDoc is one process's entry under the top-level "processes" map.
type NodeDoc struct {
	ID         string `yaml:"id"`
	Role       string `yaml:"role"`
	Team       string `yaml:"team"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Neighbors  []string `yaml:"neighbors"`
	DateBounds []int  `yaml:"date_bounds,omitempty"`
}

// Admission holds the global and per-team concurrency budgets; every node
// runs the same budgets; nothing ties a budget to a particular process.
type Admission struct {
	MaxTotal      int            `yaml:"max_total"`
	MaxPerTeam    map[string]int `yaml:"max_per_team"`
	CacheTTLSeconds int          `yaml:"cache_ttl_seconds"`
}

// Document is the fully parsed, not-yet-validated configuration.
type Document struct {
	Strategies Strategies         `yaml:"strategies"`
	Admission  Admission          `yaml:"admission"`
	Processes  map[string]NodeDoc `yaml:"processes"`
}

// Load reads and parses path as YAML. It does not validate; call
// Document.Build to enforce the topology invariant.
func Load(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &doc, nil
}

// Addr returns the host:port endpoint for a NodeDoc.
func (n NodeDoc) Addr() string {
	return fmt.Sprintf("%s:%d", n.Host, n.Port)
}

// Build validates the document and converts it into a topology.Graph plus
// the admission.Limits every node shares. It refuses to start (returns an
// error) on any invariant violation rather than synthesizing a fix.
func (d *Document) Build() (*topology.Graph, admission.Limits, error) {
	nodes := make(map[string]*topology.Node, len(d.Processes))
	for id, nd := range d.Processes {
		if id != nd.ID {
			return nil, admission.Limits{}, fmt.Errorf("config: processes key %q does not match node id %q", id, nd.ID)
		}
		role, err := parseRole(nd.Role)
		if err != nil {
			return nil, admission.Limits{}, err
		}
		team, err := parseTeam(nd.Team)
		if err != nil {
			return nil, admission.Limits{}, err
		}
		var bounds *topology.DateBounds
		if len(nd.DateBounds) == 2 {
			bounds = &topology.DateBounds{Start: nd.DateBounds[0], End: nd.DateBounds[1]}
		} else if len(nd.DateBounds) != 0 {
			return nil, admission.Limits{}, fmt.Errorf("config: node %q date_bounds must have exactly 2 elements", id)
		}
		if bounds == nil && role != topology.RoleLeader {
			return nil, admission.Limits{}, fmt.Errorf(
				"config: node %q has role %q which implies data ownership but no date_bounds were provided "+
					"(date bounds must not be silently synthesized)", id, role)
		}

		nodes[id] = &topology.Node{
			ID:         id,
			Role:       role,
			Team:       team,
			Addr:       "http://" + nd.Addr(),
			Neighbors:  append([]string(nil), nd.Neighbors...),
			DateBounds: bounds,
		}
	}

	graph, err := topology.NewGraph(nodes)
	if err != nil {
		return nil, admission.Limits{}, err
	}

	limits := admission.Limits{
		MaxTotal:   d.Admission.MaxTotal,
		MaxPerTeam: map[topology.Team]int{},
	}
	for teamName, max := range d.Admission.MaxPerTeam {
		team, err := parseTeam(teamName)
		if err != nil {
			return nil, admission.Limits{}, err
		}
		limits.MaxPerTeam[team] = max
	}

	return graph, limits, nil
}

// CacheTTL returns the configured result-cache TTL, defaulting to 60s.
func (d *Document) CacheTTL() time.Duration {
	if d.Admission.CacheTTLSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(d.Admission.CacheTTLSeconds) * time.Second
}

func parseRole(s string) (topology.Role, error) {
	switch topology.Role(s) {
	case topology.RoleLeader, topology.RoleTeamLeader, topology.RoleWorker:
		return topology.Role(s), nil
	default:
		return "", fmt.Errorf("config: invalid role %q", s)
	}
}

func parseTeam(s string) (topology.Team, error) {
	switch topology.Team(s) {
	case topology.TeamGreen, topology.TeamPink:
		return topology.Team(s), nil
	default:
		return "", fmt.Errorf("config: invalid team %q", s)
	}
}
