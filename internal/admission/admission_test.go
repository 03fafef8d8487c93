package admission

import (
	"sync"
	"testing"

	"github.com/dreamware/overlay/internal/topology"
	"github.com/stretchr/testify/require"
)

func limits() Limits {
	return Limits{
		MaxTotal: 10,
		MaxPerTeam: map[topology.Team]int{
			topology.TeamGreen: 6,
			topology.TeamPink:  6,
		},
	}
}

func TestController_StrictRejectsAtPerTeamMax(t *testing.T) {
	c := New(Strict, limits())
	var toks []*Token
	for i := 0; i < 6; i++ {
		tok, err := c.Admit(topology.TeamGreen)
		require.NoError(t, err)
		toks = append(toks, tok)
	}
	_, err := c.Admit(topology.TeamGreen)
	require.ErrorIs(t, err, ErrCapacityExhausted)

	for _, tok := range toks {
		tok.Release()
	}
	require.Equal(t, 0, c.Snapshot().ActiveTotal)
}

func TestController_ReleaseIsIdempotent(t *testing.T) {
	c := New(Strict, limits())
	tok, err := c.Admit(topology.TeamGreen)
	require.NoError(t, err)

	tok.Release()
	tok.Release()
	tok.Release()

	require.Equal(t, 0, c.Snapshot().ActiveTotal)
	require.Equal(t, 0, c.Snapshot().ActivePerTeam[topology.TeamGreen])
}

func TestController_WeightedGrantsSlackWhenOtherTeamIdle(t *testing.T) {
	c := New(Weighted, limits())
	// pink team is idle, so green should be able to exceed its raw max
	// per the slack formula.
	var toks []*Token
	for i := 0; i < 6; i++ {
		tok, err := c.Admit(topology.TeamGreen)
		require.NoError(t, err)
		toks = append(toks, tok)
	}
	// slack = 1 (other team load 0) -> bound = 6*2 = 12, still bounded by
	// maxTotal=10, so a 7th green admit should still succeed.
	tok, err := c.Admit(topology.TeamGreen)
	require.NoError(t, err)
	toks = append(toks, tok)

	for _, tok := range toks {
		tok.Release()
	}
}

func TestController_HybridFallsBackToStrictUnderHighLoad(t *testing.T) {
	lim := Limits{MaxTotal: 10, MaxPerTeam: map[topology.Team]int{topology.TeamGreen: 8, topology.TeamPink: 8}}
	c := New(Hybrid, lim)

	var toks []*Token
	// push system load above 0.8 (9/10) using pink so green's strict
	// per-team bound (8) is what gates the next admit.
	for i := 0; i < 8; i++ {
		tok, err := c.Admit(topology.TeamGreen)
		require.NoError(t, err)
		toks = append(toks, tok)
	}
	tok, err := c.Admit(topology.TeamPink)
	require.NoError(t, err)
	toks = append(toks, tok)
	require.Greater(t, c.Snapshot().SystemLoad, 0.8)

	// total is now 9/10; green is at its strict max of 8, hybrid should
	// reject rather than grant weighted slack.
	_, err = c.Admit(topology.TeamGreen)
	require.ErrorIs(t, err, ErrCapacityExhausted)

	for _, tok := range toks {
		tok.Release()
	}
}

func TestController_ConcurrentAdmitRelease_NeverNegativeNeverExceedsMax(t *testing.T) {
	c := New(Strict, limits())
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := c.Admit(topology.TeamGreen)
			if err == nil {
				tok.Release()
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	require.GreaterOrEqual(t, snap.ActiveTotal, 0)
	require.LessOrEqual(t, snap.ActiveTotal, snap.MaxTotal)
}
