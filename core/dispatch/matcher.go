package dispatch

import (
	"context"
	"fmt"
	"sort"

	"github.com/kilianp07/rescue/core/model"
)

// TeamFinder is the read side of the team registry used for matching.
type TeamFinder interface {
	FindAvailableTeams(ctx context.Context, c model.Capability) ([]model.RescueTeam, error)
}

// Matcher selects the best eligible team for a capability. It never writes.
//
// Among AVAILABLE teams holding the capability, the largest capacity wins.
// Equal capacities are broken by the lexicographically lowest team id so the
// choice is reproducible whatever order the store returns.
type Matcher struct {
	teams TeamFinder
}

// NewMatcher returns a Matcher reading from f.
func NewMatcher(f TeamFinder) *Matcher { return &Matcher{teams: f} }

// Candidates returns every eligible team, best first.
func (m *Matcher) Candidates(ctx context.Context, c model.Capability) ([]model.RescueTeam, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: unknown capability %q", ErrInvalidInput, string(c))
	}
	teams, err := m.teams.FindAvailableTeams(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("find available teams for %s: %w", c, err)
	}
	eligible := teams[:0:0]
	for _, t := range teams {
		// the store snapshot may lag behind a concurrent claim
		if t.Eligible(c) {
			eligible = append(eligible, t)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool { return better(eligible[i], eligible[j]) })
	return eligible, nil
}

// SelectTeam returns the chosen team id. ok is false when no team qualifies,
// which callers must treat as "stay PENDING" rather than as a fault.
func (m *Matcher) SelectTeam(ctx context.Context, c model.Capability) (teamID string, ok bool, err error) {
	cands, err := m.Candidates(ctx, c)
	if err != nil {
		return "", false, err
	}
	if len(cands) == 0 {
		return "", false, nil
	}
	return cands[0].ID, true, nil
}

func better(a, b model.RescueTeam) bool {
	if a.Capacity != b.Capacity {
		return a.Capacity > b.Capacity
	}
	return a.ID < b.ID
}
