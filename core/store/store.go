// Package store defines the persistence boundary of the dispatch engine.
//
// Implementations must make SaveTeam and SaveRequest conditional: the write is
// applied only when the stored status still equals the expected one, otherwise
// ErrConflict is returned and nothing changes. The in-memory implementation
// lives here; SQL backends live under infra/store.
package store

import (
	"context"
	"errors"

	"github.com/kilianp07/rescue/core/model"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write loses against a
	// concurrent change.
	ErrConflict = errors.New("conditional update failed")
	// ErrDuplicate is returned when creating a record whose id exists.
	ErrDuplicate = errors.New("record already exists")
)

// TeamFilter restricts ListTeams. Zero values match everything.
type TeamFilter struct {
	Status     model.TeamStatus
	Capability model.Capability
}

// Match reports whether t passes the filter.
func (f TeamFilter) Match(t model.RescueTeam) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Capability != "" && !t.Capabilities.Has(f.Capability) {
		return false
	}
	return true
}

// RequestFilter restricts ListRequests. Zero values match everything.
type RequestFilter struct {
	Statuses   []model.RequestStatus
	TeamID     string
	Capability model.Capability
}

// Match reports whether r passes the filter.
func (f RequestFilter) Match(r model.EmergencyRequest) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if r.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.TeamID != "" && r.AssignedTeam != f.TeamID {
		return false
	}
	if f.Capability != "" && r.Capability != f.Capability {
		return false
	}
	return true
}

// TeamState is what a conditional team save compares against.
type TeamState struct {
	Status  model.TeamStatus
	Request string
}

// StateOf returns the state of t as it was read.
func StateOf(t model.RescueTeam) TeamState {
	return TeamState{Status: t.Status, Request: t.CurrentRequest}
}

func (s TeamState) String() string {
	if s.Request == "" {
		return string(s.Status)
	}
	return string(s.Status) + " on " + s.Request
}

// TeamStore is the team registry view.
type TeamStore interface {
	GetTeam(ctx context.Context, id string) (model.RescueTeam, error)
	// FindAvailableTeams returns AVAILABLE teams holding capability c,
	// ordered by capacity descending then id ascending.
	FindAvailableTeams(ctx context.Context, c model.Capability) ([]model.RescueTeam, error)
	ListTeams(ctx context.Context, f TeamFilter) ([]model.RescueTeam, error)
	CreateTeam(ctx context.Context, t model.RescueTeam) error
	// SaveTeam replaces the team only if its stored status and current
	// request both equal expected.
	SaveTeam(ctx context.Context, t model.RescueTeam, expected TeamState) error
	DeleteTeam(ctx context.Context, id string) error
}

// RequestStore is the emergency request view.
type RequestStore interface {
	GetRequest(ctx context.Context, id string) (model.EmergencyRequest, error)
	// ListRequests returns matches ordered by creation time then id.
	ListRequests(ctx context.Context, f RequestFilter) ([]model.EmergencyRequest, error)
	CreateRequest(ctx context.Context, r model.EmergencyRequest) error
	// SaveRequest replaces the request only if its stored status equals expected.
	SaveRequest(ctx context.Context, r model.EmergencyRequest, expected model.RequestStatus) error
}

// Store bundles both views plus resource cleanup.
type Store interface {
	TeamStore
	RequestStore
	Close() error
}
