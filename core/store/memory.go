package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilianp07/rescue/core/model"
)

// MemoryStore keeps teams and requests in slices indexed by id. Records are
// copied on the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu sync.RWMutex

	teams   []model.RescueTeam
	teamIdx map[string]int
	byCap   map[model.Capability]map[string]struct{}

	requests []model.EmergencyRequest
	reqIdx   map[string]int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		teamIdx: make(map[string]int),
		byCap:   make(map[model.Capability]map[string]struct{}),
		reqIdx:  make(map[string]int),
	}
}

func (s *MemoryStore) GetTeam(_ context.Context, id string) (model.RescueTeam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.teamIdx[id]
	if !ok {
		return model.RescueTeam{}, fmt.Errorf("team %s: %w", id, ErrNotFound)
	}
	return s.teams[i].Clone(), nil
}

func (s *MemoryStore) FindAvailableTeams(_ context.Context, c model.Capability) ([]model.RescueTeam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.RescueTeam
	for id := range s.byCap[c] {
		t := s.teams[s.teamIdx[id]]
		if t.Status == model.TeamAvailable {
			res = append(res, t.Clone())
		}
	}
	SortByCapacity(res)
	return res, nil
}

func (s *MemoryStore) ListTeams(_ context.Context, f TeamFilter) ([]model.RescueTeam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.RescueTeam, 0, len(s.teams))
	for _, t := range s.teams {
		if f.Match(t) {
			res = append(res, t.Clone())
		}
	}
	SortByCapacity(res)
	return res, nil
}

func (s *MemoryStore) CreateTeam(_ context.Context, t model.RescueTeam) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teamIdx[t.ID]; ok {
		return fmt.Errorf("team %s: %w", t.ID, ErrDuplicate)
	}
	s.teamIdx[t.ID] = len(s.teams)
	s.teams = append(s.teams, t.Clone())
	s.indexCaps(t)
	return nil
}

func (s *MemoryStore) SaveTeam(_ context.Context, t model.RescueTeam, expected TeamState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.teamIdx[t.ID]
	if !ok {
		return fmt.Errorf("team %s: %w", t.ID, ErrNotFound)
	}
	if cur := StateOf(s.teams[i]); cur != expected {
		return fmt.Errorf("team %s is %s, expected %s: %w", t.ID, cur, expected, ErrConflict)
	}
	s.unindexCaps(s.teams[i])
	s.teams[i] = t.Clone()
	s.indexCaps(t)
	return nil
}

func (s *MemoryStore) DeleteTeam(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.teamIdx[id]
	if !ok {
		return fmt.Errorf("team %s: %w", id, ErrNotFound)
	}
	s.unindexCaps(s.teams[i])
	last := len(s.teams) - 1
	if i != last {
		s.teams[i] = s.teams[last]
		s.teamIdx[s.teams[i].ID] = i
	}
	s.teams = s.teams[:last]
	delete(s.teamIdx, id)
	return nil
}

func (s *MemoryStore) indexCaps(t model.RescueTeam) {
	for c := range t.Capabilities {
		set, ok := s.byCap[c]
		if !ok {
			set = make(map[string]struct{})
			s.byCap[c] = set
		}
		set[t.ID] = struct{}{}
	}
}

func (s *MemoryStore) unindexCaps(t model.RescueTeam) {
	for c := range t.Capabilities {
		delete(s.byCap[c], t.ID)
	}
}

func (s *MemoryStore) GetRequest(_ context.Context, id string) (model.EmergencyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.reqIdx[id]
	if !ok {
		return model.EmergencyRequest{}, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return cloneRequest(s.requests[i]), nil
}

func (s *MemoryStore) ListRequests(_ context.Context, f RequestFilter) ([]model.EmergencyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.EmergencyRequest, 0, len(s.requests))
	for _, r := range s.requests {
		if f.Match(r) {
			res = append(res, cloneRequest(r))
		}
	}
	SortByCreation(res)
	return res, nil
}

func (s *MemoryStore) CreateRequest(_ context.Context, r model.EmergencyRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reqIdx[r.ID]; ok {
		return fmt.Errorf("request %s: %w", r.ID, ErrDuplicate)
	}
	s.reqIdx[r.ID] = len(s.requests)
	s.requests = append(s.requests, cloneRequest(r))
	return nil
}

func (s *MemoryStore) SaveRequest(_ context.Context, r model.EmergencyRequest, expected model.RequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.reqIdx[r.ID]
	if !ok {
		return fmt.Errorf("request %s: %w", r.ID, ErrNotFound)
	}
	if cur := s.requests[i].Status; cur != expected {
		return fmt.Errorf("request %s is %s, expected %s: %w", r.ID, cur, expected, ErrConflict)
	}
	s.requests[i] = cloneRequest(r)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func cloneRequest(r model.EmergencyRequest) model.EmergencyRequest {
	r.Latitude = clonePtr(r.Latitude)
	r.Longitude = clonePtr(r.Longitude)
	r.AssignedAt = clonePtr(r.AssignedAt)
	r.RespondedAt = clonePtr(r.RespondedAt)
	r.CompletedAt = clonePtr(r.CompletedAt)
	return r
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
