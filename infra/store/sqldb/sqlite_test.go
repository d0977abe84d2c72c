package sqldb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rescue/core/model"
	"github.com/kilianp07/rescue/core/store"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "rescue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func team(id string, capacity int, caps ...model.Capability) model.RescueTeam {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return model.RescueTeam{
		ID: id, Name: "Unit " + id, Capacity: capacity, Status: model.TeamAvailable,
		Capabilities: model.NewCapabilitySet(caps...), CreatedAt: now, UpdatedAt: now,
	}
}

func TestSQLiteTeams(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	require.NoError(t, s.CreateTeam(ctx, team("t-b", 3, model.CapabilityFire)))
	require.NoError(t, s.CreateTeam(ctx, team("t-c", 5, model.CapabilityFire)))
	require.NoError(t, s.CreateTeam(ctx, team("t-a", 3, model.CapabilityFire, model.CapabilityMedical)))
	off := team("t-e", 10, model.CapabilityFire)
	off.Status = model.TeamOffDuty
	require.NoError(t, s.CreateTeam(ctx, off))

	err := s.CreateTeam(ctx, team("t-a", 1, model.CapabilityCrime))
	assert.True(t, errors.Is(err, store.ErrDuplicate))

	got, err := s.FindAvailableTeams(ctx, model.CapabilityFire)
	require.NoError(t, err)
	var ids []string
	for _, tm := range got {
		ids = append(ids, tm.ID)
	}
	assert.Equal(t, []string{"t-c", "t-a", "t-b"}, ids)
	assert.True(t, got[1].Capabilities.Has(model.CapabilityMedical))

	a, err := s.GetTeam(ctx, "t-a")
	require.NoError(t, err)
	assert.Equal(t, "Unit t-a", a.Name)
	assert.Equal(t, team("t-a", 3).CreatedAt, a.CreatedAt)

	_, err = s.GetTeam(ctx, "nope")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	list, err := s.ListTeams(ctx, store.TeamFilter{Capability: model.CapabilityMedical})
	require.NoError(t, err)
	require.Len(t, list, 1)
	list, err = s.ListTeams(ctx, store.TeamFilter{Status: model.TeamOffDuty})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "t-e", list[0].ID)

	require.NoError(t, s.DeleteTeam(ctx, "t-e"))
	assert.True(t, errors.Is(s.DeleteTeam(ctx, "t-e"), store.ErrNotFound))
}

func TestSQLiteSaveTeamConditional(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	require.NoError(t, s.CreateTeam(ctx, team("t1", 4, model.CapabilityRescue)))

	claimed := team("t1", 4, model.CapabilityRescue, model.CapabilityHazmat)
	claimed.Status = model.TeamAssigned
	claimed.CurrentRequest = "r1"
	require.NoError(t, s.SaveTeam(ctx, claimed, store.TeamState{Status: model.TeamAvailable}))

	err := s.SaveTeam(ctx, claimed, store.TeamState{Status: model.TeamAvailable})
	assert.True(t, errors.Is(err, store.ErrConflict))
	err = s.SaveTeam(ctx, team("ghost", 1, model.CapabilityFire), store.TeamState{Status: model.TeamAvailable})
	assert.True(t, errors.Is(err, store.ErrNotFound))

	got, err := s.GetTeam(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.CurrentRequest)
	assert.True(t, got.Capabilities.Has(model.CapabilityHazmat))

	stale := claimed.Clone()
	stale.CurrentRequest = "r0"
	err = s.SaveTeam(ctx, stale, store.TeamState{Status: model.TeamAssigned, Request: "r0"})
	assert.True(t, errors.Is(err, store.ErrConflict))
	require.NoError(t, s.SaveTeam(ctx, claimed, store.StateOf(claimed)))

	avail, err := s.FindAvailableTeams(ctx, model.CapabilityRescue)
	require.NoError(t, err)
	assert.Empty(t, avail)
}

func TestSQLiteRequests(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	lat := 48.85

	r1 := model.EmergencyRequest{ID: "r1", Capability: model.CapabilityFire, Priority: model.PriorityHigh,
		Status: model.RequestPending, Location: "Main St", Latitude: &lat, CreatedAt: base.Add(time.Minute), UpdatedAt: base}
	r2 := model.EmergencyRequest{ID: "r2", Capability: model.CapabilityMedical, Priority: model.PriorityLow,
		Status: model.RequestPending, CreatedAt: base, UpdatedAt: base}
	require.NoError(t, s.CreateRequest(ctx, r1))
	require.NoError(t, s.CreateRequest(ctx, r2))
	assert.True(t, errors.Is(s.CreateRequest(ctx, r1), store.ErrDuplicate))

	got, err := s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got.Latitude)
	assert.Equal(t, lat, *got.Latitude)
	assert.Nil(t, got.Longitude)
	assert.Nil(t, got.AssignedAt)

	at := base.Add(2 * time.Minute)
	r1.Status = model.RequestAssigned
	r1.AssignedTeam = "t1"
	r1.AssignedAt = &at
	require.NoError(t, s.SaveRequest(ctx, r1, model.RequestPending))
	assert.True(t, errors.Is(s.SaveRequest(ctx, r1, model.RequestPending), store.ErrConflict))

	got, err = s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got.AssignedAt)
	assert.Equal(t, at, *got.AssignedAt)

	all, err := s.ListRequests(ctx, store.RequestFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "r2", all[0].ID)

	pending, err := s.ListRequests(ctx, store.RequestFilter{Statuses: []model.RequestStatus{model.RequestPending, model.RequestOnScene}})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "r2", pending[0].ID)

	byTeam, err := s.ListRequests(ctx, store.RequestFilter{TeamID: "t1", Capability: model.CapabilityFire})
	require.NoError(t, err)
	require.Len(t, byTeam, 1)

	_, err = s.GetRequest(ctx, "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
