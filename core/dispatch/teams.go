package dispatch

import (
	"context"
	"strings"

	"github.com/kilianp07/rescue/core/model"
	"github.com/kilianp07/rescue/core/store"
)

// NewTeam carries the fields of a team registration.
type NewTeam struct {
	ID              string             `json:"id,omitempty"`
	Name            string             `json:"name"`
	Capabilities    []model.Capability `json:"capabilities"`
	Capacity        int                `json:"capacity"`
	CurrentLocation string             `json:"current_location,omitempty"`
	Equipment       string             `json:"equipment,omitempty"`
}

// RegisterTeam adds an AVAILABLE team. An id is generated when none is given.
func (c *Controller) RegisterTeam(ctx context.Context, in NewTeam) (model.RescueTeam, error) {
	const op = "register"
	caps := model.CapabilitySet{}
	for _, raw := range in.Capabilities {
		cp, err := model.ParseCapability(string(raw))
		if err != nil {
			return model.RescueTeam{}, opError(op, "", in.ID, ErrInvalidInput, "%v", err)
		}
		caps[cp] = struct{}{}
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = c.newID()
	}
	now := c.now()
	t := model.RescueTeam{
		ID:              id,
		Name:            strings.TrimSpace(in.Name),
		Capabilities:    caps,
		Capacity:        in.Capacity,
		Status:          model.TeamAvailable,
		CurrentLocation: in.CurrentLocation,
		Equipment:       in.Equipment,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if t.Name == "" {
		return model.RescueTeam{}, opError(op, "", id, ErrInvalidInput, "team name is required")
	}
	if err := t.Validate(); err != nil {
		return model.RescueTeam{}, opError(op, "", id, ErrInvalidInput, "%v", err)
	}

	unlock := c.locks.Lock(teamKey(id))
	defer unlock()
	if err := c.store.CreateTeam(ctx, t); err != nil {
		return model.RescueTeam{}, storeError(op, "", id, err)
	}
	c.log.Infof("registered team %s (%s) capacity=%d capabilities=%v", id, t.Name, t.Capacity, t.Capabilities.Slice())
	return t, nil
}

// SetTeamDuty moves an idle team between AVAILABLE, RETURNING and OFF_DUTY.
// Busy statuses belong to the request lifecycle and cannot be set here.
func (c *Controller) SetTeamDuty(ctx context.Context, teamID string, status model.TeamStatus) (model.RescueTeam, error) {
	const op = "duty"
	status, err := model.ParseTeamStatus(string(status))
	if err != nil {
		return model.RescueTeam{}, opError(op, "", teamID, ErrInvalidInput, "%v", err)
	}
	if status.Busy() {
		return model.RescueTeam{}, opError(op, "", teamID, ErrInvalidTransition, "cannot set team status %q directly", status)
	}
	return c.updateTeam(ctx, op, teamID, func(t *model.RescueTeam) error {
		if t.Status.Busy() || t.CurrentRequest != "" {
			return opError(op, "", teamID, ErrInvalidState, "team is %s on request %s", t.Status, t.CurrentRequest)
		}
		t.Status = status
		return nil
	})
}

// UpdateTeamLocation records where a team currently is.
func (c *Controller) UpdateTeamLocation(ctx context.Context, teamID, location string) (model.RescueTeam, error) {
	return c.updateTeam(ctx, "location", teamID, func(t *model.RescueTeam) error {
		t.CurrentLocation = strings.TrimSpace(location)
		return nil
	})
}

// UpdateTeamCapabilities replaces a team's capability set. The current
// assignment, if any, is left untouched.
func (c *Controller) UpdateTeamCapabilities(ctx context.Context, teamID string, caps []model.Capability) (model.RescueTeam, error) {
	const op = "capabilities"
	set := model.CapabilitySet{}
	for _, raw := range caps {
		cp, err := model.ParseCapability(string(raw))
		if err != nil {
			return model.RescueTeam{}, opError(op, "", teamID, ErrInvalidInput, "%v", err)
		}
		set[cp] = struct{}{}
	}
	if err := set.Validate(); err != nil {
		return model.RescueTeam{}, opError(op, "", teamID, ErrInvalidInput, "%v", err)
	}
	return c.updateTeam(ctx, op, teamID, func(t *model.RescueTeam) error {
		t.Capabilities = set
		return nil
	})
}

func (c *Controller) updateTeam(ctx context.Context, op, teamID string, mutate func(*model.RescueTeam) error) (model.RescueTeam, error) {
	unlock := c.locks.Lock(teamKey(teamID))
	defer unlock()

	t, err := c.store.GetTeam(ctx, teamID)
	if err != nil {
		return model.RescueTeam{}, storeError(op, "", teamID, err)
	}
	expected := store.StateOf(t)
	t = t.Clone()
	if err := mutate(&t); err != nil {
		return model.RescueTeam{}, err
	}
	t.UpdatedAt = c.now()
	if err := c.store.SaveTeam(ctx, t, expected); err != nil {
		return model.RescueTeam{}, storeError(op, "", teamID, err)
	}
	c.log.Debugf("team %s updated (%s)", teamID, op)
	return t, nil
}

// RetireTeam removes an idle team from the registry.
func (c *Controller) RetireTeam(ctx context.Context, teamID string) error {
	const op = "retire"
	unlock := c.locks.Lock(teamKey(teamID))
	defer unlock()

	t, err := c.store.GetTeam(ctx, teamID)
	if err != nil {
		return storeError(op, "", teamID, err)
	}
	if t.CurrentRequest != "" || t.Status.Busy() {
		return opError(op, t.CurrentRequest, teamID, ErrInvalidState, "team is %s", t.Status)
	}
	if err := c.store.DeleteTeam(ctx, teamID); err != nil {
		return storeError(op, "", teamID, err)
	}
	c.log.Infof("retired team %s", teamID)
	return nil
}

// GetTeam returns one team.
func (c *Controller) GetTeam(ctx context.Context, id string) (model.RescueTeam, error) {
	t, err := c.store.GetTeam(ctx, id)
	if err != nil {
		return model.RescueTeam{}, storeError("get", "", id, err)
	}
	return t, nil
}

// ListTeams returns the teams matching f.
func (c *Controller) ListTeams(ctx context.Context, f store.TeamFilter) ([]model.RescueTeam, error) {
	ts, err := c.store.ListTeams(ctx, f)
	if err != nil {
		return nil, storeError("list", "", "", err)
	}
	return ts, nil
}
