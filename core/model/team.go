package model

import (
	"fmt"
	"strings"
	"time"
)

// TeamStatus is the operational state of a rescue team.
type TeamStatus string

const (
	TeamAvailable TeamStatus = "AVAILABLE"
	TeamAssigned  TeamStatus = "ASSIGNED"
	TeamEnRoute   TeamStatus = "EN_ROUTE"
	TeamOnScene   TeamStatus = "ON_SCENE"
	TeamReturning TeamStatus = "RETURNING"
	TeamOffDuty   TeamStatus = "OFF_DUTY"
)

var teamStatuses = []TeamStatus{
	TeamAvailable, TeamAssigned, TeamEnRoute,
	TeamOnScene, TeamReturning, TeamOffDuty,
}

// ParseTeamStatus converts s into a TeamStatus.
func ParseTeamStatus(s string) (TeamStatus, error) {
	v := TeamStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range teamStatuses {
		if st == v {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown team status %q", s)
}

// Busy reports whether the status implies a current request.
func (s TeamStatus) Busy() bool {
	return s == TeamAssigned || s == TeamEnRoute || s == TeamOnScene
}

func (s TeamStatus) String() string { return string(s) }

// RescueTeam is a responder unit. CurrentRequest holds a request id; the
// empty string means the team is not attached to any request.
type RescueTeam struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Capabilities    CapabilitySet `json:"capabilities"`
	Capacity        int           `json:"capacity"`
	Status          TeamStatus    `json:"status"`
	CurrentLocation string        `json:"current_location,omitempty"`
	Equipment       string        `json:"equipment,omitempty"`
	CurrentRequest  string        `json:"current_request,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Eligible reports whether the team can be matched to capability c.
func (t RescueTeam) Eligible(c Capability) bool {
	return t.Status == TeamAvailable && t.CurrentRequest == "" && t.Capabilities.Has(c)
}

// Validate checks registration fields and the busy/current-request link.
func (t RescueTeam) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("team id is required")
	}
	if err := t.Capabilities.Validate(); err != nil {
		return fmt.Errorf("team %s: %w", t.ID, err)
	}
	if t.Capacity <= 0 {
		return fmt.Errorf("team %s: capacity must be positive", t.ID)
	}
	if t.Status.Busy() != (t.CurrentRequest != "") {
		return fmt.Errorf("team %s: status %s inconsistent with current request %q", t.ID, t.Status, t.CurrentRequest)
	}
	return nil
}

// Clone returns a copy that shares no mutable state with t.
func (t RescueTeam) Clone() RescueTeam {
	t.Capabilities = t.Capabilities.Clone()
	return t
}
