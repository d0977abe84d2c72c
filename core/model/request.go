package model

import (
	"fmt"
	"strings"
	"time"
)

// RequestStatus is the lifecycle state of an emergency request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestAssigned  RequestStatus = "ASSIGNED"
	RequestEnRoute   RequestStatus = "EN_ROUTE"
	RequestOnScene   RequestStatus = "ON_SCENE"
	RequestResolved  RequestStatus = "RESOLVED"
	RequestCancelled RequestStatus = "CANCELLED"
)

var requestStatuses = []RequestStatus{
	RequestPending, RequestAssigned, RequestEnRoute,
	RequestOnScene, RequestResolved, RequestCancelled,
}

// ParseRequestStatus converts s into a RequestStatus.
func ParseRequestStatus(s string) (RequestStatus, error) {
	v := RequestStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range requestStatuses {
		if st == v {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown request status %q", s)
}

// Terminal reports whether no further transition is allowed.
func (s RequestStatus) Terminal() bool {
	return s == RequestResolved || s == RequestCancelled
}

// Active reports whether a team is attached to a request in this state.
func (s RequestStatus) Active() bool {
	return s == RequestAssigned || s == RequestEnRoute || s == RequestOnScene
}

func (s RequestStatus) String() string { return string(s) }

// Priority ranks an emergency request.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// ParsePriority converts s into a Priority. An empty string yields MEDIUM.
func ParsePriority(s string) (Priority, error) {
	v := Priority(strings.ToUpper(strings.TrimSpace(s)))
	switch v {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return v, nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

func (p Priority) String() string { return string(p) }

// EmergencyRequest is a call for help waiting for, or served by, a team.
// AssignedTeam holds a team id; the empty string means no team.
type EmergencyRequest struct {
	ID              string        `json:"id"`
	Capability      Capability    `json:"capability"`
	Priority        Priority      `json:"priority"`
	Status          RequestStatus `json:"status"`
	Description     string        `json:"description,omitempty"`
	Location        string        `json:"location,omitempty"`
	Latitude        *float64      `json:"latitude,omitempty"`
	Longitude       *float64      `json:"longitude,omitempty"`
	VictimName      string        `json:"victim_name,omitempty"`
	VictimPhone     string        `json:"victim_phone,omitempty"`
	CreatedBy       string        `json:"created_by,omitempty"`
	ResolutionNotes string        `json:"resolution_notes,omitempty"`
	AssignedTeam    string        `json:"assigned_team,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Validate checks the fields required at intake.
func (r EmergencyRequest) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("request id is required")
	}
	if !r.Capability.Valid() {
		return fmt.Errorf("unknown capability %q", string(r.Capability))
	}
	if _, err := ParsePriority(string(r.Priority)); err != nil {
		return err
	}
	if r.Status.Active() && r.AssignedTeam == "" {
		return fmt.Errorf("request %s is %s without a team", r.ID, r.Status)
	}
	return nil
}
