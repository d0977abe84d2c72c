package model

import "time"

// EventKind classifies a lifecycle event.
type EventKind string

const (
	EventNewRequest   EventKind = "NEW_REQUEST"
	EventStatusChange EventKind = "STATUS_CHANGE"
	EventTeamAssigned EventKind = "TEAM_ASSIGNED"
)

// Event describes one state transition. It is transient: the engine hands it
// to publishers and keeps no copy.
type Event struct {
	Kind       EventKind     `json:"kind"`
	RequestID  string        `json:"request_id"`
	TeamID     string        `json:"team_id,omitempty"`
	Status     RequestStatus `json:"status"`
	Capability Capability    `json:"capability,omitempty"`
	Priority   Priority      `json:"priority,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}
