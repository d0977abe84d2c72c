package events

import "github.com/kilianp07/rescue/core/model"

const (
	TopicNew     = "emergency/new"
	TopicUpdates = "emergency/updates"
)

// RequestStatusTopic is the per-request status topic.
func RequestStatusTopic(requestID string) string { return "emergency/status/" + requestID }

// TeamAssignmentsTopic is the per-team assignment topic.
func TeamAssignmentsTopic(teamID string) string { return "team/" + teamID + "/assignments" }

// Topics returns every topic ev must be delivered to.
func Topics(ev model.Event) []string {
	switch ev.Kind {
	case model.EventNewRequest:
		return []string{TopicNew}
	case model.EventStatusChange:
		return []string{RequestStatusTopic(ev.RequestID), TopicUpdates}
	case model.EventTeamAssigned:
		if ev.TeamID == "" {
			return []string{TopicUpdates}
		}
		return []string{TeamAssignmentsTopic(ev.TeamID), TopicUpdates}
	default:
		return nil
	}
}
