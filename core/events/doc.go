// Package events defines how lifecycle events leave the dispatch engine.
//
// Each event is published to several topics:
//   - emergency/new: every NEW_REQUEST
//   - emergency/updates: every STATUS_CHANGE and TEAM_ASSIGNED
//   - emergency/status/{requestID}: STATUS_CHANGE of one request
//   - team/{teamID}/assignments: TEAM_ASSIGNED of one team
//
// Delivery is best effort. Publishers report failures so they can be logged
// and counted, but the engine never fails an operation because of them.
package events
