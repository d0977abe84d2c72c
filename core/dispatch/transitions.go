package dispatch

import "github.com/kilianp07/rescue/core/model"

// requestGraph lists the legal forward moves. CANCELLED is reachable from any
// non-terminal state and is handled in CanTransition.
var requestGraph = map[model.RequestStatus]model.RequestStatus{
	model.RequestPending:  model.RequestAssigned,
	model.RequestAssigned: model.RequestEnRoute,
	model.RequestEnRoute:  model.RequestOnScene,
	model.RequestOnScene:  model.RequestResolved,
}

// CanTransition reports whether a request may move from one status to another.
func CanTransition(from, to model.RequestStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == model.RequestCancelled {
		return true
	}
	next, ok := requestGraph[from]
	return ok && next == to
}

// teamStatusFor returns the team status mirrored from a request status.
func teamStatusFor(s model.RequestStatus) (model.TeamStatus, bool) {
	switch s {
	case model.RequestAssigned:
		return model.TeamAssigned, true
	case model.RequestEnRoute:
		return model.TeamEnRoute, true
	case model.RequestOnScene:
		return model.TeamOnScene, true
	}
	return "", false
}
