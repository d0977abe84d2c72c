// Package requests exposes emergency request intake and lifecycle over HTTP.
package requests

import (
	"context"
	"net/http"
	"strings"

	"github.com/kilianp07/rescue/api"
	"github.com/kilianp07/rescue/core/dispatch"
	"github.com/kilianp07/rescue/core/model"
	"github.com/kilianp07/rescue/core/store"
)

// Service is the part of the dispatch controller the handlers drive.
type Service interface {
	Intake(ctx context.Context, in dispatch.NewRequest) (model.EmergencyRequest, error)
	GetRequest(ctx context.Context, id string) (model.EmergencyRequest, error)
	ListRequests(ctx context.Context, f store.RequestFilter) ([]model.EmergencyRequest, error)
	Assign(ctx context.Context, requestID, teamID string) (model.EmergencyRequest, error)
	AutoAssign(ctx context.Context, requestID string) (string, bool)
	Transition(ctx context.Context, requestID string, to model.RequestStatus) (model.EmergencyRequest, error)
	AddResolutionNotes(ctx context.Context, requestID, notes string) (model.EmergencyRequest, error)
}

type handler struct {
	svc Service
}

// Register mounts the request routes on mux.
func Register(mux *http.ServeMux, svc Service) {
	h := &handler{svc: svc}
	mux.HandleFunc("POST /api/requests", h.create)
	mux.HandleFunc("GET /api/requests", h.list)
	mux.HandleFunc("GET /api/requests/{id}", h.get)
	mux.HandleFunc("POST /api/requests/{id}/assign", h.assign)
	mux.HandleFunc("POST /api/requests/{id}/auto-assign", h.autoAssign)
	mux.HandleFunc("PUT /api/requests/{id}/status", h.status)
	mux.HandleFunc("PUT /api/requests/{id}/notes", h.notes)
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	var in dispatch.NewRequest
	if err := api.DecodeJSON(r, &in); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	req, err := h.svc.Intake(r.Context(), in)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, req)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.GetRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, req)
}

// list accepts status=PENDING,ASSIGNED plus team_id and capability filters.
func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.RequestFilter
	if s := q.Get("status"); s != "" {
		for _, part := range strings.Split(s, ",") {
			st, err := model.ParseRequestStatus(part)
			if err != nil {
				api.BadRequest(w, err.Error())
				return
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	if s := q.Get("capability"); s != "" {
		c, err := model.ParseCapability(s)
		if err != nil {
			api.BadRequest(w, err.Error())
			return
		}
		f.Capability = c
	}
	f.TeamID = q.Get("team_id")
	reqs, err := h.svc.ListRequests(r.Context(), f)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if reqs == nil {
		reqs = []model.EmergencyRequest{}
	}
	api.WriteJSON(w, http.StatusOK, reqs)
}

func (h *handler) assign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TeamID string `json:"team_id"`
	}
	if err := api.DecodeJSON(r, &body); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	if body.TeamID == "" {
		api.BadRequest(w, "team_id is required")
		return
	}
	req, err := h.svc.Assign(r.Context(), r.PathValue("id"), body.TeamID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, req)
}

type autoAssignResponse struct {
	Assigned bool                   `json:"assigned"`
	TeamID   string                 `json:"team_id,omitempty"`
	Request  model.EmergencyRequest `json:"request"`
}

// autoAssign never fails on "no team": the caller reads assigned=false.
func (h *handler) autoAssign(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.svc.GetRequest(r.Context(), id); err != nil {
		api.WriteError(w, err)
		return
	}
	teamID, ok := h.svc.AutoAssign(r.Context(), id)
	req, err := h.svc.GetRequest(r.Context(), id)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, autoAssignResponse{Assigned: ok, TeamID: teamID, Request: req})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := api.DecodeJSON(r, &body); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	to, err := model.ParseRequestStatus(body.Status)
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	req, err := h.svc.Transition(r.Context(), r.PathValue("id"), to)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, req)
}

func (h *handler) notes(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Notes string `json:"notes"`
	}
	if err := api.DecodeJSON(r, &body); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	req, err := h.svc.AddResolutionNotes(r.Context(), r.PathValue("id"), body.Notes)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, req)
}
