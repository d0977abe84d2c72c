// Package teams exposes the rescue team registry over HTTP.
package teams

import (
	"context"
	"net/http"

	"github.com/kilianp07/rescue/api"
	"github.com/kilianp07/rescue/core/dispatch"
	"github.com/kilianp07/rescue/core/model"
	"github.com/kilianp07/rescue/core/store"
)

// Service is the registry side of the dispatch controller.
type Service interface {
	RegisterTeam(ctx context.Context, in dispatch.NewTeam) (model.RescueTeam, error)
	GetTeam(ctx context.Context, id string) (model.RescueTeam, error)
	ListTeams(ctx context.Context, f store.TeamFilter) ([]model.RescueTeam, error)
	SetTeamDuty(ctx context.Context, teamID string, status model.TeamStatus) (model.RescueTeam, error)
	UpdateTeamLocation(ctx context.Context, teamID, location string) (model.RescueTeam, error)
	UpdateTeamCapabilities(ctx context.Context, teamID string, caps []model.Capability) (model.RescueTeam, error)
	RetireTeam(ctx context.Context, teamID string) error
}

type handler struct {
	svc Service
}

// Register mounts the team routes on mux.
func Register(mux *http.ServeMux, svc Service) {
	h := &handler{svc: svc}
	mux.HandleFunc("POST /api/teams", h.create)
	mux.HandleFunc("GET /api/teams", h.list)
	mux.HandleFunc("GET /api/teams/{id}", h.get)
	mux.HandleFunc("PUT /api/teams/{id}/duty", h.duty)
	mux.HandleFunc("PUT /api/teams/{id}/location", h.location)
	mux.HandleFunc("PUT /api/teams/{id}/capabilities", h.capabilities)
	mux.HandleFunc("DELETE /api/teams/{id}", h.retire)
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	var in dispatch.NewTeam
	if err := api.DecodeJSON(r, &in); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	t, err := h.svc.RegisterTeam(r.Context(), in)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, t)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTeam(r.Context(), r.PathValue("id"))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, t)
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	var f store.TeamFilter
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		st, err := model.ParseTeamStatus(s)
		if err != nil {
			api.BadRequest(w, err.Error())
			return
		}
		f.Status = st
	}
	if s := q.Get("capability"); s != "" {
		c, err := model.ParseCapability(s)
		if err != nil {
			api.BadRequest(w, err.Error())
			return
		}
		f.Capability = c
	}
	teams, err := h.svc.ListTeams(r.Context(), f)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if teams == nil {
		teams = []model.RescueTeam{}
	}
	api.WriteJSON(w, http.StatusOK, teams)
}

func (h *handler) duty(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := api.DecodeJSON(r, &body); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	st, err := model.ParseTeamStatus(body.Status)
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	h.reply(w)(h.svc.SetTeamDuty(r.Context(), r.PathValue("id"), st))
}

func (h *handler) location(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Location string `json:"location"`
	}
	if err := api.DecodeJSON(r, &body); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	h.reply(w)(h.svc.UpdateTeamLocation(r.Context(), r.PathValue("id"), body.Location))
}

func (h *handler) capabilities(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Capabilities []model.Capability `json:"capabilities"`
	}
	if err := api.DecodeJSON(r, &body); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	h.reply(w)(h.svc.UpdateTeamCapabilities(r.Context(), r.PathValue("id"), body.Capabilities))
}

func (h *handler) retire(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RetireTeam(r.Context(), r.PathValue("id")); err != nil {
		api.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) reply(w http.ResponseWriter) func(model.RescueTeam, error) {
	return func(t model.RescueTeam, err error) {
		if err != nil {
			api.WriteError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, t)
	}
}
