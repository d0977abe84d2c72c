package requests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rescue/core/dispatch"
	"github.com/kilianp07/rescue/core/model"
	"github.com/kilianp07/rescue/core/store"
)

func newServer(t *testing.T) (*http.ServeMux, *dispatch.Controller) {
	t.Helper()
	ctrl, err := dispatch.NewController(store.NewMemoryStore(), nil, nil, nil)
	require.NoError(t, err)
	mux := http.NewServeMux()
	Register(mux, ctrl)
	return mux, ctrl
}

func do(t *testing.T, mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

func TestIntakeAndLifecycle(t *testing.T) {
	mux, ctrl := newServer(t)
	_, err := ctrl.RegisterTeam(context.Background(), dispatch.NewTeam{
		ID: "t1", Name: "Engine 1", Capabilities: []model.Capability{model.CapabilityFire}, Capacity: 5,
	})
	require.NoError(t, err)

	rr := do(t, mux, http.MethodPost, "/api/requests", `{"capability":"fire","priority":"high","location":"Main St"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decode[model.EmergencyRequest](t, rr)
	assert.Equal(t, model.RequestAssigned, created.Status)
	assert.Equal(t, "t1", created.AssignedTeam)

	rr = do(t, mux, http.MethodGet, "/api/requests/"+created.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, mux, http.MethodPut, "/api/requests/"+created.ID+"/status", `{"status":"on_scene"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	for _, st := range []string{"EN_ROUTE", "ON_SCENE", "RESOLVED"} {
		rr = do(t, mux, http.MethodPut, "/api/requests/"+created.ID+"/status", `{"status":"`+st+`"}`)
		require.Equal(t, http.StatusOK, rr.Code, st)
	}

	rr = do(t, mux, http.MethodPut, "/api/requests/"+created.ID+"/notes", `{"notes":"  fire out  "}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "fire out", decode[model.EmergencyRequest](t, rr).ResolutionNotes)

	rr = do(t, mux, http.MethodGet, "/api/requests?status=resolved", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]model.EmergencyRequest](t, rr), 1)
}

func TestIntakeValidation(t *testing.T) {
	mux, _ := newServer(t)
	rr := do(t, mux, http.MethodPost, "/api/requests", `{"capability":"weather"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, mux, http.MethodPost, "/api/requests", `{"capability":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, mux, http.MethodGet, "/api/requests?status=sleeping", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, mux, http.MethodGet, "/api/requests/unknown", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestManualAssignMismatch(t *testing.T) {
	mux, ctrl := newServer(t)
	ctx := context.Background()
	_, err := ctrl.RegisterTeam(ctx, dispatch.NewTeam{ID: "med", Name: "Medic 1", Capabilities: []model.Capability{model.CapabilityMedical}, Capacity: 2})
	require.NoError(t, err)

	rr := do(t, mux, http.MethodPost, "/api/requests", `{"capability":"HAZMAT"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	req := decode[model.EmergencyRequest](t, rr)
	assert.Equal(t, model.RequestPending, req.Status)

	rr = do(t, mux, http.MethodPost, "/api/requests/"+req.ID+"/assign", `{"team_id":"med"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, mux, http.MethodPost, "/api/requests/"+req.ID+"/assign", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, mux, http.MethodPost, "/api/requests/"+req.ID+"/auto-assign", "")
	require.Equal(t, http.StatusOK, rr.Code)
	res := decode[autoAssignResponse](t, rr)
	assert.False(t, res.Assigned)
	assert.Equal(t, model.RequestPending, res.Request.Status)

	_, err = ctrl.RegisterTeam(ctx, dispatch.NewTeam{ID: "hz", Name: "Hazmat 1", Capabilities: []model.Capability{model.CapabilityHazmat}, Capacity: 4})
	require.NoError(t, err)
	rr = do(t, mux, http.MethodPost, "/api/requests/"+req.ID+"/auto-assign", "")
	require.Equal(t, http.StatusOK, rr.Code)
	res = decode[autoAssignResponse](t, rr)
	assert.True(t, res.Assigned)
	assert.Equal(t, "hz", res.TeamID)

	rr = do(t, mux, http.MethodPost, "/api/requests/missing/auto-assign", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
