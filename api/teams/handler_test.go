package teams

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

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestRegisterAndQuery(t *testing.T) {
	mux, _ := newServer(t)
	rr := do(mux, http.MethodPost, "/api/teams", `{"id":"t1","name":"Ladder 7","capabilities":["fire","rescue"],"capacity":6}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var team model.RescueTeam
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&team))
	assert.Equal(t, model.TeamAvailable, team.Status)
	assert.True(t, team.Capabilities.Has(model.CapabilityRescue))

	rr = do(mux, http.MethodPost, "/api/teams", `{"id":"t1","name":"Again","capabilities":["fire"],"capacity":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = do(mux, http.MethodPost, "/api/teams", `{"name":"No caps","capabilities":[],"capacity":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(mux, http.MethodGet, "/api/teams?capability=rescue", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []model.RescueTeam
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	assert.Len(t, list, 1)

	rr = do(mux, http.MethodGet, "/api/teams?status=OFF_DUTY", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = do(mux, http.MethodGet, "/api/teams/none", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdates(t *testing.T) {
	mux, ctrl := newServer(t)
	ctx := context.Background()
	_, err := ctrl.RegisterTeam(ctx, dispatch.NewTeam{ID: "t1", Name: "Medic 2", Capabilities: []model.Capability{model.CapabilityMedical}, Capacity: 2})
	require.NoError(t, err)

	rr := do(mux, http.MethodPut, "/api/teams/t1/location", `{"location":"Harbour"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Harbour")

	rr = do(mux, http.MethodPut, "/api/teams/t1/capabilities", `{"capabilities":["MEDICAL","ACCIDENT"]}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(mux, http.MethodPut, "/api/teams/t1/duty", `{"status":"EN_ROUTE"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	rr = do(mux, http.MethodPut, "/api/teams/t1/duty", `{"status":"nap"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = do(mux, http.MethodPut, "/api/teams/t1/duty", `{"status":"OFF_DUTY"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	got, err := ctrl.GetTeam(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.TeamOffDuty, got.Status)
	assert.True(t, got.Capabilities.Has(model.CapabilityAccident))

	rr = do(mux, http.MethodDelete, "/api/teams/t1", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = do(mux, http.MethodDelete, "/api/teams/t1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
