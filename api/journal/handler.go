// Package journal exposes the event journal via GET /api/journal.
package journal

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/rescue/api"
	"github.com/kilianp07/rescue/core/journal"
	"github.com/kilianp07/rescue/core/model"
)

// Querier reads journal records.
type Querier interface {
	Query(ctx context.Context, q journal.Query) ([]journal.Record, error)
}

// NewHandler returns an HTTP handler accepting start and end (RFC3339),
// request_id, team_id, kind and limit query parameters.
func NewHandler(store Querier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		v := r.URL.Query()
		q := journal.Query{
			RequestID: v.Get("request_id"),
			TeamID:    v.Get("team_id"),
			Kind:      model.EventKind(v.Get("kind")),
		}
		var err error
		if q.Start, err = parseTime(v.Get("start")); err != nil {
			api.BadRequest(w, "start: "+err.Error())
			return
		}
		if q.End, err = parseTime(v.Get("end")); err != nil {
			api.BadRequest(w, "end: "+err.Error())
			return
		}
		if s := v.Get("limit"); s != "" {
			if q.Limit, err = strconv.Atoi(s); err != nil || q.Limit < 0 {
				api.BadRequest(w, "limit must be a non-negative integer")
				return
			}
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []journal.Record{}
		}
		api.WriteJSON(w, http.StatusOK, records)
	})
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
