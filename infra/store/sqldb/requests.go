package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/rescue/core/model"
	"github.com/kilianp07/rescue/core/store"
)

const requestColumns = `id, capability, priority, status, description, location,
        latitude, longitude, victim_name, victim_phone, created_by, resolution_notes,
        assigned_team, created_at, updated_at, assigned_at, responded_at, completed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(sc scanner) (model.EmergencyRequest, error) {
	var (
		r                              model.EmergencyRequest
		capability, priority, status   string
		lat, lng                       sql.NullFloat64
		created, updated               int64
		assigned, responded, completed sql.NullInt64
	)
	if err := sc.Scan(&r.ID, &capability, &priority, &status, &r.Description, &r.Location,
		&lat, &lng, &r.VictimName, &r.VictimPhone, &r.CreatedBy, &r.ResolutionNotes,
		&r.AssignedTeam, &created, &updated, &assigned, &responded, &completed); err != nil {
		return model.EmergencyRequest{}, err
	}
	r.Capability = model.Capability(capability)
	r.Priority = model.Priority(priority)
	r.Status = model.RequestStatus(status)
	r.Latitude = floatPtr(lat)
	r.Longitude = floatPtr(lng)
	r.CreatedAt = fromNanos(created)
	r.UpdatedAt = fromNanos(updated)
	r.AssignedAt = timePtr(assigned)
	r.RespondedAt = timePtr(responded)
	r.CompletedAt = timePtr(completed)
	return r, nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (model.EmergencyRequest, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+requestColumns+` FROM requests WHERE id = ?`), id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.EmergencyRequest{}, fmt.Errorf("request %s: %w", id, store.ErrNotFound)
	}
	return r, err
}

func (s *Store) ListRequests(ctx context.Context, f store.RequestFilter) ([]model.EmergencyRequest, error) {
	var (
		conds []string
		args  []any
	)
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		conds = append(conds, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if f.TeamID != "" {
		conds = append(conds, "assigned_team = ?")
		args = append(args, f.TeamID)
	}
	if f.Capability != "" {
		conds = append(conds, "capability = ?")
		args = append(args, string(f.Capability))
	}
	q := `SELECT ` + requestColumns + ` FROM requests`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := []model.EmergencyRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (s *Store) CreateRequest(ctx context.Context, r model.EmergencyRequest) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		ok, err := s.exists(ctx, tx, "requests", r.ID)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("request %s: %w", r.ID, store.ErrDuplicate)
		}
		_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO requests (`+requestColumns+`)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			r.ID, string(r.Capability), string(r.Priority), string(r.Status), r.Description, r.Location,
			nullFloat(r.Latitude), nullFloat(r.Longitude), r.VictimName, r.VictimPhone, r.CreatedBy,
			r.ResolutionNotes, r.AssignedTeam, nanos(r.CreatedAt), nanos(r.UpdatedAt),
			nullNanos(r.AssignedAt), nullNanos(r.RespondedAt), nullNanos(r.CompletedAt))
		return err
	})
}

func (s *Store) SaveRequest(ctx context.Context, r model.EmergencyRequest, expected model.RequestStatus) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`UPDATE requests SET
            capability = ?, priority = ?, status = ?, description = ?, location = ?,
            latitude = ?, longitude = ?, victim_name = ?, victim_phone = ?, created_by = ?,
            resolution_notes = ?, assigned_team = ?, updated_at = ?,
            assigned_at = ?, responded_at = ?, completed_at = ?
            WHERE id = ? AND status = ?`),
			string(r.Capability), string(r.Priority), string(r.Status), r.Description, r.Location,
			nullFloat(r.Latitude), nullFloat(r.Longitude), r.VictimName, r.VictimPhone, r.CreatedBy,
			r.ResolutionNotes, r.AssignedTeam, nanos(r.UpdatedAt),
			nullNanos(r.AssignedAt), nullNanos(r.RespondedAt), nullNanos(r.CompletedAt),
			r.ID, string(expected))
		if err != nil {
			return err
		}
		return s.conditional(ctx, tx, res, "request", "requests", r.ID, string(expected))
	})
}
