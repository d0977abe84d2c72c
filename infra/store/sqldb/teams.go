package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kilianp07/rescue/core/model"
	"github.com/kilianp07/rescue/core/store"
)

const teamColumns = `t.id, t.name, t.capacity, t.status, t.location, t.equipment,
        t.current_request, t.created_at, t.updated_at, c.capability`

func (s *Store) GetTeam(ctx context.Context, id string) (model.RescueTeam, error) {
	teams, err := s.queryTeams(ctx, "t.id = ?", id)
	if err != nil {
		return model.RescueTeam{}, err
	}
	if len(teams) == 0 {
		return model.RescueTeam{}, fmt.Errorf("team %s: %w", id, store.ErrNotFound)
	}
	return teams[0], nil
}

func (s *Store) FindAvailableTeams(ctx context.Context, c model.Capability) ([]model.RescueTeam, error) {
	return s.queryTeams(ctx,
		"t.status = ? AND t.id IN (SELECT team_id FROM team_capabilities WHERE capability = ?)",
		string(model.TeamAvailable), string(c))
}

func (s *Store) ListTeams(ctx context.Context, f store.TeamFilter) ([]model.RescueTeam, error) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		conds = append(conds, "t.status = ?")
		args = append(args, string(f.Status))
	}
	if f.Capability != "" {
		conds = append(conds, "t.id IN (SELECT team_id FROM team_capabilities WHERE capability = ?)")
		args = append(args, string(f.Capability))
	}
	where := "1 = 1"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}
	return s.queryTeams(ctx, where, args...)
}

// queryTeams joins capabilities so one round trip loads whole teams. Rows
// arrive grouped by team in capacity/id order.
func (s *Store) queryTeams(ctx context.Context, where string, args ...any) ([]model.RescueTeam, error) {
	q := `SELECT ` + teamColumns + `
        FROM teams t LEFT JOIN team_capabilities c ON c.team_id = t.id
        WHERE ` + where + `
        ORDER BY t.capacity DESC, t.id ASC`
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var res []model.RescueTeam
	for rows.Next() {
		var (
			t                model.RescueTeam
			status           string
			created, updated int64
			capability       sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.Capacity, &status, &t.CurrentLocation, &t.Equipment,
			&t.CurrentRequest, &created, &updated, &capability); err != nil {
			return nil, err
		}
		if n := len(res); n == 0 || res[n-1].ID != t.ID {
			t.Status = model.TeamStatus(status)
			t.CreatedAt = fromNanos(created)
			t.UpdatedAt = fromNanos(updated)
			t.Capabilities = model.NewCapabilitySet()
			res = append(res, t)
		}
		if capability.Valid {
			res[len(res)-1].Capabilities[model.Capability(capability.String)] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) CreateTeam(ctx context.Context, t model.RescueTeam) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		ok, err := s.exists(ctx, tx, "teams", t.ID)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("team %s: %w", t.ID, store.ErrDuplicate)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO teams
            (id, name, capacity, status, location, equipment, current_request, created_at, updated_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			t.ID, t.Name, t.Capacity, string(t.Status), t.CurrentLocation, t.Equipment,
			t.CurrentRequest, nanos(t.CreatedAt), nanos(t.UpdatedAt)); err != nil {
			return err
		}
		return s.writeCapabilities(ctx, tx, t)
	})
}

func (s *Store) SaveTeam(ctx context.Context, t model.RescueTeam, expected store.TeamState) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`UPDATE teams SET
            name = ?, capacity = ?, status = ?, location = ?, equipment = ?,
            current_request = ?, updated_at = ?
            WHERE id = ? AND status = ? AND current_request = ?`),
			t.Name, t.Capacity, string(t.Status), t.CurrentLocation, t.Equipment,
			t.CurrentRequest, nanos(t.UpdatedAt), t.ID, string(expected.Status), expected.Request)
		if err != nil {
			return err
		}
		if err := s.conditional(ctx, tx, res, "team", "teams", t.ID, expected.String()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM team_capabilities WHERE team_id = ?`), t.ID); err != nil {
			return err
		}
		return s.writeCapabilities(ctx, tx, t)
	})
}

func (s *Store) writeCapabilities(ctx context.Context, tx *sql.Tx, t model.RescueTeam) error {
	for _, c := range t.Capabilities.Slice() {
		if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO team_capabilities (team_id, capability) VALUES (?, ?)`),
			t.ID, string(c)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) DeleteTeam(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM teams WHERE id = ?`), id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("team %s: %w", id, store.ErrNotFound)
		}
		_, err = tx.ExecContext(ctx, s.rebind(`DELETE FROM team_capabilities WHERE team_id = ?`), id)
		return err
	})
}
