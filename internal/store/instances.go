package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"choreboard/internal/instance"
)

// InstanceRepo implements instance.Repo on sqlite. The due_at column holds
// an RFC 3339 UTC timestamp (or NULL) so listing can order in SQL.
type InstanceRepo struct {
	db *sql.DB
}

func dueColumn(in instance.Instance) any {
	if in.DueAt == nil {
		return nil
	}
	return in.DueAt.UTC().Format(time.RFC3339Nano)
}

func (r *InstanceRepo) Create(ctx context.Context, in instance.Instance) (instance.Instance, error) {
	now := time.Now()
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.State == "" {
		in.State = instance.StatePending
	}
	if in.PeriodStart.IsZero() {
		in.PeriodStart = now
	}
	if in.Claims == nil {
		in.Claims = map[string]instance.Claim{}
	}
	in.CreatedAt = now
	in.UpdatedAt = now

	data, err := json.Marshal(in)
	if err != nil {
		return instance.Instance{}, fmt.Errorf("store: marshal instance: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO instances (id, chore_id, kid_id, state, due_at, data)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		in.ID, in.ChoreID, in.KidID, string(in.State), dueColumn(in), string(data))
	if err != nil {
		return instance.Instance{}, fmt.Errorf("store: insert instance %s: %w", in.ID, err)
	}
	return in, nil
}

func (r *InstanceRepo) Get(ctx context.Context, id string) (instance.Instance, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM instances WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return instance.Instance{}, instance.ErrNotFound
	}
	if err != nil {
		return instance.Instance{}, fmt.Errorf("store: get instance %s: %w", id, err)
	}
	return decodeInstance(data)
}

func (r *InstanceRepo) Update(ctx context.Context, in instance.Instance) (instance.Instance, error) {
	cur, err := r.Get(ctx, in.ID)
	if err != nil {
		return instance.Instance{}, err
	}
	in.CreatedAt = cur.CreatedAt
	in.UpdatedAt = time.Now()
	if in.Claims == nil {
		in.Claims = map[string]instance.Claim{}
	}

	data, err := json.Marshal(in)
	if err != nil {
		return instance.Instance{}, fmt.Errorf("store: marshal instance: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE instances SET chore_id = ?, kid_id = ?, state = ?, due_at = ?, data = ?
		 WHERE id = ?`,
		in.ChoreID, in.KidID, string(in.State), dueColumn(in), string(data), in.ID)
	if err != nil {
		return instance.Instance{}, fmt.Errorf("store: update instance %s: %w", in.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return instance.Instance{}, instance.ErrNotFound
	}
	return in, nil
}

func (r *InstanceRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM instances WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete instance %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return instance.ErrNotFound
	}
	return nil
}

func (r *InstanceRepo) List(ctx context.Context, f instance.ListFilter) ([]instance.Instance, error) {
	var (
		where []string
		args  []any
	)
	if f.ChoreID != "" {
		where = append(where, "chore_id = ?")
		args = append(args, f.ChoreID)
	}
	if f.KidID != "" {
		where = append(where, "kid_id = ?")
		args = append(args, f.KidID)
	}
	if len(f.States) > 0 {
		ph := make([]string, len(f.States))
		for i, s := range f.States {
			ph[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "state IN ("+strings.Join(ph, ", ")+")")
	}

	q := `SELECT data FROM instances`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += ` ORDER BY due_at IS NULL, due_at, id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list instances: %w", err)
	}
	defer rows.Close()

	out := []instance.Instance{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		in, err := decodeInstance(data)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func decodeInstance(data string) (instance.Instance, error) {
	var in instance.Instance
	if err := json.Unmarshal([]byte(data), &in); err != nil {
		return instance.Instance{}, fmt.Errorf("store: decode instance: %w", err)
	}
	if in.Claims == nil {
		in.Claims = map[string]instance.Claim{}
	}
	return in, nil
}
