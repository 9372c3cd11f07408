package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"choreboard/internal/chore"
)

// ChoreRepo implements chore.Repo on sqlite.
type ChoreRepo struct {
	db *sql.DB
}

func (r *ChoreRepo) Create(ctx context.Context, c chore.Chore) (chore.Chore, error) {
	if err := c.Validate(); err != nil {
		return chore.Chore{}, err
	}

	now := time.Now()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = now
	c.UpdatedAt = now

	data, err := json.Marshal(c)
	if err != nil {
		return chore.Chore{}, fmt.Errorf("store: marshal chore: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO chores (id, name, data) VALUES (?, ?, ?)`,
		c.ID, c.Name, string(data))
	if err != nil {
		return chore.Chore{}, fmt.Errorf("store: insert chore %s: %w", c.ID, err)
	}
	return c, nil
}

func (r *ChoreRepo) Get(ctx context.Context, id string) (chore.Chore, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM chores WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return chore.Chore{}, chore.ErrNotFound
	}
	if err != nil {
		return chore.Chore{}, fmt.Errorf("store: get chore %s: %w", id, err)
	}

	var c chore.Chore
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return chore.Chore{}, fmt.Errorf("store: decode chore %s: %w", id, err)
	}
	return c, nil
}

func (r *ChoreRepo) Update(ctx context.Context, c chore.Chore) (chore.Chore, error) {
	if err := c.Validate(); err != nil {
		return chore.Chore{}, err
	}

	cur, err := r.Get(ctx, c.ID)
	if err != nil {
		return chore.Chore{}, err
	}
	c.CreatedAt = cur.CreatedAt
	c.UpdatedAt = time.Now()

	data, err := json.Marshal(c)
	if err != nil {
		return chore.Chore{}, fmt.Errorf("store: marshal chore: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE chores SET name = ?, data = ? WHERE id = ?`,
		c.Name, string(data), c.ID)
	if err != nil {
		return chore.Chore{}, fmt.Errorf("store: update chore %s: %w", c.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return chore.Chore{}, chore.ErrNotFound
	}
	return c, nil
}

func (r *ChoreRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chores WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete chore %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return chore.ErrNotFound
	}
	return nil
}

func (r *ChoreRepo) List(ctx context.Context) ([]chore.Chore, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT data FROM chores ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list chores: %w", err)
	}
	defer rows.Close()

	out := []chore.Chore{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var c chore.Chore
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, fmt.Errorf("store: decode chore: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
