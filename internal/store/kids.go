package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"choreboard/internal/kid"
)

// KidRepo implements kid.Repo on sqlite.
type KidRepo struct {
	db *sql.DB
}

func (r *KidRepo) Create(ctx context.Context, k kid.Kid) (kid.Kid, error) {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	k.CreatedAt = time.Now()

	data, err := json.Marshal(k)
	if err != nil {
		return kid.Kid{}, fmt.Errorf("store: marshal kid: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO kids (id, name, data) VALUES (?, ?, ?)`,
		k.ID, k.Name, string(data))
	if err != nil {
		return kid.Kid{}, fmt.Errorf("store: insert kid %s: %w", k.ID, err)
	}
	return k, nil
}

func (r *KidRepo) Get(ctx context.Context, id string) (kid.Kid, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM kids WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return kid.Kid{}, kid.ErrNotFound
	}
	if err != nil {
		return kid.Kid{}, fmt.Errorf("store: get kid %s: %w", id, err)
	}

	var k kid.Kid
	if err := json.Unmarshal([]byte(data), &k); err != nil {
		return kid.Kid{}, fmt.Errorf("store: decode kid %s: %w", id, err)
	}
	return k, nil
}

func (r *KidRepo) List(ctx context.Context) ([]kid.Kid, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT data FROM kids ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list kids: %w", err)
	}
	defer rows.Close()

	out := []kid.Kid{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var k kid.Kid
		if err := json.Unmarshal([]byte(data), &k); err != nil {
			return nil, fmt.Errorf("store: decode kid: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *KidRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM kids WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete kid %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return kid.ErrNotFound
	}
	return nil
}
