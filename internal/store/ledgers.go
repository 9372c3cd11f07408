package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"choreboard/internal/points"
)

// LedgerRepo implements points.Repo on sqlite.
type LedgerRepo struct {
	db *sql.DB
}

func (r *LedgerRepo) Get(ctx context.Context, kidID string) (points.Ledger, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM ledgers WHERE kid_id = ?`, kidID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return points.Ledger{}, points.ErrNotFound
	}
	if err != nil {
		return points.Ledger{}, fmt.Errorf("store: get ledger %s: %w", kidID, err)
	}

	var l points.Ledger
	if err := json.Unmarshal([]byte(data), &l); err != nil {
		return points.Ledger{}, fmt.Errorf("store: decode ledger %s: %w", kidID, err)
	}
	return l, nil
}

func (r *LedgerRepo) Put(ctx context.Context, l points.Ledger) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("store: marshal ledger: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO ledgers (kid_id, data) VALUES (?, ?)
		 ON CONFLICT(kid_id) DO UPDATE SET data = excluded.data`,
		l.KidID, string(data))
	if err != nil {
		return fmt.Errorf("store: put ledger %s: %w", l.KidID, err)
	}
	return nil
}
