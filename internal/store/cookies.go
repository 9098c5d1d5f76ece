package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetCookies returns the serialized cookies saved under key.
func (d *DB) GetCookies(ctx context.Context, key string) (string, bool, error) {
	row := d.sql.QueryRowContext(ctx, d.rebind(`SELECT cookies FROM browser_sessions WHERE session_key=?`), key)
	var v string
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get cookies %s: %w", key, err)
	}
	return v, true, nil
}

// SetCookies stores serialized cookies under key; last writer wins.
func (d *DB) SetCookies(ctx context.Context, key, cookies string) error {
	_, err := d.sql.ExecContext(ctx, d.rebind(`INSERT INTO browser_sessions(session_key, cookies, updated_at) VALUES(?,?,?)
	  ON CONFLICT(session_key) DO UPDATE SET cookies=excluded.cookies, updated_at=excluded.updated_at`),
		key, cookies, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("set cookies %s: %w", key, err)
	}
	return nil
}
