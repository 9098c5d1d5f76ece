package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"herald/internal/model"
)

const actionColumns = `id, run_id, ts, engagement_method, action_type, reasoning, confidence,
  target_user, target_tweet_id, target_url, reply_text, engagement_score, success,
  error_message, attempts, likes, replies, retweets, views`

// InsertAction appends one record. Records are never updated or deleted.
func (d *DB) InsertAction(ctx context.Context, r model.ActionRecord) error {
	if r.ID == "" {
		return errors.New("action record without id")
	}
	_, err := d.sql.ExecContext(ctx, d.rebind(`INSERT INTO engagement_actions(`+actionColumns+`)
	  VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		r.ID, r.RunID, r.Timestamp.UTC().UnixMilli(), string(r.Method), string(r.ActionType),
		r.Reasoning, r.Confidence, r.TargetUser, r.TargetTweetID, r.TargetURL, r.ReplyText,
		r.EngagementScore, r.Success, r.ErrorMessage, r.Attempts,
		r.Likes, r.Replies, r.Retweets, r.Views,
	)
	if err != nil {
		return fmt.Errorf("insert action %s: %w", r.ID, err)
	}
	return nil
}

// CountActionsSince counts executed actions (everything but ignore) with
// ts >= since. A non-empty actionType narrows the count to that type.
func (d *DB) CountActionsSince(ctx context.Context, since time.Time, actionType model.ActionKind) (int, error) {
	var row *sql.Row
	if actionType == "" {
		row = d.sql.QueryRowContext(ctx, d.rebind(`SELECT COUNT(*) FROM engagement_actions WHERE ts>=? AND action_type<>?`),
			since.UTC().UnixMilli(), string(model.KindIgnore))
	} else {
		row = d.sql.QueryRowContext(ctx, d.rebind(`SELECT COUNT(*) FROM engagement_actions WHERE ts>=? AND action_type=?`),
			since.UTC().UnixMilli(), string(actionType))
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count actions: %w", err)
	}
	return n, nil
}

// LatestActionFor returns the timestamp of the newest record for targetUser.
func (d *DB) LatestActionFor(ctx context.Context, targetUser string) (time.Time, bool, error) {
	row := d.sql.QueryRowContext(ctx, d.rebind(`SELECT MAX(ts) FROM engagement_actions WHERE target_user=?`), targetUser)
	var ts sql.NullInt64
	if err := row.Scan(&ts); err != nil {
		return time.Time{}, false, fmt.Errorf("latest action for %s: %w", targetUser, err)
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ts.Int64).UTC(), true, nil
}

// ListActions returns records with ts >= since in attempt order, at most limit
// (0 means no limit).
func (d *DB) ListActions(ctx context.Context, since time.Time, limit int) ([]model.ActionRecord, error) {
	q := `SELECT ` + actionColumns + ` FROM engagement_actions WHERE ts>=? ORDER BY seq`
	args := []any{since.UTC().UnixMilli()}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := d.sql.QueryContext(ctx, d.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()
	var out []model.ActionRecord
	for rows.Next() {
		r, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanAction(rows *sql.Rows) (model.ActionRecord, error) {
	var (
		r                               model.ActionRecord
		ts                              int64
		method, action                  string
		reasoning, url, reply, errorMsg sql.NullString
	)
	err := rows.Scan(&r.ID, &r.RunID, &ts, &method, &action, &reasoning, &r.Confidence,
		&r.TargetUser, &r.TargetTweetID, &url, &reply, &r.EngagementScore, &r.Success,
		&errorMsg, &r.Attempts, &r.Likes, &r.Replies, &r.Retweets, &r.Views)
	if err != nil {
		return r, fmt.Errorf("scan action: %w", err)
	}
	r.Timestamp = time.UnixMilli(ts).UTC()
	r.Method = model.Method(method)
	r.ActionType = model.ActionKind(action)
	r.Reasoning = reasoning.String
	r.TargetURL = url.String
	r.ReplyText = reply.String
	r.ErrorMessage = errorMsg.String
	return r, nil
}
