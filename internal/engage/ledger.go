package engage

import (
	"context"
	"time"

	"herald/internal/config"
	"herald/internal/model"
)

// ActionLog is the read side of the durable action log.
type ActionLog interface {
	CountActionsSince(ctx context.Context, since time.Time, actionType model.ActionKind) (int, error)
	LatestActionFor(ctx context.Context, targetUser string) (time.Time, bool, error)
}

// Ledger answers budget and cooldown questions from the action log. It keeps
// no counters of its own, so every answer reflects what has been recorded.
// Now is replaceable for tests.
type Ledger struct {
	log ActionLog
	cfg config.EngagementConfig

	Now func() time.Time
}

func NewLedger(log ActionLog, cfg config.EngagementConfig) *Ledger {
	return &Ledger{log: log, cfg: cfg, Now: time.Now}
}

// CanPerformActions checks the daily (since UTC midnight) and trailing-hour
// caps. Ignore records do not count; a cap of 0 is disabled.
func (l *Ledger) CanPerformActions(ctx context.Context) (bool, error) {
	return l.withinCaps(ctx, "", l.cfg.MaxPerHour, l.cfg.MaxPerDay)
}

// AllowsAction applies the optional per-type budget for kind.
func (l *Ledger) AllowsAction(ctx context.Context, kind model.ActionKind) (bool, error) {
	b, ok := l.cfg.PerType[string(kind)]
	if !ok || kind == model.KindIgnore {
		return true, nil
	}
	return l.withinCaps(ctx, kind, b.MaxPerHour, b.MaxPerDay)
}

func (l *Ledger) withinCaps(ctx context.Context, kind model.ActionKind, perHour, perDay int) (bool, error) {
	now := l.Now().UTC()
	if perDay > 0 {
		startDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		n, err := l.log.CountActionsSince(ctx, startDay, kind)
		if err != nil {
			return false, err
		}
		if n >= perDay {
			return false, nil
		}
	}
	if perHour > 0 {
		n, err := l.log.CountActionsSince(ctx, now.Add(-time.Hour), kind)
		if err != nil {
			return false, err
		}
		if n >= perHour {
			return false, nil
		}
	}
	return true, nil
}

// HasRecentlyEngaged is true iff the newest record of any type for
// targetUser is younger than cooldown. Handles compare without case or "@".
func (l *Ledger) HasRecentlyEngaged(ctx context.Context, targetUser string, cooldown time.Duration) (bool, error) {
	ts, ok, err := l.log.LatestActionFor(ctx, normalizeHandle(targetUser))
	if err != nil || !ok {
		return false, err
	}
	return l.Now().Sub(ts) < cooldown, nil
}
