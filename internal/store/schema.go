package store

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS engagement_actions (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  run_id TEXT NOT NULL,
  ts INTEGER NOT NULL,
  engagement_method TEXT NOT NULL,
  action_type TEXT NOT NULL,
  reasoning TEXT,
  confidence REAL NOT NULL DEFAULT 0,
  target_user TEXT NOT NULL,
  target_tweet_id TEXT NOT NULL,
  target_url TEXT,
  reply_text TEXT,
  engagement_score REAL NOT NULL DEFAULT 0,
  success BOOLEAN NOT NULL,
  error_message TEXT,
  attempts INTEGER NOT NULL DEFAULT 0,
  likes INTEGER NOT NULL DEFAULT 0,
  replies INTEGER NOT NULL DEFAULT 0,
  retweets INTEGER NOT NULL DEFAULT 0,
  views INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_actions_ts ON engagement_actions(ts);
CREATE INDEX IF NOT EXISTS idx_actions_user_ts ON engagement_actions(target_user, ts);
CREATE TABLE IF NOT EXISTS browser_sessions (
  session_key TEXT PRIMARY KEY,
  cookies TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS engagement_actions (
  seq BIGSERIAL PRIMARY KEY,
  id TEXT NOT NULL UNIQUE,
  run_id TEXT NOT NULL,
  ts BIGINT NOT NULL,
  engagement_method TEXT NOT NULL,
  action_type TEXT NOT NULL,
  reasoning TEXT,
  confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
  target_user TEXT NOT NULL,
  target_tweet_id TEXT NOT NULL,
  target_url TEXT,
  reply_text TEXT,
  engagement_score DOUBLE PRECISION NOT NULL DEFAULT 0,
  success BOOLEAN NOT NULL,
  error_message TEXT,
  attempts INTEGER NOT NULL DEFAULT 0,
  likes BIGINT NOT NULL DEFAULT 0,
  replies BIGINT NOT NULL DEFAULT 0,
  retweets BIGINT NOT NULL DEFAULT 0,
  views BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_actions_ts ON engagement_actions(ts);
CREATE INDEX IF NOT EXISTS idx_actions_user_ts ON engagement_actions(target_user, ts);
CREATE TABLE IF NOT EXISTS browser_sessions (
  session_key TEXT PRIMARY KEY,
  cookies TEXT NOT NULL,
  updated_at BIGINT NOT NULL
);
`
