package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaSQL mirrors migrations/001_init.sql
const schemaSQL = `
CREATE TABLE IF NOT EXISTS establishment_ai_configs (
  id BIGSERIAL PRIMARY KEY,
  establishment_id UUID NOT NULL UNIQUE,
  active BOOLEAN NOT NULL DEFAULT false,
  model_api_key TEXT NOT NULL DEFAULT '',
  instance_id TEXT NOT NULL UNIQUE,
  instance_token TEXT NOT NULL DEFAULT '',
  welcome_message TEXT NOT NULL DEFAULT '',
  context_prompt TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
  id BIGSERIAL PRIMARY KEY,
  establishment_id UUID NOT NULL,
  phone TEXT NOT NULL,          -- canonical: bare digits, country-prefixed
  direction TEXT NOT NULL,      -- from_client | from_system
  kind TEXT NOT NULL,           -- text | audio | image | video | document
  content TEXT NOT NULL,
  transcription TEXT NULL,      -- audio only, attached after creation
  processed BOOLEAN NOT NULL DEFAULT false,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
  ON messages (establishment_id, phone, created_at DESC);

-- Raw ingress payloads, append-only, diagnostics only. No uniqueness.
CREATE TABLE IF NOT EXISTS webhook_events (
  id BIGSERIAL PRIMARY KEY,
  establishment_id UUID NULL,
  payload JSONB NOT NULL,
  received_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// AutoMigrate applies the schema on startup.
func AutoMigrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaSQL)
	return err
}
