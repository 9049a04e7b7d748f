// Package store is the persistence layer: an append-only conversation log,
// the per-establishment AI config rows and a raw webhook event log, all on a
// single pgx pool.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/your-org/salon-receptionist/internal/models"
)

type Store struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

func New(pool *pgxpool.Pool, log *logrus.Logger) *Store {
	return &Store{pool: pool, log: log}
}

// AppendMessage inserts a message row and returns its id. The creation
// timestamp is always stamped server-side. Duplicate content is never
// rejected here; idempotence is the caller's job.
func (s *Store) AppendMessage(ctx context.Context, m models.Message) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (establishment_id, phone, direction, kind, content, transcription, processed)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, m.EstablishmentID, m.Phone, m.Direction, m.Kind, m.Content, m.Transcription, m.Processed).Scan(&id)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"establishment": m.EstablishmentID,
			"direction":     m.Direction,
		}).Error("append message failed")
		return 0, err
	}
	return id, nil
}

// RecentHistory returns the most recent limit messages of a conversation in
// chronological (oldest-first) order.
func (s *Store) RecentHistory(ctx context.Context, est uuid.UUID, phone string, limit int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, establishment_id, phone, direction, kind, content, transcription, processed, created_at
		FROM messages
		WHERE establishment_id=$1 AND phone=$2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, est, phone, limit)
	if err != nil {
		s.log.WithError(err).Error("recent history query failed")
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.EstablishmentID, &m.Phone, &m.Direction, &m.Kind,
			&m.Content, &m.Transcription, &m.Processed, &m.CreatedAt); err != nil {
			s.log.WithError(err).Error("recent history scan failed")
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return Chronological(msgs), nil
}

// Chronological reverses a newest-first slice in place to oldest-first.
// Callers of RecentHistory always receive oldest-first.
func Chronological(msgs []models.Message) []models.Message {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs
}

// HasAnyHistory reports whether the (establishment, phone) pair has any prior
// messages. Cheap existence check used for first-contact branching.
func (s *Store) HasAnyHistory(ctx context.Context, est uuid.UUID, phone string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM messages WHERE establishment_id=$1 AND phone=$2)
	`, est, phone).Scan(&exists)
	if err != nil {
		s.log.WithError(err).Error("history existence check failed")
		return false, err
	}
	return exists, nil
}

// HasRecentDuplicate reports whether an identical inbound message was already
// recorded inside the window. Webhook delivery is at-least-once; this is the
// pre-check that suppresses double replies for the same event.
func (s *Store) HasRecentDuplicate(ctx context.Context, est uuid.UUID, phone, content string, window time.Duration) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM messages
			WHERE establishment_id=$1 AND phone=$2 AND direction=$3
			  AND content=$4 AND created_at > now() - make_interval(secs => $5)
		)
	`, est, phone, models.FromClient, content, window.Seconds()).Scan(&exists)
	if err != nil {
		s.log.WithError(err).Error("duplicate check failed")
		return false, err
	}
	return exists, nil
}

// AttachTranscription sets the transcription on the single most recent
// matching inbound audio message. Zero or many candidates, it still updates
// at most one row, newest first. Never a bulk update.
func (s *Store) AttachTranscription(ctx context.Context, est uuid.UUID, phone, content, transcription string) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE messages SET transcription=$5
		WHERE id = (
			SELECT id FROM messages
			WHERE establishment_id=$1 AND phone=$2 AND direction=$3
			  AND kind=$4 AND content=$6
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		)
	`, est, phone, models.FromClient, models.KindAudio, transcription, content)
	if err != nil {
		s.log.WithError(err).Error("attach transcription failed")
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("no matching audio message")
	}
	return nil
}

// MarkProcessed flips the processed flag on a message once its turn finished.
func (s *Store) MarkProcessed(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE messages SET processed=true WHERE id=$1`, id)
	if err != nil {
		s.log.WithError(err).WithField("message_id", id).Error("mark processed failed")
	}
	return err
}

// LogWebhookEvent appends a raw ingress payload to the diagnostics log.
// Best-effort: failures are logged and swallowed, the turn never depends on it.
func (s *Store) LogWebhookEvent(ctx context.Context, est *uuid.UUID, payload []byte) {
	if len(payload) == 0 {
		return
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_events (establishment_id, payload) VALUES ($1, $2)
	`, est, payload); err != nil {
		s.log.WithError(err).Warn("webhook event log write failed")
	}
}

// ResolveConfig fetches the config row for an establishment. found=false means
// no row; the caller distinguishes missing from inactive.
func (s *Store) ResolveConfig(ctx context.Context, est uuid.UUID) (models.AIConfig, bool, error) {
	return s.configRow(ctx, `WHERE establishment_id=$1`, est)
}

// ResolveConfigByInstance routes a raw provider event to its tenant: the
// inbound webhook identifies the source only by transport instance.
func (s *Store) ResolveConfigByInstance(ctx context.Context, instanceID string) (models.AIConfig, bool, error) {
	return s.configRow(ctx, `WHERE instance_id=$1`, instanceID)
}

func (s *Store) configRow(ctx context.Context, where string, arg any) (models.AIConfig, bool, error) {
	var c models.AIConfig
	err := s.pool.QueryRow(ctx, `
		SELECT establishment_id, active, model_api_key, instance_id, instance_token,
		       welcome_message, context_prompt, created_at, updated_at
		FROM establishment_ai_configs `+where, arg,
	).Scan(&c.EstablishmentID, &c.Active, &c.ModelAPIKey, &c.InstanceID, &c.InstanceToken,
		&c.WelcomeMessage, &c.ContextPrompt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AIConfig{}, false, nil
		}
		s.log.WithError(err).Error("config resolve failed")
		return models.AIConfig{}, false, err
	}
	return c, true, nil
}

// UpsertConfig creates or updates the single config row of an establishment.
// Last write wins; config edits are rare admin actions.
func (s *Store) UpsertConfig(ctx context.Context, c models.AIConfig) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO establishment_ai_configs
			(establishment_id, active, model_api_key, instance_id, instance_token,
			 welcome_message, context_prompt, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
		ON CONFLICT (establishment_id) DO UPDATE SET
			active=EXCLUDED.active,
			model_api_key=EXCLUDED.model_api_key,
			instance_id=EXCLUDED.instance_id,
			instance_token=EXCLUDED.instance_token,
			welcome_message=EXCLUDED.welcome_message,
			context_prompt=EXCLUDED.context_prompt,
			updated_at=now()
	`, c.EstablishmentID, c.Active, c.ModelAPIKey, c.InstanceID, c.InstanceToken,
		c.WelcomeMessage, c.ContextPrompt)
	if err != nil {
		s.log.WithError(err).WithField("establishment", c.EstablishmentID).Error("config upsert failed")
	}
	return err
}
