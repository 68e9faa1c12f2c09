// Package pubsub implements the channel-addressed event bus: durable
// subscriptions and a time-ordered, append-only message log delivered by
// polling (spec.md §4.5). It is grounded on the teacher's message
// repository (internal/message/repository.go) for the append/scan shape,
// generalized from a single "messages" table to a channel-keyed log plus a
// subscriptions table.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/loomctl/loom/internal/channel"
	"github.com/loomctl/loom/internal/permission"
)

// Message is a single entry in the durable message log.
type Message struct {
	ID        int64
	Channel   string
	Action    string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Store is the persistence surface for publish/subscribe.
type Store interface {
	Publish(ctx context.Context, ch channel.Channel, action string, payload json.RawMessage) error
	Subscribe(ctx context.Context, userID uuid.UUID, ch channel.Channel) error
	Unsubscribe(ctx context.Context, userID uuid.UUID, ch channel.Channel) error
	UnsubscribeAll(ctx context.Context, userID uuid.UUID) error
	GetSubscribers(ctx context.Context, ch channel.Channel) ([]uuid.UUID, error)
	GetMessages(ctx context.Context, userID uuid.UUID, since, until time.Time) ([]Message, error)
	PermissionsRemoved(ctx context.Context, resolver PermissionChecker) error
	PurgeExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

// PermissionChecker lets PermissionsRemoved re-check each subscription
// against the caller's current grants without pubsub importing the
// permission resolver's concrete type.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID string, perm permission.Permission) (bool, error)
}

// PGStore implements Store using PostgreSQL. Publish retries transient
// failures with exponential backoff, mirroring the resilience the teacher
// gives its Valkey cache calls elsewhere in the codebase. PublishTx, the
// append the atomic-dispatch guarantee depends on, does not retry.
type PGStore struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewPGStore creates a new PostgreSQL-backed pub/sub store.
func NewPGStore(db *pgxpool.Pool, logger zerolog.Logger) *PGStore {
	return &PGStore{db: db, log: logger}
}

// Publish appends one entry to the durable message log for ch. Callers that
// need atomic-dispatch semantics (append in the same transaction as the
// write that produced the event) should use PublishTx instead; Publish is
// for fire-and-forget server-initiated notifications with no accompanying
// write.
func (s *PGStore) Publish(ctx context.Context, ch channel.Channel, action string, payload json.RawMessage) error {
	op := func() error {
		_, err := s.db.Exec(ctx, `
			INSERT INTO message_log (channel, action, payload, created_at)
			VALUES ($1, $2, $3, $4)
		`, ch.String(), action, payload, time.Now().UTC())
		return err
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("publish to %s: %w", ch.String(), err)
	}
	return nil
}

// PublishTx appends to the message log using tx, so the append lives inside
// the caller's transaction. This is how WithDispatch achieves the atomic
// write-plus-dispatch invariant: no retry wrapper here, since a failed
// append must roll the whole transaction back, not be retried in place.
func (s *PGStore) PublishTx(ctx context.Context, tx pgx.Tx, ch channel.Channel, action string, payload json.RawMessage) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO message_log (channel, action, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, ch.String(), action, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("publish to %s: %w", ch.String(), err)
	}
	return nil
}

func (s *PGStore) Subscribe(ctx context.Context, userID uuid.UUID, ch channel.Channel) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO subscriptions (user_id, channel) VALUES ($1, $2)
		ON CONFLICT (user_id, channel) DO NOTHING
	`, userID, ch.String())
	if err != nil {
		return fmt.Errorf("subscribe %s to %s: %w", userID, ch.String(), err)
	}
	return nil
}

func (s *PGStore) Unsubscribe(ctx context.Context, userID uuid.UUID, ch channel.Channel) error {
	_, err := s.db.Exec(ctx, `DELETE FROM subscriptions WHERE user_id = $1 AND channel = $2`, userID, ch.String())
	if err != nil {
		return fmt.Errorf("unsubscribe %s from %s: %w", userID, ch.String(), err)
	}
	return nil
}

func (s *PGStore) UnsubscribeAll(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM subscriptions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("unsubscribe all for %s: %w", userID, err)
	}
	return nil
}

func (s *PGStore) GetSubscribers(ctx context.Context, ch channel.Channel) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id FROM subscriptions WHERE channel = $1`, ch.String())
	if err != nil {
		return nil, fmt.Errorf("query subscribers of %s: %w", ch.String(), err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// GetMessages returns every message logged in (since, until] on a channel
// the user is subscribed to. A session calls this on every delivery poll
// tick with since set to its last delivery cursor and until set to
// now-MessageLag, so a row committed just before "now" but observed by a
// clock running slightly ahead of the database's is never skipped
// (spec.md §4.3, MESSAGE_LAG).
func (s *PGStore) GetMessages(ctx context.Context, userID uuid.UUID, since, until time.Time) ([]Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT m.id, m.channel, m.action, m.payload, m.created_at
		FROM message_log m
		JOIN subscriptions s ON s.channel = m.channel AND s.user_id = $1
		WHERE m.created_at > $2 AND m.created_at <= $3
		ORDER BY m.id ASC
	`, userID, since, until)
	if err != nil {
		return nil, fmt.Errorf("query messages for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Channel, &m.Action, &m.Payload, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PurgeExpired deletes every message_log row older than olderThan, returning
// how many rows were removed. A session that has been disconnected longer
// than the configured retention window loses any guarantee of exactly-once
// delivery for messages published during the gap (spec.md §4.4); it must
// resynchronize rather than assume GetMessages still has its history.
func (s *PGStore) PurgeExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM message_log WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge expired messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PermissionsRemoved purges every subscription whose channel's required
// permission the subscriber no longer holds, and every subscription whose
// channel string no longer parses.
func (s *PGStore) PermissionsRemoved(ctx context.Context, resolver PermissionChecker) error {
	rows, err := s.db.Query(ctx, `SELECT user_id, channel FROM subscriptions`)
	if err != nil {
		return fmt.Errorf("query all subscriptions: %w", err)
	}

	type sub struct {
		userID uuid.UUID
		ch     string
	}
	var subs []sub
	for rows.Next() {
		var sb sub
		if err := rows.Scan(&sb.userID, &sb.ch); err != nil {
			rows.Close()
			return fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sb)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate subscriptions: %w", err)
	}

	for _, sb := range subs {
		ch, err := channel.Parse(sb.ch)
		if err != nil {
			s.log.Warn().Str("channel", sb.ch).Err(err).Msg("unparseable subscription channel, dropping")
			if _, err := s.db.Exec(ctx, `DELETE FROM subscriptions WHERE user_id = $1 AND channel = $2`, sb.userID, sb.ch); err != nil {
				return fmt.Errorf("drop unparseable subscription: %w", err)
			}
			continue
		}
		allowed, err := resolver.HasPermission(ctx, sb.userID.String(), ch.RequiredPermission())
		if err != nil {
			return fmt.Errorf("check permission for %s on %s: %w", sb.userID, sb.ch, err)
		}
		if !allowed {
			if _, err := s.db.Exec(ctx, `DELETE FROM subscriptions WHERE user_id = $1 AND channel = $2`, sb.userID, sb.ch); err != nil {
				return fmt.Errorf("revoke subscription: %w", err)
			}
		}
	}
	return nil
}
