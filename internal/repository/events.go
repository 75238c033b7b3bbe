package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/ghost-guide/internal/domain"
)

// EventsRepository records browsing sessions and click-outs.
type EventsRepository struct {
	pool *pgxpool.Pool
}

const sessionColumns = `id::text, user_id, user_agent, referrer, started_at, last_seen_at, ended_at`

// SessionStartParams describes a new browsing session.
type SessionStartParams struct {
	UserID    *string
	UserAgent string
	Referrer  string
}

// ClickParams describes a click-out to a streaming service.
type ClickParams struct {
	SessionID *string
	CardID    string
	Service   string
	Link      string
}

// StartSession opens a new session and returns it with its generated id.
func (r *EventsRepository) StartSession(ctx context.Context, p SessionStartParams) (domain.Session, error) {
	query := `
        INSERT INTO sessions (id, user_id, user_agent, referrer)
        VALUES ($1, $2, $3, $4)
        RETURNING ` + sessionColumns

	s, err := scanSession(r.pool.QueryRow(ctx, query, uuid.NewString(), p.UserID, p.UserAgent, p.Referrer))
	if err != nil {
		return domain.Session{}, fmt.Errorf("start session: %w", err)
	}
	return s, nil
}

// TouchSession records activity on an open session.
func (r *EventsRepository) TouchSession(ctx context.Context, id string, at time.Time) (domain.Session, error) {
	return r.updateSession(ctx, id, `last_seen_at = GREATEST(last_seen_at, $2)`, at)
}

// EndSession closes a session. Ending an already closed session keeps the
// first end time.
func (r *EventsRepository) EndSession(ctx context.Context, id string, at time.Time) (domain.Session, error) {
	return r.updateSession(ctx, id, `last_seen_at = GREATEST(last_seen_at, $2), ended_at = COALESCE(ended_at, $2)`, at)
}

func (r *EventsRepository) updateSession(ctx context.Context, id, set string, at time.Time) (domain.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Session{}, ErrNotFound
	}
	query := fmt.Sprintf(`UPDATE sessions SET %s WHERE id = $1 RETURNING %s`, set, sessionColumns)
	s, err := scanSession(r.pool.QueryRow(ctx, query, id, at.UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("update session: %w", err)
	}
	return s, nil
}

// RecordClick stores a click-out. Unknown cards or sessions yield ErrNotFound.
func (r *EventsRepository) RecordClick(ctx context.Context, p ClickParams) (domain.ClickEvent, error) {
	if p.SessionID != nil {
		if _, err := uuid.Parse(*p.SessionID); err != nil {
			return domain.ClickEvent{}, ErrNotFound
		}
	}
	const query = `
        INSERT INTO click_events (id, session_id, card_id, service, link)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id::text, session_id::text, card_id, service, link, created_at
    `
	var ev domain.ClickEvent
	err := r.pool.QueryRow(ctx, query, uuid.NewString(), p.SessionID, p.CardID, p.Service, p.Link).Scan(
		&ev.ID, &ev.SessionID, &ev.CardID, &ev.Service, &ev.Link, &ev.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ClickEvent{}, ErrNotFound
		}
		return domain.ClickEvent{}, fmt.Errorf("record click: %w", err)
	}
	return ev, nil
}

func scanSession(row pgx.Row) (domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.UserAgent, &s.Referrer, &s.StartedAt, &s.LastSeenAt, &s.EndedAt)
	return s, err
}
