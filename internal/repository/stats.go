package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/ghost-guide/internal/domain"
)

const (
	topN          = 10
	rankingWindow = 7 * 24 * time.Hour
)

// StatsRepository computes the admin dashboard aggregates.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// Dashboard returns catalog totals, engagement over the 24 hours before now
// and click rankings over the last seven days.
func (r *StatsRepository) Dashboard(ctx context.Context, now time.Time) (domain.DashboardStats, error) {
	since := now.UTC().Add(-24 * time.Hour)
	rankSince := now.UTC().Add(-rankingWindow)

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("begin dashboard: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const totals = `
        SELECT
            (SELECT COUNT(*) FROM cards),
            (SELECT COUNT(*) FROM cards WHERE featured),
            (SELECT COUNT(*) FROM watchlist_items),
            (SELECT COUNT(*) FROM lists),
            (SELECT COUNT(*) FROM sessions WHERE started_at >= $1),
            (SELECT COUNT(*) FROM click_events WHERE created_at >= $1)
    `
	var stats domain.DashboardStats
	if err := tx.QueryRow(ctx, totals, since).Scan(
		&stats.Cards,
		&stats.FeaturedCards,
		&stats.WatchlistItems,
		&stats.Lists,
		&stats.Sessions24h,
		&stats.Clicks24h,
	); err != nil {
		return domain.DashboardStats{}, fmt.Errorf("dashboard totals: %w", err)
	}

	const services = `
        SELECT lower(service), lower(service), COUNT(*)
        FROM click_events
        WHERE created_at >= $1
        GROUP BY lower(service)
        ORDER BY COUNT(*) DESC, lower(service) ASC
        LIMIT $2
    `
	if stats.TopServices, err = collectCounts(ctx, tx, services, rankSince, topN); err != nil {
		return domain.DashboardStats{}, fmt.Errorf("top services: %w", err)
	}

	const cards = `
        SELECT c.id, c.title, COUNT(*)
        FROM click_events e
        JOIN cards c ON c.id = e.card_id
        WHERE e.created_at >= $1
        GROUP BY c.id, c.title
        ORDER BY COUNT(*) DESC, c.id ASC
        LIMIT $2
    `
	if stats.TopCards, err = collectCounts(ctx, tx, cards, rankSince, topN); err != nil {
		return domain.DashboardStats{}, fmt.Errorf("top cards: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.DashboardStats{}, fmt.Errorf("commit dashboard: %w", err)
	}
	return stats, nil
}

func collectCounts(ctx context.Context, tx pgx.Tx, query string, args ...interface{}) ([]domain.CountByKey, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CountByKey, error) {
		var c domain.CountByKey
		err := row.Scan(&c.Key, &c.Label, &c.Count)
		return c, err
	})
}
