package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/ghost-guide/internal/domain"
)

// WatchlistRepository stores each user's ordered set of saved cards.
type WatchlistRepository struct {
	pool *pgxpool.Pool
}

// List returns the user's watchlist in position order with cards attached.
func (r *WatchlistRepository) List(ctx context.Context, userID string) ([]domain.WatchlistItem, error) {
	query := fmt.Sprintf(`
        SELECT w.user_id, w.card_id, w.position, w.added_at, %s
        FROM watchlist_items w
        JOIN cards c ON c.id = w.card_id
        WHERE w.user_id = $1
        ORDER BY w.position ASC, w.added_at ASC, w.card_id ASC
    `, cardColumnsAs("c"))

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	defer rows.Close()

	items := make([]domain.WatchlistItem, 0)
	for rows.Next() {
		item, err := scanWatchlistItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	return items, nil
}

// Add appends a card to the end of the user's watchlist. The boolean reports
// whether a new row was created; adding a saved card again is a no-op.
func (r *WatchlistRepository) Add(ctx context.Context, userID, cardID string) (domain.WatchlistItem, bool, error) {
	const insert = `
        INSERT INTO watchlist_items (user_id, card_id, position)
        SELECT $1, $2, COALESCE(MAX(position) + 1, 0)
        FROM watchlist_items
        WHERE user_id = $1
        ON CONFLICT (user_id, card_id) DO NOTHING
        RETURNING user_id, card_id, position, added_at
    `

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.WatchlistItem{}, false, fmt.Errorf("begin add watchlist item: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockOwner(ctx, tx, "watchlist_items", userID); err != nil {
		return domain.WatchlistItem{}, false, err
	}

	var item domain.WatchlistItem
	err = tx.QueryRow(ctx, insert, userID, cardID).Scan(&item.UserID, &item.CardID, &item.Position, &item.AddedAt)
	switch {
	case err == nil:
		if err := tx.Commit(ctx); err != nil {
			return domain.WatchlistItem{}, false, fmt.Errorf("commit add watchlist item: %w", err)
		}
		return item, true, nil
	case isForeignKeyViolation(err):
		return domain.WatchlistItem{}, false, ErrNotFound
	case !errors.Is(err, pgx.ErrNoRows):
		return domain.WatchlistItem{}, false, fmt.Errorf("add watchlist item: %w", err)
	}

	const existing = `
        SELECT user_id, card_id, position, added_at
        FROM watchlist_items
        WHERE user_id = $1 AND card_id = $2
    `
	if err := tx.QueryRow(ctx, existing, userID, cardID).Scan(&item.UserID, &item.CardID, &item.Position, &item.AddedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.WatchlistItem{}, false, ErrNotFound
		}
		return domain.WatchlistItem{}, false, fmt.Errorf("load watchlist item: %w", err)
	}
	return item, false, nil
}

// Remove deletes a card from the user's watchlist.
func (r *WatchlistRepository) Remove(ctx context.Context, userID, cardID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM watchlist_items WHERE user_id = $1 AND card_id = $2`, userID, cardID)
	if err != nil {
		return fmt.Errorf("remove watchlist item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reorder rewrites positions so cardIDs appear in the given order. cardIDs
// must name exactly the cards currently on the watchlist.
func (r *WatchlistRepository) Reorder(ctx context.Context, userID string, cardIDs []string) error {
	return reorder(ctx, r.pool, "watchlist_items", "user_id", userID, cardIDs)
}

// reorder is shared by watchlists and lists; table and ownerColumn are
// compile-time constants, never user input.
func reorder(ctx context.Context, pool *pgxpool.Pool, table, ownerColumn string, owner interface{}, cardIDs []string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockOwner(ctx, tx, table, fmt.Sprint(owner)); err != nil {
		return err
	}

	rows, err := tx.Query(ctx, fmt.Sprintf(`SELECT card_id FROM %s WHERE %s = $1 FOR UPDATE`, table, ownerColumn), owner)
	if err != nil {
		return fmt.Errorf("lock items: %w", err)
	}
	current, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("lock items: %w", err)
	}

	if !sameSet(current, cardIDs) {
		return ErrOrderMismatch
	}

	update := fmt.Sprintf(`
        UPDATE %s AS t
        SET position = o.ord - 1
        FROM unnest($2::text[]) WITH ORDINALITY AS o(card_id, ord)
        WHERE t.%s = $1 AND t.card_id = o.card_id
    `, table, ownerColumn)
	if _, err := tx.Exec(ctx, update, owner, cardIDs); err != nil {
		return fmt.Errorf("update positions: %w", err)
	}
	return tx.Commit(ctx)
}

// lockOwner serializes position writes for one owner of table until tx ends.
// Appends compute MAX(position)+1, which row locks alone cannot protect.
func lockOwner(ctx context.Context, tx pgx.Tx, table, owner string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, table+":"+owner); err != nil {
		return fmt.Errorf("lock %s owner: %w", table, err)
	}
	return nil
}

func sameSet(current, requested []string) bool {
	if len(current) != len(requested) {
		return false
	}
	seen := make(map[string]struct{}, len(current))
	for _, id := range current {
		seen[id] = struct{}{}
	}
	for _, id := range requested {
		if _, ok := seen[id]; !ok {
			return false
		}
		delete(seen, id)
	}
	return len(seen) == 0
}

func scanWatchlistItem(row pgx.Row) (domain.WatchlistItem, error) {
	var item domain.WatchlistItem
	card, err := scanCardWithPrefix(row, &item.UserID, &item.CardID, &item.Position, &item.AddedAt)
	if err != nil {
		return domain.WatchlistItem{}, err
	}
	item.Card = &card
	return item, nil
}
