package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/ghost-guide/internal/catalog"
	"github.com/Clark-Hu/ghost-guide/internal/domain"
)

// ListsRepository persists curated and community lists and their items.
type ListsRepository struct {
	pool *pgxpool.Pool
}

const listColumns = `
    l.id::text,
    l.owner_id,
    l.slug,
    l.title,
    l.description,
    l.kind,
    l.is_public,
    (SELECT COUNT(*) FROM list_items li WHERE li.list_id = l.id)::int AS item_count,
    l.created_at,
    l.updated_at
`

// ListCreateParams bundles the fields required to create a list.
type ListCreateParams struct {
	OwnerID     string
	Title       string
	Description string
	Kind        string
	IsPublic    bool
}

// ListPage is one page of public community lists.
type ListPage struct {
	Lists      []domain.List
	TotalCount int64
	NextPage   *int
}

// Create inserts a list with a fresh id and a slug derived from its title.
func (r *ListsRepository) Create(ctx context.Context, p ListCreateParams) (domain.List, error) {
	id := uuid.New()
	slug := Slugify(p.Title) + "-" + strings.ReplaceAll(id.String(), "-", "")[:8]

	const query = `
        INSERT INTO lists (id, owner_id, slug, title, description, kind, is_public)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id::text, owner_id, slug, title, description, kind, is_public, 0 AS item_count, created_at, updated_at
    `

	list, err := scanList(r.pool.QueryRow(ctx, query, id.String(), p.OwnerID, slug, p.Title, p.Description, p.Kind, p.IsPublic))
	if err != nil {
		return domain.List{}, fmt.Errorf("create list: %w", err)
	}
	return list, nil
}

// GetByID fetches a list by id.
func (r *ListsRepository) GetByID(ctx context.Context, id string) (domain.List, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.List{}, ErrNotFound
	}
	return r.getOne(ctx, "l.id = $1", id)
}

// GetBySlug fetches a list by its public slug.
func (r *ListsRepository) GetBySlug(ctx context.Context, slug string) (domain.List, error) {
	return r.getOne(ctx, "l.slug = $1", slug)
}

func (r *ListsRepository) getOne(ctx context.Context, where string, arg interface{}) (domain.List, error) {
	query := fmt.Sprintf(`SELECT %s FROM lists l WHERE %s`, listColumns, where)
	list, err := scanList(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.List{}, ErrNotFound
		}
		return domain.List{}, err
	}
	return list, nil
}

// ListByOwner returns every list owned by ownerID, newest first.
func (r *ListsRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.List, error) {
	query := fmt.Sprintf(`SELECT %s FROM lists l WHERE l.owner_id = $1 ORDER BY l.created_at DESC, l.id ASC`, listColumns)
	return collectLists(ctx, r.pool, query, ownerID)
}

// Community returns one page of public community lists, newest first.
func (r *ListsRepository) Community(ctx context.Context, page int) (ListPage, error) {
	if page < 0 {
		return ListPage{}, fmt.Errorf("%w: page must be non-negative", catalog.ErrInvalidFilter)
	}
	const where = `l.kind = 'community' AND l.is_public`

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return ListPage{}, fmt.Errorf("begin community lists: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var total int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM lists l WHERE `+where).Scan(&total); err != nil {
		return ListPage{}, fmt.Errorf("count community lists: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM lists l WHERE %s ORDER BY l.created_at DESC, l.id ASC LIMIT %d OFFSET %d`,
		listColumns, where, catalog.PageSize, page*catalog.PageSize)
	lists, err := collectLists(ctx, tx, query)
	if err != nil {
		return ListPage{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ListPage{}, fmt.Errorf("commit community lists: %w", err)
	}
	return ListPage{Lists: lists, TotalCount: total, NextPage: catalog.NextPage(page, total)}, nil
}

// Delete removes a list and its items.
func (r *ListsRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Items returns the list's cards in position order.
func (r *ListsRepository) Items(ctx context.Context, listID string) ([]domain.ListItem, error) {
	query := fmt.Sprintf(`
        SELECT li.list_id::text, li.card_id, li.position, li.note, li.added_at, %s
        FROM list_items li
        JOIN cards c ON c.id = li.card_id
        WHERE li.list_id = $1
        ORDER BY li.position ASC, li.added_at ASC, li.card_id ASC
    `, cardColumnsAs("c"))

	rows, err := r.pool.Query(ctx, query, listID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.ListItem, 0)
	for rows.Next() {
		var item domain.ListItem
		card, err := scanCardWithPrefix(rows, &item.ListID, &item.CardID, &item.Position, &item.Note, &item.AddedAt)
		if err != nil {
			return nil, err
		}
		item.Card = &card
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// AddItem appends a card to the list. Adding a card already on the list
// updates its note and reports false.
func (r *ListsRepository) AddItem(ctx context.Context, listID, cardID, note string) (domain.ListItem, bool, error) {
	const query = `
        INSERT INTO list_items (list_id, card_id, position, note)
        SELECT $1, $2, COALESCE(MAX(position) + 1, 0), $3
        FROM list_items
        WHERE list_id = $1
        ON CONFLICT (list_id, card_id) DO UPDATE SET note = EXCLUDED.note
        RETURNING list_id::text, card_id, position, note, added_at, (xmax = 0) AS inserted
    `

	var (
		item     domain.ListItem
		inserted bool
	)
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.ListItem{}, false, fmt.Errorf("begin add list item: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockOwner(ctx, tx, "list_items", listID); err != nil {
		return domain.ListItem{}, false, err
	}

	err = tx.QueryRow(ctx, query, listID, cardID, note).Scan(
		&item.ListID, &item.CardID, &item.Position, &item.Note, &item.AddedAt, &inserted)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ListItem{}, false, ErrNotFound
		}
		return domain.ListItem{}, false, fmt.Errorf("add list item: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE lists SET updated_at = now() WHERE id = $1`, listID); err != nil {
		return domain.ListItem{}, false, fmt.Errorf("touch list: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.ListItem{}, false, fmt.Errorf("commit add list item: %w", err)
	}
	return item, inserted, nil
}

// RemoveItem deletes a card from the list.
func (r *ListsRepository) RemoveItem(ctx context.Context, listID, cardID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM list_items WHERE list_id = $1 AND card_id = $2`, listID, cardID)
	if err != nil {
		return fmt.Errorf("remove list item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reorder rewrites item positions; cardIDs must name exactly the list's cards.
func (r *ListsRepository) Reorder(ctx context.Context, listID string, cardIDs []string) error {
	return reorder(ctx, r.pool, "list_items", "list_id", listID, cardIDs)
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func collectLists(ctx context.Context, q queryer, query string, args ...interface{}) ([]domain.List, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query lists: %w", err)
	}
	defer rows.Close()

	lists := make([]domain.List, 0)
	for rows.Next() {
		list, err := scanList(rows)
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query lists: %w", err)
	}
	return lists, nil
}

func scanList(row pgx.Row) (domain.List, error) {
	var l domain.List
	err := row.Scan(
		&l.ID,
		&l.OwnerID,
		&l.Slug,
		&l.Title,
		&l.Description,
		&l.Kind,
		&l.IsPublic,
		&l.ItemCount,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	return l, err
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases title and collapses every run of other characters to a
// single hyphen. Titles with nothing usable become "list".
func Slugify(title string) string {
	slug := strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(slug) > 48 {
		slug = strings.TrimRight(slug[:48], "-")
	}
	if slug == "" {
		return "list"
	}
	return slug
}
