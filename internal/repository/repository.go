package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/ghost-guide/internal/store"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrOrderMismatch indicates a reorder request does not name exactly the current items.
	ErrOrderMismatch = errors.New("repository: order does not match current items")
)

// Repository aggregates all domain-specific repositories.
type Repository struct {
	Cards     *CardsRepository
	Watchlist *WatchlistRepository
	Lists     *ListsRepository
	Events    *EventsRepository
	Stats     *StatsRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{
		Cards:     &CardsRepository{pool: pool},
		Watchlist: &WatchlistRepository{pool: pool},
		Lists:     &ListsRepository{pool: pool},
		Events:    &EventsRepository{pool: pool},
		Stats:     &StatsRepository{pool: pool},
	}
}

const pgForeignKeyViolation = "23503"

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}
