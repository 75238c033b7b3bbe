package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/ghost-guide/internal/catalog"
	"github.com/Clark-Hu/ghost-guide/internal/domain"
)

// CardsRepository provides read access to the catalog plus the narrow write
// paths used by enrichment and seeding.
type CardsRepository struct {
	pool *pgxpool.Pool
}

var cardColumnNames = []string{
	"id",
	"title",
	"year",
	"genres",
	"runtime",
	"rating",
	"featured",
	"sources",
	"imdb_id",
	"poster_url",
	"plot",
	"director",
	"country",
	"created_at",
	"updated_at",
}

var cardColumns = strings.Join(cardColumnNames, ", ")

// cardColumnsAs qualifies every card column with a table alias for joins.
func cardColumnsAs(alias string) string {
	cols := make([]string, len(cardColumnNames))
	for i, c := range cardColumnNames {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

// CardPage is one page of browse results.
type CardPage struct {
	Cards      []domain.Card
	TotalCount int64
	NextPage   *int
}

// CardUpsertParams carries a full card record as written by ingestion.
type CardUpsertParams struct {
	ID        string
	Title     string
	Year      *int
	Genres    []string
	Runtime   *int
	Rating    *float32
	Featured  bool
	Sources   []domain.Source
	IMDbID    *string
	PosterURL *string
	Plot      *string
	Director  *string
	Country   *string
	CreatedAt *time.Time
}

// CardMetadata holds enrichment values; nil fields leave the column as is.
type CardMetadata struct {
	PosterURL *string
	Plot      *string
	Rating    *float32
	Runtime   *int
	Director  *string
	Country   *string
	Genres    []string
}

// List returns one page of cards matching filters along with the total match
// count. Count and page are read in one repeatable-read snapshot.
func (r *CardsRepository) List(ctx context.Context, filters catalog.Filters) (CardPage, error) {
	q, err := catalog.Build(filters)
	if err != nil {
		return CardPage{}, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return CardPage{}, fmt.Errorf("begin list cards: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var total int64
	if err := tx.QueryRow(ctx, q.CountSQL("cards"), q.Args...).Scan(&total); err != nil {
		return CardPage{}, fmt.Errorf("count cards: %w", err)
	}

	cards := make([]domain.Card, 0, q.Limit)
	if int64(q.Offset) < total {
		rows, err := tx.Query(ctx, q.SelectSQL(cardColumns, "cards"), q.Args...)
		if err != nil {
			return CardPage{}, fmt.Errorf("select cards: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			card, err := scanCard(rows)
			if err != nil {
				return CardPage{}, err
			}
			cards = append(cards, card)
		}
		if err := rows.Err(); err != nil {
			return CardPage{}, fmt.Errorf("select cards: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return CardPage{}, fmt.Errorf("commit list cards: %w", err)
	}

	return CardPage{
		Cards:      cards,
		TotalCount: total,
		NextPage:   catalog.NextPage(filters.Page, total),
	}, nil
}

// GetByID fetches a card by its identifier.
func (r *CardsRepository) GetByID(ctx context.Context, id string) (domain.Card, error) {
	query := fmt.Sprintf(`SELECT %s FROM cards WHERE id = $1`, cardColumns)
	card, err := scanCard(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Card{}, ErrNotFound
		}
		return domain.Card{}, err
	}
	return card, nil
}

// Upsert inserts a card or replaces every field of an existing one.
func (r *CardsRepository) Upsert(ctx context.Context, p CardUpsertParams) (domain.Card, error) {
	sourcesJSON, err := marshalSources(p.Sources)
	if err != nil {
		return domain.Card{}, err
	}
	genres := p.Genres
	if genres == nil {
		genres = []string{}
	}
	createdAt := time.Now().UTC()
	if p.CreatedAt != nil {
		createdAt = *p.CreatedAt
	}

	query := fmt.Sprintf(`
        INSERT INTO cards (id, title, year, genres, runtime, rating, featured, sources,
                           imdb_id, poster_url, plot, director, country, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        ON CONFLICT (id) DO UPDATE SET
            title = EXCLUDED.title,
            year = EXCLUDED.year,
            genres = EXCLUDED.genres,
            runtime = EXCLUDED.runtime,
            rating = EXCLUDED.rating,
            featured = EXCLUDED.featured,
            sources = EXCLUDED.sources,
            imdb_id = EXCLUDED.imdb_id,
            poster_url = EXCLUDED.poster_url,
            plot = EXCLUDED.plot,
            director = EXCLUDED.director,
            country = EXCLUDED.country,
            updated_at = now()
        RETURNING %s
    `, cardColumns)

	row := r.pool.QueryRow(ctx, query, p.ID, p.Title, p.Year, genres, p.Runtime, p.Rating, p.Featured,
		sourcesJSON, p.IMDbID, p.PosterURL, p.Plot, p.Director, p.Country, createdAt)
	return scanCard(row)
}

// FillMetadata writes enrichment values into columns that are still empty.
// Existing non-empty values win; genres are only set when the card has none.
func (r *CardsRepository) FillMetadata(ctx context.Context, id string, m CardMetadata) (domain.Card, error) {
	var genres []string
	if len(m.Genres) > 0 {
		genres = m.Genres
	}
	query := fmt.Sprintf(`
        UPDATE cards
        SET poster_url = COALESCE(NULLIF(poster_url, ''), $2),
            plot = COALESCE(NULLIF(plot, ''), $3),
            rating = COALESCE(NULLIF(rating, 0), $4),
            runtime = COALESCE(NULLIF(runtime, 0), $5),
            director = COALESCE(NULLIF(director, ''), $6),
            country = COALESCE(NULLIF(country, ''), $7),
            genres = CASE WHEN cardinality(genres) = 0 AND $8::text[] IS NOT NULL THEN $8::text[] ELSE genres END,
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, cardColumns)

	card, err := scanCard(r.pool.QueryRow(ctx, query, id, m.PosterURL, m.Plot, m.Rating, m.Runtime, m.Director, m.Country, genres))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Card{}, ErrNotFound
		}
		return domain.Card{}, err
	}
	return card, nil
}

func scanCard(row pgx.Row) (domain.Card, error) {
	return scanCardWithPrefix(row)
}

// scanCardWithPrefix scans rows that select extra columns ahead of the card
// columns, as the watchlist and list item joins do.
func scanCardWithPrefix(row pgx.Row, prefix ...interface{}) (domain.Card, error) {
	var (
		card        domain.Card
		sourcesJSON []byte
	)

	dest := make([]interface{}, 0, len(prefix)+len(cardColumnNames))
	dest = append(dest, prefix...)
	dest = append(dest,
		&card.ID,
		&card.Title,
		&card.Year,
		&card.Genres,
		&card.Runtime,
		&card.Rating,
		&card.Featured,
		&sourcesJSON,
		&card.IMDbID,
		&card.PosterURL,
		&card.Plot,
		&card.Director,
		&card.Country,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return domain.Card{}, err
	}

	if card.Runtime != nil && *card.Runtime == 0 {
		card.Runtime = nil
	}
	if card.Rating != nil && *card.Rating == 0 {
		card.Rating = nil
	}
	if card.Genres == nil {
		card.Genres = []string{}
	}

	card.Sources = []domain.Source{}
	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &card.Sources); err != nil {
			return domain.Card{}, fmt.Errorf("decode sources for %s: %w", card.ID, err)
		}
	}

	return card, nil
}

func marshalSources(sources []domain.Source) ([]byte, error) {
	if sources == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(sources)
}
