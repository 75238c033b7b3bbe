package store_test

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/Clark-Hu/ghost-guide/db"
	"github.com/Clark-Hu/ghost-guide/internal/store"
	"github.com/Clark-Hu/ghost-guide/internal/store/storetest"
)

func TestMigrateIsRepeatable(t *testing.T) {
	pool := storetest.NewPool(t, "ghost_store_test")

	applied, err := store.Migrate(context.Background(), pool, db.Migrations, nil)
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if applied < 4 {
		t.Fatalf("applied = %d, want at least 4", applied)
	}

	var keys, services []string
	err = pool.QueryRow(context.Background(), `
        INSERT INTO cards (id, title, genres, sources)
        VALUES ('t1', 'Trigger Test', ARRAY['Horror', ' horror ', 'Sci-Fi'],
                '[{"service":"Netflix"},{"service":" Shudder "},{"service":""}]'::jsonb)
        RETURNING genre_keys, service_names
    `).Scan(&keys, &services)
	if err != nil {
		t.Fatalf("insert card: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("genre_keys = %v, want 2 distinct keys", keys)
	}
	if len(services) != 2 || services[0] != "netflix" || services[1] != "shudder" {
		t.Fatalf("service_names = %v, want [netflix shudder]", services)
	}
}

func TestMigrateRankIndexesMatchOrderBy(t *testing.T) {
	pool := storetest.NewPool(t, "ghost_store_index_test")
	ctx := context.Background()

	defs := map[string]string{}
	rows, err := pool.Query(ctx, `SELECT indexname, indexdef FROM pg_indexes WHERE tablename = 'cards'`)
	if err != nil {
		t.Fatalf("list indexes: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, def string
		if err := rows.Scan(&name, &def); err != nil {
			t.Fatalf("scan index: %v", err)
		}
		defs[name] = def
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("list indexes: %v", err)
	}

	if _, ok := defs["cards_relevance_idx"]; ok {
		t.Fatalf("raw rating relevance index still present")
	}
	for name, want := range map[string]string{
		"cards_relevance_rank_idx": "NULLIF(rating",
		"cards_rating_rank_idx":    "NULLIF(rating",
		"cards_title_rank_idx":     "lower(title)",
	} {
		def, ok := defs[name]
		if !ok {
			t.Fatalf("index %s missing", name)
		}
		if !strings.Contains(def, want) {
			t.Fatalf("index %s = %q, want it keyed on %s", name, def, want)
		}
	}
}

func TestMigrateRequiresFiles(t *testing.T) {
	if _, err := store.Migrate(context.Background(), nil, fstest.MapFS{}, nil); err == nil {
		t.Fatalf("expected error for empty migration set")
	}
}
