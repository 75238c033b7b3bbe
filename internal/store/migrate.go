package store

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Migrate applies every *.up.sql file under the migrations directory of fsys
// in lexical order. Statements are written to be idempotent, so re-running is safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	files, err := fs.Glob(fsys, "migrations/*.up.sql")
	if err != nil {
		return 0, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no migration files found")
	}
	sort.Strings(files)

	for _, path := range files {
		payload, err := fs.ReadFile(fsys, path)
		if err != nil {
			return 0, fmt.Errorf("read migration %s: %w", path, err)
		}
		if _, err := pool.Exec(ctx, string(payload)); err != nil {
			return 0, fmt.Errorf("apply migration %s: %w", path, err)
		}
		logger.Debug("applied migration", zap.String("file", path))
	}
	logger.Info("migrations applied", zap.Int("count", len(files)))
	return len(files), nil
}
