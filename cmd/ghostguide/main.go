package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Clark-Hu/ghost-guide/db"
	"github.com/Clark-Hu/ghost-guide/internal/config"
	"github.com/Clark-Hu/ghost-guide/internal/epg"
	httpserver "github.com/Clark-Hu/ghost-guide/internal/http"
	"github.com/Clark-Hu/ghost-guide/internal/logging"
	"github.com/Clark-Hu/ghost-guide/internal/metadata"
	"github.com/Clark-Hu/ghost-guide/internal/repository"
	"github.com/Clark-Hu/ghost-guide/internal/store"
)

var (
	cfg    config.Config
	logger *zap.Logger

	skipMigrate bool
)

var rootCmd = &cobra.Command{
	Use:   "ghostguide",
	Short: "Horror and sci-fi streaming catalog API",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		logger, err = logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the EPG warmer",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply migrations on startup")
	rootCmd.AddCommand(serveCmd, migrateCmd)
	rootCmd.SilenceUsage = true
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func openStore(ctx context.Context) (*store.Store, error) {
	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return store.New(dbCtx, cfg.DBURL, store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	})
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer st.Close()

	applied, err := store.Migrate(ctx, st.Pool(), db.Migrations, logger)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("migrations complete", zap.Int("applied", applied))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer st.Close()

	if !skipMigrate {
		if _, err := store.Migrate(ctx, st.Pool(), db.Migrations, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// A nil interface disables enrichment; a typed nil would not.
	var meta metadata.Client
	if cfg.MetadataEnabled() {
		client, err := metadata.NewHTTPClient(cfg.OMDBURL, cfg.OMDBAPIKey, time.Duration(cfg.OMDBTimeoutSecs)*time.Second, logger)
		if err != nil {
			return fmt.Errorf("init metadata client: %w", err)
		}
		meta = client
	} else {
		logger.Info("metadata enrichment disabled; OMDB_API_KEY not set")
	}

	pluto, err := epg.NewPlutoClient(cfg.PlutoURL, time.Duration(cfg.PlutoTimeoutSecs)*time.Second, logger)
	if err != nil {
		return fmt.Errorf("init pluto client: %w", err)
	}
	defer pluto.Close()

	keywords, err := epg.LoadKeywords(cfg.EPGKeywordsFile)
	if err != nil {
		return fmt.Errorf("load epg keywords: %w", err)
	}

	ttl := time.Duration(cfg.EPGCacheTTLSecs) * time.Second
	guide := epg.NewGuide(pluto, epg.Options{
		TTL:        ttl,
		Classifier: epg.NewClassifier(keywords),
		Logger:     logger,
	})

	repo := repository.New(st)
	server := httpserver.New(cfg, st, repo, meta, guide, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		return guide.Warm(gctx, ttl)
	})
	g.Go(func() error {
		return epg.WatchKeywords(gctx, cfg.EPGKeywordsFile, guide, logger)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
