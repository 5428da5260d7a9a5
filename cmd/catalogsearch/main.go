package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/dshills/catalogsearch-mcp/internal/config"
	"github.com/dshills/catalogsearch-mcp/internal/httpapi"
	"github.com/dshills/catalogsearch-mcp/internal/importer"
	"github.com/dshills/catalogsearch-mcp/internal/log"
	"github.com/dshills/catalogsearch-mcp/internal/mcp"
	"github.com/dshills/catalogsearch-mcp/internal/querycache"
	"github.com/dshills/catalogsearch-mcp/internal/searcher"
	"github.com/dshills/catalogsearch-mcp/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version information and exit")
	configPath := flag.String("config", "", "path to a YAML config file (default: ./config.yaml if present)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage:\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  %s [flags]                serve the catalog (stdio MCP or HTTP)\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "  %s [flags] import <path>  import catalog JSON files and exit\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("Catalog Search Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		l := log.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		l := log.L()
		l.Fatal().Err(err).Msg("invalid config")
	}

	log.Init(cfg.Log)
	logger := log.L()
	logger.Info().
		Str("version", version).
		Str("build_mode", storage.BuildMode).
		Str("driver", storage.DriverName).
		Str("transport", cfg.Server.Transport).
		Msg("catalog search server starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flag.Arg(0) == "import" {
		if flag.NArg() != 2 {
			flag.Usage()
			os.Exit(2)
		}
		if err := runImport(ctx, cfg, logger, flag.Arg(1)); err != nil {
			logger.Fatal().Err(err).Msg("import failed")
		}
		return
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("server stopped")
}

// openStorage opens the catalog database, creating its directory if needed
func openStorage(cfg *config.Config) (*storage.SQLiteStorage, error) {
	if dir := filepath.Dir(cfg.Database.Path); dir != "." && cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

// runImport loads catalog files into the database and flushes the shared
// query cache so servers stop returning stale results.
func runImport(ctx context.Context, cfg *config.Config, logger zerolog.Logger, path string) error {
	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var opts []importer.Option
	flush, cleanup, err := sharedCacheFlush(cfg, store, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	if flush != nil {
		opts = append(opts, importer.WithAfterImport(flush))
	}

	stats, err := importer.New(store, opts...).ImportPath(log.WithLogger(ctx, logger), path, nil)
	if err != nil {
		return err
	}

	for _, msg := range stats.ErrorMessages {
		logger.Warn().Msg(msg)
	}
	logger.Info().
		Int("files_imported", stats.FilesImported).
		Int("files_failed", stats.FilesFailed).
		Int("universities", stats.Universities).
		Int("faculties", stats.Faculties).
		Int("courses", stats.Courses).
		Int("courses_skipped", stats.CoursesSkipped).
		Dur("duration", stats.Duration).
		Msg("import complete")

	if stats.FilesFailed > 0 {
		return fmt.Errorf("%d catalog file(s) failed to import", stats.FilesFailed)
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	cache, err := newCacheStore(cfg, logger)
	if err != nil {
		return err
	}

	opts := []searcher.Option{
		searcher.WithConfig(searcher.Config{
			MinQueryLength:      cfg.Search.MinQueryLength,
			MinCacheQueryLength: cfg.Cache.MinQueryLength,
			DefaultLimit:        cfg.Search.DefaultLimit,
			MaxLimit:            cfg.Search.MaxLimit,
			RankCandidateLimit:  cfg.Search.RankCandidateLimit,
			BackendTimeout:      cfg.Search.BackendTimeout,
		}),
		searcher.WithMetrics(searcher.NewMetrics(prometheus.DefaultRegisterer)),
	}
	if cache != nil {
		defer func() { _ = cache.Close() }()
		opts = append(opts, searcher.WithStore(cache))
	}
	srch := searcher.New(store, opts...)

	switch cfg.Server.Transport {
	case config.TransportHTTP:
		return serveHTTP(ctx, cfg, logger, store, srch)
	default:
		server, err := mcp.NewServer(store, srch, version)
		if err != nil {
			return fmt.Errorf("failed to create MCP server: %w", err)
		}
		logger.Info().Msg("MCP server ready, listening on stdio")
		err = server.Serve(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

// sharedCacheFlush returns a hook that flushes the query cache running
// servers share. Only Redis is shared: in-process caches live inside each
// server and are untouched by this process, so no hook is returned for them.
func sharedCacheFlush(cfg *config.Config, store storage.Storage, logger zerolog.Logger) (func(context.Context) error, func(), error) {
	noop := func() {}
	if !cfg.Cache.Enabled || cfg.Cache.Backend != config.BackendRedis {
		logger.Info().Msg("no shared query cache configured; in-process server caches keep entries until their TTL expires")
		return nil, noop, nil
	}

	cache, err := newCacheStore(cfg, logger)
	if err != nil {
		return nil, noop, err
	}
	cleanup := func() { _ = cache.Close() }
	if _, ok := cache.(*querycache.RedisStore); !ok {
		logger.Warn().Msg("shared query cache unreachable; servers keep cached entries until their TTL expires")
		return nil, cleanup, nil
	}

	srch := searcher.New(store, searcher.WithStore(cache))
	return srch.ClearCache, cleanup, nil
}

// newCacheStore builds the configured query cache. A nil store disables
// caching. An unreachable Redis degrades to the in-process store.
func newCacheStore(cfg *config.Config, logger zerolog.Logger) (querycache.Store, error) {
	if !cfg.Cache.Enabled {
		logger.Info().Msg("query cache disabled")
		return nil, nil
	}

	ttl := cfg.Cache.EffectiveTTL()

	if cfg.Cache.Backend == config.BackendRedis {
		redisStore, err := querycache.NewRedisStore(querycache.RedisOptions{
			URL:      cfg.Redis.URL,
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      ttl,
		})
		if err == nil {
			logger.Info().Str("prefix", cfg.Redis.Prefix).Dur("ttl", ttl).Msg("redis query cache connected")
			return redisStore, nil
		}
		logger.Warn().Err(err).Msg("redis unavailable, falling back to in-memory query cache")
	}

	memStore, err := querycache.NewMemoryStore(cfg.Cache.Capacity, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}
	logger.Info().Int("capacity", cfg.Cache.Capacity).Dur("ttl", ttl).Msg("in-memory query cache ready")
	return memStore, nil
}

func serveHTTP(ctx context.Context, cfg *config.Config, logger zerolog.Logger, store storage.Storage, srch *searcher.Searcher) error {
	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(httpapi.NewHandler(store, srch), logger, prometheus.DefaultGatherer)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info().Msg("shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
