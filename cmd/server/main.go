package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"doradori/backend/internal/cache"
	"doradori/backend/internal/config"
	"doradori/backend/internal/httpapi"
	"doradori/backend/internal/service"
	"doradori/backend/internal/store"
	"doradori/backend/internal/store/memory"
	pgstore "doradori/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	configureLogging(cfg, os.Stdout)
	if err := cfg.Validate(); err != nil {
		zlog.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	repo, closeRepo, err := newRepository(ctx, cfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	reports, locker, closeRedis := newCaches(ctx, cfg)
	if closeRedis != nil {
		closers = append(closers, closeRedis)
	}

	svc := service.New(repo, service.Options{
		Cache:    reports,
		Locker:   locker,
		CacheTTL: time.Duration(cfg.ReportCacheTTLSeconds) * time.Second,
		LockTTL:  time.Duration(cfg.WriteLockTTLSeconds) * time.Second,
	})
	api := httpapi.New(svc, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Development:   cfg.Development(),
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zlog.Info().Str("addr", cfg.Address()).Msg("inventory dashboard backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			zlog.Error().Err(err).Msg("close error")
		}
	}

	zlog.Info().Msg("server stopped")
}

func configureLogging(cfg config.Config, out io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "json" {
		zlog.Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	zlog.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
}

// newRepository picks Postgres when DATABASE_URL is set and the seeded
// in-memory store otherwise.
func newRepository(ctx context.Context, cfg config.Config) (store.Repository, func() error, error) {
	if cfg.DatabaseURL == "" {
		zlog.Info().Msg("repository: in-memory")
		return memory.NewSeeded(), nil, nil
	}

	pg, err := pgstore.New(ctx, pgstore.Options{
		DatabaseURL: cfg.DatabaseURL,
		Table:       cfg.TableName,
		View:        cfg.ViewName,
	})
	if err != nil {
		return nil, nil, err
	}
	zlog.Info().Str("table", cfg.TableName).Str("view", cfg.ViewName).Msg("repository: postgres")
	return pg, pg.Close, nil
}

func newCaches(ctx context.Context, cfg config.Config) (cache.ReportCache, cache.Locker, func() error) {
	if cfg.RedisAddr == "" {
		zlog.Info().Msg("cache: noop")
		return cache.NoopReportCache{}, cache.NoopLocker{}, nil
	}

	redisCache := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		zlog.Warn().Err(err).Msg("redis unavailable, using noop cache and lock")
		_ = redisCache.Close()
		return cache.NoopReportCache{}, cache.NoopLocker{}, nil
	}
	zlog.Info().Str("addr", cfg.RedisAddr).Msg("cache: redis")
	return redisCache, redisCache, redisCache.Close
}
