package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/v2t/web/internal/auth"
	"github.com/v2t/web/internal/config"
	"github.com/v2t/web/internal/db"
	"github.com/v2t/web/internal/gateway"
	"github.com/v2t/web/internal/handlers"
	"github.com/v2t/web/internal/middleware"
	"github.com/v2t/web/internal/repositories"
	"github.com/v2t/web/internal/storage"
	"github.com/v2t/web/internal/videos"
)

const limiterIdleTTL = 10 * time.Minute

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. A nil pool keeps sessions in memory. The returned cleanup stops
// background workers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backend := gateway.New(cfg.BackendURL, cfg.BackendTimeout, gateway.WithUploadTimeout(cfg.UploadTimeout))

	deps := handlers.Dependencies{
		Auth: auth.NewFlow(backend),
		Videos: func(token string) handlers.VideoClient {
			return backend.WithToken(token)
		},
		AuthLimiter: middleware.NewKeyedRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow, cfg.AuthRateBurst, limiterIdleTTL),
		Poll: videos.PollerConfig{
			Interval:       cfg.PollInterval,
			RequestTimeout: cfg.PollRequestTimeout,
			MaxDuration:    cfg.PollMaxDuration,
		},
		RedirectDelay:  cfg.RedirectDelay,
		MaxUploadBytes: cfg.MaxUploadBytes,
		HealthChecks:   map[string]handlers.HealthCheck{},
	}

	var cleanups []func(context.Context) error

	var store auth.SessionStore
	if pool != nil {
		pgStore := repositories.NewPostgresSessionStore(pool)
		store = pgStore
		stop := startSessionSweeper(pgStore, cfg.SessionSweepInterval, logger)
		cleanups = append(cleanups, func(context.Context) error {
			stop()
			return nil
		})
		deps.HealthChecks["database"] = pool.Ping
	} else {
		logger.Warn("no database configured, sessions are kept in memory")
		store = auth.NewInMemorySessionStore()
	}
	deps.Sessions = auth.NewSessionManager(store, cfg.SessionTTL, cfg.CookieSecure)

	if cfg.ObjectStore.Enabled() {
		s3Storage, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, nil, fmt.Errorf("configure export archive: %w", err)
		}
		archiver := videos.NewExportArchiver(s3Storage, videos.ExportArchiverConfig{
			QueueSize: cfg.ObjectStore.QueueSize,
			Workers:   cfg.ObjectStore.Workers,
		}, logger)
		archiver.OnArchived(func(a videos.ArchivedExport) {
			logger.Info("export archived", "videoId", a.VideoID, "filename", a.Filename, "location", a.Location, "size", a.Size)
		})
		deps.Archive = archiver
		cleanups = append(cleanups, archiver.Shutdown)
	}

	cleanup := func(ctx context.Context) error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	return deps, cleanup, nil
}

type expiredSessionSweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// startSessionSweeper removes expired session rows every interval until the
// returned stop function is called.
func startSessionSweeper(store expiredSessionSweeper, interval time.Duration, logger *slog.Logger) func() {
	if interval <= 0 {
		return func() {}
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := store.DeleteExpired(ctx, time.Now())
				if err != nil {
					logger.Warn("sweep expired sessions", "error", err)
					continue
				}
				if removed > 0 {
					logger.Info("expired sessions removed", "count", removed)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
