package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/v2t/web/internal/config"
	"github.com/v2t/web/internal/db"
	"github.com/v2t/web/internal/gateway"
	"github.com/v2t/web/internal/handlers"
	"github.com/v2t/web/internal/httpserver"
	"github.com/v2t/web/internal/logging"
	"github.com/v2t/web/internal/middleware"
	"github.com/v2t/web/internal/models"
	"github.com/v2t/web/internal/videos"
)

// Run bootstraps the V2T web frontend.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, or upload")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	case "upload":
		return runUpload(ctx, args[1:], os.Stdout)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     logging.ParseLevel(cfg.LogLevel),
	}))
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	var pool db.Pool
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pgPool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pgPool.Close()
		pool = pgPool
	}

	deps, cleanup, err := buildDependencies(ctx, pool, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
		defer cancel()
		if err := cleanup(drainCtx); err != nil {
			logger.Warn("background workers did not stop cleanly", "error", err)
		}
	}()

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	handler := middleware.RequestLogger(logger)(middleware.RouteGuard(mux))

	srv := httpserver.New(cfg.AppPort, handler,
		httpserver.WithWriteTimeout(cfg.UploadTimeout),
		httpserver.WithLogger(logger),
	)

	logger.Info("starting http server", "port", cfg.AppPort, "backend", cfg.BackendURL, "persistentSessions", pool != nil)

	return srv.Serve(ctx, logger)
}

func runMigrations(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("V2T_DATABASE_URL is required for migrations")
	}

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}

	migrationDir := cfg.MigrationDir
	if !filepath.IsAbs(migrationDir) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		migrationDir = filepath.Join(wd, migrationDir)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	migrator := db.NewMigrator(migrationDir, conn)
	migrator.Logf = func(format string, args ...any) {
		fmt.Printf(format+"\n", args...)
	}

	switch command {
	case "status":
		statuses, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			mark := " "
			if s.Applied {
				mark = "x"
			}
			fmt.Printf("[%s] %s\n", mark, s.Name)
		}
		return nil
	case "up", "":
		applied, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Println("no migrations to apply")
			return nil
		}
		for _, name := range applied {
			fmt.Printf("applied migration %s\n", name)
		}
		return nil
	case "down":
		return errors.New("down migrations are not supported yet")
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
}

// runUpload sends a local file with the token in V2T_TOKEN and follows its
// processing status until it settles.
func runUpload(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("expected path of the video to upload")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	token := strings.TrimSpace(os.Getenv("V2T_TOKEN"))
	if token == "" {
		return errors.New("V2T_TOKEN is required for uploads")
	}

	slog.SetDefault(newLogger(cfg))

	client := gateway.New(cfg.BackendURL, cfg.BackendTimeout, gateway.WithUploadTimeout(cfg.UploadTimeout)).WithToken(token)
	return uploadAndWait(ctx, client, args[0], videos.PollerConfig{
		Interval:       cfg.PollInterval,
		RequestTimeout: cfg.PollRequestTimeout,
		MaxDuration:    cfg.PollMaxDuration,
	}, out)
}

type uploadClient interface {
	videos.StatusFetcher
	Upload(ctx context.Context, filename, contentType string, r io.Reader) (models.VideoUpload, error)
}

func uploadAndWait(ctx context.Context, client uploadClient, path string, poll videos.PollerConfig, out io.Writer) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat video: %w", err)
	}

	name := filepath.Base(path)
	contentType := contentTypeFor(name)
	if err := videos.ValidateUpload(name, contentType, info.Size()); err != nil {
		if message, ok := videos.ValidationMessage(err); ok {
			return errors.New(message)
		}
		return err
	}

	uploaded, err := client.Upload(ctx, name, contentType, file)
	if err != nil {
		return errors.New(gateway.Message(err, "Upload failed. Please try again."))
	}
	fmt.Fprintf(out, "uploaded %s as %s\n", uploaded.Filename, uploaded.VideoID)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	final := videos.NewPoller(client, poll).Run(ctx, uploaded.VideoID, func(update videos.PollUpdate) {
		fmt.Fprintf(out, "[%s] %3d%% %s\n", update.State, videos.ClampProgress(update.Status.Progress), update.Message())
	})

	if final.State != videos.StateDone {
		return fmt.Errorf("video %s %s: %s", uploaded.VideoID, final.State, final.Message())
	}
	fmt.Fprintf(out, "results ready: /dashboard/video/%s/results\n", uploaded.VideoID)
	return nil
}

func contentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct := mime.TypeByExtension(ext); strings.HasPrefix(ct, "video/") {
		return ct
	}
	if ext == "" {
		return "application/octet-stream"
	}
	return "video/" + strings.TrimPrefix(ext, ".")
}
