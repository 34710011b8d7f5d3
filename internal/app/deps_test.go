package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/v2t/web/internal/config"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Ping(context.Context) error { return nil }

func (fakePool) Close() {}

type pingPool struct {
	fakePool
	err error
}

func (p pingPool) Ping(context.Context) error { return p.err }

func TestBuildDependencies(t *testing.T) {
	cfg := config.Config{
		BackendURL:           "http://localhost:8000",
		BackendTimeout:       time.Second,
		SessionTTL:           time.Hour,
		SessionSweepInterval: time.Minute,
		AuthRateLimit:        10,
		AuthRateWindow:       time.Minute,
		AuthRateBurst:        5,
		ObjectStore:          config.ObjectStoreConfig{Bucket: "test-bucket", Endpoint: "http://localhost:9000", Region: "us-east-1"},
	}

	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	deps, cleanup, err := buildDependencies(context.Background(), pingPool{err: errors.New("down")}, cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleanup == nil {
		t.Fatal("expected cleanup function")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := cleanup(ctx); err != nil {
			t.Errorf("cleanup: %v", err)
		}
	}()

	if deps.Sessions == nil {
		t.Fatal("expected session manager to be configured")
	}
	if deps.Auth == nil {
		t.Fatal("expected auth flow to be configured")
	}
	if deps.Videos == nil || deps.Videos("tok") == nil {
		t.Fatal("expected video client factory to be configured")
	}
	if deps.AuthLimiter == nil {
		t.Fatal("expected auth rate limiter to be configured")
	}
	if deps.Archive == nil {
		t.Fatal("expected export archive to be configured")
	}
	check, ok := deps.HealthChecks["database"]
	if !ok {
		t.Fatal("expected database health check")
	}
	if err := check(context.Background()); err == nil {
		t.Fatal("expected health check to surface ping error")
	}
}

func TestBuildDependenciesWithoutDatabaseOrArchive(t *testing.T) {
	deps, cleanup, err := buildDependencies(context.Background(), nil, config.Config{BackendURL: "http://localhost:8000"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup(context.Background())

	if deps.Sessions == nil {
		t.Fatal("expected in-memory session manager")
	}
	if deps.Archive != nil {
		t.Fatal("expected archive disabled without a bucket")
	}
	if len(deps.HealthChecks) != 0 {
		t.Fatalf("unexpected health checks %v", deps.HealthChecks)
	}
}

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) DeleteExpired(context.Context, time.Time) (int64, error) {
	s.calls.Add(1)
	return 1, nil
}

func TestSessionSweeperRunsUntilStopped(t *testing.T) {
	sweeper := &countingSweeper{}
	stop := startSessionSweeper(sweeper, 5*time.Millisecond, nil)

	deadline := time.Now().Add(2 * time.Second)
	for sweeper.calls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}

	stop()
	after := sweeper.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if sweeper.calls.Load() != after {
		t.Fatal("sweeper kept running after stop")
	}
}
