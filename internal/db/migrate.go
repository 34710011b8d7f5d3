package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	migrationMaxRetries  = 3
	migrationBaseBackoff = 100 * time.Millisecond
	migrationMaxBackoff  = 3 * time.Second
)

var retryablePgErrorCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

// MigrationStatus reports whether a migration file has been applied.
type MigrationStatus struct {
	Name    string
	Applied bool
}

// Migrator applies the *.sql files of a directory in lexical order, recording
// each one in schema_migrations.
type Migrator struct {
	dir  string
	conn *pgxpool.Conn
	// Logf receives progress lines. Defaults to a no-op.
	Logf func(format string, args ...any)
}

// NewMigrator binds a migration directory to an acquired connection.
func NewMigrator(dir string, conn *pgxpool.Conn) *Migrator {
	return &Migrator{dir: dir, conn: conn, Logf: func(string, ...any) {}}
}

// ListMigrations returns the .sql file names in dir, sorted.
func ListMigrations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var migrations []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		migrations = append(migrations, entry.Name())
	}
	sort.Strings(migrations)
	return migrations, nil
}

// Status lists every migration with its applied flag.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	migrations, err := ListMigrations(m.dir)
	if err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(migrations))
	for _, name := range migrations {
		_, ok := applied[name]
		statuses = append(statuses, MigrationStatus{Name: name, Applied: ok})
	}
	return statuses, nil
}

// Up applies every pending migration and returns the names applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	migrations, err := ListMigrations(m.dir)
	if err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, name := range migrations {
		if _, ok := applied[name]; ok {
			continue
		}

		contents, err := os.ReadFile(filepath.Join(m.dir, name))
		if err != nil {
			return done, fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := m.applyWithRetry(ctx, name, string(contents)); err != nil {
			return done, err
		}
		done = append(done, name)
	}
	return done, nil
}

func (m *Migrator) applied(ctx context.Context) (map[string]struct{}, error) {
	if _, err := m.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
                version TEXT PRIMARY KEY,
                applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	rows, err := m.conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("fetch applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

func (m *Migrator) applyWithRetry(ctx context.Context, name, contents string) error {
	for attempt := 0; attempt < migrationMaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, migrationBackoff(attempt)); err != nil {
				return err
			}
		}

		err := m.applyOnce(ctx, name, contents)
		if err == nil {
			return nil
		}
		if !shouldRetryMigration(err) || attempt == migrationMaxRetries-1 {
			return err
		}
		m.Logf("transient error applying migration %s (attempt %d/%d): %v\n", name, attempt+1, migrationMaxRetries, err)
	}
	return fmt.Errorf("apply migration %s: exceeded max retries (%d)", name, migrationMaxRetries)
}

func (m *Migrator) applyOnce(ctx context.Context, name, contents string) error {
	tx, err := m.conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin migration transaction for %s: %w", name, err)
	}

	if _, err := tx.Exec(ctx, contents); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

func migrationBackoff(attempt int) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt-1))) * migrationBaseBackoff
	if backoff > migrationMaxBackoff {
		backoff = migrationMaxBackoff
	}
	return backoff
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func shouldRetryMigration(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, pgx.ErrTxClosed) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := retryablePgErrorCodes[pgErr.Code]
		return ok
	}
	return false
}
