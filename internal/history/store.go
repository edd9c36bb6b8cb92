package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	_ "modernc.org/sqlite"

	logx "automat/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Config configures the tick history store.
type Config struct {
	// Path is the SQLite database file. Required.
	Path string

	// Retention is how long tick rows are kept. 0 means the default (24h).
	Retention time.Duration

	// PruneSpec is a cron spec (robfig/cron, descriptors allowed) for the
	// retention sweep. Empty means "@hourly".
	PruneSpec string

	// BusyTimeout for sqlite; 0 means default.
	BusyTimeout time.Duration
}

// Record is one published tick.
type Record struct {
	Seq     uint64
	At      time.Time
	Payload []byte // JSON-encoded output
}

// Store appends published ticks to sqlite and prunes them past retention.
type Store struct {
	db  *sql.DB
	log logx.Logger

	retention time.Duration
	c         *cron.Cron
}

// Open creates (or opens) the database, applies migrations, and starts the
// retention cron.
func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("history: sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	retention := cfg.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	s := &Store{db: db, log: log, retention: retention}

	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	spec := strings.TrimSpace(cfg.PruneSpec)
	if spec == "" {
		spec = "@hourly"
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, s.pruneJob); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: invalid prune_spec %q: %w", spec, err)
	}
	c.Start()
	s.c = c

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

// Close stops the retention cron and closes the database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append records one published tick.
func (s *Store) Append(ctx context.Context, r Record) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ticks(seq, at, payload) VALUES(?,?,?)`,
		int64(r.Seq), r.At.UTC().Format(time.RFC3339Nano), r.Payload,
	)
	return err
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, at, payload FROM ticks ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			seq int64
			at  string
			p   []byte
		)
		if err := rows.Scan(&seq, &at, &p); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("history: bad timestamp %q: %w", at, err)
		}
		out = append(out, Record{Seq: uint64(seq), At: t, Payload: p})
	}
	return out, rows.Err()
}

// Count returns the number of stored ticks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ticks`).Scan(&n)
	return n, err
}

// Prune deletes records older than the retention horizon.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.retention).UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `DELETE FROM ticks WHERE at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *Store) pruneJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := s.Prune(ctx)
	if err != nil {
		s.log.Warn("history prune failed", logx.Err(err))
		return
	}
	if n > 0 {
		s.log.Debug("history pruned", logx.Int64("rows", n))
	}
}
