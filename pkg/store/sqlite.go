package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const sqliteSchemaV1 = `
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at_ms INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteStore persists values in a SQLite database. Every operation goes to the
// database so several processes can share one file; CompareAndSwap is a single
// conditional statement.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	feed   *changeFeed
	closed bool
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, errors.New("sqlite store: empty dsn")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{
		db:   db,
		feed: newChangeFeed(),
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		_ = s.feed.close()
		return nil, err
	}
	return s, nil
}

func SQLiteDSNForFile(path string) (string, error) {
	if path == "" {
		return "", errors.New("sqlite store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path), nil
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(sqliteSchemaV1); err != nil {
		return errors.Wrap(err, "sqlite store: could not create schema")
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value string) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO kv (key, value, updated_at_ms)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at_ms = excluded.updated_at_ms`,
		key, value, time.Now().UnixMilli(),
	)
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	s.feed.publish(Change{Key: key, Value: value})
	return nil
}

func (s *SQLiteStore) CompareAndSwap(ctx context.Context, key string, old string, value string) (bool, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return false, ErrClosed
	}

	var res sql.Result
	var err error
	if old == "" {
		// absent and empty both compare equal to ""
		res, err = s.db.ExecContext(
			ctx,
			`INSERT INTO kv (key, value, updated_at_ms)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at_ms = excluded.updated_at_ms
WHERE kv.value = ''`,
			key, value, time.Now().UnixMilli(),
		)
	} else {
		res, err = s.db.ExecContext(
			ctx,
			`UPDATE kv SET value = ?, updated_at_ms = ? WHERE key = ? AND value = ?`,
			value, time.Now().UnixMilli(), key, old,
		)
	}
	s.mu.RUnlock()
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	s.feed.publish(Change{Key: key, Value: value})
	return true, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.feed.publish(Change{Key: key, Deleted: true})
	}
	return nil
}

func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv ORDER BY key ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Subscribe(ctx context.Context) (<-chan Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.feed.subscribe(ctx)
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	feedErr := s.feed.close()
	if err := s.db.Close(); err != nil {
		return err
	}
	return feedErr
}

var _ Store = (*SQLiteStore)(nil)
