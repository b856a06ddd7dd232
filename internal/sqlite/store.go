package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/blackmichael/subreddit-relay/internal/domain"
)

// Store implements domain.SeenStore and domain.CursorStore using a local
// SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ domain.SeenStore   = (*Store)(nil)
	_ domain.CursorStore = (*Store)(nil)
)

// Open opens (creating if needed) the database at path and ensures the
// schema exists. The caller should call Close when done.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS seen_posts (
			source  TEXT    NOT NULL,
			post_id TEXT    NOT NULL,
			seen_at INTEGER NOT NULL,
			PRIMARY KEY (source, post_id)
		);
		CREATE INDEX IF NOT EXISTS idx_seen_posts_seen_at ON seen_posts(seen_at);

		CREATE TABLE IF NOT EXISTS cursors (
			feed         TEXT PRIMARY KEY,
			cursor_value INTEGER NOT NULL,
			updated_at   INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// IsSeen reports whether the post has been recorded.
func (s *Store) IsSeen(ctx context.Context, key domain.SeenKey) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM seen_posts WHERE source = ? AND post_id = ?`,
		key.Source, key.PostID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query seen post %s/%s: %w", key.Source, key.PostID, err)
	}
	return true, nil
}

// MarkSeen records the post. Marking it again keeps the first timestamp.
func (s *Store) MarkSeen(ctx context.Context, key domain.SeenKey) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO seen_posts (source, post_id, seen_at)
		VALUES (?, ?, ?)
		ON CONFLICT (source, post_id) DO NOTHING`,
		key.Source, key.PostID, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("mark seen %s/%s: %w", key.Source, key.PostID, err)
	}
	return nil
}

// DeleteSeenBefore removes entries recorded before cutoff.
func (s *Store) DeleteSeenBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM seen_posts WHERE seen_at < ?`, cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete seen posts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// GetCursor retrieves the saved cursor for a feed.
func (s *Store) GetCursor(ctx context.Context, feed string) (int64, error) {
	var cursor int64
	err := s.db.QueryRowContext(ctx,
		`SELECT cursor_value FROM cursors WHERE feed = ?`, feed,
	).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return cursor, err
}

// UpdateCursor upserts the cursor for a feed.
func (s *Store) UpdateCursor(ctx context.Context, feed string, cursor int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cursors (feed, cursor_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (feed) DO UPDATE SET cursor_value = excluded.cursor_value, updated_at = excluded.updated_at`,
		feed, cursor, s.now().UnixMilli(),
	)
	return err
}
