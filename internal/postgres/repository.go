package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/blackmichael/subreddit-relay/internal/domain"
)

// Repository implements domain.SeenStore and domain.CursorStore using
// PostgreSQL.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ domain.SeenStore   = (*Repository)(nil)
	_ domain.CursorStore = (*Repository)(nil)
)

// NewRepository connects to PostgreSQL at the given URL, verifies the
// connection, ensures the schema exists, and returns a new Repository. The
// caller should call Close when the repository is no longer needed.
func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := newRepository(db)
	if err := r.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func newRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS seen_posts (
			source  TEXT        NOT NULL,
			post_id TEXT        NOT NULL,
			seen_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (source, post_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_seen_posts_seen_at ON seen_posts (seen_at)`,
		`CREATE TABLE IF NOT EXISTS cursors (
			feed         TEXT PRIMARY KEY,
			cursor_value BIGINT      NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// IsSeen reports whether the post has been recorded.
func (r *Repository) IsSeen(ctx context.Context, key domain.SeenKey) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM seen_posts WHERE source = $1 AND post_id = $2)`,
		key.Source, key.PostID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query seen post %s/%s: %w", key.Source, key.PostID, err)
	}
	return exists, nil
}

// MarkSeen records the post. Marking it again keeps the first timestamp.
func (r *Repository) MarkSeen(ctx context.Context, key domain.SeenKey) error {
	query := `
		INSERT INTO seen_posts (source, post_id, seen_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (source, post_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, key.Source, key.PostID, r.now().UTC()); err != nil {
		return fmt.Errorf("mark seen %s/%s: %w", key.Source, key.PostID, err)
	}
	return nil
}

// DeleteSeenBefore removes entries recorded before cutoff. Returns the number
// of rows deleted.
func (r *Repository) DeleteSeenBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM seen_posts WHERE seen_at < $1`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete seen posts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// GetCursor retrieves the saved cursor for a feed.
func (r *Repository) GetCursor(ctx context.Context, feed string) (int64, error) {
	var cursor int64
	err := r.db.QueryRowContext(ctx,
		`SELECT cursor_value FROM cursors WHERE feed = $1`, feed,
	).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return cursor, err
}

// UpdateCursor upserts the cursor for a feed.
func (r *Repository) UpdateCursor(ctx context.Context, feed string, cursor int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cursors (feed, cursor_value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (feed) DO UPDATE SET cursor_value = $2, updated_at = $3`,
		feed, cursor, r.now().UTC(),
	)
	return err
}
