package sqlite

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/cognicore/reviewtopics/pkg/reviewtopics/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS reviews (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT NOT NULL,
	dominant_topic INTEGER NOT NULL,
	topic_label TEXT
);

CREATE INDEX IF NOT EXISTS idx_reviews_topic ON reviews(dominant_topic);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// InsertReviews inserts reviews in a single transaction
func (s *sqliteStore) InsertReviews(ctx context.Context, reviews []store.Review) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO reviews (text, dominant_topic, topic_label) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range reviews {
		if _, err := stmt.ExecContext(ctx, r.Text, r.DominantTopic, r.TopicLabel); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Head returns the first n reviews
func (s *sqliteStore) Head(ctx context.Context, n int) ([]store.Review, error) {
	if n <= 0 {
		return []store.Review{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, text, dominant_topic, COALESCE(topic_label, '')
FROM reviews
ORDER BY id
LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	return scanReviews(rows)
}

// ReviewsByTopic returns up to limit reviews with the given dominant topic
func (s *sqliteStore) ReviewsByTopic(ctx context.Context, topic int, limit int) ([]store.Review, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, text, dominant_topic, COALESCE(topic_label, '')
FROM reviews
WHERE dominant_topic = ?
ORDER BY id
LIMIT ?`, topic, limit)
	if err != nil {
		return nil, err
	}
	return scanReviews(rows)
}

// CountByTopic returns review counts per dominant topic
func (s *sqliteStore) CountByTopic(ctx context.Context) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT dominant_topic, COUNT(*) FROM reviews GROUP BY dominant_topic`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var topic, n int
		if err := rows.Scan(&topic, &n); err != nil {
			return nil, err
		}
		counts[topic] = n
	}
	return counts, rows.Err()
}

// Count returns the number of stored reviews
func (s *sqliteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews`).Scan(&n)
	return n, err
}

// Clear deletes every review
func (s *sqliteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM reviews`)
	return err
}

func scanReviews(rows *sql.Rows) ([]store.Review, error) {
	defer rows.Close()

	out := []store.Review{}
	for rows.Next() {
		var r store.Review
		if err := rows.Scan(&r.ID, &r.Text, &r.DominantTopic, &r.TopicLabel); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
