// Package history keeps an optional local journal of chat exchanges and
// searches made through the CLI. The backend remains the source of truth; the
// journal only records what this machine asked and received.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/videochat/models"
)

const defaultListLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS chat_exchanges (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	video_id INTEGER NOT NULL,
	message TEXT NOT NULL,
	response TEXT NOT NULL DEFAULT '',
	citations TEXT NOT NULL DEFAULT '[]',
	message_id INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_exchanges_video ON chat_exchanges(video_id);
CREATE TABLE IF NOT EXISTS searches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	video_id INTEGER NOT NULL,
	query TEXT NOT NULL,
	strategy TEXT NOT NULL DEFAULT '',
	total_results INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_searches_video ON searches(video_id);
`

// ChatEntry is one recorded question and the backend's answer.
type ChatEntry struct {
	ID        int64             `json:"id"`
	VideoID   int               `json:"video_id"`
	Message   string            `json:"message"`
	Response  string            `json:"response"`
	Citations []models.Citation `json:"citations"`
	MessageID int               `json:"message_id"`
	CreatedAt time.Time         `json:"created_at"`
}

// SearchEntry is one recorded visual search.
type SearchEntry struct {
	ID           int64     `json:"id"`
	VideoID      int       `json:"video_id"`
	Query        string    `json:"query"`
	Strategy     string    `json:"strategy"`
	TotalResults int       `json:"total_results"`
	CreatedAt    time.Time `json:"created_at"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates (if needed) and opens the journal at path.
func Open(path string) (*Store, error) {
	logrus.WithField("path", path).Debug("Opening history store")

	// Ensure the directory for the database file exists
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return nil, errors.Wrap(err, "creating directory for history database")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening history database")
	}

	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating history tables")
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordChat journals a chat exchange.
func (s *Store) RecordChat(ctx context.Context, videoID int, message string, resp *models.ChatResponse) (int64, error) {
	citations := []models.Citation{}
	var response string
	var messageID int
	if resp != nil {
		response = resp.Response
		messageID = resp.MessageID
		if resp.Citations != nil {
			citations = resp.Citations
		}
	}

	encoded, err := json.Marshal(citations)
	if err != nil {
		return 0, errors.Wrap(err, "encoding citations")
	}

	return s.insert(ctx,
		"INSERT INTO chat_exchanges (video_id, message, response, citations, message_id, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		videoID, message, response, string(encoded), messageID, s.timestamp())
}

// RecordSearch journals a visual search and the number of results it found.
func (s *Store) RecordSearch(ctx context.Context, videoID int, query, strategy string, totalResults int) (int64, error) {
	return s.insert(ctx,
		"INSERT INTO searches (video_id, query, strategy, total_results, created_at) VALUES (?, ?, ?, ?, ?)",
		videoID, query, strategy, totalResults, s.timestamp())
}

// ListChats returns up to limit exchanges for videoID, newest first. A
// non-positive limit uses 50.
func (s *Store) ListChats(ctx context.Context, videoID, limit int) ([]ChatEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, video_id, message, response, citations, message_id, created_at FROM chat_exchanges WHERE video_id = ? ORDER BY id DESC LIMIT ?",
		videoID, listLimit(limit))
	if err != nil {
		return nil, errors.Wrap(err, "querying chat exchanges")
	}
	defer rows.Close()

	var entries []ChatEntry
	for rows.Next() {
		var (
			e         ChatEntry
			citations string
			created   string
		)
		if err := rows.Scan(&e.ID, &e.VideoID, &e.Message, &e.Response, &citations, &e.MessageID, &created); err != nil {
			return nil, errors.Wrap(err, "scanning chat exchange")
		}
		if err := json.Unmarshal([]byte(citations), &e.Citations); err != nil {
			return nil, errors.Wrapf(err, "decoding citations of exchange %d", e.ID)
		}
		if e.CreatedAt, err = parseTimestamp(created); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "iterating chat exchanges")
}

// ListSearches returns up to limit searches for videoID, newest first.
func (s *Store) ListSearches(ctx context.Context, videoID, limit int) ([]SearchEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, video_id, query, strategy, total_results, created_at FROM searches WHERE video_id = ? ORDER BY id DESC LIMIT ?",
		videoID, listLimit(limit))
	if err != nil {
		return nil, errors.Wrap(err, "querying searches")
	}
	defer rows.Close()

	var entries []SearchEntry
	for rows.Next() {
		var (
			e       SearchEntry
			created string
		)
		if err := rows.Scan(&e.ID, &e.VideoID, &e.Query, &e.Strategy, &e.TotalResults, &created); err != nil {
			return nil, errors.Wrap(err, "scanning search")
		}
		if e.CreatedAt, err = parseTimestamp(created); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "iterating searches")
}

// DeleteVideo drops every journal entry for videoID, mirroring a backend
// delete or chat clear.
func (s *Store) DeleteVideo(ctx context.Context, videoID int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}

	for _, query := range []string{
		"DELETE FROM chat_exchanges WHERE video_id = ?",
		"DELETE FROM searches WHERE video_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, query, videoID); err != nil {
			tx.Rollback()
			return errors.Wrap(err, "executing delete statement")
		}
	}

	return errors.Wrap(tx.Commit(), "committing transaction")
}

// ClearChats drops only the chat exchanges of videoID.
func (s *Store) ClearChats(ctx context.Context, videoID int) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chat_exchanges WHERE video_id = ?", videoID)
	return errors.Wrap(err, "clearing chat exchanges")
}

func (s *Store) insert(ctx context.Context, query string, args ...any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "beginning transaction")
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, "preparing statement")
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, "executing statement")
	}

	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, "reading inserted id")
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "committing transaction")
	}
	return id, nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	return t, errors.Wrapf(err, "parsing timestamp %q", v)
}

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
