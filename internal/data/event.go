package data

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/devricklin/chatdigest/internal/biz/domain"
	"github.com/devricklin/chatdigest/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// eventRepo implements the captured message store on sqlite
type eventRepo struct {
	db *sql.DB
	mu sync.Mutex // serializes writers so concurrent captures never hit SQLITE_BUSY
}

// NewEventRepo opens (and creates when missing) the event store at dbPath
func NewEventRepo(dbPath string, logger zerolog.Logger) (repo.EventRepo, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.Wrap(err, "create db directory")
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	r := &eventRepo{db: db}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialize schema")
	}

	logger.Info().Str("component", "store").Str("path", dbPath).Msg("event store ready")
	return r, nil
}

func (r *eventRepo) initSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS captured_messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			msg_id TEXT UNIQUE NOT NULL,
			chat_id TEXT NOT NULL,
			thread_id TEXT,
			author TEXT NOT NULL,
			text TEXT NOT NULL,
			ts INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_captured_chat_ts ON captured_messages(chat_id, ts);
	`)
	return err
}

// Put inserts msg; an existing msg_id is left untouched
func (r *eventRepo) Put(ctx context.Context, msg *domain.CapturedMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var threadID sql.NullString
	if msg.ThreadID != nil {
		threadID = sql.NullString{String: *msg.ThreadID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO captured_messages (msg_id, chat_id, thread_id, author, text, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ChatID, threadID, msg.Author, msg.Text, msg.Timestamp.UnixMilli())
	if err != nil {
		return errors.Wrapf(err, "insert message %s", msg.ID)
	}
	return nil
}

// Query returns the messages of chatID in [from, to), oldest first
func (r *eventRepo) Query(ctx context.Context, chatID string, from, to time.Time, excludedThreadIDs []string) ([]*domain.CapturedMessage, error) {
	query := `
		SELECT msg_id, chat_id, thread_id, author, text, ts
		FROM captured_messages
		WHERE chat_id = ? AND ts >= ? AND ts < ?`
	args := []interface{}{chatID, from.UnixMilli(), to.UnixMilli()}

	if len(excludedThreadIDs) > 0 {
		placeholders := make([]string, len(excludedThreadIDs))
		for i, id := range excludedThreadIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += ` AND (thread_id IS NULL OR thread_id NOT IN (` + strings.Join(placeholders, ",") + `))`
	}
	query += ` ORDER BY ts ASC, seq ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query messages")
	}
	defer rows.Close()

	var messages []*domain.CapturedMessage
	for rows.Next() {
		var msg domain.CapturedMessage
		var threadID sql.NullString
		var ts int64
		if err := rows.Scan(&msg.ID, &msg.ChatID, &threadID, &msg.Author, &msg.Text, &ts); err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		if threadID.Valid {
			msg.ThreadID = &threadID.String
		}
		msg.Timestamp = time.UnixMilli(ts)
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// Count returns the number of stored messages of chatID
func (r *eventRepo) Count(ctx context.Context, chatID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM captured_messages WHERE chat_id = ?`, chatID).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count messages")
	}
	return n, nil
}

// Close closes the database
func (r *eventRepo) Close() error {
	return r.db.Close()
}
