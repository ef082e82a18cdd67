package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/twitchax/triage-bot/core"
	"github.com/twitchax/triage-bot/logging"
)

const searchResultLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS channels (
	id                   TEXT PRIMARY KEY,
	directive_raw        BLOB,
	directive_notes      TEXT NOT NULL,
	directive_updated_at TIMESTAMP NOT NULL,
	created_at           TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS channel_context (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	channel_id TEXT NOT NULL REFERENCES channels(id),
	raw        BLOB,
	notes      TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	channel_id TEXT NOT NULL,
	raw        BLOB,
	text       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_channel_context_channel ON channel_context(channel_id);
CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id);
`

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

// SQLiteOptions configures construction of a SQLiteStore.
type SQLiteOptions struct {
	Logger logging.Logger
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string, optFns ...func(o *SQLiteOptions)) (*SQLiteStore, error) {
	opts := SQLiteOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	// WAL mode and a busy timeout so concurrent readers do not trip over the
	// single writer.
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000",
		path,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	opts.Logger.Info("store.sqlite.opened", "path", path)

	return &SQLiteStore{db: db, logger: opts.Logger}, nil
}

// GetOrCreateChannel implements Store.
func (s *SQLiteStore) GetOrCreateChannel(ctx context.Context, channelID string) (core.Channel, error) {
	fresh := core.NewChannel(channelID)

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO channels (id, directive_raw, directive_notes, directive_updated_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		fresh.ID, []byte(fresh.Directive.Raw), fresh.Directive.Notes, fresh.Directive.UpdatedAt, fresh.CreatedAt,
	)
	if err != nil {
		return core.Channel{}, fmt.Errorf("failed to create channel %s: %w", channelID, err)
	}

	var ch core.Channel
	var raw []byte
	err = s.db.QueryRowContext(ctx,
		`SELECT id, directive_raw, directive_notes, directive_updated_at, created_at FROM channels WHERE id = ?`,
		channelID,
	).Scan(&ch.ID, &raw, &ch.Directive.Notes, &ch.Directive.UpdatedAt, &ch.CreatedAt)
	if err != nil {
		return core.Channel{}, fmt.Errorf("failed to load channel %s: %w", channelID, err)
	}
	if len(raw) > 0 {
		ch.Directive.Raw = json.RawMessage(raw)
	}

	return ch, nil
}

// UpdateDirective implements Store. The directive is replaced wholesale.
func (s *SQLiteStore) UpdateDirective(ctx context.Context, channelID string, raw json.RawMessage, notes string) error {
	if _, err := s.GetOrCreateChannel(ctx, channelID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE channels SET directive_raw = ?, directive_notes = ?, directive_updated_at = ? WHERE id = ?`,
		[]byte(raw), notes, time.Now().UTC(), channelID,
	)
	if err != nil {
		return fmt.Errorf("failed to update directive for channel %s: %w", channelID, err)
	}

	s.logger.Info("store.directive.updated", "channel_id", channelID)

	return nil
}

// AppendContext implements Store. Entries are append-only.
func (s *SQLiteStore) AppendContext(ctx context.Context, channelID string, raw json.RawMessage, notes string) error {
	if _, err := s.GetOrCreateChannel(ctx, channelID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_context (channel_id, raw, notes, created_at) VALUES (?, ?, ?, ?)`,
		channelID, []byte(raw), notes, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append context for channel %s: %w", channelID, err)
	}

	s.logger.Info("store.context.appended", "channel_id", channelID)

	return nil
}

// ContextEntries implements Store.
func (s *SQLiteStore) ContextEntries(ctx context.Context, channelID string) ([]core.ChannelContextEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT raw, notes, created_at FROM channel_context WHERE channel_id = ? ORDER BY id ASC`,
		channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load context for channel %s: %w", channelID, err)
	}
	defer rows.Close()

	var entries []core.ChannelContextEntry
	for rows.Next() {
		var entry core.ChannelContextEntry
		var raw []byte
		if err := rows.Scan(&raw, &entry.Notes, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan context entry: %w", err)
		}
		if len(raw) > 0 {
			entry.Raw = json.RawMessage(raw)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// GetContext implements Store. Entries are rendered one per line, oldest
// first, so the prompt preserves accretion order.
func (s *SQLiteStore) GetContext(ctx context.Context, channelID string) (string, error) {
	entries, err := s.ContextEntries(ctx, channelID)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return NoContextRecorded, nil
	}

	lines := make([]string, len(entries))
	for i, entry := range entries {
		lines[i] = "- " + entry.Notes
	}

	return strings.Join(lines, "\n"), nil
}

// AppendMessage implements Store. The extracted text column feeds ranked
// search; raw keeps the full platform payload.
func (s *SQLiteStore) AppendMessage(ctx context.Context, channelID string, raw json.RawMessage, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (channel_id, raw, text, created_at) VALUES (?, ?, ?, ?)`,
		channelID, []byte(raw), text, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append message for channel %s: %w", channelID, err)
	}
	return nil
}

// SearchMessages implements Store. Each comma separated term contributes one
// point per matching message; terms are OR-combined, results capped at 50 in
// descending score order.
func (s *SQLiteStore) SearchMessages(ctx context.Context, channelID, terms string) (string, error) {
	split := splitTerms(terms)
	if len(split) == 0 {
		return NoRelevantMessages, nil
	}

	var scoreParts []string
	args := make([]any, 0, len(split)+2)
	for range split {
		scoreParts = append(scoreParts, `(CASE WHEN text LIKE '%' || ? || '%' THEN 1 ELSE 0 END)`)
	}
	for _, term := range split {
		args = append(args, term)
	}
	args = append(args, channelID, searchResultLimit)

	query := fmt.Sprintf(
		`SELECT text, score FROM (
			SELECT text, id, (%s) AS score FROM messages WHERE channel_id = ?
		 )
		 WHERE score > 0
		 ORDER BY score DESC, id DESC
		 LIMIT ?`,
		strings.Join(scoreParts, " + "),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return "", fmt.Errorf("failed to search messages for channel %s: %w", channelID, err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var text string
		var score int
		if err := rows.Scan(&text, &score); err != nil {
			return "", fmt.Errorf("failed to scan search result: %w", err)
		}
		lines = append(lines, text)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	if len(lines) == 0 {
		return NoRelevantMessages, nil
	}

	return strings.Join(lines, "\n"), nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// splitTerms normalizes a comma separated term string, dropping empty and
// whitespace-only entries.
func splitTerms(terms string) []string {
	var out []string
	for _, term := range strings.Split(terms, ",") {
		term = strings.TrimSpace(term)
		if term != "" {
			out = append(out, term)
		}
	}
	return out
}
