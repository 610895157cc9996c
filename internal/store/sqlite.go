package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/maildeskhq/maildesk/pkg/models"
	_ "modernc.org/sqlite" // CGo-free SQLite driver
)

// SQLiteStore persists items in a local SQLite database. Timestamps are
// stored as RFC 3339 text so rows stay readable with the sqlite3 shell.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Serialized access; the pipeline is single-writer anyway.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			subject TEXT NOT NULL,
			from_name TEXT,
			from_address TEXT NOT NULL,
			received_at TEXT NOT NULL,
			body_text TEXT,
			attachments TEXT,
			ai_processing INTEGER NOT NULL DEFAULT 0,
			ai_processed_at TEXT,
			summary TEXT,
			tags TEXT,
			facts TEXT,
			suggested_reply TEXT,
			suggested_subject TEXT,
			customer_phone TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_items_received_at ON items (received_at);
	`)
	if err != nil {
		return fmt.Errorf("create items table: %w", err)
	}
	return nil
}

// Get returns an item by id, or (nil, nil) when absent.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanSQLiteItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// List returns items newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*models.Item, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY received_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	return collectSQLiteItems(rows)
}

// ListUnprocessed returns up to limit unprocessed items, oldest first.
func (s *SQLiteStore) ListUnprocessed(ctx context.Context, limit int) ([]*models.Item, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE ai_processed_at IS NULL ORDER BY received_at, id LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed items: %w", err)
	}
	defer rows.Close()
	return collectSQLiteItems(rows)
}

// Upsert inserts or replaces an item's identity fields.
func (s *SQLiteStore) Upsert(ctx context.Context, item *models.Item) error {
	if item == nil {
		return nil
	}
	attachments, err := marshalJSON(item.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (id, subject, from_name, from_address, received_at, body_text, attachments)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			subject = excluded.subject,
			from_name = excluded.from_name,
			from_address = excluded.from_address,
			received_at = excluded.received_at,
			body_text = excluded.body_text,
			attachments = excluded.attachments
	`, item.ID, item.Subject, nullableString(item.FromName), item.FromAddress,
		formatTime(item.ReceivedAt), nullableString(item.BodyText), attachments)
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}
	return nil
}

// SetProcessing flips the transient in-flight marker.
func (s *SQLiteStore) SetProcessing(ctx context.Context, id string, processing bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE items SET ai_processing = ? WHERE id = ?`, processing, id)
	if err != nil {
		return fmt.Errorf("set processing: %w", err)
	}
	return nil
}

// UpdateAI persists AI-derived fields and stamps the processed time.
func (s *SQLiteStore) UpdateAI(ctx context.Context, item *models.Item) error {
	if item == nil {
		return nil
	}
	tags, err := marshalJSON(item.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	facts, err := marshalJSON(item.Facts)
	if err != nil {
		return fmt.Errorf("marshal facts: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE items SET
			ai_processing = 0,
			ai_processed_at = ?,
			summary = ?,
			tags = ?,
			facts = ?,
			suggested_reply = ?,
			suggested_subject = ?,
			customer_phone = ?
		WHERE id = ?
	`, formatTime(time.Now()), nullableString(item.Summary), tags, facts,
		nullableString(item.SuggestedReply), nullableString(item.SuggestedSubject),
		nullableString(item.CustomerPhone), item.ID)
	if err != nil {
		return fmt.Errorf("update ai result: %w", err)
	}
	return nil
}

// ResetAI clears AI-derived fields of one item.
func (s *SQLiteStore) ResetAI(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, sqliteResetStmt+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("reset ai fields: %w", err)
	}
	return nil
}

// ResetAllAI clears AI-derived fields of every processed item.
func (s *SQLiteStore) ResetAllAI(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, sqliteResetStmt+` WHERE ai_processed_at IS NOT NULL OR ai_processing = 1`)
	if err != nil {
		return 0, fmt.Errorf("reset ai fields: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

const sqliteResetStmt = `
	UPDATE items SET
		ai_processing = 0,
		ai_processed_at = NULL,
		summary = NULL,
		tags = NULL,
		facts = NULL,
		suggested_reply = NULL,
		suggested_subject = NULL,
		customer_phone = NULL`

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanSQLiteItem(scanner itemScanner) (*models.Item, error) {
	var (
		item            models.Item
		fromName        sql.NullString
		receivedAt      string
		bodyText        sql.NullString
		attachmentsJSON sql.NullString
		processedAt     sql.NullString
		summary         sql.NullString
		tagsJSON        sql.NullString
		factsJSON       sql.NullString
		reply           sql.NullString
		replySubject    sql.NullString
		phone           sql.NullString
	)

	err := scanner.Scan(
		&item.ID, &item.Subject, &fromName, &item.FromAddress, &receivedAt,
		&bodyText, &attachmentsJSON, &item.AIProcessing, &processedAt, &summary,
		&tagsJSON, &factsJSON, &reply, &replySubject, &phone,
	)
	if err != nil {
		return nil, err
	}

	item.FromName = fromName.String
	item.BodyText = bodyText.String
	item.Summary = summary.String
	item.SuggestedReply = reply.String
	item.SuggestedSubject = replySubject.String
	item.CustomerPhone = phone.String

	item.ReceivedAt, err = parseTime(receivedAt)
	if err != nil {
		return nil, fmt.Errorf("parse received_at: %w", err)
	}
	if processedAt.Valid {
		at, err := parseTime(processedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse ai_processed_at: %w", err)
		}
		item.AIProcessedAt = &at
	}

	if attachmentsJSON.Valid && attachmentsJSON.String != "" {
		if err := json.Unmarshal([]byte(attachmentsJSON.String), &item.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshal attachments: %w", err)
		}
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &item.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if factsJSON.Valid && factsJSON.String != "" {
		if err := json.Unmarshal([]byte(factsJSON.String), &item.Facts); err != nil {
			return nil, fmt.Errorf("unmarshal facts: %w", err)
		}
	}
	return &item, nil
}

func collectSQLiteItems(rows *sql.Rows) ([]*models.Item, error) {
	var items []*models.Item
	for rows.Next() {
		item, err := scanSQLiteItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
