package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/maildeskhq/maildesk/pkg/models"
)

// PostgresConfig holds connection settings for the Postgres item store.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPostgresConfig returns production-ready pool settings.
func DefaultPostgresConfig(url string) PostgresConfig {
	return PostgresConfig{
		URL:             url,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// PostgresStore persists items in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects, verifies the connection, and ensures the schema.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("postgres url is required")
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreFromDB wraps an existing connection (used by tests).
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			subject TEXT NOT NULL,
			from_name TEXT,
			from_address TEXT NOT NULL,
			received_at TIMESTAMPTZ NOT NULL,
			body_text TEXT,
			attachments JSONB,
			ai_processing BOOLEAN NOT NULL DEFAULT FALSE,
			ai_processed_at TIMESTAMPTZ,
			summary TEXT,
			tags JSONB,
			facts JSONB,
			suggested_reply TEXT,
			suggested_subject TEXT,
			customer_phone TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create items table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_items_received_at ON items (received_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_items_unprocessed ON items (received_at) WHERE ai_processed_at IS NULL`,
	}
	for _, idx := range indexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

const itemColumns = `id, subject, from_name, from_address, received_at, body_text, attachments,
	ai_processing, ai_processed_at, summary, tags, facts, suggested_reply, suggested_subject, customer_phone`

// Get returns an item by id, or (nil, nil) when absent.
func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// List returns items newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*models.Item, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY received_at DESC, id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// ListUnprocessed returns up to limit unprocessed items, oldest first.
func (s *PostgresStore) ListUnprocessed(ctx context.Context, limit int) ([]*models.Item, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE ai_processed_at IS NULL ORDER BY received_at, id LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// Upsert inserts or replaces an item's identity fields.
func (s *PostgresStore) Upsert(ctx context.Context, item *models.Item) error {
	if item == nil {
		return nil
	}
	attachments, err := marshalJSON(item.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (id, subject, from_name, from_address, received_at, body_text, attachments)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			subject = EXCLUDED.subject,
			from_name = EXCLUDED.from_name,
			from_address = EXCLUDED.from_address,
			received_at = EXCLUDED.received_at,
			body_text = EXCLUDED.body_text,
			attachments = EXCLUDED.attachments
	`, item.ID, item.Subject, nullableString(item.FromName), item.FromAddress,
		item.ReceivedAt, nullableString(item.BodyText), attachments)
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}
	return nil
}

// SetProcessing flips the transient in-flight marker.
func (s *PostgresStore) SetProcessing(ctx context.Context, id string, processing bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE items SET ai_processing = $2 WHERE id = $1`, id, processing)
	if err != nil {
		return fmt.Errorf("set processing: %w", err)
	}
	return nil
}

// UpdateAI persists AI-derived fields and stamps the processed time.
func (s *PostgresStore) UpdateAI(ctx context.Context, item *models.Item) error {
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
			ai_processing = FALSE,
			ai_processed_at = $2,
			summary = $3,
			tags = $4,
			facts = $5,
			suggested_reply = $6,
			suggested_subject = $7,
			customer_phone = $8
		WHERE id = $1
	`, item.ID, time.Now(), nullableString(item.Summary), tags, facts,
		nullableString(item.SuggestedReply), nullableString(item.SuggestedSubject),
		nullableString(item.CustomerPhone))
	if err != nil {
		return fmt.Errorf("update ai result: %w", err)
	}
	return nil
}

// ResetAI clears AI-derived fields of one item.
func (s *PostgresStore) ResetAI(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, resetStmt+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("reset ai fields: %w", err)
	}
	return nil
}

// ResetAllAI clears AI-derived fields of every processed item.
func (s *PostgresStore) ResetAllAI(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, resetStmt+` WHERE ai_processed_at IS NOT NULL OR ai_processing`)
	if err != nil {
		return 0, fmt.Errorf("reset ai fields: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

const resetStmt = `
	UPDATE items SET
		ai_processing = FALSE,
		ai_processed_at = NULL,
		summary = NULL,
		tags = NULL,
		facts = NULL,
		suggested_reply = NULL,
		suggested_subject = NULL,
		customer_phone = NULL`

// Close closes the underlying pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type itemScanner interface {
	Scan(dest ...any) error
}

func scanItem(scanner itemScanner) (*models.Item, error) {
	var (
		item            models.Item
		fromName        sql.NullString
		bodyText        sql.NullString
		attachmentsJSON []byte
		processedAt     sql.NullTime
		summary         sql.NullString
		tagsJSON        []byte
		factsJSON       []byte
		reply           sql.NullString
		replySubject    sql.NullString
		phone           sql.NullString
	)

	err := scanner.Scan(
		&item.ID, &item.Subject, &fromName, &item.FromAddress, &item.ReceivedAt,
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
	if processedAt.Valid {
		at := processedAt.Time
		item.AIProcessedAt = &at
	}
	if len(attachmentsJSON) > 0 {
		if err := json.Unmarshal(attachmentsJSON, &item.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshal attachments: %w", err)
		}
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &item.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if len(factsJSON) > 0 {
		if err := json.Unmarshal(factsJSON, &item.Facts); err != nil {
			return nil, fmt.Errorf("unmarshal facts: %w", err)
		}
	}
	return &item, nil
}

func collectItems(rows *sql.Rows) ([]*models.Item, error) {
	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
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

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalJSON(v any) (any, error) {
	switch val := v.(type) {
	case []models.Attachment:
		if len(val) == 0 {
			return nil, nil
		}
	case []models.Fact:
		if len(val) == 0 {
			return nil, nil
		}
	case []string:
		if len(val) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}
