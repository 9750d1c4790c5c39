package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/plant-store/internal/apperr"
)

const aggregatesSchema = `
CREATE TABLE IF NOT EXISTS aggregates (
	kind       TEXT        NOT NULL,
	user_id    TEXT        NOT NULL,
	version    BIGINT      NOT NULL,
	document   JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (kind, user_id)
)`

// PostgresDocumentStore stores carts and wishlists as JSONB rows
type PostgresDocumentStore struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresDocumentStore(db *sql.DB, timeout time.Duration) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db, timeout: timeout}
}

// EnsureSchema creates the aggregates table if it does not exist
func (s *PostgresDocumentStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx, aggregatesSchema)
	return classify("ensure schema", err)
}

func (s *PostgresDocumentStore) LoadDocument(ctx context.Context, kind, userID string) (*Document, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	doc := &Document{Kind: kind, UserID: userID}
	var body []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT version, document, updated_at FROM aggregates WHERE kind = $1 AND user_id = $2",
		kind, userID,
	).Scan(&doc.Version, &body, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("load "+kind, err)
	}
	doc.Body = body
	return doc, nil
}

func (s *PostgresDocumentStore) SaveDocument(ctx context.Context, doc *Document, expected int64) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO aggregates (kind, user_id, version, document, updated_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (kind, user_id) DO NOTHING`,
			doc.Kind, doc.UserID, doc.Version, []byte(doc.Body), doc.UpdatedAt,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE aggregates SET version = $3, document = $4, updated_at = $5
			 WHERE kind = $1 AND user_id = $2 AND version = $6`,
			doc.Kind, doc.UserID, doc.Version, []byte(doc.Body), doc.UpdatedAt, expected,
		)
	}
	if err != nil {
		return classify("save "+doc.Kind, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return classify("save "+doc.Kind, err)
	}
	if rows == 0 {
		return apperr.Conflict("Document was modified concurrently, please retry")
	}
	return nil
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
