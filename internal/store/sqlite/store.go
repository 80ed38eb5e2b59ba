package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"content_orchestra/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS event_journal (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	kind TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	state TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_event_journal_subject ON event_journal(subject_id, seq);
CREATE INDEX IF NOT EXISTS idx_event_journal_kind ON event_journal(kind, seq);
`

const journalTable = "event_journal"

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Append writes entries in one transaction.
func (s *Store) Append(ctx context.Context, entries ...domain.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	insert := sq.Insert(journalTable).Columns("id", "kind", "subject_id", "state", "payload", "created_at")
	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("append journal entry without id: %w", domain.ErrInvalidArgument)
		}
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		payload := string(e.Payload)
		if payload == "" {
			payload = "{}"
		}
		insert = insert.Values(e.ID, string(e.Kind), e.SubjectID, e.State, payload, createdAt.UnixMilli())
	}
	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build journal insert: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("append journal: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit journal: %w", err)
	}
	return nil
}

type Filter struct {
	Kind      domain.EventKind
	SubjectID string
	Limit     int
}

func (f Filter) where(b sq.SelectBuilder) sq.SelectBuilder {
	if f.Kind != "" {
		b = b.Where(sq.Eq{"kind": string(f.Kind)})
	}
	if f.SubjectID != "" {
		b = b.Where(sq.Eq{"subject_id": f.SubjectID})
	}
	return b
}

// List returns matching entries newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]domain.JournalEntry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 300
	}
	query, args, err := f.where(
		sq.Select("id", "kind", "subject_id", "state", "payload", "created_at").From(journalTable),
	).OrderBy("seq DESC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build journal query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	result := make([]domain.JournalEntry, 0, min(limit, 64))
	for rows.Next() {
		var e domain.JournalEntry
		var kind, payload string
		var createdAt int64
		if err := rows.Scan(&e.ID, &kind, &e.SubjectID, &e.State, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Kind = domain.EventKind(kind)
		e.Payload = []byte(payload)
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return result, nil
}

func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	query, args, err := f.where(sq.Select("COUNT(*)").From(journalTable)).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build journal count: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal: %w", err)
	}
	return n, nil
}
