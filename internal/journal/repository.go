package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Operation names stored in the journal.
const (
	OperationConnect   = "connect"
	OperationSubscribe = "subscribe"
	OperationPublish   = "publish"
)

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Entry is one journalled operation.
type Entry struct {
	ID         string         `json:"id"`
	Operation  string         `json:"operation"`
	ClientID   string         `json:"client_id"`
	Broker     string         `json:"broker,omitempty"`
	Topic      string         `json:"topic,omitempty"`
	Code       int            `json:"code"`
	Outcome    string         `json:"outcome"`
	Detail     map[string]any `json:"detail,omitempty"`
	DurationMS int64          `json:"duration_ms"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter selects journal entries. Zero fields match everything.
type Filter struct {
	Operation string
	ClientID  string
	Outcome   string
	Since     time.Time
	Limit     int // default 50, max 500
	Offset    int
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores journal entries.
type Repository interface {
	Record(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	Summary(ctx context.Context, since time.Time) (map[string]map[string]int, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SQLiteRepository keeps the journal in the operation_journal table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts e, filling ID and CreatedAt when empty.
func (r *SQLiteRepository) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "op-" + uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	var detail *string
	if len(e.Detail) > 0 {
		b, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshalling journal detail: %w", err)
		}
		s := string(b)
		detail = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO operation_journal (id, operation, client_id, broker, topic, code, outcome, detail, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Operation, e.ClientID,
		nullable(e.Broker), nullable(e.Topic),
		e.Code, e.Outcome, detail, e.DurationMS,
		e.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// where builds the WHERE clause for f from parameterised conditions.
func (f Filter) where() (string, []any) {
	var conditions []string
	var args []any

	if f.Operation != "" {
		conditions = append(conditions, "operation = ?")
		args = append(args, f.Operation)
	}
	if f.ClientID != "" {
		conditions = append(conditions, "client_id = ?")
		args = append(args, f.ClientID)
	}
	if f.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, f.Outcome)
	}
	if !f.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// List returns entries matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	where, args := filter.where()

	var total int
	countQuery := "SELECT COUNT(*) FROM operation_journal " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting journal entries: %w", err)
	}

	query := "SELECT id, operation, client_id, broker, topic, code, outcome, detail, duration_ms, created_at FROM operation_journal " + //nolint:gosec // WHERE built from parameterised conditions
		where + " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying journal entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal entries: %w", err)
	}

	return &ListResult{Entries: entries, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var broker, topic, detail sql.NullString
	var createdAt string

	if err := rows.Scan(&e.ID, &e.Operation, &e.ClientID, &broker, &topic,
		&e.Code, &e.Outcome, &detail, &e.DurationMS, &createdAt); err != nil {
		return Entry{}, fmt.Errorf("scanning journal entry: %w", err)
	}

	e.Broker = broker.String
	e.Topic = topic.String
	if detail.Valid && detail.String != "" {
		if err := json.Unmarshal([]byte(detail.String), &e.Detail); err != nil {
			return Entry{}, fmt.Errorf("decoding detail of %s: %w", e.ID, err)
		}
	}

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing journal timestamp %q: %w", createdAt, err)
	}
	e.CreatedAt = t
	return e, nil
}

// Summary counts entries per operation and outcome since the given time.
func (r *SQLiteRepository) Summary(ctx context.Context, since time.Time) (map[string]map[string]int, error) {
	where, args := Filter{Since: since}.where()
	rows, err := r.db.QueryContext(ctx,
		"SELECT operation, outcome, COUNT(*) FROM operation_journal "+where+" GROUP BY operation, outcome", //nolint:gosec // parameterised
		args...)
	if err != nil {
		return nil, fmt.Errorf("summarising journal: %w", err)
	}
	defer rows.Close()

	summary := make(map[string]map[string]int)
	for rows.Next() {
		var op, outcome string
		var n int
		if err := rows.Scan(&op, &outcome, &n); err != nil {
			return nil, fmt.Errorf("scanning journal summary: %w", err)
		}
		if summary[op] == nil {
			summary[op] = make(map[string]int)
		}
		summary[op][outcome] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal summary: %w", err)
	}
	return summary, nil
}

// Prune deletes entries created before the given time.
func (r *SQLiteRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM operation_journal WHERE created_at < ?", before.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	return n, nil
}
