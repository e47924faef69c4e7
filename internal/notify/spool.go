package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const spoolSchema = `
CREATE TABLE IF NOT EXISTS outbox (
    id         TEXT    PRIMARY KEY,
    kind       TEXT    NOT NULL,
    recipient  TEXT    NOT NULL,
    payload    TEXT    NOT NULL,
    attempts   INTEGER NOT NULL DEFAULT 0,
    last_error TEXT    NOT NULL DEFAULT '',
    status     TEXT    NOT NULL DEFAULT 'pending',
    created_at TEXT    NOT NULL,
    updated_at TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, created_at);
`

const (
	spoolPending   = "pending"
	spoolDelivered = "delivered"
	spoolDead      = "dead"
)

// fixed width so created_at sorts chronologically as text
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SpoolEntry is a message waiting for redelivery.
type SpoolEntry struct {
	ID        string
	Kind      string
	Message   Message
	Attempts  int
	LastError string
	CreatedAt time.Time
}

// Spool is the local fallback store for undelivered messages (SQLite).
type Spool struct {
	db  *sql.DB
	now func() time.Time
}

func OpenSpool(path string) (*Spool, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("spool: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(spoolSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("spool: apply schema: %w", err)
	}
	return &Spool{db: db, now: time.Now}, nil
}

func (s *Spool) Close() error { return s.db.Close() }

// Put stores m as pending, recording the delivery error that sent it here.
func (s *Spool) Put(ctx context.Context, kind string, m Message, cause error) (string, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("spool: encode %s: %w", kind, err)
	}
	id := uuid.NewString()
	now := s.now().UTC().Format(timeLayout)
	lastErr := ""
	if cause != nil {
		lastErr = cause.Error()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO outbox (id, kind, recipient, payload, attempts, last_error, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?)`,
		id, kind, m.To, string(payload), lastErr, spoolPending, now, now)
	if err != nil {
		return "", fmt.Errorf("spool: insert %s: %w", kind, err)
	}
	return id, nil
}

// Pending returns up to limit pending entries, oldest first.
func (s *Spool) Pending(ctx context.Context, limit int) ([]SpoolEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, payload, attempts, last_error, created_at
		FROM outbox WHERE status = ?
		ORDER BY created_at, rowid LIMIT ?`, spoolPending, limit)
	if err != nil {
		return nil, fmt.Errorf("spool: query pending: %w", err)
	}
	defer rows.Close()

	var out []SpoolEntry
	for rows.Next() {
		var (
			e       SpoolEntry
			payload string
			created string
		)
		if err := rows.Scan(&e.ID, &e.Kind, &payload, &e.Attempts, &e.LastError, &created); err != nil {
			return nil, fmt.Errorf("spool: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Message); err != nil {
			return nil, fmt.Errorf("spool: decode %s: %w", e.ID, err)
		}
		e.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Spool) MarkDelivered(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, spoolDelivered, "", 0)
}

// MarkFailed counts one more failed attempt; dead entries are no longer returned by Pending.
func (s *Spool) MarkFailed(ctx context.Context, id string, cause error, dead bool) error {
	status := spoolPending
	if dead {
		status = spoolDead
	}
	return s.setStatus(ctx, id, status, cause.Error(), 1)
}

func (s *Spool) setStatus(ctx context.Context, id, status, lastErr string, inc int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox
		SET status = ?, attempts = attempts + ?,
		    last_error = CASE WHEN ? = '' THEN last_error ELSE ? END,
		    updated_at = ?
		WHERE id = ?`,
		status, inc, lastErr, lastErr, s.now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("spool: update %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("spool: entry %s not found", id)
	}
	return nil
}

// Counts reports the number of entries per status.
func (s *Spool) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM outbox GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[st] = n
	}
	return out, rows.Err()
}
