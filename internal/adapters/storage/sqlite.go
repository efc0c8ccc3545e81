// Package storage implements the durable adapters: a sqlite-backed order
// journal and atomic-file-backed safe-mode/drift/status/daily-metrics
// stores.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/alejandrodnm/ftmorisk/internal/domain"
	_ "modernc.org/sqlite"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS journal_entries (
    client_order_id TEXT PRIMARY KEY,
    run_id          TEXT NOT NULL,
    fingerprint     TEXT NOT NULL,
    status          TEXT NOT NULL,
    broker_order_id TEXT NOT NULL DEFAULT '',
    attempts        INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL,
    updated_at      DATETIME NOT NULL,
    last_error      TEXT NOT NULL DEFAULT '',
    intent_json     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_journal_fingerprint ON journal_entries(fingerprint);
CREATE INDEX IF NOT EXISTS idx_journal_status       ON journal_entries(status);
`

// SQLiteJournal implements ports.Journal using sqlite (pure Go, no cgo),
// the same storage engine and single-writer connection settings the
// source's other sqlite-backed adapter uses.
type SQLiteJournal struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteJournal opens (or creates) the journal database at path and
// applies its schema.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteJournal: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteJournal: apply schema: %w", err)
	}
	return &SQLiteJournal{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}

// Put upserts entry, matching ports.Journal's twice-safe contract.
func (s *SQLiteJournal) Put(ctx context.Context, entry domain.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	intentJSON, err := json.Marshal(entry.Intent)
	if err != nil {
		return fmt.Errorf("storage.SQLiteJournal.Put: marshal intent: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO journal_entries
			(client_order_id, run_id, fingerprint, status, broker_order_id, attempts, created_at, updated_at, last_error, intent_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_order_id) DO UPDATE SET
			status          = excluded.status,
			broker_order_id = excluded.broker_order_id,
			attempts        = excluded.attempts,
			updated_at      = excluded.updated_at,
			last_error      = excluded.last_error,
			intent_json     = excluded.intent_json
	`,
		entry.ClientOrderID, entry.RunID, entry.Fingerprint, string(entry.Status),
		entry.BrokerOrderID, entry.Attempts, entry.CreatedAt, entry.UpdatedAt, entry.LastError, string(intentJSON),
	)
	if err != nil {
		return fmt.Errorf("storage.SQLiteJournal.Put: %w", err)
	}
	return nil
}

func scanEntry(row interface {
	Scan(dest ...interface{}) error
}) (domain.JournalEntry, error) {
	var entry domain.JournalEntry
	var status, intentJSON string
	if err := row.Scan(
		&entry.ClientOrderID, &entry.RunID, &entry.Fingerprint, &status,
		&entry.BrokerOrderID, &entry.Attempts, &entry.CreatedAt, &entry.UpdatedAt, &entry.LastError, &intentJSON,
	); err != nil {
		return domain.JournalEntry{}, err
	}
	entry.Status = domain.OrderStatus(status)
	if err := json.Unmarshal([]byte(intentJSON), &entry.Intent); err != nil {
		return domain.JournalEntry{}, fmt.Errorf("storage: unmarshal intent: %w", err)
	}
	return entry, nil
}

// Get looks up a journal entry by client order ID.
func (s *SQLiteJournal) Get(ctx context.Context, clientOrderID string) (domain.JournalEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT client_order_id, run_id, fingerprint, status, broker_order_id, attempts, created_at, updated_at, last_error, intent_json
		FROM journal_entries WHERE client_order_id = ?`, clientOrderID)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return domain.JournalEntry{}, false, nil
	}
	if err != nil {
		return domain.JournalEntry{}, false, fmt.Errorf("storage.SQLiteJournal.Get: %w", err)
	}
	return entry, true, nil
}

// GetByFingerprint looks up the most recent journal entry sharing a
// duplicate-suppression fingerprint.
func (s *SQLiteJournal) GetByFingerprint(ctx context.Context, fingerprint string) (domain.JournalEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT client_order_id, run_id, fingerprint, status, broker_order_id, attempts, created_at, updated_at, last_error, intent_json
		FROM journal_entries WHERE fingerprint = ? ORDER BY created_at DESC LIMIT 1`, fingerprint)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return domain.JournalEntry{}, false, nil
	}
	if err != nil {
		return domain.JournalEntry{}, false, fmt.Errorf("storage.SQLiteJournal.GetByFingerprint: %w", err)
	}
	return entry, true, nil
}

// ListOpen returns every journal entry not yet in a terminal status.
func (s *SQLiteJournal) ListOpen(ctx context.Context) ([]domain.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT client_order_id, run_id, fingerprint, status, broker_order_id, attempts, created_at, updated_at, last_error, intent_json
		FROM journal_entries WHERE status IN (?, ?, ?)`,
		string(domain.OrderPending), string(domain.OrderSubmitted), string(domain.OrderAccepted),
	)
	if err != nil {
		return nil, fmt.Errorf("storage.SQLiteJournal.ListOpen: %w", err)
	}
	defer rows.Close()

	var out []domain.JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.SQLiteJournal.ListOpen: scan: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
