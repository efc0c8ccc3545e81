// Package audit implements ports.AuditLog as an append-only
// newline-delimited JSON file, one record per logged event.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alejandrodnm/ftmorisk/internal/domain"
)

type record struct {
	Timestamp  time.Time   `json:"ts"`
	RunID      string      `json:"run_id,omitempty"`
	ConfigHash string      `json:"config_hash,omitempty"`
	Event      string      `json:"event"`
	Payload    interface{} `json:"payload"`
}

// JSONLAuditLog appends one JSON record per line to Path.
type JSONLAuditLog struct {
	Path       string
	ConfigHash string

	mu sync.Mutex
}

// New opens (creating parent directories as needed) an audit log at path.
func New(path, configHash string) (*JSONLAuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit.New: mkdir: %w", err)
	}
	return &JSONLAuditLog{Path: path, ConfigHash: configHash}, nil
}

// Log implements ports.AuditLog.
func (a *JSONLAuditLog) Log(ctx context.Context, event domain.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ts := event.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	line, err := json.Marshal(record{
		Timestamp:  ts,
		RunID:      event.RunID,
		ConfigHash: a.ConfigHash,
		Event:      event.Name,
		Payload:    event.Payload,
	})
	if err != nil {
		return fmt.Errorf("audit.JSONLAuditLog.Log: marshal: %w", err)
	}

	file, err := os.OpenFile(a.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("audit.JSONLAuditLog.Log: open: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit.JSONLAuditLog.Log: write: %w", err)
	}
	return nil
}
