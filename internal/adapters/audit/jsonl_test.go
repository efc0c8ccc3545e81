package audit_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/ftmorisk/internal/adapters/audit"
	"github.com/alejandrodnm/ftmorisk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		lines = append(lines, rec)
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestNew_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "audit.log")
	_, err := audit.New(path, "hash-1")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}

func TestLog_AppendsOneJSONLinePerEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	log, err := audit.New(path, "hash-1")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, log.Log(ctx, domain.AuditEvent{
		RunID: "run-1",
		Name:  domain.EventOrderSubmitted,
		Payload: domain.OrderEventPayload{
			ClientOrderID: "coid-1",
			Symbol:        "EURUSD",
			Side:          "buy",
			Volume:        0.1,
		},
	}))
	require.NoError(t, log.Log(ctx, domain.AuditEvent{
		RunID: "run-1",
		Name:  domain.EventSafeModeTripped,
		Payload: domain.SafeModePayload{
			Reason: domain.SafeModeDrift,
			Detail: "unresolved drift",
		},
	}))

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, domain.EventOrderSubmitted, lines[0]["event"])
	assert.Equal(t, "run-1", lines[0]["run_id"])
	assert.Equal(t, "hash-1", lines[0]["config_hash"])
	assert.Equal(t, domain.EventSafeModeTripped, lines[1]["event"])
}

func TestLog_FillsTimestampWhenEventAtIsZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	log, err := audit.New(path, "")
	require.NoError(t, err)

	before := time.Now().UTC()
	require.NoError(t, log.Log(context.Background(), domain.AuditEvent{Name: domain.EventReconcile}))

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	ts, err := time.Parse(time.RFC3339Nano, lines[0]["ts"].(string))
	require.NoError(t, err)
	assert.True(t, !ts.Before(before))
}
