package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dokzlo13/softboxd/internal/db"
)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return New(d.DB)
}

func TestAppendAndGetByType(t *testing.T) {
	l := newLedger(t)

	steps := []map[string]any{
		{"from": "init", "to": "network_scan"},
		{"from": "network_scan", "to": "mesh_master"},
	}
	for _, p := range steps {
		if err := l.Append(EventLifecycleTransition, "", "lifecycle", p); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Append(EventStateCommitted, "evt-1", "control", map[string]any{"power": true}); err != nil {
		t.Fatal(err)
	}

	entries, err := l.GetByType(EventLifecycleTransition, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Payload["to"] != "mesh_master" {
		t.Errorf("newest entry = %v", entries[0].Payload)
	}

	committed, err := l.GetByType(EventStateCommitted, 1)
	if err != nil {
		t.Fatal(err)
	}
	if committed[0].EventID != "evt-1" || committed[0].Source != "control" || committed[0].Payload["power"] != true {
		t.Errorf("committed = %+v", committed[0])
	}
}

func TestDeleteOlderThan(t *testing.T) {
	l := newLedger(t)
	if _, err := l.db.Exec(`
		INSERT INTO event_ledger (event_type, timestamp, payload, source, event_id)
		VALUES (?, ?, '', '', '')
	`, string(EventButtonPressed), time.Now().Add(-48*time.Hour).UnixMilli()); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(EventButtonPressed, "", "button", nil); err != nil {
		t.Fatal(err)
	}

	n, err := l.DeleteOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if c, _ := l.Count(EventButtonPressed); c != 1 {
		t.Errorf("remaining = %d, want 1", c)
	}
}
