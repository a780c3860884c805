package db

import (
	"path/filepath"
	"testing"
)

func TestOpenCreatesSchema(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"file", filepath.Join(t.TempDir(), "softbox.db")},
		{"memory", ":memory:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Open(tt.path)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer d.Close()

			for _, table := range []string{"event_ledger", "kv_store"} {
				var name string
				err := d.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
				if err != nil {
					t.Errorf("table %s missing: %v", table, err)
				}
			}
		})
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "softbox.db")
	for i := 0; i < 2; i++ {
		d, err := Open(path)
		if err != nil {
			t.Fatalf("Open #%d: %v", i, err)
		}
		d.Close()
	}
}
