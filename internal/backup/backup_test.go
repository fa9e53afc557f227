package backup

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshot_CopiesDatabaseFile(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "jurisdesk.db")
	if err := os.WriteFile(dbPath, []byte("sqlite-bytes"), 0o644); err != nil {
		t.Fatalf("write db: %v", err)
	}

	dir := filepath.Join(tmp, "backups")
	out, err := Snapshot(dbPath, dir)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if string(got) != "sqlite-bytes" {
		t.Fatalf("snapshot content mismatch: %q", got)
	}
}

func TestSnapshot_MissingDatabase(t *testing.T) {
	tmp := t.TempDir()
	if _, err := Snapshot(filepath.Join(tmp, "absent.db"), tmp); err == nil {
		t.Fatalf("expected error for missing database file")
	}
}

func TestPrune_KeepsNewest(t *testing.T) {
	tmp := t.TempDir()
	for i := 0; i < keepSnapshots+4; i++ {
		name := filepath.Join(tmp, "db."+string(rune('a'+i))+".bak")
		if err := os.WriteFile(name, nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := prune(tmp, "db"); err != nil {
		t.Fatalf("prune: %v", err)
	}
	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != keepSnapshots {
		t.Fatalf("got %d snapshots, want %d", len(entries), keepSnapshots)
	}
	// the lexicographically newest must survive
	last := entries[len(entries)-1].Name()
	if last != "db."+string(rune('a'+keepSnapshots+3))+".bak" {
		t.Fatalf("newest snapshot pruned: %s", last)
	}
}
