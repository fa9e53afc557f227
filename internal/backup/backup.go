// Package backup snapshots the SQLite database file. Triggers are published
// to the worker queue and debounced through Redis so a burst of mutations
// produces a single snapshot.
package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jurisdesk/jurisdesk/internal/store/rabbitmq"
	"github.com/jurisdesk/jurisdesk/internal/store/redisstore"
)

const (
	debounceKey = "backup"
	// DebounceWindow collapses triggers; the snapshot itself happens at
	// most once per window.
	DebounceWindow = time.Minute
	keepSnapshots  = 10
)

// Trigger implements chat.BackupTrigger. Nil collaborators degrade
// gracefully: without Redis every trigger publishes, without a publisher
// triggers are dropped with a log line.
type Trigger struct {
	rds *redisstore.Store
	pub *rabbitmq.Publisher
	log *zap.Logger
}

func NewTrigger(rds *redisstore.Store, pub *rabbitmq.Publisher, log *zap.Logger) *Trigger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Trigger{rds: rds, pub: pub, log: log}
}

func (t *Trigger) Trigger(ctx context.Context) {
	if t.pub == nil {
		t.log.Debug("backup trigger dropped: no publisher configured")
		return
	}
	if t.rds != nil {
		won, err := t.rds.Debounce(ctx, debounceKey, DebounceWindow)
		if err != nil {
			t.log.Warn("backup debounce check failed", zap.Error(err))
		} else if !won {
			return
		}
	}
	if err := t.pub.PublishBackup(ctx); err != nil {
		t.log.Warn("backup publish failed", zap.Error(err))
	}
}

// Snapshot copies the database file into dir with a timestamped name and
// prunes old snapshots. Run by the worker, never on the request path.
func Snapshot(dbPath, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	src, err := os.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("open database: %w", err)
	}
	defer src.Close()

	name := fmt.Sprintf("%s.%s.bak", filepath.Base(dbPath), time.Now().Format("20060102-150405"))
	dstPath := filepath.Join(dir, name)
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(dstPath)
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}

	if err := prune(dir, filepath.Base(dbPath)); err != nil {
		return dstPath, err
	}
	return dstPath, nil
}

func prune(dir, base string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var snapshots []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), base+".") && strings.HasSuffix(e.Name(), ".bak") {
			snapshots = append(snapshots, e.Name())
		}
	}
	if len(snapshots) <= keepSnapshots {
		return nil
	}
	// timestamped names sort chronologically
	sort.Strings(snapshots)
	for _, name := range snapshots[:len(snapshots)-keepSnapshots] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}
