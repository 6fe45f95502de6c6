package store

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/goliatone/go-intake/internal/config"
	"github.com/goliatone/go-intake/pkg/draft"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()

	var memCfg config.Config
	memCfg.Store.Driver = config.DriverMemory
	mem, err := Open(ctx, memCfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := mem.Store.(*draft.MemoryStore); !ok {
		t.Fatalf("memory driver returned %T", mem.Store)
	}
	if err := mem.Ping(ctx); err != nil {
		t.Fatalf("memory ping: %v", err)
	}

	var liteCfg config.Config
	liteCfg.Store.Driver = config.DriverSQLite
	liteCfg.Store.SQLitePath = filepath.Join(t.TempDir(), "drafts.db")
	lite, err := Open(ctx, liteCfg, nil)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer lite.Close()
	if lite.Driver != config.DriverSQLite {
		t.Fatalf("driver = %q", lite.Driver)
	}
	rec, err := lite.Create(ctx, draft.NewRecord("system-intake", nil))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Revision != 1 {
		t.Fatalf("revision = %d", rec.Revision)
	}

	var badCfg config.Config
	badCfg.Store.Driver = "redis"
	if _, err := Open(ctx, badCfg, nil); err == nil {
		t.Fatal("expected unknown driver error")
	}
}
