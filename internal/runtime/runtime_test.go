package runtime

import (
	"context"
	"testing"

	cfgpkg "github.com/Zuzuna54/fintech-app-demo/internal/config"
	pebblestore "github.com/Zuzuna54/fintech-app-demo/internal/storage/pebble"
)

func openTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DatabaseURL = "" // queue-only; no ledger in unit tests
	rt, err := Open(context.Background(), Options{
		DataDir: t.TempDir(),
		Fsync:   pebblestore.FsyncModeAlways,
		Config:  cfg,
	})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestOpenCloseHealth(t *testing.T) {
	rt := openTestRuntime(t)
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if rt.Ledger() != nil {
		t.Fatal("expected nil ledger without a database url")
	}
}

func TestOpenQueueUsesConfiguredBudget(t *testing.T) {
	rt := openTestRuntime(t)
	q, err := rt.OpenQueue("payments")
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	if q.MaxRetries() != rt.Config().MaxRetries {
		t.Fatalf("queue budget %d, config %d", q.MaxRetries(), rt.Config().MaxRetries)
	}
}
