package runtime

import (
	"context"
	"errors"
	"time"

	cfgpkg "github.com/Zuzuna54/fintech-app-demo/internal/config"
	"github.com/Zuzuna54/fintech-app-demo/internal/ledger"
	"github.com/Zuzuna54/fintech-app-demo/internal/queue"
	pebblestore "github.com/Zuzuna54/fintech-app-demo/internal/storage/pebble"
)

// Options for building the Runtime.
type Options struct {
	DataDir string
	Fsync   pebblestore.FsyncMode
	// FsyncInterval bounds group-commit latency when Fsync is interval mode.
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	// DatabaseURL overrides Config.DatabaseURL when set. Leave both empty to
	// run without a ledger (queue-only tooling).
	DatabaseURL string
}

// Runtime wires the queue store, the ledger, and config for a single node.
type Runtime struct {
	db     *pebblestore.DB
	store  *ledger.Store
	config cfgpkg.Config
}

// Open initializes storage and, when a database URL is configured, the ledger
// connection pool.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Metrics:       pebblestore.PromMetrics{},
	})
	if err != nil {
		return nil, err
	}
	rt := &Runtime{db: db, config: opts.Config}

	dsn := opts.DatabaseURL
	if dsn == "" {
		dsn = opts.Config.DatabaseURL
	}
	if dsn != "" {
		store, err := ledger.NewStore(ctx, dsn)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		rt.store = store
	}
	return rt, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.store != nil {
		r.store.Close()
	}
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth verifies the queue store is readable and the ledger reachable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	it.Close()
	if r.store != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return r.store.Ping(ctx)
	}
	return nil
}

// OpenQueue opens the named work queue with the configured retry budget.
func (r *Runtime) OpenQueue(name string) (*queue.Queue, error) {
	q, err := queue.Open(r.db, name)
	if err != nil {
		return nil, err
	}
	return q.WithOptions(queue.Options{MaxRetries: r.config.MaxRetries}), nil
}

// Ledger returns the ledger store, or nil when no database is configured.
func (r *Runtime) Ledger() *ledger.Store { return r.store }

// DB exposes the underlying DB for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
