package serverrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	cfgpkg "github.com/Zuzuna54/fintech-app-demo/internal/config"
	"github.com/Zuzuna54/fintech-app-demo/internal/runtime"
	httpserver "github.com/Zuzuna54/fintech-app-demo/internal/server/http"
	pebblestore "github.com/Zuzuna54/fintech-app-demo/internal/storage/pebble"
	"github.com/Zuzuna54/fintech-app-demo/internal/worker"
	logpkg "github.com/Zuzuna54/fintech-app-demo/pkg/log"
)

type Options struct {
	DataDir       string
	HTTPAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	// InitSchema creates the ledger tables on startup when set.
	InitSchema bool
	Config     cfgpkg.Config
}

// Run starts the settlement node: HTTP API, worker pool, reaper, and monitor.
// It blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context over the provided one so callers that
	// don't pass a signal-aware context still shut down cleanly.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if opts.DataDir == "" {
		opts.DataDir = cfg.DataDir
	}
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	if opts.HTTPAddr == "" {
		opts.HTTPAddr = cfg.HTTPAddr
	}

	procLogger, err := logpkg.ApplyConfig(&cfg.Log)
	if err != nil {
		procLogger = logpkg.NewLogger(logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	// Redirect stdlib logs (e.g. Pebble) to our logger.
	logpkg.RedirectStdLog(procLogger)

	storeDir := filepath.Join(opts.DataDir, "store")
	rt, err := runtime.Open(sctx, runtime.Options{
		DataDir:       storeDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Config:        cfg,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	store := rt.Ledger()
	if store == nil {
		return errors.New("server requires a database; set databaseUrl or FINTECH_DATABASE_URL")
	}
	if opts.InitSchema {
		if err := store.EnsureSchema(sctx); err != nil {
			return err
		}
	}

	q, err := rt.OpenQueue(cfg.QueueName)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}

	procLogger.Info("starting settlement node",
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("data_dir", opts.DataDir),
		logpkg.Str("queue", cfg.QueueName),
		logpkg.Int("workers", cfg.Workers),
	)

	hsrv := httpserver.New(httpserver.Options{
		Ledger: store,
		Queue:  q,
		Health: rt,
		Logger: procLogger,
	})

	var wg sync.WaitGroup

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	visibility := time.Duration(cfg.VisibilityTimeout)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := worker.New(q, store, visibility, procLogger)
			_ = w.Run(sctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		r := worker.NewReaper(q, time.Duration(cfg.ReapInterval), procLogger)
		_ = r.Run(sctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		m := worker.NewMonitor(q, time.Duration(cfg.MonitorInterval), procLogger)
		_ = m.Run(sctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, opts.HTTPAddr); err != nil && sctx.Err() == nil {
			procLogger.Error("http server error", logpkg.Err(err))
		}
	}()

	<-sctx.Done()
	// Graceful shutdown of the server and loops before closing the runtime.
	hsrv.Close()
	wg.Wait()
	return nil
}
