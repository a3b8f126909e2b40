package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "github.com/caterpillar-1/CShapeZ/internal/persistence/log"
	"github.com/caterpillar-1/CShapeZ/internal/sim/tuning"
	"github.com/caterpillar-1/CShapeZ/internal/sim/world"
	"github.com/caterpillar-1/CShapeZ/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		seed       = flag.Int64("seed", 0, "terrain seed for a fresh world (0: use tuning)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (tick/audit/snapshot metadata)")

		snapPath     = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest   = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
		keepSnaps    = flag.Int("keep_snapshots", 24, "number of periodic snapshots to keep (0 keeps all)")
		saveOnExit   = flag.Bool("snapshot_on_exit", true, "write a final snapshot on shutdown")
		allowRemote  = flag.Bool("allow_remote", false, "serve observer endpoints to non-loopback clients")
		snapshotEach = flag.Int("snapshot_every", 0, "override tuning snapshot_every_ticks (0 keeps tuning)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.Seed = *seed
	}
	if *snapshotEach > 0 {
		tune.SnapshotEveryTicks = *snapshotEach
	}

	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
	}

	w, source, err := openWorld(*worldID, worldDir, strings.TrimSpace(*snapPath), *loadLatest, tune)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	if source != "" {
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(source), w.CurrentTick())
	} else {
		logger.Printf("fresh world %s grid=%dx%d seed=%d", *worldID, tune.GridW, tune.GridH, tune.Seed)
	}

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()
	w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})

	// Snapshot writer.
	snapCh := make(chan world.Snapshot, 2)
	w.SetSnapshotSink(snapCh)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path, err := persistSnapshot(worldDir, snap, idx)
				if err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				logger.Printf("snapshot tick=%d devices=%d path=%s", snap.Tick, snap.Summary.Devices, filepath.Base(path))
				pruneSnapshots(worldDir, *keepSnaps, logger)
			}
		}
	}()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	obs := observer.NewServer(w, logger)
	obs.AllowRemote = *allowRemote

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, w.Summary(), idx)
	})
	obs.Routes(mux)

	if envBool("CSZ_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		registerAdmin(mux, w, idx)
	} else {
		logger.Printf("admin endpoints disabled (CSZ_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("CSZ_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	cancel()
	<-runDone
	<-writerDone
	if *saveOnExit {
		// The loop has returned, so the world can be read from this goroutine.
		last := w.CurrentTick()
		if last > 0 {
			last--
		}
		snap, err := w.ExportSnapshot(last)
		if err == nil {
			_, err = persistSnapshot(worldDir, snap, idx)
		}
		if err != nil {
			logger.Printf("final snapshot: %v", err)
		} else {
			logger.Printf("final snapshot tick=%d", last)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
